package bootcfg

import "errors"

var (
	// ErrConfigUnavailable reports that the configuration source locator
	// could not be retrieved. Fatal; the boot aborts before any fetch.
	ErrConfigUnavailable = errors.New("boot configuration unavailable")

	// ErrConfigMalformed reports that retrieved configuration content
	// could not be parsed into the expected shape. Fatal at the same
	// stage.
	ErrConfigMalformed = errors.New("boot configuration malformed")
)
