package manifest

import "errors"

// ErrManifestInvalid reports a manifest entry missing a required field or
// violating the per-behavior name uniqueness invariant. It is fatal: the
// boot sequence aborts before any fetch is attempted.
var ErrManifestInvalid = errors.New("resource manifest invalid")
