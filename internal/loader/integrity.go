package loader

import (
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"strings"
)

// sriPrefix is the only digest algorithm the manifest format declares.
const sriPrefix = "sha256-"

// SRIHash computes the subresource-integrity digest of data in the form
// the manifest declares hashes in.
func SRIHash(data []byte) string {
	sum := sha256.Sum256(data)
	return sriPrefix + base64.StdEncoding.EncodeToString(sum[:])
}

// verifyIntegrity checks data against a declared hash. An empty hash
// disables the check; an unknown algorithm prefix fails it, since the
// declared pin cannot be honored.
func verifyIntegrity(url string, data []byte, want string) error {
	if want == "" {
		return nil
	}
	if !strings.HasPrefix(want, sriPrefix) {
		return &IntegrityError{URL: url, Want: want, Got: fmt.Sprintf("unsupported digest %q", want)}
	}
	got := SRIHash(data)
	if got != want {
		return &IntegrityError{URL: url, Want: want, Got: got}
	}
	return nil
}
