package primitives

import "crypto/subtle"

// ConstantTimeEqual reports whether a and b are equal using a comparison
// whose timing does not depend on the position of the first differing
// byte. Used only for the V3 key-commitment check. Inputs of different
// lengths return false at once, before any byte is compared, so the
// length itself is not hidden (commitments are a fixed 32 bytes).
func ConstantTimeEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	return subtle.ConstantTimeCompare(a, b) == 1
}
