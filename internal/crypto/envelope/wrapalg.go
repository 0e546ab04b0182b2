package envelope

import "github.com/securestor/s3crypt/internal/crypto/cryptoerr"

// Canonical wrap-algorithm strings, as stored in x-amz-wrap-alg (V2) or
// recovered from the short V3 code (x-amz-w).
const (
	WrapKMS          = "kms"
	WrapKMSContext   = "kms+context"
	WrapRSAOAEPSHA1  = "RSA-OAEP-SHA1"
	WrapAESGCM       = "AES/GCM"

	// WrapAESECB is a legacy, decrypt-only key-wrap predating AES/GCM
	// key-wrap. No current security profile writes it.
	WrapAESECB = "AES/ECB"
)

// shortV3Codes is the single source of truth for the V3 "compressed"
// wrap-algorithm identifiers. The spec text hands us two of these (22 for
// RSA-OAEP-SHA1, 02 for AES/GCM) as a historical fact without an
// authoritative table for the rest; kms and kms+context codes below are
// this module's own assignment, chosen to keep every code a distinct
// two-character string and documented once, here.
var shortV3Codes = map[string]string{
	"01": WrapKMS,
	"03": WrapKMSContext,
	"22": WrapRSAOAEPSHA1,
	"02": WrapAESGCM,
}

var canonicalToShortV3 = func() map[string]string {
	m := make(map[string]string, len(shortV3Codes))
	for code, canonical := range shortV3Codes {
		m[canonical] = code
	}
	return m
}()

// ShortV3Code returns the two-character V3 wrap code for a canonical wrap
// algorithm string.
func ShortV3Code(canonical string) (string, error) {
	code, ok := canonicalToShortV3[canonical]
	if !ok {
		return "", cryptoerr.New(cryptoerr.UnsupportedAlgorithm, "no V3 short code for wrap algorithm "+canonical)
	}
	return code, nil
}

// CanonicalFromShortV3 inverts ShortV3Code, rejecting any code absent from
// the table.
func CanonicalFromShortV3(code string) (string, error) {
	canonical, ok := shortV3Codes[code]
	if !ok {
		return "", cryptoerr.New(cryptoerr.UnsupportedAlgorithm, "unrecognized V3 wrap code "+code)
	}
	return canonical, nil
}
