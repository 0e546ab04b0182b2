package envelope

import (
	"encoding/base64"
	"encoding/json"
	"strconv"

	"github.com/securestor/s3crypt/internal/crypto/cryptoerr"
)

// Envelope is the wire-level superset record produced by encoding any of
// V1/V2/V3 and consumed by decoding any of them. The source material
// historically carried two slightly different envelope-record types (one
// per legacy/new pipeline); this is the single merged representation the
// spec calls for -- fields that don't apply to a given version are left
// zero.
type Envelope struct {
	Schema Schema

	WrappedCEK    []byte
	IV            []byte // V1/V2 content IV; unset for V3 (fixed IV, not carried)
	WrapAlgorithm string // canonical
	CEKAlgorithm  string // canonical
	TagLengthBits int    // V2 only

	MaterialDescription map[string]string // V1, and V2/V3 non-KMS
	EncryptionContext   map[string]string // KMS wraps (V2: x-amz-matdesc, V3: x-amz-t)

	MessageID     []byte // V3 only (x-amz-i)
	KeyCommitment []byte // V3 only (x-amz-d)
}

// Encode renders env as the object-metadata map, plus a sidecar payload
// for V3 envelopes when useInstructionFile is set. V1 and V2 envelopes
// are always written entirely into object metadata: useInstructionFile is
// ignored for them and sidecar is nil.
func Encode(env Envelope, useInstructionFile bool) (objectMeta map[string]string, sidecar []byte, err error) {
	switch env.Schema {
	case SchemaV1:
		return encodeV1(env)
	case SchemaV2:
		return encodeV2(env)
	default:
		return encodeV3(env, useInstructionFile)
	}
}

func encodeV1(env Envelope) (map[string]string, []byte, error) {
	m := map[string]string{
		KeyV1WrappedCEK: base64.StdEncoding.EncodeToString(env.WrappedCEK),
		KeyIV:           base64.StdEncoding.EncodeToString(env.IV),
	}
	if len(env.MaterialDescription) > 0 {
		desc, err := json.Marshal(env.MaterialDescription)
		if err != nil {
			return nil, nil, cryptoerr.Wrap(cryptoerr.InvalidData, "failed to marshal material description", err)
		}
		m[KeyMatDesc] = string(desc)
	}
	return m, nil, nil
}

// encodeV2 persists env.MaterialDescription and env.EncryptionContext
// under the same x-amz-matdesc slot -- the source material never gave
// "kms+context" a field of its own, so the encryption context (when the
// wrap is KMS-based) doubles as the matdesc. decodeV2 tells them apart
// by the recorded wrap algorithm.
func encodeV2(env Envelope) (map[string]string, []byte, error) {
	m := map[string]string{
		KeyV2WrappedCEK: base64.StdEncoding.EncodeToString(env.WrappedCEK),
		KeyIV:           base64.StdEncoding.EncodeToString(env.IV),
		KeyWrapAlg:      env.WrapAlgorithm,
		KeyCEKAlg:       env.CEKAlgorithm,
		KeyTagLen:       strconv.Itoa(env.TagLengthBits),
	}
	desc := env.MaterialDescription
	if env.EncryptionContext != nil {
		desc = env.EncryptionContext
	}
	if len(desc) > 0 {
		raw, err := json.Marshal(desc)
		if err != nil {
			return nil, nil, cryptoerr.Wrap(cryptoerr.InvalidData, "failed to marshal material description", err)
		}
		m[KeyMatDesc] = string(raw)
	}
	return m, nil, nil
}

func encodeV3(env Envelope, useInstructionFile bool) (map[string]string, []byte, error) {
	shortWrap, err := ShortV3Code(env.WrapAlgorithm)
	if err != nil {
		return nil, nil, err
	}

	full := map[string]string{
		KeyV3ContentAlg: env.CEKAlgorithm,
		KeyV3WrappedCEK: base64.StdEncoding.EncodeToString(env.WrappedCEK),
		KeyV3WrapShort:  shortWrap,
		KeyV3Commitment: base64.StdEncoding.EncodeToString(env.KeyCommitment),
		KeyV3MessageID:  base64.StdEncoding.EncodeToString(env.MessageID),
	}
	if env.EncryptionContext != nil {
		ctx, err := json.Marshal(env.EncryptionContext)
		if err != nil {
			return nil, nil, cryptoerr.Wrap(cryptoerr.InvalidData, "failed to marshal encryption context", err)
		}
		full[KeyV3Context] = string(ctx)
	} else if len(env.MaterialDescription) > 0 {
		desc, err := json.Marshal(env.MaterialDescription)
		if err != nil {
			return nil, nil, cryptoerr.Wrap(cryptoerr.InvalidData, "failed to marshal material description", err)
		}
		full[KeyV3MatDesc] = string(desc)
	}

	if !useInstructionFile {
		return full, nil, nil
	}

	objectMeta := map[string]string{
		KeyV3ContentAlg: full[KeyV3ContentAlg],
		KeyV3Commitment: full[KeyV3Commitment],
		KeyV3MessageID:  full[KeyV3MessageID],
	}
	sidecarFields := map[string]string{
		KeyV3WrappedCEK: full[KeyV3WrappedCEK],
		KeyV3WrapShort:  full[KeyV3WrapShort],
	}
	if v, ok := full[KeyV3MatDesc]; ok {
		sidecarFields[KeyV3MatDesc] = v
	}
	if v, ok := full[KeyV3Context]; ok {
		sidecarFields[KeyV3Context] = v
	}
	sidecar, err := json.Marshal(sidecarFields)
	if err != nil {
		return nil, nil, cryptoerr.Wrap(cryptoerr.InvalidData, "failed to marshal instruction file", err)
	}
	return objectMeta, sidecar, nil
}

// Decode reconstructs an Envelope from an object's metadata plus, when
// schema requires it, the sidecar instruction-file body.
func Decode(schema Schema, meta map[string]string, sidecar []byte) (Envelope, error) {
	switch schema {
	case SchemaV1:
		return decodeV1(meta)
	case SchemaV2:
		return decodeV2(meta)
	case SchemaV3Metadata:
		return decodeV3(meta)
	case SchemaV3InstructionFile:
		return decodeV3InstructionFile(meta, sidecar)
	default:
		return Envelope{}, cryptoerr.New(cryptoerr.NotEncrypted, "object has no recognisable envelope")
	}
}

func decodeV1(meta map[string]string) (Envelope, error) {
	wrapped, err := decodeB64Required(meta, KeyV1WrappedCEK)
	if err != nil {
		return Envelope{}, err
	}
	iv, err := decodeB64Required(meta, KeyIV)
	if err != nil {
		return Envelope{}, err
	}
	desc, err := decodeJSONMap(meta[KeyMatDesc])
	if err != nil {
		return Envelope{}, err
	}
	return Envelope{
		Schema:              SchemaV1,
		WrappedCEK:          wrapped,
		IV:                  iv,
		MaterialDescription: desc,
	}, nil
}

func decodeV2(meta map[string]string) (Envelope, error) {
	wrapped, err := decodeB64Required(meta, KeyV2WrappedCEK)
	if err != nil {
		return Envelope{}, err
	}
	iv, err := decodeB64Required(meta, KeyIV)
	if err != nil {
		return Envelope{}, err
	}
	desc, err := decodeJSONMap(meta[KeyMatDesc])
	if err != nil {
		return Envelope{}, err
	}
	tagLen, _ := strconv.Atoi(meta[KeyTagLen])
	wrapAlg := meta[KeyWrapAlg]
	env := Envelope{
		Schema:        SchemaV2,
		WrappedCEK:    wrapped,
		IV:            iv,
		WrapAlgorithm: wrapAlg,
		CEKAlgorithm:  meta[KeyCEKAlg],
		TagLengthBits: tagLen,
	}
	if wrapAlg == WrapKMS || wrapAlg == WrapKMSContext {
		if desc == nil {
			desc = map[string]string{}
		}
		env.EncryptionContext = desc
	} else {
		env.MaterialDescription = desc
	}
	return env, nil
}

func decodeV3(meta map[string]string) (Envelope, error) {
	return decodeV3Fields(meta, meta)
}

func decodeV3InstructionFile(meta map[string]string, sidecar []byte) (Envelope, error) {
	if sidecar == nil {
		return Envelope{}, cryptoerr.New(cryptoerr.NotEncrypted, "instruction file is missing")
	}
	var side map[string]string
	if err := json.Unmarshal(sidecar, &side); err != nil {
		return Envelope{}, cryptoerr.Wrap(cryptoerr.InvalidData, "failed to parse instruction file JSON", err)
	}
	return decodeV3Fields(meta, side)
}

// decodeV3Fields reads the object-resident V3 fields from objectMeta and
// the wrap-specific fields (possibly the same map, possibly a sidecar)
// from wrapMeta.
func decodeV3Fields(objectMeta, wrapMeta map[string]string) (Envelope, error) {
	wrapped, err := decodeB64Required(wrapMeta, KeyV3WrappedCEK)
	if err != nil {
		return Envelope{}, err
	}
	commitment, err := decodeB64Required(objectMeta, KeyV3Commitment)
	if err != nil {
		return Envelope{}, err
	}
	messageID, err := decodeB64Required(objectMeta, KeyV3MessageID)
	if err != nil {
		return Envelope{}, err
	}
	shortWrap, ok := wrapMeta[KeyV3WrapShort]
	if !ok {
		return Envelope{}, cryptoerr.New(cryptoerr.InvalidData, "missing "+KeyV3WrapShort)
	}
	wrapAlg, err := CanonicalFromShortV3(shortWrap)
	if err != nil {
		return Envelope{}, err
	}

	env := Envelope{
		Schema:        SchemaV3Metadata,
		WrappedCEK:    wrapped,
		WrapAlgorithm: wrapAlg,
		CEKAlgorithm:  objectMeta[KeyV3ContentAlg],
		KeyCommitment: commitment,
		MessageID:     messageID,
	}

	if ctxRaw, ok := wrapMeta[KeyV3Context]; ok {
		ctx, err := decodeJSONMap(ctxRaw)
		if err != nil {
			return Envelope{}, err
		}
		env.EncryptionContext = ctx
	} else if descRaw, ok := wrapMeta[KeyV3MatDesc]; ok {
		desc, err := decodeJSONMap(descRaw)
		if err != nil {
			return Envelope{}, err
		}
		env.MaterialDescription = desc
	}
	return env, nil
}

func decodeB64Required(m map[string]string, key string) ([]byte, error) {
	raw, ok := m[key]
	if !ok {
		return nil, cryptoerr.New(cryptoerr.NotEncrypted, "missing required field "+key)
	}
	b, err := base64.StdEncoding.DecodeString(raw)
	if err != nil {
		return nil, cryptoerr.Wrap(cryptoerr.InvalidData, "failed to base64-decode "+key, err)
	}
	return b, nil
}

func decodeJSONMap(raw string) (map[string]string, error) {
	if raw == "" {
		return nil, nil
	}
	var m map[string]string
	if err := json.Unmarshal([]byte(raw), &m); err != nil {
		return nil, cryptoerr.Wrap(cryptoerr.InvalidData, "failed to parse JSON map", err)
	}
	return m, nil
}
