package envelope

// Object metadata mapkeys, as specified in section 3 of the envelope
// format. Names are literal on the wire; this module never renames or
// double-encodes them.
const (
	KeyV1WrappedCEK = "x-amz-key"
	KeyIV           = "x-amz-iv"
	KeyMatDesc      = "x-amz-matdesc"

	KeyV2WrappedCEK = "x-amz-key-v2"
	KeyWrapAlg      = "x-amz-wrap-alg"
	KeyCEKAlg       = "x-amz-cek-alg"
	KeyTagLen       = "x-amz-tag-len"

	KeyV3ContentAlg    = "x-amz-c"
	KeyV3WrappedCEK    = "x-amz-k"
	KeyV3WrapShort     = "x-amz-w"
	KeyV3Commitment    = "x-amz-d"
	KeyV3MessageID     = "x-amz-i"
	KeyV3MatDesc       = "x-amz-m"
	KeyV3Context       = "x-amz-t"
)

// InstructionFileSuffix is appended to an object's key to form the
// sidecar object that carries the wrapped key of a V3 envelope written in
// instruction-file mode (object metadata then has x-amz-c but no x-amz-k).
const InstructionFileSuffix = ".instruction"

// Schema identifies which of the four mapkey layouts a set of metadata
// uses.
type Schema int

const (
	SchemaNone Schema = iota
	SchemaV1
	SchemaV2
	SchemaV3Metadata
	SchemaV3InstructionFile
)

// Classify inspects an object's metadata map and decides which schema
// applies, following the priority order fixed by section 4.2: V3
// metadata mode, then V3 instruction-file mode, then V2, then V1.
// SchemaNone means none of the four layouts matched; the client then
// reports NotEncrypted without looking for a sidecar object.
func Classify(meta map[string]string) Schema {
	_, hasC := meta[KeyV3ContentAlg]
	_, hasK := meta[KeyV3WrappedCEK]
	if hasC && hasK {
		return SchemaV3Metadata
	}
	if hasC && !hasK {
		return SchemaV3InstructionFile
	}
	_, hasKeyV2 := meta[KeyV2WrappedCEK]
	_, hasIV := meta[KeyIV]
	if hasKeyV2 && hasIV {
		return SchemaV2
	}
	_, hasKeyV1 := meta[KeyV1WrappedCEK]
	if hasKeyV1 && hasIV {
		return SchemaV1
	}
	return SchemaNone
}
