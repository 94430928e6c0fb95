package hash

// ---------------------------------------------------------------------------
// Frozen tag bytes for the structural hash stream.
//
// IMPORTANT: These tags are FROZEN. Once assigned, a tag byte must never
// change meaning. Adding new tags is fine; changing existing ones changes
// every previously computed structural hash and forces recompilation of
// every cached program.
// ---------------------------------------------------------------------------

// HashVersion is the version prefix for the structural hash stream.
// Bumping this invalidates all existing structural hashes.
const HashVersion byte = 1

// Node kind tags. Each tag uniquely identifies a node family in the stream.
const (
	TagReservedZero byte = 0x00 // version prefix / reserved

	// Leaves
	TagPosition byte = 0x01
	TagConstant byte = 0x02
	TagInject   byte = 0x03
	TagRef      byte = 0x04

	// Expression families
	TagBinary     byte = 0x10
	TagUnary      byte = 0x11
	TagCompare    byte = 0x12
	TagLogic      byte = 0x13
	TagSwizzle    byte = 0x14
	TagConstruct  byte = 0x15
	TagCast       byte = 0x16
	TagBroadcast  byte = 0x17
	TagSelect     byte = 0x18
	TagLerp       byte = 0x19
	TagClamp      byte = 0x1A
	TagSmoothstep byte = 0x1B
	TagRemap      byte = 0x1C
	TagRotation   byte = 0x1D
	TagRotate     byte = 0x1E
	TagVector     byte = 0x1F

	// Parametrized built-ins
	TagNoise        byte = 0x20
	TagFractal      byte = 0x21
	TagSDFPrimitive byte = 0x22
	TagSDFCombine   byte = 0x23
	TagDistance     byte = 0x24
	TagCellular     byte = 0x25
	TagCache        byte = 0x26

	// Reserved 0x27-0x2F

	// Program structure
	TagBackRef   byte = 0x30 // memoized symbol reuse
	TagScope     byte = 0x31 // nested scope definition
	TagScopeCall byte = 0x32 // call into an already defined scope
	TagDispatch  byte = 0x33
	TagOutput    byte = 0x34
	TagWorkgroup byte = 0x35
)

// allTags lists every defined tag for uniqueness verification in tests.
var allTags = []byte{
	TagReservedZero,
	TagPosition, TagConstant, TagInject, TagRef,
	TagBinary, TagUnary, TagCompare, TagLogic, TagSwizzle, TagConstruct,
	TagCast, TagBroadcast, TagSelect, TagLerp, TagClamp, TagSmoothstep,
	TagRemap, TagRotation, TagRotate, TagVector,
	TagNoise, TagFractal, TagSDFPrimitive, TagSDFCombine, TagDistance,
	TagCellular, TagCache,
	TagBackRef, TagScope, TagScopeCall, TagDispatch, TagOutput, TagWorkgroup,
}
