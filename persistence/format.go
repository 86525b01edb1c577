package persistence

import "errors"

const (
	// MagicNumber identifies docvec snapshot files (ASCII: "DVC1").
	MagicNumber = 0x44564331

	// FormatVersion is the current snapshot format version.
	FormatVersion = 0x00010000
)

// Flags stored in the snapshot header.
const (
	// FlagTrained marks a snapshot of a trained index.
	FlagTrained uint16 = 1 << 0

	// FlagIDMapped marks a snapshot whose vectors carry explicit stable ids.
	// Snapshots written by current code always set it; its absence identifies
	// a legacy artifact that needs an explicit upgrade before appends.
	FlagIDMapped uint16 = 1 << 1
)

// CompressionType defines the payload compression algorithm.
type CompressionType uint8

const (
	// CompressionNone stores the payload uncompressed.
	CompressionNone CompressionType = 0
	// CompressionLZ4 uses LZ4 block compression (fast, lighter ratio).
	CompressionLZ4 CompressionType = 1
	// CompressionZSTD uses ZSTD compression (better ratio, the default).
	CompressionZSTD CompressionType = 2
)

var (
	// ErrInvalidMagic is returned when a file does not start with the
	// snapshot magic number.
	ErrInvalidMagic = errors.New("invalid magic number")

	// ErrInvalidVersion is returned for snapshot versions this build cannot read.
	ErrInvalidVersion = errors.New("unsupported snapshot version")

	// ErrChecksumMismatch indicates payload corruption detected on load.
	ErrChecksumMismatch = errors.New("snapshot checksum mismatch")

	// ErrUnknownCompression is returned for unrecognized compression codes.
	ErrUnknownCompression = errors.New("unknown compression type")
)

// FileHeader is the 64-byte header at the start of every snapshot file.
type FileHeader struct {
	Magic       uint32 // 0x44564331 ("DVC1")
	Version     uint32 // Snapshot format version
	Kind        uint8  // index.Kind
	Compression uint8  // CompressionType of the payload
	Flags       uint16 // FlagTrained | FlagIDMapped
	Dimension   uint32 // Vector dimensionality
	VectorCount uint64 // Total number of vectors
	PayloadSize uint64 // Compressed payload size in bytes
	Checksum    uint32 // CRC32 of the compressed payload
	Reserved    [28]byte
}
