package persistence

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"

	"github.com/hupe1980/docvec/index"
)

// Info describes a loaded snapshot, surfacing header fields callers need to
// act on without re-deriving them from the index.
type Info struct {
	Kind        index.Kind
	Trained     bool
	IDMapped    bool
	VectorCount int
	Dimension   int
}

// SaveOptions configures snapshot writes.
type SaveOptions struct {
	// Compression selects the payload codec.
	Compression CompressionType
}

// DefaultSaveOptions are the save defaults.
var DefaultSaveOptions = SaveOptions{
	Compression: CompressionZSTD,
}

// Save atomically persists the index to path: the snapshot is written to a
// temp file, fsynced, then renamed over the target. Snapshots written by
// Save carry the id-mapped flag.
func Save(path string, idx index.Index, optFns ...func(o *SaveOptions)) error {
	opts := DefaultSaveOptions
	for _, fn := range optFns {
		fn(&opts)
	}

	flags := FlagIDMapped
	if idx.Trained() {
		flags |= FlagTrained
	}
	return write(path, idx, flags, opts.Compression)
}

func write(path string, idx index.Index, flags uint16, codec CompressionType) error {
	payload, err := idx.MarshalBinary()
	if err != nil {
		return fmt.Errorf("marshal index: %w", err)
	}

	compressed, err := compress(payload, codec)
	if err != nil {
		return err
	}

	header := FileHeader{
		Magic:       MagicNumber,
		Version:     FormatVersion,
		Kind:        uint8(idx.Kind()),
		Compression: uint8(codec),
		Flags:       flags,
		Dimension:   uint32(idx.Dimension()),
		VectorCount: uint64(idx.Count()),
		PayloadSize: uint64(len(compressed)),
		Checksum:    CalculateChecksum(compressed),
	}

	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create snapshot directory: %w", err)
		}
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp snapshot: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if err := binary.Write(tmp, binary.LittleEndian, &header); err != nil {
		tmp.Close()
		return fmt.Errorf("write snapshot header: %w", err)
	}
	if _, err := tmp.Write(compressed); err != nil {
		tmp.Close()
		return fmt.Errorf("write snapshot payload: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync snapshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return err
	}

	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("rename snapshot into place: %w", err)
	}
	return nil
}

// Load reads a snapshot from path and reconstructs its index via the kind
// registry. A missing file is reported with an error satisfying
// os.IsNotExist / errors.Is(err, fs.ErrNotExist).
func Load(path string) (index.Index, Info, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, Info{}, err
	}
	defer f.Close()

	var header FileHeader
	if err := binary.Read(f, binary.LittleEndian, &header); err != nil {
		return nil, Info{}, fmt.Errorf("read snapshot header: %w", err)
	}
	if header.Magic != MagicNumber {
		return nil, Info{}, fmt.Errorf("%w: got 0x%08x", ErrInvalidMagic, header.Magic)
	}
	if header.Version != FormatVersion {
		return nil, Info{}, fmt.Errorf("%w: 0x%08x", ErrInvalidVersion, header.Version)
	}

	compressed := make([]byte, header.PayloadSize)
	if _, err := io.ReadFull(f, compressed); err != nil {
		return nil, Info{}, fmt.Errorf("read snapshot payload: %w", err)
	}
	if CalculateChecksum(compressed) != header.Checksum {
		return nil, Info{}, ErrChecksumMismatch
	}

	payload, err := decompress(compressed, CompressionType(header.Compression))
	if err != nil {
		return nil, Info{}, err
	}

	idx, err := index.NewOfKind(index.Kind(header.Kind))
	if err != nil {
		return nil, Info{}, err
	}
	if err := idx.UnmarshalBinary(payload); err != nil {
		return nil, Info{}, fmt.Errorf("decode index payload: %w", err)
	}

	info := Info{
		Kind:        index.Kind(header.Kind),
		Trained:     header.Flags&FlagTrained != 0,
		IDMapped:    header.Flags&FlagIDMapped != 0,
		VectorCount: int(header.VectorCount),
		Dimension:   int(header.Dimension),
	}
	return idx, info, nil
}

// Exists reports whether a snapshot file is present at path.
func Exists(path string) (bool, error) {
	_, err := os.Stat(path)
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, err
}

func compress(payload []byte, codec CompressionType) ([]byte, error) {
	switch codec {
	case CompressionNone:
		return payload, nil

	case CompressionLZ4:
		var buf bytes.Buffer
		w := lz4.NewWriter(&buf)
		if _, err := w.Write(payload); err != nil {
			return nil, fmt.Errorf("lz4 compress: %w", err)
		}
		if err := w.Close(); err != nil {
			return nil, fmt.Errorf("lz4 compress: %w", err)
		}
		return buf.Bytes(), nil

	case CompressionZSTD:
		enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
		if err != nil {
			return nil, err
		}
		defer enc.Close()
		return enc.EncodeAll(payload, nil), nil

	default:
		return nil, fmt.Errorf("%w: %d", ErrUnknownCompression, codec)
	}
}

func decompress(data []byte, codec CompressionType) ([]byte, error) {
	switch codec {
	case CompressionNone:
		return data, nil

	case CompressionLZ4:
		r := lz4.NewReader(bytes.NewReader(data))
		out, err := io.ReadAll(r)
		if err != nil {
			return nil, fmt.Errorf("lz4 decompress: %w", err)
		}
		return out, nil

	case CompressionZSTD:
		dec, err := zstd.NewReader(nil)
		if err != nil {
			return nil, err
		}
		defer dec.Close()
		out, err := dec.DecodeAll(data, nil)
		if err != nil {
			return nil, fmt.Errorf("zstd decompress: %w", err)
		}
		return out, nil

	default:
		return nil, fmt.Errorf("%w: %d", ErrUnknownCompression, codec)
	}
}
