package memory

import (
	"fmt"
	"io"
	"os"

	"github.com/fxamacker/cbor/v2"
)

// snapshotFormatVersion is bumped on incompatible changes to the file layout.
const snapshotFormatVersion = 1

// StackFrame records the frame base of one active function in a snapshot.
type StackFrame struct {
	Function string  `cbor:"1,keyasint"`
	Base     Address `cbor:"2,keyasint"`
}

// SnapshotFile is the persisted form of a stopped target: its memory plus
// the frames that were active when it was captured (innermost first).
type SnapshotFile struct {
	Snapshot *Snapshot
	Frames   []StackFrame
}

type fileRegion struct {
	Base     uint64 `cbor:"1,keyasint"`
	Kind     string `cbor:"2,keyasint"`
	Readable bool   `cbor:"3,keyasint"`
	Data     []byte `cbor:"4,keyasint"`
}

type fileSnapshot struct {
	Version         int          `cbor:"1,keyasint"`
	PtrSize         int          `cbor:"2,keyasint"`
	BigEndian       bool         `cbor:"3,keyasint"`
	StrictAlignment bool         `cbor:"4,keyasint,omitempty"`
	Regions         []fileRegion `cbor:"5,keyasint"`
	Frames          []StackFrame `cbor:"6,keyasint,omitempty"`
}

var encMode = mustEncMode()

func mustEncMode() cbor.EncMode {
	em, err := cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic(err)
	}
	return em
}

// WriteSnapshot encodes f as deterministic CBOR.
func WriteSnapshot(w io.Writer, f *SnapshotFile) error {
	s := f.Snapshot
	out := fileSnapshot{
		Version:         snapshotFormatVersion,
		PtrSize:         s.PtrSize,
		BigEndian:       s.BigEndian,
		StrictAlignment: s.StrictAlignment,
		Frames:          f.Frames,
	}
	for _, r := range s.Regions() {
		out.Regions = append(out.Regions, fileRegion{
			Base:     uint64(r.Base),
			Kind:     r.Kind.String(),
			Readable: r.Readable,
			Data:     r.Data,
		})
	}

	if err := encMode.NewEncoder(w).Encode(out); err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	return nil
}

// ReadSnapshot decodes a snapshot written by WriteSnapshot.
func ReadSnapshot(r io.Reader) (*SnapshotFile, error) {
	var in fileSnapshot
	if err := cbor.NewDecoder(r).Decode(&in); err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}
	if in.Version != snapshotFormatVersion {
		return nil, fmt.Errorf("decode snapshot: unsupported version %d", in.Version)
	}
	if in.PtrSize != 4 && in.PtrSize != 8 {
		return nil, fmt.Errorf("decode snapshot: invalid pointer size %d", in.PtrSize)
	}

	s := &Snapshot{
		PtrSize:         in.PtrSize,
		BigEndian:       in.BigEndian,
		StrictAlignment: in.StrictAlignment,
	}
	for _, fr := range in.Regions {
		kind, err := ParseRegionKind(fr.Kind)
		if err != nil {
			return nil, fmt.Errorf("decode snapshot: %w", err)
		}
		if _, err := s.MapRegion(&Region{
			Base:     Address(fr.Base),
			Data:     fr.Data,
			Kind:     kind,
			Readable: fr.Readable,
		}); err != nil {
			return nil, fmt.Errorf("decode snapshot: %w", err)
		}
	}
	return &SnapshotFile{Snapshot: s, Frames: in.Frames}, nil
}

// LoadSnapshotFile reads a snapshot from path.
func LoadSnapshotFile(path string) (*SnapshotFile, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open snapshot: %w", err)
	}
	defer f.Close()
	return ReadSnapshot(f)
}

// SaveSnapshotFile writes a snapshot to path.
func SaveSnapshotFile(path string, sf *SnapshotFile) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create snapshot: %w", err)
	}
	if err := WriteSnapshot(f, sf); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
