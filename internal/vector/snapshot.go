package vector

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"hash/crc32"
	"io"
	"math"
	"os"
	"path/filepath"
)

// Snapshot layout, little endian:
//
//	magic "CVIX" | version u16 | dims u32 | count u32
//	count x (idLen u16 | id | dims x f32)
//	crc32 (IEEE) of everything above
const (
	snapshotMagic   = "CVIX"
	snapshotVersion = uint16(1)
	maxIDLen        = math.MaxUint16
)

// ErrCorruptSnapshot is returned when a snapshot fails its checksum or is truncated.
var ErrCorruptSnapshot = errors.New("corrupt vector snapshot")

// Save writes a snapshot of the index to path, replacing any existing file atomically.
// An empty path is a no-op.
func (m *MemoryIndex) Save(path string) error {
	if path == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create snapshot dir: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".vectors-*")
	if err != nil {
		return fmt.Errorf("create snapshot: %w", err)
	}
	defer os.Remove(tmp.Name())

	m.mu.RLock()
	err = m.encode(tmp)
	m.mu.RUnlock()
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return fmt.Errorf("write snapshot: %w", err)
	}
	return os.Rename(tmp.Name(), path)
}

func (m *MemoryIndex) encode(out io.Writer) error {
	sum := crc32.NewIEEE()
	w := bufio.NewWriter(io.MultiWriter(out, sum))
	put := func(v any) error { return binary.Write(w, binary.LittleEndian, v) }

	if _, err := w.WriteString(snapshotMagic); err != nil {
		return err
	}
	for _, v := range []any{snapshotVersion, uint32(m.dims), uint32(len(m.entries))} {
		if err := put(v); err != nil {
			return err
		}
	}
	for _, e := range m.entries {
		if len(e.id) > maxIDLen {
			return fmt.Errorf("id %.32q... longer than %d bytes", e.id, maxIDLen)
		}
		if err := put(uint16(len(e.id))); err != nil {
			return err
		}
		if _, err := w.WriteString(e.id); err != nil {
			return err
		}
		if err := put(e.vec); err != nil {
			return err
		}
	}
	if err := w.Flush(); err != nil {
		return err
	}
	return binary.Write(out, binary.LittleEndian, sum.Sum32())
}

// Load replaces the index contents with the snapshot at path. A missing file or an
// empty path leaves the index unchanged. The snapshot dimension must match the index.
func (m *MemoryIndex) Load(path string) error {
	if path == "" {
		return nil
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read snapshot: %w", err)
	}
	entries, err := m.decode(data)
	if err != nil {
		return fmt.Errorf("load %s: %w", path, err)
	}
	m.mu.Lock()
	m.replace(entries)
	m.mu.Unlock()
	return nil
}

func (m *MemoryIndex) decode(data []byte) ([]entry, error) {
	if len(data) < len(snapshotMagic)+2+4+4+4 {
		return nil, ErrCorruptSnapshot
	}
	body, tail := data[:len(data)-4], data[len(data)-4:]
	if crc32.ChecksumIEEE(body) != binary.LittleEndian.Uint32(tail) {
		return nil, fmt.Errorf("%w: checksum mismatch", ErrCorruptSnapshot)
	}
	if string(body[:len(snapshotMagic)]) != snapshotMagic {
		return nil, fmt.Errorf("%w: bad magic", ErrCorruptSnapshot)
	}
	r := bytes.NewReader(body[len(snapshotMagic):])
	var hdr struct {
		Version uint16
		Dims    uint32
		Count   uint32
	}
	if err := binary.Read(r, binary.LittleEndian, &hdr); err != nil {
		return nil, fmt.Errorf("%w: header: %v", ErrCorruptSnapshot, err)
	}
	if hdr.Version != snapshotVersion {
		return nil, fmt.Errorf("unsupported snapshot version %d", hdr.Version)
	}
	if err := m.check(int(hdr.Dims)); err != nil {
		return nil, err
	}

	entries := make([]entry, 0, hdr.Count)
	for i := uint32(0); i < hdr.Count; i++ {
		var idLen uint16
		if err := binary.Read(r, binary.LittleEndian, &idLen); err != nil {
			return nil, fmt.Errorf("%w: entry %d: %v", ErrCorruptSnapshot, i, err)
		}
		id := make([]byte, idLen)
		if _, err := io.ReadFull(r, id); err != nil {
			return nil, fmt.Errorf("%w: entry %d: %v", ErrCorruptSnapshot, i, err)
		}
		vec := make([]float32, m.dims)
		if err := binary.Read(r, binary.LittleEndian, vec); err != nil {
			return nil, fmt.Errorf("%w: entry %d: %v", ErrCorruptSnapshot, i, err)
		}
		entries = append(entries, entry{id: string(id), vec: vec})
	}
	if r.Len() != 0 {
		return nil, fmt.Errorf("%w: %d trailing bytes", ErrCorruptSnapshot, r.Len())
	}
	return entries, nil
}
