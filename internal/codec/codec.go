// Package codec implements the binary persistence format: a little-endian
// stream carrying the vector store followed by the tagged active index.
//
//	magic   4 bytes  "VGDB"
//	version u32      1
//	dim     u32
//	count   u64
//	data    count*dim*f32 row-major
//	kind    u8       0=flat 1=ivf 2=annoy
//	body    kind-specific payload
package codec

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"vegamdb/internal/index"
	"vegamdb/internal/store"
	pkgerrors "vegamdb/pkg/errors"
)

var magic = [4]byte{'V', 'G', 'D', 'B'}

const version = 1

// Node tags in the Annoy tree stream.
const (
	tagLeaf  = 0x00
	tagInner = 0x01
)

// Snapshot is everything a database file round-trips: the store plus the
// active index strategy and, when built, its trained structure.
type Snapshot struct {
	Store *store.Store
	Kind  index.Kind
	IVF   *index.IVF
	Annoy *index.Forest
}

// Save writes the snapshot atomically: the stream goes to a temp file in the
// target directory, is fsynced, then renamed over the destination.
func Save(path string, snap *Snapshot) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	w := bufio.NewWriter(tmp)
	if err := encode(w, snap); err != nil {
		tmp.Close()
		return err
	}
	if err := w.Flush(); err != nil {
		tmp.Close()
		return fmt.Errorf("flush: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("rename: %w", err)
	}
	return nil
}

// Load reads and validates a snapshot. Format violations surface as
// ErrCorruptIndex; filesystem failures surface as-is.
func Load(path string) (*Snapshot, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	fi, err := f.Stat()
	if err != nil {
		return nil, err
	}
	d := &decoder{r: bufio.NewReader(f), remaining: fi.Size()}
	snap, err := d.decode()
	if err != nil {
		return nil, err
	}
	// The payload must end exactly where the file does.
	if _, err := d.r.ReadByte(); err != io.EOF {
		return nil, fmt.Errorf("%w: trailing bytes after payload", pkgerrors.ErrCorruptIndex)
	}
	return snap, nil
}

func encode(w io.Writer, snap *Snapshot) error {
	if _, err := w.Write(magic[:]); err != nil {
		return err
	}
	dim := snap.Store.Dimension()
	count := snap.Store.Size()
	hdr := []interface{}{uint32(version), uint32(dim), uint64(count)}
	for _, v := range hdr {
		if err := binary.Write(w, binary.LittleEndian, v); err != nil {
			return err
		}
	}
	if err := binary.Write(w, binary.LittleEndian, snap.Store.Raw()); err != nil {
		return err
	}
	if err := binary.Write(w, binary.LittleEndian, uint8(snap.Kind)); err != nil {
		return err
	}
	switch snap.Kind {
	case index.KindFlat:
		return nil
	case index.KindIVF:
		return encodeIVF(w, snap.IVF)
	case index.KindAnnoy:
		return encodeAnnoy(w, snap.Annoy)
	default:
		return fmt.Errorf("%w: unknown index kind %d", pkgerrors.ErrCorruptIndex, snap.Kind)
	}
}

func encodeIVF(w io.Writer, ivf *index.IVF) error {
	hdr := []interface{}{
		uint32(ivf.Config.NClusters),
		uint32(ivf.Config.MaxIters),
		uint32(ivf.Config.NProbe),
	}
	for _, v := range hdr {
		if err := binary.Write(w, binary.LittleEndian, v); err != nil {
			return err
		}
	}
	for _, c := range ivf.Centroids {
		if err := binary.Write(w, binary.LittleEndian, c); err != nil {
			return err
		}
	}
	for _, list := range ivf.Lists {
		if err := binary.Write(w, binary.LittleEndian, uint32(len(list))); err != nil {
			return err
		}
		if err := binary.Write(w, binary.LittleEndian, list); err != nil {
			return err
		}
	}
	return nil
}

func encodeAnnoy(w io.Writer, f *index.Forest) error {
	hdr := []interface{}{
		uint32(f.Config.NumTrees),
		uint32(f.Config.KLeaf),
		boolByte(f.Config.UsePriorityQueue),
	}
	for _, v := range hdr {
		if err := binary.Write(w, binary.LittleEndian, v); err != nil {
			return err
		}
	}
	for _, root := range f.Trees {
		if err := encodeNode(w, root); err != nil {
			return err
		}
	}
	return nil
}

func encodeNode(w io.Writer, n *index.Node) error {
	if n.Leaf() {
		if err := binary.Write(w, binary.LittleEndian, uint8(tagLeaf)); err != nil {
			return err
		}
		if err := binary.Write(w, binary.LittleEndian, uint32(len(n.IDs))); err != nil {
			return err
		}
		return binary.Write(w, binary.LittleEndian, n.IDs)
	}
	if err := binary.Write(w, binary.LittleEndian, uint8(tagInner)); err != nil {
		return err
	}
	if err := binary.Write(w, binary.LittleEndian, n.Normal); err != nil {
		return err
	}
	if err := binary.Write(w, binary.LittleEndian, n.Offset); err != nil {
		return err
	}
	if err := encodeNode(w, n.Left); err != nil {
		return err
	}
	return encodeNode(w, n.Right)
}

func boolByte(b bool) uint8 {
	if b {
		return 1
	}
	return 0
}

// decoder tracks how many bytes the file can still supply so that corrupt
// length fields fail validation before any oversized allocation.
type decoder struct {
	r         *bufio.Reader
	remaining int64
}

func (d *decoder) read(v interface{}) error {
	size := int64(binary.Size(v))
	if size < 0 || size > d.remaining {
		return fmt.Errorf("%w: truncated payload", pkgerrors.ErrCorruptIndex)
	}
	if err := binary.Read(d.r, binary.LittleEndian, v); err != nil {
		return fmt.Errorf("%w: %v", pkgerrors.ErrCorruptIndex, err)
	}
	d.remaining -= size
	return nil
}

// checkLen validates that a length field could still fit in the file before
// the corresponding slice is allocated.
func (d *decoder) checkLen(elems, elemSize int64) error {
	if elems < 0 || elems*elemSize > d.remaining {
		return fmt.Errorf("%w: length field exceeds payload", pkgerrors.ErrCorruptIndex)
	}
	return nil
}

func (d *decoder) decode() (*Snapshot, error) {
	var m [4]byte
	if err := d.read(&m); err != nil {
		return nil, err
	}
	if m != magic {
		return nil, fmt.Errorf("%w: bad magic %q", pkgerrors.ErrCorruptIndex, m[:])
	}
	var ver, dim uint32
	var count uint64
	if err := d.read(&ver); err != nil {
		return nil, err
	}
	if ver != version {
		return nil, fmt.Errorf("%w: unsupported version %d", pkgerrors.ErrCorruptIndex, ver)
	}
	if err := d.read(&dim); err != nil {
		return nil, err
	}
	if err := d.read(&count); err != nil {
		return nil, err
	}
	if count > 0 && dim == 0 {
		return nil, fmt.Errorf("%w: zero dimension with %d vectors", pkgerrors.ErrCorruptIndex, count)
	}
	if err := d.checkLen(int64(count)*int64(dim), 4); err != nil {
		return nil, err
	}
	data := make([]float32, int(count)*int(dim))
	if len(data) > 0 {
		if err := d.read(data); err != nil {
			return nil, err
		}
	}
	snap := &Snapshot{Store: store.FromRaw(int(dim), data)}

	var kind uint8
	if err := d.read(&kind); err != nil {
		return nil, err
	}
	snap.Kind = index.Kind(kind)
	switch snap.Kind {
	case index.KindFlat:
		return snap, nil
	case index.KindIVF:
		ivf, err := d.decodeIVF(int(dim))
		if err != nil {
			return nil, err
		}
		snap.IVF = ivf
		return snap, nil
	case index.KindAnnoy:
		forest, err := d.decodeAnnoy(int(dim))
		if err != nil {
			return nil, err
		}
		snap.Annoy = forest
		return snap, nil
	default:
		return nil, fmt.Errorf("%w: unknown index kind %d", pkgerrors.ErrCorruptIndex, kind)
	}
}

func (d *decoder) decodeIVF(dim int) (*index.IVF, error) {
	var nClusters, maxIters, nProbe uint32
	if err := d.read(&nClusters); err != nil {
		return nil, err
	}
	if err := d.read(&maxIters); err != nil {
		return nil, err
	}
	if err := d.read(&nProbe); err != nil {
		return nil, err
	}
	if err := d.checkLen(int64(nClusters)*int64(dim), 4); err != nil {
		return nil, err
	}
	ivf := &index.IVF{
		Config: index.IVFConfig{
			NClusters: int(nClusters),
			MaxIters:  int(maxIters),
			NProbe:    int(nProbe),
		},
		Centroids: make([][]float32, nClusters),
		Lists:     make([][]uint32, nClusters),
	}
	for i := range ivf.Centroids {
		c := make([]float32, dim)
		if err := d.read(c); err != nil {
			return nil, err
		}
		ivf.Centroids[i] = c
	}
	for i := range ivf.Lists {
		var n uint32
		if err := d.read(&n); err != nil {
			return nil, err
		}
		if err := d.checkLen(int64(n), 4); err != nil {
			return nil, err
		}
		list := make([]uint32, n)
		if n > 0 {
			if err := d.read(list); err != nil {
				return nil, err
			}
		}
		ivf.Lists[i] = list
	}
	return ivf, nil
}

func (d *decoder) decodeAnnoy(dim int) (*index.Forest, error) {
	var numTrees, kLeaf uint32
	var usePQ uint8
	if err := d.read(&numTrees); err != nil {
		return nil, err
	}
	if err := d.read(&kLeaf); err != nil {
		return nil, err
	}
	if err := d.read(&usePQ); err != nil {
		return nil, err
	}
	f := &index.Forest{
		Config: index.AnnoyConfig{
			NumTrees:         int(numTrees),
			KLeaf:            int(kLeaf),
			UsePriorityQueue: usePQ != 0,
		},
		Trees: make([]*index.Node, numTrees),
	}
	for i := range f.Trees {
		n, err := d.decodeNode(dim)
		if err != nil {
			return nil, err
		}
		f.Trees[i] = n
	}
	return f, nil
}

func (d *decoder) decodeNode(dim int) (*index.Node, error) {
	var tag uint8
	if err := d.read(&tag); err != nil {
		return nil, err
	}
	switch tag {
	case tagLeaf:
		var n uint32
		if err := d.read(&n); err != nil {
			return nil, err
		}
		if err := d.checkLen(int64(n), 4); err != nil {
			return nil, err
		}
		ids := make([]uint32, n)
		if n > 0 {
			if err := d.read(ids); err != nil {
				return nil, err
			}
		}
		return &index.Node{IDs: ids}, nil
	case tagInner:
		normal := make([]float32, dim)
		if err := d.read(normal); err != nil {
			return nil, err
		}
		var offset float32
		if err := d.read(&offset); err != nil {
			return nil, err
		}
		left, err := d.decodeNode(dim)
		if err != nil {
			return nil, err
		}
		right, err := d.decodeNode(dim)
		if err != nil {
			return nil, err
		}
		return &index.Node{Normal: normal, Offset: offset, Left: left, Right: right}, nil
	default:
		return nil, fmt.Errorf("%w: unknown node tag 0x%02x", pkgerrors.ErrCorruptIndex, tag)
	}
}
