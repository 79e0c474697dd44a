package vectorcache

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"math"
	"os"
	"path/filepath"
	"time"

	"go.etcd.io/bbolt"

	"github.com/dshills/semlaunch/pkg/types"
)

// On-disk layout of a forest file (bbolt):
//
//	meta:    version, dim, seed, count, trees -> uint64 big endian
//	vectors: item index -> id (int64 LE) followed by dim float32 LE
//	nodes:   node index -> encoded node
//	roots:   tree index -> root node index
var (
	bucketMeta    = []byte("meta")
	bucketVectors = []byte("vectors")
	bucketNodes   = []byte("nodes")
	bucketRoots   = []byte("roots")
)

const formatVersion = 1

const (
	nodeLeaf  byte = 0
	nodeSplit byte = 1
)

// SaveForest writes f to path, replacing any existing file. The file is
// written next to path and renamed into place so readers never see a
// partial index.
func SaveForest(path string, f *Forest) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	tmp := path + ".tmp"
	_ = os.Remove(tmp)

	db, err := bbolt.Open(tmp, 0o600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return fmt.Errorf("open %s: %w", tmp, err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		meta, err := tx.CreateBucket(bucketMeta)
		if err != nil {
			return err
		}
		for k, v := range map[string]uint64{
			"version": formatVersion,
			"dim":     uint64(f.dim),
			"seed":    f.seed,
			"count":   uint64(len(f.ids)),
			"trees":   uint64(len(f.roots)),
		} {
			if err := meta.Put([]byte(k), u64(v)); err != nil {
				return err
			}
		}

		vb, err := tx.CreateBucket(bucketVectors)
		if err != nil {
			return err
		}
		for i := range f.ids {
			if err := vb.Put(u64(uint64(i)), encodeVector(f.ids[i], f.vectors[i])); err != nil {
				return err
			}
		}

		nb, err := tx.CreateBucket(bucketNodes)
		if err != nil {
			return err
		}
		for i := range f.nodes {
			if err := nb.Put(u64(uint64(i)), encodeNode(&f.nodes[i])); err != nil {
				return err
			}
		}

		rb, err := tx.CreateBucket(bucketRoots)
		if err != nil {
			return err
		}
		for i, r := range f.roots {
			if err := rb.Put(u64(uint64(i)), u64(uint64(r))); err != nil {
				return err
			}
		}
		return nil
	})
	if cerr := db.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("write forest: %w", err)
	}
	return os.Rename(tmp, path)
}

// LoadForest reads a forest file into memory. A missing file returns an
// error wrapping fs.ErrNotExist. Vectors of any width other than dim are
// rejected with ErrDimension.
func LoadForest(path string, dim int) (*Forest, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, err
	}

	db, err := bbolt.Open(path, 0o400, &bbolt.Options{ReadOnly: true, Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("open forest %s: %w", path, err)
	}
	defer func() { _ = db.Close() }()

	f := &Forest{}
	err = db.View(func(tx *bbolt.Tx) error {
		meta := tx.Bucket(bucketMeta)
		if meta == nil {
			return fmt.Errorf("%w: missing meta bucket", ErrCorruptIndex)
		}
		if v := getU64(meta, "version"); v != formatVersion {
			return fmt.Errorf("%w: unsupported version %d", ErrCorruptIndex, v)
		}
		f.dim = int(getU64(meta, "dim"))
		f.seed = getU64(meta, "seed")
		if f.dim != dim {
			return fmt.Errorf("%w: index has %d, want %d", ErrDimension, f.dim, dim)
		}
		count := int(getU64(meta, "count"))

		vb, nb, rb := tx.Bucket(bucketVectors), tx.Bucket(bucketNodes), tx.Bucket(bucketRoots)
		if vb == nil || nb == nil || rb == nil {
			return fmt.Errorf("%w: missing bucket", ErrCorruptIndex)
		}

		f.ids = make([]types.ID, 0, count)
		f.vectors = make([][]float32, 0, count)
		if err := vb.ForEach(func(_, v []byte) error {
			id, vec, err := decodeVector(v, f.dim)
			if err != nil {
				return err
			}
			f.ids = append(f.ids, id)
			f.vectors = append(f.vectors, vec)
			return nil
		}); err != nil {
			return err
		}
		if len(f.ids) != count {
			return fmt.Errorf("%w: %d vectors, meta says %d", ErrCorruptIndex, len(f.ids), count)
		}

		if err := nb.ForEach(func(_, v []byte) error {
			n, err := decodeNode(v, f.dim)
			if err != nil {
				return err
			}
			f.nodes = append(f.nodes, n)
			return nil
		}); err != nil {
			return err
		}

		return rb.ForEach(func(_, v []byte) error {
			if len(v) != 8 {
				return fmt.Errorf("%w: bad root entry", ErrCorruptIndex)
			}
			r := binary.BigEndian.Uint64(v)
			if r >= uint64(len(f.nodes)) {
				return fmt.Errorf("%w: root %d out of range", ErrCorruptIndex, r)
			}
			f.roots = append(f.roots, int32(r))
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	if err := f.validate(); err != nil {
		return nil, err
	}
	return f, nil
}

// validate checks that every child and item reference is in range, so a
// damaged file fails at load rather than during a query.
func (f *Forest) validate() error {
	for i := range f.nodes {
		n := &f.nodes[i]
		if n.leaf() {
			for _, it := range n.items {
				if it < 0 || int(it) >= len(f.ids) {
					return fmt.Errorf("%w: item %d out of range", ErrCorruptIndex, it)
				}
			}
			continue
		}
		if n.left < 0 || int(n.left) >= len(f.nodes) || n.right < 0 || int(n.right) >= len(f.nodes) {
			return fmt.Errorf("%w: node %d has bad children", ErrCorruptIndex, i)
		}
	}
	return nil
}

// IsNotExist reports whether err means the forest file is absent.
func IsNotExist(err error) bool {
	return errors.Is(err, fs.ErrNotExist)
}

func u64(v uint64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, v)
	return b
}

func getU64(b *bbolt.Bucket, key string) uint64 {
	v := b.Get([]byte(key))
	if len(v) != 8 {
		return 0
	}
	return binary.BigEndian.Uint64(v)
}

func encodeVector(id types.ID, v []float32) []byte {
	buf := make([]byte, 8+4*len(v))
	binary.LittleEndian.PutUint64(buf, uint64(id))
	for i, x := range v {
		binary.LittleEndian.PutUint32(buf[8+4*i:], math.Float32bits(x))
	}
	return buf
}

func decodeVector(b []byte, dim int) (types.ID, []float32, error) {
	if len(b) != 8+4*dim {
		return 0, nil, fmt.Errorf("%w: vector entry of %d bytes", ErrCorruptIndex, len(b))
	}
	id := types.ID(int64(binary.LittleEndian.Uint64(b)))
	v := make([]float32, dim)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[8+4*i:]))
	}
	return id, v, nil
}

func encodeNode(n *forestNode) []byte {
	var buf bytes.Buffer
	if n.leaf() {
		buf.WriteByte(nodeLeaf)
		_ = binary.Write(&buf, binary.LittleEndian, uint32(len(n.items)))
		_ = binary.Write(&buf, binary.LittleEndian, n.items)
		return buf.Bytes()
	}
	buf.WriteByte(nodeSplit)
	_ = binary.Write(&buf, binary.LittleEndian, n.left)
	_ = binary.Write(&buf, binary.LittleEndian, n.right)
	_ = binary.Write(&buf, binary.LittleEndian, n.offset)
	_ = binary.Write(&buf, binary.LittleEndian, n.normal)
	return buf.Bytes()
}

func decodeNode(b []byte, dim int) (forestNode, error) {
	var n forestNode
	r := bytes.NewReader(b)
	kind, err := r.ReadByte()
	if err != nil {
		return n, fmt.Errorf("%w: empty node", ErrCorruptIndex)
	}

	switch kind {
	case nodeLeaf:
		var count uint32
		if err := binary.Read(r, binary.LittleEndian, &count); err != nil {
			return n, fmt.Errorf("%w: %v", ErrCorruptIndex, err)
		}
		if int(count)*4 != r.Len() {
			return n, fmt.Errorf("%w: leaf size mismatch", ErrCorruptIndex)
		}
		n.items = make([]int32, count)
		err = binary.Read(r, binary.LittleEndian, n.items)
	case nodeSplit:
		n.normal = make([]float32, dim)
		if err = binary.Read(r, binary.LittleEndian, &n.left); err == nil {
			if err = binary.Read(r, binary.LittleEndian, &n.right); err == nil {
				if err = binary.Read(r, binary.LittleEndian, &n.offset); err == nil {
					err = binary.Read(r, binary.LittleEndian, n.normal)
				}
			}
		}
	default:
		return n, fmt.Errorf("%w: unknown node kind %d", ErrCorruptIndex, kind)
	}
	if err != nil && err != io.EOF {
		return n, fmt.Errorf("%w: %v", ErrCorruptIndex, err)
	}
	if err == io.EOF || r.Len() != 0 {
		return n, fmt.Errorf("%w: node size mismatch", ErrCorruptIndex)
	}
	return n, nil
}
