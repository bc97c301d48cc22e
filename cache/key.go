package cache

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"hash"
	"math"

	"github.com/soypat/volview"
	"gonum.org/v1/gonum/spatial/r3"
)

// Key identifies a cached artifact. A zero Digest makes a logical key.
type Key struct {
	Name   string
	Digest [32]byte
}

// LogicalKey returns a key that matches any entry stored under name,
// regardless of the inputs it was computed from.
func LogicalKey(name string) Key {
	return Key{Name: name}
}

// ContentKey returns a key whose digest is the SHA-256 of the artifact format
// version and the geometry of both input surfaces.
func ContentKey(name string, ref, target *volview.Surface) Key {
	h := sha256.New()
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], FormatVersion)
	h.Write(b[:])
	hashSurface(h, ref)
	hashSurface(h, target)
	k := Key{Name: name}
	h.Sum(k.Digest[:0])
	return k
}

// Logical reports whether k has no digest.
func (k Key) Logical() bool { return k.Digest == [32]byte{} }

// String returns the name and, for content keys, a digest prefix.
func (k Key) String() string {
	if k.Logical() {
		return k.Name
	}
	return k.Name + "@" + hex.EncodeToString(k.Digest[:6])
}

func hashSurface(h hash.Hash, s *volview.Surface) {
	if s == nil {
		s = &volview.Surface{}
	}
	var b [8]byte
	putUint := func(v uint64) {
		binary.LittleEndian.PutUint64(b[:], v)
		h.Write(b[:])
	}
	putVecs := func(vs []r3.Vec) {
		putUint(uint64(len(vs)))
		for _, v := range vs {
			putUint(math.Float64bits(v.X))
			putUint(math.Float64bits(v.Y))
			putUint(math.Float64bits(v.Z))
		}
	}
	putVecs(s.Vertices)
	putVecs(s.Normals)
	putUint(uint64(len(s.Faces)))
	for _, f := range s.Faces {
		putUint(uint64(f[0]))
		putUint(uint64(f[1]))
		putUint(uint64(f[2]))
	}
}
