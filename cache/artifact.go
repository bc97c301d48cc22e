package cache

import (
	"encoding/binary"
	"errors"
	"fmt"
	"hash/crc32"
	"math"

	"github.com/soypat/volview"
	"gonum.org/v1/gonum/spatial/r3"
)

// FormatVersion is the artifact encoding version. It is part of content key digests.
const FormatVersion = 1

const (
	artifactMagic = "VVDF"
	flagNormals   = 1 << 0
	flagScalars   = 1 << 1
	// headerSize is the fixed part of the header preceding the name bytes.
	headerSize = 4 + 2 + 2 + 32 + 2
	// countsSize covers vertex and face counts and the scalar range.
	countsSize = 4 + 4 + 8 + 8
	crcSize    = 4
)

// Artifact is a named surface with a scalar field and the field's range.
type Artifact struct {
	Name    string
	Digest  [32]byte
	Surface *volview.Surface
	Range   volview.Range
}

// MarshalBinary encodes the artifact in little endian VVDF format.
func (a *Artifact) MarshalBinary() ([]byte, error) {
	s := a.Surface
	if s == nil {
		s = &volview.Surface{}
	}
	if err := s.Validate(); err != nil {
		return nil, fmt.Errorf("encoding artifact %q: %w", a.Name, err)
	}
	if len(a.Name) > math.MaxUint16 {
		return nil, errors.New("artifact name too long")
	}
	if uint64(len(s.Vertices)) > math.MaxUint32 || uint64(len(s.Faces)) > math.MaxUint32 {
		return nil, errors.New("surface too large for artifact")
	}
	var flags uint16
	if s.Normals != nil {
		flags |= flagNormals
	}
	if s.Scalars != nil {
		flags |= flagScalars
	}
	nv, nf := len(s.Vertices), len(s.Faces)
	b := make([]byte, 0, encodedSize(len(a.Name), nv, nf, flags))
	b = append(b, artifactMagic...)
	b = binary.LittleEndian.AppendUint16(b, FormatVersion)
	b = binary.LittleEndian.AppendUint16(b, flags)
	b = append(b, a.Digest[:]...)
	b = binary.LittleEndian.AppendUint16(b, uint16(len(a.Name)))
	b = append(b, a.Name...)
	b = binary.LittleEndian.AppendUint32(b, uint32(nv))
	b = binary.LittleEndian.AppendUint32(b, uint32(nf))
	b = appendFloat(b, a.Range.Min)
	b = appendFloat(b, a.Range.Max)
	b = appendVecs(b, s.Vertices)
	b = appendVecs(b, s.Normals)
	for _, f := range s.Faces {
		for _, idx := range f {
			b = binary.LittleEndian.AppendUint32(b, uint32(idx))
		}
	}
	for _, v := range s.Scalars {
		b = appendFloat(b, v)
	}
	return binary.LittleEndian.AppendUint32(b, crc32.ChecksumIEEE(b)), nil
}

// UnmarshalArtifact decodes data produced by MarshalBinary. Every decoding
// failure wraps ErrCorrupt.
func UnmarshalArtifact(data []byte) (*Artifact, error) {
	a, err := decodeArtifact(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrCorrupt, err)
	}
	return a, nil
}

func decodeArtifact(data []byte) (*Artifact, error) {
	if len(data) < headerSize+countsSize+crcSize {
		return nil, errors.New("short artifact")
	}
	if string(data[:4]) != artifactMagic {
		return nil, errors.New("bad magic")
	}
	body, sum := data[:len(data)-crcSize], binary.LittleEndian.Uint32(data[len(data)-crcSize:])
	d := decoder{b: body[4:]}
	if v := d.uint16(); v != FormatVersion {
		return nil, fmt.Errorf("unsupported version %d", v)
	}
	if crc32.ChecksumIEEE(body) != sum {
		return nil, errors.New("checksum mismatch")
	}
	flags := d.uint16()
	if flags&^(flagNormals|flagScalars) != 0 {
		return nil, fmt.Errorf("unknown flags %#x", flags)
	}
	a := &Artifact{}
	copy(a.Digest[:], d.bytes(32))
	nameLen := int(d.uint16())
	if d.remaining() < nameLen+countsSize {
		return nil, errors.New("short header")
	}
	a.Name = string(d.bytes(nameLen))
	nv, nf := int(d.uint32()), int(d.uint32())
	if len(data) != encodedSize(nameLen, nv, nf, flags) {
		return nil, fmt.Errorf("size %d does not match %d vertices and %d faces", len(data), nv, nf)
	}
	a.Range = volview.Range{Min: d.float(), Max: d.float()}
	s := &volview.Surface{Vertices: d.vecs(nv)}
	if flags&flagNormals != 0 {
		s.Normals = d.vecs(nv)
	}
	s.Faces = make([][3]int, nf)
	for i := range s.Faces {
		for j := range s.Faces[i] {
			s.Faces[i][j] = int(d.uint32())
		}
	}
	if flags&flagScalars != 0 {
		s.Scalars = make([]float64, nv)
		for i := range s.Scalars {
			s.Scalars[i] = d.float()
		}
	}
	if nv == 0 {
		s.Vertices = nil
	}
	if nf == 0 {
		s.Faces = nil
	}
	for _, v := range s.Vertices {
		if math.IsNaN(v.X) || math.IsNaN(v.Y) || math.IsNaN(v.Z) {
			return nil, errors.New("NaN vertex")
		}
	}
	for _, n := range s.Normals {
		if math.IsNaN(n.X) || math.IsNaN(n.Y) || math.IsNaN(n.Z) {
			return nil, errors.New("NaN normal")
		}
	}
	for _, v := range s.Scalars {
		if math.IsNaN(v) {
			return nil, errors.New("NaN scalar")
		}
	}
	if math.IsNaN(a.Range.Min) || math.IsNaN(a.Range.Max) || a.Range.Min > a.Range.Max {
		return nil, fmt.Errorf("invalid range %v", a.Range)
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	if s.Scalars != nil && s.ScalarRange() != a.Range {
		return nil, fmt.Errorf("stored range %v disagrees with scalars %v", a.Range, s.ScalarRange())
	}
	a.Surface = s
	return a, nil
}

func encodedSize(nameLen, nv, nf int, flags uint16) int {
	perVertex := 3 * 8
	if flags&flagNormals != 0 {
		perVertex += 3 * 8
	}
	if flags&flagScalars != 0 {
		perVertex += 8
	}
	return headerSize + nameLen + countsSize + nv*perVertex + nf*3*4 + crcSize
}

func appendFloat(b []byte, v float64) []byte {
	return binary.LittleEndian.AppendUint64(b, math.Float64bits(v))
}

func appendVecs(b []byte, vs []r3.Vec) []byte {
	for _, v := range vs {
		b = appendFloat(b, v.X)
		b = appendFloat(b, v.Y)
		b = appendFloat(b, v.Z)
	}
	return b
}

// decoder reads little endian values from a buffer whose length has been checked.
type decoder struct {
	b   []byte
	off int
}

func (d *decoder) remaining() int { return len(d.b) - d.off }

func (d *decoder) bytes(n int) []byte {
	b := d.b[d.off : d.off+n]
	d.off += n
	return b
}

func (d *decoder) uint16() uint16 { return binary.LittleEndian.Uint16(d.bytes(2)) }
func (d *decoder) uint32() uint32 { return binary.LittleEndian.Uint32(d.bytes(4)) }
func (d *decoder) float() float64 { return math.Float64frombits(binary.LittleEndian.Uint64(d.bytes(8))) }

func (d *decoder) vecs(n int) []r3.Vec {
	vs := make([]r3.Vec, n)
	for i := range vs {
		vs[i] = r3.Vec{X: d.float(), Y: d.float(), Z: d.float()}
	}
	return vs
}
