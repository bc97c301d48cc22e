// Package slc reads and writes volumes in the SLC format: an ASCII header
// followed by a thumbnail icon and 8 bit voxel slices, optionally run length
// encoded.
package slc

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"math"
	"os"

	"github.com/soypat/volview"
	"gonum.org/v1/gonum/spatial/r3"
)

// ErrFormat is wrapped by errors describing malformed SLC data.
var ErrFormat = errors.New("slc: invalid format")

const (
	magic     = 11111
	maxVoxels = 1 << 30
)

// Compression kinds.
const (
	Raw = 0
	RLE = 1
)

// Header describes an SLC volume.
type Header struct {
	Nx, Ny, Nz   int
	BitsPerVoxel int
	Spacing      r3.Vec
	Units        int
	Source       int
	Modification int
	Compression  int
}

func formatErr(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrFormat, fmt.Sprintf(format, args...))
}

// ReadFile reads the SLC volume at path. A missing file returns an error
// wrapping fs.ErrNotExist.
func ReadFile(path string) (*volview.Grid, error) {
	fp, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer fp.Close()
	g, _, err := Read(fp)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return g, nil
}

// Read decodes an SLC volume. The grid origin is zero.
func Read(r io.Reader) (*volview.Grid, Header, error) {
	br := bufio.NewReader(r)
	var h Header
	var m int
	if _, err := fmt.Fscan(br, &m); err != nil || m != magic {
		return nil, h, formatErr("bad magic number")
	}
	if _, err := fmt.Fscan(br, &h.Nx, &h.Ny, &h.Nz, &h.BitsPerVoxel); err != nil {
		return nil, h, formatErr("reading dimensions: %v", err)
	}
	if h.Nx <= 0 || h.Ny <= 0 || h.Nz <= 0 {
		return nil, h, formatErr("invalid dimensions %dx%dx%d", h.Nx, h.Ny, h.Nz)
	}
	if uint64(h.Nx)*uint64(h.Ny)*uint64(h.Nz) > maxVoxels {
		return nil, h, formatErr("volume of %dx%dx%d voxels too large", h.Nx, h.Ny, h.Nz)
	}
	if h.BitsPerVoxel != 8 {
		return nil, h, formatErr("unsupported %d bits per voxel", h.BitsPerVoxel)
	}
	if _, err := fmt.Fscan(br, &h.Spacing.X, &h.Spacing.Y, &h.Spacing.Z); err != nil {
		return nil, h, formatErr("reading spacing: %v", err)
	}
	if _, err := fmt.Fscan(br, &h.Units, &h.Source, &h.Modification, &h.Compression); err != nil {
		return nil, h, formatErr("reading data description: %v", err)
	}
	if h.Compression != Raw && h.Compression != RLE {
		return nil, h, formatErr("unknown compression %d", h.Compression)
	}
	var iw, ih int
	if err := scanSized(br, &iw, &ih); err != nil {
		return nil, h, formatErr("reading icon size: %v", err)
	}
	if iw < 0 || ih < 0 {
		return nil, h, formatErr("invalid icon size %dx%d", iw, ih)
	}
	if _, err := br.Discard(3 * iw * ih); err != nil {
		return nil, h, formatErr("short icon data: %v", err)
	}

	sliceLen := h.Nx * h.Ny
	values := make([]float64, 0, sliceLen*h.Nz)
	raw := make([]byte, sliceLen)
	var packed []byte
	for k := 0; k < h.Nz; k++ {
		if h.Compression == Raw {
			if _, err := io.ReadFull(br, raw); err != nil {
				return nil, h, formatErr("short slice %d: %v", k, err)
			}
		} else {
			var size int
			if err := scanSized(br, &size); err != nil {
				return nil, h, formatErr("reading slice %d size: %v", k, err)
			}
			if size < 0 {
				return nil, h, formatErr("negative slice %d size", k)
			}
			if cap(packed) < size {
				packed = make([]byte, size)
			}
			packed = packed[:size]
			if _, err := io.ReadFull(br, packed); err != nil {
				return nil, h, formatErr("short slice %d: %v", k, err)
			}
			if err := decodeRLE(raw, packed); err != nil {
				return nil, h, formatErr("slice %d: %v", k, err)
			}
		}
		for _, b := range raw {
			values = append(values, float64(b))
		}
	}
	g, err := volview.NewGrid(h.Nx, h.Ny, h.Nz, h.Spacing, r3.Vec{}, values)
	if err != nil {
		return nil, h, formatErr("%v", err)
	}
	return g, h, nil
}

// scanSized scans integers followed by the "X" marker and the single byte
// separating the marker from binary data.
func scanSized(br *bufio.Reader, ints ...*int) error {
	for _, p := range ints {
		if _, err := fmt.Fscan(br, p); err != nil {
			return err
		}
	}
	var marker string
	if _, err := fmt.Fscan(br, &marker); err != nil {
		return err
	}
	if marker != "X" {
		return fmt.Errorf("expected X marker, got %q", marker)
	}
	_, err := br.ReadByte()
	return err
}

// decodeRLE expands packed into dst. A code byte with the high bit set is
// followed by a literal run of its low 7 bits worth of bytes, otherwise by a
// single byte repeated that many times. A zero count terminates the data.
func decodeRLE(dst, packed []byte) error {
	n := 0
	for i := 0; ; {
		if i >= len(packed) {
			return errors.New("unterminated run length data")
		}
		code := packed[i]
		i++
		count := int(code & 0x7f)
		if count == 0 {
			break
		}
		if n+count > len(dst) {
			return errors.New("run length data overflows slice")
		}
		if code&0x80 != 0 {
			if i+count > len(packed) {
				return errors.New("short literal run")
			}
			copy(dst[n:], packed[i:i+count])
			i += count
		} else {
			if i >= len(packed) {
				return errors.New("short repeat run")
			}
			for j := 0; j < count; j++ {
				dst[n+j] = packed[i]
			}
			i++
		}
		n += count
	}
	if n != len(dst) {
		return fmt.Errorf("decoded %d of %d slice bytes", n, len(dst))
	}
	return nil
}

// encodeRLE appends the run length encoding of src to dst, terminator included.
func encodeRLE(dst, src []byte) []byte {
	const maxRun = 0x7f
	for i := 0; i < len(src); {
		run := 1
		for i+run < len(src) && run < maxRun && src[i+run] == src[i] {
			run++
		}
		if run >= 3 {
			dst = append(dst, byte(run), src[i])
			i += run
			continue
		}
		// Literal run until the next repeat of three or more.
		start := i
		for i < len(src) && i-start < maxRun {
			if i+2 < len(src) && src[i] == src[i+1] && src[i] == src[i+2] {
				break
			}
			i++
		}
		dst = append(dst, 0x80|byte(i-start))
		dst = append(dst, src[start:i]...)
	}
	return append(dst, 0)
}

// Write encodes g as an 8 bit SLC volume with the given compression. Samples
// are rounded and must lie in [0,255].
func Write(w io.Writer, g *volview.Grid, compression int) error {
	if compression != Raw && compression != RLE {
		return fmt.Errorf("unknown compression %d", compression)
	}
	lo, hi := g.Range()
	if lo < 0 || hi > 255 {
		return fmt.Errorf("samples in [%g,%g] do not fit 8 bits", lo, hi)
	}
	nx, ny, nz := g.Dims()
	sp := g.Spacing()
	bw := bufio.NewWriter(w)
	fmt.Fprintf(bw, "%d\n%d %d %d %d\n", magic, nx, ny, nz, 8)
	fmt.Fprintf(bw, "%g %g %g\n", sp.X, sp.Y, sp.Z)
	// Units, source and modification are recorded as zero. No icon.
	fmt.Fprintf(bw, "0 0 0 %d\n0 0 X\n", compression)
	slice := make([]byte, nx*ny)
	var packed []byte
	for k := 0; k < nz; k++ {
		for j := 0; j < ny; j++ {
			for i := 0; i < nx; i++ {
				slice[i+nx*j] = byte(math.Round(g.At(i, j, k)))
			}
		}
		if compression == Raw {
			bw.Write(slice)
			continue
		}
		packed = encodeRLE(packed[:0], slice)
		fmt.Fprintf(bw, "%d X\n", len(packed))
		bw.Write(packed)
	}
	return bw.Flush()
}
