// Package npy reads and writes the subset of the NumPy .npy format used for
// face sample storage: C-ordered uint8 arrays of any rank and 1-d integer arrays.
package npy

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

const (
	DescrUint8 = "|u1"
	DescrInt64 = "<i8"
)

var magic = []byte("\x93NUMPY")

var (
	ErrBadMagic    = errors.New("npy: bad magic")
	ErrBadHeader   = errors.New("npy: malformed header")
	ErrUnsupported = errors.New("npy: unsupported array")
)

// Array is a decoded array: its dtype descriptor, shape and raw little-endian data.
type Array struct {
	Descr string
	Shape []int
	Data  []byte
}

// Len is the product of the shape, i.e. the element count.
func (a *Array) Len() int {
	n := 1
	for _, s := range a.Shape {
		n *= s
	}
	return n
}

// Ints decodes integer data of any supported width.
func (a *Array) Ints() ([]int, error) {
	size, signed, ok := intKind(a.Descr)
	if !ok {
		return nil, errors.Wrapf(ErrUnsupported, "descr %q is not an integer type", a.Descr)
	}

	n := a.Len()
	if len(a.Data) != n*size {
		return nil, errors.Wrapf(ErrBadHeader, "have %d bytes for %d elements", len(a.Data), n)
	}

	out := make([]int, n)
	for i := range out {
		b := a.Data[i*size : (i+1)*size]
		switch {
		case size == 1 && signed:
			out[i] = int(int8(b[0]))
		case size == 1:
			out[i] = int(b[0])
		case size == 2 && signed:
			out[i] = int(int16(binary.LittleEndian.Uint16(b)))
		case size == 2:
			out[i] = int(binary.LittleEndian.Uint16(b))
		case size == 4 && signed:
			out[i] = int(int32(binary.LittleEndian.Uint32(b)))
		case size == 4:
			out[i] = int(binary.LittleEndian.Uint32(b))
		case signed:
			out[i] = int(int64(binary.LittleEndian.Uint64(b)))
		default:
			out[i] = int(binary.LittleEndian.Uint64(b))
		}
	}

	return out, nil
}

func intKind(descr string) (size int, signed bool, ok bool) {
	switch descr {
	case "|i1", "i1":
		return 1, true, true
	case "|u1", "u1":
		return 1, false, true
	case "<i2":
		return 2, true, true
	case "<u2":
		return 2, false, true
	case "<i4":
		return 4, true, true
	case "<u4":
		return 4, false, true
	case "<i8":
		return 8, true, true
	case "<u8":
		return 8, false, true
	}
	return 0, false, false
}

// WriteUint8 writes data as a |u1 array with the given shape.
func WriteUint8(w io.Writer, shape []int, data []byte) error {
	a := &Array{Descr: DescrUint8, Shape: shape, Data: data}
	if a.Len() != len(data) {
		return errors.Errorf("npy: shape %v does not match %d bytes", shape, len(data))
	}
	return write(w, a)
}

// WriteInt64 writes values as a 1-d <i8 array.
func WriteInt64(w io.Writer, values []int) error {
	data := make([]byte, 8*len(values))
	for i, v := range values {
		binary.LittleEndian.PutUint64(data[i*8:], uint64(int64(v)))
	}
	return write(w, &Array{Descr: DescrInt64, Shape: []int{len(values)}, Data: data})
}

func write(w io.Writer, a *Array) error {
	dict := fmt.Sprintf("{'descr': '%s', 'fortran_order': False, 'shape': %s, }", a.Descr, shapeString(a.Shape))

	// magic(6) + version(2) + length(2) + dict + padding + '\n' is a multiple of 64.
	total := len(magic) + 2 + 2 + len(dict) + 1
	pad := (64 - total%64) % 64
	header := dict + strings.Repeat(" ", pad) + "\n"

	bw := bufio.NewWriter(w)

	bw.Write(magic)
	bw.Write([]byte{1, 0})

	var hl [2]byte
	binary.LittleEndian.PutUint16(hl[:], uint16(len(header)))
	bw.Write(hl[:])
	bw.WriteString(header)
	bw.Write(a.Data)

	return errors.Wrap(bw.Flush(), "npy: write")
}

func shapeString(shape []int) string {
	parts := make([]string, len(shape))
	for i, s := range shape {
		parts[i] = strconv.Itoa(s)
	}

	switch len(parts) {
	case 0:
		return "()"
	case 1:
		return "(" + parts[0] + ",)"
	default:
		return "(" + strings.Join(parts, ", ") + ")"
	}
}

var (
	descrRe   = regexp.MustCompile(`'descr'\s*:\s*'([^']+)'`)
	fortranRe = regexp.MustCompile(`'fortran_order'\s*:\s*(True|False)`)
	shapeRe   = regexp.MustCompile(`'shape'\s*:\s*\(([^)]*)\)`)
)

// Read decodes a whole .npy stream.
func Read(r io.Reader) (*Array, error) {
	var pre [8]byte
	if _, err := io.ReadFull(r, pre[:]); err != nil {
		return nil, errors.Wrap(err, "npy: read preamble")
	}

	if !bytes.Equal(pre[:6], magic) {
		return nil, ErrBadMagic
	}

	var headerLen int
	switch pre[6] {
	case 1:
		var b [2]byte
		if _, err := io.ReadFull(r, b[:]); err != nil {
			return nil, errors.Wrap(err, "npy: read header length")
		}
		headerLen = int(binary.LittleEndian.Uint16(b[:]))
	case 2, 3:
		var b [4]byte
		if _, err := io.ReadFull(r, b[:]); err != nil {
			return nil, errors.Wrap(err, "npy: read header length")
		}
		headerLen = int(binary.LittleEndian.Uint32(b[:]))
	default:
		return nil, errors.Wrapf(ErrUnsupported, "version %d.%d", pre[6], pre[7])
	}

	header := make([]byte, headerLen)
	if _, err := io.ReadFull(r, header); err != nil {
		return nil, errors.Wrap(err, "npy: read header")
	}

	a, err := parseHeader(string(header))
	if err != nil {
		return nil, err
	}

	size, _, ok := intKind(a.Descr)
	if !ok {
		return nil, errors.Wrapf(ErrUnsupported, "descr %q", a.Descr)
	}

	n, err := dataSize(a.Shape, size)
	if err != nil {
		return nil, err
	}

	// The buffer grows with what the stream holds, never with what the header claims.
	var data bytes.Buffer
	got, err := io.CopyN(&data, r, int64(n))
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, errors.Wrap(err, "npy: read data")
	}
	if got != int64(n) {
		return nil, errors.Wrapf(ErrBadHeader, "shape %v needs %d bytes, stream has %d", a.Shape, n, got)
	}

	a.Data = data.Bytes()

	return a, nil
}

// dataSize is the byte length of shape at itemSize bytes per element.
func dataSize(shape []int, itemSize int) (int, error) {
	n := itemSize
	for _, s := range shape {
		if s < 0 {
			return 0, errors.Wrapf(ErrBadHeader, "negative dimension in %v", shape)
		}
		if s != 0 && n > math.MaxInt/s {
			return 0, errors.Wrapf(ErrBadHeader, "shape %v overflows", shape)
		}
		n *= s
	}
	return n, nil
}

func parseHeader(h string) (*Array, error) {
	d := descrRe.FindStringSubmatch(h)
	f := fortranRe.FindStringSubmatch(h)
	s := shapeRe.FindStringSubmatch(h)

	if d == nil || f == nil || s == nil {
		return nil, errors.Wrapf(ErrBadHeader, "%q", h)
	}

	if f[1] == "True" {
		return nil, errors.Wrap(ErrUnsupported, "fortran order")
	}

	a := &Array{Descr: d[1], Shape: []int{}}

	for _, part := range strings.Split(s[1], ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		n, err := strconv.Atoi(strings.TrimSuffix(part, "L"))
		if err != nil || n < 0 {
			return nil, errors.Wrapf(ErrBadHeader, "shape %q", s[1])
		}
		a.Shape = append(a.Shape, n)
	}

	return a, nil
}
