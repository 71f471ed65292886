package npy

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUint8RoundTrip(t *testing.T) {
	data := make([]byte, 3*4*4)
	for i := range data {
		data[i] = byte(i)
	}

	var buf bytes.Buffer
	require.NoError(t, WriteUint8(&buf, []int{3, 4, 4}, data))

	// Header plus preamble is padded to a multiple of 64.
	assert.Equal(t, 0, (buf.Len()-len(data))%64)

	a, err := Read(&buf)
	require.NoError(t, err)
	assert.Equal(t, DescrUint8, a.Descr)
	assert.Equal(t, []int{3, 4, 4}, a.Shape)
	assert.Equal(t, data, a.Data)
}

func TestInt64RoundTrip(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteInt64(&buf, []int{0, 1, 1, 7, -2}))

	a, err := Read(&buf)
	require.NoError(t, err)
	assert.Equal(t, []int{5}, a.Shape)

	got, err := a.Ints()
	require.NoError(t, err)
	assert.Equal(t, []int{0, 1, 1, 7, -2}, got)
}

func TestEmptyInt64(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteInt64(&buf, nil))
	assert.Contains(t, buf.String(), "'shape': (0,)")

	a, err := Read(&buf)
	require.NoError(t, err)

	got, err := a.Ints()
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestWriteUint8ShapeMismatch(t *testing.T) {
	assert.Error(t, WriteUint8(&bytes.Buffer{}, []int{2, 2}, []byte{1, 2, 3}))
}

func TestReadNumpyInt32Header(t *testing.T) {
	header := "{'descr': '<i4', 'fortran_order': False, 'shape': (2,), }\n"

	var buf bytes.Buffer
	buf.Write(magic)
	buf.Write([]byte{1, 0})
	binary.Write(&buf, binary.LittleEndian, uint16(len(header)))
	buf.WriteString(header)
	binary.Write(&buf, binary.LittleEndian, []int32{3, -1})

	a, err := Read(&buf)
	require.NoError(t, err)

	got, err := a.Ints()
	require.NoError(t, err)
	assert.Equal(t, []int{3, -1}, got)
}

func TestReadErrors(t *testing.T) {
	tests := []struct {
		name string
		in   []byte
		want error
	}{
		{"bad magic", []byte("NOTNUMPYxxxxxxxx"), ErrBadMagic},
		{"bad version", append(append([]byte{}, magic...), 9, 0, 0, 0), ErrUnsupported},
		{"fortran", header1("{'descr': '|u1', 'fortran_order': True, 'shape': (1,), }"), ErrUnsupported},
		{"float", header1("{'descr': '<f4', 'fortran_order': False, 'shape': (1,), }"), ErrUnsupported},
		{"garbage", header1("{}"), ErrBadHeader},
		{"overflowing shape", header1("{'descr': '|u1', 'fortran_order': False, 'shape': (1000000000000000, 100, 100), }"), ErrBadHeader},
		{"shape beyond data", header1("{'descr': '<i8', 'fortran_order': False, 'shape': (1000000000000,), }"), ErrBadHeader},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Read(bytes.NewReader(tt.in))
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestReadTruncatedData(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteUint8(&buf, []int{10}, make([]byte, 10)))

	_, err := Read(bytes.NewReader(buf.Bytes()[:buf.Len()-3]))
	assert.ErrorIs(t, err, ErrBadHeader)
}

func TestDataSize(t *testing.T) {
	n, err := dataSize([]int{3, 4, 4}, 1)
	require.NoError(t, err)
	assert.Equal(t, 48, n)

	n, err = dataSize([]int{0, 100, 100}, 1)
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	_, err = dataSize([]int{1 << 40, 1 << 40}, 8)
	assert.ErrorIs(t, err, ErrBadHeader)
}

func header1(dict string) []byte {
	var buf bytes.Buffer
	buf.Write(magic)
	buf.Write([]byte{1, 0})
	binary.Write(&buf, binary.LittleEndian, uint16(len(dict)))
	buf.WriteString(dict)
	buf.Write(make([]byte, 8))
	return buf.Bytes()
}
