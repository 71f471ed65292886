package gallery

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"facelab/internal/npy"
)

const patch = 4

var files = Files{
	Labels:  "face_data_opencv.json",
	Samples: "face_data_opencv.npy",
	IDs:     "face_labels_opencv.npy",
}

func patches(n int, fill byte) [][]byte {
	out := make([][]byte, n)
	for i := range out {
		out[i] = bytes.Repeat([]byte{fill + byte(i)}, patch*patch)
	}
	return out
}

func TestRegisterAssignsSequentialIDs(t *testing.T) {
	g := New(patch)

	id, created, err := g.Register("alice")
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, 0, id)

	id, created, err = g.Register("bob")
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, 1, id)

	id, created, err = g.Register("alice")
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, 0, id)

	_, _, err = g.Register("")
	assert.ErrorIs(t, err, ErrEmptyName)
}

func TestLiveIDsNotReused(t *testing.T) {
	g := New(patch)

	_, err := g.AddSamples("alice", patches(1, 0))
	require.NoError(t, err)
	_, err = g.AddSamples("bob", patches(1, 0))
	require.NoError(t, err)

	require.NoError(t, g.Delete("alice"))

	id, err := g.AddSamples("carol", patches(1, 0))
	require.NoError(t, err)
	assert.Equal(t, 2, id)

	name, ok := g.Name(1)
	assert.True(t, ok)
	assert.Equal(t, "bob", name)
}

func TestHighestIDFreedByDelete(t *testing.T) {
	g := New(patch)

	_, err := g.AddSamples("alice", patches(2, 0))
	require.NoError(t, err)
	_, err = g.AddSamples("bob", patches(3, 10))
	require.NoError(t, err)

	require.NoError(t, g.Delete("bob"))

	id, err := g.AddSamples("carol", patches(1, 20))
	require.NoError(t, err)
	assert.Equal(t, 1, id)

	_, labels := g.Samples()
	assert.Equal(t, []int{0, 0, 1}, labels)
	assert.Equal(t, []Entry{
		{Name: "alice", ID: 0, Samples: 2},
		{Name: "carol", ID: 1, Samples: 1},
	}, g.Counts())
}

func TestAddSamplesAndCounts(t *testing.T) {
	g := New(patch)

	_, err := g.AddSamples("alice", patches(3, 10))
	require.NoError(t, err)
	_, err = g.AddSamples("bob", patches(2, 20))
	require.NoError(t, err)
	_, err = g.AddSamples("alice", patches(1, 30))
	require.NoError(t, err)

	assert.Equal(t, 6, g.Len())
	assert.Equal(t, []Entry{
		{Name: "alice", ID: 0, Samples: 4},
		{Name: "bob", ID: 1, Samples: 2},
	}, g.Counts())

	ps, labels := g.Samples()
	assert.Len(t, ps, 6)
	assert.Equal(t, []int{0, 0, 0, 1, 1, 0}, labels)
}

func TestAddSamplesRejectsWrongSize(t *testing.T) {
	g := New(patch)

	_, err := g.AddSamples("alice", [][]byte{make([]byte, patch*patch), make([]byte, 3)})
	assert.ErrorIs(t, err, ErrPatchSize)
	assert.Equal(t, 0, g.Len())
	assert.False(t, g.Has("alice"))

	_, err = g.AddSamples("", patches(1, 0))
	assert.ErrorIs(t, err, ErrEmptyName)
}

func TestAddSamplesCopiesInput(t *testing.T) {
	g := New(patch)
	in := patches(1, 5)

	_, err := g.AddSamples("alice", in)
	require.NoError(t, err)

	in[0][0] = 99

	ps, _ := g.Samples()
	assert.Equal(t, byte(5), ps[0][0])
}

func TestDelete(t *testing.T) {
	g := New(patch)

	_, err := g.AddSamples("alice", patches(2, 1))
	require.NoError(t, err)
	_, err = g.AddSamples("bob", patches(3, 2))
	require.NoError(t, err)

	require.NoError(t, g.Delete("alice"))

	assert.False(t, g.Has("alice"))
	_, ok := g.Name(0)
	assert.False(t, ok)

	ps, labels := g.Samples()
	assert.Len(t, ps, 3)
	assert.Equal(t, []int{1, 1, 1}, labels)
	assert.Equal(t, byte(2), ps[0][0])

	assert.ErrorIs(t, g.Delete("alice"), ErrUnknownPerson)
}

func TestClear(t *testing.T) {
	g := New(patch)
	_, err := g.AddSamples("alice", patches(2, 1))
	require.NoError(t, err)

	g.Clear()

	assert.Equal(t, 0, g.Len())
	assert.Empty(t, g.Counts())
	assert.False(t, g.Has("alice"))
}

func TestSaveLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()

	g := New(patch)
	_, err := g.AddSamples("alice", patches(2, 1))
	require.NoError(t, err)
	_, err = g.AddSamples("bob", patches(1, 7))
	require.NoError(t, err)

	require.NoError(t, g.Save(dir, files))

	loaded := New(patch)
	require.NoError(t, loaded.Load(dir, files))

	assert.Equal(t, g.Counts(), loaded.Counts())

	wantP, wantL := g.Samples()
	gotP, gotL := loaded.Samples()
	assert.Equal(t, wantP, gotP)
	assert.Equal(t, wantL, gotL)
}

func TestSaveWritesExpectedJSON(t *testing.T) {
	dir := t.TempDir()

	g := New(patch)
	_, err := g.AddSamples("alice", patches(2, 1))
	require.NoError(t, err)
	require.NoError(t, g.Save(dir, files))

	data, err := os.ReadFile(filepath.Join(dir, files.Labels))
	require.NoError(t, err)

	var raw map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &raw))

	assert.Equal(t, map[string]interface{}{"alice": 0.0}, raw["name_to_id"])
	assert.Equal(t, map[string]interface{}{"0": "alice"}, raw["id_to_name"])
	assert.Equal(t, 2.0, raw["face_count"])

	f, err := os.Open(filepath.Join(dir, files.Samples))
	require.NoError(t, err)
	defer f.Close()

	a, err := npy.Read(f)
	require.NoError(t, err)
	assert.Equal(t, []int{2, patch, patch}, a.Shape)
}

func TestSaveEmptyRemovesArrays(t *testing.T) {
	dir := t.TempDir()

	g := New(patch)
	_, err := g.AddSamples("alice", patches(2, 1))
	require.NoError(t, err)
	require.NoError(t, g.Save(dir, files))

	g.Clear()
	require.NoError(t, g.Save(dir, files))

	_, err = os.Stat(filepath.Join(dir, files.Samples))
	assert.True(t, os.IsNotExist(err))
	_, err = os.Stat(filepath.Join(dir, files.IDs))
	assert.True(t, os.IsNotExist(err))

	loaded := New(patch)
	require.NoError(t, loaded.Load(dir, files))
	assert.Equal(t, 0, loaded.Len())
}

func TestLoadMissingIsEmpty(t *testing.T) {
	g := New(patch)
	require.NoError(t, g.Load(t.TempDir(), files))
	assert.Equal(t, 0, g.Len())
}

func TestLoadLabelsOnly(t *testing.T) {
	dir := t.TempDir()
	writeLabels(t, dir, `{"name_to_id": {"alice": 0}, "id_to_name": {"0": "alice"}, "face_count": 0}`)

	g := New(patch)
	require.NoError(t, g.Load(dir, files))
	assert.True(t, g.Has("alice"))
	assert.Equal(t, 0, g.Len())
}

func TestLoadFailuresResetToEmpty(t *testing.T) {
	tests := []struct {
		name  string
		setup func(t *testing.T, dir string)
	}{
		{
			name: "bad json",
			setup: func(t *testing.T, dir string) {
				writeLabels(t, dir, "{")
			},
		},
		{
			name: "maps disagree",
			setup: func(t *testing.T, dir string) {
				writeLabels(t, dir, `{"name_to_id": {"alice": 0}, "id_to_name": {"0": "bob"}}`)
			},
		},
		{
			name: "count mismatch",
			setup: func(t *testing.T, dir string) {
				writeLabels(t, dir, `{"name_to_id": {"alice": 0}, "id_to_name": {"0": "alice"}}`)
				writeSamples(t, dir, 2, patch)
				writeIDs(t, dir, []int{0})
			},
		},
		{
			name: "patch size mismatch",
			setup: func(t *testing.T, dir string) {
				writeLabels(t, dir, `{"name_to_id": {"alice": 0}, "id_to_name": {"0": "alice"}}`)
				writeSamples(t, dir, 1, patch+1)
				writeIDs(t, dir, []int{0})
			},
		},
		{
			name: "samples header larger than file",
			setup: func(t *testing.T, dir string) {
				writeLabels(t, dir, `{"name_to_id": {"alice": 0}, "id_to_name": {"0": "alice"}}`)
				writeRawNpy(t, filepath.Join(dir, files.Samples),
					"{'descr': '|u1', 'fortran_order': False, 'shape': (1000000000000000, 100, 100), }")
				writeIDs(t, dir, []int{0})
			},
		},
		{
			name: "labels array missing",
			setup: func(t *testing.T, dir string) {
				writeLabels(t, dir, `{"name_to_id": {"alice": 0}, "id_to_name": {"0": "alice"}}`)
				writeSamples(t, dir, 1, patch)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			tt.setup(t, dir)

			g := New(patch)
			_, err := g.AddSamples("stale", patches(1, 0))
			require.NoError(t, err)

			assert.Error(t, g.Load(dir, files))
			assert.Equal(t, 0, g.Len())
			assert.False(t, g.Has("alice"))
			assert.False(t, g.Has("stale"))
		})
	}
}

func TestLoadDropsOrphanSamples(t *testing.T) {
	dir := t.TempDir()
	writeLabels(t, dir, `{"name_to_id": {"alice": 0}, "id_to_name": {"0": "alice"}}`)
	writeSamples(t, dir, 3, patch)
	writeIDs(t, dir, []int{0, 5, 0})

	g := New(patch)
	require.NoError(t, g.Load(dir, files))

	_, labels := g.Samples()
	assert.Equal(t, []int{0, 0}, labels)
}

func writeLabels(t *testing.T, dir, body string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, files.Labels), []byte(body), 0644))
}

func writeSamples(t *testing.T, dir string, n, size int) {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, npy.WriteUint8(&buf, []int{n, size, size}, make([]byte, n*size*size)))
	require.NoError(t, os.WriteFile(filepath.Join(dir, files.Samples), buf.Bytes(), 0644))
}

func writeRawNpy(t *testing.T, path, header string) {
	t.Helper()
	var buf bytes.Buffer
	buf.WriteString("\x93NUMPY\x01\x00")
	require.NoError(t, binary.Write(&buf, binary.LittleEndian, uint16(len(header))))
	buf.WriteString(header)
	buf.Write(make([]byte, 16))
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0644))
}

func writeIDs(t *testing.T, dir string, ids []int) {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, npy.WriteInt64(&buf, ids))
	require.NoError(t, os.WriteFile(filepath.Join(dir, files.IDs), buf.Bytes(), 0644))
}
