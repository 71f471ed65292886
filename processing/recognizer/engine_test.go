package recognizer

import (
	"bytes"
	"math"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"facelab/internal/gallery"
)

const patch = 2

var files = gallery.Files{
	Labels:  "labels.json",
	Samples: "samples.npy",
	IDs:     "ids.npy",
}

// nearestModel labels a patch by the training sample with the closest first byte.
type nearestModel struct {
	patches [][]byte
	labels  []int
	trains  int
	resets  int
	failOn  int
}

func (m *nearestModel) Train(patches [][]byte, labels []int) error {
	m.trains++
	if m.failOn > 0 && m.trains == m.failOn {
		return errors.New("boom")
	}
	m.patches, m.labels = patches, labels
	return nil
}

func (m *nearestModel) Predict(p []byte) (int, float64, error) {
	if len(m.patches) == 0 {
		return -1, 0, ErrNotTrained
	}
	best, dist := -1, math.MaxFloat64
	for i, s := range m.patches {
		d := math.Abs(float64(s[0]) - float64(p[0]))
		if d < dist {
			best, dist = m.labels[i], d
		}
	}
	return best, dist, nil
}

func (m *nearestModel) Reset() {
	m.resets++
	m.patches, m.labels = nil, nil
}

func fill(v byte, n int) [][]byte {
	out := make([][]byte, n)
	for i := range out {
		out[i] = bytes.Repeat([]byte{v}, patch*patch)
	}
	return out
}

func newEngine(t *testing.T) (*Engine, *nearestModel, string) {
	dir := t.TempDir()
	m := &nearestModel{}
	return NewEngine(gallery.New(patch), m, dir, files), m, dir
}

func TestEnrollTrainsAndIdentifies(t *testing.T) {
	e, m, _ := newEngine(t)

	_, err := e.Identify(fill(10, 1)[0], 100)
	assert.ErrorIs(t, err, ErrNotTrained)

	_, err = e.Enroll("alice", fill(10, 3))
	require.NoError(t, err)
	_, err = e.Enroll("bob", fill(200, 2))
	require.NoError(t, err)

	assert.True(t, e.Trained())
	assert.Equal(t, 2, m.trains)
	assert.Len(t, m.patches, 5)

	id, err := e.Identify(fill(15, 1)[0], 100)
	require.NoError(t, err)
	assert.True(t, id.Known)
	assert.Equal(t, "alice", id.Name)
	assert.Equal(t, 5.0, id.Distance)

	id, err = e.Identify(fill(190, 1)[0], 100)
	require.NoError(t, err)
	assert.Equal(t, "bob", id.Name)
}

func TestIdentifyThreshold(t *testing.T) {
	e, _, _ := newEngine(t)
	_, err := e.Enroll("alice", fill(0, 1))
	require.NoError(t, err)

	id, err := e.Identify(fill(150, 1)[0], 100)
	require.NoError(t, err)
	assert.False(t, id.Known)
	assert.Equal(t, "Unknown", id.Text())
}

func TestDeleteRetrainsAndResetsWhenEmpty(t *testing.T) {
	e, m, _ := newEngine(t)

	_, err := e.Enroll("alice", fill(10, 2))
	require.NoError(t, err)
	_, err = e.Enroll("bob", fill(200, 2))
	require.NoError(t, err)

	require.NoError(t, e.Delete("alice"))
	assert.True(t, e.Trained())
	assert.Equal(t, []int{1, 1}, m.labels)

	require.NoError(t, e.Delete("bob"))
	assert.False(t, e.Trained())
	assert.Equal(t, 1, m.resets)

	assert.ErrorIs(t, e.Delete("bob"), gallery.ErrUnknownPerson)
}

func TestClear(t *testing.T) {
	e, m, _ := newEngine(t)
	_, err := e.Enroll("alice", fill(10, 2))
	require.NoError(t, err)

	require.NoError(t, e.Clear())
	assert.False(t, e.Trained())
	assert.Equal(t, 1, m.resets)
	assert.Equal(t, 0, e.Gallery().Len())
}

func TestLoadRestoresPersistedState(t *testing.T) {
	e, _, dir := newEngine(t)
	_, err := e.Enroll("alice", fill(10, 2))
	require.NoError(t, err)

	m := &nearestModel{}
	reloaded := NewEngine(gallery.New(patch), m, dir, files)
	require.NoError(t, reloaded.Load())

	assert.True(t, reloaded.Trained())
	assert.Equal(t, 1, m.trains)

	id, err := reloaded.Identify(fill(12, 1)[0], 100)
	require.NoError(t, err)
	assert.Equal(t, "alice", id.Name)
}

func TestTrainFailure(t *testing.T) {
	e, m, _ := newEngine(t)
	m.failOn = 1

	_, err := e.Enroll("alice", fill(10, 1))
	assert.Error(t, err)
	assert.False(t, e.Trained())
	assert.Equal(t, 1, m.resets)

	_, err = e.Identify(fill(10, 1)[0], 100)
	assert.ErrorIs(t, err, ErrNotTrained)
}

func TestClassify(t *testing.T) {
	names := map[int]string{0: "alice"}
	lookup := func(id int) (string, bool) {
		n, ok := names[id]
		return n, ok
	}

	tests := []struct {
		name      string
		label     int
		distance  float64
		wantKnown bool
		wantText  string
	}{
		{"close", 0, 20, true, "alice (80.0%)"},
		{"at threshold", 0, 100, false, "Unknown"},
		{"far", 0, 140, false, "Unknown"},
		{"unnamed label", 3, 10, false, "Unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id := Classify(tt.label, tt.distance, 100, lookup)
			assert.Equal(t, tt.wantKnown, id.Known)
			assert.Equal(t, tt.wantText, id.Text())
		})
	}
}
