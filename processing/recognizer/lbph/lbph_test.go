package lbph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"facelab/processing/recognizer"
)

const size = 24

var params = Params{PatchSize: size, Radius: 1, Neighbors: 8}

// gradient fills a patch whose intensity rises along x or along y.
func gradient(alongX bool) []byte {
	p := make([]byte, size*size)
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			v := y
			if alongX {
				v = x
			}
			p[y*size+x] = byte(v * 10)
		}
	}
	return p
}

func TestTrainPredict(t *testing.T) {
	r := New(params)
	defer r.Reset()

	horizontal, vertical := gradient(true), gradient(false)

	require.NoError(t, r.Train([][]byte{horizontal, vertical}, []int{3, 7}))
	assert.True(t, r.trained())

	label, dist, err := r.Predict(horizontal)
	require.NoError(t, err)
	assert.Equal(t, 3, label)
	assert.Less(t, dist, 1.0)

	label, dist, err = r.Predict(vertical)
	require.NoError(t, err)
	assert.Equal(t, 7, label)
	assert.Less(t, dist, 1.0)
}

func TestPredictBeforeTrain(t *testing.T) {
	r := New(params)

	_, _, err := r.Predict(gradient(true))
	assert.ErrorIs(t, err, recognizer.ErrNotTrained)
}

func TestWrongPatchSize(t *testing.T) {
	r := New(params)
	defer r.Reset()

	assert.Error(t, r.Train([][]byte{make([]byte, 10)}, []int{0}))
	assert.False(t, r.trained())

	require.NoError(t, r.Train([][]byte{gradient(true)}, []int{0}))

	_, _, err := r.Predict(make([]byte, size))
	assert.Error(t, err)
}

func TestTrainInputMismatch(t *testing.T) {
	r := New(params)

	assert.Error(t, r.Train([][]byte{gradient(true)}, []int{0, 1}))
	assert.Error(t, r.Train(nil, nil))
	assert.False(t, r.trained())
}

func TestResetReleasesModel(t *testing.T) {
	r := New(params)

	require.NoError(t, r.Train([][]byte{gradient(true)}, []int{0}))
	require.NoError(t, r.Train([][]byte{gradient(true), gradient(false)}, []int{0, 1}))

	r.Reset()
	assert.False(t, r.trained())

	_, _, err := r.Predict(gradient(true))
	assert.ErrorIs(t, err, recognizer.ErrNotTrained)

	r.Reset()
}
