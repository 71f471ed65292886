// Package lbph adapts the OpenCV contrib LBPH face recognizer to recognizer.Model.
package lbph

import (
	"sync"

	"github.com/pkg/errors"
	"gocv.io/x/gocv"
	"gocv.io/x/gocv/contrib"

	"facelab/processing/recognizer"
)

type Params struct {
	PatchSize int
	Radius    int
	Neighbors int
}

// Recognizer wraps one LBPH instance. Training builds a fresh instance over
// the full sample set rather than updating the old one.
type Recognizer struct {
	mu     sync.Mutex
	params Params
	rec    *contrib.LBPHFaceRecognizer
}

func New(p Params) *Recognizer {
	return &Recognizer{params: p}
}

func (r *Recognizer) Train(patches [][]byte, labels []int) error {
	if len(patches) != len(labels) {
		return errors.Errorf("%d patches but %d labels", len(patches), len(labels))
	}
	if len(patches) == 0 {
		return errors.New("no samples to train on")
	}

	mats := make([]gocv.Mat, 0, len(patches))
	defer func() {
		for _, m := range mats {
			m.Close()
		}
	}()

	for i, p := range patches {
		m, err := r.toMat(p)
		if err != nil {
			return errors.Wrapf(err, "sample %d", i)
		}
		mats = append(mats, m)
	}

	rec := contrib.NewLBPHFaceRecognizer()
	if r.params.Radius > 0 {
		rec.SetRadius(r.params.Radius)
	}
	if r.params.Neighbors > 0 {
		rec.SetNeighbors(r.params.Neighbors)
	}
	if err := rec.Train(mats, labels); err != nil {
		rec.Close()
		return errors.Wrap(err, "train lbph")
	}

	r.mu.Lock()
	old := r.rec
	r.rec = rec
	r.mu.Unlock()

	if old != nil {
		old.Close()
	}

	return nil
}

func (r *Recognizer) Predict(patch []byte) (int, float64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.rec == nil {
		return -1, 0, recognizer.ErrNotTrained
	}

	m, err := r.toMat(patch)
	if err != nil {
		return -1, 0, err
	}
	defer m.Close()

	resp := r.rec.PredictExtendedResponse(m)
	return int(resp.Label), float64(resp.Confidence), nil
}

// Reset drops the trained model and releases its native memory.
func (r *Recognizer) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.rec != nil {
		r.rec.Close()
		r.rec = nil
	}
}

func (r *Recognizer) trained() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rec != nil
}

func (r *Recognizer) toMat(p []byte) (gocv.Mat, error) {
	n := r.params.PatchSize
	if len(p) != n*n {
		return gocv.Mat{}, errors.Errorf("patch has %d bytes, want %d", len(p), n*n)
	}
	return gocv.NewMatFromBytes(n, n, gocv.MatTypeCV8U, p)
}
