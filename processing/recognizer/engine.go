// Package recognizer keeps a face model trained over the gallery and answers
// who a face patch belongs to.
package recognizer

import (
	"sync"

	"github.com/pkg/errors"

	"facelab/internal/gallery"
	"facelab/internal/logging"
	"facelab/internal/models"
)

// ErrNotTrained is returned by models asked to predict before any training.
var ErrNotTrained = errors.New("recognizer is not trained")

// Model is a classical face recognizer over fixed-size grey patches. Predict
// returns the best label and its distance, lower meaning closer.
type Model interface {
	Train(patches [][]byte, labels []int) error
	Predict(patch []byte) (int, float64, error)
	Reset()
}

// Engine mutates the gallery, retrains the model over the whole sample set
// after every mutation and persists the result.
type Engine struct {
	mu sync.RWMutex

	gallery *gallery.Gallery
	model   Model
	trained bool

	dir   string
	files gallery.Files
}

func NewEngine(g *gallery.Gallery, m Model, dir string, files gallery.Files) *Engine {
	return &Engine{
		gallery: g,
		model:   m,
		dir:     dir,
		files:   files,
	}
}

func (e *Engine) Gallery() *gallery.Gallery {
	return e.gallery
}

// Load reads the gallery from disk and trains on it. A failed load leaves an
// empty, untrained engine and returns the cause.
func (e *Engine) Load() error {
	loadErr := e.gallery.Load(e.dir, e.files)
	if loadErr != nil {
		logging.Component("recognizer").WithError(loadErr).Warn("failed to load face data, starting empty")
	}

	if err := e.retrain(); err != nil {
		return err
	}

	return loadErr
}

// Enroll appends patches for name, retrains and saves.
func (e *Engine) Enroll(name string, patches [][]byte) (int, error) {
	id, err := e.gallery.AddSamples(name, patches)
	if err != nil {
		return 0, err
	}

	logging.Component("recognizer").Infof("added %d samples for %s (id %d)", len(patches), name, id)

	return id, e.commit()
}

func (e *Engine) Delete(name string) error {
	if err := e.gallery.Delete(name); err != nil {
		return err
	}

	logging.Component("recognizer").Infof("deleted %s", name)

	return e.commit()
}

func (e *Engine) Clear() error {
	e.gallery.Clear()

	logging.Component("recognizer").Info("cleared all face data")

	return e.commit()
}

func (e *Engine) commit() error {
	if err := e.retrain(); err != nil {
		return err
	}
	return errors.Wrap(e.gallery.Save(e.dir, e.files), "save face data")
}

func (e *Engine) retrain() error {
	patches, labels := e.gallery.Samples()

	e.mu.Lock()
	defer e.mu.Unlock()

	if len(patches) == 0 {
		e.model.Reset()
		e.trained = false
		return nil
	}

	if err := e.model.Train(patches, labels); err != nil {
		e.model.Reset()
		e.trained = false
		return errors.Wrap(err, "train recognizer")
	}

	e.trained = true
	return nil
}

func (e *Engine) Trained() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.trained
}

// Identify predicts the owner of patch and applies threshold.
func (e *Engine) Identify(patch []byte, threshold float64) (models.Identity, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	if !e.trained {
		return models.Identity{}, ErrNotTrained
	}

	label, distance, err := e.model.Predict(patch)
	if err != nil {
		return models.Identity{}, err
	}

	return Classify(label, distance, threshold, e.gallery.Name), nil
}

// Classify decides known vs unknown: a match needs a distance below threshold
// and a label that still has a name.
func Classify(label int, distance, threshold float64, lookup func(int) (string, bool)) models.Identity {
	id := models.Identity{Label: label, Distance: distance}

	if distance >= threshold {
		return id
	}

	name, ok := lookup(label)
	if !ok {
		return id
	}

	id.Name = name
	id.Known = true
	return id
}
