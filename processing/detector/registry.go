package detector

import (
	"sync"

	"facelab/internal/config"
	"facelab/internal/logging"
)

// Registry holds every backend that could be constructed. Selecting an
// unavailable method falls back to haar.
type Registry struct {
	mu        sync.RWMutex
	detectors map[string]Detector
}

func NewRegistry() *Registry {
	return &Registry{detectors: make(map[string]Detector)}
}

// Build tries every backend the config describes and keeps the ones that load.
func Build(cfg *config.Config) *Registry {
	r := NewRegistry()
	log := logging.Component("detector")
	det := cfg.Detection

	if d, err := NewHaarDetector(det.HaarCascade, det.ScaleFactor, det.MinNeighbors); err != nil {
		log.WithError(err).Error("haar detector unavailable")
	} else {
		r.Add(d)
	}

	if hog, cnn, err := NewDlibDetectors(det.DlibModelDir); err != nil {
		log.WithError(err).Warn("dlib detectors unavailable")
	} else {
		r.Add(hog)
		r.Add(cnn)
	}

	if d, err := NewDNNDetector(det.DNNModel, det.DNNConfig, det.DNNConfidence); err != nil {
		log.WithError(err).Warn("dnn detector unavailable")
	} else {
		r.Add(d)
	}

	if d, err := NewPigoDetector(det.PigoCascade, det.PigoQuality); err != nil {
		log.WithError(err).Warn("pigo detector unavailable")
	} else {
		r.Add(d)
	}

	if det.RemoteHost != "" {
		if d, err := NewRemoteDetector(det.RemoteHost); err != nil {
			log.WithError(err).Warn("remote detector unavailable")
		} else {
			r.Add(d)
		}
	}

	log.Infof("detection methods available: %v", r.Methods())

	return r
}

func (r *Registry) Add(d Detector) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if old, ok := r.detectors[d.Name()]; ok {
		old.Close()
	}
	r.detectors[d.Name()] = d
}

// Methods lists the available methods in preferred order.
func (r *Registry) Methods() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []string
	for _, name := range Preferred {
		if _, ok := r.detectors[name]; ok {
			out = append(out, name)
		}
	}
	return out
}

func (r *Registry) Available(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.detectors[name]
	return ok
}

// Resolve names the method that will actually run for name, or "" when no
// backend is loaded at all.
func (r *Registry) Resolve(name string) string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if _, ok := r.detectors[name]; ok {
		return name
	}
	if _, ok := r.detectors[MethodHaar]; ok {
		return MethodHaar
	}
	for _, n := range Preferred {
		if _, ok := r.detectors[n]; ok {
			return n
		}
	}
	return ""
}

// Default keeps preferred when it is available, otherwise picks dlib-hog,
// then haar, then whatever loaded first in preferred order.
func (r *Registry) Default(preferred string) string {
	if preferred != "" && r.Available(preferred) {
		return preferred
	}
	if r.Available(MethodDlibHOG) {
		return MethodDlibHOG
	}
	return r.Resolve(MethodHaar)
}

// Get returns the detector for name after fallback, or nil.
func (r *Registry) Get(name string) Detector {
	resolved := r.Resolve(name)

	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.detectors[resolved]
}

func (r *Registry) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()

	// The HOG detector owns the dlib models shared with CNN, so close it last.
	for name, d := range r.detectors {
		if name != MethodDlibHOG {
			d.Close()
		}
	}
	if d, ok := r.detectors[MethodDlibHOG]; ok {
		d.Close()
	}

	r.detectors = make(map[string]Detector)
}
