package gallery

import (
	"encoding/json"
	"io"
	"os"
	"path/filepath"

	"github.com/pkg/errors"

	"facelab/internal/logging"
	"facelab/internal/npy"
)

// Files names the three files the gallery is stored in, relative to a data dir.
type Files struct {
	Labels  string
	Samples string
	IDs     string
}

type labelFile struct {
	NameToID  map[string]int `json:"name_to_id"`
	IDToName  map[int]string `json:"id_to_name"`
	FaceCount int            `json:"face_count"`
}

// Save writes the label JSON and the two arrays. Each file is replaced
// atomically but the three are not written as a unit. With no samples the
// array files are removed.
func (g *Gallery) Save(dir string, files Files) error {
	g.mu.RLock()
	defer g.mu.RUnlock()

	if err := os.MkdirAll(dir, 0755); err != nil {
		return errors.Wrap(err, "create data dir")
	}

	lf := labelFile{
		NameToID:  g.nameToID,
		IDToName:  g.idToName,
		FaceCount: len(g.patches),
	}

	err := writeAtomic(filepath.Join(dir, files.Labels), func(w io.Writer) error {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(lf)
	})
	if err != nil {
		return errors.Wrap(err, "write labels")
	}

	samplesPath := filepath.Join(dir, files.Samples)
	idsPath := filepath.Join(dir, files.IDs)

	if len(g.patches) == 0 {
		for _, p := range []string{samplesPath, idsPath} {
			if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
				return errors.Wrap(err, "remove stale samples")
			}
		}
		return nil
	}

	size := g.patchSize * g.patchSize
	flat := make([]byte, 0, len(g.patches)*size)
	for _, p := range g.patches {
		flat = append(flat, p...)
	}

	err = writeAtomic(samplesPath, func(w io.Writer) error {
		return npy.WriteUint8(w, []int{len(g.patches), g.patchSize, g.patchSize}, flat)
	})
	if err != nil {
		return errors.Wrap(err, "write samples")
	}

	err = writeAtomic(idsPath, func(w io.Writer) error {
		return npy.WriteInt64(w, g.labels)
	})
	return errors.Wrap(err, "write sample labels")
}

// Load replaces the gallery with what dir holds. A missing label file leaves
// the gallery empty. On any other failure the gallery is reset to empty and
// the error returned.
func (g *Gallery) Load(dir string, files Files) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.reset()

	err := g.load(dir, files)
	if err != nil {
		g.reset()
	}
	return err
}

func (g *Gallery) load(dir string, files Files) error {
	data, err := os.ReadFile(filepath.Join(dir, files.Labels))
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return errors.Wrap(err, "read labels")
	}

	var lf labelFile
	if err := json.Unmarshal(data, &lf); err != nil {
		return errors.Wrap(err, "decode labels")
	}

	for name, id := range lf.NameToID {
		if lf.IDToName[id] != name {
			return errors.Errorf("label maps disagree on %q", name)
		}
	}
	if len(lf.NameToID) != len(lf.IDToName) {
		return errors.New("label maps have different sizes")
	}

	for name, id := range lf.NameToID {
		g.nameToID[name] = id
		g.idToName[id] = name
	}

	samplesPath := filepath.Join(dir, files.Samples)
	idsPath := filepath.Join(dir, files.IDs)

	_, serr := os.Stat(samplesPath)
	_, ierr := os.Stat(idsPath)
	if os.IsNotExist(serr) && os.IsNotExist(ierr) {
		return nil
	}

	samples, err := readArray(samplesPath)
	if err != nil {
		return errors.Wrap(err, "read samples")
	}

	ids, err := readArray(idsPath)
	if err != nil {
		return errors.Wrap(err, "read sample labels")
	}

	if samples.Descr != npy.DescrUint8 || len(samples.Shape) != 3 {
		return errors.Errorf("samples have dtype %s shape %v, want |u1 (N, P, P)", samples.Descr, samples.Shape)
	}

	if samples.Shape[1] != g.patchSize || samples.Shape[2] != g.patchSize {
		return errors.Errorf("samples are %dx%d, want %dx%d",
			samples.Shape[1], samples.Shape[2], g.patchSize, g.patchSize)
	}

	labels, err := ids.Ints()
	if err != nil {
		return errors.Wrap(err, "decode sample labels")
	}

	n := samples.Shape[0]
	if len(labels) != n {
		return errors.Errorf("%d samples but %d labels", n, len(labels))
	}

	log := logging.Component("gallery")
	size := g.patchSize * g.patchSize
	dropped := 0

	for i, label := range labels {
		if _, ok := g.idToName[label]; !ok {
			dropped++
			continue
		}
		p := make([]byte, size)
		copy(p, samples.Data[i*size:(i+1)*size])
		g.patches = append(g.patches, p)
		g.labels = append(g.labels, label)
	}

	if dropped > 0 {
		log.Warnf("dropped %d samples with unregistered labels", dropped)
	}

	log.Infof("loaded %d samples for %d people", len(g.labels), len(g.nameToID))
	return nil
}

func readArray(path string) (*npy.Array, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	return npy.Read(f)
}

func writeAtomic(path string, fn func(io.Writer) error) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp*")
	if err != nil {
		return err
	}

	defer os.Remove(tmp.Name())

	if err := fn(tmp); err != nil {
		tmp.Close()
		return err
	}

	if err := tmp.Close(); err != nil {
		return err
	}

	return os.Rename(tmp.Name(), path)
}
