// Package gallery holds the registered people and the face samples captured
// for them.
package gallery

import (
	"sort"
	"sync"

	"github.com/pkg/errors"
)

var (
	ErrEmptyName     = errors.New("name is empty")
	ErrUnknownPerson = errors.New("person is not registered")
	ErrPatchSize     = errors.New("patch has wrong size")
)

// Entry is one row of the registered faces list.
type Entry struct {
	Name    string
	ID      int
	Samples int
}

// Gallery maps names to ids in both directions and keeps the samples as two
// parallel sequences. Every label in labels has an idToName entry.
type Gallery struct {
	mu sync.RWMutex

	patchSize int

	nameToID map[string]int
	idToName map[int]string

	patches [][]byte
	labels  []int
}

func New(patchSize int) *Gallery {
	g := &Gallery{patchSize: patchSize}
	g.reset()
	return g
}

func (g *Gallery) reset() {
	g.nameToID = make(map[string]int)
	g.idToName = make(map[int]string)
	g.patches = nil
	g.labels = nil
}

func (g *Gallery) PatchSize() int {
	return g.patchSize
}

// Register returns the id for name, assigning the next free one if the name is new.
func (g *Gallery) Register(name string) (int, bool, error) {
	if name == "" {
		return 0, false, ErrEmptyName
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	id, created := g.register(name)
	return id, created, nil
}

func (g *Gallery) register(name string) (int, bool) {
	if id, ok := g.nameToID[name]; ok {
		return id, false
	}

	next := 0
	for id := range g.idToName {
		if id >= next {
			next = id + 1
		}
	}

	g.nameToID[name] = next
	g.idToName[next] = name

	return next, true
}

func (g *Gallery) ID(name string) (int, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	id, ok := g.nameToID[name]
	return id, ok
}

func (g *Gallery) Name(id int) (string, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	name, ok := g.idToName[id]
	return name, ok
}

func (g *Gallery) Has(name string) bool {
	_, ok := g.ID(name)
	return ok
}

// AddSamples registers name if needed and appends the patches under its id.
// Either all patches are added or none.
func (g *Gallery) AddSamples(name string, patches [][]byte) (int, error) {
	if name == "" {
		return 0, ErrEmptyName
	}

	want := g.patchSize * g.patchSize
	for i, p := range patches {
		if len(p) != want {
			return 0, errors.Wrapf(ErrPatchSize, "sample %d has %d bytes, want %d", i, len(p), want)
		}
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	id, _ := g.register(name)

	for _, p := range patches {
		cp := make([]byte, len(p))
		copy(cp, p)
		g.patches = append(g.patches, cp)
		g.labels = append(g.labels, id)
	}

	return id, nil
}

// Delete removes every sample of name and both of its mapping entries.
func (g *Gallery) Delete(name string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	id, ok := g.nameToID[name]
	if !ok {
		return errors.Wrapf(ErrUnknownPerson, "%q", name)
	}

	patches := g.patches[:0]
	labels := g.labels[:0]
	for i, label := range g.labels {
		if label != id {
			patches = append(patches, g.patches[i])
			labels = append(labels, label)
		}
	}

	g.patches = patches
	g.labels = labels

	delete(g.nameToID, name)
	delete(g.idToName, id)

	return nil
}

func (g *Gallery) Clear() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.reset()
}

func (g *Gallery) Len() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.labels)
}

// Samples returns copies of the parallel patch and label sequences.
func (g *Gallery) Samples() ([][]byte, []int) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	patches := make([][]byte, len(g.patches))
	copy(patches, g.patches)

	labels := make([]int, len(g.labels))
	copy(labels, g.labels)

	return patches, labels
}

// Counts lists every person with at least one sample, ordered by id.
func (g *Gallery) Counts() []Entry {
	g.mu.RLock()
	defer g.mu.RUnlock()

	counts := make(map[int]int)
	for _, label := range g.labels {
		if _, ok := g.idToName[label]; ok {
			counts[label]++
		}
	}

	entries := make([]Entry, 0, len(counts))
	for id, n := range counts {
		entries = append(entries, Entry{Name: g.idToName[id], ID: id, Samples: n})
	}

	sort.Slice(entries, func(i, j int) bool { return entries[i].ID < entries[j].ID })

	return entries
}
