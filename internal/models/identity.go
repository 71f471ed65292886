package models

import "fmt"

// Identity is the outcome of matching one face patch against the gallery.
type Identity struct {
	Label    int
	Name     string
	Distance float64
	Known    bool
}

// Confidence maps the recognizer distance onto the 0..100 scale shown to users.
func (i Identity) Confidence() float64 {
	return 100 - i.Distance
}

func (i Identity) Text() string {
	if !i.Known {
		return "Unknown"
	}
	return fmt.Sprintf("%s (%.1f%%)", i.Name, i.Confidence())
}
