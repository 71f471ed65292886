package models

import "image"

// DetectionResult is the remote detector wire format. Box holds normalised
// [y1, x1, y2, x2] corners.
type DetectionResult struct {
	Label      string    `json:"label"`
	Confidence float32   `json:"confidence"`
	Box        []float32 `json:"box"`
}

// FromCenter converts a square detection given by its centre and side length.
func FromCenter(row, col, scale int) image.Rectangle {
	half := scale / 2
	return image.Rect(col-half, row-half, col-half+scale, row-half+scale)
}

// FromNormalized scales [0,1] corner coordinates to a frame of the given size.
func FromNormalized(x1, y1, x2, y2 float32, width, height int) image.Rectangle {
	return image.Rect(
		int(x1*float32(width)),
		int(y1*float32(height)),
		int(x2*float32(width)),
		int(y2*float32(height)),
	)
}

// FromResult converts a remote result, or reports false for a malformed box.
func FromResult(res DetectionResult, width, height int) (image.Rectangle, bool) {
	if len(res.Box) != 4 {
		return image.Rectangle{}, false
	}
	return FromNormalized(res.Box[1], res.Box[0], res.Box[3], res.Box[2], width, height), true
}

// Clamp limits r to bounds. The result is empty when they do not overlap.
func Clamp(r, bounds image.Rectangle) image.Rectangle {
	return r.Canon().Intersect(bounds)
}
