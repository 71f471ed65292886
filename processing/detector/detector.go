// Package detector holds the interchangeable face detection backends and the
// registry the UI selects between.
package detector

import (
	"image"

	"gocv.io/x/gocv"

	"facelab/internal/models"
)

const (
	MethodHaar    = "haar"
	MethodDlibHOG = "dlib-hog"
	MethodDlibCNN = "dlib-cnn"
	MethodDNN     = "dnn"
	MethodPigo    = "pigo"
	MethodRemote  = "remote"
)

// Preferred is the order methods are listed in and picked by default.
var Preferred = []string{MethodDlibHOG, MethodHaar, MethodDlibCNN, MethodDNN, MethodPigo, MethodRemote}

// Detector finds faces in a BGR frame. Returned rectangles are clamped to the
// frame by the caller.
type Detector interface {
	Name() string
	Detect(frame gocv.Mat) ([]image.Rectangle, error)
	Close() error
}

func frameBounds(frame gocv.Mat) image.Rectangle {
	return image.Rect(0, 0, frame.Cols(), frame.Rows())
}

func clampAll(rects []image.Rectangle, bounds image.Rectangle) []image.Rectangle {
	out := rects[:0]
	for _, r := range rects {
		if c := models.Clamp(r, bounds); !c.Empty() {
			out = append(out, c)
		}
	}
	return out
}
