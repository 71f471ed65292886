package detector

import (
	"image"

	"github.com/pkg/errors"
	"gocv.io/x/gocv"
)

// HaarDetector runs an OpenCV cascade classifier over the grey frame.
type HaarDetector struct {
	classifier   gocv.CascadeClassifier
	scaleFactor  float64
	minNeighbors int
}

func NewHaarDetector(path string, scaleFactor float64, minNeighbors int) (*HaarDetector, error) {
	classifier := gocv.NewCascadeClassifier()
	if !classifier.Load(path) {
		classifier.Close()
		return nil, errors.Errorf("load cascade %s", path)
	}

	return &HaarDetector{
		classifier:   classifier,
		scaleFactor:  scaleFactor,
		minNeighbors: minNeighbors,
	}, nil
}

func (d *HaarDetector) Name() string { return MethodHaar }

func (d *HaarDetector) Detect(frame gocv.Mat) ([]image.Rectangle, error) {
	gray := gocv.NewMat()
	defer gray.Close()

	gocv.CvtColor(frame, &gray, gocv.ColorBGRToGray)

	rects := d.classifier.DetectMultiScaleWithParams(
		gray, d.scaleFactor, d.minNeighbors, 0, image.Point{}, image.Point{},
	)

	return clampAll(rects, frameBounds(frame)), nil
}

func (d *HaarDetector) Close() error {
	return d.classifier.Close()
}
