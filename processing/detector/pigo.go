package detector

import (
	"image"
	"os"

	pigo "github.com/esimov/pigo/core"
	"github.com/pkg/errors"
	"gocv.io/x/gocv"

	"facelab/internal/models"
)

// PigoDetector runs the pixel-intensity-comparison cascade from esimov/pigo
// directly on the grey pixel buffer.
type PigoDetector struct {
	classifier *pigo.Pigo
	quality    float32
}

func NewPigoDetector(cascadePath string, quality float32) (*PigoDetector, error) {
	data, err := os.ReadFile(cascadePath)
	if err != nil {
		return nil, errors.Wrap(err, "read pigo cascade")
	}

	classifier, err := pigo.NewPigo().Unpack(data)
	if err != nil {
		return nil, errors.Wrap(err, "unpack pigo cascade")
	}

	return &PigoDetector{classifier: classifier, quality: quality}, nil
}

func (d *PigoDetector) Name() string { return MethodPigo }

func (d *PigoDetector) Detect(frame gocv.Mat) ([]image.Rectangle, error) {
	gray := gocv.NewMat()
	defer gray.Close()

	gocv.CvtColor(frame, &gray, gocv.ColorBGRToGray)

	rows, cols := gray.Rows(), gray.Cols()

	params := pigo.CascadeParams{
		MinSize:     60,
		MaxSize:     max(rows, cols),
		ShiftFactor: 0.1,
		ScaleFactor: 1.1,
		ImageParams: pigo.ImageParams{
			Pixels: gray.ToBytes(),
			Rows:   rows,
			Cols:   cols,
			Dim:    cols,
		},
	}

	dets := d.classifier.RunCascade(params, 0.0)
	dets = d.classifier.ClusterDetections(dets, 0.2)

	return clampAll(pigoRects(dets, d.quality), frameBounds(frame)), nil
}

func pigoRects(dets []pigo.Detection, quality float32) []image.Rectangle {
	var rects []image.Rectangle
	for _, det := range dets {
		if det.Q < quality {
			continue
		}
		rects = append(rects, models.FromCenter(det.Row, det.Col, det.Scale))
	}
	return rects
}

func (d *PigoDetector) Close() error { return nil }
