package detector

import (
	"image"

	"github.com/pkg/errors"
	"gocv.io/x/gocv"

	"facelab/internal/models"
)

// DNNDetector runs the OpenCV res10 SSD face model. Each output row is
// [batch, class, confidence, x1, y1, x2, y2] with normalised corners.
type DNNDetector struct {
	net        gocv.Net
	confidence float32
}

func NewDNNDetector(model, config string, confidence float32) (*DNNDetector, error) {
	net := gocv.ReadNet(model, config)
	if net.Empty() {
		net.Close()
		return nil, errors.Errorf("load dnn model %s", model)
	}

	return &DNNDetector{net: net, confidence: confidence}, nil
}

func (d *DNNDetector) Name() string { return MethodDNN }

func (d *DNNDetector) Detect(frame gocv.Mat) ([]image.Rectangle, error) {
	blob := gocv.BlobFromImage(frame, 1.0, image.Pt(300, 300), gocv.NewScalar(104, 177, 123, 0), false, false)
	defer blob.Close()

	d.net.SetInput(blob, "")

	prob := d.net.Forward("")
	defer prob.Close()

	cols, rows := frame.Cols(), frame.Rows()

	var rects []image.Rectangle
	for i := 0; i+6 < prob.Total(); i += 7 {
		if prob.GetFloatAt(0, i+2) < d.confidence {
			continue
		}

		rects = append(rects, models.FromNormalized(
			prob.GetFloatAt(0, i+3),
			prob.GetFloatAt(0, i+4),
			prob.GetFloatAt(0, i+5),
			prob.GetFloatAt(0, i+6),
			cols, rows,
		))
	}

	return clampAll(rects, frameBounds(frame)), nil
}

func (d *DNNDetector) Close() error {
	return d.net.Close()
}
