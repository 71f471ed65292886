package detector

import (
	"image"

	"github.com/Kagami/go-face"
	"github.com/pkg/errors"
	"gocv.io/x/gocv"
)

// DlibDetector locates faces with dlib through go-face, using either the HOG
// frontal detector or the CNN (MMOD) detector. go-face takes JPEG bytes.
type DlibDetector struct {
	rec   *face.Recognizer
	cnn   bool
	owner bool
}

// NewDlibDetectors loads the dlib models once and returns the HOG and CNN
// detectors sharing them. Closing the HOG detector releases the models.
func NewDlibDetectors(modelDir string) (*DlibDetector, *DlibDetector, error) {
	rec, err := face.NewRecognizer(modelDir)
	if err != nil {
		return nil, nil, errors.Wrapf(err, "load dlib models from %s", modelDir)
	}

	return &DlibDetector{rec: rec, owner: true}, &DlibDetector{rec: rec, cnn: true}, nil
}

func (d *DlibDetector) Name() string {
	if d.cnn {
		return MethodDlibCNN
	}
	return MethodDlibHOG
}

func (d *DlibDetector) Detect(frame gocv.Mat) ([]image.Rectangle, error) {
	buf, err := gocv.IMEncode(gocv.JPEGFileExt, frame)
	if err != nil {
		return nil, errors.Wrap(err, "encode frame")
	}

	data := make([]byte, buf.Len())
	copy(data, buf.GetBytes())
	buf.Close()

	var faces []face.Face
	if d.cnn {
		faces, err = d.rec.RecognizeCNN(data)
	} else {
		faces, err = d.rec.Recognize(data)
	}
	if err != nil {
		return nil, errors.Wrap(err, "dlib detect")
	}

	rects := make([]image.Rectangle, 0, len(faces))
	for _, f := range faces {
		rects = append(rects, f.Rectangle)
	}

	return clampAll(rects, frameBounds(frame)), nil
}

func (d *DlibDetector) Close() error {
	if d.owner {
		d.rec.Close()
	}
	return nil
}
