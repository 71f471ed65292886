package processor

import (
	"image"
	"image/color"

	"github.com/pkg/errors"
	"gocv.io/x/gocv"
)

var (
	colorKnown   = color.RGBA{0, 255, 0, 0}
	colorUnknown = color.RGBA{255, 0, 0, 0}
	colorNoData  = color.RGBA{0, 0, 255, 0}
)

func annotate(frame *gocv.Mat, r image.Rectangle, col color.RGBA, text string) {
	gocv.Rectangle(frame, r, col, 2)
	gocv.PutText(frame, text, image.Pt(r.Min.X, r.Min.Y-10), gocv.FontHersheySimplex, 0.8, col, 2)
}

// extractPatch crops r out of the grey frame and scales it to size x size.
func extractPatch(gray gocv.Mat, r image.Rectangle, size int) ([]byte, error) {
	r = r.Intersect(image.Rect(0, 0, gray.Cols(), gray.Rows()))
	if r.Empty() {
		return nil, errors.New("face region outside frame")
	}

	roi := gray.Region(r)
	defer roi.Close()

	resized := gocv.NewMat()
	defer resized.Close()

	gocv.Resize(roi, &resized, image.Pt(size, size), 0, 0, gocv.InterpolationLinear)

	return resized.ToBytes(), nil
}
