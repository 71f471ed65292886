package capture

import (
	"gocv.io/x/gocv"
)

// VideoStreamer produces BGR frames from one capture device. The receiver of
// a frame owns it and must Close it.
type VideoStreamer interface {
	Start() error
	Stop()
	FrameChan() <-chan gocv.Mat
	ErrorChan() <-chan error
}
