package capture

import (
	"sync"

	"github.com/pkg/errors"
	"gocv.io/x/gocv"

	"facelab/internal/logging"
)

// ErrCameraUnavailable is returned by Start when the device cannot be opened.
var ErrCameraUnavailable = errors.New("cannot access camera")

// WebcamStreamer owns the capture device for as long as its read loop runs.
type WebcamStreamer struct {
	stopOnce sync.Once

	deviceID int
	webcam   *gocv.VideoCapture

	frameChan chan gocv.Mat
	errChan   chan error
	stopChan  chan struct{}
	doneChan  chan struct{}
}

func NewWebcamStreamer(deviceID int) *WebcamStreamer {
	return &WebcamStreamer{
		deviceID: deviceID,

		frameChan: make(chan gocv.Mat, 1),
		errChan:   make(chan error, 1),
		stopChan:  make(chan struct{}),
		doneChan:  make(chan struct{}),
	}
}

func (ws *WebcamStreamer) Start() error {
	webcam, err := gocv.OpenVideoCapture(ws.deviceID)
	if err != nil {
		return errors.Wrapf(ErrCameraUnavailable, "device %d: %v", ws.deviceID, err)
	}

	if !webcam.IsOpened() {
		webcam.Close()
		return errors.Wrapf(ErrCameraUnavailable, "device %d", ws.deviceID)
	}

	ws.webcam = webcam
	logging.Component("capture").Infof("camera %d opened", ws.deviceID)

	go ws.readLoop()

	return nil
}

func (ws *WebcamStreamer) readLoop() {
	defer close(ws.doneChan)
	defer close(ws.frameChan)
	defer close(ws.errChan)
	defer ws.webcam.Close()

	img := gocv.NewMat()
	defer img.Close()

	for {
		select {
		case <-ws.stopChan:
			return
		default:
		}

		if ok := ws.webcam.Read(&img); !ok {
			select {
			case <-ws.stopChan:
			default:
				ws.errChan <- errors.Errorf("camera %d closed", ws.deviceID)
			}
			return
		}

		if img.Empty() {
			continue
		}

		offer(ws.frameChan, img.Clone())
	}
}

// offer hands frame to ch, or drops and closes it when the consumer is behind.
func offer(ch chan gocv.Mat, frame gocv.Mat) {
	select {
	case ch <- frame:
	default:
		frame.Close()
	}
}

// Stop ends the read loop and waits until the device is released.
func (ws *WebcamStreamer) Stop() {
	ws.stopOnce.Do(func() {
		close(ws.stopChan)
		if ws.webcam != nil {
			<-ws.doneChan
			drain(ws.frameChan)
		}
	})
}

func drain(ch <-chan gocv.Mat) {
	for m := range ch {
		m.Close()
	}
}

func (ws *WebcamStreamer) FrameChan() <-chan gocv.Mat { return ws.frameChan }
func (ws *WebcamStreamer) ErrorChan() <-chan error    { return ws.errChan }
