package capture

import (
	"sync"
	"time"

	"github.com/pkg/errors"
	"gocv.io/x/gocv"
)

const standartFps uint = 30

// LocalFileStreamer replays a video file at the target FPS.
type LocalFileStreamer struct {
	stopOnce sync.Once

	path      string
	targetFPS uint

	video *gocv.VideoCapture

	frameChan chan gocv.Mat
	errChan   chan error
	stopChan  chan struct{}
	doneChan  chan struct{}
}

func NewLocalStreamer(path string, targetFPS uint) *LocalFileStreamer {
	if targetFPS == 0 {
		targetFPS = standartFps
	}

	return &LocalFileStreamer{
		path:      path,
		targetFPS: targetFPS,
		frameChan: make(chan gocv.Mat, 1),
		errChan:   make(chan error, 1),
		stopChan:  make(chan struct{}),
		doneChan:  make(chan struct{}),
	}
}

func (ls *LocalFileStreamer) Start() error {
	video, err := gocv.VideoCaptureFile(ls.path)
	if err != nil {
		return errors.Wrapf(err, "open video %s", ls.path)
	}

	ls.video = video

	go ls.readFrames()

	return nil
}

func (ls *LocalFileStreamer) readFrames() {
	defer close(ls.doneChan)
	defer close(ls.frameChan)
	defer close(ls.errChan)
	defer ls.video.Close()

	img := gocv.NewMat()
	defer img.Close()

	ticker := time.NewTicker(time.Second / time.Duration(ls.targetFPS))
	defer ticker.Stop()

	for {
		select {
		case <-ls.stopChan:
			return

		case <-ticker.C:
			if ok := ls.video.Read(&img); !ok || img.Empty() {
				select {
				case <-ls.stopChan:
				default:
					ls.errChan <- errors.Errorf("end of video %s", ls.path)
				}
				return
			}

			offer(ls.frameChan, img.Clone())
		}
	}
}

func (ls *LocalFileStreamer) Stop() {
	ls.stopOnce.Do(func() {
		close(ls.stopChan)
		if ls.video != nil {
			<-ls.doneChan
			drain(ls.frameChan)
		}
	})
}

func (ls *LocalFileStreamer) FrameChan() <-chan gocv.Mat { return ls.frameChan }
func (ls *LocalFileStreamer) ErrorChan() <-chan error    { return ls.errChan }
