// Package processor runs the per-frame pipeline between the capture device and
// the display: mirroring, sample capture, recognition, annotation and scaling.
package processor

import (
	"image"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nfnt/resize"
	"gocv.io/x/gocv"

	"facelab/internal/config"
	"facelab/internal/logging"
	"facelab/processing/capture"
	"facelab/processing/detector"
	"facelab/processing/recognizer"
)

// Detectors resolves a method name to a backend, nil meaning none is loaded.
type Detectors interface {
	Get(name string) detector.Detector
}

type Processor struct {
	OutImageStream chan image.Image
	ErrChan        chan error

	cfg     *config.Config
	dets    Detectors
	engine  *recognizer.Engine
	streams capture.VideoStreamer

	stopChan chan struct{}
	doneChan chan struct{}
	stopOnce *sync.Once

	active      atomic.Bool
	recognizing atomic.Bool

	mu      sync.RWMutex
	method  string
	latency time.Duration
	fps     uint
	session *session
}

func NewProcessor(cfg *config.Config, dets Detectors, engine *recognizer.Engine) *Processor {
	return &Processor{
		cfg:            cfg,
		dets:           dets,
		engine:         engine,
		method:         cfg.GetMethod(),
		ErrChan:        make(chan error, 1),
		OutImageStream: make(chan image.Image, 2),
	}
}

func (p *Processor) IsActive() bool { return p.active.Load() }

func (p *Processor) Latency() time.Duration {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.latency
}

func (p *Processor) FPS() uint {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.fps
}

func (p *Processor) Method() string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.method
}

func (p *Processor) SetMethod(method string) {
	p.mu.Lock()
	p.method = method
	p.mu.Unlock()

	logging.Component("processor").Infof("detection method changed to: %s", method)
}

func (p *Processor) SetRecognition(on bool) { p.recognizing.Store(on) }
func (p *Processor) Recognizing() bool      { return p.recognizing.Load() }

// Start begins consuming frames from s. It is a no-op while already running.
func (p *Processor) Start(s capture.VideoStreamer) {
	if p.active.Swap(true) {
		return
	}

	p.streams = s
	p.stopChan = make(chan struct{})
	p.doneChan = make(chan struct{})
	p.stopOnce = &sync.Once{}

	go p.run(p.stopChan, p.doneChan)
}

// Stop ends the loop, releases the streamer and finishes any capture session
// with whatever it collected.
func (p *Processor) Stop() {
	if p.stopOnce == nil {
		return
	}

	p.stopOnce.Do(func() {
		close(p.stopChan)
		<-p.doneChan
		p.streams.Stop()
	})

	p.recognizing.Store(false)
	p.finishSession()
}

func (p *Processor) run(stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	defer p.active.Store(false)

	var frameCount uint
	lastFpsUpdate := time.Now()

	for {
		select {
		case frame, ok := <-p.streams.FrameChan():
			if !ok {
				// A failing streamer queues its error before closing both channels.
				select {
				case err, ok := <-p.streams.ErrorChan():
					if ok && err != nil {
						p.reportError(err)
					}
				default:
				}
				return
			}

			start := time.Now()
			out := p.processFrame(&frame)
			frame.Close()

			p.mu.Lock()
			p.latency = time.Since(start)
			p.mu.Unlock()

			if out != nil {
				select {
				case p.OutImageStream <- out:
				default:
				}
			}

			frameCount++
			if time.Since(lastFpsUpdate) >= time.Second {
				p.mu.Lock()
				p.fps = frameCount
				p.mu.Unlock()
				frameCount = 0
				lastFpsUpdate = time.Now()
			}

		case err, ok := <-p.streams.ErrorChan():
			if !ok {
				return
			}
			p.reportError(err)
			return

		case <-stop:
			return
		}
	}
}

func (p *Processor) reportError(err error) {
	logging.Component("processor").WithError(err).Error("capture failed")
	select {
	case p.ErrChan <- err:
	default:
	}
}

func (p *Processor) processFrame(frame *gocv.Mat) image.Image {
	if p.cfg.GetMirror() {
		gocv.Flip(*frame, frame, 1)
	}

	if s := p.currentSession(); s != nil {
		p.captureStep(frame, s)
	} else if p.recognizing.Load() {
		p.recognize(frame)
	}

	img, err := frame.ToImage()
	if err != nil {
		logging.Component("processor").WithError(err).Debug("frame conversion")
		return nil
	}

	w, h := p.cfg.GetDisplaySize()
	if w > 0 && h > 0 && (img.Bounds().Dx() != w || img.Bounds().Dy() != h) {
		img = resize.Resize(uint(w), uint(h), img, resize.Lanczos3)
	}

	return img
}

func (p *Processor) detect(frame gocv.Mat) []image.Rectangle {
	det := p.dets.Get(p.Method())
	if det == nil {
		return nil
	}

	rects, err := det.Detect(frame)
	if err != nil {
		logging.Component("processor").WithError(err).Debugf("%s detection failed", det.Name())
		return nil
	}
	return rects
}

func (p *Processor) recognize(frame *gocv.Mat) {
	rects := p.detect(*frame)
	if len(rects) == 0 {
		return
	}

	if !p.engine.Trained() {
		for _, r := range rects {
			annotate(frame, r, colorNoData, "No training data")
		}
		return
	}

	gray := gocv.NewMat()
	defer gray.Close()
	gocv.CvtColor(*frame, &gray, gocv.ColorBGRToGray)

	size := p.engine.Gallery().PatchSize()
	threshold := p.cfg.GetThreshold()

	for _, r := range rects {
		patch, err := extractPatch(gray, r, size)
		if err != nil {
			continue
		}

		id, err := p.engine.Identify(patch, threshold)
		if err != nil {
			continue
		}

		col := colorUnknown
		if id.Known {
			col = colorKnown
		}
		annotate(frame, r, col, id.Text())
	}
}
