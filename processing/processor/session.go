package processor

import (
	"fmt"

	"gocv.io/x/gocv"

	"facelab/internal/logging"
)

// CaptureDone receives the patches collected for name. It is called exactly
// once per session, from the processing goroutine or from Stop.
type CaptureDone func(name string, patches [][]byte)

type session struct {
	name    string
	target  int
	patches [][]byte
	done    CaptureDone
}

// StartCapture collects up to target face patches for name from the next
// frames, one face per frame. A running session is finished first.
func (p *Processor) StartCapture(name string, target int, done CaptureDone) {
	p.finishSession()

	if target <= 0 {
		target = 1
	}

	p.mu.Lock()
	p.session = &session{name: name, target: target, done: done}
	p.mu.Unlock()

	logging.Component("processor").Infof("capturing %d samples for %s", target, name)
}

func (p *Processor) Capturing() bool {
	return p.currentSession() != nil
}

func (p *Processor) currentSession() *session {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.session
}

func (p *Processor) finishSession() {
	p.mu.Lock()
	s := p.session
	p.session = nil
	p.mu.Unlock()

	if s != nil && s.done != nil {
		s.done(s.name, s.patches)
	}
}

func (p *Processor) captureStep(frame *gocv.Mat, s *session) {
	rects := p.detect(*frame)
	if len(rects) == 0 {
		return
	}

	r := rects[0]

	gray := gocv.NewMat()
	defer gray.Close()
	gocv.CvtColor(*frame, &gray, gocv.ColorBGRToGray)

	patch, err := extractPatch(gray, r, p.engine.Gallery().PatchSize())
	if err != nil {
		return
	}

	p.mu.Lock()
	if p.session != s {
		p.mu.Unlock()
		return
	}
	s.patches = append(s.patches, patch)
	n := len(s.patches)
	p.mu.Unlock()

	annotate(frame, r, colorKnown, fmt.Sprintf("Sample %d/%d", n, s.target))

	if n >= s.target {
		p.finishSession()
	}
}
