package detector

import (
	"bytes"
	"encoding/json"
	"image"
	"image/jpeg"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
	"gocv.io/x/gocv"

	"facelab/internal/logging"
	"facelab/internal/models"
)

const remoteRetryDelay = 5 * time.Second

// RemoteDetector streams JPEG frames to a detection server over a websocket
// and reads back JSON result sets. Detect never blocks on the network: it
// queues the frame if there is room and returns the latest results.
type RemoteDetector struct {
	serverURL string

	inputFrames chan image.Image

	mu          sync.RWMutex
	lastResults []models.DetectionResult

	stopOnce sync.Once
	stopChan chan struct{}
}

func NewRemoteDetector(host string) (*RemoteDetector, error) {
	if host == "" {
		return nil, errors.New("remote detector host not configured")
	}

	u := url.URL{Scheme: "ws", Host: host, Path: "/ws"}

	d := &RemoteDetector{
		serverURL:   u.String(),
		inputFrames: make(chan image.Image, 5),
		stopChan:    make(chan struct{}),
	}

	go d.runLoop()

	return d, nil
}

func (d *RemoteDetector) Name() string { return MethodRemote }

func (d *RemoteDetector) Detect(frame gocv.Mat) ([]image.Rectangle, error) {
	img, err := frame.ToImage()
	if err != nil {
		return nil, errors.Wrap(err, "convert frame")
	}

	select {
	case d.inputFrames <- img:
	default:
	}

	d.mu.RLock()
	results := d.lastResults
	d.mu.RUnlock()

	return resultRects(results, frame.Cols(), frame.Rows()), nil
}

func resultRects(results []models.DetectionResult, width, height int) []image.Rectangle {
	bounds := image.Rect(0, 0, width, height)

	var rects []image.Rectangle
	for _, res := range results {
		r, ok := models.FromResult(res, width, height)
		if !ok {
			continue
		}
		if r = models.Clamp(r, bounds); !r.Empty() {
			rects = append(rects, r)
		}
	}
	return rects
}

func (d *RemoteDetector) Close() error {
	d.stopOnce.Do(func() { close(d.stopChan) })
	return nil
}

func (d *RemoteDetector) setResults(results []models.DetectionResult) {
	d.mu.Lock()
	d.lastResults = results
	d.mu.Unlock()
}

func (d *RemoteDetector) runLoop() {
	log := logging.Component("remote-detector")

	for {
		select {
		case <-d.stopChan:
			return
		default:
		}

		log.Infof("connecting to detector server %s", d.serverURL)
		conn, _, err := websocket.DefaultDialer.Dial(d.serverURL, nil)
		if err != nil {
			log.WithError(err).Warnf("connection failed, retrying in %s", remoteRetryDelay)
			select {
			case <-time.After(remoteRetryDelay):
				continue
			case <-d.stopChan:
				return
			}
		}

		log.Info("connected to detection server")

		errChan := make(chan error, 2)
		done := make(chan struct{})

		go d.writeLoop(conn, errChan, done)
		go d.readLoop(conn, errChan)

		select {
		case err = <-errChan:
			log.WithError(err).Warn("connection lost")
		case <-d.stopChan:
		}

		close(done)
		conn.Close()
		d.setResults(nil)
	}
}

func (d *RemoteDetector) writeLoop(conn *websocket.Conn, errChan chan<- error, done <-chan struct{}) {
	for {
		select {
		case <-done:
			return
		case img := <-d.inputFrames:
			var buf bytes.Buffer
			if err := jpeg.Encode(&buf, img, nil); err != nil {
				logging.Component("remote-detector").WithError(err).Debug("jpeg encode")
				continue
			}

			if err := conn.WriteMessage(websocket.BinaryMessage, buf.Bytes()); err != nil {
				errChan <- err
				return
			}
		}
	}
}

func (d *RemoteDetector) readLoop(conn *websocket.Conn, errChan chan<- error) {
	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			errChan <- err
			return
		}

		var results []models.DetectionResult
		if err := json.Unmarshal(message, &results); err != nil {
			logging.Component("remote-detector").WithError(err).Debug("json decode")
			continue
		}

		d.setResults(results)
	}
}
