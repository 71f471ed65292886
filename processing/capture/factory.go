package capture

import (
	"github.com/pkg/errors"

	config "facelab/internal/config"
)

func NewStreamer(t *config.Config) (VideoStreamer, error) {
	switch source := t.GetSource(); source {
	case config.SourceWebcam:
		return NewWebcamStreamer(t.GetDeviceID()), nil
	case config.SourceLocal:
		path := t.GetLocalPath()
		if path == "" {
			return nil, errors.New("no video file selected")
		}
		return NewLocalStreamer(path, t.GetFPS()), nil
	default:
		return nil, errors.Errorf("unknown source: %s", source)
	}
}
