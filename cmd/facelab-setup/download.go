package main

import (
	"compress/bzip2"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/pkg/errors"

	"facelab/internal/config"
	"facelab/processing/detector"
)

type modelFile struct {
	Method string
	Path   string
	URL    string
	Bzip2  bool
}

// requiredModels lists every model file the detection config points at.
func requiredModels(cfg *config.Config) []modelFile {
	det := cfg.Detection
	dlib := func(name string) modelFile {
		return modelFile{
			Method: detector.MethodDlibHOG,
			Path:   filepath.Join(det.DlibModelDir, name),
			URL:    "http://dlib.net/files/" + name + ".bz2",
			Bzip2:  true,
		}
	}

	return []modelFile{
		{
			Method: detector.MethodHaar,
			Path:   det.HaarCascade,
			URL:    "https://raw.githubusercontent.com/opencv/opencv/master/data/haarcascades/haarcascade_frontalface_default.xml",
		},
		{
			Method: detector.MethodDNN,
			Path:   det.DNNConfig,
			URL:    "https://raw.githubusercontent.com/opencv/opencv/master/samples/dnn/face_detector/deploy.prototxt",
		},
		{
			Method: detector.MethodDNN,
			Path:   det.DNNModel,
			URL:    "https://raw.githubusercontent.com/opencv/opencv_3rdparty/dnn_samples_face_detector_20170830/res10_300x300_ssd_iter_140000.caffemodel",
		},
		{
			Method: detector.MethodPigo,
			Path:   det.PigoCascade,
			URL:    "https://raw.githubusercontent.com/esimov/pigo/master/cascade/facefinder",
		},
		dlib("shape_predictor_5_face_landmarks.dat"),
		dlib("dlib_face_recognition_resnet_model_v1.dat"),
		dlib("mmod_human_face_detector.dat"),
	}
}

func missingModels(files []modelFile) []modelFile {
	var out []modelFile
	for _, f := range files {
		if f.Path == "" {
			continue
		}
		if _, err := os.Stat(f.Path); err != nil {
			out = append(out, f)
		}
	}
	return out
}

// download fetches url into targetPath, decompressing bzip2 when asked. The
// file only appears once it is complete.
func download(url, targetPath string, bz2 bool) error {
	if err := os.MkdirAll(filepath.Dir(targetPath), 0755); err != nil {
		return errors.Wrap(err, "create model directory")
	}

	client := &http.Client{
		Timeout: 10 * time.Minute,
	}

	resp, err := client.Get(url)
	if err != nil {
		return errors.Wrapf(err, "get %s", url)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return errors.Errorf("bad status: %s", resp.Status)
	}

	tmp := targetPath + ".part"
	out, err := os.Create(tmp)
	if err != nil {
		return errors.Wrap(err, "create file")
	}

	var body io.Reader = resp.Body
	if bz2 {
		body = bzip2.NewReader(resp.Body)
	}

	if _, err := io.Copy(out, body); err != nil {
		_ = out.Close()
		_ = os.Remove(tmp)
		return errors.Wrapf(err, "write %s", targetPath)
	}

	if err := out.Close(); err != nil {
		_ = os.Remove(tmp)
		return errors.Wrap(err, "close file")
	}

	return errors.Wrap(os.Rename(tmp, targetPath), "move model into place")
}
