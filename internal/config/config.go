package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

type SourceType string

const (
	SourceWebcam SourceType = "Web-Camera"
	SourceLocal  SourceType = "Local"

	DefaultConfigPath string = "config.json"
)

var SourcesList = [...]string{
	string(SourceWebcam),
	string(SourceLocal),
}

type WebcamConfig struct {
	DeviceID int `json:"device_id" yaml:"device_id"`
}

type LocalConfig struct {
	Path string `json:"path" yaml:"path"`
}

type DetectionConfig struct {
	Method string `json:"method" yaml:"method"`

	HaarCascade  string  `json:"haar_cascade" yaml:"haar_cascade"`
	ScaleFactor  float64 `json:"scale_factor" yaml:"scale_factor"`
	MinNeighbors int     `json:"min_neighbors" yaml:"min_neighbors"`

	DNNModel      string  `json:"dnn_model" yaml:"dnn_model"`
	DNNConfig     string  `json:"dnn_config" yaml:"dnn_config"`
	DNNConfidence float32 `json:"dnn_confidence" yaml:"dnn_confidence"`

	DlibModelDir string `json:"dlib_model_dir" yaml:"dlib_model_dir"`

	PigoCascade string  `json:"pigo_cascade" yaml:"pigo_cascade"`
	PigoQuality float32 `json:"pigo_quality" yaml:"pigo_quality"`

	RemoteHost string `json:"remote_host" yaml:"remote_host"`
}

type RecognitionConfig struct {
	Threshold   float64 `json:"threshold" yaml:"threshold"`
	SampleCount int     `json:"sample_count" yaml:"sample_count"`
	PatchSize   int     `json:"patch_size" yaml:"patch_size"`
	Radius      int     `json:"radius" yaml:"radius"`
	Neighbors   int     `json:"neighbors" yaml:"neighbors"`
}

type StorageConfig struct {
	DataDir     string `json:"data_dir" yaml:"data_dir"`
	LabelsFile  string `json:"labels_file" yaml:"labels_file"`
	SamplesFile string `json:"samples_file" yaml:"samples_file"`
	IDsFile     string `json:"ids_file" yaml:"ids_file"`
}

type LoggingConfig struct {
	Level string `json:"level" yaml:"level"`
	File  string `json:"file" yaml:"file"`
}

type Config struct {
	mu sync.RWMutex

	ActiveSource  SourceType `json:"active_source" yaml:"active_source"`
	TargetFPS     uint       `json:"target_fps" yaml:"target_fps"`
	DisplayWidth  int        `json:"display_width" yaml:"display_width"`
	DisplayHeight int        `json:"display_height" yaml:"display_height"`
	Mirror        bool       `json:"mirror" yaml:"mirror"`

	Webcam WebcamConfig `json:"webcam" yaml:"webcam"`
	Local  LocalConfig  `json:"local" yaml:"local"`

	Detection   DetectionConfig   `json:"detection" yaml:"detection"`
	Recognition RecognitionConfig `json:"recognition" yaml:"recognition"`
	Storage     StorageConfig     `json:"storage" yaml:"storage"`
	Logging     LoggingConfig     `json:"logging" yaml:"logging"`
}

func (c *Config) GetFPS() uint {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.TargetFPS
}

func (c *Config) SetFPS(fps uint) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.TargetFPS = fps
}

func (c *Config) GetDisplaySize() (int, int) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.DisplayWidth, c.DisplayHeight
}

func (c *Config) GetMirror() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.Mirror
}

func (c *Config) GetSource() SourceType {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.ActiveSource
}

func (c *Config) SetSource(s SourceType) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ActiveSource = s
}

func (c *Config) GetDeviceID() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.Webcam.DeviceID
}

func (c *Config) SetDeviceID(id int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Webcam.DeviceID = id
}

func (c *Config) GetLocalPath() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.Local.Path
}

func (c *Config) SetLocalPath(path string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Local.Path = path
}

func (c *Config) GetMethod() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.Detection.Method
}

func (c *Config) SetMethod(method string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Detection.Method = method
}

func (c *Config) GetThreshold() float64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.Recognition.Threshold
}

func (c *Config) SetThreshold(threshold float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Recognition.Threshold = threshold
}

func (c *Config) GetSampleCount() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.Recognition.SampleCount
}

func (c *Config) SetSampleCount(n int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Recognition.SampleCount = n
}

// Save writes JSON, or YAML when path ends in .yaml/.yml.
func (c *Config) Save(path string) error {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var (
		data []byte
		err  error
	)

	if isYAML(path) {
		data, err = yaml.Marshal(c)
	} else {
		data, err = json.MarshalIndent(c, "", "  ")
	}

	if err != nil {
		return errors.Wrap(err, "encode config")
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return errors.Wrap(err, "create config dir")
		}
	}

	return errors.Wrap(os.WriteFile(path, data, 0644), "write config")
}

// LoadConfigFile returns defaults overlaid with whatever path holds. A missing
// file is not an error; a malformed one returns the defaults and the error.
func LoadConfigFile(path string) (*Config, error) {
	cfg := NewDefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, errors.Wrap(err, "read config")
	}

	if isYAML(path) {
		err = yaml.Unmarshal(data, cfg)
	} else {
		err = json.Unmarshal(data, cfg)
	}

	if err != nil {
		return NewDefaultConfig(), errors.Wrapf(err, "decode config %s", path)
	}

	return cfg, nil
}

func isYAML(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".yaml" || ext == ".yml"
}

func NewDefaultConfig() *Config {
	return &Config{
		ActiveSource:  SourceWebcam,
		TargetFPS:     30,
		DisplayWidth:  640,
		DisplayHeight: 480,
		Mirror:        true,
		Webcam:        WebcamConfig{DeviceID: 0},
		Local:         LocalConfig{Path: ""},
		Detection: DetectionConfig{
			Method:        "",
			HaarCascade:   "models/haarcascade_frontalface_default.xml",
			ScaleFactor:   1.3,
			MinNeighbors:  5,
			DNNModel:      "models/res10_300x300_ssd_iter_140000.caffemodel",
			DNNConfig:     "models/deploy.prototxt",
			DNNConfidence: 0.5,
			DlibModelDir:  "models",
			PigoCascade:   "models/facefinder",
			PigoQuality:   5.0,
			RemoteHost:    "",
		},
		Recognition: RecognitionConfig{
			Threshold:   100,
			SampleCount: 20,
			PatchSize:   100,
			Radius:      1,
			Neighbors:   8,
		},
		Storage: StorageConfig{
			DataDir:     ".",
			LabelsFile:  "face_data_opencv.json",
			SamplesFile: "face_data_opencv.npy",
			IDsFile:     "face_labels_opencv.npy",
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}
