// Command facelab-setup checks the vision stack and model files, fetches
// what is missing and optionally starts the application.
package main

import (
	"flag"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/pkg/errors"
	"gocv.io/x/gocv"

	"facelab/internal/config"
	"facelab/internal/logging"
	"facelab/processing/detector"
)

const appBinary = "facelab"

func main() {
	configPath := flag.String("config", config.DefaultConfigPath, "Path to configuration file")
	fetch := flag.Bool("download", false, "Download missing model files")
	launch := flag.Bool("launch", false, "Start the application after the checks")
	appPath := flag.String("app", "", "Path to the application binary")
	flag.Parse()

	cfg, err := config.LoadConfigFile(*configPath)
	if err != nil {
		logging.WithError(err).Warn("using default configuration")
	}

	logging.Infof("OpenCV %s, GoCV %s", gocv.OpenCVVersion(), gocv.Version())

	missing := missingModels(requiredModels(cfg))
	for _, m := range missing {
		logging.Warnf("missing %s model: %s", m.Method, m.Path)
	}

	if len(missing) > 0 && *fetch {
		failed := 0
		for _, m := range missing {
			logging.Infof("Downloading %s...", m.Path)
			if err := download(m.URL, m.Path, m.Bzip2); err != nil {
				logging.WithError(err).Errorf("failed to download %s", m.Path)
				failed++
				continue
			}
			logging.Infof("Successfully downloaded %s", m.Path)
		}
		if failed > 0 {
			logging.Warnf("%d model files could not be downloaded", failed)
		}
	} else if len(missing) > 0 {
		logging.Infof("run with -download to fetch %d missing files", len(missing))
	} else {
		logging.Infof("all model files present")
	}

	registry := detector.Build(cfg)
	methods := registry.Methods()
	method := registry.Default(cfg.GetMethod())
	registry.Close()

	if len(methods) == 0 {
		logging.Errorf("no detection method is usable")
		os.Exit(1)
	}
	logging.Infof("default detection method: %s", method)

	if !*launch {
		return
	}

	bin, err := findApp(*appPath)
	if err != nil {
		logging.WithError(err).Error("cannot launch application")
		os.Exit(1)
	}

	if err := runApp(bin, *configPath); err != nil {
		logging.WithError(err).Error("application exited with error")
		os.Exit(1)
	}
}

// findApp resolves the application binary: the explicit path, then PATH,
// then next to this executable.
func findApp(explicit string) (string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			return "", errors.Wrapf(err, "application %s", explicit)
		}
		return explicit, nil
	}

	if p, err := exec.LookPath(appBinary); err == nil {
		return p, nil
	}

	self, err := os.Executable()
	if err != nil {
		return "", errors.Wrap(err, "locate setup binary")
	}

	sibling := filepath.Join(filepath.Dir(self), appBinary)
	if _, err := os.Stat(sibling); err != nil {
		return "", errors.Errorf("%s not found on PATH or next to %s", appBinary, self)
	}
	return sibling, nil
}

func runApp(bin, configPath string) error {
	logging.Infof("starting %s", bin)

	cmd := exec.Command(bin, "-config", configPath)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	return cmd.Run()
}
