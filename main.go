package main

import (
	"flag"

	"facelab/internal/config"
	"facelab/internal/gallery"
	"facelab/internal/logging"
	ui "facelab/internal/ui"
	"facelab/processing/detector"
	"facelab/processing/processor"
	"facelab/processing/recognizer"
	"facelab/processing/recognizer/lbph"
)

func main() {
	configPath := flag.String("config", config.DefaultConfigPath, "Path to configuration file (.json or .yaml)")
	debug := flag.Bool("debug", false, "Enable debug logging")
	flag.Parse()

	cfg, cfgErr := config.LoadConfigFile(*configPath)

	level := cfg.Logging.Level
	if *debug {
		level = "debug"
	}
	if err := logging.Init(level, cfg.Logging.File); err != nil {
		logging.WithError(err).Warn("log file unavailable, logging to stderr only")
	}
	if cfgErr != nil {
		logging.WithError(cfgErr).Warn("using default configuration")
	}

	rec := cfg.Recognition
	model := lbph.New(lbph.Params{
		PatchSize: rec.PatchSize,
		Radius:    rec.Radius,
		Neighbors: rec.Neighbors,
	})

	files := gallery.Files{
		Labels:  cfg.Storage.LabelsFile,
		Samples: cfg.Storage.SamplesFile,
		IDs:     cfg.Storage.IDsFile,
	}

	engine := recognizer.NewEngine(gallery.New(rec.PatchSize), model, cfg.Storage.DataDir, files)
	if err := engine.Load(); err != nil {
		logging.WithError(err).Error("face data could not be loaded")
	}
	logging.Infof("loaded %d face samples", engine.Gallery().Len())

	registry := detector.Build(cfg)
	if len(registry.Methods()) == 0 {
		logging.Errorf("no face detector could be loaded, check the model paths in %s", *configPath)
	}

	method := registry.Default(cfg.GetMethod())
	cfg.SetMethod(method)

	proc := processor.NewProcessor(cfg, registry, engine)

	defer registry.Close()

	app := ui.CreateApp(cfg, *configPath, proc, engine, registry)
	app.Run()
}
