package ui

import (
	"image"
	"time"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/theme"
	"fyne.io/fyne/v2/widget"

	"facelab/internal/config"
	"facelab/internal/logging"
	"facelab/internal/ui/cwidget"
	"facelab/processing/capture"
)

func (a *FaceApp) toggleCamera() {
	if a.loopStop != nil {
		a.stopCamera()
		a.setStatus("Camera stopped")
		return
	}
	a.startCamera()
}

func (a *FaceApp) startCamera() {
	if a.processor.IsActive() {
		return
	}

	streamer, err := capture.NewStreamer(a.config)
	if err != nil {
		dialog.ShowError(err, a.mainWin)
		return
	}

	if err := streamer.Start(); err != nil {
		logging.WithError(err).Error("camera start failed")
		dialog.ShowError(err, a.mainWin)
		a.setStatus("Camera error")
		return
	}

	a.processor.Start(streamer)

	a.loopStop = make(chan struct{})
	go a.runPlayerLoop(a.loopStop)
	go a.runStatLoop(a.loopStop)

	a.cameraBtn.SetText("Stop Camera")
	a.cameraBtn.SetIcon(theme.MediaStopIcon())
	a.cameraOff.Hide()
	a.setStatus("Camera started")
}

// stopCamera must run on the UI goroutine.
func (a *FaceApp) stopCamera() {
	if a.loopStop != nil {
		close(a.loopStop)
		a.loopStop = nil
	}

	a.processor.Stop()

	a.cameraBtn.SetText("Start Camera")
	a.cameraBtn.SetIcon(theme.MediaPlayIcon())
	a.recognizeBtn.SetText("Recognize Faces")

	a.videoCanvas.Image = nil
	a.videoCanvas.Refresh()
	a.cameraOff.Show()
}

func (a *FaceApp) runStatLoop(stop <-chan struct{}) {
	uiTicker := time.NewTicker(time.Millisecond * 200)
	defer uiTicker.Stop()

	for {
		select {
		case <-uiTicker.C:
			latency, fps := a.processor.Latency(), a.processor.FPS()
			fyne.Do(func() {
				a.latencyLabel.SetText(formatLatency(latency))
				a.fpsLabel.SetText(formatFPS(fps))
			})
		case <-stop:
			return
		}
	}
}

func (a *FaceApp) runPlayerLoop(stop chan struct{}) {
	frameChan := a.processor.OutImageStream

	displayFPS := time.Duration(a.config.GetFPS())
	if displayFPS == 0 {
		displayFPS = 30
	}
	displayTicker := time.NewTicker(time.Second / displayFPS)
	defer displayTicker.Stop()

	var lastFrame image.Image

	for {
		select {
		case frame, ok := <-frameChan:
			if !ok {
				return
			}
			if frame != nil {
				lastFrame = frame
			}

		case <-displayTicker.C:
			if lastFrame != nil {
				img := lastFrame
				fyne.Do(func() {
					a.videoCanvas.Image = img
					a.videoCanvas.Refresh()
				})
				lastFrame = nil
			}

		case err := <-a.processor.ErrChan:
			fyne.Do(func() {
				if a.loopStop != stop {
					return
				}
				a.stopCamera()
				a.setStatus("Camera error")
				dialog.ShowError(err, a.mainWin)
			})
			return

		case <-stop:
			return
		}
	}
}

func (a *FaceApp) setupConfigSettings() {
	a.staticSettings = container.NewVBox()

	samplesInput := cwidget.NewIntInput(
		"Samples per capture",
		"Enter integer",
		a.config.GetSampleCount(),
		1,
		func(i int) {
			a.config.SetSampleCount(i)
		},
	)

	thresholdInput := cwidget.NewFloatInput(
		"Recognition threshold",
		"Enter number",
		a.config.GetThreshold(),
		func(f float64) {
			a.config.SetThreshold(f)
		},
	)

	fpsInput := cwidget.NewIntInput(
		"FPS",
		"Enter integer",
		int(a.config.GetFPS()),
		1,
		func(i int) {
			a.config.SetFPS(uint(i))
		},
	)

	a.staticSettings.Add(samplesInput)
	a.staticSettings.Add(thresholdInput)
	a.staticSettings.Add(fpsInput)
}

func (a *FaceApp) refreshSettingsUI(sourceType string) {
	a.dynamicSettings.Objects = nil
	if a.loopStop != nil {
		a.stopCamera()
	}

	switch config.SourceType(sourceType) {
	case config.SourceLocal:
		pathEntry := widget.NewEntry()
		pathEntry.SetPlaceHolder("/path/to/video.mp4")
		pathEntry.SetText(a.config.GetLocalPath())

		pathEntry.OnChanged = func(s string) {
			a.config.SetLocalPath(s)
		}

		fileBtn := widget.NewButtonWithIcon("Open File", theme.FolderOpenIcon(), func() {
			dialog.ShowFileOpen(func(reader fyne.URIReadCloser, err error) {
				if err == nil && reader != nil {
					pathEntry.SetText(reader.URI().Path())
					reader.Close()
				}
			}, a.mainWin)
		})

		a.dynamicSettings.Add(widget.NewLabel("Video Path:"))
		a.dynamicSettings.Add(container.NewBorder(nil, nil, nil, fileBtn, pathEntry))

	case config.SourceWebcam:
		deviceInput := cwidget.NewIntInput(
			"Camera index",
			"Enter integer",
			a.config.GetDeviceID(),
			0,
			func(i int) {
				a.config.SetDeviceID(i)
			},
		)

		a.dynamicSettings.Add(deviceInput)
	}

	a.dynamicSettings.Refresh()
}
