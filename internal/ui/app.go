package ui

import (
	"fmt"
	"sync"
	"time"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/app"
	"fyne.io/fyne/v2/canvas"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/data/binding"
	"fyne.io/fyne/v2/theme"
	"fyne.io/fyne/v2/widget"

	"facelab/internal/config"
	"facelab/internal/gallery"
	"facelab/internal/logging"
	"facelab/processing/detector"
	"facelab/processing/processor"
	"facelab/processing/recognizer"
)

type FaceApp struct {
	fyneApp fyne.App
	mainWin fyne.Window

	config     *config.Config
	configPath string
	processor  *processor.Processor
	engine     *recognizer.Engine
	registry   *detector.Registry

	dynamicSettings *fyne.Container
	staticSettings  *fyne.Container

	videoCanvas  *canvas.Image
	cameraOff    *widget.Label
	latencyLabel *widget.Label
	fpsLabel     *widget.Label
	status       binding.String

	cameraBtn    *widget.Button
	recognizeBtn *widget.Button
	methodSelect *widget.Select

	faceList *widget.List
	entries  []gallery.Entry
	selected int

	loopStop chan struct{}
	jobs     sync.WaitGroup
}

func CreateApp(cfg *config.Config, cfgPath string, p *processor.Processor, e *recognizer.Engine, r *detector.Registry) *FaceApp {
	return newFaceApp(app.New(), cfg, cfgPath, p, e, r)
}

func newFaceApp(fa fyne.App, cfg *config.Config, cfgPath string, p *processor.Processor, e *recognizer.Engine, r *detector.Registry) *FaceApp {
	w := fa.NewWindow("Face Recognition System")
	w.Resize(fyne.NewSize(1200, 700))

	return &FaceApp{
		fyneApp:    fa,
		mainWin:    w,
		config:     cfg,
		configPath: cfgPath,
		processor:  p,
		engine:     e,
		registry:   r,
		status:     binding.NewString(),
		selected:   -1,
	}
}

func (a *FaceApp) Run() {
	a.mainWin.SetContent(a.buildContent())

	a.refreshSettingsUI(string(a.config.GetSource()))
	a.refreshList()
	a.setStatus("Ready")

	a.mainWin.SetCloseIntercept(a.shutdown)

	a.mainWin.CenterOnScreen()
	a.mainWin.ShowAndRun()
}

func (a *FaceApp) buildContent() fyne.CanvasObject {
	a.dynamicSettings = container.NewVBox()

	sourceTypeSelect := widget.NewSelect(config.SourcesList[:], nil)
	sourceTypeSelect.SetSelected(string(a.config.GetSource()))
	sourceTypeSelect.OnChanged = func(s string) {
		a.config.SetSource(config.SourceType(s))
		a.refreshSettingsUI(s)
	}

	a.videoCanvas = canvas.NewImageFromImage(nil)
	a.videoCanvas.FillMode = canvas.ImageFillContain
	a.videoCanvas.SetMinSize(fyne.NewSize(640, 480))

	a.cameraOff = widget.NewLabelWithStyle("Camera Off", fyne.TextAlignCenter, fyne.TextStyle{Bold: true})

	a.latencyLabel = widget.NewLabel(formatLatency(0))
	a.fpsLabel = widget.NewLabel(formatFPS(0))

	videoContainer := container.NewBorder(
		container.NewHBox(a.fpsLabel, widget.NewSeparator(), a.latencyLabel),
		nil, nil, nil,
		container.NewStack(a.videoCanvas, container.NewCenter(a.cameraOff)),
	)

	a.setupConfigSettings()

	a.cameraBtn = widget.NewButtonWithIcon("Start Camera", theme.MediaPlayIcon(), a.toggleCamera)
	addBtn := widget.NewButtonWithIcon("Add New Face", theme.ContentAddIcon(), a.showAddFaceDialog)
	a.recognizeBtn = widget.NewButtonWithIcon("Recognize Faces", theme.SearchIcon(), a.toggleRecognition)

	a.setupMethodSelect()

	sidebar := container.NewVBox(
		widget.NewLabelWithStyle("Controls", fyne.TextAlignLeading, fyne.TextStyle{Bold: true}),
		widget.NewSeparator(),
		widget.NewLabel("Source Type:"),
		sourceTypeSelect,
		a.dynamicSettings,
		widget.NewSeparator(),
		a.cameraBtn,
		addBtn,
		a.recognizeBtn,
		widget.NewLabel("Detection Method:"),
		a.methodSelect,
		widget.NewSeparator(),
		a.staticSettings,
	)

	a.faceList = widget.NewList(
		func() int { return len(a.entries) },
		func() fyne.CanvasObject { return widget.NewLabel("") },
		func(id widget.ListItemID, o fyne.CanvasObject) {
			o.(*widget.Label).SetText(formatEntry(a.entries[id]))
		},
	)
	a.faceList.OnSelected = func(id widget.ListItemID) { a.selected = id }
	a.faceList.OnUnselected = func(widget.ListItemID) { a.selected = -1 }

	listPanel := container.NewBorder(
		widget.NewLabelWithStyle("Registered Faces", fyne.TextAlignLeading, fyne.TextStyle{Bold: true}),
		container.NewGridWithColumns(2,
			widget.NewButtonWithIcon("Delete Selected", theme.DeleteIcon(), a.deleteSelected),
			widget.NewButtonWithIcon("Clear All", theme.ContentClearIcon(), a.clearAll),
		),
		nil, nil,
		a.faceList,
	)

	left := container.NewVSplit(container.NewVScroll(sidebar), listPanel)
	left.SetOffset(0.6)

	split := container.NewHSplit(
		container.NewPadded(left),
		container.NewPadded(videoContainer),
	)
	split.SetOffset(0.3)

	statusBar := container.NewHBox(widget.NewIcon(theme.InfoIcon()), widget.NewLabelWithData(a.status))

	return container.NewBorder(nil, statusBar, nil, nil, split)
}

func (a *FaceApp) setupMethodSelect() {
	methods := a.registry.Methods()
	a.methodSelect = widget.NewSelect(methods, nil)

	if len(methods) == 0 {
		a.methodSelect.PlaceHolder = "No detector loaded"
		a.methodSelect.Disable()
		return
	}

	a.methodSelect.SetSelected(a.registry.Resolve(a.processor.Method()))
	a.methodSelect.OnChanged = a.changeMethod
}

func (a *FaceApp) changeMethod(method string) {
	a.processor.SetMethod(method)
	a.config.SetMethod(method)
	a.setStatus(fmt.Sprintf("Detection method changed to: %s", method))
}

// shutdown runs on window close. Pending enroll/delete jobs finish before the
// config is written.
func (a *FaceApp) shutdown() {
	a.stopCamera()
	a.jobs.Wait()
	a.registry.Close()

	if err := a.config.Save(a.configPath); err != nil {
		logging.WithError(err).Error("could not save config")
	}

	a.mainWin.Close()
}

func (a *FaceApp) setStatus(s string) {
	if err := a.status.Set(s); err != nil {
		logging.WithError(err).Debug("status update")
	}
}

func formatFPS(v uint) string {
	return fmt.Sprintf("FPS: %d", v)
}

func formatLatency(v time.Duration) string {
	return fmt.Sprintf("Latency: %d ms", v.Milliseconds())
}

func formatEntry(e gallery.Entry) string {
	return fmt.Sprintf("%s (%d samples)", e.Name, e.Samples)
}
