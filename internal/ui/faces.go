package ui

import (
	"fmt"
	"strings"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/widget"

	"facelab/internal/logging"
)

func (a *FaceApp) warn(msg string) {
	a.setStatus(msg)
	dialog.ShowInformation("Warning", msg, a.mainWin)
}

func (a *FaceApp) showAddFaceDialog() {
	if !a.processor.IsActive() {
		a.warn("Please start the camera first")
		return
	}
	if a.processor.Capturing() {
		a.warn("A capture is already in progress")
		return
	}

	nameEntry := widget.NewEntry()
	nameEntry.SetPlaceHolder("Person name")

	items := []*widget.FormItem{widget.NewFormItem("Name", nameEntry)}

	d := dialog.NewForm("Add New Face", "Capture", "Cancel", items, func(ok bool) {
		if !ok {
			return
		}
		a.addFace(nameEntry.Text)
	}, a.mainWin)

	nameEntry.OnSubmitted = func(string) { d.Submit() }

	d.Resize(fyne.NewSize(320, 160))
	d.Show()
	a.mainWin.Canvas().Focus(nameEntry)
}

func (a *FaceApp) addFace(raw string) {
	name := strings.TrimSpace(raw)
	if name == "" {
		a.warn("Please enter a name")
		return
	}

	if a.engine.Gallery().Has(name) {
		msg := fmt.Sprintf("Person '%s' already exists. Add more samples?", name)
		dialog.ShowConfirm("Confirm", msg, func(yes bool) {
			if yes {
				a.captureSamples(name)
			}
		}, a.mainWin)
		return
	}

	a.captureSamples(name)
}

func (a *FaceApp) captureSamples(name string) {
	if !a.processor.IsActive() {
		a.warn("Please start the camera first")
		return
	}

	target := a.config.GetSampleCount()
	a.setStatus(fmt.Sprintf("Capturing %d samples for %s... Look at the camera and move slightly", target, name))
	a.processor.StartCapture(name, target, a.onCaptureDone)
}

// onCaptureDone may be called from the processing goroutine or from Stop on
// the UI goroutine, so the retrain always runs in its own goroutine.
func (a *FaceApp) onCaptureDone(name string, patches [][]byte) {
	a.jobs.Add(1)

	go func() {
		defer a.jobs.Done()

		if len(patches) == 0 {
			fyne.Do(func() {
				a.warn("No face was detected. Please try again.")
			})
			return
		}

		_, err := a.engine.Enroll(name, patches)
		if err != nil {
			logging.WithError(err).Errorf("enroll %s", name)
		}

		fyne.Do(func() {
			a.refreshList()
			if err != nil {
				a.setStatus(fmt.Sprintf("Could not save samples for %s", name))
				dialog.ShowError(err, a.mainWin)
				return
			}
			msg := fmt.Sprintf("Added %d face samples for %s", len(patches), name)
			a.setStatus(msg)
			dialog.ShowInformation("Success", msg, a.mainWin)
		})
	}()
}

func (a *FaceApp) toggleRecognition() {
	if a.processor.Recognizing() {
		a.processor.SetRecognition(false)
		a.recognizeBtn.SetText("Recognize Faces")
		a.setStatus("Recognition stopped")
		return
	}

	if !a.processor.IsActive() {
		a.warn("Please start the camera first")
		return
	}
	if a.engine.Gallery().Len() == 0 {
		a.warn("No face data available. Please add faces first.")
		return
	}

	a.processor.SetRecognition(true)
	a.recognizeBtn.SetText("Stop Recognition")
	a.setStatus("Recognition active")
}

func (a *FaceApp) deleteSelected() {
	if a.selected < 0 || a.selected >= len(a.entries) {
		a.warn("Please select a person to delete")
		return
	}

	name := a.entries[a.selected].Name
	msg := fmt.Sprintf("Delete all data for '%s'?", name)

	dialog.ShowConfirm("Confirm Delete", msg, func(yes bool) {
		if !yes {
			return
		}
		a.runJob(func() error { return a.engine.Delete(name) }, fmt.Sprintf("Deleted data for %s", name))
	}, a.mainWin)
}

func (a *FaceApp) clearAll() {
	dialog.ShowConfirm("Confirm Clear", "Delete all face data?", func(yes bool) {
		if !yes {
			return
		}
		a.runJob(a.engine.Clear, "All face data cleared")
	}, a.mainWin)
}

// runJob runs a gallery mutation off the UI goroutine and reports the result.
func (a *FaceApp) runJob(job func() error, done string) {
	a.jobs.Add(1)

	go func() {
		defer a.jobs.Done()

		err := job()
		if err != nil {
			logging.WithError(err).Error("face data update failed")
		}

		fyne.Do(func() {
			a.refreshList()
			if err != nil {
				a.setStatus("Face data update failed")
				dialog.ShowError(err, a.mainWin)
				return
			}
			a.setStatus(done)
			a.afterGalleryChange()
		})
	}()
}

// afterGalleryChange turns recognition off once no samples remain.
func (a *FaceApp) afterGalleryChange() {
	if a.engine.Gallery().Len() == 0 && a.processor.Recognizing() {
		a.processor.SetRecognition(false)
		a.recognizeBtn.SetText("Recognize Faces")
	}
}

func (a *FaceApp) refreshList() {
	a.entries = a.engine.Gallery().Counts()
	a.selected = -1
	a.faceList.UnselectAll()
	a.faceList.Refresh()
}
