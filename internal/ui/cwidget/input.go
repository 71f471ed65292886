package cwidget

import (
	"fmt"
	"strconv"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/widget"
	"github.com/pkg/errors"
)

// Input is a labelled entry that validates its text into a T and shows the
// current value in the label.
type Input[T any] struct {
	widget.BaseWidget

	labelWidget *widget.Label
	entryWidget *widget.Entry
	errorWidget *widget.Label

	LabelText   string
	Placeholder string

	DefaultValue T

	OnChanged func(T)

	Validator func(string) (T, error)
	Format    func(T) string
}

func newInput[T any](label, placeholder string, defaultValue T, format func(T) string,
	validator func(string) (T, error), onChanged func(T)) *Input[T] {

	input := &Input[T]{
		LabelText:    label,
		Placeholder:  placeholder,
		OnChanged:    onChanged,
		DefaultValue: defaultValue,
		Validator:    validator,
		Format:       format,
	}

	input.labelWidget = widget.NewLabel(input.caption(defaultValue))
	input.labelWidget.TextStyle = fyne.TextStyle{Bold: true}

	input.entryWidget = widget.NewEntry()
	input.entryWidget.SetPlaceHolder(placeholder)

	input.errorWidget = widget.NewLabel("")
	input.errorWidget.Hidden = true
	input.errorWidget.TextStyle = fyne.TextStyle{Italic: true}
	input.errorWidget.Importance = widget.DangerImportance

	input.entryWidget.OnChanged = func(s string) {
		res, err := input.Validator(s)
		input.SetError(err)

		if err == nil {
			if input.OnChanged != nil {
				input.OnChanged(res)
			}
			input.labelWidget.SetText(input.caption(res))
		}
	}

	input.ExtendBaseWidget(input)

	return input
}

func (item *Input[T]) caption(v T) string {
	return fmt.Sprintf("%s: %s", item.LabelText, item.Format(v))
}

// NewIntInput accepts integers no smaller than min. Empty text means the default.
func NewIntInput(label, placeholder string, defaultValue, min int, onChanged func(int)) *Input[int] {
	validator := func(s string) (int, error) {
		if s == "" {
			return defaultValue, nil
		}

		res, err := strconv.Atoi(s)
		if err != nil {
			return defaultValue, errors.New("not an integer")
		}

		if res < min {
			return defaultValue, errors.Errorf("must be at least %d", min)
		}

		return res, nil
	}

	return newInput(label, placeholder, defaultValue, strconv.Itoa, validator, onChanged)
}

// NewFloatInput accepts numbers strictly greater than zero.
func NewFloatInput(label, placeholder string, defaultValue float64, onChanged func(float64)) *Input[float64] {
	validator := func(s string) (float64, error) {
		if s == "" {
			return defaultValue, nil
		}

		res, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return defaultValue, errors.New("not a number")
		}

		if res <= 0 {
			return defaultValue, errors.New("must be positive")
		}

		return res, nil
	}

	format := func(v float64) string { return strconv.FormatFloat(v, 'f', -1, 64) }

	return newInput(label, placeholder, defaultValue, format, validator, onChanged)
}

func (item *Input[T]) CreateRenderer() fyne.WidgetRenderer {
	c := container.NewVBox(
		item.labelWidget,
		item.entryWidget,
		item.errorWidget,
	)

	return widget.NewSimpleRenderer(c)
}

func (item *Input[T]) SetError(err error) {
	item.errorWidget.Hidden = err == nil
	if err != nil {
		item.errorWidget.SetText(err.Error())
	}
	item.errorWidget.Refresh()
}

func (item *Input[T]) SetText(text string) {
	item.entryWidget.SetText(text)
}
