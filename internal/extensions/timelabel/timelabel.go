package timelabel

import (
	"errors"
	"strings"
)

// Extension renames the logged-in time field of every payload.
type Extension struct {
	label string
}

// New returns an extension that replaces the time label with label.
func New(label string) *Extension { return &Extension{label: label} }

// NewWithOptions reads the replacement from the "label" option.
func NewWithOptions(opts map[string]any) (*Extension, error) {
	label, _ := opts["label"].(string)
	label = strings.TrimSpace(label)
	if label == "" {
		return nil, errors.New(`option "label" must be a non-empty string`)
	}
	return New(label), nil
}

func (e *Extension) Name() string { return "time-label" }

func (e *Extension) LoggedInTimeLabel(string) string { return e.label }
