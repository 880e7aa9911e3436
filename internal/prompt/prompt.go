// Package prompt asks for placeholder values on the terminal.
package prompt

import (
	"context"
	"errors"
	"fmt"

	"github.com/AlecAivazis/survey/v2"
	"github.com/AlecAivazis/survey/v2/terminal"

	"github.com/hyperjump/docfill/internal/models"
)

// ErrAborted is returned when the user interrupts a prompt.
var ErrAborted = errors.New("prompt aborted")

// InputConfig configures a single text prompt.
type InputConfig struct {
	Message string
	Default string
	Help    string
}

// Driver abstracts the terminal so value collection can be tested without one.
type Driver interface {
	Input(ctx context.Context, cfg InputConfig) (string, error)
	Confirm(ctx context.Context, message string, def bool) (bool, error)
}

type surveyDriver struct{}

// NewSurveyDriver returns a Driver backed by github.com/AlecAivazis/survey/v2.
func NewSurveyDriver() Driver {
	return &surveyDriver{}
}

func (d *surveyDriver) Input(ctx context.Context, cfg InputConfig) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	var out string
	p := &survey.Input{
		Message: cfg.Message,
		Help:    cfg.Help,
		Default: cfg.Default,
	}
	if err := survey.AskOne(p, &out); err != nil {
		return "", translateSurveyErr(err)
	}
	return out, nil
}

func (d *surveyDriver) Confirm(ctx context.Context, message string, def bool) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	var out bool
	if err := survey.AskOne(&survey.Confirm{Message: message, Default: def}, &out); err != nil {
		return false, translateSurveyErr(err)
	}
	return out, nil
}

func translateSurveyErr(err error) error {
	if errors.Is(err, terminal.InterruptErr) {
		return ErrAborted
	}
	return err
}

// Collect asks for every name in order that has no entry in known and
// returns the answers merged over a copy of known. Existing entries are not
// asked again.
func Collect(ctx context.Context, d Driver, names []string, known models.ValueMap) (models.ValueMap, error) {
	out := known.Clone()
	for i, name := range names {
		if _, ok := out[name]; ok {
			continue
		}
		answer, err := d.Input(ctx, InputConfig{
			Message: fmt.Sprintf("%s:", name),
			Help:    fmt.Sprintf("Value for {%s} (%d of %d). Leave empty to insert nothing.", name, i+1, len(names)),
		})
		if err != nil {
			return nil, fmt.Errorf("value for %q: %w", name, err)
		}
		out[name] = answer
	}
	return out, nil
}
