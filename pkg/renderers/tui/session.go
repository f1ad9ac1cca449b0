// Package tui fills a form interactively in the terminal. Every field is
// prompted in declaration order, the CEP lookup runs once its prompt is
// answered, and the submit cycle repeats over the fields that failed until
// the form is accepted.
package tui

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/goliatone/go-opform/pkg/form"
	"github.com/goliatone/go-opform/pkg/submission"
)

// Form is the registry surface the session prompts against.
type Form interface {
	Fields() []form.Field
	StringValue(path form.Path) string
	SetFieldValue(path form.Path, value any) error
	Error(path form.Path) string
}

// Controller runs submits and blur lookups.
type Controller interface {
	SubmitCurrent(ctx context.Context) (submission.Result, error)
	ZipcodeBlurred(ctx context.Context) <-chan struct{}
}

// Session drives one fill-and-submit flow.
type Session struct {
	form        Form
	controller  Controller
	driver      PromptDriver
	out         io.Writer
	theme       Theme
	maxAttempts int
	logger      *slog.Logger
}

// NewSession builds a session with the survey driver and DefaultTheme.
func NewSession(f Form, ctrl Controller, options ...Option) (*Session, error) {
	if f == nil || ctrl == nil {
		return nil, errors.New("tui: form and controller are required")
	}
	s := &Session{
		form:       f,
		controller: ctrl,
		out:        os.Stdout,
		theme:      DefaultTheme,
		logger:     slog.Default(),
	}
	for _, opt := range options {
		if opt == nil {
			continue
		}
		opt(s)
	}
	if s.driver == nil {
		s.driver = NewSurveyDriver(s.out)
	}
	return s, nil
}

// Run prompts every field and submits. After a rejected submit the issues
// are shown, the user is asked whether to continue and only the fields with
// errors are prompted again. Declining returns the rejected result with a
// nil error.
func (s *Session) Run(ctx context.Context, title string) (submission.Result, error) {
	if title != "" {
		if err := s.driver.Info(ctx, s.theme.InfoPrefix+title); err != nil {
			return submission.Result{}, err
		}
	}

	onlyErrors := false
	for attempt := 1; ; attempt++ {
		if err := s.promptFields(ctx, onlyErrors); err != nil {
			return submission.Result{}, err
		}

		res, err := s.controller.SubmitCurrent(ctx)
		if err != nil {
			return submission.Result{}, err
		}
		if res.Accepted {
			s.logger.Debug("operation accepted", "submission_id", res.ID.String(), "attempts", attempt)
			return res, nil
		}

		if err := s.reportIssues(ctx, res); err != nil {
			return res, err
		}
		if s.maxAttempts > 0 && attempt >= s.maxAttempts {
			return res, ErrTooManyAttempts
		}
		retry, err := s.driver.Confirm(ctx, ConfirmConfig{
			Message: "Corrigir os campos com erro?",
			Default: true,
		})
		if err != nil {
			return res, err
		}
		if !retry {
			return res, nil
		}
		onlyErrors = true
	}
}

func (s *Session) promptFields(ctx context.Context, onlyErrors bool) error {
	for _, field := range s.form.Fields() {
		if onlyErrors && s.form.Error(field.Path) == "" {
			continue
		}
		if err := s.promptField(ctx, field); err != nil {
			return err
		}
		if field.BlurLookup {
			if err := s.blur(ctx); err != nil {
				return err
			}
		}
	}
	return nil
}

func (s *Session) promptField(ctx context.Context, field form.Field) error {
	switch field.Kind {
	case form.KindSelect, form.KindRadio:
		return s.promptChoice(ctx, field)
	default:
		return s.promptText(ctx, field)
	}
}

func (s *Session) promptText(ctx context.Context, field form.Field) error {
	value, err := s.driver.Input(ctx, InputConfig{
		Message: s.message(field),
		Default: s.form.StringValue(field.Path),
		Help:    help(field),
	})
	if err != nil {
		return err
	}
	return s.form.SetFieldValue(field.Path, value)
}

func (s *Session) promptChoice(ctx context.Context, field form.Field) error {
	options := field.OptionLabels()
	idx, err := s.driver.Select(ctx, SelectConfig{
		Message:      s.message(field),
		Options:      options,
		DefaultIndex: field.OptionIndex(s.form.StringValue(field.Path)),
		Help:         help(field),
	})
	if err != nil {
		return err
	}
	if idx < 0 || idx >= len(field.Options) {
		// leave the field as it was; the validator reports it on submit
		return nil
	}
	return s.form.SetFieldValue(field.Path, field.Options[idx].Value)
}

func (s *Session) blur(ctx context.Context) error {
	select {
	case <-s.controller.ZipcodeBlurred(ctx):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Session) reportIssues(ctx context.Context, res submission.Result) error {
	labels := make(map[form.Path]string)
	for _, field := range s.form.Fields() {
		labels[field.Path] = field.Label
	}
	for _, issue := range res.Issues {
		label := labels[issue.Path]
		if label == "" {
			label = issue.Path.String()
		}
		msg := fmt.Sprintf("%s%s: %s", s.theme.ErrorPrefix, label, issue.Message)
		if err := s.driver.Info(ctx, msg); err != nil {
			return err
		}
	}
	return nil
}

func (s *Session) message(field form.Field) string {
	if msg := s.form.Error(field.Path); msg != "" {
		return fmt.Sprintf("%s (%s)", field.Label, msg)
	}
	return field.Label
}

func help(field form.Field) string {
	if field.Mask != "" {
		return "formato " + field.Mask
	}
	return ""
}
