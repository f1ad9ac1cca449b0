// Package submission orchestrates the submit cycle of a form: validate the
// registry contents, then either reset the form or attach per-field errors.
// It also drives the address lookup triggered when the CEP field loses focus.
package submission

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/goliatone/go-opform/internal/metrics"
	"github.com/goliatone/go-opform/pkg/form"
	"github.com/goliatone/go-opform/pkg/operation"
	"github.com/goliatone/go-opform/pkg/validation"
	"github.com/goliatone/go-opform/pkg/zipcode"
)

// Registry is the field surface the controller reads and writes.
type Registry interface {
	GetData() form.Data
	SetFieldValue(path form.Path, value any) error
	SetErrors(messages map[form.Path]string)
	Reset()
}

// Validator checks a full payload. It returns nil, a validation.ErrorSet,
// or an unexpected error.
type Validator interface {
	Validate(data form.Data) error
}

// AddressLookup resolves a CEP; false means no address.
type AddressLookup interface {
	Lookup(ctx context.Context, code string) (zipcode.Address, bool)
}

// Submission is an accepted payload.
type Submission struct {
	ID         uuid.UUID `json:"id"`
	Data       form.Data `json:"data"`
	AcceptedAt time.Time `json:"accepted_at"`
}

// Sink receives accepted submissions before the form is reset. An error
// from the sink is unexpected and aborts the submit without resetting.
type Sink func(ctx context.Context, sub Submission) error

// Result describes one submit. Issues is empty when Accepted is true.
type Result struct {
	Accepted bool
	ID       uuid.UUID
	Issues   validation.ErrorSet
}

// AddressPaths tells the controller where the CEP and the looked-up parts
// live in the registry.
type AddressPaths struct {
	Zipcode      form.Path
	State        form.Path
	Neighborhood form.Path
	Street       form.Path
	City         form.Path
}

// OperationAddress is the address layout of the operation form.
var OperationAddress = AddressPaths{
	Zipcode:      operation.Zipcode,
	State:        operation.State,
	Neighborhood: operation.Neighborhood,
	Street:       operation.Street,
	City:         operation.City,
}

// Controller runs submits and blur lookups against one registry.
type Controller struct {
	registry   Registry
	validator  Validator
	lookup     AddressLookup
	sink       Sink
	address    AddressPaths
	logger     *slog.Logger
	metrics    *metrics.Recorder
	now        func() time.Time
	staleGuard bool

	inflight   atomic.Int32
	generation atomic.Uint64
}

// Option configures a Controller.
type Option func(*Controller)

// WithValidator replaces the operation schema.
func WithValidator(v Validator) Option {
	return func(c *Controller) {
		if v != nil {
			c.validator = v
		}
	}
}

// WithLookup enables blur lookups. Without it ZipcodeBlurred is a no-op.
func WithLookup(l AddressLookup) Option {
	return func(c *Controller) {
		c.lookup = l
	}
}

// WithSink replaces the default sink, which logs accepted submissions.
func WithSink(s Sink) Option {
	return func(c *Controller) {
		if s != nil {
			c.sink = s
		}
	}
}

// WithAddressPaths points the lookup at a different address layout.
func WithAddressPaths(paths AddressPaths) Option {
	return func(c *Controller) {
		c.address = paths
	}
}

// WithLogger sets the controller logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Controller) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithMetrics records submit and stale lookup outcomes.
func WithMetrics(rec *metrics.Recorder) Option {
	return func(c *Controller) {
		c.metrics = rec
	}
}

// WithClock overrides time.Now for accepted submissions.
func WithClock(now func() time.Time) Option {
	return func(c *Controller) {
		if now != nil {
			c.now = now
		}
	}
}

// WithStaleLookupGuard discards a lookup response when a newer blur has
// happened since it was issued, even one whose CEP starts no lookup. Without it the last response to arrive wins.
func WithStaleLookupGuard() Option {
	return func(c *Controller) {
		c.staleGuard = true
	}
}

// New builds a controller for reg validating with operation.Schema().
func New(reg Registry, options ...Option) *Controller {
	c := &Controller{
		registry:  reg,
		validator: operation.Schema(),
		address:   OperationAddress,
		logger:    slog.Default(),
		now:       time.Now,
	}
	for _, opt := range options {
		if opt == nil {
			continue
		}
		opt(c)
	}
	if c.sink == nil {
		c.sink = LogSink(c.logger)
	}
	return c
}

// State reports whether a submit is being validated right now.
func (c *Controller) State() State {
	if c.inflight.Load() > 0 {
		return Validating
	}
	return Idle
}

// SubmitCurrent submits whatever the registry holds.
func (c *Controller) SubmitCurrent(ctx context.Context) (Result, error) {
	return c.Submit(ctx, c.registry.GetData())
}

// Submit validates data. On success the sink receives the payload, every
// error is cleared and every field is reset. On validation failure each
// issue is written into the registry and values are kept. Any other error
// is returned untouched by the registry.
func (c *Controller) Submit(ctx context.Context, data form.Data) (Result, error) {
	c.inflight.Add(1)
	defer c.inflight.Add(-1)

	err := c.validator.Validate(data)
	if err == nil {
		return c.accept(ctx, data)
	}

	issues, ok := validation.AsErrorSet(err)
	if !ok {
		c.metrics.Submission(metrics.OutcomeError)
		return Result{}, fmt.Errorf("submission: validate: %w", err)
	}

	c.registry.SetErrors(issues.Messages())
	c.metrics.Submission(metrics.OutcomeRejected)
	c.logger.Debug("operation rejected", "issues", len(issues))
	return Result{Issues: issues}, nil
}

func (c *Controller) accept(ctx context.Context, data form.Data) (Result, error) {
	sub := Submission{
		ID:         uuid.New(),
		Data:       data.Clone(),
		AcceptedAt: c.now(),
	}
	if err := c.sink(ctx, sub); err != nil {
		c.metrics.Submission(metrics.OutcomeError)
		return Result{}, fmt.Errorf("submission: sink: %w", err)
	}

	c.registry.SetErrors(nil)
	c.registry.Reset()
	c.metrics.Submission(metrics.OutcomeAccepted)
	return Result{Accepted: true, ID: sub.ID}, nil
}

// ZipcodeBlurred starts the address lookup for the current CEP. When the
// CEP does not match 99999-999, or no lookup is configured, nothing happens
// and the returned channel is already closed. Otherwise the lookup runs in
// the background, writes state, neighborhood, street and city on success,
// and closes the channel when done. Failures leave the registry untouched.
func (c *Controller) ZipcodeBlurred(ctx context.Context) <-chan struct{} {
	done := make(chan struct{})

	// Every blur supersedes lookups already in flight, including blurs
	// that start no lookup of their own.
	gen := c.generation.Add(1)

	value, _ := c.registry.GetData().Get(c.address.Zipcode)
	code, _ := value.(string)
	if c.lookup == nil || !zipcode.Matches(code) {
		close(done)
		return done
	}

	go func() {
		defer close(done)

		addr, ok := c.lookup.Lookup(ctx, code)
		if !ok {
			return
		}
		if c.staleGuard && c.generation.Load() != gen {
			c.metrics.Lookup(metrics.OutcomeStale)
			c.logger.Debug("stale zipcode response discarded", "zipcode", code)
			return
		}
		c.applyAddress(addr)
	}()
	return done
}

func (c *Controller) applyAddress(addr zipcode.Address) {
	updates := []struct {
		path  form.Path
		value string
	}{
		{c.address.State, addr.State},
		{c.address.Neighborhood, addr.Neighborhood},
		{c.address.Street, addr.Street},
		{c.address.City, addr.City},
	}
	for _, u := range updates {
		if err := c.registry.SetFieldValue(u.path, u.value); err != nil {
			c.logger.Warn("apply looked-up address", "path", u.path.String(), "error", err)
		}
	}
}

// LogSink logs accepted submissions at info level.
func LogSink(logger *slog.Logger) Sink {
	return func(_ context.Context, sub Submission) error {
		logger.Info("operation submitted",
			"submission_id", sub.ID.String(),
			"data", map[string]any(sub.Data),
		)
		return nil
	}
}
