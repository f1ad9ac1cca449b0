package submission_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/uuid"

	"github.com/goliatone/go-opform/internal/logging"
	"github.com/goliatone/go-opform/pkg/form"
	"github.com/goliatone/go-opform/pkg/operation"
	"github.com/goliatone/go-opform/pkg/submission"
	"github.com/goliatone/go-opform/pkg/validation"
	"github.com/goliatone/go-opform/pkg/zipcode"
)

func validOperation() form.Data {
	return form.Data{
		"name":           "Operação Alfa",
		"date":           "2018-05-10",
		"hour":           "14:30",
		"status":         operation.StatusFinished,
		"friendlyForces": operation.FriendlyForcesPresent,
		"address": map[string]any{
			"zipcode":      "01310-100",
			"city":         "São Paulo",
			"state":        "SP",
			"street":       "Av Paulista",
			"neighborhood": "Bela Vista",
			"streetNumber": "1000",
			"complement":   "Sala 1",
		},
	}
}

func newRegistry(t *testing.T) *form.Registry {
	t.Helper()
	reg, err := operation.NewRegistry()
	if err != nil {
		t.Fatalf("registry: %v", err)
	}
	return reg
}

type recordingSink struct {
	mu   sync.Mutex
	subs []submission.Submission
	err  error
}

func (s *recordingSink) sink(_ context.Context, sub submission.Submission) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.subs = append(s.subs, sub)
	return nil
}

type stubLookup struct {
	addr  zipcode.Address
	ok    bool
	calls []string
	mu    sync.Mutex
	gate  map[string]chan struct{}
	addrs map[string]zipcode.Address
}

func (s *stubLookup) Lookup(ctx context.Context, code string) (zipcode.Address, bool) {
	s.mu.Lock()
	s.calls = append(s.calls, code)
	gate := s.gate[code]
	s.mu.Unlock()
	if gate != nil {
		<-gate
	}
	if addr, ok := s.addrs[code]; ok {
		return addr, true
	}
	return s.addr, s.ok
}

func (s *stubLookup) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.calls)
}

func quietLogger() submission.Option {
	return submission.WithLogger(logging.Discard())
}

func TestSubmit_SuccessResetsAndClearsErrors(t *testing.T) {
	reg := newRegistry(t)
	if err := reg.Load(validOperation()); err != nil {
		t.Fatalf("load: %v", err)
	}
	reg.SetErrors(map[form.Path]string{operation.Name: "stale"})

	sink := &recordingSink{}
	fixed := time.Date(2018, 5, 10, 14, 30, 0, 0, time.UTC)
	ctrl := submission.New(reg, submission.WithSink(sink.sink), submission.WithClock(func() time.Time { return fixed }), quietLogger())

	res, err := ctrl.SubmitCurrent(context.Background())
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if !res.Accepted || res.ID == uuid.Nil || len(res.Issues) != 0 {
		t.Fatalf("unexpected result %+v", res)
	}
	if len(reg.Errors()) != 0 {
		t.Fatalf("errors should be cleared, got %v", form.DottedKeys(reg.Errors()))
	}
	if diff := cmp.Diff(newRegistry(t).GetData(), reg.GetData()); diff != "" {
		t.Fatalf("registry not reset (-want +got):\n%s", diff)
	}

	if len(sink.subs) != 1 {
		t.Fatalf("expected one submission, got %d", len(sink.subs))
	}
	got := sink.subs[0]
	if got.ID != res.ID || !got.AcceptedAt.Equal(fixed) {
		t.Fatalf("unexpected submission metadata %+v", got)
	}
	if diff := cmp.Diff(validOperation(), got.Data); diff != "" {
		t.Fatalf("sink payload mismatch (-want +got):\n%s", diff)
	}
	if ctrl.State() != submission.Idle {
		t.Fatalf("expected idle after submit")
	}
}

func TestSubmit_FailureKeepsValuesAndSetsErrors(t *testing.T) {
	reg := newRegistry(t)
	data := validOperation()
	data["name"] = ""
	address := data["address"].(map[string]any)
	address["zipcode"] = "01310-1000"
	if err := reg.Load(data); err != nil {
		t.Fatalf("load: %v", err)
	}

	sink := &recordingSink{}
	ctrl := submission.New(reg, submission.WithSink(sink.sink), quietLogger())

	res, err := ctrl.SubmitCurrent(context.Background())
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if res.Accepted {
		t.Fatalf("expected rejection")
	}

	want := map[string]string{
		"name":            "O nome é obrigatório",
		"address.zipcode": "CEP deve ter no máximo 9 caracteres",
	}
	if diff := cmp.Diff(want, form.DottedKeys(reg.Errors())); diff != "" {
		t.Fatalf("errors mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(data, reg.GetData()); diff != "" {
		t.Fatalf("values must be kept (-want +got):\n%s", diff)
	}
	if len(sink.subs) != 0 {
		t.Fatalf("sink must not be called on rejection")
	}
}

func TestSubmit_FailureReplacesPreviousErrors(t *testing.T) {
	reg := newRegistry(t)
	ctrl := submission.New(reg, quietLogger())

	res, err := ctrl.SubmitCurrent(context.Background())
	if err != nil || res.Accepted {
		t.Fatalf("expected rejection, got %+v %v", res, err)
	}
	if reg.Error(operation.Name) == "" {
		t.Fatalf("expected name error")
	}

	data := validOperation()
	data["hour"] = ""
	if err := reg.Load(data); err != nil {
		t.Fatalf("load: %v", err)
	}
	if _, err := ctrl.SubmitCurrent(context.Background()); err != nil {
		t.Fatalf("submit: %v", err)
	}
	if diff := cmp.Diff(map[string]string{"hour": "A hora é obrigatório"}, form.DottedKeys(reg.Errors())); diff != "" {
		t.Fatalf("errors mismatch (-want +got):\n%s", diff)
	}
}

type failingValidator struct{ err error }

func (f failingValidator) Validate(form.Data) error { return f.err }

func TestSubmit_UnexpectedErrorPropagates(t *testing.T) {
	reg := newRegistry(t)
	if err := reg.Load(validOperation()); err != nil {
		t.Fatalf("load: %v", err)
	}
	reg.SetErrors(map[form.Path]string{operation.City: "kept"})

	boom := errors.New("boom")
	ctrl := submission.New(reg, submission.WithValidator(failingValidator{err: boom}), quietLogger())

	_, err := ctrl.SubmitCurrent(context.Background())
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
	if _, ok := validation.AsErrorSet(err); ok {
		t.Fatalf("unexpected error must not look like an ErrorSet")
	}
	if diff := cmp.Diff(validOperation(), reg.GetData()); diff != "" {
		t.Fatalf("registry must be untouched (-want +got):\n%s", diff)
	}
	if reg.Error(operation.City) != "kept" {
		t.Fatalf("errors must be untouched")
	}
}

func TestSubmit_SinkErrorSkipsReset(t *testing.T) {
	reg := newRegistry(t)
	if err := reg.Load(validOperation()); err != nil {
		t.Fatalf("load: %v", err)
	}
	sink := &recordingSink{err: errors.New("disk full")}
	ctrl := submission.New(reg, submission.WithSink(sink.sink), quietLogger())

	if _, err := ctrl.SubmitCurrent(context.Background()); err == nil {
		t.Fatalf("expected sink error")
	}
	if diff := cmp.Diff(validOperation(), reg.GetData()); diff != "" {
		t.Fatalf("registry must keep values (-want +got):\n%s", diff)
	}
}

func TestZipcodeBlurred_SkipsMalformedCode(t *testing.T) {
	reg := newRegistry(t)
	if err := reg.SetFieldValue(operation.Zipcode, "1234"); err != nil {
		t.Fatalf("set: %v", err)
	}
	before := reg.GetData()

	lookup := &stubLookup{ok: true, addr: zipcode.Address{City: "nope"}}
	ctrl := submission.New(reg, submission.WithLookup(lookup), quietLogger())

	<-ctrl.ZipcodeBlurred(context.Background())

	if lookup.callCount() != 0 {
		t.Fatalf("no lookup expected for a malformed code")
	}
	if diff := cmp.Diff(before, reg.GetData()); diff != "" {
		t.Fatalf("registry changed (-want +got):\n%s", diff)
	}
}

func TestZipcodeBlurred_FillsAddress(t *testing.T) {
	reg := newRegistry(t)
	if err := reg.SetFieldValue(operation.Zipcode, "01310-100"); err != nil {
		t.Fatalf("set: %v", err)
	}
	if err := reg.SetFieldValue(operation.StreetNumber, "1000"); err != nil {
		t.Fatalf("set: %v", err)
	}

	lookup := &stubLookup{ok: true, addr: zipcode.Address{
		State: "SP", Neighborhood: "Bela Vista", Street: "Av Paulista", City: "São Paulo",
	}}
	ctrl := submission.New(reg, submission.WithLookup(lookup), quietLogger())

	<-ctrl.ZipcodeBlurred(context.Background())

	want := map[string]string{
		"address.zipcode":      "01310-100",
		"address.state":        "SP",
		"address.neighborhood": "Bela Vista",
		"address.street":       "Av Paulista",
		"address.city":         "São Paulo",
		"address.streetNumber": "1000",
	}
	for dotted, value := range want {
		if got := reg.StringValue(form.ParsePath(dotted)); got != value {
			t.Fatalf("%s = %q, want %q", dotted, got, value)
		}
	}
}

func TestZipcodeBlurred_FailureLeavesRegistry(t *testing.T) {
	reg := newRegistry(t)
	if err := reg.SetFieldValue(operation.Zipcode, "99999-999"); err != nil {
		t.Fatalf("set: %v", err)
	}
	if err := reg.SetFieldValue(operation.City, "typed"); err != nil {
		t.Fatalf("set: %v", err)
	}
	before := reg.GetData()

	lookup := &stubLookup{ok: false}
	ctrl := submission.New(reg, submission.WithLookup(lookup), quietLogger())
	<-ctrl.ZipcodeBlurred(context.Background())

	if lookup.callCount() != 1 {
		t.Fatalf("expected one lookup, got %d", lookup.callCount())
	}
	if diff := cmp.Diff(before, reg.GetData()); diff != "" {
		t.Fatalf("registry changed (-want +got):\n%s", diff)
	}
}

func TestZipcodeBlurred_WithoutLookupIsNoop(t *testing.T) {
	reg := newRegistry(t)
	if err := reg.SetFieldValue(operation.Zipcode, "01310-100"); err != nil {
		t.Fatalf("set: %v", err)
	}
	ctrl := submission.New(reg, quietLogger())
	<-ctrl.ZipcodeBlurred(context.Background())
	if reg.StringValue(operation.City) != "" {
		t.Fatalf("city must stay empty")
	}
}

func TestZipcodeBlurred_CustomAddressPaths(t *testing.T) {
	paths := submission.AddressPaths{
		Zipcode:      form.NewPath("cep"),
		State:        form.NewPath("endereco", "uf"),
		Neighborhood: form.NewPath("endereco", "bairro"),
		Street:       form.NewPath("endereco", "logradouro"),
		City:         form.NewPath("endereco", "cidade"),
	}
	reg, err := form.NewRegistry(
		form.Field{Path: paths.Zipcode, Label: "CEP"},
		form.Field{Path: paths.State, Label: "UF"},
		form.Field{Path: paths.Neighborhood, Label: "Bairro"},
		form.Field{Path: paths.Street, Label: "Logradouro"},
		form.Field{Path: paths.City, Label: "Cidade"},
	)
	if err != nil {
		t.Fatalf("registry: %v", err)
	}
	if err := reg.SetFieldValue(paths.Zipcode, "01310-100"); err != nil {
		t.Fatalf("set: %v", err)
	}

	lookup := &stubLookup{ok: true, addr: zipcode.Address{
		State: "SP", Neighborhood: "Bela Vista", Street: "Av Paulista", City: "São Paulo",
	}}
	ctrl := submission.New(reg, submission.WithLookup(lookup), submission.WithAddressPaths(paths), quietLogger())
	<-ctrl.ZipcodeBlurred(context.Background())

	want := form.Data{
		"cep": "01310-100",
		"endereco": map[string]any{
			"uf":         "SP",
			"bairro":     "Bela Vista",
			"logradouro": "Av Paulista",
			"cidade":     "São Paulo",
		},
	}
	if diff := cmp.Diff(want, reg.GetData()); diff != "" {
		t.Fatalf("data mismatch (-want +got):\n%s", diff)
	}
}

func TestZipcodeBlurred_StaleGuard(t *testing.T) {
	run := func(t *testing.T, guard bool) string {
		reg := newRegistry(t)
		first, second := make(chan struct{}), make(chan struct{})
		lookup := &stubLookup{
			gate: map[string]chan struct{}{"11111-111": first, "22222-222": second},
			addrs: map[string]zipcode.Address{
				"11111-111": {City: "Old"},
				"22222-222": {City: "New"},
			},
		}
		opts := []submission.Option{submission.WithLookup(lookup), quietLogger()}
		if guard {
			opts = append(opts, submission.WithStaleLookupGuard())
		}
		ctrl := submission.New(reg, opts...)

		if err := reg.SetFieldValue(operation.Zipcode, "11111-111"); err != nil {
			t.Fatalf("set: %v", err)
		}
		doneOld := ctrl.ZipcodeBlurred(context.Background())
		if err := reg.SetFieldValue(operation.Zipcode, "22222-222"); err != nil {
			t.Fatalf("set: %v", err)
		}
		doneNew := ctrl.ZipcodeBlurred(context.Background())

		// newer response arrives first, older one last
		close(second)
		<-doneNew
		close(first)
		<-doneOld
		return reg.StringValue(operation.City)
	}

	if got := run(t, false); got != "Old" {
		t.Fatalf("without guard last response wins, got %q", got)
	}
	if got := run(t, true); got != "New" {
		t.Fatalf("with guard stale response is dropped, got %q", got)
	}
}

func TestZipcodeBlurred_StaleGuardNonMatchingBlur(t *testing.T) {
	reg := newRegistry(t)
	release := make(chan struct{})
	lookup := &stubLookup{
		gate:  map[string]chan struct{}{"11111-111": release},
		addrs: map[string]zipcode.Address{"11111-111": {City: "Old"}},
	}
	ctrl := submission.New(reg, submission.WithLookup(lookup), submission.WithStaleLookupGuard(), quietLogger())

	if err := reg.SetFieldValue(operation.Zipcode, "11111-111"); err != nil {
		t.Fatalf("set: %v", err)
	}
	doneOld := ctrl.ZipcodeBlurred(context.Background())
	if err := reg.SetFieldValue(operation.Zipcode, "2222"); err != nil {
		t.Fatalf("set: %v", err)
	}
	<-ctrl.ZipcodeBlurred(context.Background())

	close(release)
	<-doneOld

	if got := reg.StringValue(operation.City); got != "" {
		t.Fatalf("response for a superseded CEP must be dropped, city = %q", got)
	}
	if got := reg.StringValue(operation.Zipcode); got != "2222" {
		t.Fatalf("zipcode = %q", got)
	}
}

func TestEndToEnd_BlurThenSubmit(t *testing.T) {
	reg := newRegistry(t)
	lookup := &stubLookup{ok: true, addr: zipcode.Address{
		State: "SP", Neighborhood: "Bela Vista", Street: "Av Paulista", City: "São Paulo",
	}}
	sink := &recordingSink{}
	ctrl := submission.New(reg, submission.WithLookup(lookup), submission.WithSink(sink.sink), quietLogger())

	values := map[form.Path]string{
		operation.Name:           "Operação Alfa",
		operation.Date:           "2018-05-10",
		operation.Hour:           "14:30",
		operation.Status:         operation.StatusFinished,
		operation.FriendlyForces: operation.FriendlyForcesPresent,
		operation.Zipcode:        "01310-100",
		operation.StreetNumber:   "1000",
		operation.Complement:     "Sala 1",
	}
	for path, value := range values {
		if err := reg.SetFieldValue(path, value); err != nil {
			t.Fatalf("set %s: %v", path, err)
		}
	}
	<-ctrl.ZipcodeBlurred(context.Background())

	res, err := ctrl.SubmitCurrent(context.Background())
	if err != nil || !res.Accepted {
		t.Fatalf("expected acceptance, got %+v %v", res, err)
	}
	if diff := cmp.Diff(validOperation(), sink.subs[0].Data); diff != "" {
		t.Fatalf("payload mismatch (-want +got):\n%s", diff)
	}
}
