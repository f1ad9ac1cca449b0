package web

import (
	"bytes"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"

	"github.com/goliatone/go-opform/pkg/form"
	"github.com/goliatone/go-opform/pkg/operation"
	"github.com/goliatone/go-opform/pkg/submission"
	"github.com/goliatone/go-opform/pkg/validation"
)

const (
	maxBodyBytes = 1 << 20
	lookupPrefix = "/api/zipcodes/"
)

type optionView struct {
	Value    string
	Label    string
	Selected bool
}

type fieldView struct {
	ID         string
	Name       string
	Label      string
	Kind       string
	InputType  string
	Value      string
	Error      string
	Mask       string
	Min        string
	BlurLookup bool
	Options    []optionView
}

type acceptedResponse struct {
	ID string `json:"id"`
}

type issuesResponse struct {
	Errors validation.ErrorSet `json:"errors"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) handleForm(w http.ResponseWriter, r *http.Request) {
	reg, err := operation.NewRegistry()
	if err != nil {
		s.internalError(w, "build registry", err)
		return
	}
	s.renderForm(w, reg, http.StatusOK, r.URL.Query().Get("saved"))
}

func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	reg, err := operation.NewRegistry()
	if err != nil {
		s.internalError(w, "build registry", err)
		return
	}
	ctrl := submission.New(reg,
		submission.WithSink(s.sink),
		submission.WithLogger(s.logger),
		submission.WithMetrics(s.metrics),
	)

	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if isJSON(r) {
		s.submitJSON(w, r, ctrl)
		return
	}
	s.submitForm(w, r, reg, ctrl)
}

func (s *Server) submitJSON(w http.ResponseWriter, r *http.Request, ctrl *submission.Controller) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "could not read body"})
		return
	}
	var raw any
	if err := json.Unmarshal(body, &raw); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "malformed JSON"})
		return
	}
	payload, _ := normalizeData(raw).(map[string]any)
	if payload == nil {
		payload = map[string]any{}
	}

	res, err := ctrl.Submit(r.Context(), form.Data(payload))
	if err != nil {
		s.internalError(w, "submit operation", err)
		return
	}
	if !res.Accepted {
		writeJSON(w, http.StatusUnprocessableEntity, issuesResponse{Errors: res.Issues})
		return
	}
	writeJSON(w, http.StatusCreated, acceptedResponse{ID: res.ID.String()})
}

func (s *Server) submitForm(w http.ResponseWriter, r *http.Request, reg *form.Registry, ctrl *submission.Controller) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	for _, field := range reg.Fields() {
		values, ok := r.PostForm[field.Path.String()]
		if !ok || len(values) == 0 {
			continue
		}
		if err := reg.SetFieldValue(field.Path, normalizeValue(values[0])); err != nil {
			http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
			return
		}
	}

	res, err := ctrl.SubmitCurrent(r.Context())
	if err != nil {
		s.internalError(w, "submit operation", err)
		return
	}
	if !res.Accepted {
		s.renderForm(w, reg, http.StatusUnprocessableEntity, "")
		return
	}
	http.Redirect(w, r, "/?saved="+url.QueryEscape(res.ID.String()), http.StatusSeeOther)
}

func (s *Server) handleZipcode(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "zipcode")
	if s.lookup == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	addr, ok := s.lookup.Lookup(r.Context(), code)
	if !ok {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	writeJSON(w, http.StatusOK, addr)
}

func (s *Server) handleContract(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(s.contractJSON)
}

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) renderForm(w http.ResponseWriter, reg *form.Registry, status int, saved string) {
	fields := reg.Fields()
	views := make([]fieldView, 0, len(fields))
	for _, field := range fields {
		views = append(views, buildFieldView(reg, field))
	}

	var buf bytes.Buffer
	err := s.view.Render(&buf, "form", map[string]any{
		"title":         operation.Title,
		"submit_label":  operation.SubmitLabel,
		"action":        "/operations",
		"lookup_url":    lookupPrefix,
		"address_scope": operation.AddressScope,
		"fields":        views,
		"saved":         saved,
	})
	if err != nil {
		s.internalError(w, "render form", err)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}

func buildFieldView(reg *form.Registry, field form.Field) fieldView {
	name := field.Path.String()
	value := reg.StringValue(field.Path)
	fv := fieldView{
		ID:         "field-" + strings.ReplaceAll(name, ".", "-"),
		Name:       name,
		Label:      field.Label,
		Kind:       string(field.Kind),
		InputType:  "text",
		Value:      value,
		Error:      reg.Error(field.Path),
		Mask:       field.Mask,
		Min:        field.Min,
		BlurLookup: field.BlurLookup,
	}
	switch field.Kind {
	case form.KindDate:
		fv.InputType = "date"
	case form.KindTime:
		fv.InputType = "time"
	}
	for _, option := range field.Options {
		label := option.Label
		if label == "" {
			label = option.Value
		}
		fv.Options = append(fv.Options, optionView{
			Value:    option.Value,
			Label:    label,
			Selected: option.Value == value,
		})
	}
	return fv
}

func (s *Server) internalError(w http.ResponseWriter, what string, err error) {
	s.logger.Error(what, "error", err)
	http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
}

func isJSON(r *http.Request) bool {
	mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if err != nil {
		return false
	}
	return mediaType == "application/json" || strings.HasSuffix(mediaType, "+json")
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(true)
	_ = enc.Encode(payload)
}
