// Package view renders HTML pages with pongo2 templates loaded from an
// fs.FS. The embedded templates are used unless another FS is supplied.
package view

import (
	"bytes"
	"embed"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"strings"
	"sync"

	"github.com/flosch/pongo2/v6"
)

//go:embed templates/*.html
var embedded embed.FS

// Templates exposes the embedded template files.
func Templates() fs.FS {
	sub, err := fs.Sub(embedded, "templates")
	if err != nil {
		panic(err)
	}
	return sub
}

// Option configures the engine before construction.
type Option func(*config)

type config struct {
	templates  fs.FS
	extension  string
	globalData map[string]any
	dev        bool
}

// WithFS loads templates from files instead of the embedded set.
func WithFS(files fs.FS) Option {
	return func(cfg *config) {
		cfg.templates = files
	}
}

// WithExtension overrides the default template extension.
func WithExtension(ext string) Option {
	return func(cfg *config) {
		trimmed := strings.TrimSpace(ext)
		if trimmed == "" {
			return
		}
		if !strings.HasPrefix(trimmed, ".") {
			trimmed = "." + trimmed
		}
		cfg.extension = trimmed
	}
}

// WithGlobalData seeds values available to every template.
func WithGlobalData(data map[string]any) Option {
	return func(cfg *config) {
		if len(data) == 0 {
			return
		}
		if cfg.globalData == nil {
			cfg.globalData = make(map[string]any, len(data))
		}
		for key, value := range data {
			cfg.globalData[strings.TrimSpace(key)] = value
		}
	}
}

// WithDevMode disables the compiled template cache so edits show up on
// the next request.
func WithDevMode(dev bool) Option {
	return func(cfg *config) {
		cfg.dev = dev
	}
}

// Engine renders named templates.
type Engine struct {
	mu sync.RWMutex

	templateSet *pongo2.TemplateSet
	templates   map[string]*pongo2.Template
	tplExt      string
	dev         bool
}

// New constructs an Engine.
func New(options ...Option) (*Engine, error) {
	cfg := &config{
		extension: ".html",
	}
	for _, opt := range options {
		if opt == nil {
			continue
		}
		opt(cfg)
	}
	if cfg.templates == nil {
		cfg.templates = Templates()
	}

	engine := &Engine{
		templateSet: pongo2.NewSet("opform", pongo2.NewFSLoader(cfg.templates)),
		templates:   make(map[string]*pongo2.Template),
		tplExt:      cfg.extension,
		dev:         cfg.dev,
	}
	engine.templateSet.Debug = cfg.dev

	if len(cfg.globalData) > 0 {
		if engine.templateSet.Globals == nil {
			engine.templateSet.Globals = make(pongo2.Context)
		}
		engine.templateSet.Globals.Update(pongo2.Context(cfg.globalData))
	}
	return engine, nil
}

// Render executes the named template with data and writes the result to w.
// Nothing is written when execution fails.
func (e *Engine) Render(w io.Writer, name string, data map[string]any) error {
	if e == nil || e.templateSet == nil {
		return errors.New("view: engine is nil")
	}
	templatePath := name
	if !strings.HasSuffix(templatePath, e.tplExt) {
		templatePath += e.tplExt
	}

	tmpl, err := e.getTemplate(templatePath)
	if err != nil {
		return err
	}

	var buf bytes.Buffer
	if err := tmpl.ExecuteWriter(pongo2.Context(data), &buf); err != nil {
		return fmt.Errorf("view: execute template %q: %w", templatePath, err)
	}
	_, err = buf.WriteTo(w)
	return err
}

func (e *Engine) getTemplate(path string) (*pongo2.Template, error) {
	if e.dev {
		tmpl, err := e.templateSet.FromFile(path)
		if err != nil {
			return nil, fmt.Errorf("view: load template %q: %w", path, err)
		}
		return tmpl, nil
	}

	e.mu.RLock()
	if tmpl, ok := e.templates[path]; ok {
		e.mu.RUnlock()
		return tmpl, nil
	}
	e.mu.RUnlock()

	e.mu.Lock()
	defer e.mu.Unlock()

	if tmpl, ok := e.templates[path]; ok {
		return tmpl, nil
	}

	tmpl, err := e.templateSet.FromFile(path)
	if err != nil {
		return nil, fmt.Errorf("view: load template %q: %w", path, err)
	}

	e.templates[path] = tmpl
	return tmpl, nil
}
