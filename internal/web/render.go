// Package web serves the local block editor: an HTML rendering of the
// blocks editor model using the production editor's DOM class names, plus the
// JSON/text endpoints browser drivers use to read the edited post.
package web

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"io"
	"io/fs"
	"net/http"
	"strings"
	"sync"

	"github.com/microcosm-cc/bluemonday"
)

//go:embed templates/*.html
var templateFS embed.FS

//go:embed static
var staticFS embed.FS

// fragmentTemplates are rendered without the base layout.
var fragmentTemplates = []string{"editor.html"}

// Renderer manages HTML template rendering with caching and custom functions.
type Renderer struct {
	templates map[string]*template.Template
	funcMap   template.FuncMap
	mu        sync.RWMutex
}

// NewRenderer parses the embedded templates.
func NewRenderer() (*Renderer, error) {
	sub, err := fs.Sub(templateFS, "templates")
	if err != nil {
		return nil, fmt.Errorf("failed to open embedded templates: %w", err)
	}
	return NewRendererFS(sub)
}

// NewRendererFS parses base.html plus every page template in fsys. Each page
// template is combined with base.html and with the editor fragment so pages
// can embed the editor.
func NewRendererFS(fsys fs.FS) (*Renderer, error) {
	r := &Renderer{
		templates: make(map[string]*template.Template),
		funcMap:   createFuncMap(),
	}
	if err := r.parseTemplates(fsys); err != nil {
		return nil, fmt.Errorf("failed to parse templates: %w", err)
	}
	return r, nil
}

// Render executes the named page template inside the base layout.
func (r *Renderer) Render(w http.ResponseWriter, templateName string, data any) error {
	var buf bytes.Buffer
	if err := r.execute(&buf, templateName, "base", data); err != nil {
		return err
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, err := buf.WriteTo(w)
	return err
}

// RenderEditor writes the editor fragment for view.
func (r *Renderer) RenderEditor(w io.Writer, view EditorView) error {
	return r.execute(w, "editor.html", "editor", view)
}

// RenderError renders an error page with the given HTTP status code and message.
func (r *Renderer) RenderError(w http.ResponseWriter, code int, message string) {
	var buf bytes.Buffer
	data := map[string]any{
		"Title":     http.StatusText(code),
		"Error":     message,
		"ErrorCode": code,
	}
	if err := r.execute(&buf, "error.html", "base", data); err != nil {
		http.Error(w, fmt.Sprintf("Error %d: %s", code, message), code)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(code)
	_, _ = buf.WriteTo(w)
}

func (r *Renderer) execute(w io.Writer, templateName, entry string, data any) error {
	r.mu.RLock()
	tmpl, ok := r.templates[templateName]
	r.mu.RUnlock()
	if !ok {
		return fmt.Errorf("template %q not found", templateName)
	}
	if err := tmpl.ExecuteTemplate(w, entry, data); err != nil {
		return fmt.Errorf("failed to execute template %q: %w", templateName, err)
	}
	return nil
}

// parseTemplates parses the base template and all page templates.
func (r *Renderer) parseTemplates(fsys fs.FS) error {
	baseContent, err := fs.ReadFile(fsys, "base.html")
	if err != nil {
		return fmt.Errorf("failed to read base template: %w", err)
	}
	editorContent, err := fs.ReadFile(fsys, "editor.html")
	if err != nil {
		return fmt.Errorf("failed to read editor template: %w", err)
	}

	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return fmt.Errorf("failed to list templates: %w", err)
	}

	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".html") || name == "base.html" {
			continue
		}

		tmpl := template.New(name).Funcs(r.funcMap)
		if _, err := tmpl.Parse(string(editorContent)); err != nil {
			return fmt.Errorf("failed to parse editor template for %s: %w", name, err)
		}
		if !isFragment(name) {
			if _, err := tmpl.Parse(string(baseContent)); err != nil {
				return fmt.Errorf("failed to parse base template for %s: %w", name, err)
			}
			pageContent, err := fs.ReadFile(fsys, name)
			if err != nil {
				return fmt.Errorf("failed to read template %s: %w", name, err)
			}
			if _, err := tmpl.Parse(string(pageContent)); err != nil {
				return fmt.Errorf("failed to parse template %s: %w", name, err)
			}
		}

		r.mu.Lock()
		r.templates[name] = tmpl
		r.mu.Unlock()
	}

	if len(r.templates) == 0 {
		return fmt.Errorf("no templates found")
	}
	return nil
}

func isFragment(name string) bool {
	for _, f := range fragmentTemplates {
		if f == name {
			return true
		}
	}
	return false
}

// createFuncMap creates the template function map with all custom functions.
func createFuncMap() template.FuncMap {
	return template.FuncMap{
		"truncate": truncate,
		"postHTML": sanitizePostHTML,
	}
}

// truncate truncates a string to n characters, adding "..." if truncated.
func truncate(s string, n int) string {
	if n <= 0 {
		return ""
	}
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	if n <= 3 {
		return string(runes[:n])
	}
	return string(runes[:n-3]) + "..."
}

var previewPolicy = func() *bluemonday.Policy {
	p := bluemonday.UGCPolicy()
	p.AllowAttrs("class").Matching(bluemonday.SpaceSeparatedTokens).OnElements("figure", "hr", "p")
	return p
}()

// sanitizePostHTML renders serialized post content for the preview page.
// Block delimiters are HTML comments, which the sanitizer drops.
func sanitizePostHTML(content string) template.HTML {
	return template.HTML(previewPolicy.Sanitize(content))
}
