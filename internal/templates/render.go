// Package templates handles HTML template rendering for Datastar SSE responses
// and the dashboard page.
package templates

import (
	"bytes"
	"embed"
	"html/template"
	"io/fs"
	"os"
	"regexp"
	"strings"
	"sync"
)

//go:embed fragments/*.html pages/*.html
var embedded embed.FS

// FallbackColor replaces legend colours that fail sanitisation.
const FallbackColor = "#cccccc"

var (
	hexColor    = regexp.MustCompile(`^#([0-9a-fA-F]{3}|[0-9a-fA-F]{6}|[0-9a-fA-F]{8})$`)
	namedColors = map[string]struct{}{
		"black": {}, "white": {}, "red": {}, "green": {}, "blue": {}, "yellow": {},
		"orange": {}, "purple": {}, "brown": {}, "gray": {}, "grey": {}, "cyan": {},
		"magenta": {}, "pink": {}, "navy": {}, "teal": {}, "olive": {}, "maroon": {},
		"lime": {}, "darkgreen": {}, "lightgreen": {}, "lightblue": {}, "transparent": {},
	}
)

// SanitizeColor returns c if it is a hex colour or a known colour name,
// otherwise FallbackColor.
func SanitizeColor(c string) string {
	c = strings.TrimSpace(c)
	if hexColor.MatchString(c) {
		return c
	}
	if _, ok := namedColors[strings.ToLower(c)]; ok {
		return strings.ToLower(c)
	}
	return FallbackColor
}

// funcMap provides common template functions.
var funcMap = template.FuncMap{
	// dict creates a map from key-value pairs, useful for passing multiple values to nested templates
	"dict": func(values ...any) map[string]any {
		if len(values)%2 != 0 {
			return nil
		}
		m := make(map[string]any, len(values)/2)
		for i := 0; i < len(values); i += 2 {
			key, ok := values[i].(string)
			if !ok {
				continue
			}
			m[key] = values[i+1]
		}
		return m
	},
	// color is safe to emit unescaped because SanitizeColor only lets
	// through hex values and plain names.
	"color": func(c string) template.CSS {
		return template.CSS(SanitizeColor(c))
	},
}

// Renderer manages HTML fragment and page templates.
type Renderer struct {
	templates *template.Template
	mu        sync.RWMutex
}

// New creates a renderer from the embedded templates.
func New() (*Renderer, error) {
	tmpl, err := parse(embedded)
	if err != nil {
		return nil, err
	}
	return &Renderer{templates: tmpl}, nil
}

// NewFromDir creates a renderer from a directory holding fragments/ and
// pages/, for editing templates without rebuilding.
func NewFromDir(dir string) (*Renderer, error) {
	tmpl, err := parse(os.DirFS(dir))
	if err != nil {
		return nil, err
	}
	return &Renderer{templates: tmpl}, nil
}

func parse(fsys fs.FS) (*template.Template, error) {
	return template.New("").Funcs(funcMap).ParseFS(fsys, "fragments/*.html", "pages/*.html")
}

// Render renders a named template to a string.
func (r *Renderer) Render(name string, data any) (string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var buf bytes.Buffer
	if err := r.templates.ExecuteTemplate(&buf, name, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// RenderToBuffer renders a named template to a buffer.
func (r *Renderer) RenderToBuffer(buf *bytes.Buffer, name string, data any) error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.templates.ExecuteTemplate(buf, name, data)
}

// MustRender renders a template and panics on error.
// Use only when you're certain the template exists.
func (r *Renderer) MustRender(name string, data any) string {
	s, err := r.Render(name, data)
	if err != nil {
		panic(err)
	}
	return s
}

// Reload reloads templates from dir (useful for dev hot-reload).
func (r *Renderer) Reload(dir string) error {
	tmpl, err := parse(os.DirFS(dir))
	if err != nil {
		return err
	}

	r.mu.Lock()
	r.templates = tmpl
	r.mu.Unlock()

	return nil
}
