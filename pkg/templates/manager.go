package templates

import (
	"bytes"
	"embed"
	"fmt"
	"io/fs"
	"text/template"

	"go.uber.org/zap"

	"github.com/selivandex/sentiment-fusion/pkg/logger"
)

//go:embed prompts/*.tmpl telegram/*.tmpl
var builtinFS embed.FS

// Renderer interface for template rendering (for dependency injection)
type Renderer interface {
	ExecuteTemplate(name string, data any) (string, error)
	TemplateExists(name string) bool
}

// Manager manages a set of parsed templates
type Manager struct {
	templates *template.Template
}

// GetDefaultFuncMap returns common template helper functions
func GetDefaultFuncMap() template.FuncMap {
	return template.FuncMap{
		// opt prints an optional number or a dash when absent
		"opt": func(val *float64, digits int) string {
			if val == nil {
				return "-"
			}
			return fmt.Sprintf("%.*f", digits, *val)
		},
		"printf": fmt.Sprintf,
	}
}

// NewManager parses every *.tmpl file of fsys, including one level of subdirectories
func NewManager(fsys fs.FS) (*Manager, error) {
	tmpl := template.New("root").Funcs(GetDefaultFuncMap())

	for _, pattern := range []string{"*.tmpl", "*/*.tmpl"} {
		matches, err := fs.Glob(fsys, pattern)
		if err != nil {
			return nil, fmt.Errorf("bad template pattern %s: %w", pattern, err)
		}
		if len(matches) == 0 {
			continue
		}
		if tmpl, err = tmpl.ParseFS(fsys, pattern); err != nil {
			return nil, fmt.Errorf("failed to parse templates: %w", err)
		}
	}

	templateCount := len(tmpl.Templates())
	if templateCount <= 1 { // "root" template doesn't count
		return nil, fmt.Errorf("no templates found")
	}

	logger.Debug("templates loaded", zap.Int("count", templateCount))

	return &Manager{templates: tmpl}, nil
}

// Default returns the manager over the built-in prompt and message templates
func Default() (*Manager, error) {
	return NewManager(builtinFS)
}

// ExecuteTemplate renders template with data
func (m *Manager) ExecuteTemplate(name string, data any) (string, error) {
	tmpl := m.templates.Lookup(name)
	if tmpl == nil {
		return "", fmt.Errorf("template %s not found", name)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to execute template %s: %w", name, err)
	}

	return buf.String(), nil
}

// TemplateExists checks if template exists
func (m *Manager) TemplateExists(name string) bool {
	return m.templates.Lookup(name) != nil
}
