package view

import (
	"embed"
	"fmt"
	"html/template"
	"io"
	"io/fs"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"
	"go.uber.org/fx"

	"github.com/itsmewidii/fitriacookry/internal/config"
	"github.com/itsmewidii/fitriacookry/internal/presentation/http/flash"
	"github.com/itsmewidii/fitriacookry/internal/storage"
)

//go:embed templates
var templatesFS embed.FS

// ErrorTemplate renders failed HTML requests.
const ErrorTemplate = "error"

// Module provides the template renderer to Fx.
var Module = fx.Provide(NewRenderer)

// Meta names a resource's pages and routes.
type Meta struct {
	Title    string
	Subtitle string
	// Route prefixes named routes, e.g. "orders." for "orders.index".
	Route string
	// View prefixes template names, e.g. "order." for "order.index".
	View string
}

// Template is the template name of a resource page.
func (m Meta) Template(page string) string { return m.View + page }

// RouteName is the named route of a resource action.
func (m Meta) RouteName(action string) string { return m.Route + action }

// Page is the data every template receives.
type Page struct {
	Meta    Meta
	AppName string
	Flash   *flash.Message
	Data    any
	Errors  map[string]string
	Old     url.Values
	Status  int
	Message string

	reverse func(name string, params ...any) string
}

// Route resolves a named route of the page's resource.
func (p *Page) Route(action string, params ...any) string {
	if p.reverse == nil {
		return ""
	}
	return p.reverse(p.Meta.RouteName(action), params...)
}

// Error is the validation message of field, empty when it passed.
func (p *Page) Error(field string) string {
	return p.Errors[field]
}

// Value prefers the submitted input of field over fallback.
func (p *Page) Value(field string, fallback any) string {
	if vs, ok := p.Old[field]; ok && len(vs) > 0 {
		return vs[0]
	}
	if fallback == nil {
		return ""
	}
	return fmt.Sprint(fallback)
}

// Field is the state of one form input.
type Field struct {
	Name  string
	Label string
	Type  string
	Value string
	Error string
}

// Renderer executes embedded html/templates for echo.
type Renderer struct {
	templates map[string]*template.Template
	appName   string
}

// NewRenderer parses every page template against the shared layout.
func NewRenderer(cfg config.Config, disk *storage.Disk) (*Renderer, error) {
	loc := cfg.App.Location
	if loc == nil {
		loc = time.UTC
	}
	funcs := template.FuncMap{
		"money": Money,
		"date": func(t time.Time) string {
			if t.IsZero() {
				return "-"
			}
			return t.In(loc).Format("02 Jan 2006 15:04")
		},
		"field": func(p *Page, name, label, typ string, fallback any) Field {
			return Field{Name: name, Label: label, Type: typ, Value: p.Value(name, fallback), Error: p.Error(name)}
		},
		"deref": func(v *int64) int64 {
			if v == nil {
				return 0
			}
			return *v
		},
		"asset": func(rel *string) string {
			if rel == nil || disk == nil {
				return ""
			}
			return disk.URL(*rel)
		},
	}

	r := &Renderer{templates: map[string]*template.Template{}, appName: cfg.App.Name}
	err := fs.WalkDir(templatesFS, "templates", func(p string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() || p == "templates/layout.html" {
			return err
		}
		name := strings.TrimSuffix(strings.TrimPrefix(p, "templates/"), ".html")
		name = strings.ReplaceAll(name, "/", ".")

		tpl, err := template.New(path.Base(p)).Funcs(funcs).ParseFS(templatesFS, "templates/layout.html", p)
		if err != nil {
			return fmt.Errorf("parse %s: %w", name, err)
		}
		r.templates[name] = tpl
		return nil
	})
	if err != nil {
		return nil, err
	}
	return r, nil
}

// Render satisfies echo.Renderer. data must be a *Page.
func (r *Renderer) Render(w io.Writer, name string, data any, c echo.Context) error {
	tpl, ok := r.templates[name]
	if !ok {
		return fmt.Errorf("template %q not found", name)
	}
	page, ok := data.(*Page)
	if !ok {
		return fmt.Errorf("template %q: unexpected data %T", name, data)
	}
	if page.AppName == "" {
		page.AppName = r.appName
	}
	if c != nil {
		page.reverse = c.Echo().Reverse
	}
	return tpl.ExecuteTemplate(w, "layout", page)
}

// Has reports whether a template is registered.
func (r *Renderer) Has(name string) bool {
	_, ok := r.templates[name]
	return ok
}

// Money renders an amount in rupiah with dot thousands separators.
func Money(d decimal.Decimal) string {
	neg := d.IsNegative()
	whole := d.Abs().Round(0).String()

	var b strings.Builder
	for i, ch := range whole {
		if i > 0 && (len(whole)-i)%3 == 0 {
			b.WriteByte('.')
		}
		b.WriteRune(ch)
	}
	if neg {
		return "-Rp " + b.String()
	}
	return "Rp " + b.String()
}
