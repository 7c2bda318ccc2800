// Package registry holds the static tables of tools and widgets an app
// exposes. Both are built once at startup and frozen: there is no runtime
// registration, so every session can share them without locks.
package registry

import (
	"fmt"
	"regexp"

	"github.com/getkin/kin-openapi/openapi3"

	"github.com/hollaugo/apphost/pkg/domain"
)

var nameRe = regexp.MustCompile(`^[a-z0-9]+(-[a-z0-9]+)*$`)

// Tool is one invokable operation: schema, side-effect class, handler, and
// an optional linked widget that renders its structured result.
type Tool struct {
	Name        string
	Title       string
	Description string
	InputSchema *openapi3.Schema
	Effect      domain.SideEffect
	Handler     domain.Handler
	// Widget is the id of the linked widget, empty for plain API tools.
	Widget string
}

// Registry is the immutable projection handed to every session.
type Registry struct {
	tools       []Tool
	toolsByName map[string]Tool
	widgets     []domain.Widget
	widgetsByID map[string]domain.Widget
}

// Builder accumulates tools and widgets before the registry is frozen.
type Builder struct {
	tools   []Tool
	widgets []domain.Widget
}

// NewBuilder returns an empty builder.
func NewBuilder() *Builder {
	return &Builder{}
}

// AddTool appends a tool definition.
func (b *Builder) AddTool(t Tool) *Builder {
	b.tools = append(b.tools, t)
	return b
}

// AddWidget appends a widget definition.
func (b *Builder) AddWidget(w domain.Widget) *Builder {
	b.widgets = append(b.widgets, w)
	return b
}

// Build validates the accumulated definitions and freezes them. Names must
// be unique kebab-case, every handler must be set, and every widget link
// must resolve.
func (b *Builder) Build() (*Registry, error) {
	r := &Registry{
		toolsByName: make(map[string]Tool, len(b.tools)),
		widgetsByID: make(map[string]domain.Widget, len(b.widgets)),
	}

	for _, w := range b.widgets {
		if !nameRe.MatchString(w.ID) {
			return nil, fmt.Errorf("widget id %q is not kebab-case", w.ID)
		}
		if _, dup := r.widgetsByID[w.ID]; dup {
			return nil, fmt.Errorf("duplicate widget id %q", w.ID)
		}
		r.widgetsByID[w.ID] = w
		r.widgets = append(r.widgets, w)
	}

	for _, t := range b.tools {
		if !nameRe.MatchString(t.Name) {
			return nil, fmt.Errorf("tool name %q is not kebab-case", t.Name)
		}
		if _, dup := r.toolsByName[t.Name]; dup {
			return nil, fmt.Errorf("duplicate tool name %q", t.Name)
		}
		if t.Handler == nil {
			return nil, fmt.Errorf("tool %q has no handler", t.Name)
		}
		if t.Widget != "" {
			if _, ok := r.widgetsByID[t.Widget]; !ok {
				return nil, fmt.Errorf("tool %q links unknown widget %q", t.Name, t.Widget)
			}
		}
		r.toolsByName[t.Name] = t
		r.tools = append(r.tools, t)
	}

	return r, nil
}

// Tools returns the registered tools in registration order.
func (r *Registry) Tools() []Tool {
	out := make([]Tool, len(r.tools))
	copy(out, r.tools)
	return out
}

// Tool looks a tool up by name.
func (r *Registry) Tool(name string) (Tool, bool) {
	t, ok := r.toolsByName[name]
	return t, ok
}

// Widgets returns the registered widgets in registration order.
func (r *Registry) Widgets() []domain.Widget {
	out := make([]domain.Widget, len(r.widgets))
	copy(out, r.widgets)
	return out
}

// Widget looks a widget up by id.
func (r *Registry) Widget(id string) (domain.Widget, bool) {
	w, ok := r.widgetsByID[id]
	return w, ok
}

// WidgetByURI looks a widget up by its template URI.
func (r *Registry) WidgetByURI(uri string) (domain.Widget, bool) {
	for _, w := range r.widgets {
		if w.TemplateURI() == uri {
			return w, true
		}
	}
	return domain.Widget{}, false
}
