// Package widget renders self-contained widget documents: the HTML shell a
// host displays for a tool result, with the client bridge bootstrap and the
// sandbox metadata baked in.
package widget

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/hollaugo/apphost/pkg/domain"
	"github.com/hollaugo/apphost/pkg/registry"
)

// MIMEType is the content type hosts recognize as a renderable widget
// document.
const MIMEType = "text/html+skybridge"

// Renderer produces widget documents. Rendering is a pure function of the
// renderer's configuration, the widget id, and the sample data: the same
// inputs always yield byte-identical documents.
type Renderer struct {
	registry *registry.Registry

	widgetDomain    string
	connectDomains  []string
	resourceDomains []string
}

// Option configures a Renderer.
type Option func(*Renderer)

// WithWidgetDomain sets the dedicated origin the host serves widgets from.
func WithWidgetDomain(domain string) Option {
	return func(r *Renderer) {
		r.widgetDomain = domain
	}
}

// WithAllowedOrigins sets the outbound-origin allow-list declared in each
// document's metadata. Nothing beyond these origins is ever embedded.
func WithAllowedOrigins(connect, resource []string) Option {
	return func(r *Renderer) {
		r.connectDomains = connect
		r.resourceDomains = resource
	}
}

// NewRenderer creates a renderer over the widget registry.
func NewRenderer(reg *registry.Registry, opts ...Option) *Renderer {
	r := &Renderer{registry: reg}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Render produces the document for one widget. sampleData, when non-nil, is
// embedded so the document hydrates outside a live host (previews, tests);
// hosts ignore it because window.openai takes precedence. Returns
// domain.ErrUnknownWidget for unregistered ids.
func (r *Renderer) Render(widgetID string, sampleData map[string]any) (*domain.Document, error) {
	w, ok := r.registry.Widget(widgetID)
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrUnknownWidget, widgetID)
	}

	var b strings.Builder

	// Baseline skeleton: what the host shows before any data arrives. The
	// bootstrap hides it on the first delivered snapshot.
	fmt.Fprintf(&b, "<div id=%q class=\"apphost-skeleton\" aria-busy=\"true\"></div>\n", w.ID+"-skeleton")

	if sampleData != nil {
		// json.Marshal sorts map keys, keeping the render deterministic.
		encoded, err := json.Marshal(sampleData)
		if err != nil {
			return nil, fmt.Errorf("failed to encode sample data for widget %s: %w", widgetID, err)
		}
		fmt.Fprintf(&b, "<script type=\"application/json\" id=\"apphost-sample-data\">%s</script>\n", encoded)
	}

	// The bootstrap precedes the widget markup so window.apphost exists by
	// the time the widget's own module scripts execute.
	fmt.Fprintf(&b, "<script type=\"module\">%s</script>\n", bootstrapJS)
	b.WriteString(w.Markup)

	return &domain.Document{
		URI:      w.TemplateURI(),
		MIMEType: MIMEType,
		HTML:     b.String(),
		Meta:     r.Meta(w),
	}, nil
}

// Meta builds the resource metadata block for a widget: description, border
// preference, and the outbound-origin allow-list. Per host guidance this
// belongs on the resource contents, not the tool descriptor.
func (r *Renderer) Meta(w domain.Widget) map[string]any {
	meta := map[string]any{
		"openai/widgetDescription":   w.Description,
		"openai/widgetPrefersBorder": w.PrefersBorder,
	}
	if r.widgetDomain != "" {
		meta["openai/widgetDomain"] = r.widgetDomain
	}
	if len(r.connectDomains) > 0 || len(r.resourceDomains) > 0 {
		meta["openai/widgetCSP"] = map[string]any{
			"connect_domains":  append([]string{}, r.connectDomains...),
			"resource_domains": append([]string{}, r.resourceDomains...),
		}
	}
	return meta
}
