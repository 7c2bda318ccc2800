package domain

// Widget describes one renderable UI fragment. Descriptors are immutable
// after registry construction; the host caches them by template URI.
type Widget struct {
	// ID is the unique kebab-case identifier (e.g. "task-board").
	ID string
	// Title is the human-facing display name.
	Title string
	// Description is shown in resource listings.
	Description string
	// Invoking and Invoked are the host status strings shown while the
	// linked tool runs and after it completes.
	Invoking string
	Invoked  string
	// Markup is the widget's HTML shell (root element plus module script).
	// The renderer wraps it with the skeleton baseline and bridge bootstrap.
	Markup string
	// SampleData hydrates the widget in previews and renderer tests.
	SampleData map[string]any
	// PrefersBorder asks the host to draw a frame around the widget.
	PrefersBorder bool
}

// TemplateURI returns the resource URI the host uses to fetch the widget
// document, e.g. "ui://widget/task-board.html".
func (w Widget) TemplateURI() string {
	return "ui://widget/" + w.ID + ".html"
}

// Document is one self-contained rendered widget: HTML plus the metadata
// block the host needs to sandbox it.
type Document struct {
	URI      string
	MIMEType string
	HTML     string
	Meta     map[string]any
}
