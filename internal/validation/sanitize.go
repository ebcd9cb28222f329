package validation

import "github.com/microcosm-cc/bluemonday"

// Sanitizer strips note HTML down to what the editor produces. The policy
// is built once and is safe for concurrent use.
type Sanitizer struct {
	p *bluemonday.Policy
}

func NewSanitizer() *Sanitizer {
	p := bluemonday.UGCPolicy()
	p.AllowElements("span", "div")
	p.AllowAttrs("class").Globally()
	p.AllowStyles("color", "background-color", "text-align", "text-decoration",
		"font-weight", "font-style", "font-size").Globally()
	p.AllowAttrs("href", "name", "target").OnElements("a")
	p.AllowAttrs("src").OnElements("img")
	return &Sanitizer{p: p}
}

func (s *Sanitizer) HTML(in string) string { return s.p.Sanitize(in) }
