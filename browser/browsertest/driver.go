// Package browsertest provides an in-memory Driver implementation scripted
// to behave like the portal, so login, query, and batch logic can be tested
// without a live browser.
package browsertest

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/use-agent/wedi/browser"
)

// Input is a scripted form input on a fake page.
type Input struct {
	Name  string
	Type  string // "text", "password", ...
	Val   string
	Title string
}

// Link is a scripted anchor on a fake page. OnClick, when set, runs against
// the driver so tests can script in-place navigation.
type Link struct {
	Text    string
	Href    string
	OnClick func(d *Driver)
}

// Button is a scripted clickable matched by its literal CSS selector.
// Attrs holds attribute values returned by Attribute.
type Button struct {
	Selector string
	Attrs    map[string]string
	OnClick  func(d *Driver) error
}

// Page is one scripted document. Frames hold nested documents by name.
type Page struct {
	URL     string
	HTMLSrc string
	Inputs  []*Input
	Links   []*Link
	Buttons []*Button
	Frames  map[string]*Page
}

// Driver is the scripted browser.Driver. Zero value is not usable; construct
// with New and register pages.
type Driver struct {
	pages map[string]*Page

	current   *Page
	frame     *Page
	framePath []string

	alertText string
	alertSet  bool

	// Downloads is the queue of file paths DownloadTriggered resolves, in
	// order. An empty queue makes downloads fail.
	Downloads []string

	// CloseCalls counts teardowns, for asserting session lifecycle.
	CloseCalls int
}

// New creates a Driver with the given pages registered by URL.
func New(pages ...*Page) *Driver {
	d := &Driver{pages: make(map[string]*Page)}
	for _, p := range pages {
		d.pages[p.URL] = p
	}
	return d
}

// AddPage registers another page.
func (d *Driver) AddPage(p *Page) { d.pages[p.URL] = p }

// Goto points the top document at the page registered under url without
// going through Open (used by scripted link handlers).
func (d *Driver) Goto(url string) {
	if p, ok := d.pages[url]; ok {
		d.current = p
	}
	d.frame = nil
	d.framePath = nil
}

// SetFrame swaps the entered frame's content, simulating in-frame
// navigation (the frame path is unchanged).
func (d *Driver) SetFrame(p *Page) { d.frame = p }

// QueueAlert arms a dialog as if the page had raised and auto-dismissed it.
func (d *Driver) QueueAlert(text string) {
	d.alertText = text
	d.alertSet = true
}

// FramePath returns the current entered-frame path.
func (d *Driver) FramePath() []string {
	return append([]string(nil), d.framePath...)
}

func (d *Driver) Open(url string) error {
	p, ok := d.pages[url]
	if !ok {
		return fmt.Errorf("browsertest: no page registered for %s", url)
	}
	d.current = p
	d.frame = nil
	d.framePath = nil
	return nil
}

func (d *Driver) CurrentURL() (string, error) {
	if d.current == nil {
		return "", errors.New("browsertest: no page open")
	}
	return d.current.URL, nil
}

func (d *Driver) HTML() (string, error) {
	p := d.doc()
	if p == nil {
		return "", errors.New("browsertest: no page open")
	}
	return p.HTMLSrc, nil
}

func (d *Driver) Element(selector string) (browser.Element, error) {
	els, err := d.Elements(selector)
	if err != nil {
		return nil, err
	}
	if len(els) == 0 {
		return nil, browser.ErrNoElement
	}
	return els[0], nil
}

func (d *Driver) Elements(selector string) ([]browser.Element, error) {
	p := d.doc()
	if p == nil {
		return nil, errors.New("browsertest: no page open")
	}

	var out []browser.Element

	switch {
	case selector == "a":
		for _, l := range p.Links {
			out = append(out, &linkElement{d: d, link: l})
		}
	case strings.HasPrefix(selector, "input[name="):
		name := attrValue(selector, "name")
		for _, in := range p.Inputs {
			if in.Name == name {
				out = append(out, &inputElement{in: in})
			}
		}
	case strings.HasPrefix(selector, "input[type="):
		typ := attrValue(selector, "type")
		for _, in := range p.Inputs {
			if in.Type == typ {
				out = append(out, &inputElement{in: in})
			}
		}
		for _, b := range p.Buttons {
			if attrValue(b.Selector, "type") == typ {
				out = append(out, &buttonElement{d: d, btn: b})
			}
		}
	default:
		for _, b := range p.Buttons {
			if b.Selector == selector {
				out = append(out, &buttonElement{d: d, btn: b})
			}
		}
	}
	return out, nil
}

func (d *Driver) WaitElement(selector string, timeout time.Duration) (browser.Element, error) {
	return d.Element(selector)
}

func (d *Driver) EnterFrame(name string, timeout time.Duration) error {
	p := d.doc()
	if p == nil {
		return errors.New("browsertest: no page open")
	}
	f, ok := p.Frames[name]
	if !ok {
		return fmt.Errorf("browsertest: frame %q never appeared", name)
	}
	d.frame = f
	d.framePath = append(d.framePath, name)
	return nil
}

func (d *Driver) TakeAlert() (string, bool) {
	if !d.alertSet {
		return "", false
	}
	d.alertSet = false
	return d.alertText, true
}

func (d *Driver) DownloadTriggered(trigger func() error, timeout time.Duration) (string, error) {
	if err := trigger(); err != nil {
		return "", err
	}
	if len(d.Downloads) == 0 {
		return "", errors.New("browsertest: no download queued")
	}
	path := d.Downloads[0]
	d.Downloads = d.Downloads[1:]
	return path, nil
}

func (d *Driver) Close() error {
	d.CloseCalls++
	return nil
}

func (d *Driver) doc() *Page {
	if d.frame != nil {
		return d.frame
	}
	return d.current
}

// InputValue returns the current value of the named input in the visible
// document, for asserting what a flow typed.
func (d *Driver) InputValue(name string) string {
	p := d.doc()
	if p == nil {
		return ""
	}
	for _, in := range p.Inputs {
		if in.Name == name {
			return in.Val
		}
	}
	return ""
}

// --- element adapters ---

type inputElement struct{ in *Input }

func (e *inputElement) Text() (string, error) { return e.in.Val, nil }
func (e *inputElement) Attribute(name string) (string, error) {
	switch name {
	case "name":
		return e.in.Name, nil
	case "type":
		return e.in.Type, nil
	case "title":
		return e.in.Title, nil
	}
	return "", nil
}
func (e *inputElement) Value() (string, error) { return e.in.Val, nil }
func (e *inputElement) Input(v string) error   { e.in.Val = v; return nil }
func (e *inputElement) Click() error           { return nil }

type linkElement struct {
	d    *Driver
	link *Link
}

func (e *linkElement) Text() (string, error) { return e.link.Text, nil }
func (e *linkElement) Attribute(name string) (string, error) {
	if name == "href" {
		return e.link.Href, nil
	}
	return "", nil
}
func (e *linkElement) Value() (string, error) { return "", nil }
func (e *linkElement) Input(v string) error   { return errors.New("browsertest: link is not an input") }
func (e *linkElement) Click() error {
	if e.link.OnClick != nil {
		e.link.OnClick(e.d)
	}
	return nil
}

type buttonElement struct {
	d   *Driver
	btn *Button
}

func (e *buttonElement) Text() (string, error) { return "", nil }
func (e *buttonElement) Attribute(name string) (string, error) {
	return e.btn.Attrs[name], nil
}
func (e *buttonElement) Value() (string, error) { return "", nil }
func (e *buttonElement) Input(v string) error   { return errors.New("browsertest: button is not an input") }
func (e *buttonElement) Click() error {
	if e.btn.OnClick != nil {
		return e.btn.OnClick(e.d)
	}
	return nil
}

// attrValue pulls the quoted value out of a selector like input[name='X'].
func attrValue(selector, attr string) string {
	i := strings.Index(selector, attr+"=")
	if i < 0 {
		return ""
	}
	rest := selector[i+len(attr)+1:]
	rest = strings.TrimLeft(rest, `'"`)
	j := strings.IndexAny(rest, `'"]`)
	if j < 0 {
		return rest
	}
	return rest[:j]
}
