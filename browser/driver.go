package browser

import (
	"errors"
	"time"
)

// ErrNoElement is returned by element lookups when nothing matches the
// selector within the allotted time.
var ErrNoElement = errors.New("browser: element not found")

// Driver is the browser-control capability the core depends on. The rod
// implementation is the production driver; tests use the in-memory fake in
// browsertest. A Driver is owned by exactly one Session and is never shared.
type Driver interface {
	// Open navigates the top document to url, leaving any entered frame.
	Open(url string) error

	// CurrentURL returns the top document's URL.
	CurrentURL() (string, error)

	// HTML returns the rendered HTML of the current document context
	// (the entered frame, if any, otherwise the top document).
	HTML() (string, error)

	// Element returns the first element matching the CSS selector,
	// or ErrNoElement.
	Element(selector string) (Element, error)

	// Elements returns all elements matching the CSS selector.
	Elements(selector string) ([]Element, error)

	// WaitElement waits up to timeout for an element matching the selector
	// to appear, returning ErrNoElement on expiry.
	WaitElement(selector string, timeout time.Duration) (Element, error)

	// EnterFrame waits for the named child frame and switches the document
	// context into it. There is no operation to leave a frame; Open is the
	// only way back to the top document.
	EnterFrame(name string, timeout time.Duration) error

	// TakeAlert reports and consumes the most recent native dialog, which
	// the driver dismisses automatically as it appears.
	TakeAlert() (text string, ok bool)

	// DownloadTriggered runs trigger and waits up to timeout for the file
	// transfer it starts to finish, returning the downloaded file's path.
	DownloadTriggered(trigger func() error, timeout time.Duration) (string, error)

	// Close tears down the underlying browser resources.
	Close() error
}

// Element is a handle to a located page element.
type Element interface {
	// Text returns the element's visible text.
	Text() (string, error)

	// Attribute returns the named attribute, or "" when absent.
	Attribute(name string) (string, error)

	// Value returns the element's current input value.
	Value() (string, error)

	// Input clears the element and types value into it.
	Input(value string) error

	// Click clicks the element.
	Click() error
}
