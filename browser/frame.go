package browser

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/use-agent/wedi/models"
)

// FrameScope is the navigation context every extraction operation goes
// through. It records the path of entered frames from the top document and
// refuses to operate when it is not the session's live context: the
// underlying driver misbehaves when code switches out of and back into
// nested documents, so a stale scope is a hard error, never a redirect.
type FrameScope struct {
	sess *Session
	path []string
}

// Path returns a copy of the frame path from the top document.
func (fs *FrameScope) Path() []string {
	return append([]string(nil), fs.path...)
}

// Enter pushes one frame and returns the deeper scope. The receiver scope
// goes stale: there is deliberately no operation to leave a frame short of
// reopening the top document.
func (fs *FrameScope) Enter(name string, timeout time.Duration) (*FrameScope, error) {
	if err := fs.check(); err != nil {
		return nil, err
	}
	if err := fs.sess.drv.EnterFrame(name, timeout); err != nil {
		return nil, err
	}
	child := append(fs.Path(), name)
	fs.sess.setLivePath(child)
	return &FrameScope{sess: fs.sess, path: child}, nil
}

// AssertAt verifies the scope is live and positioned at exactly path.
func (fs *FrameScope) AssertAt(path []string) error {
	if err := fs.check(); err != nil {
		return err
	}
	if !slices.Equal(fs.path, path) {
		return models.NewPortalError(models.ErrCodeStaleScope,
			fmt.Sprintf("scope at [%s], expected [%s]",
				strings.Join(fs.path, " > "), strings.Join(path, " > ")), nil)
	}
	return nil
}

// HTML returns the rendered HTML of the scoped document.
func (fs *FrameScope) HTML() (string, error) {
	if err := fs.check(); err != nil {
		return "", err
	}
	return fs.sess.drv.HTML()
}

// Element finds the first element matching selector in the scoped document.
func (fs *FrameScope) Element(selector string) (Element, error) {
	if err := fs.check(); err != nil {
		return nil, err
	}
	return fs.sess.drv.Element(selector)
}

// Elements finds all elements matching selector in the scoped document.
func (fs *FrameScope) Elements(selector string) ([]Element, error) {
	if err := fs.check(); err != nil {
		return nil, err
	}
	return fs.sess.drv.Elements(selector)
}

// WaitElement waits for an element to appear in the scoped document.
func (fs *FrameScope) WaitElement(selector string, timeout time.Duration) (Element, error) {
	if err := fs.check(); err != nil {
		return nil, err
	}
	return fs.sess.drv.WaitElement(selector, timeout)
}

// DownloadTriggered runs trigger and waits for the file it starts
// transferring, in the scoped document.
func (fs *FrameScope) DownloadTriggered(trigger func() error, timeout time.Duration) (string, error) {
	if err := fs.check(); err != nil {
		return "", err
	}
	return fs.sess.drv.DownloadTriggered(trigger, timeout)
}

// Account returns the account the owning session was opened for.
func (fs *FrameScope) Account() string {
	return fs.sess.Account()
}

// check rejects operations issued through a scope that is not the
// session's live navigation context.
func (fs *FrameScope) check() error {
	live := fs.sess.livePath()
	if !slices.Equal(fs.path, live) {
		return models.NewPortalError(models.ErrCodeStaleScope,
			fmt.Sprintf("operation issued at [%s] but session is at [%s]",
				strings.Join(fs.path, " > "), strings.Join(live, " > ")), nil)
	}
	return nil
}
