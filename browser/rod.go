package browser

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/launcher/flags"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"
	"github.com/use-agent/wedi/config"
	"github.com/use-agent/wedi/models"
	"github.com/ysmood/gson"
)

// RodDriver drives one Chromium instance through go-rod. It owns the whole
// browser process: Close kills it.
type RodDriver struct {
	browser     *rod.Browser
	page        *rod.Page // top document
	frame       *rod.Page // entered frame, nil at top
	downloadDir string
	timeout     time.Duration

	mu        sync.Mutex
	lastAlert string
	hasAlert  bool
}

// NewRod launches a browser per the config and returns a connected driver.
// Launch or connect failures are reported as TRANSPORT_FAILED.
func NewRod(cfg config.BrowserConfig) (*RodDriver, error) {
	l := launcher.New().
		Headless(cfg.Headless).
		NoSandbox(cfg.NoSandbox)

	if cfg.BrowserBin != "" {
		l = l.Bin(cfg.BrowserBin)
	}

	// The portal family fingerprints automation; scrub the obvious signals.
	l.Set(flags.Flag("disable-blink-features"), "AutomationControlled")
	l.Delete(flags.Flag("enable-automation"))
	l.Set(flags.Flag("disable-popup-blocking"))
	l.Set(flags.Flag("disable-prompt-on-repost"))
	l.Set(flags.Flag("disable-component-update"))
	l.Set(flags.Flag("disable-default-apps"))
	l.Set(flags.Flag("disable-dev-shm-usage"))
	l.Set(flags.Flag("disable-extensions"))
	l.Set(flags.Flag("no-first-run"))
	l.Set(flags.Flag("window-size"), "1280,720")

	controlURL, err := l.Launch()
	if err != nil {
		return nil, models.NewPortalError(models.ErrCodeTransport, "failed to launch browser", err)
	}
	slog.Info("browser launched", "controlURL", controlURL, "headless", cfg.Headless)

	browser := rod.New().ControlURL(controlURL)
	if err := browser.Connect(); err != nil {
		return nil, models.NewPortalError(models.ErrCodeTransport, "failed to connect to browser", err)
	}

	page, err := browser.Page(proto.TargetCreateTarget{})
	if err != nil {
		browser.MustClose()
		return nil, models.NewPortalError(models.ErrCodeTransport, "failed to create page", err)
	}

	d := &RodDriver{
		browser:     browser,
		page:        page,
		downloadDir: cfg.DownloadDir,
		timeout:     cfg.PageTimeout,
	}

	// Stealth JS must be installed before the first navigation.
	if _, err := page.EvalOnNewDocument(stealth.JS); err != nil {
		slog.Warn("stealth injection failed, proceeding without stealth", "error", err)
	}

	// The portal renders Traditional Chinese; ask for it explicitly.
	_ = proto.NetworkSetExtraHTTPHeaders{
		Headers: proto.NetworkHeaders{
			"Accept-Language": gson.New("zh-TW,zh;q=0.9"),
		},
	}.Call(page)

	// Native alerts are submission artifacts on this portal. Dismiss them
	// as they appear and keep the text for the login controller.
	go page.EachEvent(func(e *proto.PageJavascriptDialogOpening) {
		d.mu.Lock()
		d.lastAlert = e.Message
		d.hasAlert = true
		d.mu.Unlock()
		slog.Debug("dialog dismissed", "message", e.Message)
		_ = proto.PageHandleJavaScriptDialog{Accept: true}.Call(page)
	})()

	return d, nil
}

// current returns the page context operations should target.
func (d *RodDriver) current() *rod.Page {
	if d.frame != nil {
		return d.frame
	}
	return d.page
}

// Open navigates the top document and drops any entered frame context.
func (d *RodDriver) Open(url string) error {
	d.frame = nil
	if err := d.page.Timeout(d.timeout).Navigate(url); err != nil {
		return models.NewPortalError(models.ErrCodeTransport, fmt.Sprintf("navigation to %s failed", url), err)
	}
	if err := d.page.Timeout(d.timeout).WaitLoad(); err != nil {
		slog.Debug("page load wait expired, proceeding with current DOM", "url", url, "error", err)
	}
	return nil
}

func (d *RodDriver) CurrentURL() (string, error) {
	info, err := d.page.Info()
	if err != nil {
		return "", models.NewPortalError(models.ErrCodeTransport, "failed to read page info", err)
	}
	return info.URL, nil
}

func (d *RodDriver) HTML() (string, error) {
	html, err := d.current().Timeout(d.timeout).HTML()
	if err != nil {
		return "", models.NewPortalError(models.ErrCodeTransport, "failed to read document HTML", err)
	}
	return html, nil
}

func (d *RodDriver) Element(selector string) (Element, error) {
	has, el, err := d.current().Has(selector)
	if err != nil {
		return nil, models.NewPortalError(models.ErrCodeTransport, fmt.Sprintf("element lookup %q failed", selector), err)
	}
	if !has {
		return nil, ErrNoElement
	}
	return &rodElement{el: el, timeout: d.timeout}, nil
}

func (d *RodDriver) Elements(selector string) ([]Element, error) {
	els, err := d.current().Elements(selector)
	if err != nil {
		return nil, models.NewPortalError(models.ErrCodeTransport, fmt.Sprintf("elements lookup %q failed", selector), err)
	}
	out := make([]Element, 0, len(els))
	for _, el := range els {
		out = append(out, &rodElement{el: el, timeout: d.timeout})
	}
	return out, nil
}

func (d *RodDriver) WaitElement(selector string, timeout time.Duration) (Element, error) {
	el, err := d.current().Timeout(timeout).Element(selector)
	if err != nil {
		return nil, ErrNoElement
	}
	return &rodElement{el: el, timeout: d.timeout}, nil
}

// EnterFrame switches the document context into the named iframe. The
// switch is one-way: only Open returns to the top document.
func (d *RodDriver) EnterFrame(name string, timeout time.Duration) error {
	sel := fmt.Sprintf("iframe[name=%q]", name)
	iframe, err := d.current().Timeout(timeout).Element(sel)
	if err != nil {
		return models.NewPortalError(models.ErrCodeNavigation, fmt.Sprintf("frame %q never appeared", name), err)
	}
	frame, err := iframe.Frame()
	if err != nil {
		return models.NewPortalError(models.ErrCodeNavigation, fmt.Sprintf("failed to enter frame %q", name), err)
	}
	d.frame = frame
	return nil
}

func (d *RodDriver) TakeAlert() (string, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.hasAlert {
		return "", false
	}
	d.hasAlert = false
	return d.lastAlert, true
}

// DownloadTriggered arms a download waiter, runs trigger, and resolves the
// finished file's path. The waiter must be armed before the click or the
// begin event is missed.
func (d *RodDriver) DownloadTriggered(trigger func() error, timeout time.Duration) (string, error) {
	wait := d.browser.WaitDownload(d.downloadDir)

	if err := trigger(); err != nil {
		return "", err
	}

	done := make(chan *proto.PageDownloadWillBegin, 1)
	go func() { done <- wait() }()

	select {
	case info := <-done:
		if info == nil {
			return "", models.NewPortalError(models.ErrCodeExtraction, "download produced no file", nil)
		}
		return filepath.Join(d.downloadDir, info.GUID), nil
	case <-time.After(timeout):
		return "", models.NewPortalError(models.ErrCodeExtraction, "download did not finish in time", nil)
	}
}

// Close kills the browser process. Safe to call once per driver.
func (d *RodDriver) Close() error {
	d.browser.MustClose()
	return nil
}

// rodElement adapts *rod.Element to the Element interface.
type rodElement struct {
	el      *rod.Element
	timeout time.Duration
}

func (e *rodElement) Text() (string, error) {
	return e.el.Timeout(e.timeout).Text()
}

func (e *rodElement) Attribute(name string) (string, error) {
	attr, err := e.el.Attribute(name)
	if err != nil {
		return "", err
	}
	if attr == nil {
		return "", nil
	}
	return *attr, nil
}

func (e *rodElement) Value() (string, error) {
	v, err := e.el.Timeout(e.timeout).Property("value")
	if err != nil {
		return "", err
	}
	return v.Str(), nil
}

func (e *rodElement) Input(value string) error {
	if err := e.el.Timeout(e.timeout).SelectAllText(); err == nil {
		_ = e.el.Input("")
	}
	return e.el.Timeout(e.timeout).Input(value)
}

func (e *rodElement) Click() error {
	return e.el.Timeout(e.timeout).Click(proto.InputMouseButtonLeft, 1)
}
