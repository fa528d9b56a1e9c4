package browser_test

import (
	"errors"
	"testing"
	"time"

	"github.com/use-agent/wedi/browser"
	"github.com/use-agent/wedi/browser/browsertest"
	"github.com/use-agent/wedi/models"
)

func framedDriver() *browsertest.Driver {
	inner := &browsertest.Page{URL: "frame://datamain", HTMLSrc: "<html><body>inner</body></html>"}
	top := &browsertest.Page{
		URL:     "http://portal/main.asp",
		HTMLSrc: "<html><body>top</body></html>",
		Frames:  map[string]*browsertest.Page{"datamain": inner},
	}
	return browsertest.New(top)
}

func stale(t *testing.T, err error) {
	t.Helper()
	var perr *models.PortalError
	if !errors.As(err, &perr) {
		t.Fatalf("expected a portal error, got %v", err)
	}
	if perr.Code != models.ErrCodeStaleScope {
		t.Fatalf("expected code %s, got %s", models.ErrCodeStaleScope, perr.Code)
	}
}

func TestFrameScope_EnterMakesParentStale(t *testing.T) {
	sess := browser.NewSession(framedDriver())
	if err := sess.Open("http://portal/main.asp"); err != nil {
		t.Fatal(err)
	}

	top := sess.Scope()
	inner, err := top.Enter("datamain", time.Second)
	if err != nil {
		t.Fatalf("enter: %v", err)
	}

	if _, err := inner.HTML(); err != nil {
		t.Errorf("inner scope should be live: %v", err)
	}

	_, err = top.HTML()
	if err == nil {
		t.Fatal("parent scope should be stale after entering a frame")
	}
	stale(t, err)

	_, err = top.Enter("datamain", time.Second)
	if err == nil {
		t.Fatal("entering through a stale scope should fail")
	}
	stale(t, err)
}

func TestFrameScope_OpenInvalidatesFrameScopes(t *testing.T) {
	sess := browser.NewSession(framedDriver())
	if err := sess.Open("http://portal/main.asp"); err != nil {
		t.Fatal(err)
	}

	inner, err := sess.Scope().Enter("datamain", time.Second)
	if err != nil {
		t.Fatal(err)
	}

	if err := sess.Open("http://portal/main.asp"); err != nil {
		t.Fatal(err)
	}

	_, err = inner.HTML()
	if err == nil {
		t.Fatal("frame scope should be stale after reopening the top document")
	}
	stale(t, err)

	if _, err := sess.Scope().HTML(); err != nil {
		t.Errorf("a fresh top scope should be live: %v", err)
	}
}

func TestFrameScope_AssertAt(t *testing.T) {
	sess := browser.NewSession(framedDriver())
	if err := sess.Open("http://portal/main.asp"); err != nil {
		t.Fatal(err)
	}

	inner, err := sess.Scope().Enter("datamain", time.Second)
	if err != nil {
		t.Fatal(err)
	}
	if err := inner.AssertAt([]string{"datamain"}); err != nil {
		t.Errorf("scope should be at [datamain]: %v", err)
	}
	if err := inner.AssertAt(nil); err == nil {
		t.Error("scope is not at the top document, assertion should fail")
	}
}

func TestFrameScope_PathIsACopy(t *testing.T) {
	sess := browser.NewSession(framedDriver())
	if err := sess.Open("http://portal/main.asp"); err != nil {
		t.Fatal(err)
	}
	inner, err := sess.Scope().Enter("datamain", time.Second)
	if err != nil {
		t.Fatal(err)
	}

	p := inner.Path()
	p[0] = "mutated"
	if err := inner.AssertAt([]string{"datamain"}); err != nil {
		t.Errorf("mutating a returned path must not affect the scope: %v", err)
	}
}
