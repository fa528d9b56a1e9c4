// Package login drives the portal's credential + CAPTCHA form as a
// bounded-retry state machine.
package login

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/use-agent/wedi/browser"
	"github.com/use-agent/wedi/captcha"
	"github.com/use-agent/wedi/config"
	"github.com/use-agent/wedi/models"
)

// Portal selectors and landmarks.
const (
	selUsername = `input[name='CUST_ID']`
	selPassword = `input[name='CUST_PASSWORD']`
	selCaptcha  = `input[name='KEY_RND']`
	selSubmit   = `input[type='submit']`

	// landmarkMainMenu in the top document URL is the success signal.
	landmarkMainMenu = "wedimainmenu.asp"

	manualPollInterval = 500 * time.Millisecond
	manualStrategy     = "manual"
)

// State is one node of the login state machine.
type State int

const (
	StateStart State = iota
	StateCredentialsFilled
	StateCaptchaPending
	StateCaptchaResolved
	StateSubmitted
	StateSucceeded
	StateRetryable
	StateAborted
)

func (s State) String() string {
	switch s {
	case StateStart:
		return "start"
	case StateCredentialsFilled:
		return "credentials_filled"
	case StateCaptchaPending:
		return "captcha_pending"
	case StateCaptchaResolved:
		return "captcha_resolved"
	case StateSubmitted:
		return "submitted"
	case StateSucceeded:
		return "succeeded"
	case StateRetryable:
		return "retryable"
	case StateAborted:
		return "aborted"
	}
	return "unknown"
}

// Controller runs login attempts against one session. It is reusable across
// sessions and accounts.
type Controller struct {
	loginURL    string
	cfg         config.LoginConfig
	pageTimeout time.Duration
	resolver    *captcha.Resolver
}

// NewController creates a login controller for the portal login page.
func NewController(loginURL string, cfg config.LoginConfig, pageTimeout time.Duration, resolver *captcha.Resolver) *Controller {
	return &Controller{
		loginURL:    loginURL,
		cfg:         cfg,
		pageTimeout: pageTimeout,
		resolver:    resolver,
	}
}

// Login authenticates the session, retrying retryable outcomes up to the
// configured attempt budget. On success the session is marked
// authenticated and positioned on the portal main menu. Aborted outcomes
// are returned as errors, never panics; the caller owns the account
// boundary.
func (c *Controller) Login(ctx context.Context, sess *browser.Session, acct models.AccountCredential) error {
	for {
		attempt := sess.AddLoginAttempt()
		if attempt > c.cfg.MaxAttempts {
			return models.NewPortalError(models.ErrCodeLogin, "login attempt budget exhausted", nil)
		}
		slog.Info("login attempt", "account", acct.ID, "attempt", attempt, "max", c.cfg.MaxAttempts)

		state, err := c.attempt(ctx, sess, acct)
		if err != nil {
			return err
		}

		switch state {
		case StateSucceeded:
			sess.MarkAuthenticated()
			slog.Info("login succeeded", "account", acct.ID, "attempts", attempt)
			return nil
		case StateAborted:
			return models.NewPortalError(models.ErrCodeLogin,
				"login page did not render", nil)
		case StateRetryable:
			if attempt >= c.cfg.MaxAttempts {
				slog.Warn("login failed, attempt budget exhausted", "account", acct.ID, "attempts", attempt)
				return models.NewPortalError(models.ErrCodeLogin,
					"login failed after maximum attempts", nil)
			}
			slog.Warn("login failed, retrying", "account", acct.ID, "attempt", attempt)
			if err := sleep(ctx, c.cfg.RetryDelay); err != nil {
				return models.NewPortalError(models.ErrCodeLogin, "login canceled", err)
			}
		}
	}
}

// attempt runs one pass of the state machine:
//
//	Start → CredentialsFilled → CaptchaPending → CaptchaResolved →
//	Submitted → {Succeeded | Retryable | Aborted}
//
// Returned errors are transport-level only; form-level failures come back
// as StateRetryable or StateAborted.
func (c *Controller) attempt(ctx context.Context, sess *browser.Session, acct models.AccountCredential) (State, error) {
	// ── Start: (re)load the login page ─────────────────────────────
	if err := sess.Open(c.loginURL); err != nil {
		return StateAborted, err
	}
	scope := sess.Scope()

	// ── Start → CredentialsFilled ──────────────────────────────────
	// A login page that never renders is not retryable: abort fast.
	userField, err := scope.WaitElement(selUsername, c.pageTimeout)
	if err != nil {
		slog.Error("login page did not render", "account", acct.ID)
		return StateAborted, nil
	}
	if err := userField.Input(acct.Username); err != nil {
		return StateRetryable, nil
	}
	passField, err := scope.Element(selPassword)
	if err != nil {
		return StateAborted, nil
	}
	if err := passField.Input(acct.Password); err != nil {
		return StateRetryable, nil
	}

	// ── CredentialsFilled → CaptchaPending → CaptchaResolved ───────
	value, strategy, ok, err := c.resolveCaptcha(ctx, sess, scope, acct.ID)
	if err != nil {
		return StateRetryable, nil
	}
	if !ok {
		// No code, nothing worth submitting.
		slog.Warn("captcha unresolved", "account", acct.ID, "manual", c.cfg.ManualCaptcha)
		return StateRetryable, nil
	}

	if strategy != manualStrategy {
		capField, err := scope.Element(selCaptcha)
		if err != nil {
			return StateRetryable, nil
		}
		if err := capField.Input(value); err != nil {
			return StateRetryable, nil
		}
	}
	slog.Debug("captcha filled", "account", acct.ID, "strategy", strategy)

	// ── CaptchaResolved → Submitted ────────────────────────────────
	submit, err := scope.Element(selSubmit)
	if err != nil {
		return StateRetryable, nil
	}
	if err := submit.Click(); err != nil {
		return StateRetryable, nil
	}
	if err := sleep(ctx, c.cfg.SubmitWait); err != nil {
		return StateRetryable, nil
	}

	// A native alert on submit is a submission artifact: the driver has
	// already dismissed it, and its presence marks a rejected login.
	if text, raised := sess.TakeAlert(); raised {
		slog.Warn("login rejected with alert", "account", acct.ID, "alert", text)
		return StateRetryable, nil
	}

	// ── Submitted → Succeeded | Retryable ──────────────────────────
	url, err := sess.CurrentURL()
	if err != nil {
		return StateRetryable, nil
	}
	if strings.Contains(url, landmarkMainMenu) {
		if strategy != manualStrategy {
			c.resolver.RememberSuccess(acct.ID, strategy)
		}
		return StateSucceeded, nil
	}
	return StateRetryable, nil
}

// resolveCaptcha runs the resolver chain and, when it comes up empty, the
// bounded manual-entry window (if enabled). The manual window polls the
// CAPTCHA input for an operator-typed value; in headless runs the window
// is disabled by configuration and the failure is immediate.
func (c *Controller) resolveCaptcha(ctx context.Context, sess *browser.Session, scope *browser.FrameScope, accountID string) (value, strategy string, ok bool, err error) {
	html, err := scope.HTML()
	if err != nil {
		return "", "", false, err
	}
	if ch, resolved := c.resolver.ResolveFor(accountID, html); resolved {
		return ch.Value, ch.Strategy, true, nil
	}

	if !c.cfg.ManualCaptcha {
		return "", "", false, nil
	}

	slog.Info("waiting for manual captcha entry", "account", accountID, "window", c.cfg.ManualWait)
	deadline := time.Now().Add(c.cfg.ManualWait)
	for time.Now().Before(deadline) {
		if err := sleep(ctx, manualPollInterval); err != nil {
			return "", "", false, err
		}
		field, err := scope.Element(selCaptcha)
		if err != nil {
			continue
		}
		typed, err := field.Value()
		if err != nil {
			continue
		}
		typed = strings.ToUpper(strings.TrimSpace(typed))
		if len(typed) == 4 {
			return typed, manualStrategy, true, nil
		}
	}
	return "", "", false, nil
}

// sleep waits d or until ctx is done.
func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
