package browser

import "sync"

// Session represents one browser-driver connection for one account. The
// driver handle is exclusively owned by the Session for its lifetime and is
// closed unconditionally when the account's run ends.
type Session struct {
	drv Driver

	mu            sync.Mutex
	account       string
	framePath     []string
	authenticated bool
	loginAttempts int
}

// NewSession wraps a driver in a Session positioned at the top document.
func NewSession(drv Driver) *Session {
	return &Session{drv: drv}
}

// Scope returns a FrameScope for the top document. It is live only while
// the session has not entered any frame.
func (s *Session) Scope() *FrameScope {
	return &FrameScope{sess: s, path: nil}
}

// SetAccount records which account this session was opened for. Extraction
// steps that write files use it to name their output.
func (s *Session) SetAccount(id string) {
	s.mu.Lock()
	s.account = id
	s.mu.Unlock()
}

// Account returns the account this session was opened for, if set.
func (s *Session) Account() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.account
}

// Open navigates the top document, which tears down any entered frame:
// scopes handed out for deeper frames become stale.
func (s *Session) Open(url string) error {
	if err := s.drv.Open(url); err != nil {
		return err
	}
	s.mu.Lock()
	s.framePath = nil
	s.mu.Unlock()
	return nil
}

// CurrentURL returns the top document's URL.
func (s *Session) CurrentURL() (string, error) {
	return s.drv.CurrentURL()
}

// TakeAlert consumes the most recent auto-dismissed dialog, if any.
func (s *Session) TakeAlert() (string, bool) {
	return s.drv.TakeAlert()
}

// Authenticated reports whether login has succeeded on this session.
func (s *Session) Authenticated() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.authenticated
}

// MarkAuthenticated records a successful login.
func (s *Session) MarkAuthenticated() {
	s.mu.Lock()
	s.authenticated = true
	s.mu.Unlock()
}

// LoginAttempts returns how many login attempts this session has consumed.
func (s *Session) LoginAttempts() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loginAttempts
}

// AddLoginAttempt increments the attempt counter and returns the new total.
func (s *Session) AddLoginAttempt() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loginAttempts++
	return s.loginAttempts
}

// Close releases the driver. The session is unusable afterwards.
func (s *Session) Close() error {
	return s.drv.Close()
}

func (s *Session) livePath() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.framePath...)
}

func (s *Session) setLivePath(path []string) {
	s.mu.Lock()
	s.framePath = append([]string(nil), path...)
	s.mu.Unlock()
}
