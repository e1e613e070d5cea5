package portal

import (
	"context"
	"fmt"
	"strings"
	"time"

	"apptsheet/internal/browser"
	"apptsheet/internal/config"
	applog "apptsheet/internal/log"
)

// AuthState names the authentication flow's states, mostly for logging.
type AuthState string

const (
	StateStart         AuthState = "start"
	StateSessionLoaded AuthState = "session-loaded"
	StateNoSession     AuthState = "no-session"
	StateLoggingIn     AuthState = "logging-in"
	StateAuthenticated AuthState = "authenticated"
	StateLoginFailed   AuthState = "login-failed"
)

// Login form selectors. The portal renders the same data-qa hooks in
// every locale, so there are no synonym lists here.
const (
	selEmailField    = `input[name='email']`
	selContinue      = `button[data-qa='continue']`
	selPasswordField = `input[name='password']`
	selLoginSubmit   = `button[data-qa='login']`
	selSignInForm    = `form[action*='sign-in']`

	signInURLFragment = "sign-in"
)

const (
	probeSettle      = 2 * time.Second
	signInFormProbe  = 3 * time.Second
	loginStepTimeout = 15 * time.Second
	postLoginTimeout = 30 * time.Second
)

// flowStep is one declared step of the login sequence: a name for
// logging, a bounded timeout, and the action itself.
type flowStep struct {
	name    string
	timeout time.Duration
	run     func(ctx context.Context, d browser.Driver) error
}

// AuthFlow drives consent dismissal, session reuse and, when needed,
// credential login. Credentials are resolved lazily so a reusable
// session never requires them to be set.
type AuthFlow struct {
	cfg   *config.Config
	creds func() (config.Credentials, error)

	state AuthState
}

// NewAuthFlow creates an AuthFlow reading credentials from the
// environment when a login turns out to be necessary.
func NewAuthFlow(cfg *config.Config) *AuthFlow {
	return &AuthFlow{
		cfg:   cfg,
		creds: config.CredentialsFromEnv,
		state: StateStart,
	}
}

// State reports the flow's last state.
func (f *AuthFlow) State() AuthState { return f.state }

// Run brings the browser into an authenticated state on the portal's
// protected list page. Session load/save failures degrade to a fresh
// login; only the login itself failing returns ErrAuthentication.
func (f *AuthFlow) Run(ctx context.Context, d browser.Driver, sc browser.SessionCarrier) error {
	sess, err := browser.LoadSession(f.cfg.SessionFile)
	switch {
	case err == nil:
		f.state = StateSessionLoaded
		applog.Info("session blob loaded", "path", f.cfg.SessionFile, "saved_at", sess.SavedAt)
	case err == browser.ErrNoSession:
		f.state = StateNoSession
		applog.Info("no session blob, will log in if required")
	default:
		// Unreadable blob: proceed as if no session existed.
		f.state = StateNoSession
		applog.Error("session blob unreadable, proceeding without it", err, "path", f.cfg.SessionFile)
		sess = nil
	}

	// The portal origin must be loaded before cookies/localStorage can
	// be installed against it.
	if err := d.Navigate(ctx, f.cfg.Portal.BaseURL); err != nil {
		return fmt.Errorf("%w: open portal: %v", ErrAuthentication, err)
	}
	if sess != nil {
		if err := sc.ImportSession(ctx, sess); err != nil {
			applog.Error("session import failed, proceeding without it", err)
		}
	}

	if err := d.Navigate(ctx, f.cfg.ListURL()); err != nil {
		return fmt.Errorf("%w: open appointments list: %v", ErrAuthentication, err)
	}
	DismissConsent(ctx, d)
	if err := d.Sleep(ctx, probeSettle); err != nil {
		return err
	}

	if !f.onSignIn(ctx, d) {
		f.state = StateAuthenticated
		applog.Info("session restored, logged in")
		return nil
	}

	f.state = StateLoggingIn
	if err := f.login(ctx, d); err != nil {
		f.state = StateLoginFailed
		return err
	}

	f.state = StateAuthenticated
	if err := f.persistSession(ctx, sc); err != nil {
		// Losing the blob only costs a login next run.
		applog.Error("session persist failed", err, "path", f.cfg.SessionFile)
	}
	return nil
}

// onSignIn reports whether the browser landed on the sign-in flow, by
// URL first and by form presence as a fallback.
func (f *AuthFlow) onSignIn(ctx context.Context, d browser.Driver) bool {
	url, err := d.CurrentURL(ctx)
	if err == nil && strings.Contains(url, signInURLFragment) {
		return true
	}
	return d.WaitVisible(ctx, selSignInForm, signInFormProbe) == nil
}

// login runs the declared credential-entry steps in order. Any step
// failing is fatal for the run.
func (f *AuthFlow) login(ctx context.Context, d browser.Driver) error {
	creds, err := f.creds()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrAuthentication, err)
	}
	keyDelay := time.Duration(f.cfg.Portal.TypeKeyDelayMs) * time.Millisecond

	steps := []flowStep{
		{"open sign-in page", loginStepTimeout, func(ctx context.Context, d browser.Driver) error {
			return d.Navigate(ctx, f.cfg.SignInURL())
		}},
		{"dismiss consent", loginStepTimeout, func(ctx context.Context, d browser.Driver) error {
			DismissConsent(ctx, d)
			return nil
		}},
		{"enter email", loginStepTimeout, func(ctx context.Context, d browser.Driver) error {
			return d.Fill(ctx, selEmailField, creds.Email)
		}},
		{"continue", loginStepTimeout, func(ctx context.Context, d browser.Driver) error {
			return d.Click(ctx, selContinue)
		}},
		{"wait for password field", loginStepTimeout, func(ctx context.Context, d browser.Driver) error {
			return d.WaitVisible(ctx, selPasswordField, loginStepTimeout)
		}},
		// The portal scores keystroke timing; a pasted password is
		// rejected, so it goes in one key at a time.
		{"type password", 0, func(ctx context.Context, d browser.Driver) error {
			return d.TypeKeys(ctx, selPasswordField, creds.Password, keyDelay)
		}},
		{"submit", loginStepTimeout, func(ctx context.Context, d browser.Driver) error {
			return d.Click(ctx, selLoginSubmit)
		}},
		{"leave sign-in", postLoginTimeout, func(ctx context.Context, d browser.Driver) error {
			return f.waitSignInGone(ctx, d, postLoginTimeout)
		}},
	}

	for _, step := range steps {
		applog.Debug("login step", "step", step.name)
		if err := step.run(ctx, d); err != nil {
			return fmt.Errorf("%w: step %q: %v", ErrAuthentication, step.name, err)
		}
	}

	applog.Info("login successful")
	return nil
}

// waitSignInGone polls the current URL until it no longer indicates the
// sign-in flow, or the timeout elapses.
func (f *AuthFlow) waitSignInGone(ctx context.Context, d browser.Driver, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	for {
		url, err := d.CurrentURL(ctx)
		if err == nil && !strings.Contains(url, signInURLFragment) {
			return nil
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("still on sign-in after %s (url %q)", timeout, url)
		}
		if err := d.Sleep(ctx, 500*time.Millisecond); err != nil {
			return err
		}
	}
}

func (f *AuthFlow) persistSession(ctx context.Context, sc browser.SessionCarrier) error {
	sess, err := sc.ExportSession(ctx)
	if err != nil {
		return err
	}
	if err := browser.SaveSession(f.cfg.SessionFile, sess); err != nil {
		return err
	}
	applog.Info("session blob saved", "path", f.cfg.SessionFile, "cookies", len(sess.Cookies))
	return nil
}
