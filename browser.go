package main

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"
)

const (
	// DefaultWaitTimeout bounds the wait for the ready element.
	DefaultWaitTimeout = 15 * time.Second
	defaultAction      = "submit"
)

// ErrWaitTimeout is returned by BrowserSession.WaitForElement when the
// element did not appear in time.
var ErrWaitTimeout = errors.New("element wait timed out")

// BrowserSession is an external browser process driven over one page.
type BrowserSession interface {
	Navigate(ctx context.Context, url string) error
	WaitForElement(ctx context.Context, id string, timeout time.Duration) error
	ExecuteScript(ctx context.Context, script string) (string, error)
	Quit() error
}

// BrowserLaunchOptions selects launch flags for NewBrowserSession.
type BrowserLaunchOptions struct {
	// ExecPath overrides the browser binary lookup.
	ExecPath  string
	UserAgent string
	Logger    Logger
}

// NewBrowserSession starts configuring an unattended browser of the given
// family: headless, incognito with a throwaway profile, sandbox off,
// extensions off. Only "chrome" (alias "chromium") is supported; any other
// family fails here, before a process is started. The process itself is
// launched lazily on first use.
func NewBrowserSession(ctx context.Context, family string, opts BrowserLaunchOptions) (BrowserSession, error) {
	if err := checkBrowserFamily(family); err != nil {
		return nil, err
	}
	return newChromeSession(ctx, opts), nil
}

func checkBrowserFamily(family string) error {
	switch strings.ToLower(strings.TrimSpace(family)) {
	case "chrome", "chromium":
		return nil
	}
	return newTokenError(UnsupportedBrowserFamily, "launch",
		fmt.Errorf("browser %q is not supported, use chrome", family))
}

// chromeSession is a BrowserSession backed by chromedp.
type chromeSession struct {
	ctx         context.Context
	cancel      context.CancelFunc
	allocCancel context.CancelFunc
	startOnce   sync.Once
	startErr    error
	quitOnce    sync.Once
}

func chromeAllocatorOptions(opts BrowserLaunchOptions) []chromedp.ExecAllocatorOption {
	allocOpts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("incognito", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("disable-extensions", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("no-first-run", true),
		chromedp.Flag("no-default-browser-check", true),
	)
	if opts.UserAgent != "" {
		allocOpts = append(allocOpts, chromedp.UserAgent(opts.UserAgent))
	}
	if opts.ExecPath != "" {
		allocOpts = append(allocOpts, chromedp.ExecPath(opts.ExecPath))
	}
	return allocOpts
}

func newChromeSession(ctx context.Context, opts BrowserLaunchOptions) *chromeSession {
	// The browser lives until Quit, not until the caller's deadline.
	allocCtx, allocCancel := chromedp.NewExecAllocator(context.WithoutCancel(ctx), chromeAllocatorOptions(opts)...)

	var ctxOpts []chromedp.ContextOption
	if opts.Logger != nil {
		ctxOpts = append(ctxOpts, chromedp.WithLogf(opts.Logger.Log))
	}
	browserCtx, cancel := chromedp.NewContext(allocCtx, ctxOpts...)

	return &chromeSession{
		ctx:         browserCtx,
		cancel:      cancel,
		allocCancel: allocCancel,
	}
}

// start launches the browser and opens its tab. chromedp allocates the
// process under the context of the first Run, so that Run gets the session
// context itself; a derived one would kill Chrome when it is cancelled.
// If ctx ends while Chrome is still starting, the session is quit.
func (s *chromeSession) start(ctx context.Context) error {
	s.startOnce.Do(func() {
		stop := context.AfterFunc(ctx, func() { s.Quit() })
		defer stop()

		s.startErr = chromedp.Run(s.ctx)
		if s.startErr != nil && ctx.Err() != nil {
			s.startErr = ctx.Err()
		}
	})
	return s.startErr
}

// run executes actions on the tab, starting the browser first if needed.
// Cancelling ctx or hitting timeout aborts the actions without closing the
// tab.
func (s *chromeSession) run(ctx context.Context, timeout time.Duration, actions ...chromedp.Action) error {
	if err := s.start(ctx); err != nil {
		return fmt.Errorf("start browser: %w", err)
	}

	var (
		runCtx context.Context
		cancel context.CancelFunc
	)
	if timeout > 0 {
		runCtx, cancel = context.WithTimeout(s.ctx, timeout)
	} else {
		runCtx, cancel = context.WithCancel(s.ctx)
	}
	defer cancel()

	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	err := chromedp.Run(runCtx, actions...)
	if err != nil && ctx.Err() != nil {
		return ctx.Err()
	}
	return err
}

func (s *chromeSession) Navigate(ctx context.Context, url string) error {
	return s.run(ctx, 0, chromedp.Navigate(url))
}

func (s *chromeSession) WaitForElement(ctx context.Context, id string, timeout time.Duration) error {
	err := s.run(ctx, timeout, chromedp.WaitReady("#"+id, chromedp.ByID))
	if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
		return fmt.Errorf("%w: #%s after %s", ErrWaitTimeout, id, timeout)
	}
	return err
}

func (s *chromeSession) ExecuteScript(ctx context.Context, script string) (string, error) {
	var result string
	err := s.run(ctx, 0, chromedp.Evaluate(script, &result, func(p *runtime.EvaluateParams) *runtime.EvaluateParams {
		return p.WithAwaitPromise(true)
	}))
	return result, err
}

// Quit closes the tab and kills the browser process. Safe to call more than once.
func (s *chromeSession) Quit() error {
	s.quitOnce.Do(func() {
		s.cancel()
		s.allocCancel()
	})
	return nil
}

// BrowserOptions configures a BrowserSolver.
type BrowserOptions struct {
	PageURL string
	SiteKey string
	// Action is passed to grecaptcha.execute; defaults to "submit".
	Action string
	// ReadyElementID is the id of an element whose presence means the page
	// (and its grecaptcha script) has loaded.
	ReadyElementID string
	WaitTimeout    time.Duration
	Logger         Logger
}

// BrowserSolver acquires a token by running the challenge's own
// grecaptcha.execute inside a real page. It owns its session and quits it
// when GetToken returns.
type BrowserSolver struct {
	session BrowserSession
	opts    BrowserOptions
}

// NewBrowserSolver takes ownership of session.
func NewBrowserSolver(session BrowserSession, opts BrowserOptions) (*BrowserSolver, error) {
	if session == nil {
		return nil, errors.New("browser solver: nil session")
	}
	switch {
	case opts.PageURL == "":
		return nil, errors.New("browser solver: page URL is required")
	case opts.SiteKey == "":
		return nil, errors.New("browser solver: site key is required")
	case opts.ReadyElementID == "":
		return nil, errors.New("browser solver: ready element id is required")
	}
	if opts.Action == "" {
		opts.Action = defaultAction
	}
	if opts.WaitTimeout <= 0 {
		opts.WaitTimeout = DefaultWaitTimeout
	}
	if opts.Logger == nil {
		opts.Logger = nopLogger{}
	}
	return &BrowserSolver{session: session, opts: opts}, nil
}

// executeScript is the in-page issuance call, resolving to the token.
func executeScript(siteKey, action string) string {
	return fmt.Sprintf(
		"grecaptcha.execute(%s, {action: %s}).then(function(token) { return token; })",
		strconv.Quote(siteKey), strconv.Quote(action),
	)
}

// GetToken navigates, waits for the ready element, runs the issuance call
// and returns its token. The session is quit exactly once on every path.
func (b *BrowserSolver) GetToken(ctx context.Context) (string, error) {
	defer func() {
		b.opts.Logger.Log("Closing browser...")
		if err := b.session.Quit(); err != nil {
			b.opts.Logger.Log("browser quit: %v", err)
		}
	}()

	b.opts.Logger.Log("Opening %s", b.opts.PageURL)
	if err := b.session.Navigate(ctx, b.opts.PageURL); err != nil {
		return "", newTokenError(TransportFault, "navigate", err)
	}

	if err := b.session.WaitForElement(ctx, b.opts.ReadyElementID, b.opts.WaitTimeout); err != nil {
		if errors.Is(err, ErrWaitTimeout) {
			return "", newTokenError(AutomationTimeout, "wait", err)
		}
		return "", newTokenError(AutomationScriptFault, "wait", err)
	}

	b.opts.Logger.Log("Executing grecaptcha (action %s)", b.opts.Action)
	token, err := b.session.ExecuteScript(ctx, executeScript(b.opts.SiteKey, b.opts.Action))
	if err != nil {
		return "", newTokenError(AutomationScriptFault, "execute", err)
	}
	if token == "" {
		return "", newTokenError(AutomationScriptFault, "execute", errors.New("grecaptcha.execute resolved to an empty token"))
	}
	return token, nil
}
