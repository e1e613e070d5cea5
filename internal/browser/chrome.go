package browser

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	cdpbrowser "github.com/chromedp/cdproto/browser"
	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/storage"
	"github.com/chromedp/chromedp"

	applog "apptsheet/internal/log"
)

// Default timeouts for driver operations. Individual flow steps override
// these where the portal is known to be slower (export, detail views).
const (
	DefaultNavigateTimeout = 30 * time.Second
	DefaultActionTimeout   = 15 * time.Second
)

// ChromeOptions defines parameters for launching the Chromium instance
// backing a pipeline run.
type ChromeOptions struct {
	// Headless controls whether Chromium runs without a visible window.
	Headless bool

	// DownloadDir is where triggered downloads are materialized before
	// being read back as bytes. If empty, a temp directory is created
	// and removed on Close.
	DownloadDir string
}

// Chrome implements Driver and SessionCarrier on top of chromedp. One
// Chrome value owns one browsing context; it is acquired at pipeline
// start and must be released with Close on every exit path.
type Chrome struct {
	allocCancel context.CancelFunc
	ctx         context.Context
	cancel      context.CancelFunc

	downloadDir    string
	ownDownloadDir bool
	downloads      chan string
}

var _ Driver = (*Chrome)(nil)
var _ SessionCarrier = (*Chrome)(nil)

// NewChrome launches a Chromium instance and prepares download capture.
func NewChrome(parentCtx context.Context, opts ChromeOptions) (*Chrome, error) {
	c := &Chrome{
		downloadDir: opts.DownloadDir,
		downloads:   make(chan string, 4),
	}

	if c.downloadDir == "" {
		dir, err := os.MkdirTemp("", "apptsheet-dl-*")
		if err != nil {
			return nil, fmt.Errorf("browser: create download dir: %w", err)
		}
		c.downloadDir = dir
		c.ownDownloadDir = true
	}

	allocOpts := append([]chromedp.ExecAllocatorOption{},
		chromedp.DefaultExecAllocatorOptions[:]...)
	if !opts.Headless {
		allocOpts = append(allocOpts,
			chromedp.Flag("headless", false),
			chromedp.Flag("hide-scrollbars", false),
			chromedp.Flag("mute-audio", false),
		)
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(parentCtx, allocOpts...)
	ctx, cancel := chromedp.NewContext(allocCtx)

	c.allocCancel = allocCancel
	c.ctx = ctx
	c.cancel = cancel

	// Completed downloads are announced by GUID; WaitDownload picks the
	// file up from downloadDir.
	chromedp.ListenTarget(ctx, func(ev any) {
		if e, ok := ev.(*cdpbrowser.EventDownloadProgress); ok &&
			e.State == cdpbrowser.DownloadProgressStateCompleted {
			select {
			case c.downloads <- e.GUID:
			default:
				applog.Debug("download event dropped, channel full", "guid", e.GUID)
			}
		}
	})

	// Start the browser and route downloads into downloadDir, keyed by
	// GUID so concurrent names cannot collide.
	err := c.run(parentCtx, DefaultNavigateTimeout,
		cdpbrowser.SetDownloadBehavior(cdpbrowser.SetDownloadBehaviorBehaviorAllowAndName).
			WithDownloadPath(c.downloadDir).
			WithEventsEnabled(true),
	)
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("browser: launch: %w", err)
	}

	return c, nil
}

// Close releases the browsing context and the allocator. Safe to call
// more than once.
func (c *Chrome) Close() {
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	if c.allocCancel != nil {
		c.allocCancel()
		c.allocCancel = nil
	}
	if c.ownDownloadDir && c.downloadDir != "" {
		os.RemoveAll(c.downloadDir)
		c.downloadDir = ""
	}
}

func (c *Chrome) Navigate(ctx context.Context, url string) error {
	return c.run(ctx, DefaultNavigateTimeout, chromedp.Navigate(url))
}

func (c *Chrome) WaitVisible(ctx context.Context, selector string, timeout time.Duration) error {
	return c.run(ctx, timeout, chromedp.WaitVisible(selector, queryKind(selector)))
}

func (c *Chrome) Click(ctx context.Context, selector string) error {
	return c.run(ctx, DefaultActionTimeout, chromedp.Click(selector, queryKind(selector)))
}

func (c *Chrome) Fill(ctx context.Context, selector, value string) error {
	return c.run(ctx, DefaultActionTimeout,
		chromedp.WaitVisible(selector, queryKind(selector)),
		chromedp.SendKeys(selector, value, queryKind(selector)),
	)
}

func (c *Chrome) TypeKeys(ctx context.Context, selector, text string, perKey time.Duration) error {
	if err := c.run(ctx, DefaultActionTimeout, chromedp.WaitVisible(selector, queryKind(selector))); err != nil {
		return err
	}
	for _, r := range text {
		if err := c.run(ctx, DefaultActionTimeout,
			chromedp.SendKeys(selector, string(r), queryKind(selector))); err != nil {
			return err
		}
		if err := c.Sleep(ctx, perKey); err != nil {
			return err
		}
	}
	return nil
}

func (c *Chrome) CurrentURL(ctx context.Context) (string, error) {
	var url string
	err := c.run(ctx, DefaultActionTimeout, chromedp.Location(&url))
	return url, err
}

func (c *Chrome) Frames(ctx context.Context) ([]Frame, error) {
	var nodes []*cdp.Node
	err := c.run(ctx, DefaultActionTimeout,
		chromedp.Nodes(`iframe`, &nodes, chromedp.ByQueryAll, chromedp.AtLeast(0)))
	if err != nil {
		return nil, err
	}

	frames := make([]Frame, 0, len(nodes))
	for _, n := range nodes {
		id := n.AttributeValue("src")
		if id == "" {
			id = fmt.Sprintf("iframe#%d", n.NodeID)
		}
		frames = append(frames, Frame{ID: id, node: n})
	}
	return frames, nil
}

func (c *Chrome) ClickInFrame(ctx context.Context, frame Frame, selector string, timeout time.Duration) error {
	if frame.node == nil {
		return fmt.Errorf("browser: frame %q has no node handle", frame.ID)
	}
	return c.run(ctx, timeout,
		chromedp.WaitVisible(selector, chromedp.ByQuery, chromedp.FromNode(frame.node)),
		chromedp.Click(selector, chromedp.ByQuery, chromedp.FromNode(frame.node)),
	)
}

func (c *Chrome) OuterHTML(ctx context.Context, selector string) (string, error) {
	var html string
	err := c.run(ctx, DefaultActionTimeout,
		chromedp.OuterHTML(selector, &html, queryKind(selector)))
	return html, err
}

func (c *Chrome) WaitDownload(ctx context.Context, timeout time.Duration) ([]byte, error) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case guid := <-c.downloads:
		path := filepath.Join(c.downloadDir, guid)
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("browser: read downloaded file: %w", err)
		}
		os.Remove(path)
		return data, nil
	case <-timer.C:
		return nil, fmt.Errorf("browser: no download completed within %s", timeout)
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (c *Chrome) Back(ctx context.Context) error {
	return c.run(ctx, DefaultNavigateTimeout, chromedp.NavigateBack())
}

func (c *Chrome) Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// ExportSession captures cookies and the current origin's localStorage
// into a Session blob.
func (c *Chrome) ExportSession(ctx context.Context) (*Session, error) {
	var cookies []*network.Cookie
	var rawStorage string

	err := c.run(ctx, DefaultActionTimeout,
		chromedp.ActionFunc(func(ctx context.Context) error {
			var err error
			cookies, err = storage.GetCookies().Do(ctx)
			return err
		}),
		chromedp.Evaluate(`JSON.stringify(Object.assign({}, window.localStorage))`, &rawStorage),
	)
	if err != nil {
		return nil, fmt.Errorf("browser: export session: %w", err)
	}

	local := map[string]string{}
	if rawStorage != "" {
		if err := json.Unmarshal([]byte(rawStorage), &local); err != nil {
			applog.Error("localStorage snapshot not parseable, keeping cookies only", err)
			local = map[string]string{}
		}
	}

	return &Session{
		SavedAt:      time.Now().UTC(),
		Cookies:      cookieParams(cookies),
		LocalStorage: local,
	}, nil
}

// ImportSession installs a previously exported Session into the live
// browser. localStorage restore requires the portal origin to be loaded
// first; callers navigate there before importing.
func (c *Chrome) ImportSession(ctx context.Context, s *Session) error {
	if s == nil {
		return nil
	}

	actions := []chromedp.Action{
		chromedp.ActionFunc(func(ctx context.Context) error {
			if len(s.Cookies) == 0 {
				return nil
			}
			return storage.SetCookies(s.Cookies).Do(ctx)
		}),
	}

	if len(s.LocalStorage) > 0 {
		blob, err := json.Marshal(s.LocalStorage)
		if err != nil {
			return fmt.Errorf("browser: marshal localStorage: %w", err)
		}
		script := fmt.Sprintf(
			`(() => { const data = %s; for (const [k, v] of Object.entries(data)) window.localStorage.setItem(k, v); return true; })()`,
			string(blob))
		var ok bool
		actions = append(actions, chromedp.Evaluate(script, &ok))
	}

	if err := c.run(ctx, DefaultActionTimeout, actions...); err != nil {
		return fmt.Errorf("browser: import session: %w", err)
	}
	return nil
}

// run executes chromedp actions on this browsing context with a bounded
// timeout. The caller's ctx is only consulted for early cancellation;
// each wait is bounded by its own timeout.
func (c *Chrome) run(ctx context.Context, timeout time.Duration, actions ...chromedp.Action) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	runCtx := c.ctx
	if timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(runCtx, timeout)
		defer cancel()
	}
	return chromedp.Run(runCtx, actions...)
}

// queryKind picks the chromedp query option for a selector: XPath and
// text searches start with "/" or "(", everything else is CSS.
func queryKind(selector string) chromedp.QueryOption {
	if strings.HasPrefix(selector, "/") || strings.HasPrefix(selector, "(") {
		return chromedp.BySearch
	}
	return chromedp.ByQuery
}

func cookieParams(cookies []*network.Cookie) []*network.CookieParam {
	out := make([]*network.CookieParam, 0, len(cookies))
	for _, ck := range cookies {
		p := &network.CookieParam{
			Name:     ck.Name,
			Value:    ck.Value,
			Domain:   ck.Domain,
			Path:     ck.Path,
			Secure:   ck.Secure,
			HTTPOnly: ck.HTTPOnly,
			SameSite: ck.SameSite,
		}
		if ck.Expires > 0 {
			exp := cdp.TimeSinceEpoch(time.Unix(int64(ck.Expires), 0))
			p.Expires = &exp
		}
		out = append(out, p)
	}
	return out
}
