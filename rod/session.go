// Package rod drives a real Chrome browser session against a Moodle
// deployment. The interactive login flow runs in the browser; file
// downloads run over a plain HTTP client that shares the browser's
// cookies, so every fetch is authenticated without re-rendering pages.
package rod

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/orenbm/moodledown"
	moodhttp "github.com/orenbm/moodledown/http"
	"golang.org/x/net/publicsuffix"
)

// UserAgent is sent both by the browser context and the download client.
// The two must match or Moodle's session checks may reject the downloads.
const UserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/115.0.0.0 Safari/537.36"

const (
	dashboardWait   = 25 * time.Second
	navigateTimeout = 20 * time.Second
)

// Ensure Session satisfies both roles it plays for the rest of the system.
var (
	_ moodledown.Fetcher    = (*Session)(nil)
	_ moodledown.PageSource = (*Session)(nil)
)

// Session is an authenticated Moodle browser session. It is not safe for
// concurrent use; run one Session per course when downloading in parallel.
type Session struct {
	baseURL  string
	browser  *rod.Browser
	launcher *launcher.Launcher
	page     *rod.Page
	fetcher  *moodhttp.Fetcher
	jar      *cookiejar.Jar
	logger   *slog.Logger
	headless bool
}

// SessionOption configures a Session.
type SessionOption func(*Session)

// WithHeadless controls browser visibility. The default is a visible
// browser: the login form carries a recaptcha and a human may need to
// intervene.
func WithHeadless(headless bool) SessionOption {
	return func(s *Session) {
		s.headless = headless
	}
}

// NewSession launches a browser and prepares the shared-cookie download
// client. baseURL is the deployment root including the year segment, e.g.
// "https://moodle.example.edu/2024-25". Close must be called when the
// Session is no longer needed.
func NewSession(baseURL string, logger *slog.Logger, opts ...SessionOption) (*Session, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	s := &Session{
		baseURL: strings.TrimRight(baseURL, "/"),
		logger:  logger,
	}
	for _, opt := range opts {
		opt(s)
	}

	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return nil, fmt.Errorf("creating cookie jar: %w", err)
	}
	s.jar = jar
	s.fetcher = moodhttp.NewFetcher(
		moodhttp.WithCookieJar(jar),
		moodhttp.WithUserAgent(UserAgent),
	)

	lnchr := launcher.New().
		Leakless(true).
		Headless(s.headless)
	u, err := lnchr.Launch()
	if err != nil {
		return nil, fmt.Errorf("launching browser: %w", err)
	}

	browser := rod.New().ControlURL(u)
	if err := browser.Connect(); err != nil {
		lnchr.Kill()
		return nil, fmt.Errorf("connecting to browser: %w", err)
	}
	s.browser = browser
	s.launcher = lnchr

	page, err := browser.Page(proto.TargetCreateTarget{})
	if err != nil {
		s.Close()
		return nil, fmt.Errorf("opening page: %w", err)
	}
	s.page = page

	if err := page.SetUserAgent(&proto.NetworkSetUserAgentOverride{UserAgent: UserAgent}); err != nil {
		s.Close()
		return nil, fmt.Errorf("setting user agent: %w", err)
	}
	// Some deployments gate the login form behind naive automation checks.
	_, err = proto.PageAddScriptToEvaluateOnNewDocument{
		Source: "Object.defineProperty(navigator, 'webdriver', { get: () => undefined });",
	}.Call(page)
	if err != nil {
		s.Close()
		return nil, fmt.Errorf("installing init script: %w", err)
	}

	s.logger.Info("browser session ready", "base_url", s.baseURL, "headless", s.headless)
	return s, nil
}

// Login authenticates through the email login tab. It returns an error
// when the dashboard is not reached, including any visible form error.
func (s *Session) Login(ctx context.Context, username, password string) error {
	loginURL := s.baseURL + "/login/index.php"
	s.logger.Info("navigating to login page", "url", loginURL)

	page := s.page.Context(ctx)
	if err := page.Navigate(loginURL); err != nil {
		return fmt.Errorf("navigating to login page: %w", err)
	}
	if err := page.WaitLoad(); err != nil {
		return fmt.Errorf("waiting for login page: %w", err)
	}

	tab, err := page.Timeout(10 * time.Second).Element("a[href='#pills-email']")
	if err != nil {
		return fmt.Errorf("email login tab not found: %w", err)
	}
	if err := tab.Hover(); err != nil {
		return fmt.Errorf("hovering email login tab: %w", err)
	}
	humanPause()
	if err := tab.Click(proto.InputMouseButtonLeft, 1); err != nil {
		return fmt.Errorf("clicking email login tab: %w", err)
	}

	form, err := page.Timeout(10 * time.Second).Element("form#f3")
	if err != nil {
		return fmt.Errorf("login form not found: %w", err)
	}

	if err := s.typeInto(form, "#username", username); err != nil {
		return fmt.Errorf("entering username: %w", err)
	}
	humanPause()
	if err := s.typeInto(form, "#password", password); err != nil {
		return fmt.Errorf("entering password: %w", err)
	}
	s.logger.Info("entered credentials", "user", username)

	humanPause()
	submit, err := form.Element("button.btn.btn-primary.g-recaptcha")
	if err != nil {
		return fmt.Errorf("submit button not found: %w", err)
	}
	if err := submit.Hover(); err != nil {
		return fmt.Errorf("hovering submit button: %w", err)
	}
	humanPause()
	if err := submit.Click(proto.InputMouseButtonLeft, 1); err != nil {
		return fmt.Errorf("submitting login form: %w", err)
	}

	if err := s.waitForURL(ctx, "/my/", dashboardWait); err != nil {
		if msg := s.loginError(); msg != "" {
			return moodledown.Errorf(moodledown.EUNAVAILABLE, "login failed: %s", msg)
		}
		current, _ := s.currentURL()
		return moodledown.Errorf(moodledown.EUNAVAILABLE, "login failed: did not reach dashboard (at %s)", current)
	}
	s.logger.Info("login successful")
	return nil
}

// typeInto fills one form field character by character with small random
// delays, closer to a human than a single paste.
func (s *Session) typeInto(form *rod.Element, selector, value string) error {
	field, err := form.Element(selector)
	if err != nil {
		return err
	}
	if err := field.Click(proto.InputMouseButtonLeft, 1); err != nil {
		return err
	}
	for _, r := range value {
		if err := field.Input(string(r)); err != nil {
			return err
		}
		time.Sleep(time.Duration(30+rand.IntN(90)) * time.Millisecond)
	}
	return nil
}

// loginError pulls a visible login error message, if any.
func (s *Session) loginError() string {
	el, err := s.page.Timeout(time.Second).Element(".loginerrors .error, #loginerrormessage")
	if err != nil {
		return ""
	}
	text, err := el.Text()
	if err != nil {
		return ""
	}
	return strings.TrimSpace(text)
}

// NavigateCourse loads a course page and verifies the browser landed on
// one.
func (s *Session) NavigateCourse(ctx context.Context, courseURL string) error {
	if courseURL == "" {
		return moodledown.Errorf(moodledown.EINVALID, "course URL is empty")
	}
	s.logger.Info("navigating to course", "url", courseURL)

	navCtx, cancel := context.WithTimeout(ctx, navigateTimeout)
	defer cancel()

	page := s.page.Context(navCtx)
	if err := page.Navigate(courseURL); err != nil {
		return fmt.Errorf("navigating to course: %w", err)
	}
	if err := page.WaitLoad(); err != nil {
		return fmt.Errorf("waiting for course page: %w", err)
	}

	current, err := s.currentURL()
	if err != nil {
		return err
	}
	if !strings.Contains(current, "/course/view.php") {
		return moodledown.Errorf(moodledown.EUNAVAILABLE, "unexpected page after course navigation: %s", current)
	}
	return nil
}

// NavigateDashboard loads the dashboard, where enrolled courses are
// listed.
func (s *Session) NavigateDashboard(ctx context.Context) error {
	dashboardURL := s.baseURL + "/my/"
	s.logger.Info("navigating to dashboard", "url", dashboardURL)

	navCtx, cancel := context.WithTimeout(ctx, navigateTimeout)
	defer cancel()

	page := s.page.Context(navCtx)
	if err := page.Navigate(dashboardURL); err != nil {
		return fmt.Errorf("navigating to dashboard: %w", err)
	}
	if err := page.WaitLoad(); err != nil {
		return fmt.Errorf("waiting for dashboard: %w", err)
	}

	current, err := s.currentURL()
	if err != nil {
		return err
	}
	if !strings.Contains(current, "/my/") {
		return moodledown.Errorf(moodledown.EUNAVAILABLE, "unexpected page after dashboard navigation: %s", current)
	}
	return nil
}

// HTML returns the rendered HTML of the current page together with its
// URL, for the classifier to work on.
func (s *Session) HTML() (string, string, error) {
	html, err := s.page.HTML()
	if err != nil {
		return "", "", fmt.Errorf("reading page content: %w", err)
	}
	pageURL, err := s.currentURL()
	if err != nil {
		return "", "", err
	}
	return html, pageURL, nil
}

// Fetch downloads a URL over the plain HTTP fetcher, first syncing the
// browser's cookies into the shared jar so the request is authenticated.
func (s *Session) Fetch(ctx context.Context, rawURL string) (*moodledown.Response, error) {
	if err := s.syncCookies(); err != nil {
		return nil, fmt.Errorf("syncing session cookies: %w", err)
	}
	return s.fetcher.Fetch(ctx, rawURL)
}

// syncCookies copies the browser's current cookies into the download
// client's jar. Called before every fetch because Moodle rotates session
// cookies.
func (s *Session) syncCookies() error {
	cookies, err := s.browser.GetCookies()
	if err != nil {
		return err
	}
	for scope, group := range groupCookies(cookies) {
		u, err := url.Parse(scope)
		if err != nil {
			continue
		}
		s.jar.SetCookies(u, group)
	}
	return nil
}

// groupCookies converts browser cookies to HTTP client cookies, grouped by
// the scope URL they should be set under.
func groupCookies(cookies []*proto.NetworkCookie) map[string][]*http.Cookie {
	grouped := make(map[string][]*http.Cookie)
	for _, c := range cookies {
		domain := strings.TrimPrefix(c.Domain, ".")
		if domain == "" {
			continue
		}
		scheme := "http"
		if c.Secure {
			scheme = "https"
		}
		scope := scheme + "://" + domain + "/"
		grouped[scope] = append(grouped[scope], &http.Cookie{
			Name:   c.Name,
			Value:  c.Value,
			Path:   c.Path,
			Domain: domain,
			Secure: c.Secure,
		})
	}
	return grouped
}

// waitForURL polls the page URL until it contains fragment or the wait
// times out.
func (s *Session) waitForURL(ctx context.Context, fragment string, wait time.Duration) error {
	deadline := time.Now().Add(wait)
	for {
		current, err := s.currentURL()
		if err == nil && strings.Contains(current, fragment) {
			return nil
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("timed out waiting for URL containing %q", fragment)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(250 * time.Millisecond):
		}
	}
}

func (s *Session) currentURL() (string, error) {
	info, err := s.page.Info()
	if err != nil {
		return "", fmt.Errorf("reading page info: %w", err)
	}
	return info.URL, nil
}

// humanPause sleeps for a short random interval between UI interactions.
func humanPause() {
	time.Sleep(time.Duration(300+rand.IntN(900)) * time.Millisecond)
}

// Close releases the browser and its launcher. Safe to call on a
// partially constructed session.
func (s *Session) Close() error {
	var err error
	if s.browser != nil {
		err = s.browser.Close()
		s.browser = nil
	}
	if s.launcher != nil {
		s.launcher.Kill()
		s.launcher = nil
	}
	return err
}
