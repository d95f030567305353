// Package browser runs the block deletion suite through real browsers against
// the local reference editor. All tests use BrowserTestEnv via
// SetupBrowserTestEnv(t) and skip when no browser can be started.
package browser

import (
	"context"
	"net/http/httptest"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"testing"
	"time"

	"github.com/playwright-community/playwright-go"

	"github.com/kuitang/blockcheck/internal/driver"
	"github.com/kuitang/blockcheck/internal/ratelimit"
	"github.com/kuitang/blockcheck/internal/web"
)

const (
	// CODING AGENT RULE: Always use these timeout constants for browser tests.
	// Never introduce a larger timeout value anywhere in tests/browser.
	browserMaxTimeoutMS = 5000
	browserMaxTimeout   = 5 * time.Second

	// A scenario makes a few dozen driver calls.
	scenarioTimeout = 30 * time.Second
)

var browserFixtureMu sync.Mutex
var browserSharedFixture *BrowserTestEnv

// BrowserTestEnv serves the reference editor and owns a Playwright browser
// for tests that drive pages directly.
type BrowserTestEnv struct {
	Server    *httptest.Server
	BaseURL   string
	EditorSrv *web.Server

	pw        *playwright.Playwright
	browser   playwright.Browser
	browserMu sync.Mutex
}

// SetupBrowserTestEnv returns the shared environment, skipping in -short mode.
func SetupBrowserTestEnv(t *testing.T) *BrowserTestEnv {
	t.Helper()
	if testing.Short() {
		t.Skip("browser tests are skipped in -short mode")
	}

	browserFixtureMu.Lock()
	defer browserFixtureMu.Unlock()
	if browserSharedFixture != nil {
		return browserSharedFixture
	}

	srv, err := web.NewServer(web.Options{
		Apple: isApple(),
		RateLimit: ratelimit.Config{
			RPS:             10000,
			Burst:           100000,
			CleanupInterval: time.Hour,
		},
	})
	if err != nil {
		t.Fatalf("Failed to create editor server: %v", err)
	}
	server := httptest.NewServer(srv.Handler())
	browserSharedFixture = &BrowserTestEnv{
		Server:    server,
		BaseURL:   server.URL,
		EditorSrv: srv,
	}
	return browserSharedFixture
}

func cleanupSharedBrowserTestEnv() {
	browserFixtureMu.Lock()
	defer browserFixtureMu.Unlock()
	if browserSharedFixture == nil {
		return
	}
	if browserSharedFixture.browser != nil {
		_ = browserSharedFixture.browser.Close()
	}
	if browserSharedFixture.pw != nil {
		_ = browserSharedFixture.pw.Stop()
	}
	browserSharedFixture.Server.Close()
	browserSharedFixture.EditorSrv.Close()
	browserSharedFixture = nil
}

func TestMain(m *testing.M) {
	code := m.Run()
	cleanupSharedBrowserTestEnv()
	os.Exit(code)
}

func isApple() bool {
	return runtime.GOOS == "darwin"
}

// DriverOptions returns driver options pointing at the test server.
func (env *BrowserTestEnv) DriverOptions() driver.Options {
	return driver.Options{
		BaseURL:       env.BaseURL,
		Flavor:        driver.Local,
		Apple:         isApple(),
		Headless:      true,
		ActionTimeout: browserMaxTimeout,
		RunID:         "browser-test",
	}
}

// CommittedSnapshotDir is where the suite's recorded snapshots live.
func CommittedSnapshotDir() string {
	_, file, _, _ := runtime.Caller(0)
	return filepath.Join(filepath.Dir(file), "..", "..", "internal", "scenarios", "testdata", "__snapshots__")
}

// =============================================================================
// Browser lifecycle helpers
// =============================================================================

// InitBrowser initializes Playwright and launches Chromium. Skips the test if not available.
func (env *BrowserTestEnv) InitBrowser(t *testing.T) {
	t.Helper()

	env.browserMu.Lock()
	defer env.browserMu.Unlock()

	if env.browser != nil {
		return
	}

	pw, err := playwright.Run()
	if err != nil {
		t.Skip("Playwright not available:", err)
	}

	browser, err := pw.Chromium.Launch(playwright.BrowserTypeLaunchOptions{
		Headless: playwright.Bool(true),
	})
	if err != nil {
		_ = pw.Stop()
		t.Skip("Could not launch browser:", err)
	}
	env.pw = pw
	env.browser = browser
}

// NewPage creates a new browser page with default 5s timeout.
func (env *BrowserTestEnv) NewPage(t *testing.T) playwright.Page {
	t.Helper()

	page, err := env.browser.NewPage()
	if err != nil {
		t.Fatalf("could not create page: %v", err)
	}
	page.SetDefaultTimeout(browserMaxTimeoutMS)
	page.SetDefaultNavigationTimeout(browserMaxTimeoutMS)
	t.Cleanup(func() { _ = page.Close() })
	return page
}

// =============================================================================
// Navigation and wait helpers
// =============================================================================

// Navigate navigates to a path on the test server and waits for DOMContentLoaded.
func Navigate(t *testing.T, page playwright.Page, baseURL, path string) {
	t.Helper()

	_, err := page.Goto(baseURL+path, playwright.PageGotoOptions{
		WaitUntil: playwright.WaitUntilStateDomcontentloaded,
		Timeout:   playwright.Float(browserMaxTimeoutMS),
	})
	if err != nil {
		t.Fatalf("Failed to navigate to %s: %v", path, err)
	}
}

// WaitForSelector waits for an element to be visible and returns its locator.
func WaitForSelector(t *testing.T, page playwright.Page, selector string) playwright.Locator {
	t.Helper()

	first := page.Locator(selector).First()
	err := first.WaitFor(playwright.LocatorWaitForOptions{
		State:   playwright.WaitForSelectorStateVisible,
		Timeout: playwright.Float(browserMaxTimeoutMS),
	})
	if err != nil {
		content, _ := page.Content()
		if len(content) > 500 {
			content = content[:500] + "..."
		}
		t.Logf("Current URL: %s", page.URL())
		t.Logf("Content preview: %s", content)
		t.Fatalf("Failed to wait for selector %s: %v", selector, err)
	}
	return first
}

// EditorContent returns the serialized post from the page script.
func EditorContent(t *testing.T, page playwright.Page) string {
	t.Helper()

	v, err := page.Evaluate("() => window.blockEditor.settle().then(() => window.blockEditor.content())")
	if err != nil {
		t.Fatalf("Failed to read editor content: %v", err)
	}
	s, ok := v.(string)
	if !ok {
		t.Fatalf("editor content is %T, not a string", v)
	}
	return s
}

func scenarioContext(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 6*scenarioTimeout)
	t.Cleanup(cancel)
	return ctx
}
