package browser

import (
	"context"
	"fmt"
	"math/rand"
	"strings"
	"time"

	"github.com/chromedp/chromedp"
	"go.uber.org/zap"
)

// ErrChallenge is returned when the marketplace serves a bot-check page
// instead of the ad.
var ErrChallenge = fmt.Errorf("challenge page served")

// challengeMarkers identify bot-check pages across UI languages.
var challengeMarkers = []string{
	"verify", "captcha", "access denied",
	"пожалуйста, подтвердите", "robot", "are you human",
}

// cookieButtons covers the consent banner in all three UI languages.
var cookieButtons = []string{
	`//button[contains(., "Принять")]`,
	`//button[contains(., "Qabul qilish")]`,
	`//button[contains(., "Accept")]`,
}

var userAgents = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/16.2 Safari/605.1.15",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36 Edg/120.0.0.0",
	"Mozilla/5.0 (Linux; Android 13; SM-G991B) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Mobile Safari/537.36",
}

// Fetcher drives a headless browser against the marketplace: listing-page
// navigation, consent clicks and the phone-reveal interaction. It never
// interprets page content beyond challenge detection; extraction happens
// downstream.
type Fetcher struct {
	logger    *zap.Logger
	chromeBin string
	navWait   time.Duration
	minDelay  time.Duration
	maxDelay  time.Duration
}

// NewFetcher builds a fetcher. chromeBin may be empty to use the system
// default browser binary.
func NewFetcher(chromeBin string, logger *zap.Logger) *Fetcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Fetcher{
		logger:    logger,
		chromeBin: chromeBin,
		navWait:   60 * time.Second,
		minDelay:  2 * time.Second,
		maxDelay:  5 * time.Second,
	}
}

// NewBrowserContext allocates one headless browser shared by a run. The
// returned cancel must be deferred by the caller.
func (f *Fetcher) NewBrowserContext(parent context.Context) (context.Context, context.CancelFunc) {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.UserAgent(userAgents[rand.Intn(len(userAgents))]),
	)
	if f.chromeBin != "" {
		opts = append(opts, chromedp.ExecPath(f.chromeBin))
	}

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(parent, opts...)
	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx,
		chromedp.WithLogf(func(string, ...interface{}) {}))

	cancel := func() {
		cancelBrowser()
		cancelAlloc()
	}
	return browserCtx, cancel
}

// FetchListingPage navigates to a search results page, dismisses the
// cookie banner if present, and returns the rendered HTML.
func (f *Fetcher) FetchListingPage(ctx context.Context, url string) (string, error) {
	navCtx, cancel := context.WithTimeout(ctx, f.navWait)
	defer cancel()

	var html string
	err := chromedp.Run(navCtx,
		chromedp.Navigate(url),
		chromedp.ActionFunc(f.dismissCookieBanner),
		chromedp.WaitVisible(`a[href*="/d/obyavlenie/"]`, chromedp.ByQuery),
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
	)
	if err != nil {
		return "", fmt.Errorf("fetch listing page %s: %w", url, err)
	}
	return html, nil
}

// FetchAdPage navigates to an ad page, optionally clicks the phone-reveal
// button, and returns the rendered HTML plus the revealed phone text.
// Challenge pages return ErrChallenge so the caller can skip the ad.
func (f *Fetcher) FetchAdPage(ctx context.Context, url string, revealPhone bool) (html, phone string, err error) {
	navCtx, cancel := context.WithTimeout(ctx, f.navWait)
	defer cancel()

	err = chromedp.Run(navCtx,
		chromedp.Navigate(url),
		chromedp.WaitVisible("h1", chromedp.ByQuery),
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
	)
	if err != nil {
		return "", "", fmt.Errorf("fetch ad page %s: %w", url, err)
	}

	lower := strings.ToLower(html)
	for _, marker := range challengeMarkers {
		if strings.Contains(lower, marker) {
			f.logger.Warn("challenge page detected", zap.String("url", url))
			return "", "", ErrChallenge
		}
	}

	if revealPhone {
		phone = f.revealPhone(navCtx, url)
		if phone != "" {
			// Re-read the page so any phone markup lands in the HTML too.
			_ = chromedp.Run(navCtx, chromedp.OuterHTML("html", &html, chromedp.ByQuery))
		}
	}

	return html, phone, nil
}

// revealPhone clicks the reveal button; failure is expected (blocked in
// CI, no phone on the ad) and only logged.
func (f *Fetcher) revealPhone(ctx context.Context, url string) string {
	clickCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	var phone string
	err := chromedp.Run(clickCtx,
		chromedp.Click(`[data-testid="phone-reveal-button"]`, chromedp.ByQuery),
		chromedp.Sleep(1500*time.Millisecond),
		chromedp.Text(`[data-testid="phone-reveal-phone"]`, &phone, chromedp.ByQuery),
	)
	if err != nil {
		f.logger.Warn("phone reveal failed", zap.String("url", url), zap.Error(err))
		return ""
	}
	return strings.TrimSpace(phone)
}

// dismissCookieBanner clicks the first matching consent button; absence is
// not an error.
func (f *Fetcher) dismissCookieBanner(ctx context.Context) error {
	for _, sel := range cookieButtons {
		clickCtx, cancel := context.WithTimeout(ctx, 1500*time.Millisecond)
		err := chromedp.Click(sel, chromedp.BySearch).Do(clickCtx)
		cancel()
		if err == nil {
			return nil
		}
	}
	return nil
}

// Throttle sleeps a random human-ish delay between page fetches.
func (f *Fetcher) Throttle(ctx context.Context) {
	d := f.minDelay + time.Duration(rand.Int63n(int64(f.maxDelay-f.minDelay)))
	select {
	case <-ctx.Done():
	case <-time.After(d):
	}
}
