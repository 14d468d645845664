package browser

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/storage"
	"github.com/chromedp/chromedp"

	"github.com/iconidentify/coursegrab/internal/domain"
)

// Session is an authenticated browser tab. It is not safe for concurrent
// navigation: a single owner drives it step by step.
type Session struct {
	ctx         context.Context // chromedp tab context
	cancelTab   context.CancelFunc
	cancelAlloc context.CancelFunc
	navTimeout  time.Duration
	logger      *slog.Logger

	closeOnce sync.Once
	closeErr  error
}

// run executes actions on the tab, bounded by timeout and by the caller's ctx.
func (s *Session) run(ctx context.Context, timeout time.Duration, actions ...chromedp.Action) error {
	opCtx, cancel := context.WithTimeout(s.ctx, timeout)
	defer cancel()

	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	err := chromedp.Run(opCtx, actions...)
	if err != nil && ctx.Err() != nil {
		return ctx.Err()
	}
	return err
}

// Navigate loads url in the session tab.
func (s *Session) Navigate(ctx context.Context, url string) error {
	s.logger.Debug("navigating", "url", url)
	if err := s.run(ctx, s.navTimeout, chromedp.Navigate(url)); err != nil {
		if ctx.Err() != nil {
			return err
		}
		return fmt.Errorf("%w: %s: %v", domain.ErrNavigation, url, err)
	}
	return nil
}

// WaitFor blocks until selector matches an element or timeout elapses.
func (s *Session) WaitFor(ctx context.Context, selector string, timeout time.Duration) error {
	return s.run(ctx, timeout, chromedp.WaitReady(selector, chromedp.ByQuery))
}

// HTML returns the rendered document.
func (s *Session) HTML(ctx context.Context) (string, error) {
	var html string
	if err := s.run(ctx, s.navTimeout, chromedp.OuterHTML("html", &html, chromedp.ByQuery)); err != nil {
		return "", fmt.Errorf("read document: %w", err)
	}
	return html, nil
}

// URL returns the current location of the tab.
func (s *Session) URL(ctx context.Context) (string, error) {
	var loc string
	if err := s.run(ctx, s.navTimeout, chromedp.Location(&loc)); err != nil {
		return "", fmt.Errorf("read location: %w", err)
	}
	return loc, nil
}

// Has reports whether selector currently matches an element.
func (s *Session) Has(ctx context.Context, selector string, timeout time.Duration) (bool, error) {
	var found bool
	if err := s.run(ctx, timeout, chromedp.Evaluate(querySelectorExpr(selector), &found)); err != nil {
		return false, err
	}
	return found, nil
}

// Cookies returns every cookie held by the browser, for use by plain HTTP
// clients that need the session's credentials.
func (s *Session) Cookies(ctx context.Context) ([]*http.Cookie, error) {
	var cookies []*network.Cookie
	err := s.run(ctx, s.navTimeout, chromedp.ActionFunc(func(ctx context.Context) error {
		var err error
		cookies, err = storage.GetCookies().Do(ctx)
		return err
	}))
	if err != nil {
		return nil, fmt.Errorf("read cookies: %w", err)
	}
	return toHTTPCookies(cookies), nil
}

// Close shuts down the browser. It is safe to call more than once.
func (s *Session) Close() error {
	s.closeOnce.Do(func() {
		s.logger.Info("closing browser session")
		// graceful close first so the profile is flushed
		s.closeErr = chromedp.Cancel(s.ctx)
		s.cancelTab()
		s.cancelAlloc()
	})
	return s.closeErr
}
