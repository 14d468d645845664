package browser

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/chromedp/chromedp"

	"github.com/iconidentify/coursegrab/internal/config"
	"github.com/iconidentify/coursegrab/internal/domain"
)

// Controller launches browser sessions and waits for the user to log in.
type Controller struct {
	cfg    config.BrowserConfig
	logger *slog.Logger
}

// NewController creates a new session controller.
func NewController(cfg config.BrowserConfig, logger *slog.Logger) *Controller {
	return &Controller{
		cfg:    cfg,
		logger: logger,
	}
}

// OpenAndAwaitLogin launches a browser window at courseURL and blocks until
// the login marker appears or the login timeout elapses. Login itself is
// performed by the user in that window. On error the browser is closed.
func (c *Controller) OpenAndAwaitLogin(ctx context.Context, courseURL string) (*Session, error) {
	session, err := c.launch()
	if err != nil {
		return nil, err
	}

	if err := c.awaitLogin(ctx, session, courseURL); err != nil {
		session.Close()
		return nil, err
	}
	return session, nil
}

func (c *Controller) launch() (*Session, error) {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", c.cfg.Headless),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.WindowSize(1280, 900),
	)
	if c.cfg.ProfileDir != "" {
		opts = append(opts, chromedp.UserDataDir(c.cfg.ProfileDir))
	}
	if c.cfg.ExecPath != "" {
		opts = append(opts, chromedp.ExecPath(c.cfg.ExecPath))
	}

	// The browser outlives any single request context; Close ends it.
	allocCtx, cancelAlloc := chromedp.NewExecAllocator(context.Background(), opts...)
	tabCtx, cancelTab := chromedp.NewContext(allocCtx,
		chromedp.WithLogf(func(format string, args ...any) {
			c.logger.Debug(fmt.Sprintf(format, args...), "source", "chromedp")
		}),
		chromedp.WithErrorf(func(format string, args ...any) {
			c.logger.Debug(fmt.Sprintf(format, args...), "source", "chromedp")
		}),
	)

	// First Run starts the browser and binds its lifetime to tabCtx.
	if err := chromedp.Run(tabCtx); err != nil {
		cancelTab()
		cancelAlloc()
		return nil, fmt.Errorf("start browser: %w", err)
	}

	navTimeout := c.cfg.NavTimeout
	if navTimeout <= 0 {
		navTimeout = 60 * time.Second
	}

	c.logger.Info("browser started", "headless", c.cfg.Headless, "profile", c.cfg.ProfileDir)
	return &Session{
		ctx:         tabCtx,
		cancelTab:   cancelTab,
		cancelAlloc: cancelAlloc,
		navTimeout:  navTimeout,
		logger:      c.logger,
	}, nil
}

func (c *Controller) awaitLogin(ctx context.Context, session *Session, courseURL string) error {
	if err := session.Navigate(ctx, courseURL); err != nil {
		return err
	}

	c.logger.Info("waiting for login in the browser window",
		"marker", c.cfg.LoginMarker,
		"timeout", c.cfg.LoginTimeout,
	)

	check := func(ctx context.Context) (bool, error) {
		return session.Has(ctx, c.cfg.LoginMarker, c.cfg.PollInterval)
	}
	onError := func(err error) {
		c.logger.Debug("login check failed", "error", err)
	}

	err := pollUntil(ctx, c.cfg.PollInterval, c.cfg.LoginTimeout, check, onError)
	switch {
	case err == nil:
		c.logger.Info("login detected")
		return nil
	case errors.Is(err, errPollTimeout):
		return fmt.Errorf("%w after %s", domain.ErrLoginTimeout, c.cfg.LoginTimeout)
	default:
		return err
	}
}

// querySelectorExpr builds a JS expression that is true when selector matches.
func querySelectorExpr(selector string) string {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(selector)
	return fmt.Sprintf("document.querySelector(%s) !== null", bytes.TrimSpace(buf.Bytes()))
}
