package browser

import (
	"context"
	"fmt"
	"net/http"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("schoolsync.lib.browser")

type ChromeOptions struct {
	// the verification step is completed by a human, so the browser
	// window is visible by default. Headless only makes sense against
	// test fixtures.
	Headless bool
	// optional path of the chrome binary
	ExecPath string
}

type Chrome struct {
	ctx    context.Context
	cancel context.CancelFunc
}

// NewChrome starts a chrome instance. A failure here is an environment
// error, the run cannot proceed without a working driver.
func NewChrome(ctx context.Context, opts ChromeOptions) (*Chrome, error) {
	allocOpts := append([]chromedp.ExecAllocatorOption{},
		chromedp.DefaultExecAllocatorOptions[:]...,
	)
	if !opts.Headless {
		allocOpts = append(allocOpts,
			chromedp.Flag("headless", false),
			chromedp.Flag("hide-scrollbars", false),
			chromedp.Flag("mute-audio", false),
		)
	}
	if opts.ExecPath != "" {
		allocOpts = append(allocOpts, chromedp.ExecPath(opts.ExecPath))
	}

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, allocOpts...)
	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx)

	// starts the browser process eagerly so startup failures surface
	// here instead of on the first navigation
	err := chromedp.Run(browserCtx)
	if err != nil {
		cancelBrowser()
		cancelAlloc()
		return nil, fmt.Errorf("start chrome: %w", err)
	}

	cancel := func() {
		cancelBrowser()
		cancelAlloc()
	}
	return &Chrome{ctx: browserCtx, cancel: cancel}, nil
}

func (c *Chrome) run(ctx context.Context, name string, actions ...chromedp.Action) error {
	_, span := tracer.Start(ctx, name)
	defer span.End()

	done := make(chan error, 1)
	go func() {
		done <- chromedp.Run(c.ctx, actions...)
	}()

	select {
	case err := <-done:
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		return err
	case <-ctx.Done():
		span.SetStatus(codes.Error, "cancelled")
		return ctx.Err()
	}
}

func (c *Chrome) Navigate(ctx context.Context, url string) error {
	return c.run(ctx, "Navigate", chromedp.Navigate(url))
}

func (c *Chrome) Location(ctx context.Context) (string, error) {
	var location string
	err := c.run(ctx, "Location", chromedp.Location(&location))
	return location, err
}

func (c *Chrome) Fill(ctx context.Context, selector, value string) error {
	return c.run(ctx, "Fill",
		chromedp.WaitVisible(selector, chromedp.ByQuery),
		chromedp.SetValue(selector, value, chromedp.ByQuery),
	)
}

func (c *Chrome) Click(ctx context.Context, selector string) error {
	return c.run(ctx, "Click",
		chromedp.WaitVisible(selector, chromedp.ByQuery),
		chromedp.Click(selector, chromedp.ByQuery),
	)
}

func (c *Chrome) SelectOption(ctx context.Context, selector, value string) error {
	return c.run(ctx, "SelectOption",
		chromedp.WaitVisible(selector, chromedp.ByQuery),
		chromedp.SetValue(selector, value, chromedp.ByQuery),
		// SetValue alone doesn't notify the page, the cascading selects
		// only reload their dependents on a change event
		chromedp.Evaluate(fmt.Sprintf(
			`document.querySelector(%q).dispatchEvent(new Event("change", {bubbles: true}))`,
			selector,
		), nil),
	)
}

func (c *Chrome) Exists(ctx context.Context, selector string) (bool, error) {
	var exists bool
	err := c.run(ctx, "Exists", chromedp.Evaluate(fmt.Sprintf(
		`document.querySelector(%q) !== null`,
		selector,
	), &exists))
	if err != nil {
		return false, err
	}
	return exists, nil
}

func (c *Chrome) WaitVisible(ctx context.Context, selector string) error {
	return c.run(ctx, "WaitVisible", chromedp.WaitVisible(selector, chromedp.ByQuery))
}

func (c *Chrome) OuterHTML(ctx context.Context, selector string) (string, error) {
	_, span := tracer.Start(ctx, "OuterHTML")
	defer span.End()
	span.SetAttributes(attribute.String("selector", selector))

	var html string
	err := c.run(ctx, "OuterHTML",
		chromedp.OuterHTML(selector, &html, chromedp.ByQuery),
	)
	return html, err
}

func (c *Chrome) Cookies(ctx context.Context) ([]*http.Cookie, error) {
	var cookies []*http.Cookie
	err := c.run(ctx, "Cookies", chromedp.ActionFunc(func(ctx context.Context) error {
		raw, err := network.GetCookies().Do(ctx)
		if err != nil {
			return err
		}
		for _, c := range raw {
			cookies = append(cookies, &http.Cookie{
				Name:   c.Name,
				Value:  c.Value,
				Domain: c.Domain,
				Path:   c.Path,
			})
		}
		return nil
	}))
	if err != nil {
		return nil, err
	}
	return cookies, nil
}

func (c *Chrome) Close(ctx context.Context) error {
	c.cancel()
	return nil
}
