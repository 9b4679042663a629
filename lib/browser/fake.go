package browser

import (
	"context"
	"fmt"
	"net/http"
	"sync"
)

// Fake is an in-memory Driver for tests. Selectors resolve against the
// Html map, Location returns whatever the test last set (or the last
// navigated url), and every action is recorded in Actions.
type Fake struct {
	mu sync.Mutex

	// outer html per selector
	Html map[string]string
	// selectors that are considered present on the page
	Present map[string]bool
	// cookies handed out by Cookies()
	SessionCookies []*http.Cookie

	location string
	Actions  []string
	Closed   bool

	// when set, called on every Location poll, lets tests flip the
	// location after a number of polls
	OnLocation func(polls int) string
	polls      int
}

func NewFake() *Fake {
	return &Fake{
		Html:    map[string]string{},
		Present: map[string]bool{},
	}
}

func (f *Fake) record(format string, args ...any) {
	f.Actions = append(f.Actions, fmt.Sprintf(format, args...))
}

// Reveal makes a selector exist from now on, safe to call from another
// goroutine while the page is being polled.
func (f *Fake) Reveal(selector, html string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Html[selector] = html
}

func (f *Fake) SetLocation(url string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.location = url
}

func (f *Fake) Navigate(ctx context.Context, url string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.location = url
	f.record("navigate %s", url)
	return nil
}

func (f *Fake) Location(ctx context.Context) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.polls++
	if f.OnLocation != nil {
		if next := f.OnLocation(f.polls); next != "" {
			f.location = next
		}
	}
	return f.location, nil
}

func (f *Fake) Fill(ctx context.Context, selector, value string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.present(selector) {
		return fmt.Errorf("no element matches %q", selector)
	}
	f.record("fill %s=%s", selector, value)
	return nil
}

func (f *Fake) Click(ctx context.Context, selector string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.present(selector) {
		return fmt.Errorf("no element matches %q", selector)
	}
	f.record("click %s", selector)
	return nil
}

func (f *Fake) SelectOption(ctx context.Context, selector, value string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.present(selector) {
		return fmt.Errorf("no element matches %q", selector)
	}
	f.record("select %s=%s", selector, value)
	return nil
}

func (f *Fake) present(selector string) bool {
	if f.Present[selector] {
		return true
	}
	_, ok := f.Html[selector]
	return ok
}

func (f *Fake) Exists(ctx context.Context, selector string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.present(selector), nil
}

func (f *Fake) WaitVisible(ctx context.Context, selector string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.present(selector) {
		return fmt.Errorf("timed out waiting for %q", selector)
	}
	return nil
}

func (f *Fake) OuterHTML(ctx context.Context, selector string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	html, ok := f.Html[selector]
	if !ok {
		return "", fmt.Errorf("no element matches %q", selector)
	}
	return html, nil
}

func (f *Fake) Cookies(ctx context.Context) ([]*http.Cookie, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.SessionCookies, nil
}

func (f *Fake) Close(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Closed = true
	return nil
}
