// Package browser abstracts the automation driver behind a small
// interface so that scrapers can be exercised without a real browser.
package browser

import (
	"context"
	"net/http"
)

// Driver is one live browser context. Implementations are not safe for
// concurrent use, a driver has exactly one owner at a time and must be
// closed on every exit path.
type Driver interface {
	// Navigate loads the given url and waits for the document to be ready.
	Navigate(ctx context.Context, url string) error
	// Location reports the browser's current url.
	Location(ctx context.Context) (string, error)
	// Fill replaces the value of the input matched by the css selector.
	Fill(ctx context.Context, selector, value string) error
	Click(ctx context.Context, selector string) error
	// SelectOption picks the option with the given value attribute on a
	// <select> element and fires its change event, the page re-renders
	// dependent controls off that event.
	SelectOption(ctx context.Context, selector, value string) error
	// Exists reports whether the selector matches anything on the page.
	Exists(ctx context.Context, selector string) (bool, error)
	WaitVisible(ctx context.Context, selector string) error
	OuterHTML(ctx context.Context, selector string) (string, error)
	// Cookies returns the cookies of the current browsing context, used
	// to carry the authenticated session over to plain http downloads.
	Cookies(ctx context.Context) ([]*http.Cookie, error)
	Close(ctx context.Context) error
}
