// Package browser drives the session's controlled Chromium instance over
// the DevTools protocol. Platform adapters see only the Page interface;
// everything protocol-specific stays here.
package browser

import (
	"context"
	"errors"
	"time"
)

// ErrSelectorTimeout reports that a watched selector never appeared within
// its wait bound.
var ErrSelectorTimeout = errors.New("selector did not appear")

// ErrNoSuchElement reports that an interaction target was absent when the
// action ran.
var ErrNoSuchElement = errors.New("no matching element")

// BindingFunc receives payloads from an in-page binding call. Invocations
// originate in the browser and may arrive at any time; implementations
// must be safe to call from the connection's reader goroutine.
type BindingFunc func(payload string)

// Page is the capability set adapters use to automate the meeting UI.
type Page interface {
	// Navigate loads the URL and waits for the document to settle.
	Navigate(ctx context.Context, url string) error
	// WaitForSelector blocks until the selector matches an element or the
	// timeout elapses, returning ErrSelectorTimeout in the latter case.
	WaitForSelector(ctx context.Context, selector string, timeout time.Duration) error
	// Click clicks the first element matching the selector.
	Click(ctx context.Context, selector string) error
	// Fill sets the value of the first matching input element.
	Fill(ctx context.Context, selector string, value string) error
	// Evaluate runs the expression in page context and unmarshals its
	// by-value result into out when out is non-nil.
	Evaluate(ctx context.Context, expression string, out any) error
	// ExposeBinding installs a window function that forwards its string
	// argument to fn.
	ExposeBinding(ctx context.Context, name string, fn BindingFunc) error
	// Screenshot captures the current viewport to a PNG file.
	Screenshot(ctx context.Context, path string) error
	// Close tears down the page and the underlying browser process.
	Close(ctx context.Context) error
}
