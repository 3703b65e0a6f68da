package platform

import (
	"context"
	"time"

	"meetingbot/internal/browser"
)

// fakePage scripts the page driver per test. Unset hooks succeed and
// leave eval outputs untouched.
type fakePage struct {
	navigateFn func(url string) error
	waitFn     func(selector string, timeout time.Duration) error
	clickFn    func(selector string) error
	fillFn     func(selector, value string) error
	evalFn     func(expression string, out any) error

	bindings    map[string]browser.BindingFunc
	screenshots []string
	closed      int
}

func (f *fakePage) Navigate(_ context.Context, url string) error {
	if f.navigateFn != nil {
		return f.navigateFn(url)
	}
	return nil
}

func (f *fakePage) WaitForSelector(_ context.Context, selector string, timeout time.Duration) error {
	if f.waitFn != nil {
		return f.waitFn(selector, timeout)
	}
	return nil
}

func (f *fakePage) Click(_ context.Context, selector string) error {
	if f.clickFn != nil {
		return f.clickFn(selector)
	}
	return nil
}

func (f *fakePage) Fill(_ context.Context, selector string, value string) error {
	if f.fillFn != nil {
		return f.fillFn(selector, value)
	}
	return nil
}

func (f *fakePage) Evaluate(_ context.Context, expression string, out any) error {
	if f.evalFn != nil {
		return f.evalFn(expression, out)
	}
	return nil
}

func (f *fakePage) ExposeBinding(_ context.Context, name string, fn browser.BindingFunc) error {
	if f.bindings == nil {
		f.bindings = make(map[string]browser.BindingFunc)
	}
	f.bindings[name] = fn
	return nil
}

func (f *fakePage) Screenshot(_ context.Context, path string) error {
	f.screenshots = append(f.screenshots, path)
	return nil
}

func (f *fakePage) Close(context.Context) error {
	f.closed++
	return nil
}

// setBool writes a scripted eval result through the driver's out pointer.
func setBool(out any, value bool) {
	if ptr, ok := out.(*bool); ok {
		*ptr = value
	}
}

func setInt(out any, value int) {
	if ptr, ok := out.(*int); ok {
		*ptr = value
	}
}

func setString(out any, value string) {
	if ptr, ok := out.(*string); ok {
		*ptr = value
	}
}
