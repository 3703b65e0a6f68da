package browser

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"meetingbot/internal/logging"
)

const selectorPollInterval = 250 * time.Millisecond

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *rpcError) Error() string {
	return fmt.Sprintf("devtools: %s (code %d)", e.Message, e.Code)
}

type rpcEnvelope struct {
	ID     int64           `json:"id,omitempty"`
	Method string          `json:"method,omitempty"`
	Params json.RawMessage `json:"params,omitempty"`
	Result json.RawMessage `json:"result,omitempty"`
	Error  *rpcError       `json:"error,omitempty"`
}

type rpcReply struct {
	result json.RawMessage
	err    error
}

// chromePage is the DevTools-backed Page implementation. One reader
// goroutine demultiplexes command replies and protocol events; writes are
// serialized by writeMu.
type chromePage struct {
	ws     *websocket.Conn
	cmd    *exec.Cmd
	logger *slog.Logger

	writeMu sync.Mutex
	nextID  int64

	pendingMu sync.Mutex
	pending   map[int64]chan rpcReply

	bindingsMu sync.RWMutex
	bindings   map[string]BindingFunc

	closeOnce sync.Once
	closed    chan struct{}
}

func newChromePage(ws *websocket.Conn, cmd *exec.Cmd, logger *slog.Logger) *chromePage {
	if logger == nil {
		logger = logging.NewNop()
	}
	p := &chromePage{
		ws:       ws,
		cmd:      cmd,
		logger:   logger,
		pending:  make(map[int64]chan rpcReply),
		bindings: make(map[string]BindingFunc),
		closed:   make(chan struct{}),
	}
	go p.readLoop()
	return p
}

func (p *chromePage) enableDomains(ctx context.Context) error {
	for _, method := range []string{"Page.enable", "Runtime.enable"} {
		if err := p.call(ctx, method, nil, nil); err != nil {
			return fmt.Errorf("enable devtools domain: %w", err)
		}
	}
	return nil
}

func (p *chromePage) readLoop() {
	defer p.failPending(errors.New("devtools connection closed"))
	for {
		var envelope rpcEnvelope
		if err := p.ws.ReadJSON(&envelope); err != nil {
			select {
			case <-p.closed:
			default:
				p.logger.Warn("devtools read failed", logging.Error(err))
			}
			return
		}

		if envelope.ID != 0 {
			p.pendingMu.Lock()
			ch, ok := p.pending[envelope.ID]
			delete(p.pending, envelope.ID)
			p.pendingMu.Unlock()
			if ok {
				reply := rpcReply{result: envelope.Result}
				if envelope.Error != nil {
					reply.err = envelope.Error
				}
				ch <- reply
			}
			continue
		}

		if envelope.Method == "Runtime.bindingCalled" {
			p.dispatchBinding(envelope.Params)
		}
	}
}

func (p *chromePage) dispatchBinding(params json.RawMessage) {
	var call struct {
		Name    string `json:"name"`
		Payload string `json:"payload"`
	}
	if err := json.Unmarshal(params, &call); err != nil {
		p.logger.Warn("malformed binding call", logging.Error(err))
		return
	}
	p.bindingsMu.RLock()
	fn := p.bindings[call.Name]
	p.bindingsMu.RUnlock()
	if fn != nil {
		fn(call.Payload)
	}
}

func (p *chromePage) failPending(err error) {
	p.pendingMu.Lock()
	defer p.pendingMu.Unlock()
	for id, ch := range p.pending {
		delete(p.pending, id)
		ch <- rpcReply{err: err}
	}
}

// call issues one DevTools command and waits for its reply.
func (p *chromePage) call(ctx context.Context, method string, params any, result any) error {
	reply := make(chan rpcReply, 1)

	p.writeMu.Lock()
	p.nextID++
	id := p.nextID
	p.pendingMu.Lock()
	p.pending[id] = reply
	p.pendingMu.Unlock()

	envelope := map[string]any{"id": id, "method": method}
	if params != nil {
		envelope["params"] = params
	}
	err := p.ws.WriteJSON(envelope)
	p.writeMu.Unlock()
	if err != nil {
		p.pendingMu.Lock()
		delete(p.pending, id)
		p.pendingMu.Unlock()
		return fmt.Errorf("%s: write: %w", method, err)
	}

	select {
	case <-ctx.Done():
		p.pendingMu.Lock()
		delete(p.pending, id)
		p.pendingMu.Unlock()
		return ctx.Err()
	case <-p.closed:
		return fmt.Errorf("%s: connection closed", method)
	case r := <-reply:
		if r.err != nil {
			return fmt.Errorf("%s: %w", method, r.err)
		}
		if result != nil && len(r.result) > 0 {
			if err := json.Unmarshal(r.result, result); err != nil {
				return fmt.Errorf("%s: decode result: %w", method, err)
			}
		}
		return nil
	}
}

func (p *chromePage) Navigate(ctx context.Context, url string) error {
	if err := p.call(ctx, "Page.navigate", map[string]any{"url": url}, nil); err != nil {
		return err
	}
	// Wait for the document to settle before selectors are queried.
	deadline := time.Now().Add(30 * time.Second)
	for {
		var state string
		if err := p.Evaluate(ctx, "document.readyState", &state); err == nil && state == "complete" {
			return nil
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("navigate %s: document never settled", url)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(selectorPollInterval):
		}
	}
}

func (p *chromePage) WaitForSelector(ctx context.Context, selector string, timeout time.Duration) error {
	expression := fmt.Sprintf("document.querySelector(%q) !== null", selector)
	deadline := time.Now().Add(timeout)
	for {
		var found bool
		if err := p.Evaluate(ctx, expression, &found); err == nil && found {
			return nil
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("%w: %s after %s", ErrSelectorTimeout, selector, timeout)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(selectorPollInterval):
		}
	}
}

func (p *chromePage) Click(ctx context.Context, selector string) error {
	expression := fmt.Sprintf(
		"(() => { const el = document.querySelector(%q); if (!el) return false; el.click(); return true })()",
		selector,
	)
	var clicked bool
	if err := p.Evaluate(ctx, expression, &clicked); err != nil {
		return err
	}
	if !clicked {
		return fmt.Errorf("click %s: %w", selector, ErrNoSuchElement)
	}
	return nil
}

func (p *chromePage) Fill(ctx context.Context, selector string, value string) error {
	expression := fmt.Sprintf(
		`(() => {
			const el = document.querySelector(%q);
			if (!el) return false;
			const setter = Object.getOwnPropertyDescriptor(window.HTMLInputElement.prototype, "value").set;
			setter.call(el, %q);
			el.dispatchEvent(new Event("input", { bubbles: true }));
			return true;
		})()`,
		selector, value,
	)
	var filled bool
	if err := p.Evaluate(ctx, expression, &filled); err != nil {
		return err
	}
	if !filled {
		return fmt.Errorf("fill %s: %w", selector, ErrNoSuchElement)
	}
	return nil
}

func (p *chromePage) Evaluate(ctx context.Context, expression string, out any) error {
	params := map[string]any{
		"expression":    expression,
		"returnByValue": true,
		"awaitPromise":  true,
	}
	var result struct {
		Result struct {
			Value json.RawMessage `json:"value"`
		} `json:"result"`
		ExceptionDetails *struct {
			Text string `json:"text"`
		} `json:"exceptionDetails"`
	}
	if err := p.call(ctx, "Runtime.evaluate", params, &result); err != nil {
		return err
	}
	if result.ExceptionDetails != nil {
		return fmt.Errorf("evaluate: page exception: %s", result.ExceptionDetails.Text)
	}
	if out != nil && len(result.Result.Value) > 0 {
		if err := json.Unmarshal(result.Result.Value, out); err != nil {
			return fmt.Errorf("evaluate: decode value: %w", err)
		}
	}
	return nil
}

func (p *chromePage) ExposeBinding(ctx context.Context, name string, fn BindingFunc) error {
	p.bindingsMu.Lock()
	p.bindings[name] = fn
	p.bindingsMu.Unlock()
	return p.call(ctx, "Runtime.addBinding", map[string]any{"name": name}, nil)
}

func (p *chromePage) Screenshot(ctx context.Context, path string) error {
	var result struct {
		Data string `json:"data"`
	}
	if err := p.call(ctx, "Page.captureScreenshot", map[string]any{"format": "png"}, &result); err != nil {
		return err
	}
	data, err := base64.StdEncoding.DecodeString(result.Data)
	if err != nil {
		return fmt.Errorf("screenshot: decode payload: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("screenshot: %w", err)
	}
	return nil
}

// Close shuts the browser down, tolerating a process that already exited.
func (p *chromePage) Close(ctx context.Context) error {
	shortCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	_ = p.call(shortCtx, "Browser.close", nil, nil)

	p.closeOnce.Do(func() { close(p.closed) })
	_ = p.ws.Close()

	if p.cmd == nil || p.cmd.Process == nil {
		return nil
	}
	done := make(chan error, 1)
	go func() { done <- p.cmd.Wait() }()
	select {
	case <-done:
		return nil
	case <-time.After(5 * time.Second):
		_ = p.cmd.Process.Kill()
		<-done
		return nil
	}
}
