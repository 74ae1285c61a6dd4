package agent

import (
	"cmp"
	"context"
	"fmt"
	"log/slog"
	"math"
	"runtime/debug"
	"slices"
	"sync"
	"time"

	"github.com/ashureev/printdesk/internal/domain"
	"github.com/ashureev/printdesk/internal/templates"
)

// Router selects exactly one handler per turn.
//
// Handlers are evaluated in ascending priority; ties keep registration
// order. The fallback handler is held outside the ordered list and only
// runs when no other handler claims the intent.
type Router struct {
	mu       sync.RWMutex
	handlers []Handler
	names    map[string]struct{}

	fallback Handler
	catalog  *templates.Catalog
	chooser  *Chooser
	logger   *slog.Logger
	timeout  time.Duration
	now      func() time.Time
}

// RouterOption configures a Router.
type RouterOption func(*Router) error

// WithFallback sets the handler used when nothing else matches.
func WithFallback(h Handler) RouterOption {
	return func(r *Router) error {
		if h == nil {
			return &ContractViolationError{Field: "fallback", Reason: "must not be nil"}
		}
		r.fallback = h
		return nil
	}
}

// WithChooser sets the random source for response wording.
func WithChooser(c *Chooser) RouterOption {
	return func(r *Router) error {
		if c == nil {
			return &ContractViolationError{Field: "chooser", Reason: "must not be nil"}
		}
		r.chooser = c
		return nil
	}
}

// WithCatalog sets the phrase catalog used for failure and default fallback responses.
func WithCatalog(c *templates.Catalog) RouterOption {
	return func(r *Router) error {
		if c == nil {
			return &ContractViolationError{Field: "catalog", Reason: "must not be nil"}
		}
		r.catalog = c
		return nil
	}
}

// WithLogger sets the router's logger.
func WithLogger(l *slog.Logger) RouterOption {
	return func(r *Router) error {
		if l != nil {
			r.logger = l
		}
		return nil
	}
}

// WithHandlerTimeout bounds each handler invocation through its context.
// Zero disables the bound.
func WithHandlerTimeout(d time.Duration) RouterOption {
	return func(r *Router) error {
		if d < 0 {
			return &ContractViolationError{Field: "handler timeout", Reason: "must not be negative"}
		}
		r.timeout = d
		return nil
	}
}

// WithClock overrides the time source used for processing time.
func WithClock(now func() time.Time) RouterOption {
	return func(r *Router) error {
		if now != nil {
			r.now = now
		}
		return nil
	}
}

// NewRouter creates a router with no handlers besides the fallback.
func NewRouter(opts ...RouterOption) (*Router, error) {
	r := &Router{
		names:  make(map[string]struct{}),
		logger: slog.Default().With("component", "agent.router"),
		now:    time.Now,
	}
	for _, opt := range opts {
		if err := opt(r); err != nil {
			return nil, fmt.Errorf("failed to apply router option: %w", err)
		}
	}

	if r.catalog == nil {
		r.catalog = templates.Default()
	}
	if r.chooser == nil {
		r.chooser = NewChooser(0)
	}
	if r.fallback == nil {
		r.fallback = NewFallbackHandler(r.catalog, r.chooser)
	}
	if r.fallback.Name() == "" {
		return nil, &ContractViolationError{Field: "fallback name", Reason: "must not be empty"}
	}
	r.names[r.fallback.Name()] = struct{}{}
	return r, nil
}

// Register adds a handler. Names must be unique, including against the fallback.
func (r *Router) Register(h Handler) error {
	if h == nil {
		return &ContractViolationError{Field: "handler", Reason: "must not be nil"}
	}
	name := h.Name()
	if name == "" {
		return &ContractViolationError{Field: "handler name", Reason: "must not be empty"}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.names[name]; exists {
		return &DuplicateHandlerError{Name: name}
	}
	r.names[name] = struct{}{}
	// Copy on write: Route iterates the previous slice without holding the lock.
	next := append(slices.Clone(r.handlers), h)
	slices.SortStableFunc(next, func(a, b Handler) int {
		return cmp.Compare(a.Priority(), b.Priority())
	})
	r.handlers = next

	r.logger.Debug("handler registered", "handler", name, "version", h.Version(), "priority", h.Priority())
	return nil
}

// Handlers lists the registry in evaluation order, fallback last.
func (r *Router) Handlers() []HandlerInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]HandlerInfo, 0, len(r.handlers)+1)
	for _, h := range r.handlers {
		out = append(out, HandlerInfo{Name: h.Name(), Version: h.Version(), Priority: h.Priority()})
	}
	out = append(out, HandlerInfo{
		Name:     r.fallback.Name(),
		Version:  r.fallback.Version(),
		Priority: r.fallback.Priority(),
		Fallback: true,
	})
	return out
}

// Route selects a handler for the intent, runs it and annotates the result.
//
// Handler failures never surface as errors: they become a degraded response
// with zero confidence. The returned error is non-nil only when the input
// violates the calling contract.
func (r *Router) Route(ctx context.Context, message string, intent Intent, state domain.ConversationState) (*Response, error) {
	if ctx == nil {
		return nil, &ContractViolationError{Field: "context", Reason: "must not be nil"}
	}
	if err := intent.Validate(); err != nil {
		return nil, err
	}
	if state.SessionID == "" {
		return nil, &ContractViolationError{Field: "state.sessionId", Reason: "must not be empty"}
	}

	start := r.now()
	h, matched := r.selectHandler(ctx, intent)
	if !matched {
		r.logger.InfoContext(ctx, "unresolved intent, using fallback",
			"intent", intent.Type,
			"session_id", state.SessionID,
			"handler", h.Name(),
		)
	}

	resp := r.invoke(ctx, h, message, intent, NewHandlerContext(state))
	resp.Metadata.HandlerName = h.Name()
	resp.Metadata.HandlerVersion = h.Version()
	resp.Metadata.Unresolved = !matched
	resp.Metadata.Confidence = clampConfidence(resp.Metadata.Confidence)
	resp.Metadata.ProcessingTime = r.now().Sub(start)

	r.logger.DebugContext(ctx, "turn routed",
		"intent", intent.Type,
		"session_id", state.SessionID,
		"handler", h.Name(),
		"confidence", resp.Metadata.Confidence,
		"duration", resp.Metadata.ProcessingTime,
	)
	return resp, nil
}

func (r *Router) selectHandler(ctx context.Context, intent Intent) (Handler, bool) {
	r.mu.RLock()
	handlers := r.handlers
	r.mu.RUnlock()

	for _, h := range handlers {
		if r.claims(ctx, h, intent) {
			return h, true
		}
	}
	return r.fallback, false
}

// claims guards CanHandle so a panicking predicate only disqualifies its handler.
func (r *Router) claims(ctx context.Context, h Handler, intent Intent) (ok bool) {
	defer func() {
		if p := recover(); p != nil {
			r.logger.ErrorContext(ctx, "handler CanHandle panicked",
				slog.String("handler", h.Name()),
				slog.Any("panic", p),
				slog.String("stack_trace", string(debug.Stack())),
			)
			ok = false
		}
	}()
	return h.CanHandle(intent)
}

func (r *Router) invoke(ctx context.Context, h Handler, message string, intent Intent, hctx HandlerContext) (resp *Response) {
	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	defer func() {
		if p := recover(); p != nil {
			execErr := &HandlerExecutionError{Handler: h.Name(), Panic: p}
			r.logger.ErrorContext(ctx, "handler panicked",
				slog.String("handler", h.Name()),
				slog.String("session_id", hctx.SessionID()),
				slog.Any("panic", p),
				slog.String("stack_trace", string(debug.Stack())),
			)
			resp = r.failureResponse(execErr)
		}
	}()

	out, err := h.Handle(ctx, message, intent, hctx)
	if err == nil && out == nil {
		err = errNilResponse
	}
	if err != nil {
		execErr := &HandlerExecutionError{Handler: h.Name(), Err: err}
		r.logger.ErrorContext(ctx, "handler failed",
			"handler", h.Name(),
			"session_id", hctx.SessionID(),
			"error", err,
		)
		return r.failureResponse(execErr)
	}
	return out
}

func (r *Router) failureResponse(err *HandlerExecutionError) *Response {
	return &Response{
		Content: r.chooser.Phrase(r.catalog, templates.Failure),
		Success: boolPtr(false),
		Metadata: ResponseMetadata{
			Confidence:       0,
			Sentiment:        SentimentNeutral,
			RequiresFollowUp: true,
			Error:            err.Error(),
		},
	}
}

func clampConfidence(c float64) float64 {
	switch {
	case math.IsNaN(c) || c < 0:
		return 0
	case c > 1:
		return 1
	default:
		return c
	}
}
