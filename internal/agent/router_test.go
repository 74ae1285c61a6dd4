package agent

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ashureev/printdesk/internal/domain"
	"github.com/ashureev/printdesk/internal/templates"
)

// spyHandler records how often the router consults it.
type spyHandler struct {
	name     string
	priority int
	claims   func(Intent) bool
	handle   func(ctx context.Context, hctx HandlerContext) (*Response, error)

	canCalls    atomic.Int32
	handleCalls atomic.Int32
}

func (s *spyHandler) Name() string    { return s.name }
func (s *spyHandler) Version() string { return "test" }
func (s *spyHandler) Priority() int   { return s.priority }

func (s *spyHandler) CanHandle(intent Intent) bool {
	s.canCalls.Add(1)
	if s.claims == nil {
		return true
	}
	return s.claims(intent)
}

func (s *spyHandler) Handle(ctx context.Context, _ string, _ Intent, hctx HandlerContext) (*Response, error) {
	s.handleCalls.Add(1)
	if s.handle == nil {
		return &Response{Content: s.name, Success: boolPtr(true), Metadata: ResponseMetadata{Confidence: 0.8}}, nil
	}
	return s.handle(ctx, hctx)
}

func testState(sessionID string) domain.ConversationState {
	return domain.NewConversationState(sessionID, time.Unix(1_700_000_000, 0))
}

func newTestRouter(t *testing.T, opts ...RouterOption) *Router {
	t.Helper()
	r, err := NewRouter(append([]RouterOption{WithChooser(NewChooser(42))}, opts...)...)
	require.NoError(t, err)
	return r
}

func TestRouteGratitudeIsDeterministicForSeed(t *testing.T) {
	t.Parallel()

	catalog := templates.Default()
	route := func(seed uint64) []string {
		chooser := NewChooser(seed)
		r, err := NewRouter(WithChooser(chooser), WithCatalog(catalog))
		require.NoError(t, err)
		require.NoError(t, r.Register(NewGratitudeHandler(catalog, chooser)))

		var out []string
		for i := 0; i < 5; i++ {
			resp, err := r.Route(context.Background(), "thanks!", NewIntent(IntentGratitude, "thanks!", 0.9, nil), testState("s1"))
			require.NoError(t, err)
			assert.Equal(t, "gratitude", resp.Metadata.HandlerName)
			assert.Equal(t, 0.95, resp.Metadata.Confidence)
			assert.Equal(t, SentimentPositive, resp.Metadata.Sentiment)
			assert.False(t, resp.Metadata.RequiresFollowUp)
			assert.Contains(t, catalog.Phrases(templates.Gratitude), resp.Content)
			out = append(out, resp.Content)
		}
		return out
	}

	assert.Equal(t, route(7), route(7))
}

func TestRouteFallsBackWhenNothingMatches(t *testing.T) {
	t.Parallel()

	r := newTestRouter(t)
	require.NoError(t, r.Register(&spyHandler{name: "never", priority: 1, claims: func(Intent) bool { return false }}))

	resp, err := r.Route(context.Background(), "blorp", NewIntent("weather", "blorp", 0, nil), testState("s1"))
	require.NoError(t, err)

	assert.Equal(t, "fallback", resp.Metadata.HandlerName)
	assert.True(t, resp.Metadata.Unresolved)
	assert.Equal(t, 0.5, resp.Metadata.Confidence)
	assert.True(t, resp.Metadata.RequiresFollowUp)
	assert.NotEmpty(t, resp.Suggestions)
	assert.Contains(t, templates.Default().Phrases(templates.Fallback), resp.Content)
}

func TestRoutePriorityTieKeepsRegistrationOrder(t *testing.T) {
	t.Parallel()

	r := newTestRouter(t)
	first := &spyHandler{name: "first", priority: 5}
	second := &spyHandler{name: "second", priority: 5}
	require.NoError(t, r.Register(first))
	require.NoError(t, r.Register(second))

	resp, err := r.Route(context.Background(), "x", NewIntent("anything", "x", 0, nil), testState("s1"))
	require.NoError(t, err)

	assert.Equal(t, "first", resp.Metadata.HandlerName)
	assert.EqualValues(t, 1, first.handleCalls.Load())
	assert.EqualValues(t, 0, second.handleCalls.Load())
	assert.EqualValues(t, 0, second.canCalls.Load(), "evaluation stops at the first match")
}

func TestRouteLowerPriorityRunsFirst(t *testing.T) {
	t.Parallel()

	r := newTestRouter(t)
	late := &spyHandler{name: "late", priority: 50}
	early := &spyHandler{name: "early", priority: 1}
	require.NoError(t, r.Register(late))
	require.NoError(t, r.Register(early))

	resp, err := r.Route(context.Background(), "x", NewIntent("anything", "x", 0, nil), testState("s1"))
	require.NoError(t, err)
	assert.Equal(t, "early", resp.Metadata.HandlerName)

	names := make([]string, 0, 3)
	for _, h := range r.Handlers() {
		names = append(names, h.Name)
	}
	assert.Equal(t, []string{"early", "late", "fallback"}, names)
	assert.True(t, r.Handlers()[2].Fallback)
}

func TestRouteRecoversHandlerFailures(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		handle func(context.Context, HandlerContext) (*Response, error)
		want   string
	}{
		{
			name: "error",
			handle: func(context.Context, HandlerContext) (*Response, error) {
				return nil, errors.New("boom")
			},
			want: "boom",
		},
		{
			name: "panic",
			handle: func(context.Context, HandlerContext) (*Response, error) {
				panic("kaboom")
			},
			want: "kaboom",
		},
		{
			name: "nil response",
			handle: func(context.Context, HandlerContext) (*Response, error) {
				return nil, nil
			},
			want: "nil response",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			r := newTestRouter(t)
			require.NoError(t, r.Register(&spyHandler{name: "faulty", priority: 1, handle: tt.handle}))

			resp, err := r.Route(context.Background(), "x", NewIntent("anything", "x", 0, nil), testState("s1"))
			require.NoError(t, err)
			assert.Equal(t, "faulty", resp.Metadata.HandlerName)
			assert.Equal(t, "test", resp.Metadata.HandlerVersion)
			assert.Zero(t, resp.Metadata.Confidence)
			assert.False(t, resp.Succeeded())
			assert.Contains(t, resp.Metadata.Error, tt.want)
			assert.Contains(t, templates.Default().Phrases(templates.Failure), resp.Content)
		})
	}
}

func TestRouteSkipsHandlerWhoseCanHandlePanics(t *testing.T) {
	t.Parallel()

	r := newTestRouter(t)
	require.NoError(t, r.Register(&spyHandler{name: "broken", priority: 1, claims: func(Intent) bool { panic("bad predicate") }}))
	healthy := &spyHandler{name: "healthy", priority: 2}
	require.NoError(t, r.Register(healthy))

	resp, err := r.Route(context.Background(), "x", NewIntent("anything", "x", 0, nil), testState("s1"))
	require.NoError(t, err)
	assert.Equal(t, "healthy", resp.Metadata.HandlerName)
}

func TestRouteHandlerTimeout(t *testing.T) {
	t.Parallel()

	r := newTestRouter(t, WithHandlerTimeout(20*time.Millisecond))
	require.NoError(t, r.Register(&spyHandler{name: "slow", priority: 1, handle: func(ctx context.Context, _ HandlerContext) (*Response, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}}))

	resp, err := r.Route(context.Background(), "x", NewIntent("anything", "x", 0, nil), testState("s1"))
	require.NoError(t, err)
	assert.Zero(t, resp.Metadata.Confidence)
	assert.Contains(t, resp.Metadata.Error, context.DeadlineExceeded.Error())
}

func TestRouteAnnotatesMetadata(t *testing.T) {
	t.Parallel()

	clock := time.Unix(0, 0)
	r := newTestRouter(t, WithClock(func() time.Time {
		clock = clock.Add(5 * time.Millisecond)
		return clock
	}))
	require.NoError(t, r.Register(&spyHandler{name: "liar", priority: 1, handle: func(context.Context, HandlerContext) (*Response, error) {
		return &Response{Content: "ok", Metadata: ResponseMetadata{HandlerName: "someone-else", Confidence: 1.7}}, nil
	}}))

	resp, err := r.Route(context.Background(), "x", NewIntent("anything", "x", 0, nil), testState("s1"))
	require.NoError(t, err)
	assert.Equal(t, "liar", resp.Metadata.HandlerName)
	assert.Equal(t, 1.0, resp.Metadata.Confidence)
	assert.Equal(t, 5*time.Millisecond, resp.Metadata.ProcessingTime)
	assert.False(t, resp.Metadata.Unresolved)
}

func TestRouteDoesNotMutateState(t *testing.T) {
	t.Parallel()

	r := newTestRouter(t)
	require.NoError(t, r.Register(&spyHandler{name: "writer", priority: 1, handle: func(_ context.Context, hctx HandlerContext) (*Response, error) {
		answers := hctx.Answers()
		answers[0].Answer = "tampered"
		return &Response{
			Content: "ok",
			Patch:   &domain.StatePatch{AppendAnswer: &domain.AnswerRecord{Question: "q2", Answer: "a2"}},
		}, nil
	}}))

	state := testState("s1").Apply(&domain.StatePatch{AppendAnswer: &domain.AnswerRecord{Question: "q1", Answer: "a1"}}, time.Unix(1_700_000_100, 0))
	before := state.Clone()

	resp, err := r.Route(context.Background(), "x", NewIntent("anything", "x", 0, nil), state)
	require.NoError(t, err)
	require.NotNil(t, resp.Patch)
	assert.Equal(t, before, state)
}

func TestRegisterRejectsDuplicates(t *testing.T) {
	t.Parallel()

	r := newTestRouter(t)
	require.NoError(t, r.Register(&spyHandler{name: "dup"}))

	err := r.Register(&spyHandler{name: "dup"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrDuplicateHandler))

	var dupErr *DuplicateHandlerError
	require.True(t, errors.As(err, &dupErr))
	assert.Equal(t, "dup", dupErr.Name)

	assert.ErrorIs(t, r.Register(&spyHandler{name: "fallback"}), ErrDuplicateHandler)
	assert.ErrorIs(t, r.Register(nil), ErrContractViolation)
	assert.ErrorIs(t, r.Register(&spyHandler{name: ""}), ErrContractViolation)
}

func TestRouteRejectsContractViolations(t *testing.T) {
	t.Parallel()

	r := newTestRouter(t)

	_, err := r.Route(context.Background(), "x", NewIntent("  ", "x", 0, nil), testState("s1"))
	assert.ErrorIs(t, err, ErrContractViolation)

	_, err = r.Route(context.Background(), "x", NewIntent("gratitude", "x", 0, nil), testState(""))
	assert.ErrorIs(t, err, ErrContractViolation)

	_, err = r.Route(context.Background(), "x", NewIntent("gratitude", "x", 1.5, nil), testState("s1"))
	assert.ErrorIs(t, err, ErrContractViolation)

	//nolint:staticcheck // nil context is the violation under test.
	_, err = r.Route(nil, "x", NewIntent("gratitude", "x", 0, nil), testState("s1"))
	assert.ErrorIs(t, err, ErrContractViolation)
}

func TestChooserSeedIsReproducible(t *testing.T) {
	t.Parallel()

	a, b := NewChooser(99), NewChooser(99)
	for i := 0; i < 20; i++ {
		assert.Equal(t, a.Pick(4), b.Pick(4))
	}
	assert.Zero(t, a.Pick(1))
	assert.Zero(t, a.Pick(0))
}
