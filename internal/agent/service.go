package agent

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ashureev/printdesk/internal/domain"
)

// IntentUnknown is used when a message could not be classified.
const IntentUnknown = "unknown"

// StateStore is the persistence the Service needs. store.Repository satisfies it.
type StateStore interface {
	GetConversation(ctx context.Context, sessionID string) (*domain.ConversationState, error)
	UpsertConversation(ctx context.Context, state *domain.ConversationState) error
	DeleteConversation(ctx context.Context, sessionID string) error
}

// Classifier labels a raw message with an intent.
type Classifier interface {
	Classify(ctx context.Context, message string) (Intent, error)
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithConversationLogger records both sides of every turn.
func WithConversationLogger(l ConversationLogger) ServiceOption {
	return func(s *Service) {
		if l != nil {
			s.convLog = l
		}
	}
}

// WithClassifier classifies messages that arrive without an intent.
func WithClassifier(c Classifier) ServiceOption {
	return func(s *Service) {
		s.classifier = c
	}
}

// WithServiceLogger sets the service's logger.
func WithServiceLogger(l *slog.Logger) ServiceOption {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithServiceClock overrides the time source used for state timestamps.
func WithServiceClock(now func() time.Time) ServiceOption {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

type channelKey struct{}

// ContextWithChannel tags ctx with the transport a turn arrived on.
func ContextWithChannel(ctx context.Context, channel string) context.Context {
	return context.WithValue(ctx, channelKey{}, channel)
}

func channelFrom(ctx context.Context) string {
	if ch, ok := ctx.Value(channelKey{}).(string); ok && ch != "" {
		return ch
	}
	return ChannelHTTP
}

// Service owns conversation state: it loads a session, routes the turn,
// applies the handler's patch and persists the result.
type Service struct {
	router     *Router
	store      StateStore
	convLog    ConversationLogger
	classifier Classifier
	logger     *slog.Logger
	now        func() time.Time
	locks      *sessionLocks
}

// NewService creates a Service.
func NewService(router *Router, store StateStore, opts ...ServiceOption) (*Service, error) {
	if router == nil {
		return nil, &ContractViolationError{Field: "router", Reason: "must not be nil"}
	}
	if store == nil {
		return nil, &ContractViolationError{Field: "store", Reason: "must not be nil"}
	}
	s := &Service{
		router:  router,
		store:   store,
		convLog: noopConversationLogger{},
		logger:  slog.Default().With("component", "agent.service"),
		now:     time.Now,
		locks:   newSessionLocks(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Respond runs one turn for a session. Turns of the same session are serialized.
func (s *Service) Respond(ctx context.Context, sessionID, message string, intent Intent) (*Response, error) {
	if ctx == nil {
		return nil, &ContractViolationError{Field: "context", Reason: "must not be nil"}
	}
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return nil, &ContractViolationError{Field: "sessionId", Reason: "must not be empty"}
	}
	if intent.OriginalMessage == "" {
		intent.OriginalMessage = message
	}
	if intent.Type == "" && s.classifier != nil {
		intent = s.classify(ctx, message)
	}
	if err := intent.Validate(); err != nil {
		return nil, err
	}

	unlock := s.locks.lock(sessionID)
	defer unlock()

	state, err := s.load(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	turnID := uuid.NewString()
	channel := channelFrom(ctx)
	s.convLog.Log(ConversationLogEvent{
		SessionID:  sessionID,
		Channel:    channel,
		Direction:  DirectionInbound,
		EventType:  "customer_message",
		ContentRaw: message,
		Meta:       map[string]any{"turn_id": turnID, "intent": intent.Type},
	})

	resp, err := s.router.Route(ctx, message, intent, state)
	if err != nil {
		return nil, err
	}
	resp.Metadata.TurnID = turnID

	now := s.now()
	next := state.Apply(resp.Patch, now)
	next.UpdatedAt = now
	if err := s.store.UpsertConversation(ctx, &next); err != nil {
		return nil, fmt.Errorf("persist conversation %s: %w", sessionID, err)
	}

	s.convLog.Log(ConversationLogEvent{
		SessionID:  sessionID,
		Channel:    channel,
		Direction:  DirectionOutbound,
		EventType:  "assistant_response",
		ContentRaw: resp.Content,
		Meta: map[string]any{
			"turn_id":    turnID,
			"handler":    resp.Metadata.HandlerName,
			"confidence": resp.Metadata.Confidence,
			"success":    resp.Succeeded(),
			"unresolved": resp.Metadata.Unresolved,
		},
	})
	return resp, nil
}

func (s *Service) classify(ctx context.Context, message string) Intent {
	intent, err := s.classifier.Classify(ctx, message)
	if err != nil {
		s.logger.WarnContext(ctx, "intent classification failed, routing as unknown", "error", err)
		return NewIntent(IntentUnknown, message, 0, nil)
	}
	if intent.OriginalMessage == "" {
		intent.OriginalMessage = message
	}
	if intent.Type == "" {
		intent.Type = IntentUnknown
	}
	return intent
}

// State returns the session's state, or an empty state when none is stored.
func (s *Service) State(ctx context.Context, sessionID string) (domain.ConversationState, error) {
	if sessionID == "" {
		return domain.ConversationState{}, &ContractViolationError{Field: "sessionId", Reason: "must not be empty"}
	}
	return s.load(ctx, sessionID)
}

// RegisterArtwork records the pixel dimensions of an uploaded artwork.
func (s *Service) RegisterArtwork(ctx context.Context, sessionID string, art domain.ArtworkData) (domain.ConversationState, error) {
	if sessionID == "" {
		return domain.ConversationState{}, &ContractViolationError{Field: "sessionId", Reason: "must not be empty"}
	}
	if _, ok := art.Pixels(); !ok {
		return domain.ConversationState{}, &ContractViolationError{Field: "artwork.dimensions.pixels", Reason: "width and height must be positive"}
	}

	unlock := s.locks.lock(sessionID)
	defer unlock()

	state, err := s.load(ctx, sessionID)
	if err != nil {
		return domain.ConversationState{}, err
	}
	next := state.Apply(&domain.StatePatch{SetArtwork: &art}, s.now())
	if err := s.store.UpsertConversation(ctx, &next); err != nil {
		return domain.ConversationState{}, fmt.Errorf("persist artwork for %s: %w", sessionID, err)
	}

	s.logger.InfoContext(ctx, "artwork registered",
		"session_id", sessionID,
		"file_name", art.FileName,
		"width", art.Dimensions.Pixels.Width,
		"height", art.Dimensions.Pixels.Height,
	)
	return next, nil
}

// Reset discards a session's state.
func (s *Service) Reset(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return &ContractViolationError{Field: "sessionId", Reason: "must not be empty"}
	}
	unlock := s.locks.lock(sessionID)
	defer unlock()

	if err := s.store.DeleteConversation(ctx, sessionID); err != nil {
		return fmt.Errorf("reset session %s: %w", sessionID, err)
	}
	return nil
}

// Handlers lists the router's registry.
func (s *Service) Handlers() []HandlerInfo {
	return s.router.Handlers()
}

// Close flushes the conversation log.
func (s *Service) Close() error {
	return s.convLog.Close()
}

func (s *Service) load(ctx context.Context, sessionID string) (domain.ConversationState, error) {
	stored, err := s.store.GetConversation(ctx, sessionID)
	if err != nil {
		return domain.ConversationState{}, fmt.Errorf("load conversation %s: %w", sessionID, err)
	}
	if stored == nil {
		return domain.NewConversationState(sessionID, s.now()), nil
	}
	return *stored, nil
}

// sessionLocks hands out one mutex per session and forgets it when unused.
type sessionLocks struct {
	mu    sync.Mutex
	locks map[string]*sessionLock
}

type sessionLock struct {
	mu   sync.Mutex
	refs int
}

func newSessionLocks() *sessionLocks {
	return &sessionLocks{locks: make(map[string]*sessionLock)}
}

func (l *sessionLocks) lock(key string) func() {
	l.mu.Lock()
	sl, ok := l.locks[key]
	if !ok {
		sl = &sessionLock{}
		l.locks[key] = sl
	}
	sl.refs++
	l.mu.Unlock()

	sl.mu.Lock()
	return func() {
		sl.mu.Unlock()
		l.mu.Lock()
		sl.refs--
		if sl.refs == 0 {
			delete(l.locks, key)
		}
		l.mu.Unlock()
	}
}
