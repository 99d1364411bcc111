package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/room4-2/callintake/callflow"
	"github.com/room4-2/callintake/notify"
	"github.com/room4-2/callintake/session"
	"go.uber.org/zap"
)

// ErrSessionNotFound is returned for call ids that do not name a live call.
var ErrSessionNotFound = session.ErrNotFound

const (
	defaultRephraseTimeout = 1500 * time.Millisecond
	publishTimeout         = 10 * time.Second
	eventBuffer            = 256
)

// IntegrationError reports a failed call to an external collaborator.
// It never aborts the dialogue.
type IntegrationError struct {
	Integration string
	Err         error
}

func (e *IntegrationError) Error() string {
	return fmt.Sprintf("integration %s failed: %v", e.Integration, e.Err)
}

func (e *IntegrationError) Unwrap() error { return e.Err }

// StartResult is returned when a call begins or restarts.
type StartResult struct {
	CallID string
	Prompt string
	State  callflow.State
}

// TurnResult is the engine's answer to one caller utterance.
type TurnResult struct {
	CallID     string
	// Prompt is what the caller should hear; BasePrompt is the flow's own text.
	Prompt     string
	BasePrompt string
	State      callflow.State
	Valid      bool
	Data       callflow.Data
	Complete   bool
	Escalated  bool
}

// EndResult is the final snapshot of a call.
type EndResult struct {
	CallID   string
	Data     callflow.Data
	Complete bool
}

// Stats are cumulative counters since the engine started.
type Stats struct {
	CallsStarted        int64 `json:"callsStarted"`
	CallsCompleted      int64 `json:"callsCompleted"`
	Handoffs            int64 `json:"handoffs"`
	CallsEnded          int64 `json:"callsEnded"`
	InvalidInputs       int64 `json:"invalidInputs"`
	IntegrationFailures int64 `json:"integrationFailures"`
}

type counters struct {
	started, completed, handoffs, ended, invalid, integrationFailures atomic.Int64
}

// Engine exposes the intake operations to transports.
type Engine struct {
	flow            *callflow.Flow
	sessions        *session.Manager
	enhancer        Enhancer
	publisher       notify.Publisher
	logger          *zap.Logger
	rephraseTimeout time.Duration

	stats counters

	mu     sync.RWMutex
	closed bool
	// events has a single consumer so delivery keeps publish order.
	events     chan notify.Event
	dispatched chan struct{}
}

// Option configures an Engine.
type Option func(*Engine)

// WithEnhancer sets the prompt rephraser.
func WithEnhancer(e Enhancer) Option {
	return func(en *Engine) {
		if e != nil {
			en.enhancer = e
		}
	}
}

// WithPublisher sets where call events are delivered.
func WithPublisher(p notify.Publisher) Option {
	return func(en *Engine) {
		en.publisher = p
	}
}

func WithLogger(logger *zap.Logger) Option {
	return func(en *Engine) {
		if logger != nil {
			en.logger = logger
		}
	}
}

// WithRephraseTimeout bounds each Enhancer call.
func WithRephraseTimeout(d time.Duration) Option {
	return func(en *Engine) {
		if d > 0 {
			en.rephraseTimeout = d
		}
	}
}

// New creates an engine driving flow; flow must already be validated.
func New(flow *callflow.Flow, sessions *session.Manager, opts ...Option) *Engine {
	e := &Engine{
		flow:            flow,
		sessions:        sessions,
		enhancer:        NoopEnhancer{},
		logger:          zap.NewNop(),
		rephraseTimeout: defaultRephraseTimeout,
	}
	for _, opt := range opts {
		opt(e)
	}
	e.logger = e.logger.Named("engine")

	e.events = make(chan notify.Event, eventBuffer)
	e.dispatched = make(chan struct{})
	go e.dispatch()
	return e
}

// Flow returns the flow definition the engine runs.
func (e *Engine) Flow() *callflow.Flow {
	return e.flow
}

// StartCall creates a session, applies the greeting and returns the first
// question, so the caller's first answer is the service type.
func (e *Engine) StartCall(ctx context.Context) (StartResult, error) {
	var res callflow.Result
	sess, err := e.sessions.Create(ctx, e.flow.Name, func(s callflow.CallSession) callflow.CallSession {
		res = e.flow.Advance(s, "")
		return res.Session
	})
	if err != nil {
		return StartResult{}, err
	}

	e.stats.started.Add(1)
	e.logger.Info("📞 Call started", zap.String("call_id", sess.ID), zap.String("flow", e.flow.Name))

	return StartResult{
		CallID: sess.ID,
		Prompt: e.rephrase(ctx, sess.ID, sess.State, res.Prompt),
		State:  sess.State,
	}, nil
}

// SubmitInput applies one utterance to a live call. Unknown ids return
// ErrSessionNotFound; no session is ever created here.
func (e *Engine) SubmitInput(ctx context.Context, callID, utterance string) (TurnResult, error) {
	var (
		res  callflow.Result
		from callflow.State
	)
	sess, err := e.sessions.Mutate(ctx, callID, func(cur callflow.CallSession) (callflow.CallSession, error) {
		from = cur.State
		res = e.flow.Advance(cur, utterance)
		return res.Session, nil
	})
	if err != nil {
		return TurnResult{}, err
	}

	log := e.logger.With(zap.String("call_id", callID), zap.String("state", string(sess.State)))
	if !res.Valid {
		e.stats.invalid.Add(1)
		log.Debug("🔁 Invalid answer, reprompting", zap.String("from", string(from)))
	}

	if !from.Terminal() {
		switch sess.State {
		case callflow.StateEndCall:
			e.stats.completed.Add(1)
			log.Info("✅ Intake completed")
			e.publish(notify.EventIntakeCompleted, sess)
		case callflow.StateHumanHandoff:
			e.stats.handoffs.Add(1)
			log.Warn("🙋 Handing call to a human", zap.String("from", string(from)))
			e.publish(notify.EventHandoffRequested, sess)
		}
	}

	return TurnResult{
		CallID:     callID,
		Prompt:     e.rephrase(ctx, callID, sess.State, res.Prompt),
		BasePrompt: res.Prompt,
		State:      sess.State,
		Valid:      res.Valid,
		Data:       sess.Data.Clone(),
		Complete:   sess.Complete(),
		Escalated:  sess.State == callflow.StateHumanHandoff,
	}, nil
}

// EndCall removes a call and returns what was collected.
func (e *Engine) EndCall(ctx context.Context, callID string) (EndResult, error) {
	sess, err := e.sessions.End(ctx, callID)
	if err != nil {
		return EndResult{}, err
	}

	e.stats.ended.Add(1)
	e.logger.Info("📴 Call ended",
		zap.String("call_id", callID),
		zap.String("state", string(sess.State)),
		zap.Bool("complete", sess.Complete()),
	)
	e.publish(notify.EventCallEnded, sess)

	return EndResult{
		CallID:   callID,
		Data:     sess.Data.Clone(),
		Complete: sess.Complete(),
	}, nil
}

// RestartCall discards everything collected on a live call and greets again.
func (e *Engine) RestartCall(ctx context.Context, callID string) (StartResult, error) {
	var res callflow.Result
	sess, err := e.sessions.Mutate(ctx, callID, func(cur callflow.CallSession) (callflow.CallSession, error) {
		fresh := callflow.NewSession(cur.ID, e.flow.Name, cur.CreatedAt)
		fresh.Transcript = cur.Transcript
		res = e.flow.Advance(fresh, "")
		return res.Session, nil
	})
	if err != nil {
		return StartResult{}, err
	}

	e.logger.Info("🔄 Call restarted", zap.String("call_id", callID))
	return StartResult{
		CallID: callID,
		Prompt: e.rephrase(ctx, callID, sess.State, res.Prompt),
		State:  sess.State,
	}, nil
}

// Stats returns a snapshot of the engine counters.
func (e *Engine) Stats() Stats {
	return Stats{
		CallsStarted:        e.stats.started.Load(),
		CallsCompleted:      e.stats.completed.Load(),
		Handoffs:            e.stats.handoffs.Load(),
		CallsEnded:          e.stats.ended.Load(),
		InvalidInputs:       e.stats.invalid.Load(),
		IntegrationFailures: e.stats.integrationFailures.Load(),
	}
}

// Close waits until every queued event is delivered. Later events are dropped.
func (e *Engine) Close() {
	e.mu.Lock()
	if !e.closed {
		e.closed = true
		close(e.events)
	}
	e.mu.Unlock()
	<-e.dispatched
}

func (e *Engine) rephrase(ctx context.Context, callID string, state callflow.State, prompt string) string {
	ctx, cancel := context.WithTimeout(ctx, e.rephraseTimeout)
	defer cancel()

	out, err := e.enhancer.Rephrase(ctx, state, prompt)
	if err == nil && out == "" {
		err = errors.New("empty rephrase")
	}
	if err != nil {
		e.integrationFailed(&IntegrationError{Integration: "enhancer", Err: err}, callID)
		return prompt
	}
	return out
}

func (e *Engine) publish(t notify.EventType, sess callflow.CallSession) {
	if e.publisher == nil {
		return
	}

	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.closed {
		e.logger.Warn("⚠️ Engine closed, dropping event", zap.String("event", string(t)), zap.String("call_id", sess.ID))
		return
	}

	ev := notify.Event{
		Type:     t,
		CallID:   sess.ID,
		Flow:     sess.Flow,
		State:    sess.State,
		Data:     sess.Data.Clone(),
		Complete: sess.Complete(),
		At:       time.Now().UTC(),
	}

	e.events <- ev
}

func (e *Engine) dispatch() {
	defer close(e.dispatched)
	for ev := range e.events {
		ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
		if err := e.publisher.Publish(ctx, ev); err != nil {
			e.integrationFailed(&IntegrationError{Integration: e.publisher.Name(), Err: err}, ev.CallID)
		}
		cancel()
	}
}

func (e *Engine) integrationFailed(err *IntegrationError, callID string) {
	e.stats.integrationFailures.Add(1)
	e.logger.Warn("⚠️ Integration failed, continuing",
		zap.String("call_id", callID),
		zap.String("integration", err.Integration),
		zap.Error(err.Err),
	)
}

// CurrentPrompt returns the prompt for the call's current state without
// consuming any input. Transports use it to repeat a question.
func (e *Engine) CurrentPrompt(ctx context.Context, callID string) (StartResult, error) {
	sess, err := e.sessions.Get(ctx, callID)
	if err != nil {
		return StartResult{}, err
	}
	return StartResult{CallID: callID, Prompt: e.flow.Prompt(sess), State: sess.State}, nil
}

// OnCallsReaped registers fn to run with the ids of calls removed for
// inactivity. Transports use it to drop their own per-call state.
func (e *Engine) OnCallsReaped(fn func(callIDs []string)) {
	e.sessions.OnReap(fn)
}

// ActiveCalls returns the number of live calls.
func (e *Engine) ActiveCalls(ctx context.Context) int {
	return e.sessions.ActiveCount(ctx)
}
