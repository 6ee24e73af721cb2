package core

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/looplab/fsm"
)

const (
	authEventAuthenticate   = "authenticate"
	authEventUnauthenticate = "unauthenticate"
)

// AuthStateObserver receives the new state after every actual transition.
type AuthStateObserver func(state AuthState)

type AuthStateMachineOption func(*AuthStateMachine)

func WithAuthStateLogger(logger Logger) AuthStateMachineOption {
	return func(m *AuthStateMachine) {
		m.logger = logger
	}
}

func WithAuthStateMetrics(recorder MetricsRecorder) AuthStateMachineOption {
	return func(m *AuthStateMachine) {
		if recorder != nil {
			m.metrics = recorder
		}
	}
}

func WithAuthStateObserver(observer AuthStateObserver) AuthStateMachineOption {
	return func(m *AuthStateMachine) {
		if observer != nil {
			m.observers = append(m.observers, observerEntry{id: m.nextID, fn: observer})
			m.nextID++
		}
	}
}

type observerEntry struct {
	id int
	fn AuthStateObserver
}

// AuthStateMachine holds the loading/authenticated/unauthenticated status of
// one provider. Both events are accepted from every state; publishing the
// current state again is not a transition and notifies nobody.
type AuthStateMachine struct {
	mu        sync.Mutex
	machine   *fsm.FSM
	closed    bool
	observers []observerEntry
	nextID    int
	probeOnce sync.Once
	logger    Logger
	metrics   MetricsRecorder
	now       func() time.Time
}

func NewAuthStateMachine(initial AuthState, opts ...AuthStateMachineOption) *AuthStateMachine {
	if !initial.Valid() {
		initial = AuthStateUnauthenticated
	}
	all := []string{
		string(AuthStateLoading),
		string(AuthStateAuthenticated),
		string(AuthStateUnauthenticated),
	}
	m := &AuthStateMachine{
		machine: fsm.NewFSM(
			string(initial),
			fsm.Events{
				{Name: authEventAuthenticate, Src: all, Dst: string(AuthStateAuthenticated)},
				{Name: authEventUnauthenticate, Src: all, Dst: string(AuthStateUnauthenticated)},
			},
			fsm.Callbacks{},
		),
		metrics: NopMetricsRecorder{},
		now:     time.Now,
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(m)
	}
	return m
}

func (m *AuthStateMachine) Current() AuthState {
	if m == nil {
		return AuthStateUnauthenticated
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return AuthState(m.machine.Current())
}

// OnChange registers observer and returns a function that removes it.
func (m *AuthStateMachine) OnChange(observer AuthStateObserver) func() {
	if m == nil || observer == nil {
		return func() {}
	}
	m.mu.Lock()
	id := m.nextID
	m.nextID++
	m.observers = append(m.observers, observerEntry{id: id, fn: observer})
	m.mu.Unlock()

	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		for i, entry := range m.observers {
			if entry.id == id {
				m.observers = append(m.observers[:i], m.observers[i+1:]...)
				return
			}
		}
	}
}

// Publish moves the machine to next and reports whether the state changed.
// Loading cannot be published; it is only an initial state. After Close every
// publish is ignored.
func (m *AuthStateMachine) Publish(ctx context.Context, next AuthState) bool {
	if m == nil {
		return false
	}
	event, ok := authEventFor(next)
	if !ok {
		return false
	}
	if ctx == nil {
		ctx = context.Background()
	}

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return false
	}
	previous := AuthState(m.machine.Current())
	err := m.machine.Event(context.WithoutCancel(ctx), event)
	observers := make([]AuthStateObserver, 0, len(m.observers))
	for _, entry := range m.observers {
		observers = append(observers, entry.fn)
	}
	m.mu.Unlock()

	if err != nil {
		var noTransition fsm.NoTransitionError
		if !errors.As(err, &noTransition) {
			LogEvent(ctx, m.logger, "error", "auth state transition rejected", map[string]any{
				"from":  string(previous),
				"to":    string(next),
				"error": err.Error(),
			})
		}
		return false
	}

	RecordCounter(ctx, m.metrics, MetricAuthStateTransitions, map[string]string{
		"from": string(previous),
		"to":   string(next),
	})
	LogEvent(ctx, m.logger, "info", "auth state changed", map[string]any{
		"from": string(previous),
		"to":   string(next),
	})
	for _, observer := range observers {
		observer(next)
	}
	return true
}

// Probe reads store once and publishes the implied state. Only the first call
// reads; later calls return immediately. A failed read resolves to
// Unauthenticated and is logged, never returned.
func (m *AuthStateMachine) Probe(ctx context.Context, store CredentialStore) {
	if m == nil {
		return
	}
	m.probeOnce.Do(func() {
		m.runProbe(ctx, store)
	})
}

func (m *AuthStateMachine) runProbe(ctx context.Context, store CredentialStore) {
	if ctx == nil {
		ctx = context.Background()
	}
	startedAt := m.now()
	status := "success"
	defer func() {
		RecordHistogram(ctx, m.metrics, MetricProbeDuration, float64(m.now().Sub(startedAt).Milliseconds()), map[string]string{
			"status": status,
		})
	}()

	if store == nil {
		status = "failure"
		LogEvent(ctx, m.logger, "warn", "startup probe skipped: credential store is nil", nil)
		m.Publish(ctx, AuthStateUnauthenticated)
		return
	}
	cred, err := store.Get(ctx)
	if err != nil {
		status = "failure"
		probeErr := WrapProbeFailure(err)
		LogEvent(ctx, m.logger, "warn", "startup probe failed", map[string]any{
			"error":     probeErr.Error(),
			"text_code": ErrorProbeFailed,
		})
		m.Publish(ctx, AuthStateUnauthenticated)
		return
	}
	m.Publish(ctx, AuthStateFor(cred))
}

// Close tears the machine down. Observers are dropped and later publishes,
// including a probe still in flight, have no effect.
func (m *AuthStateMachine) Close() {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	m.observers = nil
}

func (m *AuthStateMachine) Closed() bool {
	if m == nil {
		return true
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

func authEventFor(state AuthState) (string, bool) {
	switch state {
	case AuthStateAuthenticated:
		return authEventAuthenticate, true
	case AuthStateUnauthenticated:
		return authEventUnauthenticate, true
	default:
		return "", false
	}
}
