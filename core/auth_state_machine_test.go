package core

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

func TestInitialAuthState(t *testing.T) {
	if got := InitialAuthState(true); got != AuthStateLoading {
		t.Fatalf("expected loading with auto login, got %q", got)
	}
	if got := InitialAuthState(false); got != AuthStateUnauthenticated {
		t.Fatalf("expected unauthenticated without auto login, got %q", got)
	}
}

func TestAuthStateFor(t *testing.T) {
	cases := []struct {
		name string
		cred *Credential
		want AuthState
	}{
		{name: "nil", cred: nil, want: AuthStateUnauthenticated},
		{name: "empty token", cred: &Credential{RefreshToken: "r"}, want: AuthStateUnauthenticated},
		{name: "whitespace token", cred: &Credential{AccessToken: "   "}, want: AuthStateAuthenticated},
		{name: "token", cred: &Credential{AccessToken: "abc"}, want: AuthStateAuthenticated},
	}
	for _, tc := range cases {
		if got := AuthStateFor(tc.cred); got != tc.want {
			t.Fatalf("%s: expected %q, got %q", tc.name, tc.want, got)
		}
	}
}

func TestParseAuthState(t *testing.T) {
	state, err := ParseAuthState(" Authenticated ")
	if err != nil || state != AuthStateAuthenticated {
		t.Fatalf("expected authenticated, got %q err=%v", state, err)
	}
	if _, err := ParseAuthState("signed-in"); err == nil {
		t.Fatalf("expected error for unknown state")
	}
}

func TestAuthStateMachine_PublishNotifiesOnlyOnChange(t *testing.T) {
	metrics := &captureMetricsRecorder{}
	var seen []AuthState
	machine := NewAuthStateMachine(AuthStateUnauthenticated,
		WithAuthStateMetrics(metrics),
		WithAuthStateObserver(func(state AuthState) { seen = append(seen, state) }),
	)

	if machine.Publish(context.Background(), AuthStateUnauthenticated) {
		t.Fatalf("expected publishing the current state to be a no-op")
	}
	if !machine.Publish(context.Background(), AuthStateAuthenticated) {
		t.Fatalf("expected transition to authenticated")
	}
	if machine.Publish(context.Background(), AuthStateAuthenticated) {
		t.Fatalf("expected repeated authenticated to be a no-op")
	}
	if !machine.Publish(context.Background(), AuthStateUnauthenticated) {
		t.Fatalf("expected transition to unauthenticated")
	}

	if len(seen) != 2 || seen[0] != AuthStateAuthenticated || seen[1] != AuthStateUnauthenticated {
		t.Fatalf("unexpected observer calls: %#v", seen)
	}
	if got := metrics.counterCount(MetricAuthStateTransitions); got != 2 {
		t.Fatalf("expected 2 transition counters, got %d", got)
	}
}

func TestAuthStateMachine_LoadingCannotBePublished(t *testing.T) {
	machine := NewAuthStateMachine(AuthStateAuthenticated)
	if machine.Publish(context.Background(), AuthStateLoading) {
		t.Fatalf("expected loading publish to be rejected")
	}
	if got := machine.Current(); got != AuthStateAuthenticated {
		t.Fatalf("expected state unchanged, got %q", got)
	}
}

func TestAuthStateMachine_InvalidInitialFallsBackToUnauthenticated(t *testing.T) {
	machine := NewAuthStateMachine(AuthState("bogus"))
	if got := machine.Current(); got != AuthStateUnauthenticated {
		t.Fatalf("expected unauthenticated, got %q", got)
	}
}

func TestAuthStateMachine_OnChangeUnsubscribe(t *testing.T) {
	machine := NewAuthStateMachine(AuthStateUnauthenticated)
	calls := 0
	unsubscribe := machine.OnChange(func(AuthState) { calls++ })

	machine.Publish(context.Background(), AuthStateAuthenticated)
	unsubscribe()
	machine.Publish(context.Background(), AuthStateUnauthenticated)

	if calls != 1 {
		t.Fatalf("expected one call before unsubscribe, got %d", calls)
	}
}

func TestAuthStateMachine_ObserverMayPublish(t *testing.T) {
	machine := NewAuthStateMachine(AuthStateUnauthenticated)
	var seen []AuthState
	machine.OnChange(func(state AuthState) {
		seen = append(seen, state)
		if state == AuthStateAuthenticated {
			machine.Publish(context.Background(), AuthStateUnauthenticated)
		}
	})

	machine.Publish(context.Background(), AuthStateAuthenticated)

	if got := machine.Current(); got != AuthStateUnauthenticated {
		t.Fatalf("expected nested publish to win, got %q", got)
	}
	if len(seen) != 2 {
		t.Fatalf("expected two notifications, got %#v", seen)
	}
}

func TestAuthStateMachine_CloseIgnoresLaterPublishes(t *testing.T) {
	machine := NewAuthStateMachine(AuthStateLoading)
	calls := 0
	machine.OnChange(func(AuthState) { calls++ })

	machine.Close()
	if !machine.Closed() {
		t.Fatalf("expected machine closed")
	}
	if machine.Publish(context.Background(), AuthStateAuthenticated) {
		t.Fatalf("expected publish after close to be ignored")
	}
	if calls != 0 {
		t.Fatalf("expected no notifications after close, got %d", calls)
	}
	if got := machine.Current(); got != AuthStateLoading {
		t.Fatalf("expected state frozen at loading, got %q", got)
	}
}

func TestAuthStateMachine_ProbeResolvesFromStore(t *testing.T) {
	cases := []struct {
		name  string
		store *fakeCredentialStore
		want  AuthState
	}{
		{name: "empty", store: &fakeCredentialStore{}, want: AuthStateUnauthenticated},
		{name: "token", store: &fakeCredentialStore{value: &Credential{AccessToken: "abc"}}, want: AuthStateAuthenticated},
		{name: "no token", store: &fakeCredentialStore{value: &Credential{RefreshToken: "r"}}, want: AuthStateUnauthenticated},
	}
	for _, tc := range cases {
		metrics := &captureMetricsRecorder{}
		machine := NewAuthStateMachine(AuthStateLoading, WithAuthStateMetrics(metrics))
		machine.Probe(context.Background(), tc.store)
		if got := machine.Current(); got != tc.want {
			t.Fatalf("%s: expected %q, got %q", tc.name, tc.want, got)
		}
		if len(metrics.histograms) != 1 || metrics.histograms[0].name != MetricProbeDuration {
			t.Fatalf("%s: expected probe duration histogram, got %#v", tc.name, metrics.histograms)
		}
	}
}

func TestAuthStateMachine_ProbeFailureResolvesUnauthenticated(t *testing.T) {
	logger := newCaptureLogger()
	machine := NewAuthStateMachine(AuthStateLoading, WithAuthStateLogger(logger))

	machine.Probe(context.Background(), &fakeCredentialStore{getErr: errors.New("disk unavailable")})

	if got := machine.Current(); got != AuthStateUnauthenticated {
		t.Fatalf("expected unauthenticated after failed probe, got %q", got)
	}
	record, ok := logger.find("warn", "startup probe failed")
	if !ok {
		t.Fatalf("expected probe failure warning")
	}
	if record.fields["text_code"] != ErrorProbeFailed {
		t.Fatalf("expected probe text code, got %#v", record.fields["text_code"])
	}
}

func TestAuthStateMachine_ProbeRunsOnce(t *testing.T) {
	store := &fakeCredentialStore{value: &Credential{AccessToken: "abc"}}
	machine := NewAuthStateMachine(AuthStateLoading)
	machine.Probe(context.Background(), store)

	machine.Publish(context.Background(), AuthStateUnauthenticated)
	machine.Probe(context.Background(), store)

	if got := machine.Current(); got != AuthStateUnauthenticated {
		t.Fatalf("expected second probe to be skipped, got %q", got)
	}
}

func TestAuthStateMachine_ProbeAfterCloseHasNoEffect(t *testing.T) {
	store := &fakeCredentialStore{value: &Credential{AccessToken: "abc"}, gate: make(chan struct{})}
	machine := NewAuthStateMachine(AuthStateLoading)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		machine.Probe(context.Background(), store)
	}()

	machine.Close()
	close(store.gate)
	wg.Wait()

	if got := machine.Current(); got != AuthStateLoading {
		t.Fatalf("expected probe completion after close to be ignored, got %q", got)
	}
}

func TestAuthStateMachine_WriteDuringProbeWins(t *testing.T) {
	gate := make(chan struct{})
	store := &fakeCredentialStore{gate: gate}
	machine := NewAuthStateMachine(AuthStateLoading)

	done := make(chan struct{})
	go func() {
		defer close(done)
		machine.Probe(context.Background(), store)
	}()

	// Probe is blocked reading; a write publishes immediately.
	machine.Publish(context.Background(), AuthStateAuthenticated)
	if got := machine.Current(); got != AuthStateAuthenticated {
		t.Fatalf("expected write to publish immediately, got %q", got)
	}

	close(gate)
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("probe did not finish")
	}
	if got := machine.Current(); got != AuthStateUnauthenticated {
		t.Fatalf("expected last completed publish to win, got %q", got)
	}
}
