package gocommand

import (
	"context"
	"errors"
	"testing"

	"github.com/goliatone/go-command"
)

type pingMessage struct {
	ID string
}

func (pingMessage) Type() string { return "directus.test.ping" }

type statusMessage struct{}

func (statusMessage) Type() string { return "directus.test.status" }

type foreignMessage struct{}

func (foreignMessage) Type() string { return "billing.command.ok" }

type emptyMessage struct{}

func (emptyMessage) Type() string { return "" }

type invalidMessage struct{}

func (invalidMessage) Type() string { return "directus.test.invalid" }

func (invalidMessage) Validate() error { return errors.New("invalid payload") }

func TestValidateMessage(t *testing.T) {
	if err := ValidateMessage(pingMessage{}); err != nil {
		t.Fatalf("expected valid message, got %v", err)
	}
	for name, msg := range map[string]any{
		"empty type":    emptyMessage{},
		"foreign type":  foreignMessage{},
		"failing":       invalidMessage{},
		"not a message": struct{}{},
	} {
		if err := ValidateMessage(msg); err == nil {
			t.Fatalf("%s: expected validation error", name)
		}
	}
}

func TestRegistrar_DispatchAndQuery(t *testing.T) {
	registrar := NewRegistrar(command.NewRegistry())
	defer registrar.Close()

	var received []string
	cmd := command.CommandFunc[pingMessage](func(_ context.Context, msg pingMessage) error {
		received = append(received, msg.ID)
		return nil
	})
	qry := command.QueryFunc[statusMessage, string](func(context.Context, statusMessage) (string, error) {
		return "ok", nil
	})

	if err := RegisterCommand[pingMessage](registrar, cmd); err != nil {
		t.Fatalf("register command: %v", err)
	}
	if err := RegisterCommand[pingMessage](registrar, cmd); err == nil {
		t.Fatalf("expected duplicate registration error")
	}
	if err := RegisterQuery[statusMessage, string](registrar, qry); err != nil {
		t.Fatalf("register query: %v", err)
	}
	if err := registrar.Initialize(); err != nil {
		t.Fatalf("initialize: %v", err)
	}
	if got := len(registrar.Types()); got != 2 {
		t.Fatalf("expected two registered types, got %d", got)
	}

	if err := Dispatch(context.Background(), pingMessage{ID: "m1"}); err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	if len(received) != 1 || received[0] != "m1" {
		t.Fatalf("unexpected received messages %v", received)
	}

	status, err := Query[statusMessage, string](context.Background(), statusMessage{})
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if status != "ok" {
		t.Fatalf("unexpected query result %q", status)
	}
}

func TestRegistrar_CloseUnsubscribes(t *testing.T) {
	registrar := NewRegistrar(nil)
	calls := 0
	cmd := command.CommandFunc[pingMessage](func(context.Context, pingMessage) error {
		calls++
		return nil
	})
	if err := RegisterCommand[pingMessage](registrar, cmd); err != nil {
		t.Fatalf("register command: %v", err)
	}
	registrar.Close()

	_ = Dispatch(context.Background(), pingMessage{ID: "after-close"})
	if calls != 0 {
		t.Fatalf("expected no handler after close, got %d calls", calls)
	}
	if len(registrar.Types()) != 0 {
		t.Fatalf("expected types to be released on close")
	}
}

func TestDispatch_RejectsInvalidMessage(t *testing.T) {
	if err := Dispatch(context.Background(), invalidMessage{}); err == nil {
		t.Fatalf("expected validation error before dispatch")
	}
}

func TestRegistrar_NilGuards(t *testing.T) {
	var registrar *Registrar
	if err := RegisterCommand[pingMessage](registrar, nil); err == nil {
		t.Fatalf("expected error for nil registrar")
	}
	if err := registrar.Initialize(); err == nil {
		t.Fatalf("expected error for nil registrar")
	}
	registrar.Close()
}
