package gocommand

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/goliatone/go-command"
	commanddispatcher "github.com/goliatone/go-command/dispatcher"
	"github.com/goliatone/go-command/runner"
)

// MessageTypePrefix namespaces every message routed through a Registrar.
const MessageTypePrefix = "directus."

// ValidateMessage checks the message contract: a non-empty Type() in the
// directus namespace and, when present, a passing Validate().
func ValidateMessage(msg any) error {
	m, ok := msg.(command.Message)
	if !ok {
		return fmt.Errorf("gocommand: message must implement Type() string")
	}
	messageType := strings.TrimSpace(m.Type())
	if messageType == "" {
		return fmt.Errorf("gocommand: message type is required")
	}
	if !strings.HasPrefix(messageType, MessageTypePrefix) {
		return fmt.Errorf("gocommand: message type %q is outside the %s namespace", messageType, MessageTypePrefix)
	}
	return command.ValidateMessage(msg)
}

// Registrar records handlers in a go-command registry and subscribes them to
// the process dispatcher. Close releases every subscription it made.
type Registrar struct {
	mu            sync.Mutex
	registry      *command.Registry
	runnerOptions []runner.Option
	subscriptions []commanddispatcher.Subscription
	types         map[string]struct{}
}

func NewRegistrar(registry *command.Registry, runnerOpts ...runner.Option) *Registrar {
	if registry == nil {
		registry = command.NewRegistry()
	}
	return &Registrar{
		registry:      registry,
		runnerOptions: append([]runner.Option(nil), runnerOpts...),
		types:         map[string]struct{}{},
	}
}

func (r *Registrar) Registry() *command.Registry {
	if r == nil {
		return nil
	}
	return r.registry
}

// Types lists the message types registered so far.
func (r *Registrar) Types() []string {
	if r == nil {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.types))
	for messageType := range r.types {
		out = append(out, messageType)
	}
	return out
}

func (r *Registrar) Initialize() error {
	if r == nil || r.registry == nil {
		return fmt.Errorf("gocommand: registry is not configured")
	}
	return r.registry.Initialize()
}

// Close unsubscribes every handler subscribed through r.
func (r *Registrar) Close() {
	if r == nil {
		return
	}
	r.mu.Lock()
	subscriptions := r.subscriptions
	r.subscriptions = nil
	r.types = map[string]struct{}{}
	r.mu.Unlock()

	for _, subscription := range subscriptions {
		if subscription != nil {
			subscription.Unsubscribe()
		}
	}
}

func (r *Registrar) claim(messageType string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.types[messageType]; exists {
		return fmt.Errorf("gocommand: handler for %q already registered", messageType)
	}
	r.types[messageType] = struct{}{}
	return nil
}

func (r *Registrar) release(messageType string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.types, messageType)
}

func (r *Registrar) track(subscription commanddispatcher.Subscription) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.subscriptions = append(r.subscriptions, subscription)
}

// RegisterCommand registers cmd and subscribes it to the dispatcher. Only one
// handler per message type is accepted.
func RegisterCommand[T command.Message](r *Registrar, cmd command.Commander[T]) error {
	if r == nil || r.registry == nil {
		return fmt.Errorf("gocommand: registry is not configured")
	}
	if cmd == nil {
		return fmt.Errorf("gocommand: command is required")
	}
	var zero T
	messageType := zero.Type()
	if err := r.claim(messageType); err != nil {
		return err
	}
	if err := r.registry.RegisterCommand(cmd); err != nil {
		r.release(messageType)
		return err
	}
	r.track(commanddispatcher.SubscribeCommand(cmd, r.runnerOptions...))
	return nil
}

func RegisterQuery[T command.Message, R any](r *Registrar, qry command.Querier[T, R]) error {
	if r == nil || r.registry == nil {
		return fmt.Errorf("gocommand: registry is not configured")
	}
	if qry == nil {
		return fmt.Errorf("gocommand: query is required")
	}
	var zero T
	messageType := zero.Type()
	if err := r.claim(messageType); err != nil {
		return err
	}
	if err := r.registry.RegisterCommand(qry); err != nil {
		r.release(messageType)
		return err
	}
	r.track(commanddispatcher.SubscribeQuery(qry, r.runnerOptions...))
	return nil
}

// Dispatch validates msg before handing it to the dispatcher.
func Dispatch[T command.Message](ctx context.Context, msg T) error {
	if err := ValidateMessage(msg); err != nil {
		return err
	}
	return commanddispatcher.Dispatch(ctx, msg)
}

func Query[T command.Message, R any](ctx context.Context, msg T) (R, error) {
	if err := ValidateMessage(msg); err != nil {
		var zero R
		return zero, err
	}
	return commanddispatcher.Query[T, R](ctx, msg)
}
