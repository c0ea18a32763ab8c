// Package dispatch gates, sends and reconciles mutating operator actions.
//
// A destructive action is parked as the single pending action and a
// ConfirmRequestMsg is emitted; the mutation is sent only after a Confirmation
// carrying the same action id and target. Every completed mutation raises a
// notification, and a successful one asks the poller for one reconciliation
// fetch of its owning resource.
package dispatch

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/rs/zerolog"

	"github.com/high001/webpanel/internal/client"
	"github.com/high001/webpanel/internal/models"
	"github.com/high001/webpanel/internal/notify"
)

// Mutator sends a mutation to the agent. *client.Client implements it.
type Mutator interface {
	Mutate(ctx context.Context, resource models.Resource, target, op string, payload any) (*client.MutationResult, error)
}

// Reconciler schedules the fetch that follows a mutation. *poller.Poller
// implements it.
type Reconciler interface {
	Reconcile(resource models.Resource) tea.Cmd
}

// Notifier raises transient feedback. *notify.Scheduler implements it.
type Notifier interface {
	ShowDefault(kind notify.Kind, message string) tea.Cmd
}

// Action is a proposed mutation
type Action struct {
	// ID is assigned by Request
	ID       uint64
	Resource models.Resource
	Target   string
	Op       string
	Payload  any
	// Destructive actions wait for confirmation
	Destructive bool
	// Noun names the target kind in generated messages, e.g. "process"
	Noun string
	// Prompt is shown when confirmation is requested
	Prompt string
	// SuccessText overrides the agent's success message
	SuccessText string
	// FailureText overrides the generic failure fallback
	FailureText string
}

// Fallback is the error text used when the agent supplies none
func (a Action) Fallback() string {
	if a.FailureText != "" {
		return a.FailureText
	}
	if a.Noun == "" {
		return "Failed to " + a.Op
	}
	return fmt.Sprintf("Failed to %s %s", a.Op, a.Noun)
}

func (a Action) prompt() string {
	if a.Prompt != "" {
		return a.Prompt
	}
	return fmt.Sprintf("%s %s %s?", a.Op, a.Noun, a.Target)
}

// ConfirmRequestMsg asks the presentation layer to confirm a pending action
type ConfirmRequestMsg struct {
	ActionID uint64
	Resource models.Resource
	Target   string
	Prompt   string
}

// Confirmation is the operator's answer to a ConfirmRequestMsg
type Confirmation struct {
	ActionID    uint64
	Target      string
	Affirmative bool
}

// DoneMsg carries a completed mutation back to the loop
type DoneMsg struct {
	Gen    uint64
	Action Action
	Result *client.MutationResult
	Err    error
}

// Outcome tells the owner what a DoneMsg did
type Outcome struct {
	Action Action
	Result *client.MutationResult
	Err    error
	// Handled is false for messages that did not belong to the dispatcher or
	// that were raised before the last Reset
	Handled bool
}

type Dispatcher struct {
	mutator    Mutator
	reconciler Reconciler
	notifier   Notifier
	logger     zerolog.Logger

	pending *Action
	nextID  uint64
	gen     uint64
	sent    int
}

// Option configures a Dispatcher
type Option func(*Dispatcher)

func WithLogger(l zerolog.Logger) Option {
	return func(d *Dispatcher) {
		d.logger = l
	}
}

func New(m Mutator, r Reconciler, n Notifier, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		mutator:    m,
		reconciler: r,
		notifier:   n,
		logger:     zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Request proposes an action. Non-destructive actions are sent at once; a
// destructive one replaces any pending action and waits for Confirm.
func (d *Dispatcher) Request(a Action) tea.Cmd {
	d.nextID++
	a.ID = d.nextID

	if !a.Destructive {
		return d.send(a)
	}

	if d.pending != nil {
		d.logger.Debug().Uint64("action", d.pending.ID).Msg("pending action superseded")
	}
	d.pending = &a
	req := ConfirmRequestMsg{
		ActionID: a.ID,
		Resource: a.Resource,
		Target:   a.Target,
		Prompt:   a.prompt(),
	}
	return func() tea.Msg { return req }
}

// Confirm answers the pending action. Answers for another action or another
// target are ignored; a negative answer discards the pending action.
func (d *Dispatcher) Confirm(c Confirmation) tea.Cmd {
	p := d.pending
	if p == nil || p.ID != c.ActionID || p.Target != c.Target {
		d.logger.Warn().
			Uint64("action", c.ActionID).
			Str("target", c.Target).
			Msg("confirmation does not match the pending action")
		return nil
	}
	d.pending = nil
	if !c.Affirmative {
		d.logger.Debug().Uint64("action", p.ID).Msg("action cancelled")
		return nil
	}
	return d.send(*p)
}

// Cancel discards the pending action, if any
func (d *Dispatcher) Cancel() {
	d.pending = nil
}

// Pending returns the action waiting for confirmation
func (d *Dispatcher) Pending() (Action, bool) {
	if d.pending == nil {
		return Action{}, false
	}
	return *d.pending, true
}

// Reset drops the pending action and makes every in-flight mutation's
// completion inert. Called when the owning view deactivates.
func (d *Dispatcher) Reset() {
	d.pending = nil
	d.gen++
}

// Sent returns how many mutations have been handed to the Mutator
func (d *Dispatcher) Sent() int {
	return d.sent
}

func (d *Dispatcher) send(a Action) tea.Cmd {
	d.sent++
	gen, m := d.gen, d.mutator
	d.logger.Info().
		Str("resource", a.Resource.String()).
		Str("op", a.Op).
		Str("target", a.Target).
		Msg("dispatching action")
	return func() tea.Msg {
		res, err := m.Mutate(context.Background(), a.Resource, a.Target, a.Op, a.Payload)
		return DoneMsg{Gen: gen, Action: a, Result: res, Err: err}
	}
}

// Update routes a DoneMsg into notifications and reconciliation
func (d *Dispatcher) Update(msg tea.Msg) (Outcome, tea.Cmd) {
	m, ok := msg.(DoneMsg)
	if !ok || m.Gen != d.gen {
		return Outcome{}, nil
	}
	out := Outcome{Action: m.Action, Result: m.Result, Err: m.Err, Handled: true}

	if m.Err != nil {
		d.logger.Warn().Err(m.Err).Str("op", m.Action.Op).Str("target", m.Action.Target).Msg("action failed")
		return out, d.notifier.ShowDefault(notify.Error, client.MessageOr(m.Err, m.Action.Fallback()))
	}

	text := m.Action.SuccessText
	if text == "" && m.Result != nil {
		text = m.Result.Message
	}
	if text == "" {
		text = fmt.Sprintf("%s %s: done", m.Action.Noun, m.Action.Target)
	}
	return out, tea.Batch(
		d.notifier.ShowDefault(notify.Success, text),
		d.reconciler.Reconcile(m.Action.Resource),
	)
}
