package dispatch

import (
	"context"
	"errors"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/high001/webpanel/internal/client"
	"github.com/high001/webpanel/internal/models"
	"github.com/high001/webpanel/internal/notify"
	"github.com/high001/webpanel/internal/poller"
)

type call struct {
	resource models.Resource
	target   string
	op       string
}

type fakeMutator struct {
	calls []call
	err   error
}

func (f *fakeMutator) Mutate(_ context.Context, resource models.Resource, target, op string, _ any) (*client.MutationResult, error) {
	f.calls = append(f.calls, call{resource: resource, target: target, op: op})
	if f.err != nil {
		return nil, f.err
	}
	return &client.MutationResult{Message: "Process " + target + " terminated"}, nil
}

func run(cmd tea.Cmd) []tea.Msg {
	if cmd == nil {
		return nil
	}
	msg := cmd()
	if batch, ok := msg.(tea.BatchMsg); ok {
		var out []tea.Msg
		for _, c := range batch {
			out = append(out, run(c)...)
		}
		return out
	}
	if msg == nil {
		return nil
	}
	return []tea.Msg{msg}
}

func only[T any](t *testing.T, msgs []tea.Msg) T {
	t.Helper()
	var found []T
	for _, m := range msgs {
		if v, ok := m.(T); ok {
			found = append(found, v)
		}
	}
	require.Len(t, found, 1)
	return found[0]
}

func count[T any](msgs []tea.Msg) int {
	n := 0
	for _, m := range msgs {
		if _, ok := m.(T); ok {
			n++
		}
	}
	return n
}

type fixture struct {
	d       *Dispatcher
	m       *fakeMutator
	p       *poller.Poller
	n       *notify.Scheduler
	fetches int
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{m: &fakeMutator{}}
	noop := func(time.Duration, tea.Msg) tea.Cmd { return nil }
	f.p = poller.New(poller.WithSchedule(noop))
	f.n = notify.New(3*time.Second, 5*time.Second, notify.WithAfterFunc(noop))
	f.p.Subscribe(models.ResourceProcesses, 5*time.Second, func(context.Context) (any, error) {
		f.fetches++
		return []models.ProcessInfo{{PID: 1}, {PID: 1234}, {PID: 99}}, nil
	})
	f.d = New(f.m, f.p, f.n)

	// initial list load
	for _, msg := range run(f.p.Activate(models.ResourceProcesses)) {
		f.p.Update(msg)
	}
	require.Equal(t, 1, f.fetches)
	return f
}

func killAction(pid string) Action {
	return Action{
		Resource:    models.ResourceProcesses,
		Target:      pid,
		Op:          client.OpKill,
		Noun:        "process",
		Destructive: true,
	}
}

func TestDestructiveActionWaitsForConfirmation(t *testing.T) {
	f := newFixture(t)

	req := only[ConfirmRequestMsg](t, run(f.d.Request(killAction("1234"))))
	assert.Equal(t, "1234", req.Target)
	assert.Equal(t, "kill process 1234?", req.Prompt)
	assert.Empty(t, f.m.calls)

	pending, ok := f.d.Pending()
	require.True(t, ok)
	assert.Equal(t, req.ActionID, pending.ID)
}

func TestCancelledConfirmationNeverMutates(t *testing.T) {
	f := newFixture(t)
	req := only[ConfirmRequestMsg](t, run(f.d.Request(killAction("1234"))))

	assert.Nil(t, f.d.Confirm(Confirmation{ActionID: req.ActionID, Target: req.Target, Affirmative: false}))
	assert.Empty(t, f.m.calls)
	_, ok := f.d.Pending()
	assert.False(t, ok)

	// replaying an affirmative answer afterwards does nothing
	assert.Nil(t, f.d.Confirm(Confirmation{ActionID: req.ActionID, Target: req.Target, Affirmative: true}))
	assert.Empty(t, f.m.calls)
	assert.Equal(t, 0, f.d.Sent())
}

func TestConfirmationForAnotherTargetIsIgnored(t *testing.T) {
	f := newFixture(t)
	req := only[ConfirmRequestMsg](t, run(f.d.Request(killAction("1234"))))

	assert.Nil(t, f.d.Confirm(Confirmation{ActionID: req.ActionID, Target: "99", Affirmative: true}))
	assert.Empty(t, f.m.calls)

	_, ok := f.d.Pending()
	assert.True(t, ok, "the pending action survives a mismatched answer")
}

func TestStaleConfirmationAfterNewRequestIsIgnored(t *testing.T) {
	f := newFixture(t)
	first := only[ConfirmRequestMsg](t, run(f.d.Request(killAction("1234"))))
	second := only[ConfirmRequestMsg](t, run(f.d.Request(killAction("99"))))

	assert.Nil(t, f.d.Confirm(Confirmation{ActionID: first.ActionID, Target: first.Target, Affirmative: true}))
	assert.Empty(t, f.m.calls)

	cmd := f.d.Confirm(Confirmation{ActionID: second.ActionID, Target: second.Target, Affirmative: true})
	run(cmd)
	require.Len(t, f.m.calls, 1)
	assert.Equal(t, "99", f.m.calls[0].target)
}

func TestConfirmedActionNotifiesAndReconcilesOnce(t *testing.T) {
	f := newFixture(t)
	req := only[ConfirmRequestMsg](t, run(f.d.Request(killAction("1234"))))

	done := only[DoneMsg](t, run(f.d.Confirm(Confirmation{ActionID: req.ActionID, Target: "1234", Affirmative: true})))
	require.Len(t, f.m.calls, 1)
	assert.Equal(t, call{resource: models.ResourceProcesses, target: "1234", op: client.OpKill}, f.m.calls[0])

	out, cmd := f.d.Update(done)
	require.True(t, out.Handled)
	assert.NoError(t, out.Err)

	n, ok := f.n.Current(notify.Success)
	require.True(t, ok)
	assert.Equal(t, "Process 1234 terminated", n.Message)

	msgs := run(cmd)
	assert.Equal(t, 1, count[poller.ResultMsg](msgs))
	assert.Equal(t, 2, f.fetches)
}

func TestReconcileDeferredBehindRegularPoll(t *testing.T) {
	f := newFixture(t)

	// a regular poll is in flight when the mutation completes
	tick := f.p.Refresh(models.ResourceProcesses)
	require.NotNil(t, tick)

	_, cmd := f.d.Update(only[DoneMsg](t, run(f.d.Request(Action{
		Resource: models.ResourceProcesses,
		Target:   "1234",
		Op:       client.OpKill,
		Noun:     "process",
	}))))
	assert.Equal(t, 0, count[poller.ResultMsg](run(cmd)))

	_, follow := f.p.Update(only[poller.ResultMsg](t, run(tick)))
	require.NotNil(t, follow)
	assert.Equal(t, 1, count[poller.ResultMsg](run(follow)))
}

func TestFailureCarriesAgentMessageVerbatim(t *testing.T) {
	f := newFixture(t)
	f.m.err = &client.Error{Kind: client.KindServer, Status: 500, Message: "Process not found"}

	_, cmd := f.d.Update(only[DoneMsg](t, run(f.d.Request(Action{
		Resource: models.ResourceProcesses, Target: "1234", Op: client.OpKill, Noun: "process",
	}))))
	assert.Equal(t, 0, count[poller.ResultMsg](run(cmd)), "failures are not reconciled")

	n, ok := f.n.Current(notify.Error)
	require.True(t, ok)
	assert.Equal(t, "Process not found", n.Message)
	assert.Equal(t, 1, f.fetches)
}

func TestFailureWithoutMessageUsesFallback(t *testing.T) {
	f := newFixture(t)
	f.m.err = &client.Error{Kind: client.KindNetwork, Err: errors.New("connection refused")}

	f.d.Update(only[DoneMsg](t, run(f.d.Request(Action{
		Resource: models.ResourceProcesses, Target: "1234", Op: client.OpKill, Noun: "process",
	}))))

	n, ok := f.n.Current(notify.Error)
	require.True(t, ok)
	assert.Equal(t, "Failed to kill process", n.Message)
}

func TestResetMakesCompletionInert(t *testing.T) {
	f := newFixture(t)
	cmd := f.d.Request(Action{Resource: models.ResourceProcesses, Target: "1", Op: client.OpKill})
	f.d.Reset()

	out, follow := f.d.Update(only[DoneMsg](t, run(cmd)))
	assert.False(t, out.Handled)
	assert.Nil(t, follow)
	_, ok := f.n.Current(notify.Success)
	assert.False(t, ok)
}

func TestSuccessTextOverride(t *testing.T) {
	f := newFixture(t)
	f.d.Update(only[DoneMsg](t, run(f.d.Request(Action{
		Resource: models.ResourceProcesses, Target: "1", Op: client.OpKill, SuccessText: "gone",
	}))))
	n, _ := f.n.Current(notify.Success)
	assert.Equal(t, "gone", n.Message)
}

func TestCancelDropsPendingAction(t *testing.T) {
	f := newFixture(t)
	req := only[ConfirmRequestMsg](t, run(f.d.Request(killAction("1234"))))

	f.d.Cancel()
	_, ok := f.d.Pending()
	assert.False(t, ok)

	assert.Nil(t, f.d.Confirm(Confirmation{ActionID: req.ActionID, Target: req.Target, Affirmative: true}))
	assert.Empty(t, f.m.calls)
}
