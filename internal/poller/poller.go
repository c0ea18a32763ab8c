// Package poller schedules refreshes of remote resource snapshots for one
// console view. Every method runs on the bubbletea event loop; fetches run as
// tea.Cmds and come back as ResultMsg.
//
// Each subscription has at most one fetch in flight. Ticks that arrive while a
// fetch is outstanding are dropped, never queued. Completions are applied only
// when they belong to the latest outstanding fetch of an active subscription,
// so a late answer from an abandoned fetch cannot overwrite newer state.
package poller

import (
	"context"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/rs/zerolog"

	"github.com/high001/webpanel/internal/models"
)

// State of a subscription
type State int

const (
	Idle State = iota
	Fetching
	// Backoff: the last fetch of a recurring subscription failed and the next
	// attempt waits for the regular tick. The interval is never stretched.
	Backoff
)

func (s State) String() string {
	switch s {
	case Fetching:
		return "fetching"
	case Backoff:
		return "backoff"
	default:
		return "idle"
	}
}

// FetchFunc reads one snapshot of a resource
type FetchFunc func(ctx context.Context) (any, error)

// ScheduleFunc delivers msg after d
type ScheduleFunc func(d time.Duration, msg tea.Msg) tea.Cmd

// TeaSchedule is the production ScheduleFunc backed by tea.Tick
func TeaSchedule(d time.Duration, msg tea.Msg) tea.Cmd {
	return tea.Tick(d, func(time.Time) tea.Msg { return msg })
}

// TickMsg triggers a recurring fetch
type TickMsg struct {
	Resource models.Resource
	Epoch    uint64
}

// ResultMsg carries the outcome of one fetch back to the loop
type ResultMsg struct {
	Resource models.Resource
	Epoch    uint64
	Seq      uint64
	Snapshot any
	Err      error
}

// Result tells the owner what a message did to its subscription
type Result struct {
	Resource models.Resource
	// Published is set when a new snapshot replaced the previous one
	Published bool
	Snapshot  any
	// Err is set when a fetch failed; the previous snapshot is retained
	Err error
	// Discarded is set when a completion was ignored as stale
	Discarded bool
}

// Handled reports whether the message belonged to this poller
func (r Result) Handled() bool {
	return r.Resource != ""
}

// Stats counts scheduling decisions of one subscription
type Stats struct {
	Issued       int
	DroppedTicks int
	Discarded    int
}

type subscription struct {
	resource  models.Resource
	interval  time.Duration
	fetch     FetchFunc
	state     State
	active    bool
	epoch     uint64
	seq       uint64
	inflight  uint64 // seq of the outstanding fetch, 0 when none
	reconcile bool   // a reconciliation poll waits for the outstanding fetch
	snapshot  any
	hasSnap   bool
	fetchedAt time.Time
	lastErr   error
	stats     Stats
}

// Poller owns the subscriptions of one view
type Poller struct {
	subs     map[models.Resource]*subscription
	schedule ScheduleFunc
	now      func() time.Time
	logger   zerolog.Logger
}

// Option configures a Poller
type Option func(*Poller)

func WithSchedule(fn ScheduleFunc) Option {
	return func(p *Poller) {
		p.schedule = fn
	}
}

func WithClock(now func() time.Time) Option {
	return func(p *Poller) {
		p.now = now
	}
}

func WithLogger(l zerolog.Logger) Option {
	return func(p *Poller) {
		p.logger = l
	}
}

func New(opts ...Option) *Poller {
	p := &Poller{
		subs:     make(map[models.Resource]*subscription),
		schedule: TeaSchedule,
		now:      time.Now,
		logger:   zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Subscribe registers resource with a refresh interval (0 = on demand only).
// Subscribing an existing resource updates its interval and fetch function;
// the change takes effect on the next activation.
func (p *Poller) Subscribe(resource models.Resource, interval time.Duration, fetch FetchFunc) {
	if sub, ok := p.subs[resource]; ok {
		sub.interval = interval
		sub.fetch = fetch
		return
	}
	p.subs[resource] = &subscription{
		resource: resource,
		interval: interval,
		fetch:    fetch,
	}
}

// Activate starts polling: one immediate fetch, then a tick every interval.
// Activating an active subscription does nothing.
func (p *Poller) Activate(resource models.Resource) tea.Cmd {
	sub, ok := p.subs[resource]
	if !ok || sub.active {
		return nil
	}
	sub.active = true
	sub.epoch++
	sub.inflight = 0
	sub.reconcile = false
	sub.state = Idle

	cmds := []tea.Cmd{p.issue(sub)}
	if sub.interval > 0 {
		cmds = append(cmds, p.nextTick(sub))
	}
	return tea.Batch(cmds...)
}

// Deactivate cancels the tick schedule and abandons any in-flight fetch.
// The snapshot is dropped with the subscription's activation.
func (p *Poller) Deactivate(resource models.Resource) {
	sub, ok := p.subs[resource]
	if !ok || !sub.active {
		return
	}
	if sub.inflight != 0 {
		p.logger.Debug().Str("resource", resource.String()).Uint64("seq", sub.inflight).Msg("abandoning in-flight fetch")
	}
	sub.active = false
	sub.epoch++
	sub.inflight = 0
	sub.reconcile = false
	sub.state = Idle
	sub.snapshot = nil
	sub.hasSnap = false
	sub.lastErr = nil
}

// DeactivateAll deactivates every subscription of the poller
func (p *Poller) DeactivateAll() {
	for r := range p.subs {
		p.Deactivate(r)
	}
}

// Refresh requests an immediate fetch. It is dropped when a fetch is already
// in flight.
func (p *Poller) Refresh(resource models.Resource) tea.Cmd {
	sub, ok := p.subs[resource]
	if !ok || !sub.active {
		return nil
	}
	if sub.state == Fetching {
		sub.stats.DroppedTicks++
		return nil
	}
	return p.issue(sub)
}

// Reconcile requests the out-of-band fetch that follows a mutation. When a
// fetch is in flight the request is deferred until it completes; deferred
// requests coalesce into one fetch.
func (p *Poller) Reconcile(resource models.Resource) tea.Cmd {
	sub, ok := p.subs[resource]
	if !ok || !sub.active {
		return nil
	}
	if sub.state == Fetching {
		sub.reconcile = true
		return nil
	}
	return p.issue(sub)
}

// Rebind replaces the fetch function of resource and abandons its in-flight
// fetch. The caller issues the next fetch with Refresh or Activate.
func (p *Poller) Rebind(resource models.Resource, fetch FetchFunc) {
	sub, ok := p.subs[resource]
	if !ok {
		return
	}
	sub.fetch = fetch
	sub.inflight = 0
	sub.reconcile = false
	if sub.state == Fetching {
		sub.state = Idle
	}
}

// Update applies TickMsg and ResultMsg to their subscription
func (p *Poller) Update(msg tea.Msg) (Result, tea.Cmd) {
	switch m := msg.(type) {
	case TickMsg:
		return p.onTick(m)
	case ResultMsg:
		return p.onResult(m)
	}
	return Result{}, nil
}

func (p *Poller) onTick(m TickMsg) (Result, tea.Cmd) {
	sub, ok := p.subs[m.Resource]
	if !ok {
		return Result{}, nil
	}
	if !sub.active || m.Epoch != sub.epoch {
		// tick from a cancelled schedule
		return Result{Resource: m.Resource}, nil
	}
	next := p.nextTick(sub)
	if sub.state == Fetching {
		sub.stats.DroppedTicks++
		p.logger.Debug().Str("resource", m.Resource.String()).Msg("tick dropped, fetch in flight")
		return Result{Resource: m.Resource}, next
	}
	return Result{Resource: m.Resource}, tea.Batch(p.issue(sub), next)
}

func (p *Poller) onResult(m ResultMsg) (Result, tea.Cmd) {
	sub, ok := p.subs[m.Resource]
	if !ok {
		return Result{}, nil
	}
	if !sub.active || m.Epoch != sub.epoch || m.Seq != sub.inflight {
		sub.stats.Discarded++
		p.logger.Debug().Str("resource", m.Resource.String()).Uint64("seq", m.Seq).Msg("discarding stale fetch result")
		return Result{Resource: m.Resource, Discarded: true}, nil
	}

	sub.inflight = 0
	res := Result{Resource: m.Resource}
	if m.Err != nil {
		sub.lastErr = m.Err
		sub.state = Idle
		if sub.interval > 0 {
			sub.state = Backoff
		}
		res.Err = m.Err
		p.logger.Debug().Str("resource", m.Resource.String()).Err(m.Err).Msg("fetch failed")
	} else {
		sub.state = Idle
		sub.snapshot = m.Snapshot
		sub.hasSnap = true
		sub.fetchedAt = p.now()
		sub.lastErr = nil
		res.Published = true
		res.Snapshot = m.Snapshot
	}

	var cmd tea.Cmd
	if sub.reconcile {
		sub.reconcile = false
		cmd = p.issue(sub)
	}
	return res, cmd
}

func (p *Poller) issue(sub *subscription) tea.Cmd {
	sub.seq++
	sub.inflight = sub.seq
	sub.state = Fetching
	sub.stats.Issued++

	resource, epoch, seq, fetch := sub.resource, sub.epoch, sub.seq, sub.fetch
	return func() tea.Msg {
		snap, err := fetch(context.Background())
		return ResultMsg{Resource: resource, Epoch: epoch, Seq: seq, Snapshot: snap, Err: err}
	}
}

func (p *Poller) nextTick(sub *subscription) tea.Cmd {
	return p.schedule(sub.interval, TickMsg{Resource: sub.resource, Epoch: sub.epoch})
}

// Snapshot returns the latest published snapshot of resource
func (p *Poller) Snapshot(resource models.Resource) (any, bool) {
	sub, ok := p.subs[resource]
	if !ok || !sub.hasSnap {
		return nil, false
	}
	return sub.snapshot, true
}

// SnapshotAs returns the latest snapshot of resource as T
func SnapshotAs[T any](p *Poller, resource models.Resource) (T, bool) {
	var zero T
	snap, ok := p.Snapshot(resource)
	if !ok {
		return zero, false
	}
	v, ok := snap.(T)
	return v, ok
}

func (p *Poller) State(resource models.Resource) State {
	if sub, ok := p.subs[resource]; ok {
		return sub.state
	}
	return Idle
}

func (p *Poller) Active(resource models.Resource) bool {
	sub, ok := p.subs[resource]
	return ok && sub.active
}

// LastError returns the error of the most recent failed fetch, cleared by the
// next success
func (p *Poller) LastError(resource models.Resource) error {
	if sub, ok := p.subs[resource]; ok {
		return sub.lastErr
	}
	return nil
}

func (p *Poller) FetchedAt(resource models.Resource) time.Time {
	if sub, ok := p.subs[resource]; ok {
		return sub.fetchedAt
	}
	return time.Time{}
}

// Loading reports whether resource has a fetch in flight and nothing to show yet
func (p *Poller) Loading(resource models.Resource) bool {
	sub, ok := p.subs[resource]
	return ok && sub.active && !sub.hasSnap && sub.lastErr == nil
}

func (p *Poller) Stats(resource models.Resource) Stats {
	if sub, ok := p.subs[resource]; ok {
		return sub.stats
	}
	return Stats{}
}
