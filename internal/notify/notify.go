// Package notify owns the success and error banners of one console view.
// Each kind has a single slot; showing a message replaces the slot and
// re-arms its expiry.
package notify

import (
	"time"

	tea "github.com/charmbracelet/bubbletea"
)

// Kind of notification
type Kind int

const (
	Success Kind = iota
	Error
)

func (k Kind) String() string {
	if k == Error {
		return "error"
	}
	return "success"
}

// Notification is the message currently occupying a slot
type Notification struct {
	Kind    Kind
	Message string
	Expires time.Time
}

// ExpiredMsg is delivered when a slot's timer fires. Gen identifies the
// Show call that armed it; stale generations are ignored.
type ExpiredMsg struct {
	Kind Kind
	Gen  uint64
}

// AfterFunc schedules msg to be delivered after d
type AfterFunc func(d time.Duration, msg tea.Msg) tea.Cmd

// TeaAfter is the production AfterFunc backed by tea.Tick
func TeaAfter(d time.Duration, msg tea.Msg) tea.Cmd {
	return tea.Tick(d, func(time.Time) tea.Msg { return msg })
}

type slot struct {
	note   Notification
	gen    uint64
	active bool
}

// Scheduler holds at most one notification per kind
type Scheduler struct {
	slots      [2]slot
	gen        uint64
	successTTL time.Duration
	errorTTL   time.Duration
	after      AfterFunc
	now        func() time.Time
}

// Option configures a Scheduler
type Option func(*Scheduler)

func WithAfterFunc(fn AfterFunc) Option {
	return func(s *Scheduler) {
		s.after = fn
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *Scheduler) {
		s.now = now
	}
}

// New creates a scheduler with default lifetimes per kind
func New(successTTL, errorTTL time.Duration, opts ...Option) *Scheduler {
	s := &Scheduler{
		successTTL: successTTL,
		errorTTL:   errorTTL,
		after:      TeaAfter,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Show replaces the notification of kind and arms a single expiry timer.
// Any timer armed by an earlier Show for the same kind becomes inert.
func (s *Scheduler) Show(kind Kind, message string, ttl time.Duration) tea.Cmd {
	s.gen++
	s.slots[kind] = slot{
		note: Notification{
			Kind:    kind,
			Message: message,
			Expires: s.now().Add(ttl),
		},
		gen:    s.gen,
		active: true,
	}
	if ttl <= 0 {
		return nil
	}
	return s.after(ttl, ExpiredMsg{Kind: kind, Gen: s.gen})
}

// ShowDefault shows message with the configured lifetime for kind
func (s *Scheduler) ShowDefault(kind Kind, message string) tea.Cmd {
	ttl := s.successTTL
	if kind == Error {
		ttl = s.errorTTL
	}
	return s.Show(kind, message, ttl)
}

// Clear removes the notification of kind immediately
func (s *Scheduler) Clear(kind Kind) {
	s.gen++
	s.slots[kind] = slot{}
}

// ClearAll removes every notification; used when the owning view goes away
func (s *Scheduler) ClearAll() {
	s.Clear(Success)
	s.Clear(Error)
}

// Update consumes ExpiredMsg. It reports whether msg belonged to the scheduler.
func (s *Scheduler) Update(msg tea.Msg) bool {
	exp, ok := msg.(ExpiredMsg)
	if !ok {
		return false
	}
	sl := &s.slots[exp.Kind]
	if sl.active && sl.gen == exp.Gen {
		*sl = slot{}
	}
	return true
}

// Current returns the active notification of kind
func (s *Scheduler) Current(kind Kind) (Notification, bool) {
	sl := s.slots[kind]
	return sl.note, sl.active
}
