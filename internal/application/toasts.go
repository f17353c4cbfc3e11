package application

import (
	"time"

	"github.com/bnema/rigpilot/internal/domain"
	"github.com/bnema/rigpilot/internal/ports"
	"github.com/google/uuid"
)

const (
	DefaultToastTTL  = 5 * time.Second
	DefaultToastExit = 300 * time.Millisecond
)

type ToastState string

const (
	ToastVisible ToastState = "visible"
	ToastExiting ToastState = "exiting"
	ToastRemoved ToastState = "removed"
)

type Toast struct {
	domain.Notification
	State ToastState
}

type toastItem struct {
	toast Toast
	timer ports.Timer
}

// ToastQueue owns the ephemeral notifications of a session. Each toast runs
// its own TTL timer and, once exiting, its own exit timer; a toast is removed
// exactly once no matter how dismissal and expiry interleave.
type ToastQueue struct {
	loop  *Loop
	ttl   time.Duration
	exit  time.Duration
	newID func() string

	items     []*toastItem
	closed    bool
	listeners []func()
}

var _ ports.Notifier = (*ToastQueue)(nil)

func NewToastQueue(loop *Loop, ttl, exit time.Duration) *ToastQueue {
	if ttl <= 0 {
		ttl = DefaultToastTTL
	}
	if exit <= 0 {
		exit = DefaultToastExit
	}

	return &ToastQueue{
		loop:  loop,
		ttl:   ttl,
		exit:  exit,
		newID: uuid.NewString,
	}
}

func (q *ToastQueue) Notify(severity domain.Severity, message string) string {
	return q.Push(severity, message, 0)
}

// Push shows a toast for ttl, or the queue default when ttl is zero. It
// returns the toast ID, empty once the queue is closed.
func (q *ToastQueue) Push(severity domain.Severity, message string, ttl time.Duration) string {
	if q.closed {
		return ""
	}
	if ttl <= 0 {
		ttl = q.ttl
	}

	item := &toastItem{toast: Toast{
		Notification: domain.Notification{
			ID:        q.newID(),
			Message:   message,
			Severity:  severity,
			CreatedAt: q.loop.Now(),
			TTL:       ttl,
		},
		State: ToastVisible,
	}}
	item.timer = q.loop.AfterFunc(ttl, func() { q.beginExit(item) })
	q.items = append(q.items, item)
	q.changed()

	return item.toast.ID
}

// Dismiss starts the exit of a visible toast. Dismissing an exiting or
// unknown toast does nothing and reports false.
func (q *ToastQueue) Dismiss(id string) bool {
	for _, item := range q.items {
		if item.toast.ID == id {
			return q.beginExit(item)
		}
	}
	return false
}

// DismissNewest dismisses the most recent visible toast.
func (q *ToastQueue) DismissNewest() bool {
	for i := len(q.items) - 1; i >= 0; i-- {
		if q.items[i].toast.State == ToastVisible {
			return q.beginExit(q.items[i])
		}
	}
	return false
}

func (q *ToastQueue) beginExit(item *toastItem) bool {
	if item.toast.State != ToastVisible {
		return false
	}
	if item.timer != nil {
		item.timer.Stop()
	}
	item.toast.State = ToastExiting
	item.timer = q.loop.AfterFunc(q.exit, func() { q.remove(item) })
	q.changed()
	return true
}

func (q *ToastQueue) remove(item *toastItem) {
	if item.toast.State != ToastExiting {
		return
	}
	item.toast.State = ToastRemoved
	item.timer = nil

	for i, candidate := range q.items {
		if candidate == item {
			q.items = append(q.items[:i], q.items[i+1:]...)
			break
		}
	}
	q.changed()
}

func (q *ToastQueue) Toasts() []Toast {
	toasts := make([]Toast, 0, len(q.items))
	for _, item := range q.items {
		toasts = append(toasts, item.toast)
	}
	return toasts
}

func (q *ToastQueue) Len() int {
	return len(q.items)
}

// Subscribe registers fn to run on the loop after every change.
func (q *ToastQueue) Subscribe(fn func()) {
	q.listeners = append(q.listeners, fn)
}

// Close stops every pending timer and drops all toasts. Later pushes are
// ignored.
func (q *ToastQueue) Close() {
	if q.closed {
		return
	}
	q.closed = true
	for _, item := range q.items {
		if item.timer != nil {
			item.timer.Stop()
		}
		item.toast.State = ToastRemoved
	}
	q.items = nil
	q.changed()
}

func (q *ToastQueue) changed() {
	for _, fn := range q.listeners {
		fn()
	}
}
