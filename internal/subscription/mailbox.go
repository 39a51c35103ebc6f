package subscription

import (
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"careAlert/internal/domain"
	"careAlert/internal/metrics"
)

// mailbox holds only the latest value. Values tagged with an older refresh
// sequence than the one already held are dropped, so a slow initial query
// can never overwrite a fresher refresh.
type mailbox[T any] struct {
	mu    sync.Mutex
	val   T
	seq   uint64
	has   bool
	ready chan struct{}
}

func newMailbox[T any]() *mailbox[T] {
	return &mailbox[T]{ready: make(chan struct{}, 1)}
}

func (m *mailbox[T]) put(v T, seq uint64) {
	m.mu.Lock()
	if seq < m.seq {
		m.mu.Unlock()
		return
	}
	m.val, m.seq, m.has = v, seq, true
	m.mu.Unlock()

	select {
	case m.ready <- struct{}{}:
	default:
	}
}

func (m *mailbox[T]) take() (T, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.val, m.has
	var zero T
	m.val, m.has = zero, false
	return v, ok
}

type handle struct {
	done chan struct{}
	once sync.Once
}

func newHandle() *handle {
	return &handle{done: make(chan struct{})}
}

func (h *handle) stop() {
	h.once.Do(func() { close(h.done) })
}

// deliver runs one subscriber's callbacks until done is closed.
// Identical consecutive snapshots are skipped.
func deliver[T any](
	box *mailbox[T],
	done <-chan struct{},
	fingerprint func(T) string,
	onUpdate func(T),
	m *metrics.Metrics,
	kind string,
	logger *slog.Logger,
) {
	last := ""
	first := true
	for {
		select {
		case <-done:
			return
		case <-box.ready:
		}

		v, ok := box.take()
		if !ok {
			continue
		}
		fp := fingerprint(v)
		if !first && fp == last {
			continue
		}

		// unsubscribed while waiting: drop the snapshot
		select {
		case <-done:
			return
		default:
		}

		if call(onUpdate, v, logger) {
			first = false
			last = fp
			m.SubscriptionDelivered(kind, true)
		} else {
			m.SubscriptionDelivered(kind, false)
		}
	}
}

func call[T any](onUpdate func(T), v T, logger *slog.Logger) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("subscriber callback panicked", slog.Any("panic", r))
			ok = false
		}
	}()
	onUpdate(v)
	return true
}

func caregiverFingerprint(alerts []domain.Alert) string {
	var b strings.Builder
	for i := range alerts {
		writeAlert(&b, &alerts[i])
		b.WriteByte(';')
	}
	return b.String()
}

func alertFingerprint(a *domain.Alert) string {
	if a == nil {
		return "<nil>"
	}
	var b strings.Builder
	writeAlert(&b, a)
	return b.String()
}

func writeAlert(b *strings.Builder, a *domain.Alert) {
	fmt.Fprintf(b, "%s|%s", a.ID, a.Status)
	for _, r := range a.Responders {
		fmt.Fprintf(b, "|%s:%s:%d:%.3f", r.CaregiverID, r.Status, r.EtaMinutes, r.DistanceMiles)
	}
}
