package subscription

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"careAlert/internal/domain"
	"careAlert/internal/geo"
	"careAlert/internal/metrics"
	"careAlert/pkg/e"

	"github.com/google/uuid"
)

const (
	kindCaregiver = "caregiver"
	kindAlert     = "alert"
)

// Source is the read side of the alert repository.
type Source interface {
	Get(ctx context.Context, id uuid.UUID) (*domain.Alert, error)
	ListByStatus(ctx context.Context, statuses ...domain.AlertStatus) ([]*domain.Alert, error)
}

// CaregiverFilter is what a caregiver feed is matched against.
type CaregiverFilter struct {
	CaregiverID      string
	Location         *domain.Coord
	AssignedPatients []string
}

type Options struct {
	RadiusMiles float64
	// QueryTimeout bounds each refresh query.
	QueryTimeout time.Duration
	// ResyncInterval forces a full refresh even without changes. Zero disables.
	ResyncInterval time.Duration
}

// Hub fans committed alert changes out to live subscribers.
//
// Changes are coalesced: Publish only marks an alert dirty and the Run loop
// refreshes in batches, issuing one open-alerts query per batch no matter how
// many caregiver feeds are connected. Every subscriber owns a goroutine and a
// single-slot mailbox, so a slow callback only ever skips intermediate
// snapshots of its own feed.
type Hub struct {
	src     Source
	matcher geo.Matcher
	opts    Options
	metrics *metrics.Metrics
	logger  *slog.Logger

	mu         sync.Mutex
	nextID     uint64
	seq        uint64
	caregivers map[uint64]*caregiverSub
	alerts     map[uuid.UUID]map[uint64]*alertSub
	pending    map[uuid.UUID]struct{}
	dirty      bool

	signal chan struct{}
}

func NewHub(src Source, opts Options, m *metrics.Metrics, logger *slog.Logger) *Hub {
	if opts.QueryTimeout <= 0 {
		opts.QueryTimeout = 5 * time.Second
	}
	return &Hub{
		src:        src,
		matcher:    geo.NewMatcher(opts.RadiusMiles),
		opts:       opts,
		metrics:    m,
		logger:     logger,
		caregivers: make(map[uint64]*caregiverSub),
		alerts:     make(map[uuid.UUID]map[uint64]*alertSub),
		pending:    make(map[uuid.UUID]struct{}),
		signal:     make(chan struct{}, 1),
	}
}

// Publish marks an alert as changed. It never blocks on subscribers.
func (h *Hub) Publish(_ context.Context, alertID uuid.UUID) error {
	h.Notify(alertID)
	return nil
}

func (h *Hub) Notify(alertID uuid.UUID) {
	h.mu.Lock()
	h.pending[alertID] = struct{}{}
	h.dirty = true
	h.mu.Unlock()
	h.wake()
}

func (h *Hub) wake() {
	select {
	case h.signal <- struct{}{}:
	default:
	}
}

// Run drives refreshes until ctx is done, then drops every subscriber.
func (h *Hub) Run(ctx context.Context) {
	h.logger.Info("subscription hub STARTED")

	var resync <-chan time.Time
	if h.opts.ResyncInterval > 0 {
		t := time.NewTicker(h.opts.ResyncInterval)
		defer t.Stop()
		resync = t.C
	}

	for {
		select {
		case <-ctx.Done():
			h.closeAll()
			h.logger.Info("subscription hub STOPPED", slog.String("reason", ctx.Err().Error()))
			return
		case <-resync:
			h.mu.Lock()
			for id := range h.alerts {
				h.pending[id] = struct{}{}
			}
			h.dirty = true
			h.mu.Unlock()
			h.refresh(ctx)
		case <-h.signal:
			h.refresh(ctx)
		}
	}
}

func (h *Hub) refresh(ctx context.Context) {
	h.mu.Lock()
	if !h.dirty {
		h.mu.Unlock()
		return
	}
	ids := h.pending
	h.pending = make(map[uuid.UUID]struct{})
	h.dirty = false
	h.seq++
	seq := h.seq
	wantFeeds := len(h.caregivers) > 0
	h.mu.Unlock()

	qctx, cancel := context.WithTimeout(ctx, h.opts.QueryTimeout)
	defer cancel()

	if wantFeeds {
		open, err := h.queryOpen(qctx)
		if err != nil {
			h.logger.Error("refresh caregiver feeds failed", slog.Any("error", err))
		} else {
			for _, sub := range h.caregiverSubs() {
				sub.box.put(h.filter(open, sub.filter), seq)
			}
		}
	}

	for id := range ids {
		subs := h.alertSubs(id)
		if len(subs) == 0 {
			continue
		}
		alert, err := h.src.Get(qctx, id)
		if err != nil && !errors.Is(err, e.ErrNotFound) {
			h.logger.Error("refresh alert feed failed", slog.String("alert_id", id.String()), slog.Any("error", err))
			continue
		}
		for _, sub := range subs {
			sub.box.put(alert.Clone(), seq)
		}
	}
}

// SubscribeCaregiver delivers the caregiver's current open alerts right away
// and again after every change that alters them. The returned func stops the
// feed and is safe to call more than once.
func (h *Hub) SubscribeCaregiver(ctx context.Context, f CaregiverFilter, onUpdate func([]domain.Alert)) (func(), error) {
	sub := &caregiverSub{
		filter: f,
		box:    newMailbox[[]domain.Alert](),
		handle: newHandle(),
	}

	h.mu.Lock()
	h.nextID++
	id := h.nextID
	h.caregivers[id] = sub
	seq := h.seq
	h.mu.Unlock()
	h.metrics.SubscriptionsChanged(kindCaregiver, 1)

	unsubscribe := h.unsubscriber(kindCaregiver, sub.handle, func() bool {
		if _, ok := h.caregivers[id]; !ok {
			return false
		}
		delete(h.caregivers, id)
		return true
	})

	open, err := h.queryOpen(ctx)
	if err != nil {
		unsubscribe()
		return nil, fmt.Errorf("initial caregiver snapshot: %w", err)
	}
	sub.box.put(h.filter(open, f), seq)

	l := h.logger.With(slog.String("kind", kindCaregiver), slog.String("caregiver_id", f.CaregiverID))
	go deliver(sub.box, sub.done, caregiverFingerprint, onUpdate, h.metrics, kindCaregiver, l)
	return unsubscribe, nil
}

// SubscribeAlert delivers the alert's current state right away and after each
// change to it. A missing alert is delivered as nil.
func (h *Hub) SubscribeAlert(ctx context.Context, alertID uuid.UUID, onUpdate func(*domain.Alert)) (func(), error) {
	sub := &alertSub{
		box:    newMailbox[*domain.Alert](),
		handle: newHandle(),
	}

	h.mu.Lock()
	h.nextID++
	id := h.nextID
	if h.alerts[alertID] == nil {
		h.alerts[alertID] = make(map[uint64]*alertSub)
	}
	h.alerts[alertID][id] = sub
	seq := h.seq
	h.mu.Unlock()
	h.metrics.SubscriptionsChanged(kindAlert, 1)

	unsubscribe := h.unsubscriber(kindAlert, sub.handle, func() bool {
		if _, ok := h.alerts[alertID][id]; !ok {
			return false
		}
		delete(h.alerts[alertID], id)
		if len(h.alerts[alertID]) == 0 {
			delete(h.alerts, alertID)
		}
		return true
	})

	alert, err := h.src.Get(ctx, alertID)
	if err != nil && !errors.Is(err, e.ErrNotFound) {
		unsubscribe()
		return nil, fmt.Errorf("initial alert snapshot: %w", err)
	}
	sub.box.put(alert, seq)

	l := h.logger.With(slog.String("kind", kindAlert), slog.String("alert_id", alertID.String()))
	go deliver(sub.box, sub.done, alertFingerprint, onUpdate, h.metrics, kindAlert, l)
	return unsubscribe, nil
}

// unsubscriber builds the idempotent cancel func handed to callers.
func (h *Hub) unsubscriber(kind string, hd *handle, remove func() bool) func() {
	return func() {
		h.mu.Lock()
		removed := remove()
		h.mu.Unlock()
		if removed {
			h.metrics.SubscriptionsChanged(kind, -1)
		}
		hd.stop()
	}
}

// Counts reports live caregiver and alert subscriptions.
func (h *Hub) Counts() (caregivers, alerts int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, subs := range h.alerts {
		alerts += len(subs)
	}
	return len(h.caregivers), alerts
}

func (h *Hub) queryOpen(ctx context.Context) ([]*domain.Alert, error) {
	return h.src.ListByStatus(ctx, domain.AlertActive, domain.AlertResponded)
}

func (h *Hub) filter(open []*domain.Alert, f CaregiverFilter) []domain.Alert {
	out := make([]domain.Alert, 0, len(open))
	for _, a := range open {
		if h.matcher.Eligible(a.PatientID, a.Location, f.AssignedPatients, f.Location) {
			out = append(out, *a.Clone())
		}
	}
	return out
}

func (h *Hub) caregiverSubs() []*caregiverSub {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]*caregiverSub, 0, len(h.caregivers))
	for _, s := range h.caregivers {
		out = append(out, s)
	}
	return out
}

func (h *Hub) alertSubs(id uuid.UUID) []*alertSub {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]*alertSub, 0, len(h.alerts[id]))
	for _, s := range h.alerts[id] {
		out = append(out, s)
	}
	return out
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	var handles []*handle
	for id, s := range h.caregivers {
		handles = append(handles, s.handle)
		delete(h.caregivers, id)
		h.metrics.SubscriptionsChanged(kindCaregiver, -1)
	}
	for aid, subs := range h.alerts {
		for _, s := range subs {
			handles = append(handles, s.handle)
			h.metrics.SubscriptionsChanged(kindAlert, -1)
		}
		delete(h.alerts, aid)
	}
	h.mu.Unlock()

	for _, hd := range handles {
		hd.stop()
	}
}

type caregiverSub struct {
	*handle
	filter CaregiverFilter
	box    *mailbox[[]domain.Alert]
}

type alertSub struct {
	*handle
	box *mailbox[*domain.Alert]
}
