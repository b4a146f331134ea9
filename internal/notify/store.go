// Package notify holds the in-memory fraud notification registry. State is
// session-scoped by design: nothing here is persisted, and notifications are
// never deleted.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/kestrel-monitoring/kestrel/internal/domain"
)

// AddInput carries the fields a caller supplies for a new notification.
type AddInput struct {
	TransactionID string
	Timestamp     time.Time
	Title         string
	Description   string
	Severity      domain.Severity
	Transaction   domain.Transaction
}

// Store is the process-wide registry of fraud notifications. State
// transitions happen atomically under one lock; the resulting side effects
// (toast, desktop notification, bus event) are computed during the
// transition and executed after it commits, so transition logic stays
// effect-free and the unread counter can never be observed out of sync.
type Store struct {
	mu            sync.Mutex
	notifications []*domain.FraudNotification
	unread        int

	alerter domain.Alerter
	bus     domain.EventBus
}

// New creates a notification store. Both collaborators are optional: a nil
// alerter drops toasts, a nil bus drops events.
func New(alerter domain.Alerter, bus domain.EventBus) *Store {
	return &Store{
		alerter: alerter,
		bus:     bus,
	}
}

// Add registers a new notification at the head of the list (newest first),
// bumps the unread counter and raises the alert effects.
func (s *Store) Add(input AddInput) *domain.FraudNotification {
	ts := input.Timestamp
	if ts.IsZero() {
		ts = time.Now().UTC()
	}

	n := &domain.FraudNotification{
		// Time-based id with a random suffix so ids stay unique even at
		// high call rates within one session.
		ID:            fmt.Sprintf("notif-%d-%s", time.Now().UnixMilli(), uuid.NewString()[:8]),
		TransactionID: input.TransactionID,
		Timestamp:     ts,
		Title:         input.Title,
		Description:   input.Description,
		Severity:      input.Severity,
		Transaction:   input.Transaction,
	}

	s.mu.Lock()
	s.notifications = append([]*domain.FraudNotification{n}, s.notifications...)
	s.unread++
	s.mu.Unlock()

	s.alert(domain.Alert{
		Title:       input.Title,
		Description: input.Description,
		Variant:     domain.AlertVariantDestructive,
	})
	s.publish(domain.TopicFraudAlert, n)

	return n
}

// MarkAsRead marks a notification as read. Idempotent: the unread counter
// drops only on the first unread-to-read transition. Unknown ids are a no-op.
func (s *Store) MarkAsRead(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := s.find(id)
	if n == nil || n.Read {
		return
	}

	n.Read = true
	s.unread--
}

// MarkAsReviewed records a final human decision on a notification. A
// reviewed notification is always read; the unread counter drops only if the
// notification was still unread. Unknown ids are a no-op. The confirmation
// toast tone depends on whether the notes confirm or dismiss the fraud.
func (s *Store) MarkAsReviewed(id, reviewedBy, notes string) {
	s.mu.Lock()

	n := s.find(id)
	if n == nil {
		s.mu.Unlock()
		return
	}

	if !n.Read {
		s.unread--
	}
	n.Read = true
	n.Reviewed = true
	n.ReviewedBy = reviewedBy
	n.ReviewNotes = notes

	reviewed := *n
	s.mu.Unlock()

	confirmed := strings.Contains(notes, "Confirmed")
	verdict := "dismissed"
	variant := domain.AlertVariantDefault
	if confirmed {
		verdict = "confirmed"
		variant = domain.AlertVariantDestructive
	}

	s.alert(domain.Alert{
		Title:       "Fraud alert reviewed",
		Description: fmt.Sprintf("The alert has been %s as fraud.", verdict),
		Variant:     variant,
	})
	s.publish(domain.TopicAlertReviewed, &reviewed)
}

// Notifications returns a snapshot of all notifications, newest first.
func (s *Store) Notifications() []domain.FraudNotification {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]domain.FraudNotification, len(s.notifications))
	for i, n := range s.notifications {
		out[i] = *n
	}
	return out
}

// Unreviewed returns notifications still awaiting a review decision,
// preserving store order.
func (s *Store) Unreviewed() []domain.FraudNotification {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []domain.FraudNotification
	for _, n := range s.notifications {
		if !n.Reviewed {
			out = append(out, *n)
		}
	}
	return out
}

// Get returns a snapshot of one notification, or nil if unknown.
func (s *Store) Get(id string) *domain.FraudNotification {
	s.mu.Lock()
	defer s.mu.Unlock()

	if n := s.find(id); n != nil {
		snapshot := *n
		return &snapshot
	}
	return nil
}

// UnreadCount returns the number of unread notifications.
func (s *Store) UnreadCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.unread
}

// find locates a notification by id. Caller must hold the lock.
func (s *Store) find(id string) *domain.FraudNotification {
	for _, n := range s.notifications {
		if n.ID == id {
			return n
		}
	}
	return nil
}

func (s *Store) alert(alert domain.Alert) {
	if s.alerter == nil {
		return
	}
	s.alerter.Notify(alert)
}

func (s *Store) publish(topic string, n *domain.FraudNotification) {
	if s.bus == nil {
		return
	}

	payload, err := json.Marshal(n)
	if err != nil {
		return
	}
	if err := s.bus.Publish(context.Background(), topic, payload); err != nil {
		slog.Warn("failed to publish notification event", "topic", topic, "error", err)
	}
}
