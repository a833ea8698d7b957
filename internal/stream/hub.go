package stream

import (
	"coin_portal/internal/domain" // Domain models carried by changes
	"context"                     // Publisher signature
	"errors"                      // Subscription errors
	"sort"                        // Ordering held changes
	"strings"                     // Account id normalization
	"sync"                        // Per-stream locking
	"sync/atomic"                 // Subscription ids
	"time"                        // Gap timeout

	"github.com/puzpuzpuz/xsync/v4" // Concurrent stream registry
	"github.com/sirupsen/logrus"    // Structured logging
)

const (
	DefaultSubscriberBuffer = 64
	DefaultGapTimeout       = 500 * time.Millisecond
)

var ErrInvalidAccount = errors.New("invalid account id")

// Change is everything one committed ledger operation changed for one account.
// Revision is the account revision written by that operation.
type Change struct {
	AccountID              string                `json:"account_id"`
	Revision               int64                 `json:"revision"`
	Account                *domain.Account       `json:"account,omitempty"`
	Notifications          []domain.Notification `json:"notifications,omitempty"`
	DeletedNotificationIDs []string              `json:"deleted_notification_ids,omitempty"`
	Transactions           []domain.Transaction  `json:"transactions,omitempty"`
	Deleted                bool                  `json:"deleted,omitempty"`
}

// Publisher receives committed changes
type Publisher interface {
	Publish(ctx context.Context, change Change)
}

// Hub fans committed changes out to in-process subscribers, one ordered stream per account.
type Hub struct {
	streams          *xsync.Map[string, *stream]
	subscriberBuffer int
	gapTimeout       time.Duration
	nextID           atomic.Uint64
	log              *logrus.Entry
}

type stream struct {
	mu      sync.Mutex
	last    int64
	pending map[int64]Change
	timer   *time.Timer
	subs    map[uint64]*Subscription
}

// Subscription is one consumer of an account stream. Close must be called to release it.
type Subscription struct {
	hub       *Hub
	accountID string
	id        uint64
	after     int64
	ch        chan Change
	once      sync.Once
}

// NewHub creates an empty hub
func NewHub(log *logrus.Entry) *Hub {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Hub{
		streams:          xsync.NewMap[string, *stream](),
		subscriberBuffer: DefaultSubscriberBuffer,
		gapTimeout:       DefaultGapTimeout,
		log:              log.WithField("component", "stream"),
	}
}

// Subscribe registers a consumer for accountID that receives every change with a revision
// greater than after, in revision order.
func (h *Hub) Subscribe(accountID string, after int64) (*Subscription, error) {
	id := strings.TrimSpace(accountID)
	if id == "" {
		return nil, ErrInvalidAccount
	}
	sub := &Subscription{
		hub:       h,
		accountID: id,
		after:     after,
		ch:        make(chan Change, h.subscriberBuffer),
		id:        h.nextID.Add(1),
	}
	h.streams.Compute(id, func(st *stream, loaded bool) (*stream, xsync.ComputeOp) {
		if !loaded {
			st = &stream{
				last:    after,
				pending: make(map[int64]Change),
				subs:    make(map[uint64]*Subscription),
			}
		}
		st.mu.Lock()
		st.subs[sub.id] = sub
		st.mu.Unlock()
		return st, xsync.UpdateOp
	})
	return sub, nil
}

// Publish delivers change to the account's subscribers. Changes for accounts without
// subscribers are dropped.
func (h *Hub) Publish(_ context.Context, change Change) {
	st, ok := h.streams.Load(change.AccountID)
	if !ok {
		return
	}
	st.mu.Lock()
	switch {
	case change.Revision <= st.last:
		// Already delivered, typically the relayed copy of a local change
	case change.Revision == st.last+1:
		h.deliverLocked(change.AccountID, st, change)
		h.drainLocked(change.AccountID, st)
	default:
		st.pending[change.Revision] = change
		if st.timer == nil {
			accountID := change.AccountID
			st.timer = time.AfterFunc(h.gapTimeout, func() { h.flushGap(accountID, st) })
		}
	}
	empty := len(st.subs) == 0
	st.mu.Unlock()

	if empty {
		h.prune(change.AccountID)
	}
}

// Subscribers returns the number of live subscriptions for accountID
func (h *Hub) Subscribers(accountID string) int {
	st, ok := h.streams.Load(accountID)
	if !ok {
		return 0
	}
	st.mu.Lock()
	defer st.mu.Unlock()
	return len(st.subs)
}

// flushGap gives up on missing revisions and delivers everything held
func (h *Hub) flushGap(accountID string, st *stream) {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.timer = nil
	if len(st.pending) == 0 {
		return
	}
	revs := make([]int64, 0, len(st.pending))
	for rev := range st.pending {
		revs = append(revs, rev)
	}
	sort.Slice(revs, func(i, j int) bool { return revs[i] < revs[j] })
	h.log.WithFields(logrus.Fields{
		"account_id": accountID,
		"last":       st.last,
		"next":       revs[0],
	}).Warn("Revision gap timed out")
	for _, rev := range revs {
		change := st.pending[rev]
		delete(st.pending, rev)
		if rev > st.last {
			h.deliverLocked(accountID, st, change)
		}
	}
}

func (h *Hub) drainLocked(accountID string, st *stream) {
	for {
		next, ok := st.pending[st.last+1]
		if !ok {
			break
		}
		delete(st.pending, next.Revision)
		h.deliverLocked(accountID, st, next)
	}
	if len(st.pending) == 0 && st.timer != nil {
		st.timer.Stop()
		st.timer = nil
	}
}

func (h *Hub) deliverLocked(accountID string, st *stream, change Change) {
	st.last = change.Revision
	for id, sub := range st.subs {
		if change.Revision <= sub.after && !change.Deleted {
			continue
		}
		select {
		case sub.ch <- change:
		default:
			// A consumer that cannot keep up is cut off instead of silently missing a change
			h.log.WithFields(logrus.Fields{"account_id": accountID, "subscription": id}).Warn("Dropping slow subscriber")
			delete(st.subs, id)
			close(sub.ch)
		}
	}
	if change.Deleted {
		for id, sub := range st.subs {
			delete(st.subs, id)
			close(sub.ch)
		}
		if st.timer != nil {
			st.timer.Stop()
			st.timer = nil
		}
	}
}

// prune removes the account stream once nobody listens to it
func (h *Hub) prune(accountID string) {
	h.streams.Compute(accountID, func(st *stream, loaded bool) (*stream, xsync.ComputeOp) {
		if !loaded {
			return st, xsync.CancelOp
		}
		st.mu.Lock()
		defer st.mu.Unlock()
		if len(st.subs) > 0 {
			return st, xsync.CancelOp
		}
		if st.timer != nil {
			st.timer.Stop()
			st.timer = nil
		}
		return st, xsync.DeleteOp
	})
}

func (h *Hub) unsubscribe(accountID string, id uint64) {
	h.streams.Compute(accountID, func(st *stream, loaded bool) (*stream, xsync.ComputeOp) {
		if !loaded {
			return st, xsync.CancelOp
		}
		st.mu.Lock()
		defer st.mu.Unlock()
		if sub, ok := st.subs[id]; ok {
			delete(st.subs, id)
			close(sub.ch)
		}
		if len(st.subs) > 0 {
			return st, xsync.CancelOp
		}
		if st.timer != nil {
			st.timer.Stop()
			st.timer = nil
		}
		return st, xsync.DeleteOp
	})
}

// Changes returns the channel changes are delivered on. It is closed when the
// subscription ends for any reason.
func (s *Subscription) Changes() <-chan Change {
	if s == nil {
		return nil
	}
	return s.ch
}

// Close releases the subscription. Safe to call more than once.
func (s *Subscription) Close() {
	if s == nil || s.hub == nil {
		return
	}
	s.once.Do(func() {
		s.hub.unsubscribe(s.accountID, s.id)
	})
}
