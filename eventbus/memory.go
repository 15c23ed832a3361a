package eventbus

import (
	"context"
	"sync"

	"github.com/bitcredit/ebill/co"
)

// MemoryProcessedStore is a mutex-guarded set of already-processed
// event ids, used by tests and single-process demo deployments.
type MemoryProcessedStore struct {
	mu   sync.Mutex
	seen map[string]bool
}

func NewMemoryProcessedStore() *MemoryProcessedStore {
	return &MemoryProcessedStore{seen: make(map[string]bool)}
}

func (s *MemoryProcessedStore) MarkProcessed(_ context.Context, eventID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	already := s.seen[eventID]
	s.seen[eventID] = true
	return already, nil
}

// Notification is one entry in a MemoryNotificationInbox.
type Notification struct {
	BillID    string
	EventType BillEventType
	Done      bool
}

// MemoryNotificationInbox is a mutex-guarded per-bill notification
// list, marking the previous active entry for a bill done whenever a
// new one is created (spec.md §4.7 step 5). Every Create also
// broadcasts on that bill's co.Signal, so a long-polling HTTP caller
// blocked in Wait wakes the instant a new notification lands instead
// of re-polling on a timer.
type MemoryNotificationInbox struct {
	mu      sync.Mutex
	items   []*Notification
	signals map[string]*co.Signal
}

func NewMemoryNotificationInbox() *MemoryNotificationInbox {
	return &MemoryNotificationInbox{signals: make(map[string]*co.Signal)}
}

func (n *MemoryNotificationInbox) Create(_ context.Context, billID string, eventType BillEventType) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	for _, item := range n.items {
		if item.BillID == billID && !item.Done {
			item.Done = true
		}
	}
	n.items = append(n.items, &Notification{BillID: billID, EventType: eventType})
	n.signal(billID).Broadcast(string(eventType))
	return nil
}

func (n *MemoryNotificationInbox) Active() []*Notification {
	n.mu.Lock()
	defer n.mu.Unlock()
	var active []*Notification
	for _, item := range n.items {
		if !item.Done {
			active = append(active, item)
		}
	}
	return active
}

// Wait returns a Waiter woken by the next Create call for billID.
func (n *MemoryNotificationInbox) Wait(billID string) co.Waiter {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.signal(billID).NewWaiter()
}

// signal must be called with n.mu held.
func (n *MemoryNotificationInbox) signal(billID string) *co.Signal {
	s, ok := n.signals[billID]
	if !ok {
		s = &co.Signal{}
		n.signals[billID] = s
	}
	return s
}
