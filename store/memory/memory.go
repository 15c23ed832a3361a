// Package memory provides in-memory implementations of the store
// interfaces, used by tests and by single-process demo deployments
// that don't need durability across restarts.
package memory

import (
	"context"
	"sync"

	"github.com/bitcredit/ebill/block"
	"github.com/bitcredit/ebill/chain"
	"github.com/bitcredit/ebill/crypto"
	"github.com/bitcredit/ebill/derivedview"
	"github.com/bitcredit/ebill/identity"
	"github.com/bitcredit/ebill/store"
)

// ChainStore is a mutex-guarded map of bill id to chain.
type ChainStore struct {
	mu     sync.RWMutex
	chains map[string]*chain.Chain
}

func NewChainStore() *ChainStore {
	return &ChainStore{chains: make(map[string]*chain.Chain)}
}

func (s *ChainStore) Load(_ context.Context, billID string) (*chain.Chain, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.chains[billID]
	if !ok {
		return nil, store.ErrNotFound
	}
	return chain.NewFromBlocks(append([]*block.Block(nil), c.Blocks()...))
}

func (s *ChainStore) Save(_ context.Context, billID string, c *chain.Chain) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.chains[billID] = c
	return nil
}

func (s *ChainStore) AllBillIDs(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]string, 0, len(s.chains))
	for id := range s.chains {
		ids = append(ids, id)
	}
	return ids, nil
}

// KeysStore is a mutex-guarded map of bill id to keypair.
type KeysStore struct {
	mu   sync.RWMutex
	keys map[string]*crypto.Keys
}

func NewKeysStore() *KeysStore {
	return &KeysStore{keys: make(map[string]*crypto.Keys)}
}

func (s *KeysStore) Save(_ context.Context, billID string, keys *crypto.Keys) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.keys[billID] = keys
	return nil
}

func (s *KeysStore) Load(_ context.Context, billID string) (*crypto.Keys, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	k, ok := s.keys[billID]
	if !ok {
		return nil, store.ErrNotFound
	}
	return k, nil
}

// PaidStore is a mutex-guarded map of bill id to payment address.
type PaidStore struct {
	mu      sync.RWMutex
	address map[string]string
}

func NewPaidStore() *PaidStore {
	return &PaidStore{address: make(map[string]string)}
}

func (s *PaidStore) MarkPaid(_ context.Context, billID, paymentAddress string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.address[billID] = paymentAddress
	return nil
}

func (s *PaidStore) IsPaid(_ context.Context, billID string) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	addr, ok := s.address[billID]
	return addr, ok, nil
}

// CacheStore is a mutex-guarded map of bill id to the last computed
// DerivedView.Result.
type CacheStore struct {
	mu      sync.RWMutex
	results map[string]*derivedview.Result
}

func NewCacheStore() *CacheStore {
	return &CacheStore{results: make(map[string]*derivedview.Result)}
}

func (s *CacheStore) Load(_ context.Context, billID string) (*derivedview.Result, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.results[billID]
	return r, ok, nil
}

func (s *CacheStore) Save(_ context.Context, billID string, result *derivedview.Result) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.results[billID] = result
	return nil
}

// IdentityStore is a mutex-guarded map of owner node id to the
// already-signed entries recorded for it. Entries arrive pre-signed
// (identity.Chain.Append signs them against the caller's keys before
// persistence is ever involved); the store only accumulates and
// replays them.
type IdentityStore struct {
	mu      sync.RWMutex
	entries map[crypto.NodeID][]*identity.Entry
}

func NewIdentityStore() *IdentityStore {
	return &IdentityStore{entries: make(map[crypto.NodeID][]*identity.Entry)}
}

func (s *IdentityStore) Append(_ context.Context, owner crypto.NodeID, entries ...*identity.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[owner] = append(s.entries[owner], entries...)
	return nil
}

func (s *IdentityStore) Load(_ context.Context, owner crypto.NodeID) (*identity.Chain, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return identity.NewFromEntries(owner, append([]*identity.Entry(nil), s.entries[owner]...)), nil
}

// NotificationStore is a mutex-guarded set of already-notified keys.
type NotificationStore struct {
	mu   sync.Mutex
	sent map[notificationKey]bool
}

type notificationKey struct {
	billID      string
	blockHeight uint64
	action      string
}

func NewNotificationStore() *NotificationStore {
	return &NotificationStore{sent: make(map[notificationKey]bool)}
}

func (s *NotificationStore) MarkSent(_ context.Context, billID string, blockHeight uint64, action string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := notificationKey{billID, blockHeight, action}
	already := s.sent[key]
	s.sent[key] = true
	return already, nil
}

// ContactStore is a mutex-guarded map of node id to contact.
type ContactStore struct {
	mu       sync.RWMutex
	contacts map[crypto.NodeID]store.Contact
}

func NewContactStore() *ContactStore {
	return &ContactStore{contacts: make(map[crypto.NodeID]store.Contact)}
}

func (s *ContactStore) Upsert(_ context.Context, c store.Contact) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.contacts[c.NodeID] = c
	return nil
}

func (s *ContactStore) Get(_ context.Context, nodeID crypto.NodeID) (*store.Contact, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.contacts[nodeID]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &c, nil
}

func (s *ContactStore) List(_ context.Context) ([]store.Contact, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]store.Contact, 0, len(s.contacts))
	for _, c := range s.contacts {
		out = append(out, c)
	}
	return out, nil
}

func (s *ContactStore) Delete(_ context.Context, nodeID crypto.NodeID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.contacts, nodeID)
	return nil
}
