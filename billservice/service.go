// Package billservice implements BillService (C7): the orchestrator
// that wires ActionValidator, BlockProducer, the per-bill chain store,
// DerivedView, and ChainSync/EventBus into the public operations a
// caller (CLI, API, or a peer's inbound event) actually invokes
// (spec.md §4.5).
package billservice

import (
	"context"
	"fmt"

	"github.com/bitcredit/ebill/bill"
	"github.com/bitcredit/ebill/block"
	"github.com/bitcredit/ebill/chain"
	"github.com/bitcredit/ebill/crypto"
	"github.com/bitcredit/ebill/derivedview"
	"github.com/bitcredit/ebill/oracle"
	"github.com/bitcredit/ebill/producer"
	"github.com/bitcredit/ebill/store"
	"github.com/bitcredit/ebill/validation"
)

// derivedViewCacheSize bounds the in-process LRU; the persisted
// CacheStore backs it across restarts (spec.md §5, §6).
const derivedViewCacheSize = 4096

// Actor carries the identity executing an operation: personal keys
// always, plus company co-signing identity when acting on a company's
// behalf (mirrors producer.Signer one-for-one).
type Actor struct {
	PersonalKeys      *crypto.Keys
	SignatoryIdentity *bill.IdentifiedParticipant
	CompanyKeys       *crypto.Keys
}

// NodeID returns the node id BillService attributes this action to:
// the company's, when Actor signs on a company's behalf, else the
// person's own.
func (a Actor) NodeID() crypto.NodeID {
	if a.CompanyKeys != nil {
		return a.CompanyKeys.NodeID()
	}
	return a.PersonalKeys.NodeID()
}

func (a Actor) signer() producer.Signer {
	return producer.Signer{
		PersonalKeys:      a.PersonalKeys,
		SignatoryIdentity: a.SignatoryIdentity,
		CompanyKeys:       a.CompanyKeys,
	}
}

// Service is BillService (C7). Every store is a process-wide
// singleton; Service itself holds no bill state beyond the in-process
// derived-view cache and the per-bill lock table.
type Service struct {
	chains        store.ChainStore
	keys          store.KeysStore
	paid          store.PaidStore
	cacheStore    store.CacheStore
	identities    store.IdentityStore
	notifications store.NotificationStore
	oracle        oracle.PaymentOracle
	broadcaster   Broadcaster

	cache *derivedview.Cache
	locks *keyedMutex
}

// New wires a Service over its persistence seams and external
// collaborators.
func New(
	chains store.ChainStore,
	keys store.KeysStore,
	paid store.PaidStore,
	cacheStore store.CacheStore,
	identities store.IdentityStore,
	notifications store.NotificationStore,
	paymentOracle oracle.PaymentOracle,
	broadcaster Broadcaster,
) (*Service, error) {
	cache, err := derivedview.NewCache(derivedViewCacheSize)
	if err != nil {
		return nil, fmt.Errorf("billservice: %w", err)
	}
	return &Service{
		chains:        chains,
		keys:          keys,
		paid:          paid,
		cacheStore:    cacheStore,
		identities:    identities,
		notifications: notifications,
		oracle:        paymentOracle,
		broadcaster:   broadcaster,
		cache:         cache,
		locks:         newKeyedMutex(),
	}, nil
}

// Issue creates a bill's keys and genesis block, persists both, seeds
// its derived view, appends the drawer's identity (and company, if
// acting for one) chain entry, and broadcasts the introduction to
// every named participant (spec.md §4.5).
func (s *Service) Issue(ctx context.Context, data bill.Data, drawer Actor, ts int64) (*chain.Chain, *crypto.Keys, error) {
	billKeys, err := crypto.GenerateKeys()
	if err != nil {
		return nil, nil, fmt.Errorf("issue: generate bill keys: %w", err)
	}

	genesis, err := producer.ProduceIssue(data, billKeys, drawer.signer(), ts)
	if err != nil {
		return nil, nil, fmt.Errorf("issue: %w", err)
	}
	c, err := chain.New(genesis)
	if err != nil {
		return nil, nil, fmt.Errorf("issue: %w", err)
	}

	if err := s.keys.Save(ctx, data.ID, billKeys); err != nil {
		return nil, nil, fmt.Errorf("issue: save keys: %w", err)
	}
	if err := s.chains.Save(ctx, data.ID, c); err != nil {
		return nil, nil, fmt.Errorf("issue: save chain: %w", err)
	}

	if err := s.appendIdentityEntries(ctx, drawer, data.ID, genesis); err != nil {
		return nil, nil, fmt.Errorf("issue: %w", err)
	}

	if _, err := s.recompute(ctx, c, billKeys, data.ID, drawer.NodeID(), ts); err != nil {
		return nil, nil, fmt.Errorf("issue: %w", err)
	}

	if err := s.broadcastAppend(ctx, c, billKeys, genesis, map[crypto.NodeID]int{}, "Issue", data.Sum); err != nil {
		return nil, nil, fmt.Errorf("issue: broadcast: %w", err)
	}
	return c, billKeys, nil
}

// Execute loads a bill's chain, validates action against its current
// state, produces and appends the resulting block, appends the
// matching identity-chain entries, recomputes the derived view, and
// broadcasts the append — the full span held under one per-bill lock
// (spec.md §4.5, §5).
func (s *Service) Execute(ctx context.Context, billID string, action validation.Action, actor Actor, ts int64) (*derivedview.Result, error) {
	unlock := s.locks.lock(billID)
	defer unlock()
	result, err := s.execute(ctx, billID, action, actor, ts)
	recordExecuteOutcome(action.Kind, err)
	return result, err
}

// execute runs Execute's body under the caller's already-held per-bill
// lock.
func (s *Service) execute(ctx context.Context, billID string, action validation.Action, actor Actor, ts int64) (*derivedview.Result, error) {
	c, err := s.chains.Load(ctx, billID)
	if err != nil {
		return nil, err
	}
	billKeys, err := s.keys.Load(ctx, billID)
	if err != nil {
		return nil, err
	}
	_, isPaid, err := s.paid.IsPaid(ctx, billID)
	if err != nil {
		return nil, err
	}

	actingNodeID := actor.NodeID()
	if err := validation.Validate(c, billKeys, ts, actingNodeID, action, isPaid); err != nil {
		return nil, err
	}

	beforeNodes, err := c.GetAllNodesWithAddedBlockHeight(billKeys)
	if err != nil {
		return nil, err
	}

	tip := c.GetLatestBlock()
	next, err := producer.Produce(billID, tip.SigningHash(), tip.ID()+1, billKeys, actor.signer(), action, ts)
	if err != nil {
		return nil, err
	}
	if !c.TryAddBlock(next) || !c.IsValid() {
		return nil, fmt.Errorf("%w: produced block did not validly extend the chain", chain.ErrInvalid)
	}
	if err := s.chains.Save(ctx, billID, c); err != nil {
		return nil, err
	}

	if err := s.appendIdentityEntries(ctx, actor, billID, next); err != nil {
		return nil, err
	}

	s.cache.Invalidate(billID)
	result, err := s.recompute(ctx, c, billKeys, billID, actingNodeID, ts)
	if err != nil {
		return nil, err
	}

	if err := s.broadcastAppend(ctx, c, billKeys, next, beforeNodes, action.Kind.String(), action.Sum); err != nil {
		return nil, fmt.Errorf("execute: broadcast: %w", err)
	}
	return result, nil
}

// appendIdentityEntries records that actor's personal identity (and
// its company, when acting on one's behalf) signed b.
func (s *Service) appendIdentityEntries(ctx context.Context, actor Actor, billID string, b *block.Block) error {
	if err := s.appendIdentityEntry(ctx, actor.PersonalKeys.NodeID(), actor.PersonalKeys, billID, b); err != nil {
		return err
	}
	if actor.CompanyKeys != nil {
		if err := s.appendIdentityEntry(ctx, actor.CompanyKeys.NodeID(), actor.CompanyKeys, billID, b); err != nil {
			return err
		}
	}
	return nil
}

func (s *Service) appendIdentityEntry(ctx context.Context, owner crypto.NodeID, signerKeys *crypto.Keys, billID string, b *block.Block) error {
	ic, err := s.identities.Load(ctx, owner)
	if err != nil {
		return fmt.Errorf("append identity entry: %w", err)
	}
	entry, err := ic.Append(signerKeys, billID, b.ID(), b.SigningHash(), b.OpCode(), b.Timestamp())
	if err != nil {
		return fmt.Errorf("append identity entry: %w", err)
	}
	if err := s.identities.Append(ctx, owner, entry); err != nil {
		return fmt.Errorf("append identity entry: %w", err)
	}
	return nil
}

// recompute returns the bill's derived view as of now, through the
// in-process cache and its persisted backing store, recomputing only
// on a miss in both (spec.md §4.6).
func (s *Service) recompute(ctx context.Context, c *chain.Chain, billKeys *crypto.Keys, billID string, me crypto.NodeID, now int64) (*derivedview.Result, error) {
	latest := c.GetLatestBlock().ID()
	if cached, ok := s.cache.Get(billID, latest, now); ok {
		return cached, nil
	}
	if persisted, ok, err := s.cacheStore.Load(ctx, billID); err != nil {
		return nil, err
	} else if ok {
		s.cache.Put(billID, persisted)
		if cached, ok := s.cache.Get(billID, latest, now); ok {
			return cached, nil
		}
	}

	_, isPaid, err := s.paid.IsPaid(ctx, billID)
	if err != nil {
		return nil, err
	}
	result, err := derivedview.Recompute(c, billKeys, me, now, isPaid)
	if err != nil {
		return nil, err
	}
	s.cache.Put(billID, result)
	if err := s.cacheStore.Save(ctx, billID, result); err != nil {
		return nil, err
	}
	return result, nil
}

// broadcastAppend sends one Event per node currently party to the
// bill, attaching Keys only for a node newly added by appended
// (spec.md §4.7).
func (s *Service) broadcastAppend(ctx context.Context, c *chain.Chain, billKeys *crypto.Keys, appended *block.Block, beforeNodes map[crypto.NodeID]int, eventType string, sum uint64) error {
	afterNodes, err := c.GetAllNodesWithAddedBlockHeight(billKeys)
	if err != nil {
		return err
	}
	for node, addedHeight := range afterNodes {
		ev := Event{
			BillID:    c.BillID(),
			Recipient: node,
			EventType: eventType,
			Blocks:    []*block.Block{appended},
			Sum:       sum,
		}
		if _, existed := beforeNodes[node]; !existed && addedHeight == int(appended.ID()) {
			ev.Keys = billKeys
		}
		if err := s.broadcaster.Broadcast(ctx, ev); err != nil {
			return err
		}
	}
	return nil
}

// loadForParticipant loads billID's chain and keys and confirms me is
// one of its participants, per the NotFound-on-non-participant rule
// every read path enforces (spec.md §4.5).
func (s *Service) loadForParticipant(ctx context.Context, billID string, me crypto.NodeID) (*chain.Chain, *crypto.Keys, error) {
	c, err := s.chains.Load(ctx, billID)
	if err != nil {
		return nil, nil, err
	}
	billKeys, err := s.keys.Load(ctx, billID)
	if err != nil {
		return nil, nil, err
	}
	nodes, err := c.GetAllNodesFromBill(billKeys)
	if err != nil {
		return nil, nil, err
	}
	for _, n := range nodes {
		if n == me {
			return c, billKeys, nil
		}
	}
	return nil, nil, store.ErrNotFound
}
