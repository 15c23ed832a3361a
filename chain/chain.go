// Package chain implements the per-bill append-only blockchain: linear,
// hash-linked, and validated against the invariants in spec.md §4.
package chain

import (
	"errors"
	"fmt"

	"github.com/bitcredit/ebill/bill"
	"github.com/bitcredit/ebill/block"
	"github.com/bitcredit/ebill/crypto"
)

var (
	// ErrInvalid is returned when a chain fails structural validation:
	// wrong genesis op code, broken hash linkage, or a non-monotonic id.
	ErrInvalid = errors.New("chain: invalid bill chain")
	// ErrEmpty is returned building a chain from zero blocks.
	ErrEmpty = errors.New("chain: no blocks")
)

// Chain is a bill's append-only block history. The zero value is not
// usable; construct with New or NewFromBlocks.
type Chain struct {
	blocks []*block.Block
}

// New starts a chain from a signed genesis block. genesis must carry
// op code Issue and id 1.
func New(genesis *block.Block) (*Chain, error) {
	if genesis.OpCode() != bill.Issue {
		return nil, fmt.Errorf("%w: genesis block must be Issue, got %s", ErrInvalid, genesis.OpCode())
	}
	if genesis.ID() != 1 {
		return nil, fmt.Errorf("%w: genesis block must have id 1, got %d", ErrInvalid, genesis.ID())
	}
	if err := genesis.Verify(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	return &Chain{blocks: []*block.Block{genesis}}, nil
}

// NewFromBlocks reconstructs a chain from a full ordered block list,
// validating every invariant before accepting it (spec.md §4,
// invariants 1-4).
func NewFromBlocks(blocks []*block.Block) (*Chain, error) {
	if len(blocks) == 0 {
		return nil, ErrEmpty
	}
	c := &Chain{blocks: blocks}
	if !c.IsValid() {
		return nil, ErrInvalid
	}
	return c, nil
}

// Blocks returns the chain's blocks in order, genesis first.
func (c *Chain) Blocks() []*block.Block { return c.blocks }

// BillID returns the bill id shared by every block in the chain.
func (c *Chain) BillID() string { return c.blocks[0].BillID() }

// GetFirstBlock returns the genesis (Issue) block.
func (c *Chain) GetFirstBlock() *block.Block { return c.blocks[0] }

// GetLatestBlock returns the chain's tip.
func (c *Chain) GetLatestBlock() *block.Block { return c.blocks[len(c.blocks)-1] }

// IsValid checks genesis shape, and that every subsequent block has a
// strictly incrementing id, a correct previous-hash link, a matching
// bill id, and a valid signature.
func (c *Chain) IsValid() bool {
	if len(c.blocks) == 0 {
		return false
	}
	first := c.blocks[0]
	if first.OpCode() != bill.Issue || first.ID() != 1 {
		return false
	}
	if first.Verify() != nil {
		return false
	}

	billID := first.BillID()
	prevHash := first.SigningHash()
	for i := 1; i < len(c.blocks); i++ {
		b := c.blocks[i]
		if b.BillID() != billID {
			return false
		}
		if b.ID() != c.blocks[i-1].ID()+1 {
			return false
		}
		if b.PrevHash() != prevHash {
			return false
		}
		if b.Verify() != nil {
			return false
		}
		prevHash = b.SigningHash()
	}
	return true
}

// TryAddBlock appends next if it validly extends the chain's tip,
// reporting whether it was accepted.
func (c *Chain) TryAddBlock(next *block.Block) bool {
	tip := c.GetLatestBlock()
	if next.BillID() != c.BillID() {
		return false
	}
	if next.ID() != tip.ID()+1 {
		return false
	}
	if next.PrevHash() != tip.SigningHash() {
		return false
	}
	if next.Verify() != nil {
		return false
	}
	c.blocks = append(c.blocks, next)
	return true
}

// GetLastVersionBlockWithOpCode returns the most recent block with the
// given op code, or nil if none exists.
func (c *Chain) GetLastVersionBlockWithOpCode(op bill.OpCode) *block.Block {
	for i := len(c.blocks) - 1; i >= 0; i-- {
		if c.blocks[i].OpCode() == op {
			return c.blocks[i]
		}
	}
	return nil
}

// HasBeenEndorsedSoldOrMinted reports whether the chain contains any
// Endorse, Mint, or Sell block.
func (c *Chain) HasBeenEndorsedSoldOrMinted() bool {
	for _, b := range c.blocks {
		switch b.OpCode() {
		case bill.Endorse, bill.Mint, bill.Sell:
			return true
		}
	}
	return false
}

// GetFirstVersionBill decrypts and returns the genesis issue payload.
func (c *Chain) GetFirstVersionBill(billKeys *crypto.Keys) (*bill.IssuePayload, error) {
	var payload bill.IssuePayload
	if err := c.blocks[0].Decrypt(billKeys, &payload); err != nil {
		return nil, err
	}
	return &payload, nil
}

// GetBlocksToAddFromOtherChain returns the blocks present in other but
// absent from c, in other's order — the suffix a peer's longer chain
// needs to merge in (spec.md §8, chain sync).
func (c *Chain) GetBlocksToAddFromOtherChain(other *Chain) []*block.Block {
	known := make(map[uint64]bool, len(c.blocks))
	for _, b := range c.blocks {
		known[b.ID()] = true
	}
	var missing []*block.Block
	for _, b := range other.blocks {
		if !known[b.ID()] {
			missing = append(missing, b)
		}
	}
	return missing
}
