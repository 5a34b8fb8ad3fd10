// Package database handles the lower level support for maintaining the
// blockchain in memory, validating candidate chains and deriving balances
// by replaying the chain history.
package database

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/ardanlabs/powchain/foundation/blockchain/genesis"
)

// Set of errors returned when the chain can't be changed.
var (
	ErrChainTooShort = errors.New("incoming chain must be longer than the local chain")
	ErrInvalidChain  = errors.New("incoming chain is invalid")
	ErrChainChanged  = errors.New("chain changed while mining, block discarded")
)

// Database manages the chain of blocks for this node. Readers work off an
// immutable snapshot of the chain and never block. Writers are serialized
// and swap in a new snapshot when they are done.
type Database struct {
	mu sync.Mutex

	genesis   genesis.Genesis
	chain     atomic.Pointer[[]Block]
	evHandler func(v string, args ...any)
}

// New constructs a new database holding a chain with only the genesis block.
func New(gen genesis.Genesis, evHandler func(v string, args ...any)) *Database {
	ev := func(v string, args ...any) {
		if evHandler != nil {
			evHandler(v, args...)
		}
	}

	db := Database{
		genesis:   gen,
		evHandler: ev,
	}

	chain := []Block{Genesis()}
	db.chain.Store(&chain)

	return &db
}

// Genesis returns the consensus parameters for this database.
func (db *Database) Genesis() genesis.Genesis {
	return db.genesis
}

// Blocks returns a copy of the current chain.
func (db *Database) Blocks() []Block {
	return slices.Clone(*db.chain.Load())
}

// LatestBlock returns the last block in the chain.
func (db *Database) LatestBlock() Block {
	chain := *db.chain.Load()
	return chain[len(chain)-1]
}

// Length returns the number of blocks in the chain including genesis.
func (db *Database) Length() int {
	return len(*db.chain.Load())
}

// Balance returns the balance for the address based on the current chain.
func (db *Database) Balance(address string) uint64 {
	return CalculateBalance(*db.chain.Load(), address, db.genesis.StartingBalance)
}

// AddBlock mines a new block with the specified data on top of the latest
// block and appends it to the chain. Mining happens without holding the
// write lock, so if the chain is replaced in the meantime the block is
// discarded and ErrChainChanged is returned.
func (db *Database) AddBlock(ctx context.Context, data []Tx) (Block, error) {
	lastBlock := db.LatestBlock()

	db.evHandler("database: AddBlock: MINING: started: prevBlk[%s]: txs[%d]", lastBlock.Hash, len(data))

	block, err := MineBlock(ctx, lastBlock, data, db.genesis.MineRate)
	if err != nil {
		db.evHandler("database: AddBlock: MINING: CANCELLED: %s", err)
		return Block{}, err
	}

	db.evHandler("database: AddBlock: MINING: SOLVED: prevBlk[%s]: newBlk[%s]: nonce[%d]: difficulty[%d]", block.LastHash, block.Hash, block.Nonce, block.Difficulty)

	db.mu.Lock()
	defer db.mu.Unlock()

	chain := *db.chain.Load()
	if chain[len(chain)-1].Hash != lastBlock.Hash {
		return Block{}, ErrChainChanged
	}

	newChain := append(slices.Clip(chain), block)
	db.chain.Store(&newChain)

	return block, nil
}

// ReplaceChain replaces the local chain with the candidate chain when the
// candidate is longer and valid.
func (db *Database) ReplaceChain(candidate []Block) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	current := *db.chain.Load()

	db.evHandler("database: ReplaceChain: started: local[%d]: incoming[%d]", len(current), len(candidate))

	if len(candidate) <= len(current) {
		return fmt.Errorf("%w: local %d, incoming %d", ErrChainTooShort, len(current), len(candidate))
	}

	if err := ValidateChain(candidate, db.genesis); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidChain, err)
	}

	newChain := slices.Clone(candidate)
	db.chain.Store(&newChain)

	db.evHandler("database: ReplaceChain: completed: latestBlk[%s]: length[%d]", newChain[len(newChain)-1].Hash, len(newChain))

	return nil
}
