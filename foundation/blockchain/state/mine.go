package state

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ardanlabs/powchain/foundation/blockchain/database"
)

// MineNewBlock takes the pending transactions from the mempool, adds the
// mining reward for this node's wallet and mines a new block on top of the
// chain. The block is shared with the known peers. Mining is cancelled if a
// peer's chain is accepted while it's running.
func (s *State) MineNewBlock(ctx context.Context) (database.Block, error) {
	s.miningMu.Lock()
	defer s.miningMu.Unlock()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	s.cancelMu.Lock()
	s.cancelMining = cancel
	s.cancelMu.Unlock()

	defer func() {
		s.cancelMu.Lock()
		s.cancelMining = nil
		s.cancelMu.Unlock()
	}()

	// Pool writes wait until the mined transactions are cleared.
	s.poolMu.Lock()
	defer s.poolMu.Unlock()

	s.evHandler("state: MineNewBlock: MINING: pick transactions")

	txs := s.pickTransactions()
	txs = append(txs, database.NewRewardTx(s.wallet.Address(), s.genesis.MiningReward))

	s.evHandler("state: MineNewBlock: MINING: perform POW: txs[%d]", len(txs))

	block, err := s.db.AddBlock(ctx, txs)
	if err != nil {
		return database.Block{}, err
	}

	s.evHandler("state: MineNewBlock: MINING: remove mined transactions from mempool")

	s.mempool.ClearChainTransactions([]database.Block{block})

	s.Worker.SignalShareBlock(block)
	s.blockEvent(block)

	return block, nil
}

// ProcessProposedBlock takes a block received from a peer, appends it to a
// copy of the local chain and replaces the local chain with it if the
// result is valid.
func (s *State) ProcessProposedBlock(block database.Block) error {
	s.evHandler("state: ProcessProposedBlock: started: prevBlk[%s]: newBlk[%s]: txs[%d]", block.LastHash, block.Hash, len(block.Data))
	defer s.evHandler("state: ProcessProposedBlock: completed: newBlk[%s]", block.Hash)

	candidate := append(s.db.Blocks(), block)

	return s.replaceChain(candidate)
}

// SyncChain replaces the local chain with the full chain of a peer if the
// peer's chain is longer and valid.
func (s *State) SyncChain(blocks []database.Block) error {
	s.evHandler("state: SyncChain: started: blocks[%d]", len(blocks))
	defer s.evHandler("state: SyncChain: completed")

	return s.replaceChain(blocks)
}

// =============================================================================

// replaceChain replaces the local chain and updates the rest of the node
// state to match the new chain.
func (s *State) replaceChain(candidate []database.Block) error {

	// Reject the candidate before disturbing any mining in flight.
	if length := s.db.Length(); len(candidate) <= length {
		return fmt.Errorf("%w: local %d, incoming %d", database.ErrChainTooShort, length, len(candidate))
	}
	if err := database.ValidateChain(candidate, s.genesis); err != nil {
		return fmt.Errorf("%w: %w", database.ErrInvalidChain, err)
	}

	// Any block in flight is mined on a stale tail. Mining holds the pool
	// lock so it has to be stopped before the pool can be updated.
	s.stopMining()

	s.miningMu.Lock()
	defer s.miningMu.Unlock()

	s.poolMu.Lock()
	defer s.poolMu.Unlock()

	if err := s.db.ReplaceChain(candidate); err != nil {
		return err
	}

	removed := s.mempool.ClearChainTransactions(candidate)
	s.evHandler("state: replaceChain: removed mined transactions from mempool: txs[%d]", removed)

	s.blockEvent(candidate[len(candidate)-1])

	return nil
}

// pickTransactions returns the pending transactions that can still be mined
// on the current chain. Transactions that no longer match the sender's
// balance or fail validation are dropped from the mempool. Only the first
// transaction of a sender is picked, the others would spend the same balance.
func (s *State) pickTransactions() []database.Tx {
	blocks := s.db.Blocks()

	mined := make(map[string]struct{})
	for _, block := range blocks {
		for _, tx := range block.Data {
			mined[tx.ID] = struct{}{}
		}
	}

	senders := make(map[string]struct{})

	var txs []database.Tx
	for _, tx := range s.mempool.PickAll() {
		if _, exists := mined[tx.ID]; exists {
			s.evHandler("state: pickTransactions: WARNING: tx[%s] already mined", tx)
			s.mempool.Delete(tx)
			continue
		}

		if tx.Input.IsReward() {
			s.evHandler("state: pickTransactions: WARNING: reward tx[%s] dropped", tx)
			s.mempool.Delete(tx)
			continue
		}

		if balance := database.CalculateBalance(blocks, tx.Input.Address, s.genesis.StartingBalance); balance != tx.Input.Amount {
			s.evHandler("state: pickTransactions: WARNING: tx[%s] dropped: balance %d", tx, balance)
			s.mempool.Delete(tx)
			continue
		}

		if err := tx.Validate(s.genesis.MiningReward); err != nil {
			s.evHandler("state: pickTransactions: WARNING: tx[%s] dropped: %s", tx, err)
			s.mempool.Delete(tx)
			continue
		}

		if _, exists := senders[tx.Input.Address]; exists {
			s.evHandler("state: pickTransactions: WARNING: tx[%s] skipped: sender already in block", tx)
			continue
		}
		senders[tx.Input.Address] = struct{}{}

		txs = append(txs, tx)
	}

	return txs
}

// stopMining cancels the mining operation in flight, if any.
func (s *State) stopMining() {
	s.cancelMu.Lock()
	defer s.cancelMu.Unlock()

	if s.cancelMining != nil {
		s.evHandler("state: stopMining: MINING: CANCEL: signaled")
		s.cancelMining()
	}
}

// blockEvent provides a specific event about a new block in the chain for
// application specific support.
func (s *State) blockEvent(block database.Block) {
	blockJSON, err := json.Marshal(block)
	if err != nil {
		blockJSON = fmt.Appendf(nil, "%q", err.Error())
	}

	s.evHandler(`viewer: block: %s`, string(blockJSON))
}
