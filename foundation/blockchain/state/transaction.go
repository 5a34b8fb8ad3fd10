package state

import (
	"errors"
	"fmt"

	"github.com/ardanlabs/powchain/foundation/blockchain/database"
)

// ErrPendingTx is returned when an outside wallet submits a new transaction
// while a different one from the same address is still waiting to be mined.
var ErrPendingTx = errors.New("address has a pending transaction")

// SubmitWalletTransaction sends the amount from the node wallet to the
// recipient. If the wallet already has a pending transaction the transfer is
// added to it, otherwise a new transaction is constructed.
func (s *State) SubmitWalletTransaction(recipient string, amount uint64) (database.Tx, error) {
	s.poolMu.Lock()
	defer s.poolMu.Unlock()

	tx, exists := s.mempool.ExistingTx(s.wallet.Address())

	switch {
	case exists:
		s.evHandler("state: SubmitWalletTransaction: update tx[%s]", tx)
		if err := tx.Update(s.wallet, recipient, amount); err != nil {
			return database.Tx{}, err
		}

	default:
		var err error
		if tx, err = database.NewTx(s.wallet, recipient, amount); err != nil {
			return database.Tx{}, err
		}
		s.evHandler("state: SubmitWalletTransaction: new tx[%s]", tx)
	}

	s.mempool.Upsert(tx)

	s.Worker.SignalShareTx(tx)
	s.Worker.SignalStartMining()

	return tx, nil
}

// SubmitSignedTransaction accepts a transaction signed by an outside wallet
// for inclusion. The transaction must be valid and spend the sender's
// current balance.
func (s *State) SubmitSignedTransaction(tx database.Tx) error {
	s.poolMu.Lock()
	defer s.poolMu.Unlock()

	if tx.Input.IsReward() {
		return fmt.Errorf("%w: reward transactions can't be submitted", database.ErrInvalidInput)
	}

	if err := tx.Validate(s.genesis.MiningReward); err != nil {
		return err
	}

	if balance := s.db.Balance(tx.Input.Address); balance != tx.Input.Amount {
		return fmt.Errorf("%w: got %d, exp %d", database.ErrInputAmount, tx.Input.Amount, balance)
	}

	// Two pending transactions would both spend the same balance.
	if pending, exists := s.mempool.ExistingTx(tx.Input.Address); exists && pending.ID != tx.ID {
		return fmt.Errorf("%w: tx[%s]", ErrPendingTx, pending.ID)
	}

	s.evHandler("state: SubmitSignedTransaction: tx[%s]", tx)

	s.mempool.Upsert(tx)

	s.Worker.SignalShareTx(tx)
	s.Worker.SignalStartMining()

	return nil
}

// UpsertNodeTransaction accepts a transaction shared by a peer. It's placed
// in the mempool as is, the transaction is checked again before it's mined.
func (s *State) UpsertNodeTransaction(tx database.Tx) {
	s.evHandler("state: UpsertNodeTransaction: tx[%s]", tx)

	s.mempool.Upsert(tx)

	s.Worker.SignalStartMining()
}
