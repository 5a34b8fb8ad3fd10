package database

import (
	"errors"
	"fmt"

	"github.com/ardanlabs/powchain/foundation/blockchain/genesis"
)

// Set of errors returned when a chain fails validation.
var (
	ErrGenesis         = errors.New("chain must start with the genesis block")
	ErrDuplicateTx     = errors.New("transaction is not unique")
	ErrDuplicateReward = errors.New("only one mining reward per block")
	ErrInputAmount     = errors.New("transaction has an invalid input amount")
)

// ValidateChain checks the candidate chain starts with the genesis block,
// every block correctly follows its parent and the transaction history is
// consistent.
func ValidateChain(chain []Block, gen genesis.Genesis) error {
	if len(chain) == 0 || !chain[0].Equal(Genesis()) {
		return ErrGenesis
	}

	for i := 1; i < len(chain); i++ {
		if err := ValidateBlock(chain[i-1], chain[i]); err != nil {
			return fmt.Errorf("block[%d]: %w", i, err)
		}
	}

	return ValidateTransactionChain(chain, gen)
}

// ValidateTransactionChain checks every transaction in the chain. Each
// transaction id must only appear once, each block can hold only one mining
// reward and the input amount of a signed transaction must match the
// sender's balance according to the blocks that came before it.
func ValidateTransactionChain(chain []Block, gen genesis.Genesis) error {
	seen := make(map[string]struct{})

	for i, block := range chain {
		var hasReward bool

		for _, tx := range block.Data {
			if _, exists := seen[tx.ID]; exists {
				return fmt.Errorf("%w: block[%d]: tx[%s]", ErrDuplicateTx, i, tx.ID)
			}
			seen[tx.ID] = struct{}{}

			switch {
			case tx.Input.IsReward():
				if hasReward {
					return fmt.Errorf("%w: block[%d]: tx[%s]", ErrDuplicateReward, i, tx.ID)
				}
				hasReward = true

			default:
				balance := CalculateBalance(chain[:i], tx.Input.Address, gen.StartingBalance)
				if balance != tx.Input.Amount {
					return fmt.Errorf("%w: block[%d]: tx[%s]: got %d, exp %d", ErrInputAmount, i, tx.ID, tx.Input.Amount, balance)
				}
			}

			if err := tx.Validate(gen.MiningReward); err != nil {
				return fmt.Errorf("block[%d]: tx[%s]: %w", i, tx.ID, err)
			}
		}
	}

	return nil
}

// CalculateBalance replays the transactions in the blocks to derive the
// balance of the address. Every transaction sent by the address resets the
// balance to the change it kept. Every other transaction paying the address
// adds to it.
func CalculateBalance(blocks []Block, address string, startingBalance uint64) uint64 {
	balance := startingBalance

	for _, block := range blocks {
		for _, tx := range block.Data {
			if !tx.Input.IsReward() && tx.Input.Address == address {
				balance = tx.Output[address]
				continue
			}

			if amount, exists := tx.Output[address]; exists {
				balance += amount
			}
		}
	}

	return balance
}
