package database

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ardanlabs/powchain/foundation/blockchain/signature"
)

// Set of errors returned when a block fails validation.
var (
	ErrLastHash       = errors.New("block last hash must match the previous block hash")
	ErrProofOfWork    = errors.New("proof of work requirement not met")
	ErrDifficultyJump = errors.New("block difficulty must only adjust by 1")
	ErrBlockHash      = errors.New("block hash does not match the block fields")
)

// Set of values that make up the genesis block.
const (
	genesisTimeStamp  = 1
	genesisLastHash   = "genesis_last_hash"
	genesisHash       = "genesis_hash"
	genesisDifficulty = 3
	genesisNonce      = 0
)

// =============================================================================

// Block represents a group of transactions batched together and chained to
// the previous block by hash.
type Block struct {
	TimeStamp  int64  `json:"timestamp"`  // Time the block was mined in nanoseconds.
	LastHash   string `json:"last_hash"`  // Hash of the previous block in the chain.
	Hash       string `json:"hash"`       // Hash of the other fields at the solved nonce.
	Data       []Tx   `json:"data"`       // Transactions included in the block.
	Difficulty uint   `json:"difficulty"` // Number of leading zero bits required in the hash.
	Nonce      uint64 `json:"nonce"`      // Value identified to solve the hash solution.
}

// Genesis returns the hard coded first block of every valid chain.
func Genesis() Block {
	return Block{
		TimeStamp:  genesisTimeStamp,
		LastHash:   genesisLastHash,
		Hash:       genesisHash,
		Data:       []Tx{},
		Difficulty: genesisDifficulty,
		Nonce:      genesisNonce,
	}
}

// MineBlock constructs a new block on top of the last block and performs the
// work to find a nonce that solves the proof of work puzzle. The difficulty is
// recalculated for every attempt since the timestamp changes with each one.
// The search only stops early when the context is cancelled.
func MineBlock(ctx context.Context, lastBlock Block, data []Tx, mineRate time.Duration) (Block, error) {
	data = normalize(data)

	var nonce uint64
	for {
		if err := ctx.Err(); err != nil {
			return Block{}, err
		}

		timeStamp := time.Now().UTC().UnixNano()
		difficulty := AdjustDifficulty(lastBlock, timeStamp, mineRate)
		hash, err := blockHash(timeStamp, lastBlock.Hash, data, difficulty, nonce)
		if err != nil {
			return Block{}, err
		}

		if isHashSolved(difficulty, hash) {
			nb := Block{
				TimeStamp:  timeStamp,
				LastHash:   lastBlock.Hash,
				Hash:       hash,
				Data:       data,
				Difficulty: difficulty,
				Nonce:      nonce,
			}
			return nb, nil
		}

		nonce++
	}
}

// AdjustDifficulty calculates the difficulty for a block mined at the
// specified timestamp. Blocks mined faster than the mine rate raise the
// difficulty by 1, slower blocks lower it by 1 down to a floor of 1.
func AdjustDifficulty(lastBlock Block, newTimeStamp int64, mineRate time.Duration) uint {
	if newTimeStamp-lastBlock.TimeStamp < mineRate.Nanoseconds() {
		return lastBlock.Difficulty + 1
	}

	if lastBlock.Difficulty > 1 {
		return lastBlock.Difficulty - 1
	}

	return 1
}

// ValidateBlock checks the block can follow the last block in the chain. The
// checks are performed in order and the first failure is returned.
func ValidateBlock(lastBlock Block, block Block) error {
	if block.LastHash != lastBlock.Hash {
		return fmt.Errorf("%w: got %s, exp %s", ErrLastHash, block.LastHash, lastBlock.Hash)
	}

	if !isHashSolved(block.Difficulty, block.Hash) {
		return fmt.Errorf("%w: hash %s, difficulty %d", ErrProofOfWork, block.Hash, block.Difficulty)
	}

	if diff(lastBlock.Difficulty, block.Difficulty) > 1 {
		return fmt.Errorf("%w: parent %d, block %d", ErrDifficultyJump, lastBlock.Difficulty, block.Difficulty)
	}

	hash, err := blockHash(block.TimeStamp, block.LastHash, normalize(block.Data), block.Difficulty, block.Nonce)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrBlockHash, err)
	}
	if block.Hash != hash {
		return fmt.Errorf("%w: got %s, exp %s", ErrBlockHash, block.Hash, hash)
	}

	return nil
}

// Equal performs a structural comparison of two blocks.
func (b Block) Equal(other Block) bool {
	if b.TimeStamp != other.TimeStamp ||
		b.LastHash != other.LastHash ||
		b.Hash != other.Hash ||
		b.Difficulty != other.Difficulty ||
		b.Nonce != other.Nonce ||
		len(b.Data) != len(other.Data) {
		return false
	}

	for i := range b.Data {
		if !b.Data[i].Equal(other.Data[i]) {
			return false
		}
	}

	return true
}

// String implements the fmt.Stringer interface for logging.
func (b Block) String() string {
	return fmt.Sprintf("%s:%d:%d", b.Hash, b.Difficulty, len(b.Data))
}

// =============================================================================

// blockHash computes the hash over the fields of a block.
func blockHash(timeStamp int64, lastHash string, data []Tx, difficulty uint, nonce uint64) (string, error) {
	hash, err := signature.Hash(timeStamp, lastHash, data, difficulty, nonce)
	if err != nil {
		return "", fmt.Errorf("hashing block: %w", err)
	}
	return hash, nil
}

// isHashSolved checks the hash to make sure it complies with the proof of
// work rules. The leading difficulty bits of the hash must be zero.
func isHashSolved(difficulty uint, hash string) bool {
	binary, err := signature.HexToBinary(hash)
	if err != nil {
		return false
	}

	if uint(len(binary)) < difficulty {
		return false
	}

	return strings.Count(binary[:difficulty], "0") == int(difficulty)
}

// normalize makes sure an empty set of transactions hashes the same way
// whether it was provided as nil or empty.
func normalize(data []Tx) []Tx {
	if data == nil {
		return []Tx{}
	}
	return data
}

func diff(a, b uint) uint {
	if a > b {
		return a - b
	}
	return b - a
}
