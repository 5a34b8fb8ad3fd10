// Package genesis maintains access to the consensus parameters every node
// on the network must agree on.
package genesis

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"
)

// Set of default consensus parameters.
const (
	DefaultMineRate        = 4 * time.Second
	DefaultStartingBalance = 1000
	DefaultMiningReward    = 50
)

// Genesis represents the genesis file.
type Genesis struct {
	Date            time.Time     `json:"date"`
	MineRate        time.Duration `json:"mine_rate"`        // Target time between blocks, in nanoseconds.
	StartingBalance uint64        `json:"starting_balance"` // Balance of an address with no history.
	MiningReward    uint64        `json:"mining_reward"`    // Reward for mining a block.
}

// Default returns the consensus parameters used when no genesis file
// is provided.
func Default() Genesis {
	return Genesis{
		Date:            time.Unix(0, 1).UTC(),
		MineRate:        DefaultMineRate,
		StartingBalance: DefaultStartingBalance,
		MiningReward:    DefaultMiningReward,
	}
}

// =============================================================================

// Load opens and consumes the genesis file. Fields missing from the file
// keep their default values.
func Load(path string) (Genesis, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return Genesis{}, err
	}

	genesis := Default()
	if err := json.Unmarshal(content, &genesis); err != nil {
		return Genesis{}, fmt.Errorf("unmarshal genesis: %w", err)
	}

	if err := genesis.validate(); err != nil {
		return Genesis{}, err
	}

	return genesis, nil
}

func (g Genesis) validate() error {
	if g.MineRate <= 0 {
		return errors.New("mine rate must be positive")
	}
	if g.MiningReward == 0 {
		return errors.New("mining reward must be positive")
	}
	return nil
}
