// Package genesis maintains access to the genesis file.
package genesis

import (
	"encoding/json"
	"os"
	"time"
)

// Genesis represents the genesis file. Every node in the network must load
// the same genesis values so they agree on the genesis block and the rules
// used to validate every other block.
type Genesis struct {
	Date          time.Time `json:"date"`
	ChainID       uint16    `json:"chain_id"`        // The chain id represents an unique id for this running instance.
	TransPerBlock uint16    `json:"trans_per_block"` // The minimum number of transactions needed before auto-mining starts.
	Difficulty    uint16    `json:"difficulty"`      // How many leading hex zeros a block hash needs.
	MiningReward  uint64    `json:"mining_reward"`   // Reward for mining a block.
	Message       string    `json:"message"`         // Free form text recorded with the genesis block.
}

// Default returns the genesis values used when no genesis file exists.
func Default() Genesis {
	return Genesis{
		Date:          time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC),
		ChainID:       1,
		TransPerBlock: 1,
		Difficulty:    4,
		MiningReward:  100,
		Message:       "Genesis Block",
	}
}

// =============================================================================

// Load opens and consumes the genesis file.
func Load(path string) (Genesis, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return Genesis{}, err
	}

	var genesis Genesis
	err = json.Unmarshal(content, &genesis)
	if err != nil {
		return Genesis{}, err
	}

	return genesis, nil
}
