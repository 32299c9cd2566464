package database

import (
	"errors"
	"fmt"

	"github.com/ledgerlab/blockchain/foundation/blockchain/genesis"
)

// Set of rules a chain is validated against, in the order they are checked.
const (
	RuleGenesis     = "genesis"
	RuleIndex       = "index"
	RuleLinkage     = "linkage"
	RuleHash        = "hash"
	RulePOW         = "pow"
	RuleTransaction = "transaction"
	RuleReward      = "reward"
)

// ValidationError is returned when a block fails validation. It identifies
// the first failing block and the rule it broke.
type ValidationError struct {
	Index uint64
	Rule  string
	Err   error
}

// invalid constructs a validation error for the block at the specified index.
func invalid(index uint64, rule string, err error) error {
	return &ValidationError{
		Index: index,
		Rule:  rule,
		Err:   err,
	}
}

// Error implements the error interface.
func (ve *ValidationError) Error() string {
	return fmt.Sprintf("block[%d]: rule[%s]: %s", ve.Index, ve.Rule, ve.Err)
}

// Unwrap provides access to the underlying error.
func (ve *ValidationError) Unwrap() error {
	return ve.Err
}

// IsValidationError checks if an error of type ValidationError exists.
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// GetValidationError returns a copy of the ValidationError pointer.
func GetValidationError(err error) *ValidationError {
	var ve *ValidationError
	if !errors.As(err, &ve) {
		return nil
	}
	return ve
}

// =============================================================================

// ValidateChain walks the entire chain and checks every block against the
// genesis rules. Validation stops at the first failing block.
func ValidateChain(chain []Block, gen genesis.Genesis, evHandler func(v string, args ...any)) error {
	if evHandler == nil {
		evHandler = func(string, ...any) {}
	}

	evHandler("database: ValidateChain: started: blocks[%d]", len(chain))
	defer evHandler("database: ValidateChain: completed")

	if len(chain) == 0 {
		return invalid(0, RuleGenesis, errors.New("chain is empty"))
	}

	genesisBlock := GenesisBlock(gen)
	if !chain[0].Equal(genesisBlock) || chain[0].Index != 0 || chain[0].PrevHash != genesisBlock.PrevHash {
		return invalid(0, RuleGenesis, fmt.Errorf("genesis block doesn't match, got %s, exp %s", chain[0].Hash, genesisBlock.Hash))
	}

	for i := 1; i < len(chain); i++ {
		if err := chain[i].ValidateBlock(chain[i-1], gen.Difficulty, gen.MiningReward, evHandler); err != nil {

			// A block claiming the wrong index is reported at its position.
			if ve := GetValidationError(err); ve != nil {
				ve.Index = uint64(i)
			}

			evHandler("database: ValidateChain: ERROR: %s", err)
			return err
		}
	}

	return nil
}

// IsChainValid is the boolean form of ValidateChain.
func IsChainValid(chain []Block, gen genesis.Genesis) bool {
	return ValidateChain(chain, gen, nil) == nil
}
