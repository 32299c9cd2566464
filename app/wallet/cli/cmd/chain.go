package cmd

import (
	"net/http"

	"github.com/fatih/color"
	"github.com/ledgerlab/blockchain/foundation/blockchain/database"
	"github.com/spf13/cobra"
)

var chainCmd = &cobra.Command{
	Use:   "chain",
	Short: "Print the node's chain and whether it is valid.",
	RunE:  chainRun,
}

func init() {
	rootCmd.AddCommand(chainCmd)
}

func chainRun(cmd *cobra.Command, args []string) error {
	var chain struct {
		Chain  []database.Block `json:"chain"`
		Length int              `json:"length"`
	}
	if err := call(http.MethodGet, "/chain", nil, &chain); err != nil {
		return err
	}

	for _, block := range chain.Chain {
		color.Cyan("==============================================")
		color.Cyan("Block %d", block.Index)
		color.White("  hash:      %s", block.Hash)
		color.White("  prev_hash: %s", block.PrevHash)
		color.White("  nonce:     %d", block.Nonce)
		color.White("  timestamp: %d", block.TimeStamp)

		for _, tx := range block.Transactions {
			switch {
			case tx.Sender.IsSystem():
				color.Yellow("  %s -> %s: %d", tx.Sender, tx.Recipient, tx.Amount)
			default:
				color.Green("  %s -> %s: %d", tx.Sender, tx.Recipient, tx.Amount)
			}
		}
	}

	var validity struct {
		Valid bool    `json:"valid"`
		Index *uint64 `json:"index"`
		Rule  string  `json:"rule"`
		Error string  `json:"error"`
	}
	if err := call(http.MethodGet, "/chain/valid", nil, &validity); err != nil {
		return err
	}

	color.Cyan("==============================================")
	switch {
	case validity.Valid:
		color.Green("chain of %d blocks is valid", chain.Length)
	case validity.Index != nil:
		color.Red("chain is invalid at block %d: %s: %s", *validity.Index, validity.Rule, validity.Error)
	default:
		color.Red("chain is invalid: %s", validity.Error)
	}

	return nil
}
