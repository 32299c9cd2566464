package cmd

import (
	"net/http"

	"github.com/fatih/color"
	"github.com/ledgerlab/blockchain/foundation/blockchain/database"
	"github.com/spf13/cobra"
)

var mineCmd = &cobra.Command{
	Use:   "mine",
	Short: "Mine the pending transactions with the reward paid to your account.",
	RunE:  mineRun,
}

func init() {
	rootCmd.AddCommand(mineCmd)
}

func mineRun(cmd *cobra.Command, args []string) error {
	w, err := loadWallet()
	if err != nil {
		return err
	}

	req := struct {
		Miner database.AccountID `json:"miner"`
	}{
		Miner: w.AccountID(),
	}

	var block database.Block
	if err := call(http.MethodPost, "/mine", req, &block); err != nil {
		return err
	}

	color.Green("block %d mined with %d transactions", block.Index, len(block.Transactions))
	color.White("hash: %s", block.Hash)

	return nil
}
