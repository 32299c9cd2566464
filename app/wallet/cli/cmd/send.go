package cmd

import (
	"fmt"
	"net/http"

	"github.com/fatih/color"
	"github.com/ledgerlab/blockchain/foundation/blockchain/database"
	"github.com/spf13/cobra"
)

var (
	to     string
	amount uint64
)

var sendCmd = &cobra.Command{
	Use:   "send",
	Short: "Send transaction",
	RunE:  sendRun,
}

func init() {
	rootCmd.AddCommand(sendCmd)
	sendCmd.Flags().StringVarP(&to, "to", "t", "", "Account receiving the value.")
	sendCmd.Flags().Uint64VarP(&amount, "value", "v", 0, "Value to send.")
	sendCmd.MarkFlagRequired("to")
	sendCmd.MarkFlagRequired("value")
}

func sendRun(cmd *cobra.Command, args []string) error {
	w, err := loadWallet()
	if err != nil {
		return err
	}

	recipient, err := database.ToAccountID(to)
	if err != nil {
		return err
	}

	signedTx, err := w.Send(recipient, amount)
	if err != nil {
		return err
	}

	var resp struct {
		Status string `json:"status"`
		ID     string `json:"id"`
	}
	if err := call(http.MethodPost, "/tx/submit", signedTx, &resp); err != nil {
		return err
	}

	color.Green("%s", resp.Status)
	fmt.Println(resp.ID)

	return nil
}
