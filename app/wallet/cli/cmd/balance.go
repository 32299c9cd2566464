package cmd

import (
	"fmt"
	"net/http"

	"github.com/spf13/cobra"
)

type balance struct {
	Account string `json:"account"`
	Name    string `json:"name"`
	Balance int64  `json:"balance"`
}

var balanceCmd = &cobra.Command{
	Use:   "balance [account|name]",
	Short: "Print the balance of your account or the one specified.",
	Args:  cobra.MaximumNArgs(1),
	RunE:  balanceRun,
}

func init() {
	rootCmd.AddCommand(balanceCmd)
}

func balanceRun(cmd *cobra.Command, args []string) error {
	var account string
	switch len(args) {
	case 1:
		account = args[0]
	default:
		w, err := loadWallet()
		if err != nil {
			return err
		}
		account = string(w.AccountID())
	}

	var bal balance
	if err := call(http.MethodGet, "/balances/"+account, nil, &bal); err != nil {
		return err
	}

	fmt.Println("For Account:", bal.Account, bal.Name)
	fmt.Println(bal.Balance)

	return nil
}
