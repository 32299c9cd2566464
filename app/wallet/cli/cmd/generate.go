package cmd

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/fatih/color"
	"github.com/ledgerlab/blockchain/foundation/blockchain/wallet"
	"github.com/spf13/cobra"
)

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Generate new key pair",
	RunE:  generateRun,
}

func init() {
	rootCmd.AddCommand(generateCmd)
}

func generateRun(cmd *cobra.Command, args []string) error {
	path := getPrivateKeyPath()
	if _, err := os.Stat(path); !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("key file %s already exists", path)
	}

	w, err := wallet.New()
	if err != nil {
		return err
	}

	if err := os.MkdirAll(accountPath, 0700); err != nil {
		return err
	}

	if err := w.Save(path); err != nil {
		return err
	}

	color.Green("key saved to %s", path)
	fmt.Println(w.AccountID())

	return nil
}
