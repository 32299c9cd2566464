package cmd

import (
	"fmt"
	"net/http"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var peersCmd = &cobra.Command{
	Use:   "peers",
	Short: "Manage the node's known peers.",
}

var peersListCmd = &cobra.Command{
	Use:   "list",
	Short: "Print the known peers and whether they are reachable.",
	RunE:  peersListRun,
}

var peersRegisterCmd = &cobra.Command{
	Use:   "register <address>",
	Short: "Register a peer with the node.",
	Args:  cobra.ExactArgs(1),
	RunE:  peersRegisterRun,
}

var resolveCmd = &cobra.Command{
	Use:   "resolve",
	Short: "Replace the node's chain with the longest valid chain of its peers.",
	RunE:  resolveRun,
}

func init() {
	peersCmd.AddCommand(peersListCmd)
	peersCmd.AddCommand(peersRegisterCmd)
	rootCmd.AddCommand(peersCmd)
	rootCmd.AddCommand(resolveCmd)
}

func peersListRun(cmd *cobra.Command, args []string) error {
	var peers []struct {
		Host      string `json:"host"`
		Reachable bool   `json:"reachable"`
		Length    int    `json:"length"`
		Error     string `json:"error"`
	}
	if err := call(http.MethodGet, "/peers/health", nil, &peers); err != nil {
		return err
	}

	for _, pr := range peers {
		switch {
		case pr.Reachable:
			color.Green("%s: %d blocks", pr.Host, pr.Length)
		default:
			color.Red("%s: %s", pr.Host, pr.Error)
		}
	}

	return nil
}

func peersRegisterRun(cmd *cobra.Command, args []string) error {
	req := struct {
		Address string `json:"address"`
	}{
		Address: args[0],
	}

	var resp struct {
		Host  string `json:"host"`
		Added bool   `json:"added"`
	}
	if err := call(http.MethodPost, "/peers/register", req, &resp); err != nil {
		return err
	}

	if !resp.Added {
		fmt.Printf("%s is already known\n", resp.Host)
		return nil
	}

	color.Green("%s registered", resp.Host)
	return nil
}

func resolveRun(cmd *cobra.Command, args []string) error {
	var resp struct {
		Replaced bool `json:"replaced"`
		Length   int  `json:"length"`
	}
	if err := call(http.MethodPost, "/peers/resolve", nil, &resp); err != nil {
		return err
	}

	if resp.Replaced {
		color.Yellow("chain replaced, length %d", resp.Length)
		return nil
	}

	color.Green("chain is authoritative, length %d", resp.Length)
	return nil
}
