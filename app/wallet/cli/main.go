package main

import "github.com/ledgerlab/blockchain/app/wallet/cli/cmd"

func main() {
	cmd.Execute()
}
