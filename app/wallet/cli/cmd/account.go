package cmd

import (
	"fmt"
	"log"

	"github.com/ardanlabs/powchain/foundation/blockchain/wallet"
	"github.com/spf13/cobra"
)

var accountCmd = &cobra.Command{
	Use:   "account",
	Short: "Print the address for the specific wallet",
	Run:   accountRun,
}

func init() {
	rootCmd.AddCommand(accountCmd)
}

func accountRun(cmd *cobra.Command, args []string) {
	w, err := wallet.Load(getPrivateKeyPath(), nil)
	if err != nil {
		log.Fatal(err)
	}

	fmt.Println(w.Address())
}
