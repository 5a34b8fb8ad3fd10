package cmd

import (
	"fmt"
	"log"

	"github.com/ardanlabs/powchain/foundation/blockchain/wallet"
	"github.com/spf13/cobra"
)

var balanceCmd = &cobra.Command{
	Use:   "balance",
	Short: "Print your balance.",
	Run:   balanceRun,
}

func init() {
	rootCmd.AddCommand(balanceCmd)
}

func balanceRun(cmd *cobra.Command, args []string) {
	w, err := wallet.Load(getPrivateKeyPath(), nil)
	if err != nil {
		log.Fatal(err)
	}

	fmt.Println("For Address:", w.Address())

	balance, err := newClient(url).balance(w.Address())
	if err != nil {
		log.Fatal(err)
	}

	fmt.Println(balance)
}
