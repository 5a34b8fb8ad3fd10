package cmd

import (
	"fmt"
	"log"

	"github.com/ardanlabs/powchain/foundation/blockchain/wallet"
	"github.com/spf13/cobra"
)

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Generate new key pair",
	Run:   generateRun,
}

func init() {
	rootCmd.AddCommand(generateCmd)
}

func generateRun(cmd *cobra.Command, args []string) {
	w, err := wallet.New(nil)
	if err != nil {
		log.Fatal(err)
	}

	if err := w.Save(getPrivateKeyPath()); err != nil {
		log.Fatal(err)
	}

	fmt.Println(w.Address())
}
