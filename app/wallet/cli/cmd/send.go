package cmd

import (
	"fmt"
	"log"

	"github.com/ardanlabs/powchain/foundation/blockchain/database"
	"github.com/ardanlabs/powchain/foundation/blockchain/signature"
	"github.com/ardanlabs/powchain/foundation/blockchain/wallet"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/spf13/cobra"
)

var (
	to     string
	amount uint64
)

// sendCmd represents the send command
var sendCmd = &cobra.Command{
	Use:   "send",
	Short: "Send transaction",
	Run: func(cmd *cobra.Command, args []string) {
		if err := send(newClient(url), getPrivateKeyPath(), to, amount); err != nil {
			log.Fatal(err)
		}
	},
}

func init() {
	rootCmd.AddCommand(sendCmd)
	sendCmd.Flags().StringVarP(&to, "to", "t", "", "Address of the recipient.")
	sendCmd.Flags().Uint64VarP(&amount, "amount", "v", 0, "Amount to send.")
	sendCmd.MarkFlagRequired("to")
	sendCmd.MarkFlagRequired("amount")
}

// send signs a transaction with the key at the path for the balance the
// node reports and submits it to the node.
func send(c *client, keyPath string, to string, amount uint64) error {
	privateKey, err := crypto.LoadECDSA(keyPath)
	if err != nil {
		return err
	}

	balance, err := c.balance(signature.ToAddress(privateKey.PublicKey))
	if err != nil {
		return err
	}

	w := wallet.FromKey(privateKey, fixedBalance(balance))

	tx, err := database.NewTx(w, to, amount)
	if err != nil {
		return err
	}

	if err := c.submit(tx); err != nil {
		return err
	}

	fmt.Println(tx.ID)

	return nil
}

// fixedBalance is a ledger reporting the balance the node returned.
type fixedBalance uint64

func (fb fixedBalance) Balance(address string) uint64 {
	return uint64(fb)
}
