// Package main runs the wallet that signs and submits transactions to a node.
package main

import "github.com/ardanlabs/powchain/app/wallet/cli/cmd"

func main() {
	cmd.Execute()
}
