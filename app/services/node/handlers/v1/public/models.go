package public

import (
	"github.com/ardanlabs/powchain/business/sys/validate"
	"github.com/ardanlabs/powchain/foundation/blockchain/database"
)

// transact is the request to send an amount from the node wallet.
type transact struct {
	Recipient string `json:"recipient" validate:"required,address"`
	Amount    uint64 `json:"amount" validate:"required,gt=0"`
}

// Validate checks the request fields.
func (t transact) Validate() error {
	return validate.Check(t)
}

type output struct {
	Address string `json:"address"`
	Name    string `json:"name,omitempty"`
	Amount  uint64 `json:"amount"`
}

type tx struct {
	ID        string   `json:"id"`
	TimeStamp int64    `json:"timestamp"`
	From      string   `json:"from"`
	FromName  string   `json:"from_name,omitempty"`
	Balance   uint64   `json:"balance"`
	Outputs   []output `json:"outputs"`
	Sig       string   `json:"sig"`
}

type balance struct {
	Address string `json:"address"`
	Name    string `json:"name,omitempty"`
	Balance uint64 `json:"balance"`
}

type mined struct {
	Status string         `json:"status"`
	Block  database.Block `json:"block"`
}
