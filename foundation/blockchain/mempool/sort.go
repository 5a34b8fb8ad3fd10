package mempool

import "github.com/ardanlabs/powchain/foundation/blockchain/database"

// byTimeStamp provides sorting support by the transaction input timestamp.
// Transactions signed at the same time are ordered by id so the order is
// the same on every call.
type byTimeStamp []database.Tx

// Len returns the number of transactions in the list.
func (bt byTimeStamp) Len() int {
	return len(bt)
}

// Less helps to sort the list by timestamp in ascending order to keep the
// transactions in the right order of processing.
func (bt byTimeStamp) Less(i, j int) bool {
	if bt[i].Input.TimeStamp != bt[j].Input.TimeStamp {
		return bt[i].Input.TimeStamp < bt[j].Input.TimeStamp
	}
	return bt[i].ID < bt[j].ID
}

// Swap moves transactions in the order of the timestamp value.
func (bt byTimeStamp) Swap(i, j int) {
	bt[i], bt[j] = bt[j], bt[i]
}
