package database

import (
	"errors"
	"fmt"
	"maps"
	"math/big"
	"time"

	"github.com/ardanlabs/powchain/foundation/blockchain/signature"
	"github.com/google/uuid"
)

// Set of errors returned when a transaction can't be constructed or
// fails validation.
var (
	ErrInsufficientBalance = errors.New("amount exceeds balance")
	ErrInvalidInput        = errors.New("invalid transaction input")
	ErrInvalidOutput       = errors.New("invalid transaction output values")
	ErrAddressMismatch     = errors.New("input address does not match the public key")
	ErrInvalidSignature    = errors.New("invalid signature")
	ErrInvalidReward       = errors.New("invalid mining reward")
)

// Sender represents the behavior required of a wallet to construct and
// sign transactions.
type Sender interface {
	Address() string
	PublicKey() string
	Balance() uint64
	Sign(value any) (signature.Signature, error)
}

// =============================================================================

// Output maps the addresses involved in a transaction to their amounts.
type Output map[string]uint64

// Total returns the sum of all the amounts in the output.
func (o Output) Total() uint64 {
	total, _ := o.total()
	return total
}

// total sums the amounts, reporting false if the sum overflows.
func (o Output) total() (uint64, bool) {
	var total uint64
	for _, amount := range o {
		if total+amount < total {
			return 0, false
		}
		total += amount
	}
	return total, true
}

// =============================================================================

// InputType identifies the variant of a transaction input.
type InputType string

// Set of input variants.
const (
	InputReward InputType = "reward"
	InputSigned InputType = "signed"
)

// Input authorizes a transaction. A reward input has no signer and only
// carries its type. A signed input carries the sender's balance at the time
// of signing and the signature over the output.
type Input struct {
	Type      InputType            `json:"type"`
	TimeStamp int64                `json:"timestamp,omitempty"`
	Amount    uint64               `json:"amount,omitempty"`
	Address   string               `json:"address,omitempty"`
	PublicKey string               `json:"public_key,omitempty"`
	Signature *signature.Signature `json:"signature,omitempty"`
}

// IsReward reports if this is a mining reward input.
func (in Input) IsReward() bool {
	return in.Type == InputReward
}

// Equal performs a structural comparison of two inputs.
func (in Input) Equal(other Input) bool {
	if in.Type != other.Type ||
		in.TimeStamp != other.TimeStamp ||
		in.Amount != other.Amount ||
		in.Address != other.Address ||
		in.PublicKey != other.PublicKey {
		return false
	}

	switch {
	case in.Signature == nil || other.Signature == nil:
		return in.Signature == other.Signature
	default:
		return equalInt(in.Signature.R, other.Signature.R) && equalInt(in.Signature.S, other.Signature.S)
	}
}

func equalInt(a, b *big.Int) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Cmp(b) == 0
}

// =============================================================================

// Tx is a transfer of value from a sender to one or more recipients.
type Tx struct {
	ID     string `json:"id"`
	Input  Input  `json:"input"`
	Output Output `json:"output"`
}

// NewTx constructs a transaction from the sender to the recipient. The
// output holds the amount for the recipient and the change for the sender.
func NewTx(sender Sender, recipient string, amount uint64) (Tx, error) {
	balance := sender.Balance()
	if amount > balance {
		return Tx{}, fmt.Errorf("%w: amount %d, balance %d", ErrInsufficientBalance, amount, balance)
	}

	output := Output{
		recipient:        amount,
		sender.Address(): balance - amount,
	}

	// Sending to yourself leaves the whole balance as change.
	if recipient == sender.Address() {
		output = Output{recipient: balance}
	}

	input, err := signInput(sender, balance, output)
	if err != nil {
		return Tx{}, err
	}

	tx := Tx{
		ID:     uuid.NewString(),
		Input:  input,
		Output: output,
	}

	return tx, nil
}

// NewRewardTx constructs the transaction paying the miner of a block.
func NewRewardTx(minerAddress string, reward uint64) Tx {
	return Tx{
		ID:     uuid.NewString(),
		Input:  Input{Type: InputReward},
		Output: Output{minerAddress: reward},
	}
}

// Update adds another transfer to an existing transaction and signs it
// again. The amount is checked against the change the sender has left in
// this transaction. The output is copied before it's changed so any other
// value sharing the original map is left alone.
func (tx *Tx) Update(sender Sender, recipient string, amount uint64) error {
	if tx.Input.IsReward() {
		return fmt.Errorf("%w: reward transactions can't be updated", ErrInvalidInput)
	}

	change := tx.Output[sender.Address()]
	if amount > change {
		return fmt.Errorf("%w: amount %d, change %d", ErrInsufficientBalance, amount, change)
	}

	output := maps.Clone(tx.Output)
	output[recipient] += amount
	output[sender.Address()] -= amount

	input, err := signInput(sender, sender.Balance(), output)
	if err != nil {
		return err
	}

	tx.Input = input
	tx.Output = output

	return nil
}

// Validate checks the transaction is well formed. A reward must pay
// exactly the mining reward to a single address. A signed transaction must
// spend exactly its input amount and carry a valid signature from the
// owner of the input address.
func (tx Tx) Validate(miningReward uint64) error {
	switch tx.Input.Type {
	case InputReward:
		if len(tx.Output) != 1 {
			return fmt.Errorf("%w: %d outputs", ErrInvalidReward, len(tx.Output))
		}
		for _, amount := range tx.Output {
			if amount != miningReward {
				return fmt.Errorf("%w: got %d, exp %d", ErrInvalidReward, amount, miningReward)
			}
		}
		return nil

	case InputSigned:

	default:
		return fmt.Errorf("%w: unknown type %q", ErrInvalidInput, tx.Input.Type)
	}

	total, ok := tx.Output.total()
	if !ok || total != tx.Input.Amount {
		return fmt.Errorf("%w: total %d, input amount %d", ErrInvalidOutput, total, tx.Input.Amount)
	}

	pk, err := signature.DecodePublicKey(tx.Input.PublicKey)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidSignature, err)
	}

	if address := signature.ToAddress(*pk); address != tx.Input.Address {
		return fmt.Errorf("%w: got %s, exp %s", ErrAddressMismatch, tx.Input.Address, address)
	}

	if tx.Input.Signature == nil {
		return fmt.Errorf("%w: missing signature", ErrInvalidSignature)
	}

	valid, err := signature.Verify(tx.Input.PublicKey, tx.Output, *tx.Input.Signature)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidSignature, err)
	}
	if !valid {
		return fmt.Errorf("%w: from %s", ErrInvalidSignature, tx.Input.Address)
	}

	return nil
}

// Equal performs a structural comparison of two transactions.
func (tx Tx) Equal(other Tx) bool {
	return tx.ID == other.ID && tx.Input.Equal(other.Input) && maps.Equal(tx.Output, other.Output)
}

// String implements the fmt.Stringer interface for logging.
func (tx Tx) String() string {
	if tx.Input.IsReward() {
		return fmt.Sprintf("%s:reward:%d", tx.ID, tx.Output.Total())
	}
	return fmt.Sprintf("%s:%s:%d", tx.ID, tx.Input.Address, tx.Input.Amount)
}

// =============================================================================

// signInput constructs a signed input over the output.
func signInput(sender Sender, balance uint64, output Output) (Input, error) {
	sig, err := sender.Sign(output)
	if err != nil {
		return Input{}, fmt.Errorf("signing output: %w", err)
	}

	input := Input{
		Type:      InputSigned,
		TimeStamp: time.Now().UTC().UnixNano(),
		Amount:    balance,
		Address:   sender.Address(),
		PublicKey: sender.PublicKey(),
		Signature: &sig,
	}

	return input, nil
}
