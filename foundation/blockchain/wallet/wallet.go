// Package wallet provides the identity used to sign transactions and the
// balance of that identity according to a ledger.
package wallet

import (
	"crypto/ecdsa"
	"fmt"

	"github.com/ardanlabs/powchain/foundation/blockchain/genesis"
	"github.com/ardanlabs/powchain/foundation/blockchain/signature"
	"github.com/ethereum/go-ethereum/crypto"
)

// Ledger represents the behavior required to derive the balance of an
// address.
type Ledger interface {
	Balance(address string) uint64
}

// Wallet holds a key pair and the ledger used to derive its balance. The
// private key never leaves the wallet.
type Wallet struct {
	privateKey *ecdsa.PrivateKey
	address    string
	publicKey  string
	ledger     Ledger
}

// New constructs a wallet with a freshly generated key.
func New(ledger Ledger) (*Wallet, error) {
	privateKey, err := crypto.GenerateKey()
	if err != nil {
		return nil, fmt.Errorf("generating key: %w", err)
	}

	return FromKey(privateKey, ledger), nil
}

// Load constructs a wallet from the key stored in the specified file.
func Load(path string, ledger Ledger) (*Wallet, error) {
	privateKey, err := crypto.LoadECDSA(path)
	if err != nil {
		return nil, fmt.Errorf("loading key %q: %w", path, err)
	}

	return FromKey(privateKey, ledger), nil
}

// FromKey constructs a wallet for an existing key.
func FromKey(privateKey *ecdsa.PrivateKey, ledger Ledger) *Wallet {
	return &Wallet{
		privateKey: privateKey,
		address:    signature.ToAddress(privateKey.PublicKey),
		publicKey:  signature.EncodePublicKey(privateKey.PublicKey),
		ledger:     ledger,
	}
}

// Save writes the key for this wallet to the specified file.
func (w *Wallet) Save(path string) error {
	return crypto.SaveECDSA(path, w.privateKey)
}

// Address returns the address of the wallet.
func (w *Wallet) Address() string {
	return w.address
}

// PublicKey returns the hex encoded public key of the wallet.
func (w *Wallet) PublicKey() string {
	return w.publicKey
}

// Balance returns the balance of the wallet according to its ledger. A
// wallet without a ledger has the default starting balance.
func (w *Wallet) Balance() uint64 {
	if w.ledger == nil {
		return genesis.DefaultStartingBalance
	}
	return w.ledger.Balance(w.address)
}

// Sign signs the value with the wallet's private key.
func (w *Wallet) Sign(value any) (signature.Signature, error) {
	return signature.Sign(value, w.privateKey)
}

// Verify reports if the signature was produced over the value by the owner
// of the public key. A malformed public key never verifies.
func Verify(publicKey string, value any, sig signature.Signature) bool {
	ok, err := signature.Verify(publicKey, value, sig)
	if err != nil {
		return false
	}
	return ok
}
