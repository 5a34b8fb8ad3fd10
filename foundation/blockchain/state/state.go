// Package state is the core API for the blockchain and implements all the
// business rules and processing.
package state

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/ardanlabs/powchain/foundation/blockchain/database"
	"github.com/ardanlabs/powchain/foundation/blockchain/genesis"
	"github.com/ardanlabs/powchain/foundation/blockchain/mempool"
	"github.com/ardanlabs/powchain/foundation/blockchain/peer"
	"github.com/ardanlabs/powchain/foundation/blockchain/wallet"
	"go.uber.org/ratelimit"
)

// maxPeerRequestsPerSecond bounds the outbound requests made to peers when
// sharing blocks and transactions.
const maxPeerRequestsPerSecond = 50

// EventHandler defines a function that is called when events
// occur in the processing of the blockchain.
type EventHandler func(v string, args ...any)

// Worker interface represents the behavior required to be implemented by any
// package providing support for mining, peer updates, and block and
// transaction sharing.
type Worker interface {
	Shutdown()
	SignalStartMining()
	SignalShareBlock(block database.Block)
	SignalShareTx(tx database.Tx)
}

// =============================================================================

// Config represents the configuration required to start
// the blockchain node.
type Config struct {
	Genesis    genesis.Genesis
	WalletKey  *ecdsa.PrivateKey
	Host       string
	KnownPeers *peer.PeerSet
	AutoMine   bool
	EvHandler  EventHandler
}

// State manages the blockchain database, the mempool and the node wallet.
type State struct {
	host      string
	autoMine  bool
	evHandler EventHandler

	genesis    genesis.Genesis
	knownPeers *peer.PeerSet
	db         *database.Database
	mempool    *mempool.Mempool
	wallet     *wallet.Wallet
	client     *http.Client

	// Only one mining operation at a time. The cancel function for the
	// running operation is kept so an accepted peer chain can stop it.
	miningMu     sync.Mutex
	cancelMu     sync.Mutex
	cancelMining context.CancelFunc

	// Serializes pool writes that build on pending transactions against
	// mining and chain replacement. A pending transaction can't be updated
	// between being picked for a block and being cleared from the pool.
	poolMu sync.Mutex

	limiter ratelimit.Limiter

	Worker Worker
}

// New constructs a new blockchain for data management.
func New(cfg Config) (*State, error) {
	if cfg.WalletKey == nil {
		return nil, errors.New("wallet key is required")
	}

	// Build a safe event handler function for use.
	ev := func(v string, args ...any) {
		if cfg.EvHandler != nil {
			cfg.EvHandler(v, args...)
		}
	}

	knownPeers := cfg.KnownPeers
	if knownPeers == nil {
		knownPeers = peer.NewPeerSet()
	}

	db := database.New(cfg.Genesis, ev)

	// Create the State to provide support for managing the blockchain.
	state := State{
		host:      cfg.Host,
		autoMine:  cfg.AutoMine,
		evHandler: ev,

		genesis:    cfg.Genesis,
		knownPeers: knownPeers,
		db:         db,
		mempool:    mempool.New(),
		wallet:     wallet.FromKey(cfg.WalletKey, db),
		client:     &http.Client{Timeout: 10 * time.Second},
		limiter:    ratelimit.New(maxPeerRequestsPerSecond),

		Worker: nopWorker{},
	}

	// The Worker set here does nothing. The call to worker.Run will assign
	// itself and start everything up and running for the node.

	return &state, nil
}

// Shutdown cleanly brings the node down.
func (s *State) Shutdown() error {
	s.evHandler("state: shutdown: started")
	defer s.evHandler("state: shutdown: completed")

	// Stop any mining operation in flight.
	s.stopMining()

	// Stop all blockchain writing activity.
	s.Worker.Shutdown()

	return nil
}

// IsAutoMining reports if the node mines on its own when transactions
// arrive.
func (s *State) IsAutoMining() bool {
	return s.autoMine
}

// =============================================================================

// nopWorker is used until a real worker registers itself.
type nopWorker struct{}

func (nopWorker) Shutdown()                       {}
func (nopWorker) SignalStartMining()              {}
func (nopWorker) SignalShareBlock(database.Block) {}
func (nopWorker) SignalShareTx(database.Tx)       {}
