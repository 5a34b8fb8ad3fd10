package state

import (
	"github.com/ardanlabs/powchain/foundation/blockchain/database"
	"github.com/ardanlabs/powchain/foundation/blockchain/genesis"
	"github.com/ardanlabs/powchain/foundation/blockchain/peer"
)

// WalletInfo represents the address and balance of the node wallet.
type WalletInfo struct {
	Address string `json:"address"`
	Balance uint64 `json:"balance"`
}

// RetrieveChain returns a copy of the current chain.
func (s *State) RetrieveChain() []database.Block {
	return s.db.Blocks()
}

// RetrieveLatestBlock returns a copy the current latest block.
func (s *State) RetrieveLatestBlock() database.Block {
	return s.db.LatestBlock()
}

// RetrieveChainLength returns the number of blocks in the chain.
func (s *State) RetrieveChainLength() int {
	return s.db.Length()
}

// RetrieveMempool returns a copy of the mempool.
func (s *State) RetrieveMempool() []database.Tx {
	return s.mempool.PickAll()
}

// RetrieveMempoolLength returns the number of transactions waiting to be mined.
func (s *State) RetrieveMempoolLength() int {
	return s.mempool.Count()
}

// RetrieveBalance returns the balance for the address.
func (s *State) RetrieveBalance(address string) uint64 {
	return s.db.Balance(address)
}

// WalletInfo returns the address and balance of the node wallet.
func (s *State) WalletInfo() WalletInfo {
	return WalletInfo{
		Address: s.wallet.Address(),
		Balance: s.wallet.Balance(),
	}
}

// RetrieveHost returns a copy of host information.
func (s *State) RetrieveHost() string {
	return s.host
}

// RetrieveGenesis returns a copy of the genesis information.
func (s *State) RetrieveGenesis() genesis.Genesis {
	return s.genesis
}

// RetrieveKnownPeers retrieves a copy of the known peer list.
func (s *State) RetrieveKnownPeers() []peer.Peer {
	return s.knownPeers.Copy(s.host)
}

// RetrieveStatus returns the status of this node for its peers.
func (s *State) RetrieveStatus() peer.PeerStatus {
	chain := s.db.Blocks()

	return peer.PeerStatus{
		LatestBlockHash: chain[len(chain)-1].Hash,
		ChainLength:     len(chain),
		KnownPeers:      s.RetrieveKnownPeers(),
	}
}

// AddKnownPeer provides the ability to add a new peer to
// the known peer list.
func (s *State) AddKnownPeer(pr peer.Peer) bool {
	if pr.Match(s.host) {
		return false
	}
	return s.knownPeers.Add(pr)
}

// RemoveKnownPeer provides the ability to remove a peer from
// the known peer list.
func (s *State) RemoveKnownPeer(pr peer.Peer) {
	s.knownPeers.Remove(pr)
}
