package worker

import (
	"github.com/ardanlabs/powchain/foundation/blockchain/peer"
)

// peerOperations handles finding new peers and catching up with peers
// that have a longer chain.
func (w *Worker) peerOperations() {
	w.evHandler("worker: peerOperations: G started")
	defer w.evHandler("worker: peerOperations: G completed")

	for {
		select {
		case <-w.ticker.C:
			if !w.isShutdown() {
				w.runPeersOperation()
			}
		case <-w.shut:
			w.evHandler("worker: peerOperations: received shut signal")
			return
		}
	}
}

// runPeersOperation updates the peer list and the chain.
func (w *Worker) runPeersOperation() {
	w.evHandler("worker: runPeersOperation: started")
	defer w.evHandler("worker: runPeersOperation: completed")

	for _, pr := range w.state.RetrieveKnownPeers() {

		// Retrieve the status of this peer.
		peerStatus, err := w.state.NetRequestPeerStatus(pr)
		if err != nil {
			w.evHandler("worker: runPeersOperation: queryPeerStatus: %s: ERROR: %s", pr.Host, err)

			// The peer is dropped until it announces itself again or
			// another peer reports it.
			w.state.RemoveKnownPeer(pr)
			continue
		}

		// Add new peers to this nodes list.
		w.addNewPeers(peerStatus.KnownPeers)

		// If this peer has a longer chain, it might be the one to follow.
		w.syncChain(pr, peerStatus)
	}
}

// addNewPeers takes the list of known peers and makes sure they are included
// in the nodes list of know peers.
func (w *Worker) addNewPeers(knownPeers []peer.Peer) {
	w.evHandler("worker: runPeerUpdatesOperation: addNewPeers: started")
	defer w.evHandler("worker: runPeerUpdatesOperation: addNewPeers: completed")

	for _, pr := range knownPeers {
		if w.state.AddKnownPeer(pr) {
			w.evHandler("worker: runPeerUpdatesOperation: addNewPeers: add peer nodes: adding peer-node %s", pr.Host)
		}
	}
}

// syncChain replaces the local chain with the peer's chain when the peer
// reports a longer one.
func (w *Worker) syncChain(pr peer.Peer, peerStatus peer.PeerStatus) {
	if peerStatus.ChainLength <= w.state.RetrieveChainLength() {
		return
	}

	w.evHandler("worker: syncChain: %s: chainLength[%d]", pr.Host, peerStatus.ChainLength)

	blocks, err := w.state.NetRequestPeerChain(pr)
	if err != nil {
		w.evHandler("worker: syncChain: requestPeerChain: %s: ERROR: %s", pr.Host, err)
		return
	}

	if err := w.state.SyncChain(blocks); err != nil {
		w.evHandler("worker: syncChain: %s: WARNING: %s", pr.Host, err)
	}
}
