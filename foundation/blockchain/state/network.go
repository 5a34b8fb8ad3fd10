package state

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/ardanlabs/powchain/foundation/blockchain/database"
	"github.com/ardanlabs/powchain/foundation/blockchain/peer"
)

const baseURL = "http://%s/v1/node"

// NetSendBlockToPeers takes the new mined block and sends it to all known
// peers. Every peer is tried, the errors are returned together. Requests are
// throttled across all peers.
func (s *State) NetSendBlockToPeers(block database.Block) error {
	s.evHandler("state: NetSendBlockToPeers: started")
	defer s.evHandler("state: NetSendBlockToPeers: completed")

	var errs []error
	for _, pr := range s.RetrieveKnownPeers() {
		s.limiter.Take()

		if err := s.NetSendBlockToPeer(pr, block); err != nil {
			errs = append(errs, err)
			continue
		}

		s.evHandler("state: NetSendBlockToPeers: sent to peer[%s]", pr.Host)
	}

	return errors.Join(errs...)
}

// NetSendBlockToPeer proposes the block to the specified peer.
func (s *State) NetSendBlockToPeer(pr peer.Peer, block database.Block) error {
	url := fmt.Sprintf("%s/block/propose", fmt.Sprintf(baseURL, pr.Host))

	var status struct {
		Status string `json:"status"`
	}

	if err := s.send(http.MethodPost, url, block, &status); err != nil {
		return fmt.Errorf("%s: %w", pr.Host, err)
	}

	return nil
}

// NetSendTxToPeers shares a new transaction with the known peers.
func (s *State) NetSendTxToPeers(tx database.Tx) {
	s.evHandler("state: NetSendTxToPeers: started")
	defer s.evHandler("state: NetSendTxToPeers: completed")

	for _, pr := range s.RetrieveKnownPeers() {
		s.limiter.Take()

		if err := s.NetSendTxToPeer(pr, tx); err != nil {
			s.evHandler("state: NetSendTxToPeers: WARNING: %s", err)
		}
	}
}

// NetSendTxToPeer shares the transaction with the specified peer.
func (s *State) NetSendTxToPeer(pr peer.Peer, tx database.Tx) error {
	url := fmt.Sprintf("%s/tx/submit", fmt.Sprintf(baseURL, pr.Host))

	if err := s.send(http.MethodPost, url, tx, nil); err != nil {
		return fmt.Errorf("%s: %w", pr.Host, err)
	}

	return nil
}

// NetSendNodeAvailableToPeers shares this node as a new peer with the
// known peers.
func (s *State) NetSendNodeAvailableToPeers() {
	s.evHandler("state: NetSendNodeAvailableToPeers: started")
	defer s.evHandler("state: NetSendNodeAvailableToPeers: completed")

	host := peer.New(s.host)

	for _, pr := range s.RetrieveKnownPeers() {
		url := fmt.Sprintf("%s/peers", fmt.Sprintf(baseURL, pr.Host))

		if err := s.send(http.MethodPost, url, host, nil); err != nil {
			s.evHandler("state: NetSendNodeAvailableToPeers: WARNING: %s: %s", pr.Host, err)
		}
	}
}

// NetRequestPeerStatus asks the peer for the state of its chain and the
// peers it knows about.
func (s *State) NetRequestPeerStatus(pr peer.Peer) (peer.PeerStatus, error) {
	s.evHandler("state: NetRequestPeerStatus: started: %s", pr.Host)
	defer s.evHandler("state: NetRequestPeerStatus: completed: %s", pr.Host)

	url := fmt.Sprintf("%s/status", fmt.Sprintf(baseURL, pr.Host))

	var ps peer.PeerStatus
	if err := s.send(http.MethodGet, url, nil, &ps); err != nil {
		return peer.PeerStatus{}, err
	}

	s.evHandler("state: NetRequestPeerStatus: peer-node[%s]: chain-length[%d]: peer-list[%v]", pr.Host, ps.ChainLength, ps.KnownPeers)

	return ps, nil
}

// NetRequestPeerChain asks the peer for its full chain.
func (s *State) NetRequestPeerChain(pr peer.Peer) ([]database.Block, error) {
	s.evHandler("state: NetRequestPeerChain: started: %s", pr.Host)
	defer s.evHandler("state: NetRequestPeerChain: completed: %s", pr.Host)

	url := fmt.Sprintf("%s/chain", fmt.Sprintf(baseURL, pr.Host))

	var blocks []database.Block
	if err := s.send(http.MethodGet, url, nil, &blocks); err != nil {
		return nil, err
	}

	s.evHandler("state: NetRequestPeerChain: found blocks[%d]", len(blocks))

	return blocks, nil
}

// NetRequestPeerMempool asks the peer for the transactions in their mempool.
func (s *State) NetRequestPeerMempool(pr peer.Peer) ([]database.Tx, error) {
	s.evHandler("state: NetRequestPeerMempool: started: %s", pr.Host)
	defer s.evHandler("state: NetRequestPeerMempool: completed: %s", pr.Host)

	url := fmt.Sprintf("%s/tx/list", fmt.Sprintf(baseURL, pr.Host))

	var mempool []database.Tx
	if err := s.send(http.MethodGet, url, nil, &mempool); err != nil {
		return nil, err
	}

	s.evHandler("state: NetRequestPeerMempool: len[%d]", len(mempool))

	return mempool, nil
}

// =============================================================================

// send is a helper function to send an HTTP request to a node.
func (s *State) send(method string, url string, dataSend any, dataRecv any) error {
	var body io.Reader
	if dataSend != nil {
		data, err := json.Marshal(dataSend)
		if err != nil {
			return err
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, url, body)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNoContent {
		return nil
	}

	if resp.StatusCode != http.StatusOK {
		msg, err := io.ReadAll(resp.Body)
		if err != nil {
			return err
		}
		return fmt.Errorf("status %d: %s", resp.StatusCode, bytes.TrimSpace(msg))
	}

	if dataRecv != nil {
		if err := json.NewDecoder(resp.Body).Decode(dataRecv); err != nil {
			return err
		}
	}

	return nil
}
