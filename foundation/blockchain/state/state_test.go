package state_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/ardanlabs/powchain/foundation/blockchain/database"
	"github.com/ardanlabs/powchain/foundation/blockchain/genesis"
	"github.com/ardanlabs/powchain/foundation/blockchain/peer"
	"github.com/ardanlabs/powchain/foundation/blockchain/state"
	"github.com/ardanlabs/powchain/foundation/blockchain/wallet"
	"github.com/ethereum/go-ethereum/crypto"
)

// Success and failure markers.
const (
	success = "✓"
	failed  = "✗"
)

const (
	minerECDSA = "8dc79feefd3b86e2f9991def0e5ccd9a5128e104682407b308594bc1032ac7f0"
	recipient  = "0xF01813E4B85e178A83e29B8E7bF26BD830a25f32"
)

func newState(t *testing.T, hexKey string) *state.State {
	t.Helper()

	key, err := crypto.HexToECDSA(hexKey)
	if err != nil {
		t.Fatalf("Should be able to load the key: %v", err)
	}

	st, err := state.New(state.Config{
		Genesis:    genesis.Default(),
		WalletKey:  key,
		Host:       "localhost:9080",
		KnownPeers: peer.NewPeerSet(),
	})
	if err != nil {
		t.Fatalf("Should be able to construct the state: %v", err)
	}

	return st
}

// =============================================================================

func Test_MineWalletTransactions(t *testing.T) {
	t.Log("Given the need to mine transactions sent from the node wallet.")
	{
		st := newState(t, minerECDSA)

		if _, err := st.SubmitWalletTransaction(recipient, 100); err != nil {
			t.Fatalf("\t%s\tShould be able to submit a transaction: %v", failed, err)
		}

		tx, err := st.SubmitWalletTransaction(recipient, 50)
		if err != nil {
			t.Fatalf("\t%s\tShould be able to update the transaction: %v", failed, err)
		}
		t.Logf("\t%s\tShould be able to submit and update a transaction.", success)

		if st.RetrieveMempoolLength() != 1 || tx.Output[recipient] != 150 {
			t.Fatalf("\t%s\tShould have a single pending transaction for the wallet: %d, %v", failed, st.RetrieveMempoolLength(), tx.Output)
		}
		t.Logf("\t%s\tShould have a single pending transaction for the wallet.", success)

		block, err := st.MineNewBlock(context.Background())
		if err != nil {
			t.Fatalf("\t%s\tShould be able to mine a block: %v", failed, err)
		}
		t.Logf("\t%s\tShould be able to mine a block.", success)

		if len(block.Data) != 2 || !block.Data[1].Input.IsReward() {
			t.Fatalf("\t%s\tShould mine the transaction and the reward: %d txs", failed, len(block.Data))
		}
		t.Logf("\t%s\tShould mine the transaction and the reward.", success)

		if st.RetrieveMempoolLength() != 0 {
			t.Fatalf("\t%s\tShould clear the mempool.", failed)
		}
		t.Logf("\t%s\tShould clear the mempool.", success)

		info := st.WalletInfo()
		if info.Balance != 1000-150+50 {
			t.Fatalf("\t%s\tShould get the wallet balance: got %d, exp %d", failed, info.Balance, 1000-150+50)
		}
		t.Logf("\t%s\tShould get the wallet balance.", success)

		if err := database.ValidateChain(st.RetrieveChain(), st.RetrieveGenesis()); err != nil {
			t.Fatalf("\t%s\tShould have a valid chain: %v", failed, err)
		}
		t.Logf("\t%s\tShould have a valid chain.", success)

		if _, err := st.SubmitWalletTransaction(recipient, 2000); !errors.Is(err, database.ErrInsufficientBalance) {
			t.Fatalf("\t%s\tShould reject an amount over the balance: %v", failed, err)
		}
		t.Logf("\t%s\tShould reject an amount over the balance.", success)
	}
}

func Test_ProposedBlock(t *testing.T) {
	t.Log("Given the need to accept a block mined by a peer.")
	{
		miner := newState(t, minerECDSA)
		node := newState(t, "fae85851bdf5c9f49923722ce38f3c1defcfd3619ef5453230a58ad805499959")

		tx, err := miner.SubmitWalletTransaction(recipient, 10)
		if err != nil {
			t.Fatalf("\t%s\tShould be able to submit a transaction: %v", failed, err)
		}

		// The transaction is gossiped to the node before the block is.
		node.UpsertNodeTransaction(tx)

		block, err := miner.MineNewBlock(context.Background())
		if err != nil {
			t.Fatalf("\t%s\tShould be able to mine a block: %v", failed, err)
		}

		data, err := json.Marshal(block)
		if err != nil {
			t.Fatalf("\t%s\tShould be able to marshal the block: %v", failed, err)
		}

		var received database.Block
		if err := json.Unmarshal(data, &received); err != nil {
			t.Fatalf("\t%s\tShould be able to unmarshal the block: %v", failed, err)
		}

		if err := node.ProcessProposedBlock(received); err != nil {
			t.Fatalf("\t%s\tShould accept the block: %v", failed, err)
		}
		t.Logf("\t%s\tShould accept the block.", success)

		if node.RetrieveChainLength() != 2 || node.RetrieveLatestBlock().Hash != block.Hash {
			t.Fatalf("\t%s\tShould have the block at the tail of the chain.", failed)
		}
		t.Logf("\t%s\tShould have the block at the tail of the chain.", success)

		if node.RetrieveMempoolLength() != 0 {
			t.Fatalf("\t%s\tShould clear the mined transaction from the mempool.", failed)
		}
		t.Logf("\t%s\tShould clear the mined transaction from the mempool.", success)

		if err := node.ProcessProposedBlock(received); !errors.Is(err, database.ErrInvalidChain) {
			t.Fatalf("\t%s\tShould reject the same block twice: %v", failed, err)
		}
		t.Logf("\t%s\tShould reject the same block twice.", success)

		if err := node.SyncChain(miner.RetrieveChain()); !errors.Is(err, database.ErrChainTooShort) {
			t.Fatalf("\t%s\tShould reject a chain of the same length: %v", failed, err)
		}
		t.Logf("\t%s\tShould reject a chain of the same length.", success)
	}
}

func Test_SubmitSignedTransaction(t *testing.T) {
	t.Log("Given the need to accept transactions signed by outside wallets.")
	{
		st := newState(t, minerECDSA)

		w, err := wallet.New(nil)
		if err != nil {
			t.Fatalf("\t%s\tShould be able to construct a wallet: %v", failed, err)
		}

		tx, err := database.NewTx(w, recipient, 25)
		if err != nil {
			t.Fatalf("\t%s\tShould be able to construct a transaction: %v", failed, err)
		}

		if err := st.SubmitSignedTransaction(tx); err != nil {
			t.Fatalf("\t%s\tShould accept a valid transaction: %v", failed, err)
		}
		t.Logf("\t%s\tShould accept a valid transaction.", success)

		tampered := tx
		tampered.Output = database.Output{recipient: 26, w.Address(): 974}
		if err := st.SubmitSignedTransaction(tampered); !errors.Is(err, database.ErrInvalidSignature) {
			t.Fatalf("\t%s\tShould reject a tampered transaction: %v", failed, err)
		}
		t.Logf("\t%s\tShould reject a tampered transaction.", success)

		second, err := database.NewTx(w, recipient, 10)
		if err != nil {
			t.Fatalf("\t%s\tShould be able to construct a transaction: %v", failed, err)
		}
		if err := st.SubmitSignedTransaction(second); !errors.Is(err, state.ErrPendingTx) {
			t.Fatalf("\t%s\tShould reject a second pending transaction: %v", failed, err)
		}
		t.Logf("\t%s\tShould reject a second pending transaction.", success)

		if err := st.SubmitSignedTransaction(database.NewRewardTx(w.Address(), 50)); !errors.Is(err, database.ErrInvalidInput) {
			t.Fatalf("\t%s\tShould reject a reward transaction: %v", failed, err)
		}
		t.Logf("\t%s\tShould reject a reward transaction.", success)

		if st.RetrieveMempoolLength() != 1 {
			t.Fatalf("\t%s\tShould only have the valid transaction: got %d", failed, st.RetrieveMempoolLength())
		}
		t.Logf("\t%s\tShould only have the valid transaction.", success)
	}
}

func Test_NetRequestPeerChain(t *testing.T) {
	t.Log("Given the need to sync the chain from a peer.")
	{
		miner := newState(t, minerECDSA)
		if _, err := miner.MineNewBlock(context.Background()); err != nil {
			t.Fatalf("\t%s\tShould be able to mine a block: %v", failed, err)
		}

		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			switch r.URL.Path {
			case "/v1/node/chain":
				json.NewEncoder(w).Encode(miner.RetrieveChain())
			case "/v1/node/status":
				json.NewEncoder(w).Encode(miner.RetrieveStatus())
			default:
				http.NotFound(w, r)
			}
		}))
		defer srv.Close()

		node := newState(t, "fae85851bdf5c9f49923722ce38f3c1defcfd3619ef5453230a58ad805499959")
		pr := peer.New(srv.URL)

		status, err := node.NetRequestPeerStatus(pr)
		if err != nil {
			t.Fatalf("\t%s\tShould be able to request the peer status: %v", failed, err)
		}

		if status.ChainLength != 2 {
			t.Fatalf("\t%s\tShould get the peer chain length: got %d", failed, status.ChainLength)
		}
		t.Logf("\t%s\tShould get the peer chain length.", success)

		blocks, err := node.NetRequestPeerChain(pr)
		if err != nil {
			t.Fatalf("\t%s\tShould be able to request the peer chain: %v", failed, err)
		}
		t.Logf("\t%s\tShould be able to request the peer chain.", success)

		if err := node.SyncChain(blocks); err != nil {
			t.Fatalf("\t%s\tShould accept the longer chain: %v", failed, err)
		}
		t.Logf("\t%s\tShould accept the longer chain.", success)

		if node.RetrieveLatestBlock().Hash != miner.RetrieveLatestBlock().Hash {
			t.Fatalf("\t%s\tShould have the same tail as the peer.", failed)
		}
		t.Logf("\t%s\tShould have the same tail as the peer.", success)

		if _, err := node.NetRequestPeerMempool(pr); err == nil {
			t.Fatalf("\t%s\tShould get an error for a missing route.", failed)
		}
		t.Logf("\t%s\tShould get an error for a missing route.", success)
	}
}

func Test_TransactWhileMining(t *testing.T) {
	t.Log("Given the need to accept wallet transfers while a block is being mined.")
	{
		key, err := crypto.HexToECDSA(minerECDSA)
		if err != nil {
			t.Fatalf("\t%s\tShould be able to load the key: %v", failed, err)
		}

		var st *state.State
		var once sync.Once
		transferred := make(chan error, 1)

		// The second transfer is sent once the first one has been picked
		// for the block and the proof of work is running.
		ev := func(v string, args ...any) {
			if !strings.Contains(v, "perform POW") {
				return
			}
			once.Do(func() {
				go func() {
					_, err := st.SubmitWalletTransaction(recipient, 7)
					transferred <- err
				}()
			})
		}

		st, err = state.New(state.Config{
			Genesis:   genesis.Default(),
			WalletKey: key,
			EvHandler: ev,
		})
		if err != nil {
			t.Fatalf("\t%s\tShould be able to construct the state: %v", failed, err)
		}

		if _, err := st.SubmitWalletTransaction(recipient, 10); err != nil {
			t.Fatalf("\t%s\tShould be able to submit a transaction: %v", failed, err)
		}

		block, err := st.MineNewBlock(context.Background())
		if err != nil {
			t.Fatalf("\t%s\tShould be able to mine a block: %v", failed, err)
		}

		if err := <-transferred; err != nil {
			t.Fatalf("\t%s\tShould be able to submit a transfer while mining: %v", failed, err)
		}
		t.Logf("\t%s\tShould be able to submit a transfer while mining.", success)

		if len(block.Data) != 2 || block.Data[0].Output[recipient] != 10 {
			t.Fatalf("\t%s\tShould mine only the first transfer: %d txs", failed, len(block.Data))
		}
		t.Logf("\t%s\tShould mine only the first transfer.", success)

		mempool := st.RetrieveMempool()
		if len(mempool) != 1 || mempool[0].Output[recipient] != 7 {
			t.Fatalf("\t%s\tShould keep the second transfer pending: %d txs", failed, len(mempool))
		}
		t.Logf("\t%s\tShould keep the second transfer pending.", success)

		if _, err := st.MineNewBlock(context.Background()); err != nil {
			t.Fatalf("\t%s\tShould be able to mine a second block: %v", failed, err)
		}

		exp := uint64(1000 - 10 + 50 - 7 + 50)
		if got := st.WalletInfo().Balance; got != exp {
			t.Fatalf("\t%s\tShould apply both transfers: got %d, exp %d", failed, got, exp)
		}
		t.Logf("\t%s\tShould apply both transfers.", success)

		if got := st.RetrieveBalance(recipient); got != 1000+10+7 {
			t.Fatalf("\t%s\tShould credit the recipient with both transfers: got %d", failed, got)
		}
		t.Logf("\t%s\tShould credit the recipient with both transfers.", success)
	}
}

func Test_OneTxPerSender(t *testing.T) {
	t.Log("Given the need to keep a sender from spending the same balance twice in a block.")
	{
		st := newState(t, minerECDSA)

		w, err := wallet.New(nil)
		if err != nil {
			t.Fatalf("\t%s\tShould be able to construct a wallet: %v", failed, err)
		}

		first, err := database.NewTx(w, recipient, 600)
		if err != nil {
			t.Fatalf("\t%s\tShould be able to construct a transaction: %v", failed, err)
		}
		second, err := database.NewTx(w, "0x6Fe6CF3c8fF57c58d24BfC869668F48BCbDb3BD9", 600)
		if err != nil {
			t.Fatalf("\t%s\tShould be able to construct a transaction: %v", failed, err)
		}

		// Peers share transactions without the pending check.
		st.UpsertNodeTransaction(first)
		st.UpsertNodeTransaction(second)

		block, err := st.MineNewBlock(context.Background())
		if err != nil {
			t.Fatalf("\t%s\tShould be able to mine a block: %v", failed, err)
		}
		t.Logf("\t%s\tShould be able to mine a block.", success)

		var sent int
		for _, tx := range block.Data {
			if tx.Input.Address == w.Address() {
				sent++
			}
		}
		if len(block.Data) != 2 || sent != 1 {
			t.Fatalf("\t%s\tShould mine a single transaction from the sender: got %d of %d txs", failed, sent, len(block.Data))
		}
		t.Logf("\t%s\tShould mine a single transaction from the sender.", success)

		if err := database.ValidateChain(st.RetrieveChain(), st.RetrieveGenesis()); err != nil {
			t.Fatalf("\t%s\tShould have a valid chain: %v", failed, err)
		}
		t.Logf("\t%s\tShould have a valid chain.", success)

		if got := st.RetrieveBalance(w.Address()); got != 400 {
			t.Fatalf("\t%s\tShould spend the sender balance once: got %d", failed, got)
		}
		t.Logf("\t%s\tShould spend the sender balance once.", success)

		if _, err := st.MineNewBlock(context.Background()); err != nil {
			t.Fatalf("\t%s\tShould be able to mine a second block: %v", failed, err)
		}

		if st.RetrieveMempoolLength() != 0 || st.RetrieveBalance(w.Address()) != 400 {
			t.Fatalf("\t%s\tShould drop the transaction spending the old balance.", failed)
		}
		t.Logf("\t%s\tShould drop the transaction spending the old balance.", success)
	}
}

func Test_NetSendToPeers(t *testing.T) {
	t.Log("Given the need to share blocks and transactions with every known peer.")
	{
		var mu sync.Mutex
		received := make(map[string]int)

		newPeer := func(accept bool) *httptest.Server {
			return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				mu.Lock()
				received[r.Host+r.URL.Path]++
				mu.Unlock()

				switch {
				case r.URL.Path == "/v1/node/tx/submit":
					w.WriteHeader(http.StatusNoContent)
				case r.URL.Path == "/v1/node/block/propose" && accept:
					json.NewEncoder(w).Encode(struct {
						Status string `json:"status"`
					}{Status: "accepted"})
				case r.URL.Path == "/v1/node/block/propose":
					http.Error(w, `{"error":"block not accepted"}`, http.StatusNotAcceptable)
				default:
					http.NotFound(w, r)
				}
			}))
		}

		accepting := newPeer(true)
		defer accepting.Close()
		rejecting := newPeer(false)
		defer rejecting.Close()

		knownPeers := peer.NewPeerSet()
		knownPeers.Add(peer.New(accepting.URL))
		knownPeers.Add(peer.New(rejecting.URL))

		key, err := crypto.HexToECDSA(minerECDSA)
		if err != nil {
			t.Fatalf("\t%s\tShould be able to load the key: %v", failed, err)
		}

		st, err := state.New(state.Config{
			Genesis:    genesis.Default(),
			WalletKey:  key,
			Host:       "localhost:9080",
			KnownPeers: knownPeers,
		})
		if err != nil {
			t.Fatalf("\t%s\tShould be able to construct the state: %v", failed, err)
		}

		tx, err := st.SubmitWalletTransaction(recipient, 10)
		if err != nil {
			t.Fatalf("\t%s\tShould be able to submit a transaction: %v", failed, err)
		}
		st.NetSendTxToPeers(tx)

		block, err := st.MineNewBlock(context.Background())
		if err != nil {
			t.Fatalf("\t%s\tShould be able to mine a block: %v", failed, err)
		}

		err = st.NetSendBlockToPeers(block)
		if err == nil {
			t.Fatalf("\t%s\tShould get an error from the rejecting peer.", failed)
		}
		t.Logf("\t%s\tShould get an error from the rejecting peer.", success)

		rejectingHost := peer.New(rejecting.URL).Host
		if !strings.Contains(err.Error(), rejectingHost) || strings.Contains(err.Error(), peer.New(accepting.URL).Host) {
			t.Fatalf("\t%s\tShould only name the rejecting peer: %v", failed, err)
		}
		t.Logf("\t%s\tShould only name the rejecting peer.", success)

		mu.Lock()
		defer mu.Unlock()

		for _, srv := range []*httptest.Server{accepting, rejecting} {
			host := peer.New(srv.URL).Host
			if received[host+"/v1/node/tx/submit"] != 1 || received[host+"/v1/node/block/propose"] != 1 {
				t.Fatalf("\t%s\tShould reach peer %s once per share: %v", failed, host, received)
			}
		}
		t.Logf("\t%s\tShould reach every peer once per share.", success)
	}
}
