package handlers_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/ardanlabs/powchain/app/services/node/handlers"
	"github.com/ardanlabs/powchain/business/web/errs"
	"github.com/ardanlabs/powchain/foundation/blockchain/database"
	"github.com/ardanlabs/powchain/foundation/blockchain/genesis"
	"github.com/ardanlabs/powchain/foundation/blockchain/peer"
	"github.com/ardanlabs/powchain/foundation/blockchain/state"
	"github.com/ardanlabs/powchain/foundation/events"
	"github.com/ardanlabs/powchain/foundation/nameservice"
	"github.com/ethereum/go-ethereum/crypto"
	"go.uber.org/zap"
)

// Success and failure markers.
const (
	success = "✓"
	failed  = "✗"
)

const (
	miner1ECDSA = "8dc79feefd3b86e2f9991def0e5ccd9a5128e104682407b308594bc1032ac7f0"
	miner2ECDSA = "9f332e3700d8fc2446eaf6d15034cf96e0c2745e40353deef032a5dbf1dfed93"
	recipient   = "0xF01813E4B85e178A83e29B8E7bF26BD830a25f32"
)

type node struct {
	state   *state.State
	public  http.Handler
	private http.Handler
}

func newNode(t *testing.T, hexKey string) node {
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

	ns, err := nameservice.New(t.TempDir())
	if err != nil {
		t.Fatalf("Should be able to construct the name service: %v", err)
	}

	cfg := handlers.MuxConfig{
		Shutdown: make(chan os.Signal, 1),
		Log:      zap.NewNop().Sugar(),
		State:    st,
		NS:       ns,
		Evts:     events.New(),
	}

	return node{
		state:   st,
		public:  handlers.PublicMux(cfg),
		private: handlers.PrivateMux(cfg),
	}
}

func call(t *testing.T, h http.Handler, method string, path string, body any, resp any) int {
	t.Helper()

	var data []byte
	switch b := body.(type) {
	case nil:
	case string:
		data = []byte(b)
	default:
		var err error
		if data, err = json.Marshal(b); err != nil {
			t.Fatalf("Should be able to marshal the body: %v", err)
		}
	}

	r := httptest.NewRequest(method, path, bytes.NewReader(data))
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)

	if resp != nil {
		if err := json.NewDecoder(w.Body).Decode(resp); err != nil {
			t.Fatalf("Should be able to decode the response for %s: %v", path, err)
		}
	}

	return w.Code
}

// =============================================================================

func Test_PublicRoutes(t *testing.T) {
	t.Log("Given the need to drive the node through the public api.")
	{
		n := newNode(t, miner1ECDSA)

		var chain []database.Block
		if code := call(t, n.public, http.MethodGet, "/v1/blockchain", nil, &chain); code != http.StatusOK || len(chain) != 1 {
			t.Fatalf("\t%s\tShould get back the genesis chain: %d, %d", failed, code, len(chain))
		}
		t.Logf("\t%s\tShould get back the genesis chain.", success)

		var er errs.Response
		code := call(t, n.public, http.MethodPost, "/v1/wallet/transact", `{"recipient":"bill","amount":0}`, &er)
		if code != http.StatusBadRequest || er.Fields["recipient"] == "" || er.Fields["amount"] == "" {
			t.Fatalf("\t%s\tShould reject an invalid request with field errors: %d, %v", failed, code, er)
		}
		t.Logf("\t%s\tShould reject an invalid request with field errors.", success)

		code = call(t, n.public, http.MethodPost, "/v1/wallet/transact", map[string]any{"recipient": recipient, "amount": 5000}, &er)
		if code != http.StatusBadRequest || !strings.Contains(er.Error, "exceeds balance") {
			t.Fatalf("\t%s\tShould reject an amount above the balance: %d, %v", failed, code, er)
		}
		t.Logf("\t%s\tShould reject an amount above the balance.", success)

		var tx database.Tx
		if code := call(t, n.public, http.MethodPost, "/v1/wallet/transact", map[string]any{"recipient": recipient, "amount": 100}, &tx); code != http.StatusOK {
			t.Fatalf("\t%s\tShould be able to transact: %d", failed, code)
		}
		if tx.Output[recipient] != 100 {
			t.Fatalf("\t%s\tShould get back the transaction: %v", failed, tx.Output)
		}
		t.Logf("\t%s\tShould be able to transact.", success)

		var pending []map[string]any
		if code := call(t, n.public, http.MethodGet, "/v1/tx/uncommitted/list", nil, &pending); code != http.StatusOK || len(pending) != 1 {
			t.Fatalf("\t%s\tShould list the pending transaction: %d, %d", failed, code, len(pending))
		}
		t.Logf("\t%s\tShould list the pending transaction.", success)

		var mined struct {
			Block database.Block `json:"block"`
		}
		if code := call(t, n.public, http.MethodPost, "/v1/blockchain/mine", nil, &mined); code != http.StatusOK {
			t.Fatalf("\t%s\tShould be able to mine a block: %d", failed, code)
		}
		if len(mined.Block.Data) != 2 {
			t.Fatalf("\t%s\tShould mine the transaction and the reward: %d", failed, len(mined.Block.Data))
		}
		t.Logf("\t%s\tShould be able to mine a block.", success)

		var info state.WalletInfo
		if code := call(t, n.public, http.MethodGet, "/v1/wallet/info", nil, &info); code != http.StatusOK {
			t.Fatalf("\t%s\tShould get the wallet info: %d", failed, code)
		}
		if exp := uint64(genesis.DefaultStartingBalance - 100 + genesis.DefaultMiningReward); info.Balance != exp {
			t.Fatalf("\t%s\tShould get the balance after mining: got %d, exp %d", failed, info.Balance, exp)
		}
		t.Logf("\t%s\tShould get the balance after mining.", success)

		var bal struct {
			Balance uint64 `json:"balance"`
		}
		if code := call(t, n.public, http.MethodGet, "/v1/balance/"+recipient, nil, &bal); code != http.StatusOK || bal.Balance != genesis.DefaultStartingBalance+100 {
			t.Fatalf("\t%s\tShould get the recipient balance: %d, %d", failed, code, bal.Balance)
		}
		t.Logf("\t%s\tShould get the recipient balance.", success)
	}
}

func Test_PrivateRoutes(t *testing.T) {
	t.Log("Given the need to exchange blocks between nodes.")
	{
		n1 := newNode(t, miner1ECDSA)
		n2 := newNode(t, miner2ECDSA)

		block, err := n2.state.MineNewBlock(t.Context())
		if err != nil {
			t.Fatalf("\t%s\tShould be able to mine a block: %v", failed, err)
		}

		if code := call(t, n1.private, http.MethodPost, "/v1/node/block/propose", block, nil); code != http.StatusOK {
			t.Fatalf("\t%s\tShould accept the proposed block: %d", failed, code)
		}
		t.Logf("\t%s\tShould accept the proposed block.", success)

		if code := call(t, n1.private, http.MethodPost, "/v1/node/block/propose", block, nil); code != http.StatusNotAcceptable {
			t.Fatalf("\t%s\tShould not accept the same block twice: %d", failed, code)
		}
		t.Logf("\t%s\tShould not accept the same block twice.", success)

		var status peer.PeerStatus
		if code := call(t, n1.private, http.MethodGet, "/v1/node/status", nil, &status); code != http.StatusOK {
			t.Fatalf("\t%s\tShould get the node status: %d", failed, code)
		}
		if status.ChainLength != 2 || status.LatestBlockHash != block.Hash {
			t.Fatalf("\t%s\tShould report the new tail: %d, %s", failed, status.ChainLength, status.LatestBlockHash)
		}
		t.Logf("\t%s\tShould report the new tail.", success)

		var chain []database.Block
		if code := call(t, n1.private, http.MethodGet, "/v1/node/chain", nil, &chain); code != http.StatusOK || len(chain) != 2 {
			t.Fatalf("\t%s\tShould get the full chain: %d, %d", failed, code, len(chain))
		}
		t.Logf("\t%s\tShould get the full chain.", success)

		if code := call(t, n1.private, http.MethodPost, "/v1/node/peers", peer.New("localhost:9180"), nil); code != http.StatusNoContent {
			t.Fatalf("\t%s\tShould be able to add a peer: %d", failed, code)
		}
		if peers := n1.state.RetrieveKnownPeers(); len(peers) != 1 || peers[0].Host != "localhost:9180" {
			t.Fatalf("\t%s\tShould know the new peer: %v", failed, peers)
		}
		t.Logf("\t%s\tShould be able to add a peer.", success)

		if code := call(t, n1.private, http.MethodPost, "/v1/node/block/propose", `{"hash":`, nil); code != http.StatusBadRequest {
			t.Fatalf("\t%s\tShould reject a malformed block: %d", failed, code)
		}
		t.Logf("\t%s\tShould reject a malformed block.", success)
	}
}
