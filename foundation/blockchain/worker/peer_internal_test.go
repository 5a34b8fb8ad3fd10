package worker

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ardanlabs/powchain/foundation/blockchain/genesis"
	"github.com/ardanlabs/powchain/foundation/blockchain/peer"
	"github.com/ardanlabs/powchain/foundation/blockchain/state"
	"github.com/ethereum/go-ethereum/crypto"
)

// Success and failure markers.
const (
	success = "✓"
	failed  = "✗"
)

func Test_RemoveUnreachablePeers(t *testing.T) {
	t.Log("Given the need to drop peers that stop answering.")
	{
		live := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			json.NewEncoder(w).Encode(peer.PeerStatus{ChainLength: 1})
		}))
		defer live.Close()

		gone := httptest.NewServer(http.NotFoundHandler())
		gone.Close()

		knownPeers := peer.NewPeerSet()
		knownPeers.Add(peer.New(live.URL))
		knownPeers.Add(peer.New(gone.URL))

		key, err := crypto.GenerateKey()
		if err != nil {
			t.Fatalf("\t%s\tShould be able to generate a key: %v", failed, err)
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

		w := Worker{
			state:     st,
			evHandler: func(v string, args ...any) { t.Logf(v, args...) },
		}

		w.runPeersOperation()

		peers := st.RetrieveKnownPeers()
		if len(peers) != 1 || peers[0].Host != peer.New(live.URL).Host {
			t.Fatalf("\t%s\tShould only keep the reachable peer: %v", failed, peers)
		}
		t.Logf("\t%s\tShould only keep the reachable peer.", success)
	}
}
