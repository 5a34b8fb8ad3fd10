// Package public maintains the group of handlers for public access.
package public

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"time"

	"github.com/ardanlabs/powchain/business/sys/metrics"
	"github.com/ardanlabs/powchain/business/web/errs"
	"github.com/ardanlabs/powchain/foundation/blockchain/database"
	"github.com/ardanlabs/powchain/foundation/blockchain/state"
	"github.com/ardanlabs/powchain/foundation/events"
	"github.com/ardanlabs/powchain/foundation/nameservice"
	"github.com/ardanlabs/powchain/foundation/web"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Handlers manages the set of public node endpoints.
type Handlers struct {
	Log   *zap.SugaredLogger
	State *state.State
	NS    *nameservice.NameService
	WS    websocket.Upgrader
	Evts  *events.Events
}

// Events handles a web socket to provide events to a client.
func (h Handlers) Events(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	v, err := web.GetValues(ctx)
	if err != nil {
		return web.NewShutdownError("web value missing from context")
	}

	h.WS.CheckOrigin = func(r *http.Request) bool { return true }

	c, err := h.WS.Upgrade(w, r, nil)
	if err != nil {
		return err
	}
	defer c.Close()

	ch := h.Evts.Acquire(v.TraceID)
	defer h.Evts.Release(v.TraceID)

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case msg, wd := <-ch:
			if !wd {
				return nil
			}

			if err := c.WriteMessage(websocket.TextMessage, []byte(msg)); err != nil {
				return err
			}

		case <-ticker.C:
			if err := c.WriteMessage(websocket.PingMessage, []byte("ping")); err != nil {
				return nil
			}
		}
	}
}

// Genesis returns the genesis information.
func (h Handlers) Genesis(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	gen := h.State.RetrieveGenesis()
	return web.Respond(ctx, w, gen, http.StatusOK)
}

// Blockchain returns the full chain held by the node.
func (h Handlers) Blockchain(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	return web.Respond(ctx, w, h.State.RetrieveChain(), http.StatusOK)
}

// Mine mines the pending transactions into a new block.
func (h Handlers) Mine(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	block, err := h.State.MineNewBlock(ctx)
	if err != nil {
		switch {
		case errors.Is(err, database.ErrChainChanged), errors.Is(err, context.Canceled):
			return errs.NewTrusted(fmt.Errorf("mining interrupted: %w", err), http.StatusConflict)
		}
		return fmt.Errorf("mining block: %w", err)
	}

	metrics.AddBlocksMined()

	resp := mined{
		Status: "block mined",
		Block:  block,
	}

	return web.Respond(ctx, w, resp, http.StatusOK)
}

// WalletInfo returns the address and balance of the node wallet.
func (h Handlers) WalletInfo(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	return web.Respond(ctx, w, h.State.WalletInfo(), http.StatusOK)
}

// Balance returns the balance for the specified address.
func (h Handlers) Balance(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	address := web.Param(r, "address")

	resp := balance{
		Address: address,
		Name:    h.NS.Lookup(address),
		Balance: h.State.RetrieveBalance(address),
	}

	return web.Respond(ctx, w, resp, http.StatusOK)
}

// Transact sends an amount from the node wallet to a recipient.
func (h Handlers) Transact(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	v, err := web.GetValues(ctx)
	if err != nil {
		return web.NewShutdownError("web value missing from context")
	}

	var req transact
	if err := web.Decode(r, &req); err != nil {
		return errs.NewTrusted(err, http.StatusBadRequest)
	}

	h.Log.Infow("wallet transact", "traceid", v.TraceID, "recipient", req.Recipient, "amount", req.Amount)

	tx, err := h.State.SubmitWalletTransaction(req.Recipient, req.Amount)
	if err != nil {
		return errs.NewTrusted(err, http.StatusBadRequest)
	}

	return web.Respond(ctx, w, tx, http.StatusOK)
}

// SubmitTransaction accepts a transaction signed by an outside wallet.
func (h Handlers) SubmitTransaction(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	v, err := web.GetValues(ctx)
	if err != nil {
		return web.NewShutdownError("web value missing from context")
	}

	var tx database.Tx
	if err := web.Decode(r, &tx); err != nil {
		return errs.NewTrusted(err, http.StatusBadRequest)
	}

	h.Log.Infow("submit tx", "traceid", v.TraceID, "tx", tx)

	if err := h.State.SubmitSignedTransaction(tx); err != nil {
		return errs.NewTrusted(err, http.StatusBadRequest)
	}

	resp := struct {
		Status string `json:"status"`
	}{
		Status: "transaction added to mempool",
	}

	return web.Respond(ctx, w, resp, http.StatusOK)
}

// Mempool returns the set of uncommitted transactions.
func (h Handlers) Mempool(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	mempool := h.State.RetrieveMempool()

	txs := make([]tx, len(mempool))
	for i, mtx := range mempool {
		outputs := make([]output, 0, len(mtx.Output))
		for address, amount := range mtx.Output {
			outputs = append(outputs, output{
				Address: address,
				Name:    h.NS.Lookup(address),
				Amount:  amount,
			})
		}
		sort.Slice(outputs, func(i, j int) bool {
			return outputs[i].Address < outputs[j].Address
		})

		var sig string
		if mtx.Input.Signature != nil {
			sig = mtx.Input.Signature.String()
		}

		txs[i] = tx{
			ID:        mtx.ID,
			TimeStamp: mtx.Input.TimeStamp,
			From:      mtx.Input.Address,
			FromName:  h.NS.Lookup(mtx.Input.Address),
			Balance:   mtx.Input.Amount,
			Outputs:   outputs,
			Sig:       sig,
		}
	}

	return web.Respond(ctx, w, txs, http.StatusOK)
}
