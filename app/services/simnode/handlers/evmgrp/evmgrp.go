// Package evmgrp maintains the group of handlers that speak the EVM-Lite
// node api.
package evmgrp

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/ardanlabs/poagov/business/core/chain"
	"github.com/ardanlabs/poagov/business/web/errs"
	"github.com/ardanlabs/poagov/foundation/events"
	"github.com/ardanlabs/poagov/foundation/evmlite"
	"github.com/ardanlabs/poagov/foundation/web"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// maxRawTx bounds the size of a submitted transaction.
const maxRawTx = 1 << 20

// Handlers manages the set of node endpoints.
type Handlers struct {
	Log   *zap.SugaredLogger
	Chain *chain.Chain
	WS    websocket.Upgrader
	Evts  *events.Events
}

// Account returns the balance, nonce and code of an address.
func (h Handlers) Account(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	address := web.Param(r, "address")
	if !common.IsHexAddress(address) {
		return errs.BadRequest(fmt.Errorf("invalid address %q", address))
	}

	return web.Respond(ctx, w, h.Chain.Account(common.HexToAddress(address)), http.StatusOK)
}

// Accounts returns every account holding a balance.
func (h Handlers) Accounts(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	return web.Respond(ctx, w, h.Chain.Accounts(), http.StatusOK)
}

// Call executes a read-only contract call.
func (h Handlers) Call(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	var args evmlite.CallArgs
	if err := web.Decode(r, &args); err != nil {
		return errs.BadRequest(err)
	}

	out, err := h.Chain.Call(args)
	if err != nil {
		if errors.Is(err, chain.ErrRevert) || errors.Is(err, chain.ErrNoContract) {
			return errs.BadRequest(err)
		}
		return err
	}

	resp := struct {
		Data string `json:"data"`
	}{
		Data: hexutil.Encode(out),
	}

	return web.Respond(ctx, w, resp, http.StatusOK)
}

// RawTx accepts a hex encoded signed transaction.
func (h Handlers) RawTx(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxRawTx))
	if err != nil {
		return errs.BadRequest(fmt.Errorf("read body: %w", err))
	}

	raw, err := hexutil.Decode(strings.TrimSpace(string(body)))
	if err != nil {
		return errs.BadRequest(fmt.Errorf("decode tx: %w", err))
	}

	hash, err := h.Chain.SubmitRawTx(raw)
	if err != nil {
		return errs.BadRequest(err)
	}

	h.Log.Infow("rawtx", "traceid", web.GetTraceID(ctx), "tx", hash.Hex())

	resp := struct {
		TxHash string `json:"txHash"`
	}{
		TxHash: hash.Hex(),
	}

	return web.Respond(ctx, w, resp, http.StatusOK)
}

// Receipt returns the receipt of a committed transaction.
func (h Handlers) Receipt(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	hash := web.Param(r, "hash")
	if _, err := hexutil.Decode(hash); err != nil {
		return errs.BadRequest(fmt.Errorf("invalid hash %q", hash))
	}

	rcpt, err := h.Chain.Receipt(common.HexToHash(hash))
	if err != nil {
		if errors.Is(err, chain.ErrNotFound) {
			return errs.NewTrusted(err, http.StatusNotFound)
		}
		return err
	}

	return web.Respond(ctx, w, rcpt, http.StatusOK)
}

// POA returns the governance contract.
func (h Handlers) POA(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	return web.Respond(ctx, w, h.Chain.POA(), http.StatusOK)
}

// Info returns the node status.
func (h Handlers) Info(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	return web.Respond(ctx, w, h.Chain.Info(), http.StatusOK)
}

// Genesis returns the genesis the node started from.
func (h Handlers) Genesis(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	return web.Respond(ctx, w, h.Chain.Genesis(), http.StatusOK)
}

// Block returns the latest committed block.
func (h Handlers) Block(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	block := h.Chain.LatestBlock()

	resp := struct {
		chain.Block
		Hash common.Hash `json:"hash"`
	}{
		Block: block,
		Hash:  block.Hash(),
	}

	return web.Respond(ctx, w, resp, http.StatusOK)
}

// Events handles a web socket to provide governance events to a client.
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

		case <-ctx.Done():
			return nil
		}
	}
}
