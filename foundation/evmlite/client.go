// Package evmlite provides a client for the HTTP API exposed by an EVM-Lite
// node. It covers account lookups, read-only calls, raw transaction
// submission, receipts and the governance contract discovery endpoint.
package evmlite

import (
	"bytes"
	"context"
	"crypto/ecdsa"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/sethvargo/go-retry"
)

// Set of defaults used when submitting transactions.
const (
	DefaultGas     = 1_000_000
	DefaultChainID = 1
)

// Set of error variables for the client.
var (
	ErrNotFound = errors.New("not found")
	ErrTimeout  = errors.New("timed out waiting for receipt")
)

// EventHandler defines a function that is called when events
// occur while talking to a node.
type EventHandler func(v string, args ...any)

// Config represents the settings for a client.
type Config struct {
	Host      string
	Port      int
	ChainID   int64
	Client    *http.Client
	EvHandler EventHandler
}

// Client talks to a single node.
type Client struct {
	baseURL   string
	chainID   *big.Int
	client    *http.Client
	evHandler EventHandler
}

// New constructs a client for the node at the configured host and port.
func New(cfg Config) *Client {
	ev := func(v string, args ...any) {
		if cfg.EvHandler != nil {
			cfg.EvHandler(v, args...)
		}
	}

	chainID := cfg.ChainID
	if chainID == 0 {
		chainID = DefaultChainID
	}

	client := cfg.Client
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}

	host := cfg.Host
	if !strings.HasPrefix(host, "http://") && !strings.HasPrefix(host, "https://") {
		host = "http://" + host
	}

	return &Client{
		baseURL:   fmt.Sprintf("%s:%d", host, cfg.Port),
		chainID:   big.NewInt(chainID),
		client:    client,
		evHandler: ev,
	}
}

// BaseURL returns the url the client is sending requests to.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// ChainID returns the chain id used to sign transactions.
func (c *Client) ChainID() *big.Int {
	return new(big.Int).Set(c.chainID)
}

// =============================================================================

// Account returns the balance, nonce and code for the specified address.
func (c *Client) Account(ctx context.Context, address common.Address) (Account, error) {
	var acct Account
	if err := c.send(ctx, http.MethodGet, "/account/"+address.Hex(), nil, &acct); err != nil {
		return Account{}, err
	}

	if acct.Balance == nil {
		acct.Balance = new(big.Int)
	}

	return acct, nil
}

// Call executes a read-only call against the node's current state and
// returns the raw return data.
func (c *Client) Call(ctx context.Context, args CallArgs) ([]byte, error) {
	if args.Gas == 0 {
		args.Gas = DefaultGas
	}
	if args.GasPrice == nil {
		args.GasPrice = new(big.Int)
	}
	if args.Value == nil {
		args.Value = new(big.Int)
	}

	data, err := json.Marshal(args)
	if err != nil {
		return nil, fmt.Errorf("marshal call args: %w", err)
	}

	var res callResult
	if err := c.send(ctx, http.MethodPost, "/call", bytes.NewReader(data), &res); err != nil {
		return nil, err
	}

	out, err := hexutil.Decode(normalizeHex(res.Data))
	if err != nil {
		return nil, fmt.Errorf("decode call result: %w", err)
	}

	return out, nil
}

// SendRawTx submits a signed transaction and returns its hash.
func (c *Client) SendRawTx(ctx context.Context, tx *types.Transaction) (common.Hash, error) {
	raw, err := tx.MarshalBinary()
	if err != nil {
		return common.Hash{}, fmt.Errorf("encode tx: %w", err)
	}

	var res txResult
	body := strings.NewReader(hexutil.Encode(raw))
	if err := c.send(ctx, http.MethodPost, "/rawtx", body, &res); err != nil {
		return common.Hash{}, err
	}

	c.evHandler("evmlite: SendRawTx: node[%s]: tx[%s]", c.baseURL, res.TxHash)

	return common.HexToHash(res.TxHash), nil
}

// Receipt returns the receipt for the specified transaction. ErrNotFound
// is returned when the node does not know the transaction yet.
func (c *Client) Receipt(ctx context.Context, hash common.Hash) (Receipt, error) {
	var rcpt Receipt
	if err := c.send(ctx, http.MethodGet, "/tx/"+hash.Hex(), nil, &rcpt); err != nil {
		return Receipt{}, err
	}

	return rcpt, nil
}

// WaitReceipt polls the node until the receipt for the transaction is
// available or the timeout expires. Only a not found answer is polled again,
// any other failure is returned at once.
func (c *Client) WaitReceipt(ctx context.Context, hash common.Hash, timeout time.Duration) (Receipt, error) {
	backoff := retry.NewConstant(250 * time.Millisecond)
	backoff = retry.WithMaxDuration(timeout, backoff)

	var rcpt Receipt
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		r, err := c.Receipt(ctx, hash)
		switch {
		case errors.Is(err, ErrNotFound):
			c.evHandler("evmlite: WaitReceipt: tx[%s]: pending", hash.Hex())
			return retry.RetryableError(err)

		case err != nil:
			return err
		}
		rcpt = r
		return nil
	})

	switch {
	case err == nil:
		return rcpt, nil

	case ctx.Err() != nil:
		return Receipt{}, ctx.Err()

	case errors.Is(err, ErrNotFound):
		return Receipt{}, fmt.Errorf("%w: tx[%s]: %w", ErrTimeout, hash.Hex(), err)
	}

	return Receipt{}, fmt.Errorf("receipt tx[%s]: %w", hash.Hex(), err)
}

// Submit signs and sends a transaction from the account owning the private
// key. The nonce is read from the node. A nil to address creates a contract.
func (c *Client) Submit(ctx context.Context, privateKey *ecdsa.PrivateKey, to *common.Address, value *big.Int, data []byte) (common.Hash, error) {
	from := crypto.PubkeyToAddress(privateKey.PublicKey)

	acct, err := c.Account(ctx, from)
	if err != nil {
		return common.Hash{}, fmt.Errorf("nonce for %s: %w", from.Hex(), err)
	}

	if value == nil {
		value = new(big.Int)
	}

	tx := types.NewTx(&types.LegacyTx{
		Nonce:    acct.Nonce,
		To:       to,
		Value:    value,
		Gas:      DefaultGas,
		GasPrice: new(big.Int),
		Data:     data,
	})

	signedTx, err := types.SignTx(tx, types.NewEIP155Signer(c.chainID), privateKey)
	if err != nil {
		return common.Hash{}, fmt.Errorf("sign tx: %w", err)
	}

	return c.SendRawTx(ctx, signedTx)
}

// Transfer moves value between accounts with no call data.
func (c *Client) Transfer(ctx context.Context, privateKey *ecdsa.PrivateKey, to common.Address, value *big.Int) (common.Hash, error) {
	return c.Submit(ctx, privateKey, &to, value, nil)
}

// POA returns the address and ABI of the governance contract the node
// is running with.
func (c *Client) POA(ctx context.Context) (Contract, error) {
	var ctr Contract
	if err := c.send(ctx, http.MethodGet, "/poa", nil, &ctr); err != nil {
		return Contract{}, err
	}

	return ctr, nil
}

// Info returns the node's status information.
func (c *Client) Info(ctx context.Context) (map[string]string, error) {
	info := make(map[string]string)
	if err := c.send(ctx, http.MethodGet, "/info", nil, &info); err != nil {
		return nil, err
	}

	return info, nil
}

// =============================================================================

func (c *Client) send(ctx context.Context, method string, path string, body io.Reader, v any) error {
	url := c.baseURL + path

	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, url, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return fmt.Errorf("%s %s: %w", method, url, ErrNotFound)

	case resp.StatusCode != http.StatusOK:
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		text := strings.TrimSpace(string(msg))

		// EVM-Lite nodes answer an unknown key from their store with a 500.
		if resp.StatusCode == http.StatusInternalServerError && strings.Contains(strings.ToLower(text), "not found") {
			return fmt.Errorf("%s %s: %s: %w", method, url, text, ErrNotFound)
		}

		return fmt.Errorf("%s %s: status %d: %s", method, url, resp.StatusCode, text)
	}

	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("decode %s response: %w", path, err)
	}

	return nil
}

// normalizeHex makes sure the value carries a 0x prefix and has an even
// number of digits.
func normalizeHex(s string) string {
	s = strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
	if len(s)%2 == 1 {
		s = "0" + s
	}
	return "0x" + s
}
