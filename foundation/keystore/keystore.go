// Package keystore lists and decrypts the encrypted account files kept in a
// node's keystore directory.
package keystore

import (
	"context"
	"crypto/ecdsa"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/ardanlabs/poagov/foundation/evmlite"
	"github.com/ethereum/go-ethereum/accounts/keystore"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/hashicorp/go-multierror"
)

// ErrNoAccounts is returned when the keystore directory holds no key files.
var ErrNoAccounts = errors.New("no accounts in keystore")

// EventHandler defines a function that is called when events
// occur while unlocking accounts.
type EventHandler func(v string, args ...any)

// Fetcher provides the on-chain state for an address.
type Fetcher interface {
	Account(ctx context.Context, address common.Address) (evmlite.Account, error)
}

// Entry is a key file found in the keystore directory.
type Entry struct {
	Path    string
	Address common.Address
	Balance *big.Int
	Nonce   uint64
}

// Account is a decrypted signing credential.
type Account struct {
	Address    common.Address
	PrivateKey *ecdsa.PrivateKey
}

// IsZero reports whether the account is unbound.
func (a Account) IsZero() bool {
	return a.PrivateKey == nil
}

// =============================================================================

// Keystore represents a directory of encrypted key files.
type Keystore struct {
	dir       string
	scryptN   int
	scryptP   int
	evHandler EventHandler
}

// Option configures a keystore.
type Option func(ks *Keystore)

// WithLightScrypt uses the light scrypt parameters when creating keys.
func WithLightScrypt() Option {
	return func(ks *Keystore) {
		ks.scryptN = keystore.LightScryptN
		ks.scryptP = keystore.LightScryptP
	}
}

// WithEvHandler reports files that are skipped while listing the keystore.
func WithEvHandler(ev EventHandler) Option {
	return func(ks *Keystore) {
		ks.evHandler = ev
	}
}

// New constructs a keystore for the specified directory.
func New(dir string, options ...Option) *Keystore {
	ks := Keystore{
		dir:     dir,
		scryptN: keystore.StandardScryptN,
		scryptP: keystore.StandardScryptP,
	}

	for _, option := range options {
		option(&ks)
	}

	return &ks
}

// Dir returns the directory of the keystore.
func (ks *Keystore) Dir() string {
	return ks.dir
}

// List returns every key file in the directory ordered by file name. When a
// fetcher is provided the balance and nonce of each address are filled in.
// Files that are not key files are reported to the event handler and left
// out.
func (ks *Keystore) List(ctx context.Context, fetcher Fetcher) ([]Entry, error) {
	return ks.list(ctx, fetcher, func(path string, err error) {
		if ks.evHandler != nil {
			ks.evHandler("keystore: List: file[%s]: SKIPPED: %s", path, err)
		}
	})
}

// list reads the key files and calls skip for every file that is not one.
func (ks *Keystore) list(ctx context.Context, fetcher Fetcher, skip func(path string, err error)) ([]Entry, error) {
	files, err := os.ReadDir(ks.dir)
	if err != nil {
		return nil, fmt.Errorf("read keystore: %w", err)
	}

	var entries []Entry
	for _, file := range files {
		if file.IsDir() || strings.HasPrefix(file.Name(), ".") {
			continue
		}

		path := filepath.Join(ks.dir, file.Name())
		address, err := keyAddress(path)
		if err != nil {
			skip(path, fmt.Errorf("not a key file: %w", err))
			continue
		}

		entries = append(entries, Entry{
			Path:    path,
			Address: address,
			Balance: new(big.Int),
		})
	}

	if len(entries) == 0 {
		return nil, fmt.Errorf("%s: %w", ks.dir, ErrNoAccounts)
	}

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Path < entries[j].Path
	})

	if fetcher == nil {
		return entries, nil
	}

	for i := range entries {
		acct, err := fetcher.Account(ctx, entries[i].Address)
		if err != nil {
			return nil, fmt.Errorf("account %s: %w", entries[i].Address.Hex(), err)
		}
		entries[i].Balance = acct.Balance
		entries[i].Nonce = acct.Nonce
	}

	return entries, nil
}

// Decrypt unlocks the key file for the entry with the password.
func (ks *Keystore) Decrypt(entry Entry, password string) (Account, error) {
	keyJSON, err := os.ReadFile(entry.Path)
	if err != nil {
		return Account{}, fmt.Errorf("read key: %w", err)
	}

	key, err := keystore.DecryptKey(keyJSON, password)
	if err != nil {
		return Account{}, fmt.Errorf("decrypt %s: %w", entry.Address.Hex(), err)
	}

	return Account{
		Address:    key.Address,
		PrivateKey: key.PrivateKey,
	}, nil
}

// Unlock lists the keystore and decrypts every entry with the shared
// password. Files that are not keys and entries that fail to decrypt are
// reported and skipped. The returned error then holds every failure while
// the accounts that could be decrypted are still returned in listing order.
func (ks *Keystore) Unlock(ctx context.Context, fetcher Fetcher, password string, ev EventHandler) ([]Account, error) {
	if ev == nil {
		ev = func(string, ...any) {}
	}

	var skipped error

	entries, err := ks.list(ctx, fetcher, func(path string, err error) {
		ev("keystore: Unlock: file[%s]: SKIPPED: %s", path, err)
		skipped = multierror.Append(skipped, fmt.Errorf("%s: %w", path, err))
	})
	if err != nil {
		if skipped != nil {
			return nil, multierror.Append(skipped, err)
		}
		return nil, err
	}

	var accounts []Account

	for _, entry := range entries {
		ev("keystore: Unlock: address[%s]: balance[%s]: nonce[%d]", entry.Address.Hex(), entry.Balance, entry.Nonce)

		acct, err := ks.Decrypt(entry, password)
		if err != nil {
			ev("keystore: Unlock: address[%s]: SKIPPED: %s", entry.Address.Hex(), err)
			skipped = multierror.Append(skipped, err)
			continue
		}

		accounts = append(accounts, acct)
	}

	return accounts, skipped
}

// Generate creates a new key file encrypted with the password.
func (ks *Keystore) Generate(password string) (Entry, error) {
	store := keystore.NewKeyStore(ks.dir, ks.scryptN, ks.scryptP)

	acct, err := store.NewAccount(password)
	if err != nil {
		return Entry{}, fmt.Errorf("new account: %w", err)
	}

	return Entry{
		Path:    acct.URL.Path,
		Address: acct.Address,
		Balance: new(big.Int),
	}, nil
}

// Import stores an existing private key encrypted with the password.
func (ks *Keystore) Import(privateKey *ecdsa.PrivateKey, password string) (Entry, error) {
	store := keystore.NewKeyStore(ks.dir, ks.scryptN, ks.scryptP)

	acct, err := store.ImportECDSA(privateKey, password)
	if err != nil {
		return Entry{}, fmt.Errorf("import %s: %w", crypto.PubkeyToAddress(privateKey.PublicKey).Hex(), err)
	}

	return Entry{
		Path:    acct.URL.Path,
		Address: acct.Address,
		Balance: new(big.Int),
	}, nil
}

// =============================================================================

// ReadPassword returns the content of the password file without the
// trailing line break.
func ReadPassword(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read password: %w", err)
	}

	return strings.TrimRight(string(data), "\r\n"), nil
}

// keyAddress reads the address field of a key file without decrypting it.
func keyAddress(path string) (common.Address, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return common.Address{}, err
	}

	var key struct {
		Address string `json:"address"`
	}
	if err := json.Unmarshal(data, &key); err != nil {
		return common.Address{}, err
	}

	if !common.IsHexAddress(key.Address) {
		return common.Address{}, fmt.Errorf("invalid address %q", key.Address)
	}

	return common.HexToAddress(key.Address), nil
}
