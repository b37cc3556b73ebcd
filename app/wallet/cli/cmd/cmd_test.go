package cmd

import (
	"bytes"
	"crypto/ecdsa"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/ardanlabs/poagov/app/services/simnode/handlers"
	"github.com/ardanlabs/poagov/business/core/chain"
	"github.com/ardanlabs/poagov/business/core/chain/worker"
	"github.com/ardanlabs/poagov/foundation/events"
	"github.com/ardanlabs/poagov/foundation/genesis"
	"github.com/ardanlabs/poagov/foundation/keystore"
	"github.com/ethereum/go-ethereum/crypto"
	"go.uber.org/zap"
)

const (
	success = "\u2713"
	failed  = "\u2717"
)

const pkHexKey = "fae85851bdf5c9f49923722ce38f3c1defcfd3619ef5453230a58ad805499959"

// wallet starts a node whose only member is the key imported into a fresh
// keystore and returns the flags every command needs.
func wallet(t *testing.T) []string {
	pk, err := crypto.HexToECDSA(pkHexKey)
	if err != nil {
		t.Fatalf("Should be able to load the key: %s", err)
	}
	member := crypto.PubkeyToAddress(pk.PublicKey)

	gen := genesis.Genesis{
		Alloc: map[string]genesis.Alloc{
			genesis.TidyAddress(member.Hex()): {Balance: "1000000000"},
		},
		POA: &genesis.POA{
			Whitelist: []genesis.Person{{Address: member.Hex(), Moniker: "Node0"}},
		},
	}

	evts := events.New()
	ch, err := chain.New(chain.Config{Genesis: gen})
	if err != nil {
		t.Fatalf("Should be able to construct the chain: %s", err)
	}
	worker.Run(ch, 50*time.Millisecond, nil)

	srv := httptest.NewServer(handlers.APIMux(handlers.MuxConfig{
		Shutdown: make(chan os.Signal, 1),
		Log:      zap.NewNop().Sugar(),
		Chain:    ch,
		Evts:     evts,
	}))
	t.Cleanup(func() {
		evts.Shutdown()
		srv.Close()
		ch.Shutdown()
	})

	dir := t.TempDir()
	ksDir := filepath.Join(dir, "keystore")
	pwd := filepath.Join(dir, "pwd.txt")
	if err := os.WriteFile(pwd, []byte("secret\n"), 0600); err != nil {
		t.Fatalf("Should be able to write the password file: %s", err)
	}

	if _, err := keystore.New(ksDir, keystore.WithLightScrypt()).Import(pk, "secret"); err != nil {
		t.Fatalf("Should be able to import the key: %s", err)
	}

	return []string{
		"--node", strings.TrimPrefix(srv.URL, "http://"),
		"--keystore", ksDir,
		"--pwd", pwd,
		"--timeout", "5s",
	}
}

func run(t *testing.T, args ...string) (string, error) {
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)

	err := rootCmd.Execute()
	return out.String(), err
}

// =============================================================================

func Test_Wallet(t *testing.T) {
	t.Log("Given the need to govern the network from the wallet.")
	{
		testID := 0
		t.Logf("\tTest %d:\tWhen nominating and voting in a new member.", testID)
		{
			flags := wallet(t)
			nominee := crypto.CreateAddress(crypto.PubkeyToAddress(mustKey(t).PublicKey), 7).Hex()

			out, err := run(t, append([]string{"nominate", nominee, "Node1", "--value", "1"}, flags...)...)
			if err != nil {
				t.Fatalf("\t%s\tTest %d:\tShould be able to nominate: %s", failed, testID, err)
			}
			if !strings.Contains(out, "NomineeProposed") {
				t.Logf("\t%s\tTest %d:\tgot: %s", failed, testID, out)
				t.Fatalf("\t%s\tTest %d:\tShould print the proposal event.", failed, testID)
			}
			t.Logf("\t%s\tTest %d:\tShould be able to nominate.", success, testID)

			out, err = run(t, append([]string{"vote", nominee, "yes", "--value", "1"}, flags...)...)
			if err != nil {
				t.Fatalf("\t%s\tTest %d:\tShould be able to vote: %s", failed, testID, err)
			}
			if !strings.Contains(out, "NomineeDecision") {
				t.Logf("\t%s\tTest %d:\tgot: %s", failed, testID, out)
				t.Fatalf("\t%s\tTest %d:\tShould print the decision event.", failed, testID)
			}
			t.Logf("\t%s\tTest %d:\tShould be able to vote.", success, testID)

			out, err = run(t, append([]string{"status", nominee}, flags...)...)
			if err != nil {
				t.Fatalf("\t%s\tTest %d:\tShould be able to read the status: %s", failed, testID, err)
			}
			if !strings.Contains(out, "whitelisted: true") || !strings.Contains(out, "members:     2") {
				t.Logf("\t%s\tTest %d:\tgot: %s", failed, testID, out)
				t.Fatalf("\t%s\tTest %d:\tShould report the nominee as a member.", failed, testID)
			}
			t.Logf("\t%s\tTest %d:\tShould report the nominee as a member.", success, testID)
		}

		testID = 1
		t.Logf("\tTest %d:\tWhen sending value.", testID)
		{
			flags := wallet(t)
			to := "0x0000000000000000000000000000000000000abc"

			if _, err := run(t, append([]string{"send", "--to", to, "--value", "250"}, flags...)...); err != nil {
				t.Fatalf("\t%s\tTest %d:\tShould be able to send: %s", failed, testID, err)
			}
			t.Logf("\t%s\tTest %d:\tShould be able to send.", success, testID)

			out, err := run(t, append([]string{"balance", to}, flags...)...)
			if err != nil {
				t.Fatalf("\t%s\tTest %d:\tShould be able to read the balance: %s", failed, testID, err)
			}
			if !strings.HasSuffix(strings.TrimSpace(out), "250") {
				t.Logf("\t%s\tTest %d:\tgot: %s", failed, testID, out)
				t.Fatalf("\t%s\tTest %d:\tShould see the value arrive.", failed, testID)
			}
			t.Logf("\t%s\tTest %d:\tShould see the value arrive.", success, testID)
		}

		testID = 2
		t.Logf("\tTest %d:\tWhen handed a bad vote.", testID)
		{
			if _, err := parseVote("maybe"); err == nil {
				t.Fatalf("\t%s\tTest %d:\tShould reject a vote that is not yes or no.", failed, testID)
			}
			t.Logf("\t%s\tTest %d:\tShould reject a vote that is not yes or no.", success, testID)
		}
	}
}

func mustKey(t *testing.T) *ecdsa.PrivateKey {
	pk, err := crypto.HexToECDSA(pkHexKey)
	if err != nil {
		t.Fatalf("Should be able to load the key: %s", err)
	}
	return pk
}
