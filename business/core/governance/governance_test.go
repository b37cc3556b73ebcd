package governance_test

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/ardanlabs/poagov/business/core/governance"
	"github.com/ardanlabs/poagov/foundation/evmlite"
	"github.com/ardanlabs/poagov/foundation/keystore"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
)

const (
	success = "\u2713"
	failed  = "\u2717"
)

const pkHexKey = "fae85851bdf5c9f49923722ce38f3c1defcfd3619ef5453230a58ad805499959"

var poaAddress = common.HexToAddress("0xabbaabbaabbaabbaabbaabbaabbaabbaabbaabba")

// fakeClient records what the proxy sends and hands back canned answers.
type fakeClient struct {
	mu       sync.Mutex
	calls    []evmlite.CallArgs
	submits  [][]byte
	waits    int
	callOut  []byte
	receipt  evmlite.Receipt
	waitErr  error
	lastHash common.Hash
}

func (f *fakeClient) Call(ctx context.Context, args evmlite.CallArgs) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.calls = append(f.calls, args)
	return f.callOut, nil
}

func (f *fakeClient) Submit(ctx context.Context, pk *ecdsa.PrivateKey, to *common.Address, value *big.Int, data []byte) (common.Hash, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.submits = append(f.submits, data)
	f.lastHash = crypto.Keccak256Hash(data)
	return f.lastHash, nil
}

func (f *fakeClient) WaitReceipt(ctx context.Context, hash common.Hash, timeout time.Duration) (evmlite.Receipt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.waits++
	rcpt := f.receipt
	rcpt.TxHash = hash
	return rcpt, f.waitErr
}

func account(t *testing.T) keystore.Account {
	t.Helper()

	pk, err := crypto.HexToECDSA(pkHexKey)
	if err != nil {
		t.Fatalf("Should be able to load the private key: %s", err)
	}

	return keystore.Account{Address: crypto.PubkeyToAddress(pk.PublicKey), PrivateKey: pk}
}

func load(t *testing.T, client governance.Client) *governance.Contract {
	t.Helper()

	ctr, err := governance.Load(governance.Config{
		Client:  client,
		Address: poaAddress,
		Account: account(t),
	})
	if err != nil {
		t.Fatalf("Should be able to load the default abi: %s", err)
	}

	return ctr
}

// =============================================================================

func Test_ZeroValueNeverWaits(t *testing.T) {
	t.Log("Given the need to invoke a state changing method without value.")
	{
		testID := 0
		t.Logf("\tTest %d:\tWhen calling submitNominee with value 0.", testID)
		{
			client := fakeClient{}
			ctr := load(t, &client)

			nominee := common.HexToAddress("0x0000000000000000000000000000000000000002")
			res, err := ctr.SubmitNominee(context.Background(), nominee, "Node 2", big.NewInt(0))
			if err != nil {
				t.Fatalf("\t%s\tTest %d:\tShould be able to submit: %s", failed, testID, err)
			}
			t.Logf("\t%s\tTest %d:\tShould be able to submit.", success, testID)

			if client.waits != 0 || res.Waited() {
				t.Fatalf("\t%s\tTest %d:\tShould never wait for a receipt, waited %d times.", failed, testID, client.waits)
			}
			t.Logf("\t%s\tTest %d:\tShould never wait for a receipt.", success, testID)

			if res.Response() != client.lastHash.Hex() {
				t.Fatalf("\t%s\tTest %d:\tShould return the immediate response: %v", failed, testID, res.Response())
			}
			t.Logf("\t%s\tTest %d:\tShould return the immediate response.", success, testID)

			if len(client.submits) != 1 || hexutil.Encode(client.submits[0][:4]) != "0x"+common.Bytes2Hex(ctrSelector(t, ctr, "submitNominee")) {
				t.Fatalf("\t%s\tTest %d:\tShould send the submitNominee selector.", failed, testID)
			}
			t.Logf("\t%s\tTest %d:\tShould send the submitNominee selector.", success, testID)
		}

		testID++
		t.Logf("\tTest %d:\tWhen calling a read-only method.", testID)
		{
			client := fakeClient{callOut: common.LeftPadBytes([]byte{1}, 32)}
			ctr := load(t, &client)

			ok, err := ctr.IsWhitelisted(context.Background(), account(t).Address)
			if err != nil {
				t.Fatalf("\t%s\tTest %d:\tShould be able to query: %s", failed, testID, err)
			}

			if !ok || len(client.calls) != 1 || len(client.submits) != 0 || client.waits != 0 {
				t.Fatalf("\t%s\tTest %d:\tShould answer from a call only: ok[%v] calls[%d] submits[%d] waits[%d]", failed, testID, ok, len(client.calls), len(client.submits), client.waits)
			}
			t.Logf("\t%s\tTest %d:\tShould answer from a call only.", success, testID)

			if *client.calls[0].To != poaAddress || client.calls[0].From != account(t).Address {
				t.Fatalf("\t%s\tTest %d:\tShould address the contract from the bound account.", failed, testID)
			}
			t.Logf("\t%s\tTest %d:\tShould address the contract from the bound account.", success, testID)
		}
	}
}

func Test_ValueWaitsAndDecodes(t *testing.T) {
	t.Log("Given the need to invoke a method with value attached.")
	{
		ctrABI := loadCaps(t).ABI()
		nominee := common.HexToAddress("0x0000000000000000000000000000000000000002")
		voter := account(t).Address

		topics, data, err := governance.EncodeEvent(ctrABI, "NomineeVoteCast", nominee, voter, 1, 0, true)
		if err != nil {
			t.Fatalf("\t%s\tShould be able to encode an event: %s", failed, err)
		}

		client := fakeClient{
			receipt: evmlite.Receipt{
				Status: 1,
				Logs: []evmlite.Log{
					{Address: poaAddress, Topics: topics, Data: data, Index: 0},
					{Address: poaAddress, Topics: []common.Hash{common.HexToHash("0xdead")}, Data: []byte{1}, Index: 1},
				},
			},
		}
		ctr := load(t, &client)

		testID := 0
		t.Logf("\tTest %d:\tWhen casting a vote with value 20000.", testID)
		{
			res, err := ctr.CastNomineeVote(context.Background(), nominee, true, big.NewInt(20000))
			if err != nil {
				t.Fatalf("\t%s\tTest %d:\tShould be able to vote: %s", failed, testID, err)
			}
			t.Logf("\t%s\tTest %d:\tShould be able to vote.", success, testID)

			if client.waits != 1 || !res.Waited() {
				t.Fatalf("\t%s\tTest %d:\tShould wait for the receipt.", failed, testID)
			}
			t.Logf("\t%s\tTest %d:\tShould wait for the receipt.", success, testID)

			if len(res.Events) != 2 {
				t.Fatalf("\t%s\tTest %d:\tShould decode both logs, got %d.", failed, testID, len(res.Events))
			}

			ev := res.Events[0]
			if ev.Name != "NomineeVoteCast" || ev.Args["_nominee"] != nominee || ev.Args["_voter"] != voter || ev.Args["_accepted"] != true {
				t.Fatalf("\t%s\tTest %d:\tShould decode the vote event: %s %v", failed, testID, ev.Name, ev.Args)
			}
			if yes, ok := ev.Args["_yesVotes"].(*big.Int); !ok || yes.Int64() != 1 {
				t.Fatalf("\t%s\tTest %d:\tShould decode the yes votes: %v", failed, testID, ev.Args["_yesVotes"])
			}
			t.Logf("\t%s\tTest %d:\tShould decode the vote event.", success, testID)

			if res.Events[1].Name != governance.NoEventName {
				t.Fatalf("\t%s\tTest %d:\tShould label the unknown log %q, got %q.", failed, testID, governance.NoEventName, res.Events[1].Name)
			}
			t.Logf("\t%s\tTest %d:\tShould label the unknown log.", success, testID)
		}

		testID++
		t.Logf("\tTest %d:\tWhen the transaction reverts.", testID)
		{
			client.receipt.Status = 0

			_, err := ctr.SubmitNominee(context.Background(), nominee, "Node 2", big.NewInt(10000))
			if !errors.Is(err, governance.ErrReverted) {
				t.Fatalf("\t%s\tTest %d:\tShould get ErrReverted: %v", failed, testID, err)
			}
			t.Logf("\t%s\tTest %d:\tShould get ErrReverted.", success, testID)
		}
	}
}

func Test_LocalValidation(t *testing.T) {
	type table struct {
		name   string
		method string
		args   []any
		err    error
	}

	tt := []table{
		{name: "unknown", method: "launchMissiles", err: governance.ErrUnknownMethod},
		{name: "count", method: "isNominee", args: []any{}, err: governance.ErrArgumentCount},
		{name: "bad-address", method: "isNominee", args: []any{"node2"}, err: governance.ErrArgumentType},
		{name: "bad-bool", method: "castNomineeVote", args: []any{"0x0000000000000000000000000000000000000002", "maybe"}, err: governance.ErrArgumentType},
		{name: "long-moniker", method: "submitNominee", args: []any{"0x0000000000000000000000000000000000000002", "a moniker that is far too long for bytes32"}, err: governance.ErrArgumentType},
	}

	for _, tst := range tt {
		f := func(t *testing.T) {
			client := fakeClient{}
			ctr := load(t, &client)

			_, err := ctr.Invoke(context.Background(), tst.method, big.NewInt(10000), tst.args...)
			if !errors.Is(err, tst.err) {
				t.Logf("Test %s:\tgot: %v", tst.name, err)
				t.Logf("Test %s:\texp: %v", tst.name, tst.err)
				t.Fatalf("Test %s:\tShould fail locally.", tst.name)
			}

			if len(client.calls)+len(client.submits) != 0 {
				t.Fatalf("Test %s:\tShould not send anything to the node.", tst.name)
			}
		}

		t.Run(tst.name, f)
	}
}

func Test_Coerce(t *testing.T) {
	caps := loadCaps(t)

	submit, err := caps.Lookup("submitNominee")
	if err != nil {
		t.Fatalf("Should find submitNominee: %s", err)
	}

	text, err := submit.Pack("0x0000000000000000000000000000000000000002", "Nick")
	if err != nil {
		t.Fatalf("Should pack a text moniker: %s", err)
	}

	hex, err := submit.Pack(common.HexToAddress("0x02"), "0x4e69636b")
	if err != nil {
		t.Fatalf("Should pack a hex moniker: %s", err)
	}

	if hexutil.Encode(text) != hexutil.Encode(hex) {
		t.Logf("got: %x", hex)
		t.Logf("exp: %x", text)
		t.Fatalf("Should pack text and hex monikers the same way.")
	}

	if got := submit.Inputs(); len(got) != 2 || got[0] != "address" || got[1] != "bytes32" {
		t.Fatalf("Should describe the input types: %v", got)
	}

	if !submit.Payable || submit.ReadOnly {
		t.Fatalf("Should mark submitNominee payable and state changing.")
	}

	count, err := caps.Resolve("getWhiteListCount", "dev_getWhitelistCount")
	if err != nil || !count.ReadOnly {
		t.Fatalf("Should resolve the whitelist count as read-only: %v", err)
	}

	votes, err := caps.Lookup("dev_getCurrentNomineeVotes")
	if err != nil {
		t.Fatalf("Should find dev_getCurrentNomineeVotes: %s", err)
	}

	out, err := votes.Unpack(append(common.LeftPadBytes([]byte{2}, 32), common.LeftPadBytes([]byte{1}, 32)...))
	if err != nil {
		t.Fatalf("Should unpack two integers: %s", err)
	}
	if out[0].(*big.Int).Int64() != 2 || out[1].(*big.Int).Int64() != 1 {
		t.Fatalf("Should get back yes 2 no 1: %v", out)
	}
}

func Test_Deploy(t *testing.T) {
	client := fakeClient{
		receipt: evmlite.Receipt{Status: 1, ContractAddress: common.HexToAddress("0x1234")},
	}

	ctr, err := governance.Load(governance.Config{
		Client:   &client,
		Bytecode: "6080604052",
		Account:  account(t),
	})
	if err != nil {
		t.Fatalf("Should be able to load the contract: %s", err)
	}

	if _, err := ctr.IsNominee(context.Background(), common.Address{}); !errors.Is(err, governance.ErrNotDeployed) {
		t.Fatalf("Should refuse calls before deployment: %v", err)
	}

	deployed, _, err := ctr.Deploy(context.Background(), nil, "Node 1")
	if err != nil {
		t.Fatalf("Should be able to deploy: %s", err)
	}

	if deployed.Address() != common.HexToAddress("0x1234") {
		t.Fatalf("Should bind to the receipt contract address: %s", deployed.Address().Hex())
	}

	data := client.submits[0]
	if len(data) != 5+32 || hexutil.Encode(data[:5]) != "0x6080604052" {
		t.Fatalf("Should send bytecode followed by the constructor moniker: %x", data)
	}
}

// =============================================================================

func loadCaps(t *testing.T) *governance.Capabilities {
	t.Helper()

	caps, err := governance.NewCapabilities(governance.DefaultABI)
	if err != nil {
		t.Fatalf("Should be able to parse the default abi: %s", err)
	}
	return caps
}

func ctrSelector(t *testing.T, ctr *governance.Contract, name string) []byte {
	t.Helper()

	m, exists := ctr.Capabilities().ABI().Methods[name]
	if !exists {
		t.Fatalf("Should find method %s", name)
	}
	return m.ID
}
