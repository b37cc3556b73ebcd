package chain_test

import (
	"crypto/ecdsa"
	"errors"
	"math/big"
	"testing"

	"github.com/ardanlabs/poagov/business/core/chain"
	"github.com/ardanlabs/poagov/business/core/governance"
	"github.com/ardanlabs/poagov/foundation/evmlite"
	"github.com/ardanlabs/poagov/foundation/genesis"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
)

const (
	success = "\u2713"
	failed  = "\u2717"
)

const (
	pkMember  = "fae85851bdf5c9f49923722ce38f3c1defcfd3619ef5453230a58ad805499959"
	pkNominee = "aed31b6b5a0e8a3d7e5ea40d64e0f7bc10f3f7ad39b3c6b0ab6a0c5e6b7b5a11"
)

type harness struct {
	t      *testing.T
	chain  *chain.Chain
	caps   *governance.Capabilities
	poa    common.Address
	member *ecdsa.PrivateKey
	other  *ecdsa.PrivateKey
}

func newHarness(t *testing.T) *harness {
	return build(t, false)
}

// build constructs the chain. When bothMembers is set the second key starts
// on the whitelist too.
func build(t *testing.T, bothMembers bool) *harness {
	member, err := crypto.HexToECDSA(pkMember)
	if err != nil {
		t.Fatalf("Should be able to load the member key: %s", err)
	}
	other, err := crypto.HexToECDSA(pkNominee)
	if err != nil {
		t.Fatalf("Should be able to load the nominee key: %s", err)
	}

	memberAddr := crypto.PubkeyToAddress(member.PublicKey)
	otherAddr := crypto.PubkeyToAddress(other.PublicKey)

	gen := genesis.Genesis{
		Alloc: map[string]genesis.Alloc{
			genesis.TidyAddress(memberAddr.Hex()): {Balance: "1000000"},
			genesis.TidyAddress(otherAddr.Hex()):  {Balance: "0x10"},
		},
		POA: &genesis.POA{
			Whitelist: []genesis.Person{{Address: memberAddr.Hex(), Moniker: "Node0"}},
		},
	}

	if bothMembers {
		gen.Alloc[genesis.TidyAddress(otherAddr.Hex())] = genesis.Alloc{Balance: "1000000"}
		gen.POA.Whitelist = append(gen.POA.Whitelist, genesis.Person{Address: otherAddr.Hex(), Moniker: "Node1"})
	}

	ch, err := chain.New(chain.Config{Genesis: gen})
	if err != nil {
		t.Fatalf("Should be able to construct the chain: %s", err)
	}

	caps, err := governance.NewCapabilities(governance.DefaultABI)
	if err != nil {
		t.Fatalf("Should be able to parse the governance ABI: %s", err)
	}

	return &harness{
		t:      t,
		chain:  ch,
		caps:   caps,
		poa:    gen.POAAddress(),
		member: member,
		other:  other,
	}
}

func (h *harness) submit(pk *ecdsa.PrivateKey, to *common.Address, value int64, method string, args ...any) common.Hash {
	var data []byte
	if method != "" {
		cp, err := h.caps.Lookup(method)
		if err != nil {
			h.t.Fatalf("Should be able to find %s: %s", method, err)
		}
		if data, err = cp.Pack(args...); err != nil {
			h.t.Fatalf("Should be able to pack %s: %s", method, err)
		}
	}

	acc := h.chain.Account(crypto.PubkeyToAddress(pk.PublicKey))
	tx := types.NewTx(&types.LegacyTx{
		Nonce:    acc.Nonce,
		To:       to,
		Value:    big.NewInt(value),
		Gas:      evmlite.DefaultGas,
		GasPrice: new(big.Int),
		Data:     data,
	})

	signed, err := types.SignTx(tx, types.NewEIP155Signer(big.NewInt(evmlite.DefaultChainID)), pk)
	if err != nil {
		h.t.Fatalf("Should be able to sign the transaction: %s", err)
	}

	raw, err := signed.MarshalBinary()
	if err != nil {
		h.t.Fatalf("Should be able to encode the transaction: %s", err)
	}

	hash, err := h.chain.SubmitRawTx(raw)
	if err != nil {
		h.t.Fatalf("Should be able to submit the transaction: %s", err)
	}

	return hash
}

func (h *harness) whitelisted(addr common.Address) bool {
	cp, _ := h.caps.Lookup("isWhitelisted")
	data, err := cp.Pack(addr)
	if err != nil {
		h.t.Fatalf("Should be able to pack the query: %s", err)
	}

	out, err := h.chain.Call(evmlite.CallArgs{To: &h.poa, Data: hexutil.Encode(data)})
	if err != nil {
		h.t.Fatalf("Should be able to call isWhitelisted: %s", err)
	}

	values, err := cp.Unpack(out)
	if err != nil {
		h.t.Fatalf("Should be able to unpack the result: %s", err)
	}

	return values[0].(bool)
}

func eventNames(h *harness, rcpt evmlite.Receipt) []string {
	var names []string
	for _, e := range governance.DecodeLogs(h.caps.ABI(), rcpt.Logs) {
		names = append(names, e.Name)
	}
	return names
}

// =============================================================================

func Test_NominateAndAccept(t *testing.T) {
	t.Log("Given the need to govern the whitelist through the emulated contract.")
	{
		testID := 0
		t.Logf("\tTest %d:\tWhen a single member nominates and votes yes.", testID)
		{
			h := newHarness(t)
			nominee := crypto.PubkeyToAddress(h.other.PublicKey)

			if h.whitelisted(nominee) {
				t.Fatalf("\t%s\tTest %d:\tShould not have the nominee whitelisted at genesis.", failed, testID)
			}
			t.Logf("\t%s\tTest %d:\tShould not have the nominee whitelisted at genesis.", success, testID)

			nominate := h.submit(h.member, &h.poa, 1, "submitNominee", nominee, "Node1")
			vote := h.submit(h.member, &h.poa, 1, "castNomineeVote", nominee, true)

			if _, err := h.chain.Receipt(nominate); !errors.Is(err, chain.ErrNotFound) {
				t.Fatalf("\t%s\tTest %d:\tShould not have a receipt before the block: %v", failed, testID, err)
			}
			t.Logf("\t%s\tTest %d:\tShould not have a receipt before the block.", success, testID)

			block, err := h.chain.CommitBlock()
			if err != nil {
				t.Fatalf("\t%s\tTest %d:\tShould be able to commit the block: %s", failed, testID, err)
			}
			if len(block.TxHashes) != 2 {
				t.Fatalf("\t%s\tTest %d:\tShould commit both transactions: got %d", failed, testID, len(block.TxHashes))
			}
			t.Logf("\t%s\tTest %d:\tShould commit both transactions.", success, testID)

			rcpt, err := h.chain.Receipt(nominate)
			if err != nil || !rcpt.Succeeded() {
				t.Fatalf("\t%s\tTest %d:\tShould have a successful nomination receipt: %v", failed, testID, err)
			}
			names := eventNames(h, rcpt)
			if len(names) != 2 || names[0] != "NomineeProposed" || names[1] != "MonikerAnnounce" {
				t.Fatalf("\t%s\tTest %d:\tShould emit the nomination events: %v", failed, testID, names)
			}
			t.Logf("\t%s\tTest %d:\tShould emit the nomination events.", success, testID)

			rcpt, err = h.chain.Receipt(vote)
			if err != nil || !rcpt.Succeeded() {
				t.Fatalf("\t%s\tTest %d:\tShould have a successful vote receipt: %v", failed, testID, err)
			}
			names = eventNames(h, rcpt)
			if len(names) != 2 || names[0] != "NomineeVoteCast" || names[1] != "NomineeDecision" {
				t.Fatalf("\t%s\tTest %d:\tShould emit the vote and decision events: %v", failed, testID, names)
			}
			t.Logf("\t%s\tTest %d:\tShould emit the vote and decision events.", success, testID)

			if !h.whitelisted(nominee) {
				t.Fatalf("\t%s\tTest %d:\tShould have the nominee whitelisted.", failed, testID)
			}
			t.Logf("\t%s\tTest %d:\tShould have the nominee whitelisted.", success, testID)
		}
	}
}

func Test_Rejections(t *testing.T) {
	t.Log("Given the need to refuse governance calls that break the rules.")
	{
		testID := 0
		t.Logf("\tTest %d:\tWhen an outsider nominates itself.", testID)
		{
			h := newHarness(t)
			outsider := crypto.PubkeyToAddress(h.other.PublicKey)
			before := h.chain.Account(outsider).Balance

			hash := h.submit(h.other, &h.poa, 1, "submitNominee", outsider, "Sneaky")
			if _, err := h.chain.CommitBlock(); err != nil {
				t.Fatalf("\t%s\tTest %d:\tShould be able to commit the block: %s", failed, testID, err)
			}

			rcpt, err := h.chain.Receipt(hash)
			if err != nil {
				t.Fatalf("\t%s\tTest %d:\tShould have a receipt: %s", failed, testID, err)
			}
			if rcpt.Succeeded() {
				t.Fatalf("\t%s\tTest %d:\tShould have a failed status.", failed, testID)
			}
			t.Logf("\t%s\tTest %d:\tShould have a failed status.", success, testID)

			if got := h.chain.Account(outsider).Balance; got.Cmp(before) != 0 {
				t.Logf("\t\tTest %d:\tgot: %s", testID, got)
				t.Logf("\t\tTest %d:\texp: %s", testID, before)
				t.Fatalf("\t%s\tTest %d:\tShould keep the value of a reverted call.", failed, testID)
			}
			t.Logf("\t%s\tTest %d:\tShould keep the value of a reverted call.", success, testID)

			if got := h.chain.Account(outsider).Nonce; got != 1 {
				t.Fatalf("\t%s\tTest %d:\tShould consume the nonce: got %d", failed, testID, got)
			}
			t.Logf("\t%s\tTest %d:\tShould consume the nonce.", success, testID)
		}

		testID = 1
		t.Logf("\tTest %d:\tWhen a member votes twice.", testID)
		{
			h := newHarness(t)
			nominee := common.HexToAddress("0x00000000000000000000000000000000000000aa")

			h.submit(h.member, &h.poa, 0, "submitNominee", nominee, "Node9")
			h.submit(h.member, &h.poa, 0, "castNomineeVote", nominee, false)
			again := h.submit(h.member, &h.poa, 0, "castNomineeVote", nominee, false)

			if _, err := h.chain.CommitBlock(); err != nil {
				t.Fatalf("\t%s\tTest %d:\tShould be able to commit the block: %s", failed, testID, err)
			}

			rcpt, err := h.chain.Receipt(again)
			if err != nil || rcpt.Succeeded() {
				t.Fatalf("\t%s\tTest %d:\tShould refuse the second vote: %v", failed, testID, err)
			}
			t.Logf("\t%s\tTest %d:\tShould refuse the second vote.", success, testID)

			if h.whitelisted(nominee) {
				t.Fatalf("\t%s\tTest %d:\tShould not whitelist a rejected nominee.", failed, testID)
			}
			t.Logf("\t%s\tTest %d:\tShould not whitelist a rejected nominee.", success, testID)
		}
	}
}

func Test_TransferAndNonce(t *testing.T) {
	h := newHarness(t)
	from := crypto.PubkeyToAddress(h.member.PublicKey)
	to := crypto.PubkeyToAddress(h.other.PublicKey)

	h.submit(h.member, &to, 100, "")
	h.submit(h.member, &to, 50, "")

	if got := h.chain.Account(from).Nonce; got != 2 {
		t.Fatalf("Should report the pending nonce: got %d, exp 2", got)
	}

	if _, err := h.chain.CommitBlock(); err != nil {
		t.Fatalf("Should be able to commit the block: %s", err)
	}

	if got, exp := h.chain.Account(to).Balance, big.NewInt(16+150); got.Cmp(exp) != 0 {
		t.Logf("got: %s", got)
		t.Logf("exp: %s", exp)
		t.Fatalf("Should move the value to the receiver.")
	}

	if got, exp := h.chain.Account(from).Balance, big.NewInt(1000000-150); got.Cmp(exp) != 0 {
		t.Logf("got: %s", got)
		t.Logf("exp: %s", exp)
		t.Fatalf("Should take the value from the sender.")
	}

	if _, err := h.chain.CommitBlock(); !errors.Is(err, chain.ErrNoTransactions) {
		t.Fatalf("Should have nothing left to commit: %v", err)
	}

	tx := types.NewTx(&types.LegacyTx{Nonce: 0, To: &to, Value: big.NewInt(1), Gas: evmlite.DefaultGas, GasPrice: new(big.Int)})
	signed, err := types.SignTx(tx, types.NewEIP155Signer(big.NewInt(evmlite.DefaultChainID)), h.member)
	if err != nil {
		t.Fatalf("Should be able to sign: %s", err)
	}
	raw, _ := signed.MarshalBinary()

	if _, err := h.chain.SubmitRawTx(raw); !errors.Is(err, chain.ErrNonceTooLow) {
		t.Fatalf("Should refuse a used nonce: %v", err)
	}
}

func Test_DeployGovernance(t *testing.T) {
	h := newHarness(t)
	deployer := crypto.PubkeyToAddress(h.other.PublicKey)

	ctor, err := h.caps.PackConstructor("Fresh")
	if err != nil {
		t.Fatalf("Should be able to pack the constructor: %s", err)
	}

	acc := h.chain.Account(deployer)
	tx := types.NewTx(&types.LegacyTx{Nonce: acc.Nonce, Gas: evmlite.DefaultGas, GasPrice: new(big.Int), Value: new(big.Int), Data: append([]byte{0x60, 0x80}, ctor...)})
	signed, err := types.SignTx(tx, types.NewEIP155Signer(big.NewInt(evmlite.DefaultChainID)), h.other)
	if err != nil {
		t.Fatalf("Should be able to sign: %s", err)
	}
	raw, _ := signed.MarshalBinary()

	hash, err := h.chain.SubmitRawTx(raw)
	if err != nil {
		t.Fatalf("Should be able to submit the deployment: %s", err)
	}
	if _, err := h.chain.CommitBlock(); err != nil {
		t.Fatalf("Should be able to commit the block: %s", err)
	}

	rcpt, err := h.chain.Receipt(hash)
	if err != nil {
		t.Fatalf("Should have a receipt: %s", err)
	}

	if exp := crypto.CreateAddress(deployer, 0); rcpt.ContractAddress != exp {
		t.Logf("got: %s", rcpt.ContractAddress.Hex())
		t.Logf("exp: %s", exp.Hex())
		t.Fatalf("Should derive the contract address from the deployer.")
	}

	h.poa = rcpt.ContractAddress
	if !h.whitelisted(deployer) {
		t.Fatalf("Should whitelist the deployer of a new contract.")
	}
}

func Test_BlockKeepsArrivalOrder(t *testing.T) {
	t.Log("Given the need to apply a nomination before the votes submitted after it.")
	{
		// Run both ways round so one of them has the nominating member
		// sorting after the voting member by address.
		for testID, proposerIsMember := range []bool{true, false} {
			t.Logf("\tTest %d:\tWhen one member nominates and another votes in the same block.", testID)
			{
				h := build(t, true)
				nominee := common.HexToAddress("0x00000000000000000000000000000000000000aa")

				proposer, voter := h.member, h.other
				if !proposerIsMember {
					proposer, voter = h.other, h.member
				}

				nominate := h.submit(proposer, &h.poa, 0, "submitNominee", nominee, "Nick")
				vote := h.submit(voter, &h.poa, 0, "castNomineeVote", nominee, true)

				if _, err := h.chain.CommitBlock(); err != nil {
					t.Fatalf("\t%s\tTest %d:\tShould be able to commit the block: %s", failed, testID, err)
				}

				for _, tx := range []struct {
					name string
					hash common.Hash
				}{{"nominate", nominate}, {"vote", vote}} {
					rcpt, err := h.chain.Receipt(tx.hash)
					if err != nil {
						t.Fatalf("\t%s\tTest %d:\tShould have a receipt for %s: %s", failed, testID, tx.name, err)
					}
					if rcpt.Status != 1 {
						t.Logf("\t%s\tTest %d:\tgot: %d", failed, testID, rcpt.Status)
						t.Logf("\t%s\tTest %d:\texp: %d", failed, testID, 1)
						t.Fatalf("\t%s\tTest %d:\tShould succeed with %s.", failed, testID, tx.name)
					}
				}
				t.Logf("\t%s\tTest %d:\tShould apply the nomination before the vote.", success, testID)

				if h.whitelisted(nominee) {
					t.Fatalf("\t%s\tTest %d:\tShould wait for the second member's vote.", failed, testID)
				}
				t.Logf("\t%s\tTest %d:\tShould wait for the second member's vote.", success, testID)
			}
		}
	}
}
