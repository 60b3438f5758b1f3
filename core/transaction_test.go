package core_test

import (
	"errors"
	"testing"

	"github.com/bazaarchain/bazaar/core"
	"github.com/bazaarchain/bazaar/crypto"
)

func newSignedTx(t *testing.T) (*core.Transaction, crypto.PrivateKey) {
	t.Helper()
	priv, pub, err := crypto.GenerateKeyPair()
	if err != nil {
		t.Fatal(err)
	}
	tx, err := core.NewTransaction("bazaar-test", core.TxPay, pub, 0, 1, 50, core.PayPayload{To: "someone"})
	if err != nil {
		t.Fatal(err)
	}
	tx.Sign(priv)
	return tx, priv
}

func TestTransactionSignVerify(t *testing.T) {
	tx, _ := newSignedTx(t)
	if err := tx.Verify(); err != nil {
		t.Fatalf("verify signed tx: %v", err)
	}
}

func TestTransactionVerifyRejectsTamper(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(tx *core.Transaction)
	}{
		{"amount", func(tx *core.Transaction) { tx.Amount++ }},
		{"fee", func(tx *core.Transaction) { tx.Fee++ }},
		{"nonce", func(tx *core.Transaction) { tx.Nonce++ }},
		{"chain id", func(tx *core.Transaction) { tx.ChainID = "other-net" }},
		{"type", func(tx *core.Transaction) { tx.Type = core.TxMint }},
		{"payload", func(tx *core.Transaction) { tx.Payload = []byte(`{"to":"thief"}`) }},
		{"from", func(tx *core.Transaction) { tx.From = "ffffffffffffffffffffffffffffffffffffffff" }},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			tx, _ := newSignedTx(t)
			c.mutate(tx)
			if err := tx.Verify(); err == nil {
				t.Error("tampered transaction passed verification")
			}
		})
	}
}

func TestFaultMatchesSentinel(t *testing.T) {
	err := core.Reject("MINT", core.ErrWrongPayment).In("amount").Expected(100, 5)
	if !errors.Is(err, core.ErrWrongPayment) {
		t.Error("fault does not unwrap to its sentinel")
	}
	if errors.Is(err, core.ErrPaused) {
		t.Error("fault matched an unrelated sentinel")
	}
	msg := err.Error()
	if msg == "" || msg[:5] != "MINT:" {
		t.Errorf("fault message missing op tag: %q", msg)
	}
}
