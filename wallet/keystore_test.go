package wallet_test

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/bazaarchain/bazaar/crypto"
	"github.com/bazaarchain/bazaar/wallet"
)

func TestKeystoreRoundTrip(t *testing.T) {
	priv, _, err := crypto.GenerateKeyPair()
	if err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(t.TempDir(), "validator.key")

	if err := wallet.SaveKey(path, "hunter2", priv); err != nil {
		t.Fatalf("SaveKey: %v", err)
	}
	loaded, err := wallet.LoadKey(path, "hunter2")
	if err != nil {
		t.Fatalf("LoadKey: %v", err)
	}
	if !bytes.Equal(loaded, priv) {
		t.Error("loaded key differs from saved key")
	}
}

func TestKeystoreWrongPassword(t *testing.T) {
	priv, _, err := crypto.GenerateKeyPair()
	if err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(t.TempDir(), "validator.key")
	if err := wallet.SaveKey(path, "correct", priv); err != nil {
		t.Fatal(err)
	}
	if _, err := wallet.LoadKey(path, "wrong"); err == nil {
		t.Error("wrong password accepted")
	}
}

func TestKeystoreMissingFile(t *testing.T) {
	if _, err := wallet.LoadKey(filepath.Join(t.TempDir(), "absent.key"), "pw"); err == nil {
		t.Error("expected error for missing keystore")
	}
}
