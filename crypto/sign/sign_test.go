package sign

import (
	"testing"
)

// adapted from the official ed25519 package tests
func TestVerifySignature(t *testing.T) {
	key, err := GenerateKey()
	if err != nil {
		t.Fatal(err)
	}

	message := []byte("test breadcrumb payload")
	sig := key.Sign(message)
	pk := key.Public()

	if !pk.Verify(message, sig) {
		t.Errorf("valid signature rejected")
	}

	wrongMessage := []byte("different payload")
	if pk.Verify(wrongMessage, sig) {
		t.Errorf("signature of different message accepted")
	}
}

func TestNewKeyFromSeedDeterministic(t *testing.T) {
	key, err := GenerateKey()
	if err != nil {
		t.Fatal(err)
	}
	seed := key.Seed()

	rederived := NewKeyFromSeed(seed)
	if rederived.Public().String() != key.Public().String() {
		t.Fatal("rederiving a key from its seed changed the public key")
	}
}

func TestParsePublicKeyRejectsWrongSize(t *testing.T) {
	if _, err := ParsePublicKey(make([]byte, 31)); err == nil {
		t.Fatal("expected error for undersized public key")
	}
	if _, err := ParsePublicKey(make([]byte, PublicKeySize)); err != nil {
		t.Fatalf("unexpected error for correctly sized public key: %v", err)
	}
}
