package ssh

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/pem"
	"os"
	"path/filepath"
	"testing"

	xssh "golang.org/x/crypto/ssh"
)

func writeTestKey(t *testing.T) (keyPath string, authorized string) {
	t.Helper()
	_, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	block, err := xssh.MarshalPrivateKey(priv, "")
	if err != nil {
		t.Fatalf("marshal key: %v", err)
	}
	keyPath = filepath.Join(t.TempDir(), "id_ed25519")
	if err := os.WriteFile(keyPath, pem.EncodeToMemory(block), 0600); err != nil {
		t.Fatalf("write key: %v", err)
	}
	signer, err := xssh.NewSignerFromKey(priv)
	if err != nil {
		t.Fatalf("signer: %v", err)
	}
	return keyPath, string(xssh.MarshalAuthorizedKey(signer.PublicKey()))
}

func TestLoadSigner(t *testing.T) {
	keyPath, _ := writeTestKey(t)
	signer, err := LoadSigner(keyPath)
	if err != nil {
		t.Fatalf("load signer: %v", err)
	}
	if signer.PublicKey().Type() != "ssh-ed25519" {
		t.Fatalf("unexpected key type %s", signer.PublicKey().Type())
	}
}

func TestLoadSignerMissingFile(t *testing.T) {
	if _, err := LoadSigner(filepath.Join(t.TempDir(), "absent")); err == nil {
		t.Fatal("expected error for missing key file")
	}
}

func TestLoadSignerGarbage(t *testing.T) {
	p := filepath.Join(t.TempDir(), "garbage")
	if err := os.WriteFile(p, []byte("not a key"), 0600); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadSigner(p); err == nil {
		t.Fatal("expected parse error")
	}
}
