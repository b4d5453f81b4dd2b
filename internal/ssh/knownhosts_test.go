package ssh

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestAppendKnownHost(t *testing.T) {
	dir := t.TempDir()
	kh := filepath.Join(dir, "sub", "known_hosts")
	_, authorized := writeTestKey(t)

	if err := AppendKnownHost(kh, "198.51.100.7", authorized); err != nil {
		t.Fatalf("append: %v", err)
	}
	b, err := os.ReadFile(kh)
	if err != nil {
		t.Fatalf("read known_hosts: %v", err)
	}
	if !strings.Contains(string(b), "198.51.100.7") {
		t.Fatalf("host missing from entry: %q", b)
	}

	cb, err := KnownHostsCallback(kh)
	if err != nil {
		t.Fatalf("callback: %v", err)
	}
	if cb == nil {
		t.Fatal("expected non-nil callback")
	}
}

func TestAppendKnownHostBadKey(t *testing.T) {
	kh := filepath.Join(t.TempDir(), "known_hosts")
	if err := AppendKnownHost(kh, "example.com", "not an authorized key"); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestClientConfigValidation(t *testing.T) {
	c := &Client{}
	if _, err := c.config(); err == nil {
		t.Fatal("expected error for missing host")
	}
}
