package ssh

import (
	"fmt"
	"os"

	xssh "golang.org/x/crypto/ssh"
)

// LoadSigner reads an unencrypted OpenSSH or PEM private key file.
func LoadSigner(path string) (xssh.Signer, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read private key: %w", err)
	}
	signer, err := xssh.ParsePrivateKey(data)
	if err != nil {
		return nil, fmt.Errorf("parse private key %s: %w", path, err)
	}
	return signer, nil
}
