// Package ssh connects to provisioned instances for remote commands and file
// transfer. Dialing retries with linear backoff because a freshly created
// instance accepts connections some time after it reports running.
package ssh

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	xssh "golang.org/x/crypto/ssh"
)

const (
	DefaultUser    = "ec2-user"
	DefaultPort    = 22
	defaultTimeout = 10 * time.Second
	defaultBackoff = 2 * time.Second
)

// Client describes one remote endpoint. Zero values fall back to the
// defaults above.
type Client struct {
	Host       string
	Port       int
	User       string
	Signer     xssh.Signer
	KnownHosts xssh.HostKeyCallback
	Timeout    time.Duration
	Retries    int
	Backoff    time.Duration
}

func (c *Client) addr() string {
	port := c.Port
	if port == 0 {
		port = DefaultPort
	}
	return net.JoinHostPort(c.Host, fmt.Sprintf("%d", port))
}

func (c *Client) config() (*xssh.ClientConfig, error) {
	if c.Host == "" {
		return nil, errors.New("ssh: host required")
	}
	if c.Signer == nil {
		return nil, errors.New("ssh: signer required")
	}
	if c.KnownHosts == nil {
		return nil, errors.New("ssh: host key callback required")
	}
	user := c.User
	if user == "" {
		user = DefaultUser
	}
	timeout := c.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &xssh.ClientConfig{
		User:            user,
		Auth:            []xssh.AuthMethod{xssh.PublicKeys(c.Signer)},
		HostKeyCallback: c.KnownHosts,
		Timeout:         timeout,
	}, nil
}

// Dial opens the SSH connection, retrying on failure. The caller closes the
// returned client.
func (c *Client) Dial(ctx context.Context) (*xssh.Client, error) {
	cfg, err := c.config()
	if err != nil {
		return nil, err
	}
	backoff := c.Backoff
	if backoff <= 0 {
		backoff = defaultBackoff
	}
	var lastErr error
	for attempt := 0; attempt <= c.Retries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(backoff * time.Duration(attempt)):
			}
		}
		cli, err := xssh.Dial("tcp", c.addr(), cfg)
		if err == nil {
			return cli, nil
		}
		lastErr = err
	}
	return nil, fmt.Errorf("dial %s: %w", c.addr(), lastErr)
}

// Run executes one remote command and returns its stdout and stderr.
func (c *Client) Run(ctx context.Context, command string) (string, string, error) {
	cli, err := c.Dial(ctx)
	if err != nil {
		return "", "", err
	}
	defer cli.Close()

	session, err := cli.NewSession()
	if err != nil {
		return "", "", fmt.Errorf("new session: %w", err)
	}
	defer session.Close()

	var stdout, stderr bytes.Buffer
	session.Stdout = &stdout
	session.Stderr = &stderr
	if err := session.Run(command); err != nil {
		return stdout.String(), stderr.String(), fmt.Errorf("run %q: %w", command, err)
	}
	return stdout.String(), stderr.String(), nil
}
