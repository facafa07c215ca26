// Package probe implements the Prober port: SSH authentication for
// Unix-like assets and an RDP port reachability check for Windows.
package probe

import (
	"context"
	"errors"
	"fmt"
	"net"

	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"

	"github.com/ericfisherdev/assetusers/internal/domain/model"
	"github.com/ericfisherdev/assetusers/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.Prober = (*SSHProber)(nil)

// ErrNoSecret is returned when a credential has neither password nor key.
var ErrNoSecret = errors.New("credential has no password or private key")

// SSHProber verifies a credential by completing an SSH handshake and user
// authentication. No session is opened.
type SSHProber struct {
	hostKeys ssh.HostKeyCallback
	verify   bool
	dialer   net.Dialer
}

// NewSSHProber creates an SSHProber. With an empty knownHostsPath host keys
// are not verified.
func NewSSHProber(knownHostsPath string) (*SSHProber, error) {
	if knownHostsPath == "" {
		return &SSHProber{hostKeys: ssh.InsecureIgnoreHostKey()}, nil //nolint:gosec // opt-in through ASSETUSERS_KNOWN_HOSTS
	}

	cb, err := knownhosts.New(knownHostsPath)
	if err != nil {
		return nil, fmt.Errorf("load known hosts %s: %w", knownHostsPath, err)
	}
	return &SSHProber{hostKeys: cb, verify: true}, nil
}

// VerifiesHostKeys reports whether a known_hosts file is in use.
func (p *SSHProber) VerifiesHostKeys() bool {
	return p.verify
}

// Probe dials the asset and authenticates as username. The connection is
// closed as soon as ctx ends, which unblocks a stalled handshake.
func (p *SSHProber) Probe(ctx context.Context, asset model.Asset, username string, secret model.Secret) error {
	auth, err := authMethods(secret)
	if err != nil {
		return err
	}

	addr := asset.HostPort()
	conn, err := p.dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("dial %s: %w", addr, err)
	}
	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()

	cfg := &ssh.ClientConfig{
		User:            username,
		Auth:            auth,
		HostKeyCallback: p.hostKeys,
	}

	c, chans, reqs, err := ssh.NewClientConn(conn, addr, cfg)
	if err != nil {
		_ = conn.Close()
		if ctxErr := ctx.Err(); ctxErr != nil {
			return fmt.Errorf("ssh handshake with %s: %w", addr, ctxErr)
		}
		return fmt.Errorf("ssh handshake with %s: %w", addr, err)
	}

	client := ssh.NewClient(c, chans, reqs)
	return client.Close()
}

func authMethods(secret model.Secret) ([]ssh.AuthMethod, error) {
	if secret.IsEmpty() {
		return nil, ErrNoSecret
	}

	var methods []ssh.AuthMethod

	if secret.PrivateKey != "" {
		signer, err := ssh.ParsePrivateKey([]byte(secret.PrivateKey))
		if err != nil {
			return nil, fmt.Errorf("parse private key: %w", err)
		}
		methods = append(methods, ssh.PublicKeys(signer))
	}

	if secret.Password != "" {
		password := secret.Password
		methods = append(methods,
			ssh.Password(password),
			ssh.KeyboardInteractive(func(_, _ string, questions []string, _ []bool) ([]string, error) {
				answers := make([]string, len(questions))
				for i := range answers {
					answers[i] = password
				}
				return answers, nil
			}),
		)
	}
	return methods, nil
}
