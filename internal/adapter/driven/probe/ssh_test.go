package probe

import (
	"bytes"
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/pem"
	"errors"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"

	"github.com/ericfisherdev/assetusers/internal/domain/model"
)

type testServer struct {
	addr    string
	port    int
	hostKey ssh.PublicKey
}

// startSSHServer accepts "deploy" with password or with the authorized key
// and rejects every channel.
func startSSHServer(t *testing.T, password string, authorized ssh.PublicKey) testServer {
	t.Helper()

	_, hostPriv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	hostSigner, err := ssh.NewSignerFromKey(hostPriv)
	require.NoError(t, err)

	cfg := &ssh.ServerConfig{
		PasswordCallback: func(c ssh.ConnMetadata, pw []byte) (*ssh.Permissions, error) {
			if c.User() == "deploy" && string(pw) == password {
				return nil, nil
			}
			return nil, errors.New("denied")
		},
		PublicKeyCallback: func(c ssh.ConnMetadata, key ssh.PublicKey) (*ssh.Permissions, error) {
			if c.User() == "deploy" && authorized != nil && bytes.Equal(key.Marshal(), authorized.Marshal()) {
				return nil, nil
			}
			return nil, errors.New("denied")
		},
	}
	cfg.AddHostKey(hostSigner)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { _ = ln.Close() })

	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			go func() {
				defer conn.Close()
				sconn, chans, reqs, err := ssh.NewServerConn(conn, cfg)
				if err != nil {
					return
				}
				defer sconn.Close()
				go ssh.DiscardRequests(reqs)
				for ch := range chans {
					_ = ch.Reject(ssh.Prohibited, "no sessions")
				}
			}()
		}
	}()

	return testServer{
		addr:    ln.Addr().String(),
		port:    ln.Addr().(*net.TCPAddr).Port,
		hostKey: hostSigner.PublicKey(),
	}
}

func clientKey(t *testing.T) (string, ssh.PublicKey) {
	t.Helper()

	_, priv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	block, err := ssh.MarshalPrivateKey(priv, "")
	require.NoError(t, err)
	signer, err := ssh.NewSignerFromKey(priv)
	require.NoError(t, err)
	return string(pem.EncodeToMemory(block)), signer.PublicKey()
}

func assetAt(port int) model.Asset {
	return model.Asset{ID: "a-1", Address: "127.0.0.1", Port: port, Platform: model.PlatformLinux}
}

func TestSSHProber_Password(t *testing.T) {
	srv := startSSHServer(t, "s3cret", nil)
	p, err := NewSSHProber("")
	require.NoError(t, err)
	assert.False(t, p.VerifiesHostKeys())

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err = p.Probe(ctx, assetAt(srv.port), "deploy", model.Secret{Password: "s3cret"})
	assert.NoError(t, err)

	err = p.Probe(ctx, assetAt(srv.port), "deploy", model.Secret{Password: "wrong"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unable to authenticate")
}

func TestSSHProber_PrivateKey(t *testing.T) {
	key, pub := clientKey(t)
	srv := startSSHServer(t, "unused", pub)
	p, err := NewSSHProber("")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	assert.NoError(t, p.Probe(ctx, assetAt(srv.port), "deploy", model.Secret{PrivateKey: key}))

	other, _ := clientKey(t)
	assert.Error(t, p.Probe(ctx, assetAt(srv.port), "deploy", model.Secret{PrivateKey: other}))
}

func TestSSHProber_NoSecret(t *testing.T) {
	p, err := NewSSHProber("")
	require.NoError(t, err)

	err = p.Probe(context.Background(), assetAt(1), "deploy", model.Secret{})
	assert.ErrorIs(t, err, ErrNoSecret)
}

func TestSSHProber_KnownHosts(t *testing.T) {
	srv := startSSHServer(t, "s3cret", nil)
	dir := t.TempDir()

	good := filepath.Join(dir, "known_hosts")
	require.NoError(t, os.WriteFile(good, []byte(knownhosts.Line([]string{srv.addr}, srv.hostKey)+"\n"), 0o600))

	_, otherPriv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	otherSigner, err := ssh.NewSignerFromKey(otherPriv)
	require.NoError(t, err)
	bad := filepath.Join(dir, "known_hosts_bad")
	require.NoError(t, os.WriteFile(bad, []byte(knownhosts.Line([]string{srv.addr}, otherSigner.PublicKey())+"\n"), 0o600))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	p, err := NewSSHProber(good)
	require.NoError(t, err)
	assert.True(t, p.VerifiesHostKeys())
	assert.NoError(t, p.Probe(ctx, assetAt(srv.port), "deploy", model.Secret{Password: "s3cret"}))

	p, err = NewSSHProber(bad)
	require.NoError(t, err)
	assert.Error(t, p.Probe(ctx, assetAt(srv.port), "deploy", model.Secret{Password: "s3cret"}))

	_, err = NewSSHProber(filepath.Join(dir, "missing"))
	assert.Error(t, err)
}

func TestSSHProber_StalledServerHonoursDeadline(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { _ = ln.Close() })

	// Accept and never speak, so the client blocks waiting for a banner.
	held := make(chan net.Conn, 1)
	go func() {
		conn, err := ln.Accept()
		if err == nil {
			held <- conn
		}
	}()
	t.Cleanup(func() {
		select {
		case conn := <-held:
			_ = conn.Close()
		default:
		}
	})

	p, err := NewSSHProber("")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	start := time.Now()
	err = p.Probe(ctx, assetAt(ln.Addr().(*net.TCPAddr).Port), "deploy", model.Secret{Password: "pw"})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), 2*time.Second)
}
