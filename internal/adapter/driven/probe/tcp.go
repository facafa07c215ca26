package probe

import (
	"context"
	"fmt"
	"net"
	"strconv"

	"github.com/ericfisherdev/assetusers/internal/domain/model"
	"github.com/ericfisherdev/assetusers/internal/domain/port/driven"
)

// DefaultRDPPort is dialled for Windows assets still carrying the SSH
// default port.
const DefaultRDPPort = 3389

// Compile-time interface satisfaction check.
var _ driven.Prober = (*RDPProber)(nil)

// RDPProber checks that the asset accepts TCP connections on its RDP port.
// It does not authenticate.
type RDPProber struct {
	dialer net.Dialer
}

// NewRDPProber creates an RDPProber.
func NewRDPProber() *RDPProber {
	return &RDPProber{}
}

// Probe opens and immediately closes a TCP connection.
func (p *RDPProber) Probe(ctx context.Context, asset model.Asset, _ string, _ model.Secret) error {
	port := asset.Port
	if port == 0 || port == model.DefaultSSHPort {
		port = DefaultRDPPort
	}
	addr := net.JoinHostPort(asset.Address, strconv.Itoa(port))

	conn, err := p.dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("dial %s: %w", addr, err)
	}
	return conn.Close()
}
