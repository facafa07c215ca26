package model

import (
	"net"
	"strconv"
	"time"
)

// DefaultSSHPort is used when an asset does not declare a port.
const DefaultSSHPort = 22

// Asset is a remote host that credentials are bound to.
type Asset struct {
	ID          string
	Address     string
	Hostname    string
	Port        int
	Platform    Platform
	AdminUserID string   // Empty when the asset has no admin user.
	NodeIDs     []string // Nodes the asset is a direct member of.
	CreatedAt   time.Time
}

// HostPort returns the address joined with the asset port, falling back to
// DefaultSSHPort.
func (a Asset) HostPort() string {
	port := a.Port
	if port == 0 {
		port = DefaultSSHPort
	}
	return net.JoinHostPort(a.Address, strconv.Itoa(port))
}

// AsLogFields returns slog key-value pairs identifying the asset.
func (a Asset) AsLogFields() []any {
	return []any{
		"asset_id", a.ID,
		"hostname", a.Hostname,
		"address", a.Address,
	}
}
