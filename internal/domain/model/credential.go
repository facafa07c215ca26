package model

import "time"

// AdminUser is the privileged account configured on an asset. It acts as the
// fallback credential of last resort.
type AdminUser struct {
	ID         string
	Name       string
	Username   string
	Password   string
	PrivateKey string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// SystemUser is a shared login account attached to assets directly or to
// nodes. Priority ranges 1..100; a higher value wins among system users of
// the same origin.
type SystemUser struct {
	ID         string
	Name       string
	Username   string
	Password   string
	PrivateKey string
	Priority   int
	AssetIDs   []string
	NodeIDs    []string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// DefaultSystemUserPriority is applied when a system user is stored without
// an explicit priority.
const DefaultSystemUserPriority = 20

// AuthBook is an operator-managed credential for one asset and username.
// Every write produces a new version; only the latest is active.
type AuthBook struct {
	ID         string
	AssetID    string
	Username   string
	Password   string
	PrivateKey string
	Comment    string
	Version    int
	CreatedAt  time.Time
}

// Secret holds the decrypted authentication material of one credential.
type Secret struct {
	Password   string
	PrivateKey string
}

// IsEmpty reports whether the secret carries no authentication material.
func (s Secret) IsEmpty() bool {
	return s.Password == "" && s.PrivateKey == ""
}
