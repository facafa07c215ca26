package model

import "time"

// Binding associates a credential with an asset and username. It never
// carries secret material; use a SecretStore to load it.
type Binding struct {
	AssetID        string
	Address        string
	Hostname       string
	Platform       Platform
	Port           int
	Username       string
	CredentialID   string
	CredentialName string
	Kind           BindingKind
	Origin         BindingOrigin
	Priority       int // System users only.
	Version        int // AuthBook only.
	CreatedAt      time.Time
}

// ID returns the stable identifier of the binding, unique per credential and
// asset.
func (b Binding) ID() string {
	return b.CredentialID + "_" + b.AssetID
}

// GroupKey identifies the (asset, username) pair the binding competes for.
func (b Binding) GroupKey() string {
	return b.AssetID + "_" + b.Username
}

// Asset returns the asset fields carried on the binding.
func (b Binding) Asset() Asset {
	return Asset{
		ID:       b.AssetID,
		Address:  b.Address,
		Hostname: b.Hostname,
		Port:     b.Port,
		Platform: b.Platform,
	}
}

// AsLogFields returns slog key-value pairs identifying the binding.
func (b Binding) AsLogFields() []any {
	return []any{
		"asset_id", b.AssetID,
		"username", b.Username,
		"credential_id", b.CredentialID,
		"kind", string(b.Kind),
		"origin", string(b.Origin),
	}
}
