package probe

import (
	"context"
	"fmt"

	"github.com/ericfisherdev/assetusers/internal/domain/model"
	"github.com/ericfisherdev/assetusers/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.Prober = (*Dispatcher)(nil)

// Dispatcher routes each probe to the prober for the asset's platform.
type Dispatcher struct {
	unix    driven.Prober
	windows driven.Prober
}

// NewDispatcher creates a Dispatcher. unix serves every Unix-like platform.
func NewDispatcher(unix, windows driven.Prober) *Dispatcher {
	return &Dispatcher{unix: unix, windows: windows}
}

// Probe implements driven.Prober.
func (d *Dispatcher) Probe(ctx context.Context, asset model.Asset, username string, secret model.Secret) error {
	switch {
	case asset.Platform.IsUnixLike():
		return d.unix.Probe(ctx, asset, username, secret)
	case asset.Platform.IsWindows():
		return d.windows.Probe(ctx, asset, username, secret)
	default:
		return fmt.Errorf("probe %s (%s): %w", asset.ID, asset.Platform, driven.ErrPlatformNotSupported)
	}
}
