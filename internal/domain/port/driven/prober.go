package driven

import (
	"context"
	"errors"

	"github.com/ericfisherdev/assetusers/internal/domain/model"
)

// ErrPlatformNotSupported is returned when no probe exists for the asset
// platform.
var ErrPlatformNotSupported = errors.New("platform does not support connectivity probes")

// Prober defines the driven port that performs one connect-and-authenticate
// attempt. Implementations must return once ctx is done.
type Prober interface {
	Probe(ctx context.Context, asset model.Asset, username string, secret model.Secret) error
}
