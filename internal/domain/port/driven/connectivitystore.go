package driven

import (
	"context"

	"github.com/ericfisherdev/assetusers/internal/domain/model"
)

// ConnectivityStore defines the driven port for the last known probe outcome
// of each (credential, asset) pair.
type ConnectivityStore interface {
	// Save replaces the stored outcome for result.CredentialID and result.AssetID.
	Save(ctx context.Context, result model.ConnectivityResult) error

	// ListByAssets returns the stored outcomes for the given assets.
	ListByAssets(ctx context.Context, assetIDs []string) ([]model.ConnectivityResult, error)
}
