package driven

import (
	"context"
	"errors"

	"github.com/ericfisherdev/assetusers/internal/domain/model"
)

// ErrAssetNotFound is returned when an asset id does not exist.
var ErrAssetNotFound = errors.New("asset not found")

// ErrNodeNotFound is returned when a node id does not exist.
var ErrNodeNotFound = errors.New("node not found")

// InventoryStore defines the driven port for read access to assets and the
// node tree. The inventory is owned elsewhere; this subsystem never mutates
// it outside of seeding.
type InventoryStore interface {
	// GetAsset returns the asset with its direct node memberships.
	// Returns ErrAssetNotFound if it does not exist.
	GetAsset(ctx context.Context, id string) (model.Asset, error)

	// GetNode returns a node. Returns ErrNodeNotFound if it does not exist.
	GetNode(ctx context.Context, id string) (model.Node, error)

	// GetAdminUser returns an admin user without secret material.
	// Returns ErrCredentialNotFound if it does not exist.
	GetAdminUser(ctx context.Context, id string) (model.AdminUser, error)
}

// InventoryWriter defines the driven port used to load inventory from a seed
// file. All operations are upserts keyed by id.
type InventoryWriter interface {
	UpsertNode(ctx context.Context, node model.Node) error
	UpsertAdminUser(ctx context.Context, user model.AdminUser) error
	UpsertSystemUser(ctx context.Context, user model.SystemUser) error
	UpsertAsset(ctx context.Context, asset model.Asset) error
}
