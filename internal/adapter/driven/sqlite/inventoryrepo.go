package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/ericfisherdev/assetusers/internal/domain/model"
	"github.com/ericfisherdev/assetusers/internal/domain/port/driven"
)

// Compile-time interface satisfaction checks.
var (
	_ driven.InventoryStore  = (*InventoryRepo)(nil)
	_ driven.InventoryWriter = (*InventoryRepo)(nil)
)

// InventoryRepo is the SQLite implementation of the inventory ports. Admin
// and system user secrets are sealed before they are written.
type InventoryRepo struct {
	db     *DB
	cipher secretCipher
}

// NewInventoryRepo creates an InventoryRepo. key must be 32 bytes for
// AES-256-GCM, or nil if credential secrets will not be stored.
func NewInventoryRepo(db *DB, key []byte) *InventoryRepo {
	return &InventoryRepo{db: db, cipher: newSecretCipher(key)}
}

// GetAsset returns the asset and its direct node memberships.
func (r *InventoryRepo) GetAsset(ctx context.Context, id string) (model.Asset, error) {
	const query = `
		SELECT id, address, hostname, port, platform, COALESCE(admin_user_id, ''), created_at
		FROM assets WHERE id = ?`

	var a model.Asset
	var platform, createdAt string
	err := r.db.Reader.QueryRowContext(ctx, query, id).Scan(
		&a.ID, &a.Address, &a.Hostname, &a.Port, &platform, &a.AdminUserID, &createdAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Asset{}, fmt.Errorf("get asset %s: %w", id, driven.ErrAssetNotFound)
	}
	if err != nil {
		return model.Asset{}, fmt.Errorf("get asset %s: %w", id, err)
	}
	a.Platform = model.Platform(platform)

	if a.CreatedAt, err = parseTime(createdAt); err != nil {
		return model.Asset{}, fmt.Errorf("parse created_at for asset %s: %w", id, err)
	}

	rows, err := r.db.Reader.QueryContext(ctx,
		`SELECT node_id FROM asset_nodes WHERE asset_id = ? ORDER BY node_id`, id)
	if err != nil {
		return model.Asset{}, fmt.Errorf("list nodes for asset %s: %w", id, err)
	}
	defer rows.Close()

	for rows.Next() {
		var nodeID string
		if err := rows.Scan(&nodeID); err != nil {
			return model.Asset{}, fmt.Errorf("scan asset node: %w", err)
		}
		a.NodeIDs = append(a.NodeIDs, nodeID)
	}
	if err := rows.Err(); err != nil {
		return model.Asset{}, fmt.Errorf("iterate asset nodes: %w", err)
	}

	return a, nil
}

// GetNode returns a single node.
func (r *InventoryRepo) GetNode(ctx context.Context, id string) (model.Node, error) {
	const query = `SELECT id, name, COALESCE(parent_id, ''), created_at FROM nodes WHERE id = ?`

	var n model.Node
	var createdAt string
	err := r.db.Reader.QueryRowContext(ctx, query, id).Scan(&n.ID, &n.Name, &n.ParentID, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Node{}, fmt.Errorf("get node %s: %w", id, driven.ErrNodeNotFound)
	}
	if err != nil {
		return model.Node{}, fmt.Errorf("get node %s: %w", id, err)
	}

	if n.CreatedAt, err = parseTime(createdAt); err != nil {
		return model.Node{}, fmt.Errorf("parse created_at for node %s: %w", id, err)
	}
	return n, nil
}

// GetAdminUser returns the admin user with Password and PrivateKey left empty.
func (r *InventoryRepo) GetAdminUser(ctx context.Context, id string) (model.AdminUser, error) {
	const query = `SELECT id, name, username, created_at, updated_at FROM admin_users WHERE id = ?`

	var u model.AdminUser
	var createdAt, updatedAt string
	err := r.db.Reader.QueryRowContext(ctx, query, id).Scan(&u.ID, &u.Name, &u.Username, &createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return model.AdminUser{}, fmt.Errorf("get admin user %s: %w", id, driven.ErrCredentialNotFound)
	}
	if err != nil {
		return model.AdminUser{}, fmt.Errorf("get admin user %s: %w", id, err)
	}

	if u.CreatedAt, err = parseTime(createdAt); err != nil {
		return model.AdminUser{}, fmt.Errorf("parse created_at for admin user %s: %w", id, err)
	}
	if u.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return model.AdminUser{}, fmt.Errorf("parse updated_at for admin user %s: %w", id, err)
	}
	return u, nil
}

// UpsertNode inserts or updates a node. The parent must already exist.
func (r *InventoryRepo) UpsertNode(ctx context.Context, node model.Node) error {
	const query = `
		INSERT INTO nodes (id, name, parent_id, created_at) VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET name = excluded.name, parent_id = excluded.parent_id`

	var parent any
	if node.ParentID != "" {
		parent = node.ParentID
	}

	if _, err := r.db.Writer.ExecContext(ctx, query, node.ID, node.Name, parent, formatTime(node.CreatedAt)); err != nil {
		return fmt.Errorf("upsert node %s: %w", node.ID, err)
	}
	return nil
}

// UpsertAdminUser inserts or updates an admin user, sealing its secret.
func (r *InventoryRepo) UpsertAdminUser(ctx context.Context, user model.AdminUser) error {
	password, privateKey, err := r.cipher.sealSecret(model.Secret{Password: user.Password, PrivateKey: user.PrivateKey})
	if err != nil {
		return fmt.Errorf("upsert admin user %s: %w", user.ID, err)
	}

	const query = `
		INSERT INTO admin_users (id, name, username, password, private_key, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			username = excluded.username,
			password = excluded.password,
			private_key = excluded.private_key,
			updated_at = excluded.updated_at`

	now := formatTime(user.UpdatedAt)
	_, err = r.db.Writer.ExecContext(ctx, query,
		user.ID, user.Name, user.Username, password, privateKey, formatTime(user.CreatedAt), now)
	if err != nil {
		return fmt.Errorf("upsert admin user %s: %w", user.ID, err)
	}
	return nil
}

// UpsertSystemUser inserts or updates a system user and replaces its asset
// and node attachments in one transaction.
func (r *InventoryRepo) UpsertSystemUser(ctx context.Context, user model.SystemUser) error {
	password, privateKey, err := r.cipher.sealSecret(model.Secret{Password: user.Password, PrivateKey: user.PrivateKey})
	if err != nil {
		return fmt.Errorf("upsert system user %s: %w", user.ID, err)
	}

	priority := user.Priority
	if priority == 0 {
		priority = model.DefaultSystemUserPriority
	}

	tx, err := r.db.Writer.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	const upsert = `
		INSERT INTO system_users (id, name, username, password, private_key, priority, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			username = excluded.username,
			password = excluded.password,
			private_key = excluded.private_key,
			priority = excluded.priority,
			updated_at = excluded.updated_at`

	_, err = tx.ExecContext(ctx, upsert, user.ID, user.Name, user.Username, password, privateKey,
		priority, formatTime(user.CreatedAt), formatTime(user.UpdatedAt))
	if err != nil {
		return fmt.Errorf("upsert system user %s: %w", user.ID, err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM system_user_assets WHERE system_user_id = ?`, user.ID); err != nil {
		return fmt.Errorf("clear assets for system user %s: %w", user.ID, err)
	}
	for _, assetID := range user.AssetIDs {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO system_user_assets (system_user_id, asset_id) VALUES (?, ?) ON CONFLICT DO NOTHING`,
			user.ID, assetID)
		if err != nil {
			return fmt.Errorf("attach system user %s to asset %s: %w", user.ID, assetID, err)
		}
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM system_user_nodes WHERE system_user_id = ?`, user.ID); err != nil {
		return fmt.Errorf("clear nodes for system user %s: %w", user.ID, err)
	}
	for _, nodeID := range user.NodeIDs {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO system_user_nodes (system_user_id, node_id) VALUES (?, ?) ON CONFLICT DO NOTHING`,
			user.ID, nodeID)
		if err != nil {
			return fmt.Errorf("attach system user %s to node %s: %w", user.ID, nodeID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit system user %s: %w", user.ID, err)
	}
	return nil
}

// UpsertAsset inserts or updates an asset and replaces its node memberships.
func (r *InventoryRepo) UpsertAsset(ctx context.Context, asset model.Asset) error {
	port := asset.Port
	if port == 0 {
		port = model.DefaultSSHPort
	}
	platform := asset.Platform
	if platform == "" {
		platform = model.PlatformLinux
	}
	var adminUserID any
	if asset.AdminUserID != "" {
		adminUserID = asset.AdminUserID
	}

	tx, err := r.db.Writer.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	const upsert = `
		INSERT INTO assets (id, address, hostname, port, platform, admin_user_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			address = excluded.address,
			hostname = excluded.hostname,
			port = excluded.port,
			platform = excluded.platform,
			admin_user_id = excluded.admin_user_id`

	_, err = tx.ExecContext(ctx, upsert, asset.ID, asset.Address, asset.Hostname, port,
		string(platform), adminUserID, formatTime(asset.CreatedAt))
	if err != nil {
		return fmt.Errorf("upsert asset %s: %w", asset.ID, err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM asset_nodes WHERE asset_id = ?`, asset.ID); err != nil {
		return fmt.Errorf("clear nodes for asset %s: %w", asset.ID, err)
	}
	for _, nodeID := range asset.NodeIDs {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO asset_nodes (asset_id, node_id) VALUES (?, ?) ON CONFLICT DO NOTHING`,
			asset.ID, nodeID)
		if err != nil {
			return fmt.Errorf("add asset %s to node %s: %w", asset.ID, nodeID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit asset %s: %w", asset.ID, err)
	}
	return nil
}
