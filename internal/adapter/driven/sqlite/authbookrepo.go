package sqlite

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/ericfisherdev/assetusers/internal/domain/model"
	"github.com/ericfisherdev/assetusers/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.AuthBookStore = (*AuthBookRepo)(nil)

// AuthBookRepo is the SQLite implementation of the AuthBookStore port.
type AuthBookRepo struct {
	db     *DB
	cipher secretCipher
	now    func() time.Time
}

// NewAuthBookRepo creates an AuthBookRepo. key must be 32 bytes, or nil, in
// which case entries carrying a secret are rejected with
// driven.ErrEncryptionKeyNotSet.
func NewAuthBookRepo(db *DB, key []byte) *AuthBookRepo {
	return &AuthBookRepo{db: db, cipher: newSecretCipher(key), now: time.Now}
}

// Create writes entry as version max+1 for its asset and username and
// clears the latest flag on every earlier version.
func (r *AuthBookRepo) Create(ctx context.Context, entry model.AuthBook) (model.AuthBook, error) {
	password, privateKey, err := r.cipher.sealSecret(model.Secret{Password: entry.Password, PrivateKey: entry.PrivateKey})
	if err != nil {
		return model.AuthBook{}, fmt.Errorf("create authbook for %s@%s: %w", entry.Username, entry.AssetID, err)
	}

	tx, err := r.db.Writer.BeginTx(ctx, nil)
	if err != nil {
		return model.AuthBook{}, fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var current int
	err = tx.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(version), 0) FROM auth_books WHERE asset_id = ? AND username = ?`,
		entry.AssetID, entry.Username,
	).Scan(&current)
	if err != nil {
		return model.AuthBook{}, fmt.Errorf("read authbook version: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		`UPDATE auth_books SET is_latest = 0 WHERE asset_id = ? AND username = ? AND is_latest = 1`,
		entry.AssetID, entry.Username)
	if err != nil {
		return model.AuthBook{}, fmt.Errorf("retire previous authbook: %w", err)
	}

	entry.ID = uuid.NewString()
	entry.Version = current + 1
	entry.CreatedAt = r.now().UTC()

	const insert = `
		INSERT INTO auth_books (id, asset_id, username, password, private_key, comment, version, is_latest, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, 1, ?)`

	_, err = tx.ExecContext(ctx, insert, entry.ID, entry.AssetID, entry.Username, password, privateKey,
		entry.Comment, entry.Version, formatTime(entry.CreatedAt))
	if err != nil {
		return model.AuthBook{}, fmt.Errorf("insert authbook for %s@%s: %w", entry.Username, entry.AssetID, err)
	}

	if err := tx.Commit(); err != nil {
		return model.AuthBook{}, fmt.Errorf("commit authbook: %w", err)
	}

	return entry, nil
}
