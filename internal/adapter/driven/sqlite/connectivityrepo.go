package sqlite

import (
	"context"
	"fmt"
	"time"

	"github.com/ericfisherdev/assetusers/internal/domain/model"
	"github.com/ericfisherdev/assetusers/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.ConnectivityStore = (*ConnectivityRepo)(nil)

// ConnectivityRepo is the SQLite implementation of the ConnectivityStore port.
type ConnectivityRepo struct {
	db *DB
}

// NewConnectivityRepo creates a new ConnectivityRepo backed by the given DB.
func NewConnectivityRepo(db *DB) *ConnectivityRepo {
	return &ConnectivityRepo{db: db}
}

// Save upserts the outcome keyed by credential and asset.
func (r *ConnectivityRepo) Save(ctx context.Context, result model.ConnectivityResult) error {
	const query = `
		INSERT INTO connectivity (credential_id, asset_id, username, status, error_detail, tested_as, duration_ms, checked_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(credential_id, asset_id) DO UPDATE SET
			username = excluded.username,
			status = excluded.status,
			error_detail = excluded.error_detail,
			tested_as = excluded.tested_as,
			duration_ms = excluded.duration_ms,
			checked_at = excluded.checked_at`

	_, err := r.db.Writer.ExecContext(ctx, query,
		result.CredentialID, result.AssetID, result.Username, string(result.Status),
		result.ErrorDetail, result.TestedAs, result.Duration.Milliseconds(), formatTime(result.CheckedAt),
	)
	if err != nil {
		return fmt.Errorf("save connectivity for %s_%s: %w", result.CredentialID, result.AssetID, err)
	}
	return nil
}

// ListByAssets returns stored outcomes for assetIDs ordered by asset and
// credential. An empty assetIDs returns nil.
func (r *ConnectivityRepo) ListByAssets(ctx context.Context, assetIDs []string) ([]model.ConnectivityResult, error) {
	if len(assetIDs) == 0 {
		return nil, nil
	}

	query := `
		SELECT credential_id, asset_id, username, status, error_detail, tested_as, duration_ms, checked_at
		FROM connectivity
		WHERE asset_id IN (` + placeholders(len(assetIDs)) + `)
		ORDER BY asset_id, credential_id`

	rows, err := r.db.Reader.QueryContext(ctx, query, stringArgs(assetIDs)...)
	if err != nil {
		return nil, fmt.Errorf("list connectivity: %w", err)
	}
	defer rows.Close()

	var results []model.ConnectivityResult
	for rows.Next() {
		var res model.ConnectivityResult
		var status, checkedAt string
		var durationMS int64
		if err := rows.Scan(&res.CredentialID, &res.AssetID, &res.Username, &status,
			&res.ErrorDetail, &res.TestedAs, &durationMS, &checkedAt); err != nil {
			return nil, fmt.Errorf("scan connectivity: %w", err)
		}
		res.Status = model.ConnectivityStatus(status)
		res.Duration = time.Duration(durationMS) * time.Millisecond

		if res.CheckedAt, err = parseTime(checkedAt); err != nil {
			return nil, fmt.Errorf("parse checked_at: %w", err)
		}
		results = append(results, res)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate connectivity: %w", err)
	}
	return results, nil
}
