package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/ericfisherdev/assetusers/internal/domain/model"
	"github.com/ericfisherdev/assetusers/internal/domain/port/driven"
)

// Compile-time interface satisfaction checks.
var (
	_ driven.BindingStore = (*BindingRepo)(nil)
	_ driven.SecretStore  = (*BindingRepo)(nil)
)

// BindingRepo is the SQLite implementation of the BindingStore and
// SecretStore ports.
type BindingRepo struct {
	db     *DB
	cipher secretCipher
}

// NewBindingRepo creates a BindingRepo. A nil key makes Secret return
// driven.ErrEncryptionKeyNotSet.
func NewBindingRepo(db *DB, key []byte) *BindingRepo {
	return &BindingRepo{db: db, cipher: newSecretCipher(key)}
}

// bindingSources unions the four candidate sources into one row shape:
// asset_id, address, hostname, platform, port, username, credential_id,
// credential_name, kind, origin, priority, version, created_at.
//
// asset_ancestry pairs each asset with every node it belongs to and all of
// their ancestors, so a system user attached anywhere up the tree reaches it.
const bindingSources = `
	asset_ancestry(asset_id, node_id) AS (
		SELECT asset_id, node_id FROM asset_nodes
		UNION
		SELECT aa.asset_id, n.parent_id
		FROM asset_ancestry aa JOIN nodes n ON n.id = aa.node_id
		WHERE n.parent_id IS NOT NULL
	),
	candidates AS (
		SELECT a.id AS asset_id, a.address, a.hostname, a.platform, a.port,
			ab.username, ab.id AS credential_id, ab.username AS credential_name,
			'authbook' AS kind, 'asset' AS origin, 0 AS priority, ab.version, ab.created_at
		FROM auth_books ab JOIN assets a ON a.id = ab.asset_id
		WHERE ab.is_latest = 1

		UNION ALL

		SELECT a.id, a.address, a.hostname, a.platform, a.port,
			su.username, su.id, su.name,
			'system', 'asset', su.priority, 0, su.created_at
		FROM system_user_assets sua
		JOIN assets a ON a.id = sua.asset_id
		JOIN system_users su ON su.id = sua.system_user_id

		UNION ALL

		SELECT DISTINCT a.id, a.address, a.hostname, a.platform, a.port,
			su.username, su.id, su.name,
			'system', 'node', su.priority, 0, su.created_at
		FROM system_user_nodes sun
		JOIN asset_ancestry aa ON aa.node_id = sun.node_id
		JOIN assets a ON a.id = aa.asset_id
		JOIN system_users su ON su.id = sun.system_user_id

		UNION ALL

		SELECT a.id, a.address, a.hostname, a.platform, a.port,
			au.username, au.id, au.name,
			'admin', 'asset', 0, 0, au.created_at
		FROM assets a JOIN admin_users au ON au.id = a.admin_user_id
	)`

const subtreeCTE = `
	subtree(id) AS (
		SELECT id FROM nodes WHERE id = ?
		UNION
		SELECT n.id FROM nodes n JOIN subtree s ON n.parent_id = s.id
	),`

// Candidates returns every candidate binding matching criteria, from all
// sources, with no precedence applied. A credential reachable through more
// than one origin appears once per origin.
func (r *BindingRepo) Candidates(ctx context.Context, criteria model.BindingCriteria) ([]model.Binding, error) {
	query, args := buildCandidatesQuery(criteria)

	rows, err := r.db.Reader.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query binding candidates: %w", err)
	}
	defer rows.Close()

	var bindings []model.Binding
	for rows.Next() {
		b, err := scanBinding(rows)
		if err != nil {
			return nil, err
		}
		bindings = append(bindings, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate binding candidates: %w", err)
	}

	return bindings, nil
}

func buildCandidatesQuery(c model.BindingCriteria) (string, []any) {
	var (
		sb    strings.Builder
		where []string
		args  []any
	)

	sb.WriteString("WITH RECURSIVE")
	if c.NodeID != "" {
		sb.WriteString(subtreeCTE)
		args = append(args, c.NodeID)
		where = append(where,
			"asset_id IN (SELECT an.asset_id FROM asset_nodes an JOIN subtree s ON an.node_id = s.id)")
	}
	sb.WriteString(bindingSources)
	sb.WriteString(`
	SELECT asset_id, address, hostname, platform, port, username, credential_id,
		credential_name, kind, origin, priority, version, created_at
	FROM candidates`)

	if len(c.AssetIDs) > 0 {
		where = append(where, "asset_id IN ("+placeholders(len(c.AssetIDs))+")")
		args = append(args, stringArgs(c.AssetIDs)...)
	}
	if c.Address != "" {
		where = append(where, "address = ?")
		args = append(args, c.Address)
	}
	if c.Hostname != "" {
		where = append(where, "hostname = ?")
		args = append(args, c.Hostname)
	}
	if c.Username != "" {
		where = append(where, "username = ?")
		args = append(args, c.Username)
	}
	if c.UsernameContains != "" {
		where = append(where, `username LIKE ? ESCAPE '\'`)
		args = append(args, likeContains(c.UsernameContains))
	}
	if c.Search != "" {
		pattern := likeContains(c.Search)
		where = append(where,
			`(address LIKE ? ESCAPE '\' OR hostname LIKE ? ESCAPE '\' OR username LIKE ? ESCAPE '\')`)
		args = append(args, pattern, pattern, pattern)
	}
	if len(c.BindingIDs) > 0 {
		where = append(where, "credential_id || '_' || asset_id IN ("+placeholders(len(c.BindingIDs))+")")
		args = append(args, stringArgs(c.BindingIDs)...)
	}

	if len(where) > 0 {
		sb.WriteString("\n\tWHERE ")
		sb.WriteString(strings.Join(where, " AND "))
	}
	sb.WriteString("\n\tORDER BY hostname, username, asset_id, kind, origin, credential_id")

	return sb.String(), args
}

func scanBinding(s scanner) (model.Binding, error) {
	var b model.Binding
	var platform, kind, origin, createdAt string

	err := s.Scan(
		&b.AssetID, &b.Address, &b.Hostname, &platform, &b.Port, &b.Username,
		&b.CredentialID, &b.CredentialName, &kind, &origin, &b.Priority, &b.Version, &createdAt,
	)
	if err != nil {
		return model.Binding{}, fmt.Errorf("scan binding: %w", err)
	}

	b.Platform = model.Platform(platform)
	b.Kind = model.BindingKind(kind)
	b.Origin = model.BindingOrigin(origin)

	b.CreatedAt, err = parseTime(createdAt)
	if err != nil {
		return model.Binding{}, fmt.Errorf("parse created_at for binding %s: %w", b.ID(), err)
	}
	return b, nil
}

var secretTables = map[model.BindingKind]string{
	model.BindingKindAdmin:    "admin_users",
	model.BindingKindSystem:   "system_users",
	model.BindingKindAuthBook: "auth_books",
}

// Secret loads and decrypts the password and private key of a credential.
func (r *BindingRepo) Secret(ctx context.Context, kind model.BindingKind, credentialID string) (model.Secret, error) {
	if !r.cipher.enabled() {
		return model.Secret{}, driven.ErrEncryptionKeyNotSet
	}

	table, ok := secretTables[kind]
	if !ok {
		return model.Secret{}, fmt.Errorf("load secret for %s credential %s: %w", kind, credentialID, driven.ErrCredentialNotFound)
	}

	query := `SELECT password, private_key FROM ` + table + ` WHERE id = ?`

	var password, privateKey string
	err := r.db.Reader.QueryRowContext(ctx, query, credentialID).Scan(&password, &privateKey)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Secret{}, fmt.Errorf("load secret for %s credential %s: %w", kind, credentialID, driven.ErrCredentialNotFound)
	}
	if err != nil {
		return model.Secret{}, fmt.Errorf("load secret for %s credential %s: %w", kind, credentialID, err)
	}

	secret, err := r.cipher.openSecret(password, privateKey)
	if err != nil {
		return model.Secret{}, fmt.Errorf("decrypt %s credential %s: %w", kind, credentialID, err)
	}
	return secret, nil
}
