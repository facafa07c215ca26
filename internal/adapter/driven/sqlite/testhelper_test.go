package sqlite

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ericfisherdev/assetusers/internal/domain/model"
)

var testKey = bytes.Repeat([]byte{0x42}, 32)

// setupTestDB creates a named shared in-memory SQLite database. Writer and
// reader pools share it through cache=shared, and the name derived from
// t.Name() isolates parallel tests.
func setupTestDB(t *testing.T) *DB {
	t.Helper()

	// WAL does not apply to in-memory databases, so journal_mode is omitted.
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&%s", url.PathEscape(t.Name()), dsnPragmas)

	db, err := open(dsn, ":memory:")
	require.NoError(t, err, "open test db")
	t.Cleanup(func() { _ = db.Close() })

	require.NoError(t, db.Migrate(), "run migrations")
	return db
}

// seedInventory loads a small tree:
//
//	n-root
//	└── n-web
//	    └── n-web-eu
//	n-db
//
// a-1 (web01) sits in n-web-eu with admin au-root and direct system user
// su-deploy. a-2 (web02) sits in both n-web and n-web-eu. a-3 (db01) sits in
// n-db with no admin user. su-ops is attached to n-root and su-dba to n-db.
func seedInventory(t *testing.T, db *DB) *InventoryRepo {
	t.Helper()

	repo := NewInventoryRepo(db, testKey)
	ctx := context.Background()

	for _, n := range []model.Node{
		{ID: "n-root", Name: "root"},
		{ID: "n-web", Name: "web", ParentID: "n-root"},
		{ID: "n-web-eu", Name: "web-eu", ParentID: "n-web"},
		{ID: "n-db", Name: "db"},
	} {
		require.NoError(t, repo.UpsertNode(ctx, n))
	}

	require.NoError(t, repo.UpsertAdminUser(ctx, model.AdminUser{
		ID: "au-root", Name: "root admin", Username: "root", Password: "rootpw",
	}))

	for _, a := range []model.Asset{
		{ID: "a-1", Address: "10.0.0.1", Hostname: "web01", Platform: model.PlatformLinux,
			AdminUserID: "au-root", NodeIDs: []string{"n-web-eu"}},
		{ID: "a-2", Address: "10.0.0.2", Hostname: "web02", Platform: model.PlatformLinux,
			NodeIDs: []string{"n-web", "n-web-eu"}},
		{ID: "a-3", Address: "10.0.1.1", Hostname: "db01", Platform: model.PlatformWindows,
			Port: 3389, NodeIDs: []string{"n-db"}},
	} {
		require.NoError(t, repo.UpsertAsset(ctx, a))
	}

	for _, su := range []model.SystemUser{
		{ID: "su-deploy", Name: "deploy", Username: "deploy", Password: "deploypw", AssetIDs: []string{"a-1"}},
		{ID: "su-ops", Name: "ops", Username: "ops", Password: "opspw", Priority: 50, NodeIDs: []string{"n-root"}},
		{ID: "su-dba", Name: "dba", Username: "dba", Password: "dbapw", NodeIDs: []string{"n-db"}},
	} {
		require.NoError(t, repo.UpsertSystemUser(ctx, su))
	}

	return repo
}

func bindingIDs(bindings []model.Binding) []string {
	ids := make([]string, len(bindings))
	for i, b := range bindings {
		ids[i] = b.ID() + ":" + string(b.Origin)
	}
	return ids
}
