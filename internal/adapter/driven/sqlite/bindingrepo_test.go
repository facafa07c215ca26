package sqlite

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ericfisherdev/assetusers/internal/domain/model"
	"github.com/ericfisherdev/assetusers/internal/domain/port/driven"
)

func TestBindingRepo_Candidates_AllSources(t *testing.T) {
	db := setupTestDB(t)
	seedInventory(t, db)
	repo := NewBindingRepo(db, testKey)

	got, err := repo.Candidates(context.Background(), model.BindingCriteria{})
	require.NoError(t, err)

	// a-2 reaches su-ops through two nodes but appears once.
	assert.Equal(t, []string{
		"su-dba_a-3:node",
		"su-deploy_a-1:asset",
		"su-ops_a-1:node",
		"au-root_a-1:asset",
		"su-ops_a-2:node",
	}, bindingIDs(got))

	deploy := got[1]
	assert.Equal(t, model.BindingKindSystem, deploy.Kind)
	assert.Equal(t, "web01", deploy.Hostname)
	assert.Equal(t, "10.0.0.1", deploy.Address)
	assert.Equal(t, model.PlatformLinux, deploy.Platform)
	assert.Equal(t, 22, deploy.Port)
	assert.Equal(t, model.DefaultSystemUserPriority, deploy.Priority)

	ops := got[2]
	assert.Equal(t, 50, ops.Priority)

	admin := got[3]
	assert.Equal(t, model.BindingKindAdmin, admin.Kind)
	assert.Equal(t, "root admin", admin.CredentialName)
}

func TestBindingRepo_Candidates_Filters(t *testing.T) {
	db := setupTestDB(t)
	seedInventory(t, db)
	repo := NewBindingRepo(db, testKey)
	ctx := context.Background()

	tests := []struct {
		name     string
		criteria model.BindingCriteria
		want     []string
	}{
		{
			name:     "asset ids",
			criteria: model.BindingCriteria{AssetIDs: []string{"a-2", "a-3"}},
			want:     []string{"su-dba_a-3:node", "su-ops_a-2:node"},
		},
		{
			name:     "node subtree",
			criteria: model.BindingCriteria{NodeID: "n-web"},
			want:     []string{"su-deploy_a-1:asset", "su-ops_a-1:node", "au-root_a-1:asset", "su-ops_a-2:node"},
		},
		{
			name:     "node with username",
			criteria: model.BindingCriteria{NodeID: "n-root", Username: "ops"},
			want:     []string{"su-ops_a-1:node", "su-ops_a-2:node"},
		},
		{
			name:     "unknown node",
			criteria: model.BindingCriteria{NodeID: "missing"},
			want:     []string{},
		},
		{
			name:     "address exact",
			criteria: model.BindingCriteria{Address: "10.0.0.2"},
			want:     []string{"su-ops_a-2:node"},
		},
		{
			name:     "hostname exact",
			criteria: model.BindingCriteria{Hostname: "db01"},
			want:     []string{"su-dba_a-3:node"},
		},
		{
			name:     "username substring",
			criteria: model.BindingCriteria{UsernameContains: "ep"},
			want:     []string{"su-deploy_a-1:asset"},
		},
		{
			name:     "search hostname",
			criteria: model.BindingCriteria{Search: "web02"},
			want:     []string{"su-ops_a-2:node"},
		},
		{
			name:     "search address prefix",
			criteria: model.BindingCriteria{Search: "10.0.1."},
			want:     []string{"su-dba_a-3:node"},
		},
		{
			name:     "like metacharacters are literal",
			criteria: model.BindingCriteria{Search: "%"},
			want:     []string{},
		},
		{
			name:     "binding ids",
			criteria: model.BindingCriteria{BindingIDs: []string{"au-root_a-1", "su-dba_a-3"}},
			want:     []string{"su-dba_a-3:node", "au-root_a-1:asset"},
		},
		{
			name:     "no match",
			criteria: model.BindingCriteria{Username: "nobody"},
			want:     []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := repo.Candidates(ctx, tt.criteria)
			require.NoError(t, err)
			assert.Equal(t, tt.want, bindingIDs(got))
		})
	}
}

func TestBindingRepo_Candidates_NodeCycle(t *testing.T) {
	db := setupTestDB(t)
	inventory := seedInventory(t, db)
	repo := NewBindingRepo(db, testKey)
	ctx := context.Background()

	require.NoError(t, inventory.UpsertNode(ctx, model.Node{ID: "n-root", Name: "root", ParentID: "n-web-eu"}))

	got, err := repo.Candidates(ctx, model.BindingCriteria{Username: "ops"})
	require.NoError(t, err)
	assert.Equal(t, []string{"su-ops_a-1:node", "su-ops_a-2:node"}, bindingIDs(got))
}

func TestBindingRepo_Secret(t *testing.T) {
	db := setupTestDB(t)
	seedInventory(t, db)
	repo := NewBindingRepo(db, testKey)
	ctx := context.Background()

	secret, err := repo.Secret(ctx, model.BindingKindSystem, "su-deploy")
	require.NoError(t, err)
	assert.Equal(t, "deploypw", secret.Password)
	assert.Empty(t, secret.PrivateKey)

	secret, err = repo.Secret(ctx, model.BindingKindAdmin, "au-root")
	require.NoError(t, err)
	assert.Equal(t, "rootpw", secret.Password)

	_, err = repo.Secret(ctx, model.BindingKindAdmin, "su-deploy")
	assert.ErrorIs(t, err, driven.ErrCredentialNotFound)

	_, err = repo.Secret(ctx, model.BindingKind("bogus"), "su-deploy")
	assert.ErrorIs(t, err, driven.ErrCredentialNotFound)
}

func TestBindingRepo_Secret_NoKey(t *testing.T) {
	db := setupTestDB(t)
	seedInventory(t, db)
	repo := NewBindingRepo(db, nil)

	_, err := repo.Secret(context.Background(), model.BindingKindSystem, "su-deploy")
	assert.ErrorIs(t, err, driven.ErrEncryptionKeyNotSet)
}
