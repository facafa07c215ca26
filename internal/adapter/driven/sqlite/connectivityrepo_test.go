package sqlite

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ericfisherdev/assetusers/internal/domain/model"
)

func TestConnectivityRepo_SaveAndList(t *testing.T) {
	db := setupTestDB(t)
	seedInventory(t, db)
	repo := NewConnectivityRepo(db)
	ctx := context.Background()

	checked := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, repo.Save(ctx, model.ConnectivityResult{
		CredentialID: "su-deploy", AssetID: "a-1", Username: "deploy",
		Status: model.ConnectivityFailure, ErrorDetail: "auth failed", TestedAs: "deploy",
		Duration: 1500 * time.Millisecond, CheckedAt: checked,
	}))
	require.NoError(t, repo.Save(ctx, model.ConnectivityResult{
		CredentialID: "su-ops", AssetID: "a-2", Username: "ops",
		Status: model.ConnectivitySuccess, TestedAs: "ops", CheckedAt: checked,
	}))

	got, err := repo.ListByAssets(ctx, []string{"a-1"})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, model.ConnectivityFailure, got[0].Status)
	assert.Equal(t, "auth failed", got[0].ErrorDetail)
	assert.Equal(t, 1500*time.Millisecond, got[0].Duration)
	assert.True(t, checked.Equal(got[0].CheckedAt))

	got, err = repo.ListByAssets(ctx, []string{"a-1", "a-2", "a-3"})
	require.NoError(t, err)
	assert.Len(t, got, 2)
}

func TestConnectivityRepo_SaveReplaces(t *testing.T) {
	db := setupTestDB(t)
	seedInventory(t, db)
	repo := NewConnectivityRepo(db)
	ctx := context.Background()

	result := model.ConnectivityResult{
		CredentialID: "su-deploy", AssetID: "a-1", Username: "deploy",
		Status: model.ConnectivityFailure, ErrorDetail: "timeout",
	}
	require.NoError(t, repo.Save(ctx, result))

	result.Status = model.ConnectivitySuccess
	result.ErrorDetail = ""
	require.NoError(t, repo.Save(ctx, result))

	got, err := repo.ListByAssets(ctx, []string{"a-1"})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, model.ConnectivitySuccess, got[0].Status)
	assert.Empty(t, got[0].ErrorDetail)
}

func TestConnectivityRepo_ListEmpty(t *testing.T) {
	db := setupTestDB(t)
	repo := NewConnectivityRepo(db)

	got, err := repo.ListByAssets(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, got)
}
