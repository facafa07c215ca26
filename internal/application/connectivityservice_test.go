package application_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ericfisherdev/assetusers/internal/application"
	"github.com/ericfisherdev/assetusers/internal/domain/model"
	"github.com/ericfisherdev/assetusers/internal/domain/port/driven"
)

type connectivityFixture struct {
	svc          *application.ConnectivityService
	prober       *mockProber
	queue        *mockQueue
	connectivity *mockConnectivity
}

func newConnectivityService(candidates ...model.Binding) connectivityFixture {
	inventory := newInventory()
	secrets := &mockSecrets{secrets: map[string]model.Secret{
		"system:su-deploy": {Password: "deploypw"},
		"system:su-ops":    {Password: "opspw"},
		"admin:au-root":    {Password: "rootpw"},
	}}
	f := connectivityFixture{
		prober:       &mockProber{},
		queue:        &mockQueue{},
		connectivity: &mockConnectivity{},
	}
	resolver := application.NewResolver(inventory, &mockBindings{candidates: candidates}, discardLogger())
	f.svc = application.NewConnectivityService(resolver, inventory, secrets, f.prober, f.queue, f.connectivity, discardLogger())
	return f
}

func TestConnectivityService_Test(t *testing.T) {
	deploy := systemDirect(assetA, "deploy", "su-deploy", 20)
	ops := systemNode(assetB, "ops", "su-ops", 20)
	f := newConnectivityService()
	f.prober.fn = func(_ context.Context, asset model.Asset, _ string) error {
		if asset.ID == assetB.ID {
			return errors.New("ssh: handshake failed: ssh: unable to authenticate")
		}
		return nil
	}
	ctx := context.Background()

	jobID, err := f.svc.Test(ctx, []model.Binding{deploy, ops}, false)
	require.NoError(t, err)

	job, err := f.svc.Poll(ctx, jobID)
	require.NoError(t, err)
	require.Len(t, job.Results, 2)

	assert.Equal(t, model.ConnectivitySuccess, job.Results[0].Status)
	assert.Equal(t, "deploy", job.Results[0].TestedAs)
	assert.Equal(t, model.ConnectivityFailure, job.Results[1].Status)
	assert.Contains(t, job.Results[1].ErrorDetail, "unable to authenticate")
	assert.False(t, job.Results[1].CheckedAt.IsZero())

	require.Len(t, f.prober.calls, 2)
	assert.Equal(t, "deploypw", f.prober.calls[0].Secret.Password)
	assert.Equal(t, "opspw", f.prober.calls[1].Secret.Password)

	assert.Len(t, f.connectivity.saved, 2, "every outcome is recorded")
}

func TestConnectivityService_RunAsAdmin(t *testing.T) {
	deploy := systemDirect(assetA, "deploy", "su-deploy", 20)
	ops := systemNode(assetB, "ops", "su-ops", 20)
	f := newConnectivityService()
	ctx := context.Background()

	jobID, err := f.svc.Test(ctx, []model.Binding{deploy, ops}, true)
	require.NoError(t, err)
	job, err := f.svc.Poll(ctx, jobID)
	require.NoError(t, err)

	require.Len(t, f.prober.calls, 1, "asset without an admin user is never dialled")
	assert.Equal(t, "root", f.prober.calls[0].Username)
	assert.Equal(t, "rootpw", f.prober.calls[0].Secret.Password)

	assert.Equal(t, model.ConnectivitySuccess, job.Results[0].Status)
	assert.Equal(t, "root", job.Results[0].TestedAs)
	assert.Equal(t, "su-deploy", job.Results[0].CredentialID, "result stays keyed by the tested binding")

	assert.Equal(t, model.ConnectivityFailure, job.Results[1].Status)
	assert.Equal(t, application.DetailNoAdminUser, job.Results[1].ErrorDetail)
}

func TestConnectivityService_Timeout(t *testing.T) {
	f := newConnectivityService()
	f.prober.fn = func(context.Context, model.Asset, string) error {
		return context.DeadlineExceeded
	}

	jobID, err := f.svc.Test(context.Background(), []model.Binding{systemDirect(assetA, "deploy", "su-deploy", 20)}, false)
	require.NoError(t, err)
	job, err := f.svc.Poll(context.Background(), jobID)
	require.NoError(t, err)

	assert.Equal(t, model.ConnectivityFailure, job.Results[0].Status)
	assert.Equal(t, application.DetailTimedOut, job.Results[0].ErrorDetail)
}

func TestConnectivityService_SaveFailureKeepsResult(t *testing.T) {
	f := newConnectivityService()
	f.connectivity.saveErr = errors.New("database is locked")

	jobID, err := f.svc.Test(context.Background(), []model.Binding{systemDirect(assetA, "deploy", "su-deploy", 20)}, false)
	require.NoError(t, err)
	job, err := f.svc.Poll(context.Background(), jobID)
	require.NoError(t, err)

	assert.Equal(t, model.ConnectivitySuccess, job.Results[0].Status)
}

func TestConnectivityService_MissingSecret(t *testing.T) {
	f := newConnectivityService()

	jobID, err := f.svc.Test(context.Background(), []model.Binding{systemDirect(assetA, "app", "su-unknown", 20)}, false)
	require.NoError(t, err)
	job, err := f.svc.Poll(context.Background(), jobID)
	require.NoError(t, err)

	assert.Equal(t, model.ConnectivityFailure, job.Results[0].Status)
	assert.Empty(t, f.prober.calls)
}

func TestConnectivityService_TestAssetUsers(t *testing.T) {
	deploy := systemDirect(assetA, "deploy", "su-deploy", 20)
	root := adminOn(assetA, "root", "au-root")
	ops := systemNode(assetB, "ops", "su-ops", 20)
	f := newConnectivityService(deploy, root, ops)
	ctx := context.Background()

	jobID, err := f.svc.TestAssetUsers(ctx, "", assetA.ID, model.Preference{}, false)
	require.NoError(t, err)
	job, err := f.svc.Poll(ctx, jobID)
	require.NoError(t, err)
	assert.Len(t, job.Results, 2, "only bindings on the requested asset")

	jobID, err = f.svc.TestAssetUsers(ctx, "deploy", assetA.ID, model.Preference{}, false)
	require.NoError(t, err)
	job, err = f.svc.Poll(ctx, jobID)
	require.NoError(t, err)
	require.Len(t, job.Results, 1)
	assert.Equal(t, "su-deploy", job.Results[0].CredentialID)

	_, err = f.svc.TestAssetUsers(ctx, "deploy", "", model.Preference{}, false)
	assert.ErrorIs(t, err, application.ErrInvalidArgument)

	_, err = f.svc.TestAssetUsers(ctx, "deploy", "missing", model.Preference{}, false)
	assert.ErrorIs(t, err, driven.ErrAssetNotFound)
}

func TestConnectivityService_EmptyBatch(t *testing.T) {
	f := newConnectivityService()

	jobID, err := f.svc.Test(context.Background(), nil, false)
	require.NoError(t, err)
	job, err := f.svc.Poll(context.Background(), jobID)
	require.NoError(t, err)
	assert.Equal(t, model.JobStatusFinished, job.Status)
	assert.Empty(t, job.Results)
}

func TestConnectivityService_SubmitErrors(t *testing.T) {
	f := newConnectivityService()
	f.queue.submitErr = driven.ErrQueueFull

	_, err := f.svc.Test(context.Background(), []model.Binding{systemDirect(assetA, "deploy", "su-deploy", 20)}, false)
	assert.ErrorIs(t, err, driven.ErrQueueFull)

	_, err = f.svc.Poll(context.Background(), "unknown")
	assert.ErrorIs(t, err, driven.ErrJobNotFound)
}
