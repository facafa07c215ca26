package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/ericfisherdev/assetusers/internal/domain/model"
	"github.com/ericfisherdev/assetusers/internal/domain/port/driven"
)

// Failure details recorded on probe results.
const (
	DetailNoAdminUser = "asset has no admin user"
	DetailTimedOut    = "probe timed out"
)

// resultWriteTimeout bounds the best-effort connectivity write made after a
// probe, which may run after the probe context has expired.
const resultWriteTimeout = 5 * time.Second

// ConnectivityService submits credential probes to a JobQueue and executes
// them when the queue's workers call back.
type ConnectivityService struct {
	resolver     *Resolver
	inventory    driven.InventoryStore
	secrets      driven.SecretStore
	prober       driven.Prober
	queue        driven.JobQueue
	connectivity driven.ConnectivityStore
	logger       *slog.Logger
	now          func() time.Time
}

// NewConnectivityService creates a new ConnectivityService with the required dependencies.
func NewConnectivityService(
	resolver *Resolver,
	inventory driven.InventoryStore,
	secrets driven.SecretStore,
	prober driven.Prober,
	queue driven.JobQueue,
	connectivity driven.ConnectivityStore,
	logger *slog.Logger,
) *ConnectivityService {
	return &ConnectivityService{
		resolver:     resolver,
		inventory:    inventory,
		secrets:      secrets,
		prober:       prober,
		queue:        queue,
		connectivity: connectivity,
		logger:       logger,
		now:          time.Now,
	}
}

// Test submits one probe per binding and returns the job id immediately.
// With runAsAdmin every probe authenticates with the asset's admin user
// instead of the binding's own credential.
func (s *ConnectivityService) Test(ctx context.Context, bindings []model.Binding, runAsAdmin bool) (string, error) {
	tasks := make([]driven.ProbeTask, len(bindings))
	for i, b := range bindings {
		tasks[i] = driven.ProbeTask{Binding: b, RunAsAdmin: runAsAdmin}
	}

	jobID, err := s.queue.Submit(ctx, tasks, s.probe)
	if err != nil {
		return "", fmt.Errorf("submit connectivity test: %w", err)
	}

	s.logger.Info("connectivity test submitted", "job_id", jobID, "tasks", len(tasks), "run_as_admin", runAsAdmin)
	return jobID, nil
}

// TestAssetUsers filters the bindings of username on assetID, using pref as
// a tie-break hint, and submits them.
func (s *ConnectivityService) TestAssetUsers(
	ctx context.Context,
	username, assetID string,
	pref model.Preference,
	runAsAdmin bool,
) (string, error) {
	if assetID == "" {
		return "", fmt.Errorf("test asset users: asset id is required: %w", ErrInvalidArgument)
	}
	if _, err := s.inventory.GetAsset(ctx, assetID); err != nil {
		return "", fmt.Errorf("test asset users: %w", err)
	}

	bindings, err := s.resolver.Filter(ctx, model.BindingCriteria{
		AssetIDs:   []string{assetID},
		Username:   username,
		Preference: pref,
	})
	if err != nil {
		return "", fmt.Errorf("test asset users: %w", err)
	}

	return s.Test(ctx, bindings, runAsAdmin)
}

// Poll returns a snapshot of a submitted job.
func (s *ConnectivityService) Poll(ctx context.Context, jobID string) (model.Job, error) {
	job, err := s.queue.Poll(ctx, jobID)
	if err != nil {
		return model.Job{}, fmt.Errorf("poll job %s: %w", jobID, err)
	}
	return job, nil
}

// probe is the driven.ProbeFunc handed to the queue. It never returns a
// pending result.
func (s *ConnectivityService) probe(ctx context.Context, jobID string, task driven.ProbeTask) model.ConnectivityResult {
	b := task.Binding
	start := s.now()

	result := model.PendingResult(b)
	result.TestedAs = b.Username

	logger := s.logger.With(append([]any{"job_id", jobID}, b.AsLogFields()...)...)

	err := s.attempt(ctx, task, &result)

	result.Duration = s.now().Sub(start)
	result.CheckedAt = s.now().UTC()
	if err != nil {
		result.Status = model.ConnectivityFailure
		result.ErrorDetail = failureDetail(ctx, err)
		logger.Info("probe failed", "tested_as", result.TestedAs, "error", result.ErrorDetail)
	} else {
		result.Status = model.ConnectivitySuccess
		logger.Debug("probe succeeded", "tested_as", result.TestedAs, "duration", result.Duration)
	}

	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), resultWriteTimeout)
	defer cancel()
	if err := s.connectivity.Save(writeCtx, result); err != nil {
		logger.Warn("failed to record connectivity", "error", err)
	}

	return result
}

func (s *ConnectivityService) attempt(ctx context.Context, task driven.ProbeTask, result *model.ConnectivityResult) error {
	b := task.Binding
	asset := b.Asset()
	kind, credentialID, username := b.Kind, b.CredentialID, b.Username

	if task.RunAsAdmin {
		full, err := s.inventory.GetAsset(ctx, b.AssetID)
		if err != nil {
			return err
		}
		if full.AdminUserID == "" {
			return errors.New(DetailNoAdminUser)
		}
		admin, err := s.inventory.GetAdminUser(ctx, full.AdminUserID)
		if err != nil {
			return err
		}
		kind, credentialID, username = model.BindingKindAdmin, admin.ID, admin.Username
		result.TestedAs = admin.Username
	}

	secret, err := s.secrets.Secret(ctx, kind, credentialID)
	if err != nil {
		return err
	}

	return s.prober.Probe(ctx, asset, username, secret)
}

func failureDetail(ctx context.Context, err error) string {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return DetailTimedOut
	}
	return err.Error()
}
