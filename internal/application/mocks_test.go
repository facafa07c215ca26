package application_test

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"strings"
	"sync"

	"github.com/ericfisherdev/assetusers/internal/domain/model"
	"github.com/ericfisherdev/assetusers/internal/domain/port/driven"
)

// --- Mock implementations ---

type mockInventory struct {
	assets  map[string]model.Asset
	nodes   map[string]model.Node
	admins  map[string]model.AdminUser
	nodeErr error
}

func (m *mockInventory) GetAsset(_ context.Context, id string) (model.Asset, error) {
	a, ok := m.assets[id]
	if !ok {
		return model.Asset{}, fmt.Errorf("get asset %s: %w", id, driven.ErrAssetNotFound)
	}
	return a, nil
}

func (m *mockInventory) GetNode(_ context.Context, id string) (model.Node, error) {
	if m.nodeErr != nil {
		return model.Node{}, m.nodeErr
	}
	n, ok := m.nodes[id]
	if !ok {
		return model.Node{}, fmt.Errorf("get node %s: %w", id, driven.ErrNodeNotFound)
	}
	return n, nil
}

func (m *mockInventory) GetAdminUser(_ context.Context, id string) (model.AdminUser, error) {
	u, ok := m.admins[id]
	if !ok {
		return model.AdminUser{}, driven.ErrCredentialNotFound
	}
	return u, nil
}

// mockBindings filters a fixed candidate list on the criteria fields the
// application layer sets.
type mockBindings struct {
	candidates []model.Binding
	err        error
}

func (m *mockBindings) Candidates(_ context.Context, c model.BindingCriteria) ([]model.Binding, error) {
	if m.err != nil {
		return nil, m.err
	}
	var out []model.Binding
	for _, b := range m.candidates {
		if len(c.AssetIDs) > 0 && !slices.Contains(c.AssetIDs, b.AssetID) {
			continue
		}
		if c.Username != "" && b.Username != c.Username {
			continue
		}
		if c.UsernameContains != "" && !strings.Contains(b.Username, c.UsernameContains) {
			continue
		}
		out = append(out, b)
	}
	return out, nil
}

type mockSecrets struct {
	secrets map[string]model.Secret // keyed by "<kind>:<id>"
	err     error
}

func (m *mockSecrets) Secret(_ context.Context, kind model.BindingKind, id string) (model.Secret, error) {
	if m.err != nil {
		return model.Secret{}, m.err
	}
	s, ok := m.secrets[string(kind)+":"+id]
	if !ok {
		return model.Secret{}, driven.ErrCredentialNotFound
	}
	return s, nil
}

type mockAuthBooks struct {
	created []model.AuthBook
}

func (m *mockAuthBooks) Create(_ context.Context, entry model.AuthBook) (model.AuthBook, error) {
	entry.ID = fmt.Sprintf("ab-%d", len(m.created)+1)
	entry.Version = len(m.created) + 1
	m.created = append(m.created, entry)
	return entry, nil
}

type mockConnectivity struct {
	mu      sync.Mutex
	saved   []model.ConnectivityResult
	stored  []model.ConnectivityResult
	saveErr error
	listErr error
}

func (m *mockConnectivity) Save(_ context.Context, r model.ConnectivityResult) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saved = append(m.saved, r)
	return m.saveErr
}

func (m *mockConnectivity) ListByAssets(_ context.Context, _ []string) ([]model.ConnectivityResult, error) {
	return m.stored, m.listErr
}

type probeCall struct {
	AssetID  string
	Username string
	Secret   model.Secret
}

type mockProber struct {
	mu    sync.Mutex
	calls []probeCall
	fn    func(ctx context.Context, asset model.Asset, username string) error
}

func (m *mockProber) Probe(ctx context.Context, asset model.Asset, username string, secret model.Secret) error {
	m.mu.Lock()
	m.calls = append(m.calls, probeCall{AssetID: asset.ID, Username: username, Secret: secret})
	m.mu.Unlock()
	if m.fn != nil {
		return m.fn(ctx, asset, username)
	}
	return nil
}

// mockQueue runs every task inline during Submit.
type mockQueue struct {
	jobs      map[string]model.Job
	submitErr error
}

func (m *mockQueue) Submit(ctx context.Context, tasks []driven.ProbeTask, fn driven.ProbeFunc) (string, error) {
	if m.submitErr != nil {
		return "", m.submitErr
	}
	if m.jobs == nil {
		m.jobs = make(map[string]model.Job)
	}
	id := fmt.Sprintf("job-%d", len(m.jobs)+1)
	job := model.Job{ID: id, Status: model.JobStatusFinished}
	for _, task := range tasks {
		job.Results = append(job.Results, fn(ctx, id, task))
	}
	m.jobs[id] = job
	return id, nil
}

func (m *mockQueue) Poll(_ context.Context, id string) (model.Job, error) {
	job, ok := m.jobs[id]
	if !ok {
		return model.Job{}, driven.ErrJobNotFound
	}
	return job, nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func bufferLogger() (*slog.Logger, *bytes.Buffer) {
	var buf bytes.Buffer
	return slog.New(slog.NewTextHandler(&buf, nil)), &buf
}

// --- Fixtures ---

var (
	assetA = model.Asset{ID: "a-A", Address: "10.0.0.10", Hostname: "alpha", Port: 22,
		Platform: model.PlatformLinux, AdminUserID: "au-root"}
	assetB = model.Asset{ID: "a-B", Address: "10.0.0.11", Hostname: "bravo", Port: 22,
		Platform: model.PlatformLinux}
)

func bindingOn(a model.Asset, username, credID string, kind model.BindingKind, origin model.BindingOrigin, priority int) model.Binding {
	return model.Binding{
		AssetID:        a.ID,
		Address:        a.Address,
		Hostname:       a.Hostname,
		Platform:       a.Platform,
		Port:           a.Port,
		Username:       username,
		CredentialID:   credID,
		CredentialName: credID,
		Kind:           kind,
		Origin:         origin,
		Priority:       priority,
	}
}

func systemDirect(a model.Asset, username, id string, priority int) model.Binding {
	return bindingOn(a, username, id, model.BindingKindSystem, model.BindingOriginAsset, priority)
}

func systemNode(a model.Asset, username, id string, priority int) model.Binding {
	return bindingOn(a, username, id, model.BindingKindSystem, model.BindingOriginNode, priority)
}

func adminOn(a model.Asset, username, id string) model.Binding {
	return bindingOn(a, username, id, model.BindingKindAdmin, model.BindingOriginAsset, 0)
}

func authBookOn(a model.Asset, username, id string, version int) model.Binding {
	b := bindingOn(a, username, id, model.BindingKindAuthBook, model.BindingOriginAsset, 0)
	b.Version = version
	return b
}

func newInventory() *mockInventory {
	return &mockInventory{
		assets: map[string]model.Asset{assetA.ID: assetA, assetB.ID: assetB},
		nodes:  map[string]model.Node{"n-web": {ID: "n-web", Name: "web"}},
		admins: map[string]model.AdminUser{"au-root": {ID: "au-root", Name: "root", Username: "root"}},
	}
}
