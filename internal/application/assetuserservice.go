package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"golang.org/x/crypto/ssh"

	"github.com/ericfisherdev/assetusers/internal/domain/model"
	"github.com/ericfisherdev/assetusers/internal/domain/port/driven"
)

// AuthBookInput is an operator request to store a credential for one asset
// and username.
type AuthBookInput struct {
	AssetID    string
	Username   string
	Password   string
	PrivateKey string
	Comment    string
}

// AssetUser is a binding enriched with its last connectivity outcome.
type AssetUser struct {
	model.Binding
	Connectivity *model.ConnectivityResult
}

// AssetUserAuth is a binding with its decrypted secret.
type AssetUserAuth struct {
	model.Binding
	Secret model.Secret

	// PublicKeyFingerprint is the SHA256 fingerprint of the public half of
	// Secret.PrivateKey, empty when there is no usable key.
	PublicKeyFingerprint string
}

// AssetUserService serves the list, create, auth-info and export use cases.
type AssetUserService struct {
	resolver     *Resolver
	inventory    driven.InventoryStore
	authBooks    driven.AuthBookStore
	secrets      driven.SecretStore
	connectivity driven.ConnectivityStore
	logger       *slog.Logger
}

// NewAssetUserService creates a new AssetUserService with the required dependencies.
func NewAssetUserService(
	resolver *Resolver,
	inventory driven.InventoryStore,
	authBooks driven.AuthBookStore,
	secrets driven.SecretStore,
	connectivity driven.ConnectivityStore,
	logger *slog.Logger,
) *AssetUserService {
	return &AssetUserService{
		resolver:     resolver,
		inventory:    inventory,
		authBooks:    authBooks,
		secrets:      secrets,
		connectivity: connectivity,
		logger:       logger,
	}
}

// List filters bindings and attaches the stored connectivity of each. A
// failure to read connectivity is logged and leaves it unset.
func (s *AssetUserService) List(ctx context.Context, criteria model.BindingCriteria) ([]AssetUser, error) {
	bindings, err := s.resolver.Filter(ctx, criteria)
	if err != nil {
		return nil, err
	}

	users := make([]AssetUser, len(bindings))
	assetIDs := make([]string, 0, len(bindings))
	seen := make(map[string]bool, len(bindings))
	for i, b := range bindings {
		users[i] = AssetUser{Binding: b}
		if !seen[b.AssetID] {
			seen[b.AssetID] = true
			assetIDs = append(assetIDs, b.AssetID)
		}
	}

	results, err := s.connectivity.ListByAssets(ctx, assetIDs)
	if err != nil {
		s.logger.Warn("failed to load connectivity", "error", err)
		return users, nil
	}

	byBinding := make(map[string]model.ConnectivityResult, len(results))
	for _, r := range results {
		byBinding[r.CredentialID+"_"+r.AssetID] = r
	}
	for i := range users {
		if r, ok := byBinding[users[i].ID()]; ok {
			users[i].Connectivity = &r
		}
	}

	return users, nil
}

// Create stores a new authbook version and returns the binding it produces.
func (s *AssetUserService) Create(ctx context.Context, in AuthBookInput) (model.Binding, error) {
	in.Username = strings.TrimSpace(in.Username)

	switch {
	case in.AssetID == "":
		return model.Binding{}, fmt.Errorf("create asset user: asset_id is required: %w", ErrInvalidArgument)
	case in.Username == "":
		return model.Binding{}, fmt.Errorf("create asset user: username is required: %w", ErrInvalidArgument)
	case in.Password == "" && in.PrivateKey == "":
		return model.Binding{}, fmt.Errorf("create asset user: password or private_key is required: %w", ErrInvalidArgument)
	}

	if in.PrivateKey != "" {
		if _, err := ssh.ParsePrivateKey([]byte(in.PrivateKey)); err != nil {
			return model.Binding{}, fmt.Errorf("create asset user: private_key: %v: %w", err, ErrInvalidArgument)
		}
	}

	asset, err := s.inventory.GetAsset(ctx, in.AssetID)
	if err != nil {
		return model.Binding{}, fmt.Errorf("create asset user: %w", err)
	}

	entry, err := s.authBooks.Create(ctx, model.AuthBook{
		AssetID:    asset.ID,
		Username:   in.Username,
		Password:   in.Password,
		PrivateKey: in.PrivateKey,
		Comment:    in.Comment,
	})
	if err != nil {
		return model.Binding{}, fmt.Errorf("create asset user: %w", err)
	}

	s.logger.Info("authbook entry created",
		"asset_id", asset.ID, "username", entry.Username, "version", entry.Version)

	return model.Binding{
		AssetID:        asset.ID,
		Address:        asset.Address,
		Hostname:       asset.Hostname,
		Platform:       asset.Platform,
		Port:           asset.Port,
		Username:       entry.Username,
		CredentialID:   entry.ID,
		CredentialName: entry.Username,
		Kind:           model.BindingKindAuthBook,
		Origin:         model.BindingOriginAsset,
		Version:        entry.Version,
		CreatedAt:      entry.CreatedAt,
	}, nil
}

// AuthInfo resolves a single binding and returns it with its secret.
func (s *AssetUserService) AuthInfo(ctx context.Context, username, assetID string, pref model.Preference) (AssetUserAuth, error) {
	b, err := s.resolver.Resolve(ctx, username, assetID, pref)
	if err != nil {
		return AssetUserAuth{}, err
	}
	return s.withSecret(ctx, b)
}

// Export filters bindings and attaches the secret of each. An export without
// any filter is logged at warn.
func (s *AssetUserService) Export(ctx context.Context, criteria model.BindingCriteria) ([]AssetUserAuth, error) {
	bindings, err := s.resolver.Filter(ctx, criteria)
	if err != nil {
		return nil, err
	}
	if criteria.IsEmpty() {
		s.logger.Warn("unfiltered asset user export", "count", len(bindings))
	}

	out := make([]AssetUserAuth, 0, len(bindings))
	for _, b := range bindings {
		auth, err := s.withSecret(ctx, b)
		if err != nil {
			return nil, err
		}
		out = append(out, auth)
	}
	return out, nil
}

func (s *AssetUserService) withSecret(ctx context.Context, b model.Binding) (AssetUserAuth, error) {
	secret, err := s.secrets.Secret(ctx, b.Kind, b.CredentialID)
	if err != nil {
		if !errors.Is(err, driven.ErrEncryptionKeyNotSet) {
			s.logger.Error("failed to load secret", append(b.AsLogFields(), "error", err)...)
		}
		return AssetUserAuth{}, fmt.Errorf("load secret for %s: %w", b.ID(), err)
	}

	return AssetUserAuth{
		Binding:              b,
		Secret:               secret,
		PublicKeyFingerprint: PublicKeyFingerprint(secret.PrivateKey),
	}, nil
}

// PublicKeyFingerprint returns the SHA256 fingerprint of the public key
// derived from an unencrypted PEM private key, or "" if it cannot be parsed.
func PublicKeyFingerprint(privateKey string) string {
	if privateKey == "" {
		return ""
	}
	signer, err := ssh.ParsePrivateKey([]byte(privateKey))
	if err != nil {
		return ""
	}
	return ssh.FingerprintSHA256(signer.PublicKey())
}
