package driven

import (
	"context"
	"errors"

	"github.com/ericfisherdev/assetusers/internal/domain/model"
)

// ErrEncryptionKeyNotSet is returned by secret operations when
// ASSETUSERS_SECRET_KEY has not been configured.
var ErrEncryptionKeyNotSet = errors.New("encryption key not configured: set ASSETUSERS_SECRET_KEY")

// ErrCredentialNotFound is returned when a credential id does not exist for
// the requested kind.
var ErrCredentialNotFound = errors.New("credential not found")

// BindingStore defines the driven port that enumerates candidate bindings.
// It returns every candidate from every source (authbook, direct and
// node-inherited system users, admin user) without applying precedence.
// Criteria.Preference is ignored by the store.
type BindingStore interface {
	Candidates(ctx context.Context, criteria model.BindingCriteria) ([]model.Binding, error)
}

// SecretStore defines the driven port for decrypted credential material.
type SecretStore interface {
	// Secret returns the plaintext secret for a credential of the given kind.
	// Returns ErrCredentialNotFound or ErrEncryptionKeyNotSet.
	Secret(ctx context.Context, kind model.BindingKind, credentialID string) (model.Secret, error)
}

// AuthBookStore defines the driven port for versioned authbook records.
type AuthBookStore interface {
	// Create stores entry as the next version for (AssetID, Username) and
	// returns it with ID, Version and CreatedAt populated.
	Create(ctx context.Context, entry model.AuthBook) (model.AuthBook, error)
}
