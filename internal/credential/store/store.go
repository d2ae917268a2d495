package store

import (
	"context"
	"time"

	"accredo/internal/credential/models"
	id "accredo/pkg/domain"
)

// Store defines the persistence contract for credentials.
// Error Contract: Find methods return sentinel.ErrNotFound when the record
// doesn't exist; Insert returns sentinel.ErrAlreadyExists on a duplicate id.
// Services translate sentinels into domain errors exactly once.
type Store interface {
	Insert(ctx context.Context, credential models.Credential) error
	FindByID(ctx context.Context, credID id.CredentialID) (models.Credential, error)
	ExistsByID(ctx context.Context, credID id.CredentialID) (bool, error)
	UpdateStatus(ctx context.Context, credID id.CredentialID, status models.Status, reason string, at time.Time) error
	CountByIDPrefix(ctx context.Context, prefix string) (int, error)
	FindByIDPrefix(ctx context.Context, prefix string) ([]models.Credential, error)
}
