package store

import (
	"context"

	"accredo/internal/transfer/models"
	id "accredo/pkg/domain"
)

// Store defines persistence for transfer requests.
// Error Contract: FindByID returns sentinel.ErrNotFound for unknown ids.
// Insert enforces the pair invariant — at most one pending-or-approved request
// per (source credential, target institution) — returning
// sentinel.ErrAlreadyExists when it would be violated.
type Store interface {
	Insert(ctx context.Context, request models.TransferRequest) error
	FindByID(ctx context.Context, transferID id.TransferID) (models.TransferRequest, error)
	Update(ctx context.Context, request models.TransferRequest) error
	FindBlockingPair(ctx context.Context, source id.CredentialID, targetInstitution string) (models.TransferRequest, bool, error)
}
