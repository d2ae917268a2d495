package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"accredo/internal/credential/models"
	"accredo/internal/sentinel"
	id "accredo/pkg/domain"
)

// PostgresStore persists credentials in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed credential store.
func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Insert stores a new credential, mapping a unique violation to
// sentinel.ErrAlreadyExists so callers can treat duplicates idempotently.
func (s *PostgresStore) Insert(ctx context.Context, credential models.Credential) error {
	claims, err := json.Marshal(credential.Claims)
	if err != nil {
		return fmt.Errorf("marshal claims: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO credentials (
			id, subject_id, issuer_did, type, claims, proof,
			revocation_list, revocation_index, status, issued_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		credential.ID.String(),
		credential.SubjectID.String(),
		credential.IssuerDID,
		string(credential.Type),
		claims,
		credential.Proof,
		credential.RevocationList.String(),
		credential.RevocationIndex,
		string(credential.Status),
		credential.IssuedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("credential %s: %w", credential.ID, sentinel.ErrAlreadyExists)
		}
		return fmt.Errorf("insert credential: %w", err)
	}
	return nil
}

// FindByID retrieves a credential by id or returns sentinel.ErrNotFound.
func (s *PostgresStore) FindByID(ctx context.Context, credID id.CredentialID) (models.Credential, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, subject_id, issuer_did, type, claims, proof,
			revocation_list, revocation_index, status, issued_at, revoked_at, revoke_reason
		FROM credentials WHERE id = $1`,
		credID.String(),
	)
	return scanCredential(row, credID)
}

// ExistsByID reports whether a credential with the given id is persisted.
func (s *PostgresStore) ExistsByID(ctx context.Context, credID id.CredentialID) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM credentials WHERE id = $1)`,
		credID.String(),
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("exists credential: %w", err)
	}
	return exists, nil
}

// UpdateStatus transitions a credential's status, recording revocation details.
func (s *PostgresStore) UpdateStatus(ctx context.Context, credID id.CredentialID, status models.Status, reason string, at time.Time) error {
	var res sql.Result
	var err error
	if status == models.StatusRevoked {
		res, err = s.db.ExecContext(ctx,
			`UPDATE credentials SET status = $2, revoked_at = $3, revoke_reason = $4 WHERE id = $1`,
			credID.String(), string(status), at, reason,
		)
	} else {
		res, err = s.db.ExecContext(ctx,
			`UPDATE credentials SET status = $2 WHERE id = $1`,
			credID.String(), string(status),
		)
	}
	if err != nil {
		return fmt.Errorf("update credential status: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("credential %s: %w", credID, sentinel.ErrNotFound)
	}
	return nil
}

// CountByIDPrefix counts credentials whose id starts with the given prefix.
func (s *PostgresStore) CountByIDPrefix(ctx context.Context, prefix string) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM credentials WHERE id LIKE $1 || '%'`,
		prefix,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count credentials by prefix: %w", err)
	}
	return count, nil
}

// FindByIDPrefix returns credentials whose id starts with the given prefix,
// ordered by id for deterministic version scans.
func (s *PostgresStore) FindByIDPrefix(ctx context.Context, prefix string) ([]models.Credential, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, subject_id, issuer_did, type, claims, proof,
			revocation_list, revocation_index, status, issued_at, revoked_at, revoke_reason
		FROM credentials WHERE id LIKE $1 || '%' ORDER BY id`,
		prefix,
	)
	if err != nil {
		return nil, fmt.Errorf("find credentials by prefix: %w", err)
	}
	defer rows.Close() //nolint:errcheck

	var out []models.Credential
	for rows.Next() {
		cred, err := scanCredential(rows, "")
		if err != nil {
			return nil, err
		}
		out = append(out, cred)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCredential(row rowScanner, credID id.CredentialID) (models.Credential, error) {
	var (
		cred      models.Credential
		claims    []byte
		revokedAt sql.NullTime
		reason    sql.NullString
	)
	err := row.Scan(
		&cred.ID, &cred.SubjectID, &cred.IssuerDID, &cred.Type, &claims, &cred.Proof,
		&cred.RevocationList, &cred.RevocationIndex, &cred.Status, &cred.IssuedAt,
		&revokedAt, &reason,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Credential{}, fmt.Errorf("credential %s: %w", credID, sentinel.ErrNotFound)
	}
	if err != nil {
		return models.Credential{}, fmt.Errorf("scan credential: %w", err)
	}
	if err := json.Unmarshal(claims, &cred.Claims); err != nil {
		return models.Credential{}, fmt.Errorf("unmarshal claims: %w", err)
	}
	if revokedAt.Valid {
		cred.RevokedAt = &revokedAt.Time
	}
	if reason.Valid {
		cred.RevokeReason = reason.String
	}
	return cred, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
