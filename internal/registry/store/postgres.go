package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"selfid/internal/registry/models"
	"selfid/pkg/domain"
	"selfid/pkg/platform/sentinel"
	txcontext "selfid/pkg/platform/tx"
)

// pqUniqueViolation is the Postgres error code for unique constraint failures.
const pqUniqueViolation = "23505"

// Postgres persists the registry in PostgreSQL. Mutating methods join the
// transaction carried in ctx so a whole operation commits or rolls back as
// one.
type Postgres struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed registry store.
func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

type dbRunner interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *Postgres) runner(ctx context.Context) dbRunner {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

func translateConflict(err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && string(pqErr.Code) == pqUniqueViolation {
		return fmt.Errorf("%s: %w", pqErr.Constraint, sentinel.ErrConflict)
	}
	return err
}

func (s *Postgres) Counters(ctx context.Context) (Counters, error) {
	var c Counters
	query := `SELECT total_identities, total_endorsements, total_credentials FROM counters WHERE id = TRUE`
	err := s.runner(ctx).QueryRowContext(ctx, query).Scan(&c.Identities, &c.Endorsements, &c.Credentials)
	if err != nil {
		return Counters{}, fmt.Errorf("read counters: %w", err)
	}
	return c, nil
}

func (s *Postgres) CreateIdentity(ctx context.Context, identity *models.Identity) error {
	r := s.runner(ctx)

	query := `
		INSERT INTO identities (
			id, owner, name, email, document_hash, created_at,
			reputation_score, verified, active, endorsement_count
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	if _, err := r.ExecContext(ctx, query,
		identity.ID,
		identity.Owner.String(),
		identity.Name,
		identity.Email,
		identity.DocumentHash.String(),
		identity.CreatedAt,
		identity.ReputationScore,
		identity.Verified,
		identity.Active,
		identity.EndorsementCount,
	); err != nil {
		return fmt.Errorf("insert identity: %w", translateConflict(err))
	}

	if _, err := r.ExecContext(ctx,
		`INSERT INTO address_index (address, identity_id) VALUES ($1, $2)`,
		identity.Owner.String(), identity.ID,
	); err != nil {
		return fmt.Errorf("claim address index: %w", translateConflict(err))
	}

	if _, err := r.ExecContext(ctx,
		`UPDATE counters SET total_identities = total_identities + 1 WHERE id = TRUE`,
	); err != nil {
		return fmt.Errorf("bump identity total: %w", err)
	}
	return nil
}

func (s *Postgres) GetIdentity(ctx context.Context, id uint64) (*models.Identity, error) {
	query := `
		SELECT id, owner, name, email, document_hash, created_at,
		       reputation_score, verified, active, endorsement_count
		FROM identities WHERE id = $1
	`
	return scanIdentity(s.runner(ctx).QueryRowContext(ctx, query, id))
}

func (s *Postgres) UpdateIdentity(ctx context.Context, identity *models.Identity) error {
	query := `
		UPDATE identities
		SET owner = $2, reputation_score = $3, verified = $4, active = $5, endorsement_count = $6
		WHERE id = $1
	`
	res, err := s.runner(ctx).ExecContext(ctx, query,
		identity.ID,
		identity.Owner.String(),
		identity.ReputationScore,
		identity.Verified,
		identity.Active,
		identity.EndorsementCount,
	)
	if err != nil {
		return fmt.Errorf("update identity: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update identity: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("identity %d: %w", identity.ID, sentinel.ErrNotFound)
	}
	return nil
}

func (s *Postgres) IdentityIDByAddress(ctx context.Context, addr domain.Address) (uint64, bool, error) {
	var id uint64
	query := `SELECT identity_id FROM address_index WHERE address = $1`
	err := s.runner(ctx).QueryRowContext(ctx, query, addr.String()).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("resolve address index: %w", err)
	}
	return id, true, nil
}

func (s *Postgres) ReindexAddress(ctx context.Context, oldOwner, newOwner domain.Address, identityID uint64) error {
	r := s.runner(ctx)
	if _, err := r.ExecContext(ctx,
		`DELETE FROM address_index WHERE address = $1`, oldOwner.String(),
	); err != nil {
		return fmt.Errorf("clear old owner index: %w", err)
	}
	if _, err := r.ExecContext(ctx,
		`INSERT INTO address_index (address, identity_id) VALUES ($1, $2)`,
		newOwner.String(), identityID,
	); err != nil {
		return fmt.Errorf("claim new owner index: %w", translateConflict(err))
	}
	return nil
}

func (s *Postgres) AppendEndorsement(ctx context.Context, endorsement *models.Endorsement, endorsedIdentityID uint64) error {
	r := s.runner(ctx)
	query := `
		INSERT INTO endorsements (
			id, endorser, endorsed, category, message, created_at, weight, active, endorsed_identity_id
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	if _, err := r.ExecContext(ctx, query,
		endorsement.ID,
		endorsement.Endorser.String(),
		endorsement.Endorsed.String(),
		endorsement.Category,
		endorsement.Message,
		endorsement.Timestamp,
		endorsement.Weight,
		endorsement.Active,
		endorsedIdentityID,
	); err != nil {
		return fmt.Errorf("insert endorsement: %w", translateConflict(err))
	}
	if _, err := r.ExecContext(ctx,
		`UPDATE counters SET total_endorsements = total_endorsements + 1 WHERE id = TRUE`,
	); err != nil {
		return fmt.Errorf("bump endorsement total: %w", err)
	}
	return nil
}

func (s *Postgres) GetEndorsement(ctx context.Context, id uint64) (*models.Endorsement, error) {
	query := `
		SELECT id, endorser, endorsed, category, message, created_at, weight, active
		FROM endorsements WHERE id = $1
	`
	row := s.runner(ctx).QueryRowContext(ctx, query, id)
	var e models.Endorsement
	var endorser, endorsed string
	var createdAt time.Time
	err := row.Scan(&e.ID, &endorser, &endorsed, &e.Category, &e.Message, &createdAt, &e.Weight, &e.Active)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("endorsement %d: %w", id, sentinel.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("scan endorsement: %w", err)
	}
	e.Endorser = domain.Address(endorser)
	e.Endorsed = domain.Address(endorsed)
	e.Timestamp = createdAt
	return &e, nil
}

func (s *Postgres) ListIdentityEndorsements(ctx context.Context, identityID uint64) ([]uint64, error) {
	query := `SELECT id FROM endorsements WHERE endorsed_identity_id = $1 ORDER BY id ASC`
	return s.listIDs(ctx, query, identityID)
}

func (s *Postgres) AppendCredential(ctx context.Context, credential *models.Credential) error {
	r := s.runner(ctx)
	var expiresAt *time.Time
	if !credential.ExpiresAt.IsZero() {
		expiresAt = &credential.ExpiresAt
	}
	query := `
		INSERT INTO credentials (
			id, identity_id, credential_type, issuer, credential_hash,
			issued_at, expires_at, verified, active
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	if _, err := r.ExecContext(ctx, query,
		credential.ID,
		credential.IdentityID,
		credential.CredentialType,
		credential.Issuer,
		credential.CredentialHash.String(),
		credential.IssuedAt,
		expiresAt,
		credential.Verified,
		credential.Active,
	); err != nil {
		return fmt.Errorf("insert credential: %w", translateConflict(err))
	}
	if _, err := r.ExecContext(ctx,
		`UPDATE counters SET total_credentials = total_credentials + 1 WHERE id = TRUE`,
	); err != nil {
		return fmt.Errorf("bump credential total: %w", err)
	}
	return nil
}

func (s *Postgres) GetCredential(ctx context.Context, id uint64) (*models.Credential, error) {
	query := `
		SELECT id, identity_id, credential_type, issuer, credential_hash,
		       issued_at, expires_at, verified, active
		FROM credentials WHERE id = $1
	`
	row := s.runner(ctx).QueryRowContext(ctx, query, id)
	var c models.Credential
	var hash string
	var expiresAt *time.Time
	err := row.Scan(&c.ID, &c.IdentityID, &c.CredentialType, &c.Issuer, &hash,
		&c.IssuedAt, &expiresAt, &c.Verified, &c.Active)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("credential %d: %w", id, sentinel.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("scan credential: %w", err)
	}
	c.CredentialHash = domain.Hash(hash)
	if expiresAt != nil {
		c.ExpiresAt = *expiresAt
	}
	return &c, nil
}

func (s *Postgres) ListIdentityCredentials(ctx context.Context, identityID uint64) ([]uint64, error) {
	query := `SELECT id FROM credentials WHERE identity_id = $1 ORDER BY id ASC`
	return s.listIDs(ctx, query, identityID)
}

func (s *Postgres) AddTrustedVerifier(ctx context.Context, addr domain.Address) error {
	query := `INSERT INTO trusted_verifiers (address) VALUES ($1) ON CONFLICT (address) DO NOTHING`
	if _, err := s.runner(ctx).ExecContext(ctx, query, addr.String()); err != nil {
		return fmt.Errorf("add trusted verifier: %w", err)
	}
	return nil
}

func (s *Postgres) RemoveTrustedVerifier(ctx context.Context, addr domain.Address) error {
	query := `DELETE FROM trusted_verifiers WHERE address = $1`
	if _, err := s.runner(ctx).ExecContext(ctx, query, addr.String()); err != nil {
		return fmt.Errorf("remove trusted verifier: %w", err)
	}
	return nil
}

func (s *Postgres) IsTrustedVerifier(ctx context.Context, addr domain.Address) (bool, error) {
	var exists bool
	query := `SELECT EXISTS (SELECT 1 FROM trusted_verifiers WHERE address = $1)`
	if err := s.runner(ctx).QueryRowContext(ctx, query, addr.String()).Scan(&exists); err != nil {
		return false, fmt.Errorf("check trusted verifier: %w", err)
	}
	return exists, nil
}

func (s *Postgres) ListTrustedVerifiers(ctx context.Context) ([]domain.Address, error) {
	query := `SELECT address FROM trusted_verifiers ORDER BY added_at ASC`
	rows, err := s.runner(ctx).QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list trusted verifiers: %w", err)
	}
	defer rows.Close()

	var out []domain.Address
	for rows.Next() {
		var addr string
		if err := rows.Scan(&addr); err != nil {
			return nil, fmt.Errorf("scan trusted verifier: %w", err)
		}
		out = append(out, domain.Address(addr))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate trusted verifiers: %w", err)
	}
	return out, nil
}

func (s *Postgres) listIDs(ctx context.Context, query string, arg any) ([]uint64, error) {
	rows, err := s.runner(ctx).QueryContext(ctx, query, arg)
	if err != nil {
		return nil, fmt.Errorf("list ids: %w", err)
	}
	defer rows.Close()

	var out []uint64
	for rows.Next() {
		var id uint64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan id: %w", err)
		}
		out = append(out, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate ids: %w", err)
	}
	return out, nil
}

func scanIdentity(row *sql.Row) (*models.Identity, error) {
	var i models.Identity
	var owner, hash string
	err := row.Scan(&i.ID, &owner, &i.Name, &i.Email, &hash, &i.CreatedAt,
		&i.ReputationScore, &i.Verified, &i.Active, &i.EndorsementCount)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("identity: %w", sentinel.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("scan identity: %w", err)
	}
	i.Owner = domain.Address(owner)
	i.DocumentHash = domain.Hash(hash)
	return &i, nil
}
