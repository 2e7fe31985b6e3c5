package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"

	// Registers the pgx stdlib driver used by sql.Open("pgx", ...).
	_ "github.com/jackc/pgx/v5/stdlib"

	"certledger/internal/registry/models"
	"certledger/pkg/platform/sentinel"
	pkgtx "certledger/pkg/platform/tx"
)

// PostgresStore persists the registry tables in PostgreSQL. Reverse indexes
// are derived from a monotonically increasing sequence column so listings
// preserve insertion order without separate index tables.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Open connects to PostgreSQL and bootstraps the schema.
func Open(ctx context.Context, dsn string) (*PostgresStore, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	s := NewPostgresStore(db)
	if err := s.EnsureSchema(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *PostgresStore) Close() error {
	return s.db.Close()
}

// Health reports whether the database connection is usable.
func (s *PostgresStore) Health(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

const schema = `
CREATE TABLE IF NOT EXISTS registry_roles (
	address    TEXT PRIMARY KEY,
	role       TEXT NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS registry_documents (
	id            TEXT PRIMARY KEY,
	issuer        TEXT NOT NULL,
	recipient     TEXT NOT NULL,
	document_hash TEXT NOT NULL,
	metadata_uri  TEXT NOT NULL DEFAULT '',
	issued_at     TIMESTAMPTZ NOT NULL,
	expires_at    TIMESTAMPTZ,
	valid         BOOLEAN NOT NULL,
	revoked       BOOLEAN NOT NULL,
	seq           BIGSERIAL
);
CREATE INDEX IF NOT EXISTS registry_documents_recipient_idx ON registry_documents (recipient, seq);
CREATE INDEX IF NOT EXISTS registry_documents_issuer_idx ON registry_documents (issuer, seq);

CREATE TABLE IF NOT EXISTS registry_verification_requests (
	id          TEXT PRIMARY KEY,
	document_id TEXT NOT NULL REFERENCES registry_documents (id),
	requester   TEXT NOT NULL,
	verifier    TEXT NOT NULL,
	verified    BOOLEAN NOT NULL DEFAULT FALSE,
	rejected    BOOLEAN NOT NULL DEFAULT FALSE,
	notes       TEXT NOT NULL DEFAULT '',
	created_at  TIMESTAMPTZ NOT NULL,
	seq         BIGSERIAL
);
CREATE INDEX IF NOT EXISTS registry_verification_requests_doc_idx ON registry_verification_requests (document_id, seq);
`

// EnsureSchema creates the registry tables when they do not exist yet.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

// querier lets store methods run inside a context-carried transaction when
// the service opened one, and directly against the pool otherwise.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *PostgresStore) q(ctx context.Context) querier {
	if tx, ok := pkgtx.From(ctx); ok {
		return tx
	}
	return s.db
}

// RunInTx executes fn with a transaction stored in the context, committing
// on success and rolling back on error. Mutating registry operations run
// their multi-statement writes through this to stay all-or-nothing.
func (s *PostgresStore) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if err := fn(pkgtx.WithTx(ctx, tx)); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return errors.Join(err, fmt.Errorf("rollback: %w", rbErr))
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

func (s *PostgresStore) SetRole(ctx context.Context, addr common.Address, role models.Role) error {
	_, err := s.q(ctx).ExecContext(ctx, `
		INSERT INTO registry_roles (address, role, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (address) DO UPDATE SET role = EXCLUDED.role, updated_at = now()`,
		addr.Hex(), string(role))
	if err != nil {
		return fmt.Errorf("set role: %w", err)
	}
	return nil
}

func (s *PostgresStore) Role(ctx context.Context, addr common.Address) (models.Role, error) {
	var role string
	err := s.q(ctx).QueryRowContext(ctx,
		`SELECT role FROM registry_roles WHERE address = $1`, addr.Hex()).Scan(&role)
	if errors.Is(err, sql.ErrNoRows) {
		return models.RoleNone, nil
	}
	if err != nil {
		return models.RoleNone, fmt.Errorf("get role: %w", err)
	}
	return models.Role(role), nil
}

func (s *PostgresStore) CreateDocument(ctx context.Context, doc models.Document) error {
	var expiresAt sql.NullTime
	if !doc.ExpiresAt.IsZero() {
		expiresAt = sql.NullTime{Time: doc.ExpiresAt, Valid: true}
	}
	res, err := s.q(ctx).ExecContext(ctx, `
		INSERT INTO registry_documents
			(id, issuer, recipient, document_hash, metadata_uri, issued_at, expires_at, valid, revoked)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO NOTHING`,
		doc.ID, doc.Issuer.Hex(), doc.Recipient.Hex(), doc.DocumentHash,
		doc.MetadataURI, doc.IssuedAt, expiresAt, doc.Valid, doc.Revoked)
	if err != nil {
		return fmt.Errorf("create document: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("create document rows affected: %w", err)
	}
	if affected == 0 {
		return sentinel.ErrConflict
	}
	return nil
}

func (s *PostgresStore) Document(ctx context.Context, id string) (models.Document, error) {
	row := s.q(ctx).QueryRowContext(ctx, `
		SELECT id, issuer, recipient, document_hash, metadata_uri, issued_at, expires_at, valid, revoked
		FROM registry_documents WHERE id = $1`, id)
	return scanDocument(row)
}

func (s *PostgresStore) UpdateDocument(ctx context.Context, doc models.Document) error {
	res, err := s.q(ctx).ExecContext(ctx, `
		UPDATE registry_documents SET valid = $2, revoked = $3 WHERE id = $1`,
		doc.ID, doc.Valid, doc.Revoked)
	if err != nil {
		return fmt.Errorf("update document: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update document rows affected: %w", err)
	}
	if affected == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func (s *PostgresStore) DocumentIDsByRecipient(ctx context.Context, recipient common.Address) ([]string, error) {
	return s.documentIDs(ctx,
		`SELECT id FROM registry_documents WHERE recipient = $1 ORDER BY seq`, recipient.Hex())
}

func (s *PostgresStore) DocumentIDsByIssuer(ctx context.Context, issuer common.Address) ([]string, error) {
	return s.documentIDs(ctx,
		`SELECT id FROM registry_documents WHERE issuer = $1 ORDER BY seq`, issuer.Hex())
}

func (s *PostgresStore) documentIDs(ctx context.Context, query string, arg any) ([]string, error) {
	rows, err := s.q(ctx).QueryContext(ctx, query, arg)
	if err != nil {
		return nil, fmt.Errorf("list document ids: %w", err)
	}
	defer rows.Close()

	ids := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan document id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate document ids: %w", err)
	}
	return ids, nil
}

func (s *PostgresStore) DocumentCount(ctx context.Context) (uint64, error) {
	var count uint64
	err := s.q(ctx).QueryRowContext(ctx, `SELECT count(*) FROM registry_documents`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("document count: %w", err)
	}
	return count, nil
}

func (s *PostgresStore) CreateRequest(ctx context.Context, req models.VerificationRequest) error {
	res, err := s.q(ctx).ExecContext(ctx, `
		INSERT INTO registry_verification_requests
			(id, document_id, requester, verifier, verified, rejected, notes, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO NOTHING`,
		req.ID.Hex(), req.DocumentID, req.Requester.Hex(), req.Verifier.Hex(),
		req.Verified, req.Rejected, req.Notes, req.CreatedAt)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("create request rows affected: %w", err)
	}
	if affected == 0 {
		return sentinel.ErrConflict
	}
	return nil
}

func (s *PostgresStore) Request(ctx context.Context, id common.Hash) (models.VerificationRequest, error) {
	row := s.q(ctx).QueryRowContext(ctx, `
		SELECT id, document_id, requester, verifier, verified, rejected, notes, created_at
		FROM registry_verification_requests WHERE id = $1`, id.Hex())

	var (
		req                           models.VerificationRequest
		idHex, requester, verifierHex string
	)
	err := row.Scan(&idHex, &req.DocumentID, &requester, &verifierHex,
		&req.Verified, &req.Rejected, &req.Notes, &req.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return models.VerificationRequest{}, sentinel.ErrNotFound
	}
	if err != nil {
		return models.VerificationRequest{}, fmt.Errorf("get request: %w", err)
	}
	req.ID = common.HexToHash(idHex)
	req.Requester = common.HexToAddress(requester)
	req.Verifier = common.HexToAddress(verifierHex)
	req.CreatedAt = req.CreatedAt.UTC()
	return req, nil
}

func (s *PostgresStore) UpdateRequest(ctx context.Context, req models.VerificationRequest) error {
	res, err := s.q(ctx).ExecContext(ctx, `
		UPDATE registry_verification_requests
		SET verified = $2, rejected = $3, notes = $4 WHERE id = $1`,
		req.ID.Hex(), req.Verified, req.Rejected, req.Notes)
	if err != nil {
		return fmt.Errorf("update request: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update request rows affected: %w", err)
	}
	if affected == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func (s *PostgresStore) RequestIDsByDocument(ctx context.Context, documentID string) ([]common.Hash, error) {
	rows, err := s.q(ctx).QueryContext(ctx, `
		SELECT id FROM registry_verification_requests WHERE document_id = $1 ORDER BY seq`, documentID)
	if err != nil {
		return nil, fmt.Errorf("list request ids: %w", err)
	}
	defer rows.Close()

	ids := []common.Hash{}
	for rows.Next() {
		var idHex string
		if err := rows.Scan(&idHex); err != nil {
			return nil, fmt.Errorf("scan request id: %w", err)
		}
		ids = append(ids, common.HexToHash(idHex))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate request ids: %w", err)
	}
	return ids, nil
}

func scanDocument(row *sql.Row) (models.Document, error) {
	var (
		doc                   models.Document
		issuerHex, recipient  string
		expiresAt             sql.NullTime
	)
	err := row.Scan(&doc.ID, &issuerHex, &recipient, &doc.DocumentHash,
		&doc.MetadataURI, &doc.IssuedAt, &expiresAt, &doc.Valid, &doc.Revoked)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Document{}, sentinel.ErrNotFound
	}
	if err != nil {
		return models.Document{}, fmt.Errorf("get document: %w", err)
	}
	doc.Issuer = common.HexToAddress(issuerHex)
	doc.Recipient = common.HexToAddress(recipient)
	doc.IssuedAt = doc.IssuedAt.UTC()
	if expiresAt.Valid {
		doc.ExpiresAt = expiresAt.Time.UTC()
	} else {
		doc.ExpiresAt = time.Time{}
	}
	return doc, nil
}
