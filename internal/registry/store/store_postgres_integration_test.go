//go:build integration

package store

import (
	"context"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/suite"

	"certledger/internal/registry/models"
	"certledger/pkg/platform/sentinel"
	"certledger/pkg/testutil/containers"
)

// Exercises the same contract the memory suite does, against a real
// database, plus the behaviors only PostgreSQL has: RunInTx rollback and
// NULL expiry round-tripping.
type PostgresStoreSuite struct {
	suite.Suite
	store *PostgresStore
	ctx   context.Context
}

func TestPostgresStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping postgres integration suite in short mode")
	}

	pg := containers.NewPostgresContainer(t)
	ctx := context.Background()
	st, err := Open(ctx, pg.DSN)
	if err != nil {
		t.Fatalf("failed to open postgres store: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })

	suite.Run(t, &PostgresStoreSuite{store: st, ctx: ctx})
}

func (s *PostgresStoreSuite) SetupTest() {
	for _, table := range []string{"registry_verification_requests", "registry_documents", "registry_roles"} {
		_, err := s.store.db.ExecContext(s.ctx, "TRUNCATE TABLE "+table)
		s.Require().NoError(err)
	}
}

func (s *PostgresStoreSuite) TestRoles() {
	addr := common.HexToAddress("0x11")

	role, err := s.store.Role(s.ctx, addr)
	s.Require().NoError(err)
	s.Equal(models.RoleNone, role)

	s.Require().NoError(s.store.SetRole(s.ctx, addr, models.RoleUser))
	s.Require().NoError(s.store.SetRole(s.ctx, addr, models.RoleInstitution))

	role, err = s.store.Role(s.ctx, addr)
	s.Require().NoError(err)
	s.Equal(models.RoleInstitution, role)
}

func (s *PostgresStoreSuite) TestDocumentLifecycle() {
	doc := models.Document{
		ID:           "doc-1",
		Issuer:       common.HexToAddress("0xaa"),
		Recipient:    common.HexToAddress("0xbb"),
		DocumentHash: "0xabc",
		MetadataURI:  "ipfs://m",
		IssuedAt:     time.Now().UTC().Truncate(time.Microsecond),
		Valid:        true,
	}

	s.Require().NoError(s.store.CreateDocument(s.ctx, doc))
	s.Require().ErrorIs(s.store.CreateDocument(s.ctx, doc), sentinel.ErrConflict)

	got, err := s.store.Document(s.ctx, doc.ID)
	s.Require().NoError(err)
	s.Equal(doc.ID, got.ID)
	s.Equal(doc.Issuer, got.Issuer)
	s.Equal(doc.Recipient, got.Recipient)
	s.True(got.ExpiresAt.IsZero(), "zero expiry must round-trip through NULL")
	s.WithinDuration(doc.IssuedAt, got.IssuedAt, time.Millisecond)

	_, err = s.store.Document(s.ctx, "missing")
	s.Require().ErrorIs(err, sentinel.ErrNotFound)

	doc.Revoked = true
	doc.Valid = false
	s.Require().NoError(s.store.UpdateDocument(s.ctx, doc))

	got, err = s.store.Document(s.ctx, doc.ID)
	s.Require().NoError(err)
	s.True(got.Revoked)
	s.False(got.Valid)

	count, err := s.store.DocumentCount(s.ctx)
	s.Require().NoError(err)
	s.Equal(uint64(1), count)
}

func (s *PostgresStoreSuite) TestExpiryRoundTrip() {
	expiry := time.Now().UTC().Add(24 * time.Hour).Truncate(time.Microsecond)
	doc := models.Document{
		ID:           "doc-exp",
		Issuer:       common.HexToAddress("0xaa"),
		Recipient:    common.HexToAddress("0xbb"),
		DocumentHash: "0xabc",
		IssuedAt:     time.Now().UTC(),
		ExpiresAt:    expiry,
		Valid:        true,
	}
	s.Require().NoError(s.store.CreateDocument(s.ctx, doc))

	got, err := s.store.Document(s.ctx, doc.ID)
	s.Require().NoError(err)
	s.WithinDuration(expiry, got.ExpiresAt, time.Millisecond)
}

func (s *PostgresStoreSuite) TestListingsKeepInsertionOrder() {
	issuer := common.HexToAddress("0xaa")
	recipient := common.HexToAddress("0xbb")
	for _, id := range []string{"d1", "d2", "d3"} {
		s.Require().NoError(s.store.CreateDocument(s.ctx, models.Document{
			ID: id, Issuer: issuer, Recipient: recipient, DocumentHash: "0x1",
			IssuedAt: time.Now().UTC(), Valid: true,
		}))
	}

	byRecipient, err := s.store.DocumentIDsByRecipient(s.ctx, recipient)
	s.Require().NoError(err)
	s.Equal([]string{"d1", "d2", "d3"}, byRecipient)

	byIssuer, err := s.store.DocumentIDsByIssuer(s.ctx, issuer)
	s.Require().NoError(err)
	s.Equal([]string{"d1", "d2", "d3"}, byIssuer)
}

func (s *PostgresStoreSuite) TestVerificationRequests() {
	doc := models.Document{
		ID: "d1", Issuer: common.HexToAddress("0xaa"), Recipient: common.HexToAddress("0xbb"),
		DocumentHash: "0x1", IssuedAt: time.Now().UTC(), Valid: true,
	}
	s.Require().NoError(s.store.CreateDocument(s.ctx, doc))

	req := models.VerificationRequest{
		ID:         crypto.Keccak256Hash([]byte("req-1")),
		DocumentID: "d1",
		Requester:  common.HexToAddress("0xbb"),
		Verifier:   common.HexToAddress("0xcc"),
		CreatedAt:  time.Now().UTC().Truncate(time.Microsecond),
	}

	s.Require().NoError(s.store.CreateRequest(s.ctx, req))
	s.Require().ErrorIs(s.store.CreateRequest(s.ctx, req), sentinel.ErrConflict)

	got, err := s.store.Request(s.ctx, req.ID)
	s.Require().NoError(err)
	s.Equal(req.ID, got.ID)
	s.Equal(req.Verifier, got.Verifier)

	second := req
	second.ID = crypto.Keccak256Hash([]byte("req-2"))
	s.Require().NoError(s.store.CreateRequest(s.ctx, second))

	ids, err := s.store.RequestIDsByDocument(s.ctx, "d1")
	s.Require().NoError(err)
	s.Equal([]common.Hash{req.ID, second.ID}, ids)

	req.Verified = true
	req.Notes = "confirmed"
	s.Require().NoError(s.store.UpdateRequest(s.ctx, req))

	got, err = s.store.Request(s.ctx, req.ID)
	s.Require().NoError(err)
	s.True(got.Verified)
	s.Equal("confirmed", got.Notes)
}

func (s *PostgresStoreSuite) TestRunInTxRollsBackOnError() {
	doc := models.Document{
		ID: "tx-doc", Issuer: common.HexToAddress("0xaa"), Recipient: common.HexToAddress("0xbb"),
		DocumentHash: "0x1", IssuedAt: time.Now().UTC(), Valid: true,
	}

	err := s.store.RunInTx(s.ctx, func(ctx context.Context) error {
		if err := s.store.CreateDocument(ctx, doc); err != nil {
			return err
		}
		return context.Canceled
	})
	s.Require().Error(err)

	_, err = s.store.Document(s.ctx, doc.ID)
	s.Require().ErrorIs(err, sentinel.ErrNotFound, "rolled-back write must not be visible")
}
