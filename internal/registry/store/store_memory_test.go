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
)

// Store invariants (conflict-safe creates, not-found sentinels, insertion
// order of the reverse indexes) are exercised here because service tests
// treat the store as a given.
type MemoryStoreSuite struct {
	suite.Suite
	store *InMemoryStore
	ctx   context.Context
}

func (s *MemoryStoreSuite) SetupTest() {
	s.store = NewInMemoryStore()
	s.ctx = context.Background()
}

func TestMemoryStoreSuite(t *testing.T) {
	suite.Run(t, new(MemoryStoreSuite))
}

func (s *MemoryStoreSuite) TestRoles() {
	addr := common.HexToAddress("0x11")

	s.Run("unregistered address has RoleNone", func() {
		role, err := s.store.Role(s.ctx, addr)
		s.Require().NoError(err)
		s.Equal(models.RoleNone, role)
	})

	s.Run("assignment overwrites", func() {
		s.Require().NoError(s.store.SetRole(s.ctx, addr, models.RoleUser))
		s.Require().NoError(s.store.SetRole(s.ctx, addr, models.RoleVerifier))

		role, err := s.store.Role(s.ctx, addr)
		s.Require().NoError(err)
		s.Equal(models.RoleVerifier, role)
	})
}

func (s *MemoryStoreSuite) TestDocumentLifecycle() {
	doc := models.Document{
		ID:           "doc-1",
		Issuer:       common.HexToAddress("0xaa"),
		Recipient:    common.HexToAddress("0xbb"),
		DocumentHash: "0xabc",
		IssuedAt:     time.Now(),
		Valid:        true,
	}

	s.Run("create then read back", func() {
		s.Require().NoError(s.store.CreateDocument(s.ctx, doc))

		got, err := s.store.Document(s.ctx, doc.ID)
		s.Require().NoError(err)
		s.Equal(doc, got)

		count, err := s.store.DocumentCount(s.ctx)
		s.Require().NoError(err)
		s.Equal(uint64(1), count)
	})

	s.Run("duplicate create returns ErrConflict", func() {
		err := s.store.CreateDocument(s.ctx, doc)
		s.Require().ErrorIs(err, sentinel.ErrConflict)
	})

	s.Run("unknown id returns ErrNotFound", func() {
		_, err := s.store.Document(s.ctx, "missing")
		s.Require().ErrorIs(err, sentinel.ErrNotFound)
	})

	s.Run("update replaces the record", func() {
		doc.Revoked = true
		doc.Valid = false
		s.Require().NoError(s.store.UpdateDocument(s.ctx, doc))

		got, err := s.store.Document(s.ctx, doc.ID)
		s.Require().NoError(err)
		s.True(got.Revoked)
		s.False(got.Valid)
	})

	s.Run("update of missing document returns ErrNotFound", func() {
		missing := doc
		missing.ID = "missing"
		s.Require().ErrorIs(s.store.UpdateDocument(s.ctx, missing), sentinel.ErrNotFound)
	})
}

func (s *MemoryStoreSuite) TestReverseIndexesKeepInsertionOrder() {
	issuer := common.HexToAddress("0xaa")
	recipient := common.HexToAddress("0xbb")
	for _, id := range []string{"d1", "d2", "d3"} {
		s.Require().NoError(s.store.CreateDocument(s.ctx, models.Document{
			ID: id, Issuer: issuer, Recipient: recipient, DocumentHash: "0x1", Valid: true,
		}))
	}

	byRecipient, err := s.store.DocumentIDsByRecipient(s.ctx, recipient)
	s.Require().NoError(err)
	s.Equal([]string{"d1", "d2", "d3"}, byRecipient)

	byIssuer, err := s.store.DocumentIDsByIssuer(s.ctx, issuer)
	s.Require().NoError(err)
	s.Equal([]string{"d1", "d2", "d3"}, byIssuer)

	s.Run("unknown address lists empty, not nil error", func() {
		ids, err := s.store.DocumentIDsByRecipient(s.ctx, common.HexToAddress("0xcc"))
		s.Require().NoError(err)
		s.Empty(ids)
	})
}

func (s *MemoryStoreSuite) TestVerificationRequests() {
	req := models.VerificationRequest{
		ID:         crypto.Keccak256Hash([]byte("req-1")),
		DocumentID: "d1",
		Requester:  common.HexToAddress("0xbb"),
		Verifier:   common.HexToAddress("0xcc"),
		CreatedAt:  time.Now(),
	}

	s.Run("create then read back", func() {
		s.Require().NoError(s.store.CreateRequest(s.ctx, req))
		got, err := s.store.Request(s.ctx, req.ID)
		s.Require().NoError(err)
		s.Equal(req, got)
	})

	s.Run("duplicate id returns ErrConflict", func() {
		s.Require().ErrorIs(s.store.CreateRequest(s.ctx, req), sentinel.ErrConflict)
	})

	s.Run("request ids are indexed per document in order", func() {
		second := req
		second.ID = crypto.Keccak256Hash([]byte("req-2"))
		s.Require().NoError(s.store.CreateRequest(s.ctx, second))

		ids, err := s.store.RequestIDsByDocument(s.ctx, "d1")
		s.Require().NoError(err)
		s.Equal([]common.Hash{req.ID, second.ID}, ids)
	})

	s.Run("completion is persisted via update", func() {
		req.Verified = true
		req.Notes = "looks good"
		s.Require().NoError(s.store.UpdateRequest(s.ctx, req))

		got, err := s.store.Request(s.ctx, req.ID)
		s.Require().NoError(err)
		s.True(got.Verified)
		s.Equal("looks good", got.Notes)
	})
}
