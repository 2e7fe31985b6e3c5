package models

import (
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "certledger/pkg/domain-errors"
)

func TestParseRole(t *testing.T) {
	t.Run("accepts known roles", func(t *testing.T) {
		for _, s := range []string{"NONE", "USER", "VERIFIER", "INSTITUTION"} {
			role, err := ParseRole(s)
			require.NoError(t, err)
			assert.Equal(t, Role(s), role)
		}
	})

	t.Run("rejects unknown role", func(t *testing.T) {
		_, err := ParseRole("ADMIN")
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeBadRequest))
		assert.EqualError(t, err, "Invalid role")
	})

	t.Run("rejects lowercase", func(t *testing.T) {
		_, err := ParseRole("verifier")
		require.Error(t, err)
	})
}

func TestParseAddress(t *testing.T) {
	t.Run("normalizes valid hex address", func(t *testing.T) {
		addr, err := ParseAddress("0x00000000000000000000000000000000000000a1")
		require.NoError(t, err)
		assert.Equal(t, common.HexToAddress("0xA1"), addr)
	})

	t.Run("rejects malformed input", func(t *testing.T) {
		for _, s := range []string{"", "0x123", "not-an-address"} {
			_, err := ParseAddress(s)
			require.Error(t, err, "input %q", s)
			assert.True(t, dErrors.HasCode(err, dErrors.CodeBadRequest))
		}
	})
}

func TestDocumentExists(t *testing.T) {
	assert.False(t, Document{}.Exists(), "zero record must not exist")
	assert.True(t, Document{Issuer: common.HexToAddress("0x1")}.Exists())
}

func TestDocumentEffectivelyValid(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	issuer := common.HexToAddress("0x1")

	t.Run("no expiry stays valid indefinitely", func(t *testing.T) {
		doc := Document{Issuer: issuer, Valid: true}
		assert.True(t, doc.EffectivelyValid(now))
		assert.True(t, doc.EffectivelyValid(now.AddDate(100, 0, 0)))
	})

	t.Run("flips to false exactly at the deadline", func(t *testing.T) {
		deadline := now.Add(24 * time.Hour)
		doc := Document{Issuer: issuer, Valid: true, ExpiresAt: deadline}
		assert.True(t, doc.EffectivelyValid(deadline.Add(-time.Second)))
		assert.False(t, doc.EffectivelyValid(deadline))
		assert.False(t, doc.EffectivelyValid(deadline.Add(time.Second)))
	})

	t.Run("revoked is always invalid", func(t *testing.T) {
		doc := Document{Issuer: issuer, Valid: false, Revoked: true}
		assert.False(t, doc.EffectivelyValid(now))
	})

	t.Run("nonexistent is invalid", func(t *testing.T) {
		assert.False(t, Document{Valid: true}.EffectivelyValid(now))
	})
}

func TestVerificationRequestProcessed(t *testing.T) {
	assert.False(t, VerificationRequest{}.Processed())
	assert.True(t, VerificationRequest{Verified: true}.Processed())
	assert.True(t, VerificationRequest{Rejected: true}.Processed())
}
