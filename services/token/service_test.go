package token

import (
	"regexp"
	"testing"
	"time"

	"github.com/memberhub-io/memberhub/testutils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func setupService(t *testing.T) (*Service, *gorm.DB) {
	db := testutils.SetupTestDB(t, &SecretToken{})
	cfg := testutils.GetTestConfig()
	return NewService(&cfg.Token, db, nil), db
}

func countTokens(t *testing.T, db *gorm.DB, userID uint, purpose Purpose) int64 {
	var count int64
	err := db.Model(&SecretToken{}).Where("user_id = ? AND purpose = ?", userID, purpose).Count(&count).Error
	require.NoError(t, err)
	return count
}

func TestService_Issue(t *testing.T) {
	service, db := setupService(t)

	t.Run("issues six digit OTP for verification purposes", func(t *testing.T) {
		otp, err := service.Issue(1, PurposeEmailVerify)
		require.NoError(t, err)
		assert.Regexp(t, regexp.MustCompile(`^\d{6}$`), otp)
	})

	t.Run("issues opaque hex token for password reset", func(t *testing.T) {
		raw, err := service.Issue(1, PurposePasswordReset)
		require.NoError(t, err)
		assert.Regexp(t, regexp.MustCompile(`^[0-9a-f]{64}$`), raw)
	})

	t.Run("rejects unknown purpose", func(t *testing.T) {
		_, err := service.Issue(1, Purpose("bogus"))
		require.Error(t, err)
	})

	t.Run("never stores the raw secret", func(t *testing.T) {
		raw, err := service.Issue(2, PurposeTwoFactor)
		require.NoError(t, err)

		var record SecretToken
		require.NoError(t, db.Where("user_id = ? AND purpose = ?", 2, PurposeTwoFactor).First(&record).Error)
		assert.NotEqual(t, raw, record.SecretHash)
		assert.Equal(t, hashSecret(raw), record.SecretHash)
	})

	t.Run("reissue supersedes instead of accumulating rows", func(t *testing.T) {
		first, err := service.Issue(3, PurposeEmailVerify)
		require.NoError(t, err)

		second, err := service.Issue(3, PurposeEmailVerify)
		require.NoError(t, err)
		assert.NotEqual(t, first, second)

		assert.Equal(t, int64(1), countTokens(t, db, 3, PurposeEmailVerify))

		assert.ErrorIs(t, service.Verify(3, PurposeEmailVerify, first), ErrTokenInvalid)
		assert.NoError(t, service.Verify(3, PurposeEmailVerify, second))
	})

	t.Run("reissue resets attempts and consumption", func(t *testing.T) {
		first, err := service.Issue(4, PurposeTwoFactor)
		require.NoError(t, err)
		require.NoError(t, service.Verify(4, PurposeTwoFactor, first))

		second, err := service.Issue(4, PurposeTwoFactor)
		require.NoError(t, err)

		var record SecretToken
		require.NoError(t, db.Where("user_id = ? AND purpose = ?", 4, PurposeTwoFactor).First(&record).Error)
		assert.Nil(t, record.ConsumedAt)
		assert.Equal(t, 0, record.AttemptCount)
		assert.NoError(t, service.Verify(4, PurposeTwoFactor, second))
	})

	t.Run("purposes are independent", func(t *testing.T) {
		verifyCode, err := service.Issue(5, PurposeEmailVerify)
		require.NoError(t, err)
		loginCode, err := service.Issue(5, PurposeTwoFactor)
		require.NoError(t, err)

		require.NoError(t, service.Verify(5, PurposeEmailVerify, verifyCode))
		assert.NoError(t, service.Verify(5, PurposeTwoFactor, loginCode))
	})
}

func TestService_Verify(t *testing.T) {
	service, db := setupService(t)

	t.Run("consumes on success so a replay fails", func(t *testing.T) {
		otp, err := service.Issue(1, PurposeEmailVerify)
		require.NoError(t, err)

		require.NoError(t, service.Verify(1, PurposeEmailVerify, otp))
		assert.ErrorIs(t, service.Verify(1, PurposeEmailVerify, otp), ErrTokenInvalid)
	})

	t.Run("no token issued", func(t *testing.T) {
		assert.ErrorIs(t, service.Verify(99, PurposeEmailVerify, "123456"), ErrTokenInvalid)
	})

	t.Run("expired token fails even with the correct value", func(t *testing.T) {
		otp, err := service.Issue(2, PurposeEmailVerify)
		require.NoError(t, err)

		require.NoError(t, db.Model(&SecretToken{}).
			Where("user_id = ? AND purpose = ?", 2, PurposeEmailVerify).
			Update("expires_at", time.Now().Add(-time.Minute)).Error)

		assert.ErrorIs(t, service.Verify(2, PurposeEmailVerify, otp), ErrTokenExpired)
	})

	t.Run("wrong value increments attempts", func(t *testing.T) {
		_, err := service.Issue(3, PurposeEmailVerify)
		require.NoError(t, err)

		assert.ErrorIs(t, service.Verify(3, PurposeEmailVerify, "000000"), ErrTokenInvalid)

		var record SecretToken
		require.NoError(t, db.Where("user_id = ? AND purpose = ?", 3, PurposeEmailVerify).First(&record).Error)
		assert.Equal(t, 1, record.AttemptCount)
	})

	t.Run("attempt ceiling blocks even the correct value", func(t *testing.T) {
		otp, err := service.Issue(4, PurposeEmailVerify)
		require.NoError(t, err)

		for i := 0; i < 5; i++ {
			assert.ErrorIs(t, service.Verify(4, PurposeEmailVerify, "000000"), ErrTokenInvalid)
		}

		assert.ErrorIs(t, service.Verify(4, PurposeEmailVerify, otp), ErrAttemptsExceeded)
	})
}

func TestService_ConsumeByValue(t *testing.T) {
	service, db := setupService(t)

	t.Run("locates the owner by hash and consumes", func(t *testing.T) {
		raw, err := service.Issue(7, PurposePasswordReset)
		require.NoError(t, err)

		userID, err := service.ConsumeByValue(PurposePasswordReset, raw)
		require.NoError(t, err)
		assert.Equal(t, uint(7), userID)

		_, err = service.ConsumeByValue(PurposePasswordReset, raw)
		assert.ErrorIs(t, err, ErrTokenInvalid)
	})

	t.Run("unknown value", func(t *testing.T) {
		_, err := service.ConsumeByValue(PurposePasswordReset, "nonsense")
		assert.ErrorIs(t, err, ErrTokenInvalid)
	})

	t.Run("expired value", func(t *testing.T) {
		raw, err := service.Issue(8, PurposePasswordReset)
		require.NoError(t, err)

		require.NoError(t, db.Model(&SecretToken{}).
			Where("user_id = ? AND purpose = ?", 8, PurposePasswordReset).
			Update("expires_at", time.Now().Add(-time.Minute)).Error)

		_, err = service.ConsumeByValue(PurposePasswordReset, raw)
		assert.ErrorIs(t, err, ErrTokenExpired)
	})
}

func TestService_IssuedRecently(t *testing.T) {
	service, _ := setupService(t)

	t.Run("true right after issuance", func(t *testing.T) {
		_, err := service.Issue(1, PurposeEmailVerify)
		require.NoError(t, err)

		recent, err := service.IssuedRecently(1, PurposeEmailVerify, time.Minute)
		require.NoError(t, err)
		assert.True(t, recent)
	})

	t.Run("false when nothing was issued", func(t *testing.T) {
		recent, err := service.IssuedRecently(2, PurposeEmailVerify, time.Minute)
		require.NoError(t, err)
		assert.False(t, recent)
	})

	t.Run("false once consumed", func(t *testing.T) {
		otp, err := service.Issue(3, PurposeEmailVerify)
		require.NoError(t, err)
		require.NoError(t, service.Verify(3, PurposeEmailVerify, otp))

		recent, err := service.IssuedRecently(3, PurposeEmailVerify, time.Minute)
		require.NoError(t, err)
		assert.False(t, recent)
	})
}

func TestService_CleanupExpired(t *testing.T) {
	service, db := setupService(t)

	otp, err := service.Issue(1, PurposeEmailVerify)
	require.NoError(t, err)
	require.NoError(t, service.Verify(1, PurposeEmailVerify, otp))

	_, err = service.Issue(2, PurposeEmailVerify)
	require.NoError(t, err)
	require.NoError(t, db.Model(&SecretToken{}).
		Where("user_id = ?", 2).
		Update("expires_at", time.Now().Add(-time.Minute)).Error)

	_, err = service.Issue(3, PurposeEmailVerify)
	require.NoError(t, err)

	require.NoError(t, service.CleanupExpired())

	var count int64
	require.NoError(t, db.Model(&SecretToken{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}
