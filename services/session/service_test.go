package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/memberhub-io/memberhub/services/geoip"
	"github.com/memberhub-io/memberhub/testutils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

const chromeOnWindows = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

type stubResolver struct {
	location  *geoip.Location
	lookupErr error
	publicIP  string
	publicErr error

	lookupCalls   int
	publicIPCalls int
}

func (s *stubResolver) Lookup(ctx context.Context, ip string) (*geoip.Location, error) {
	s.lookupCalls++
	if s.lookupErr != nil {
		return nil, s.lookupErr
	}
	return s.location, nil
}

func (s *stubResolver) PublicIP(ctx context.Context) (string, error) {
	s.publicIPCalls++
	if s.publicErr != nil {
		return "", s.publicErr
	}
	return s.publicIP, nil
}

func setupService(t *testing.T, resolver GeoResolver) (*Service, *gorm.DB) {
	db := testutils.SetupTestDB(t, &Session{})
	cfg := testutils.GetTestConfig()
	return NewService(&cfg.Session, db, resolver, nil), db
}

func TestService_Create(t *testing.T) {
	t.Run("enriches device and location", func(t *testing.T) {
		resolver := &stubResolver{
			location: &geoip.Location{City: "Sydney", Region: "New South Wales", Country: "Australia", Timezone: "Australia/Sydney"},
		}
		service, _ := setupService(t, resolver)

		sess, rawToken, err := service.Create(context.Background(), 1, Metadata{
			UserAgent:   chromeOnWindows,
			ForwardedIP: "203.0.113.10",
		})
		require.NoError(t, err)
		require.NotEmpty(t, rawToken)

		assert.Contains(t, sess.Browser, "Chrome")
		assert.Contains(t, sess.OS, "Windows")
		assert.Contains(t, sess.Device, "Desktop")
		assert.Equal(t, "203.0.113.10", sess.IPAddress)
		assert.Equal(t, "Sydney", sess.City)
		assert.Equal(t, "Australia", sess.Country)
		assert.Equal(t, "Australia/Sydney", sess.Timezone)
		assert.True(t, sess.IsActive)
		assert.Equal(t, 0, resolver.publicIPCalls, "forwarded address should skip discovery")
	})

	t.Run("stores only the token hash", func(t *testing.T) {
		service, db := setupService(t, nil)

		_, rawToken, err := service.Create(context.Background(), 1, Metadata{})
		require.NoError(t, err)

		var stored Session
		require.NoError(t, db.First(&stored).Error)
		assert.NotEqual(t, rawToken, stored.TokenHash)
		assert.Equal(t, hashToken(rawToken), stored.TokenHash)
	})

	t.Run("geolocation failure degrades to Unknown", func(t *testing.T) {
		resolver := &stubResolver{lookupErr: errors.New("upstream timeout")}
		service, _ := setupService(t, resolver)

		sess, _, err := service.Create(context.Background(), 1, Metadata{ForwardedIP: "203.0.113.10"})
		require.NoError(t, err)

		assert.Equal(t, "203.0.113.10", sess.IPAddress)
		assert.Equal(t, "Unknown", sess.City)
		assert.Equal(t, "Unknown", sess.Country)
	})

	t.Run("falls back to public IP discovery", func(t *testing.T) {
		resolver := &stubResolver{
			publicIP: "198.51.100.7",
			location: &geoip.Location{City: "Berlin", Country: "Germany"},
		}
		service, _ := setupService(t, resolver)

		sess, _, err := service.Create(context.Background(), 1, Metadata{})
		require.NoError(t, err)

		assert.Equal(t, 1, resolver.publicIPCalls)
		assert.Equal(t, "198.51.100.7", sess.IPAddress)
		assert.Equal(t, "Berlin", sess.City)
	})

	t.Run("discovery failure still creates the session", func(t *testing.T) {
		resolver := &stubResolver{publicErr: errors.New("no route")}
		service, _ := setupService(t, resolver)

		sess, _, err := service.Create(context.Background(), 1, Metadata{})
		require.NoError(t, err)

		assert.Equal(t, "Unknown", sess.IPAddress)
		assert.Equal(t, "Unknown", sess.City)
	})

	t.Run("empty agent string degrades to unknown device", func(t *testing.T) {
		service, _ := setupService(t, nil)

		sess, _, err := service.Create(context.Background(), 1, Metadata{})
		require.NoError(t, err)
		assert.Equal(t, "Unknown Device", sess.Device)
	})
}

func TestService_Authenticate(t *testing.T) {
	service, db := setupService(t, nil)

	sess, rawToken, err := service.Create(context.Background(), 1, Metadata{})
	require.NoError(t, err)

	t.Run("valid token resolves the session", func(t *testing.T) {
		resolved, err := service.Authenticate(rawToken)
		require.NoError(t, err)
		assert.Equal(t, sess.ID, resolved.ID)
	})

	t.Run("unknown token", func(t *testing.T) {
		_, err := service.Authenticate("nonsense")
		assert.ErrorIs(t, err, ErrUnauthorized)
	})

	t.Run("empty token", func(t *testing.T) {
		_, err := service.Authenticate("")
		assert.ErrorIs(t, err, ErrUnauthorized)
	})

	t.Run("expired session", func(t *testing.T) {
		_, expiredToken, err := service.Create(context.Background(), 2, Metadata{})
		require.NoError(t, err)

		require.NoError(t, db.Model(&Session{}).
			Where("user_id = ?", 2).
			Update("expires_at", time.Now().Add(-time.Minute)).Error)

		_, err = service.Authenticate(expiredToken)
		assert.ErrorIs(t, err, ErrUnauthorized)
	})

	t.Run("revoked session", func(t *testing.T) {
		revoked, revokedToken, err := service.Create(context.Background(), 3, Metadata{})
		require.NoError(t, err)

		_, err = service.Revoke(3, revoked.ID, revokedToken)
		require.NoError(t, err)

		_, err = service.Authenticate(revokedToken)
		assert.ErrorIs(t, err, ErrUnauthorized)
	})
}

func TestService_Revoke(t *testing.T) {
	service, db := setupService(t, nil)

	first, firstToken, err := service.Create(context.Background(), 1, Metadata{})
	require.NoError(t, err)
	second, _, err := service.Create(context.Background(), 1, Metadata{})
	require.NoError(t, err)

	t.Run("flags revocation of the caller's own session", func(t *testing.T) {
		current, err := service.Revoke(1, first.ID, firstToken)
		require.NoError(t, err)
		assert.True(t, current)
	})

	t.Run("revoking another session is not flagged", func(t *testing.T) {
		current, err := service.Revoke(1, second.ID, firstToken)
		require.NoError(t, err)
		assert.False(t, current)
	})

	t.Run("rows survive revocation", func(t *testing.T) {
		var count int64
		require.NoError(t, db.Model(&Session{}).Where("user_id = ?", 1).Count(&count).Error)
		assert.Equal(t, int64(2), count)

		var active int64
		require.NoError(t, db.Model(&Session{}).Where("user_id = ? AND is_active = ?", 1, true).Count(&active).Error)
		assert.Equal(t, int64(0), active)
	})

	t.Run("cannot revoke another user's session", func(t *testing.T) {
		other, _, err := service.Create(context.Background(), 2, Metadata{})
		require.NoError(t, err)

		_, err = service.Revoke(1, other.ID, "")
		assert.ErrorIs(t, err, ErrSessionNotFound)
	})

	t.Run("unknown session", func(t *testing.T) {
		_, err := service.Revoke(1, 9999, "")
		assert.ErrorIs(t, err, ErrSessionNotFound)
	})
}

func TestService_RevokeAll(t *testing.T) {
	service, _ := setupService(t, nil)

	_, keepToken, err := service.Create(context.Background(), 1, Metadata{})
	require.NoError(t, err)
	_, _, err = service.Create(context.Background(), 1, Metadata{})
	require.NoError(t, err)
	_, _, err = service.Create(context.Background(), 1, Metadata{})
	require.NoError(t, err)

	t.Run("spares the excepted session", func(t *testing.T) {
		require.NoError(t, service.RevokeAll(1, keepToken))

		sessions, err := service.List(1, keepToken)
		require.NoError(t, err)

		activeCount := 0
		for _, s := range sessions {
			if s.IsActive {
				activeCount++
				assert.True(t, s.Current)
			}
		}
		assert.Equal(t, 1, activeCount)
	})

	t.Run("empty exception revokes everything", func(t *testing.T) {
		require.NoError(t, service.RevokeAll(1, ""))

		_, err := service.Authenticate(keepToken)
		assert.ErrorIs(t, err, ErrUnauthorized)
	})
}

func TestService_List(t *testing.T) {
	service, _ := setupService(t, nil)

	sess, rawToken, err := service.Create(context.Background(), 1, Metadata{UserAgent: chromeOnWindows})
	require.NoError(t, err)
	other, _, err := service.Create(context.Background(), 1, Metadata{})
	require.NoError(t, err)

	_, err = service.Revoke(1, other.ID, rawToken)
	require.NoError(t, err)

	sessions, err := service.List(1, rawToken)
	require.NoError(t, err)
	require.Len(t, sessions, 2, "revoked sessions stay listed for audit")

	for _, s := range sessions {
		if s.ID == sess.ID {
			assert.True(t, s.Current)
			assert.True(t, s.IsActive)
		}
		if s.ID == other.ID {
			assert.False(t, s.Current)
			assert.False(t, s.IsActive)
		}
	}
}

func TestSummarizeAgent(t *testing.T) {
	t.Run("known desktop agent", func(t *testing.T) {
		device, browser, os := summarizeAgent(chromeOnWindows)
		assert.Contains(t, browser, "Chrome")
		assert.Contains(t, os, "Windows")
		assert.Contains(t, device, "(Desktop)")
	})

	t.Run("empty agent", func(t *testing.T) {
		device, browser, os := summarizeAgent("")
		assert.Equal(t, "Unknown Device", device)
		assert.Equal(t, "Unknown Browser", browser)
		assert.Equal(t, "Unknown OS", os)
	})
}
