package session

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/memberhub-io/memberhub/config"
	"github.com/memberhub-io/memberhub/services/geoip"
	"github.com/memberhub-io/memberhub/services/logging"
	"github.com/mileusna/useragent"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var (
	ErrUnauthorized    = errors.New("unauthorized")
	ErrSessionNotFound = errors.New("session not found")
)

const unknownField = "Unknown"

// GeoResolver is the slice of the geoip service the enricher needs.
type GeoResolver interface {
	Lookup(ctx context.Context, ip string) (*geoip.Location, error)
	PublicIP(ctx context.Context) (string, error)
}

type Service struct {
	config   *config.SessionConfig
	db       *gorm.DB
	resolver GeoResolver
	logger   *logging.Service
}

func NewService(cfg *config.SessionConfig, db *gorm.DB, resolver GeoResolver, logger *logging.Service) *Service {
	return &Service{
		config:   cfg,
		db:       db,
		resolver: resolver,
		logger:   logger,
	}
}

func hashToken(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}

// Create builds and stores an enriched session and returns it with the
// raw bearer token. Enrichment is best effort: a dead geolocation
// service or a missing address degrades fields to "Unknown" and never
// fails the session itself.
func (s *Service) Create(ctx context.Context, userID uint, meta Metadata) (*Session, string, error) {
	rawToken := uuid.NewString()
	now := time.Now()

	device, browser, os := summarizeAgent(meta.UserAgent)

	sess := &Session{
		UserID:    userID,
		TokenHash: hashToken(rawToken),
		Device:    device,
		Browser:   browser,
		OS:        os,
		IPAddress: unknownField,
		City:      unknownField,
		Region:    unknownField,
		Country:   unknownField,
		Timezone:  unknownField,
		IsActive:  true,
		CreatedAt: now,
		LastUsed:  now,
		ExpiresAt: now.Add(s.config.Expiry),
	}

	s.enrichLocation(ctx, sess, meta.ForwardedIP)

	if err := s.db.Create(sess).Error; err != nil {
		if s.logger != nil {
			s.logger.Error("failed to create session", zap.Error(err), zap.Uint("user_id", userID))
		}
		return nil, "", fmt.Errorf("failed to create session: %w", err)
	}

	if s.logger != nil {
		s.logger.Info("session created",
			zap.Uint("user_id", userID),
			zap.Uint("session_id", sess.ID),
			zap.String("device", sess.Device))
	}
	return sess, rawToken, nil
}

func (s *Service) enrichLocation(ctx context.Context, sess *Session, forwardedIP string) {
	ip := forwardedIP
	if ip == "" && s.resolver != nil {
		discovered, err := s.resolver.PublicIP(ctx)
		if err != nil {
			if s.logger != nil {
				s.logger.Warn("public IP discovery failed, session stays unlocated", zap.Error(err))
			}
			return
		}
		ip = discovered
	}
	if ip == "" {
		return
	}

	sess.IPAddress = ip

	if s.resolver == nil {
		return
	}

	location, err := s.resolver.Lookup(ctx, ip)
	if err != nil {
		if s.logger != nil {
			s.logger.Warn("geolocation lookup failed, session stays unlocated",
				zap.Error(err), zap.String("ip", ip))
		}
		return
	}

	if location.City != "" {
		sess.City = location.City
	}
	if location.Region != "" {
		sess.Region = location.Region
	}
	if location.Country != "" {
		sess.Country = location.Country
	}
	if location.Timezone != "" {
		sess.Timezone = location.Timezone
	}
}

// summarizeAgent turns a raw agent string into the stored device triple,
// e.g. ("Chrome 120 on Windows 10 (Desktop)", "Chrome 120", "Windows 10").
func summarizeAgent(userAgentString string) (device, browser, os string) {
	browser = "Unknown Browser"
	os = "Unknown OS"

	if userAgentString == "" {
		return "Unknown Device", browser, os
	}

	ua := useragent.Parse(userAgentString)

	if ua.Name != "" {
		browser = ua.Name
		if ua.Version != "" {
			browser += " " + ua.Version
		}
	}

	if ua.OS != "" {
		os = ua.OS
		if ua.OSVersion != "" {
			os += " " + ua.OSVersion
		}
	}

	class := "Desktop"
	switch {
	case ua.Mobile:
		class = "Mobile"
	case ua.Tablet:
		class = "Tablet"
	case ua.Bot:
		class = "Bot"
	}

	return fmt.Sprintf("%s on %s (%s)", browser, os, class), browser, os
}

// Authenticate resolves a presented bearer token to its live session.
// Unknown, revoked and expired tokens all collapse into ErrUnauthorized.
func (s *Service) Authenticate(rawToken string) (*Session, error) {
	if rawToken == "" {
		return nil, ErrUnauthorized
	}

	var sess Session
	err := s.db.Where("token_hash = ?", hashToken(rawToken)).First(&sess).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUnauthorized
		}
		return nil, fmt.Errorf("failed to load session: %w", err)
	}

	if !sess.IsActive || time.Now().After(sess.ExpiresAt) {
		return nil, ErrUnauthorized
	}

	if err := s.db.Model(&Session{}).Where("id = ?", sess.ID).
		Update("last_used", time.Now()).Error; err != nil && s.logger != nil {
		s.logger.Warn("failed to bump session last_used", zap.Error(err))
	}

	return &sess, nil
}

// List returns every session row for the user, revoked ones included,
// most recently used first. The caller's own session is flagged Current.
func (s *Service) List(userID uint, currentRawToken string) ([]Session, error) {
	var sessions []Session
	err := s.db.Where("user_id = ?", userID).
		Order("last_used DESC").
		Find(&sessions).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}

	currentHash := hashToken(currentRawToken)
	for i := range sessions {
		if sessions[i].TokenHash == currentHash {
			sessions[i].Current = true
		}
	}
	return sessions, nil
}

// Revoke deactivates one session. The row stays behind for the audit
// trail. The returned flag tells the caller whether they just revoked
// the session they are using, so the UI can drop its token.
func (s *Service) Revoke(userID, sessionID uint, currentRawToken string) (bool, error) {
	var sess Session
	err := s.db.Where("id = ? AND user_id = ?", sessionID, userID).First(&sess).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return false, ErrSessionNotFound
		}
		return false, fmt.Errorf("failed to load session: %w", err)
	}

	if err := s.db.Model(&Session{}).Where("id = ?", sess.ID).
		Update("is_active", false).Error; err != nil {
		return false, fmt.Errorf("failed to revoke session: %w", err)
	}

	if s.logger != nil {
		s.logger.Info("session revoked", zap.Uint("user_id", userID), zap.Uint("session_id", sessionID))
	}
	return sess.TokenHash == hashToken(currentRawToken), nil
}

// RevokeAll deactivates every active session for the user except the one
// matching exceptRawToken (pass "" to revoke everything).
func (s *Service) RevokeAll(userID uint, exceptRawToken string) error {
	query := s.db.Model(&Session{}).Where("user_id = ? AND is_active = ?", userID, true)
	if exceptRawToken != "" {
		query = query.Where("token_hash != ?", hashToken(exceptRawToken))
	}

	result := query.Update("is_active", false)
	if result.Error != nil {
		return fmt.Errorf("failed to revoke sessions: %w", result.Error)
	}

	if s.logger != nil {
		s.logger.Info("sessions revoked",
			zap.Uint("user_id", userID),
			zap.Int64("count", result.RowsAffected))
	}
	return nil
}
