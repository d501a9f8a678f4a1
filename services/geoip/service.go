package geoip

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"

	"github.com/memberhub-io/memberhub/config"
	"github.com/memberhub-io/memberhub/services/logging"
	"go.uber.org/zap"
)

var ErrLookupFailed = errors.New("geolocation lookup failed")

type Location struct {
	City     string `json:"city"`
	Region   string `json:"region"`
	Country  string `json:"country"`
	Timezone string `json:"timezone"`
}

// Service resolves IP geolocation against an ip-api style JSON endpoint
// and discovers the caller's public address as a fallback. Every call is
// bounded by the configured timeout; callers are expected to degrade on
// error rather than propagate it.
type Service struct {
	config *config.GeoIPConfig
	client *http.Client
	logger *logging.Service
}

func NewService(cfg *config.GeoIPConfig, logger *logging.Service) *Service {
	return &Service{
		config: cfg,
		client: &http.Client{Timeout: cfg.Timeout},
		logger: logger,
	}
}

type lookupResponse struct {
	Status   string `json:"status"`
	City     string `json:"city"`
	Region   string `json:"regionName"`
	Country  string `json:"country"`
	Timezone string `json:"timezone"`
}

func (s *Service) Lookup(ctx context.Context, ip string) (*Location, error) {
	if ip == "" {
		return nil, ErrLookupFailed
	}

	if isLocalAddress(ip) {
		return &Location{City: "Local", Region: "Local", Country: "Local"}, nil
	}

	url := fmt.Sprintf("%s/json/%s", strings.TrimRight(s.config.LookupURL, "/"), ip)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build geolocation request: %w", err)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		if s.logger != nil {
			s.logger.Warn("geolocation lookup failed", zap.Error(err), zap.String("ip", ip))
		}
		return nil, ErrLookupFailed
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		if s.logger != nil {
			s.logger.Warn("geolocation lookup returned non-200", zap.Int("status", resp.StatusCode))
		}
		return nil, ErrLookupFailed
	}

	var body lookupResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, ErrLookupFailed
	}
	if body.Status != "success" {
		return nil, ErrLookupFailed
	}

	return &Location{
		City:     body.City,
		Region:   body.Region,
		Country:  body.Country,
		Timezone: body.Timezone,
	}, nil
}

// PublicIP asks an ipify-style endpoint what address this host appears
// as. Used only when the request carried no forwarded address.
func (s *Service) PublicIP(ctx context.Context) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.config.PublicIPURL, nil)
	if err != nil {
		return "", fmt.Errorf("failed to build public IP request: %w", err)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		if s.logger != nil {
			s.logger.Warn("public IP discovery failed", zap.Error(err))
		}
		return "", ErrLookupFailed
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return "", ErrLookupFailed
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 64))
	if err != nil {
		return "", ErrLookupFailed
	}

	ip := strings.TrimSpace(string(raw))
	if net.ParseIP(ip) == nil {
		return "", ErrLookupFailed
	}
	return ip, nil
}

func isLocalAddress(ip string) bool {
	parsed := net.ParseIP(ip)
	if parsed == nil {
		return false
	}
	return parsed.IsLoopback() || parsed.IsPrivate() || parsed.IsLinkLocalUnicast()
}
