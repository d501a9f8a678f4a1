package geoip

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/memberhub-io/memberhub/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newService(lookupURL, publicIPURL string) *Service {
	return NewService(&config.GeoIPConfig{
		LookupURL:   lookupURL,
		PublicIPURL: publicIPURL,
		Timeout:     time.Second,
	}, nil)
}

func TestService_Lookup(t *testing.T) {
	t.Run("parses a successful response", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/json/203.0.113.10", r.URL.Path)
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"status":"success","city":"Sydney","regionName":"New South Wales","country":"Australia","timezone":"Australia/Sydney"}`))
		}))
		defer server.Close()

		loc, err := newService(server.URL, "").Lookup(context.Background(), "203.0.113.10")
		require.NoError(t, err)
		assert.Equal(t, "Sydney", loc.City)
		assert.Equal(t, "New South Wales", loc.Region)
		assert.Equal(t, "Australia", loc.Country)
		assert.Equal(t, "Australia/Sydney", loc.Timezone)
	})

	t.Run("upstream fail status", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"status":"fail","message":"reserved range"}`))
		}))
		defer server.Close()

		_, err := newService(server.URL, "").Lookup(context.Background(), "203.0.113.10")
		assert.ErrorIs(t, err, ErrLookupFailed)
	})

	t.Run("non-200 response", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusTooManyRequests)
		}))
		defer server.Close()

		_, err := newService(server.URL, "").Lookup(context.Background(), "203.0.113.10")
		assert.ErrorIs(t, err, ErrLookupFailed)
	})

	t.Run("unreachable endpoint", func(t *testing.T) {
		_, err := newService("http://geoip.invalid", "").Lookup(context.Background(), "203.0.113.10")
		assert.ErrorIs(t, err, ErrLookupFailed)
	})

	t.Run("empty address", func(t *testing.T) {
		_, err := newService("http://geoip.invalid", "").Lookup(context.Background(), "")
		assert.ErrorIs(t, err, ErrLookupFailed)
	})

	t.Run("local addresses short-circuit without a network call", func(t *testing.T) {
		for _, ip := range []string{"127.0.0.1", "10.1.2.3", "192.168.1.50", "::1"} {
			loc, err := newService("http://geoip.invalid", "").Lookup(context.Background(), ip)
			require.NoError(t, err, ip)
			assert.Equal(t, "Local", loc.City)
		}
	})
}

func TestService_PublicIP(t *testing.T) {
	t.Run("returns the trimmed address", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte("198.51.100.7\n"))
		}))
		defer server.Close()

		ip, err := newService("", server.URL).PublicIP(context.Background())
		require.NoError(t, err)
		assert.Equal(t, "198.51.100.7", ip)
	})

	t.Run("rejects a body that is not an address", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte("<html>rate limited</html>"))
		}))
		defer server.Close()

		_, err := newService("", server.URL).PublicIP(context.Background())
		assert.ErrorIs(t, err, ErrLookupFailed)
	})

	t.Run("unreachable endpoint", func(t *testing.T) {
		_, err := newService("", "http://ipify.invalid").PublicIP(context.Background())
		assert.ErrorIs(t, err, ErrLookupFailed)
	})
}
