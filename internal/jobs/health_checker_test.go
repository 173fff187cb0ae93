package jobs

import (
	"context"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"url2/internal/logger"
	"url2/internal/models"
	"url2/internal/testutil"
)

type fakeResolver map[string][]net.IP

func (r fakeResolver) LookupIP(host string) ([]net.IP, error) {
	if ips, ok := r[host]; ok {
		return ips, nil
	}
	return nil, &net.DNSError{Err: "no such host", Name: host, IsNotFound: true}
}

// newTestChecker routes every outbound connection to srv while the resolver
// reports public addresses for the test hosts.
func newTestChecker(t *testing.T, store HealthStore, srv *httptest.Server) *HealthChecker {
	t.Helper()
	h := NewHealthChecker(store, time.Hour, time.Hour, logger.Nop())
	h.pause = 0
	h.resolver = fakeResolver{
		"up.example.org":   {net.ParseIP("93.184.216.34")},
		"down.example.org": {net.ParseIP("93.184.216.35")},
		"intranet.example": {net.ParseIP("10.1.2.3")},
	}
	if srv != nil {
		addr := srv.Listener.Addr().String()
		h.client.Transport = &http.Transport{
			DialContext: func(ctx context.Context, network, _ string) (net.Conn, error) {
				var d net.Dialer
				return d.DialContext(ctx, network, addr)
			},
		}
	}
	return h
}

func TestHealthChecker_CheckAll(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodHead, r.Method)
		assert.Equal(t, "URL2-HealthChecker/1.0", r.Header.Get("User-Agent"))
		if strings.HasPrefix(r.Host, "down.") {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	f := testutil.NewFixture(t)
	up, _ := f.AddURL2(t, &models.URL2{Name: "Up", ExternalURL: "http://up.example.org/"}, nil)
	down, _ := f.AddURL2(t, &models.URL2{Name: "Down", ExternalURL: "http://down.example.org/missing"}, nil)
	private, _ := f.AddURL2(t, &models.URL2{Name: "Private", ExternalURL: "http://intranet.example/"}, nil)
	mail, _ := f.AddURL2(t, &models.URL2{Name: "Mail", ExternalURL: "mailto:help@example.org"}, nil)

	h := newTestChecker(t, f.Store, srv)
	assert.Equal(t, 3, h.checkAll(context.Background()))

	ctx := context.Background()
	got, err := f.Store.GetURL2ByID(ctx, up.ID)
	require.NoError(t, err)
	assert.Equal(t, models.HealthHealthy, got.HealthStatus)
	assert.NotNil(t, got.HealthCheckedAt)
	assert.Nil(t, got.HealthError)

	got, err = f.Store.GetURL2ByID(ctx, down.ID)
	require.NoError(t, err)
	assert.Equal(t, models.HealthUnhealthy, got.HealthStatus)
	require.NotNil(t, got.HealthError)
	assert.Equal(t, "HTTP 404 Not Found", *got.HealthError)

	got, err = f.Store.GetURL2ByID(ctx, private.ID)
	require.NoError(t, err)
	assert.Equal(t, models.HealthUnhealthy, got.HealthStatus)
	require.NotNil(t, got.HealthError)
	assert.Contains(t, *got.HealthError, "private")

	got, err = f.Store.GetURL2ByID(ctx, mail.ID)
	require.NoError(t, err)
	assert.Equal(t, models.HealthUnknown, got.HealthStatus)
	assert.Nil(t, got.HealthCheckedAt)

	// Everything is fresh now
	assert.Zero(t, h.checkAll(context.Background()))
}

func TestHealthChecker_Check(t *testing.T) {
	f := testutil.NewFixture(t)
	u, _ := f.AddURL2(t, &models.URL2{Name: "Nowhere", ExternalURL: "https://unknown.example.org/"}, nil)

	h := newTestChecker(t, f.Store, nil)
	status, errMsg, err := h.Check(context.Background(), u)
	require.NoError(t, err)
	assert.Equal(t, models.HealthUnhealthy, status)
	require.NotNil(t, errMsg)
	assert.Equal(t, "Cannot resolve hostname", *errMsg)
	assert.Equal(t, models.HealthUnhealthy, u.HealthStatus)
	assert.NotNil(t, u.HealthCheckedAt)
}

func TestHealthChecker_CancelledContext(t *testing.T) {
	f := testutil.NewFixture(t)
	f.AddURL2(t, &models.URL2{Name: "Up", ExternalURL: "http://up.example.org/"}, nil)

	h := newTestChecker(t, f.Store, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.Zero(t, h.checkAll(ctx))
}

func TestHealthChecker_Redirects(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/metadata":
			http.Redirect(w, r, "http://169.254.169.254/latest/meta-data/", http.StatusFound)
		case "/intranet":
			http.Redirect(w, r, "http://intranet.example/admin", http.StatusFound)
		case "/file":
			http.Redirect(w, r, "file:///etc/passwd", http.StatusFound)
		case "/moved":
			http.Redirect(w, r, "http://down.example.org/new", http.StatusMovedPermanently)
		default:
			if strings.HasPrefix(r.Host, "intranet.") || strings.HasPrefix(r.Host, "169.254.") {
				t.Errorf("request reached %s%s", r.Host, r.URL.Path)
			}
			w.WriteHeader(http.StatusOK)
		}
	}))
	defer srv.Close()

	tests := []struct {
		name   string
		path   string
		status string
		errMsg string
	}{
		{"metadata address", "/metadata", models.HealthUnhealthy, "redirect refused: URL points to a private or reserved IP address"},
		{"private host", "/intranet", models.HealthUnhealthy, "redirect refused: URL points to a private or reserved IP address"},
		{"non web scheme", "/file", models.HealthUnhealthy, "redirect refused"},
		{"public host", "/moved", models.HealthHealthy, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := testutil.NewFixture(t)
			u, _ := f.AddURL2(t, &models.URL2{Name: "Hop", ExternalURL: "http://up.example.org" + tt.path}, nil)

			h := newTestChecker(t, f.Store, srv)
			status, errMsg, err := h.Check(context.Background(), u)
			require.NoError(t, err)
			assert.Equal(t, tt.status, status)
			if tt.errMsg == "" {
				assert.Nil(t, errMsg)
				return
			}
			require.NotNil(t, errMsg)
			assert.Contains(t, *errMsg, tt.errMsg)
		})
	}
}

func TestHealthChecker_PauseHonoursContext(t *testing.T) {
	f := testutil.NewFixture(t)
	f.AddURL2(t, &models.URL2{Name: "A", ExternalURL: "https://a.unknown.example.org/"}, nil)
	f.AddURL2(t, &models.URL2{Name: "B", ExternalURL: "https://b.unknown.example.org/"}, nil)

	h := newTestChecker(t, f.Store, nil)
	h.pause = time.Hour

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	assert.Equal(t, 1, h.checkAll(ctx))
	assert.Less(t, time.Since(start), 5*time.Second)
}
