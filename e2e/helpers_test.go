//go:build e2e

package e2e

import (
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/fgeck/jmx-restart/internal/models"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func testLogger() zerolog.Logger {
	return zerolog.New(io.Discard)
}

// fakeConsole serves the two JMX console actions. Inspect requests fail
// until downFor of them have been answered.
type fakeConsole struct {
	server *httptest.Server

	triggerBody string
	downFor     int32
	refuse      bool // hijack and close inspect connections instead of 503

	mu        sync.Mutex
	triggers  int
	inspects  int32
	authSeen  []string
	lastQuery url.Values
}

func newFakeConsole(t *testing.T, downFor int32) *fakeConsole {
	t.Helper()

	c := &fakeConsole{
		triggerBody: "<html><body>Operation completed successfully</body></html>",
		downFor:     downFor,
	}
	c.server = httptest.NewServer(http.HandlerFunc(c.handle))
	t.Cleanup(c.server.Close)
	return c
}

func (c *fakeConsole) handle(w http.ResponseWriter, r *http.Request) {
	c.mu.Lock()
	c.authSeen = append(c.authSeen, r.Header.Get("Authorization"))
	c.lastQuery = r.URL.Query()
	c.mu.Unlock()

	switch r.URL.Query().Get("action") {
	case "invokeOpByName":
		c.mu.Lock()
		c.triggers++
		c.mu.Unlock()
		_, _ = io.WriteString(w, c.triggerBody)
	case "inspectMBean":
		n := atomic.AddInt32(&c.inspects, 1)
		if n <= c.downFor {
			if c.refuse {
				if hj, ok := w.(http.Hijacker); ok {
					conn, _, err := hj.Hijack()
					if err == nil {
						_ = conn.Close()
						return
					}
				}
			}
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = io.WriteString(w, "<html>jboss.system:type=Server</html>")
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (c *fakeConsole) inspectCount() int {
	return int(atomic.LoadInt32(&c.inspects))
}

func (c *fakeConsole) triggerCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.triggers
}

func (c *fakeConsole) authHeaders() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.authSeen...)
}

// settings returns restart settings pointing at the fake console with
// intervals short enough for a test run.
func (c *fakeConsole) settings(t *testing.T) models.RestartSettings {
	t.Helper()

	u, err := url.Parse(c.server.URL)
	require.NoError(t, err)
	host, port, err := net.SplitHostPort(u.Host)
	require.NoError(t, err)

	return models.RestartSettings{
		Host:             host,
		Port:             port,
		Timeout:          2 * time.Second,
		PollInterval:     100 * time.Millisecond,
		ProgressInterval: 50 * time.Millisecond,
		AttemptTimeout:   80 * time.Millisecond,
		TriggerTimeout:   time.Second,
		TriggerPolicy:    models.TriggerPolicyLenient,
		TriggerPath:      models.DefaultTriggerPath,
		InspectPath:      models.DefaultInspectPath,
	}
}

func hasPrefixAll(values []string, prefix string) bool {
	for _, v := range values {
		if !strings.HasPrefix(v, prefix) {
			return false
		}
	}
	return len(values) > 0
}
