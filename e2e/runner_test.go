//go:build e2e

package e2e

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/fgeck/jmx-restart/internal/models"
	"github.com/fgeck/jmx-restart/internal/services/restart"
	"github.com/fgeck/jmx-restart/internal/services/runner"
	"github.com/fgeck/jmx-restart/internal/services/ssh"
	"github.com/fgeck/jmx-restart/internal/services/telegram"
	"github.com/fgeck/jmx-restart/internal/services/wol"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// telegramAPI records sendMessage calls.
type telegramAPI struct {
	server *httptest.Server

	mu    sync.Mutex
	texts []string
}

func newTelegramAPI(t *testing.T) *telegramAPI {
	t.Helper()

	api := &telegramAPI{}
	api.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Text string `json:"text"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		api.mu.Lock()
		api.texts = append(api.texts, body.Text)
		api.mu.Unlock()
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(api.server.Close)
	return api
}

func (a *telegramAPI) messages() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]string(nil), a.texts...)
}

// relaunchRecorder stands in for the SSH host.
type relaunchRecorder struct {
	mu    sync.Mutex
	calls []models.SSHRelaunchConfig
}

func (r *relaunchRecorder) Relaunch(ctx context.Context, cfg models.SSHRelaunchConfig) (*models.SSHResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, cfg)
	return &models.SSHResult{CommandRun: true}, nil
}

func (r *relaunchRecorder) TestConnection(ctx context.Context, cfg models.SSHRelaunchConfig) (*models.SSHResult, error) {
	return &models.SSHResult{CommandRun: true, Output: "OK"}, nil
}

var _ ssh.Service = (*relaunchRecorder)(nil)

func newRunner(t *testing.T, api *telegramAPI, sshSvc ssh.Service) *runner.Impl {
	t.Helper()

	logger := testLogger()
	factory := func(hook restart.TriggerHook) restart.Service {
		svc := restart.New(logger)
		if hook != nil {
			svc.WithTriggerHook(hook)
		}
		return svc
	}

	return runner.NewWithServices(
		logger,
		factory,
		wol.NewWithClients(logger, &mockWOLClient{}, http.DefaultClient),
		sshSvc,
		telegram.NewWithClient(logger, api.server.Client(), api.server.URL),
	)
}

func TestRunner_FullWorkflow_E2E(t *testing.T) {
	console := newFakeConsole(t, 2)
	api := newTelegramAPI(t)
	sshSvc := &relaunchRecorder{}

	cfg := models.Config{
		Restart: console.settings(t),
		WOL: &models.WOLConfig{
			MACAddress:   "AA:BB:CC:DD:EE:FF",
			BroadcastIP:  "255.255.255.255",
			Timeout:      2 * time.Second,
			PollInterval: 50 * time.Millisecond,
		},
		SSHRelaunch: &models.SSHRelaunchConfig{
			Host:       "127.0.0.1",
			Port:       22,
			Username:   "root",
			PrivateKey: []byte("unused"),
			Command:    "sudo systemctl start jboss",
		},
		Telegram: &models.TelegramConfig{BotToken: "123:abc", ChatID: "42"},
	}

	err := newRunner(t, api, sshSvc).Run(context.Background(), cfg)

	require.NoError(t, err)
	assert.Equal(t, 1, console.triggerCount())
	require.Len(t, sshSvc.calls, 1)
	assert.Equal(t, "sudo systemctl start jboss", sshSvc.calls[0].Command)
	require.Len(t, api.messages(), 1)
	assert.Contains(t, api.messages()[0], "Server Restarted")
}

func TestRunner_NotifiesOnTimeout_E2E(t *testing.T) {
	console := newFakeConsole(t, 1000)
	api := newTelegramAPI(t)

	settings := console.settings(t)
	settings.Timeout = 300 * time.Millisecond

	cfg := models.Config{
		Restart:  settings,
		Telegram: &models.TelegramConfig{BotToken: "123:abc", ChatID: "42"},
	}

	err := newRunner(t, api, &relaunchRecorder{}).Run(context.Background(), cfg)

	require.Error(t, err)
	assert.ErrorIs(t, err, restart.ErrTimedOut)
	assert.Contains(t, err.Error(), "consider increasing restart.timeout_seconds")
	require.Len(t, api.messages(), 1)
	assert.Contains(t, api.messages()[0], "Server Restart Failed")
}

func TestRunner_ConsoleDown_E2E(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().(*net.TCPAddr)
	require.NoError(t, ln.Close())

	console := newFakeConsole(t, 0)
	settings := console.settings(t)
	settings.Host = addr.IP.String()
	settings.Port = strconv.Itoa(addr.Port)

	err = newRunner(t, newTelegramAPI(t), &relaunchRecorder{}).Run(context.Background(), models.Config{Restart: settings})

	require.Error(t, err)
	assert.ErrorIs(t, err, restart.ErrTriggerFailed)
	assert.Equal(t, 0, console.triggerCount())
}
