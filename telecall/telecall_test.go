package telecall_test

import (
	"context"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"telecall/auth"
	"telecall/calllog"
	"telecall/media/mediatest"
	"telecall/peer/peertest"
	"telecall/relay"
	"telecall/signal"
	"telecall/telecall"
	"telecall/types/message"
)

const testSecret = "telecall-test-secret"

func callConfig() telecall.Config {
	conf := telecall.DefaultConfig()
	conf.Mode = telecall.ModeCall
	conf.Relay.Secret = testSecret
	conf.Call.AppointmentID = "appt"
	conf.Call.RoomID = "room"
	conf.Metrics.Port = 0
	return conf
}

func TestLoad(t *testing.T) {
	t.Run("given nothing when loaded then return the defaults", func(t *testing.T) {
		conf, err := telecall.Load("")
		require.NoError(t, err)
		assert.Equal(t, telecall.DefaultConfig(), conf)
	})

	t.Run("given a file when loaded then its values override the defaults", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "telecall.yaml")
		content := strings.Join([]string{
			"mode: call",
			"relay:",
			"  secret: s3cret",
			"call:",
			"  appointment_id: appt-1",
			"  room_id: room-1",
			"  role: doctor",
			"session:",
			"  max_retries: 2",
			"  retry_delay: 250ms",
			"peer:",
			"  ice_servers: [\"stun:example.org:3478\"]",
		}, "\n")
		require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

		conf, err := telecall.Load(path)
		require.NoError(t, err)
		assert.Equal(t, telecall.ModeCall, conf.Mode)
		assert.Equal(t, "s3cret", conf.Relay.Secret)
		assert.Equal(t, "appt-1", conf.Call.AppointmentID)
		assert.Equal(t, "room-1", conf.Call.RoomID)
		assert.Equal(t, message.RoleDoctor, conf.Call.Role)
		assert.Equal(t, 2, conf.Session.MaxRetries)
		assert.Equal(t, 250*time.Millisecond, conf.Session.RetryDelay)
		assert.Equal(t, []string{"stun:example.org:3478"}, conf.Peer.ICEServers)
		assert.Equal(t, relay.DefaultPort, conf.Relay.Port)
		assert.NoError(t, conf.Validate())
	})

	t.Run("given environment variables when loaded then they override the file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "telecall.yaml")
		require.NoError(t, os.WriteFile(path, []byte("relay:\n  port: 8000\n"), 0o600))
		t.Setenv("TELECALL_RELAY__PORT", "9000")
		t.Setenv("TELECALL_CALL__ROOM_ID", "env-room")

		conf, err := telecall.Load(path)
		require.NoError(t, err)
		assert.Equal(t, 9000, conf.Relay.Port)
		assert.Equal(t, "env-room", conf.Call.RoomID)
	})

	t.Run("given a missing file when loaded then return error", func(t *testing.T) {
		_, err := telecall.Load(filepath.Join(t.TempDir(), "missing.yaml"))
		assert.Error(t, err)
	})
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*telecall.Config)
		want   error
	}{
		{name: "given a call config when validated then it is accepted", modify: func(*telecall.Config) {}},
		{
			name:   "given an unknown mode when validated then return error",
			modify: func(c *telecall.Config) { c.Mode = "broadcast" },
			want:   telecall.ErrInvalidMode,
		},
		{
			name:   "given no room when validated then return error",
			modify: func(c *telecall.Config) { c.Call.RoomID = "" },
			want:   telecall.ErrMissingRoom,
		},
		{
			name:   "given no appointment when validated then return error",
			modify: func(c *telecall.Config) { c.Call.AppointmentID = "" },
			want:   telecall.ErrMissingAppointment,
		},
		{
			name:   "given an unknown role when validated then return error",
			modify: func(c *telecall.Config) { c.Call.Role = "nurse" },
			want:   telecall.ErrInvalidRole,
		},
		{
			name:   "given neither token nor secret when validated then return error",
			modify: func(c *telecall.Config) { c.Relay.Secret = "" },
			want:   telecall.ErrMissingCredential,
		},
		{
			name:   "given a token without secret when validated then it is accepted",
			modify: func(c *telecall.Config) { c.Relay.Secret = ""; c.Signal.Token = "token" },
		},
		{
			name:   "given an http relay url when validated then return error",
			modify: func(c *telecall.Config) { c.Signal.URL = "http://localhost:7070/ws" },
			want:   signal.ErrInvalidURL,
		},
		{
			name:   "given a bad call-log url when validated then return error",
			modify: func(c *telecall.Config) { c.CallLog.BaseURL = "ftp://logs" },
			want:   calllog.ErrInvalidBaseURL,
		},
		{
			name:   "given a relay without secret when validated then return error",
			modify: func(c *telecall.Config) { c.Mode = telecall.ModeRelay; c.Relay.Secret = "" },
			want:   relay.ErrInvalidSecret,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			conf := callConfig()
			tt.modify(&conf)
			err := conf.Validate()
			if tt.want == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestSignalConfig(t *testing.T) {
	t.Run("given a secret when resolved then a token for the user is issued", func(t *testing.T) {
		conf := callConfig()
		conf.Call.UserID = "doc"
		conf.Call.Role = message.RoleDoctor

		sig, err := conf.SignalConfig()
		require.NoError(t, err)
		claims, err := auth.Verify([]byte(testSecret), sig.Token)
		require.NoError(t, err)
		assert.Equal(t, "doc", claims.UserID())
		assert.Equal(t, message.RoleDoctor, claims.Role)
	})

	t.Run("given a token when resolved then it is kept", func(t *testing.T) {
		conf := callConfig()
		conf.Signal.Token = "given"
		sig, err := conf.SignalConfig()
		require.NoError(t, err)
		assert.Equal(t, "given", sig.Token)
	})
}

func TestStartRelay(t *testing.T) {
	conf := telecall.DefaultConfig()
	conf.Relay.Port = 0
	conf.Relay.Secret = testSecret
	conf.Metrics.Port = 0

	app, err := telecall.New(conf, zaptest.NewLogger(t))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() { errc <- app.Start(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()
	select {
	case err := <-errc:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("relay did not stop")
	}
}

func TestStartCall(t *testing.T) {
	r := relay.New(relay.Config{Port: relay.DefaultPort, Secret: testSecret}, zaptest.NewLogger(t), nil)
	srv := httptest.NewServer(r.Handler())
	t.Cleanup(srv.Close)

	start := func(user string, role message.Role) (*peertest.Factory, context.CancelFunc, chan error) {
		conf := callConfig()
		conf.Signal.URL = "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
		conf.Call.UserID = user
		conf.Call.Role = role
		require.NoError(t, conf.Validate())

		peers := &peertest.Factory{AutoConnect: true}
		app, err := telecall.New(conf, zaptest.NewLogger(t),
			telecall.WithMediaSource(&mediatest.Source{}),
			telecall.WithPeerFactory(peers),
		)
		require.NoError(t, err)

		ctx, cancel := context.WithCancel(context.Background())
		t.Cleanup(cancel)
		errc := make(chan error, 1)
		go func() { errc <- app.Start(ctx) }()
		return peers, cancel, errc
	}

	doctor, stopDoctor, doctorDone := start("doc", message.RoleDoctor)
	require.Eventually(t, func() bool { return doctor.Last() != nil }, 5*time.Second, 10*time.Millisecond)
	_, stopPatient, patientDone := start("pat", message.RolePatient)

	require.Eventually(t, func() bool {
		last := doctor.Last()
		return last != nil && last.Offers() > 0
	}, 5*time.Second, 10*time.Millisecond)

	stopDoctor()
	stopPatient()
	for _, done := range []chan error{doctorDone, patientDone} {
		select {
		case err := <-done:
			assert.NoError(t, err)
		case <-time.After(5 * time.Second):
			t.Fatal("call did not end")
		}
	}
}
