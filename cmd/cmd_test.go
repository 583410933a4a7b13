package cmd_test

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"telecall/cmd"
	"telecall/relay"
	"telecall/telecall"
	"telecall/types/message"
)

// parse parses the command-line arguments and returns the configuration.
// It returns an error if the arguments are invalid.
func TestParseArgs(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		want    relay.Config
		wantErr bool
	}{
		{
			name: "given valid args when parsed then return config",
			args: []string{"-port=8080", "-key=/path/to/key.pem", "-cert=/path/to/cert.pem", "-secret=s"},
			want: relay.Config{Port: 8080, KeyFile: "/path/to/key.pem", CertFile: "/path/to/cert.pem", Secret: "s"},
		},
		{
			name: "given missing port when parsed then return config with default port",
			args: []string{"-key=/path/to/key.pem", "-cert=/path/to/cert.pem"},
			want: relay.Config{Port: relay.DefaultPort, KeyFile: "/path/to/key.pem", CertFile: "/path/to/cert.pem"},
		},
		{
			name: "given echo when parsed then return config with echo",
			args: []string{"-echo"},
			want: relay.Config{Port: relay.DefaultPort, Echo: true},
		},
		{
			name: "given no args when parsed then return config",
			args: []string{},
			want: relay.Config{Port: relay.DefaultPort},
		},
		{
			name:    "given extra args when parsed then return error",
			args:    []string{"-port=8080", "-key=/path/to/key.pem", "-cert=/path/to/cert.pem", "extra"},
			wantErr: true,
		},
		{
			name:    "given invalid flag format when parsed then return error",
			args:    []string{"-extra"},
			wantErr: true,
		},
		{
			name:    "given invalid non-flag args when parsed then return error",
			args:    []string{"port"},
			wantErr: true,
		},
		{
			name:    "given port flag without value when parsed then return error",
			args:    []string{"-port"},
			wantErr: true,
		},
		{
			name:    "given a missing config file when parsed then return error",
			args:    []string{"-config=/non/existent/telecall.yaml"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var output bytes.Buffer
			got, err := cmd.Parse(&output, tt.args)
			if tt.wantErr {
				assert.Errorf(t, err, "parse() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			assert.NoError(t, err)
			assert.Truef(t, got.Relay.IsSame(tt.want), "parse() = %v, want %v", got.Relay, tt.want)
		})
	}
}

func TestParseCall(t *testing.T) {
	t.Run("given call flags when parsed then return the call config", func(t *testing.T) {
		got, err := cmd.Parse(&bytes.Buffer{}, []string{
			"-mode=call", "-url=wss://relay.example.org/ws", "-token=abc",
			"-appointment=appt", "-room=room", "-role=doctor", "-calllog=https://logs.example.org", "-metrics-port=0",
		})
		require.NoError(t, err)
		assert.Equal(t, telecall.ModeCall, got.Mode)
		assert.Equal(t, "wss://relay.example.org/ws", got.Signal.URL)
		assert.Equal(t, "abc", got.Signal.Token)
		assert.Equal(t, "appt", got.Call.AppointmentID)
		assert.Equal(t, "room", got.Call.RoomID)
		assert.Equal(t, message.RoleDoctor, got.Call.Role)
		assert.Equal(t, "https://logs.example.org", got.CallLog.BaseURL)
		assert.Zero(t, got.Metrics.Port)
		assert.NoError(t, got.Validate())
	})

	t.Run("given a config file and flags when parsed then flags win", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "telecall.yaml")
		require.NoError(t, os.WriteFile(path, []byte("mode: call\ncall:\n  room_id: file-room\n  appointment_id: appt\n"), 0o600))

		got, err := cmd.Parse(&bytes.Buffer{}, []string{"-config=" + path, "-room=flag-room"})
		require.NoError(t, err)
		assert.Equal(t, telecall.ModeCall, got.Mode)
		assert.Equal(t, "flag-room", got.Call.RoomID)
		assert.Equal(t, "appt", got.Call.AppointmentID)
	})
}

// Helper function to create a temporary file and return its path
func createTempFile() (string, error) {
	tmpFile, err := os.CreateTemp("", "testfile")
	if err != nil {
		return "", err
	}
	if closeErr := tmpFile.Close(); closeErr != nil {
		return "", closeErr
	}
	return tmpFile.Name(), nil
}

// TestSetupConfig tests the SetupConfig function, including handling errors from parse and Config.Validate.
func TestSetupConfig(t *testing.T) {
	keyFile, err := createTempFile()
	require.NoError(t, err)
	certFile, err := createTempFile()
	require.NoError(t, err)

	defer func() {
		_ = os.Remove(keyFile)
		_ = os.Remove(certFile)
	}()

	tests := []struct {
		name                string
		args                []string
		expected            relay.Config
		expectParseError    bool
		expectValidateError bool
	}{
		{
			name: "given valid args when setup config then return valid config",
			args: []string{"-port=8080", "-key=" + keyFile, "-cert=" + certFile, "-secret=s"},
			expected: relay.Config{
				Port:     8080,
				KeyFile:  keyFile,
				CertFile: certFile,
				Secret:   "s",
			},
		},
		{
			name:     "given only a secret when setup config then return default config",
			args:     []string{"-secret=s"},
			expected: relay.Config{Port: relay.DefaultPort, Secret: "s"},
		},
		{
			name:                "given no secret when setup config then return error",
			args:                []string{},
			expectValidateError: true,
		},
		{
			name:                "given invalid port value when setup config then return error",
			args:                []string{"-port=70000", "-secret=s"},
			expectValidateError: true,
		},
		{
			name:                "given non-existent cert file when setup config then return error",
			args:                []string{"-port=8080", "-secret=s", "-key=" + keyFile, "-cert=/non/existent/cert.pem"},
			expectValidateError: true,
		},
		{
			name:                "given non-existent key file when setup config then return error",
			args:                []string{"-port=8080", "-secret=s", "-cert=" + certFile, "-key=/non/existent/key.pem"},
			expectValidateError: true,
		},
		{
			name:             "given invalid flag format when setup config then return error",
			args:             []string{"-extra"},
			expectParseError: true,
		},
		{
			name:             "given port flag without value when setup config then return error",
			args:             []string{"-port"},
			expectParseError: true,
		},
		{
			name:                "given empty key file and non-empty cert file when setup config then return error",
			args:                []string{"-port=8080", "-secret=s", "-cert=" + certFile},
			expectValidateError: true,
		},
		{
			name:                "given non-empty key file and empty cert file when setup config then return error",
			args:                []string{"-port=8080", "-secret=s", "-key=" + keyFile},
			expectValidateError: true,
		},
		{
			name:                "given call mode without room when setup config then return error",
			args:                []string{"-mode=call", "-secret=s", "-appointment=appt"},
			expectValidateError: true,
		},
		{
			name:                "given an unknown mode when setup config then return error",
			args:                []string{"-mode=broadcast", "-secret=s"},
			expectValidateError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := bytes.NewBuffer(make([]byte, 1024))

			config, err := cmd.SetupConfig(buf, tt.args)

			if tt.expectParseError || tt.expectValidateError {
				assert.Error(t, err)
				return
			}

			require.NoError(t, err)
			assert.Truef(t, config.Relay.IsSame(tt.expected), "SetupConfig() = %v, expected %v", config.Relay, tt.expected)
		})
	}
}
