package relay_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"telecall/relay"
)

func TestConfigValidate(t *testing.T) {
	dir := t.TempDir()
	cert := filepath.Join(dir, "cert.pem")
	key := filepath.Join(dir, "key.pem")
	require.NoError(t, os.WriteFile(cert, nil, 0o600))
	require.NoError(t, os.WriteFile(key, nil, 0o600))

	tests := []struct {
		name string
		conf relay.Config
		want error
	}{
		{name: "given defaults when validated then it passes", conf: relay.Config{Port: relay.DefaultPort, Secret: "s"}},
		{name: "given a zero port when validated then it fails", conf: relay.Config{Secret: "s"}, want: relay.ErrInvalidPort},
		{name: "given a port above range when validated then it fails", conf: relay.Config{Port: 70000, Secret: "s"}, want: relay.ErrInvalidPort},
		{name: "given an empty secret when validated then it fails", conf: relay.Config{Port: 1}, want: relay.ErrInvalidSecret},
		{name: "given existing tls files when validated then it passes", conf: relay.Config{Port: 1, Secret: "s", CertFile: cert, KeyFile: key}},
		{name: "given a missing cert when validated then it fails", conf: relay.Config{Port: 1, Secret: "s", CertFile: filepath.Join(dir, "none"), KeyFile: key}, want: relay.ErrInvalidCertFile},
		{name: "given a missing key when validated then it fails", conf: relay.Config{Port: 1, Secret: "s", CertFile: cert, KeyFile: filepath.Join(dir, "none")}, want: relay.ErrInvalidKeyFile},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.conf.Validate()
			if tt.want == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestConfigIsSame(t *testing.T) {
	a := relay.Config{Port: 1, Secret: "s"}
	assert.True(t, a.IsSame(relay.Config{Port: 1, Secret: "s", Debug: true}))
	assert.False(t, a.IsSame(relay.Config{Port: 1, Secret: "s", Echo: true}))
}
