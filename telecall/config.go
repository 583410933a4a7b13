// Package telecall wires the relay server and the call client into one
// application.
package telecall

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"telecall/auth"
	"telecall/calllog"
	"telecall/media"
	"telecall/metric"
	"telecall/peer"
	"telecall/relay"
	"telecall/session"
	"telecall/signal"
	"telecall/types/message"
)

// Mode selects what the application runs.
type Mode string

// Application modes
const (
	ModeRelay Mode = "relay"
	ModeCall  Mode = "call"
)

const (
	// EnvPrefix prefixes every environment variable read by Load.
	EnvPrefix = "TELECALL"
	// DefaultTokenTTL is the lifetime of a locally issued token.
	DefaultTokenTTL = time.Hour
)

// Below is the Error message for the application configuration.
var (
	ErrInvalidMode        = errors.New("invalid mode")
	ErrMissingRoom        = errors.New("missing room id")
	ErrMissingAppointment = errors.New("missing appointment id")
	ErrInvalidRole        = errors.New("invalid role")
	ErrMissingCredential  = errors.New("missing token or secret")
)

// CallConfig identifies the call to join.
type CallConfig struct {
	AppointmentID string
	RoomID        string
	UserID        string
	Role          message.Role
	// TokenTTL is the lifetime of a token issued from Relay.Secret when
	// Signal.Token is empty.
	TokenTTL time.Duration
}

// Config contains the configuration of every component.
type Config struct {
	Mode    Mode
	Debug   bool
	Relay   relay.Config
	Signal  signal.Config
	Call    CallConfig
	Session session.Config
	Media   media.Config
	Peer    peer.Config
	CallLog calllog.Config
	Metrics metric.Config
}

// DefaultConfig returns the configuration used when nothing is set.
func DefaultConfig() Config {
	return Config{
		Mode:   ModeRelay,
		Relay:  relay.Config{Port: relay.DefaultPort},
		Signal: signal.Config{URL: signal.DefaultURL, JoinTimeout: signal.DefaultJoinTimeout},
		Call: CallConfig{
			UserID:   "anonymous",
			Role:     message.RolePatient,
			TokenTTL: DefaultTokenTTL,
		},
		Session: session.DefaultConfig(),
		Media: media.Config{
			Width:        media.DefaultWidth,
			Height:       media.DefaultHeight,
			FrameRate:    media.DefaultFrameRate,
			VideoBitRate: media.DefaultVideoBitRate,
			AudioBitRate: media.DefaultAudioBitRate,
			MTU:          media.DefaultMTU,
		},
		CallLog: calllog.Config{Timeout: calllog.DefaultTimeout},
		Metrics: metric.Config{
			Port:           metric.DefaultMetricsPort,
			Path:           metric.DefaultMetricsPath,
			SampleInterval: metric.DefaultSampleInterval,
		},
	}
}

// Validate validates the components the selected mode runs.
func (c Config) Validate() error {
	if err := c.Metrics.Validate(); err != nil {
		return err
	}
	switch c.Mode {
	case ModeRelay:
		return c.Relay.Validate()
	case ModeCall:
		return c.validateCall()
	default:
		return fmt.Errorf("must be %s or %s, given %q: %w", ModeRelay, ModeCall, c.Mode, ErrInvalidMode)
	}
}

func (c Config) validateCall() error {
	if c.Call.RoomID == "" {
		return ErrMissingRoom
	}
	if c.Call.AppointmentID == "" {
		return ErrMissingAppointment
	}
	if c.Call.Role != message.RoleDoctor && c.Call.Role != message.RolePatient {
		return fmt.Errorf("must be %s or %s, given %q: %w", message.RoleDoctor, message.RolePatient, c.Call.Role, ErrInvalidRole)
	}
	sig, err := c.SignalConfig()
	if err != nil {
		return err
	}
	validators := []interface{ Validate() error }{sig, c.Session, c.Media, c.Peer, c.CallLog}
	for _, v := range validators {
		if err := v.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// SignalConfig returns the signaling configuration with its credential.
// Without a configured token, one is issued for the call's user from the
// relay secret.
func (c Config) SignalConfig() (signal.Config, error) {
	sig := c.Signal
	if sig.Token != "" {
		return sig, nil
	}
	if c.Relay.Secret == "" {
		return signal.Config{}, ErrMissingCredential
	}
	ttl := c.Call.TokenTTL
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}
	token, err := auth.Issue([]byte(c.Relay.Secret), c.Call.UserID, c.Call.Role, ttl)
	if err != nil {
		return signal.Config{}, fmt.Errorf("failed to issue token: %w", err)
	}
	sig.Token = token
	return sig, nil
}

// settings is the file and environment layout of Config.
type settings struct {
	Mode  string `mapstructure:"mode"`
	Debug bool   `mapstructure:"debug"`
	Relay struct {
		Port     int    `mapstructure:"port"`
		CertFile string `mapstructure:"cert_file"`
		KeyFile  string `mapstructure:"key_file"`
		Secret   string `mapstructure:"secret"`
		Echo     bool   `mapstructure:"echo"`
	} `mapstructure:"relay"`
	Signal struct {
		URL         string        `mapstructure:"url"`
		Token       string        `mapstructure:"token"`
		JoinTimeout time.Duration `mapstructure:"join_timeout"`
	} `mapstructure:"signal"`
	Call struct {
		AppointmentID string        `mapstructure:"appointment_id"`
		RoomID        string        `mapstructure:"room_id"`
		UserID        string        `mapstructure:"user_id"`
		Role          string        `mapstructure:"role"`
		TokenTTL      time.Duration `mapstructure:"token_ttl"`
	} `mapstructure:"call"`
	Session struct {
		RetryDelay       time.Duration `mapstructure:"retry_delay"`
		RetryMultiplier  float64       `mapstructure:"retry_multiplier"`
		MaxRetries       int           `mapstructure:"max_retries"`
		RoomFullRedirect time.Duration `mapstructure:"room_full_redirect"`
		EndLogTimeout    time.Duration `mapstructure:"end_log_timeout"`
	} `mapstructure:"session"`
	Media struct {
		Width        int     `mapstructure:"width"`
		Height       int     `mapstructure:"height"`
		FrameRate    float64 `mapstructure:"frame_rate"`
		VideoBitRate int     `mapstructure:"video_bit_rate"`
		AudioBitRate int     `mapstructure:"audio_bit_rate"`
		MTU          int     `mapstructure:"mtu"`
	} `mapstructure:"media"`
	Peer struct {
		ICEServers []string `mapstructure:"ice_servers"`
		MinUDPPort uint16   `mapstructure:"min_udp_port"`
		MaxUDPPort uint16   `mapstructure:"max_udp_port"`
	} `mapstructure:"peer"`
	CallLog struct {
		BaseURL string        `mapstructure:"base_url"`
		Token   string        `mapstructure:"token"`
		Timeout time.Duration `mapstructure:"timeout"`
	} `mapstructure:"call_log"`
	Metrics struct {
		Port           int           `mapstructure:"port"`
		Path           string        `mapstructure:"path"`
		SampleInterval time.Duration `mapstructure:"sample_interval"`
	} `mapstructure:"metrics"`
}

// Load reads the configuration from the file at path, when given, and from
// TELECALL_ environment variables, which take precedence. Nested keys are
// separated by a double underscore, e.g. TELECALL_RELAY__PORT.
func Load(path string) (Config, error) {
	v := viper.NewWithOptions(viper.KeyDelimiter("__"))
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	setDefault(v, DefaultConfig())

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("failed to read config %s: %w", path, err)
		}
	}

	var s settings
	if err := v.Unmarshal(&s); err != nil {
		return Config{}, fmt.Errorf("failed to decode config: %w", err)
	}
	return s.config(), nil
}

// setDefault registers every key, so that environment variables are seen
// by Unmarshal.
func setDefault(v *viper.Viper, d Config) {
	v.SetDefault("MODE", string(d.Mode))
	v.SetDefault("DEBUG", d.Debug)

	v.SetDefault("RELAY__PORT", d.Relay.Port)
	v.SetDefault("RELAY__CERT_FILE", d.Relay.CertFile)
	v.SetDefault("RELAY__KEY_FILE", d.Relay.KeyFile)
	v.SetDefault("RELAY__SECRET", d.Relay.Secret)
	v.SetDefault("RELAY__ECHO", d.Relay.Echo)

	v.SetDefault("SIGNAL__URL", d.Signal.URL)
	v.SetDefault("SIGNAL__TOKEN", d.Signal.Token)
	v.SetDefault("SIGNAL__JOIN_TIMEOUT", d.Signal.JoinTimeout)

	v.SetDefault("CALL__APPOINTMENT_ID", d.Call.AppointmentID)
	v.SetDefault("CALL__ROOM_ID", d.Call.RoomID)
	v.SetDefault("CALL__USER_ID", d.Call.UserID)
	v.SetDefault("CALL__ROLE", string(d.Call.Role))
	v.SetDefault("CALL__TOKEN_TTL", d.Call.TokenTTL)

	v.SetDefault("SESSION__RETRY_DELAY", d.Session.RetryDelay)
	v.SetDefault("SESSION__RETRY_MULTIPLIER", d.Session.RetryMultiplier)
	v.SetDefault("SESSION__MAX_RETRIES", d.Session.MaxRetries)
	v.SetDefault("SESSION__ROOM_FULL_REDIRECT", d.Session.RoomFullRedirect)
	v.SetDefault("SESSION__END_LOG_TIMEOUT", d.Session.EndLogTimeout)

	v.SetDefault("MEDIA__WIDTH", d.Media.Width)
	v.SetDefault("MEDIA__HEIGHT", d.Media.Height)
	v.SetDefault("MEDIA__FRAME_RATE", d.Media.FrameRate)
	v.SetDefault("MEDIA__VIDEO_BIT_RATE", d.Media.VideoBitRate)
	v.SetDefault("MEDIA__AUDIO_BIT_RATE", d.Media.AudioBitRate)
	v.SetDefault("MEDIA__MTU", d.Media.MTU)

	v.SetDefault("PEER__ICE_SERVERS", d.Peer.ICEServers)
	v.SetDefault("PEER__MIN_UDP_PORT", d.Peer.MinUDPPort)
	v.SetDefault("PEER__MAX_UDP_PORT", d.Peer.MaxUDPPort)

	v.SetDefault("CALL_LOG__BASE_URL", d.CallLog.BaseURL)
	v.SetDefault("CALL_LOG__TOKEN", d.CallLog.Token)
	v.SetDefault("CALL_LOG__TIMEOUT", d.CallLog.Timeout)

	v.SetDefault("METRICS__PORT", d.Metrics.Port)
	v.SetDefault("METRICS__PATH", d.Metrics.Path)
	v.SetDefault("METRICS__SAMPLE_INTERVAL", d.Metrics.SampleInterval)
}

func (s settings) config() Config {
	mc := media.Config{
		Width:        s.Media.Width,
		Height:       s.Media.Height,
		FrameRate:    s.Media.FrameRate,
		VideoBitRate: s.Media.VideoBitRate,
		AudioBitRate: s.Media.AudioBitRate,
		MTU:          s.Media.MTU,
	}
	return Config{
		Mode:  Mode(s.Mode),
		Debug: s.Debug,
		Relay: relay.Config{
			Port:     s.Relay.Port,
			Debug:    s.Debug,
			CertFile: s.Relay.CertFile,
			KeyFile:  s.Relay.KeyFile,
			Secret:   s.Relay.Secret,
			Echo:     s.Relay.Echo,
		},
		Signal: signal.Config{
			URL:         s.Signal.URL,
			Token:       s.Signal.Token,
			JoinTimeout: s.Signal.JoinTimeout,
		},
		Call: CallConfig{
			AppointmentID: s.Call.AppointmentID,
			RoomID:        s.Call.RoomID,
			UserID:        s.Call.UserID,
			Role:          message.Role(s.Call.Role),
			TokenTTL:      s.Call.TokenTTL,
		},
		Session: session.Config{
			RetryDelay:       s.Session.RetryDelay,
			RetryMultiplier:  s.Session.RetryMultiplier,
			MaxRetries:       s.Session.MaxRetries,
			RoomFullRedirect: s.Session.RoomFullRedirect,
			EndLogTimeout:    s.Session.EndLogTimeout,
			Constraints:      mc.Constraints(),
		},
		Media: mc,
		Peer: peer.Config{
			ICEServers: s.Peer.ICEServers,
			MinUDPPort: s.Peer.MinUDPPort,
			MaxUDPPort: s.Peer.MaxUDPPort,
		},
		CallLog: calllog.Config{
			BaseURL: s.CallLog.BaseURL,
			Token:   s.CallLog.Token,
			Timeout: s.CallLog.Timeout,
		},
		Metrics: metric.Config{
			Port:           s.Metrics.Port,
			Path:           s.Metrics.Path,
			SampleInterval: s.Metrics.SampleInterval,
		},
	}
}
