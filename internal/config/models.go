package config

import (
	"fmt"
	"net"
	"strconv"
	"time"
)

// Built-in defaults, used when the config file or a field is absent.
const (
	DefaultHost            = "127.0.0.1"
	DefaultPort            = 9001
	DefaultLogLevel        = "info"
	DefaultInstance        = "audiows"
	DefaultReadLimit       = 64 << 10
	DefaultDiscoverTimeout = 5
	DefaultAmplitudeStep   = 0.1
	DefaultReplyTimeout    = 5
)

// Registry represents the entire configuration file.
// It is shared by the server (Server section) and the control CLI
// (Servers and Preferences).
type Registry struct {
	Version     int                     `yaml:"version"`
	Server      *ServerSettings         `yaml:"server,omitempty"`
	Servers     map[string]*KnownServer `yaml:"servers,omitempty"` // Keyed by mDNS instance name
	Preferences *Preferences            `yaml:"preferences,omitempty"`

	path string
}

// ServerSettings configures audiows-server. Command-line flags override these.
type ServerSettings struct {
	Host               string `yaml:"host"`
	Port               int    `yaml:"port"`
	LogLevel           string `yaml:"log_level"`
	Advertise          bool   `yaml:"advertise"`             // Publish the server over mDNS
	Instance           string `yaml:"instance,omitempty"`    // mDNS instance name
	CaptureDir         string `yaml:"capture_dir,omitempty"` // Frame capture directory (empty = disabled)
	ReadLimit          int64  `yaml:"read_limit"`            // Max inbound frame size in bytes
	IdleTimeoutSeconds int    `yaml:"idle_timeout_seconds"`  // 0 = connections never time out
}

// KnownServer is a control server seen by `audiows-ctl scan`.
type KnownServer struct {
	Host     string    `yaml:"host"`
	Port     int       `yaml:"port"`
	Version  string    `yaml:"version,omitempty"`
	LastSeen time.Time `yaml:"last_seen,omitempty"`
}

// Preferences are audiows-ctl defaults.
type Preferences struct {
	DefaultServer   string  `yaml:"default_server,omitempty"` // WebSocket URL
	DiscoverTimeout int     `yaml:"discover_timeout"`         // Seconds
	ReplyTimeout    int     `yaml:"reply_timeout"`            // Seconds to wait for an Ack/Error
	AmplitudeStep   float64 `yaml:"amplitude_step"`           // Console +/- increment
}

// NewRegistry creates a new Registry with default values.
func NewRegistry() *Registry {
	return &Registry{
		Version:     currentVersion,
		Server:      DefaultServerSettings(),
		Servers:     make(map[string]*KnownServer),
		Preferences: DefaultPreferences(),
	}
}

// DefaultServerSettings returns the built-in server settings.
func DefaultServerSettings() *ServerSettings {
	return &ServerSettings{
		Host:      DefaultHost,
		Port:      DefaultPort,
		LogLevel:  DefaultLogLevel,
		Instance:  DefaultInstance,
		ReadLimit: DefaultReadLimit,
	}
}

// DefaultPreferences returns the built-in CLI preferences.
func DefaultPreferences() *Preferences {
	return &Preferences{
		DiscoverTimeout: DefaultDiscoverTimeout,
		ReplyTimeout:    DefaultReplyTimeout,
		AmplitudeStep:   DefaultAmplitudeStep,
	}
}

// Addr returns the host:port listen address.
func (s *ServerSettings) Addr() string {
	return net.JoinHostPort(s.Host, strconv.Itoa(s.Port))
}

// IdleTimeout returns the per-frame read timeout, zero when disabled.
func (s *ServerSettings) IdleTimeout() time.Duration {
	return time.Duration(s.IdleTimeoutSeconds) * time.Second
}

// Validate checks the settings for values the server cannot run with.
func (s *ServerSettings) Validate() error {
	if s.Port < 0 || s.Port > 65535 {
		return fmt.Errorf("server.port %d out of range (0-65535)", s.Port)
	}
	if s.ReadLimit < 0 {
		return fmt.Errorf("server.read_limit must not be negative (got %d)", s.ReadLimit)
	}
	if s.IdleTimeoutSeconds < 0 {
		return fmt.Errorf("server.idle_timeout_seconds must not be negative (got %d)", s.IdleTimeoutSeconds)
	}
	if s.Advertise && s.Instance == "" {
		return fmt.Errorf("server.instance is required when advertise is enabled")
	}
	return nil
}

// WSURL returns the control URL of a known server.
func (k *KnownServer) WSURL() string {
	return "ws://" + net.JoinHostPort(k.Host, strconv.Itoa(k.Port)) + "/"
}

// GetServer retrieves a known server by instance name.
// Returns nil if it is not in the registry.
func (r *Registry) GetServer(instance string) *KnownServer {
	return r.Servers[instance]
}

// UpdateServerLastSeen records a discovered server.
func (r *Registry) UpdateServerLastSeen(instance, host string, port int, version string) *KnownServer {
	if r.Servers == nil {
		r.Servers = make(map[string]*KnownServer)
	}

	srv, ok := r.Servers[instance]
	if !ok {
		srv = &KnownServer{}
		r.Servers[instance] = srv
	}
	srv.Host = host
	srv.Port = port
	srv.LastSeen = time.Now()
	if version != "" {
		srv.Version = version
	}
	return srv
}

// DefaultServerURL returns the URL audiows-ctl connects to when --server is
// not given: the preference, else the built-in server address.
func (r *Registry) DefaultServerURL() string {
	if r.Preferences != nil && r.Preferences.DefaultServer != "" {
		return r.Preferences.DefaultServer
	}
	return (&KnownServer{Host: DefaultHost, Port: DefaultPort}).WSURL()
}

// applyDefaults fills sections left null by a loaded file and the fields
// that cannot be empty.
func (r *Registry) applyDefaults() {
	if r.Server == nil {
		r.Server = DefaultServerSettings()
	} else {
		// An empty host (all interfaces), port 0 (any free port) and read
		// limit 0 (unlimited) are meaningful and kept.
		d := DefaultServerSettings()
		if r.Server.LogLevel == "" {
			r.Server.LogLevel = d.LogLevel
		}
		if r.Server.Instance == "" {
			r.Server.Instance = d.Instance
		}
	}

	if r.Servers == nil {
		r.Servers = make(map[string]*KnownServer)
	}

	if r.Preferences == nil {
		r.Preferences = DefaultPreferences()
	} else {
		d := DefaultPreferences()
		if r.Preferences.DiscoverTimeout <= 0 {
			r.Preferences.DiscoverTimeout = d.DiscoverTimeout
		}
		if r.Preferences.ReplyTimeout <= 0 {
			r.Preferences.ReplyTimeout = d.ReplyTimeout
		}
		if r.Preferences.AmplitudeStep <= 0 {
			r.Preferences.AmplitudeStep = d.AmplitudeStep
		}
	}
}
