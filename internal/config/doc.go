// Package config manages the audiows YAML configuration file.
//
// One file serves both binaries:
//
//	version: 1
//	server:                  # audiows-server defaults; flags override
//	  host: 127.0.0.1
//	  port: 9001
//	  log_level: info
//	  advertise: false
//	  instance: audiows
//	  read_limit: 65536
//	  idle_timeout_seconds: 0
//	servers:                 # filled by 'audiows-ctl scan'
//	  studio:
//	    host: 192.168.1.20
//	    port: 9001
//	preferences:             # audiows-ctl defaults
//	  default_server: ws://192.168.1.20:9001/
//	  discover_timeout: 5
//	  reply_timeout: 5
//	  amplitude_step: 0.1
//
// # Configuration File Location
//
//   - Linux: $XDG_CONFIG_HOME/audiows/config.yaml or $HOME/.config/audiows/config.yaml
//   - macOS: $HOME/.config/audiows/config.yaml
//   - Windows: %LOCALAPPDATA%\audiows\config.yaml
//
// A missing file is not an error: LoadRegistry returns the built-in defaults.
// Save writes atomically (temp file + rename).
//
// The audio state itself is never written here; it lives only in server memory.
package config
