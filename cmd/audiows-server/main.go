// Audiows-server is the WebSocket control server for an audio pipeline.
//
// Clients connect over WebSocket and send JSON control messages that toggle
// recording and set the amplitude of a single state shared by every
// connection. Each text frame is answered with an Ack or an Error.
//
// Usage:
//
//	audiows-server serve [flags]
//
// See 'audiows-server serve --help' for available options.
package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/muurk/audiows/internal/config"
	"github.com/muurk/audiows/internal/server"
	"github.com/muurk/audiows/internal/state"
	"github.com/muurk/audiows/internal/version"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "audiows-server",
	Short: "Audiows WebSocket control server",
	Long: `A WebSocket server holding the recording flag and amplitude of an audio
pipeline. Every connected client reads and writes the same state.

Settings are read from the audiows config file when present; command-line
flags override the file.

Note: To send commands to a running server, use the separate 'audiows-ctl' utility.`,
	Version: version.Version,
}

// Server command and flags
var (
	configPath  string
	host        string
	port        int
	logLevel    string
	captureDir  string
	readLimit   int64
	idleTimeout int
	advertise   bool
	instance    string
)

func init() {
	rootCmd.CompletionOptions.DisableDefaultCmd = true

	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to config file (default: user config dir)")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(initConfigCmd)
	rootCmd.AddCommand(versionCmd)
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the WebSocket server",
	Long: `Start the audiows WebSocket server and accept control connections.

The server listens on 127.0.0.1:9001 unless the config file or flags say
otherwise. GET /healthz and GET /state are served on the same port; every
other path is a WebSocket endpoint.

To capture every frame for later analysis, use the --capture-dir flag to
specify a directory where JSON Lines capture files will be written.`,
	Example: `  # Start on the default address
  audiows-server serve

  # Listen on all interfaces with debug logging
  audiows-server serve --host 0.0.0.0 --log-level debug

  # Publish the server over mDNS for 'audiows-ctl scan'
  audiows-server serve --host 0.0.0.0 --advertise --instance studio

  # Capture frames and drop clients idle for more than a minute
  audiows-server serve --capture-dir ./captures --idle-timeout 60`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&host, "host", config.DefaultHost, "Address to listen on (empty = all interfaces)")
	serveCmd.Flags().IntVar(&port, "port", config.DefaultPort, "Server port")
	serveCmd.Flags().StringVar(&logLevel, "log-level", config.DefaultLogLevel, "Log level (debug, info, warn, error)")
	serveCmd.Flags().StringVar(&captureDir, "capture-dir", "", "Directory to write frame captures (disabled if not specified)")
	serveCmd.Flags().Int64Var(&readLimit, "read-limit", config.DefaultReadLimit, "Maximum inbound frame size in bytes (0 = unlimited)")
	serveCmd.Flags().IntVar(&idleTimeout, "idle-timeout", 0, "Close connections silent for this many seconds (0 = never)")
	serveCmd.Flags().BoolVar(&advertise, "advertise", false, "Advertise the server over mDNS")
	serveCmd.Flags().StringVar(&instance, "instance", config.DefaultInstance, "mDNS instance name")
}

func loadRegistry() (*config.Registry, error) {
	if configPath != "" {
		return config.LoadRegistryFrom(configPath)
	}
	return config.LoadRegistry()
}

// resolveSettings layers changed flags over the config file.
func resolveSettings(cmd *cobra.Command, settings *config.ServerSettings) {
	flags := cmd.Flags()
	if flags.Changed("host") {
		settings.Host = host
	}
	if flags.Changed("port") {
		settings.Port = port
	}
	if flags.Changed("log-level") {
		settings.LogLevel = logLevel
	}
	if flags.Changed("capture-dir") {
		settings.CaptureDir = captureDir
	}
	if flags.Changed("read-limit") {
		settings.ReadLimit = readLimit
	}
	if flags.Changed("idle-timeout") {
		settings.IdleTimeoutSeconds = idleTimeout
	}
	if flags.Changed("advertise") {
		settings.Advertise = advertise
	}
	if flags.Changed("instance") {
		settings.Instance = instance
	}
}

func runServe(cmd *cobra.Command, args []string) error {
	registry, err := loadRegistry()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	settings := registry.Server
	resolveSettings(cmd, settings)
	if err := settings.Validate(); err != nil {
		return err
	}

	// Validate capture directory if specified
	if settings.CaptureDir != "" {
		info, err := os.Stat(settings.CaptureDir)
		if os.IsNotExist(err) {
			return fmt.Errorf("capture directory does not exist: %s", settings.CaptureDir)
		}
		if err != nil {
			return fmt.Errorf("cannot access capture directory: %w", err)
		}
		if !info.IsDir() {
			return fmt.Errorf("capture path is not a directory: %s", settings.CaptureDir)
		}
	}

	srv, err := server.New(&server.Config{
		Host:        settings.Host,
		Port:        settings.Port,
		LogLevel:    settings.LogLevel,
		ReadLimit:   settings.ReadLimit,
		IdleTimeout: settings.IdleTimeout(),
		CaptureDir:  settings.CaptureDir,
		Advertise:   settings.Advertise,
		Instance:    settings.Instance,
	}, state.NewCell())
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}

	return srv.Start()
}

var initConfigCmd = &cobra.Command{
	Use:   "init-config",
	Short: "Write a default config file",
	Long: `Write a config file holding the built-in defaults, ready for editing.

An existing file is never overwritten.`,
	Example: `  # Write to the user config directory
  audiows-server init-config

  # Write to an explicit path
  audiows-server init-config --config ./audiows.yaml`,
	RunE: func(cmd *cobra.Command, args []string) error {
		path := configPath
		if path == "" {
			p, err := config.GetConfigPath()
			if err != nil {
				return err
			}
			path = p
		}

		registry, err := config.CreateDefaultConfig(path)
		if err != nil {
			return err
		}
		fmt.Printf("Wrote default configuration to %s\n", registry.Path())
		fmt.Printf("Server will listen on %s (idle timeout: %s)\n",
			registry.Server.Addr(), describeTimeout(registry.Server.IdleTimeout()))
		return nil
	},
}

func describeTimeout(d time.Duration) string {
	if d == 0 {
		return "none"
	}
	return d.String()
}

// Version command
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("audiows-server %s (commit: %s)\n", version.Version, version.Commit)
	},
}
