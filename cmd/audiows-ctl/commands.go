package main

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/muurk/audiows/internal/client"
	"github.com/muurk/audiows/internal/config"
	"github.com/muurk/audiows/internal/discovery"
	"github.com/muurk/audiows/internal/protocol"
	"github.com/muurk/audiows/internal/tui"
	"github.com/muurk/audiows/internal/ui"
)

// Command flags
var (
	serverAddr   string
	configPath   string
	logLevel     string
	replyTimeout int
	scanTimeout  int
	clearAmp     bool
)

func init() {
	// Common flags for server commands (persistent on root)
	rootCmd.PersistentFlags().StringVarP(&serverAddr, "server", "s", "", "Server URL, host:port or mDNS instance name")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to config file (default: user config dir)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level (debug, info, warn, error); logging is off when empty")
	rootCmd.PersistentFlags().IntVar(&replyTimeout, "timeout", 0, "Seconds to wait for a reply (default from config)")

	// Add subcommands directly to root
	rootCmd.AddCommand(recCmd)
	rootCmd.AddCommand(ampCmd)
	rootCmd.AddCommand(sendCmd)
	rootCmd.AddCommand(stateCmd)
	rootCmd.AddCommand(scanCmd)
	rootCmd.AddCommand(consoleCmd)
}

// connectionTips are shown when a server cannot be reached.
var connectionTips = []string{
	"Is audiows-server running? Start it with: audiows-server serve",
	"Check the address: --server 127.0.0.1:9001",
	"Find servers on the network: audiows-ctl scan",
}

// recCmd toggles recording
var recCmd = &cobra.Command{
	Use:       "rec <on|off>",
	Short:     "Start or stop recording",
	Long:      `Send a Command message setting the server's recording flag.`,
	Example:   "  audiows-ctl rec on\n  audiows-ctl rec off --server studio",
	Args:      cobra.ExactArgs(1),
	ValidArgs: []string{"on", "off"},
	RunE:      runRec,
}

func runRec(cmd *cobra.Command, args []string) error {
	on, err := parseOnOff(args[0])
	if err != nil {
		return err
	}
	cmd.SilenceUsage = true

	return withClient(cmd, "Set recording", "audiows-ctl rec "+args[0], func(c *client.Client) ([]ui.Param, error) {
		if err := c.SetRecording(on); err != nil {
			return nil, err
		}
		return []ui.Param{{Key: "Recording", Value: ui.RecordingLabel(on)}}, nil
	})
}

// ampCmd sets or clears the amplitude
var ampCmd = &cobra.Command{
	Use:   "amp [value]",
	Short: "Set the amplitude",
	Long: `Send a Parameter message carrying an amplitude.

With --clear the Parameter is sent without an amplitude; the server
acknowledges it and leaves the amplitude unchanged.`,
	Example: `  # Halve the signal
  audiows-ctl amp 0.5

  # Send a Parameter with no amplitude
  audiows-ctl amp --clear`,
	Args: cobra.MaximumNArgs(1),
	RunE: runAmp,
}

func init() {
	ampCmd.Flags().BoolVar(&clearAmp, "clear", false, "Send a Parameter without an amplitude")
}

func runAmp(cmd *cobra.Command, args []string) error {
	if clearAmp && len(args) > 0 {
		return errors.New("--clear cannot be combined with a value")
	}
	if !clearAmp && len(args) == 0 {
		return errors.New("an amplitude value or --clear is required")
	}

	var amp float64
	if !clearAmp {
		v, err := strconv.ParseFloat(args[0], 64)
		if err != nil {
			return fmt.Errorf("invalid amplitude %q: %w", args[0], err)
		}
		amp = v
	}
	cmd.SilenceUsage = true

	command := "audiows-ctl amp --clear"
	if !clearAmp {
		command = "audiows-ctl amp " + args[0]
	}
	return withClient(cmd, "Set amplitude", command, func(c *client.Client) ([]ui.Param, error) {
		if clearAmp {
			return []ui.Param{{Key: "Amplitude", Value: "unchanged"}}, c.ClearAmplitude()
		}
		return []ui.Param{{Key: "Amplitude", Value: ui.FormatAmplitude(amp)}}, c.SetAmplitude(amp)
	})
}

// sendCmd sends a raw frame
var sendCmd = &cobra.Command{
	Use:   "send <json>",
	Short: "Send a raw JSON text frame",
	Long: `Send the argument verbatim as one text frame and print the server's reply.

The frame is not validated locally, so this is the way to see how the
server answers malformed input.`,
	Example: `  audiows-ctl send '{"type":"Command","data":{"rec":true}}'
  audiows-ctl send '{"type":"Bogus"}'`,
	Args: cobra.ExactArgs(1),
	RunE: runSend,
}

func runSend(cmd *cobra.Command, args []string) error {
	cmd.SilenceUsage = true

	return withClient(cmd, "Send frame", "audiows-ctl send", func(c *client.Client) ([]ui.Param, error) {
		reply, err := c.SendRaw([]byte(args[0]))
		if err != nil {
			return nil, err
		}
		frame, err := protocol.Encode(reply)
		if err != nil {
			return nil, err
		}
		return []ui.Param{{Key: "Reply", Value: string(frame)}}, client.ReplyError(reply)
	})
}

// stateCmd reads the server state
var stateCmd = &cobra.Command{
	Use:   "state",
	Short: "Show the server's current state",
	Long:  `Read the recording flag, amplitude and client count from GET /state.`,
	Args:  cobra.NoArgs,
	RunE:  runState,
}

func runState(cmd *cobra.Command, args []string) error {
	cmd.SilenceUsage = true
	p := ui.NewPrinter(cmd.OutOrStdout())

	registry, err := loadRegistry()
	if err != nil {
		return err
	}
	url, err := resolveServer(cmd.Context(), registry)
	if err != nil {
		p.Failure("Server not resolved", err, connectionTips...)
		return err
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), timeoutFor(registry))
	defer cancel()

	st, err := client.FetchState(ctx, url)
	if err != nil {
		p.Failure("State unavailable", err, connectionTips...)
		return err
	}
	p.State(url, st.AudioState, st.Connections)
	return nil
}

// scanCmd discovers servers on the network
var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Scan for audiows servers on the network",
	Long: `Scan for audiows servers using mDNS/DNS-SD discovery.

Servers started with --advertise are listed with their address and version.
Every server found is remembered in the config file, so later commands can
name it with --server <instance>.`,
	Example: `  # Scan for the configured time (5 seconds by default)
  audiows-ctl scan

  # Longer scan for slow networks
  audiows-ctl scan --timeout 15`,
	Args: cobra.NoArgs,
	RunE: runScan,
}

func init() {
	scanCmd.Flags().IntVar(&scanTimeout, "timeout", 0, "Scan timeout in seconds (default from config)")
}

func runScan(cmd *cobra.Command, args []string) error {
	cmd.SilenceUsage = true
	p := ui.NewPrinter(cmd.OutOrStdout())

	registry, err := loadRegistry()
	if err != nil {
		return err
	}

	timeout := time.Duration(registry.Preferences.DiscoverTimeout) * time.Second
	if scanTimeout > 0 {
		timeout = time.Duration(scanTimeout) * time.Second
	}

	p.Header("Server discovery", "audiows-ctl scan",
		ui.Param{Key: "Service", Value: discovery.ServiceType},
		ui.Param{Key: "Timeout", Value: timeout.String()},
	)

	endpoints, err := discovery.ScanForServers(cmd.Context(), timeout)
	if err != nil {
		p.Failure("Scan failed", err,
			"Check that multicast traffic is allowed on this network",
		)
		return fmt.Errorf("scan failed: %w", err)
	}

	p.Endpoints(endpoints)
	if len(endpoints) == 0 {
		p.Println("Troubleshooting:")
		p.Println("  - Start the server with --advertise and --host 0.0.0.0")
		p.Println("  - Try increasing --timeout for slower networks")
		p.Println("  - Use --server host:port to connect without discovery")
		return nil
	}

	for _, ep := range endpoints {
		registry.UpdateServerLastSeen(ep.Instance, ep.IP, ep.Port, ep.GetMetadata(discovery.TXTVersion))
	}
	if err := registry.Save(); err != nil {
		p.Warning("Servers not saved", ui.Param{Key: "Error", Value: err.Error()})
		return nil
	}

	p.Newline()
	p.Println(fmt.Sprintf("Use 'audiows-ctl state --server %s' to read a server's state", endpoints[0].Instance))
	return nil
}

// consoleCmd launches the interactive console
var consoleCmd = &cobra.Command{
	Use:   "console",
	Short: "Launch the interactive control console",
	Long: `Launch a TUI console connected to one server.

Keys: r toggles recording, +/- step the amplitude, c clears it,
: sends a raw frame, s refreshes the state, q quits.`,
	Example: `  # Console for the default server
  audiows-ctl console
  # Or simply (console is default):
  audiows-ctl

  # Console for a discovered server
  audiows-ctl console --server studio`,
	Args: cobra.NoArgs,
	RunE: runConsole,
}

func runConsole(cmd *cobra.Command, args []string) error {
	cmd.SilenceUsage = true

	registry, err := loadRegistry()
	if err != nil {
		return err
	}
	url, err := resolveServer(cmd.Context(), registry)
	if err != nil {
		return err
	}

	c, err := client.Dial(cmd.Context(), url, timeoutFor(registry))
	if err != nil {
		ui.NewPrinter(cmd.OutOrStdout()).Failure("Console not started", err, connectionTips...)
		return err
	}
	defer c.Close()

	fetch := func(ctx context.Context) (*client.State, error) {
		return client.FetchState(ctx, c.URL())
	}
	model := tui.NewConsoleModel(c, fetch, c.URL(), registry.Preferences.AmplitudeStep)

	p := tea.NewProgram(model, tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("console error: %w", err)
	}
	return nil
}

// Helper functions

// withClient prints a header, connects, runs fn and prints its outcome.
func withClient(cmd *cobra.Command, title, command string, fn func(c *client.Client) ([]ui.Param, error)) error {
	p := ui.NewPrinter(cmd.OutOrStdout())

	registry, err := loadRegistry()
	if err != nil {
		return err
	}
	url, err := resolveServer(cmd.Context(), registry)
	if err != nil {
		p.Failure("Server not resolved", err, connectionTips...)
		return err
	}

	p.Header(title, command, ui.Param{Key: "Server", Value: url})

	c, err := client.Dial(cmd.Context(), url, timeoutFor(registry))
	if err != nil {
		p.Failure("Not connected", err, connectionTips...)
		return err
	}
	defer c.Close()

	details, err := fn(c)
	if errors.Is(err, client.ErrRejected) {
		result := ui.NewFailureResult(title+" rejected", err,
			"Check the frame against the message format: audiows-ctl send --help",
		)
		for _, d := range details {
			result.AddDetail(d.Key, d.Value)
		}
		p.Println(result.SetWidth(p.Width()).Render())
		return err
	}
	if err != nil {
		p.Failure(title+" failed", err, connectionTips...)
		return err
	}

	p.Success(title, details...)
	return nil
}

func loadRegistry() (*config.Registry, error) {
	var (
		registry *config.Registry
		err      error
	)
	if configPath != "" {
		registry, err = config.LoadRegistryFrom(configPath)
	} else {
		registry, err = config.LoadRegistry()
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return registry, nil
}

func timeoutFor(registry *config.Registry) time.Duration {
	if replyTimeout > 0 {
		return time.Duration(replyTimeout) * time.Second
	}
	return time.Duration(registry.Preferences.ReplyTimeout) * time.Second
}

// resolveServer picks the server to talk to. --server is taken as an address
// when it has a port, scheme or path; otherwise as an instance name looked up
// in the config file and then over mDNS. Without --server the configured
// default is used.
func resolveServer(ctx context.Context, registry *config.Registry) (string, error) {
	if serverAddr == "" {
		return registry.DefaultServerURL(), nil
	}
	if url, ok := lookupServer(serverAddr, registry); ok {
		return url, nil
	}

	scanner := discovery.NewScanner()
	scanner.Timeout = time.Duration(registry.Preferences.DiscoverTimeout) * time.Second
	ep, err := scanner.Find(ctx, serverAddr)
	if err != nil {
		return "", err
	}
	return ep.WSURL(), nil
}

// lookupServer resolves value without touching the network.
func lookupServer(value string, registry *config.Registry) (string, bool) {
	if isAddress(value) {
		url, err := client.NormalizeURL(value)
		if err != nil {
			// Let Dial report the malformed address.
			return value, true
		}
		return url, true
	}
	if known := registry.GetServer(value); known != nil {
		return known.WSURL(), true
	}
	return "", false
}

func isAddress(value string) bool {
	return strings.ContainsAny(value, ":/")
}

func parseOnOff(s string) (bool, error) {
	switch strings.ToLower(s) {
	case "on", "start":
		return true, nil
	case "off", "stop":
		return false, nil
	}
	on, err := strconv.ParseBool(s)
	if err != nil {
		return false, fmt.Errorf("invalid recording state %q (use on or off)", s)
	}
	return on, nil
}
