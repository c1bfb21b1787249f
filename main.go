package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"system-mqtt/internal/agent"
	"system-mqtt/internal/config"
	"system-mqtt/internal/homeassistant"
	"system-mqtt/internal/infra/mqtt"
	"system-mqtt/internal/secrets"
	"system-mqtt/internal/version"
	"system-mqtt/pkg/log"

	"github.com/spf13/cobra"
	"golang.org/x/term"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		log.Fatalf("%v", err)
	}
}

func newRootCommand() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:   "system-mqtt",
		Short: "Report system statistics to an MQTT broker",
		Long: "system-mqtt samples CPU, memory, swap, filesystem and battery statistics\n" +
			"and publishes them to an MQTT broker, announcing every sensor to Home\n" +
			"Assistant through MQTT discovery.",
		Version:       version.GetVersion(),
		SilenceUsage:  true,
		SilenceErrors: true,
		// Running the bare binary starts the daemon, same as "run".
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDaemon(configPath)
		},
	}
	root.PersistentFlags().StringVar(&configPath, "config", config.DefaultPath, "Path to the configuration file")

	run := &cobra.Command{
		Use:   "run",
		Short: "Run the reporting daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDaemon(configPath)
		},
	}

	setPassword := &cobra.Command{
		Use:   "set-password",
		Short: "Store the MQTT password in the OS keyring",
		RunE: func(cmd *cobra.Command, args []string) error {
			return setKeyringPassword(configPath)
		},
	}

	root.AddCommand(run, setPassword)
	return root
}

func runDaemon(configPath string) error {
	// Set up signal handling
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		sig := <-sigChan
		log.Info("Received signal, shutting down", "signal", sig.String())
		cancel()
	}()

	for {
		restart, err := runAgent(ctx, configPath)
		if restart {
			log.Info("Restarting with updated configuration")
			continue
		}
		if ctx.Err() != nil {
			// A shutdown signal interrupted the run; whatever it broke on
			// the way down is already logged and is not a daemon failure.
			return nil
		}
		return err
	}
}

// runAgent runs one agent lifetime, from loading the configuration to the
// session teardown. It reports whether the daemon should start over because
// the configuration file changed.
func runAgent(ctx context.Context, configPath string) (bool, error) {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return false, err
	}
	log.InitLog(cfg.LogLevel)

	hostname, err := os.Hostname()
	if err != nil {
		return false, log.Errorf("failed to determine hostname: %v", err)
	}

	provider, err := secrets.FromConfig(cfg)
	if err != nil {
		return false, err
	}
	if provider != nil {
		// Resolve the password once up front so a missing secret fails the
		// start instead of feeding empty credentials to the reconnect loop.
		if _, err := provider.Password(cfg.Username); err != nil {
			return false, log.Errorf("failed to retrieve MQTT password: %w", err)
		}
	}

	discovery := &homeassistant.Discovery{
		Hostname:        hostname,
		DiscoveryPrefix: cfg.DiscoveryPrefix,
		TopicPrefix:     cfg.TopicPrefix,
		Version:         version.GetVersion(),
	}

	opts := mqtt.Options{
		ServerURL:   cfg.MQTTServer,
		ClientID:    fmt.Sprintf("%s-%s", cfg.TopicPrefix, hostname),
		Username:    cfg.Username,
		WillTopic:   discovery.AvailabilityTopic(),
		WillPayload: homeassistant.PayloadOffline,
	}
	if provider != nil {
		username := cfg.Username
		opts.Password = func() (string, error) {
			return provider.Password(username)
		}
	}

	session, err := mqtt.New(opts)
	if err != nil {
		return false, err
	}
	// The agent closes the session on a normal shutdown; this covers the
	// paths that fail before the agent takes ownership. Closing twice is a
	// no-op.
	defer session.Close()

	runCtx, stop := context.WithCancel(ctx)
	defer stop()

	var mu sync.Mutex
	changed := false
	watcher := config.NewWatcher(configPath, func(_ *config.Config) {
		log.Info("Configuration changed, restarting agent")
		mu.Lock()
		changed = true
		mu.Unlock()
		stop()
	})
	if err := watcher.Start(runCtx); err != nil {
		log.Warn("Continuing without the config watcher", "error", err)
	} else {
		defer watcher.Stop()
	}

	log.Info("Starting system-mqtt", "version", version.GetVersion(), "host", hostname, "server", cfg.MQTTServer)

	a := agent.NewAgent(session, discovery, cfg.UpdateInterval.Duration(), agent.BuildMetrics(cfg))
	runErr := a.Run(runCtx)

	mu.Lock()
	restart := changed
	mu.Unlock()
	if restart && ctx.Err() == nil {
		// The run was stopped on purpose, even if it was torn out of a
		// connect retry; its cancellation error is not fatal.
		return true, nil
	}
	return false, runErr
}

func setKeyringPassword(configPath string) error {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return err
	}
	log.InitLog(cfg.LogLevel)

	if cfg.Username == "" {
		return log.Errorf("set a username in %s before storing a password for it", configPath)
	}

	fmt.Print("Password: ")
	password, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Println()
	if err != nil {
		return log.Errorf("failed to read password from terminal: %v", err)
	}

	var keyring secrets.Keyring
	if err := keyring.SetPassword(cfg.Username, string(password)); err != nil {
		return err
	}

	fmt.Printf("Password for %s stored in the OS keyring.\n", cfg.Username)
	return nil
}
