package main

import (
	"log"
	"os"
	"path/filepath"
	"strconv"
	"syscall"

	"suggestd/logger"

	"github.com/spf13/cobra"
)

// Setup logger to log to a file in the same directory as the executable
// Caller must defer logger.Close()
func setupLogger(logLevel string) *logger.LimitedLogger {
	ll, err := logger.Setup(filepath.Join(execDir(), "suggestd.log"), logger.ParseLogLevel(logLevel))
	if err != nil {
		log.Fatalf("error opening log file: %v", err)
	}
	log.SetOutput(ll)
	return ll
}

func execDir() string {
	execPath, err := os.Executable()
	if err != nil {
		log.Fatalf("error getting executable path: %v", err)
	}
	return filepath.Dir(execPath)
}

func getSocketPath() string {
	return filepath.Join(execDir(), "suggestd.sock")
}

func getPidPath() string {
	return filepath.Join(execDir(), "suggestd.pid")
}

func isDaemonRunning() (bool, int) {
	data, err := os.ReadFile(getPidPath())
	if err != nil {
		return false, 0
	}

	pid, err := strconv.Atoi(string(data))
	if err != nil {
		return false, 0
	}

	process, err := os.FindProcess(pid)
	if err != nil {
		return false, 0
	}

	// On Unix, Signal(0) checks if process exists
	err = process.Signal(syscall.Signal(0))
	return err == nil, pid
}

func runDaemon(configFile string) error {
	config, err := LoadConfig(configFile)
	if err != nil {
		return err
	}

	ll := setupLogger(config.LogLevel)
	defer ll.Close()
	logger.Debug("config: %+v", redacted(config))

	daemon, err := NewDaemon(config)
	if err != nil {
		logger.Error("error creating daemon: %v", err)
		return err
	}
	return daemon.Start()
}

func runClient(configFile string) error {
	client := NewClient(configFile)

	if err := client.EnsureDaemonRunning(); err != nil {
		return err
	}
	return client.Connect()
}

// redacted hides credentials before the config is logged
func redacted(c *Config) Config {
	out := *c
	if out.Sources.LLM.APIKey != "" {
		out.Sources.LLM.APIKey = "***"
	}
	out.Sources.Remote = make([]RemoteConfig, len(c.Sources.Remote))
	for i, r := range c.Sources.Remote {
		if r.AuthToken != "" {
			r.AuthToken = "***"
		}
		out.Sources.Remote[i] = r
	}
	return out
}

func newRootCmd() *cobra.Command {
	var (
		daemonMode bool
		configFile string
	)

	cmd := &cobra.Command{
		Use:   "suggestd",
		Short: "Completion daemon for Neovim",
		Long: "suggestd serves completion sessions to Neovim over msgpack-rpc.\n" +
			"Without flags it relays stdio to the daemon socket, starting the daemon when needed.",
		SilenceUsage: true,
		Args:         cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if daemonMode {
				return runDaemon(configFile)
			}
			return runClient(configFile)
		},
	}

	cmd.Flags().BoolVar(&daemonMode, "daemon", false, "run the socket daemon")
	cmd.Flags().StringVar(&configFile, "config", "", "config file (toml, yaml or json)")
	return cmd
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
