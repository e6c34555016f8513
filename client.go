package main

import (
	"io"
	"net"
	"os"
	"time"

	"suggestd/logger"

	"github.com/cockroachdb/errors"
)

// Client relays Neovim's stdio channel to the daemon socket
type Client struct {
	socketPath string
	configFile string
}

func NewClient(configFile string) *Client {
	return &Client{
		socketPath: getSocketPath(),
		configFile: configFile,
	}
}

func (c *Client) Connect() error {
	conn, err := net.Dial("unix", c.socketPath)
	if err != nil {
		return errors.Wrapf(err, "dial %s", c.socketPath)
	}
	defer conn.Close()

	go func() {
		io.Copy(conn, os.Stdin)
		conn.Close()
	}()

	io.Copy(os.Stdout, conn)
	return nil
}

func (c *Client) EnsureDaemonRunning() error {
	running, pid := isDaemonRunning()
	if running {
		logger.Debug("daemon already running with PID %d", pid)
		return nil
	}

	return c.startDaemon()
}

func (c *Client) startDaemon() error {
	logger.Debug("starting daemon...")

	argv := []string{os.Args[0], "--daemon"}
	if c.configFile != "" {
		argv = append(argv, "--config", c.configFile)
	}

	// The daemon inherits SUGGESTD_CONFIG and SUGGESTD_* overrides
	_, err := os.StartProcess(os.Args[0], argv, &os.ProcAttr{
		Env:   os.Environ(),
		Files: []*os.File{nil, nil, nil},
	})
	if err != nil {
		return errors.Wrap(err, "start daemon")
	}

	return c.waitForDaemon()
}

func (c *Client) waitForDaemon() error {
	for range 50 { // Wait up to 5 seconds
		if running, _ := isDaemonRunning(); running {
			if _, err := os.Stat(c.socketPath); err == nil {
				logger.Debug("daemon started successfully")
				return nil
			}
		}
		time.Sleep(100 * time.Millisecond)
	}
	return errors.New("daemon failed to start within timeout")
}
