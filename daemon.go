package main

import (
	"context"
	"io"
	"log"
	"net"
	"os"
	"os/signal"
	"strconv"
	"sync/atomic"
	"syscall"
	"time"

	"suggestd/buffer"
	"suggestd/engine"
	"suggestd/logger"
	"suggestd/metrics"
	"suggestd/mru"
	"suggestd/popup"
	"suggestd/source/around"
	"suggestd/source/llm"
	"suggestd/source/remote"
	"suggestd/source/snippets"
	"suggestd/types"

	"github.com/cockroachdb/errors"
	"github.com/neovim/go-client/nvim"
)

type Daemon struct {
	config      *Config
	buffer      *buffer.NvimBuffer
	engine      *engine.Engine
	listener    net.Listener
	socketPath  string
	pidPath     string
	clientCount int64
	ctx         context.Context
	cancel      context.CancelFunc
}

func NewDaemon(config *Config) (*Daemon, error) {
	dataDir := config.DataDir
	if dataDir == "" {
		dataDir = execDir()
	}
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, errors.Wrapf(err, "create data dir %s", dataDir)
	}

	buf := buffer.New(buffer.Config{LocalityRadius: config.LocalityRadius})
	history := mru.Load(dataDir, config.MruMaxEntries)
	renderer := popup.NewRenderer(config.popupConfig(), buffer.NewScreen(buf), history)

	sources, err := buildSources(config, buf)
	if err != nil {
		return nil, err
	}

	eng := engine.NewEngine(engine.Deps{
		Document: buf,
		Sources:  sources,
		Renderer: renderer,
		History:  history,
		Notifier: buf,
		Tracker:  metrics.NewTracker(dataDir),
	}, config.engineConfig())

	ctx, cancel := context.WithCancel(context.Background())

	return &Daemon{
		config:     config,
		buffer:     buf,
		engine:     eng,
		socketPath: getSocketPath(),
		pidPath:    getPidPath(),
		ctx:        ctx,
		cancel:     cancel,
	}, nil
}

// buildSources creates the enabled sources in configuration order
func buildSources(config *Config, buf *buffer.NvimBuffer) ([]types.Source, error) {
	var sources []types.Source

	if config.Sources.Around.Enabled {
		sources = append(sources, around.New(buf, config.aroundConfig()))
	}
	if config.Sources.Snippets.Enabled && len(config.Sources.Snippets.Paths) > 0 {
		src, err := snippets.New(config.snippetsConfig())
		if err != nil {
			return nil, errors.Wrap(err, "snippets source")
		}
		sources = append(sources, src)
	}
	if config.Sources.LLM.Enabled {
		sources = append(sources, llm.New(buf, config.llmConfig()))
	}
	for _, rc := range config.remoteConfigs() {
		if rc.URL == "" {
			logger.Warn("remote source %s has no url, skipping", rc.Name)
			continue
		}
		sources = append(sources, remote.New(buf, rc))
	}

	for _, src := range sources {
		logger.Info("source %s enabled (priority %d)", src.Name(), src.Priority())
	}
	return sources, nil
}

func (d *Daemon) Start() error {
	d.writePidFile()
	defer d.removePidFile()

	if err := d.setupSocket(); err != nil {
		return err
	}
	defer d.cleanup()

	logger.Info("daemon listening on socket: %s", d.socketPath)

	d.engine.Start(d.ctx)
	d.setupShutdownHandling()

	go d.acceptConnections()
	go d.monitorIdleShutdown()

	<-d.ctx.Done()
	logger.Info("daemon shutting down...")
	return nil
}

func (d *Daemon) setupSocket() error {
	os.Remove(d.socketPath)

	listener, err := net.Listen("unix", d.socketPath)
	if err != nil {
		return errors.Wrapf(err, "listen on %s", d.socketPath)
	}
	d.listener = listener
	return nil
}

func (d *Daemon) setupShutdownHandling() {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		logger.Info("received shutdown signal")
		d.Stop()
	}()
}

func (d *Daemon) acceptConnections() {
	for {
		conn, err := d.listener.Accept()
		if err != nil {
			select {
			case <-d.ctx.Done():
				return
			default:
				logger.Error("error accepting connection: %v", err)
				continue
			}
		}

		atomic.AddInt64(&d.clientCount, 1)
		logger.Info("new client connected, total clients: %d", atomic.LoadInt64(&d.clientCount))
		go d.handleConnection(conn)
	}
}

func (d *Daemon) handleConnection(conn net.Conn) {
	defer conn.Close()
	defer func() {
		atomic.AddInt64(&d.clientCount, -1)
		logger.Info("client disconnected, remaining clients: %d", atomic.LoadInt64(&d.clientCount))
	}()

	n, err := nvim.New(conn, conn, conn, log.Printf)
	if err != nil {
		logger.Error("error creating nvim client: %v", err)
		return
	}

	// The most recent connection owns the buffer, the popup and notifications
	d.buffer.SetClient(n)
	d.engine.SetNvim(n)

	select {
	case <-d.ctx.Done():
		return
	default:
		if err := n.Serve(); err != nil && err != io.EOF {
			logger.Error("error serving connection: %v", err)
		}
	}
}

func (d *Daemon) monitorIdleShutdown() {
	// In debug mode, shut down immediately when no clients are connected
	if d.config.DebugImmediateShutdown {
		ticker := time.NewTicker(1 * time.Second)
		defer ticker.Stop()

		for {
			select {
			case <-d.ctx.Done():
				return
			case <-ticker.C:
				if atomic.LoadInt64(&d.clientCount) == 0 {
					logger.Info("debug mode: no clients connected, shutting down daemon immediately")
					d.Stop()
					return
				}
			}
		}
	}

	idleTimer := time.NewTimer(30 * time.Second)
	defer idleTimer.Stop()

	for {
		select {
		case <-d.ctx.Done():
			return
		case <-idleTimer.C:
			if atomic.LoadInt64(&d.clientCount) == 0 {
				logger.Info("no clients connected for timeout period, shutting down daemon")
				d.Stop()
				return
			}
		}

		if atomic.LoadInt64(&d.clientCount) == 0 {
			idleTimer.Reset(5 * time.Second)
		} else {
			idleTimer.Reset(30 * time.Second)
		}
	}
}

func (d *Daemon) Stop() {
	d.engine.Stop()
	if d.listener != nil {
		d.listener.Close()
	}
	d.cancel()
}

func (d *Daemon) cleanup() {
	os.Remove(d.socketPath)
}

func (d *Daemon) writePidFile() {
	pid := os.Getpid()
	if err := os.WriteFile(d.pidPath, []byte(strconv.Itoa(pid)), 0644); err != nil {
		logger.Warn("could not write PID file: %v", err)
	}
	logger.Info("server started with PID %d", pid)
}

func (d *Daemon) removePidFile() {
	if err := os.Remove(d.pidPath); err != nil && !os.IsNotExist(err) {
		logger.Warn("could not remove PID file: %v", err)
	}
}
