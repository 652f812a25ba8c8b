package daemon

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"runtime/debug"
	"sync"
	"syscall"
	"time"

	"github.com/bl791/chat-logger/internal/config"
	"github.com/bl791/chat-logger/internal/logger"
	"github.com/bl791/chat-logger/internal/observability"
	"github.com/bl791/chat-logger/internal/tracing"
	"github.com/bl791/chat-logger/pkg/events"
	"github.com/bl791/chat-logger/pkg/gateway"
	"github.com/bl791/chat-logger/pkg/session"
	"github.com/robfig/cron/v3"
)

const (
	gatewayShutdownTimeout = 5 * time.Second
	statusCallTimeout      = 2 * time.Second
)

// Daemon runs the chat logger service: event ingress, serialized delivery to
// the session manager and the periodic status report.
type Daemon struct {
	config *config.Config
	logger *logger.Logger

	sessionMgr    *session.SessionManager
	dispatcher    *events.Dispatcher
	gatewayServer *gateway.Server
	scheduler     *cron.Cron
	lifecycle     *LifecycleManager

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	startTime time.Time
	running   bool
	mu        sync.RWMutex

	tracingEnabled bool
}

// New creates a new daemon instance
func New(cfg *config.Config, log *logger.Logger) (*Daemon, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if log == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	observability.EnsureRegistered()

	ctx, cancel := context.WithCancel(context.Background())
	d := &Daemon{
		config: cfg,
		logger: log,
		ctx:    ctx,
		cancel: cancel,
	}

	if cfg.Tracing.Enabled {
		settings := tracing.Settings{
			ServiceName:    cfg.Tracing.ServiceName,
			ServiceVersion: buildVersion(),
			SampleRatio:    cfg.Tracing.SampleRatio,
		}
		if err := tracing.Setup(settings); err != nil {
			log.Warn().Err(err).Msg("Failed to initialize tracing, continuing without distributed tracing")
		} else {
			d.tracingEnabled = true
			log.Info().Str("service", cfg.Tracing.ServiceName).Msg("Tracing initialized")
		}
	}

	if err := d.initialize(); err != nil {
		cancel()
		if d.tracingEnabled {
			_ = tracing.Shutdown(context.Background())
			d.tracingEnabled = false
		}
		return nil, err
	}

	d.lifecycle = NewLifecycleManager(d)

	return d, nil
}

func (d *Daemon) initialize() error {
	sessionMgr, err := session.New(session.Config{
		RootDir: d.config.Chatlog.RootDir,
		Pretty:  d.config.Chatlog.Pretty,
		Logger:  d.logger.GetZerolog(),
	})
	if err != nil {
		return fmt.Errorf("failed to create session manager: %w", err)
	}
	d.sessionMgr = sessionMgr

	d.dispatcher = events.NewDispatcher(sessionMgr, events.DispatcherConfig{
		QueueSize:           d.config.Gateway.QueueSize,
		FallbackDestination: d.config.Chatlog.FallbackDestination,
		Logger:              d.logger.GetZerolog(),
	})

	if d.config.Gateway.Enabled {
		server, err := gateway.NewServer(gateway.Config{
			Host:                d.config.Gateway.Host,
			Port:                d.config.Gateway.Port,
			SharedSecret:        d.config.Gateway.SharedSecret,
			RateLimit:           d.config.Gateway.RateLimit,
			FallbackDestination: d.config.Chatlog.FallbackDestination,
			Publisher:           d.dispatcher,
			Logger:              d.logger.GetZerolog(),
		})
		if err != nil {
			return fmt.Errorf("failed to create gateway server: %w", err)
		}
		d.gatewayServer = server
	}

	d.scheduler = cron.New()
	if d.config.Status.Schedule != "" {
		if _, err := d.scheduler.AddFunc(d.config.Status.Schedule, d.reportStatus); err != nil {
			return fmt.Errorf("failed to schedule status report: %w", err)
		}
	}

	return nil
}

// Start starts the daemon
func (d *Daemon) Start() error {
	d.mu.Lock()
	if d.running {
		d.mu.Unlock()
		return fmt.Errorf("daemon is already running")
	}
	d.running = true
	d.startTime = time.Now()
	d.mu.Unlock()

	traceID := tracing.NewTraceID()
	logger := d.logger.GetZerolog().With().Str("trace_id", traceID).Logger()
	logger.Info().Str("dir", d.sessionMgr.RootDir()).Msg("Starting chat logger daemon")

	if err := d.lifecycle.Start(); err != nil {
		d.setStopped()
		return fmt.Errorf("failed to start lifecycle manager: %w", err)
	}

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		d.dispatcher.Run(d.ctx)
	}()

	if d.gatewayServer != nil {
		if err := d.gatewayServer.Start(); err != nil {
			d.cancel()
			d.wg.Wait()
			_ = d.lifecycle.Stop()
			d.setStopped()
			return fmt.Errorf("failed to start gateway server: %w", err)
		}
		logger.Info().Str("addr", d.gatewayServer.Addr()).Msg("Gateway server started")
	}

	d.scheduler.Start()
	if d.config.Status.Schedule != "" {
		logger.Info().Str("schedule", d.config.Status.Schedule).Msg("Status report scheduled")
	}

	logger.Info().Msg("Daemon started")

	return nil
}

// Stop stops the daemon. Queued events are delivered and the active session
// is flushed before it returns.
func (d *Daemon) Stop() error {
	d.mu.Lock()
	if !d.running {
		d.mu.Unlock()
		return fmt.Errorf("daemon is not running")
	}
	d.running = false
	d.mu.Unlock()

	traceID := tracing.NewTraceID()
	logger := d.logger.GetZerolog().With().Str("trace_id", traceID).Logger()
	logger.Info().Msg("Stopping chat logger daemon")

	// Stop ingress first so nothing new is queued behind the drain.
	if d.gatewayServer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), gatewayShutdownTimeout)
		if err := d.gatewayServer.Stop(ctx); err != nil {
			logger.Error().Err(err).Msg("Failed to stop gateway server")
		}
		cancel()
	}

	<-d.scheduler.Stop().Done()

	d.cancel()
	d.wg.Wait()

	var closeErr error
	if err := d.sessionMgr.Close(); err != nil {
		logger.Error().Err(err).Msg("Failed to close session manager")
		closeErr = fmt.Errorf("failed to close session manager: %w", err)
	}

	if d.tracingEnabled {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := tracing.Shutdown(shutdownCtx); err != nil {
			logger.Error().Err(err).Msg("Failed to shutdown tracing")
		}
		cancel()
		d.tracingEnabled = false
	}

	if err := d.lifecycle.Stop(); err != nil {
		logger.Error().Err(err).Msg("Failed to stop lifecycle manager")
	}

	logger.Info().Msg("Daemon stopped")

	return closeErr
}

func (d *Daemon) setStopped() {
	d.mu.Lock()
	d.running = false
	d.mu.Unlock()
}

// Status returns the daemon status
func (d *Daemon) Status() Status {
	d.mu.RLock()
	defer d.mu.RUnlock()

	status := Status{
		Running: d.running,
	}

	if d.running {
		status.Uptime = time.Since(d.startTime)
		status.StartTime = d.startTime
		status.Pending = d.dispatcher.Pending()
		if d.gatewayServer != nil {
			status.GatewayAddr = d.gatewayServer.Addr()
		}
	}

	return status
}

// Wait blocks until SIGINT or SIGTERM, then stops the daemon
func (d *Daemon) Wait() {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	sig := <-sigChan
	d.logger.Info().Str("signal", sig.String()).Msg("Received signal")

	if err := d.Stop(); err != nil {
		d.logger.Error().Err(err).Msg("Failed to stop daemon")
	}
}

// reportStatus logs the active session. It reads session state on the
// dispatcher loop since the session manager is not safe for concurrent use.
func (d *Daemon) reportStatus() {
	ctx, cancel := context.WithTimeout(d.ctx, statusCallTimeout)
	defer cancel()

	var (
		snapshot session.Snapshot
		active   bool
	)
	err := d.dispatcher.Call(ctx, func() {
		snapshot, active = d.sessionMgr.Active()
	})
	if err != nil {
		d.logger.Warn().Err(err).Msg("Status report skipped")
		return
	}

	observability.RecordStatusReport()

	event := d.logger.Info().Int("pending", d.dispatcher.Pending())
	if d.gatewayServer != nil {
		event = event.Int("clients", len(d.gatewayServer.GetConnectedClients()))
	}
	if !active {
		event.Msg("No active chat session")
		return
	}
	event.
		Str("destination", snapshot.Destination).
		Str("session_id", snapshot.ID).
		Int("messages", snapshot.MessageCount).
		Dur("age", time.Since(snapshot.StartedAt)).
		Msg("Chat session active")
}

// Status represents daemon status
type Status struct {
	Running     bool
	Uptime      time.Duration
	StartTime   time.Time
	GatewayAddr string
	Pending     int
}

// buildVersion reports the main module version embedded by the Go toolchain.
func buildVersion() string {
	if info, ok := debug.ReadBuildInfo(); ok {
		return info.Main.Version
	}
	return ""
}
