package daemon

import (
	"context"
	"os"
	"os/signal"
	"runtime"
	"sync"
	"syscall"
	"time"

	corelogging "github.com/core-tools/hsu-core/pkg/logging"

	"github.com/core-tools/hsu-gamesrv/pkg/config"
	"github.com/core-tools/hsu-gamesrv/pkg/errors"
	"github.com/core-tools/hsu-gamesrv/pkg/logging"
)

type RunOptions struct {
	ConfigFile  string        // defaults are used when empty
	Port        int           // overrides control.port when non-zero
	RunDuration time.Duration // runs until signalled when zero
}

// Run runs the daemon until a termination signal or the run duration
// elapses, then stops every server.
func Run(options RunOptions, coreLogger corelogging.Logger, logger logging.Logger) error {
	logger.Infof("Daemon runner starting...")

	ctx := context.Background()
	if options.RunDuration > 0 {
		logger.Infof("Using RUN DURATION of %v", options.RunDuration)
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, options.RunDuration)
		defer cancel()
	}

	cfg, err := LoadConfig(options.ConfigFile, options.Port, logger)
	if err != nil {
		return err
	}

	logger.Infof("Runtime root: %s, control port: %d, servers: %d, autostart: %d",
		cfg.Runtime.RootDir, cfg.Control.Port, len(cfg.Servers), len(cfg.Autostart()))

	d, err := NewDaemon(cfg, coreLogger, logger)
	if err != nil {
		return errors.NewInternalError("failed to create daemon", err)
	}

	d.Start(ctx)

	logger.Infof("Enabling signal handling...")

	sig := make(chan os.Signal, 1)
	if runtime.GOOS == "windows" {
		signal.Notify(sig) // Unix signals not implemented on Windows
	} else {
		signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	}
	defer signal.Stop(sig)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		started := d.Autostart(ctx)
		logger.Infof("Autostart finished, started: %d", started)
	}()

	select {
	case receivedSignal := <-sig:
		logger.Infof("Daemon runner received signal: %v", receivedSignal)
	case <-ctx.Done():
		logger.Infof("Daemon runner timed out")
	}

	logger.Infof("Waiting for autostart to finish...")
	wg.Wait()

	// a fresh context so shutdown is not cut short by the run duration
	d.Stop(context.Background())

	logger.Infof("Daemon runner stopped")
	return nil
}

// LoadConfig loads configFile, or the defaults when it is empty, and applies
// a non-zero port override.
func LoadConfig(configFile string, port int, logger logging.Logger) (*config.Config, error) {
	var cfg *config.Config
	if configFile == "" {
		logger.Infof("No configuration file given, using defaults")
		cfg = config.Default()
	} else {
		logger.Infof("Using CONFIGURATION FILE: %s", configFile)
		loaded, err := config.LoadConfigFromFile(configFile)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	if port != 0 {
		cfg.Control.Port = port
	}
	if err := config.ValidateConfig(cfg); err != nil {
		return nil, errors.NewValidationError("configuration validation failed", err)
	}
	return cfg, nil
}
