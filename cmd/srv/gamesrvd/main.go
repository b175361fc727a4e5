package main

import (
	"fmt"
	"os"
	"time"

	coreLogging "github.com/core-tools/hsu-core/pkg/logging"

	"github.com/core-tools/hsu-gamesrv/pkg/config"
	"github.com/core-tools/hsu-gamesrv/pkg/daemon"
	"github.com/core-tools/hsu-gamesrv/pkg/logging"

	flags "github.com/jessevdk/go-flags"
)

type flagOptions struct {
	Config      string `long:"config" short:"c" description:"path to the YAML configuration file"`
	Port        int    `long:"port" description:"control port to listen on, overrides the configuration"`
	RunDuration int    `long:"run-duration" description:"seconds to run before stopping, 0 runs until signalled"`
	LogLevel    string `long:"log-level" description:"overrides logging.level"`
}

func logPrefix(module string) string {
	return fmt.Sprintf("module: %s-server , ", module)
}

func main() {
	var opts flagOptions
	var argv []string = os.Args[1:]
	var parser = flags.NewParser(&opts, flags.HelpFlag)
	var err error
	_, err = parser.ParseArgs(argv)
	if err != nil {
		fmt.Printf("Command line flags parsing failed: %v", err)
		os.Exit(1)
	}

	zapConfig := logging.DefaultZapConfig()
	if opts.Config != "" {
		// logging settings are needed before the logger that reports loading exists
		cfg, err := config.LoadConfigFromFile(opts.Config)
		if err != nil {
			fmt.Printf("Failed to load configuration: %v\n", err)
			os.Exit(1)
		}
		zapConfig = cfg.Logging
	}
	if opts.LogLevel != "" {
		zapConfig.Level = opts.LogLevel
	}

	zapLogger, closeLog, err := logging.NewZapLogger(zapConfig)
	if err != nil {
		fmt.Printf("Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer closeLog()
	defer zapLogger.Sync()

	funcs := logging.ZapLogFuncs(zapLogger)
	logger := logging.NewLogger("", funcs)
	sugar := zapLogger.Sugar()

	logger.Infof("opts: %+v", opts)
	logger.Infof("Starting...")

	coreLogger := coreLogging.NewLogger(
		logPrefix("hsu-core"), coreLogging.LogFuncs{
			Debugf: sugar.Debugf,
			Infof:  sugar.Infof,
			Warnf:  sugar.Warnf,
			Errorf: sugar.Errorf,
		})
	gamesrvLogger := logging.NewLogger(logPrefix("hsu-gamesrv"), funcs)

	runOptions := daemon.RunOptions{
		ConfigFile:  opts.Config,
		Port:        opts.Port,
		RunDuration: time.Duration(opts.RunDuration) * time.Second,
	}
	if err := daemon.Run(runOptions, coreLogger, gamesrvLogger); err != nil {
		logger.Errorf("Daemon failed: %v", err)
		zapLogger.Sync()
		os.Exit(1)
	}
}
