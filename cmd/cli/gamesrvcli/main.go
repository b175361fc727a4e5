package main

import (
	"context"
	"fmt"
	"os"
	"time"

	sprintfLogging "github.com/core-tools/hsu-core/pkg/logging/sprintf"

	coreControl "github.com/core-tools/hsu-core/pkg/control"
	coreDomain "github.com/core-tools/hsu-core/pkg/domain"
	coreLogging "github.com/core-tools/hsu-core/pkg/logging"

	"github.com/core-tools/hsu-gamesrv/pkg/control"
	"github.com/core-tools/hsu-gamesrv/pkg/domain"
	"github.com/core-tools/hsu-gamesrv/pkg/logging"

	flags "github.com/jessevdk/go-flags"
)

type globalOptions struct {
	ServerPath string `long:"server" description:"path to the gamesrvd executable to launch"`
	AttachPort int    `long:"port" description:"control port of a running gamesrvd"`
	Timeout    int    `long:"timeout" default:"60" description:"seconds to wait for the operation"`
}

func logPrefix(module string) string {
	return fmt.Sprintf("module: %s-client , ", module)
}

func main() {
	logger := sprintfLogging.NewStdSprintfLogger()

	coreLogger := coreLogging.NewLogger(
		logPrefix("hsu-core"), coreLogging.LogFuncs{
			Debugf: logger.Debugf,
			Infof:  logger.Infof,
			Warnf:  logger.Warnf,
			Errorf: logger.Errorf,
		})
	gamesrvLogger := logging.NewLogger(
		logPrefix("hsu-gamesrv"), logging.LogFuncs{
			Debugf: logger.Debugf,
			Infof:  logger.Infof,
			Warnf:  logger.Warnf,
			Errorf: logger.Errorf,
		})

	var opts globalOptions
	app := &application{out: os.Stdout}
	app.connect = func(ctx context.Context) (domain.Contract, error) {
		return connect(ctx, opts, coreLogger, gamesrvLogger)
	}
	app.timeout = func() time.Duration {
		return time.Duration(opts.Timeout) * time.Second
	}

	parser := flags.NewParser(&opts, flags.HelpFlag)
	if err := app.register(parser); err != nil {
		fmt.Printf("Failed to set up commands: %v\n", err)
		os.Exit(1)
	}

	if _, err := parser.ParseArgs(os.Args[1:]); err != nil {
		if flagsErr, ok := err.(*flags.Error); ok && flagsErr.Type == flags.ErrHelp {
			fmt.Println(err)
			return
		}
		fmt.Printf("Failed: %v\n", err)
		os.Exit(1)
	}
}

func connect(ctx context.Context, opts globalOptions, coreLogger coreLogging.Logger, logger logging.Logger) (domain.Contract, error) {
	if opts.ServerPath == "" && opts.AttachPort == 0 {
		return nil, fmt.Errorf("server path or attach port is required")
	}

	coreConnectionOptions := coreControl.ConnectionOptions{
		ServerPath: opts.ServerPath,
		AttachPort: opts.AttachPort,
	}
	coreConnection, err := coreControl.NewConnection(coreConnectionOptions, coreLogger)
	if err != nil {
		return nil, fmt.Errorf("failed to create core connection: %w", err)
	}

	coreClientGateway := coreControl.NewGRPCClientGateway(coreConnection.GRPC(), coreLogger)

	retryPingOptions := coreDomain.RetryPingOptions{
		RetryAttempts: 10,
		RetryInterval: 1 * time.Second,
	}
	if err := coreDomain.RetryPing(ctx, coreClientGateway, retryPingOptions, coreLogger); err != nil {
		return nil, fmt.Errorf("failed to ping gamesrvd: %w", err)
	}

	return control.NewGRPCClientGateway(coreConnection.GRPC(), logger), nil
}
