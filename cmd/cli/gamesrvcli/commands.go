package main

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/core-tools/hsu-gamesrv/pkg/config"
	"github.com/core-tools/hsu-gamesrv/pkg/domain"
	"github.com/core-tools/hsu-gamesrv/pkg/errors"
	"github.com/core-tools/hsu-gamesrv/pkg/supervisor"

	flags "github.com/jessevdk/go-flags"
)

// shutdownCommand is relayed as a Stop rather than as console input so the
// daemon tracks the server going away
const shutdownCommand = "stop"

type application struct {
	connect func(ctx context.Context) (domain.Contract, error)
	timeout func() time.Duration
	out     io.Writer
}

func (app *application) register(parser *flags.Parser) error {
	commands := []struct {
		name, short string
		data        interface{}
	}{
		{"provision", "Write the server directory and files", &provisionCommand{app: app}},
		{"start", "Start a server", &startCommand{app: app}},
		{"stop", "Stop a server", &stopCommand{app: app}},
		{"status", "Show the runtime status of a server", &statusCommand{app: app}},
		{"command", "Send a console command to a running server", &consoleCommand{app: app}},
		{"logs", "Show the last lines of a server log", &logsCommand{app: app}},
		{"props", "Show or update server.properties", &propsCommand{app: app}},
	}
	for _, c := range commands {
		if _, err := parser.AddCommand(c.name, c.short, "", c.data); err != nil {
			return err
		}
	}
	return nil
}

// with connects and runs fn under the operation timeout
func (app *application) with(fn func(ctx context.Context, gw domain.Contract) error) error {
	ctx := context.Background()
	if timeout := app.timeout(); timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	gw, err := app.connect(ctx)
	if err != nil {
		return err
	}
	return fn(ctx, gw)
}

func (app *application) printf(format string, args ...interface{}) {
	fmt.Fprintf(app.out, format, args...)
}

func (app *application) printInfo(info domain.RuntimeInfo) {
	pid := "-"
	if info.PID != nil {
		pid = fmt.Sprintf("%d", *info.PID)
	}
	app.printf("state:      %s\n", info.State)
	app.printf("running:    %t\n", info.Running)
	app.printf("pid:        %s\n", pid)
	app.printf("server dir: %s\n", info.ServerDir)
	app.printf("log file:   %s\n", info.LogFile)
	app.printf("jar:        %s (exists: %t)\n", info.JarPath, info.JarExists)
	if info.LastError != "" {
		app.printf("last error: %s\n", info.LastError)
	}
}

type serverIDOption struct {
	ServerID string `long:"id" required:"true" description:"server ID"`
}

// definitionOptions describes a server either inline or by its entry in a
// daemon configuration file
type definitionOptions struct {
	ServerID    string `long:"id" required:"true" description:"server ID"`
	Config      string `long:"config" description:"read the definition from this gamesrvd configuration file"`
	Name        string `long:"name" description:"world name"`
	Kind        string `long:"kind" default:"vanilla" description:"distribution kind"`
	Version     string `long:"version" description:"game version"`
	MemoryMinMB int    `long:"min-memory" default:"1024" description:"initial heap in MB"`
	MemoryMaxMB int    `long:"max-memory" default:"2048" description:"maximum heap in MB"`
	Port        int    `long:"game-port" default:"25565" description:"game port"`
	EULA        bool   `long:"eula" description:"accept the EULA"`
}

func (o *definitionOptions) definition() (domain.ServerDefinition, error) {
	if o.Config != "" {
		cfg, err := config.LoadConfigFromFile(o.Config)
		if err != nil {
			return domain.ServerDefinition{}, err
		}
		for _, server := range cfg.Servers {
			if server.ID == o.ServerID {
				return server.ServerDefinition, nil
			}
		}
		return domain.ServerDefinition{}, errors.NewNotFoundError(
			fmt.Sprintf("server '%s' is not defined in %s", o.ServerID, o.Config), nil)
	}

	name := o.Name
	if name == "" {
		name = o.ServerID
	}
	def := domain.ServerDefinition{
		ID:           o.ServerID,
		Name:         name,
		Kind:         domain.Kind(o.Kind),
		Version:      o.Version,
		MemoryMinMB:  o.MemoryMinMB,
		MemoryMaxMB:  o.MemoryMaxMB,
		Port:         o.Port,
		EULAAccepted: o.EULA,
	}
	if err := domain.ValidateDefinition(def); err != nil {
		return domain.ServerDefinition{}, err
	}
	return def, nil
}

type provisionCommand struct {
	definitionOptions
	app *application
}

func (c *provisionCommand) Execute(args []string) error {
	def, err := c.definition()
	if err != nil {
		return err
	}
	return c.app.with(func(ctx context.Context, gw domain.Contract) error {
		info, err := gw.Provision(ctx, def)
		if err != nil {
			return err
		}
		c.app.printInfo(info)
		return nil
	})
}

type startCommand struct {
	definitionOptions
	app *application
}

func (c *startCommand) Execute(args []string) error {
	def, err := c.definition()
	if err != nil {
		return err
	}
	return c.app.with(func(ctx context.Context, gw domain.Contract) error {
		if err := gw.Start(ctx, def); err != nil {
			return err
		}
		info, err := gw.RuntimeInfo(ctx, def.ID)
		if err != nil {
			return err
		}
		c.app.printInfo(info)
		return nil
	})
}

type stopCommand struct {
	serverIDOption
	app *application
}

func (c *stopCommand) Execute(args []string) error {
	return c.app.with(func(ctx context.Context, gw domain.Contract) error {
		if err := gw.Stop(ctx, c.ServerID); err != nil {
			return err
		}
		c.app.printf("stopped %s\n", c.ServerID)
		return nil
	})
}

type statusCommand struct {
	serverIDOption
	app *application
}

func (c *statusCommand) Execute(args []string) error {
	return c.app.with(func(ctx context.Context, gw domain.Contract) error {
		info, err := gw.RuntimeInfo(ctx, c.ServerID)
		if err != nil {
			return err
		}
		c.app.printInfo(info)
		return nil
	})
}

type consoleCommand struct {
	serverIDOption
	Args struct {
		Text []string `positional-arg-name:"text" required:"1"`
	} `positional-args:"yes"`
	app *application
}

func (c *consoleCommand) Execute(args []string) error {
	text := strings.Join(c.Args.Text, " ")
	return c.app.with(func(ctx context.Context, gw domain.Contract) error {
		if normalized, err := supervisor.NormalizeCommand(text); err == nil && normalized == shutdownCommand {
			if err := gw.Stop(ctx, c.ServerID); err != nil {
				return err
			}
			c.app.printf("stopped %s\n", c.ServerID)
			return nil
		}
		if err := gw.SendCommand(ctx, c.ServerID, text); err != nil {
			return err
		}
		c.app.printf("sent to %s\n", c.ServerID)
		return nil
	})
}

type logsCommand struct {
	serverIDOption
	Lines int `long:"lines" short:"n" default:"200" description:"number of lines, 1..1000"`
	app   *application
}

func (c *logsCommand) Execute(args []string) error {
	return c.app.with(func(ctx context.Context, gw domain.Contract) error {
		lines, err := gw.TailLog(ctx, c.ServerID, c.Lines)
		if err != nil {
			return err
		}
		for _, line := range lines {
			c.app.printf("%s\n", line)
		}
		return nil
	})
}

type propsCommand struct {
	serverIDOption
	Set []string `long:"set" description:"key=value to update, may be repeated"`
	app *application
}

func (c *propsCommand) Execute(args []string) error {
	updates, err := parseAssignments(c.Set)
	if err != nil {
		return err
	}
	return c.app.with(func(ctx context.Context, gw domain.Contract) error {
		if len(updates) == 0 {
			props, err := gw.ReadProperties(ctx, c.ServerID)
			if err != nil {
				return err
			}
			c.printProperties(props)
			return nil
		}

		result, err := gw.UpdateProperties(ctx, c.ServerID, updates)
		if err != nil {
			return err
		}
		c.printProperties(result.Properties)
		if len(result.ChangedKeys) == 0 {
			c.app.printf("# no changes\n")
		} else {
			c.app.printf("# changed: %s\n", strings.Join(result.ChangedKeys, ", "))
		}
		return nil
	})
}

func (c *propsCommand) printProperties(props map[string]string) {
	keys := make([]string, 0, len(props))
	for key := range props {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		c.app.printf("%s=%s\n", key, props[key])
	}
}

func parseAssignments(assignments []string) (map[string]string, error) {
	updates := make(map[string]string, len(assignments))
	for _, assignment := range assignments {
		key, value, ok := strings.Cut(assignment, "=")
		if !ok || strings.TrimSpace(key) == "" {
			return nil, errors.NewValidationError(fmt.Sprintf("expected key=value, got '%s'", assignment), nil)
		}
		updates[strings.TrimSpace(key)] = strings.TrimSpace(value)
	}
	return updates, nil
}
