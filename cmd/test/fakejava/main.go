// fakejava stands in for the java binary when exercising gamesrvd by hand.
// Point runtime.java_path at it; any jar path is accepted.
package main

import (
	"bufio"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"strings"
	"syscall"
	"time"

	flags "github.com/jessevdk/go-flags"
)

// JVM style arguments are not flags go-flags understands, so settings come
// from the environment and unknown arguments are ignored
type flagOptions struct {
	JavaVersion string `long:"fake-java-version" env:"FAKEJAVA_VERSION" default:"21.0.2" description:"version reported by -version"`
	CrashAfter  int    `long:"fake-crash-after" env:"FAKEJAVA_CRASH_AFTER" description:"seconds until a simulated crash, 0 never crashes"`
	ExitCode    int    `long:"fake-exit-code" env:"FAKEJAVA_EXIT_CODE" default:"1" description:"exit code of a simulated crash"`
}

func main() {
	var opts flagOptions
	var parser = flags.NewParser(&opts, flags.HelpFlag|flags.IgnoreUnknown)
	if _, err := parser.ParseArgs(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "Command line flags parsing failed: %v\n", err)
		os.Exit(1)
	}

	for _, arg := range os.Args[1:] {
		if arg == "-version" {
			printBanner(opts.JavaVersion)
			return
		}
	}

	fmt.Printf("[Server thread/INFO]: Starting fake server, args: %s\n", strings.Join(os.Args[1:], " "))

	sig := make(chan os.Signal, 1)
	if runtime.GOOS == "windows" {
		signal.Notify(sig) // Unix signals not implemented on Windows
	} else {
		signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	}

	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
	}()

	var crash <-chan time.Time
	if opts.CrashAfter > 0 {
		crash = time.After(time.Duration(opts.CrashAfter) * time.Second)
	}

	fmt.Printf("[Server thread/INFO]: Done (0.1s)! For help, type \"help\"\n")

	for {
		select {
		case line, ok := <-lines:
			if !ok {
				fmt.Printf("[Server thread/INFO]: Console closed, stopping\n")
				return
			}
			if handle(strings.TrimSpace(line)) {
				return
			}
		case <-crash:
			fmt.Fprintf(os.Stderr, "[Server thread/ERROR]: Simulated crash\n")
			os.Exit(opts.ExitCode)
		case receivedSignal := <-sig:
			fmt.Printf("[Server thread/INFO]: Received signal: %v\n", receivedSignal)
			return
		}
	}
}

func printBanner(version string) {
	fmt.Fprintf(os.Stderr, "openjdk version \"%s\" 2024-01-16\n", version)
	fmt.Fprintf(os.Stderr, "OpenJDK Runtime Environment (build %s)\n", version)
	fmt.Fprintf(os.Stderr, "OpenJDK 64-Bit Server VM (build %s, mixed mode)\n", version)
}

// handle answers one console line and reports whether the server stops
func handle(command string) bool {
	switch {
	case command == "":
		return false
	case command == "stop":
		fmt.Printf("[Server thread/INFO]: Stopping the server\n")
		return true
	case command == "list":
		fmt.Printf("[Server thread/INFO]: There are 0 of a max of 20 players online:\n")
	case strings.HasPrefix(command, "say "):
		fmt.Printf("[Server thread/INFO]: [Server] %s\n", strings.TrimPrefix(command, "say "))
	default:
		fmt.Printf("[Server thread/INFO]: Unknown or incomplete command: %s\n", command)
	}
	return false
}
