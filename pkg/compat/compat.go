// Package compat gates server starts on the locally installed Java runtime.
package compat

import (
	"context"
	"fmt"
	"os/exec"
	"regexp"
	"strconv"
	"strings"

	"github.com/core-tools/hsu-gamesrv/pkg/errors"
	"github.com/core-tools/hsu-gamesrv/pkg/logging"
)

var versionPattern = regexp.MustCompile(`(?i)version\s+"([^"]+)"`)

// RequiredJavaMajor maps a game version to the minimum Java major version.
// The first matching rule wins. Only the first three components count, each
// by its leading digits, so "1.20.5-pre1" is 1.20.5; missing or non-numeric
// components count as 0.
func RequiredJavaMajor(gameVersion string) int {
	var parts [3]int
	for i, part := range strings.Split(gameVersion, ".") {
		if i == len(parts) {
			break
		}
		parts[i] = leadingInt(strings.TrimSpace(part))
	}
	major, minor, patch := parts[0], parts[1], parts[2]

	switch {
	case major > 1:
		return 21
	case minor >= 21:
		return 21
	case minor == 20 && patch >= 5:
		return 21
	case minor >= 18:
		return 17
	case minor == 17:
		return 16
	default:
		return 8
	}
}

func leadingInt(s string) int {
	end := 0
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
	}
	n, _ := strconv.Atoi(s[:end])
	return n
}

// ParseJavaMajor extracts the major version from a quoted version token.
// "1.8.0_392" is legacy numbering and yields 8; "21.0.2" yields 21.
func ParseJavaMajor(raw string) (int, bool) {
	clean := strings.TrimSpace(raw)
	if clean == "" {
		return 0, false
	}

	parts := strings.Split(clean, ".")
	component := parts[0]
	if strings.HasPrefix(clean, "1.") {
		component = parts[1]
	}

	// "17-ea" and "9+181" style tokens
	if idx := strings.IndexAny(component, "-+_"); idx >= 0 {
		component = component[:idx]
	}

	major, err := strconv.Atoi(component)
	if err != nil {
		return 0, false
	}
	return major, true
}

// ParseVersionOutput finds `version "..."` in the output of `java -version`
func ParseVersionOutput(output string) (int, bool) {
	match := versionPattern.FindStringSubmatch(output)
	if match == nil {
		return 0, false
	}
	return ParseJavaMajor(match[1])
}

// Checker detects the installed runtime by running it with -version.
type Checker struct {
	javaPath string
	logger   logging.Logger
}

func NewChecker(javaPath string, logger logging.Logger) *Checker {
	if javaPath == "" {
		javaPath = "java"
	}
	return &Checker{
		javaPath: javaPath,
		logger:   logger,
	}
}

// JavaPath returns the runtime binary used for detection and for spawning servers
func (c *Checker) JavaPath() string {
	return c.javaPath
}

// DetectJavaMajor returns false when the runtime cannot be executed or its
// output carries no version token. A non-zero exit with a parsable banner
// still counts as detected.
func (c *Checker) DetectJavaMajor(ctx context.Context) (int, bool) {
	output, err := exec.CommandContext(ctx, c.javaPath, "-version").CombinedOutput()
	if err != nil {
		var exitErr *exec.ExitError
		if !errors.As(err, &exitErr) {
			c.logger.Debugf("Java runtime not executable, path: %s, error: %v", c.javaPath, err)
			return 0, false
		}
	}

	major, ok := ParseVersionOutput(string(output))
	if !ok {
		c.logger.Debugf("No version token in java -version output, path: %s", c.javaPath)
		return 0, false
	}

	c.logger.Debugf("Detected Java %d, path: %s", major, c.javaPath)
	return major, true
}

// AssertCompatible fails with an incompatible runtime error when Java is
// missing or older than the game version requires.
func (c *Checker) AssertCompatible(ctx context.Context, gameVersion string) error {
	required := RequiredJavaMajor(gameVersion)

	detected, ok := c.DetectJavaMajor(ctx)
	if !ok {
		return errors.NewIncompatibleRuntimeError(
			fmt.Sprintf("Java %d+ is required for Minecraft %s, but Java was not found (%s)", required, gameVersion, c.javaPath),
			nil).
			WithContext("required_java", required)
	}

	if detected < required {
		return errors.NewIncompatibleRuntimeError(
			fmt.Sprintf("Java %d+ is required for Minecraft %s. Detected Java %d", required, gameVersion, detected),
			nil).
			WithContext("required_java", required).
			WithContext("detected_java", detected)
	}

	return nil
}
