package compat

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/core-tools/hsu-gamesrv/pkg/errors"
	"github.com/core-tools/hsu-gamesrv/pkg/logging"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRequiredJavaMajor(t *testing.T) {
	tests := []struct {
		version  string
		expected int
	}{
		{"1.8.9", 8},
		{"1.12.2", 8},
		{"1.16.5", 8},
		{"1.17", 16},
		{"1.17.1", 16},
		{"1.18.2", 17},
		{"1.19.4", 17},
		{"1.20.4", 17},
		{"1.20.5", 21},
		{"1.20.6", 21},
		{"1.21.0", 21},
		{"1.21", 21},
		{"2.0.0", 21},
		{"1.20.5.1", 21},
		{"1.20.5-pre1", 21},
		{"1.20.4-rc1", 17},
		{"1.21-rc1", 21},
		{"1.17-pre1", 16},
		{"1", 8},
		{"", 8},
	}

	for _, tt := range tests {
		t.Run(tt.version, func(t *testing.T) {
			assert.Equal(t, tt.expected, RequiredJavaMajor(tt.version))
		})
	}
}

func TestParseJavaMajor(t *testing.T) {
	tests := []struct {
		raw   string
		major int
		ok    bool
	}{
		{"1.8.0_392", 8, true},
		{"1.7.0", 7, true},
		{"21.0.2", 21, true},
		{"17", 17, true},
		{"17-ea", 17, true},
		{"", 0, false},
		{"abc", 0, false},
		{"1.", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			major, ok := ParseJavaMajor(tt.raw)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.major, major)
		})
	}
}

func TestParseVersionOutput(t *testing.T) {
	openjdk := "openjdk version \"21.0.2\" 2024-01-16\nOpenJDK Runtime Environment (build 21.0.2+13-58)\n"
	legacy := "java version \"1.8.0_392\"\nJava(TM) SE Runtime Environment\n"

	major, ok := ParseVersionOutput(openjdk)
	assert.True(t, ok)
	assert.Equal(t, 21, major)

	major, ok = ParseVersionOutput(legacy)
	assert.True(t, ok)
	assert.Equal(t, 8, major)

	_, ok = ParseVersionOutput("command not found")
	assert.False(t, ok)
}

func writeFakeJava(t *testing.T, banner string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("fake runtime is a shell script")
	}
	path := filepath.Join(t.TempDir(), "java")
	script := "#!/bin/sh\necho '" + banner + "' >&2\n"
	require.NoError(t, os.WriteFile(path, []byte(script), 0o755))
	return path
}

func TestChecker_AssertCompatible(t *testing.T) {
	ctx := context.Background()

	t.Run("new enough", func(t *testing.T) {
		checker := NewChecker(writeFakeJava(t, `openjdk version "21.0.2" 2024-01-16`), logging.Nop())
		assert.NoError(t, checker.AssertCompatible(ctx, "1.21.0"))
	})

	t.Run("too old", func(t *testing.T) {
		checker := NewChecker(writeFakeJava(t, `openjdk version "17.0.9" 2023-10-17`), logging.Nop())
		err := checker.AssertCompatible(ctx, "1.20.5")
		require.Error(t, err)
		assert.True(t, errors.IsIncompatibleRuntimeError(err))
		assert.Contains(t, err.Error(), "Java 21+ is required for Minecraft 1.20.5. Detected Java 17")
	})

	t.Run("legacy numbering", func(t *testing.T) {
		checker := NewChecker(writeFakeJava(t, `java version "1.8.0_392"`), logging.Nop())
		assert.NoError(t, checker.AssertCompatible(ctx, "1.12.2"))
		assert.Error(t, checker.AssertCompatible(ctx, "1.17.1"))
	})

	t.Run("not found", func(t *testing.T) {
		checker := NewChecker(filepath.Join(t.TempDir(), "no-java"), logging.Nop())
		err := checker.AssertCompatible(ctx, "1.20.4")
		require.Error(t, err)
		assert.True(t, errors.IsIncompatibleRuntimeError(err))
		assert.Contains(t, err.Error(), "Java was not found")
	})

	t.Run("no version token", func(t *testing.T) {
		checker := NewChecker(writeFakeJava(t, "hello"), logging.Nop())
		err := checker.AssertCompatible(ctx, "1.20.4")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "Java was not found")
	})
}

func TestNewChecker_DefaultsToJavaOnPath(t *testing.T) {
	assert.Equal(t, "java", NewChecker("", logging.Nop()).JavaPath())
}
