package domain

import (
	"regexp"
	"strings"

	"github.com/core-tools/hsu-gamesrv/pkg/errors"
)

// ValidateServerID validates server ID format; IDs become directory names.
func ValidateServerID(id string) error {
	if id == "" {
		return errors.NewValidationError("server ID cannot be empty", nil)
	}

	if len(id) > 64 {
		return errors.NewValidationError("server ID cannot exceed 64 characters", nil)
	}

	for _, char := range id {
		if !isValidIDChar(char) {
			return errors.NewValidationError("server ID contains invalid characters: only letters, numbers, hyphens, and underscores are allowed", nil).WithContext("server_id", id)
		}
	}

	return nil
}

// ValidatePort validates port number
func ValidatePort(port int) error {
	if port <= 0 || port > 65535 {
		return errors.NewValidationError("port must be between 1 and 65535", nil)
	}
	return nil
}

// ValidateKind fails for unknown distributions. Whether the kind can be
// downloaded automatically is decided by the artifact fetcher.
func ValidateKind(kind Kind) error {
	switch kind {
	case KindVanilla, KindPaper:
		return nil
	default:
		return errors.NewValidationError("unknown server kind: "+string(kind), nil)
	}
}

// releaseVersion is a numeric MAJOR[.MINOR[.PATCH]] release with an optional
// pre-release suffix such as "-rc1" or "-pre2"
var releaseVersion = regexp.MustCompile(`^[0-9]+(\.[0-9]+){0,2}(-[A-Za-z0-9.]+)?$`)

// ValidateVersion accepts release versions and their pre-release builds
func ValidateVersion(version string) error {
	if version == "" {
		return errors.NewValidationError("version cannot be empty", nil)
	}
	if !releaseVersion.MatchString(version) {
		return errors.NewValidationError("version must look like MAJOR.MINOR.PATCH[-PRERELEASE]: "+version, nil)
	}
	return nil
}

// ValidateMemory validates the heap bounds in megabytes
func ValidateMemory(minMB, maxMB int) error {
	if minMB <= 0 || maxMB <= 0 {
		return errors.NewValidationError("memory bounds must be positive", nil)
	}
	if minMB > maxMB {
		return errors.NewValidationError("minimum memory cannot exceed maximum memory", nil).
			WithContext("memory_min_mb", minMB).
			WithContext("memory_max_mb", maxMB)
	}
	return nil
}

// ValidateDefinition validates a full server definition
func ValidateDefinition(def ServerDefinition) error {
	if err := ValidateServerID(def.ID); err != nil {
		return err
	}
	if strings.TrimSpace(def.Name) == "" {
		return errors.NewValidationError("server name cannot be empty", nil).WithContext("server_id", def.ID)
	}
	if err := ValidateKind(def.Kind); err != nil {
		return err
	}
	if err := ValidateVersion(def.Version); err != nil {
		return err
	}
	if err := ValidateMemory(def.MemoryMinMB, def.MemoryMaxMB); err != nil {
		return err
	}
	if err := ValidatePort(def.Port); err != nil {
		return errors.NewValidationError("invalid server port", err).WithContext("server_id", def.ID)
	}
	return nil
}

func isValidIDChar(char rune) bool {
	return (char >= 'a' && char <= 'z') ||
		(char >= 'A' && char <= 'Z') ||
		(char >= '0' && char <= '9') ||
		char == '-' || char == '_'
}
