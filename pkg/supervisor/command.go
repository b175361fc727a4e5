package supervisor

import (
	"context"
	"regexp"
	"strings"

	"github.com/core-tools/hsu-gamesrv/pkg/domain"
	"github.com/core-tools/hsu-gamesrv/pkg/errors"
)

var lineBreaks = regexp.MustCompile(`[\r\n]+`)

// NormalizeCommand collapses embedded line breaks to spaces and trims the
// result. An empty result is a validation error.
func NormalizeCommand(command string) (string, error) {
	normalized := strings.TrimSpace(lineBreaks.ReplaceAllString(command, " "))
	if normalized == "" {
		return "", errors.NewValidationError("command is required", nil)
	}
	return normalized, nil
}

// SendCommand writes one console line to the server's stdin. Every command,
// "stop" included, is relayed verbatim.
func (s *Supervisor) SendCommand(ctx context.Context, serverID string, command string) error {
	if err := domain.ValidateServerID(serverID); err != nil {
		return err
	}

	handle, ok := s.registry.Lookup(serverID)
	if !ok || handle.Exited() || !handle.Writable() {
		return errors.NewNotRunningError("server is not running", nil).WithContext("server_id", serverID)
	}

	normalized, err := NormalizeCommand(command)
	if err != nil {
		return err
	}

	s.marker(serverID, "> %s", normalized)
	if err := handle.WriteLine(normalized); err != nil {
		s.serverLogger(serverID).Warnf("Failed to deliver command: %v", err)
		return errors.NewCommandDeliveryError("failed to write command to server console", err).
			WithContext("server_id", serverID)
	}

	s.metrics.CommandSent(serverID)
	return nil
}
