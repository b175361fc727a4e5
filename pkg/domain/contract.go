package domain

import (
	"context"
)

// Contract is the narrow surface the metadata layer calls into. None of
// these operations authenticate callers or persist server records.
type Contract interface {
	Provision(ctx context.Context, def ServerDefinition) (RuntimeInfo, error)
	Start(ctx context.Context, def ServerDefinition) error
	Stop(ctx context.Context, serverID string) error
	SendCommand(ctx context.Context, serverID string, command string) error
	RuntimeInfo(ctx context.Context, serverID string) (RuntimeInfo, error)
	TailLog(ctx context.Context, serverID string, maxLines int) ([]string, error)
	ReadProperties(ctx context.Context, serverID string) (map[string]string, error)
	UpdateProperties(ctx context.Context, serverID string, updates map[string]string) (PropertiesUpdate, error)
}

// PropertiesUpdate is the result of a read-modify-write of server.properties
type PropertiesUpdate struct {
	Properties  map[string]string
	ChangedKeys []string
}
