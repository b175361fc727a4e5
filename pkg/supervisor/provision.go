package supervisor

import (
	"context"
	"fmt"
	"os"
	"regexp"
	"strconv"

	"github.com/core-tools/hsu-gamesrv/pkg/domain"
	"github.com/core-tools/hsu-gamesrv/pkg/errors"
	"github.com/core-tools/hsu-gamesrv/pkg/properties"
)

const DefaultMOTD = "Managed Game Server"

var whitespaceRun = regexp.MustCompile(`\s+`)

// LevelName derives the world directory name from a display name
func LevelName(name string) string {
	return whitespaceRun.ReplaceAllString(name, "_")
}

// seededProperties are written only when the key is absent so operator
// edits survive a re-provision
var seededProperties = []struct {
	key   string
	value string
}{
	{"motd", DefaultMOTD},
	{"enable-command-block", "false"},
	{"white-list", "false"},
	{"online-mode", "true"},
	{"difficulty", "normal"},
	{"gamemode", "survival"},
	{"max-players", "20"},
}

// Provision prepares the working directory of def. It is safe to repeat and
// never truncates the log.
//
// An existing server.properties is merged, not regenerated: server-port and
// level-name always follow def, while motd, difficulty, max-players and the
// other defaults are only written when the key is missing, so operator
// edits to them survive a re-provision.
func (s *Supervisor) Provision(ctx context.Context, def domain.ServerDefinition) (domain.RuntimeInfo, error) {
	if err := domain.ValidateDefinition(def); err != nil {
		return domain.RuntimeInfo{}, err
	}

	lock := s.opLock(def.ID)
	lock.Lock()
	defer lock.Unlock()

	if err := s.provisionLocked(def, ""); err != nil {
		return domain.RuntimeInfo{}, err
	}
	return s.runtimeInfo(def.ID)
}

// provisionLocked moves an idle ID through provisioning and on success into
// next, or back to where it was when next is empty. IDs with a live process
// keep their state.
func (s *Supervisor) provisionLocked(def domain.ServerDefinition, next domain.State) error {
	logger := s.serverLogger(def.ID)

	previous := s.State(def.ID)
	idle := previous == domain.StateAbsent || previous == domain.StateErrored
	if next == "" {
		next = previous
	}
	if idle {
		s.setState(def.ID, domain.StateProvisioning)
	}

	err := s.writeServerFiles(def)

	if idle {
		if err != nil {
			s.setState(def.ID, domain.StateErrored)
		} else {
			s.setState(def.ID, next)
		}
	}
	if err != nil {
		logger.Errorf("Provisioning failed: %v", err)
		return err
	}

	logger.Debugf("Provisioned, dir: %s", s.layout.ServerDir(def.ID))
	return nil
}

func (s *Supervisor) writeServerFiles(def domain.ServerDefinition) error {
	serverDir := s.layout.ServerDir(def.ID)
	if err := os.MkdirAll(serverDir, 0o755); err != nil {
		return errors.NewIOError("failed to create server directory", err).WithContext("path", serverDir)
	}

	eula := s.layout.EULAFile(def.ID)
	if err := os.WriteFile(eula, []byte(fmt.Sprintf("eula=%t\n", def.EULAAccepted)), 0o644); err != nil {
		return errors.NewIOError("failed to write eula.txt", err).WithContext("path", eula)
	}

	if err := s.writeProperties(def); err != nil {
		return err
	}

	return s.sink.Touch(def.ID)
}

// writeProperties forces the keys the definition owns and seeds the fixed
// defaults only where they are missing
func (s *Supervisor) writeProperties(def domain.ServerDefinition) error {
	_, _, err := s.properties.Modify(def.ID, true, func(m *properties.Map) []string {
		changed := properties.Merge(m, map[string]string{
			"server-port": strconv.Itoa(def.Port),
			"level-name":  LevelName(def.Name),
		})
		for _, p := range seededProperties {
			if _, ok := m.Get(p.key); !ok {
				m.Set(p.key, p.value)
				changed = append(changed, p.key)
			}
		}
		return changed
	})
	return err
}
