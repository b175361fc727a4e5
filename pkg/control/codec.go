package control

import (
	"github.com/core-tools/hsu-gamesrv/pkg/domain"
	"github.com/core-tools/hsu-gamesrv/pkg/errors"

	"google.golang.org/protobuf/types/known/structpb"
)

const (
	fieldDefinition  = "definition"
	fieldServerID    = "server_id"
	fieldCommand     = "command"
	fieldMaxLines    = "max_lines"
	fieldLines       = "lines"
	fieldProperties  = "properties"
	fieldUpdates     = "updates"
	fieldChangedKeys = "changed_keys"
	fieldRuntimeInfo = "runtime_info"
)

func newStruct(fields map[string]interface{}) (*structpb.Struct, error) {
	s, err := structpb.NewStruct(fields)
	if err != nil {
		return nil, errors.NewInternalError("failed to encode message", err)
	}
	return s, nil
}

func definitionFields(def domain.ServerDefinition) map[string]interface{} {
	return map[string]interface{}{
		"id":            def.ID,
		"name":          def.Name,
		"kind":          string(def.Kind),
		"version":       def.Version,
		"memory_min_mb": def.MemoryMinMB,
		"memory_max_mb": def.MemoryMaxMB,
		"port":          def.Port,
		"eula_accepted": def.EULAAccepted,
	}
}

func decodeDefinition(s *structpb.Struct) (domain.ServerDefinition, error) {
	value, ok := s.GetFields()[fieldDefinition]
	if !ok || value.GetStructValue() == nil {
		return domain.ServerDefinition{}, errors.NewValidationError("definition is required", nil)
	}
	fields := value.GetStructValue().GetFields()
	return domain.ServerDefinition{
		ID:           fields["id"].GetStringValue(),
		Name:         fields["name"].GetStringValue(),
		Kind:         domain.Kind(fields["kind"].GetStringValue()),
		Version:      fields["version"].GetStringValue(),
		MemoryMinMB:  int(fields["memory_min_mb"].GetNumberValue()),
		MemoryMaxMB:  int(fields["memory_max_mb"].GetNumberValue()),
		Port:         int(fields["port"].GetNumberValue()),
		EULAAccepted: fields["eula_accepted"].GetBoolValue(),
	}, nil
}

func runtimeInfoFields(info domain.RuntimeInfo) map[string]interface{} {
	fields := map[string]interface{}{
		"server_dir": info.ServerDir,
		"log_file":   info.LogFile,
		"jar_path":   info.JarPath,
		"jar_exists": info.JarExists,
		"running":    info.Running,
		"pid":        nil,
		"state":      string(info.State),
		"last_error": info.LastError,
	}
	if info.PID != nil {
		fields["pid"] = *info.PID
	}
	return fields
}

func decodeRuntimeInfo(s *structpb.Struct) domain.RuntimeInfo {
	fields := s.GetFields()[fieldRuntimeInfo].GetStructValue().GetFields()
	info := domain.RuntimeInfo{
		ServerDir: fields["server_dir"].GetStringValue(),
		LogFile:   fields["log_file"].GetStringValue(),
		JarPath:   fields["jar_path"].GetStringValue(),
		JarExists: fields["jar_exists"].GetBoolValue(),
		Running:   fields["running"].GetBoolValue(),
		State:     domain.State(fields["state"].GetStringValue()),
		LastError: fields["last_error"].GetStringValue(),
	}
	if pid, ok := fields["pid"].GetKind().(*structpb.Value_NumberValue); ok {
		value := int(pid.NumberValue)
		info.PID = &value
	}
	return info
}

func stringMapFields(m map[string]string) map[string]interface{} {
	fields := make(map[string]interface{}, len(m))
	for key, value := range m {
		fields[key] = value
	}
	return fields
}

// decodeStringMap rejects non-string values rather than coercing them
func decodeStringMap(s *structpb.Struct, name string) (map[string]string, error) {
	m := make(map[string]string)
	for key, value := range s.GetFields()[name].GetStructValue().GetFields() {
		str, ok := value.GetKind().(*structpb.Value_StringValue)
		if !ok {
			return nil, errors.NewValidationError("value of "+key+" must be a string", nil).WithContext("field", name)
		}
		m[key] = str.StringValue
	}
	return m, nil
}

func stringsList(values []string) []interface{} {
	list := make([]interface{}, len(values))
	for i, value := range values {
		list[i] = value
	}
	return list
}

func decodeStrings(s *structpb.Struct, name string) []string {
	values := s.GetFields()[name].GetListValue().GetValues()
	list := make([]string, 0, len(values))
	for _, value := range values {
		list = append(list, value.GetStringValue())
	}
	return list
}
