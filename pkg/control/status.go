package control

import (
	"context"
	"strings"

	"github.com/core-tools/hsu-gamesrv/pkg/errors"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

var typeCodes = map[errors.ErrorType]codes.Code{
	errors.ErrorTypeValidation:              codes.InvalidArgument,
	errors.ErrorTypeNotFound:                codes.NotFound,
	errors.ErrorTypeNotRunning:              codes.FailedPrecondition,
	errors.ErrorTypeIncompatibleRuntime:     codes.FailedPrecondition,
	errors.ErrorTypeArtifactMissing:         codes.FailedPrecondition,
	errors.ErrorTypeUnsupportedDistribution: codes.InvalidArgument,
	errors.ErrorTypeVersionNotFound:         codes.NotFound,
	errors.ErrorTypeNoDownloadAvailable:     codes.NotFound,
	errors.ErrorTypeUpstreamUnavailable:     codes.Unavailable,
	errors.ErrorTypeProcessStartup:          codes.Aborted,
	errors.ErrorTypeCommandDelivery:         codes.Unavailable,
	errors.ErrorTypeIO:                      codes.Internal,
	errors.ErrorTypeInternal:                codes.Internal,
}

// CodeOf maps an error type to the status code it travels with
func CodeOf(errorType errors.ErrorType) codes.Code {
	if code, ok := typeCodes[errorType]; ok {
		return code
	}
	return codes.Internal
}

// ToStatus converts err into a gRPC status error. The error type rides in a
// Struct detail so FromStatus can restore it exactly.
func ToStatus(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) {
		return status.Error(codes.Canceled, err.Error())
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return status.Error(codes.DeadlineExceeded, err.Error())
	}

	errorType := errors.TypeOf(err)
	message := strings.TrimPrefix(err.Error(), string(errorType)+": ")

	st := status.New(CodeOf(errorType), message)
	detail, detailErr := structpb.NewStruct(map[string]interface{}{"type": string(errorType)})
	if detailErr != nil {
		return st.Err()
	}
	if withDetails, detailErr := st.WithDetails(detail); detailErr == nil {
		st = withDetails
	}
	return st.Err()
}

// FromStatus restores a DomainError from a status error produced by
// ToStatus. Errors without a type detail are typed from their code.
func FromStatus(err error) error {
	if err == nil {
		return nil
	}
	st, ok := status.FromError(err)
	if !ok {
		return errors.NewInternalError("control call failed", err)
	}

	switch st.Code() {
	case codes.Canceled:
		return context.Canceled
	case codes.DeadlineExceeded:
		return context.DeadlineExceeded
	}

	errorType := typeFromCode(st.Code())
	for _, detail := range st.Details() {
		if s, ok := detail.(*structpb.Struct); ok {
			if value := s.GetFields()["type"].GetStringValue(); value != "" {
				errorType = errors.ErrorType(value)
			}
		}
	}

	return errors.NewDomainError(errorType, st.Message(), nil).WithContext("code", st.Code().String())
}

func typeFromCode(code codes.Code) errors.ErrorType {
	switch code {
	case codes.InvalidArgument:
		return errors.ErrorTypeValidation
	case codes.NotFound:
		return errors.ErrorTypeNotFound
	case codes.FailedPrecondition:
		return errors.ErrorTypeNotRunning
	case codes.Unavailable:
		return errors.ErrorTypeUpstreamUnavailable
	case codes.Aborted:
		return errors.ErrorTypeProcessStartup
	default:
		return errors.ErrorTypeInternal
	}
}
