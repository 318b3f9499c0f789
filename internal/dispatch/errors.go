package dispatch

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/nextlevelbuilder/agentgate/internal/providers"
	"github.com/nextlevelbuilder/agentgate/pkg/protocol"
)

// ErrorInfo is the client-facing shape of a dispatch error, shared by the
// HTTP handler and the streaming session.
type ErrorInfo struct {
	Status   int
	Code     string
	Message  string
	Provider string
	// Fatal marks errors that end a streaming session.
	Fatal bool
}

// Classify maps a dispatch error onto status, code and a message that is
// safe to show the client. model is echoed in unsupported-model messages.
func Classify(err error, model string) ErrorInfo {
	var (
		missing    *MissingAPIKeyError
		unreadable *UnreadableKeyError
		execErr    *providers.ExecutionError
	)
	switch {
	case errors.Is(err, ErrUnsupportedModel):
		return ErrorInfo{Status: http.StatusBadRequest, Code: protocol.ErrUnsupportedModel, Message: "Unsupported model: " + model}
	case errors.As(err, &missing):
		return ErrorInfo{
			Status:   http.StatusBadRequest,
			Code:     protocol.ErrMissingAPIKey,
			Message:  missing.Error(),
			Provider: string(missing.Provider),
		}
	case errors.As(err, &unreadable):
		return ErrorInfo{
			Status:   http.StatusBadRequest,
			Code:     protocol.ErrCredentialUnreadable,
			Message:  fmt.Sprintf("Your stored %s API key could not be read. Please enter it again.", unreadable.Provider.Title()),
			Provider: string(unreadable.Provider),
		}
	case errors.Is(err, ErrUnauthorized):
		return ErrorInfo{Status: http.StatusUnauthorized, Code: protocol.ErrUnauthorized, Message: "Invalid authentication credentials", Fatal: true}
	case errors.Is(err, providers.ErrInvalidOption):
		msg := err.Error()
		if errors.As(err, &execErr) {
			msg = execErr.Err.Error()
		}
		return ErrorInfo{Status: http.StatusBadRequest, Code: protocol.ErrInvalidRequest, Message: msg}
	case errors.As(err, &execErr):
		return ErrorInfo{Status: http.StatusBadGateway, Code: protocol.ErrExecutionFailed, Message: providers.UserMessage(execErr)}
	case errors.Is(err, context.Canceled):
		return ErrorInfo{Status: http.StatusServiceUnavailable, Code: protocol.ErrInternal, Message: "Request cancelled"}
	}
	return ErrorInfo{Status: http.StatusInternalServerError, Code: protocol.ErrInternal, Message: "Internal server error", Fatal: true}
}
