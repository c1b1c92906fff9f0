// Package mcp implements the Model Context Protocol (MCP) server for synexpand.
package mcp

import (
	"context"
	"errors"
	"fmt"

	synerrors "github.com/Aman-CERP/synexpand/internal/errors"
)

// Custom MCP error codes for synexpand.
const (
	// ErrCodeSynonymsUnavailable indicates the synonym dictionary could not be fetched.
	ErrCodeSynonymsUnavailable = -32001

	// ErrCodeSearchFailed indicates the embedded backend failed to run a query.
	ErrCodeSearchFailed = -32002

	// ErrCodeTimeout indicates the request timed out.
	ErrCodeTimeout = -32003

	// ErrCodeIndexUnavailable indicates the backend index is missing or unreadable.
	ErrCodeIndexUnavailable = -32004

	// Standard JSON-RPC error codes.
	ErrCodeInvalidRequest = -32600
	ErrCodeMethodNotFound = -32601
	ErrCodeInvalidParams  = -32602
	ErrCodeInternalError  = -32603
)

// Sentinel errors for internal use.
var (
	// ErrToolNotFound indicates the requested tool does not exist.
	ErrToolNotFound = errors.New("tool not found")

	// ErrInvalidParams indicates invalid parameters were provided.
	ErrInvalidParams = errors.New("invalid parameters")

	// ErrResourceNotFound indicates the requested resource does not exist.
	ErrResourceNotFound = errors.New("resource not found")

	// ErrNoIndex indicates a search was requested but no index is attached.
	ErrNoIndex = errors.New("no search index attached")
)

// MCPError represents an MCP protocol error with code and message.
type MCPError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// Error implements the error interface.
func (e *MCPError) Error() string {
	return fmt.Sprintf("MCP error %d: %s", e.Code, e.Message)
}

// MapError converts internal errors to MCP errors.
func MapError(err error) *MCPError {
	if err == nil {
		return nil
	}

	var mcpErr *MCPError
	if errors.As(err, &mcpErr) {
		return mcpErr
	}

	// Context errors first: a provider timeout is wrapped in a SynError.
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return &MCPError{Code: ErrCodeTimeout, Message: "Request timed out."}
	case errors.Is(err, context.Canceled):
		return &MCPError{Code: ErrCodeTimeout, Message: "Request was canceled."}
	}

	if se, ok := synerrors.As(err); ok {
		return mapSynError(se)
	}

	switch {
	case errors.Is(err, ErrNoIndex):
		return &MCPError{
			Code:    ErrCodeIndexUnavailable,
			Message: "No search index attached. Start the server with --docs or --index.",
		}
	case errors.Is(err, ErrToolNotFound):
		return &MCPError{Code: ErrCodeMethodNotFound, Message: "Tool not found."}
	case errors.Is(err, ErrInvalidParams):
		return &MCPError{Code: ErrCodeInvalidParams, Message: "Invalid parameters."}
	case errors.Is(err, ErrResourceNotFound):
		return &MCPError{Code: ErrCodeMethodNotFound, Message: "Resource not found."}
	default:
		return &MCPError{Code: ErrCodeInternalError, Message: "Internal server error."}
	}
}

// NewInvalidParamsError creates an error for invalid parameters with a custom message.
func NewInvalidParamsError(msg string) *MCPError {
	return &MCPError{
		Code:    ErrCodeInvalidParams,
		Message: msg,
	}
}

// NewMethodNotFoundError creates an error for unknown methods/tools.
func NewMethodNotFoundError(name string) *MCPError {
	return &MCPError{
		Code:    ErrCodeMethodNotFound,
		Message: fmt.Sprintf("Tool '%s' not found.", name),
	}
}

// NewResourceNotFoundError creates an error for unknown resources.
func NewResourceNotFoundError(uri string) *MCPError {
	return &MCPError{
		Code:    ErrCodeMethodNotFound,
		Message: fmt.Sprintf("Resource '%s' not found.", uri),
	}
}

// mapSynError converts a SynError to an MCPError.
func mapSynError(se *synerrors.SynError) *MCPError {
	message := se.Message
	if se.Suggestion != "" {
		message = fmt.Sprintf("%s %s", se.Message, se.Suggestion)
	}

	switch se.Category {
	case synerrors.CategoryProvider:
		if se.Code == synerrors.ErrCodeSynonymsTimeout {
			return &MCPError{Code: ErrCodeTimeout, Message: message}
		}
		return &MCPError{Code: ErrCodeSynonymsUnavailable, Message: message}
	case synerrors.CategoryValidation:
		return &MCPError{Code: ErrCodeInvalidParams, Message: message}
	case synerrors.CategoryIO:
		if se.Code == synerrors.ErrCodeCorruptStore {
			return &MCPError{Code: ErrCodeIndexUnavailable, Message: message}
		}
		return &MCPError{Code: ErrCodeInternalError, Message: message}
	case synerrors.CategoryInternal:
		if se.Code == synerrors.ErrCodeSearchFailed {
			return &MCPError{Code: ErrCodeSearchFailed, Message: message}
		}
		return &MCPError{Code: ErrCodeInternalError, Message: message}
	default: // CategoryConfig and unknown
		return &MCPError{Code: ErrCodeInternalError, Message: message}
	}
}
