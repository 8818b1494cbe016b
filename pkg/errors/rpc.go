package errors

import "fmt"

/*
RpcError represents a JSON-RPC error response.  It doubles as the stable
kind for every protocol/structural failure the engine can surface: a
malformed request, a missing task, an illegal transition.  Task-state
failure (the unit of work ran and failed) is never an RpcError.
*/
type RpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

/*
Error implements the error interface for RpcError.
*/
func (e *RpcError) Error() string {
	return fmt.Sprintf("RPC error %d: %s", e.Code, e.Message)
}

// Convenience errors (JSON‑RPC reserved codes  -32700 .. -32600)
// Application specific codes use the -32000 .. -32099 range.
var (
	ErrParseError     = &RpcError{Code: -32700, Message: "Parse error"}
	ErrInvalidRequest = &RpcError{Code: -32600, Message: "Invalid Request"}
	ErrMethodNotFound = &RpcError{Code: -32601, Message: "Method not found"}
	ErrInvalidParams  = &RpcError{Code: -32602, Message: "Invalid params"}
	ErrInternal       = &RpcError{Code: -32603, Message: "Internal error"}

	ErrTaskNotFound       = &RpcError{Code: -32001, Message: "Task not found"}
	ErrTaskNotCancelable  = &RpcError{Code: -32002, Message: "Task cannot be canceled"}
	ErrInvalidTransition  = &RpcError{Code: -32003, Message: "Invalid task state transition"}
	ErrTaskCreationFailed = &RpcError{Code: -32004, Message: "Task creation failed"}
)

// WithMessagef creates a *copy* of an RpcError with a formatted message.
// It does not modify the original error variable.
func (e *RpcError) WithMessagef(format string, args ...any) *RpcError {
	newErr := *e // shallow copy, the sentinels stay pristine
	newErr.Message = fmt.Sprintf(format, args...)
	return &newErr
}

// WithData creates a copy of an RpcError carrying additional data.
func (e *RpcError) WithData(data any) *RpcError {
	newErr := *e
	newErr.Data = data
	return &newErr
}

// Is supports errors.Is matching by code so sentinel comparison works on
// copies produced by WithMessagef / WithData.
func (e *RpcError) Is(target error) bool {
	other, ok := target.(*RpcError)
	return ok && other.Code == e.Code
}
