package jsonrpc

import (
	"encoding/json"

	"github.com/alohalabs/aloha/pkg/errors"
)

type Response struct {
	JSONRPC string           `json:"jsonrpc"`
	ID      json.RawMessage  `json:"id,omitempty"`
	Result  any              `json:"result,omitempty"`
	Error   *errors.RpcError `json:"error,omitempty"`
}

func NewResponse(id json.RawMessage, result any) Response {
	return Response{
		JSONRPC: "2.0",
		ID:      id,
		Result:  result,
	}
}

func NewErrorResponse(id json.RawMessage, e *errors.RpcError) Response {
	// Ensure mandatory Code/Message.
	if e == nil {
		e = errors.ErrInternal
	}

	return Response{
		JSONRPC: "2.0",
		ID:      id,
		Error:   e,
	}
}
