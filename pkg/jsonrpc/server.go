package jsonrpc

// A very small, self‑contained JSON‑RPC 2.0 helper.  It is not a
// full‑fledged framework – the goal is to keep the amount of required code
// minimal yet be sufficient for typical agent ↔ agent interactions.
// Besides plain request/response methods it supports streaming methods
// whose results are delivered as Server-Sent Events, each frame an
// envelope sharing the originating request id.

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"sync"

	"github.com/alohalabs/aloha/pkg/errors"
	"github.com/charmbracelet/log"
)

// HandlerFunc processes the raw params field and returns a result or an
// *errors.RpcError.  Returning (nil, nil) is treated as a null result.
type HandlerFunc func(ctx context.Context, params json.RawMessage) (any, *errors.RpcError)

// StreamHandlerFunc starts a streaming method.  The returned channel is
// closed by the handler's producer when the stream is finished; every item
// is wrapped in a Response envelope and written as one SSE frame.
type StreamHandlerFunc func(ctx context.Context, params json.RawMessage) (<-chan any, *errors.RpcError)

// Server multiplexes JSON‑RPC method names to handler functions.
type Server struct {
	mu       sync.RWMutex
	handlers map[string]HandlerFunc
	streams  map[string]StreamHandlerFunc
}

func NewServer() *Server {
	return &Server{
		handlers: make(map[string]HandlerFunc),
		streams:  make(map[string]StreamHandlerFunc),
	}
}

func (srv *Server) Register(method string, h HandlerFunc) {
	srv.mu.Lock()
	defer srv.mu.Unlock()
	srv.handlers[method] = h
}

func (srv *Server) RegisterStream(method string, h StreamHandlerFunc) {
	srv.mu.Lock()
	defer srv.mu.Unlock()
	srv.streams[method] = h
}

func (srv *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "only POST supported", http.StatusMethodNotAllowed)
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		respondError(w, nil, errors.ErrParseError)
		return
	}

	// Support batch requests if the first byte is '['
	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		respondError(w, nil, errors.ErrInvalidRequest)
		return
	}

	if body[0] == '[' {
		var batch []Request
		if err := json.Unmarshal(body, &batch); err != nil {
			respondError(w, nil, errors.ErrParseError)
			return
		}
		var responses []Response
		for _, req := range batch {
			resp := srv.handle(r.Context(), &req)
			// Notifications have no ID – skip sending a response.
			if len(req.ID) != 0 {
				responses = append(responses, resp)
			}
		}
		if len(responses) == 0 {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		_ = json.NewEncoder(w).Encode(responses)
		return
	}

	var req Request
	if err := json.Unmarshal(body, &req); err != nil {
		respondError(w, nil, errors.ErrParseError)
		return
	}

	if req.JSONRPC == "2.0" {
		srv.mu.RLock()
		stream, isStream := srv.streams[req.Method]
		srv.mu.RUnlock()

		if isStream {
			srv.serveStream(w, r, &req, stream)
			return
		}
	}

	resp := srv.handle(r.Context(), &req)
	// Notification – no ID → no response.
	if len(req.ID) == 0 {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	_ = json.NewEncoder(w).Encode(resp)
}

func (srv *Server) handle(ctx context.Context, req *Request) Response {
	if req.JSONRPC != "2.0" {
		return NewErrorResponse(req.ID, errors.ErrInvalidRequest)
	}

	srv.mu.RLock()
	h, ok := srv.handlers[req.Method]
	srv.mu.RUnlock()
	if !ok {
		return NewErrorResponse(req.ID, errors.ErrMethodNotFound)
	}

	result, rpcErr := h(ctx, req.Params)
	if rpcErr != nil {
		return NewErrorResponse(req.ID, rpcErr)
	}

	return NewResponse(req.ID, result)
}

// serveStream runs a streaming method over SSE.  Structural errors are
// returned as a regular JSON-RPC error body before any frame is written;
// once the stream starts every item shares the request id.
func (srv *Server) serveStream(w http.ResponseWriter, r *http.Request, req *Request, h StreamHandlerFunc) {
	events, rpcErr := h(r.Context(), req.Params)
	if rpcErr != nil {
		respondError(w, req.ID, rpcErr)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		respondError(w, req.ID, errors.ErrInternal.WithMessagef("streaming unsupported"))
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			// Client went away; the producer keeps running and the bus
			// drops our interest without blocking it.
			return
		case event, open := <-events:
			if !open {
				return
			}

			buf, err := json.Marshal(NewResponse(req.ID, event))
			if err != nil {
				log.Error("failed to marshal stream frame", "error", err)
				continue
			}

			_, _ = w.Write([]byte("data: "))
			_, _ = w.Write(buf)
			_, _ = w.Write([]byte("\n\n"))
			flusher.Flush()
		}
	}
}

func respondError(w http.ResponseWriter, id json.RawMessage, e *errors.RpcError) {
	_ = json.NewEncoder(w).Encode(NewErrorResponse(id, e))
}
