package service

// A2AServer bundles the agent card, the request handler and the two wire
// surfaces (JSON-RPC with SSE streaming, plus a REST mapping of the same
// four operations) behind one http.Handler.  All protocol translation
// lives here; task semantics stay in the TaskManager.

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/alohalabs/aloha/pkg/a2a"
	"github.com/alohalabs/aloha/pkg/bus"
	"github.com/alohalabs/aloha/pkg/errors"
	"github.com/alohalabs/aloha/pkg/jsonrpc"
	"github.com/alohalabs/aloha/pkg/metrics"
	"github.com/alohalabs/aloha/pkg/sse"
	"github.com/charmbracelet/log"
)

const WellKnownCardPath = "/.well-known/agent-card.json"

type A2AServer struct {
	Card    a2a.AgentCard
	Manager TaskManager

	rpc     *jsonrpc.Server
	mux     *http.ServeMux
	metrics *metrics.StreamingMetrics
	httpSrv *http.Server
}

func NewA2AServer(card a2a.AgentCard, manager TaskManager) *A2AServer {
	srv := &A2AServer{
		Card:    card,
		Manager: manager,
		rpc:     jsonrpc.NewServer(),
		mux:     http.NewServeMux(),
		metrics: metrics.NewStreamingMetrics(),
	}

	srv.registerRPCHandlers()
	srv.registerHTTPHandlers()

	return srv
}

func (srv *A2AServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	srv.mux.ServeHTTP(w, r)
}

// ListenAndServe runs the server until the context is canceled, then
// drains in-flight requests before returning.
func (srv *A2AServer) ListenAndServe(ctx context.Context, addr string) error {
	srv.httpSrv = &http.Server{
		Addr:    addr,
		Handler: srv,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("a2a server listening", "addr", addr, "agent", srv.Card.Name)
		errCh <- srv.httpSrv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.httpSrv.Shutdown(shutdownCtx)
	}
}

/*
---------------------------------------------------------------------------
JSON-RPC surface
---------------------------------------------------------------------------
*/

// sendParams is the params shape of message/send and message/stream.
type sendParams struct {
	Message *a2a.Message `json:"message"`
}

// taskParams is the params shape of tasks/get and tasks/cancel.
type taskParams struct {
	ID string `json:"id"`
}

func (srv *A2AServer) registerRPCHandlers() {
	srv.rpc.Register("message/send", func(ctx context.Context, raw json.RawMessage) (any, *errors.RpcError) {
		var params sendParams
		if err := json.Unmarshal(raw, &params); err != nil {
			return nil, errors.ErrInvalidParams.WithData(err.Error())
		}

		return ok(srv.Manager.Submit(ctx, params.Message))
	})

	srv.rpc.Register("tasks/get", func(ctx context.Context, raw json.RawMessage) (any, *errors.RpcError) {
		var params taskParams
		if err := json.Unmarshal(raw, &params); err != nil {
			return nil, errors.ErrInvalidParams.WithData(err.Error())
		}

		return ok(srv.Manager.GetTask(ctx, params.ID))
	})

	srv.rpc.Register("tasks/cancel", func(ctx context.Context, raw json.RawMessage) (any, *errors.RpcError) {
		var params taskParams
		if err := json.Unmarshal(raw, &params); err != nil {
			return nil, errors.ErrInvalidParams.WithData(err.Error())
		}

		return ok(srv.Manager.Cancel(ctx, params.ID))
	})

	srv.rpc.RegisterStream("message/stream", func(ctx context.Context, raw json.RawMessage) (<-chan any, *errors.RpcError) {
		var params sendParams
		if err := json.Unmarshal(raw, &params); err != nil {
			return nil, errors.ErrInvalidParams.WithData(err.Error())
		}

		sub, rpcErr := srv.Manager.SubmitStream(ctx, params.Message)
		if rpcErr != nil {
			return nil, rpcErr
		}

		return srv.pump(ctx, sub), nil
	})
}

// ok adapts the TaskManager's typed return into the untyped handler
// result without losing the nil-error/nil-interface distinction.
func ok(task *a2a.Task, rpcErr *errors.RpcError) (any, *errors.RpcError) {
	if rpcErr != nil {
		return nil, rpcErr
	}
	return task, nil
}

// pump bridges a bus subscription onto an untyped channel and withdraws
// the subscription when the request context ends, so a slow or vanished
// consumer never wedges the publisher.
func (srv *A2AServer) pump(ctx context.Context, sub *bus.Subscription) <-chan any {
	srv.metrics.RecordSubscribe()
	out := make(chan any)

	go func() {
		defer close(out)
		defer srv.metrics.RecordUnsubscribe()
		defer sub.Close()

		for {
			select {
			case <-ctx.Done():
				return
			case event, open := <-sub.Events():
				if !open {
					return
				}

				started := time.Now()
				select {
				case out <- event:
					srv.metrics.RecordEvent(false, time.Since(started))
				case <-ctx.Done():
					srv.metrics.RecordEvent(true, time.Since(started))
					return
				}
			}
		}
	}()

	return out
}

/*
---------------------------------------------------------------------------
HTTP surface
---------------------------------------------------------------------------
*/

func (srv *A2AServer) registerHTTPHandlers() {
	srv.mux.Handle("/rpc", srv.rpc)
	srv.mux.HandleFunc(WellKnownCardPath, srv.handleAgentCard)
	srv.mux.HandleFunc("POST /v1/message:send", srv.handleSend)
	srv.mux.HandleFunc("POST /v1/message:stream", srv.handleStream)
	srv.mux.HandleFunc("/v1/tasks/", srv.handleTasks)
	srv.mux.HandleFunc("GET /metrics", srv.handleMetrics)
}

func (srv *A2AServer) handleAgentCard(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, srv.Card)
}

func (srv *A2AServer) handleMetrics(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, srv.metrics.GetMetrics())
}

func (srv *A2AServer) handleSend(w http.ResponseWriter, r *http.Request) {
	message, rpcErr := decodeMessage(r)
	if rpcErr != nil {
		writeRpcError(w, rpcErr)
		return
	}

	task, rpcErr := srv.Manager.Submit(r.Context(), message)
	if rpcErr != nil {
		writeRpcError(w, rpcErr)
		return
	}

	writeJSON(w, http.StatusOK, task)
}

func (srv *A2AServer) handleStream(w http.ResponseWriter, r *http.Request) {
	message, rpcErr := decodeMessage(r)
	if rpcErr != nil {
		writeRpcError(w, rpcErr)
		return
	}

	sub, rpcErr := srv.Manager.SubmitStream(r.Context(), message)
	if rpcErr != nil {
		writeRpcError(w, rpcErr)
		return
	}
	defer sub.Close()

	writer, err := sse.NewWriter(w)
	if err != nil {
		writeRpcError(w, errors.ErrInternal.WithMessagef("%s", err))
		return
	}

	srv.metrics.RecordSubscribe()
	defer srv.metrics.RecordUnsubscribe()

	for {
		select {
		case <-r.Context().Done():
			return
		case event, open := <-sub.Events():
			if !open {
				return
			}

			started := time.Now()
			if err := writer.Send(event); err != nil {
				log.Error("failed to write stream frame", "error", err)
				srv.metrics.RecordEvent(true, time.Since(started))
				return
			}
			srv.metrics.RecordEvent(false, time.Since(started))
		}
	}
}

// handleTasks routes GET /v1/tasks/{id} and POST /v1/tasks/{id}:cancel.
// The cancel verb is a path suffix, which the pattern syntax of ServeMux
// cannot express, so the tail is parsed by hand.
func (srv *A2AServer) handleTasks(w http.ResponseWriter, r *http.Request) {
	tail := strings.TrimPrefix(r.URL.Path, "/v1/tasks/")
	if tail == "" || strings.Contains(tail, "/") {
		http.NotFound(w, r)
		return
	}

	if taskID, found := strings.CutSuffix(tail, ":cancel"); found {
		if r.Method != http.MethodPost {
			http.Error(w, "only POST supported", http.StatusMethodNotAllowed)
			return
		}

		task, rpcErr := srv.Manager.Cancel(r.Context(), taskID)
		if rpcErr != nil {
			writeRpcError(w, rpcErr)
			return
		}

		writeJSON(w, http.StatusOK, task)
		return
	}

	if r.Method != http.MethodGet {
		http.Error(w, "only GET supported", http.StatusMethodNotAllowed)
		return
	}

	task, rpcErr := srv.Manager.GetTask(r.Context(), tail)
	if rpcErr != nil {
		writeRpcError(w, rpcErr)
		return
	}

	writeJSON(w, http.StatusOK, task)
}

func decodeMessage(r *http.Request) (*a2a.Message, *errors.RpcError) {
	var body sendParams
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		return nil, errors.ErrParseError.WithData(err.Error())
	}

	return body.Message, nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeRpcError maps the protocol error domain onto HTTP status codes for
// the REST surface; the body keeps the full error object so both surfaces
// report the same codes.
func writeRpcError(w http.ResponseWriter, rpcErr *errors.RpcError) {
	status := http.StatusInternalServerError

	switch rpcErr.Code {
	case errors.ErrParseError.Code, errors.ErrInvalidRequest.Code, errors.ErrInvalidParams.Code:
		status = http.StatusBadRequest
	case errors.ErrTaskNotFound.Code:
		status = http.StatusNotFound
	case errors.ErrTaskNotCancelable.Code, errors.ErrInvalidTransition.Code:
		status = http.StatusConflict
	case errors.ErrMethodNotFound.Code:
		status = http.StatusNotFound
	}

	writeJSON(w, status, rpcErr)
}
