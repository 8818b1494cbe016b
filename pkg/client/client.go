package client

import (
	"context"
	"encoding/json"
	"fmt"
	"sync/atomic"

	"github.com/alohalabs/aloha/pkg/a2a"
	"github.com/alohalabs/aloha/pkg/errors"
	"github.com/alohalabs/aloha/pkg/jsonrpc"
	"github.com/alohalabs/aloha/pkg/sse"
	"github.com/charmbracelet/log"
	fiberClient "github.com/gofiber/fiber/v3/client"
)

/*
Client talks the JSON-RPC surface of an agent: unary calls over POST /rpc
and streaming calls as SSE frames on the same endpoint.  A failed task
comes back as a perfectly good *a2a.Task; the error return is reserved
for transport and protocol failures.
*/
type Client struct {
	baseURL string
	conn    *fiberClient.Client
	nextID  atomic.Int64
}

func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		conn:    fiberClient.New().SetBaseURL(baseURL),
	}
}

// envelope mirrors jsonrpc.Response with the result kept raw so callers
// can decode into their own types.
type envelope struct {
	JSONRPC string           `json:"jsonrpc"`
	ID      json.RawMessage  `json:"id,omitempty"`
	Result  json.RawMessage  `json:"result,omitempty"`
	Error   *errors.RpcError `json:"error,omitempty"`
}

func (client *Client) call(method string, params any, result any) error {
	req, err := jsonrpc.NewRequest(int(client.nextID.Add(1)), method, params)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}

	res, err := client.conn.Post("/rpc", fiberClient.Config{
		Header: map[string]string{"Content-Type": "application/json"},
		Body:   req,
	})
	if err != nil {
		return fmt.Errorf("rpc transport: %w", err)
	}

	var env envelope
	if err = json.Unmarshal(res.Body(), &env); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	if env.Error != nil {
		return env.Error
	}

	if result != nil {
		if err = json.Unmarshal(env.Result, result); err != nil {
			return fmt.Errorf("failed to decode result: %w", err)
		}
	}

	return nil
}

/*
SendMessage submits a message and blocks until the task reaches a
terminal state.
*/
func (client *Client) SendMessage(message *a2a.Message) (*a2a.Task, error) {
	var task a2a.Task
	if err := client.call("message/send", map[string]any{"message": message}, &task); err != nil {
		return nil, err
	}

	return &task, nil
}

/*
GetTask fetches the current snapshot of a task.
*/
func (client *Client) GetTask(taskID string) (*a2a.Task, error) {
	var task a2a.Task
	if err := client.call("tasks/get", map[string]string{"id": taskID}, &task); err != nil {
		return nil, err
	}

	return &task, nil
}

/*
CancelTask requests cooperative cancellation of a running task and
returns the canceled snapshot.
*/
func (client *Client) CancelTask(taskID string) (*a2a.Task, error) {
	var task a2a.Task
	if err := client.call("tasks/cancel", map[string]string{"id": taskID}, &task); err != nil {
		return nil, err
	}

	return &task, nil
}

/*
StreamMessage submits a message and delivers every task event to the
returned channel as it happens: the task snapshot, status transitions,
artifacts, and finally the terminal status update, after which the
channel closes.  The context withdraws the subscription without
affecting the task itself.
*/
func (client *Client) StreamMessage(ctx context.Context, message *a2a.Message) (<-chan StreamEvent, error) {
	req, err := jsonrpc.NewRequest(
		int(client.nextID.Add(1)), "message/stream", map[string]any{"message": message},
	)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	stream := sse.NewClient(client.baseURL+"/rpc", body)
	events := make(chan StreamEvent, 8)

	go func() {
		defer close(events)

		err := stream.Subscribe(ctx, func(frame *sse.Event) {
			event, err := decodeFrame(frame.Data)
			if err != nil {
				log.Error("failed to decode stream frame", "error", err)
				return
			}

			if event.Terminal() {
				// Stream is done; stop before the connection drop is
				// mistaken for a network failure.
				defer stream.Close()
			}

			select {
			case events <- event:
			case <-ctx.Done():
			}
		})

		if err != nil && err != context.Canceled {
			log.Error("stream ended with error", "error", err)
		}
	}()

	return events, nil
}

// StreamEvent is the decoded union a stream delivers.  Exactly one of
// the accessors below returns non-nil, depending on Kind.
type StreamEvent struct {
	Kind     string
	Task     *a2a.Task
	Status   *a2a.TaskStatusUpdateEvent
	Artifact *a2a.TaskArtifactUpdateEvent
}

func (event StreamEvent) Terminal() bool {
	return event.Status != nil && event.Status.Final
}

// decodeFrame unwraps the JSON-RPC envelope around one SSE frame and
// decodes the payload by its kind discriminator.
func decodeFrame(data []byte) (StreamEvent, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return StreamEvent{}, err
	}

	if env.Error != nil {
		return StreamEvent{}, env.Error
	}

	var probe struct {
		Kind string `json:"kind"`
	}
	if err := json.Unmarshal(env.Result, &probe); err != nil {
		return StreamEvent{}, err
	}

	event := StreamEvent{Kind: probe.Kind}

	switch probe.Kind {
	case a2a.KindTask:
		event.Task = &a2a.Task{}
		return event, json.Unmarshal(env.Result, event.Task)
	case a2a.KindStatusUpdate:
		event.Status = &a2a.TaskStatusUpdateEvent{}
		return event, json.Unmarshal(env.Result, event.Status)
	case a2a.KindArtifactUpdate:
		event.Artifact = &a2a.TaskArtifactUpdateEvent{}
		return event, json.Unmarshal(env.Result, event.Artifact)
	default:
		return StreamEvent{}, fmt.Errorf("unknown event kind %q", probe.Kind)
	}
}

/*
FetchAgentCard retrieves the agent's self-description from the
well-known discovery path.
*/
func (client *Client) FetchAgentCard() (*a2a.AgentCard, error) {
	res, err := client.conn.Get("/.well-known/agent-card.json")
	if err != nil {
		return nil, fmt.Errorf("failed to fetch agent card: %w", err)
	}

	var card a2a.AgentCard
	if err = json.Unmarshal(res.Body(), &card); err != nil {
		return nil, fmt.Errorf("failed to decode agent card: %w", err)
	}

	return &card, nil
}
