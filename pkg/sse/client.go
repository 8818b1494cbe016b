package sse

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/alohalabs/aloha/pkg/metrics"
)

// Event is one parsed Server-Sent Event frame.
type Event struct {
	ID    string
	Event string
	Data  []byte
}

// Client consumes an SSE stream over POST, which is how streaming
// JSON-RPC methods are exposed: the request body carries the call and the
// response body carries the frames.  It reconnects transparently on
// transport-level EOFs so a flaky link does not end the subscription.
type Client struct {
	URL     string
	Body    []byte
	Headers map[string]string
	Metrics *metrics.StreamingMetrics

	mu     sync.Mutex
	conn   *http.Response
	reader *bufio.Reader
	stop   chan struct{}
	once   sync.Once
}

func NewClient(url string, body []byte) *Client {
	return &Client{
		URL:     url,
		Body:    body,
		Headers: make(map[string]string),
		Metrics: metrics.NewStreamingMetrics(),
		stop:    make(chan struct{}),
	}
}

/*
Subscribe connects and invokes handler for every frame until the context
is canceled or Close is called.  Connection failures before any frame
arrived are retried with exponential backoff.  Once the stream is
established the request body has reached the server, so a transport drop
is never retried (re-sending the body would submit the call a second
time); the drop surfaces to the caller instead.  Handlers should call
Close once they observe the stream's terminal frame so a finished stream
is not mistaken for a dropped one.
*/
func (client *Client) Subscribe(ctx context.Context, handler func(*Event)) error {
	var retries int
	const maxRetries = 3
	baseDelay := time.Second

	for {
		select {
		case <-ctx.Done():
			client.cleanup()
			return ctx.Err()
		case <-client.stop:
			client.cleanup()
			return nil
		default:
		}

		if err := client.connect(ctx); err != nil {
			if retries >= maxRetries {
				return fmt.Errorf("max retries exceeded: %w", err)
			}
			time.Sleep(baseDelay * time.Duration(1<<retries))
			retries++
			client.Metrics.RecordReconnection()
			continue
		}

		err := client.processEvents(ctx, handler)
		client.cleanup()

		if err == nil || client.stopped() {
			return nil
		}

		if err == io.EOF || err == io.ErrUnexpectedEOF {
			return fmt.Errorf("stream dropped: %w", err)
		}

		return err
	}
}

// stopped reports whether Close has been called.
func (client *Client) stopped() bool {
	select {
	case <-client.stop:
		return true
	default:
		return false
	}
}

// Close terminates the subscription from the consumer side.
func (client *Client) Close() error {
	client.once.Do(func() { close(client.stop) })

	client.mu.Lock()
	defer client.mu.Unlock()

	if client.conn != nil {
		return client.conn.Body.Close()
	}

	return nil
}

func (client *Client) cleanup() {
	client.mu.Lock()
	defer client.mu.Unlock()

	if client.conn != nil {
		client.conn.Body.Close()
		client.conn = nil
		client.reader = nil
	}
}

func (client *Client) connect(ctx context.Context) error {
	started := time.Now()

	req, err := http.NewRequestWithContext(
		ctx, http.MethodPost, client.URL, strings.NewReader(string(client.Body)),
	)
	if err != nil {
		client.Metrics.RecordConnection(false, time.Since(started))
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")
	for k, v := range client.Headers {
		req.Header.Set(k, v)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		client.Metrics.RecordConnection(false, time.Since(started))
		return fmt.Errorf("failed to connect: %w", err)
	}

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusBadRequest {
		body, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		client.Metrics.RecordConnection(false, time.Since(started))
		return fmt.Errorf("unexpected status code: %d, body: %s", resp.StatusCode, string(body))
	}

	client.mu.Lock()
	client.conn = resp
	client.reader = bufio.NewReader(resp.Body)
	client.mu.Unlock()

	client.Metrics.RecordConnection(true, time.Since(started))
	return nil
}

func (client *Client) processEvents(ctx context.Context, handler func(*Event)) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-client.stop:
			return nil
		default:
		}

		event, err := client.readEvent()
		if err != nil {
			return err
		}

		if event != nil {
			started := time.Now()
			handler(event)
			client.Metrics.RecordEvent(false, time.Since(started))
		}
	}
}

// readEvent parses a single frame: accumulated data lines terminated by a
// blank line, with comment lines skipped.
func (client *Client) readEvent() (*Event, error) {
	client.mu.Lock()
	reader := client.reader
	client.mu.Unlock()

	if reader == nil {
		return nil, io.EOF
	}

	event := &Event{}
	var data strings.Builder
	inEvent := false

	for {
		line, err := reader.ReadString('\n')
		if err != nil {
			return nil, err
		}

		line = strings.TrimRight(line, "\n\r")

		if line == "" {
			if inEvent {
				event.Data = []byte(data.String())
				return event, nil
			}
			continue
		}

		if strings.HasPrefix(line, ":") {
			continue
		}

		inEvent = true

		switch {
		case strings.HasPrefix(line, "id:"):
			event.ID = strings.TrimSpace(line[3:])
		case strings.HasPrefix(line, "event:"):
			event.Event = strings.TrimSpace(line[6:])
		case strings.HasPrefix(line, "data:"):
			if data.Len() > 0 {
				data.WriteString("\n")
			}
			data.WriteString(strings.TrimPrefix(strings.TrimPrefix(line, "data:"), " "))
		}
	}
}
