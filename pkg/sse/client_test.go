package sse

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"
)

func TestNewClient(t *testing.T) {
	Convey("Given a URL and a request body", t, func() {
		client := NewClient("http://example.com/rpc", []byte(`{}`))

		Convey("It should initialize correctly", func() {
			So(client.URL, ShouldEqual, "http://example.com/rpc")
			So(client.Headers, ShouldNotBeNil)
			So(client.Metrics, ShouldNotBeNil)
		})
	})
}

func TestSubscribe(t *testing.T) {
	Convey("Given an SSE server", t, func() {
		var receivedBody []byte

		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			receivedBody, _ = io.ReadAll(r.Body)

			w.Header().Set("Content-Type", "text/event-stream")
			w.WriteHeader(http.StatusOK)
			w.Write([]byte("data: first\n\n"))
			w.Write([]byte(": keep-alive\n\n"))
			w.Write([]byte("data: second\n\n"))
			w.(http.Flusher).Flush()
		}))
		defer server.Close()

		client := NewClient(server.URL, []byte(`{"method":"message/stream"}`))

		Convey("When subscribing", func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()

			var events []string
			err := client.Subscribe(ctx, func(event *Event) {
				events = append(events, string(event.Data))
				if len(events) == 2 {
					client.Close()
				}
			})

			Convey("Then it posts the body and receives every frame", func() {
				So(err, ShouldBeNil)
				So(string(receivedBody), ShouldEqual, `{"method":"message/stream"}`)
				So(events, ShouldResemble, []string{"first", "second"})
			})

			Convey("And the metrics recorded the connection", func() {
				snapshot := client.Metrics.GetMetrics()
				So(snapshot["total_connections"], ShouldEqual, int64(1))
				So(snapshot["failed_connections"], ShouldEqual, int64(0))
			})
		})
	})
}

func TestDroppedStreamIsNotResent(t *testing.T) {
	Convey("Given a server that drops the stream mid-flight", t, func() {
		var requests atomic.Int64

		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			requests.Add(1)

			w.Header().Set("Content-Type", "text/event-stream")
			w.WriteHeader(http.StatusOK)
			w.Write([]byte("data: first\n\n"))
			w.(http.Flusher).Flush()
			// handler returns without a terminal frame: connection drops
		}))
		defer server.Close()

		client := NewClient(server.URL, []byte(`{"method":"message/stream"}`))

		Convey("When subscribing without closing on our side", func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()

			var events []string
			err := client.Subscribe(ctx, func(event *Event) {
				events = append(events, string(event.Data))
			})

			Convey("Then the drop surfaces instead of re-sending the body", func() {
				So(err, ShouldNotBeNil)
				So(err.Error(), ShouldContainSubstring, "stream dropped")
				So(events, ShouldResemble, []string{"first"})
				So(requests.Load(), ShouldEqual, int64(1))
			})
		})
	})
}

func TestSubscribeServerError(t *testing.T) {
	Convey("Given a server that rejects the request", t, func() {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "nope", http.StatusInternalServerError)
		}))
		defer server.Close()

		client := NewClient(server.URL, nil)

		Convey("When subscribing", func() {
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()

			err := client.Subscribe(ctx, func(event *Event) {})

			Convey("Then it gives up after retrying", func() {
				So(err, ShouldNotBeNil)
				So(err.Error(), ShouldContainSubstring, "max retries")
			})
		})
	})
}

func TestWriter(t *testing.T) {
	Convey("Given a streaming response writer", t, func() {
		rec := httptest.NewRecorder()

		writer, err := NewWriter(rec)
		So(err, ShouldBeNil)

		Convey("When sending values", func() {
			So(writer.Send(map[string]string{"kind": "task"}), ShouldBeNil)
			So(writer.Comment("keep-alive"), ShouldBeNil)

			Convey("Then the frames are well-formed", func() {
				body := rec.Body.String()
				So(rec.Header().Get("Content-Type"), ShouldEqual, "text/event-stream")
				So(body, ShouldContainSubstring, "data: ")
				So(body, ShouldContainSubstring, ": keep-alive\n\n")

				var decoded map[string]string
				payload := body[len("data: ") : len("data: ")+len(`{"kind":"task"}`)]
				So(json.Unmarshal([]byte(payload), &decoded), ShouldBeNil)
				So(decoded["kind"], ShouldEqual, "task")
			})
		})
	})
}
