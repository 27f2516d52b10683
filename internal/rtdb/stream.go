package rtdb

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
)

// Event types sent by the streaming endpoint.
const (
	EventPut         = "put"
	EventPatch       = "patch"
	EventKeepAlive   = "keep-alive"
	EventCancel      = "cancel"
	EventAuthRevoked = "auth_revoked"
)

const maxEventSize = 8 << 20

// Event is a data change delivered by Stream. Path is relative to the
// streamed node; "/" means the whole node.
type Event struct {
	Type string
	Path string
	Data json.RawMessage
}

type eventData struct {
	Path string          `json:"path"`
	Data json.RawMessage `json:"data"`
}

// Stream subscribes to changes at path and calls fn for each put or patch
// event until ctx is done, the server ends the stream, or fn returns an error.
// The first event carries the full current value.
func (c *Client) Stream(ctx context.Context, path string, fn func(Event) error) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint(path), http.NoBody)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "text/event-stream")

	resp, err := c.streamClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if err := statusError(resp); err != nil {
		return err
	}

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), maxEventSize)

	var eventType string
	var data bytes.Buffer
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			if eventType != "" {
				if err := dispatch(eventType, data.Bytes(), fn); err != nil {
					return err
				}
			}
			eventType = ""
			data.Reset()
			continue
		}
		field, value, _ := strings.Cut(line, ":")
		value = strings.TrimPrefix(value, " ")
		switch field {
		case "event":
			eventType = value
		case "data":
			if data.Len() > 0 {
				data.WriteByte('\n')
			}
			data.WriteString(value)
		}
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := scanner.Err(); err != nil {
		return err
	}
	return ErrStreamClosed
}

func dispatch(eventType string, payload []byte, fn func(Event) error) error {
	switch eventType {
	case EventKeepAlive:
		return nil
	case EventCancel:
		return ErrStreamCanceled
	case EventAuthRevoked:
		return ErrAuthRevoked
	case EventPut, EventPatch:
		var body eventData
		if err := json.Unmarshal(payload, &body); err != nil {
			return fmt.Errorf("rtdb: decode %s event: %w", eventType, err)
		}
		if body.Path == "" {
			body.Path = "/"
		}
		return fn(Event{Type: eventType, Path: body.Path, Data: body.Data})
	default:
		return nil
	}
}
