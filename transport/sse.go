package transport

import (
	"bufio"
	"bytes"
	"errors"
	"io"
	"mime"
	"strings"

	"github.com/tmaxmax/go-sse"

	"github.com/felixgeelhaar/mcp-client-go/logging"
	"github.com/felixgeelhaar/mcp-client-go/protocol"
)

const sseDone = "[DONE]"

// isEventStream reports whether a response body should be read as SSE:
// either the content type says so or the body starts with a data field.
func isEventStream(contentType string, body *bufio.Reader) bool {
	if mediaType, _, err := mime.ParseMediaType(contentType); err == nil && mediaType == "text/event-stream" {
		return true
	}
	head, _ := body.Peek(len("data:"))
	return bytes.Equal(head, []byte("data:"))
}

// readSSEResponse scans an event stream for the response to id. Empty
// events are skipped and "[DONE]" ends the stream. Notifications go to
// onNotification; frames that are not the awaited response are logged
// and skipped.
func readSSEResponse(r io.Reader, id protocol.ID, logger logging.Logger, onNotification NotificationHandler) (*protocol.Response, error) {
	for ev, err := range sse.Read(r, nil) {
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, &ProtocolError{Reason: "read event stream", Err: err}
		}

		data := strings.TrimSpace(ev.Data)
		if data == "" {
			continue
		}
		if data == sseDone {
			break
		}

		msg, err := protocol.Parse([]byte(data))
		if err != nil {
			logger.Debug("skipping unparseable event", logging.F("data", data), logging.F("error", err))
			continue
		}

		switch m := msg.(type) {
		case *protocol.Response:
			if m.ID == id || (m.ID.IsZero() && m.IsError()) {
				return m, nil
			}
			logger.Warn("skipping event for another request",
				logging.F("id", m.ID.String()),
				logging.F("want", id.String()),
			)
		case *protocol.Notification:
			logger.Info("received notification in event stream", logging.F("method", m.Method))
			if onNotification != nil {
				onNotification(m)
			}
		case *protocol.Request:
			logger.Warn("skipping server request in event stream", logging.F("method", m.Method))
		}
	}

	return nil, &ProtocolError{Reason: "no response found in event stream"}
}

// readJSONResponse decodes a plain JSON body that must be the response
// to id. An error response with a null id is accepted as the answer.
func readJSONResponse(body []byte, id protocol.ID) (*protocol.Response, error) {
	msg, err := protocol.Parse(body)
	if err != nil {
		return nil, &ProtocolError{Reason: "invalid response body", Err: err}
	}

	switch m := msg.(type) {
	case *protocol.Response:
		if m.ID != id && !(m.ID.IsZero() && m.IsError()) {
			return nil, &ProtocolError{Reason: "response id " + m.ID.String() + " does not match request id " + id.String()}
		}
		return m, nil
	case *protocol.Request:
		return nil, &ProtocolError{Reason: "received request instead of response"}
	default:
		return nil, &ProtocolError{Reason: "received notification instead of response"}
	}
}
