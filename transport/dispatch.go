package transport

import (
	"bytes"
	"encoding/json"

	"github.com/felixgeelhaar/mcp-client-go/logging"
	"github.com/felixgeelhaar/mcp-client-go/protocol"
)

// dispatcher routes inbound frames from a persistent channel.
type dispatcher struct {
	pending        *pendingTable
	logger         logging.Logger
	onNotification NotificationHandler
	onUnmatched    UnmatchedHandler

	// reply writes an answer to a server-initiated request.
	reply func(data []byte) error
}

func (d *dispatcher) handle(frame []byte) {
	frame = bytes.TrimSpace(frame)
	if len(frame) == 0 {
		return
	}
	if frame[0] != '{' {
		d.logger.Debug("skipping non-protocol output", logging.F("line", string(frame)))
		return
	}

	msg, err := protocol.Parse(frame)
	if err != nil {
		d.logger.Debug("skipping unparseable message",
			logging.F("line", string(frame)),
			logging.F("error", err),
		)
		return
	}

	switch m := msg.(type) {
	case *protocol.Response:
		if d.pending.resolve(m) {
			return
		}
		d.logger.Warn("received response for unknown request", logging.F("id", m.ID.String()))
		if d.onUnmatched != nil {
			d.onUnmatched(m)
		}
	case *protocol.Notification:
		d.logger.Debug("received notification", logging.F("method", m.Method))
		if d.onNotification != nil {
			d.onNotification(m)
		}
	case *protocol.Request:
		d.answer(m)
	}
}

// answer responds to server-initiated requests. Only ping is supported;
// anything else gets method not found so the server does not hang.
func (d *dispatcher) answer(req *protocol.Request) {
	var resp *protocol.Response
	if req.Method == protocol.MethodPing {
		resp = &protocol.Response{JSONRPC: protocol.JSONRPCVersion, ID: req.ID, Result: json.RawMessage(`{}`)}
	} else {
		d.logger.Debug("server request not supported", logging.F("method", req.Method))
		resp = protocol.NewErrorResponse(req.ID, protocol.NewMethodNotFound("method not found: "+req.Method))
	}

	if d.reply == nil {
		return
	}
	data, err := json.Marshal(resp)
	if err != nil {
		d.logger.Error("marshal reply failed", logging.F("error", err))
		return
	}
	go func() {
		if err := d.reply(data); err != nil {
			d.logger.Debug("reply to server request failed",
				logging.F("method", req.Method),
				logging.F("error", err),
			)
		}
	}()
}
