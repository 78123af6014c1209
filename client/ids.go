package client

import (
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/felixgeelhaar/mcp-client-go/protocol"
)

// IDGenerator returns the id for the next request. Ids must be unique
// among the requests a client has outstanding.
type IDGenerator func() protocol.ID

// CounterGenerator returns numeric ids 1, 2, 3 and so on.
func CounterGenerator() IDGenerator {
	var n atomic.Int64
	return func() protocol.ID {
		return protocol.IntID(n.Add(1))
	}
}

// UUIDGenerator returns random UUID string ids.
func UUIDGenerator() IDGenerator {
	return func() protocol.ID {
		return protocol.StringID(uuid.NewString())
	}
}
