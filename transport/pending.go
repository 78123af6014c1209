package transport

import (
	"context"
	"sync"
	"time"

	"github.com/felixgeelhaar/mcp-client-go/protocol"
)

type result struct {
	resp *protocol.Response
	err  error
}

// pendingTable correlates outstanding requests with their responses.
// Each slot is buffered and completed at most once; whoever completes or
// abandons a slot removes it from the table.
type pendingTable struct {
	mu     sync.Mutex
	slots  map[protocol.ID]chan result
	closed bool
}

func newPendingTable() *pendingTable {
	return &pendingTable{slots: make(map[protocol.ID]chan result)}
}

// add registers id. It must be called before the request is written.
func (p *pendingTable) add(id protocol.ID) (<-chan result, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil, ErrConnectionClosed
	}
	if _, ok := p.slots[id]; ok {
		return nil, ErrDuplicateID
	}
	ch := make(chan result, 1)
	p.slots[id] = ch
	return ch, nil
}

// resolve completes the slot for resp.ID. It reports false when no
// request with that id is outstanding.
func (p *pendingTable) resolve(resp *protocol.Response) bool {
	p.mu.Lock()
	ch, ok := p.slots[resp.ID]
	if ok {
		delete(p.slots, resp.ID)
	}
	p.mu.Unlock()

	if ok {
		ch <- result{resp: resp}
	}
	return ok
}

func (p *pendingTable) remove(id protocol.ID) {
	p.mu.Lock()
	delete(p.slots, id)
	p.mu.Unlock()
}

// closeAll fails every outstanding slot with err and refuses new ones.
func (p *pendingTable) closeAll(err error) {
	p.mu.Lock()
	slots := p.slots
	p.slots = make(map[protocol.ID]chan result)
	p.closed = true
	p.mu.Unlock()

	for _, ch := range slots {
		ch <- result{err: err}
	}
}

func (p *pendingTable) len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.slots)
}

// wait blocks on ch until it completes, timeout elapses, or ctx is done.
// A zero timeout waits on ctx alone.
func (p *pendingTable) wait(ctx context.Context, id protocol.ID, ch <-chan result, timeout time.Duration) (*protocol.Response, error) {
	var expired <-chan time.Time
	if timeout > 0 {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		expired = timer.C
	}

	select {
	case r := <-ch:
		return r.resp, r.err
	case <-expired:
		p.remove(id)
		return nil, ErrTimeout
	case <-ctx.Done():
		p.remove(id)
		return nil, ctx.Err()
	}
}
