package testutil

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"sync"

	"github.com/felixgeelhaar/mcp-client-go/protocol"
)

// ServeStdio reads line-delimited messages from r and writes replies to w
// until r reaches EOF or ctx is done. Requests are answered concurrently,
// so a slow handler does not hold back later requests.
func ServeStdio(ctx context.Context, r io.Reader, w io.Writer, s *Server) error {
	var (
		writeMu sync.Mutex
		wg      sync.WaitGroup
	)
	defer wg.Wait()

	write := func(resp *protocol.Response) {
		data, err := json.Marshal(resp)
		if err != nil {
			return
		}
		writeMu.Lock()
		defer writeMu.Unlock()
		_, _ = w.Write(append(data, '\n'))
	}

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 10<<20)
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}

		msg, err := protocol.Parse(scanner.Bytes())
		if err != nil {
			write(protocol.NewErrorResponse(protocol.ID{}, protocol.NewParseError(err.Error())))
			continue
		}
		if _, ok := msg.(*protocol.Response); ok {
			continue
		}

		wg.Add(1)
		go func() {
			defer wg.Done()
			if resp := s.HandleMessage(ctx, msg); resp != nil {
				write(resp)
			}
		}()
	}
	return scanner.Err()
}
