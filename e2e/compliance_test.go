// Package e2e runs the client against in-process MCP servers over every
// transport.
package e2e

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/felixgeelhaar/mcp-client-go/client"
	"github.com/felixgeelhaar/mcp-client-go/protocol"
	"github.com/felixgeelhaar/mcp-client-go/testutil"
	"github.com/felixgeelhaar/mcp-client-go/transport"
)

func complianceServer() *testutil.Server {
	return testutil.NewServer("compliance-test", "1.0.0").
		Tool("echo", "Echo a message", func(args map[string]any) (string, error) {
			return fmt.Sprintf("%v", args["message"]), nil
		}).
		Tool("fail", "Always fails", func(args map[string]any) (string, error) {
			return "", errors.New("node unreachable")
		}).
		Resource("cluster://nodes", "Nodes", "allyrion\nbettley\ncargyll").
		Prompt("diagnose", "Diagnose a node", func(args map[string]string) string {
			return "Diagnose " + args["node"]
		}, "node")
}

// TestHelperProcess is not a real test. It serves complianceServer over
// stdio for the stdio transport case.
func TestHelperProcess(t *testing.T) {
	if os.Getenv("GO_WANT_HELPER_PROCESS") != "1" {
		return
	}
	defer os.Exit(0)

	_ = testutil.ServeStdio(context.Background(), os.Stdin, os.Stdout, complianceServer())
}

type transportCase struct {
	name string
	dial func(t *testing.T) transport.Transport
}

func transports() []transportCase {
	return []transportCase{
		{
			name: "stdio",
			dial: func(t *testing.T) transport.Transport {
				t.Setenv("GO_WANT_HELPER_PROCESS", "1")
				return transport.NewStdio(os.Args[0], []string{"-test.run=TestHelperProcess", "--"}, transport.WithQuiet())
			},
		},
		{
			name: "http",
			dial: func(t *testing.T) transport.Transport {
				hs := testutil.NewHTTPServer(t, complianceServer())
				return transport.NewHTTP(hs.Endpoint)
			},
		},
		{
			name: "http-sse",
			dial: func(t *testing.T) transport.Transport {
				hs := testutil.NewHTTPServer(t, complianceServer(), testutil.WithSSE())
				return transport.NewHTTP(hs.Endpoint)
			},
		},
		{
			name: "websocket",
			dial: func(t *testing.T) transport.Transport {
				ws := testutil.NewWebSocketServer(t, complianceServer())
				return transport.NewWebSocket(ws.URL)
			},
		},
	}
}

func connect(t *testing.T, tc transportCase, opts ...client.Option) (*client.Client, *client.ServerInfo) {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	c := client.New(tc.dial(t), opts...)
	t.Cleanup(func() { _ = c.Close() })

	info, err := c.Connect(ctx)
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	return c, info
}

func TestMCPCompliance_Initialize(t *testing.T) {
	for _, tc := range transports() {
		t.Run(tc.name, func(t *testing.T) {
			_, info := connect(t, tc)

			if info.Name != "compliance-test" || info.Version != "1.0.0" {
				t.Errorf("server = %s %s", info.Name, info.Version)
			}
			if info.ProtocolVersion != protocol.MCPVersion {
				t.Errorf("ProtocolVersion = %q, want %q", info.ProtocolVersion, protocol.MCPVersion)
			}
			if !info.Capabilities.Tools || !info.Capabilities.Resources || !info.Capabilities.Prompts {
				t.Errorf("Capabilities = %+v", info.Capabilities)
			}
		})
	}
}

func TestMCPCompliance_Tools(t *testing.T) {
	for _, tc := range transports() {
		t.Run(tc.name, func(t *testing.T) {
			c, _ := connect(t, tc)
			ctx := context.Background()

			tools, err := c.ListTools(ctx)
			if err != nil {
				t.Fatalf("ListTools: %v", err)
			}
			if len(tools) != 2 || tools[0].Name != "echo" || tools[1].Name != "fail" {
				t.Errorf("tools = %+v", tools)
			}

			result, err := c.CallTool(ctx, "echo", map[string]string{"message": "hello"})
			if err != nil {
				t.Fatalf("CallTool(echo): %v", err)
			}
			if result.IsError || result.Text() != "hello" {
				t.Errorf("echo result = %+v", result)
			}

			result, err = c.CallTool(ctx, "fail", nil)
			if err != nil {
				t.Fatalf("CallTool(fail): %v", err)
			}
			if !result.IsError || !strings.Contains(result.Text(), "node unreachable") {
				t.Errorf("fail result = %+v", result)
			}
		})
	}
}

func TestMCPCompliance_Resources(t *testing.T) {
	for _, tc := range transports() {
		t.Run(tc.name, func(t *testing.T) {
			c, _ := connect(t, tc)
			ctx := context.Background()

			resources, err := c.ListResources(ctx)
			if err != nil {
				t.Fatalf("ListResources: %v", err)
			}
			if len(resources) != 1 || resources[0].URI != "cluster://nodes" {
				t.Errorf("resources = %+v", resources)
			}

			result, err := c.ReadResource(ctx, "cluster://nodes")
			if err != nil {
				t.Fatalf("ReadResource: %v", err)
			}
			if len(result.Contents) != 1 || !strings.HasPrefix(result.Contents[0].Text, "allyrion") {
				t.Errorf("contents = %+v", result.Contents)
			}
		})
	}
}

func TestMCPCompliance_Prompts(t *testing.T) {
	for _, tc := range transports() {
		t.Run(tc.name, func(t *testing.T) {
			c, _ := connect(t, tc)
			ctx := context.Background()

			prompts, err := c.ListPrompts(ctx)
			if err != nil {
				t.Fatalf("ListPrompts: %v", err)
			}
			if len(prompts) != 1 || prompts[0].Name != "diagnose" {
				t.Errorf("prompts = %+v", prompts)
			}

			result, err := c.GetPrompt(ctx, "diagnose", map[string]string{"node": "cargyll"})
			if err != nil {
				t.Fatalf("GetPrompt: %v", err)
			}
			if len(result.Messages) != 1 || result.Messages[0].Content.Text != "Diagnose cargyll" {
				t.Errorf("messages = %+v", result.Messages)
			}
		})
	}
}

func TestMCPCompliance_Ping(t *testing.T) {
	for _, tc := range transports() {
		t.Run(tc.name, func(t *testing.T) {
			c, _ := connect(t, tc)
			if err := c.Ping(context.Background()); err != nil {
				t.Fatalf("Ping: %v", err)
			}
		})
	}
}

func TestMCPCompliance_Errors(t *testing.T) {
	tests := []struct {
		name string
		call func(ctx context.Context, c *client.Client) error
		code int
	}{
		{
			name: "unknown method",
			call: func(ctx context.Context, c *client.Client) error {
				return c.Call(ctx, "cluster/reboot", nil, nil)
			},
			code: protocol.CodeMethodNotFound,
		},
		{
			name: "unknown tool",
			call: func(ctx context.Context, c *client.Client) error {
				_, err := c.CallTool(ctx, "reboot", nil)
				return err
			},
			code: protocol.CodeNotFound,
		},
		{
			name: "unknown resource",
			call: func(ctx context.Context, c *client.Client) error {
				_, err := c.ReadResource(ctx, "cluster://missing")
				return err
			},
			code: protocol.CodeNotFound,
		},
		{
			name: "missing prompt argument",
			call: func(ctx context.Context, c *client.Client) error {
				_, err := c.GetPrompt(ctx, "diagnose", nil)
				return err
			},
			code: protocol.CodeInvalidParams,
		},
	}

	for _, tc := range transports() {
		t.Run(tc.name, func(t *testing.T) {
			c, _ := connect(t, tc)
			for _, tt := range tests {
				t.Run(tt.name, func(t *testing.T) {
					err := tt.call(context.Background(), c)

					var mcpErr *protocol.Error
					if !errors.As(err, &mcpErr) {
						t.Fatalf("error = %v, want *protocol.Error", err)
					}
					if mcpErr.Code != tt.code {
						t.Errorf("Code = %d, want %d", mcpErr.Code, tt.code)
					}
				})
			}

			// The session survives server errors.
			if err := c.Ping(context.Background()); err != nil {
				t.Errorf("Ping after errors: %v", err)
			}
		})
	}
}

func TestMCPCompliance_JSONRPC(t *testing.T) {
	generators := []struct {
		name string
		gen  client.IDGenerator
	}{
		{"integer ids", client.CounterGenerator()},
		{"string ids", client.UUIDGenerator()},
	}

	for _, tc := range transports() {
		for _, g := range generators {
			t.Run(tc.name+"/"+g.name, func(t *testing.T) {
				c, _ := connect(t, tc, client.WithIDGenerator(g.gen))
				ctx := context.Background()

				const n = 16
				var wg sync.WaitGroup
				errs := make(chan error, n)
				for i := range n {
					wg.Add(1)
					go func(i int) {
						defer wg.Done()
						msg := fmt.Sprintf("message-%d", i)
						result, err := c.CallTool(ctx, "echo", map[string]string{"message": msg})
						if err != nil {
							errs <- err
							return
						}
						if got := result.Text(); got != msg {
							errs <- fmt.Errorf("response for %s carried %q", msg, got)
						}
					}(i)
				}
				wg.Wait()
				close(errs)

				for err := range errs {
					t.Error(err)
				}
			})
		}
	}
}

func TestMCPCompliance_Close(t *testing.T) {
	for _, tc := range transports() {
		t.Run(tc.name, func(t *testing.T) {
			c, _ := connect(t, tc)

			if err := c.Close(); err != nil {
				t.Fatalf("Close: %v", err)
			}
			if err := c.Close(); err != nil {
				t.Errorf("second Close: %v", err)
			}
			if err := c.Ping(context.Background()); !errors.Is(err, transport.ErrConnectionClosed) {
				t.Errorf("Ping after Close = %v, want ErrConnectionClosed", err)
			}
		})
	}
}
