package socket

import (
	"bufio"
	"encoding/json"
	"fmt"
	"net"
	"time"

	"github.com/google/uuid"
)

// Timeouts for one request/response roundtrip. Flags may run cmake.
const (
	defaultTimeout = 5 * time.Second
	engineTimeout  = 30 * time.Second
	flagsTimeout   = 2 * time.Minute
)

// Client connects to the ccflags daemon over a Unix socket.
type Client struct {
	sockPath string
}

// NewClient creates a client that will connect to the given socket path.
func NewClient(sockPath string) *Client {
	return &Client{sockPath: sockPath}
}

// Health sends a health check request.
func (c *Client) Health() (*HealthResult, error) {
	var result HealthResult
	if err := c.do(MethodHealth, nil, &result, defaultTimeout); err != nil {
		return nil, err
	}
	return &result, nil
}

// Flags resolves the flags of a file.
func (c *Client) Flags(p ViewParams) (*FlagsResult, error) {
	var result FlagsResult
	if err := c.do(MethodFlags, p, &result, flagsTimeout); err != nil {
		return nil, err
	}
	return &result, nil
}

// Complete asks for completions at p.Row, p.Col.
func (c *Client) Complete(p ViewParams) (*CompleteResult, error) {
	var result CompleteResult
	if err := c.do(MethodComplete, p, &result, flagsTimeout+engineTimeout); err != nil {
		return nil, err
	}
	return &result, nil
}

// Update re-parses a file and returns its diagnostics.
func (c *Client) Update(p ViewParams) (*UpdateResult, error) {
	var result UpdateResult
	if err := c.do(MethodUpdate, p, &result, flagsTimeout+engineTimeout); err != nil {
		return nil, err
	}
	return &result, nil
}

// Declaration asks where the symbol at p.Row, p.Col is declared.
func (c *Client) Declaration(p ViewParams) (*DeclarationResult, error) {
	var result DeclarationResult
	if err := c.do(MethodDeclaration, p, &result, engineTimeout); err != nil {
		return nil, err
	}
	return &result, nil
}

// Headers lists the headers in a file's include folders. Flags may need to
// be resolved first, so it uses the flags timeout.
func (c *Client) Headers(p ViewParams) (*HeadersResult, error) {
	var result HeadersResult
	if err := c.do(MethodHeaders, p, &result, flagsTimeout); err != nil {
		return nil, err
	}
	return &result, nil
}

// Clear drops the cached config of a file.
func (c *Client) Clear(file string) (*ClearResult, error) {
	var result ClearResult
	if err := c.do(MethodClear, ViewParams{File: file}, &result, defaultTimeout); err != nil {
		return nil, err
	}
	return &result, nil
}

// Stats sends a stats request.
func (c *Client) Stats() (*StatsResult, error) {
	var result StatsResult
	if err := c.do(MethodStats, nil, &result, defaultTimeout); err != nil {
		return nil, err
	}
	return &result, nil
}

// Shutdown sends a shutdown request to the daemon.
func (c *Client) Shutdown() error {
	_, err := c.call(Request{ID: uuid.NewString(), Method: MethodShutdown}, defaultTimeout)
	return err
}

// Ping checks if the daemon is reachable.
func (c *Client) Ping() bool {
	conn, err := net.DialTimeout("unix", c.sockPath, 500*time.Millisecond)
	if err != nil {
		return false
	}
	conn.Close()
	return true
}

func (c *Client) do(method string, params, out interface{}, timeout time.Duration) error {
	req := Request{ID: uuid.NewString(), Method: method, Params: params}
	resp, err := c.call(req, timeout)
	if err != nil {
		return err
	}
	if err := decodeInto(resp.Result, out); err != nil {
		return fmt.Errorf("unmarshal result: %w", err)
	}
	return nil
}

func (c *Client) call(req Request, timeout time.Duration) (*Response, error) {
	conn, err := net.DialTimeout("unix", c.sockPath, 2*time.Second)
	if err != nil {
		return nil, fmt.Errorf("connect: %w", err)
	}
	defer conn.Close()

	conn.SetDeadline(time.Now().Add(timeout))

	data, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}
	data = append(data, '\n')
	if _, err := conn.Write(data); err != nil {
		return nil, fmt.Errorf("write: %w", err)
	}

	scanner := bufio.NewScanner(conn)
	scanner.Buffer(make([]byte, 4*1024*1024), 4*1024*1024)
	if !scanner.Scan() {
		if err := scanner.Err(); err != nil {
			return nil, fmt.Errorf("read: %w", err)
		}
		return nil, fmt.Errorf("empty response")
	}

	var resp Response
	if err := json.Unmarshal(scanner.Bytes(), &resp); err != nil {
		return nil, fmt.Errorf("unmarshal response: %w", err)
	}
	if resp.ID != req.ID {
		return nil, fmt.Errorf("response id %q does not match request %q", resp.ID, req.ID)
	}
	if resp.Error != "" {
		return nil, fmt.Errorf("server error: %s", resp.Error)
	}
	return &resp, nil
}
