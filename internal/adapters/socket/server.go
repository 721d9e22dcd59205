package socket

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"os"
	"sync"
	"time"
)

// Service is what the daemon exposes over the socket. Thread safety is the
// implementor's responsibility.
type Service interface {
	Flags(ctx context.Context, p ViewParams) (FlagsResult, error)
	Complete(ctx context.Context, p ViewParams) (CompleteResult, error)
	Update(ctx context.Context, p ViewParams) (UpdateResult, error)
	Declaration(ctx context.Context, p ViewParams) (DeclarationResult, error)
	Headers(ctx context.Context, p ViewParams) (HeadersResult, error)
	Clear(file string) ClearResult
	Stats() StatsResult
	ProjectRoot() string
}

// Server is the daemon that listens on a Unix socket and serves requests.
type Server struct {
	svc      Service
	log      *slog.Logger
	listener net.Listener
	sockPath string
	started  time.Time

	ctx    context.Context
	cancel context.CancelFunc

	done         chan struct{}
	shutdownCh   chan struct{} // closed when a remote shutdown request is received
	shutdownOnce sync.Once
	stopOnce     sync.Once
	wg           sync.WaitGroup
}

// NewServer creates a daemon server backed by svc.
func NewServer(svc Service, sockPath string, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Server{
		svc:        svc,
		log:        logger.With("component", "socket"),
		sockPath:   sockPath,
		ctx:        ctx,
		cancel:     cancel,
		done:       make(chan struct{}),
		shutdownCh: make(chan struct{}),
	}
}

// Start begins listening on the Unix socket. It handles stale sockets by
// attempting a connection first: if the connection fails, the stale socket
// is removed before binding.
func (s *Server) Start() error {
	if _, err := os.Stat(s.sockPath); err == nil {
		conn, err := net.DialTimeout("unix", s.sockPath, 500*time.Millisecond)
		if err == nil {
			conn.Close()
			return fmt.Errorf("daemon already running at %s", s.sockPath)
		}
		os.Remove(s.sockPath)
	}

	ln, err := net.Listen("unix", s.sockPath)
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}
	s.listener = ln
	s.started = time.Now()

	s.wg.Add(1)
	go s.acceptLoop()
	return nil
}

// Stop gracefully shuts down the server, closing the listener and removing the socket file.
// Idempotent.
func (s *Server) Stop() error {
	s.stopOnce.Do(func() {
		close(s.done)
		s.cancel()
		if s.listener != nil {
			s.listener.Close()
		}
		s.wg.Wait()
		os.Remove(s.sockPath)
	})
	return nil
}

// ShutdownCh returns a channel that is closed when a remote shutdown request
// is received. The daemon's main goroutine should select on this alongside
// OS signals so the process actually exits after a remote stop.
func (s *Server) ShutdownCh() <-chan struct{} {
	return s.shutdownCh
}

// Addr returns the socket path the server is listening on.
func (s *Server) Addr() string {
	return s.sockPath
}

func (s *Server) acceptLoop() {
	defer s.wg.Done()
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			select {
			case <-s.done:
				return
			default:
				continue
			}
		}
		s.wg.Add(1)
		go s.handleConn(conn)
	}
}

func (s *Server) handleConn(conn net.Conn) {
	defer s.wg.Done()
	defer conn.Close()

	finished := make(chan struct{})
	defer close(finished)
	go func() {
		select {
		case <-s.done:
			conn.Close() // unblock the scanner
		case <-finished:
		}
	}()

	scanner := bufio.NewScanner(conn)
	scanner.Buffer(make([]byte, 4*1024*1024), 4*1024*1024) // whole buffers travel in update/complete

	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var req Request
		if err := json.Unmarshal(line, &req); err != nil {
			s.writeResponse(conn, Response{Error: "invalid request JSON"})
			continue
		}

		resp := s.handleRequest(req)
		s.writeResponse(conn, resp)

		if req.Method == MethodShutdown {
			s.shutdownOnce.Do(func() { close(s.shutdownCh) })
			return
		}
	}
}

func (s *Server) handleRequest(req Request) Response {
	switch req.Method {
	case MethodHealth:
		return s.handleHealth(req)
	case MethodShutdown:
		return Response{ID: req.ID, Result: struct{}{}}
	case MethodFlags:
		return s.handleView(req, func(ctx context.Context, p ViewParams) (interface{}, error) {
			return s.svc.Flags(ctx, p)
		})
	case MethodComplete:
		return s.handleView(req, func(ctx context.Context, p ViewParams) (interface{}, error) {
			return s.svc.Complete(ctx, p)
		})
	case MethodUpdate:
		return s.handleView(req, func(ctx context.Context, p ViewParams) (interface{}, error) {
			return s.svc.Update(ctx, p)
		})
	case MethodDeclaration:
		return s.handleView(req, func(ctx context.Context, p ViewParams) (interface{}, error) {
			return s.svc.Declaration(ctx, p)
		})
	case MethodHeaders:
		return s.handleView(req, func(ctx context.Context, p ViewParams) (interface{}, error) {
			return s.svc.Headers(ctx, p)
		})
	case MethodClear:
		return s.handleView(req, func(_ context.Context, p ViewParams) (interface{}, error) {
			return s.svc.Clear(p.File), nil
		})
	case MethodStats:
		return Response{ID: req.ID, Result: s.svc.Stats()}
	default:
		return Response{ID: req.ID, Error: fmt.Sprintf("unknown method: %s", req.Method)}
	}
}

func (s *Server) handleHealth(req Request) Response {
	return Response{
		ID: req.ID,
		Result: HealthResult{
			Status:      "ok",
			ProjectRoot: s.svc.ProjectRoot(),
			Entries:     s.svc.Stats().Entries,
			Uptime:      time.Since(s.started).Round(time.Second).String(),
		},
	}
}

func (s *Server) handleView(req Request, fn func(context.Context, ViewParams) (interface{}, error)) Response {
	var params ViewParams
	if err := decodeInto(req.Params, &params); err != nil {
		return Response{ID: req.ID, Error: fmt.Sprintf("invalid %s params", req.Method)}
	}
	if params.File == "" {
		return Response{ID: req.ID, Error: fmt.Sprintf("%s: file is required", req.Method)}
	}
	result, err := fn(s.ctx, params)
	if err != nil {
		s.log.Debug("request failed", "method", req.Method, "file", params.File, "err", err)
		return Response{ID: req.ID, Error: err.Error()}
	}
	return Response{ID: req.ID, Result: result}
}

func (s *Server) writeResponse(conn net.Conn, resp Response) {
	data, err := json.Marshal(resp)
	if err != nil {
		return
	}
	data = append(data, '\n')
	conn.Write(data)
}
