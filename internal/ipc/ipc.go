package ipc

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net"
	"runtime"
	"sync"

	"github.com/go-playground/validator/v10"

	"github.com/onimtaitsl/venpaa-label-bridge/internal/api"
	"github.com/onimtaitsl/venpaa-label-bridge/internal/export"
	"github.com/onimtaitsl/venpaa-label-bridge/internal/labeljob"
)

// maxLineSize bounds a single request line.
const maxLineSize = 4 << 20

var validate = validator.New()

// Request is a single IPC request line sent by the shell.
type Request struct {
	Method string          `json:"method"`
	Params json.RawMessage `json:"params,omitempty"`
}

// Response is the IPC response written back to the shell.
type Response struct {
	Status string `json:"status"`
	Kind   string `json:"kind,omitempty"`
	Error  string `json:"error,omitempty"`
	Data   any    `json:"data,omitempty"`
}

type PrintParams struct {
	Items []export.Item `json:"items" validate:"required,min=1"`
}

type SearchParams struct {
	Term  string `json:"term" validate:"required"`
	Token string `json:"token,omitempty"`
}

// PrintData is returned by print_labels, also alongside a ProcessLaunchFailed error.
type PrintData struct {
	JobID    string `json:"job_id"`
	Path     string `json:"path"`
	Lines    int    `json:"lines"`
	Launched bool   `json:"launched"`
}

// ConfigData mirrors config.Config with JSON names.
type ConfigData struct {
	SearchAPIURL     string `json:"search_api_url"`
	DataFilePath     string `json:"data_file_path"`
	TemplateFilePath string `json:"template_file_path"`
	LoginAPIURL      string `json:"login_api_url"`
	LocationsAPIURL  string `json:"locations_api_url"`
}

// Server exposes labeljob operations over a Unix domain socket (Linux/macOS) or a
// named pipe (Windows). Requests on one connection are handled in order.
type Server struct {
	socketPath string
	listener   net.Listener
	service    *labeljob.Service
	mu         sync.Mutex
}

// SocketPath returns the platform default IPC endpoint.
func SocketPath() string {
	if runtime.GOOS == "windows" {
		return `\\.\pipe\labelbridge`
	}
	return "/tmp/labelbridge.sock"
}

// NewServer creates the IPC listener and returns a Server ready to call Serve on.
func NewServer(socketPath string, service *labeljob.Service) (*Server, error) {
	ln, err := newListener(socketPath)
	if err != nil {
		return nil, fmt.Errorf("create IPC listener: %w", err)
	}
	return &Server{
		socketPath: socketPath,
		listener:   ln,
		service:    service,
	}, nil
}

// Serve accepts connections until ctx is cancelled. Returns nil on clean shutdown.
func (s *Server) Serve(ctx context.Context) error {
	go func() {
		<-ctx.Done()
		s.listener.Close()
	}()

	log.Printf("[ipc] listening on %s", s.socketPath)
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return nil
			default:
				return fmt.Errorf("IPC accept: %w", err)
			}
		}
		go s.handleConnection(ctx, conn)
	}
}

// Close closes the listener and removes the socket file (Unix) or pipe handle (Windows).
func (s *Server) Close() error {
	err := s.listener.Close()
	cleanupListener(s.socketPath)
	return err
}

func (s *Server) handleConnection(ctx context.Context, conn net.Conn) {
	defer conn.Close()
	scanner := bufio.NewScanner(conn)
	scanner.Buffer(make([]byte, 64*1024), maxLineSize)
	encoder := json.NewEncoder(conn)

	for scanner.Scan() {
		var req Request
		if err := json.Unmarshal(scanner.Bytes(), &req); err != nil {
			encoder.Encode(Response{Status: "error", Error: "malformed request"}) //nolint:errcheck
			continue
		}
		encoder.Encode(s.handleRequest(ctx, req)) //nolint:errcheck
	}
}

func (s *Server) handleRequest(ctx context.Context, req Request) Response {
	switch req.Method {
	case "health":
		return Response{Status: "ok"}

	case "get_config":
		cfg, err := s.service.Config()
		if err != nil {
			return failure(err)
		}
		return ok(ConfigData{
			SearchAPIURL:     cfg.SearchAPIURL,
			DataFilePath:     cfg.DataFilePath,
			TemplateFilePath: cfg.TemplateFilePath,
			LoginAPIURL:      cfg.LoginAPIURL,
			LocationsAPIURL:  cfg.LocationsAPIURL,
		})

	case "print_labels":
		var p PrintParams
		if resp, bad := decodeParams(req.Params, &p); bad {
			return resp
		}
		return s.printLabels(p.Items)

	case "search_products":
		var p SearchParams
		if resp, bad := decodeParams(req.Params, &p); bad {
			return resp
		}
		products, err := s.service.Search(ctx, p.Term, p.Token)
		if err != nil {
			return failure(err)
		}
		return ok(products)

	case "fetch_locations":
		locations, err := s.service.Locations(ctx)
		if err != nil {
			return failure(err)
		}
		return ok(locations)

	case "login":
		var p api.LoginRequest
		resp, bad := decodeParams(req.Params, &p)
		defer p.Destroy()
		if bad {
			return resp
		}
		body, err := s.service.Login(ctx, p)
		if err != nil {
			return failure(err)
		}
		return ok(body)

	default:
		return Response{Status: "error", Error: fmt.Sprintf("unknown method: %s", req.Method)}
	}
}

// printLabels serialises exports from concurrent connections; they share one output file.
func (s *Server) printLabels(items []export.Item) Response {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.service.Print(items)
	if err != nil {
		resp := failure(err)
		if res != nil && res.Exported {
			resp.Data = printData(res)
		}
		return resp
	}
	return ok(printData(res))
}

func printData(res *labeljob.PrintResult) PrintData {
	return PrintData{
		JobID:    res.Summary.JobID,
		Path:     res.Summary.Path,
		Lines:    res.Summary.Lines,
		Launched: res.Launched,
	}
}

// decodeParams unmarshals and validates params into dst. bad is true when resp
// should be returned as is.
func decodeParams(params json.RawMessage, dst any) (resp Response, bad bool) {
	if len(params) == 0 {
		params = json.RawMessage("{}")
	}
	if err := json.Unmarshal(params, dst); err != nil {
		return Response{Status: "error", Error: fmt.Sprintf("invalid params: %v", err)}, true
	}
	if err := validate.Struct(dst); err != nil {
		return Response{Status: "error", Error: fmt.Sprintf("invalid params: %v", err)}, true
	}
	return Response{}, false
}

func ok(data any) Response {
	return Response{Status: "ok", Data: data}
}

func failure(err error) Response {
	return Response{Status: "error", Kind: string(labeljob.KindOf(err)), Error: err.Error()}
}
