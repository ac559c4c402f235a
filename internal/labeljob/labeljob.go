// Package labeljob wires configuration, export and launch into the operations the
// shell invokes. Every operation reloads the configuration from disk.
package labeljob

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"

	"github.com/onimtaitsl/venpaa-label-bridge/internal/api"
	"github.com/onimtaitsl/venpaa-label-bridge/internal/config"
	"github.com/onimtaitsl/venpaa-label-bridge/internal/export"
	"github.com/onimtaitsl/venpaa-label-bridge/internal/process"
)

// Kind names a failure class reported to callers.
type Kind string

const (
	KindNone                      Kind = ""
	KindConfigMissingOrIncomplete Kind = "ConfigMissingOrIncomplete"
	KindDirectoryCreateFailed     Kind = "DirectoryCreateFailed"
	KindFileOpenFailed            Kind = "FileOpenFailed"
	KindWriteFailed               Kind = "WriteFailed"
	KindInvalidQuantity           Kind = "InvalidQuantity"
	KindProcessLaunchFailed       Kind = "ProcessLaunchFailed"
	KindRemoteError               Kind = "RemoteError"
	KindConnectionFailed          Kind = "ConnectionFailed"
	KindInternal                  Kind = "Internal"
)

// KindOf classifies err.
func KindOf(err error) Kind {
	var apiErr *api.Error
	switch {
	case err == nil:
		return KindNone
	case errors.Is(err, config.ErrIncomplete):
		return KindConfigMissingOrIncomplete
	case errors.Is(err, export.ErrInvalidQuantity):
		return KindInvalidQuantity
	case errors.Is(err, export.ErrFileOpen):
		return KindFileOpenFailed
	case errors.Is(err, export.ErrWrite):
		return KindWriteFailed
	case errors.Is(err, export.ErrDirectoryCreate):
		return KindDirectoryCreateFailed
	case errors.Is(err, process.ErrLaunchFailed):
		return KindProcessLaunchFailed
	case errors.As(err, &apiErr):
		return KindRemoteError
	case api.IsConnectionError(err):
		return KindConnectionFailed
	default:
		return KindInternal
	}
}

// Launcher opens a file with its associated application.
type Launcher interface {
	Open(target string) error
}

// Service is the entry point for all shell operations.
type Service struct {
	store    *config.Store
	launcher Launcher
	client   *api.Client
}

// New returns a Service. A nil launcher uses the platform default opener.
func New(store *config.Store, launcher Launcher, client *api.Client) *Service {
	if launcher == nil {
		launcher = process.Opener{}
	}
	if client == nil {
		client = api.NewClient()
	}
	return &Service{store: store, launcher: launcher, client: client}
}

// Config loads the configuration, repairing the file when needed.
func (s *Service) Config() (*config.Config, error) {
	return s.store.Load()
}

// PrintResult reports what Print did. Exported is true once the data file is complete,
// even if the launch step then failed.
type PrintResult struct {
	Summary  *export.Summary
	Exported bool
	Launched bool
}

// Print exports items to the configured data file and opens the configured template.
// A configuration failure returns before any file is touched. When the launch fails
// the returned result still reports the completed export.
func (s *Service) Print(items []export.Item) (*PrintResult, error) {
	cfg, err := s.store.Load()
	if err != nil {
		return nil, err
	}

	sum, err := export.Export(cfg.DataFilePath, items)
	if err != nil {
		log.Printf("[labeljob] export failed: %v", err)
		return nil, err
	}
	result := &PrintResult{Summary: sum, Exported: true}

	if err := s.launcher.Open(cfg.TemplateFilePath); err != nil {
		log.Printf("[labeljob] export %s written but launch failed: %v", sum.JobID, err)
		return result, err
	}
	result.Launched = true
	return result, nil
}

// Search queries the configured search endpoint.
func (s *Service) Search(ctx context.Context, term, token string) ([]api.Product, error) {
	cfg, err := s.store.Load()
	if err != nil {
		return nil, err
	}
	return s.client.SearchProducts(ctx, cfg.SearchAPIURL, term, token)
}

// Login authenticates against the configured login endpoint.
func (s *Service) Login(ctx context.Context, req api.LoginRequest) (json.RawMessage, error) {
	cfg, err := s.store.Load()
	if err != nil {
		return nil, err
	}
	return s.client.Login(ctx, cfg.LoginAPIURL, req)
}

// Locations fetches the configured locations endpoint.
func (s *Service) Locations(ctx context.Context) (json.RawMessage, error) {
	cfg, err := s.store.Load()
	if err != nil {
		return nil, err
	}
	return s.client.Locations(ctx, cfg.LocationsAPIURL)
}

// Describe renders err with its kind for display.
func Describe(err error) string {
	kind := KindOf(err)
	if kind == KindNone {
		return ""
	}
	return fmt.Sprintf("%s: %v", kind, err)
}
