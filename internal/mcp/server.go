// Package mcp exposes global search as tools on a Model Context Protocol
// server.
package mcp

import (
	"context"

	sdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"globalsearch/internal/community"
	"globalsearch/internal/logger"
	"globalsearch/internal/search"
	"globalsearch/internal/store"
)

// Searcher answers queries and lists the communities a query would use.
type Searcher interface {
	Search(ctx context.Context, query string) (*search.Result, error)
	SelectAtLevel(ctx context.Context, level int) ([]community.Report, error)
}

var _ Searcher = (*search.GlobalSearch)(nil)

// Artifacts is the shared snapshot cache the searcher reads through.
type Artifacts interface {
	Refresh(ctx context.Context) (*store.Snapshot, error)
}

var _ Artifacts = (*store.Cache)(nil)

type ServerConfig struct {
	Searcher     Searcher
	Artifacts    Artifacts
	DefaultLevel int
	Version      string
	Logger       *logger.Logger
}

type Server struct {
	searcher     Searcher
	artifacts    Artifacts
	defaultLevel int
	log          *logger.Logger
	mcp          *sdk.Server
}

func NewServer(cfg ServerConfig) *Server {
	log := cfg.Logger
	if log == nil {
		log = logger.NewNop()
	}
	s := &Server{
		searcher:     cfg.Searcher,
		artifacts:    cfg.Artifacts,
		defaultLevel: cfg.DefaultLevel,
		log:          log,
		mcp: sdk.NewServer(&sdk.Implementation{
			Name:    "globalsearch",
			Version: cfg.Version,
		}, nil),
	}
	s.registerTools()
	return s
}

func (s *Server) Run(ctx context.Context, transport sdk.Transport) error {
	return s.mcp.Run(ctx, transport)
}
