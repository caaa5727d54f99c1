// Package client wires configuration, stores and services into the
// high-level API the commands consume.
package client

import (
	"github.com/TheMichaelB/artvault/internal/config"
	"github.com/TheMichaelB/artvault/internal/crypto"
	"github.com/TheMichaelB/artvault/internal/events"
	"github.com/TheMichaelB/artvault/internal/imaging"
	"github.com/TheMichaelB/artvault/internal/keystore"
	"github.com/TheMichaelB/artvault/internal/projectdb"
	"github.com/TheMichaelB/artvault/internal/services/apikey"
	"github.com/TheMichaelB/artvault/internal/services/library"
	"github.com/TheMichaelB/artvault/internal/transport"
)

// Client provides the high-level API for artvault operations.
type Client struct {
	Keys    *apikey.Service
	Library *library.Service

	config   *config.Config
	logger   *events.Logger
	codec    *imaging.Codec
	keys     keystore.Store
	projects projectdb.Store
}

// New creates a client with every dependency constructed from config.
func New(cfg *config.Config, logger *events.Logger) (*Client, error) {
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, err
	}

	validator := transport.NewGeminiClient(&cfg.API, logger)
	cryptoProvider := crypto.NewProvider()

	// The primary keystore may be unavailable (locked database, bad
	// permissions); the key service degrades to the file tier on first
	// failure, so construction trouble here is not fatal.
	var primary keystore.Store
	primary, err := keystore.NewSQLiteStore(cfg.KeystorePath(), logger)
	if err != nil {
		logger.WithError(err).Warn("Primary keystore unavailable")
		primary = keystore.Unavailable(err)
	}

	fallback, err := keystore.NewFileStore(cfg.FallbackKeystorePath(), logger)
	if err != nil {
		return nil, err
	}

	projectStore, err := projectdb.NewSQLiteStore(cfg.DatabasePath(), cfg.Storage.MaxTotalSize, logger)
	if err != nil {
		return nil, err
	}

	codec, err := imaging.NewCodec(cfg.Images.Workers, logger)
	if err != nil {
		return nil, err
	}

	keyService := apikey.NewService(cryptoProvider, primary, fallback, validator, logger)
	libraryService := library.NewService(projectStore, codec, cfg, logger)

	return &Client{
		Keys:     keyService,
		Library:  libraryService,
		config:   cfg,
		logger:   logger,
		codec:    codec,
		keys:     primary,
		projects: projectStore,
	}, nil
}

// Config returns the active configuration.
func (c *Client) Config() *config.Config {
	return c.config
}

// Close releases every held resource.
func (c *Client) Close() error {
	var firstErr error
	if err := c.codec.Close(); err != nil {
		firstErr = err
	}
	if err := c.keys.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	if err := c.projects.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}
