package ota

import (
	"time"

	"github.com/openfabric-io/devicecore/pkg/fabric"
	"github.com/openfabric-io/devicecore/pkg/kvstore"
	"github.com/pion/logging"
)

// RequestorConfig holds all configuration for a Requestor.
type RequestorConfig struct {
	// Identity - Required. Used to derive update tokens and to fill
	// QueryImageRequest's vendor/product fields.
	VendorID        fabric.VendorID
	ProductID       uint16
	SoftwareVersion uint32

	// NodeID is this node's operational identity, used to derive update
	// tokens (Section 11.20.3.1). Required.
	NodeID fabric.NodeID

	// FabricTable is consulted to resolve the FabricIndex of a default
	// provider into NodeID/session parameters. Required.
	FabricTable *fabric.Table

	// Storage persists default providers and the in-progress update
	// record. Required.
	Storage kvstore.Store

	// Collaborators - Required
	SessionInitiator SessionInitiator
	Provider         ProviderClient
	Downloader       Downloader
	Driver           Driver

	// QueryTimeout bounds a QueryImage round trip. Defaults to 10s.
	QueryTimeout time.Duration

	// ApplyTimeout bounds an ApplyUpdateRequest round trip. Defaults to 10s.
	ApplyTimeout time.Duration

	// LoggerFactory creates loggers. If nil, logging is disabled.
	LoggerFactory logging.LoggerFactory
}

// Validate checks the configuration for errors.
func (c *RequestorConfig) Validate() error {
	if c.FabricTable == nil {
		return ErrInvalidConfig
	}
	if c.Storage == nil {
		return ErrInvalidConfig
	}
	if c.SessionInitiator == nil || c.Provider == nil || c.Downloader == nil || c.Driver == nil {
		return ErrInvalidConfig
	}
	return nil
}

// applyDefaults fills in default values for unset fields.
func (c *RequestorConfig) applyDefaults() {
	if c.QueryTimeout == 0 {
		c.QueryTimeout = 10 * time.Second
	}
	if c.ApplyTimeout == 0 {
		c.ApplyTimeout = 10 * time.Second
	}
}
