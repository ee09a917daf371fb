package ota

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/openfabric-io/devicecore/pkg/fabric"
	"github.com/openfabric-io/devicecore/pkg/kvstore"
)

// KV keys used by the OTA requestor. Persistence is best-effort: a missing
// key is not an error, and a malformed record is logged and treated as
// missing rather than propagated as a fatal error, since OTA state is
// recoverable (the requestor simply re-queries).
const (
	keyDefaultProviders = "O/dflt"
	keyCurrentUpdate    = "O/cur"
	keyUpdateToken      = "O/tok"
)

// maxUpdateTokenSize bounds the update token persisted with O/cur and
// O/tok; Matter update tokens are 32 bytes (spec 11.20.3.1) but this
// allows for shorter provider-issued tokens too.
const maxUpdateTokenSize = 32

// ProviderLocation identifies an OTA Provider: a node, reached on one of the
// requestor's fabrics, at a specific endpoint.
type ProviderLocation struct {
	FabricIndex fabric.FabricIndex
	NodeID      fabric.NodeID
	Endpoint    uint16
}

func (p ProviderLocation) marshal() []byte {
	buf := make([]byte, 11)
	buf[0] = uint8(p.FabricIndex)
	binary.LittleEndian.PutUint64(buf[1:9], uint64(p.NodeID))
	binary.LittleEndian.PutUint16(buf[9:11], p.Endpoint)
	return buf
}

func unmarshalProviderLocation(data []byte) (ProviderLocation, []byte, error) {
	if len(data) < 11 {
		return ProviderLocation{}, nil, fmt.Errorf("ota: corrupt provider location record")
	}
	p := ProviderLocation{
		FabricIndex: fabric.FabricIndex(data[0]),
		NodeID:      fabric.NodeID(binary.LittleEndian.Uint64(data[1:9])),
		Endpoint:    binary.LittleEndian.Uint16(data[9:11]),
	}
	return p, data[11:], nil
}

// UpdateRecord is the in-progress or applied update tracked across the
// Downloading/Applying/RollingBack states, persisted so it survives the
// reboot that a successful apply triggers.
type UpdateRecord struct {
	Provider      ProviderLocation
	UpdateToken   []byte
	TargetVersion uint32
}

func (u UpdateRecord) marshal() ([]byte, error) {
	if len(u.UpdateToken) > maxUpdateTokenSize {
		return nil, fmt.Errorf("ota: update token exceeds %d bytes", maxUpdateTokenSize)
	}
	buf := append([]byte(nil), u.Provider.marshal()...)
	buf = append(buf, uint8(len(u.UpdateToken)))
	buf = append(buf, u.UpdateToken...)
	var v [4]byte
	binary.LittleEndian.PutUint32(v[:], u.TargetVersion)
	buf = append(buf, v[:]...)
	return buf, nil
}

func unmarshalUpdateRecord(data []byte) (*UpdateRecord, error) {
	provider, rest, err := unmarshalProviderLocation(data)
	if err != nil {
		return nil, err
	}
	if len(rest) < 1 {
		return nil, fmt.Errorf("ota: corrupt update record")
	}
	tokenLen := int(rest[0])
	rest = rest[1:]
	if len(rest) < tokenLen+4 {
		return nil, fmt.Errorf("ota: corrupt update record")
	}
	token := append([]byte(nil), rest[:tokenLen]...)
	rest = rest[tokenLen:]
	version := binary.LittleEndian.Uint32(rest[:4])

	return &UpdateRecord{
		Provider:      provider,
		UpdateToken:   token,
		TargetVersion: version,
	}, nil
}

// loadDefaultProviders reads the O/dflt list. A missing or malformed record
// is treated as an empty list.
func loadDefaultProviders(store kvstore.Store, log func(format string, args ...interface{})) []ProviderLocation {
	data, err := store.Get(keyDefaultProviders)
	if errors.Is(err, kvstore.ErrNotFound) {
		return nil
	}
	if err != nil {
		if log != nil {
			log("failed to load default providers: %v", err)
		}
		return nil
	}

	var providers []ProviderLocation
	for len(data) > 0 {
		p, rest, err := unmarshalProviderLocation(data)
		if err != nil {
			if log != nil {
				log("discarding malformed default provider list: %v", err)
			}
			return nil
		}
		providers = append(providers, p)
		data = rest
	}
	return providers
}

func storeDefaultProviders(store kvstore.Store, providers []ProviderLocation) error {
	var buf []byte
	for _, p := range providers {
		buf = append(buf, p.marshal()...)
	}
	return store.Set(keyDefaultProviders, buf)
}

// AddDefaultProvider adds provider to the persisted default-provider list
// for its fabric, replacing any existing entry for the same fabric index.
func (r *Requestor) AddDefaultProvider(provider ProviderLocation) error {
	r.providersMu.Lock()
	defer r.providersMu.Unlock()

	providers := loadDefaultProviders(r.config.Storage, r.logf)
	filtered := providers[:0]
	for _, p := range providers {
		if p.FabricIndex != provider.FabricIndex {
			filtered = append(filtered, p)
		}
	}
	filtered = append(filtered, provider)
	return storeDefaultProviders(r.config.Storage, filtered)
}

// RemoveDefaultProvider removes the default provider entry associated with
// fabricIndex, if any. This is invoked when a fabric is removed from the
// device so a stale provider is not retried against a fabric that no
// longer exists.
func (r *Requestor) RemoveDefaultProvider(fabricIndex fabric.FabricIndex) error {
	r.providersMu.Lock()
	defer r.providersMu.Unlock()

	providers := loadDefaultProviders(r.config.Storage, r.logf)
	filtered := providers[:0]
	for _, p := range providers {
		if p.FabricIndex != fabricIndex {
			filtered = append(filtered, p)
		}
	}
	return storeDefaultProviders(r.config.Storage, filtered)
}

// ClearDefaultProviders removes all persisted default providers.
func (r *Requestor) ClearDefaultProviders() error {
	r.providersMu.Lock()
	defer r.providersMu.Unlock()
	return r.config.Storage.Delete(keyDefaultProviders)
}

// DefaultProviders returns a copy of the persisted default-provider list.
// Unlike the rest of Requestor's state, this may safely be called from a
// goroutine other than the owning one.
func (r *Requestor) DefaultProviders() []ProviderLocation {
	r.providersMu.Lock()
	defer r.providersMu.Unlock()
	return loadDefaultProviders(r.config.Storage, r.logf)
}

func (r *Requestor) loadCurrentUpdate() *UpdateRecord {
	data, err := r.config.Storage.Get(keyCurrentUpdate)
	if errors.Is(err, kvstore.ErrNotFound) {
		return nil
	}
	if err != nil {
		r.logf("failed to load current update record: %v", err)
		return nil
	}
	rec, err := unmarshalUpdateRecord(data)
	if err != nil {
		r.logf("discarding malformed current update record: %v", err)
		return nil
	}
	return rec
}

func (r *Requestor) storeCurrentUpdate(rec *UpdateRecord) error {
	if rec == nil {
		return r.config.Storage.Delete(keyCurrentUpdate)
	}
	data, err := rec.marshal()
	if err != nil {
		return err
	}
	return r.config.Storage.Set(keyCurrentUpdate, data)
}

func (r *Requestor) storeUpdateToken(token []byte) error {
	if len(token) == 0 {
		return r.config.Storage.Delete(keyUpdateToken)
	}
	return r.config.Storage.Set(keyUpdateToken, token)
}

func (r *Requestor) loadUpdateToken() []byte {
	data, err := r.config.Storage.Get(keyUpdateToken)
	if err != nil {
		return nil
	}
	return data
}
