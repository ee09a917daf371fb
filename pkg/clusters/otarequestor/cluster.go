// Package otarequestor implements the OTA Software Update Requestor
// Cluster (0x002A): it exposes AnnounceOTAProvider so a commissioner can
// point the device at a provider without waiting for its own discovery
// logic.
//
// Spec Reference: Section 11.20 (OTA Software Update Requestor Cluster)
package otarequestor

import (
	"context"

	"github.com/openfabric-io/devicecore/pkg/datamodel"
	"github.com/openfabric-io/devicecore/pkg/ota"
	"github.com/openfabric-io/devicecore/pkg/ota/wire"
	"github.com/openfabric-io/devicecore/pkg/tlv"
)

// Cluster constants.
const (
	ClusterID       = datamodel.ClusterID(wire.ClusterIDOTARequestor)
	ClusterRevision uint16 = 1
)

// Command IDs.
const (
	CmdAnnounceOTAProvider = datamodel.CommandID(wire.CommandIDAnnounceOTAProvider)
)

// Config provides dependencies for the OTA Requestor cluster.
type Config struct {
	// EndpointID is the endpoint this cluster belongs to (normally 0).
	EndpointID datamodel.EndpointID

	// Requestor is the state machine AnnounceOTAProvider drives.
	Requestor *ota.Requestor
}

// Cluster implements the OTA Software Update Requestor cluster.
type Cluster struct {
	*datamodel.ClusterBase
	config Config

	attrList []datamodel.AttributeEntry
}

// New creates a new OTA Requestor cluster.
func New(cfg Config) *Cluster {
	c := &Cluster{
		ClusterBase: datamodel.NewClusterBase(ClusterID, cfg.EndpointID, ClusterRevision),
		config:      cfg,
	}
	c.attrList = []datamodel.AttributeEntry{}
	return c
}

// AttributeList implements datamodel.Cluster. This cluster exposes no
// attributes of its own beyond the global ones.
func (c *Cluster) AttributeList() []datamodel.AttributeEntry {
	return c.attrList
}

// AcceptedCommandList implements datamodel.Cluster.
func (c *Cluster) AcceptedCommandList() []datamodel.CommandEntry {
	return []datamodel.CommandEntry{
		datamodel.NewCommandEntry(CmdAnnounceOTAProvider, 0, datamodel.PrivilegeAdminister),
	}
}

// GeneratedCommandList implements datamodel.Cluster.
func (c *Cluster) GeneratedCommandList() []datamodel.CommandID {
	return nil
}

// ReadAttribute implements datamodel.Cluster.
func (c *Cluster) ReadAttribute(ctx context.Context, req datamodel.ReadAttributeRequest, w *tlv.Writer) error {
	handled, err := c.ReadGlobalAttribute(ctx, req.Path.Attribute, w,
		c.attrList, c.AcceptedCommandList(), c.GeneratedCommandList())
	if handled || err != nil {
		return err
	}
	return datamodel.ErrUnsupportedAttribute
}

// WriteAttribute implements datamodel.Cluster. No writable attributes.
func (c *Cluster) WriteAttribute(ctx context.Context, req datamodel.WriteAttributeRequest, r *tlv.Reader) error {
	return datamodel.ErrUnsupportedAttribute
}

// InvokeCommand implements datamodel.Cluster.
func (c *Cluster) InvokeCommand(ctx context.Context, req datamodel.InvokeRequest, r *tlv.Reader) ([]byte, error) {
	switch req.Path.Command {
	case CmdAnnounceOTAProvider:
		return nil, c.handleAnnounceOTAProvider(ctx, req, r)
	default:
		return nil, datamodel.ErrUnsupportedCommand
	}
}

func (c *Cluster) handleAnnounceOTAProvider(ctx context.Context, req datamodel.InvokeRequest, r *tlv.Reader) error {
	announce, err := decodeAnnounceOTAProvider(r)
	if err != nil {
		return err
	}
	return c.config.Requestor.AnnounceOTAProvider(ctx, req.FabricIndex(), *announce)
}

// decodeAnnounceOTAProvider reads an AnnounceOTAProviderRequest's fields
// from a reader already positioned on the command's anonymous structure,
// mirroring wire.UnmarshalAnnounceOTAProviderRequest's tag layout.
func decodeAnnounceOTAProvider(r *tlv.Reader) (*wire.AnnounceOTAProviderRequest, error) {
	if err := r.Next(); err != nil {
		return nil, err
	}
	if r.Type() != tlv.ElementTypeStruct {
		return nil, datamodel.ErrInvalidCommand
	}
	if err := r.EnterContainer(); err != nil {
		return nil, err
	}

	a := &wire.AnnounceOTAProviderRequest{}
	for {
		if err := r.Next(); err != nil {
			break
		}
		tag := r.Tag()
		if !tag.IsContext() {
			continue
		}
		switch tag.TagNumber() {
		case 0: // ProviderNodeID
			v, err := r.Uint()
			if err != nil {
				return nil, err
			}
			a.ProviderNodeID = v
		case 1: // VendorID
			v, err := r.Uint()
			if err != nil {
				return nil, err
			}
			a.VendorID = uint16(v)
		case 2: // Reason
			v, err := r.Uint()
			if err != nil {
				return nil, err
			}
			a.Reason = wire.AnnounceReasonEnum(v)
		case 3: // MetadataForNode
			b, err := r.Bytes()
			if err != nil {
				return nil, err
			}
			a.MetadataForNode = b
		case 4: // Endpoint
			v, err := r.Uint()
			if err != nil {
				return nil, err
			}
			a.Endpoint = uint16(v)
		}
	}
	return a, nil
}

var _ datamodel.Cluster = (*Cluster)(nil)
