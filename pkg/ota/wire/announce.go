package wire

import (
	"bytes"

	"github.com/openfabric-io/devicecore/pkg/tlv"
)

// AnnounceReasonEnum is the Reason field of AnnounceOTAProvider.
// Spec Section 11.20.6.3.1.
type AnnounceReasonEnum uint8

const (
	AnnounceReasonSimpleAnnouncement       AnnounceReasonEnum = 0
	AnnounceReasonUpdateAvailable          AnnounceReasonEnum = 1
	AnnounceReasonUrgentUpdateAvailable    AnnounceReasonEnum = 2
)

// TLV context tags for AnnounceOTAProvider (Spec Section 11.20.6.3.1).
const (
	tagAnnounceProviderNodeID  = 0
	tagAnnounceVendorID        = 1
	tagAnnounceReason          = 2
	tagAnnounceMetadataForNode = 3
	tagAnnounceEndpoint        = 4
)

// AnnounceOTAProviderRequest is sent to a requestor (typically by a
// commissioner) to point it at a provider without waiting for its own
// discovery/polling logic.
type AnnounceOTAProviderRequest struct {
	ProviderNodeID   uint64
	VendorID         uint16
	Reason           AnnounceReasonEnum
	MetadataForNode  []byte
	Endpoint         uint16
}

// MarshalTLV encodes the request to Matter TLV bytes.
func (a *AnnounceOTAProviderRequest) MarshalTLV() ([]byte, error) {
	var buf bytes.Buffer
	w := tlv.NewWriter(&buf)
	if err := w.StartStructure(tlv.Anonymous()); err != nil {
		return nil, err
	}
	if err := w.PutUint(tlv.ContextTag(tagAnnounceProviderNodeID), a.ProviderNodeID); err != nil {
		return nil, err
	}
	if err := w.PutUint(tlv.ContextTag(tagAnnounceVendorID), uint64(a.VendorID)); err != nil {
		return nil, err
	}
	if err := w.PutUint(tlv.ContextTag(tagAnnounceReason), uint64(a.Reason)); err != nil {
		return nil, err
	}
	if a.MetadataForNode != nil {
		if err := w.PutBytes(tlv.ContextTag(tagAnnounceMetadataForNode), a.MetadataForNode); err != nil {
			return nil, err
		}
	}
	if err := w.PutUint(tlv.ContextTag(tagAnnounceEndpoint), uint64(a.Endpoint)); err != nil {
		return nil, err
	}
	return buf.Bytes(), w.EndContainer()
}

// UnmarshalAnnounceOTAProviderRequest decodes an AnnounceOTAProviderRequest
// from TLV bytes.
func UnmarshalAnnounceOTAProviderRequest(data []byte) (*AnnounceOTAProviderRequest, error) {
	r := tlv.NewReader(bytes.NewReader(data))
	if err := r.Next(); err != nil {
		return nil, err
	}
	if err := r.EnterContainer(); err != nil {
		return nil, err
	}
	a := &AnnounceOTAProviderRequest{}
	for {
		if err := r.Next(); err != nil {
			return nil, err
		}
		if r.IsEndOfContainer() {
			break
		}
		tag := r.Tag()
		if !tag.IsContext() {
			if err := r.Skip(); err != nil {
				return nil, err
			}
			continue
		}
		switch tag.TagNumber() {
		case tagAnnounceProviderNodeID:
			v, err := r.Uint()
			if err != nil {
				return nil, err
			}
			a.ProviderNodeID = v
		case tagAnnounceVendorID:
			v, err := r.Uint()
			if err != nil {
				return nil, err
			}
			a.VendorID = uint16(v)
		case tagAnnounceReason:
			v, err := r.Uint()
			if err != nil {
				return nil, err
			}
			a.Reason = AnnounceReasonEnum(v)
		case tagAnnounceMetadataForNode:
			b, err := r.Bytes()
			if err != nil {
				return nil, err
			}
			a.MetadataForNode = b
		case tagAnnounceEndpoint:
			v, err := r.Uint()
			if err != nil {
				return nil, err
			}
			a.Endpoint = uint16(v)
		default:
			if err := r.Skip(); err != nil {
				return nil, err
			}
		}
	}
	return a, nil
}
