// Package wire defines the OTA Software Update cluster's request and
// response messages in Matter TLV encoding.
//
// Spec References:
//   - Section 11.19.6: OTA Software Update Provider Cluster
//   - Section 11.20.6: OTA Software Update Requestor Cluster
package wire

import (
	"bytes"
	"fmt"

	"github.com/openfabric-io/devicecore/pkg/tlv"
)

// QueryImageStatus is the Status field of a QueryImageResponse.
// Spec Section 11.19.6.4.2.
type QueryImageStatus uint8

const (
	QueryImageStatusUpdateAvailable QueryImageStatus = 0
	QueryImageStatusBusy            QueryImageStatus = 1
	QueryImageStatusNotAvailable    QueryImageStatus = 2
	QueryImageStatusDownloadProtocolNotSupported QueryImageStatus = 3
)

// ApplyUpdateActionEnum is the Action field of an ApplyUpdateResponse.
// Spec Section 11.19.6.6.2.
type ApplyUpdateActionEnum uint8

const (
	ApplyUpdateActionProceed    ApplyUpdateActionEnum = 0
	ApplyUpdateActionAwaitNextAction ApplyUpdateActionEnum = 1
	ApplyUpdateActionDiscontinue ApplyUpdateActionEnum = 2
)

// TLV context tags for QueryImageRequest (Spec Section 11.19.6.4.1).
const (
	tagQueryReqVendorID            = 0
	tagQueryReqProductID           = 1
	tagQueryReqSoftwareVersion     = 2
	tagQueryReqProtocolsSupported  = 3
	tagQueryReqLocation            = 4
	tagQueryReqRequestorCanConsent = 5
	tagQueryReqMetadataForProvider = 6
)

// QueryImageRequest is sent by the requestor to ask a provider whether an
// update is available.
type QueryImageRequest struct {
	VendorID           uint16
	ProductID          uint16
	SoftwareVersion    uint32
	ProtocolsSupported []uint8
	Location           string
	RequestorCanConsent bool
	MetadataForProvider []byte
}

// MarshalTLV encodes the request to Matter TLV bytes.
func (q *QueryImageRequest) MarshalTLV() ([]byte, error) {
	var buf bytes.Buffer
	w := tlv.NewWriter(&buf)
	if err := w.StartStructure(tlv.Anonymous()); err != nil {
		return nil, err
	}
	if err := w.PutUint(tlv.ContextTag(tagQueryReqVendorID), uint64(q.VendorID)); err != nil {
		return nil, err
	}
	if err := w.PutUint(tlv.ContextTag(tagQueryReqProductID), uint64(q.ProductID)); err != nil {
		return nil, err
	}
	if err := w.PutUint(tlv.ContextTag(tagQueryReqSoftwareVersion), uint64(q.SoftwareVersion)); err != nil {
		return nil, err
	}
	if err := w.StartArray(tlv.ContextTag(tagQueryReqProtocolsSupported)); err != nil {
		return nil, err
	}
	for _, p := range q.ProtocolsSupported {
		if err := w.PutUint(tlv.Anonymous(), uint64(p)); err != nil {
			return nil, err
		}
	}
	if err := w.EndContainer(); err != nil {
		return nil, err
	}
	if q.Location != "" {
		if err := w.PutString(tlv.ContextTag(tagQueryReqLocation), q.Location); err != nil {
			return nil, err
		}
	}
	if err := w.PutBool(tlv.ContextTag(tagQueryReqRequestorCanConsent), q.RequestorCanConsent); err != nil {
		return nil, err
	}
	if q.MetadataForProvider != nil {
		if err := w.PutBytes(tlv.ContextTag(tagQueryReqMetadataForProvider), q.MetadataForProvider); err != nil {
			return nil, err
		}
	}
	return buf.Bytes(), w.EndContainer()
}

// UnmarshalQueryImageRequest decodes a QueryImageRequest from TLV bytes.
func UnmarshalQueryImageRequest(data []byte) (*QueryImageRequest, error) {
	r := tlv.NewReader(bytes.NewReader(data))
	if err := r.Next(); err != nil {
		return nil, err
	}
	if err := r.EnterContainer(); err != nil {
		return nil, err
	}

	q := &QueryImageRequest{}
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
		case tagQueryReqVendorID:
			v, err := r.Uint()
			if err != nil {
				return nil, err
			}
			q.VendorID = uint16(v)
		case tagQueryReqProductID:
			v, err := r.Uint()
			if err != nil {
				return nil, err
			}
			q.ProductID = uint16(v)
		case tagQueryReqSoftwareVersion:
			v, err := r.Uint()
			if err != nil {
				return nil, err
			}
			q.SoftwareVersion = uint32(v)
		case tagQueryReqProtocolsSupported:
			if err := r.EnterContainer(); err != nil {
				return nil, err
			}
			for {
				if err := r.Next(); err != nil {
					return nil, err
				}
				if r.IsEndOfContainer() {
					break
				}
				v, err := r.Uint()
				if err != nil {
					return nil, err
				}
				q.ProtocolsSupported = append(q.ProtocolsSupported, uint8(v))
			}
			if err := r.ExitContainer(); err != nil {
				return nil, err
			}
		case tagQueryReqLocation:
			s, err := r.String()
			if err != nil {
				return nil, err
			}
			q.Location = s
		case tagQueryReqRequestorCanConsent:
			b, err := r.Bool()
			if err != nil {
				return nil, err
			}
			q.RequestorCanConsent = b
		case tagQueryReqMetadataForProvider:
			b, err := r.Bytes()
			if err != nil {
				return nil, err
			}
			q.MetadataForProvider = b
		default:
			if err := r.Skip(); err != nil {
				return nil, err
			}
		}
	}
	return q, nil
}

// TLV context tags for QueryImageResponse (Spec Section 11.19.6.4.2).
const (
	tagQueryRespStatus          = 0
	tagQueryRespDelayedActionTime = 1
	tagQueryRespImageURI        = 2
	tagQueryRespSoftwareVersion = 3
	tagQueryRespSoftwareVersionString = 4
	tagQueryRespUpdateToken     = 5
	tagQueryRespUserConsentNeeded = 6
	tagQueryRespMetadataForRequestor = 7
)

// QueryImageResponse is the provider's reply to a QueryImageRequest.
type QueryImageResponse struct {
	Status                QueryImageStatus
	DelayedActionTime     uint32 // seconds; valid when Status == Busy
	ImageURI              string
	SoftwareVersion       uint32
	SoftwareVersionString string
	UpdateToken           []byte
	UserConsentNeeded     bool
	MetadataForRequestor  []byte
}

// MarshalTLV encodes the response to Matter TLV bytes.
func (q *QueryImageResponse) MarshalTLV() ([]byte, error) {
	var buf bytes.Buffer
	w := tlv.NewWriter(&buf)
	if err := w.StartStructure(tlv.Anonymous()); err != nil {
		return nil, err
	}
	if err := w.PutUint(tlv.ContextTag(tagQueryRespStatus), uint64(q.Status)); err != nil {
		return nil, err
	}
	if q.Status == QueryImageStatusBusy {
		if err := w.PutUint(tlv.ContextTag(tagQueryRespDelayedActionTime), uint64(q.DelayedActionTime)); err != nil {
			return nil, err
		}
	}
	if q.Status == QueryImageStatusUpdateAvailable {
		if err := w.PutString(tlv.ContextTag(tagQueryRespImageURI), q.ImageURI); err != nil {
			return nil, err
		}
		if err := w.PutUint(tlv.ContextTag(tagQueryRespSoftwareVersion), uint64(q.SoftwareVersion)); err != nil {
			return nil, err
		}
		if err := w.PutString(tlv.ContextTag(tagQueryRespSoftwareVersionString), q.SoftwareVersionString); err != nil {
			return nil, err
		}
		if err := w.PutBytes(tlv.ContextTag(tagQueryRespUpdateToken), q.UpdateToken); err != nil {
			return nil, err
		}
		if err := w.PutBool(tlv.ContextTag(tagQueryRespUserConsentNeeded), q.UserConsentNeeded); err != nil {
			return nil, err
		}
	}
	if q.MetadataForRequestor != nil {
		if err := w.PutBytes(tlv.ContextTag(tagQueryRespMetadataForRequestor), q.MetadataForRequestor); err != nil {
			return nil, err
		}
	}
	return buf.Bytes(), w.EndContainer()
}

// UnmarshalQueryImageResponse decodes a QueryImageResponse from TLV bytes.
func UnmarshalQueryImageResponse(data []byte) (*QueryImageResponse, error) {
	r := tlv.NewReader(bytes.NewReader(data))
	if err := r.Next(); err != nil {
		return nil, err
	}
	if err := r.EnterContainer(); err != nil {
		return nil, err
	}

	q := &QueryImageResponse{}
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
		case tagQueryRespStatus:
			v, err := r.Uint()
			if err != nil {
				return nil, err
			}
			q.Status = QueryImageStatus(v)
		case tagQueryRespDelayedActionTime:
			v, err := r.Uint()
			if err != nil {
				return nil, err
			}
			q.DelayedActionTime = uint32(v)
		case tagQueryRespImageURI:
			s, err := r.String()
			if err != nil {
				return nil, err
			}
			q.ImageURI = s
		case tagQueryRespSoftwareVersion:
			v, err := r.Uint()
			if err != nil {
				return nil, err
			}
			q.SoftwareVersion = uint32(v)
		case tagQueryRespSoftwareVersionString:
			s, err := r.String()
			if err != nil {
				return nil, err
			}
			q.SoftwareVersionString = s
		case tagQueryRespUpdateToken:
			b, err := r.Bytes()
			if err != nil {
				return nil, err
			}
			q.UpdateToken = b
		case tagQueryRespUserConsentNeeded:
			b, err := r.Bool()
			if err != nil {
				return nil, err
			}
			q.UserConsentNeeded = b
		case tagQueryRespMetadataForRequestor:
			b, err := r.Bytes()
			if err != nil {
				return nil, err
			}
			q.MetadataForRequestor = b
		default:
			if err := r.Skip(); err != nil {
				return nil, err
			}
		}
	}
	return q, nil
}

// TLV context tags for ApplyUpdateRequest/Response (Spec Section 11.19.6.6).
const (
	tagApplyReqUpdateToken    = 0
	tagApplyReqNewVersion     = 1
	tagApplyRespAction        = 0
	tagApplyRespDelayedActionTime = 1
)

// ApplyUpdateRequest asks the provider whether the requestor may apply the
// downloaded image.
type ApplyUpdateRequest struct {
	UpdateToken []byte
	NewVersion  uint32
}

// MarshalTLV encodes the request to Matter TLV bytes.
func (a *ApplyUpdateRequest) MarshalTLV() ([]byte, error) {
	var buf bytes.Buffer
	w := tlv.NewWriter(&buf)
	if err := w.StartStructure(tlv.Anonymous()); err != nil {
		return nil, err
	}
	if err := w.PutBytes(tlv.ContextTag(tagApplyReqUpdateToken), a.UpdateToken); err != nil {
		return nil, err
	}
	if err := w.PutUint(tlv.ContextTag(tagApplyReqNewVersion), uint64(a.NewVersion)); err != nil {
		return nil, err
	}
	return buf.Bytes(), w.EndContainer()
}

// UnmarshalApplyUpdateRequest decodes an ApplyUpdateRequest from TLV bytes.
func UnmarshalApplyUpdateRequest(data []byte) (*ApplyUpdateRequest, error) {
	r := tlv.NewReader(bytes.NewReader(data))
	if err := r.Next(); err != nil {
		return nil, err
	}
	if err := r.EnterContainer(); err != nil {
		return nil, err
	}
	a := &ApplyUpdateRequest{}
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
		case tagApplyReqUpdateToken:
			b, err := r.Bytes()
			if err != nil {
				return nil, err
			}
			a.UpdateToken = b
		case tagApplyReqNewVersion:
			v, err := r.Uint()
			if err != nil {
				return nil, err
			}
			a.NewVersion = uint32(v)
		default:
			if err := r.Skip(); err != nil {
				return nil, err
			}
		}
	}
	return a, nil
}

// ApplyUpdateResponse is the provider's reply to an ApplyUpdateRequest.
type ApplyUpdateResponse struct {
	Action            ApplyUpdateActionEnum
	DelayedActionTime uint32
}

// MarshalTLV encodes the response to Matter TLV bytes.
func (a *ApplyUpdateResponse) MarshalTLV() ([]byte, error) {
	var buf bytes.Buffer
	w := tlv.NewWriter(&buf)
	if err := w.StartStructure(tlv.Anonymous()); err != nil {
		return nil, err
	}
	if err := w.PutUint(tlv.ContextTag(tagApplyRespAction), uint64(a.Action)); err != nil {
		return nil, err
	}
	if err := w.PutUint(tlv.ContextTag(tagApplyRespDelayedActionTime), uint64(a.DelayedActionTime)); err != nil {
		return nil, err
	}
	return buf.Bytes(), w.EndContainer()
}

// UnmarshalApplyUpdateResponse decodes an ApplyUpdateResponse from TLV bytes.
func UnmarshalApplyUpdateResponse(data []byte) (*ApplyUpdateResponse, error) {
	r := tlv.NewReader(bytes.NewReader(data))
	if err := r.Next(); err != nil {
		return nil, err
	}
	if err := r.EnterContainer(); err != nil {
		return nil, err
	}
	a := &ApplyUpdateResponse{}
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
		case tagApplyRespAction:
			v, err := r.Uint()
			if err != nil {
				return nil, err
			}
			a.Action = ApplyUpdateActionEnum(v)
		case tagApplyRespDelayedActionTime:
			v, err := r.Uint()
			if err != nil {
				return nil, err
			}
			a.DelayedActionTime = uint32(v)
		default:
			if err := r.Skip(); err != nil {
				return nil, err
			}
		}
	}
	return a, nil
}

// TLV context tags for NotifyUpdateAppliedRequest (Spec Section 11.19.6.7).
const (
	tagNotifyUpdateToken = 0
	tagNotifySoftwareVersion = 1
)

// NotifyUpdateAppliedRequest tells the provider that the requestor has
// successfully applied (and booted into) the downloaded image.
type NotifyUpdateAppliedRequest struct {
	UpdateToken     []byte
	SoftwareVersion uint32
}

// MarshalTLV encodes the request to Matter TLV bytes.
func (n *NotifyUpdateAppliedRequest) MarshalTLV() ([]byte, error) {
	var buf bytes.Buffer
	w := tlv.NewWriter(&buf)
	if err := w.StartStructure(tlv.Anonymous()); err != nil {
		return nil, err
	}
	if err := w.PutBytes(tlv.ContextTag(tagNotifyUpdateToken), n.UpdateToken); err != nil {
		return nil, err
	}
	if err := w.PutUint(tlv.ContextTag(tagNotifySoftwareVersion), uint64(n.SoftwareVersion)); err != nil {
		return nil, err
	}
	return buf.Bytes(), w.EndContainer()
}

// UnmarshalNotifyUpdateAppliedRequest decodes a NotifyUpdateAppliedRequest
// from TLV bytes.
func UnmarshalNotifyUpdateAppliedRequest(data []byte) (*NotifyUpdateAppliedRequest, error) {
	r := tlv.NewReader(bytes.NewReader(data))
	if err := r.Next(); err != nil {
		return nil, err
	}
	if err := r.EnterContainer(); err != nil {
		return nil, err
	}
	n := &NotifyUpdateAppliedRequest{}
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
		case tagNotifyUpdateToken:
			b, err := r.Bytes()
			if err != nil {
				return nil, err
			}
			n.UpdateToken = b
		case tagNotifySoftwareVersion:
			v, err := r.Uint()
			if err != nil {
				return nil, err
			}
			n.SoftwareVersion = uint32(v)
		default:
			if err := r.Skip(); err != nil {
				return nil, err
			}
		}
	}
	return n, nil
}

// String renders the status for logging.
func (s QueryImageStatus) String() string {
	switch s {
	case QueryImageStatusUpdateAvailable:
		return "UpdateAvailable"
	case QueryImageStatusBusy:
		return "Busy"
	case QueryImageStatusNotAvailable:
		return "NotAvailable"
	case QueryImageStatusDownloadProtocolNotSupported:
		return "DownloadProtocolNotSupported"
	default:
		return fmt.Sprintf("QueryImageStatus(%d)", uint8(s))
	}
}
