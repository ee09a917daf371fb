package wire

import (
	"bytes"
	"testing"
)

func TestQueryImageRequest_Roundtrip(t *testing.T) {
	req := &QueryImageRequest{
		VendorID:            0xFFF1,
		ProductID:           0x8000,
		SoftwareVersion:     2,
		ProtocolsSupported:  []uint8{0},
		Location:            "US",
		RequestorCanConsent: true,
	}
	data, err := req.MarshalTLV()
	if err != nil {
		t.Fatalf("MarshalTLV failed: %v", err)
	}
	got, err := UnmarshalQueryImageRequest(data)
	if err != nil {
		t.Fatalf("UnmarshalQueryImageRequest failed: %v", err)
	}
	if got.VendorID != req.VendorID || got.ProductID != req.ProductID ||
		got.SoftwareVersion != req.SoftwareVersion || got.Location != req.Location ||
		got.RequestorCanConsent != req.RequestorCanConsent {
		t.Fatalf("roundtrip mismatch: got %+v, want %+v", got, req)
	}
	if len(got.ProtocolsSupported) != 1 || got.ProtocolsSupported[0] != 0 {
		t.Fatalf("protocols mismatch: %v", got.ProtocolsSupported)
	}
}

func TestQueryImageResponse_Roundtrip_UpdateAvailable(t *testing.T) {
	resp := &QueryImageResponse{
		Status:                QueryImageStatusUpdateAvailable,
		ImageURI:              "bdx://0000000000000001/image.bin",
		SoftwareVersion:       3,
		SoftwareVersionString: "1.0.3",
		UpdateToken:           bytes.Repeat([]byte{0x01}, 20),
		UserConsentNeeded:     false,
	}
	data, err := resp.MarshalTLV()
	if err != nil {
		t.Fatalf("MarshalTLV failed: %v", err)
	}
	got, err := UnmarshalQueryImageResponse(data)
	if err != nil {
		t.Fatalf("UnmarshalQueryImageResponse failed: %v", err)
	}
	if got.Status != resp.Status || got.ImageURI != resp.ImageURI ||
		got.SoftwareVersion != resp.SoftwareVersion || !bytes.Equal(got.UpdateToken, resp.UpdateToken) {
		t.Fatalf("roundtrip mismatch: got %+v, want %+v", got, resp)
	}
}

func TestQueryImageResponse_Roundtrip_Busy(t *testing.T) {
	resp := &QueryImageResponse{
		Status:            QueryImageStatusBusy,
		DelayedActionTime: 600,
	}
	data, err := resp.MarshalTLV()
	if err != nil {
		t.Fatalf("MarshalTLV failed: %v", err)
	}
	got, err := UnmarshalQueryImageResponse(data)
	if err != nil {
		t.Fatalf("UnmarshalQueryImageResponse failed: %v", err)
	}
	if got.Status != QueryImageStatusBusy || got.DelayedActionTime != 600 {
		t.Fatalf("roundtrip mismatch: %+v", got)
	}
}

func TestApplyUpdateRequestResponse_Roundtrip(t *testing.T) {
	req := &ApplyUpdateRequest{UpdateToken: []byte{0x01, 0x02}, NewVersion: 3}
	data, err := req.MarshalTLV()
	if err != nil {
		t.Fatalf("MarshalTLV failed: %v", err)
	}
	gotReq, err := UnmarshalApplyUpdateRequest(data)
	if err != nil {
		t.Fatalf("UnmarshalApplyUpdateRequest failed: %v", err)
	}
	if !bytes.Equal(gotReq.UpdateToken, req.UpdateToken) || gotReq.NewVersion != req.NewVersion {
		t.Fatalf("roundtrip mismatch: %+v", gotReq)
	}

	resp := &ApplyUpdateResponse{Action: ApplyUpdateActionProceed, DelayedActionTime: 0}
	data, err = resp.MarshalTLV()
	if err != nil {
		t.Fatalf("MarshalTLV failed: %v", err)
	}
	gotResp, err := UnmarshalApplyUpdateResponse(data)
	if err != nil {
		t.Fatalf("UnmarshalApplyUpdateResponse failed: %v", err)
	}
	if gotResp.Action != ApplyUpdateActionProceed {
		t.Fatalf("roundtrip mismatch: %+v", gotResp)
	}
}

func TestNotifyUpdateAppliedRequest_Roundtrip(t *testing.T) {
	n := &NotifyUpdateAppliedRequest{UpdateToken: []byte{0xAA}, SoftwareVersion: 3}
	data, err := n.MarshalTLV()
	if err != nil {
		t.Fatalf("MarshalTLV failed: %v", err)
	}
	got, err := UnmarshalNotifyUpdateAppliedRequest(data)
	if err != nil {
		t.Fatalf("UnmarshalNotifyUpdateAppliedRequest failed: %v", err)
	}
	if !bytes.Equal(got.UpdateToken, n.UpdateToken) || got.SoftwareVersion != n.SoftwareVersion {
		t.Fatalf("roundtrip mismatch: %+v", got)
	}
}

func TestAnnounceOTAProviderRequest_Roundtrip(t *testing.T) {
	a := &AnnounceOTAProviderRequest{
		ProviderNodeID: 0x1122334455667788,
		VendorID:       0xFFF1,
		Reason:         AnnounceReasonUpdateAvailable,
		Endpoint:       0,
	}
	data, err := a.MarshalTLV()
	if err != nil {
		t.Fatalf("MarshalTLV failed: %v", err)
	}
	got, err := UnmarshalAnnounceOTAProviderRequest(data)
	if err != nil {
		t.Fatalf("UnmarshalAnnounceOTAProviderRequest failed: %v", err)
	}
	if got.ProviderNodeID != a.ProviderNodeID || got.VendorID != a.VendorID || got.Reason != a.Reason {
		t.Fatalf("roundtrip mismatch: %+v", got)
	}
}
