package matter

import (
	"context"
	"testing"
	"time"

	"github.com/openfabric-io/devicecore/pkg/im"
	"github.com/openfabric-io/devicecore/pkg/ota/wire"
)

// newOTAProviderTestPair wires a nodeProviderClient against a real secure
// IM session, with a mock dispatcher standing in for the provider's cluster
// implementation, mirroring TestE2E_InvokeCommand in pkg/im/e2e_test.go.
func newOTAProviderTestPair(t *testing.T, mockDispatcher *im.MockDispatcher) (*nodeProviderClient, *nodeSessionHandle, *im.SecureTestIMPair) {
	t.Helper()
	pair, err := im.NewSecureTestIMPair(im.SecureTestIMPairConfig{
		Dispatchers: [2]im.Dispatcher{nil, mockDispatcher},
	})
	if err != nil {
		t.Fatalf("NewSecureTestIMPair: %v", err)
	}

	client := &nodeProviderClient{imClient: pair.Client(0)}
	handle := &nodeSessionHandle{sess: pair.Session(0), peerAddr: pair.PeerAddress(1)}
	return client, handle, pair
}

func TestNodeProviderClient_QueryImage(t *testing.T) {
	mockDispatcher := im.NewMockDispatcher()
	resp := &wire.QueryImageResponse{
		Status:          wire.QueryImageStatusUpdateAvailable,
		ImageURI:        "bdx://provider/image.bin",
		SoftwareVersion: 2,
		UpdateToken:     []byte{0xAA, 0xBB},
	}
	respBytes, err := resp.MarshalTLV()
	if err != nil {
		t.Fatalf("MarshalTLV: %v", err)
	}
	mockDispatcher.SetInvokeResult(respBytes, nil)

	client, handle, pair := newOTAProviderTestPair(t, mockDispatcher)
	defer pair.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	got, err := client.QueryImage(ctx, handle, wire.QueryImageRequest{
		VendorID:        0xFFF1,
		ProductID:       0x8000,
		SoftwareVersion: 1,
	})
	if err != nil {
		t.Fatalf("QueryImage: %v", err)
	}
	if got.Status != wire.QueryImageStatusUpdateAvailable || got.ImageURI != resp.ImageURI {
		t.Fatalf("QueryImage response = %+v, want %+v", got, resp)
	}

	calls := mockDispatcher.InvokeCalls()
	if len(calls) != 1 {
		t.Fatalf("expected 1 invoke call, got %d", len(calls))
	}
	if uint32(calls[0].Path.Cluster) != wire.ClusterIDOTAProvider {
		t.Errorf("cluster = 0x%04x, want OTA Provider", calls[0].Path.Cluster)
	}
	if uint32(calls[0].Path.Command) != wire.CommandIDQueryImage {
		t.Errorf("command = 0x%02x, want QueryImage", calls[0].Path.Command)
	}
}

func TestNodeProviderClient_QueryImage_ProviderError(t *testing.T) {
	mockDispatcher := im.NewMockDispatcher()
	mockDispatcher.SetInvokeResult(nil, im.ErrClusterNotFound)

	client, handle, pair := newOTAProviderTestPair(t, mockDispatcher)
	defer pair.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	// The provider replies with a failure status and no response fields.
	// InvokeRequest surfaces that as empty data rather than an error, so the
	// failure must be caught by UnmarshalQueryImageResponse's decode error.
	if _, err := client.QueryImage(ctx, handle, wire.QueryImageRequest{VendorID: 0xFFF1}); err == nil {
		t.Fatal("QueryImage: expected error decoding an empty/failure response, got nil")
	}
}

func TestNodeProviderClient_ApplyUpdateRequest(t *testing.T) {
	mockDispatcher := im.NewMockDispatcher()
	resp := &wire.ApplyUpdateResponse{Action: wire.ApplyUpdateActionProceed}
	respBytes, err := resp.MarshalTLV()
	if err != nil {
		t.Fatalf("MarshalTLV: %v", err)
	}
	mockDispatcher.SetInvokeResult(respBytes, nil)

	client, handle, pair := newOTAProviderTestPair(t, mockDispatcher)
	defer pair.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	got, err := client.ApplyUpdateRequest(ctx, handle, wire.ApplyUpdateRequest{
		UpdateToken: []byte{0xAA, 0xBB},
		NewVersion:  2,
	})
	if err != nil {
		t.Fatalf("ApplyUpdateRequest: %v", err)
	}
	if got.Action != wire.ApplyUpdateActionProceed {
		t.Fatalf("ApplyUpdateRequest response = %+v, want Proceed", got)
	}

	calls := mockDispatcher.InvokeCalls()
	if len(calls) != 1 || uint32(calls[0].Path.Command) != wire.CommandIDApplyUpdateRequest {
		t.Fatalf("expected 1 ApplyUpdateRequest call, got %+v", calls)
	}
}

func TestNodeProviderClient_NotifyUpdateApplied_Success(t *testing.T) {
	mockDispatcher := im.NewMockDispatcher()
	// No response fields, no error: the provider replies with a bare
	// success status.
	mockDispatcher.SetInvokeResult(nil, nil)

	client, handle, pair := newOTAProviderTestPair(t, mockDispatcher)
	defer pair.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := client.NotifyUpdateApplied(ctx, handle, wire.NotifyUpdateAppliedRequest{
		UpdateToken:     []byte{0xAA, 0xBB},
		SoftwareVersion: 2,
	})
	if err != nil {
		t.Fatalf("NotifyUpdateApplied: %v", err)
	}

	calls := mockDispatcher.InvokeCalls()
	if len(calls) != 1 || uint32(calls[0].Path.Command) != wire.CommandIDNotifyUpdateApplied {
		t.Fatalf("expected 1 NotifyUpdateApplied call, got %+v", calls)
	}
}

func TestNodeProviderClient_NotifyUpdateApplied_FailureStatus(t *testing.T) {
	mockDispatcher := im.NewMockDispatcher()
	// The dispatcher error maps to a failure status response with no data.
	// InvokeRequest alone would report this as success (nil, nil); the
	// adapter must use InvokeWithStatus to catch it.
	mockDispatcher.SetInvokeResult(nil, im.ErrClusterNotFound)

	client, handle, pair := newOTAProviderTestPair(t, mockDispatcher)
	defer pair.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := client.NotifyUpdateApplied(ctx, handle, wire.NotifyUpdateAppliedRequest{
		UpdateToken:     []byte{0xAA, 0xBB},
		SoftwareVersion: 2,
	})
	if err == nil {
		t.Fatal("NotifyUpdateApplied: expected error for failure status, got nil")
	}
}
