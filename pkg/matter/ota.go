package matter

import (
	"context"
	"fmt"

	"github.com/openfabric-io/devicecore/pkg/clusters/otarequestor"
	"github.com/openfabric-io/devicecore/pkg/commissioning"
	"github.com/openfabric-io/devicecore/pkg/crypto"
	"github.com/openfabric-io/devicecore/pkg/fabric"
	"github.com/openfabric-io/devicecore/pkg/im"
	"github.com/openfabric-io/devicecore/pkg/ota"
	"github.com/openfabric-io/devicecore/pkg/ota/wire"
	"github.com/openfabric-io/devicecore/pkg/session"
	"github.com/openfabric-io/devicecore/pkg/transport"
)

// PeerResolver resolves an operational peer (fabric index + node ID) to a
// network address the node can dial. A full implementation would back this
// with operational DNS-SD discovery; callers that need OTA support provide
// one via NodeConfig.OTAPeerResolver.
type PeerResolver func(fabricIndex fabric.FabricIndex, nodeID fabric.NodeID) (transport.PeerAddress, error)

// OTARequestor returns this node's OTA Requestor, or nil if one was not
// configured (NodeConfig.OTAStorage/OTADriver/OTADownloader unset).
func (n *Node) OTARequestor() *ota.Requestor {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.otaRequestor
}

// initOTA constructs the node's OTA Requestor once the exchange and secure
// channel layers are up. It is a no-op if OTA support was not configured.
func (n *Node) initOTA() error {
	if n.config.OTAStorage == nil || n.config.OTADriver == nil || n.config.OTADownloader == nil {
		return nil
	}
	if n.config.OTAPeerResolver == nil {
		return fmt.Errorf("matter: OTA support requires OTAPeerResolver")
	}

	caseClient := commissioning.NewCASEClient(commissioning.CASEClientConfig{
		ExchangeManager: n.exchangeMgr,
		SecureChannel:   n.scMgr,
		SessionManager:  n.sessionMgr,
		LoggerFactory:   n.config.LoggerFactory,
	})
	imClient := im.NewClient(im.ClientConfig{
		ExchangeManager: n.exchangeMgr,
		LoggerFactory:   n.config.LoggerFactory,
	})

	requestor, err := ota.NewRequestor(ota.RequestorConfig{
		VendorID:        n.config.VendorID,
		ProductID:       n.config.ProductID,
		SoftwareVersion: n.config.SoftwareVersion,
		NodeID:          n.currentNodeID(),
		FabricTable:     n.fabricTable,
		Storage:         n.config.OTAStorage,
		SessionInitiator: &nodeSessionInitiator{
			node:     n,
			resolve:  n.config.OTAPeerResolver,
			client:   caseClient,
			keyStore: n.config.OTAOperationalKeyStore,
		},
		Provider:      &nodeProviderClient{imClient: imClient},
		Downloader:    n.config.OTADownloader,
		Driver:        n.config.OTADriver,
		LoggerFactory: n.config.LoggerFactory,
	})
	if err != nil {
		return err
	}

	n.otaRequestor = requestor
	if root, ok := n.endpoints[RootEndpointID]; ok {
		root.AddCluster(otarequestor.New(otarequestor.Config{
			EndpointID: RootEndpointID,
			Requestor:  requestor,
		}))
	}
	return nil
}

// currentNodeID returns this node's operational node ID on its first
// fabric, or 0 if uncommissioned.
func (n *Node) currentNodeID() fabric.NodeID {
	var nodeID fabric.NodeID
	n.fabricTable.ForEach(func(info *fabric.FabricInfo) error {
		if nodeID == 0 {
			nodeID = info.NodeID
		}
		return nil
	})
	return nodeID
}

// nodeSessionInitiator adapts CASEClient to ota.SessionInitiator.
type nodeSessionInitiator struct {
	node     *Node
	resolve  PeerResolver
	client   *commissioning.CASEClient
	keyStore OperationalKeyStore
}

func (a *nodeSessionInitiator) EstablishSession(ctx context.Context, fabricIndex fabric.FabricIndex, nodeID fabric.NodeID) (ota.SessionHandle, error) {
	fabricInfo, ok := a.node.fabricTable.Get(fabricIndex)
	if !ok {
		return nil, fmt.Errorf("matter: unknown fabric index %d", fabricIndex)
	}
	if a.keyStore == nil {
		return nil, fmt.Errorf("matter: OTA support requires OTAOperationalKeyStore")
	}
	key, err := a.keyStore.OperationalKey(fabricIndex)
	if err != nil {
		return nil, err
	}
	peerAddr, err := a.resolve(fabricIndex, nodeID)
	if err != nil {
		return nil, err
	}

	secureCtx, err := a.client.Establish(ctx, peerAddr, fabricInfo, key, uint64(nodeID))
	if err != nil {
		return nil, err
	}

	return &nodeSessionHandle{node: a.node, sess: secureCtx, peerAddr: peerAddr}, nil
}

// OperationalKeyStore resolves the operational signing key associated with
// a fabric, needed to run CASE as initiator.
type OperationalKeyStore interface {
	OperationalKey(fabricIndex fabric.FabricIndex) (*crypto.P256KeyPair, error)
}

// nodeSessionHandle adapts a session.SecureContext plus peer address to
// ota.SessionHandle.
type nodeSessionHandle struct {
	node     *Node
	sess     *session.SecureContext
	peerAddr transport.PeerAddress
	closed   bool
}

func (h *nodeSessionHandle) Close() {
	if h.closed {
		return
	}
	h.closed = true
	h.node.sessionMgr.RemovePeer(h.sess.FabricIndex(), h.sess.PeerNodeID())
}

// nodeProviderClient adapts im.Client to ota.ProviderClient.
type nodeProviderClient struct {
	imClient *im.Client
}

func (c *nodeProviderClient) invoke(ctx context.Context, sess ota.SessionHandle, commandID uint32, payload []byte) ([]byte, error) {
	handle, ok := sess.(*nodeSessionHandle)
	if !ok {
		return nil, fmt.Errorf("matter: unexpected session handle type %T", sess)
	}
	return c.imClient.InvokeRequest(ctx, handle.sess, handle.peerAddr, 0, wire.ClusterIDOTAProvider, commandID, payload)
}

func (c *nodeProviderClient) QueryImage(ctx context.Context, sess ota.SessionHandle, req wire.QueryImageRequest) (*wire.QueryImageResponse, error) {
	payload, err := req.MarshalTLV()
	if err != nil {
		return nil, err
	}
	resp, err := c.invoke(ctx, sess, wire.CommandIDQueryImage, payload)
	if err != nil {
		return nil, err
	}
	return wire.UnmarshalQueryImageResponse(resp)
}

func (c *nodeProviderClient) ApplyUpdateRequest(ctx context.Context, sess ota.SessionHandle, req wire.ApplyUpdateRequest) (*wire.ApplyUpdateResponse, error) {
	payload, err := req.MarshalTLV()
	if err != nil {
		return nil, err
	}
	resp, err := c.invoke(ctx, sess, wire.CommandIDApplyUpdateRequest, payload)
	if err != nil {
		return nil, err
	}
	return wire.UnmarshalApplyUpdateResponse(resp)
}

func (c *nodeProviderClient) NotifyUpdateApplied(ctx context.Context, sess ota.SessionHandle, req wire.NotifyUpdateAppliedRequest) error {
	handle, ok := sess.(*nodeSessionHandle)
	if !ok {
		return fmt.Errorf("matter: unexpected session handle type %T", sess)
	}
	payload, err := req.MarshalTLV()
	if err != nil {
		return err
	}
	// NotifyUpdateApplied has no response fields: the provider only ever
	// replies with a status, so InvokeRequest's data-only return can't
	// surface a failure status. Check it explicitly.
	result, err := c.imClient.InvokeWithStatus(ctx, handle.sess, handle.peerAddr, 0,
		wire.ClusterIDOTAProvider, wire.CommandIDNotifyUpdateApplied, payload)
	if err != nil {
		return err
	}
	if result.HasStatus && !result.Status.IsSuccess() {
		return fmt.Errorf("matter: NotifyUpdateApplied failed: %s", result.Status)
	}
	return nil
}
