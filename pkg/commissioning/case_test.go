package commissioning

import (
	"context"
	"testing"
	"time"

	casesession "github.com/openfabric-io/devicecore/pkg/securechannel/case"

	"github.com/openfabric-io/devicecore/pkg/crypto"
	"github.com/openfabric-io/devicecore/pkg/exchange"
	"github.com/openfabric-io/devicecore/pkg/fabric"
	"github.com/openfabric-io/devicecore/pkg/message"
	"github.com/openfabric-io/devicecore/pkg/securechannel"
	"github.com/openfabric-io/devicecore/pkg/session"
)

// caseResponderHandler drives a CASE handshake as responder over a real
// exchange, mirroring how TestE2E_CASE_HappyPath drives casesession.Session
// directly (securechannel/e2e_test.go), but wired through exchange.Manager so
// it can answer a real CASEClient across the transport pipe.
type caseResponderHandler struct {
	session        *casesession.Session
	localSessionID uint16
}

func (h *caseResponderHandler) OnUnsolicited(ctx *exchange.ExchangeContext, opcode uint8, payload []byte) ([]byte, error) {
	if securechannel.Opcode(opcode) != securechannel.OpcodeCASESigma1 {
		return nil, nil
	}
	sigma2, _, err := h.session.HandleSigma1(payload, h.localSessionID)
	if err != nil {
		return nil, err
	}
	// Subsequent messages on this exchange (Sigma3) must route to OnMessage,
	// which requires a delegate.
	ctx.SetDelegate(h.asDelegate())
	return nil, ctx.SendMessage(uint8(securechannel.OpcodeCASESigma2), sigma2, true)
}

func (h *caseResponderHandler) OnMessage(ctx *exchange.ExchangeContext, opcode uint8, payload []byte) ([]byte, error) {
	return h.OnUnsolicited(ctx, opcode, payload)
}

// ExchangeDelegate.OnMessage (set via ctx.SetDelegate above).
func (h *caseResponderHandler) onDelegateMessage(ctx *exchange.ExchangeContext, header *message.ProtocolHeader, payload []byte) ([]byte, error) {
	if securechannel.Opcode(header.ProtocolOpcode) != securechannel.OpcodeCASESigma3 {
		return nil, nil
	}
	if err := h.session.HandleSigma3(payload); err != nil {
		return nil, err
	}
	success := securechannel.Success().Encode()
	return nil, ctx.SendMessage(uint8(securechannel.OpcodeStatusReport), success, true)
}

func (h *caseResponderHandler) OnClose(ctx *exchange.ExchangeContext) {}

// exchangeDelegateAdapter lets caseResponderHandler satisfy
// exchange.ExchangeDelegate without renaming its ProtocolHandler.OnMessage.
type exchangeDelegateAdapter struct {
	h *caseResponderHandler
}

func (a *exchangeDelegateAdapter) OnMessage(ctx *exchange.ExchangeContext, header *message.ProtocolHeader, payload []byte) ([]byte, error) {
	return a.h.onDelegateMessage(ctx, header, payload)
}

func (a *exchangeDelegateAdapter) OnClose(ctx *exchange.ExchangeContext) {
	a.h.OnClose(ctx)
}

func createTestFabricInfoForCASE(t *testing.T, index uint8, fabricID, nodeID uint64) (*fabric.FabricInfo, *crypto.P256KeyPair) {
	t.Helper()

	operationalKey, err := crypto.P256GenerateKeyPair()
	if err != nil {
		t.Fatalf("generate operational key: %v", err)
	}
	rootKey, err := crypto.P256GenerateKeyPair()
	if err != nil {
		t.Fatalf("generate root key: %v", err)
	}

	var rootPubKey [65]byte
	copy(rootPubKey[:], rootKey.P256PublicKey())

	cfid, err := fabric.CompressedFabricIDFromCert(rootPubKey, fabric.FabricID(fabricID))
	if err != nil {
		t.Fatalf("compressed fabric ID: %v", err)
	}

	var ipk [16]byte
	for i := range ipk {
		ipk[i] = byte(i + int(index))
	}

	return &fabric.FabricInfo{
		FabricIndex:        fabric.FabricIndex(index),
		FabricID:           fabric.FabricID(fabricID),
		NodeID:             fabric.NodeID(nodeID),
		VendorID:           fabric.VendorIDTestVendor1,
		RootPublicKey:      rootPubKey,
		CompressedFabricID: cfid,
		IPK:                ipk,
		NOC:                operationalKey.P256PublicKey(),
	}, operationalKey
}

// ctx.SetDelegate expects an exchange.ExchangeDelegate; caseResponderHandler
// itself only implements exchange.ProtocolHandler (for the initial
// unsolicited Sigma1). Route the promoted delegate through the adapter.
func (h *caseResponderHandler) asDelegate() exchange.ExchangeDelegate {
	return &exchangeDelegateAdapter{h: h}
}

func TestCASEClient_Establish_HappyPath(t *testing.T) {
	fabricID := uint64(0xAABBCCDD11223344)
	initiatorNodeID := uint64(0x1111111111111111)
	responderNodeID := uint64(0x2222222222222222)

	initiatorFabric, initiatorKey := createTestFabricInfoForCASE(t, 1, fabricID, initiatorNodeID)
	responderFabric, responderKey := createTestFabricInfoForCASE(t, 1, fabricID, responderNodeID)

	// Share root and IPK: same fabric, two nodes.
	responderFabric.RootPublicKey = initiatorFabric.RootPublicKey
	responderFabric.IPK = initiatorFabric.IPK
	cfid, err := fabric.CompressedFabricIDFromCert(responderFabric.RootPublicKey, responderFabric.FabricID)
	if err != nil {
		t.Fatalf("compressed fabric ID: %v", err)
	}
	responderFabric.CompressedFabricID = cfid

	initiatorCertValidator := func(noc, icac []byte, trustedRoot [65]byte) (*casesession.PeerCertInfo, error) {
		var pubKey [65]byte
		copy(pubKey[:], responderKey.P256PublicKey())
		return &casesession.PeerCertInfo{NodeID: responderNodeID, FabricID: fabricID, PublicKey: pubKey}, nil
	}
	responderCertValidator := func(noc, icac []byte, trustedRoot [65]byte) (*casesession.PeerCertInfo, error) {
		var pubKey [65]byte
		copy(pubKey[:], initiatorKey.P256PublicKey())
		return &casesession.PeerCertInfo{NodeID: initiatorNodeID, FabricID: fabricID, PublicKey: pubKey}, nil
	}

	fabricLookup := func(destID [casesession.DestinationIDSize]byte, initiatorRandom [casesession.RandomSize]byte) (*fabric.FabricInfo, *crypto.P256KeyPair, error) {
		ipkSlice, _ := crypto.DeriveGroupOperationalKeyV1(responderFabric.IPK[:], responderFabric.CompressedFabricID[:])
		var ipk [crypto.SymmetricKeySize]byte
		copy(ipk[:], ipkSlice)
		if casesession.MatchDestinationID(destID, initiatorRandom, responderFabric.RootPublicKey,
			uint64(responderFabric.FabricID), uint64(responderFabric.NodeID), ipk) {
			return responderFabric, responderKey, nil
		}
		return nil, nil, casesession.ErrNoSharedRoot
	}

	pair, err := exchange.NewTestManagerPair(exchange.TestManagerPairConfig{UDP: true})
	if err != nil {
		t.Fatalf("NewTestManagerPair: %v", err)
	}
	defer pair.Close()

	initiatorSessionMgr := session.NewManager(session.ManagerConfig{})
	initiatorSCMgr := securechannel.NewManager(securechannel.ManagerConfig{
		SessionManager: initiatorSessionMgr,
		CertValidator:  initiatorCertValidator,
		LocalNodeID:    fabric.NodeID(initiatorNodeID),
	})

	initExch := pair.Manager(0)
	respExch := pair.Manager(1)

	responderLocalSessionID, err := pair.SessionManager(1).AllocateSessionID()
	if err != nil {
		t.Fatalf("AllocateSessionID: %v", err)
	}

	responderCASESession := casesession.NewResponder(fabricLookup, nil)
	responderCASESession.WithCertValidator(responderCertValidator)
	responder := &caseResponderHandler{session: responderCASESession, localSessionID: responderLocalSessionID}
	respExch.RegisterProtocol(message.ProtocolSecureChannel, responder)

	// Wire the initiator's secure channel manager through a CASEClient that
	// drives real exchanges over initExch.
	caseClient := NewCASEClient(CASEClientConfig{
		ExchangeManager: initExch,
		SecureChannel:   initiatorSCMgr,
		SessionManager:  initiatorSessionMgr,
		Timeout:         5 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	establishedSession, err := caseClient.Establish(
		ctx, pair.PeerAddress(1, false), initiatorFabric, initiatorKey, responderNodeID)
	if err != nil {
		t.Fatalf("Establish failed: %v", err)
	}
	if establishedSession == nil {
		t.Fatal("Establish returned nil session")
	}
	if establishedSession.SessionType() != session.SessionTypeCASE {
		t.Errorf("session type = %v, want CASE", establishedSession.SessionType())
	}
	if establishedSession.PeerNodeID() != fabric.NodeID(responderNodeID) {
		t.Errorf("peer node ID = %v, want %v", establishedSession.PeerNodeID(), responderNodeID)
	}
}

func TestCASEClient_Establish_NoSharedRoot(t *testing.T) {
	fabricID := uint64(0x1111111122223333)
	otherFabricID := uint64(0x9999999988887777)
	initiatorNodeID := uint64(0x1111111111111111)
	responderNodeID := uint64(0x2222222222222222)

	initiatorFabric, initiatorKey := createTestFabricInfoForCASE(t, 1, fabricID, initiatorNodeID)
	responderFabric, responderKey := createTestFabricInfoForCASE(t, 1, otherFabricID, responderNodeID)

	fabricLookup := func(destID [casesession.DestinationIDSize]byte, initiatorRandom [casesession.RandomSize]byte) (*fabric.FabricInfo, *crypto.P256KeyPair, error) {
		ipkSlice, _ := crypto.DeriveGroupOperationalKeyV1(responderFabric.IPK[:], responderFabric.CompressedFabricID[:])
		var ipk [crypto.SymmetricKeySize]byte
		copy(ipk[:], ipkSlice)
		if casesession.MatchDestinationID(destID, initiatorRandom, responderFabric.RootPublicKey,
			uint64(responderFabric.FabricID), uint64(responderFabric.NodeID), ipk) {
			return responderFabric, responderKey, nil
		}
		return nil, nil, casesession.ErrNoSharedRoot
	}

	pair, err := exchange.NewTestManagerPair(exchange.TestManagerPairConfig{UDP: true})
	if err != nil {
		t.Fatalf("NewTestManagerPair: %v", err)
	}
	defer pair.Close()

	initiatorSessionMgr := session.NewManager(session.ManagerConfig{})
	initiatorSCMgr := securechannel.NewManager(securechannel.ManagerConfig{
		SessionManager: initiatorSessionMgr,
		LocalNodeID:    fabric.NodeID(initiatorNodeID),
	})

	respExch := pair.Manager(1)
	responderLocalSessionID, err := pair.SessionManager(1).AllocateSessionID()
	if err != nil {
		t.Fatalf("AllocateSessionID: %v", err)
	}
	responderCASESession := casesession.NewResponder(fabricLookup, nil)
	responder := &caseResponderHandler{session: responderCASESession, localSessionID: responderLocalSessionID}
	respExch.RegisterProtocol(message.ProtocolSecureChannel, responder)

	caseClient := NewCASEClient(CASEClientConfig{
		ExchangeManager: pair.Manager(0),
		SecureChannel:   initiatorSCMgr,
		SessionManager:  initiatorSessionMgr,
		Timeout:         3 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	_, err = caseClient.Establish(ctx, pair.PeerAddress(1, false), initiatorFabric, initiatorKey, responderNodeID)
	if err == nil {
		t.Fatal("Establish: expected error for mismatched fabrics, got nil")
	}
}
