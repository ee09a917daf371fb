package commissioning

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/openfabric-io/devicecore/pkg/crypto"
	"github.com/openfabric-io/devicecore/pkg/exchange"
	"github.com/openfabric-io/devicecore/pkg/fabric"
	"github.com/openfabric-io/devicecore/pkg/message"
	"github.com/openfabric-io/devicecore/pkg/securechannel"
	"github.com/openfabric-io/devicecore/pkg/session"
	"github.com/openfabric-io/devicecore/pkg/transport"
	"github.com/pion/logging"
)

// DefaultCASETimeout is the default timeout for CASE establishment.
const DefaultCASETimeout = 30 * time.Second

// CASEClient handles CASE session establishment as the initiator.
//
// The CASE flow (initiator perspective):
//  1. Send Sigma1
//  2. Receive Sigma2
//  3. Send Sigma3
//  4. Receive StatusReport (success/failure)
//
// This mirrors PASEClient's orchestration of the exchange manager and
// secure channel manager, for the case where this node needs to reach a
// peer operational node (e.g. an OTA Provider) rather than accept
// commissioning.
type CASEClient struct {
	exchangeManager *exchange.Manager
	secureChannel   *securechannel.Manager
	sessionManager  *session.Manager
	timeout         time.Duration
	log             logging.LeveledLogger
}

// CASEClientConfig configures the CASEClient.
type CASEClientConfig struct {
	ExchangeManager *exchange.Manager
	SecureChannel   *securechannel.Manager
	SessionManager  *session.Manager
	Timeout         time.Duration

	// LoggerFactory is the factory for creating loggers.
	// If nil, logging is disabled.
	LoggerFactory logging.LoggerFactory
}

// NewCASEClient creates a new CASE client.
func NewCASEClient(config CASEClientConfig) *CASEClient {
	timeout := config.Timeout
	if timeout == 0 {
		timeout = DefaultCASETimeout
	}

	c := &CASEClient{
		exchangeManager: config.ExchangeManager,
		secureChannel:   config.SecureChannel,
		sessionManager:  config.SessionManager,
		timeout:         timeout,
	}

	if config.LoggerFactory != nil {
		c.log = config.LoggerFactory.NewLogger("case")
	}

	return c
}

// Establish performs the CASE handshake against a peer operating on one of
// our fabrics and returns the established secure session.
func (c *CASEClient) Establish(
	ctx context.Context,
	peerAddr transport.PeerAddress,
	fabricInfo *fabric.FabricInfo,
	operationalKey *crypto.P256KeyPair,
	targetNodeID uint64,
) (*session.SecureContext, error) {
	if c.log != nil {
		c.log.Infof("starting CASE with %s (node 0x%016x)", peerAddr.Addr, targetNodeID)
	}

	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	unsecuredSess, err := session.NewUnsecuredContext(session.SessionRoleInitiator)
	if err != nil {
		return nil, err
	}

	handler := newCASEHandler(c.secureChannel)

	exch, err := c.exchangeManager.NewExchange(
		unsecuredSess,
		0,
		peerAddr,
		message.ProtocolSecureChannel,
		handler,
	)
	if err != nil {
		return nil, err
	}
	defer exch.Close()

	exchangeID := exch.ID

	sigma1, err := c.secureChannel.StartCASE(exchangeID, fabricInfo, operationalKey, targetNodeID, nil)
	if err != nil {
		return nil, err
	}

	if err := exch.SendMessage(uint8(securechannel.OpcodeCASESigma1), sigma1, true); err != nil {
		return nil, err
	}

	// Step 2: wait for Sigma2, get Sigma3
	sigma3Msg, err := handler.waitForNextMessage(ctx)
	if err != nil {
		return nil, fmt.Errorf("case step 2 wait: %w", err)
	}
	if sigma3Msg == nil {
		return nil, fmt.Errorf("case step 2: sigma3Msg is nil")
	}

	if err := exch.SendMessage(uint8(sigma3Msg.Opcode), sigma3Msg.Payload, true); err != nil {
		return nil, fmt.Errorf("case step 2 send: %w", err)
	}

	// Step 3: wait for StatusReport (session complete)
	if _, err := handler.waitForNextMessage(ctx); err != nil {
		return nil, err
	}

	candidates := c.sessionManager.FindSecureContextByPeer(fabricInfo.FabricIndex, fabric.NodeID(targetNodeID))
	for _, sess := range candidates {
		if sess.SessionType() == session.SessionTypeCASE {
			return sess, nil
		}
	}

	return nil, ErrCASEFailed
}

// caseHandler handles CASE response messages as exchange.ExchangeDelegate.
type caseHandler struct {
	secureChannel *securechannel.Manager
	exchangeID    uint16

	msgCh chan caseResult

	mu   sync.Mutex
	done bool
}

type caseResult struct {
	nextMsg *securechannel.Message
	err     error
}

func newCASEHandler(secureChannel *securechannel.Manager) *caseHandler {
	return &caseHandler{
		secureChannel: secureChannel,
		msgCh:         make(chan caseResult, 1),
	}
}

// OnMessage implements exchange.ExchangeDelegate.
func (h *caseHandler) OnMessage(
	ctx *exchange.ExchangeContext,
	header *message.ProtocolHeader,
	payload []byte,
) ([]byte, error) {
	h.mu.Lock()
	if h.done {
		h.mu.Unlock()
		return nil, nil
	}
	h.exchangeID = ctx.ID
	h.mu.Unlock()

	opcode := securechannel.Opcode(header.ProtocolOpcode)

	if opcode == securechannel.OpcodeStandaloneAck ||
		opcode == securechannel.OpcodeMsgCounterSyncReq ||
		opcode == securechannel.OpcodeMsgCounterSyncResp {
		return nil, nil
	}

	msg := &securechannel.Message{
		Opcode:  opcode,
		Payload: payload,
	}
	nextMsg, err := h.secureChannel.Route(ctx.ID, msg)
	if err != nil {
		h.sendResult(caseResult{err: err})
		return nil, err
	}

	if opcode == securechannel.OpcodeStatusReport {
		status, err := securechannel.DecodeStatusReport(payload)
		if err != nil {
			h.sendResult(caseResult{err: err})
			return nil, err
		}

		if !status.IsSuccess() {
			h.sendResult(caseResult{err: ErrCASEFailed})
			return nil, ErrCASEFailed
		}

		h.mu.Lock()
		h.done = true
		h.mu.Unlock()

		h.sendResult(caseResult{nextMsg: nil})
		return nil, nil
	}

	h.sendResult(caseResult{nextMsg: nextMsg})
	return nil, nil
}

// OnClose implements exchange.ExchangeDelegate.
func (h *caseHandler) OnClose(ctx *exchange.ExchangeContext) {
	h.sendResult(caseResult{err: errors.New("commissioning: exchange closed before CASE completed")})
}

func (h *caseHandler) sendResult(result caseResult) {
	select {
	case h.msgCh <- result:
	default:
	}
}

func (h *caseHandler) waitForNextMessage(ctx context.Context) (*securechannel.Message, error) {
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%w: %v", ErrCASEFailed, ctx.Err())
	case result := <-h.msgCh:
		if result.err != nil {
			return nil, result.err
		}
		return result.nextMsg, nil
	}
}

