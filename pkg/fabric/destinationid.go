package fabric

import (
	"encoding/binary"

	"github.com/openfabric-io/devicecore/pkg/crypto"
)

// DestinationIDSize is the size of a destination identifier in bytes.
const DestinationIDSize = 32

// RandomSize is the size of the initiator random value used in destination
// ID computation.
const RandomSize = 32

// GenerateDestinationID computes this fabric's destination identifier for a
// CASE Sigma1 exchange.
//
// destinationMessage = initiatorRandom || rootPublicKey || fabricId || nodeId
// destinationIdentifier = HMAC-SHA256(key=IPK, message=destinationMessage)
//
// nodeID selects which node identity within the fabric to address; it need
// not match f.NodeID (a node may route on behalf of other members of its
// fabric, e.g. during commissioning).
//
// Quirk: if the root public key has not been loaded (all-zero), it is
// omitted from the message entirely rather than included as 65 zero bytes.
// This reproduces a compatibility workaround present upstream for calls
// made before the root cert is available; whether peers agree on this
// shortened message is an open interoperability question.
func (f *FabricInfo) GenerateDestinationID(initiatorRandom [RandomSize]byte, nodeID NodeID) [DestinationIDSize]byte {
	msg := make([]byte, 0, RandomSize+RootPublicKeySize+8+8)
	msg = append(msg, initiatorRandom[:]...)
	if f.RootPublicKey != ([RootPublicKeySize]byte{}) {
		msg = append(msg, f.RootPublicKey[:]...)
	}

	fabricBytes := make([]byte, 8)
	binary.LittleEndian.PutUint64(fabricBytes, uint64(f.FabricID))
	msg = append(msg, fabricBytes...)

	nodeBytes := make([]byte, 8)
	binary.LittleEndian.PutUint64(nodeBytes, uint64(nodeID))
	msg = append(msg, nodeBytes...)

	return crypto.HMACSHA256(f.IPK[:], msg)
}

// MatchDestinationID reports whether candidate equals this fabric's
// destination identifier for nodeID, computed in constant time to avoid
// leaking timing information about fabric membership to an unauthenticated
// peer probing Sigma1 destination IDs.
func (f *FabricInfo) MatchDestinationID(candidate [DestinationIDSize]byte, initiatorRandom [RandomSize]byte, nodeID NodeID) bool {
	expected := f.GenerateDestinationID(initiatorRandom, nodeID)
	return crypto.HMACEqual(expected[:], candidate[:])
}

// FindDestinationIDCandidate scans all fabrics in the table for one whose
// destination ID (addressed to its own NodeID) matches destinationID,
// exactly as a responder does while processing an incoming Sigma1.
//
// Returns (nil, false) if no fabric matches.
func (t *Table) FindDestinationIDCandidate(destinationID [DestinationIDSize]byte, initiatorRandom [RandomSize]byte) (*FabricInfo, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	for idx := FabricIndexMin; idx <= FabricIndexMax; idx++ {
		info := t.fabrics[idx]
		if info == nil {
			continue
		}
		if info.MatchDestinationID(destinationID, initiatorRandom, info.NodeID) {
			return info.Clone(), true
		}
	}
	return nil, false
}
