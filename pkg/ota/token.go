package ota

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/binary"

	"github.com/openfabric-io/devicecore/pkg/fabric"
)

// updateTokenRandomSize is the size of the random component mixed into the
// update token, per Section 11.20.3.1.
const updateTokenRandomSize = 32

// generateUpdateToken derives a new update token as
// SHA-256(node_id || random)[0:32], binding the token to this requestor's
// operational identity so a provider cannot replay a token issued to a
// different node.
func generateUpdateToken(nodeID fabric.NodeID) ([]byte, error) {
	var random [updateTokenRandomSize]byte
	if _, err := rand.Read(random[:]); err != nil {
		return nil, err
	}

	var nodeIDBytes [8]byte
	binary.BigEndian.PutUint64(nodeIDBytes[:], uint64(nodeID))

	h := sha256.New()
	h.Write(nodeIDBytes[:])
	h.Write(random[:])
	sum := h.Sum(nil)

	return sum[:], nil
}
