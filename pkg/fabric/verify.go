package fabric

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/openfabric-io/devicecore/pkg/credentials"
)

// Credential verification errors. These are distinguished from the more
// generic ValidateNOCChain errors because callers (notably commissioning)
// branch on which one occurred.
var (
	// ErrFabricMismatchOnICA is returned when the ICAC's fabric ID (if
	// present) does not match the NOC's fabric ID.
	ErrFabricMismatchOnICA = errors.New("fabric: ICAC fabric ID does not match NOC")
	// ErrWrongCertDN is returned when a certificate's issuer does not match
	// the expected signer's subject (the chain's AKID/SKID linkage is
	// broken).
	ErrWrongCertDN = errors.New("fabric: certificate issuer does not match expected signer")
	// ErrCertNotTrusted is returned when the presented root certificate does
	// not match the fabric's already-trusted root.
	ErrCertNotTrusted = errors.New("fabric: root certificate is not trusted for this fabric")
)

// VerifyCredentials validates a presented certificate chain against this
// fabric's already-trusted root certificate and extracts the resulting
// chain info.
//
// Unlike ValidateNOCChain, which only checks internal chain consistency,
// VerifyCredentials additionally requires that rootCertTLV matches the
// fabric's existing RootCert, so a NOC cannot be accepted under a fabric
// whose trust anchor it was not actually issued from.
func (f *FabricInfo) VerifyCredentials(rootCertTLV, nocTLV, icacTLV []byte) (*ChainInfo, error) {
	if len(f.RootCert) > 0 && !bytes.Equal(f.RootCert, rootCertTLV) {
		return nil, ErrCertNotTrusted
	}

	rootCert, err := ParseCertificate(rootCertTLV)
	if err != nil {
		return nil, fmt.Errorf("root certificate: %w", err)
	}
	if rootCert.Type() != credentials.CertTypeRCAC {
		return nil, fmt.Errorf("root certificate: %w: expected RCAC, got %s", ErrInvalidCertificateType, rootCert.Type())
	}

	nocCert, err := ParseCertificate(nocTLV)
	if err != nil {
		return nil, fmt.Errorf("NOC: %w", err)
	}
	if nocCert.Type() != credentials.CertTypeNOC {
		return nil, fmt.Errorf("NOC: %w: expected NOC, got %s", ErrInvalidCertificateType, nocCert.Type())
	}

	nocFabricID, err := ExtractFabricID(nocCert)
	if err != nil {
		return nil, fmt.Errorf("NOC: %w", err)
	}
	nodeID, err := ExtractNodeID(nocCert)
	if err != nil {
		return nil, fmt.Errorf("NOC: %w", err)
	}

	rcacFabricID, rcacHasFabricID := ExtractFabricIDOptional(rootCert)
	if rcacHasFabricID && rcacFabricID != nocFabricID {
		return nil, fmt.Errorf("root: %w", ErrWrongCertDN)
	}

	if len(icacTLV) > 0 {
		icacCert, err := ParseCertificate(icacTLV)
		if err != nil {
			return nil, fmt.Errorf("ICAC: %w", err)
		}
		if icacCert.Type() != credentials.CertTypeICAC {
			return nil, fmt.Errorf("ICAC: %w: expected ICAC, got %s", ErrInvalidCertificateType, icacCert.Type())
		}
		icacFabricID, icacHasFabricID := ExtractFabricIDOptional(icacCert)
		if rcacHasFabricID && !icacHasFabricID {
			return nil, fmt.Errorf("ICAC: %w", ErrFabricMismatchOnICA)
		}
		if icacHasFabricID && icacFabricID != nocFabricID {
			return nil, ErrFabricMismatchOnICA
		}
		if !bytes.Equal(icacCert.AuthorityKeyID(), rootCert.SubjectKeyID()) {
			return nil, fmt.Errorf("ICAC: %w", ErrWrongCertDN)
		}
		if !bytes.Equal(nocCert.AuthorityKeyID(), icacCert.SubjectKeyID()) {
			return nil, fmt.Errorf("NOC: %w", ErrWrongCertDN)
		}
	} else if !bytes.Equal(nocCert.AuthorityKeyID(), rootCert.SubjectKeyID()) {
		return nil, fmt.Errorf("NOC: %w", ErrWrongCertDN)
	}

	rootPubKey, err := ExtractRootPublicKey(rootCert)
	if err != nil {
		return nil, err
	}

	return &ChainInfo{
		FabricID:      nocFabricID,
		NodeID:        nodeID,
		RootPublicKey: rootPubKey,
		NOCCATs:       nocCert.NOCCATs(),
	}, nil
}
