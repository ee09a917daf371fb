package fabric

import (
	"errors"
	"fmt"
)

// ErrInvalidArgument is returned when a caller-supplied buffer (certificate,
// label) exceeds its maximum size, or an index/value is out of range.
var ErrInvalidArgument = errors.New("fabric: invalid argument")

// SetRootCert stores the fabric's Root CA Certificate (RCAC), replacing any
// previously set root certificate. Returns ErrInvalidArgument if the
// certificate exceeds MaxCertSize.
func (f *FabricInfo) SetRootCert(rootCertTLV []byte) error {
	if len(rootCertTLV) > MaxCertSize {
		return fmt.Errorf("%w: root cert is %d bytes (max %d)", ErrInvalidArgument, len(rootCertTLV), MaxCertSize)
	}
	f.RootCert = append([]byte(nil), rootCertTLV...)
	return nil
}

// SetIntermediateCert stores the fabric's Intermediate CA Certificate
// (ICAC), replacing any previously set ICAC. A nil or empty slice clears the
// ICAC. Returns ErrInvalidArgument if the certificate exceeds MaxCertSize.
func (f *FabricInfo) SetIntermediateCert(icacTLV []byte) error {
	if len(icacTLV) > MaxCertSize {
		return fmt.Errorf("%w: ICAC is %d bytes (max %d)", ErrInvalidArgument, len(icacTLV), MaxCertSize)
	}
	if len(icacTLV) == 0 {
		f.ICAC = nil
		return nil
	}
	f.ICAC = append([]byte(nil), icacTLV...)
	return nil
}

// SetNOC stores the fabric's Node Operational Certificate, replacing any
// previously set NOC. Returns ErrInvalidArgument if the certificate exceeds
// MaxCertSize.
func (f *FabricInfo) SetNOC(nocTLV []byte) error {
	if len(nocTLV) > MaxCertSize {
		return fmt.Errorf("%w: NOC is %d bytes (max %d)", ErrInvalidArgument, len(nocTLV), MaxCertSize)
	}
	f.NOC = append([]byte(nil), nocTLV...)
	return nil
}
