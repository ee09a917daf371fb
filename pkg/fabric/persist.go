package fabric

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/openfabric-io/devicecore/pkg/crypto"
	"github.com/openfabric-io/devicecore/pkg/kvstore"
)

// ErrNotInitialized is returned by Table operations that require a
// persistence backend when Init has not been called.
var ErrNotInitialized = errors.New("fabric: table not initialized with storage")

const (
	labelFieldSize = MaxLabelSize + 1 // NUL-terminated
)

// storageKey returns the KV key under which fabric index's entry is stored:
// "Fabric" followed by the zero-padded lowercase hex fabric index.
func storageKey(index FabricIndex) string {
	return fmt.Sprintf("Fabric%02x", uint8(index))
}

// marshal encodes the fabric entry into its fixed-layout persisted record:
//
//	index(1) || vendorID(2 LE) || rootCertLen/icacLen/nocLen(2 LE each) ||
//	ipk(16) || keyPairPresent(1) || serializedKeyPair(97) ||
//	rootCert[MaxCertSize] || icacCert[MaxCertSize] || nocCert[MaxCertSize] ||
//	label[33] (NUL-terminated)
func (f *FabricInfo) marshal() ([]byte, error) {
	if len(f.RootCert) > MaxCertSize || len(f.ICAC) > MaxCertSize || len(f.NOC) > MaxCertSize {
		return nil, fmt.Errorf("%w: certificate exceeds MaxCertSize", ErrInvalidArgument)
	}
	if len(f.Label) > MaxLabelSize {
		return nil, fmt.Errorf("%w: label exceeds MaxLabelSize", ErrInvalidArgument)
	}

	buf := make([]byte, 0, 1+2+2+2+2+IPKSize+1+crypto.P256SerializedKeypairSizeBytes+3*MaxCertSize+labelFieldSize)

	buf = append(buf, uint8(f.FabricIndex))

	var u16 [2]byte
	binary.LittleEndian.PutUint16(u16[:], uint16(f.VendorID))
	buf = append(buf, u16[:]...)
	binary.LittleEndian.PutUint16(u16[:], uint16(len(f.RootCert)))
	buf = append(buf, u16[:]...)
	binary.LittleEndian.PutUint16(u16[:], uint16(len(f.ICAC)))
	buf = append(buf, u16[:]...)
	binary.LittleEndian.PutUint16(u16[:], uint16(len(f.NOC)))
	buf = append(buf, u16[:]...)

	buf = append(buf, f.IPK[:]...)

	if f.keyPair != nil {
		serialized, err := f.keyPair.Serialize()
		if err != nil {
			return nil, fmt.Errorf("fabric: serialize operational key pair: %w", err)
		}
		if len(serialized) != crypto.P256SerializedKeypairSizeBytes {
			return nil, fmt.Errorf("fabric: unexpected serialized key pair size %d", len(serialized))
		}
		buf = append(buf, 1)
		buf = append(buf, serialized...)
	} else {
		buf = append(buf, 0)
		buf = append(buf, make([]byte, crypto.P256SerializedKeypairSizeBytes)...)
	}

	rootCert := make([]byte, MaxCertSize)
	copy(rootCert, f.RootCert)
	buf = append(buf, rootCert...)

	icacCert := make([]byte, MaxCertSize)
	copy(icacCert, f.ICAC)
	buf = append(buf, icacCert...)

	nocCert := make([]byte, MaxCertSize)
	copy(nocCert, f.NOC)
	buf = append(buf, nocCert...)

	label := make([]byte, labelFieldSize)
	copy(label, f.Label)
	buf = append(buf, label...)

	return buf, nil
}

// recordSize is the fixed size in bytes of a marshaled fabric record.
func recordSize() int {
	return 1 + 2 + 2 + 2 + 2 + IPKSize + 1 + crypto.P256SerializedKeypairSizeBytes + 3*MaxCertSize + labelFieldSize
}

func unmarshalFabricInfo(data []byte) (*FabricInfo, error) {
	if len(data) != recordSize() {
		return nil, fmt.Errorf("fabric: corrupt record: expected %d bytes, got %d", recordSize(), len(data))
	}

	off := 0
	index := FabricIndex(data[off])
	off++

	vendorID := VendorID(binary.LittleEndian.Uint16(data[off:]))
	off += 2
	rootLen := int(binary.LittleEndian.Uint16(data[off:]))
	off += 2
	icacLen := int(binary.LittleEndian.Uint16(data[off:]))
	off += 2
	nocLen := int(binary.LittleEndian.Uint16(data[off:]))
	off += 2

	var ipk [IPKSize]byte
	copy(ipk[:], data[off:off+IPKSize])
	off += IPKSize

	keyPairPresent := data[off] != 0
	off++
	serializedKeyPair := data[off : off+crypto.P256SerializedKeypairSizeBytes]
	off += crypto.P256SerializedKeypairSizeBytes

	if rootLen > MaxCertSize || icacLen > MaxCertSize || nocLen > MaxCertSize {
		return nil, fmt.Errorf("fabric: corrupt record: certificate length out of range")
	}

	rootCert := append([]byte(nil), data[off:off+rootLen]...)
	off += MaxCertSize
	icacCert := append([]byte(nil), data[off:off+icacLen]...)
	off += MaxCertSize
	nocCert := append([]byte(nil), data[off:off+nocLen]...)
	off += MaxCertSize

	labelBytes := data[off : off+labelFieldSize]
	nul := len(labelBytes)
	for i, b := range labelBytes {
		if b == 0 {
			nul = i
			break
		}
	}
	label := string(labelBytes[:nul])

	var icacArg []byte
	if len(icacCert) > 0 {
		icacArg = icacCert
	}

	info, err := NewFabricInfo(index, rootCert, nocCert, icacArg, vendorID, ipk)
	if err != nil {
		return nil, fmt.Errorf("fabric: reconstruct fabric %d: %w", index, err)
	}
	info.Label = label

	if keyPairPresent {
		kp, err := SoftwareKeyPairFromSerialized(serializedKeyPair)
		if err != nil {
			return nil, fmt.Errorf("fabric: reconstruct key pair for fabric %d: %w", index, err)
		}
		info.keyPair = kp
	}

	return info, nil
}

// Init attaches a persistence backend to the table and loads any
// previously-stored fabrics from it. It must be called once before Store,
// Delete, or AddNewFabric are used.
func (t *Table) Init(storage kvstore.Store) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.storage = storage

	for idx := FabricIndexMin; idx <= FabricIndexMax; idx++ {
		data, err := storage.Get(storageKey(idx))
		if errors.Is(err, kvstore.ErrNotFound) {
			continue
		}
		if err != nil {
			return fmt.Errorf("fabric: load fabric %d: %w", idx, err)
		}
		info, err := unmarshalFabricInfo(data)
		if err != nil {
			return err
		}
		t.fabrics[idx] = info
	}
	return nil
}

// Store persists the in-memory fabric at index to the attached storage
// backend and notifies delegates. Requires Init to have been called.
func (t *Table) Store(index FabricIndex) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.storage == nil {
		return ErrNotInitialized
	}
	if !index.IsValid() || t.fabrics[index] == nil {
		return ErrFabricNotFound
	}
	info := t.fabrics[index]

	data, err := info.marshal()
	if err != nil {
		return err
	}
	if err := t.storage.Set(storageKey(index), data); err != nil {
		return fmt.Errorf("fabric: persist fabric %d: %w", index, err)
	}

	t.notifyPersisted(index)
	return nil
}

// Delete removes the fabric at index from both the in-memory table and
// persistent storage, zeroizing its credential material, and notifies
// delegates. Requires Init to have been called.
func (t *Table) Delete(index FabricIndex) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.storage == nil {
		return ErrNotInitialized
	}
	if !index.IsValid() || t.fabrics[index] == nil {
		return ErrFabricNotFound
	}
	info := t.fabrics[index]

	if err := t.storage.Delete(storageKey(index)); err != nil {
		return fmt.Errorf("fabric: delete fabric %d: %w", index, err)
	}

	info.Reset()
	t.fabrics[index] = nil

	t.notifyDeleted(index)
	return nil
}

// DeleteAll removes every fabric from the table and persistent storage.
func (t *Table) DeleteAll() error {
	t.mu.RLock()
	indices := make([]FabricIndex, 0, t.liveCount())
	for idx := FabricIndexMin; idx <= FabricIndexMax; idx++ {
		if t.fabrics[idx] != nil {
			indices = append(indices, idx)
		}
	}
	t.mu.RUnlock()

	for _, idx := range indices {
		if err := t.Delete(idx); err != nil {
			return err
		}
	}
	return nil
}

// FindWithIndex returns the fabric at index, lazily loading it from storage
// if it is not already resident in memory.
//
// Returns (nil, false) if the fabric doesn't exist in memory or storage.
func (t *Table) FindWithIndex(index FabricIndex) (*FabricInfo, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if index.IsValid() && t.fabrics[index] != nil {
		return t.fabrics[index].Clone(), true
	}
	if t.storage == nil {
		return nil, false
	}

	data, err := t.storage.Get(storageKey(index))
	if err != nil {
		return nil, false
	}
	info, err := unmarshalFabricInfo(data)
	if err != nil {
		return nil, false
	}
	t.fabrics[index] = info
	return info.Clone(), true
}

// AddNewFabric verifies info's credentials, allocates the next available
// fabric index, stores the verified entry under it in memory, and persists
// it. The search for a free index starts at nextAvailableIndex and wraps
// circularly through [FabricIndexMin, FabricIndexMax], so a just-removed
// index is not immediately reused ahead of others.
//
// Credential verification runs against info's own root/NOC/ICAC (the
// validation context a commissioner just presented) before any index is
// consumed: a verification failure - e.g. ErrFabricMismatchOnICA,
// ErrWrongCertDN, ErrCertNotTrusted - is surfaced unchanged and no slot is
// allocated.
//
// Returns the allocated index, or ErrTableFull if none is available.
func (t *Table) AddNewFabric(info *FabricInfo) (FabricIndex, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.liveCount() >= int(t.config.MaxFabrics) {
		return FabricIndexInvalid, ErrTableFull
	}

	start := t.nextAvailableIndex
	if start < FabricIndexMin || start > FabricIndexMax {
		start = FabricIndexMin
	}

	allocated := FabricIndexInvalid
	idx := start
	for {
		if t.fabrics[idx] == nil {
			allocated = idx
			break
		}
		if idx == FabricIndexMax {
			idx = FabricIndexMin
		} else {
			idx++
		}
		if idx == start {
			break
		}
	}
	if allocated == FabricIndexInvalid {
		return FabricIndexInvalid, ErrTableFull
	}

	clone := info.Clone()
	clone.FabricIndex = allocated

	chainInfo, err := clone.VerifyCredentials(clone.RootCert, clone.NOC, clone.ICAC)
	if err != nil {
		return FabricIndexInvalid, err
	}
	clone.FabricID = chainInfo.FabricID
	clone.NodeID = chainInfo.NodeID
	clone.RootPublicKey = chainInfo.RootPublicKey
	compressedID, err := CompressedFabricIDFromCert(chainInfo.RootPublicKey, chainInfo.FabricID)
	if err != nil {
		return FabricIndexInvalid, err
	}
	clone.CompressedFabricID = compressedID

	t.fabrics[allocated] = clone

	if allocated == FabricIndexMax {
		t.nextAvailableIndex = FabricIndexMin
	} else {
		t.nextAvailableIndex = allocated + 1
	}

	if t.storage != nil {
		data, err := clone.marshal()
		if err != nil {
			t.fabrics[allocated] = nil
			return FabricIndexInvalid, err
		}
		if err := t.storage.Set(storageKey(allocated), data); err != nil {
			t.fabrics[allocated] = nil
			return FabricIndexInvalid, fmt.Errorf("fabric: persist fabric %d: %w", allocated, err)
		}
		t.notifyPersisted(allocated)
	}

	return allocated, nil
}
