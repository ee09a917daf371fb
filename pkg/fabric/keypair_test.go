package fabric

import "testing"

func TestSoftwareKeyPair_SignVerifyRoundtrip(t *testing.T) {
	kp, err := NewSoftwareKeyPair()
	if err != nil {
		t.Fatalf("NewSoftwareKeyPair failed: %v", err)
	}

	msg := []byte("commissioning test message")
	sig, err := kp.Sign(msg)
	if err != nil {
		t.Fatalf("Sign failed: %v", err)
	}

	ok, err := kp.Verify(msg, sig)
	if err != nil {
		t.Fatalf("Verify failed: %v", err)
	}
	if !ok {
		t.Fatal("expected signature to verify")
	}
}

func TestSoftwareKeyPair_SerializeDeserializeIsDefensiveCopy(t *testing.T) {
	kp, err := NewSoftwareKeyPair()
	if err != nil {
		t.Fatalf("NewSoftwareKeyPair failed: %v", err)
	}
	pub := append([]byte(nil), kp.PublicKey()...)

	serialized, err := kp.Serialize()
	if err != nil {
		t.Fatalf("Serialize failed: %v", err)
	}

	owned, err := SoftwareKeyPairFromSerialized(serialized)
	if err != nil {
		t.Fatalf("SoftwareKeyPairFromSerialized failed: %v", err)
	}

	if string(owned.PublicKey()) != string(pub) {
		t.Fatal("deserialized key pair has different public key")
	}

	// Zeroizing the original must not affect the owned copy.
	kp.Zeroize()

	msg := []byte("still works after original is zeroized")
	sig, err := owned.Sign(msg)
	if err != nil {
		t.Fatalf("Sign on owned copy failed: %v", err)
	}
	ok, err := owned.Verify(msg, sig)
	if err != nil || !ok {
		t.Fatalf("owned copy no longer usable after original zeroized: ok=%v err=%v", ok, err)
	}
}

func TestFabricInfo_SetOperationalKeypairDefensiveCopy(t *testing.T) {
	info := &FabricInfo{FabricIndex: FabricIndexMin}

	kp, err := NewSoftwareKeyPair()
	if err != nil {
		t.Fatalf("NewSoftwareKeyPair failed: %v", err)
	}
	if err := info.SetOperationalKeypair(kp); err != nil {
		t.Fatalf("SetOperationalKeypair failed: %v", err)
	}

	kp.Zeroize()

	stored := info.OperationalKeypair()
	if stored == nil {
		t.Fatal("expected operational key pair to be set")
	}
	if _, err := stored.Sign([]byte("msg")); err != nil {
		t.Fatalf("stored key pair should be unaffected by caller zeroizing theirs: %v", err)
	}
}

func TestFabricInfo_Reset(t *testing.T) {
	info := &FabricInfo{
		FabricIndex: FabricIndexMin,
		FabricID:    FabricID(1),
		NodeID:      NodeID(1),
		Label:       "home",
		RootCert:    []byte{0x01},
		NOC:         []byte{0x02},
	}
	kp, _ := NewSoftwareKeyPair()
	_ = info.SetOperationalKeypair(kp)

	info.Reset()

	if info.FabricIndex != FabricIndexInvalid {
		t.Fatal("expected fabric index to be reset to invalid")
	}
	if info.OperationalKeypair() != nil {
		t.Fatal("expected operational key pair to be cleared")
	}
	if info.RootCert != nil || info.NOC != nil {
		t.Fatal("expected certificates to be cleared")
	}
}
