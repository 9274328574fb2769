package eventguard

import (
	"encoding/json"
	"testing"
)

func TestSignedConfigRoundTrip(t *testing.T) {
	pub, priv, err := GenerateSigningKey()
	if err != nil {
		t.Fatalf("GenerateSigningKey: %v", err)
	}
	signed, err := NewSignedConfig(priv, DefaultConfig())
	if err != nil {
		t.Fatalf("NewSignedConfig: %v", err)
	}
	ok, err := signed.Verify(pub)
	if err != nil || !ok {
		t.Fatalf("verify: ok=%v err=%v", ok, err)
	}

	// The wrapper survives serialization.
	data, err := json.Marshal(signed)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var decoded SignedConfig
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	ok, err = decoded.Verify(pub)
	if err != nil || !ok {
		t.Fatalf("verify decoded: ok=%v err=%v", ok, err)
	}
}

func TestSignedConfigDetectsTampering(t *testing.T) {
	pub, priv, err := GenerateSigningKey()
	if err != nil {
		t.Fatalf("GenerateSigningKey: %v", err)
	}
	cfg := DefaultConfig()
	signed, err := NewSignedConfig(priv, cfg)
	if err != nil {
		t.Fatalf("NewSignedConfig: %v", err)
	}

	// Quietly grant members deletion authority after signing.
	for i := range cfg.Roles {
		if cfg.Roles[i].Role == "member" {
			cfg.Roles[i].Capabilities = append(cfg.Roles[i].Capabilities, CapabilityDeleteEvents)
		}
	}
	ok, err := signed.Verify(pub)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if ok {
		t.Fatalf("tampered config still verified")
	}
}

func TestSignedConfigWrongKey(t *testing.T) {
	_, priv, _ := GenerateSigningKey()
	otherPub, _, _ := GenerateSigningKey()
	signed, err := NewSignedConfig(priv, DefaultConfig())
	if err != nil {
		t.Fatalf("NewSignedConfig: %v", err)
	}
	if ok, _ := signed.Verify(otherPub); ok {
		t.Fatalf("verified with the wrong public key")
	}
}

func TestSigningRejectsBadKeys(t *testing.T) {
	if _, err := SignConfig([]byte("short"), DefaultConfig()); err == nil {
		t.Fatalf("expected short private key rejected")
	}
	if _, err := VerifyConfig([]byte("short"), DefaultConfig(), "AAAA"); err == nil {
		t.Fatalf("expected short public key rejected")
	}
	pub, _, _ := GenerateSigningKey()
	if _, err := VerifyConfig(pub, DefaultConfig(), "not base64!!!"); err == nil {
		t.Fatalf("expected malformed signature rejected")
	}
}

// Signatures are computed over the JSON encoding, so converting the file
// between YAML and JSON must not break them.
func TestSignatureSurvivesFormatConversion(t *testing.T) {
	pub, priv, _ := GenerateSigningKey()
	cfg := DefaultConfig()
	sig, err := SignConfig(priv, cfg)
	if err != nil {
		t.Fatalf("SignConfig: %v", err)
	}

	data, err := cfg.ToYAML()
	if err != nil {
		t.Fatalf("ToYAML: %v", err)
	}
	loaded, err := NewConfigLoader().LoadYAML(data)
	if err != nil {
		t.Fatalf("LoadYAML: %v", err)
	}
	ok, err := VerifyConfig(pub, loaded, sig)
	if err != nil || !ok {
		t.Fatalf("signature broke across formats: ok=%v err=%v", ok, err)
	}
}
