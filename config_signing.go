package eventguard

import (
	"crypto/ed25519"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
)

// ============================================================================
// CONFIG SIGNING
// ============================================================================

// SignedConfig carries a capability config together with its detached
// signature, so deployments can verify the role model they load came from
// the club's release pipeline.
type SignedConfig struct {
	Config    *Config `json:"config" yaml:"config"`
	Signature string  `json:"signature" yaml:"signature"`
}

// GenerateSigningKey creates a fresh ed25519 key pair.
func GenerateSigningKey() (ed25519.PublicKey, ed25519.PrivateKey, error) {
	return ed25519.GenerateKey(rand.Reader)
}

// configDigest is the canonical signing input: sha256 over the JSON
// encoding, so a YAML↔JSON conversion does not break signatures.
func configDigest(cfg *Config) ([]byte, error) {
	data, err := json.Marshal(cfg)
	if err != nil {
		return nil, err
	}
	sum := sha256.Sum256(data)
	return sum[:], nil
}

// SignConfig returns an ed25519 signature (base64) over the config digest.
func SignConfig(priv ed25519.PrivateKey, cfg *Config) (string, error) {
	if len(priv) != ed25519.PrivateKeySize {
		return "", fmt.Errorf("config: private key must be %d bytes", ed25519.PrivateKeySize)
	}
	digest, err := configDigest(cfg)
	if err != nil {
		return "", err
	}
	sig := ed25519.Sign(priv, digest)
	return base64.StdEncoding.EncodeToString(sig), nil
}

// VerifyConfig checks a base64 signature against the config digest.
func VerifyConfig(pub ed25519.PublicKey, cfg *Config, sigB64 string) (bool, error) {
	if len(pub) != ed25519.PublicKeySize {
		return false, fmt.Errorf("config: public key must be %d bytes", ed25519.PublicKeySize)
	}
	sig, err := base64.StdEncoding.DecodeString(sigB64)
	if err != nil {
		return false, err
	}
	digest, err := configDigest(cfg)
	if err != nil {
		return false, err
	}
	return ed25519.Verify(pub, digest, sig), nil
}

// NewSignedConfig signs cfg and wraps both for distribution.
func NewSignedConfig(priv ed25519.PrivateKey, cfg *Config) (*SignedConfig, error) {
	sig, err := SignConfig(priv, cfg)
	if err != nil {
		return nil, err
	}
	return &SignedConfig{Config: cfg, Signature: sig}, nil
}

// Verify checks the embedded signature with the given public key.
func (s *SignedConfig) Verify(pub ed25519.PublicKey) (bool, error) {
	if s.Config == nil {
		return false, fmt.Errorf("config: signed config has no config")
	}
	return VerifyConfig(pub, s.Config, s.Signature)
}
