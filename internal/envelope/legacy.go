// Package envelope implements the two wire containers of the sync
// protocol: the legacy signed-plaintext file format and the JOSE
// signed+encrypted token format. Both fail closed: no payload is handed to
// the caller before its signature verifies, and a decryption failure never
// leaks partial plaintext.
package envelope

import (
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha1"
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"
	"os"
)

// Typed conditions the session handler maps onto protocol error codes.
var (
	ErrInvalidSignature = errors.New("envelope: invalid signature")
	ErrInvalidData      = errors.New("envelope: invalid data")
)

// SignatureLength is the fixed trailing-signature block size of the legacy
// format, tied to the 2048-bit server keys.
const SignatureLength = 256

// LegacyCodec reads and writes the legacy file format: compact JSON
// followed by a raw RSA signature block. Deployed agents sign with SHA-1;
// SHA-256 is the negotiated upgrade path for new agents.
type LegacyCodec struct {
	root   string
	sha256 bool
}

// NewLegacyCodec builds a codec rooted at the exchange directory. All
// filenames are validated against root before any file operation.
func NewLegacyCodec(root string, useSHA256 bool) *LegacyCodec {
	return &LegacyCodec{root: root, sha256: useSHA256}
}

func (c *LegacyCodec) hash() (crypto.Hash, func([]byte) []byte) {
	if c.sha256 {
		return crypto.SHA256, func(b []byte) []byte {
			d := sha256.Sum256(b)
			return d[:]
		}
	}
	return crypto.SHA1, func(b []byte) []byte {
		d := sha1.Sum(b)
		return d[:]
	}
}

// Sign computes the detached signature of data.
func (c *LegacyCodec) Sign(data []byte, priv *rsa.PrivateKey) ([]byte, error) {
	hash, digest := c.hash()
	sig, err := rsa.SignPKCS1v15(rand.Reader, priv, hash, digest(data))
	if err != nil {
		return nil, fmt.Errorf("sign payload: %w", err)
	}
	return sig, nil
}

// VerifyBytes checks a detached signature. Returns ErrInvalidSignature on
// any mismatch.
func (c *LegacyCodec) VerifyBytes(data, sig []byte, pub *rsa.PublicKey) error {
	hash, digest := c.hash()
	if err := rsa.VerifyPKCS1v15(pub, hash, digest(data), sig); err != nil {
		return ErrInvalidSignature
	}
	return nil
}

// Wrap serializes payload to compact JSON, writes it to name under the
// codec root and appends the raw signature block.
func (c *LegacyCodec) Wrap(name string, payload any, priv *rsa.PrivateKey) error {
	path, err := ValidatePath(c.root, name)
	if err != nil {
		return err
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode payload: %w", err)
	}
	sig, err := c.Sign(body, priv)
	if err != nil {
		return err
	}

	return os.WriteFile(path, append(body, sig...), 0o600)
}

// Unwrap reads name, splits the trailing signature block, verifies it and
// parses the JSON payload. Failures surface as ErrInvalidSignature or
// ErrInvalidData; the cleartext is never returned before the signature
// verifies.
func (c *LegacyCodec) Unwrap(name string, pub *rsa.PublicKey) (map[string]any, error) {
	path, err := ValidatePath(c.root, name)
	if err != nil {
		return nil, err
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read envelope: %w", err)
	}
	return c.UnwrapBytes(raw, pub)
}

// UnwrapBytes is Unwrap for an in-memory envelope (the HTTP transport hands
// the uploaded body over directly).
func (c *LegacyCodec) UnwrapBytes(raw []byte, pub *rsa.PublicKey) (map[string]any, error) {
	if len(raw) < SignatureLength {
		return nil, ErrInvalidSignature
	}

	body := raw[:len(raw)-SignatureLength]
	sig := raw[len(raw)-SignatureLength:]

	if err := c.VerifyBytes(body, sig, pub); err != nil {
		return nil, err
	}

	var payload map[string]any
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, ErrInvalidData
	}
	return payload, nil
}

// WrapBytes is Wrap without the file write, for the HTTP transport.
func (c *LegacyCodec) WrapBytes(payload any, priv *rsa.PrivateKey) ([]byte, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode payload: %w", err)
	}
	sig, err := c.Sign(body, priv)
	if err != nil {
		return nil, err
	}
	return append(body, sig...), nil
}
