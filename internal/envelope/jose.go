package envelope

import (
	"crypto/rsa"
	"encoding/json"
	"fmt"

	"github.com/go-jose/go-jose/v4"
)

// The current protocol nests a JWS signature inside a JWE envelope:
// wrap produces encrypt({"data": d, "sign": sign(d)}), so verifying the
// signature always requires decrypting first.

var (
	signAlgs    = []jose.SignatureAlgorithm{jose.RS256}
	keyAlgs     = []jose.KeyAlgorithm{jose.RSA_OAEP}
	contentEncs = []jose.ContentEncryption{jose.A128CBC_HS256}
)

// Sign serializes claims and produces a compact JWS (RS256).
func Sign(claims map[string]any, priv *rsa.PrivateKey) (string, error) {
	payload, err := json.Marshal(claims)
	if err != nil {
		return "", fmt.Errorf("encode claims: %w", err)
	}

	signer, err := jose.NewSigner(jose.SigningKey{Algorithm: jose.RS256, Key: priv}, nil)
	if err != nil {
		return "", fmt.Errorf("build signer: %w", err)
	}
	obj, err := signer.Sign(payload)
	if err != nil {
		return "", fmt.Errorf("sign claims: %w", err)
	}
	return obj.CompactSerialize()
}

// Verify checks a compact JWS and returns its claims. Fails closed with
// ErrInvalidSignature on any mismatch or malformed token.
func Verify(token string, pub *rsa.PublicKey) (map[string]any, error) {
	obj, err := jose.ParseSigned(token, signAlgs)
	if err != nil {
		return nil, ErrInvalidSignature
	}
	payload, err := obj.Verify(pub)
	if err != nil {
		return nil, ErrInvalidSignature
	}

	var claims map[string]any
	if err := json.Unmarshal(payload, &claims); err != nil {
		return nil, ErrInvalidSignature
	}
	return claims, nil
}

// Encrypt produces a compact JWE (RSA-OAEP key wrap, AES-CBC-HMAC content
// encryption) of the claims.
func Encrypt(claims map[string]any, pub *rsa.PublicKey) (string, error) {
	payload, err := json.Marshal(claims)
	if err != nil {
		return "", fmt.Errorf("encode claims: %w", err)
	}

	enc, err := jose.NewEncrypter(
		jose.A128CBC_HS256,
		jose.Recipient{Algorithm: jose.RSA_OAEP, Key: pub},
		nil,
	)
	if err != nil {
		return "", fmt.Errorf("build encrypter: %w", err)
	}
	obj, err := enc.Encrypt(payload)
	if err != nil {
		return "", fmt.Errorf("encrypt claims: %w", err)
	}
	return obj.CompactSerialize()
}

// Decrypt opens a compact JWE. Fails closed with ErrInvalidData; a failed
// decryption never yields partial plaintext.
func Decrypt(token string, priv *rsa.PrivateKey) (map[string]any, error) {
	obj, err := jose.ParseEncrypted(token, keyAlgs, contentEncs)
	if err != nil {
		return nil, ErrInvalidData
	}
	payload, err := obj.Decrypt(priv)
	if err != nil {
		return nil, ErrInvalidData
	}

	var claims map[string]any
	if err := json.Unmarshal(payload, &claims); err != nil {
		return nil, ErrInvalidData
	}
	return claims, nil
}

// Wrap signs data with signKey and encrypts the {data, sign} structure for
// encKey.
func Wrap(data map[string]any, signKey *rsa.PrivateKey, encKey *rsa.PublicKey) (string, error) {
	sig, err := Sign(data, signKey)
	if err != nil {
		return "", err
	}
	return Encrypt(map[string]any{"data": data, "sign": sig}, encKey)
}

// Unwrap decrypts a wrapped token, then verifies the embedded signature.
// Decrypt failures surface as ErrInvalidData, verify failures as
// ErrInvalidSignature; only when both succeed is the inner data returned.
func Unwrap(token string, decKey *rsa.PrivateKey, verifyKey *rsa.PublicKey) (map[string]any, error) {
	outer, err := Decrypt(token, decKey)
	if err != nil {
		return nil, err
	}

	sig, ok := outer["sign"].(string)
	if !ok {
		return nil, ErrInvalidSignature
	}
	data, ok := outer["data"].(map[string]any)
	if !ok {
		return nil, ErrInvalidData
	}

	signed, err := Verify(sig, verifyKey)
	if err != nil {
		return nil, err
	}

	// The signature covers the exact data structure; a token whose signed
	// claims diverge from the carried data was tampered with after signing.
	if !jsonEqual(signed, data) {
		return nil, ErrInvalidSignature
	}
	return data, nil
}

func jsonEqual(a, b map[string]any) bool {
	ra, err := json.Marshal(a)
	if err != nil {
		return false
	}
	rb, err := json.Marshal(b)
	if err != nil {
		return false
	}
	return string(ra) == string(rb)
}
