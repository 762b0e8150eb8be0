// Package keystore resolves RSA key material by logical name. The envelope
// codec is key-material-agnostic; everything it needs comes from here.
package keystore

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"os"
	"path/filepath"

	"github.com/migasfree/migasfree-backend/internal/logger"
)

// Well-known key names. Project keys use the project slug.
const (
	ServerKeyName   = "migasfree-server"
	PackagerKeyName = "migasfree-packager"
)

const keyBits = 2048

// Store loads and generates PEM keypairs under a root directory:
// {name}.pri and {name}.pub.
type Store struct {
	root string
	log  logger.Logger
}

func New(root string, log logger.Logger) *Store {
	return &Store{root: root, log: log}
}

func (s *Store) privPath(name string) string { return filepath.Join(s.root, name+".pri") }
func (s *Store) pubPath(name string) string  { return filepath.Join(s.root, name+".pub") }

// EnsurePair generates the named keypair if it does not exist yet.
func (s *Store) EnsurePair(name string) error {
	if _, err := os.Stat(s.privPath(name)); err == nil {
		return nil
	}
	if err := os.MkdirAll(s.root, 0o700); err != nil {
		return fmt.Errorf("create keys dir: %w", err)
	}

	key, err := rsa.GenerateKey(rand.Reader, keyBits)
	if err != nil {
		return fmt.Errorf("generate keypair %s: %w", name, err)
	}

	privPEM := pem.EncodeToMemory(&pem.Block{
		Type:  "RSA PRIVATE KEY",
		Bytes: x509.MarshalPKCS1PrivateKey(key),
	})
	pubDER, err := x509.MarshalPKIXPublicKey(&key.PublicKey)
	if err != nil {
		return fmt.Errorf("marshal public key %s: %w", name, err)
	}
	pubPEM := pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: pubDER})

	if err := os.WriteFile(s.privPath(name), privPEM, 0o600); err != nil {
		return fmt.Errorf("write private key %s: %w", name, err)
	}
	if err := os.WriteFile(s.pubPath(name), pubPEM, 0o644); err != nil {
		return fmt.Errorf("write public key %s: %w", name, err)
	}

	s.log.Info("generated keypair", logger.String("name", name))
	return nil
}

// PrivateKey loads {name}.pri.
func (s *Store) PrivateKey(name string) (*rsa.PrivateKey, error) {
	raw, err := os.ReadFile(s.privPath(name))
	if err != nil {
		return nil, fmt.Errorf("read private key %s: %w", name, err)
	}
	return ParsePrivateKey(raw)
}

// PublicKey loads {name}.pub.
func (s *Store) PublicKey(name string) (*rsa.PublicKey, error) {
	raw, err := os.ReadFile(s.pubPath(name))
	if err != nil {
		return nil, fmt.Errorf("read public key %s: %w", name, err)
	}
	return ParsePublicKey(raw)
}

// PrivateKeyPEM returns the raw PEM bytes, for handing keys to registered
// agents and packagers.
func (s *Store) PrivateKeyPEM(name string) (string, error) {
	raw, err := os.ReadFile(s.privPath(name))
	if err != nil {
		return "", fmt.Errorf("read private key %s: %w", name, err)
	}
	return string(raw), nil
}

// PublicKeyPEM returns the raw PEM bytes of the public half.
func (s *Store) PublicKeyPEM(name string) (string, error) {
	raw, err := os.ReadFile(s.pubPath(name))
	if err != nil {
		return "", fmt.Errorf("read public key %s: %w", name, err)
	}
	return string(raw), nil
}

// ParsePrivateKey decodes a PEM RSA private key (PKCS#1 or PKCS#8).
func ParsePrivateKey(raw []byte) (*rsa.PrivateKey, error) {
	block, _ := pem.Decode(raw)
	if block == nil {
		return nil, fmt.Errorf("no PEM block in private key")
	}
	if key, err := x509.ParsePKCS1PrivateKey(block.Bytes); err == nil {
		return key, nil
	}
	parsed, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("parse private key: %w", err)
	}
	key, ok := parsed.(*rsa.PrivateKey)
	if !ok {
		return nil, fmt.Errorf("private key is not RSA")
	}
	return key, nil
}

// ParsePublicKey decodes a PEM RSA public key (PKIX or PKCS#1).
func ParsePublicKey(raw []byte) (*rsa.PublicKey, error) {
	block, _ := pem.Decode(raw)
	if block == nil {
		return nil, fmt.Errorf("no PEM block in public key")
	}
	if parsed, err := x509.ParsePKIXPublicKey(block.Bytes); err == nil {
		key, ok := parsed.(*rsa.PublicKey)
		if !ok {
			return nil, fmt.Errorf("public key is not RSA")
		}
		return key, nil
	}
	key, err := x509.ParsePKCS1PublicKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("parse public key: %w", err)
	}
	return key, nil
}
