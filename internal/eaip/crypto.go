package eaip

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"fmt"
	"io"
)

// DefaultPublicKey is the key the portal's login page encrypts passwords with.
const DefaultPublicKey = `-----BEGIN PUBLIC KEY-----
MIGfMA0GCSqGSIb3DQEBAQUAA4GNADCBiQKBgQCleaaZ4rYClmsDKlDXxrEZvRXs
WqArQ4j+COOOyNLfJU3vSCrbSc1VcPEm3eOnPvSG3dhA0o9ttR+13g3kfi3gGvMc
Yi9dTQ0ZIbHsXNze4vlI32yOmJjeig1ijlqivcVvJRk8c0HUlaWcmBqTDhMvN/lv
yc7BQ34Ao/JH862rRQIDAQAB
-----END PUBLIC KEY-----`

// Encryptor turns a plaintext password into the ciphertext the login
// endpoint expects.
type Encryptor interface {
	Encrypt(plaintext string) (string, error)
}

// RSAEncryptor encrypts with PKCS #1 v1.5 and encodes the result as standard
// base64.
type RSAEncryptor struct {
	key    *rsa.PublicKey
	random io.Reader
}

func NewRSAEncryptor(pemKey string) (RSAEncryptor, error) {
	block, _ := pem.Decode([]byte(pemKey))
	if block == nil {
		return RSAEncryptor{}, fmt.Errorf("no PEM block found in public key")
	}
	parsed, err := x509.ParsePKIXPublicKey(block.Bytes)
	if err != nil {
		return RSAEncryptor{}, fmt.Errorf("parse public key: %w", err)
	}
	key, ok := parsed.(*rsa.PublicKey)
	if !ok {
		return RSAEncryptor{}, fmt.Errorf("public key is %T, not RSA", parsed)
	}
	return RSAEncryptor{key: key, random: rand.Reader}, nil
}

func NewRSAEncryptorFromKey(key *rsa.PublicKey) RSAEncryptor {
	return RSAEncryptor{key: key, random: rand.Reader}
}

func (e RSAEncryptor) Encrypt(plaintext string) (string, error) {
	ciphertext, err := rsa.EncryptPKCS1v15(e.random, e.key, []byte(plaintext))
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(ciphertext), nil
}
