package main

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha1"
	"crypto/x509"
	"encoding/base64"
	"encoding/json"
	"encoding/pem"
	"errors"
	"fmt"
	"math/big"
	"os"
	"strings"
)

// RSACrypt encrypts payloads with a public key and decrypts them with a
// private key, RSA-OAEP over SHA-1, base64 on the wire.
type RSACrypt struct {
	public  *rsa.PublicKey
	private *rsa.PrivateKey
}

// NewRSACrypt loads the given keys. Each argument is either a path ending in
// .pem or the PEM text itself, possibly flattened onto one line. At least one
// key is required.
func NewRSACrypt(publicKey, privateKey string) (*RSACrypt, error) {
	if publicKey == "" && privateKey == "" {
		return nil, errors.New("rsa: a public or private key is required")
	}

	c := &RSACrypt{}
	if publicKey != "" {
		block, err := loadPEM(publicKey)
		if err != nil {
			return nil, fmt.Errorf("rsa: public key: %w", err)
		}
		if c.public, err = parsePublicKey(block); err != nil {
			return nil, fmt.Errorf("rsa: public key: %w", err)
		}
	}
	if privateKey != "" {
		block, err := loadPEM(privateKey)
		if err != nil {
			return nil, fmt.Errorf("rsa: private key: %w", err)
		}
		if c.private, err = parsePrivateKey(block); err != nil {
			return nil, fmt.Errorf("rsa: private key: %w", err)
		}
	}
	return c, nil
}

func loadPEM(pathOrText string) (*pem.Block, error) {
	text := pathOrText
	if strings.HasSuffix(pathOrText, ".pem") {
		data, err := os.ReadFile(pathOrText)
		if err != nil {
			return nil, err
		}
		text = string(data)
	} else {
		text = FormatPEMKey(text)
	}

	block, _ := pem.Decode([]byte(text))
	if block == nil {
		return nil, errors.New("no PEM block found")
	}
	return block, nil
}

var pemLabels = []string{"PUBLIC KEY", "PRIVATE KEY", "RSA PUBLIC KEY", "RSA PRIVATE KEY"}

// FormatPEMKey rebuilds a PEM document whose whitespace was stripped or
// mangled, e.g. a key pasted from an environment variable.
func FormatPEMKey(key string) string {
	flat := strings.NewReplacer(" ", "", "\n", "", "\r", "", "\t", "").Replace(key)
	for _, label := range pemLabels {
		squashed := strings.ReplaceAll(label, " ", "")
		begin := "-----BEGIN" + squashed + "-----"
		end := "-----END" + squashed + "-----"
		if !strings.HasPrefix(flat, begin) || !strings.HasSuffix(flat, end) {
			continue
		}
		body := strings.TrimSuffix(strings.TrimPrefix(flat, begin), end)
		return "-----BEGIN " + label + "-----\n" + body + "\n-----END " + label + "-----\n"
	}
	return key
}

func parsePublicKey(block *pem.Block) (*rsa.PublicKey, error) {
	if block.Type == "RSA PUBLIC KEY" {
		return x509.ParsePKCS1PublicKey(block.Bytes)
	}
	key, err := x509.ParsePKIXPublicKey(block.Bytes)
	if err != nil {
		return nil, err
	}
	pub, ok := key.(*rsa.PublicKey)
	if !ok {
		return nil, fmt.Errorf("not an RSA key (%T)", key)
	}
	return pub, nil
}

func parsePrivateKey(block *pem.Block) (*rsa.PrivateKey, error) {
	if block.Type == "RSA PRIVATE KEY" {
		return x509.ParsePKCS1PrivateKey(block.Bytes)
	}
	key, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		return nil, err
	}
	priv, ok := key.(*rsa.PrivateKey)
	if !ok {
		return nil, fmt.Errorf("not an RSA key (%T)", key)
	}
	return priv, nil
}

// ModulusExponent returns n and e of the public key.
func (c *RSACrypt) ModulusExponent() (*big.Int, int, error) {
	if c.public == nil {
		return nil, 0, errors.New("rsa: public key not loaded")
	}
	return c.public.N, c.public.E, nil
}

// Encrypt encrypts data and returns it base64 encoded. Strings and byte
// slices are encrypted as-is; anything else is JSON encoded first.
func (c *RSACrypt) Encrypt(data any) (string, error) {
	if c.public == nil {
		return "", errors.New("rsa: public key not loaded, cannot encrypt")
	}

	var plain []byte
	switch v := data.(type) {
	case string:
		plain = []byte(v)
	case []byte:
		plain = v
	default:
		b, err := json.Marshal(v)
		if err != nil {
			return "", fmt.Errorf("rsa: encode payload: %w", err)
		}
		plain = b
	}

	out, err := rsa.EncryptOAEP(sha1.New(), rand.Reader, c.public, plain, nil)
	if err != nil {
		return "", fmt.Errorf("rsa: encrypt: %w", err)
	}
	return base64.StdEncoding.EncodeToString(out), nil
}

// Decrypt reverses Encrypt.
func (c *RSACrypt) Decrypt(encoded string) (string, error) {
	if c.private == nil {
		return "", errors.New("rsa: private key not loaded, cannot decrypt")
	}
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", fmt.Errorf("rsa: decode base64: %w", err)
	}
	plain, err := rsa.DecryptOAEP(sha1.New(), rand.Reader, c.private, raw, nil)
	if err != nil {
		return "", fmt.Errorf("rsa: decrypt: %w", err)
	}
	return string(plain), nil
}
