package main

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/json"
	"encoding/pem"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// testKeyPEMs returns a fresh key pair as PKIX public and PKCS8 private PEM.
func testKeyPEMs(t *testing.T) (pub, priv string, key *rsa.PrivateKey) {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}
	pubDER, err := x509.MarshalPKIXPublicKey(&key.PublicKey)
	if err != nil {
		t.Fatalf("MarshalPKIXPublicKey: %v", err)
	}
	privDER, err := x509.MarshalPKCS8PrivateKey(key)
	if err != nil {
		t.Fatalf("MarshalPKCS8PrivateKey: %v", err)
	}
	pub = string(pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: pubDER}))
	priv = string(pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: privDER}))
	return pub, priv, key
}

func flatten(s string) string {
	return strings.NewReplacer("\n", "", " ", "").Replace(s)
}

func TestRSACryptRoundTrip(t *testing.T) {
	pub, priv, _ := testKeyPEMs(t)

	c, err := NewRSACrypt(pub, priv)
	if err != nil {
		t.Fatalf("NewRSACrypt: %v", err)
	}

	enc, err := c.Encrypt("hello")
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}
	dec, err := c.Decrypt(enc)
	if err != nil {
		t.Fatalf("Decrypt: %v", err)
	}
	if dec != "hello" {
		t.Errorf("Decrypt = %q, want hello", dec)
	}

	other, err := c.Encrypt("hello")
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}
	if other == enc {
		t.Error("OAEP ciphertexts should differ across calls")
	}
}

func TestRSACryptEncryptsStructsAsJSON(t *testing.T) {
	pub, priv, _ := testKeyPEMs(t)
	c, err := NewRSACrypt(pub, priv)
	if err != nil {
		t.Fatalf("NewRSACrypt: %v", err)
	}

	enc, err := c.Encrypt(map[string]any{"token": "abc", "score": 0.9})
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}
	dec, err := c.Decrypt(enc)
	if err != nil {
		t.Fatalf("Decrypt: %v", err)
	}

	var got map[string]any
	if err := json.Unmarshal([]byte(dec), &got); err != nil {
		t.Fatalf("decrypted payload is not JSON: %q", dec)
	}
	if got["token"] != "abc" || got["score"] != 0.9 {
		t.Errorf("payload = %v", got)
	}
}

func TestRSACryptKeySources(t *testing.T) {
	pub, priv, key := testKeyPEMs(t)

	dir := t.TempDir()
	pubPath := filepath.Join(dir, "public.pem")
	if err := os.WriteFile(pubPath, []byte(pub), 0600); err != nil {
		t.Fatal(err)
	}

	pkcs1 := string(pem.EncodeToMemory(&pem.Block{Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(key)}))

	tests := []struct {
		name string
		pub  string
		priv string
	}{
		{"file", pubPath, priv},
		{"flattened", flatten(pub), flatten(priv)},
		{"pkcs1 private", pub, pkcs1},
		{"flattened pkcs1", pub, flatten(pkcs1)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := NewRSACrypt(tt.pub, tt.priv)
			if err != nil {
				t.Fatalf("NewRSACrypt: %v", err)
			}
			enc, err := c.Encrypt([]byte("payload"))
			if err != nil {
				t.Fatalf("Encrypt: %v", err)
			}
			if dec, err := c.Decrypt(enc); err != nil || dec != "payload" {
				t.Fatalf("Decrypt = %q, %v", dec, err)
			}
		})
	}
}

func TestFormatPEMKey(t *testing.T) {
	pub, _, _ := testKeyPEMs(t)

	formatted := FormatPEMKey(flatten(pub))
	if !strings.HasPrefix(formatted, "-----BEGIN PUBLIC KEY-----\n") {
		t.Errorf("missing header: %q", formatted[:40])
	}
	if !strings.HasSuffix(formatted, "\n-----END PUBLIC KEY-----\n") {
		t.Errorf("missing footer")
	}
	if block, _ := pem.Decode([]byte(formatted)); block == nil {
		t.Error("formatted key does not decode")
	}

	if got := FormatPEMKey("not a key"); got != "not a key" {
		t.Errorf("non-PEM input should pass through, got %q", got)
	}
}

func TestRSACryptMissingKeys(t *testing.T) {
	pub, priv, key := testKeyPEMs(t)

	if _, err := NewRSACrypt("", ""); err == nil {
		t.Error("expected error with no keys")
	}
	if _, err := NewRSACrypt("garbage", ""); err == nil {
		t.Error("expected error for unparsable key")
	}
	if _, err := NewRSACrypt(filepath.Join(t.TempDir(), "missing.pem"), ""); err == nil {
		t.Error("expected error for missing key file")
	}

	pubOnly, err := NewRSACrypt(pub, "")
	if err != nil {
		t.Fatalf("NewRSACrypt: %v", err)
	}
	if _, err := pubOnly.Decrypt("AAAA"); err == nil {
		t.Error("Decrypt without private key should fail")
	}
	n, e, err := pubOnly.ModulusExponent()
	if err != nil {
		t.Fatalf("ModulusExponent: %v", err)
	}
	if n.Cmp(key.N) != 0 || e != key.E {
		t.Errorf("ModulusExponent = (%v, %d), want key's", n, e)
	}

	privOnly, err := NewRSACrypt("", priv)
	if err != nil {
		t.Fatalf("NewRSACrypt: %v", err)
	}
	if _, err := privOnly.Encrypt("x"); err == nil {
		t.Error("Encrypt without public key should fail")
	}
	if _, _, err := privOnly.ModulusExponent(); err == nil {
		t.Error("ModulusExponent without public key should fail")
	}
}
