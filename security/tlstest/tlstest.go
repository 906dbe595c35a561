// Package tlstest issues throwaway certificates for tests. Files live in
// t.TempDir().
//
//	certs := tlstest.GenerateTLSCerts(t, "svc.example.test")
//	srv := httptest.NewUnstartedServer(h)
//	srv.TLS = certs.ServerConfig()
//	srv.StartTLS()
package tlstest

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"math/big"
	"net"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"
)

// CA is a test certificate authority.
type CA struct {
	Cert *x509.Certificate
	Key  *ecdsa.PrivateKey
	// File is the CA certificate in PEM form on disk.
	File string

	serial atomic.Int64
}

// NewCA creates a self-signed CA valid for one day.
func NewCA(t testing.TB) *CA {
	t.Helper()
	key := newKey(t)
	tmpl := &x509.Certificate{
		SerialNumber:          big.NewInt(1),
		Subject:               pkix.Name{Organization: []string{"sdkcore test CA"}},
		NotBefore:             time.Now().Add(-time.Hour),
		NotAfter:              time.Now().Add(24 * time.Hour),
		KeyUsage:              x509.KeyUsageCertSign | x509.KeyUsageCRLSign,
		BasicConstraintsValid: true,
		IsCA:                  true,
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &key.PublicKey, key)
	if err != nil {
		t.Fatalf("tlstest: create CA cert: %v", err)
	}
	cert, err := x509.ParseCertificate(der)
	if err != nil {
		t.Fatalf("tlstest: parse CA cert: %v", err)
	}
	ca := &CA{Cert: cert, Key: key, File: filepath.Join(t.TempDir(), "ca.pem")}
	ca.serial.Store(1)
	writePEM(t, ca.File, "CERTIFICATE", der)
	return ca
}

// Pool returns a pool trusting only this CA.
func (ca *CA) Pool() *x509.CertPool {
	pool := x509.NewCertPool()
	pool.AddCert(ca.Cert)
	return pool
}

// PEM returns the CA certificate in PEM form.
func (ca *CA) PEM() string {
	return string(pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: ca.Cert.Raw}))
}

// Issue signs a leaf certificate usable for both server and client auth. It
// is valid for localhost, 127.0.0.1, [::1] and hosts.
func (ca *CA) Issue(t testing.TB, hosts ...string) *TLSCerts {
	t.Helper()
	key := newKey(t)
	tmpl := &x509.Certificate{
		SerialNumber: big.NewInt(ca.serial.Add(1)),
		Subject:      pkix.Name{Organization: []string{"sdkcore test"}, CommonName: "localhost"},
		DNSNames:     append([]string{"localhost"}, hosts...),
		IPAddresses:  []net.IP{net.IPv4(127, 0, 0, 1), net.IPv6loopback},
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().Add(24 * time.Hour),
		KeyUsage:     x509.KeyUsageDigitalSignature | x509.KeyUsageKeyEncipherment,
		ExtKeyUsage:  []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth, x509.ExtKeyUsageClientAuth},
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, ca.Cert, &key.PublicKey, ca.Key)
	if err != nil {
		t.Fatalf("tlstest: create leaf cert: %v", err)
	}
	keyDER, err := x509.MarshalECPrivateKey(key)
	if err != nil {
		t.Fatalf("tlstest: marshal leaf key: %v", err)
	}

	dir := t.TempDir()
	certFile := filepath.Join(dir, "cert.pem")
	keyFile := filepath.Join(dir, "key.pem")
	writePEM(t, certFile, "CERTIFICATE", der)
	writePEM(t, keyFile, "EC PRIVATE KEY", keyDER)

	pair, err := tls.LoadX509KeyPair(certFile, keyFile)
	if err != nil {
		t.Fatalf("tlstest: load key pair: %v", err)
	}
	return &TLSCerts{
		CAFile:    ca.File,
		CertFile:  certFile,
		KeyFile:   keyFile,
		CACert:    ca.Cert,
		CAKey:     ca.Key,
		ServerTLS: pair,
		CertPool:  ca.Pool(),
		ca:        ca,
	}
}

// TLSCerts is a leaf certificate with the CA that issued it.
type TLSCerts struct {
	CAFile   string
	CertFile string
	KeyFile  string

	CACert *x509.Certificate
	CAKey  *ecdsa.PrivateKey
	// ServerTLS is the leaf key pair, usable as a server or client certificate.
	ServerTLS tls.Certificate
	// CertPool trusts the issuing CA.
	CertPool *x509.CertPool

	ca *CA
}

// GenerateTLSCerts creates a fresh CA and issues one leaf certificate.
func GenerateTLSCerts(t testing.TB, hosts ...string) *TLSCerts {
	t.Helper()
	return NewCA(t).Issue(t, hosts...)
}

// CA returns the issuing authority, for signing more leaves.
func (c *TLSCerts) CA() *CA { return c.ca }

// ServerConfig returns a server config presenting the leaf certificate.
func (c *TLSCerts) ServerConfig() *tls.Config {
	return &tls.Config{Certificates: []tls.Certificate{c.ServerTLS}, MinVersion: tls.VersionTLS12}
}

// MutualServerConfig is ServerConfig requiring client certificates issued
// by the same CA.
func (c *TLSCerts) MutualServerConfig() *tls.Config {
	cfg := c.ServerConfig()
	cfg.ClientCAs = c.CertPool
	cfg.ClientAuth = tls.RequireAndVerifyClientCert
	return cfg
}

// CAPEM returns the CA certificate in PEM form.
func (c *TLSCerts) CAPEM() string { return c.ca.PEM() }

// WriteInvalidPEM writes a file that looks like PEM but holds no certificate.
func WriteInvalidPEM(t testing.TB, filename string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), filename)
	content := []byte("-----BEGIN CERTIFICATE-----\nnot-valid-base64-data\n-----END CERTIFICATE-----\n")
	if err := os.WriteFile(path, content, 0o600); err != nil {
		t.Fatalf("tlstest: write invalid PEM: %v", err)
	}
	return path
}

func newKey(t testing.TB) *ecdsa.PrivateKey {
	t.Helper()
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatalf("tlstest: generate key: %v", err)
	}
	return key
}

func writePEM(t testing.TB, path, blockType string, data []byte) {
	t.Helper()
	if err := os.WriteFile(path, pem.EncodeToMemory(&pem.Block{Type: blockType, Bytes: data}), 0o600); err != nil {
		t.Fatalf("tlstest: write %s: %v", path, err)
	}
}
