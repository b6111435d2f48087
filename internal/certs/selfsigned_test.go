package certs

import (
	"crypto/sha256"
	"crypto/x509"
	"slices"
	"testing"
	"time"
)

func TestGenerate(t *testing.T) {
	t.Parallel()
	cert, err := Generate(24 * time.Hour)
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}

	if len(cert.TLSCert.Certificate) == 0 {
		t.Fatal("no certificate data")
	}

	x509Cert, err := x509.ParseCertificate(cert.TLSCert.Certificate[0])
	if err != nil {
		t.Fatalf("failed to parse cert: %v", err)
	}

	if validity := x509Cert.NotAfter.Sub(x509Cert.NotBefore); validity > 24*time.Hour+2*time.Minute {
		t.Errorf("validity too long: %v", validity)
	}
	if x509Cert.NotAfter.Before(time.Now()) {
		t.Error("cert is already expired")
	}

	if expected := sha256.Sum256(cert.TLSCert.Certificate[0]); cert.Fingerprint != expected {
		t.Error("fingerprint mismatch")
	}
	if cert.FingerprintBase64() == "" {
		t.Error("FingerprintBase64 returned empty string")
	}

	if !slices.Contains(x509Cert.DNSNames, "localhost") {
		t.Error("expected localhost in DNS names")
	}
}

func TestGenerateCapsValidity(t *testing.T) {
	t.Parallel()
	cert, err := Generate(365 * 24 * time.Hour)
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}

	x509Cert, err := x509.ParseCertificate(cert.TLSCert.Certificate[0])
	if err != nil {
		t.Fatalf("failed to parse cert: %v", err)
	}
	if validity := x509Cert.NotAfter.Sub(x509Cert.NotBefore); validity > maxValidity+2*time.Minute {
		t.Errorf("validity should be capped at %v, got %v", maxValidity, validity)
	}
}

func TestTLSConfigCarriesALPN(t *testing.T) {
	t.Parallel()
	cert, err := Generate(time.Hour)
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	cfg := cert.TLSConfig()
	if len(cfg.Certificates) != 1 {
		t.Fatalf("TLSConfig carries %d certs, want 1", len(cfg.Certificates))
	}
	if !slices.Contains(cfg.NextProtos, ALPN) {
		t.Errorf("NextProtos = %v, want to contain %q", cfg.NextProtos, ALPN)
	}
}
