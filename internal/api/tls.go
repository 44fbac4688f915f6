package api

import (
	"crypto/tls"
	"log"
	"os"
)

// TLSConfig names the certificate and key the API serves with.
type TLSConfig struct {
	CertFile string
	KeyFile  string
}

var tlsConfig *TLSConfig

// InitTLS reads PROTOFLOW_TLS_CERT and PROTOFLOW_TLS_KEY. Both must be set
// to enable TLS; a lone half is reported and ignored.
func InitTLS() {
	cert := os.Getenv("PROTOFLOW_TLS_CERT")
	key := os.Getenv("PROTOFLOW_TLS_KEY")

	switch {
	case cert != "" && key != "":
		tlsConfig = &TLSConfig{CertFile: cert, KeyFile: key}
	case cert != "" || key != "":
		log.Printf("tls: PROTOFLOW_TLS_CERT and PROTOFLOW_TLS_KEY must be set together, serving plain HTTP")
		tlsConfig = nil
	default:
		tlsConfig = nil
	}
}

func IsTLSEnabled() bool {
	return tlsConfig != nil
}

// GetTLSConfig returns the configured files, or nil.
func GetTLSConfig() *TLSConfig {
	return tlsConfig
}

// LoadTLSConfig builds the server TLS configuration. It returns nil when
// TLS is off or the key pair cannot be loaded, so the caller falls back to
// plain HTTP.
func LoadTLSConfig() *tls.Config {
	if tlsConfig == nil {
		return nil
	}

	pair, err := tls.LoadX509KeyPair(tlsConfig.CertFile, tlsConfig.KeyFile)
	if err != nil {
		log.Printf("tls: failed to load key pair: %v", err)
		return nil
	}
	return &tls.Config{
		Certificates: []tls.Certificate{pair},
		MinVersion:   tls.VersionTLS12,
		NextProtos:   []string{"h2", "http/1.1"},
	}
}

// SetTLSConfigForTest replaces the configured files.
func SetTLSConfigForTest(cfg *TLSConfig) {
	tlsConfig = cfg
}
