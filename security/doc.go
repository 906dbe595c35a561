// Package security builds the client TLS configuration used by the
// connector.
//
//	cfg := security.TLSConfig{
//	    CAFile:   "/path/to/ca.pem",
//	    CertFile: "/path/to/cert.pem",
//	    KeyFile:  "/path/to/key.pem",
//	}
//
//	tlsConfig, err := cfg.Build()
//
// A nil result means the settings match the defaults; the connector then
// shares one default config across all connections.
package security
