// Package keystore provides the factory for creating providers
package keystore

import (
	"fmt"

	"github.com/grauwen/digikoppeling-wus-cxf/internal/config"
)

// NewProvider creates a Provider based on the configuration
func NewProvider(cfg *config.KeysConfig) (Provider, error) {
	switch cfg.Mode {
	case "pkcs11":
		return NewPKCS11Provider(&PKCS11ProviderConfig{
			ModulePath:      cfg.PKCS11.ModulePath,
			SlotLabel:       cfg.PKCS11.SlotLabel,
			PIN:             cfg.PKCS11.PIN,
			KeyLabel:        cfg.PKCS11.KeyLabel,
			CertFile:        cfg.PKCS11.CertFile,
			TrustAnchorFile: cfg.PKCS11.TrustAnchorFile,
		})
	case "file":
		return NewFileProvider(cfg.File.CertFile, cfg.File.KeyFile, cfg.File.TrustAnchorFile)
	default:
		return nil, fmt.Errorf("unknown keys mode: %s", cfg.Mode)
	}
}
