package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/stacklok/hivechat/pkg/certs"
)

// setCACert validates the PEM certificate at certPath and records its
// cleaned path in the configuration. The same certificate is then used for
// registry lookups and remote server connections.
func setCACert(provider Provider, certPath string) error {
	certPath = filepath.Clean(certPath)

	pemData, err := os.ReadFile(certPath) // #nosec G304: the path is user-chosen on purpose
	if err != nil {
		return fmt.Errorf("CA certificate file not found or not accessible: %w", err)
	}
	if err := certs.ValidateCACertificate(pemData); err != nil {
		return fmt.Errorf("invalid CA certificate: %w", err)
	}

	err = provider.UpdateConfig(func(c *Config) {
		c.CACertificatePath = certPath
	})
	if err != nil {
		return fmt.Errorf("failed to update configuration: %w", err)
	}
	return nil
}

// getCACert reports the configured CA certificate path. exists is true when
// a path is configured at all; accessible is false when the file has since
// gone missing or unreadable.
func getCACert(provider Provider) (certPath string, exists bool, accessible bool) {
	certPath = provider.GetConfig().CACertificatePath
	if certPath == "" {
		return "", false, false
	}
	_, err := os.Stat(certPath)
	return certPath, true, err == nil
}

// unsetCACert clears the CA certificate setting. Clearing an unset value is
// a no-op.
func unsetCACert(provider Provider) error {
	if provider.GetConfig().CACertificatePath == "" {
		return nil
	}

	err := provider.UpdateConfig(func(c *Config) {
		c.CACertificatePath = ""
	})
	if err != nil {
		return fmt.Errorf("failed to update configuration: %w", err)
	}
	return nil
}
