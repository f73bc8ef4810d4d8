package config

import (
	"os"
	"sync"

	"github.com/stacklok/hivechat/pkg/logger"
)

var (
	// appConfig is the process-wide configuration, loaded once on first use
	// through getSingletonConfig.
	appConfig *Config

	configMu sync.Mutex
)

// SetSingletonConfig seeds the process-wide configuration. Tests use it to
// keep the DefaultProvider away from the real config file.
func SetSingletonConfig(cfg *Config) {
	configMu.Lock()
	defer configMu.Unlock()
	appConfig = cfg
}

// ResetSingleton drops the cached configuration so the next access reloads
// it from disk.
func ResetSingleton() {
	configMu.Lock()
	defer configMu.Unlock()
	appConfig = nil
}

// getSingletonConfig returns the cached configuration, loading it on first
// use. A config file that cannot be loaded or created is fatal: every
// command needs the configuration, so there is nothing sensible to degrade
// to.
func getSingletonConfig() *Config {
	configMu.Lock()
	defer configMu.Unlock()

	if appConfig == nil {
		cfg, err := LoadOrCreateConfig()
		if err != nil {
			logger.Errorf("unable to load configuration: %v", err)
			os.Exit(1)
		}
		appConfig = cfg
	}
	return appConfig
}
