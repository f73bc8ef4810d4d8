package config

import (
	"encoding/json"
	"fmt"
	neturl "net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/tailscale/hujson"

	"github.com/stacklok/hivechat/pkg/networking"
)

// validateRegistryEndpoint parses a registry endpoint URL and checks its
// scheme. Plain HTTP is only accepted when allowInsecure is set; schemes
// other than HTTP(S) are rejected outright.
func validateRegistryEndpoint(rawURL string, allowInsecure bool) (*neturl.URL, error) {
	parsed, err := neturl.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid URL format: %w", err)
	}

	switch {
	case parsed.Scheme == networking.HttpsScheme:
	case parsed.Scheme == networking.HttpScheme && allowInsecure:
	case allowInsecure:
		return nil, fmt.Errorf("URL must start with http:// or https://")
	default:
		return nil, fmt.Errorf("URL must start with %s://", networking.HttpsScheme)
	}

	return parsed, nil
}

// validateServersFile checks that path names a readable mcp.json document
// and returns its cleaned absolute path. The document is parsed the way the
// hub reads it, so comments and trailing commas are fine.
func validateServersFile(path string) (string, error) {
	cleanPath := filepath.Clean(path)
	if !strings.HasSuffix(strings.ToLower(cleanPath), ".json") {
		return "", fmt.Errorf("must be a JSON file (*.json)")
	}

	data, err := os.ReadFile(cleanPath) // #nosec G304: the path is user-chosen on purpose
	if err != nil {
		return "", fmt.Errorf("not readable: %w", err)
	}

	standardized, err := hujson.Standardize(data)
	if err != nil {
		return "", fmt.Errorf("not a valid server definition document: %w", err)
	}
	var doc map[string]json.RawMessage
	if err := json.Unmarshal(standardized, &doc); err != nil {
		return "", fmt.Errorf("not a valid server definition document: %w", err)
	}

	absPath, err := filepath.Abs(cleanPath)
	if err != nil {
		return "", fmt.Errorf("failed to resolve absolute path: %w", err)
	}
	return absPath, nil
}
