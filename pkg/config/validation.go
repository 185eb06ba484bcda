// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"fmt"
	neturl "net/url"
)

// validateURLScheme validates that a URL is absolute and uses http or https.
func validateURLScheme(rawURL string) (*neturl.URL, error) {
	parsedURL, err := neturl.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidValue, err)
	}
	if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
		return nil, fmt.Errorf("%w: URL must start with http:// or https://", ErrInvalidValue)
	}
	if parsedURL.Host == "" {
		return nil, fmt.Errorf("%w: URL %q has no host", ErrInvalidValue, rawURL)
	}
	return parsedURL, nil
}
