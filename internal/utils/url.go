package utils

import (
	"fmt"
	"net/url"
)

func parseHTTPURL(raw string) (*url.URL, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return nil, err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("missing host")
	}
	return u, nil
}

// IsValidURL reports whether raw is an absolute http(s) URL with a host
func IsValidURL(raw string) bool {
	_, err := parseHTTPURL(raw)
	return err == nil
}
