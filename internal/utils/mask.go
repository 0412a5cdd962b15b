package utils

// MaskSecret keeps the first four characters of s for log correlation.
// Empty secrets stay empty so "not configured" is still visible in logs.
func MaskSecret(s string) string {
	switch {
	case s == "":
		return ""
	case len(s) <= 4:
		return "*****"
	default:
		return s[:4] + "*****"
	}
}

// MaskURL masks everything after the host of a webhook style URL.
// Slack and chat webhooks carry their secret in the path.
func MaskURL(raw string) string {
	if raw == "" {
		return ""
	}
	u, err := parseHTTPURL(raw)
	if err != nil {
		return MaskSecret(raw)
	}
	if u.Path == "" || u.Path == "/" {
		return u.Scheme + "://" + u.Host
	}
	return u.Scheme + "://" + u.Host + "/*****"
}
