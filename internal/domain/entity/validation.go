package entity

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
)

// maxURLLength defines the maximum allowed length for provider endpoint URLs.
const maxURLLength = 2048

// ValidateEndpointURL validates a provider endpoint URL.
// It checks that the URL is well-formed, uses HTTP/HTTPS scheme, and has a host.
func ValidateEndpointURL(rawURL string) error {
	if rawURL == "" {
		return &ValidationError{Field: "url", Message: "URL is required"}
	}

	if len(rawURL) > maxURLLength {
		return &ValidationError{
			Field:   "url",
			Message: fmt.Sprintf("url must not exceed %d characters", maxURLLength),
		}
	}

	parsedURL, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("parse URL: %w", err)
	}

	if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
		return &ValidationError{Field: "url", Message: "URL must use http or https scheme"}
	}

	if parsedURL.Host == "" {
		return &ValidationError{Field: "url", Message: "URL must have a valid host"}
	}

	return nil
}

var emailRegex = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)

// ValidateEmail checks the basic shape of an email address.
func ValidateEmail(addr string) error {
	if addr == "" {
		return &ValidationError{Field: "email", Message: "email is required"}
	}
	if !emailRegex.MatchString(addr) {
		return &ValidationError{Field: "email", Message: fmt.Sprintf("malformed email address %q", addr)}
	}
	return nil
}

const (
	minPhoneDigits = 8
	maxPhoneDigits = 15
)

// NormalizePhone converts a raw phone number into E.164 form ("+" followed
// by 8 to 15 digits). Separators are dropped, a "00" international prefix
// becomes "+", and a leading trunk "0" is replaced by defaultCountryCode
// when one is given.
func NormalizePhone(raw, defaultCountryCode string) (string, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return "", &ValidationError{Field: "phone", Message: "phone is required"}
	}

	international := false
	switch {
	case strings.HasPrefix(s, "+"):
		international = true
		s = s[1:]
	case strings.HasPrefix(s, "00"):
		international = true
		s = s[2:]
	}

	var b strings.Builder
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == ' ' || r == '-' || r == '.' || r == '(' || r == ')':
		default:
			return "", &ValidationError{Field: "phone", Message: fmt.Sprintf("unexpected character %q in phone number", r)}
		}
	}
	digits := b.String()

	if !international {
		cc := strings.TrimPrefix(strings.TrimSpace(defaultCountryCode), "+")
		if cc != "" {
			digits = cc + strings.TrimPrefix(digits, "0")
		}
	}

	if len(digits) < minPhoneDigits || len(digits) > maxPhoneDigits {
		return "", &ValidationError{
			Field:   "phone",
			Message: fmt.Sprintf("phone number must have %d-%d digits, got %d", minPhoneDigits, maxPhoneDigits, len(digits)),
		}
	}
	if digits[0] == '0' {
		return "", &ValidationError{Field: "phone", Message: "country code must not start with 0"}
	}

	return "+" + digits, nil
}
