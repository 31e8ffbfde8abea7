package logging

import (
	"regexp"
)

var (
	// user:password@ in DSNs and provider URLs
	urlPasswordPattern = regexp.MustCompile(`://([^:/@\s]+):([^@\s]+)@`)
	// Authorization header values
	bearerPattern = regexp.MustCompile(`(?i)(bearer|basic)\s+[A-Za-z0-9._~+/=\-]+`)
	// token-like query parameters and key=value pairs
	secretParamPattern = regexp.MustCompile(`(?i)((?:access_token|api_key|apikey|token|password|auth_token|verify_token)=)[^&\s]+`)
	// Expo push tokens identify a device
	pushTokenPattern = regexp.MustCompile(`(Expo(?:nent)?PushToken)\[[^\]]+\]`)
)

// SanitizeSecret masks credentials embedded in s: URL passwords, bearer and
// basic auth values, token-like parameters and push tokens.
func SanitizeSecret(s string) string {
	if s == "" {
		return s
	}
	s = urlPasswordPattern.ReplaceAllString(s, "://$1:****@")
	s = bearerPattern.ReplaceAllString(s, "$1 ****")
	s = secretParamPattern.ReplaceAllString(s, "${1}****")
	s = pushTokenPattern.ReplaceAllString(s, "$1[****]")
	return s
}

// SanitizeError returns err's message passed through SanitizeSecret.
func SanitizeError(err error) string {
	if err == nil {
		return ""
	}
	return SanitizeSecret(err.Error())
}
