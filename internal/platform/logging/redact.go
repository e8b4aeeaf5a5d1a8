package logging

import (
	"log/slog"
	"regexp"

	"github.com/m-mizutani/masq"
)

// sensitiveFields are attribute and struct field names whose values are
// never logged. Header names appear as they do in record data, where the
// REST client and auth middleware copy request headers.
var sensitiveFields = []string{
	"password", "secret", "token", "credential", "credentials",
	"apiKey", "apikey", "api_key", "x-api-key", "X-Api-Key",
	"accessToken", "access_token", "refreshToken", "refresh_token",
	"authorization", "Authorization", "proxy-authorization", "Proxy-Authorization",
	"auth", "bearer", "cookie", "Cookie", "set-cookie", "Set-Cookie", "session",
	"privateKey", "private_key", "secretKey", "secret_key",
}

// sensitivePrefixes redact any field starting with them.
var sensitivePrefixes = []string{"secret", "private"}

// sensitiveValues match credentials regardless of the field they sit in.
var sensitiveValues = []*regexp.Regexp{
	// JWT: three base64url segments
	regexp.MustCompile(`^eyJ[A-Za-z0-9_-]*\.eyJ[A-Za-z0-9_-]*\.[A-Za-z0-9_-]*$`),
	regexp.MustCompile(`(?i)^bearer\s+.+$`),
	regexp.MustCompile(`(?i)^basic\s+.+$`),
}

// DefaultRedactOptions returns the masq options applied to every log line. Extend them with NewReplaceAttr:
//
//	replace := logging.NewReplaceAttr(masq.WithFieldName("ledgerKey"))
func DefaultRedactOptions() []masq.Option {
	opts := make([]masq.Option, 0, len(sensitiveFields)+len(sensitivePrefixes)+len(sensitiveValues))

	for _, name := range sensitiveFields {
		opts = append(opts, masq.WithFieldName(name))
	}

	for _, prefix := range sensitivePrefixes {
		opts = append(opts, masq.WithFieldPrefix(prefix))
	}

	for _, re := range sensitiveValues {
		opts = append(opts, masq.WithRegex(re))
	}

	return opts
}

// NewReplaceAttr returns an slog ReplaceAttr function redacting the default
// sensitive data plus anything matched by opts.
func NewReplaceAttr(opts ...masq.Option) func(groups []string, a slog.Attr) slog.Attr {
	return masq.New(append(DefaultRedactOptions(), opts...)...)
}
