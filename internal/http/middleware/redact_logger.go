// Package middleware contains shared Gin middleware used by the HTTP layer.
//
// This file implements RedactingLogger, the structured access logger. It
// scrubs obvious PII from request metadata before emitting logs:
//
//   - request and response bodies are never logged (student messages and
//     uploaded documents stay out of logs)
//   - UUIDs, emails and phone numbers are redacted from query strings and
//     header values
//   - Authorization, Cookie, Set-Cookie and any configured headers are masked
//
// It also attaches the request-scoped logger returned by LoggerFrom.
package middleware

import (
	"regexp"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// RedactOptions configures additional scrub behavior for RedactingLogger.
//
// MaskHeaders lists extra header names whose values are replaced with
// "[REDACTED]". Matching is case-insensitive.
type RedactOptions struct {
	MaskHeaders []string
	// Logger is the base logger; the global logger is used when nil.
	Logger *zerolog.Logger
}

var (
	uuidRE  = regexp.MustCompile(`(?i)\b[0-9a-f]{8}\-[0-9a-f]{4}\-[1-5][0-9a-f]{3}\-[89ab][0-9a-f]{3}\-[0-9a-f]{12}\b`)
	emailRE = regexp.MustCompile(`(?i)\b[a-z0-9._%+\-]+@[a-z0-9.\-]+\.[a-z]{2,}\b`)
	// Digits only, so the hex segments of a UUID never match.
	phoneRE = regexp.MustCompile(`\b(?:\+?\d{1,3}[ .-]?)?(?:\(?\d{2,4}\)?[ .-]?)?\d{3,4}[ .-]?\d{4}\b`)
)

// redact scrubs ids, then emails, then phones. Phone is the loosest pattern
// and must run last.
func redact(s string) string {
	if s == "" {
		return s
	}
	s = uuidRE.ReplaceAllString(s, "[REDACTED:id]")
	s = emailRE.ReplaceAllString(s, "[REDACTED:email]")
	return phoneRE.ReplaceAllString(s, "[REDACTED:phone]")
}

// RedactingLogger returns a Gin middleware that logs each request once it
// completes, at info for 2xx/3xx, warn for 4xx and error for 5xx or when
// handlers recorded errors on the context.
func RedactingLogger(opts RedactOptions) gin.HandlerFunc {
	maskHeaders := map[string]struct{}{
		"authorization": {},
		"cookie":        {},
		"set-cookie":    {},
	}
	for _, h := range opts.MaskHeaders {
		if h = strings.ToLower(strings.TrimSpace(h)); h != "" {
			maskHeaders[h] = struct{}{}
		}
	}

	return func(c *gin.Context) {
		start := time.Now()

		base := log.Logger
		if opts.Logger != nil {
			base = *opts.Logger
		}

		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}

		scoped := base.With().
			Str("request_id", RequestIDFrom(c)).
			Str("method", c.Request.Method).
			Str("path", path).
			Logger()
		c.Set(ctxKeyLogger, &scoped)

		safeHeaders := make(map[string]string, len(c.Request.Header))
		for k, vv := range c.Request.Header {
			if _, ok := maskHeaders[strings.ToLower(k)]; ok {
				safeHeaders[k] = "[REDACTED]"
				continue
			}
			safeHeaders[k] = redact(strings.Join(vv, ", "))
		}
		query := redact(truncate(c.Request.URL.RawQuery, maxQueryLogLength))

		c.Next()

		status := c.Writer.Status()
		// Authenticate may have replaced the scoped logger with one carrying
		// tenant and user fields.
		lg := LoggerFrom(c)

		var ev *zerolog.Event
		switch {
		case len(c.Errors) > 0 || status >= 500:
			ev = lg.Error()
			if len(c.Errors) > 0 {
				ev = ev.Str("errors", c.Errors.String())
			}
		case status >= 400:
			ev = lg.Warn()
		default:
			ev = lg.Info()
		}

		ev.
			Ctx(c.Request.Context()).
			Str("query", query).
			Str("remote_ip", c.ClientIP()).
			Int("status", status).
			Int64("bytes_in", c.Request.ContentLength).
			Int("bytes_out", c.Writer.Size()).
			Dur("latency", time.Since(start)).
			Interface("headers", safeHeaders).
			Msg("http_request")
	}
}
