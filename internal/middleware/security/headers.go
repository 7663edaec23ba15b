package security

import (
	"fmt"
	"net/http"
)

type HeadersConfig struct {
	CSP                   string
	HSTSMaxAge            int
	HSTSIncludeSubdomains bool
	XFrameOptions         string
	ReferrerPolicy        string
	CacheControl          string
}

// DefaultHeadersConfig suits a JSON API that serves no documents.
func DefaultHeadersConfig() HeadersConfig {
	return HeadersConfig{
		CSP:                   "default-src 'none'; frame-ancestors 'none'",
		HSTSMaxAge:            31536000,
		HSTSIncludeSubdomains: true,
		XFrameOptions:         "DENY",
		ReferrerPolicy:        "no-referrer",
		CacheControl:          "no-store",
	}
}

type HeadersMiddleware struct {
	config HeadersConfig
}

func NewHeadersMiddleware(config HeadersConfig) *HeadersMiddleware {
	return &HeadersMiddleware{config: config}
}

func (h *HeadersMiddleware) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		headers := w.Header()
		headers.Set("X-Content-Type-Options", "nosniff")
		headers.Set("X-Frame-Options", h.config.XFrameOptions)
		headers.Set("Referrer-Policy", h.config.ReferrerPolicy)
		if h.config.CSP != "" {
			headers.Set("Content-Security-Policy", h.config.CSP)
		}
		if h.config.CacheControl != "" {
			headers.Set("Cache-Control", h.config.CacheControl)
		}
		if r.TLS != nil && h.config.HSTSMaxAge > 0 {
			v := fmt.Sprintf("max-age=%d", h.config.HSTSMaxAge)
			if h.config.HSTSIncludeSubdomains {
				v += "; includeSubDomains"
			}
			headers.Set("Strict-Transport-Security", v)
		}
		next.ServeHTTP(w, r)
	})
}
