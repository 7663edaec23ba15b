package security

import (
	"fmt"
	"net"
	"net/http"
	"strings"
	"sync/atomic"

	applog "spendy/internal/log"
)

// Detector resolves client addresses behind trusted proxies and flags
// requests that look like scanning.
type Detector struct {
	trustedProxies []*net.IPNet
	suspicious     atomic.Int64
	logger         *applog.Logger
}

type DetectionMetrics struct {
	SuspiciousRequests int64 `json:"suspicious_requests"`
}

var (
	suspiciousPatterns = []string{
		"../", "..\\", ".env", "wp-admin", "phpmyadmin", ".git", ".ssh",
		"<script", "union select", "etc/passwd", "cmd.exe",
	}
	scannerAgents = []string{"sqlmap", "nmap", "nikto", "gobuster", "dirb", "masscan"}
)

// NewDetector trusts loopback plus every IP or CIDR in trusted.
func NewDetector(logger *applog.Logger, trusted []string) (*Detector, error) {
	d := &Detector{logger: logger.WithComponent(applog.ComponentSecurity)}
	for _, cidr := range append([]string{"127.0.0.0/8", "::1/128"}, trusted...) {
		if err := d.AddTrustedProxy(cidr); err != nil {
			return nil, err
		}
	}
	return d, nil
}

// AddTrustedProxy accepts a CIDR or a single address.
func (d *Detector) AddTrustedProxy(cidr string) error {
	if !strings.Contains(cidr, "/") {
		ip := net.ParseIP(cidr)
		if ip == nil {
			return fmt.Errorf("invalid trusted proxy %q", cidr)
		}
		bits := 32
		if ip.To4() == nil {
			bits = 128
		}
		cidr = fmt.Sprintf("%s/%d", ip.String(), bits)
	}
	_, network, err := net.ParseCIDR(cidr)
	if err != nil {
		return fmt.Errorf("invalid CIDR %s: %w", cidr, err)
	}
	d.trustedProxies = append(d.trustedProxies, network)
	return nil
}

func (d *Detector) isTrustedProxy(ip net.IP) bool {
	for _, network := range d.trustedProxies {
		if network.Contains(ip) {
			return true
		}
	}
	return false
}

// ExtractClientIP returns the peer address, or the forwarded client address
// when the peer is a trusted proxy.
func (d *Detector) ExtractClientIP(r *http.Request) string {
	directIP, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		directIP = r.RemoteAddr
	}
	parsed := net.ParseIP(directIP)
	if parsed == nil || !d.isTrustedProxy(parsed) {
		return directIP
	}

	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first := strings.TrimSpace(strings.Split(xff, ",")[0])
		if net.ParseIP(first) != nil {
			return first
		}
	}
	if xri := strings.TrimSpace(r.Header.Get("X-Real-IP")); net.ParseIP(xri) != nil {
		return xri
	}
	return directIP
}

// DetectSuspiciousRequest reports probing patterns in the path, query or
// user agent.
func (d *Detector) DetectSuspiciousRequest(r *http.Request) bool {
	target := strings.ToLower(r.URL.Path + "?" + r.URL.RawQuery)
	agent := strings.ToLower(r.UserAgent())

	suspicious := len(r.URL.String()) > 2048 || r.Method == http.MethodTrace
	for _, p := range suspiciousPatterns {
		if strings.Contains(target, p) {
			suspicious = true
			break
		}
	}
	for _, a := range scannerAgents {
		if strings.Contains(agent, a) {
			suspicious = true
			break
		}
	}
	if suspicious {
		d.suspicious.Add(1)
	}
	return suspicious
}

// Middleware logs suspicious requests and lets them through; routing and
// validation reject them on their own.
func (d *Detector) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if d.DetectSuspiciousRequest(r) {
			d.logger.WarnContext(r.Context(), "Suspicious request",
				applog.FieldClientIP, d.ExtractClientIP(r),
				applog.FieldMethod, r.Method,
				applog.FieldPath, r.URL.Path,
				applog.FieldUserAgent, r.UserAgent())
		}
		next.ServeHTTP(w, r)
	})
}

func (d *Detector) GetMetrics() DetectionMetrics {
	return DetectionMetrics{SuspiciousRequests: d.suspicious.Load()}
}
