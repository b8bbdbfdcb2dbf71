package source

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"time"
)

// Certificate probe statuses.
const (
	CertValid       = "valid"
	CertExpired     = "expired"
	CertNotYetValid = "not_yet_valid"
	CertUnreachable = "unreachable"
	CertHandshake   = "handshake_failed"
	CertNoPeer      = "no_peer_certificate"
)

// CertResult is the outcome of a TLS certificate probe.
type CertResult struct {
	Score  int    `json:"score"` // 100 or 0
	Status string `json:"status"`
}

// ProbeCertificate attempts a TLS handshake against the domain on :443 and
// checks that the leaf certificate's validity window contains now. Any
// failure (unreachable, untrusted chain, expired, timeout) scores 0 with a
// diagnostic status. Safe to re-run.
func ProbeCertificate(ctx context.Context, domain string, timeout time.Duration, now time.Time) CertResult {
	domain = normalizeDomain(domain)

	dialer := &tls.Dialer{
		NetDialer: &net.Dialer{Timeout: timeout},
		Config:    &tls.Config{ServerName: domain},
	}

	dialCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	conn, err := dialer.DialContext(dialCtx, "tcp", net.JoinHostPort(domain, "443"))
	if err != nil {
		status := CertHandshake
		var netErr net.Error
		if errors.As(err, &netErr) && netErr.Timeout() {
			status = CertUnreachable
		}
		return CertResult{Score: 0, Status: fmt.Sprintf("%s: %v", status, err)}
	}
	defer conn.Close() //nolint:errcheck

	tlsConn, ok := conn.(*tls.Conn)
	if !ok {
		return CertResult{Score: 0, Status: CertHandshake}
	}

	certs := tlsConn.ConnectionState().PeerCertificates
	if len(certs) == 0 {
		return CertResult{Score: 0, Status: CertNoPeer}
	}

	leaf := certs[0]
	switch {
	case now.Before(leaf.NotBefore):
		return CertResult{Score: 0, Status: CertNotYetValid}
	case now.After(leaf.NotAfter):
		return CertResult{Score: 0, Status: CertExpired}
	default:
		return CertResult{Score: 100, Status: CertValid}
	}
}
