package metrics

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"strings"
	"syscall"
)

// Error kinds reported in the summary's error breakdown.
const (
	ErrKindTimeout           = "timeout"
	ErrKindConnectionRefused = "connection_refused"
	ErrKindConnectionReset   = "connection_reset"
	ErrKindDNS               = "dns"
	ErrKindTLS               = "tls"
	ErrKindEOF               = "eof"
	ErrKindCanceled          = "canceled"
	ErrKindOther             = "other"
)

// ClassifyError maps a failed request to an error kind. With no transport
// error the kind is derived from the status code, e.g. "http_503".
func ClassifyError(statusCode int, err error) string {
	if err == nil {
		if statusCode >= 400 {
			return fmt.Sprintf("http_%d", statusCode)
		}
		return ErrKindOther
	}

	var dnsErr *net.DNSError
	var tlsRecordErr tls.RecordHeaderError
	var certErr *tls.CertificateVerificationError
	var unknownAuth x509.UnknownAuthorityError
	var hostnameErr x509.HostnameError
	var netErr net.Error

	switch {
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, os.ErrDeadlineExceeded):
		return ErrKindTimeout
	case errors.As(err, &netErr) && netErr.Timeout():
		return ErrKindTimeout
	case errors.Is(err, context.Canceled):
		return ErrKindCanceled
	case errors.As(err, &dnsErr):
		return ErrKindDNS
	case errors.Is(err, syscall.ECONNREFUSED):
		return ErrKindConnectionRefused
	case errors.Is(err, syscall.ECONNRESET):
		return ErrKindConnectionReset
	case errors.As(err, &tlsRecordErr), errors.As(err, &certErr),
		errors.As(err, &unknownAuth), errors.As(err, &hostnameErr):
		return ErrKindTLS
	case errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF):
		return ErrKindEOF
	}

	// Some platforms only surface these as strings.
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "connection refused"):
		return ErrKindConnectionRefused
	case strings.Contains(msg, "connection reset"):
		return ErrKindConnectionReset
	case strings.Contains(msg, "no such host"):
		return ErrKindDNS
	case strings.Contains(msg, "tls:") || strings.Contains(msg, "x509:"):
		return ErrKindTLS
	}
	return ErrKindOther
}
