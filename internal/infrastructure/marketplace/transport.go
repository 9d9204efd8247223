package marketplace

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	utls "github.com/refraction-networking/utls"
)

// Fingerprint selects the TLS ClientHello presented to the marketplace
type Fingerprint string

const (
	FingerprintChrome  Fingerprint = "chrome"
	FingerprintFirefox Fingerprint = "firefox"
	FingerprintSafari  Fingerprint = "safari"
	FingerprintGo      Fingerprint = "go" // standard crypto/tls
)

// ValidFingerprint reports whether f names a supported profile
func ValidFingerprint(f Fingerprint) bool {
	switch f {
	case FingerprintChrome, FingerprintFirefox, FingerprintSafari, FingerprintGo:
		return true
	}
	return false
}

// newTransport returns a RoundTripper whose TLS handshake mimics the given
// browser. ALPN is pinned to http/1.1 because net/http cannot speak h2 over
// a utls connection.
func newTransport(f Fingerprint) (http.RoundTripper, error) {
	base := http.DefaultTransport.(*http.Transport).Clone()
	if f == FingerprintGo {
		return base, nil
	}

	var helloID utls.ClientHelloID
	switch f {
	case FingerprintChrome:
		helloID = utls.HelloChrome_Auto
	case FingerprintFirefox:
		helloID = utls.HelloFirefox_Auto
	case FingerprintSafari:
		helloID = utls.HelloIOS_Auto
	default:
		return nil, fmt.Errorf("unknown fingerprint %q", f)
	}

	// Fail at construction rather than on the first dial
	if _, err := http1Spec(helloID); err != nil {
		return nil, err
	}

	dialer := &net.Dialer{Timeout: 10 * time.Second, KeepAlive: 30 * time.Second}
	base.ForceAttemptHTTP2 = false
	base.DialTLSContext = func(ctx context.Context, network, addr string) (net.Conn, error) {
		conn, err := dialer.DialContext(ctx, network, addr)
		if err != nil {
			return nil, err
		}

		host, _, err := net.SplitHostPort(addr)
		if err != nil {
			host = addr
		}

		spec, err := http1Spec(helloID)
		if err != nil {
			conn.Close()
			return nil, err
		}

		tlsConn := utls.UClient(conn, &utls.Config{ServerName: host}, utls.HelloCustom)
		if err := tlsConn.ApplyPreset(&spec); err != nil {
			conn.Close()
			return nil, fmt.Errorf("apply tls preset: %w", err)
		}
		if err := tlsConn.HandshakeContext(ctx); err != nil {
			conn.Close()
			return nil, fmt.Errorf("utls handshake: %w", err)
		}
		return tlsConn, nil
	}

	return base, nil
}

// http1Spec builds a fresh ClientHelloSpec for id with ALPN limited to
// http/1.1. A new spec is built per connection since ApplyPreset mutates it.
func http1Spec(id utls.ClientHelloID) (utls.ClientHelloSpec, error) {
	spec, err := utls.UTLSIdToSpec(id)
	if err != nil {
		return utls.ClientHelloSpec{}, fmt.Errorf("build tls spec for %s: %w", id.Str(), err)
	}
	for i, ext := range spec.Extensions {
		if alpn, ok := ext.(*utls.ALPNExtension); ok {
			alpn.AlpnProtocols = []string{"http/1.1"}
			spec.Extensions[i] = alpn
			break
		}
	}
	return spec, nil
}
