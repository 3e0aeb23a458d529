package sms

import (
	"fmt"
	"net/netip"
	"net/url"
	"strings"

	"voipgate-backend/internal/apperror"
)

const maxMediaURLLen = 2048

// ValidateMediaURL checks a client-supplied media URL before it is handed to
// VoIP.ms, which fetches it server-side. A blank value means "no media" and
// returns ("", nil). Rejecting localhost/private targets keeps this endpoint
// from being used to probe the provider's internal network; hostnames are
// not resolved, so DNS-rebinding targets are not caught here.
func ValidateMediaURL(raw string) (string, error) {
	media := strings.TrimSpace(raw)
	if media == "" {
		return "", nil
	}

	lower := strings.ToLower(media)
	isHTTP := strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://")
	if !isHTTP || strings.HasPrefix(lower, "data:") || len(media) > maxMediaURLLen {
		return "", fmt.Errorf("%w: must be a public http(s) URL; base64/data URLs are not supported", apperror.ErrInvalidMedia)
	}

	if !isPublicMediaURL(media) {
		return "", fmt.Errorf("%w: localhost and private addresses cannot be fetched by VoIP.ms", apperror.ErrMediaNotPublic)
	}
	return media, nil
}

func isPublicMediaURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}

	host := strings.ToLower(u.Hostname())
	if host == "" {
		return false
	}
	if host == "localhost" || strings.HasSuffix(host, ".local") {
		return false
	}

	addr, err := netip.ParseAddr(host)
	if err != nil {
		// Not an IP literal; hostname classification stops here.
		return true
	}
	if addr.Is4() || addr.Is4In6() {
		// 10/8, 172.16/12, 192.168/16, 127/8, 169.254/16, 0/8
		if addr.IsPrivate() || addr.IsLoopback() || addr.IsLinkLocalUnicast() {
			return false
		}
		if addr.Unmap().As4()[0] == 0 {
			return false
		}
		return true
	}
	return !addr.IsLoopback()
}
