package middleware

import (
	"net"
	"net/http"
	"net/netip"
	"strings"
)

// NewTrustedProxyMiddleware は接続元が信頼済みプロキシの場合に限り、
// X-Forwarded-Forからクライアントアドレスを復元してRemoteAddrに設定するミドルウェアを返す。
// 信頼済みでない接続元が送った転送ヘッダーは無視する。
// trustedが空の場合は常にRemoteAddrをそのまま使う。
func NewTrustedProxyMiddleware(trusted []netip.Prefix) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if len(trusted) == 0 {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			peer, ok := parseAddr(ClientIP(r))
			if ok && isTrusted(trusted, peer) {
				if client, found := forwardedClient(r.Header.Values("X-Forwarded-For"), trusted); found {
					r.RemoteAddr = client.String()
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}

// forwardedClient はX-Forwarded-Forを右から辿り、信頼済みプロキシでない最初のアドレスを返す。
// 左側の値はクライアントが自由に書けるため、右端から検証する。
func forwardedClient(values []string, trusted []netip.Prefix) (netip.Addr, bool) {
	var hops []string
	for _, v := range values {
		hops = append(hops, strings.Split(v, ",")...)
	}

	for i := len(hops) - 1; i >= 0; i-- {
		addr, ok := parseAddr(strings.TrimSpace(hops[i]))
		if !ok {
			// 解釈できない値より左は信用しない
			return netip.Addr{}, false
		}
		if !isTrusted(trusted, addr) {
			return addr, true
		}
	}
	return netip.Addr{}, false
}

func parseAddr(s string) (netip.Addr, bool) {
	if host, _, err := net.SplitHostPort(s); err == nil {
		s = host
	}
	addr, err := netip.ParseAddr(s)
	if err != nil {
		return netip.Addr{}, false
	}
	return addr.Unmap(), true
}

func isTrusted(trusted []netip.Prefix, addr netip.Addr) bool {
	for _, p := range trusted {
		if p.Contains(addr) {
			return true
		}
	}
	return false
}
