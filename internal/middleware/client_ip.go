package middleware

import (
	"net"
	"net/http"
	"strings"
)

// ClientIP はリクエストからクライアントのネットワーク識別子を取り出す。
// リバースプロキシ背後での運用を想定し、X-Forwarded-Forの先頭ホップを優先する。
// ヘッダが無い場合はRemoteAddrのホスト部を使用する。
// レート制限のキーとして使用される。
func ClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first := strings.TrimSpace(strings.Split(xff, ",")[0])
		if first != "" {
			return first
		}
	}

	if xrip := r.Header.Get("X-Real-IP"); xrip != "" {
		return strings.TrimSpace(xrip)
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
