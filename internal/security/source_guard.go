package security

import (
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/doyensec/safeurl"
)

// SourceGuard は掲載サイトへのアクセスに使うHTTPクライアントを提供する。
// 検索URLやベースURLは設定値から組み立てるため、誤設定で内部ネットワークへ
// リクエストしないようにsafeurlでブロックする。
type SourceGuard interface {
	// NewClient はタイムアウト付きのSSRF防止HTTPクライアントを生成する。
	NewClient(timeout time.Duration) *http.Client

	// ValidateURL はDNS解決を伴わない静的なURL検証を行う。
	ValidateURL(rawURL string) error
}

// sourceGuard はSourceGuardの実装。
type sourceGuard struct{}

// NewSourceGuard はSourceGuardの新しいインスタンスを生成する。
func NewSourceGuard() *sourceGuard {
	return &sourceGuard{}
}

// NewClient はsafeurlでラップしたHTTPクライアントを生成する。
// プライベートIP、ループバック、リンクローカル（メタデータIPを含む）への接続は
// DNS解決後のDialer段階でも拒否される。
func (g *sourceGuard) NewClient(timeout time.Duration) *http.Client {
	config := safeurl.GetConfigBuilder().
		SetTimeout(timeout).
		SetAllowedSchemes("http", "https").
		SetAllowedPorts(80, 443).
		Build()

	return safeurl.Client(config).Client
}

// ValidateURL は設定されたURLが公開ホストを指す http/https URL であることを検証する。
func (g *sourceGuard) ValidateURL(rawURL string) error {
	if rawURL == "" {
		return fmt.Errorf("empty URL")
	}

	parsed, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid URL: %w", err)
	}

	switch strings.ToLower(parsed.Scheme) {
	case "http", "https":
	default:
		return fmt.Errorf("disallowed scheme: %q", parsed.Scheme)
	}

	host := parsed.Hostname()
	if host == "" {
		return fmt.Errorf("empty host in URL: %s", rawURL)
	}
	if strings.EqualFold(host, "localhost") {
		return fmt.Errorf("blocked host: %s", host)
	}

	if ip := net.ParseIP(host); ip != nil && isInternalIP(ip) {
		return fmt.Errorf("blocked IP address: %s", ip.String())
	}

	return nil
}

// isInternalIP は公開インターネット上にないアドレスかどうかを返す。
func isInternalIP(ip net.IP) bool {
	return ip.IsLoopback() ||
		ip.IsPrivate() ||
		ip.IsLinkLocalUnicast() ||
		ip.IsLinkLocalMulticast() ||
		ip.IsUnspecified()
}
