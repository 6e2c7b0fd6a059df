package security

import (
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/doyensec/safeurl"
)

// ErrUnsafeURL はURLが外部公開リンクとして安全でない場合のエラー。
var ErrUnsafeURL = errors.New("unsafe URL")

// LinkGuard はプロジェクトや学習記録に登録する外部リンクの検証機能のインターフェース。
// 保存前の静的検証と、リンク疎通確認時のSSRF防止クライアントの両方を提供する。
type LinkGuard interface {
	// ValidateURL はURLが公開ホストを指すhttp/httpsのURLかを検証する。
	ValidateURL(rawURL string) error
	// NewSafeClient はSSRF防止機能付きのHTTPクライアントを生成する。
	NewSafeClient(timeout time.Duration) *http.Client
}

// allowedSchemes は外部リンクとして許可されるURLスキーム。
var allowedSchemes = []string{"http", "https"}

// blockedNetworks は外部リンクとして登録できないネットワーク範囲。
// safeurlはDialer段階でDNS解決後のIPアドレスも検証するため、
// ここでは静的に判定できるIPリテラルのみを対象とする。
var blockedNetworks []net.IPNet

func init() {
	cidrs := []string{
		"10.0.0.0/8",
		"172.16.0.0/12",
		"192.168.0.0/16",
		"127.0.0.0/8",
		"169.254.0.0/16", // クラウドメタデータIPを含む
		"0.0.0.0/8",
		"100.64.0.0/10", // CGNAT
		"::1/128",
		"fe80::/10",
		"fc00::/7",
	}
	for _, cidr := range cidrs {
		_, network, err := net.ParseCIDR(cidr)
		if err != nil {
			panic(fmt.Sprintf("invalid CIDR in blockedNetworks: %s: %v", cidr, err))
		}
		blockedNetworks = append(blockedNetworks, *network)
	}
}

// blockedHostSuffixes は内部向けとみなすホスト名。先頭が"."のものはサフィックスで照合する。
var blockedHostSuffixes = []string{"localhost", ".localhost", ".local", ".internal"}

// linkGuard はLinkGuardの実装。
type linkGuard struct{}

// NewLinkGuard はLinkGuardを生成する。
func NewLinkGuard() *linkGuard {
	return &linkGuard{}
}

// NewSafeClient はSSRF防止機能付きのHTTPクライアントを生成する。
// プライベート、ループバック、リンクローカル、メタデータIPへの接続はsafeurlが
// DNS解決後に拒否するため、DNS再バインディングにも対応する。
func (g *linkGuard) NewSafeClient(timeout time.Duration) *http.Client {
	config := safeurl.GetConfigBuilder().
		SetTimeout(timeout).
		SetAllowedSchemes(allowedSchemes...).
		SetAllowedPorts(80, 443).
		Build()

	return safeurl.Client(config).Client
}

// ValidateURL はURLの安全性をDNS解決なしで静的に検証する。
// エラーはErrUnsafeURLをラップする。
func (g *linkGuard) ValidateURL(rawURL string) error {
	if strings.TrimSpace(rawURL) == "" {
		return fmt.Errorf("%w: empty URL", ErrUnsafeURL)
	}

	parsed, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrUnsafeURL, err)
	}

	scheme := strings.ToLower(parsed.Scheme)
	if !isAllowedScheme(scheme) {
		return fmt.Errorf("%w: disallowed scheme %q", ErrUnsafeURL, scheme)
	}
	if parsed.User != nil {
		return fmt.Errorf("%w: credentials in URL", ErrUnsafeURL)
	}

	host := parsed.Hostname()
	if host == "" {
		return fmt.Errorf("%w: empty host", ErrUnsafeURL)
	}

	if ip := net.ParseIP(host); ip != nil {
		if isBlockedIP(ip) {
			return fmt.Errorf("%w: blocked IP address %s", ErrUnsafeURL, ip.String())
		}
		return nil
	}

	if isBlockedHostname(host) {
		return fmt.Errorf("%w: blocked host %s", ErrUnsafeURL, host)
	}

	return nil
}

// ValidateOptionalURL は空文字列を許容するValidateURL。任意入力のリンク欄に使う。
func ValidateOptionalURL(g LinkGuard, rawURL string) error {
	if strings.TrimSpace(rawURL) == "" {
		return nil
	}
	return g.ValidateURL(rawURL)
}

func isAllowedScheme(scheme string) bool {
	for _, allowed := range allowedSchemes {
		if scheme == allowed {
			return true
		}
	}
	return false
}

func isBlockedIP(ip net.IP) bool {
	for _, network := range blockedNetworks {
		if network.Contains(ip) {
			return true
		}
	}
	return false
}

func isBlockedHostname(host string) bool {
	lower := strings.TrimSuffix(strings.ToLower(host), ".")
	for _, name := range blockedHostSuffixes {
		if strings.HasPrefix(name, ".") {
			if strings.HasSuffix(lower, name) {
				return true
			}
			continue
		}
		if lower == name {
			return true
		}
	}
	return false
}

// compile-time interface check
var _ LinkGuard = (*linkGuard)(nil)
