package security

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/net/proxy"
)

// ClientOptions はプローブ用HTTPクライアントの生成オプション。
type ClientOptions struct {
	// Timeout はリクエスト全体のタイムアウト。
	Timeout time.Duration
	// GuardSSRF が true の場合、safeurlによるSSRF防止クライアントを使用する。
	GuardSSRF bool
	// AllowedPorts はSSRF防止時に接続を許可するポート。空の場合はポートを制限しない。
	AllowedPorts []int
	// ProxyURL は上流プロキシ（socks5:// / socks5h:// / http:// / https://）。
	// 指定した場合は接続がプロキシ側で行われるため、SSRF防止は適用しない。
	ProxyURL string
}

// NewProbeClient はオプションに応じたプローブ用HTTPクライアントを生成する。
func NewProbeClient(opts ClientOptions) (*http.Client, error) {
	if opts.ProxyURL != "" {
		return newProxiedClient(opts.Timeout, opts.ProxyURL)
	}
	if opts.GuardSSRF {
		return NewSSRFGuard(opts.AllowedPorts...).NewSafeClient(opts.Timeout), nil
	}
	return &http.Client{Timeout: opts.Timeout}, nil
}

// newProxiedClient は上流プロキシ経由のHTTPクライアントを生成する。
// SOCKS5はx/net/proxyのDialer、HTTPプロキシはTransport.Proxyで扱う。
func newProxiedClient(timeout time.Duration, rawProxyURL string) (*http.Client, error) {
	proxyURL, err := url.Parse(rawProxyURL)
	if err != nil {
		return nil, fmt.Errorf("invalid proxy URL: %w", err)
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()

	switch strings.ToLower(proxyURL.Scheme) {
	case "http", "https":
		transport.Proxy = http.ProxyURL(proxyURL)
	case "socks5", "socks5h":
		dialer, err := proxy.FromURL(proxyURL, &net.Dialer{Timeout: timeout})
		if err != nil {
			return nil, fmt.Errorf("failed to create proxy dialer: %w", err)
		}
		transport.Proxy = nil
		if cd, ok := dialer.(proxy.ContextDialer); ok {
			transport.DialContext = cd.DialContext
		} else {
			transport.DialContext = func(ctx context.Context, network, addr string) (net.Conn, error) {
				return dialer.Dial(network, addr)
			}
		}
	default:
		return nil, fmt.Errorf("unsupported proxy scheme: %s", proxyURL.Scheme)
	}

	return &http.Client{Timeout: timeout, Transport: transport}, nil
}
