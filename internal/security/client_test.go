package security

import (
	"net/http"
	"testing"
	"time"
)

func TestNewProbeClient_Plain(t *testing.T) {
	client, err := NewProbeClient(ClientOptions{Timeout: 3 * time.Second})
	if err != nil {
		t.Fatalf("NewProbeClient() がエラーを返した: %v", err)
	}
	if client.Timeout != 3*time.Second {
		t.Errorf("Timeout = %v, want 3s", client.Timeout)
	}
	if client.Transport != nil {
		t.Error("SSRF防止なしの場合は既定のTransportを使用するべき")
	}
}

func TestNewProbeClient_GuardSSRF(t *testing.T) {
	client, err := NewProbeClient(ClientOptions{Timeout: 3 * time.Second, GuardSSRF: true})
	if err != nil {
		t.Fatalf("NewProbeClient() がエラーを返した: %v", err)
	}
	if client.Transport == nil || client.Transport == http.DefaultTransport {
		t.Error("SSRF防止ありの場合はsafeurlのTransportを使用するべき")
	}
}

func TestNewProbeClient_HTTPProxy(t *testing.T) {
	client, err := NewProbeClient(ClientOptions{
		Timeout:   3 * time.Second,
		GuardSSRF: true,
		ProxyURL:  "http://127.0.0.1:7890",
	})
	if err != nil {
		t.Fatalf("NewProbeClient() がエラーを返した: %v", err)
	}
	transport, ok := client.Transport.(*http.Transport)
	if !ok {
		t.Fatalf("Transport = %T, want *http.Transport", client.Transport)
	}
	if transport.Proxy == nil {
		t.Error("HTTPプロキシが設定されていない")
	}
}

func TestNewProbeClient_SOCKS5Proxy(t *testing.T) {
	client, err := NewProbeClient(ClientOptions{
		Timeout:  3 * time.Second,
		ProxyURL: "socks5://127.0.0.1:7891",
	})
	if err != nil {
		t.Fatalf("NewProbeClient() がエラーを返した: %v", err)
	}
	transport, ok := client.Transport.(*http.Transport)
	if !ok {
		t.Fatalf("Transport = %T, want *http.Transport", client.Transport)
	}
	if transport.DialContext == nil {
		t.Error("SOCKS5ダイヤラーが設定されていない")
	}
}

func TestNewProbeClient_UnsupportedProxyScheme(t *testing.T) {
	_, err := NewProbeClient(ClientOptions{Timeout: time.Second, ProxyURL: "ftp://127.0.0.1:21"})
	if err == nil {
		t.Fatal("未対応のプロキシスキームはエラーになるべき")
	}
}
