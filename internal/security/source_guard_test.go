package security

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestNewClient_Timeout(t *testing.T) {
	guard := NewSourceGuard()
	client := guard.NewClient(5 * time.Second)
	if client == nil {
		t.Fatal("NewClient() returned nil")
	}
	if client.Timeout != 5*time.Second {
		t.Errorf("Timeout = %v, want %v", client.Timeout, 5*time.Second)
	}
}

func TestNewClient_HasCustomTransport(t *testing.T) {
	client := NewSourceGuard().NewClient(5 * time.Second)
	if client.Transport == nil || client.Transport == http.DefaultTransport {
		t.Fatal("safeurl のカスタムTransportが設定されるべき")
	}
}

// httptestサーバーは127.0.0.1で起動されるため、safeurlがブロックする。
func TestNewClient_BlocksLoopback(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer ts.Close()

	client := NewSourceGuard().NewClient(5 * time.Second)
	if _, err := client.Get(ts.URL); err == nil {
		t.Fatal("ループバックへのリクエストはエラーになるべき")
	}
}

func TestValidateURL_Allowed(t *testing.T) {
	guard := NewSourceGuard()
	for _, u := range []string{
		"https://classifieds.ksl.com/search/",
		"https://www.ksl.com/classifieds/listing",
		"http://example.org/search",
	} {
		if err := guard.ValidateURL(u); err != nil {
			t.Errorf("ValidateURL(%q) = %v, want nil", u, err)
		}
	}
}

func TestValidateURL_Rejected(t *testing.T) {
	guard := NewSourceGuard()
	for _, u := range []string{
		"",
		"not-a-url",
		"ftp://example.com/search",
		"file:///etc/passwd",
		"http://localhost/search",
		"http://127.0.0.1/search",
		"http://10.0.0.5/search",
		"http://192.168.1.1/search",
		"http://169.254.169.254/latest/meta-data/",
		"http://[::1]/search",
		"http://0.0.0.0/search",
	} {
		if err := guard.ValidateURL(u); err == nil {
			t.Errorf("ValidateURL(%q) はエラーを返すべき", u)
		}
	}
}

func TestSourceGuard_ImplementsInterface(t *testing.T) {
	var _ SourceGuard = NewSourceGuard()
}
