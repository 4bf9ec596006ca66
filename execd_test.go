package opensandbox

import (
	"crypto/sha256"
	"fmt"
	"strings"
	"testing"
)

func TestGetHost(t *testing.T) {
	c := &Client{config: &Config{Domain: "example.com"}}
	sb := &Sandbox{sandboxID: "sb-123", client: c}

	got := sb.GetHost(8080)
	want := "8080-sb-123.example.com"
	if got != want {
		t.Errorf("GetHost = %q, want %q", got, want)
	}
}

func TestGetHostRuntimeDomain(t *testing.T) {
	c := &Client{config: &Config{Domain: "api.example.com", RuntimeDomain: "run.example.com"}}
	sb := &Sandbox{sandboxID: "sb-456", client: c}

	got := sb.GetHost(3000)
	want := "3000-sb-456.run.example.com"
	if got != want {
		t.Errorf("GetHost = %q, want %q", got, want)
	}
}

func TestGetHostSandboxDomainOverride(t *testing.T) {
	c := &Client{config: &Config{Domain: "default.com", RuntimeDomain: "run.example.com"}}
	domain := "custom.sandbox.com"
	sb := &Sandbox{sandboxID: "sb-789", domain: &domain, client: c}

	got := sb.GetHost(443)
	want := "443-sb-789.custom.sandbox.com"
	if got != want {
		t.Errorf("GetHost = %q, want %q", got, want)
	}
}

func TestExecdURL(t *testing.T) {
	c := &Client{config: &Config{Domain: "test.dev"}}
	sb := &Sandbox{sandboxID: "sb-100", client: c}

	got := sb.execdURL()
	want := "http://test.dev/v1/sandboxes/sb-100/execd"
	if got != want {
		t.Errorf("execdURL = %q, want %q", got, want)
	}
}

func TestExecdURLSecure(t *testing.T) {
	c := &Client{config: &Config{Domain: "test.dev", Secure: true}}
	sb := &Sandbox{sandboxID: "sb-100", client: c}

	got := sb.execdURL()
	want := "https://test.dev/v1/sandboxes/sb-100/execd"
	if got != want {
		t.Errorf("execdURL = %q, want %q", got, want)
	}
}

func TestExecdAuthHeader(t *testing.T) {
	h := execdAuthHeader("testuser")
	auth := h.Get("Authorization")
	// base64("testuser:") = "dGVzdHVzZXI6"
	want := "Basic dGVzdHVzZXI6"
	if auth != want {
		t.Errorf("execdAuthHeader = %q, want %q", auth, want)
	}
}

func TestFileSignature(t *testing.T) {
	sig := fileSignature("/test/file.txt", "read", "user", "token123", 300)
	raw := "/test/file.txt:read:user:token123:300"
	hash := sha256.Sum256([]byte(raw))
	want := "v1_" + fmt.Sprintf("%x", hash)
	if sig != want {
		t.Errorf("fileSignature = %q, want %q", sig, want)
	}
}

func TestDownloadURL(t *testing.T) {
	c := &Client{config: &Config{Domain: "test.dev"}}
	token := "mytoken"
	sb := &Sandbox{sandboxID: "sb-100", accessToken: &token, client: c}

	u := sb.DownloadURL("/home/user/file.txt")
	prefix := "http://test.dev/v1/sandboxes/sb-100/execd/files?"
	if !strings.HasPrefix(u, prefix) {
		t.Errorf("DownloadURL = %q, want prefix %q", u, prefix)
	}
	if !strings.Contains(u, "signature=v1_") {
		t.Errorf("DownloadURL missing signature: %q", u)
	}
	if !strings.Contains(u, "signature_expiration=300") {
		t.Errorf("DownloadURL missing default expiration: %q", u)
	}
	if !strings.Contains(u, "username=user") {
		t.Errorf("DownloadURL missing username: %q", u)
	}
}

func TestUploadURLSignatureDiffersFromDownload(t *testing.T) {
	c := &Client{config: &Config{Domain: "test.dev"}}
	token := "mytoken"
	sb := &Sandbox{sandboxID: "sb-100", accessToken: &token, client: c}

	down := sb.DownloadURL("/file.txt")
	up := sb.UploadURL("/file.txt")
	// The operation is part of the signed payload, so read and write URLs
	// for the same path must not share a signature.
	if down == up {
		t.Error("expected different signatures for read and write")
	}
}

func TestDownloadURLWithoutToken(t *testing.T) {
	c := &Client{config: &Config{Domain: "test.dev"}}
	sb := &Sandbox{sandboxID: "sb-100", client: c}

	u := sb.DownloadURL("/file.txt")
	if strings.Contains(u, "signature=") {
		t.Errorf("expected unsigned URL without access token, got %q", u)
	}
	if !strings.Contains(u, "path=%2Ffile.txt") {
		t.Errorf("DownloadURL missing path: %q", u)
	}
}

func TestFileURLWithOptions(t *testing.T) {
	c := &Client{config: &Config{Domain: "test.dev"}}
	token := "tok"
	sb := &Sandbox{sandboxID: "sb-1", accessToken: &token, client: c}

	u := sb.DownloadURL("/file.txt", WithFileUser("admin"), WithSignatureExpiration(60))
	if !strings.Contains(u, "username=admin") {
		t.Errorf("DownloadURL missing username=admin: %q", u)
	}
	if !strings.Contains(u, "signature_expiration=60") {
		t.Errorf("DownloadURL missing signature_expiration=60: %q", u)
	}
	wantSig := fileSignature("/file.txt", "read", "admin", "tok", 60)
	if !strings.Contains(u, "signature="+wantSig) {
		t.Errorf("DownloadURL signature mismatch: %q", u)
	}
}

func TestBatchUploadURL(t *testing.T) {
	c := &Client{config: &Config{Domain: "test.dev"}}
	sb := &Sandbox{sandboxID: "sb-1", client: c}

	u := sb.batchUploadURL("user")
	want := "http://test.dev/v1/sandboxes/sb-1/execd/files?username=user"
	if u != want {
		t.Errorf("batchUploadURL = %q, want %q", u, want)
	}
}

func TestBatchUploadURLSigned(t *testing.T) {
	c := &Client{config: &Config{Domain: "test.dev"}}
	token := "tok"
	sb := &Sandbox{sandboxID: "sb-1", accessToken: &token, client: c}

	u := sb.batchUploadURL("user")
	if strings.Contains(u, "path=") {
		t.Errorf("batchUploadURL should carry no path: %q", u)
	}
	// Batch destinations travel in the part filenames, so the write
	// signature covers an empty path.
	wantSig := fileSignature("", "write", "user", "tok", 300)
	if !strings.Contains(u, "signature="+wantSig) {
		t.Errorf("batchUploadURL signature mismatch: %q", u)
	}
	if !strings.Contains(u, "signature_expiration=300") {
		t.Errorf("batchUploadURL missing expiration: %q", u)
	}
}

func TestFilesLazyInit(t *testing.T) {
	c := &Client{config: &Config{Domain: "test.dev"}}
	sb := &Sandbox{sandboxID: "sb-100", client: c}

	fs1 := sb.Files()
	fs2 := sb.Files()
	if fs1 != fs2 {
		t.Error("Files() should return the same instance")
	}
}

func TestCommandsLazyInit(t *testing.T) {
	c := &Client{config: &Config{Domain: "test.dev"}}
	sb := &Sandbox{sandboxID: "sb-100", client: c}

	cmd1 := sb.Commands()
	cmd2 := sb.Commands()
	if cmd1 != cmd2 {
		t.Error("Commands() should return the same instance")
	}
}

func TestEntryInfoFromAPINil(t *testing.T) {
	if entryInfoFromAPI(nil) != nil {
		t.Error("entryInfoFromAPI(nil) should return nil")
	}
}

func TestCommandErrorFromAPINil(t *testing.T) {
	if commandErrorFromAPI(nil) != nil {
		t.Error("commandErrorFromAPI(nil) should return nil")
	}
}
