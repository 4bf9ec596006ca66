//go:build integration

package opensandbox

import (
	"context"
	"os"
	"testing"
	"time"
)

// testClient builds a client for integration tests from the environment.
// OPENSANDBOX_API_KEY and OPENSANDBOX_DOMAIN must point at a live service.
func testClient(t *testing.T) *Client {
	t.Helper()

	apiKey := os.Getenv("OPENSANDBOX_API_KEY")
	if apiKey == "" {
		t.Fatal("OPENSANDBOX_API_KEY must be set for integration tests")
	}

	c, err := NewClient(&Config{
		APIKey: apiKey,
		Domain: os.Getenv("OPENSANDBOX_DOMAIN"),
	})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	return c
}

// testImage returns the image the lifecycle test boots, overridable through
// OPENSANDBOX_TEST_IMAGE.
func testImage() string {
	if img := os.Getenv("OPENSANDBOX_TEST_IMAGE"); img != "" {
		return img
	}
	return "docker.io/library/python:3.12-slim"
}

func TestIntegrationHealthCheck(t *testing.T) {
	c := testClient(t)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := c.HealthCheck(ctx); err != nil {
		t.Fatalf("HealthCheck: %v", err)
	}
	t.Log("health check passed")
}

func TestIntegrationListSandboxes(t *testing.T) {
	c := testClient(t)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	list, err := c.List(ctx, ListParams{})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	t.Logf("%d sandboxes", len(list.Sandboxes))
	for _, sb := range list.Sandboxes {
		t.Logf("  - %s (image=%s state=%s)", sb.SandboxID, sb.Image, sb.State)
	}
}

func TestIntegrationSandboxLifecycle(t *testing.T) {
	c := testClient(t)
	ctx, cancel := context.WithTimeout(context.Background(), 180*time.Second)
	defer cancel()

	// 1. Create the sandbox and wait for it to run.
	timeout := int32(120)
	sb, info, err := c.CreateAndWait(ctx, CreateParams{
		Image:   testImage(),
		Timeout: &timeout,
		Metadata: Metadata{
			"purpose": "sdk-integration-test",
		},
	}, WithPollInterval(2*time.Second))
	if err != nil {
		t.Fatalf("CreateAndWait: %v", err)
	}
	t.Logf("sandbox created: %s (state=%s)", sb.ID(), info.State)

	// Always tear the sandbox down, even on failure.
	killed := false
	defer func() {
		if killed {
			return
		}
		killCtx, killCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer killCancel()
		if err := sb.Kill(killCtx); err != nil {
			t.Logf("cleanup of sandbox %s failed: %v", sb.ID(), err)
		} else {
			t.Logf("sandbox %s cleaned up", sb.ID())
		}
	}()

	// 2. The handle must report running.
	running, err := sb.IsRunning(ctx)
	if err != nil {
		t.Fatalf("IsRunning: %v", err)
	}
	if !running {
		t.Fatal("sandbox is not running after CreateAndWait")
	}

	// 3. Detail fields are populated.
	detail, err := sb.GetInfo(ctx)
	if err != nil {
		t.Fatalf("GetInfo: %v", err)
	}
	t.Logf("detail: state=%s image=%s cpu=%d memMB=%d",
		detail.State, detail.Image, detail.CPUCount, detail.MemoryMB)

	// 4. Extend the inactivity timeout.
	if err := sb.SetTimeout(ctx, 150*time.Second); err != nil {
		t.Fatalf("SetTimeout: %v", err)
	}

	// 5. The sandbox appears in the listing.
	list, err := c.List(ctx, ListParams{})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	found := false
	for _, s := range list.Sandboxes {
		if s.SandboxID == sb.ID() {
			found = true
			break
		}
	}
	if !found {
		t.Fatal("created sandbox missing from the listing")
	}

	// 6. Run a command through execd.
	result, err := sb.Commands().Run(ctx, "echo integration")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.Failed() {
		t.Fatalf("command failed: %v", result.Error)
	}
	if len(result.Stdout) != 1 || result.Stdout[0] != "integration" {
		t.Errorf("Stdout = %v, want [integration]", result.Stdout)
	}

	// 7. Round-trip a file.
	const path = "/tmp/integration.txt"
	if _, err := sb.Files().Write(ctx, path, []byte("file content")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	text, err := sb.Files().ReadText(ctx, path)
	if err != nil {
		t.Fatalf("ReadText: %v", err)
	}
	if text != "file content" {
		t.Errorf("ReadText = %q, want %q", text, "file content")
	}

	// 8. Kill the sandbox.
	if err := sb.Kill(ctx); err != nil {
		t.Fatalf("Kill: %v", err)
	}
	killed = true
	t.Log("sandbox killed")
}
