// Package opensandbox is the Go SDK of the OpenSandbox service, which runs
// untrusted workloads in isolated cloud sandboxes.
//
// A sandbox is a short-lived, isolated execution environment intended for
// AI-generated code and other workloads that must not touch the host.
// Sandboxes boot from a container image in well under a second, expire after
// a configurable timeout, and can be paused and resumed with their
// filesystem and memory state preserved.
//
// # Core concepts
//
//   - Sandbox: an isolated execution environment, in state running or paused
//   - execd: the agent daemon inside every sandbox; it serves process
//     management and filesystem access over ConnectRPC plus a plain HTTP
//     file transfer endpoint
//   - access token: a per-sandbox secret used to sign file transfer URLs
//
// # Quick start
//
// Create a client and boot a sandbox:
//
//	c, err := opensandbox.NewClient(&opensandbox.Config{
//	    APIKey: os.Getenv("OPENSANDBOX_API_KEY"),
//	})
//
//	timeout := int32(120)
//	sb, _, err := c.CreateAndWait(ctx, opensandbox.CreateParams{
//	    Image:   "python:3.13",
//	    Timeout: &timeout,
//	}, opensandbox.WithPollInterval(2*time.Second))
//
//	defer sb.Kill(ctx)
//
// # Sandbox lifecycle
//
// Client creates, connects to and lists sandboxes:
//
//   - [Client.Create] / [Client.CreateAndWait]: boot a sandbox (the latter
//     polls until it is running)
//   - [Client.Connect]: attach to an existing sandbox by ID
//   - [Client.List]: list sandboxes, filtered by state and metadata
//
// A Sandbox manages its own lifecycle:
//
//   - [Sandbox.Kill]: terminate the sandbox
//   - [Sandbox.Pause] / [Sandbox.Resume]: suspend and restore state
//   - [Sandbox.SetTimeout] / [Sandbox.Refresh]: extend the lifetime
//   - [Sandbox.GetInfo] / [Sandbox.IsRunning]: query state
//   - [Sandbox.GetMetrics] / [Sandbox.GetLogs]: resource metrics and logs
//   - [Sandbox.WaitForReady]: poll until the sandbox is running
//
// # Running commands
//
// [Sandbox.Commands] executes terminal commands inside the sandbox:
//
//	result, err := sb.Commands().Run(ctx, "echo hello",
//	    opensandbox.WithEnvs(map[string]string{"MY_VAR": "value"}),
//	    opensandbox.WithCwd("/tmp"),
//	    opensandbox.WithTimeout(5*time.Second),
//	)
//	if result.Failed() {
//	    log.Fatal(result.Error)
//	}
//	fmt.Println(strings.Join(result.Stdout, "\n"))
//
// Output arrives line by line; register [WithOnStdout] / [WithOnStderr]
// callbacks to stream it instead of collecting it in the result. Background
// commands run through [Commands.Start], which returns a [CommandHandle] for
// [CommandHandle.Wait], [CommandHandle.Kill] and [Commands.SendStdin].
//
// # Filesystem
//
// [Sandbox.Files] reads and writes files inside the sandbox:
//
//	sb.Files().Write(ctx, "/tmp/hello.txt", []byte("Hello!"))
//	content, err := sb.Files().Read(ctx, "/tmp/hello.txt")
//
//	sb.Files().WriteFiles(ctx, []opensandbox.WriteEntry{
//	    {Path: "/tmp/a.txt", Data: []byte("content A")},
//	    {Path: "/tmp/b.txt", Data: []byte("content B")},
//	})
//
//	sb.Files().MakeDir(ctx, "/tmp/mydir")
//	entries, err := sb.Files().List(ctx, "/tmp")
//
// Filesystem also provides [Filesystem.ReadText], [Filesystem.Exists],
// [Filesystem.Stat], [Filesystem.Rename] and [Filesystem.Remove].
// [Sandbox.DownloadURL] and [Sandbox.UploadURL] return signed URLs for
// out-of-band transfers.
//
// # Network access
//
// Sandboxes reach the internet unless CreateParams.AllowInternetAccess
// disables it. [Sandbox.GetHost] returns the external hostname for a port
// exposed by the sandbox.
//
// # Polling options
//
// [Client.CreateAndWait] and [Sandbox.WaitForReady] accept [PollOption]
// values to tune the poll loop:
//
//   - [WithPollInterval]: set the poll interval
//   - [WithBackoff]: enable exponential backoff
//   - [WithOnPoll]: register a per-attempt callback, e.g. for progress logs
package opensandbox
