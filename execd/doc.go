// Package execd defines the wire protocol of the agent that runs inside
// every OpenSandbox sandbox.
//
// The agent exposes two connect RPC services, Process and Filesystem, plus a
// plain HTTP file-transfer endpoint:
//
//   - /execd.v1.Process        start and control processes; Start and Connect
//     are server streams of ProcessEvent (start, data, end)
//   - /execd.v1.Filesystem     metadata operations (Stat, ListDir, MakeDir,
//     Remove, Move) plus Watch, a server stream of directory change events
//   - /files                   GET downloads, multipart POST uploads
//
// All RPC payloads are JSON. Clients and handlers built by this package
// register the JSON codec automatically, so both sides of the connection
// agree on application/json content types.
//
// Process data events are line oriented: each Data event carries exactly one
// output line, without its trailing newline, on either the stdout or the
// stderr field. The End event always carries an ExecError when the process
// exited non-zero.
//
// The SDK reaches the agent through the service gateway under
// /v1/sandboxes/{id}/execd. Deployments that expose sandboxes directly can
// dial DefaultPort on the sandbox host instead.
package execd
