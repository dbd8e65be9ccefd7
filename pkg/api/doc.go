// Package api exposes the lifecycle driver over HTTP.
//
// Routes:
//
//	POST /api/driver/lifecycle/execute
//	POST /api/driver/lifecycle/executions/{requestId}
//	POST /api/driver/references/find
//	GET  /api/driver/requests             (request journal enabled)
//	POST /api/openstack/admin/ping        (admin API enabled)
//	GET  /healthz
//	GET  /metrics                         (metrics enabled)
//
// Driver files travel as a base64 encoded zip archive and are extracted to a
// per-request workspace. Errors are returned as {"kind", "message"} with a
// status derived from the engine error kind.
package api
