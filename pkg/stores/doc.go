// Package stores persists the driver's request journal in SQLite.
//
// The lifecycle core is stateless: request ids carry everything needed to
// poll an execution. The journal is an audit trail on the side. It records
// every issued request id together with the resource and location it was
// issued for, and appends each lifecycle, poll and reference event the
// telemetry publisher emits. Schema changes are applied with golang-migrate
// from migrations embedded in the binary.
package stores
