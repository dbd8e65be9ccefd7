// Package driverfiles manages the per-call directory of files supplied with
// a lifecycle or discovery request.
//
// API uploads arrive as a base64 encoded zip archive and are extracted with
// FromBase64Zip into a fresh temporary directory; the CLI opens an existing
// directory with Open. Either way the result is a *Workspace, which
// implements engine.DriverFiles and is removed by the orchestrator once the
// call completes.
package driverfiles
