// Package openstack connects the driver to OpenStack deployment locations.
//
// A LocationTranslator validates a deployment location and returns a
// Location: a scoped session that authenticates against Keystone v3 on first
// use, resolves the Heat and Neutron endpoints from the service catalog and
// builds the matching clients lazily. Close releases all of them and removes
// the temporary CA certificate file written for os_cacert.
//
// Location properties:
//
//	os_api_url       base URL of the deployment (required)
//	os_auth_enabled  boolean, defaults to true
//	os_auth_api      identity API path appended to os_api_url, for example v3
//	os_auth_*        Keystone password credentials (username, password,
//	                 user_domain_name, project_name, project_domain_name, ...)
//	os_cacert        PEM bundle trusted for TLS
//	os_heat_url      Heat endpoint override
//	os_neutron_url   Neutron endpoint override
//
// Keystone, Heat and Neutron are reached through gophercloud service
// clients sharing one http.Client, whose transport is traced with otelhttp
// and trusts os_cacert. Calls are never retried or reauthenticated. Every
// call is reported to an optional CallRecorder. A 404 from any service is
// returned as an engine not found error; other failures are *APIError values.
package openstack
