package openstack

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gophercloud/gophercloud/v2"
	osclient "github.com/gophercloud/gophercloud/v2/openstack"
	"github.com/rs/zerolog"
)

// Catalog service types.
const (
	ServiceOrchestration = "orchestration"
	ServiceNetwork       = "network"
	ServiceIdentity      = "identity"
)

// neutronAPIVersion is the path segment between the Neutron endpoint and
// its resources.
const neutronAPIVersion = "v2.0/"

// PasswordAuth holds Keystone v3 password credentials. AuthAPI is appended
// to the location API URL to build the identity endpoint.
type PasswordAuth struct {
	AuthAPI    string
	Properties map[string]interface{}
}

// AuthURL returns the identity endpoint for apiURL.
func (a *PasswordAuth) AuthURL(apiURL string) string {
	return strings.TrimRight(apiURL, "/") + "/" + strings.TrimLeft(a.AuthAPI, "/")
}

func (a *PasswordAuth) prop(key string) string {
	if v, ok := a.Properties[key]; ok && v != nil {
		return fmt.Sprint(v)
	}
	return ""
}

// AuthOptions builds the Keystone password request for identityEndpoint.
// Ids win over names. Scope is the project when one is named, otherwise the
// domain when one is named. Reauthentication stays off: a rejected call is
// reported, never replayed.
func (a *PasswordAuth) AuthOptions(identityEndpoint string) gophercloud.AuthOptions {
	opts := gophercloud.AuthOptions{
		IdentityEndpoint: identityEndpoint,
		Password:         a.prop("password"),
	}
	if id := a.prop("user_id"); id != "" {
		opts.UserID = id
	} else {
		opts.Username = a.prop("username")
		opts.DomainID = a.prop("user_domain_id")
		if opts.DomainID == "" {
			opts.DomainName = a.prop("user_domain_name")
		}
	}

	switch {
	case a.prop("project_id") != "":
		opts.Scope = &gophercloud.AuthScope{ProjectID: a.prop("project_id")}
	case a.prop("project_name") != "":
		scope := &gophercloud.AuthScope{ProjectName: a.prop("project_name")}
		if scope.DomainID = a.prop("project_domain_id"); scope.DomainID == "" {
			scope.DomainName = a.prop("project_domain_name")
		}
		opts.Scope = scope
	case a.prop("domain_id") != "":
		opts.Scope = &gophercloud.AuthScope{DomainID: a.prop("domain_id")}
	case a.prop("domain_name") != "":
		opts.Scope = &gophercloud.AuthScope{DomainName: a.prop("domain_name")}
	}
	return opts
}

// session is a connection to one deployment location. The provider client
// is created, and authenticated, on first use.
type session struct {
	apiURL     string
	auth       *PasswordAuth
	endpoints  map[string]string
	httpClient *http.Client
	recorder   CallRecorder
	logger     zerolog.Logger

	provider *gophercloud.ProviderClient
}

func (s *session) providerClient(ctx context.Context) (*gophercloud.ProviderClient, error) {
	if s.provider != nil {
		return s.provider, nil
	}

	if s.auth == nil {
		pc, err := osclient.NewClient(s.apiURL)
		if err != nil {
			return nil, fmt.Errorf("invalid %s %q: %w", APIURLProperty, s.apiURL, err)
		}
		pc.HTTPClient = *s.httpClient
		s.provider = pc
		return pc, nil
	}

	authURL := s.auth.AuthURL(s.apiURL)
	pc, err := osclient.NewClient(authURL)
	if err != nil {
		return nil, fmt.Errorf("invalid identity endpoint %q: %w", authURL, err)
	}
	pc.HTTPClient = *s.httpClient

	start := time.Now()
	err = osclient.Authenticate(ctx, pc, s.auth.AuthOptions(authURL))
	s.observe(ServiceIdentity, "authenticate", start, err)
	if err != nil {
		return nil, translateError(ServiceIdentity, "authenticate", err)
	}

	s.logger.Debug().Str("identity", authURL).Msg("Authenticated with Keystone")
	s.provider = pc
	return pc, nil
}

// serviceClient resolves a service, preferring an explicit location
// override, then the public endpoint from the catalog. Without auth there
// is no catalog and the location API URL is used.
func (s *session) serviceClient(ctx context.Context, serviceType string) (*gophercloud.ServiceClient, error) {
	pc, err := s.providerClient(ctx)
	if err != nil {
		return nil, err
	}

	if endpoint := s.endpoints[serviceType]; endpoint != "" || s.auth == nil {
		if endpoint == "" {
			endpoint = s.apiURL
		}
		sc := &gophercloud.ServiceClient{
			ProviderClient: pc,
			Endpoint:       gophercloud.NormalizeURL(endpoint),
			Type:           serviceType,
		}
		if serviceType == ServiceNetwork {
			sc.ResourceBase = sc.Endpoint + neutronAPIVersion
		}
		return sc, nil
	}

	eo := gophercloud.EndpointOpts{Availability: gophercloud.AvailabilityPublic}
	var sc *gophercloud.ServiceClient
	switch serviceType {
	case ServiceOrchestration:
		sc, err = osclient.NewOrchestrationV1(pc, eo)
	case ServiceNetwork:
		sc, err = osclient.NewNetworkV2(pc, eo)
	default:
		return nil, fmt.Errorf("unsupported service type: %s", serviceType)
	}
	if err != nil {
		return nil, fmt.Errorf("no %s endpoint found in the service catalog: %w", serviceType, err)
	}
	return sc, nil
}

func (s *session) observe(service, op string, start time.Time, err error) {
	s.logger.Debug().Str("service", service).Str("op", op).Err(err).Msg("Called OpenStack")
	if s.recorder != nil {
		s.recorder.RecordOpenstackCall(service, op, time.Since(start), err)
	}
}

// close drops the token and idle connections.
func (s *session) close() {
	s.provider = nil
	s.httpClient.CloseIdleConnections()
}
