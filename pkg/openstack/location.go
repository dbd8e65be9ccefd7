package openstack

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/openfroyo/heatdriver/pkg/engine"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// Deployment location properties.
const (
	APIURLProperty      = "os_api_url"
	AuthPropertyPrefix  = "os_auth_"
	AuthEnabledProperty = "os_auth_enabled"
	AuthAPIProperty     = "os_auth_api"
	CACertProperty      = "os_cacert"
	HeatURLProperty     = "os_heat_url"
	NeutronURLProperty  = "os_neutron_url"
)

// DefaultHTTPTimeout bounds every OpenStack round trip.
const DefaultHTTPTimeout = 60 * time.Second

// CallRecorder observes every OpenStack API call.
type CallRecorder interface {
	RecordOpenstackCall(service, operation string, duration time.Duration, err error)
}

// Option configures a LocationTranslator.
type Option func(*LocationTranslator)

// WithCallRecorder reports every API call to r.
func WithCallRecorder(r CallRecorder) Option {
	return func(t *LocationTranslator) { t.recorder = r }
}

// WithHTTPTimeout overrides DefaultHTTPTimeout.
func WithHTTPTimeout(d time.Duration) Option {
	return func(t *LocationTranslator) { t.timeout = d }
}

// LocationTranslator turns deployment locations into scoped OpenStack
// environments. It implements engine.EnvironmentFactory.
type LocationTranslator struct {
	logger   zerolog.Logger
	recorder CallRecorder
	timeout  time.Duration
}

// NewLocationTranslator creates a translator.
func NewLocationTranslator(logger zerolog.Logger, opts ...Option) *LocationTranslator {
	t := &LocationTranslator{
		logger:  logger.With().Str("component", "openstack").Logger(),
		timeout: DefaultHTTPTimeout,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Open implements engine.EnvironmentFactory.
func (t *LocationTranslator) Open(ctx context.Context, location engine.DeploymentLocation) (engine.Environment, error) {
	return t.FromDeploymentLocation(location)
}

// FromDeploymentLocation validates location and returns a Location. No
// remote call is made; the session is created on first client use.
func (t *LocationTranslator) FromDeploymentLocation(location engine.DeploymentLocation) (*Location, error) {
	if location.Name == "" {
		return nil, engine.NewInvalidRequestError("Deployment Location managed by the Openstack VIM Driver must have a name")
	}
	props := location.Properties

	apiURL, _ := props[APIURLProperty].(string)
	if apiURL == "" {
		return nil, engine.NewInvalidRequestError("Deployment Location managed by the Openstack VIM Driver must specify a property value for '%s'", APIURLProperty)
	}

	authEnabled := true
	authAPI := ""
	authProps := make(map[string]interface{})
	for key, value := range props {
		switch {
		case key == AuthEnabledProperty:
			enabled, ok := value.(bool)
			if !ok {
				return nil, engine.NewInvalidRequestError("Deployment Location should have a boolean value for property '%s'", AuthEnabledProperty)
			}
			authEnabled = enabled
		case key == AuthAPIProperty:
			authAPI, _ = value.(string)
		case strings.HasPrefix(key, AuthPropertyPrefix):
			authProps[strings.TrimPrefix(key, AuthPropertyPrefix)] = value
		}
	}

	var auth *PasswordAuth
	if authEnabled {
		if authAPI == "" {
			return nil, engine.NewInvalidRequestError("Deployment Location must specify a value for property '%s' when auth is enabled", AuthAPIProperty)
		}
		auth = &PasswordAuth{AuthAPI: authAPI, Properties: authProps}
	}

	loc := &Location{
		Name:   location.Name,
		APIURL: apiURL,
		Auth:   auth,
		logger: t.logger.With().Str("location", location.Name).Logger(),
	}

	base := http.DefaultTransport.(*http.Transport).Clone()
	if pem, _ := props[CACertProperty].(string); pem != "" {
		tlsConfig, path, err := writeCACert(pem)
		if err != nil {
			return nil, err
		}
		loc.caCertPath = path
		base.TLSClientConfig = tlsConfig
	}

	loc.session = &session{
		apiURL: apiURL,
		auth:   auth,
		endpoints: map[string]string{
			ServiceOrchestration: stringProp(props, HeatURLProperty),
			ServiceNetwork:       stringProp(props, NeutronURLProperty),
		},
		httpClient: &http.Client{
			Transport: otelhttp.NewTransport(base),
			Timeout:   t.timeout,
		},
		recorder: t.recorder,
		logger:   loc.logger,
	}
	return loc, nil
}

func stringProp(props map[string]interface{}, key string) string {
	s, _ := props[key].(string)
	return s
}

// writeCACert stores the PEM bundle in a temporary file and builds a TLS
// config trusting it. The caller owns the file.
func writeCACert(pem string) (*tls.Config, string, error) {
	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM([]byte(pem)) {
		return nil, "", engine.NewInvalidRequestError("Deployment Location property '%s' does not contain a valid PEM certificate", CACertProperty)
	}

	f, err := os.CreateTemp("", "heatdriver-cacert-*.pem")
	if err != nil {
		return nil, "", fmt.Errorf("failed to create CA certificate file: %w", err)
	}
	if _, err := f.WriteString(pem); err != nil {
		f.Close()
		os.Remove(f.Name())
		return nil, "", fmt.Errorf("failed to write CA certificate file: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(f.Name())
		return nil, "", fmt.Errorf("failed to write CA certificate file: %w", err)
	}
	return &tls.Config{RootCAs: pool, MinVersion: tls.VersionTLS12}, f.Name(), nil
}

// Location is a scoped session against one OpenStack deployment. Clients
// are created on first use and released together by Close.
type Location struct {
	Name   string
	APIURL string
	Auth   *PasswordAuth

	session    *session
	caCertPath string
	heat       *HeatClient
	neutron    *NeutronClient
	closed     bool
	logger     zerolog.Logger
}

var errLocationClosed = errors.New("openstack location is closed")

// Heat returns the Heat client, authenticating on first use.
func (l *Location) Heat(ctx context.Context) (*HeatClient, error) {
	if l.closed {
		return nil, errLocationClosed
	}
	if l.heat == nil {
		client, err := l.session.serviceClient(ctx, ServiceOrchestration)
		if err != nil {
			return nil, err
		}
		l.heat = &HeatClient{client: client, session: l.session}
	}
	return l.heat, nil
}

// Neutron returns the Neutron client, authenticating on first use.
func (l *Location) Neutron(ctx context.Context) (*NeutronClient, error) {
	if l.closed {
		return nil, errLocationClosed
	}
	if l.neutron == nil {
		client, err := l.session.serviceClient(ctx, ServiceNetwork)
		if err != nil {
			return nil, err
		}
		l.neutron = &NeutronClient{client: client, session: l.session}
	}
	return l.neutron, nil
}

// Stacks implements engine.Environment.
func (l *Location) Stacks(ctx context.Context) (engine.StackClient, error) {
	return l.Heat(ctx)
}

// Networks implements engine.Environment.
func (l *Location) Networks(ctx context.Context) (engine.NetworkClient, error) {
	return l.Neutron(ctx)
}

// InputFilter implements engine.Environment.
func (l *Location) InputFilter() engine.InputFilter {
	return HeatInputFilter{}
}

// CACertPath returns the temporary CA certificate file, if any.
func (l *Location) CACertPath() string {
	return l.caCertPath
}

// Close releases the session and clients and removes the CA certificate
// file. It is safe to call more than once.
func (l *Location) Close() error {
	if l.closed {
		return nil
	}
	l.closed = true
	l.heat = nil
	l.neutron = nil
	l.session.close()

	if l.caCertPath == "" {
		return nil
	}
	path := l.caCertPath
	l.caCertPath = ""
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove CA certificate file %s: %w", path, err)
	}
	l.logger.Debug().Str("path", path).Msg("Removed CA certificate file")
	return nil
}
