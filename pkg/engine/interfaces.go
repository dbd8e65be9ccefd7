package engine

import (
	"context"
)

// StackClient drives stacks on the external orchestration engine.
type StackClient interface {
	// CreateStack creates a stack and returns its id. files may be nil.
	CreateStack(ctx context.Context, name, template string, inputs map[string]interface{}, files map[string]string) (string, error)

	// GetStack fetches the current state of a stack. Returns a not found
	// error when the stack does not exist.
	GetStack(ctx context.Context, id string) (*StackHandle, error)

	// DeleteStack requests deletion of a stack. Returns a not found error
	// when the stack does not exist.
	DeleteStack(ctx context.Context, id string) error

	// ListStacks lists the stacks visible to the session.
	ListStacks(ctx context.Context) ([]StackHandle, error)
}

// Network is a network known to the environment.
type Network struct {
	ID              string   `json:"id"`
	Name            string   `json:"name"`
	Status          string   `json:"status,omitempty"`
	Subnets         []string `json:"subnets"`
	SegmentationID  *int     `json:"provider:segmentation_id,omitempty"`
	PhysicalNetwork *string  `json:"provider:physical_network,omitempty"`
	NetworkType     *string  `json:"provider:network_type,omitempty"`
}

// AllocationPool is a range of addresses handed out from a subnet.
type AllocationPool struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

// Subnet is an address block attached to a network.
type Subnet struct {
	ID              string           `json:"id"`
	Name            string           `json:"name"`
	NetworkID       string           `json:"network_id"`
	IPVersion       int              `json:"ip_version"`
	CIDR            string           `json:"cidr"`
	GatewayIP       *string          `json:"gateway_ip"`
	EnableDHCP      bool             `json:"enable_dhcp"`
	AllocationPools []AllocationPool `json:"allocation_pools"`
}

// NetworkClient queries networks in an environment. Every lookup returns a
// not found error on absence.
type NetworkClient interface {
	// GetNetwork looks up a network by id.
	GetNetwork(ctx context.Context, id string) (*Network, error)

	// ListNetworks lists every network visible to the session.
	ListNetworks(ctx context.Context) ([]Network, error)

	// GetSubnet looks up a subnet by id.
	GetSubnet(ctx context.Context, id string) (*Subnet, error)
}

// InputFilter reduces a property set to the inputs a template declares.
type InputFilter interface {
	// FilterUsedProperties returns the plain values of the properties the
	// template declares as parameters.
	FilterUsedProperties(template string, properties PropValueMap) (map[string]interface{}, error)
}

// TemplateTranslator turns a declarative description into a native template.
type TemplateTranslator interface {
	// Translate returns the native template text. sourcePath may be empty;
	// when set it is used to resolve relative imports.
	Translate(ctx context.Context, template, sourcePath string) (string, error)
}

// Environment is a scoped session against one deployment location. Clients
// are built lazily on first use. Close releases the session, every derived
// client and any transient credential material; it must be called on every
// exit path.
type Environment interface {
	// Stacks returns the stack client for the session.
	Stacks(ctx context.Context) (StackClient, error)

	// Networks returns the network query client for the session.
	Networks(ctx context.Context) (NetworkClient, error)

	// InputFilter returns the filter used to select template inputs.
	InputFilter() InputFilter

	// Close releases the session.
	Close() error
}

// EnvironmentFactory opens environments for deployment locations.
type EnvironmentFactory interface {
	// Open validates the location and returns a scoped environment. No
	// remote call is made until a client is first requested.
	Open(ctx context.Context, location DeploymentLocation) (Environment, error)
}

// DriverFiles is the per-call workspace of driver supplied files.
type DriverFiles interface {
	// Root returns the workspace root directory.
	Root() string

	// HasFile reports whether a regular file exists at the relative path.
	HasFile(name string) bool

	// HasDirectory reports whether a directory exists at the relative path.
	HasDirectory(name string) bool

	// FilePath returns the absolute path of a workspace entry.
	FilePath(name string) string

	// ReadFile reads a file from the workspace.
	ReadFile(name string) ([]byte, error)

	// ReadTree reads every regular file beneath a directory, keyed by the path
	// relative to that directory using forward slashes.
	ReadTree(dir string) (map[string]string, error)

	// RemoveAll deletes the workspace.
	RemoveAll() error
}

// Discoverer resolves an existing resource from a single-node description.
type Discoverer interface {
	// Discover evaluates template against the environment. inputs may be nil.
	Discover(ctx context.Context, template string, networks NetworkClient, inputs map[string]interface{}) (*DiscoveryResult, error)
}

// Admission decides whether a lifecycle request may proceed. A rejection is
// returned as a policy denied error.
type Admission interface {
	Admit(ctx context.Context, op Operation, req *LifecycleRequest) error
}

// Observer is notified of lifecycle outcomes. Implementations must not block.
type Observer interface {
	// LifecycleExecuted is called once per ExecuteLifecycle. resp is nil when
	// err is set.
	LifecycleExecuted(ctx context.Context, op Operation, req *LifecycleRequest, resp *ExecuteResponse, err error)

	// ExecutionPolled is called once per GetLifecycleExecution.
	ExecutionPolled(ctx context.Context, requestID string, exec *LifecycleExecution, err error)

	// ReferenceFound is called once per FindReference.
	ReferenceFound(ctx context.Context, instanceName string, resp *FindReferenceResponse, err error)
}
