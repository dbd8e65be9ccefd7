package engine

import (
	"context"
	"path"
	"strings"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Property, input and directory names with fixed meaning.
const (
	TemplateTypeProperty = "template-type"
	StackIDProperty      = "stack_id"
	ResourceIDProperty   = "resourceId"
	ResourceNameProperty = "resourceName"
	InstanceNameInput    = "instance_name"
	HeatFilesDirectory   = "files"
)

var (
	heatTemplateFiles     = []string{"heat.yaml", "heat.yml"}
	toscaTemplateFiles    = []string{"tosca.yaml", "tosca.yml"}
	discoverTemplateFiles = []string{"discover.yaml", "discover.yml"}
)

// OrchestratorConfig holds the lifecycle settings of an Orchestrator.
type OrchestratorConfig struct {
	// KeepFiles leaves driver files in place after each call.
	KeepFiles bool

	// Status configures the Adopt status handling.
	Status StatusMapperConfig
}

// Orchestrator drives Create, Adopt and Delete against a stack engine and
// answers status polls. It holds no per-request state; every call opens and
// closes its own environment.
type Orchestrator struct {
	environments EnvironmentFactory
	translator   TemplateTranslator
	discoverer   Discoverer
	mapper       *StatusMapper
	admission    Admission
	observer     Observer
	keepFiles    bool
	logger       zerolog.Logger
	tracer       trace.Tracer
}

// OrchestratorOption customizes an Orchestrator.
type OrchestratorOption func(*Orchestrator)

// WithAdmission installs an admission check run before any external call.
func WithAdmission(a Admission) OrchestratorOption {
	return func(o *Orchestrator) {
		o.admission = a
	}
}

// WithObserver installs an observer of lifecycle outcomes.
func WithObserver(obs Observer) OrchestratorOption {
	return func(o *Orchestrator) {
		o.observer = obs
	}
}

// NewOrchestrator creates a new lifecycle orchestrator.
func NewOrchestrator(environments EnvironmentFactory, translator TemplateTranslator, discoverer Discoverer,
	cfg OrchestratorConfig, logger zerolog.Logger, opts ...OrchestratorOption) *Orchestrator {
	o := &Orchestrator{
		environments: environments,
		translator:   translator,
		discoverer:   discoverer,
		mapper:       NewStatusMapper(cfg.Status),
		keepFiles:    cfg.KeepFiles,
		logger:       logger.With().Str("component", "orchestrator").Logger(),
		tracer:       otel.Tracer("github.com/openfroyo/heatdriver/pkg/engine"),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// ExecuteLifecycle starts a lifecycle operation and returns the request id to
// poll with. The driver files are removed before returning unless KeepFiles
// is set.
func (o *Orchestrator) ExecuteLifecycle(ctx context.Context, req *LifecycleRequest) (resp *ExecuteResponse, err error) {
	ctx, span := o.tracer.Start(ctx, "lifecycle.execute",
		trace.WithAttributes(attribute.String("lifecycle.name", req.Lifecycle)))
	defer func() { endSpan(span, err) }()
	defer o.removeFiles(req.Files)

	op, err := ParseOperation(req.Lifecycle)
	if o.observer != nil {
		defer func() { o.observer.LifecycleExecuted(ctx, op, req, resp, err) }()
	}
	if err != nil {
		return nil, err
	}

	if o.admission != nil {
		if err := o.admission.Admit(ctx, op, req); err != nil {
			return nil, err
		}
	}

	env, err := o.environments.Open(ctx, req.Location)
	if err != nil {
		return nil, err
	}
	defer o.closeEnvironment(env)

	switch op {
	case OperationCreate:
		resp, err = o.create(ctx, env, req)
	case OperationAdopt:
		resp, err = o.adopt(ctx, env, req)
	case OperationDelete:
		resp, err = o.delete(ctx, env, req)
	}
	if err != nil {
		return nil, err
	}

	span.SetAttributes(attribute.String("request.id", resp.RequestID))
	o.logger.Info().
		Str("operation", op.String()).
		Str("request_id", resp.RequestID).
		Msg("Lifecycle request accepted")
	return resp, nil
}

func (o *Orchestrator) create(ctx context.Context, env Environment, req *LifecycleRequest) (*ExecuteResponse, error) {
	stacks, err := env.Stacks(ctx)
	if err != nil {
		return nil, err
	}

	stackID, err := o.existingStack(ctx, stacks, req.ResourceProperties)
	if err != nil {
		return nil, err
	}

	if stackID == "" {
		template, files, err := o.heatTemplate(ctx, req)
		if err != nil {
			return nil, err
		}

		merged := MergeProperties(req.ResourceProperties, req.SystemProperties)
		inputs, err := env.InputFilter().FilterUsedProperties(template, merged)
		if err != nil {
			return nil, err
		}

		var name string
		if req.SystemProperties.Has(ResourceIDProperty) && req.SystemProperties.Has(ResourceNameProperty) {
			name = StackName(req.SystemProperties.GetString(ResourceIDProperty), req.SystemProperties.GetString(ResourceNameProperty))
		} else {
			name = RandomStackName()
		}

		stackID, err = stacks.CreateStack(ctx, name, template, inputs, files)
		if err != nil {
			return nil, err
		}
		o.logger.Debug().Str("stack_id", stackID).Str("stack_name", name).Msg("Created stack")
	}

	return &ExecuteResponse{
		RequestID:          ComposeRequestID(OperationCreate, stackID),
		AssociatedTopology: NewStackTopology(stackID),
	}, nil
}

// existingStack returns the stack named by the stack_id resource property,
// verifying it exists. An empty or "0" value yields no stack.
func (o *Orchestrator) existingStack(ctx context.Context, stacks StackClient, props PropValueMap) (string, error) {
	id := strings.TrimSpace(props.GetString(StackIDProperty))
	if id == "" || id == "0" {
		return "", nil
	}
	if _, err := stacks.GetStack(ctx, id); err != nil {
		return "", err
	}
	o.logger.Debug().Str("stack_id", id).Msg("Reusing existing stack")
	return id, nil
}

// heatTemplate returns the Heat template to create and any auxiliary files.
func (o *Orchestrator) heatTemplate(ctx context.Context, req *LifecycleRequest) (string, map[string]string, error) {
	kind, err := o.templateKind(req)
	if err != nil {
		return "", nil, err
	}

	if kind == TemplateKindTOSCA {
		name, err := requireTemplate(req.Files, toscaTemplateFiles)
		if err != nil {
			return "", nil, err
		}
		source, err := req.Files.ReadFile(name)
		if err != nil {
			return "", nil, err
		}
		template, err := o.translator.Translate(ctx, string(source), req.Files.FilePath(name))
		if err != nil {
			return "", nil, asInvalidTemplate(err)
		}
		o.logger.Debug().Str("tosca", string(source)).Str("heat", template).Msg("Translated template")
		return template, nil, nil
	}

	name, err := requireTemplate(req.Files, heatTemplateFiles)
	if err != nil {
		return "", nil, err
	}
	source, err := req.Files.ReadFile(name)
	if err != nil {
		return "", nil, err
	}

	var files map[string]string
	filesDir := path.Join(path.Dir(name), HeatFilesDirectory)
	if req.Files.HasDirectory(filesDir) {
		files, err = req.Files.ReadTree(filesDir)
		if err != nil {
			return "", nil, err
		}
	}
	return string(source), files, nil
}

// templateKind returns the declared template kind, or infers it from the
// driver files present. Heat wins over TOSCA and is the default.
func (o *Orchestrator) templateKind(req *LifecycleRequest) (TemplateKind, error) {
	if declared := req.RequestProperties.GetString(TemplateTypeProperty); declared != "" {
		return ParseTemplateKind(declared)
	}
	if findTemplate(req.Files, heatTemplateFiles) != "" {
		return TemplateKindHeat, nil
	}
	if findTemplate(req.Files, toscaTemplateFiles) != "" {
		return TemplateKindTOSCA, nil
	}
	return TemplateKindHeat, nil
}

func (o *Orchestrator) adopt(ctx context.Context, env Environment, req *LifecycleRequest) (*ExecuteResponse, error) {
	if len(req.AssociatedTopology) != 1 {
		return nil, NewInvalidRequestError("You must supply exactly one stack_id to adopt in associated_topology")
	}
	var stackID string
	for _, entry := range req.AssociatedTopology {
		stackID = entry.ID
	}

	stacks, err := env.Stacks(ctx)
	if err != nil {
		return nil, err
	}
	stack, err := stacks.GetStack(ctx, stackID)
	if err != nil {
		return nil, err
	}
	if stack.Status == StackDeleteComplete || stack.Status == StackDeleteInProgress {
		return nil, NewInvalidRequestError("The stack '%s' has been deleted", stackID)
	}

	o.logger.Debug().Str("stack_id", stackID).Str("stack_status", stack.Status).Msg("Adopting stack")
	return &ExecuteResponse{
		RequestID:          ComposeRequestID(OperationAdopt, stackID),
		AssociatedTopology: NewStackTopology(stackID),
	}, nil
}

func (o *Orchestrator) delete(ctx context.Context, env Environment, req *LifecycleRequest) (*ExecuteResponse, error) {
	entry, ok := req.AssociatedTopology.Get(StackTopologyName)
	if !ok {
		o.logger.Debug().Msg("No stack associated with resource, nothing to delete")
		return &ExecuteResponse{RequestID: ComposeRequestID(OperationDelete, NoStackID)}, nil
	}

	stacks, err := env.Stacks(ctx)
	if err != nil {
		return nil, err
	}
	if err := stacks.DeleteStack(ctx, entry.ID); err != nil {
		if !IsNotFound(err) {
			return nil, err
		}
		o.logger.Debug().Str("stack_id", entry.ID).Msg("Stack already deleted")
	}
	return &ExecuteResponse{RequestID: ComposeRequestID(OperationDelete, entry.ID)}, nil
}

// GetLifecycleExecution reports the state of a previously issued request.
// It is safe to call any number of times.
func (o *Orchestrator) GetLifecycleExecution(ctx context.Context, requestID string, location DeploymentLocation) (exec *LifecycleExecution, err error) {
	ctx, span := o.tracer.Start(ctx, "lifecycle.poll",
		trace.WithAttributes(attribute.String("request.id", requestID)))
	defer func() { endSpan(span, err) }()
	if o.observer != nil {
		defer func() { o.observer.ExecutionPolled(ctx, requestID, exec, err) }()
	}

	rid, err := ParseRequestID(requestID)
	if err != nil {
		return nil, err
	}
	op, err := ParseOperation(rid.Operation)
	if err != nil {
		return nil, NewInvalidRequestError("request_id is not valid: %s", requestID)
	}

	if o.mapper.SkipsStatusCheck(op) {
		o.logger.Debug().Str("request_id", requestID).Msg("Adopt status check skipped")
		return &LifecycleExecution{RequestID: requestID, Status: ExecutionComplete}, nil
	}

	env, err := o.environments.Open(ctx, location)
	if err != nil {
		return nil, err
	}
	defer o.closeEnvironment(env)

	stacks, err := env.Stacks(ctx)
	if err != nil {
		return nil, err
	}
	stack, err := stacks.GetStack(ctx, rid.StackID)
	if err != nil {
		if op == OperationDelete && IsNotFound(err) {
			o.logger.Debug().Str("stack_id", rid.StackID).Msg("Stack not found on delete request, reporting complete")
			return &LifecycleExecution{RequestID: requestID, Status: ExecutionComplete}, nil
		}
		return nil, err
	}

	status, err := o.mapper.Map(op, stack.Status)
	if err != nil {
		if IsUnexpectedState(err) {
			return nil, &DriverError{
				Kind: ErrorKindUnexpectedState,
				Message: "Cannot determine status for request '" + requestID + "' as the current Stack status is '" +
					stack.Status + "' which is not a valid value for the expected transition",
				Err: err,
			}
		}
		return nil, err
	}
	o.logger.Debug().
		Str("stack_id", rid.StackID).
		Str("stack_status", stack.Status).
		Str("status", string(status)).
		Msg("Mapped stack status")

	exec = &LifecycleExecution{RequestID: requestID, Status: status}
	if status == ExecutionFailed {
		exec.FailureDetails = &FailureDetails{
			FailureCode: FailureCodeInfrastructure,
			Description: stack.StatusReason,
		}
	}
	if op == OperationCreate || op == OperationAdopt {
		exec.Outputs = StackOutputs(stack.Outputs)
	}
	span.SetAttributes(attribute.String("execution.status", string(status)))
	return exec, nil
}

// FindReference locates an existing resource described by the discover
// template in the driver files. Nothing found yields an empty response.
func (o *Orchestrator) FindReference(ctx context.Context, instanceName string, files DriverFiles, location DeploymentLocation) (resp *FindReferenceResponse, err error) {
	ctx, span := o.tracer.Start(ctx, "reference.find",
		trace.WithAttributes(attribute.String("instance.name", instanceName)))
	defer func() { endSpan(span, err) }()
	defer o.removeFiles(files)
	if o.observer != nil {
		defer func() { o.observer.ReferenceFound(ctx, instanceName, resp, err) }()
	}

	name, err := requireTemplate(files, discoverTemplateFiles)
	if err != nil {
		return nil, err
	}
	template, err := files.ReadFile(name)
	if err != nil {
		return nil, err
	}

	env, err := o.environments.Open(ctx, location)
	if err != nil {
		return nil, err
	}
	defer o.closeEnvironment(env)

	networks, err := env.Networks(ctx)
	if err != nil {
		return nil, err
	}

	result, err := o.discoverer.Discover(ctx, string(template), networks, map[string]interface{}{
		InstanceNameInput: instanceName,
	})
	if err != nil {
		if IsNotDiscovered(err) {
			o.logger.Debug().Str("instance_name", instanceName).Err(err).Msg("Reference not discovered")
			return &FindReferenceResponse{}, nil
		}
		return nil, err
	}

	topology := AssociatedTopology{}
	topology.Add(instanceName, result.ID, ReferenceTopologyType)
	return &FindReferenceResponse{
		Result: &FindReferenceResult{AssociatedTopology: topology, Outputs: result.Outputs},
	}, nil
}

func (o *Orchestrator) removeFiles(files DriverFiles) {
	if files == nil || o.keepFiles {
		return
	}
	o.logger.Debug().Str("path", files.Root()).Msg("Removing driver files")
	if err := files.RemoveAll(); err != nil {
		o.logger.Error().Err(err).Str("path", files.Root()).Msg("Failed to remove driver files")
	}
}

func (o *Orchestrator) closeEnvironment(env Environment) {
	if err := env.Close(); err != nil {
		o.logger.Warn().Err(err).Msg("Failed to close environment")
	}
}

// findTemplate returns the first of names present in files.
func findTemplate(files DriverFiles, names []string) string {
	if files == nil {
		return ""
	}
	for _, name := range names {
		if files.HasFile(name) {
			return name
		}
	}
	return ""
}

func requireTemplate(files DriverFiles, names []string) (string, error) {
	if name := findTemplate(files, names); name != "" {
		return name, nil
	}
	quoted := make([]string, len(names))
	for i, n := range names {
		quoted[i] = "'" + n + "'"
	}
	return "", NewDriverFilesError("Missing %s file", strings.Join(quoted, " or "))
}

// asInvalidTemplate reports translator failures as invalid templates.
func asInvalidTemplate(err error) error {
	if k := KindOf(err); k != "" && k != ErrorKindTranslation {
		return err
	}
	return &DriverError{Kind: ErrorKindInvalidTemplate, Message: err.Error(), Err: err}
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}
