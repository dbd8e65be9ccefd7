package engine

import (
	"context"
	"errors"
	"sort"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/rs/zerolog"
)

// Mock implementations for testing

type createCall struct {
	name     string
	template string
	inputs   map[string]interface{}
	files    map[string]string
}

type mockStackClient struct {
	stacks  map[string]*StackHandle
	creates []createCall
	deletes []string
	gets    []string
	getErr  error
}

func newMockStackClient() *mockStackClient {
	return &mockStackClient{stacks: make(map[string]*StackHandle)}
}

func (m *mockStackClient) CreateStack(ctx context.Context, name, template string, inputs map[string]interface{}, files map[string]string) (string, error) {
	m.creates = append(m.creates, createCall{name: name, template: template, inputs: inputs, files: files})
	id := "created-" + name
	m.stacks[id] = &StackHandle{ID: id, Name: name, Status: StackCreateInProgress}
	return id, nil
}

func (m *mockStackClient) GetStack(ctx context.Context, id string) (*StackHandle, error) {
	m.gets = append(m.gets, id)
	if m.getErr != nil {
		return nil, m.getErr
	}
	if s, ok := m.stacks[id]; ok {
		return s, nil
	}
	return nil, NewNotFoundError(nil, "Stack with ID '%s' not found", id)
}

func (m *mockStackClient) DeleteStack(ctx context.Context, id string) error {
	m.deletes = append(m.deletes, id)
	if _, ok := m.stacks[id]; !ok {
		return NewNotFoundError(nil, "Stack with ID '%s' not found", id)
	}
	m.stacks[id].Status = StackDeleteInProgress
	return nil
}

func (m *mockStackClient) ListStacks(ctx context.Context) ([]StackHandle, error) {
	out := make([]StackHandle, 0, len(m.stacks))
	for _, s := range m.stacks {
		out = append(out, *s)
	}
	return out, nil
}

type mockInputFilter struct {
	templates []string
}

// FilterUsedProperties keeps every property whose name appears in the template text.
func (m *mockInputFilter) FilterUsedProperties(template string, properties PropValueMap) (map[string]interface{}, error) {
	m.templates = append(m.templates, template)
	out := make(map[string]interface{})
	for k, v := range properties {
		if strings.Contains(template, k+":") {
			out[k] = v.Value
		}
	}
	return out, nil
}

type mockEnvironment struct {
	stacks   *mockStackClient
	networks NetworkClient
	filter   *mockInputFilter
	closed   int
}

func (m *mockEnvironment) Stacks(ctx context.Context) (StackClient, error) { return m.stacks, nil }
func (m *mockEnvironment) Networks(ctx context.Context) (NetworkClient, error) {
	return m.networks, nil
}
func (m *mockEnvironment) InputFilter() InputFilter { return m.filter }
func (m *mockEnvironment) Close() error {
	m.closed++
	return nil
}

type mockEnvironmentFactory struct {
	env     *mockEnvironment
	opened  int
	openErr error
}

func (m *mockEnvironmentFactory) Open(ctx context.Context, location DeploymentLocation) (Environment, error) {
	if m.openErr != nil {
		return nil, m.openErr
	}
	m.opened++
	return m.env, nil
}

type mockTranslator struct {
	calls  int
	result string
	err    error
}

func (m *mockTranslator) Translate(ctx context.Context, template, sourcePath string) (string, error) {
	m.calls++
	if m.err != nil {
		return "", m.err
	}
	return m.result, nil
}

type mockDriverFiles struct {
	files   map[string]string
	removed bool
}

func (m *mockDriverFiles) Root() string { return "/tmp/driver-files" }
func (m *mockDriverFiles) HasFile(name string) bool {
	_, ok := m.files[name]
	return ok
}
func (m *mockDriverFiles) HasDirectory(name string) bool {
	for k := range m.files {
		if strings.HasPrefix(k, name+"/") {
			return true
		}
	}
	return false
}
func (m *mockDriverFiles) FilePath(name string) string { return m.Root() + "/" + name }
func (m *mockDriverFiles) ReadFile(name string) ([]byte, error) {
	content, ok := m.files[name]
	if !ok {
		return nil, errors.New("no such file: " + name)
	}
	return []byte(content), nil
}
func (m *mockDriverFiles) ReadTree(dir string) (map[string]string, error) {
	out := make(map[string]string)
	for k, v := range m.files {
		if strings.HasPrefix(k, dir+"/") {
			out[strings.TrimPrefix(k, dir+"/")] = v
		}
	}
	return out, nil
}
func (m *mockDriverFiles) RemoveAll() error {
	m.removed = true
	return nil
}

type mockDiscoverer struct {
	result *DiscoveryResult
	err    error
	inputs map[string]interface{}
}

func (m *mockDiscoverer) Discover(ctx context.Context, template string, networks NetworkClient, inputs map[string]interface{}) (*DiscoveryResult, error) {
	m.inputs = inputs
	return m.result, m.err
}

type mockAdmission struct {
	err error
	ops []Operation
}

func (m *mockAdmission) Admit(ctx context.Context, op Operation, req *LifecycleRequest) error {
	m.ops = append(m.ops, op)
	return m.err
}

type orchestratorFixture struct {
	orchestrator *Orchestrator
	factory      *mockEnvironmentFactory
	env          *mockEnvironment
	stacks       *mockStackClient
	translator   *mockTranslator
	discoverer   *mockDiscoverer
}

func newFixture(cfg OrchestratorConfig, opts ...OrchestratorOption) *orchestratorFixture {
	stacks := newMockStackClient()
	env := &mockEnvironment{stacks: stacks, filter: &mockInputFilter{}}
	factory := &mockEnvironmentFactory{env: env}
	translator := &mockTranslator{result: "heat_template_version: 2016-10-14\nparameters:\n  system_resourceId:\n    type: string\n"}
	discoverer := &mockDiscoverer{}
	return &orchestratorFixture{
		orchestrator: NewOrchestrator(factory, translator, discoverer, cfg, zerolog.New(nil).Level(zerolog.Disabled), opts...),
		factory:      factory,
		env:          env,
		stacks:       stacks,
		translator:   translator,
		discoverer:   discoverer,
	}
}

const heatTemplate = `heat_template_version: 2016-10-14
parameters:
  propA:
    type: string
  system_resourceName:
    type: string
`

func createRequest(files *mockDriverFiles) *LifecycleRequest {
	return &LifecycleRequest{
		Lifecycle:          "Create",
		ResourceProperties: NewPropValueMap(map[string]interface{}{"propA": "valueA", "propB": "valueB"}),
		SystemProperties:   NewPropValueMap(map[string]interface{}{"resourceId": "123", "resourceName": "TestResource"}),
		RequestProperties:  PropValueMap{},
		AssociatedTopology: AssociatedTopology{},
		Files:              files,
	}
}

func TestExecuteLifecycle_CreateHeat(t *testing.T) {
	f := newFixture(OrchestratorConfig{})
	files := &mockDriverFiles{files: map[string]string{
		"heat.yaml":           heatTemplate,
		"files/script.sh":     "echo hi",
		"files/nested/a.yaml": "a: 1",
	}}

	resp, err := f.orchestrator.ExecuteLifecycle(context.Background(), createRequest(files))
	if err != nil {
		t.Fatalf("ExecuteLifecycle() error = %v", err)
	}

	if len(f.stacks.creates) != 1 {
		t.Fatalf("expected 1 create call, got %d", len(f.stacks.creates))
	}
	call := f.stacks.creates[0]
	if call.name != "TestResource.123" {
		t.Errorf("stack name = %q, want TestResource.123", call.name)
	}
	if call.template != heatTemplate {
		t.Errorf("template = %q", call.template)
	}
	wantInputs := map[string]interface{}{"propA": "valueA", "system_resourceName": "TestResource"}
	if diff := cmp.Diff(wantInputs, call.inputs); diff != "" {
		t.Errorf("inputs mismatch (-want +got):\n%s", diff)
	}
	wantFiles := map[string]string{"script.sh": "echo hi", "nested/a.yaml": "a: 1"}
	if diff := cmp.Diff(wantFiles, call.files); diff != "" {
		t.Errorf("files mismatch (-want +got):\n%s", diff)
	}

	rid, err := ParseRequestID(resp.RequestID)
	if err != nil {
		t.Fatalf("ParseRequestID() error = %v", err)
	}
	if rid.Operation != "Create" || rid.StackID != "created-TestResource.123" {
		t.Errorf("request id = %+v", rid)
	}
	wantTopology := AssociatedTopology{StackTopologyName: {ID: "created-TestResource.123", Type: StackTopologyType}}
	if diff := cmp.Diff(wantTopology, resp.AssociatedTopology); diff != "" {
		t.Errorf("topology mismatch (-want +got):\n%s", diff)
	}
	if f.translator.calls != 0 {
		t.Error("translator should not be called for Heat templates")
	}
	if !files.removed {
		t.Error("driver files were not removed")
	}
	if f.env.closed != 1 {
		t.Errorf("environment closed %d times, want 1", f.env.closed)
	}
}

func TestExecuteLifecycle_CreatePrefersHeatOverTOSCA(t *testing.T) {
	f := newFixture(OrchestratorConfig{})
	files := &mockDriverFiles{files: map[string]string{
		"heat.yml":  heatTemplate,
		"tosca.yml": "tosca_definitions_version: tosca_simple_yaml_1_0\n",
	}}

	if _, err := f.orchestrator.ExecuteLifecycle(context.Background(), createRequest(files)); err != nil {
		t.Fatalf("ExecuteLifecycle() error = %v", err)
	}
	if f.translator.calls != 0 {
		t.Errorf("translator called %d times, want 0", f.translator.calls)
	}
	if f.stacks.creates[0].template != heatTemplate {
		t.Error("heat template was not used")
	}
}

func TestExecuteLifecycle_CreateTOSCA(t *testing.T) {
	f := newFixture(OrchestratorConfig{})
	files := &mockDriverFiles{files: map[string]string{"tosca.yaml": "tosca_definitions_version: tosca_simple_yaml_1_0\n"}}

	if _, err := f.orchestrator.ExecuteLifecycle(context.Background(), createRequest(files)); err != nil {
		t.Fatalf("ExecuteLifecycle() error = %v", err)
	}
	if f.translator.calls != 1 {
		t.Fatalf("translator called %d times, want 1", f.translator.calls)
	}
	call := f.stacks.creates[0]
	if call.template != f.translator.result {
		t.Errorf("created with %q, want translated template", call.template)
	}
	if diff := cmp.Diff(map[string]interface{}{"system_resourceId": "123"}, call.inputs); diff != "" {
		t.Errorf("inputs mismatch (-want +got):\n%s", diff)
	}
	if call.files != nil {
		t.Errorf("files = %v, want nil", call.files)
	}
}

func TestExecuteLifecycle_CreateDeclaredTemplateType(t *testing.T) {
	f := newFixture(OrchestratorConfig{})
	files := &mockDriverFiles{files: map[string]string{
		"heat.yaml":  heatTemplate,
		"tosca.yaml": "tosca_definitions_version: tosca_simple_yaml_1_0\n",
	}}
	req := createRequest(files)
	req.RequestProperties = NewPropValueMap(map[string]interface{}{"template-type": "tosca"})

	if _, err := f.orchestrator.ExecuteLifecycle(context.Background(), req); err != nil {
		t.Fatalf("ExecuteLifecycle() error = %v", err)
	}
	if f.translator.calls != 1 {
		t.Errorf("translator called %d times, want 1", f.translator.calls)
	}
}

func TestExecuteLifecycle_CreateInvalidTemplateType(t *testing.T) {
	f := newFixture(OrchestratorConfig{})
	files := &mockDriverFiles{files: map[string]string{"heat.yaml": heatTemplate}}
	req := createRequest(files)
	req.RequestProperties = NewPropValueMap(map[string]interface{}{"template-type": "YAML"})

	_, err := f.orchestrator.ExecuteLifecycle(context.Background(), req)
	if KindOf(err) != ErrorKindDriverFiles {
		t.Fatalf("error = %v, want driver files error", err)
	}
	if len(f.stacks.creates) != 0 {
		t.Error("stack should not be created")
	}
	if !files.removed {
		t.Error("driver files must be removed on failure")
	}
	if f.env.closed != 1 {
		t.Error("environment must be closed on failure")
	}
}

func TestExecuteLifecycle_CreateMissingTemplate(t *testing.T) {
	tests := []struct {
		name         string
		templateType string
		want         string
	}{
		{"defaults to heat", "", "Missing 'heat.yaml' or 'heat.yml' file"},
		{"declared tosca", "TOSCA", "Missing 'tosca.yaml' or 'tosca.yml' file"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(OrchestratorConfig{})
			req := createRequest(&mockDriverFiles{files: map[string]string{}})
			if tt.templateType != "" {
				req.RequestProperties = NewPropValueMap(map[string]interface{}{"template-type": tt.templateType})
			}

			_, err := f.orchestrator.ExecuteLifecycle(context.Background(), req)
			if err == nil || err.Error() != tt.want {
				t.Errorf("error = %v, want %q", err, tt.want)
			}
		})
	}
}

func TestExecuteLifecycle_CreateTranslationFailure(t *testing.T) {
	f := newFixture(OrchestratorConfig{})
	f.translator.err = NewTranslationError(nil, "node type 'x' is not supported")
	files := &mockDriverFiles{files: map[string]string{"tosca.yaml": "bad"}}

	_, err := f.orchestrator.ExecuteLifecycle(context.Background(), createRequest(files))
	if !IsInvalidTemplate(err) {
		t.Fatalf("error = %v, want invalid template", err)
	}
	if err.Error() != "node type 'x' is not supported" {
		t.Errorf("error message = %q", err.Error())
	}
}

func TestExecuteLifecycle_CreateReusesStackID(t *testing.T) {
	f := newFixture(OrchestratorConfig{})
	f.stacks.stacks["abc"] = &StackHandle{ID: "abc", Status: StackCreateComplete}
	req := createRequest(&mockDriverFiles{files: map[string]string{"tosca.yaml": "x"}})
	req.ResourceProperties = NewPropValueMap(map[string]interface{}{"stack_id": " abc "})

	resp, err := f.orchestrator.ExecuteLifecycle(context.Background(), req)
	if err != nil {
		t.Fatalf("ExecuteLifecycle() error = %v", err)
	}
	if f.translator.calls != 0 {
		t.Error("translator must not be invoked when reusing a stack")
	}
	if len(f.stacks.creates) != 0 {
		t.Error("no stack should be created")
	}
	rid, _ := ParseRequestID(resp.RequestID)
	if rid.StackID != "abc" {
		t.Errorf("stack id = %q, want abc", rid.StackID)
	}
	if e, _ := resp.AssociatedTopology.Get(StackTopologyName); e.ID != "abc" {
		t.Errorf("topology entry = %+v", e)
	}
}

func TestExecuteLifecycle_CreateStackIDNotFound(t *testing.T) {
	f := newFixture(OrchestratorConfig{})
	req := createRequest(&mockDriverFiles{files: map[string]string{"heat.yaml": heatTemplate}})
	req.ResourceProperties = NewPropValueMap(map[string]interface{}{"stack_id": "missing"})

	_, err := f.orchestrator.ExecuteLifecycle(context.Background(), req)
	if !IsNotFound(err) {
		t.Fatalf("error = %v, want not found", err)
	}
}

func TestExecuteLifecycle_CreateIgnoresBlankStackID(t *testing.T) {
	for _, id := range []string{"", "   ", "0", " 0 "} {
		f := newFixture(OrchestratorConfig{})
		req := createRequest(&mockDriverFiles{files: map[string]string{"heat.yaml": heatTemplate}})
		req.ResourceProperties = NewPropValueMap(map[string]interface{}{"stack_id": id})

		if _, err := f.orchestrator.ExecuteLifecycle(context.Background(), req); err != nil {
			t.Fatalf("stack_id %q: error = %v", id, err)
		}
		if len(f.stacks.gets) != 0 {
			t.Errorf("stack_id %q: unexpected lookup %v", id, f.stacks.gets)
		}
		if len(f.stacks.creates) != 1 {
			t.Errorf("stack_id %q: expected a create call", id)
		}
	}
}

func TestExecuteLifecycle_CreateRandomNameWithoutIdentity(t *testing.T) {
	f := newFixture(OrchestratorConfig{})
	req := createRequest(&mockDriverFiles{files: map[string]string{"heat.yaml": heatTemplate}})
	req.SystemProperties = NewPropValueMap(map[string]interface{}{"resourceId": "123"})

	if _, err := f.orchestrator.ExecuteLifecycle(context.Background(), req); err != nil {
		t.Fatalf("ExecuteLifecycle() error = %v", err)
	}
	name := f.stacks.creates[0].name
	if !strings.HasPrefix(name, "s") || len(name) != 37 {
		t.Errorf("random stack name = %q", name)
	}
}

func TestExecuteLifecycle_KeepFiles(t *testing.T) {
	f := newFixture(OrchestratorConfig{KeepFiles: true})
	files := &mockDriverFiles{files: map[string]string{"heat.yaml": heatTemplate}}

	if _, err := f.orchestrator.ExecuteLifecycle(context.Background(), createRequest(files)); err != nil {
		t.Fatalf("ExecuteLifecycle() error = %v", err)
	}
	if files.removed {
		t.Error("driver files removed despite KeepFiles")
	}
}

func TestExecuteLifecycle_UnsupportedOperation(t *testing.T) {
	f := newFixture(OrchestratorConfig{})
	files := &mockDriverFiles{files: map[string]string{}}
	req := createRequest(files)
	req.Lifecycle = "Start"

	_, err := f.orchestrator.ExecuteLifecycle(context.Background(), req)
	if !IsInvalidRequest(err) {
		t.Fatalf("error = %v, want invalid request", err)
	}
	if f.factory.opened != 0 {
		t.Error("no environment should be opened for an unsupported operation")
	}
	if !files.removed {
		t.Error("driver files must be removed")
	}
}

func TestExecuteLifecycle_OperationCaseInsensitive(t *testing.T) {
	f := newFixture(OrchestratorConfig{})
	req := createRequest(&mockDriverFiles{files: map[string]string{"heat.yaml": heatTemplate}})
	req.Lifecycle = "cReAtE"

	resp, err := f.orchestrator.ExecuteLifecycle(context.Background(), req)
	if err != nil {
		t.Fatalf("ExecuteLifecycle() error = %v", err)
	}
	if !strings.HasPrefix(resp.RequestID, "Create::") {
		t.Errorf("request id = %q", resp.RequestID)
	}
}

func TestExecuteLifecycle_Adopt(t *testing.T) {
	f := newFixture(OrchestratorConfig{})
	f.stacks.stacks["555"] = &StackHandle{ID: "555", Status: StackCreateComplete}
	req := &LifecycleRequest{
		Lifecycle:          "Adopt",
		AssociatedTopology: AssociatedTopology{"anything": {ID: "555", Type: "Openstack"}},
	}

	resp, err := f.orchestrator.ExecuteLifecycle(context.Background(), req)
	if err != nil {
		t.Fatalf("ExecuteLifecycle() error = %v", err)
	}
	rid, _ := ParseRequestID(resp.RequestID)
	if rid.Operation != "Adopt" || rid.StackID != "555" {
		t.Errorf("request id = %+v", rid)
	}
	if e, _ := resp.AssociatedTopology.Get(StackTopologyName); e.ID != "555" {
		t.Errorf("topology = %v", resp.AssociatedTopology)
	}
	if len(f.stacks.creates) != 0 || len(f.stacks.deletes) != 0 {
		t.Error("adopt must not mutate stacks")
	}
}

func TestExecuteLifecycle_AdoptErrors(t *testing.T) {
	tests := []struct {
		name     string
		topology AssociatedTopology
		status   string
		check    func(error) bool
		message  string
	}{
		{
			name:     "empty topology",
			topology: AssociatedTopology{},
			check:    IsInvalidRequest,
			message:  "You must supply exactly one stack_id to adopt in associated_topology",
		},
		{
			name: "two entries",
			topology: AssociatedTopology{
				"a": {ID: "555", Type: "Openstack"},
				"b": {ID: "556", Type: "Openstack"},
			},
			check:   IsInvalidRequest,
			message: "You must supply exactly one stack_id to adopt in associated_topology",
		},
		{
			name:     "deleted stack",
			topology: AssociatedTopology{"a": {ID: "555", Type: "Openstack"}},
			status:   StackDeleteComplete,
			check:    IsInvalidRequest,
			message:  "The stack '555' has been deleted",
		},
		{
			name:     "deleting stack",
			topology: AssociatedTopology{"a": {ID: "555", Type: "Openstack"}},
			status:   StackDeleteInProgress,
			check:    IsInvalidRequest,
			message:  "The stack '555' has been deleted",
		},
		{
			name:     "missing stack",
			topology: AssociatedTopology{"a": {ID: "999", Type: "Openstack"}},
			status:   StackCreateComplete,
			check:    IsNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(OrchestratorConfig{})
			if tt.status != "" {
				f.stacks.stacks["555"] = &StackHandle{ID: "555", Status: tt.status}
			}
			_, err := f.orchestrator.ExecuteLifecycle(context.Background(), &LifecycleRequest{
				Lifecycle:          "Adopt",
				AssociatedTopology: tt.topology,
			})
			if !tt.check(err) {
				t.Fatalf("error = %v (kind %q)", err, KindOf(err))
			}
			if tt.message != "" && err.Error() != tt.message {
				t.Errorf("message = %q, want %q", err.Error(), tt.message)
			}
		})
	}
}

func TestExecuteLifecycle_Delete(t *testing.T) {
	f := newFixture(OrchestratorConfig{})
	f.stacks.stacks["abc"] = &StackHandle{ID: "abc", Status: StackCreateComplete}
	req := &LifecycleRequest{
		Lifecycle:          "Delete",
		AssociatedTopology: NewStackTopology("abc"),
	}

	resp, err := f.orchestrator.ExecuteLifecycle(context.Background(), req)
	if err != nil {
		t.Fatalf("ExecuteLifecycle() error = %v", err)
	}
	if diff := cmp.Diff([]string{"abc"}, f.stacks.deletes); diff != "" {
		t.Errorf("deletes mismatch (-want +got):\n%s", diff)
	}
	rid, _ := ParseRequestID(resp.RequestID)
	if rid.Operation != "Delete" || rid.StackID != "abc" {
		t.Errorf("request id = %+v", rid)
	}
}

func TestExecuteLifecycle_DeleteAlreadyGone(t *testing.T) {
	f := newFixture(OrchestratorConfig{})
	req := &LifecycleRequest{
		Lifecycle:          "Delete",
		AssociatedTopology: NewStackTopology("gone"),
	}

	resp, err := f.orchestrator.ExecuteLifecycle(context.Background(), req)
	if err != nil {
		t.Fatalf("ExecuteLifecycle() error = %v", err)
	}
	rid, _ := ParseRequestID(resp.RequestID)
	if rid.StackID != "gone" {
		t.Errorf("stack id = %q, want gone", rid.StackID)
	}

	exec, err := f.orchestrator.GetLifecycleExecution(context.Background(), resp.RequestID, DeploymentLocation{})
	if err != nil {
		t.Fatalf("GetLifecycleExecution() error = %v", err)
	}
	if exec.Status != ExecutionComplete {
		t.Errorf("status = %s, want COMPLETE", exec.Status)
	}
}

func TestExecuteLifecycle_DeleteWithoutStack(t *testing.T) {
	f := newFixture(OrchestratorConfig{})
	req := &LifecycleRequest{
		Lifecycle:          "Delete",
		AssociatedTopology: AssociatedTopology{"other": {ID: "x", Type: "Openstack"}},
	}

	resp, err := f.orchestrator.ExecuteLifecycle(context.Background(), req)
	if err != nil {
		t.Fatalf("ExecuteLifecycle() error = %v", err)
	}
	if len(f.stacks.deletes) != 0 {
		t.Errorf("unexpected delete calls: %v", f.stacks.deletes)
	}
	if !strings.HasPrefix(resp.RequestID, "Delete::no-stack::") {
		t.Errorf("request id = %q", resp.RequestID)
	}
}

func TestExecuteLifecycle_AdmissionDenied(t *testing.T) {
	admission := &mockAdmission{err: NewPolicyDeniedError("denied")}
	f := newFixture(OrchestratorConfig{}, WithAdmission(admission))
	req := &LifecycleRequest{Lifecycle: "delete", AssociatedTopology: NewStackTopology("abc")}

	_, err := f.orchestrator.ExecuteLifecycle(context.Background(), req)
	if KindOf(err) != ErrorKindPolicyDenied {
		t.Fatalf("error = %v, want policy denied", err)
	}
	if f.factory.opened != 0 || len(f.stacks.deletes) != 0 {
		t.Error("denied requests must not reach the environment")
	}
	if diff := cmp.Diff([]Operation{OperationDelete}, admission.ops); diff != "" {
		t.Errorf("admitted ops mismatch (-want +got):\n%s", diff)
	}
}

func TestExecuteLifecycle_EnvironmentOpenFailure(t *testing.T) {
	f := newFixture(OrchestratorConfig{})
	f.factory.openErr = errors.New("deployment location missing os_api_url")
	files := &mockDriverFiles{files: map[string]string{"heat.yaml": heatTemplate}}

	_, err := f.orchestrator.ExecuteLifecycle(context.Background(), createRequest(files))
	if err == nil {
		t.Fatal("expected error")
	}
	if !files.removed {
		t.Error("driver files must be removed when the environment cannot be opened")
	}
}

func TestGetLifecycleExecution(t *testing.T) {
	tests := []struct {
		name        string
		requestID   string
		stack       *StackHandle
		wantStatus  ExecutionStatus
		wantFailure *FailureDetails
		wantOutputs map[string]interface{}
	}{
		{
			name:       "create in progress",
			requestID:  "Create::1::x",
			stack:      &StackHandle{ID: "1", Status: StackCreateInProgress},
			wantStatus: ExecutionInProgress,
		},
		{
			name:      "create complete with outputs",
			requestID: "Create::1::x",
			stack: &StackHandle{ID: "1", Status: StackCreateComplete, Outputs: []StackOutput{
				{Key: "ip", Value: "10.0.0.1"},
			}},
			wantStatus:  ExecutionComplete,
			wantOutputs: map[string]interface{}{"ip": "10.0.0.1"},
		},
		{
			name:       "create complete with empty outputs",
			requestID:  "Create::1::x",
			stack:      &StackHandle{ID: "1", Status: StackCreateComplete, Outputs: []StackOutput{}},
			wantStatus: ExecutionComplete,
		},
		{
			name:        "create failed",
			requestID:   "Create::1::x",
			stack:       &StackHandle{ID: "1", Status: StackCreateFailed, StatusReason: "Quota exceeded"},
			wantStatus:  ExecutionFailed,
			wantFailure: &FailureDetails{FailureCode: FailureCodeInfrastructure, Description: "Quota exceeded"},
		},
		{
			name:        "adopt suspended",
			requestID:   "Adopt::555::x",
			stack:       &StackHandle{ID: "555", Status: StackSuspendComplete, StatusReason: "SUSPEND_COMPLETE"},
			wantStatus:  ExecutionFailed,
			wantFailure: &FailureDetails{FailureCode: FailureCodeInfrastructure, Description: "SUSPEND_COMPLETE"},
		},
		{
			name:      "adopt complete with outputs",
			requestID: "Adopt::555::x",
			stack: &StackHandle{ID: "555", Status: StackUpdateComplete, Outputs: []StackOutput{
				{Key: "k", Value: "v"},
			}},
			wantStatus:  ExecutionComplete,
			wantOutputs: map[string]interface{}{"k": "v"},
		},
		{
			name:      "delete ignores outputs",
			requestID: "Delete::1::x",
			stack: &StackHandle{ID: "1", Status: StackDeleteInProgress, Outputs: []StackOutput{
				{Key: "k", Value: "v"},
			}},
			wantStatus: ExecutionInProgress,
		},
		{
			name:        "delete failed",
			requestID:   "Delete::1::x",
			stack:       &StackHandle{ID: "1", Status: StackDeleteFailed},
			wantStatus:  ExecutionFailed,
			wantFailure: &FailureDetails{FailureCode: FailureCodeInfrastructure},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(OrchestratorConfig{})
			f.stacks.stacks[tt.stack.ID] = tt.stack

			exec, err := f.orchestrator.GetLifecycleExecution(context.Background(), tt.requestID, DeploymentLocation{Name: "test"})
			if err != nil {
				t.Fatalf("GetLifecycleExecution() error = %v", err)
			}
			want := &LifecycleExecution{
				RequestID:      tt.requestID,
				Status:         tt.wantStatus,
				FailureDetails: tt.wantFailure,
				Outputs:        tt.wantOutputs,
			}
			if diff := cmp.Diff(want, exec); diff != "" {
				t.Errorf("execution mismatch (-want +got):\n%s", diff)
			}
			if f.env.closed != 1 {
				t.Errorf("environment closed %d times, want 1", f.env.closed)
			}
		})
	}
}

func TestGetLifecycleExecution_NotFound(t *testing.T) {
	f := newFixture(OrchestratorConfig{})

	exec, err := f.orchestrator.GetLifecycleExecution(context.Background(), "Delete::no-stack::x", DeploymentLocation{})
	if err != nil {
		t.Fatalf("Delete poll error = %v", err)
	}
	if exec.Status != ExecutionComplete {
		t.Errorf("Delete poll status = %s, want COMPLETE", exec.Status)
	}

	for _, id := range []string{"Create::1::x", "Adopt::1::x"} {
		_, err := f.orchestrator.GetLifecycleExecution(context.Background(), id, DeploymentLocation{})
		if !IsNotFound(err) {
			t.Errorf("%s: error = %v, want not found", id, err)
		}
	}
}

func TestGetLifecycleExecution_Errors(t *testing.T) {
	f := newFixture(OrchestratorConfig{})
	f.stacks.stacks["1"] = &StackHandle{ID: "1", Status: "UPDATE_IN_PROGRESS"}

	_, err := f.orchestrator.GetLifecycleExecution(context.Background(), "Create::1::x", DeploymentLocation{})
	if !IsUnexpectedState(err) {
		t.Fatalf("error = %v, want unexpected state", err)
	}
	want := "Cannot determine status for request 'Create::1::x' as the current Stack status is 'UPDATE_IN_PROGRESS' which is not a valid value for the expected transition"
	if err.Error() != want {
		t.Errorf("message = %q", err.Error())
	}

	for _, id := range []string{"Create::1", "Start::1::x", "garbage"} {
		if _, err := f.orchestrator.GetLifecycleExecution(context.Background(), id, DeploymentLocation{}); !IsInvalidRequest(err) {
			t.Errorf("%s: error = %v, want invalid request", id, err)
		}
	}
}

func TestGetLifecycleExecution_OtherErrorsPropagate(t *testing.T) {
	f := newFixture(OrchestratorConfig{})
	boom := errors.New("connection refused")
	f.stacks.getErr = boom

	_, err := f.orchestrator.GetLifecycleExecution(context.Background(), "Delete::1::x", DeploymentLocation{})
	if !errors.Is(err, boom) {
		t.Errorf("error = %v, want %v", err, boom)
	}
	if len(f.stacks.gets) != 1 {
		t.Errorf("GetStack called %d times, want exactly 1", len(f.stacks.gets))
	}
}

func TestGetLifecycleExecution_SkipAdoptStatusCheck(t *testing.T) {
	f := newFixture(OrchestratorConfig{Status: StatusMapperConfig{SkipAdoptStatusCheck: true}})
	f.stacks.stacks["555"] = &StackHandle{ID: "555", Status: StackSuspendComplete}

	exec, err := f.orchestrator.GetLifecycleExecution(context.Background(), "Adopt::555::x", DeploymentLocation{})
	if err != nil {
		t.Fatalf("GetLifecycleExecution() error = %v", err)
	}
	if exec.Status != ExecutionComplete {
		t.Errorf("status = %s, want COMPLETE", exec.Status)
	}
	if len(f.stacks.gets) != 0 {
		t.Error("stack must not be fetched when the status check is skipped")
	}
}

func TestFindReference(t *testing.T) {
	f := newFixture(OrchestratorConfig{})
	f.discoverer.result = &DiscoveryResult{ID: "net-1", Outputs: map[string]interface{}{"name": "public"}}
	files := &mockDriverFiles{files: map[string]string{"discover.yml": "tosca_definitions_version: tosca_simple_yaml_1_0"}}

	resp, err := f.orchestrator.FindReference(context.Background(), "public", files, DeploymentLocation{})
	if err != nil {
		t.Fatalf("FindReference() error = %v", err)
	}
	want := &FindReferenceResponse{Result: &FindReferenceResult{
		AssociatedTopology: AssociatedTopology{"public": {ID: "net-1", Type: ReferenceTopologyType}},
		Outputs:            map[string]interface{}{"name": "public"},
	}}
	if diff := cmp.Diff(want, resp); diff != "" {
		t.Errorf("response mismatch (-want +got):\n%s", diff)
	}
	if f.discoverer.inputs["instance_name"] != "public" {
		t.Errorf("discovery inputs = %v", f.discoverer.inputs)
	}
	if !files.removed {
		t.Error("driver files were not removed")
	}
}

func TestFindReference_Outcomes(t *testing.T) {
	t.Run("not discovered", func(t *testing.T) {
		f := newFixture(OrchestratorConfig{})
		f.discoverer.err = NewNotDiscoveredError(nil, "Cannot find tosca.nodes.network.Network with search value: x")
		files := &mockDriverFiles{files: map[string]string{"discover.yaml": "x"}}

		resp, err := f.orchestrator.FindReference(context.Background(), "x", files, DeploymentLocation{})
		if err != nil {
			t.Fatalf("FindReference() error = %v", err)
		}
		if resp.Result != nil {
			t.Errorf("Result = %+v, want nil", resp.Result)
		}
	})

	t.Run("invalid template", func(t *testing.T) {
		f := newFixture(OrchestratorConfig{})
		f.discoverer.err = NewInvalidTemplateError("bad")
		files := &mockDriverFiles{files: map[string]string{"discover.yaml": "x"}}

		if _, err := f.orchestrator.FindReference(context.Background(), "x", files, DeploymentLocation{}); !IsInvalidTemplate(err) {
			t.Errorf("error = %v, want invalid template", err)
		}
	})

	t.Run("ambiguous", func(t *testing.T) {
		f := newFixture(OrchestratorConfig{})
		f.discoverer.err = NewAmbiguousError("two")
		files := &mockDriverFiles{files: map[string]string{"discover.yaml": "x"}}

		if _, err := f.orchestrator.FindReference(context.Background(), "x", files, DeploymentLocation{}); !IsAmbiguous(err) {
			t.Errorf("error = %v, want ambiguous", err)
		}
	})

	t.Run("missing template", func(t *testing.T) {
		f := newFixture(OrchestratorConfig{})
		_, err := f.orchestrator.FindReference(context.Background(), "x", &mockDriverFiles{}, DeploymentLocation{})
		if err == nil || err.Error() != "Missing 'discover.yaml' or 'discover.yml' file" {
			t.Errorf("error = %v", err)
		}
		if f.factory.opened != 0 {
			t.Error("environment opened without a template")
		}
	})
}

type recordingObserver struct {
	executed []string
	polled   []ExecutionStatus
	found    []bool
}

func (r *recordingObserver) LifecycleExecuted(ctx context.Context, op Operation, req *LifecycleRequest, resp *ExecuteResponse, err error) {
	outcome := "ok"
	if err != nil {
		outcome = string(KindOf(err))
	}
	r.executed = append(r.executed, string(op)+":"+outcome)
}

func (r *recordingObserver) ExecutionPolled(ctx context.Context, requestID string, exec *LifecycleExecution, err error) {
	if exec != nil {
		r.polled = append(r.polled, exec.Status)
	}
}

func (r *recordingObserver) ReferenceFound(ctx context.Context, instanceName string, resp *FindReferenceResponse, err error) {
	r.found = append(r.found, resp != nil && resp.Result != nil)
}

func TestOrchestrator_Observer(t *testing.T) {
	obs := &recordingObserver{}
	f := newFixture(OrchestratorConfig{}, WithObserver(obs))
	f.stacks.stacks["abc"] = &StackHandle{ID: "abc", Status: StackDeleteComplete}

	resp, err := f.orchestrator.ExecuteLifecycle(context.Background(), &LifecycleRequest{
		Lifecycle:          "Delete",
		AssociatedTopology: NewStackTopology("abc"),
	})
	if err != nil {
		t.Fatalf("ExecuteLifecycle() error = %v", err)
	}
	_, _ = f.orchestrator.ExecuteLifecycle(context.Background(), &LifecycleRequest{Lifecycle: "Adopt"})
	if _, err := f.orchestrator.GetLifecycleExecution(context.Background(), resp.RequestID, DeploymentLocation{}); err != nil {
		t.Fatalf("GetLifecycleExecution() error = %v", err)
	}

	sort.Strings(obs.executed)
	if diff := cmp.Diff([]string{"Adopt:invalid_request", "Delete:ok"}, obs.executed); diff != "" {
		t.Errorf("executed mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]ExecutionStatus{ExecutionInProgress}, obs.polled); diff != "" {
		t.Errorf("polled mismatch (-want +got):\n%s", diff)
	}
}
