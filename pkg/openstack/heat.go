package openstack

import (
	"context"
	"fmt"
	"time"

	"github.com/gophercloud/gophercloud/v2"
	"github.com/gophercloud/gophercloud/v2/openstack/orchestration/v1/stacks"
	"github.com/openfroyo/heatdriver/pkg/engine"
)

// HeatClient manages stacks through the Heat orchestration API.
type HeatClient struct {
	client  *gophercloud.ServiceClient
	session *session
}

type heatStack struct {
	ID                string               `json:"id"`
	StackName         string               `json:"stack_name"`
	StackStatus       string               `json:"stack_status"`
	StackStatusReason string               `json:"stack_status_reason"`
	Outputs           []engine.StackOutput `json:"outputs"`
}

func (s heatStack) handle() *engine.StackHandle {
	return &engine.StackHandle{
		ID:           s.ID,
		Name:         s.StackName,
		Status:       s.StackStatus,
		StatusReason: s.StackStatusReason,
		Outputs:      s.Outputs,
	}
}

// CreateStack creates a stack from template and returns its id.
//
// stacks.Create resolves get_file and nested template references from the
// local filesystem. The driver already holds the template and every file it
// references, so the request body is posted as is.
func (c *HeatClient) CreateStack(ctx context.Context, name, template string, inputs map[string]interface{}, files map[string]string) (string, error) {
	if name == "" {
		return "", fmt.Errorf("stack name must be provided")
	}
	if template == "" {
		return "", fmt.Errorf("heat template must be provided")
	}
	if inputs == nil {
		inputs = map[string]interface{}{}
	}

	body := map[string]interface{}{
		"stack_name": name,
		"template":   template,
		"parameters": inputs,
	}
	if len(files) > 0 {
		body["files"] = files
	}

	start := time.Now()
	var r stacks.CreateResult
	resp, err := c.client.Post(ctx, c.client.ServiceURL("stacks"), body, &r.Body, nil)
	_, r.Header, r.Err = gophercloud.ParseResponse(resp, err)
	created, err := r.Extract()
	c.session.observe(ServiceOrchestration, "create_stack", start, err)
	if err != nil {
		return "", translateError(ServiceOrchestration, "create_stack", err)
	}

	c.session.logger.Debug().Str("stack_name", name).Str("stack_id", created.ID).Msg("Stack created")
	return created.ID, nil
}

// GetStack fetches a stack by id or name.
func (c *HeatClient) GetStack(ctx context.Context, id string) (*engine.StackHandle, error) {
	if id == "" {
		return nil, fmt.Errorf("stack id must be provided")
	}

	start := time.Now()
	var stack heatStack
	err := stacks.Find(ctx, c.client, id).ExtractIntoStructPtr(&stack, "stack")
	c.session.observe(ServiceOrchestration, "get_stack", start, err)
	if err != nil {
		return nil, translateError(ServiceOrchestration, "get_stack", err)
	}
	return stack.handle(), nil
}

// DeleteStack deletes a stack. The stack is looked up first so the delete
// can target its canonical name/id path.
func (c *HeatClient) DeleteStack(ctx context.Context, id string) error {
	stack, err := c.GetStack(ctx, id)
	if err != nil {
		return err
	}

	start := time.Now()
	err = stacks.Delete(ctx, c.client, stack.Name, stack.ID).ExtractErr()
	c.session.observe(ServiceOrchestration, "delete_stack", start, err)
	if err != nil {
		return translateError(ServiceOrchestration, "delete_stack", err)
	}
	c.session.logger.Debug().Str("stack_id", stack.ID).Msg("Stack delete requested")
	return nil
}

// ListStacks lists the stacks visible to the session.
func (c *HeatClient) ListStacks(ctx context.Context) ([]engine.StackHandle, error) {
	start := time.Now()
	pages, err := stacks.List(c.client, nil).AllPages(ctx)
	var listed []stacks.ListedStack
	if err == nil {
		listed, err = stacks.ExtractStacks(pages)
	}
	c.session.observe(ServiceOrchestration, "list_stacks", start, err)
	if err != nil {
		return nil, translateError(ServiceOrchestration, "list_stacks", err)
	}

	out := make([]engine.StackHandle, 0, len(listed))
	for _, s := range listed {
		out = append(out, engine.StackHandle{
			ID:           s.ID,
			Name:         s.Name,
			Status:       s.Status,
			StatusReason: s.StatusReason,
		})
	}
	return out, nil
}
