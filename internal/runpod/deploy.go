package runpod

import (
	"context"
	"fmt"
	"sort"
	"time"
)

const listEndpointsQuery = `
query {
    myself {
        serverlessEndpoints {
            id
            name
            templateId
            gpuIds
            workersMin
            workersMax
            idleTimeout
        }
    }
}`

const saveTemplateMutation = `
mutation SaveTemplateServerless($input: SaveTemplateInput!) {
    saveTemplateServerless(input: $input) {
        id
        name
    }
}`

const saveEndpointMutation = `
mutation SaveServerlessEndpoint($input: ServerlessEndpointInput!) {
    saveEndpoint(input: $input) {
        id
        name
        templateId
        gpuIds
    }
}`

// EndpointURL returns the public base URL of a serverless endpoint.
func EndpointURL(id string) string {
	return "https://api.runpod.ai/v2/" + id
}

// ListEndpoints returns all serverless endpoints on the account.
func (c *Client) ListEndpoints(ctx context.Context) ([]Endpoint, error) {
	doc, err := c.graphql(ctx, listEndpointsQuery, nil)
	if err != nil {
		return nil, fmt.Errorf("list endpoints: %w", err)
	}

	var out []Endpoint
	for _, e := range doc.Get("data.myself.serverlessEndpoints").Array() {
		out = append(out, Endpoint{
			ID:          e.Get("id").String(),
			Name:        e.Get("name").String(),
			TemplateID:  e.Get("templateId").String(),
			GpuIDs:      e.Get("gpuIds").String(),
			WorkersMin:  int(e.Get("workersMin").Int()),
			WorkersMax:  int(e.Get("workersMax").Int()),
			IdleTimeout: int(e.Get("idleTimeout").Int()),
		})
	}
	return out, nil
}

// FindEndpointByName returns the endpoint with the given name, or nil.
func (c *Client) FindEndpointByName(ctx context.Context, name string) (*Endpoint, error) {
	endpoints, err := c.ListEndpoints(ctx)
	if err != nil {
		return nil, err
	}
	for i := range endpoints {
		if endpoints[i].Name == name {
			return &endpoints[i], nil
		}
	}
	return nil, nil
}

// CreateTemplate registers a serverless template and returns its id.
func (c *Client) CreateTemplate(ctx context.Context, in TemplateInput) (string, error) {
	in.IsServerless = true
	if in.Env == nil {
		in.Env = []EnvVar{}
	}

	doc, err := c.graphql(ctx, saveTemplateMutation, map[string]any{"input": in})
	if err != nil {
		return "", fmt.Errorf("create template: %w", err)
	}
	id := doc.Get("data.saveTemplateServerless.id").String()
	if id == "" {
		return "", fmt.Errorf("create template: no id in response")
	}
	c.logger.Info("template created", "name", in.Name, "template", id)
	return id, nil
}

// SaveEndpoint creates or updates an endpoint (update when in.ID is set).
func (c *Client) SaveEndpoint(ctx context.Context, in EndpointInput) (*Endpoint, error) {
	doc, err := c.graphql(ctx, saveEndpointMutation, map[string]any{"input": in})
	if err != nil {
		return nil, fmt.Errorf("save endpoint: %w", err)
	}
	data := doc.Get("data.saveEndpoint")
	if !data.Exists() || data.Get("id").String() == "" {
		return nil, fmt.Errorf("save endpoint: no id in response")
	}
	return &Endpoint{
		ID:         data.Get("id").String(),
		Name:       data.Get("name").String(),
		TemplateID: data.Get("templateId").String(),
		GpuIDs:     data.Get("gpuIds").String(),
	}, nil
}

func intPtr(v int) *int { return &v }

// envList converts the map to the wire shape with deterministic ordering.
func envList(m map[string]string) []EnvVar {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]EnvVar, 0, len(keys))
	for _, k := range keys {
		out = append(out, EnvVar{Key: k, Value: m[k]})
	}
	return out
}

// now is stubbed in tests to make template names deterministic.
var now = time.Now

// Deploy performs an update-if-exists deployment: a fresh template is always
// created, then either attached to the existing endpoint or used for a new one.
func (c *Client) Deploy(ctx context.Context, opts DeployOptions) (*DeployResult, error) {
	logger := c.logger.WithEndpoint(opts.EndpointName).WithImage(opts.DockerImage)

	existing, err := c.FindEndpointByName(ctx, opts.EndpointName)
	if err != nil {
		return nil, err
	}

	if existing != nil {
		logger.Warn("endpoint already exists", "id", existing.ID)
		if !opts.UpdateIfExists {
			logger.Info("skipping deployment, update disabled")
			return &DeployResult{
				ID:   existing.ID,
				Name: opts.EndpointName,
				URL:  EndpointURL(existing.ID),
			}, nil
		}

		templateName := fmt.Sprintf("%s-template-%d", opts.EndpointName, now().Unix())
		templateID, err := c.CreateTemplate(ctx, TemplateInput{
			Name:              templateName,
			ImageName:         opts.DockerImage,
			ContainerDiskInGb: opts.ContainerDiskGb,
			VolumeInGb:        opts.VolumeGb,
			Env:               envList(opts.EnvVars),
		})
		if err != nil {
			return nil, err
		}

		if _, err := c.SaveEndpoint(ctx, EndpointInput{
			ID:         existing.ID,
			TemplateID: templateID,
			WorkersMax: intPtr(opts.WorkersMax),
		}); err != nil {
			return nil, err
		}
		logger.Info("endpoint updated", "id", existing.ID, "template", templateID)
		return &DeployResult{
			ID:         existing.ID,
			Name:       opts.EndpointName,
			URL:        EndpointURL(existing.ID),
			TemplateID: templateID,
			Updated:    true,
		}, nil
	}

	logger.Info("creating new endpoint")
	templateID, err := c.CreateTemplate(ctx, TemplateInput{
		Name:              opts.EndpointName + "-template",
		ImageName:         opts.DockerImage,
		ContainerDiskInGb: opts.ContainerDiskGb,
		VolumeInGb:        opts.VolumeGb,
		Env:               envList(opts.EnvVars),
	})
	if err != nil {
		return nil, err
	}

	idleTimeout := opts.IdleTimeout
	if idleTimeout == 0 {
		idleTimeout = 5
	}
	executionTimeout := opts.ExecutionTimeout
	if executionTimeout == 0 {
		executionTimeout = 300
	}
	ep, err := c.SaveEndpoint(ctx, EndpointInput{
		Name:             opts.EndpointName,
		TemplateID:       templateID,
		GpuIDs:           opts.GpuIDs,
		WorkersMin:       intPtr(opts.WorkersMin),
		WorkersMax:       intPtr(opts.WorkersMax),
		IdleTimeout:      intPtr(idleTimeout),
		ExecutionTimeout: intPtr(executionTimeout),
		GpuUtilization:   intPtr(90),
		ScalerType:       "QUEUE_DELAY",
		ScalerValue:      intPtr(4),
	})
	if err != nil {
		return nil, err
	}
	logger.Info("endpoint created", "id", ep.ID, "url", EndpointURL(ep.ID))
	return &DeployResult{
		ID:         ep.ID,
		Name:       opts.EndpointName,
		URL:        EndpointURL(ep.ID),
		TemplateID: templateID,
		Created:    true,
	}, nil
}
