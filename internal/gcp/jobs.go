package gcp

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"

	run "cloud.google.com/go/run/apiv2"
	"cloud.google.com/go/run/apiv2/runpb"
	executions "cloud.google.com/go/workflows/executions/apiv1"
	"cloud.google.com/go/workflows/executions/apiv1/executionspb"

	"github.com/Lllllllleong/forensicdocumentflow/internal/ports"
)

var (
	_ ports.JobLauncher = (*CloudRunLauncher)(nil)
	_ ports.JobLauncher = (*WorkflowLauncher)(nil)
)

// CloudRunLauncher starts Cloud Run job executions with params passed as
// container environment overrides.
type CloudRunLauncher struct {
	client    *run.JobsClient
	projectID string
	region    string
}

func NewCloudRunLauncher(ctx context.Context, projectID, region string) (*CloudRunLauncher, error) {
	client, err := run.NewJobsClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create Cloud Run Jobs client: %w", err)
	}
	return &CloudRunLauncher{client: client, projectID: projectID, region: region}, nil
}

// envOverrides renders params in key order so identical launches look identical.
func envOverrides(params map[string]string) []*runpb.EnvVar {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	env := make([]*runpb.EnvVar, 0, len(keys))
	for _, k := range keys {
		env = append(env, &runpb.EnvVar{Name: k, Values: &runpb.EnvVar_Value{Value: params[k]}})
	}
	return env
}

// Launch does not wait for the execution to finish.
func (l *CloudRunLauncher) Launch(ctx context.Context, job string, params map[string]string) error {
	name := fmt.Sprintf("projects/%s/locations/%s/jobs/%s", l.projectID, l.region, job)
	req := &runpb.RunJobRequest{
		Name: name,
		Overrides: &runpb.RunJobRequest_Overrides{
			ContainerOverrides: []*runpb.RunJobRequest_Overrides_ContainerOverride{
				{Env: envOverrides(params)},
			},
		},
	}
	if _, err := l.client.RunJob(ctx, req); err != nil {
		return fmt.Errorf("failed to run job %s: %w", name, err)
	}
	slog.Info("Job execution started.", "job", name)
	return nil
}

func (l *CloudRunLauncher) Close() error {
	return l.client.Close()
}

// WorkflowLauncher starts a Workflows execution per launch. The workflow
// receives {"job": ..., "params": {...}} as its argument.
type WorkflowLauncher struct {
	client    *executions.Client
	projectID string
	region    string
}

func NewWorkflowLauncher(ctx context.Context, projectID, region string) (*WorkflowLauncher, error) {
	client, err := executions.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create Workflows Executions client: %w", err)
	}
	return &WorkflowLauncher{client: client, projectID: projectID, region: region}, nil
}

func (l *WorkflowLauncher) Launch(ctx context.Context, job string, params map[string]string) error {
	arg, err := json.Marshal(map[string]any{"job": job, "params": params})
	if err != nil {
		return fmt.Errorf("failed to marshal workflow payload: %w", err)
	}
	req := &executionspb.CreateExecutionRequest{
		Parent:    fmt.Sprintf("projects/%s/locations/%s/workflows/%s", l.projectID, l.region, job),
		Execution: &executionspb.Execution{Argument: string(arg)},
	}
	exec, err := l.client.CreateExecution(ctx, req)
	if err != nil {
		return fmt.Errorf("failed to trigger workflow execution: %w", err)
	}
	slog.Info("Workflow execution started.", "execution", exec.GetName())
	return nil
}

func (l *WorkflowLauncher) Close() error {
	return l.client.Close()
}
