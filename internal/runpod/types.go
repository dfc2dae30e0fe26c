package runpod

// EnvVar is one container environment entry on a serverless template.
type EnvVar struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// TemplateInput is the payload for the saveTemplateServerless mutation.
type TemplateInput struct {
	Name              string   `json:"name"`
	ImageName         string   `json:"imageName"`
	DockerArgs        string   `json:"dockerArgs"`
	ContainerDiskInGb int      `json:"containerDiskInGb"`
	VolumeInGb        int      `json:"volumeInGb"`
	Env               []EnvVar `json:"env"`
	IsServerless      bool     `json:"isServerless"`
}

// EndpointInput is the payload for the saveEndpoint mutation. Pointer fields
// are omitted when nil so the same input type serves create and update.
type EndpointInput struct {
	ID               string `json:"id,omitempty"`
	Name             string `json:"name,omitempty"`
	TemplateID       string `json:"templateId,omitempty"`
	GpuIDs           string `json:"gpuIds,omitempty"`
	WorkersMin       *int   `json:"workersMin,omitempty"`
	WorkersMax       *int   `json:"workersMax,omitempty"`
	IdleTimeout      *int   `json:"idleTimeout,omitempty"`
	ExecutionTimeout *int   `json:"executionTimeout,omitempty"`
	GpuUtilization   *int   `json:"gpuUtilization,omitempty"`
	ScalerType       string `json:"scalerType,omitempty"`
	ScalerValue      *int   `json:"scalerValue,omitempty"`
}

// Endpoint is a serverless endpoint as reported by the platform.
type Endpoint struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	TemplateID  string `json:"templateId"`
	GpuIDs      string `json:"gpuIds"`
	WorkersMin  int    `json:"workersMin"`
	WorkersMax  int    `json:"workersMax"`
	IdleTimeout int    `json:"idleTimeout"`
}

// DeployOptions drives one update-if-exists deployment.
type DeployOptions struct {
	EndpointName     string
	DockerImage      string
	EnvVars          map[string]string
	GpuIDs           string
	WorkersMin       int
	WorkersMax       int
	IdleTimeout      int // seconds, 0 means the platform default of 5
	ExecutionTimeout int // seconds, 0 means the platform default of 300
	ContainerDiskGb  int
	VolumeGb         int
	UpdateIfExists   bool
}

// DeployResult is what a deployment produced, suitable for the info file
// and the history store.
type DeployResult struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	URL        string `json:"url"`
	TemplateID string `json:"template_id,omitempty"`
	Created    bool   `json:"created,omitempty"`
	Updated    bool   `json:"updated,omitempty"`
}

// Health summarizes endpoint worker and queue state.
type Health struct {
	WorkersIdle    int `json:"workers_idle"`
	WorkersRunning int `json:"workers_running"`
	JobsInQueue    int `json:"jobs_in_queue"`
	JobsInProgress int `json:"jobs_in_progress"`
}

// Job status values reported by the v2 API.
const (
	StatusInQueue    = "IN_QUEUE"
	StatusInProgress = "IN_PROGRESS"
	StatusCompleted  = "COMPLETED"
	StatusFailed     = "FAILED"
	StatusCancelled  = "CANCELLED"
	StatusTimedOut   = "TIMED_OUT"
)

// TerminalStatus reports whether a job status will not change further.
func TerminalStatus(s string) bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusCancelled, StatusTimedOut:
		return true
	}
	return false
}
