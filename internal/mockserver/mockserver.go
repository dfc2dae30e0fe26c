// Package mockserver emulates the serverless endpoint API locally so the
// client pipeline can be exercised without a GPU worker or a platform
// account. Job state is in-memory; submitted jobs complete after a short
// simulated processing delay.
package mockserver

import (
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/loykin/ocrdeploy/internal/ocr"
	"github.com/loykin/ocrdeploy/internal/runpod"
)

// DefaultDelay is how long an async mock job stays IN_PROGRESS.
const DefaultDelay = 500 * time.Millisecond

type job struct {
	id       string
	status   string
	output   *ocr.Output
	doneAt   time.Time
	numFiles int
}

// Server is the in-memory mock endpoint.
type Server struct {
	mu    sync.Mutex
	jobs  map[string]*job
	next  int
	delay time.Duration
}

// New creates a mock endpoint server.
func New(delay time.Duration) *Server {
	if delay <= 0 {
		delay = DefaultDelay
	}
	return &Server{jobs: map[string]*job{}, delay: delay}
}

// Router builds the gin engine exposing the v2-compatible surface under
// /:endpoint, mirroring the paths the real data plane serves.
func (s *Server) Router() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())

	ep := engine.Group("/:endpoint")
	ep.POST("/run", s.handleRun)
	ep.POST("/runsync", s.handleRunSync)
	ep.GET("/status/:id", s.handleStatus)
	ep.GET("/health", s.handleHealth)
	return engine
}

type runRequest struct {
	Input ocr.JobInput `json:"input"`
}

func countFiles(in ocr.JobInput) int {
	if in.File != "" {
		return 1
	}
	return len(in.Files)
}

// cannedOutput fabricates a plausible handler response for n input files.
func cannedOutput(n int) *ocr.Output {
	out := &ocr.Output{TotalPages: n}
	for i := 1; i <= n; i++ {
		tokens := 128
		out.Results = append(out.Results, ocr.PageResult{
			PageNumber: i,
			Markdown:   fmt.Sprintf("# Mock page %d\n\nRecognized text for page %d.\n", i, i),
			HTML:       fmt.Sprintf("<h1>Mock page %d</h1><p>Recognized text for page %d.</p>", i, i),
			Raw:        fmt.Sprintf("Mock page %d", i),
			PageBox:    []float64{0, 0, 612, 792},
			TokenCount: tokens,
			Images:     map[string]string{},
		})
		out.TotalTokens += tokens
	}
	return out
}

func (s *Server) handleRun(c *gin.Context) {
	var req runRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	n := countFiles(req.Input)
	if n == 0 {
		c.JSON(http.StatusOK, gin.H{"error": "No 'file' or 'files' field provided in input"})
		return
	}

	s.mu.Lock()
	s.next++
	j := &job{
		id:       fmt.Sprintf("mock-%d", s.next),
		status:   runpod.StatusInQueue,
		doneAt:   time.Now().Add(s.delay),
		numFiles: n,
	}
	s.jobs[j.id] = j
	s.mu.Unlock()

	c.JSON(http.StatusOK, gin.H{"id": j.id, "status": j.status})
}

func (s *Server) handleRunSync(c *gin.Context) {
	var req runRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	n := countFiles(req.Input)
	if n == 0 {
		c.JSON(http.StatusOK, gin.H{
			"status": runpod.StatusFailed,
			"error":  "No 'file' or 'files' field provided in input",
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"id":     "mock-sync",
		"status": runpod.StatusCompleted,
		"output": cannedOutput(n),
	})
}

func (s *Server) handleStatus(c *gin.Context) {
	id := c.Param("id")

	s.mu.Lock()
	j, ok := s.jobs[id]
	var resp gin.H
	if ok {
		if j.status != runpod.StatusCompleted && time.Now().After(j.doneAt) {
			j.status = runpod.StatusCompleted
			j.output = cannedOutput(j.numFiles)
		}
		resp = gin.H{"id": j.id, "status": j.status}
		if j.output != nil {
			resp["output"] = j.output
		}
	}
	s.mu.Unlock()

	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "job not found"})
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) handleHealth(c *gin.Context) {
	s.mu.Lock()
	inProgress := 0
	for _, j := range s.jobs {
		if j.status != runpod.StatusCompleted {
			inProgress++
		}
	}
	s.mu.Unlock()

	c.JSON(http.StatusOK, gin.H{
		"workers": gin.H{"idle": 1, "running": 0},
		"jobs":    gin.H{"inQueue": 0, "inProgress": inProgress},
	})
}
