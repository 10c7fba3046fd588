package jobs

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// State is the lifecycle of the pipeline job.
type State string

const (
	StateIdle      State = "idle"
	StateRunning   State = "running"
	StateCompleted State = "completed"
	StateFailed    State = "failed"
)

var ErrAlreadyRunning = errors.New("a pipeline job is already running")

// Snapshot is a copy of the coordinator's state at one point in time.
type Snapshot struct {
	JobID      string     `json:"job_id,omitempty"`
	Name       string     `json:"name,omitempty"`
	State      State      `json:"state"`
	StartedAt  *time.Time `json:"started_at,omitempty"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
	Error      string     `json:"error,omitempty"`
}

// Coordinator owns the single pipeline job slot. At most one job runs at a time.
type Coordinator struct {
	mu      sync.Mutex
	current Snapshot
	log     zerolog.Logger
	now     func() time.Time
}

func NewCoordinator(log zerolog.Logger) *Coordinator {
	return &Coordinator{
		current: Snapshot{State: StateIdle},
		log:     log.With().Str("component", "jobs").Logger(),
		now:     time.Now,
	}
}

func (c *Coordinator) Status() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

func (c *Coordinator) Running() bool {
	return c.Status().State == StateRunning
}

// Run executes fn in the calling goroutine.
func (c *Coordinator) Run(ctx context.Context, name string, fn func(context.Context) error) (Snapshot, error) {
	snap, err := c.begin(name)
	if err != nil {
		return snap, err
	}
	return c.finish(fn(ctx)), nil
}

func (c *Coordinator) begin(name string) (Snapshot, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current.State == StateRunning {
		return c.current, ErrAlreadyRunning
	}
	started := c.now()
	c.current = Snapshot{
		JobID:     uuid.NewString(),
		Name:      name,
		State:     StateRunning,
		StartedAt: &started,
	}
	c.log.Info().Str("job", c.current.JobID).Str("name", name).Msg("job started")
	return c.current, nil
}

func (c *Coordinator) finish(jobErr error) Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	finished := c.now()
	c.current.FinishedAt = &finished
	if jobErr != nil {
		c.current.State = StateFailed
		c.current.Error = jobErr.Error()
		c.log.Error().Err(jobErr).Str("job", c.current.JobID).Msg("job failed")
	} else {
		c.current.State = StateCompleted
		c.log.Info().Str("job", c.current.JobID).Dur("took", finished.Sub(*c.current.StartedAt)).Msg("job completed")
	}
	return c.current
}
