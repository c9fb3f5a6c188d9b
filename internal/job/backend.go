// Package job defines the job data model, the Backend contract, and
// lifecycle event types.
package job

import "context"

// Backend is the contract shared by the simulated and remote job backends.
// The Client forwards every call to whichever backend is active at call time.
//
// Errors are classified with the apperrors sentinels:
//
//   - ErrNotFound: no job with the given id
//   - ErrInvalidTransition: the job's status does not permit the operation
//   - ErrTransient: the call failed in transit and may be retried by the caller
//
// Backends never retry on their own.
type Backend interface {
	// ListImages returns the names of the images jobs can be started from.
	ListImages(ctx context.Context) ([]string, error)

	// ListJobs returns every job in creation order, oldest first.
	ListJobs(ctx context.Context) ([]Job, error)

	// GetJob returns a single job.
	GetJob(ctx context.Context, id string) (*Job, error)

	// GetLogs returns the log text of a job.
	GetLogs(ctx context.Context, id string) (string, error)

	// StartJob creates a new job in PENDING status. No validation of image or
	// config is performed; callers validate input first.
	StartJob(ctx context.Context, image string, cfg Config) (*Job, error)

	// StopJob stops a PENDING or RUNNING job.
	StopJob(ctx context.Context, id string) error

	// RestartJob puts a STOPPED, FAILED or COMPLETED job back into PENDING.
	RestartJob(ctx context.Context, id string) (*Job, error)
}
