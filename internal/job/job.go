package job

import (
	"maps"
	"slices"
	"strings"
	"time"
)

// Status is the lifecycle state of a job.
type Status string

// Status constants. Values are the uppercase strings used on the wire.
const (
	StatusPending   Status = "PENDING"
	StatusRunning   Status = "RUNNING"
	StatusCompleted Status = "COMPLETED"
	StatusFailed    Status = "FAILED"
	StatusStopped   Status = "STOPPED"
)

// Statuses lists every known status in lifecycle order.
var Statuses = []Status{StatusPending, StatusRunning, StatusCompleted, StatusFailed, StatusStopped}

// ParseStatus parses a status name case-insensitively.
func ParseStatus(s string) (Status, bool) {
	st := Status(strings.ToUpper(strings.TrimSpace(s)))
	if slices.Contains(Statuses, st) {
		return st, true
	}
	return "", false
}

// IsTerminal reports whether the job has finished running. Terminal jobs carry
// a finished timestamp.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusStopped
}

// CanStop reports whether a job in this status may be stopped.
func (s Status) CanStop() bool {
	return s == StatusPending || s == StatusRunning
}

// CanRestart reports whether a job in this status may be restarted.
func (s Status) CanRestart() bool {
	return s.IsTerminal()
}

// Job is a single run of a container image.
type Job struct {
	ID       string     `json:"id"`
	Name     string     `json:"name"`
	Image    string     `json:"image"`
	Status   Status     `json:"status"`
	Created  time.Time  `json:"created"`
	Started  *time.Time `json:"started,omitempty"`
	Finished *time.Time `json:"finished,omitempty"`
	Config   Config     `json:"config"`
}

// Config is the launch configuration of a job. It never changes after creation.
type Config struct {
	Name      string            `json:"name,omitempty" yaml:"name,omitempty"`
	Env       map[string]string `json:"env,omitempty" yaml:"env,omitempty"`
	Command   []string          `json:"command,omitempty" yaml:"command,omitempty"`
	Volumes   []string          `json:"volumes,omitempty" yaml:"volumes,omitempty"`
	Ports     []string          `json:"ports,omitempty" yaml:"ports,omitempty"`
	Resources *Resources        `json:"resources,omitempty" yaml:"resources,omitempty"`
}

// Resources holds optional resource limits.
type Resources struct {
	CPUs   float64 `json:"cpus,omitempty" yaml:"cpus,omitempty"`
	Memory string  `json:"memory,omitempty" yaml:"memory,omitempty"`
}

// Clone returns a deep copy of the job. Nil maps, slices and pointers stay nil.
func (j *Job) Clone() *Job {
	if j == nil {
		return nil
	}
	c := *j
	c.Started = cloneTime(j.Started)
	c.Finished = cloneTime(j.Finished)
	c.Config = j.Config.Clone()
	return &c
}

// Clone returns a deep copy of the config.
func (c Config) Clone() Config {
	out := c
	out.Env = maps.Clone(c.Env)
	out.Command = slices.Clone(c.Command)
	out.Volumes = slices.Clone(c.Volumes)
	out.Ports = slices.Clone(c.Ports)
	if c.Resources != nil {
		r := *c.Resources
		out.Resources = &r
	}
	return out
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}
