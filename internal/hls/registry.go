package hls

import (
	"log/slog"
	"sync"
	"time"
)

// Registry serializes and bounds concurrent transcodes. It guarantees
// at most one running job per item: a request for a different variant
// of an item preempts the running job, and when the global cap is
// reached the oldest job is cancelled to admit the newest demand.
type Registry struct {
	mu      sync.Mutex
	jobs    map[string]*Job // keyed by item ID
	maxJobs int

	bin        string
	jobTimeout time.Duration
	logger     *slog.Logger
}

// NewRegistry creates a registry spawning the given transcoder binary.
func NewRegistry(bin string, maxJobs int, jobTimeout time.Duration, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Registry{
		jobs:       make(map[string]*Job),
		maxJobs:    maxJobs,
		bin:        bin,
		jobTimeout: jobTimeout,
		logger:     logger,
	}
}

// EnsureRunning returns a job transcoding itemID with the requested
// variant, reusing a running job when the variant matches and
// preempting it when it does not. started reports whether a new
// process was spawned.
//
// The mutex is held only across registry mutations and the spawn call,
// never while waiting on process or file I/O.
func (r *Registry) EnsureRunning(itemID string, v Variant, dir string, argv []string) (job *Job, started bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.jobs[itemID]; ok {
		if existing.Running() && existing.Variant == v {
			return existing, false
		}
		// Variant changed or the job already died: cancel and replace.
		existing.Cancel()
		delete(r.jobs, itemID)
		r.logger.Info("preempted transcode", "item", itemID, "old_variant", existing.Variant.Key(), "new_variant", v.Key())
	}

	// Admission control: the newest demand always wins; evict the
	// oldest-by-start job when the cap is reached.
	for len(r.jobs) >= r.maxJobs {
		victimID := ""
		var victim *Job
		for id, j := range r.jobs {
			if victim == nil || j.StartedAt.Before(victim.StartedAt) {
				victimID, victim = id, j
			}
		}
		victim.Cancel()
		delete(r.jobs, victimID)
		r.logger.Info("evicted oldest transcode for capacity", "item", victimID, "started_at", victim.StartedAt)
	}

	j := startJob(itemID, v, dir, r.bin, argv, r.jobTimeout, r.logger)
	r.jobs[itemID] = j

	// Unregister on termination, whatever the reason.
	go func() {
		<-j.Done()
		r.mu.Lock()
		if r.jobs[itemID] == j {
			delete(r.jobs, itemID)
		}
		r.mu.Unlock()
	}()

	return j, true
}

// Get returns the job currently registered for itemID, if any.
func (r *Registry) Get(itemID string) (*Job, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	j, ok := r.jobs[itemID]
	return j, ok
}

// Len returns the number of registered jobs.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.jobs)
}

// CancelAll cancels every registered job. Used at shutdown.
func (r *Registry) CancelAll() {
	r.mu.Lock()
	jobs := make([]*Job, 0, len(r.jobs))
	for _, j := range r.jobs {
		jobs = append(jobs, j)
	}
	r.mu.Unlock()

	for _, j := range jobs {
		j.Cancel()
		<-j.Done()
	}
}
