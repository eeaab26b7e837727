package health

import (
	"context"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/c360/catalogmatch/errors"
)

// ProbeFunc checks one dependency. It should return nil when the dependency
// is fully operational and an error when it cannot be reached; the probe's
// context carries the per-probe timeout.
type ProbeFunc func(ctx context.Context) error

// probe is a registered dependency check
type probe struct {
	name string
	core bool // index and store are core: unreachable means the system is down
	fn   ProbeFunc
}

// Report is the aggregate health of the system and its dependencies
type Report struct {
	State      string            `json:"state"` // healthy, degraded, unreachable
	Healthy    bool              `json:"healthy"`
	Components map[string]Status `json:"components"`
	CheckedAt  time.Time         `json:"checked_at"`
}

// Prober runs registered dependency probes concurrently and aggregates the
// results. A slow probe never blocks the report longer than the configured
// per-probe timeout.
type Prober struct {
	mu           sync.Mutex
	probes       []probe
	probeTimeout time.Duration
	monitor      *Monitor
}

// NewProber creates a prober with the given per-probe timeout
func NewProber(probeTimeout time.Duration) *Prober {
	if probeTimeout <= 0 {
		probeTimeout = 2 * time.Second
	}
	return &Prober{
		probeTimeout: probeTimeout,
		monitor:      NewMonitor(),
	}
}

// Register adds a named dependency probe. Core dependencies make the whole
// system unreachable when they cannot be reached; non-core ones only degrade
// it.
func (p *Prober) Register(name string, core bool, fn ProbeFunc) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.probes = append(p.probes, probe{name: name, core: core, fn: fn})
}

// Monitor returns the monitor holding the last probe results
func (p *Prober) Monitor() *Monitor {
	return p.monitor
}

// Check probes all registered dependencies concurrently and returns the
// aggregate report. Degraded components are reachable but slow or erroring;
// unreachable ones did not answer within the probe timeout.
func (p *Prober) Check(ctx context.Context) Report {
	p.mu.Lock()
	probes := make([]probe, len(p.probes))
	copy(probes, p.probes)
	p.mu.Unlock()

	statuses := make([]Status, len(probes))

	g, gctx := errgroup.WithContext(ctx)
	for i, pr := range probes {
		i, pr := i, pr
		g.Go(func() error {
			statuses[i] = p.runProbe(gctx, pr)
			return nil
		})
	}
	// Probes never return errors through the group; failures land in statuses.
	_ = g.Wait()

	report := Report{
		Components: make(map[string]Status, len(statuses)),
		CheckedAt:  time.Now(),
	}

	coreDown := false
	anyNotHealthy := false
	for i, st := range statuses {
		report.Components[st.Component] = st
		p.monitor.Update(st.Component, st)

		if !st.IsHealthy() {
			anyNotHealthy = true
		}
		if probes[i].core && st.IsUnreachable() {
			coreDown = true
		}
	}

	switch {
	case coreDown:
		report.State = StateUnreachable
	case anyNotHealthy:
		report.State = StateDegraded
	default:
		report.State = StateHealthy
		report.Healthy = true
	}

	return report
}

// runProbe executes one probe under the per-probe timeout. Timeouts and
// connection-class failures mean unreachable; a dependency that answered
// with an application-level error is reachable but degraded.
func (p *Prober) runProbe(ctx context.Context, pr probe) Status {
	probeCtx, cancel := context.WithTimeout(ctx, p.probeTimeout)
	defer cancel()

	start := time.Now()
	err := pr.fn(probeCtx)
	latency := time.Since(start)

	var st Status
	switch {
	case err == nil:
		st = NewHealthy(pr.name, "dependency reachable")
	case probeCtx.Err() != nil:
		st = NewUnreachable(pr.name, "probe timed out")
	case errors.IsTransient(err):
		st = NewUnreachable(pr.name, SanitizeMessage(err.Error()))
	default:
		st = NewDegraded(pr.name, SanitizeMessage(err.Error()))
	}
	st.Latency = latency
	return st
}

// ComponentNames returns the registered probe names in sorted order
func (p *Prober) ComponentNames() []string {
	p.mu.Lock()
	defer p.mu.Unlock()

	names := make([]string, 0, len(p.probes))
	for _, pr := range p.probes {
		names = append(names, pr.name)
	}
	sort.Strings(names)
	return names
}
