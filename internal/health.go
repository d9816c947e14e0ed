package internal

import (
	"context"
	"time"

	"github.com/lychee-technology/sweet/internal/filestorage"
	"go.uber.org/zap"
)

// health states reported per component
const (
	healthOK       = "ok"
	healthDown     = "down"
	healthDisabled = "disabled"
)

// archiveProbeKey is looked up to prove the archive answers. It never exists.
const archiveProbeKey = ".sweet-health-probe"

// HealthReport summarizes the reachability of the registry dependencies.
type HealthReport struct {
	Status     string            `json:"status"`
	Components map[string]string `json:"components"`
}

// Healthy reports whether every enabled component answered.
func (r HealthReport) Healthy() bool {
	return r.Status == healthOK
}

// CheckHealth pings the schema store and probes the archive. A nil archive
// is reported as disabled. timeout bounds each probe and defaults to 3s.
func CheckHealth(ctx context.Context, store SchemaStore, archive filestorage.Storage, timeout time.Duration) HealthReport {
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	report := HealthReport{Status: healthOK, Components: map[string]string{}}

	probe := func(name string, fn func(context.Context) error) {
		probeCtx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()
		if err := fn(probeCtx); err != nil {
			zap.S().Warnw("health probe failed", "component", name, "error", err)
			report.Components[name] = healthDown
			report.Status = healthDown
			return
		}
		report.Components[name] = healthOK
	}

	if store == nil {
		report.Components["database"] = healthDown
		report.Status = healthDown
	} else {
		probe("database", store.Ping)
	}

	if archive == nil {
		report.Components["archive"] = healthDisabled
	} else {
		probe("archive", func(ctx context.Context) error {
			_, err := archive.Exists(ctx, archiveProbeKey)
			return err
		})
	}
	return report
}
