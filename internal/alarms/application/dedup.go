package application

import (
	"time"

	alarms "hydro-dashboard/internal/alarms/domain"
	sensors "hydro-dashboard/internal/sensors/domain"
)

// DefaultCooldown is the minimum interval between alerts of one kind for one parameter.
const DefaultCooldown = 5 * time.Minute

type cooldownKey struct {
	param sensors.ParameterKey
	kind  alarms.ConditionKind
}

// Deduplicator suppresses repeated alerts inside the cooldown window.
// It is not safe for concurrent use; the dashboard loop owns it.
type Deduplicator struct {
	cooldown time.Duration
	last     map[cooldownKey]time.Time
}

// NewDeduplicator constructs a deduplicator. A non-positive cooldown uses DefaultCooldown.
func NewDeduplicator(cooldown time.Duration) *Deduplicator {
	if cooldown <= 0 {
		cooldown = DefaultCooldown
	}
	return &Deduplicator{
		cooldown: cooldown,
		last:     make(map[cooldownKey]time.Time, len(sensors.Keys())*len(alarms.Kinds())),
	}
}

// Cooldown returns the configured window.
func (d *Deduplicator) Cooldown() time.Duration {
	return d.cooldown
}

// ShouldFire reports whether an alert for (param, kind) may fire at now and
// records now when it may. Untracked pairs never fire.
func (d *Deduplicator) ShouldFire(param sensors.ParameterKey, kind alarms.ConditionKind, now time.Time) bool {
	if d == nil || !param.Known() || !kind.Valid() {
		return false
	}
	key := cooldownKey{param: param, kind: kind}
	if last, ok := d.last[key]; ok && now.Sub(last) < d.cooldown {
		return false
	}
	d.last[key] = now
	return true
}

// Tracked returns the number of recorded pairs.
func (d *Deduplicator) Tracked() int {
	if d == nil {
		return 0
	}
	return len(d.last)
}
