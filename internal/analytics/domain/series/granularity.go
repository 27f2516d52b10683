package series

import (
	"fmt"
	"strconv"
	"strings"
)

// Kind is the bucketing strategy of a granularity.
type Kind string

const (
	KindRolling Kind = "rolling"
	KindDaily   Kind = "daily"
	KindWeekly  Kind = "weekly"
)

// MaxRollingHours bounds rolling windows to ten years.
const MaxRollingHours = 24 * 366 * 10

// Granularity selects the time window and bucketing for a series.
type Granularity struct {
	Kind  Kind
	Hours int
}

var (
	LastHour    = Granularity{Kind: KindRolling, Hours: 1}
	Last24Hours = Granularity{Kind: KindRolling, Hours: 24}
	Daily       = Granularity{Kind: KindDaily}
	Weekly      = Granularity{Kind: KindWeekly}
)

// Rolling returns a rolling window of the last n hours.
func Rolling(hours int) Granularity {
	return Granularity{Kind: KindRolling, Hours: hours}
}

// Validate checks granularity invariants.
func (g Granularity) Validate() error {
	switch g.Kind {
	case KindRolling:
		if g.Hours <= 0 {
			return fmt.Errorf("%w: rolling window must be positive", ErrInvalidGranularity)
		}
		if g.Hours > MaxRollingHours {
			return fmt.Errorf("%w: rolling window exceeds %d hours", ErrInvalidGranularity, MaxRollingHours)
		}
		return nil
	case KindDaily, KindWeekly:
		return nil
	default:
		return fmt.Errorf("%w: %q", ErrInvalidGranularity, g.Kind)
	}
}

// String renders the canonical name accepted by ParseGranularity.
func (g Granularity) String() string {
	switch g.Kind {
	case KindDaily:
		return "daily"
	case KindWeekly:
		return "weekly"
	case KindRolling:
		switch g.Hours {
		case 1:
			return "lastHour"
		case 24:
			return "last24Hours"
		default:
			return fmt.Sprintf("last%dHours", g.Hours)
		}
	default:
		return string(g.Kind)
	}
}

// ParseGranularity accepts lastHour, last24Hours, lastNHours, daily, weekly
// and the bare hour counts used by the chart range selector.
func ParseGranularity(value string) (Granularity, error) {
	value = strings.TrimSpace(value)
	switch strings.ToLower(value) {
	case "lasthour":
		return LastHour, nil
	case "last24hours":
		return Last24Hours, nil
	case "daily":
		return Daily, nil
	case "weekly":
		return Weekly, nil
	case "":
		return Granularity{}, fmt.Errorf("%w: empty", ErrInvalidGranularity)
	}
	raw := value
	lower := strings.ToLower(value)
	if strings.HasPrefix(lower, "last") && strings.HasSuffix(lower, "hours") {
		raw = value[len("last") : len(value)-len("hours")]
	}
	hours, err := strconv.Atoi(raw)
	if err != nil {
		return Granularity{}, fmt.Errorf("%w: %q", ErrInvalidGranularity, value)
	}
	g := Rolling(hours)
	if err := g.Validate(); err != nil {
		return Granularity{}, err
	}
	return g, nil
}
