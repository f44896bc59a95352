package syncclient

import "time"

// Speed is a static property of an endpoint: vitals poll fast, historical
// lists poll slow.
type Speed string

const (
	SpeedFast Speed = "fast"
	SpeedSlow Speed = "slow"
)

// pollIntervals keys the cadence by the agent's own reported health. A
// critical agent is watched more closely on the fast class; sleeping and
// dead agents are polled lazily since nothing is changing.
var pollIntervals = map[string]map[Speed]time.Duration{
	"normal":      {SpeedFast: 10 * time.Second, SpeedSlow: 30 * time.Second},
	"low_compute": {SpeedFast: 15 * time.Second, SpeedSlow: 60 * time.Second},
	"critical":    {SpeedFast: 5 * time.Second, SpeedSlow: 30 * time.Second},
	"sleeping":    {SpeedFast: 30 * time.Second, SpeedSlow: 60 * time.Second},
	"dead":        {SpeedFast: 60 * time.Second, SpeedSlow: 120 * time.Second},
}

const defaultInterval = 10 * time.Second

// IntervalFor returns the poll interval for a tier and speed class.
// Unknown tiers get the default.
func IntervalFor(tier string, speed Speed) time.Duration {
	if bySpeed, ok := pollIntervals[tier]; ok {
		if d, ok := bySpeed[speed]; ok {
			return d
		}
	}
	return defaultInterval
}
