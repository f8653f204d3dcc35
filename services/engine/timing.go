package engine

import "zone-backtest/services/config"

// EntryTimingFilter gates entries by UTC hour. Stateless: identical inputs
// always yield identical output.
type EntryTimingFilter struct {
	windows map[string][]config.Window
	dead    config.Window
}

func NewEntryTimingFilter(cfg *config.Config) *EntryTimingFilter {
	return &EntryTimingFilter{windows: cfg.Windows, dead: cfg.DeadWindow}
}

// Allow reports whether an entry on pair is permitted at utcHour. The global
// dead window denies regardless of per-pair windows. A pair with no
// configured windows is unrestricted outside the dead window.
func (f *EntryTimingFilter) Allow(pair string, utcHour int) bool {
	if utcHour < 0 || utcHour > 23 {
		return false
	}
	if f.dead.Contains(utcHour) {
		return false
	}
	ws, ok := f.windows[pair]
	if !ok || len(ws) == 0 {
		return true
	}
	for _, w := range ws {
		if w.Contains(utcHour) {
			return true
		}
	}
	return false
}
