// Package stats folds scalar samples into running statistics.
package stats

// Stats holds running statistics for one scalar stream. The zero value is
// the empty state.
type Stats struct {
	Min   float64
	Max   float64
	Avg   float64
	Total float64
	Count uint64
}

// Update folds v into s. NaN and Inf are accepted as-is; callers filter
// invalid samples before calling.
func (s *Stats) Update(v float64) {
	if s.Count == 0 {
		s.Min = v
		s.Max = v
	} else {
		s.Min = min(s.Min, v)
		s.Max = max(s.Max, v)
	}

	s.Total += v
	s.Count++
	s.Avg = s.Total / float64(s.Count)
}

// Reset returns s to the empty state.
func (s *Stats) Reset() {
	*s = Stats{}
}

// ChannelStats holds voltage, current and power statistics for one
// channel.
type ChannelStats struct {
	Name    string
	Voltage Stats
	Current Stats
	Power   Stats
}

// Update folds one reading's values into the channel statistics.
func (c *ChannelStats) Update(voltage, current, power float64) {
	c.Voltage.Update(voltage)
	c.Current.Update(current)
	c.Power.Update(power)
}

// Reset clears all statistics but keeps the channel name.
func (c *ChannelStats) Reset() {
	c.Voltage.Reset()
	c.Current.Reset()
	c.Power.Reset()
}
