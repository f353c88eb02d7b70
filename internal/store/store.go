// Package store holds the latest readings and running statistics of every
// channel and hands out consistent copies of both.
package store

import (
	"strings"
	"sync"
	"time"

	"codeberg.org/mutker/xlnpwmon/internal/sensor"
	"codeberg.org/mutker/xlnpwmon/internal/stats"
)

// TotalName is the display name of the whole-system total.
const TotalName = "Total"

// Policy tunes how totals are derived.
type Policy struct {
	// Primary names an ungrouped rail that already measures the
	// whole-system input. It is mirrored as the whole-system total.
	// Without it the whole-system total aggregates every channel.
	Primary string
}

// Snapshot is a copy of the latest readings, all from the same tick.
type Snapshot struct {
	Sensors []sensor.Reading
	// Totals holds the whole-system total first, then one total per group.
	Totals []sensor.Reading
}

// Total returns the whole-system total.
func (s Snapshot) Total() sensor.Reading {
	if len(s.Totals) == 0 {
		return sensor.Reading{}
	}

	return s.Totals[0]
}

// Group returns the total of a sub-system group.
func (s Snapshot) Group(name string) (sensor.Reading, bool) {
	for _, r := range s.Totals[min(1, len(s.Totals)):] {
		if r.Group == name {
			return r, true
		}
	}

	return sensor.Reading{}, false
}

// StatsSnapshot is a copy of the running statistics, laid out like
// Snapshot.
type StatsSnapshot struct {
	Sensors []stats.ChannelStats
	Totals  []stats.ChannelStats
}

// Total returns the whole-system total statistics.
func (s StatsSnapshot) Total() stats.ChannelStats {
	if len(s.Totals) == 0 {
		return stats.ChannelStats{}
	}

	return s.Totals[0]
}

// Group returns the statistics of a sub-system group total.
func (s StatsSnapshot) Group(name string) (stats.ChannelStats, bool) {
	target := groupTotalName(name)
	for _, c := range s.Totals[min(1, len(s.Totals)):] {
		if c.Name == target {
			return c, true
		}
	}

	return stats.ChannelStats{}, false
}

// Store owns the latest Reading and ChannelStats of every channel. Entry
// counts are fixed at construction.
type Store struct {
	mu sync.RWMutex

	descs    []sensor.Descriptor
	groups   []string
	members  [][]int // channel indexes per group
	primary  int     // -1 when no primary rail is mirrored
	readings []sensor.Reading
	totals   []sensor.Reading
	stats    []stats.ChannelStats
	totStats []stats.ChannelStats
	tick     uint64
	now      func() time.Time
}

// New prepares a Store for descs. Readings start offline until the first
// Publish.
func New(descs []sensor.Descriptor, policy Policy) *Store {
	s := &Store{
		descs:   append([]sensor.Descriptor(nil), descs...),
		primary: -1,
		now:     time.Now,
	}

	index := make(map[string]int)
	for i, d := range descs {
		if d.Group == "" {
			continue
		}
		g, ok := index[d.Group]
		if !ok {
			g = len(s.groups)
			index[d.Group] = g
			s.groups = append(s.groups, d.Group)
			s.members = append(s.members, nil)
		}
		s.members[g] = append(s.members[g], i)
	}

	if policy.Primary != "" {
		for i, d := range descs {
			if d.Group != "" {
				continue
			}
			if d.RawName == policy.Primary || d.Name == policy.Primary {
				s.primary = i
				break
			}
		}
	}

	s.readings = make([]sensor.Reading, len(descs))
	s.stats = make([]stats.ChannelStats, len(descs))
	for i, d := range descs {
		s.readings[i] = sensor.Offline(d, "no sample yet")
		s.readings[i].Status = sensor.StatusOffline
		s.stats[i] = stats.ChannelStats{Name: d.Name}
	}

	s.totals = make([]sensor.Reading, 1+len(s.groups))
	s.totStats = make([]stats.ChannelStats, 1+len(s.groups))
	s.totals[0] = totalReading(TotalName, "")
	s.totStats[0] = stats.ChannelStats{Name: TotalName}
	for g, group := range s.groups {
		name := groupTotalName(group)
		s.totals[g+1] = totalReading(name, group)
		s.totStats[g+1] = stats.ChannelStats{Name: name}
	}

	return s
}

func groupTotalName(group string) string {
	return strings.ToUpper(group) + " " + TotalName
}

func totalReading(name, group string) sensor.Reading {
	return sensor.Reading{
		Name:              name,
		Category:          sensor.CategoryTotal,
		Group:             group,
		Status:            sensor.StatusOffline,
		WarningThreshold:  sensor.TotalThreshold.Warning,
		CriticalThreshold: sensor.TotalThreshold.Critical,
	}
}

// Publish replaces every reading with readings, recomputes the totals and
// folds online values into the statistics. readings must be in descriptor
// order; surplus entries are ignored.
func (s *Store) Publish(readings []sensor.Reading) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.tick++
	now := s.now()

	n := min(len(readings), len(s.readings))
	copy(s.readings, readings[:n])

	for i := range s.readings {
		r := &s.readings[i]
		r.Tick = s.tick
		r.Timestamp = now
		if r.Online {
			s.stats[i].Update(r.Voltage, r.Current, r.Power)
		}
	}

	s.computeTotals()

	for i := range s.totals {
		t := &s.totals[i]
		t.Tick = s.tick
		t.Timestamp = now
		if t.Online {
			s.totStats[i].Update(t.Voltage, t.Current, t.Power)
		}
	}
}

// computeTotals applies the total policy to the current readings.
func (s *Store) computeTotals() {
	whole := &s.totals[0]

	for g, members := range s.members {
		aggregate(&s.totals[g+1], s.readings, members)
	}

	if s.primary >= 0 {
		p := s.readings[s.primary]
		whole.Voltage = p.Voltage
		whole.Current = p.Current
		whole.Power = p.Power
		whole.Online = p.Online
		whole.Status = sensor.StatusNormal
		if !p.Online {
			whole.Status = sensor.StatusOffline
		}
		return
	}

	all := make([]int, len(s.readings))
	for i := range all {
		all[i] = i
	}
	aggregate(whole, s.readings, all)
}

// aggregate sums current and power over the online members of src and
// takes the highest online voltage.
func aggregate(dst *sensor.Reading, src []sensor.Reading, members []int) {
	var voltage, current, power float64
	online := 0

	for _, i := range members {
		r := src[i]
		if !r.Online {
			continue
		}
		online++
		voltage = max(voltage, r.Voltage)
		current += r.Current
		power += r.Power
	}

	dst.Voltage = voltage
	dst.Current = current
	dst.Power = power
	dst.Online = online > 0

	switch {
	case online == 0:
		dst.Status = sensor.StatusOffline
	case online < len(members):
		dst.Status = sensor.StatusPartial
	default:
		dst.Status = sensor.StatusNormal
	}
}

// Snapshot returns a copy of the latest readings.
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return Snapshot{
		Sensors: append([]sensor.Reading(nil), s.readings...),
		Totals:  append([]sensor.Reading(nil), s.totals...),
	}
}

// StatsSnapshot returns a copy of the running statistics.
func (s *Store) StatsSnapshot() StatsSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return StatsSnapshot{
		Sensors: append([]stats.ChannelStats(nil), s.stats...),
		Totals:  append([]stats.ChannelStats(nil), s.totStats...),
	}
}

// ResetStats zeroes every statistic and keeps channel names.
func (s *Store) ResetStats() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.stats {
		s.stats[i].Reset()
	}
	for i := range s.totStats {
		s.totStats[i].Reset()
	}
}

// Tick returns the number of publishes so far.
func (s *Store) Tick() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.tick
}

// SensorCount returns the number of real channels.
func (s *Store) SensorCount() int {
	return len(s.descs)
}

// TotalCount returns the number of synthetic total channels.
func (s *Store) TotalCount() int {
	return len(s.totals)
}

// Groups returns the sub-system groups in order of first appearance.
func (s *Store) Groups() []string {
	return append([]string(nil), s.groups...)
}

// Descriptors returns the channel descriptors in discovery order.
func (s *Store) Descriptors() []sensor.Descriptor {
	return append([]sensor.Descriptor(nil), s.descs...)
}
