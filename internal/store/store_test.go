package store

import (
	"sync"
	"testing"
	"time"

	"codeberg.org/mutker/xlnpwmon/internal/sensor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func descriptors(groups ...string) []sensor.Descriptor {
	descs := make([]sensor.Descriptor, len(groups))
	for i, g := range groups {
		name := string(rune('A' + i))
		descs[i] = sensor.Descriptor{Name: name, RawName: name, Category: sensor.CategoryI2C, Group: g}
	}

	return descs
}

func reading(d sensor.Descriptor, v, i float64, online bool) sensor.Reading {
	r := sensor.Reading{Name: d.Name, Category: d.Category, Group: d.Group, Online: online}
	if online {
		r.Voltage, r.Current, r.Power = v, i, v*i
		r.Status = sensor.StatusNormal
	} else {
		r.Status = "Error: test"
	}

	return r
}

func TestNewStartsOffline(t *testing.T) {
	s := New(descriptors("", ""), Policy{})

	snap := s.Snapshot()
	require.Len(t, snap.Sensors, 2)
	require.Len(t, snap.Totals, 1)
	for _, r := range snap.Sensors {
		assert.False(t, r.Online)
	}
	assert.Equal(t, TotalName, snap.Total().Name)
	assert.Equal(t, sensor.CategoryTotal, snap.Total().Category)
	assert.Equal(t, 25.0, snap.Total().WarningThreshold)
	assert.Equal(t, 35.0, snap.Total().CriticalThreshold)
	assert.Zero(t, s.Tick())
}

func TestUngroupedTotalSumsOnlineChannels(t *testing.T) {
	descs := descriptors("", "", "")
	s := New(descs, Policy{})

	s.Publish([]sensor.Reading{
		reading(descs[0], 5, 1, true),
		reading(descs[1], 12, 0.5, true),
		reading(descs[2], 3.3, 2, false),
	})

	total := s.Snapshot().Total()
	assert.True(t, total.Online)
	assert.Equal(t, sensor.StatusPartial, total.Status)
	assert.InDelta(t, 11.0, total.Power, 1e-9)
	assert.InDelta(t, 1.5, total.Current, 1e-9)
	assert.Equal(t, 12.0, total.Voltage)
	assert.Equal(t, uint64(1), total.Tick)
}

func TestAllOfflineTotal(t *testing.T) {
	descs := descriptors("", "")
	s := New(descs, Policy{})

	s.Publish([]sensor.Reading{
		reading(descs[0], 0, 0, false),
		reading(descs[1], 0, 0, false),
	})

	total := s.Snapshot().Total()
	assert.False(t, total.Online)
	assert.Equal(t, sensor.StatusOffline, total.Status)
	assert.Zero(t, total.Power)
	assert.Zero(t, s.StatsSnapshot().Total().Power.Count)
}

func TestPrimaryRailMirrored(t *testing.T) {
	descs := descriptors("", "")
	descs[0].RawName = "VDD_IN"
	s := New(descs, Policy{Primary: "VDD_IN"})

	s.Publish([]sensor.Reading{
		reading(descs[0], 5, 2, true),
		reading(descs[1], 5, 1, true),
	})

	total := s.Snapshot().Total()
	assert.Equal(t, 10.0, total.Power)
	assert.Equal(t, 2.0, total.Current)
	assert.Equal(t, sensor.StatusNormal, total.Status)

	s.Publish([]sensor.Reading{
		reading(descs[0], 0, 0, false),
		reading(descs[1], 5, 1, true),
	})
	total = s.Snapshot().Total()
	assert.False(t, total.Online)
	assert.Equal(t, sensor.StatusOffline, total.Status)
}

func TestPrimaryIgnoredWhenMissing(t *testing.T) {
	descs := descriptors("", "")
	s := New(descs, Policy{Primary: "VDD_IN"})

	s.Publish([]sensor.Reading{
		reading(descs[0], 5, 2, true),
		reading(descs[1], 5, 1, true),
	})
	assert.Equal(t, 15.0, s.Snapshot().Total().Power)
}

func TestGroupedTotals(t *testing.T) {
	descs := descriptors(sensor.GroupPS, sensor.GroupPL, sensor.GroupPS, sensor.GroupPL)
	s := New(descs, Policy{Primary: "A"})

	require.Equal(t, 3, s.TotalCount())
	assert.Equal(t, []string{sensor.GroupPS, sensor.GroupPL}, s.Groups())

	s.Publish([]sensor.Reading{
		reading(descs[0], 0.85, 2, true),
		reading(descs[1], 0.85, 4, true),
		reading(descs[2], 1.8, 1, true),
		reading(descs[3], 1.2, 1, false),
	})

	snap := s.Snapshot()
	ps, ok := snap.Group(sensor.GroupPS)
	require.True(t, ok)
	pl, ok := snap.Group(sensor.GroupPL)
	require.True(t, ok)

	assert.Equal(t, "PS Total", ps.Name)
	assert.Equal(t, "PL Total", pl.Name)
	assert.InDelta(t, 0.85*2+1.8, ps.Power, 1e-9)
	assert.Equal(t, sensor.StatusNormal, ps.Status)
	assert.InDelta(t, 0.85*4, pl.Power, 1e-9)
	assert.Equal(t, sensor.StatusPartial, pl.Status)

	total := snap.Total()
	assert.InDelta(t, ps.Power+pl.Power, total.Power, 1e-9)
	assert.InDelta(t, ps.Current+pl.Current, total.Current, 1e-9)
	assert.Equal(t, 1.8, total.Voltage)
	assert.True(t, total.Online)
	assert.Equal(t, sensor.StatusPartial, total.Status)

	_, ok = snap.Group("aie")
	assert.False(t, ok)
}

func TestGroupedTotalKeepsUngroupedChannels(t *testing.T) {
	descs := descriptors(sensor.GroupPS, "", "ddr")
	s := New(descs, Policy{})

	s.Publish([]sensor.Reading{
		reading(descs[0], 5, 1, true),
		reading(descs[1], 5, 1, true),
		reading(descs[2], 5, 1, true),
	})

	snap := s.Snapshot()
	ps, ok := snap.Group(sensor.GroupPS)
	require.True(t, ok)
	assert.Equal(t, 5.0, ps.Power)
	assert.Equal(t, 15.0, snap.Total().Power)
	assert.Equal(t, 3.0, snap.Total().Current)
}

func TestUngroupedPrimaryMirroredAlongsideGroups(t *testing.T) {
	descs := descriptors("", sensor.GroupPS, sensor.GroupPL)
	descs[0].RawName = "VDD_IN"
	s := New(descs, Policy{Primary: "VDD_IN"})

	s.Publish([]sensor.Reading{
		reading(descs[0], 5, 3, true),
		reading(descs[1], 5, 1, true),
		reading(descs[2], 5, 1, true),
	})

	snap := s.Snapshot()
	assert.Equal(t, 15.0, snap.Total().Power)
	ps, _ := snap.Group(sensor.GroupPS)
	assert.Equal(t, 5.0, ps.Power)
}

func TestGroupedPrimaryIsNotMirrored(t *testing.T) {
	descs := descriptors(sensor.GroupPS, sensor.GroupPL)
	descs[0].RawName = "VDD_IN"
	s := New(descs, Policy{Primary: "VDD_IN"})

	s.Publish([]sensor.Reading{
		reading(descs[0], 5, 1, true),
		reading(descs[1], 5, 2, true),
	})

	assert.Equal(t, 15.0, s.Snapshot().Total().Power)
}

func TestStatisticsFollowPublishes(t *testing.T) {
	descs := descriptors("", "")
	s := New(descs, Policy{})

	s.Publish([]sensor.Reading{reading(descs[0], 5, 1, true), reading(descs[1], 5, 1, false)})
	s.Publish([]sensor.Reading{reading(descs[0], 5, 3, true), reading(descs[1], 5, 1, true)})

	st := s.StatsSnapshot()
	a := st.Sensors[0]
	assert.Equal(t, "A", a.Name)
	assert.Equal(t, uint64(2), a.Power.Count)
	assert.Equal(t, 5.0, a.Power.Min)
	assert.Equal(t, 15.0, a.Power.Max)
	assert.Equal(t, 10.0, a.Power.Avg)

	assert.Equal(t, uint64(1), st.Sensors[1].Power.Count)
	assert.Equal(t, uint64(2), st.Total().Power.Count)
	assert.Equal(t, 20.0, st.Total().Power.Max)
}

func TestResetStatsKeepsNames(t *testing.T) {
	descs := descriptors(sensor.GroupPS, sensor.GroupPL)
	s := New(descs, Policy{})
	s.Publish([]sensor.Reading{reading(descs[0], 1, 1, true), reading(descs[1], 1, 1, true)})

	s.ResetStats()

	st := s.StatsSnapshot()
	for _, c := range append(st.Sensors, st.Totals...) {
		assert.NotEmpty(t, c.Name)
		assert.Zero(t, c.Power.Count)
		assert.Zero(t, c.Power.Max)
	}
	_, ok := st.Group(sensor.GroupPL)
	assert.True(t, ok)

	s.Publish([]sensor.Reading{reading(descs[0], 2, 1, true), reading(descs[1], 1, 1, true)})
	assert.Equal(t, 2.0, s.StatsSnapshot().Sensors[0].Power.Min)
}

func TestSnapshotIsACopy(t *testing.T) {
	descs := descriptors("")
	s := New(descs, Policy{})
	s.Publish([]sensor.Reading{reading(descs[0], 5, 1, true)})

	snap := s.Snapshot()
	snap.Sensors[0].Power = 1000
	snap.Totals[0].Name = "changed"

	again := s.Snapshot()
	assert.Equal(t, 5.0, again.Sensors[0].Power)
	assert.Equal(t, TotalName, again.Total().Name)
}

func TestPublishStampsTickAndTimestamp(t *testing.T) {
	descs := descriptors("")
	s := New(descs, Policy{})
	fixed := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return fixed }

	s.Publish([]sensor.Reading{reading(descs[0], 5, 1, true)})
	s.Publish([]sensor.Reading{reading(descs[0], 5, 1, true)})

	snap := s.Snapshot()
	assert.Equal(t, uint64(2), snap.Sensors[0].Tick)
	assert.Equal(t, fixed, snap.Sensors[0].Timestamp)
	assert.Equal(t, uint64(2), snap.Total().Tick)
}

func TestConcurrentReadersSeeSingleTick(t *testing.T) {
	descs := descriptors("", "", "", "")
	s := New(descs, Policy{})

	done := make(chan struct{})
	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		for n := 1; n <= 2000; n++ {
			v := float64(n)
			readings := make([]sensor.Reading, len(descs))
			for i, d := range descs {
				readings[i] = reading(d, v, 1, true)
			}
			s.Publish(readings)
		}
		close(done)
	}()

	for r := 0; r < 4; r++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-done:
					return
				default:
				}

				snap := s.Snapshot()
				tick := snap.Sensors[0].Tick
				for _, rd := range snap.Sensors {
					if rd.Tick != tick || rd.Voltage != snap.Sensors[0].Voltage {
						t.Errorf("mixed ticks in snapshot: %d vs %d", rd.Tick, tick)
						return
					}
				}
				if tick > 0 && snap.Total().Power != 4*snap.Sensors[0].Power {
					t.Errorf("total does not match readings at tick %d", tick)
					return
				}
			}
		}()
	}

	wg.Wait()
	assert.Equal(t, uint64(2000), s.Tick())
}

func TestPartialTotalFeedsStatistics(t *testing.T) {
	descs := descriptors("", "")
	s := New(descs, Policy{})

	s.Publish([]sensor.Reading{
		reading(descs[0], 5, 1, true),
		reading(descs[1], 5, 1, false),
	})

	total := s.Snapshot().Total()
	assert.True(t, total.Online)
	assert.Equal(t, sensor.StatusPartial, total.Status)

	st := s.StatsSnapshot().Total()
	assert.Equal(t, uint64(1), st.Power.Count)
	assert.Equal(t, 5.0, st.Power.Max)
}
