package sensor

import (
	"math"
	"sync/atomic"
)

// fakeChannel describes one placeholder channel.
type fakeChannel struct {
	raw     string
	group   string
	voltage float64
	current float64
	swing   float64
}

var fakeChannels = []fakeChannel{
	{raw: "CPU", group: GroupPS, voltage: 5.0, current: 1.0, swing: 0.2},
	{raw: "GPU", group: GroupPL, voltage: 12.0, current: 0.5, swing: 0.1},
}

// fakeSource provides the placeholder CPU and GPU channels used when no
// hardware is available in testing mode. Readings vary deterministically
// with every call.
type fakeSource struct {
	profile Profile
	calls   atomic.Uint64
}

func newFakeSource(profile Profile) *fakeSource {
	return &fakeSource{profile: profile}
}

func (s *fakeSource) Name() string {
	return BackendFake
}

func (s *fakeSource) Discover() ([]Descriptor, error) {
	descs := make([]Descriptor, 0, len(fakeChannels))
	for i, ch := range fakeChannels {
		d := s.profile.describe(ch.raw, CategorySystem, i)
		if d.Group == "" {
			d.Group = ch.group
		}
		descs = append(descs, d)
	}

	return descs, nil
}

func (s *fakeSource) Read(d Descriptor) Reading {
	i, ok := d.Handle.(int)
	if !ok || i < 0 || i >= len(fakeChannels) {
		return Offline(d, "invalid handle")
	}

	ch := fakeChannels[i]
	phase := float64(s.calls.Add(1)) / 10

	r := newReading(d)
	r.Voltage = ch.voltage
	if i%2 == 0 {
		r.Current = ch.current + ch.swing*math.Sin(phase)
	} else {
		r.Current = ch.current + ch.swing*math.Cos(phase)
	}
	r.Power = r.Voltage * r.Current
	r.Online = true
	r.Status = StatusNormal

	return r
}
