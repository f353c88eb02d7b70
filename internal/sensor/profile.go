package sensor

import (
	"os"
	"strings"

	"codeberg.org/mutker/xlnpwmon/internal/errors"
	"gopkg.in/yaml.v3"
)

// Threshold holds warning and critical power levels in watts.
type Threshold struct {
	Warning  float64 `yaml:"warning"`
	Critical float64 `yaml:"critical"`
}

// Profile maps raw discovery identifiers to display names, sub-system
// groups and thresholds. Every map is keyed by raw name.
type Profile struct {
	Names      map[string]string    `yaml:"names"`
	Groups     map[string]string    `yaml:"groups"`
	Thresholds map[string]Threshold `yaml:"thresholds"`
	Primary    string               `yaml:"primary"`
}

var (
	defaultThreshold = Threshold{Warning: 3, Critical: 5}

	// railThresholds match rail labels by substring.
	railThresholds = []struct {
		rail string
		Threshold
	}{
		{"VDD_IN", Threshold{Warning: 15, Critical: 20}},
		{"VDD_CPU_GPU_CV", Threshold{Warning: 10, Critical: 15}},
		{"VDD_SOC", Threshold{Warning: 5, Critical: 8}},
	}

	// TotalThreshold applies to every synthetic total channel.
	TotalThreshold = Threshold{Warning: 25, Critical: 35}
)

// LoadProfile reads a YAML board profile.
func LoadProfile(path string) (Profile, error) {
	errFactory := errors.New()

	data, err := os.ReadFile(path)
	if err != nil {
		return Profile{}, errFactory.Wrap(ErrInvalidProfile, err)
	}

	var p Profile
	if err := yaml.Unmarshal(data, &p); err != nil {
		return Profile{}, errFactory.Wrap(ErrInvalidProfile, err)
	}

	// Group names are matched case-insensitively.
	for raw, group := range p.Groups {
		group = strings.ToLower(strings.TrimSpace(group))
		if group == "" {
			return Profile{}, errFactory.WithData(ErrInvalidProfile, "empty group for "+raw)
		}
		p.Groups[raw] = group
	}

	for raw, th := range p.Thresholds {
		if th.Warning < 0 || th.Critical < th.Warning {
			return Profile{}, errFactory.WithData(ErrInvalidProfile, "bad threshold for "+raw)
		}
	}

	return p, nil
}

// Merge returns p overlaid with over. Entries in over win.
func (p Profile) Merge(over Profile) Profile {
	out := Profile{
		Names:      mergeMap(p.Names, over.Names),
		Groups:     mergeMap(p.Groups, over.Groups),
		Thresholds: mergeMap(p.Thresholds, over.Thresholds),
		Primary:    p.Primary,
	}
	if over.Primary != "" {
		out.Primary = over.Primary
	}

	return out
}

func mergeMap[V any](base, over map[string]V) map[string]V {
	out := make(map[string]V, len(base)+len(over))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range over {
		out[k] = v
	}

	return out
}

// DisplayName returns the friendly name for raw, or raw itself.
func (p Profile) DisplayName(raw string) string {
	if name, ok := p.Names[raw]; ok && name != "" {
		return name
	}

	return raw
}

// Group returns the sub-system group of raw, or "".
func (p Profile) Group(raw string) string {
	return p.Groups[raw]
}

// Threshold returns the configured threshold for raw, falling back to the
// rail table and then to the default.
func (p Profile) Threshold(raw string) Threshold {
	if th, ok := p.Thresholds[raw]; ok {
		return th
	}

	for _, rt := range railThresholds {
		if strings.Contains(raw, rt.rail) {
			return rt.Threshold
		}
	}

	return defaultThreshold
}

// describe builds a Descriptor for raw using the profile tables.
func (p Profile) describe(raw string, category Category, handle any) Descriptor {
	th := p.Threshold(raw)

	return Descriptor{
		Name:     p.DisplayName(raw),
		RawName:  raw,
		Category: category,
		Group:    p.Group(raw),
		Warning:  th.Warning,
		Critical: th.Critical,
		Handle:   handle,
	}
}
