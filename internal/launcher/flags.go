package launcher

import (
	"sort"
	"strconv"
	"strings"
)

// Flags are the launcher-level options passed to the trainer ahead of the override
// list. Zero values are omitted from the argument vector.
type Flags struct {
	Jobs             int               `yaml:"jobs" json:"jobs,omitempty"`
	Interactive      bool              `yaml:"interactive" json:"interactive,omitempty"`
	SingleThread     bool              `yaml:"single_thread" json:"single_thread,omitempty"`
	Seeds            []int             `yaml:"seeds" json:"seeds,omitempty"`
	Experiment       string            `yaml:"experiment" json:"experiment,omitempty"`
	Tags             map[string]string `yaml:"tags" json:"tags,omitempty"`
	DisableLogging   bool              `yaml:"disable_logging" json:"disable_logging,omitempty"`
	DisableCallbacks bool              `yaml:"disable_callbacks" json:"disable_callbacks,omitempty"`
	CooldownFactor   float64           `yaml:"cooldown_factor" json:"cooldown_factor,omitempty"`
	Sweep            bool              `yaml:"sweep" json:"sweep,omitempty"`
}

// Tokens renders the flags as trainer arguments. Seeds are not included; they
// travel as a seed override.
func (f Flags) Tokens() []string {
	var out []string
	if f.Jobs > 0 {
		out = append(out, "--jobs="+strconv.Itoa(f.Jobs))
	}
	if f.Interactive {
		out = append(out, "--interactive")
	}
	if f.SingleThread {
		out = append(out, "--single-thread")
	}
	if f.Experiment != "" {
		out = append(out, "--experiment="+f.Experiment)
	}
	if len(f.Tags) > 0 {
		out = append(out, "--tags="+f.tagList())
	}
	if f.DisableLogging {
		out = append(out, "--disable-logging")
	}
	if f.DisableCallbacks {
		out = append(out, "--disable-callbacks")
	}
	if f.CooldownFactor > 0 {
		out = append(out, "--cooldown-factor="+strconv.FormatFloat(f.CooldownFactor, 'g', -1, 64))
	}
	if f.Sweep {
		out = append(out, "--sweep")
	}
	return out
}

func (f Flags) tagList() string {
	keys := make([]string, 0, len(f.Tags))
	for k := range f.Tags {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	pairs := make([]string, 0, len(keys))
	for _, k := range keys {
		pairs = append(pairs, k+":"+f.Tags[k])
	}
	return strings.Join(pairs, ",")
}

// SeedValue joins the seed list into a sweep value, "" when there are no seeds.
func (f Flags) SeedValue() string {
	parts := make([]string, 0, len(f.Seeds))
	for _, s := range f.Seeds {
		parts = append(parts, strconv.Itoa(s))
	}
	return strings.Join(parts, ",")
}

// Merge returns f with every set field of o applied on top. Switches are
// sticky: a switch set on either side stays set.
func (f Flags) Merge(o Flags) Flags {
	out := f
	if o.Jobs > 0 {
		out.Jobs = o.Jobs
	}
	if len(o.Seeds) > 0 {
		out.Seeds = append([]int(nil), o.Seeds...)
	}
	if o.Experiment != "" {
		out.Experiment = o.Experiment
	}
	if o.CooldownFactor > 0 {
		out.CooldownFactor = o.CooldownFactor
	}
	if len(f.Tags)+len(o.Tags) > 0 {
		out.Tags = make(map[string]string, len(f.Tags)+len(o.Tags))
		for k, v := range f.Tags {
			out.Tags[k] = v
		}
		for k, v := range o.Tags {
			out.Tags[k] = v
		}
	}
	out.Interactive = f.Interactive || o.Interactive
	out.SingleThread = f.SingleThread || o.SingleThread
	out.DisableLogging = f.DisableLogging || o.DisableLogging
	out.DisableCallbacks = f.DisableCallbacks || o.DisableCallbacks
	out.Sweep = f.Sweep || o.Sweep
	return out
}
