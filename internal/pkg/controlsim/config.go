package controlsim

import (
	"fmt"
	"io/ioutil"
	"math"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/go-openapi/errors"
	"github.com/go-openapi/validate"
	pkgerrors "github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// StateName names a state of a remote state definition
type StateName string

// RunMode decides how a controllable state without a delay is timed
type RunMode string

const (
	RunModeFixedDelay   RunMode = "fixedDelay"
	RunModeUntilEndTime RunMode = "runUntilEndTime"
)

// Duration accepts either a number of seconds or a Go duration string
type Duration time.Duration

// maxSeconds is the longest Duration expressible in seconds
const maxSeconds = float64(math.MaxInt64) / float64(time.Second)

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind != yaml.ScalarNode {
		return fmt.Errorf("line %d: delay must be a number of seconds or a duration", value.Line)
	}

	s := strings.TrimSpace(value.Value)
	if secs, err := strconv.ParseFloat(s, 64); err == nil {
		if math.IsNaN(secs) || math.Abs(secs) >= maxSeconds {
			return fmt.Errorf("line %d: delay %q out of range, at most %.0f seconds", value.Line, s, maxSeconds)
		}
		*d = Duration(secs * float64(time.Second))
		return nil
	}

	v, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("line %d: bad delay %q: %v", value.Line, s, err)
	}

	*d = Duration(v)
	return nil
}

// StateConfig is how the simulator treats one state
type StateConfig struct {
	// whether the simulator drives transitions out of this state
	Controllable bool `yaml:"controllable"`

	Delay       Duration `yaml:"delay"`
	Mode        RunMode  `yaml:"mode"`
	OnSuccess   string   `yaml:"onSuccess"`
	WorkMessage string   `yaml:"workMessage"`
}

// RunMode returns the configured mode, defaulting to fixedDelay
func (c StateConfig) RunMode() RunMode {
	if c.Mode == "" {
		return RunModeFixedDelay
	}
	return c.Mode
}

// schedule works out when to fire OnSuccess; ok is false if the state is not
// fully configured for that
func (c StateConfig) schedule(now time.Time, endTime time.Time) (next time.Time, ok bool) {
	if c.OnSuccess == "" {
		return time.Time{}, false
	}

	hasDelay := c.Delay > 0
	untilEnd := c.RunMode() == RunModeUntilEndTime

	switch {
	case hasDelay && !untilEnd:
		return now.Add(time.Duration(c.Delay)), true
	case untilEnd && !hasDelay:
		return endTime, true
	}
	return time.Time{}, false
}

// DefinitionConfig holds the simulated behaviour of one state definition
type DefinitionConfig struct {
	Slug   string                    `yaml:"slug"`
	States map[StateName]StateConfig `yaml:"states"`
}

// StateConfig returns the configuration of a state, if there is one
func (d *DefinitionConfig) StateConfig(name StateName) (StateConfig, bool) {
	if d == nil {
		return StateConfig{}, false
	}
	c, ok := d.States[name]
	return c, ok
}

// SimulationConfigs is the simulator configuration file
type SimulationConfigs struct {
	Definitions []DefinitionConfig `yaml:"definitions"`
}

// DefinitionConfigForSlug resolves a remote definition slug
func (c *SimulationConfigs) DefinitionConfigForSlug(slug string) (*DefinitionConfig, bool) {
	for i := range c.Definitions {
		if c.Definitions[i].Slug == slug {
			return &c.Definitions[i], true
		}
	}
	return nil, false
}

// HasState reports whether any definition configures the named state
func (c *SimulationConfigs) HasState(name StateName) bool {
	for _, def := range c.Definitions {
		if _, ok := def.States[name]; ok {
			return true
		}
	}
	return false
}

// Validate reports configuration problems.  States with problems are still
// usable; the simulator logs and skips them when they come up.
func (c *SimulationConfigs) Validate() error {
	var res []error
	seen := map[string]bool{}

	for i, def := range c.Definitions {
		path := fmt.Sprintf("definitions[%d]", i)

		if err := validate.RequiredString(path+".slug", "body", def.Slug); err != nil {
			res = append(res, err)
		} else if seen[def.Slug] {
			res = append(res, errors.New(http.StatusUnprocessableEntity, "%s.slug: duplicate definition %s", path, def.Slug))
		}
		seen[def.Slug] = true

		names := make([]string, 0, len(def.States))
		for name := range def.States {
			names = append(names, string(name))
		}
		sort.Strings(names)

		for _, name := range names {
			res = append(res, def.States[StateName(name)].problems(fmt.Sprintf("%s.states.%s", path, name))...)
		}
	}

	if len(res) > 0 {
		return errors.CompositeValidationError(res...)
	}
	return nil
}

func (c StateConfig) problems(path string) []error {
	var res []error

	if err := validate.Enum(path+".mode", "body", string(c.RunMode()), []interface{}{string(RunModeFixedDelay), string(RunModeUntilEndTime)}); err != nil {
		res = append(res, err)
	}

	if err := validate.MinimumInt(path+".delay", "body", int64(c.Delay), 0, false); err != nil {
		res = append(res, err)
	}

	if !c.Controllable {
		return res
	}

	if err := validate.RequiredString(path+".onSuccess", "body", c.OnSuccess); err != nil {
		res = append(res, err)
	}

	hasDelay := c.Delay > 0
	untilEnd := c.RunMode() == RunModeUntilEndTime
	if hasDelay && untilEnd {
		res = append(res, errors.New(http.StatusUnprocessableEntity, "%s: delay and runUntilEndTime are mutually exclusive", path))
	}
	if !hasDelay && !untilEnd {
		res = append(res, errors.New(http.StatusUnprocessableEntity, "%s: controllable state needs a delay or runUntilEndTime", path))
	}

	return res
}

// ParseConfig decodes a YAML simulation configuration.  Decoding errors are
// returned; configuration problems are left to Validate.
func ParseConfig(data []byte) (*SimulationConfigs, error) {
	var c SimulationConfigs
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, pkgerrors.Wrap(err, "decoding simulation config")
	}
	return &c, nil
}

// LoadConfig reads a YAML simulation configuration from a file
func LoadConfig(fileName string) (*SimulationConfigs, error) {
	data, err := ioutil.ReadFile(fileName)
	if err != nil {
		return nil, pkgerrors.Wrapf(err, "reading simulation config %s", fileName)
	}

	c, err := ParseConfig(data)
	if err != nil {
		return nil, pkgerrors.Wrapf(err, "loading %s", fileName)
	}
	return c, nil
}
