package rule

import (
	"time"

	"github.com/fernhill-labs/hearth-core/internal/device"
)

// Metric identifies what a condition observes.
type Metric string

// Metrics known to the engine.
const (
	MetricTemperature Metric = "temperature"
	MetricHumidity    Metric = "humidity"
	MetricMotion      Metric = "motion"
)

// Operator is a numeric comparison in a condition.
type Operator string

// Comparison operators. OpEq is exact float64 equality on sensor
// readings; see Condition.compare.
const (
	OpGT  Operator = ">"
	OpLT  Operator = "<"
	OpGTE Operator = ">="
	OpLTE Operator = "<="
	OpEq  Operator = "=="
)

// Condition is the structural identity of an event.
//
// Two rules whose conditions compare equal as values share one Event,
// regardless of how the rule text spelled them. The zero Operator and
// Threshold apply to motion conditions, which carry an expected boolean
// instead.
type Condition struct {
	Metric    Metric
	Location  string
	Operator  Operator
	Threshold float64

	// Expected is the motion state that activates the condition.
	// The grammar only produces true, but evaluation honours the field.
	Expected bool
}

// holds reports whether the condition is satisfied by a reading.
//
// Exact equality for == on float64 readings is deliberate and matches
// how rules have always behaved; rules that depend on it exist.
func (c Condition) holds(value float64) bool {
	switch c.Operator {
	case OpGT:
		return value > c.Threshold
	case OpLT:
		return value < c.Threshold
	case OpGTE:
		return value >= c.Threshold
	case OpLTE:
		return value <= c.Threshold
	case OpEq:
		return value == c.Threshold
	default:
		return false
	}
}

// ActionSpec is the parsed description of what a rule does when its
// condition activates.
type ActionSpec struct {
	DeviceType device.Type

	// Location the action targets. Defaults to the condition's
	// location when the rule text omits it.
	Location string

	// Power is the desired on/off state.
	Power bool

	// Temperature is set when HasTemperature is true.
	Temperature    float64
	HasTemperature bool

	// Mode is the first non-numeric token after the power word,
	// e.g. "cool" or "eco". Empty when absent.
	Mode string

	// Extra holds unrecognised trailing tokens, preserved in order.
	// Devices that understand them may act on them.
	Extra []string
}

// Snapshot is one batch of sensor readings, keyed by location.
// Absent maps and absent locations simply don't match any event.
type Snapshot struct {
	Temp     map[string]float64 `json:"temp,omitempty"`
	Humidity map[string]float64 `json:"humidity,omitempty"`
	Motion   map[string]bool    `json:"motion,omitempty"`
}

// Rule is the persisted form of an automation rule.
type Rule struct {
	ID        string    `json:"id"`
	Text      string    `json:"text"`
	Enabled   bool      `json:"enabled"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
