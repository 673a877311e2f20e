package rule

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/fernhill-labs/hearth-core/internal/device"
)

// Parse turns rule text into a condition and an action spec.
//
// Grammar:
//
//	if <condition> then <action>
//
//	condition: motion in <location>
//	         | <temp|temperature|humidity> <op> <number> in <location>
//	action:    [<location>] <ac|light|fan> <on|off> [temperature] [mode] [extra...]
//
// Parsing is case-insensitive and whitespace-tolerant. When the action
// omits a location it inherits the condition's. After the power word,
// the first numeric token becomes the temperature and the first
// non-numeric token the mode; anything else is kept verbatim in Extra.
func Parse(text string) (Condition, ActionSpec, error) {
	normalized := strings.ToLower(strings.TrimSpace(text))

	if !strings.HasPrefix(normalized, "if ") {
		return Condition{}, ActionSpec{}, fmt.Errorf("%w: rule must start with \"if\"", ErrParse)
	}

	body := strings.TrimPrefix(normalized, "if ")
	condText, actionText, found := strings.Cut(body, " then ")
	if !found {
		return Condition{}, ActionSpec{}, fmt.Errorf("%w: missing \"then\"", ErrParse)
	}

	cond, err := parseCondition(condText)
	if err != nil {
		return Condition{}, ActionSpec{}, err
	}

	spec, err := parseAction(actionText)
	if err != nil {
		return Condition{}, ActionSpec{}, err
	}

	if spec.Location == "" {
		spec.Location = cond.Location
	}

	return cond, spec, nil
}

func parseCondition(text string) (Condition, error) {
	tokens := strings.Fields(text)
	if len(tokens) == 0 {
		return Condition{}, fmt.Errorf("%w: empty condition", ErrParse)
	}

	if tokens[0] == "motion" {
		if len(tokens) < 3 || tokens[1] != "in" {
			return Condition{}, fmt.Errorf("%w: motion condition must be \"motion in <location>\"", ErrParse)
		}
		return Condition{
			Metric:   MetricMotion,
			Location: strings.Join(tokens[2:], " "),
			Expected: true,
		}, nil
	}

	metric, err := parseMetric(tokens[0])
	if err != nil {
		return Condition{}, err
	}

	if len(tokens) < 5 {
		return Condition{}, fmt.Errorf("%w: condition must be \"<metric> <op> <number> in <location>\"", ErrParse)
	}

	op, err := parseOperator(tokens[1])
	if err != nil {
		return Condition{}, err
	}

	threshold, err := strconv.ParseFloat(tokens[2], 64)
	if err != nil {
		return Condition{}, fmt.Errorf("%w: threshold %q is not a number", ErrParse, tokens[2])
	}

	if tokens[3] != "in" {
		return Condition{}, fmt.Errorf("%w: expected \"in\" before location, got %q", ErrParse, tokens[3])
	}

	location := strings.Join(tokens[4:], " ")
	if location == "" {
		return Condition{}, fmt.Errorf("%w: missing location", ErrParse)
	}

	return Condition{
		Metric:    metric,
		Location:  location,
		Operator:  op,
		Threshold: threshold,
	}, nil
}

func parseMetric(token string) (Metric, error) {
	switch token {
	case "temp", "temperature":
		return MetricTemperature, nil
	case "humidity":
		return MetricHumidity, nil
	case "motion":
		return MetricMotion, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownMetric, token)
	}
}

func parseOperator(token string) (Operator, error) {
	switch Operator(token) {
	case OpGT, OpLT, OpGTE, OpLTE, OpEq:
		return Operator(token), nil
	default:
		return "", fmt.Errorf("%w: unknown operator %q", ErrParse, token)
	}
}

func parseAction(text string) (ActionSpec, error) {
	tokens := strings.Fields(text)
	if len(tokens) < 2 {
		return ActionSpec{}, fmt.Errorf("%w: action must be \"[location] <device> <on|off> ...\"", ErrParse)
	}

	// The power word anchors the action: the token before it is the
	// device type, anything before that the location.
	power := -1
	for i, tok := range tokens {
		if tok == "on" || tok == "off" {
			power = i
			break
		}
	}
	if power < 1 {
		return ActionSpec{}, fmt.Errorf("%w: action missing \"on\" or \"off\"", ErrParse)
	}

	deviceType, err := device.ParseType(tokens[power-1])
	if err != nil {
		return ActionSpec{}, fmt.Errorf("%w: %q", ErrUnknownDeviceType, tokens[power-1])
	}

	spec := ActionSpec{
		DeviceType: deviceType,
		Location:   strings.Join(tokens[:power-1], " "),
		Power:      tokens[power] == "on",
	}

	// First numeric token after the power word is the temperature, the
	// first non-numeric token the mode. Everything else is opaque.
	for _, tok := range tokens[power+1:] {
		if v, err := strconv.ParseFloat(tok, 64); err == nil {
			if !spec.HasTemperature {
				spec.Temperature = v
				spec.HasTemperature = true
				continue
			}
		} else if spec.Mode == "" {
			spec.Mode = tok
			continue
		}
		spec.Extra = append(spec.Extra, tok)
	}

	return spec, nil
}
