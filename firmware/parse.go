package firmware

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/arloliu/go-gsender/machine"
)

var errFieldFormat = errors.New("bad field format")

// parseStatus decodes the body of "<Idle|MPos:0,0,0|FS:0,0|...>".
func parseStatus(body string, units machine.Units) (machine.StatusUpdate, error) {
	var u machine.StatusUpdate

	fields := strings.Split(body, "|")
	name, sub, _ := strings.Cut(fields[0], ":")
	u.RunState = machine.ParseRunState(name)
	if u.RunState == machine.RunStateUnknown {
		return u, fmt.Errorf("unknown run state %q", name)
	}
	if sub != "" {
		n, err := strconv.Atoi(sub)
		if err != nil {
			return u, fmt.Errorf("sub-state %q: %w", sub, err)
		}
		u.SubState = n
	}

	for _, field := range fields[1:] {
		key, value, ok := strings.Cut(field, ":")
		if !ok {
			continue
		}

		var err error
		switch key {
		case "MPos":
			u.MachinePosition, err = parsePosition(value, units)
		case "WPos":
			u.WorkPosition, err = parsePosition(value, units)
		case "WCO":
			u.WorkOffset, err = parsePosition(value, units)
		case "FS":
			var nums []float64
			if nums, err = parseFloats(value, 2); err == nil {
				u.FeedRate, u.SpindleSpeed, u.HasFeed = nums[0], nums[1], true
			}
		case "F":
			var nums []float64
			if nums, err = parseFloats(value, 1); err == nil {
				u.FeedRate, u.HasFeed = nums[0], true
			}
		case "Ov":
			var nums []float64
			if nums, err = parseFloats(value, 3); err == nil {
				u.Overrides = machine.Overrides{Feed: int(nums[0]), Rapid: int(nums[1]), Spindle: int(nums[2])}
				u.HasOverrides = true
			}
		case "Bf":
			var nums []float64
			if nums, err = parseFloats(value, 2); err == nil {
				u.Buffer = machine.BufferState{PlannerBlocks: int(nums[0]), RxBytes: int(nums[1])}
				u.HasBuffer = true
			}
		case "Pn":
			u.Pins = value
		}
		if err != nil {
			return u, fmt.Errorf("field %s: %w", key, err)
		}
	}

	return u, nil
}

// parsePosition decodes "x,y,z[,a[,b[,c]]]".
func parsePosition(value string, units machine.Units) (machine.Position, error) {
	parts := strings.Split(value, ",")
	if len(parts) > len(machine.AllAxes()) {
		return machine.Position{}, fmt.Errorf("%w: %d axes", errFieldFormat, len(parts))
	}

	p := machine.NewPosition(units)
	for i, part := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(part), 64)
		if err != nil {
			return machine.Position{}, err
		}
		p = p.With(machine.AllAxes()[i], v)
	}

	return p, nil
}

func parseFloats(value string, want int) ([]float64, error) {
	parts := strings.Split(value, ",")
	if len(parts) < want {
		return nil, fmt.Errorf("%w: want %d values, got %q", errFieldFormat, want, value)
	}

	nums := make([]float64, want)
	for i := range want {
		v, err := strconv.ParseFloat(strings.TrimSpace(parts[i]), 64)
		if err != nil {
			return nil, err
		}
		nums[i] = v
	}

	return nums, nil
}

// parseProbe decodes "x,y,z:1".
func parseProbe(body string, units machine.Units) (machine.ProbeResult, error) {
	coords, flag, ok := strings.Cut(body, ":")
	if !ok {
		return machine.ProbeResult{}, fmt.Errorf("%w: missing success flag", errFieldFormat)
	}

	pos, err := parsePosition(coords, units)
	if err != nil {
		return machine.ProbeResult{}, err
	}

	return machine.ProbeResult{Position: pos, Success: flag == "1"}, nil
}

// parseParserState decodes the words of "[GC:G0 G54 G17 G21 G90 G94 M5 M9 T0 F0 S0]".
func parseParserState(body string) machine.ParserState {
	p := machine.ParserState{Known: true, Raw: body}

	var coolant []string
	for _, word := range strings.Fields(body) {
		if len(word) < 2 {
			continue
		}
		letter, num := word[0], word[1:]

		switch letter {
		case 'G':
			switch {
			case num == "20":
				p.Units = machine.UnitsInch
			case num == "21":
				p.Units = machine.UnitsMM
			case num == "90" || num == "91":
				p.Distance = word
			case num == "17" || num == "18" || num == "19":
				p.Plane = word
			case num == "93" || num == "94":
				p.FeedMode = word
			case len(num) >= 2 && num[0] == '5' && num[1] >= '4':
				p.WCS = word
			case num == "0" || num == "1" || num == "2" || num == "3" ||
				num == "80" || strings.HasPrefix(num, "38."):
				p.Motion = word
			}
		case 'M':
			switch num {
			case "3", "4", "5":
				p.Spindle = word
			case "7", "8", "9":
				coolant = append(coolant, word)
			}
		case 'T':
			p.Tool, _ = strconv.Atoi(num)
		case 'F':
			p.Feed, _ = strconv.ParseFloat(num, 64)
		case 'S':
			p.Speed, _ = strconv.ParseFloat(num, 64)
		}
	}
	p.Coolant = strings.Join(coolant, " ")

	return p
}
