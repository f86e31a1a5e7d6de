// Package codec encodes and decodes the robot-owned order tags that
// distinguish entry/stop/target orders and carry the originating intent
// id. Every broker callback is decoded through here; tags that don't
// start with the robot prefix are foreign orders the robot must never
// act on.
package codec

import "strings"

// Prefix is the robot's order-tag namespace.
const Prefix = "QTSW2"

// Leg identifies which role an order plays for its intent.
type Leg int

const (
	LegEntry Leg = iota
	LegStop
	LegTarget
)

func (l Leg) String() string {
	switch l {
	case LegStop:
		return "STOP"
	case LegTarget:
		return "TARGET"
	default:
		return "ENTRY"
	}
}

// Tag encodes a tag for the given intent id and leg. Entry tags carry no
// leg suffix: "QTSW2:{intent_id}"; stop/target carry
// "QTSW2:{intent_id}:STOP" / ":TARGET".
func Tag(intentID string, leg Leg) string {
	if leg == LegEntry {
		return Prefix + ":" + intentID
	}
	return Prefix + ":" + intentID + ":" + leg.String()
}

// Decoded is a successfully-decoded robot tag.
type Decoded struct {
	IntentID string
	Leg      Leg
}

// Decode parses a tag. ok is false for any tag not beginning with the
// robot's prefix — those belong to orders the robot didn't place and
// must be ignored outright.
func Decode(tag string) (Decoded, bool) {
	if !strings.HasPrefix(tag, Prefix+":") {
		return Decoded{}, false
	}
	rest := strings.TrimPrefix(tag, Prefix+":")
	parts := strings.SplitN(rest, ":", 2)
	d := Decoded{IntentID: parts[0], Leg: LegEntry}
	if len(parts) == 2 {
		switch parts[1] {
		case "STOP":
			d.Leg = LegStop
		case "TARGET":
			d.Leg = LegTarget
		default:
			return Decoded{}, false
		}
	}
	if d.IntentID == "" {
		return Decoded{}, false
	}
	return d, true
}
