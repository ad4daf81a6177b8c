package graphcodec

import (
	"fmt"
	"strings"
)

// Mode is the reconstruction policy a producer asks for.
type Mode uint8

const (
	// Subscribe rebuilds remote data as local handles pointing at the
	// origin. Raw values are withheld at encode time.
	Subscribe Mode = iota
	// Acquire copies data into locally owned values.
	Acquire
)

func (m Mode) String() string {
	if m == Acquire {
		return "acquire"
	}
	return "subscribe"
}

// ParseMode accepts "acquire" or "subscribe", case-insensitively.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "acquire":
		return Acquire, nil
	case "subscribe", "":
		return Subscribe, nil
	}
	return Subscribe, fmt.Errorf("graphcodec: unknown mode %q", s)
}

// Envelope keys.
const (
	keyObj     = "obj"
	keyMode    = "mode"
	keyMessage = "message"
)

// Message is an encoded graph together with the producer's policy.
type Message struct {
	Obj  any
	Mode Mode
}

// Map returns the wire form {"obj": ..., "mode": ...}.
func (m Message) Map() map[string]any {
	return map[string]any{keyObj: m.Obj, keyMode: m.Mode.String()}
}

// Nest wraps the message under "message" in an outer envelope carrying
// extra fields, e.g. a command name.
func (m Message) Nest(extra map[string]any) map[string]any {
	out := make(map[string]any, len(extra)+1)
	for k, v := range extra {
		out[k] = v
	}
	out[keyMessage] = m.Map()
	return out
}
