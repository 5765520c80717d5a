package artifact

import (
	"strings"
)

// Kind names one of the three documents kept per stage.
type Kind string

const (
	// KindInputs holds operator-supplied parameters, validated once.
	KindInputs Kind = "inputs"

	// KindDiscovery holds facts interrogated from the target environment.
	KindDiscovery Kind = "discovery"

	// KindOutputs is the stage's public contract, written only after every
	// step has succeeded.
	KindOutputs Kind = "outputs"
)

// Kinds lists all document kinds in storage order.
var Kinds = []Kind{KindInputs, KindDiscovery, KindOutputs}

// Document is one parsed artifact document.
type Document map[string]interface{}

// Field returns the value at a dotted path (e.g. "dns.zoneId").
func (d Document) Field(path string) (interface{}, bool) {
	parts := strings.Split(path, ".")
	var current interface{} = map[string]interface{}(d)

	for _, part := range parts {
		m, ok := current.(map[string]interface{})
		if !ok {
			return nil, false
		}
		current, ok = m[part]
		if !ok {
			return nil, false
		}
	}

	return current, true
}

// FieldOrDefault returns the value at a dotted path, or def when absent.
func (d Document) FieldOrDefault(path string, def interface{}) interface{} {
	if v, ok := d.Field(path); ok {
		return v
	}
	return def
}

// String returns the string value at a dotted path, or "" when absent or
// not a string.
func (d Document) String(path string) string {
	v, ok := d.Field(path)
	if !ok {
		return ""
	}
	s, _ := v.(string)
	return s
}

// Bool returns the boolean value at a dotted path; absent or non-boolean
// values read as false.
func (d Document) Bool(path string) bool {
	v, ok := d.Field(path)
	if !ok {
		return false
	}
	b, _ := v.(bool)
	return b
}

// ReadinessFlag returns the name of the boolean a stage's outputs must
// carry for the named next stage ("readyForStageEdge" for "edge").
func ReadinessFlag(nextStage string) string {
	if nextStage == "" {
		return ""
	}
	return "readyForStage" + strings.ToUpper(nextStage[:1]) + nextStage[1:]
}

// ReadyFor reports whether this outputs document declares readiness for
// the named next stage.
func (d Document) ReadyFor(nextStage string) bool {
	flag := ReadinessFlag(nextStage)
	if flag == "" {
		return false
	}
	return d.Bool(flag)
}
