package harness

import (
	"github.com/roach88/sluice/internal/ir"
)

// Step operations.
const (
	OpRoute = "route"
	OpWrite = "write"
	OpPlan  = "plan"
	OpRead  = "read"
)

// TraceEvent records one executed step.
type TraceEvent struct {
	Seq     int64        `json:"seq"`
	Op      string       `json:"op"`
	Table   string       `json:"table"`
	Units   []string     `json:"units,omitempty"`
	Columns []string     `json:"columns,omitempty"`
	Values  []ir.IRValue `json:"values,omitempty"`
	Error   string       `json:"error,omitempty"`
	Message string       `json:"message,omitempty"`

	kind string
}

// Object renders the event for canonical serialization. Error messages are
// left out: they are for humans and may be reworded.
func (e TraceEvent) Object() ir.IRObject {
	obj := ir.IRObject{
		"seq":   ir.IRInt(e.Seq),
		"op":    ir.IRString(e.Op),
		"table": ir.IRString(e.Table),
	}
	if e.Units != nil {
		obj["units"] = stringArray(e.Units)
	}
	if e.Columns != nil {
		obj["columns"] = stringArray(e.Columns)
	}
	if e.Values != nil {
		vals := make(ir.IRArray, len(e.Values))
		for i, v := range e.Values {
			if v == nil {
				v = ir.IRNull{}
			}
			vals[i] = v
		}
		obj["values"] = vals
	}
	if e.Error != "" {
		obj["error"] = ir.IRString(e.Error)
	}
	return obj
}

func stringArray(ss []string) ir.IRArray {
	out := make(ir.IRArray, len(ss))
	for i, s := range ss {
		out[i] = ir.IRString(s)
	}
	return out
}

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass is true when every expect clause and assertion held.
	Pass bool `json:"pass"`

	// Trace holds one event per step, in order.
	Trace []TraceEvent `json:"trace"`

	// Errors holds failure messages; empty when Pass is true.
	Errors []string `json:"errors,omitempty"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []TraceEvent{},
		Errors: []string{},
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// AddTrace appends an event, numbering it from 1.
func (r *Result) AddTrace(e TraceEvent) {
	e.Seq = int64(len(r.Trace) + 1)
	r.Trace = append(r.Trace, e)
}
