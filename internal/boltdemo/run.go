// Package boltdemo provides a minimal session.RunFunc that demonstrates wiring an application
// backend into the Bolt protocol layer: it understands two toy statements well enough to drive
// the full RUN/PULL_ALL/DISCARD_ALL/RECORD/SUCCESS/FAILURE exchange end to end.
package boltdemo

import (
	"context"
	"fmt"
	"strings"

	"github.com/davebshow/asyncbolt/internal/bolt/packstream"
	"github.com/davebshow/asyncbolt/internal/bolt/session"
)

// RunFunc implements session.RunFunc. It supports:
//   - "RETURN 1"            -> a single record [1]
//   - "ECHO <value>"        -> a single record echoing the "value" parameter if present,
//                              otherwise the literal text after ECHO
//   - anything else         -> a syntax error, reported as FAILURE on RUN
func RunFunc(_ context.Context, statement string, parameters *packstream.Map) (session.RunResult, error) {
	stmt := strings.TrimSpace(statement)
	switch {
	case strings.EqualFold(stmt, "RETURN 1"):
		return oneRecord([]interface{}{"n"}, []interface{}{int64(1)}), nil
	case strings.HasPrefix(strings.ToUpper(stmt), "ECHO"):
		val := strings.TrimSpace(stmt[len("ECHO"):])
		if parameters != nil {
			if v, ok := parameters.Get("value"); ok {
				val = fmt.Sprintf("%v", v)
			}
		}
		return oneRecord([]interface{}{"echo"}, []interface{}{val}), nil
	default:
		return session.RunResult{}, fmt.Errorf("syntax error: unrecognized statement %q", stmt)
	}
}

func oneRecord(fields, row []interface{}) session.RunResult {
	records := make(chan []interface{}, 1)
	records <- row
	close(records)
	return session.RunResult{
		Fields:  fields,
		Records: records,
		Summary: func() (*packstream.Map, error) {
			m := packstream.NewMap()
			m.Set("type", "r")
			return m, nil
		},
	}
}
