package trace

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/itchyny/gojq"

	"github.com/agenthands/trcarch/pkg/event"
)

// Query runs a jq filter over the JSON form of each event and collects
// every value it yields. Numbers come out as float64.
func Query(ctx context.Context, query string, events []event.Event) ([]any, error) {
	q, err := gojq.Parse(query)
	if err != nil {
		return nil, fmt.Errorf("trace: query: %w", err)
	}

	var out []any
	for _, e := range events {
		// gojq.Run wants plain JSON values, so round-trip through encoding/json
		b, err := event.JSON(e)
		if err != nil {
			return nil, err
		}
		var v any
		if err := json.Unmarshal(b, &v); err != nil {
			return nil, err
		}
		iter := q.RunWithContext(ctx, v)
		for {
			x, ok := iter.Next()
			if !ok {
				break
			}
			if err, ok := x.(error); ok {
				return nil, fmt.Errorf("trace: query: %w", err)
			}
			out = append(out, x)
		}
	}
	return out, nil
}
