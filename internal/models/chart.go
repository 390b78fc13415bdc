package models

import "encoding/json"

// ChartPoint is one per-tick bucket of the latency chart. A nil latency
// marks a lost probe.
type ChartPoint struct {
	Timestamp     int64
	FormattedTime string
	Latency       map[string]*int
}

// MarshalJSON flattens the per-node latencies next to the time keys,
// e.g. {"timestamp":1,"formattedTime":"08:00:01","1":3,"2":null}.
func (p ChartPoint) MarshalJSON() ([]byte, error) {
	out := make(map[string]interface{}, len(p.Latency)+2)
	for id, v := range p.Latency {
		if v == nil {
			out[id] = nil
			continue
		}
		out[id] = *v
	}
	out["timestamp"] = p.Timestamp
	out["formattedTime"] = p.FormattedTime
	return json.Marshal(out)
}
