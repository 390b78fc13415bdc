package analytics

import "netpulse/internal/models"

const (
	DegradedLatencyMs = 100
	SparklinePoints   = 20
)

// Health classifies a node by its most recent record.
func Health(latest *models.PingRecord) models.Health {
	switch {
	case latest == nil:
		return models.HealthUnknown
	case latest.Status == models.StatusDown:
		return models.HealthOffline
	case latest.PacketLoss || latest.LatencyMs > DegradedLatencyMs:
		return models.HealthDegraded
	}
	return models.HealthHealthy
}

// Topology builds the per-node view: latest record, health and the last
// 20 latencies with lost probes drawn as 0.
func Topology(records []models.PingRecord, nodes []models.Node) []models.TopologyEntry {
	history := make(map[string][]models.PingRecord, len(nodes))
	for _, r := range records {
		history[r.NodeID] = append(history[r.NodeID], r)
	}

	out := make([]models.TopologyEntry, 0, len(nodes))
	for _, n := range nodes {
		h := history[n.ID]
		entry := models.TopologyEntry{Node: n, Sparkline: sparkline(h)}
		if len(h) > 0 {
			latest := h[len(h)-1]
			entry.Latest = &latest
		}
		entry.Health = Health(entry.Latest)
		out = append(out, entry)
	}
	return out
}

func sparkline(history []models.PingRecord) []int {
	if len(history) > SparklinePoints {
		history = history[len(history)-SparklinePoints:]
	}
	out := make([]int, 0, len(history))
	for _, r := range history {
		if r.PacketLoss {
			out = append(out, 0)
			continue
		}
		out = append(out, r.LatencyMs)
	}
	return out
}
