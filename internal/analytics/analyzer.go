package analytics

import (
	"math"

	"netpulse/internal/models"
)

const (
	ExcellentScore = 90
	GoodScore      = 80
	FairScore      = 60
)

// Baseline is the result of aggregating an empty record set.
func Baseline() models.AggregatedStats {
	return models.AggregatedStats{Score: 100, Status: models.GradeExcellent}
}

// Aggregate reduces records into latency, jitter, loss and a 0-100 quality
// score. Lost or down records count towards the loss rate only.
func Aggregate(records []models.PingRecord) models.AggregatedStats {
	if len(records) == 0 {
		return Baseline()
	}

	valid := make([]float64, 0, len(records))
	maxLatency := 0
	for _, r := range records {
		if r.PacketLoss || r.Status != models.StatusUp {
			continue
		}
		valid = append(valid, float64(r.LatencyMs))
		if r.LatencyMs > maxLatency {
			maxLatency = r.LatencyMs
		}
	}

	avg := mean(valid)
	jitter := sampleStdDev(valid, avg)
	lossRate := float64(len(records)-len(valid)) / float64(len(records)) * 100

	score := 100.0
	if avg > 50 {
		score -= 10
	}
	if avg > 150 {
		score -= 20
	}
	if maxLatency > 200 {
		score -= 10
	}
	if jitter > 30 {
		score -= 15
	}
	score -= lossRate * 10

	rounded := int(math.Round(math.Max(0, math.Min(100, score))))

	return models.AggregatedStats{
		AvgLatencyMs:      int(math.Round(avg)),
		MaxLatencyMs:      maxLatency,
		JitterMs:          int(math.Round(jitter)),
		PacketLossRatePct: math.Round(lossRate*100) / 100,
		Score:             rounded,
		Status:            Grade(rounded),
	}
}

// Grade maps a score to its label: >=90 Excellent, >=80 Good, >=60 Fair.
func Grade(score int) models.Grade {
	switch {
	case score >= ExcellentScore:
		return models.GradeExcellent
	case score >= GoodScore:
		return models.GradeGood
	case score >= FairScore:
		return models.GradeFair
	}
	return models.GradePoor
}

// NodeBreakdown aggregates each node's records independently, in node order.
func NodeBreakdown(records []models.PingRecord, nodes []models.Node) []models.NodeStats {
	byNode := make(map[string][]models.PingRecord, len(nodes))
	for _, r := range records {
		byNode[r.NodeID] = append(byNode[r.NodeID], r)
	}

	out := make([]models.NodeStats, 0, len(nodes))
	for _, n := range nodes {
		out = append(out, models.NodeStats{Node: n, Stats: Aggregate(byNode[n.ID])})
	}
	return out
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}

	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// sampleStdDev divides by n-1 and is 0 for fewer than two values.
func sampleStdDev(values []float64, mean float64) float64 {
	if len(values) < 2 {
		return 0
	}

	var variance float64
	for _, v := range values {
		diff := v - mean
		variance += diff * diff
	}
	return math.Sqrt(variance / float64(len(values)-1))
}
