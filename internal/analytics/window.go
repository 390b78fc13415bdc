package analytics

import (
	"sort"
	"time"

	"netpulse/internal/models"
)

const (
	LiveWindowMs        int64 = 60_000
	ChartBuckets              = 60
	ChartRecordsPerNode       = 120
	AnomalyLatencyMs          = 150
	AnomalyLimit              = 5
)

// LiveWindow returns the records newer than now-60s.
func LiveWindow(records []models.PingRecord, now int64) []models.PingRecord {
	cutoff := now - LiveWindowMs
	out := make([]models.PingRecord, 0, len(records))
	for _, r := range records {
		if r.Timestamp > cutoff {
			out = append(out, r)
		}
	}
	return out
}

// ChartSeries buckets the most recent records by tick timestamp and returns
// at most the last 60 buckets in ascending time order.
func ChartSeries(records []models.PingRecord, nodeCount int, loc *time.Location) []models.ChartPoint {
	if len(records) == 0 {
		return []models.ChartPoint{}
	}
	if limit := nodeCount * ChartRecordsPerNode; limit > 0 && len(records) > limit {
		records = records[len(records)-limit:]
	}

	buckets := make(map[int64]*models.ChartPoint)
	for _, r := range records {
		p, ok := buckets[r.Timestamp]
		if !ok {
			p = &models.ChartPoint{
				Timestamp:     r.Timestamp,
				FormattedTime: FormatClock(r.Timestamp, loc),
				Latency:       make(map[string]*int),
			}
			buckets[r.Timestamp] = p
		}
		if r.PacketLoss {
			p.Latency[r.NodeID] = nil
			continue
		}
		latency := r.LatencyMs
		p.Latency[r.NodeID] = &latency
	}

	points := make([]models.ChartPoint, 0, len(buckets))
	for _, p := range buckets {
		points = append(points, *p)
	}
	sort.Slice(points, func(i, j int) bool {
		return points[i].Timestamp < points[j].Timestamp
	})
	if len(points) > ChartBuckets {
		points = points[len(points)-ChartBuckets:]
	}
	return points
}

// IsAnomaly flags lost probes and latency above 150ms.
func IsAnomaly(r models.PingRecord) bool {
	return r.PacketLoss || r.LatencyMs > AnomalyLatencyMs
}

// Anomalies returns up to limit flagged records, newest first.
func Anomalies(records []models.PingRecord, limit int) []models.PingRecord {
	out := make([]models.PingRecord, 0, limit)
	for i := len(records) - 1; i >= 0 && len(out) < limit; i-- {
		if IsAnomaly(records[i]) {
			out = append(out, records[i])
		}
	}
	return out
}

// FormatClock renders a unix-ms timestamp as HH:MM:SS in loc.
func FormatClock(ts int64, loc *time.Location) string {
	return time.UnixMilli(ts).In(location(loc)).Format("15:04:05")
}

func location(loc *time.Location) *time.Location {
	if loc == nil {
		return time.UTC
	}
	return loc
}
