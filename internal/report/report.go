// Package report renders a finished session: the summary with overall and
// per-node grades, and the CSV export.
package report

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
	"time"

	"netpulse/internal/analytics"
	"netpulse/internal/models"
)

const (
	unknown       = "Unknown"
	dateLayout    = "2006/01/02 15:04"
	stampLayout   = "2006/01/02 15:04:05"
	filenameStamp = "2006-01-02T15-04-05Z"
)

var csvHeader = []string{
	"Timestamp",
	"Node Name",
	"IP Address",
	"Latency (ms)",
	"Status",
	"Packet Loss",
}

type Summary struct {
	SessionID       string                 `json:"sessionId"`
	Start           string                 `json:"start"`
	End             string                 `json:"end"`
	DurationMinutes float64                `json:"durationMinutes"`
	RecordCount     int                    `json:"recordCount"`
	Overall         models.AggregatedStats `json:"overall"`
	Nodes           []models.NodeStats     `json:"nodes"`
}

// Build summarizes sess. A session without an end time is reported up to now.
func Build(sess models.Session, now time.Time, loc *time.Location) Summary {
	end := sess.EndTime
	endLabel := "Now"
	if sess.Closed() {
		endLabel = formatTime(end, dateLayout, loc)
	} else {
		end = now.UnixMilli()
	}
	minutes := float64(end-sess.StartTime) / 1000 / 60

	return Summary{
		SessionID:       sess.ID,
		Start:           formatTime(sess.StartTime, dateLayout, loc),
		End:             endLabel,
		DurationMinutes: math.Round(minutes*10) / 10,
		RecordCount:     len(sess.Records),
		Overall:         analytics.Aggregate(sess.Records),
		Nodes:           analytics.NodeBreakdown(sess.Records, sess.Nodes),
	}
}

// WriteCSV writes one comma-separated line per record after a header row.
// Fields are written as-is, without quoting.
func WriteCSV(w io.Writer, sess models.Session, loc *time.Location) error {
	bw := bufio.NewWriter(w)
	if _, err := bw.WriteString(strings.Join(csvHeader, ",")); err != nil {
		return err
	}

	for _, r := range sess.Records {
		name, address := unknown, unknown
		if n, ok := sess.NodeByID(r.NodeID); ok {
			name, address = n.Name, n.Address
		}
		loss := "No"
		if r.PacketLoss {
			loss = "Yes"
		}
		line := strings.Join([]string{
			formatTime(r.Timestamp, stampLayout, loc),
			name,
			address,
			strconv.Itoa(r.LatencyMs),
			string(r.Status),
			loss,
		}, ",")
		if _, err := bw.WriteString("\n" + line); err != nil {
			return err
		}
	}

	return bw.Flush()
}

// Filename is the suggested download name for an export made at now.
func Filename(now time.Time) string {
	return fmt.Sprintf("network_report_%s.csv", now.UTC().Format(filenameStamp))
}

func formatTime(ts int64, layout string, loc *time.Location) string {
	if loc == nil {
		loc = time.UTC
	}
	return time.UnixMilli(ts).In(loc).Format(layout)
}
