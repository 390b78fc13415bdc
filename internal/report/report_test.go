package report

import (
	"bytes"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"netpulse/internal/models"
)

var cst = time.FixedZone("CST", 8*3600)

func testSession() models.Session {
	start := int64(1_700_000_000_000) // 2023/11/15 06:13:20 CST
	return models.Session{
		ID:        "s1",
		StartTime: start,
		EndTime:   start + 90_000,
		Nodes: []models.Node{
			{ID: "1", Name: "Local Gateway", Address: "192.168.10.1", Category: models.CategoryGateway},
			{ID: "2", Name: "Google DNS", Address: "8.8.8.8", Category: models.CategoryWAN},
		},
		Records: []models.PingRecord{
			{Timestamp: start + 1000, NodeID: "1", LatencyMs: 6, Status: models.StatusUp},
			{Timestamp: start + 1000, NodeID: "2", LatencyMs: 21, Status: models.StatusUp},
			{Timestamp: start + 2000, NodeID: "1", LatencyMs: 0, Status: models.StatusUp, PacketLoss: true},
			{Timestamp: start + 2000, NodeID: "2", LatencyMs: 0, Status: models.StatusDown, PacketLoss: true},
			{Timestamp: start + 3000, NodeID: "9", LatencyMs: 12, Status: models.StatusUp},
		},
	}
}

func TestWriteCSV(t *testing.T) {
	t.Parallel()

	sess := testSession()
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, sess, cst))

	lines := strings.Split(buf.String(), "\n")
	require.Len(t, lines, len(sess.Records)+1)
	assert.Equal(t, "Timestamp,Node Name,IP Address,Latency (ms),Status,Packet Loss", lines[0])
	assert.Equal(t, "2023/11/15 06:13:21,Local Gateway,192.168.10.1,6,Up,No", lines[1])
	assert.Equal(t, "2023/11/15 06:13:22,Google DNS,8.8.8.8,0,Down,Yes", lines[4])
	assert.Equal(t, "2023/11/15 06:13:23,Unknown,Unknown,12,Up,No", lines[5])

	for i, line := range lines[1:] {
		fields := strings.Split(line, ",")
		require.Len(t, fields, len(csvHeader), line)
		r := sess.Records[i]
		assert.Equal(t, strconv.Itoa(r.LatencyMs), fields[3])
		assert.Equal(t, string(r.Status), fields[4])
	}
}

func TestWriteCSV_Empty(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, models.Session{}, nil))
	assert.Equal(t, strings.Join(csvHeader, ","), buf.String())
}

func TestBuild(t *testing.T) {
	t.Parallel()

	sess := testSession()
	got := Build(sess, time.Now(), cst)

	assert.Equal(t, "s1", got.SessionID)
	assert.Equal(t, "2023/11/15 06:13", got.Start)
	assert.Equal(t, "2023/11/15 06:14", got.End)
	assert.Equal(t, 1.5, got.DurationMinutes)
	assert.Equal(t, 5, got.RecordCount)
	assert.Equal(t, 40.0, got.Overall.PacketLossRatePct)
	assert.Equal(t, models.GradePoor, got.Overall.Status)

	require.Len(t, got.Nodes, 2)
	assert.Equal(t, "Local Gateway", got.Nodes[0].Node.Name)
	assert.Equal(t, 50.0, got.Nodes[0].Stats.PacketLossRatePct)
	assert.Equal(t, 21, got.Nodes[1].Stats.AvgLatencyMs)
}

func TestBuild_OpenSession(t *testing.T) {
	t.Parallel()

	sess := testSession()
	sess.EndTime = 0
	now := time.UnixMilli(sess.StartTime + 3*60_000 + 20_000)

	got := Build(sess, now, cst)
	assert.Equal(t, "Now", got.End)
	assert.Equal(t, 3.3, got.DurationMinutes)
}

func TestFilename(t *testing.T) {
	t.Parallel()

	now := time.Date(2024, 5, 6, 7, 8, 9, 0, time.UTC)
	assert.Equal(t, "network_report_2024-05-06T07-08-09Z.csv", Filename(now))
}
