package analytics

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"netpulse/internal/models"
)

func TestHealth(t *testing.T) {
	t.Parallel()

	r := func(rec models.PingRecord) *models.PingRecord { return &rec }

	assert.Equal(t, models.HealthUnknown, Health(nil))
	assert.Equal(t, models.HealthOffline, Health(r(down(1, "1"))))
	assert.Equal(t, models.HealthDegraded, Health(r(lost(1, "1"))))
	assert.Equal(t, models.HealthDegraded, Health(r(up(1, "1", 101))))
	assert.Equal(t, models.HealthHealthy, Health(r(up(1, "1", 100))))
}

func TestTopology(t *testing.T) {
	t.Parallel()

	nodes := []models.Node{{ID: "1"}, {ID: "2"}, {ID: "3"}}
	var records []models.PingRecord
	for i := 0; i < 25; i++ {
		records = append(records, up(int64(i), "1", i))
	}
	records = append(records, up(30, "2", 12), lost(31, "2"))

	got := Topology(records, nodes)
	require.Len(t, got, 3)

	assert.Equal(t, models.HealthHealthy, got[0].Health)
	require.Len(t, got[0].Sparkline, SparklinePoints)
	assert.Equal(t, 5, got[0].Sparkline[0])
	assert.Equal(t, 24, got[0].Latest.LatencyMs)

	assert.Equal(t, models.HealthDegraded, got[1].Health)
	assert.Equal(t, []int{12, 0}, got[1].Sparkline)

	assert.Equal(t, models.HealthUnknown, got[2].Health)
	assert.Nil(t, got[2].Latest)
	assert.Empty(t, got[2].Sparkline)
}
