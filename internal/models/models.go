package models

type Category string

const (
	CategoryLocal   Category = "Local"
	CategoryGateway Category = "Gateway"
	CategoryWAN     Category = "WAN"
	CategoryService Category = "Service"
)

type LinkStatus string

const (
	StatusUp   LinkStatus = "Up"
	StatusDown LinkStatus = "Down"
)

// Grade is the categorical label derived from a quality score.
type Grade string

const (
	GradeExcellent Grade = "Excellent"
	GradeGood      Grade = "Good"
	GradeFair      Grade = "Fair"
	GradePoor      Grade = "Poor"
)

type Node struct {
	ID       string   `json:"id" yaml:"id" validate:"required"`
	Name     string   `json:"name" yaml:"name"`
	Address  string   `json:"address" yaml:"address" validate:"required"`
	Category Category `json:"category" yaml:"category" validate:"oneof=Local Gateway WAN Service"`
}

// PingRecord is a single probe result. Timestamp is unix milliseconds.
type PingRecord struct {
	Timestamp  int64      `json:"timestamp"`
	NodeID     string     `json:"nodeId"`
	LatencyMs  int        `json:"latencyMs"`
	Status     LinkStatus `json:"status"`
	PacketLoss bool       `json:"packetLoss"`
}

type AggregatedStats struct {
	AvgLatencyMs      int     `json:"avgLatencyMs"`
	MaxLatencyMs      int     `json:"maxLatencyMs"`
	JitterMs          int     `json:"jitterMs"`
	PacketLossRatePct float64 `json:"packetLossRatePct"`
	Score             int     `json:"score"`
	Status            Grade   `json:"status"`
}

// Session is one monitoring run. EndTime is zero while the session is live.
type Session struct {
	ID        string       `json:"id"`
	StartTime int64        `json:"startTime"`
	EndTime   int64        `json:"endTime,omitempty"`
	Nodes     []Node       `json:"nodes"`
	Records   []PingRecord `json:"records"`
}

func (s Session) Closed() bool {
	return s.EndTime != 0
}

// NodeByID returns the session's node with the given id.
func (s Session) NodeByID(id string) (Node, bool) {
	for _, n := range s.Nodes {
		if n.ID == id {
			return n, true
		}
	}
	return Node{}, false
}

type NodeStats struct {
	Node  Node            `json:"node"`
	Stats AggregatedStats `json:"stats"`
}

type Health string

const (
	HealthUnknown  Health = "Unknown"
	HealthHealthy  Health = "Healthy"
	HealthDegraded Health = "Degraded"
	HealthOffline  Health = "Offline"
)

type TopologyEntry struct {
	Node      Node        `json:"node"`
	Latest    *PingRecord `json:"latest,omitempty"`
	Health    Health      `json:"health"`
	Sparkline []int       `json:"sparkline"`
}
