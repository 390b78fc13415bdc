// Package probe produces synthetic ping measurements. Nothing here touches
// the network: each address gets a stable baseline latency derived from its
// hash and every call adds random spikes, jitter and occasional loss.
package probe

import (
	"math"
	"math/rand/v2"
	"strings"
	"unicode/utf16"

	"netpulse/internal/models"
)

const (
	spikeThreshold  = 0.98
	spikeMs         = 150
	jitterThreshold = 0.8
	jitterMaxMs     = 30
	noiseMaxMs      = 10
	downChance      = 0.0005
	lossChance      = 0.005
)

// Source supplies uniform values in [0, 1). *rand.Rand satisfies it.
type Source interface {
	Float64() float64
}

type globalSource struct{}

func (globalSource) Float64() float64 { return rand.Float64() }

// Result is a measurement without node id or timestamp.
type Result struct {
	LatencyMs  int
	Status     models.LinkStatus
	PacketLoss bool
}

type Simulator struct {
	src Source
}

// NewSimulator returns a simulator drawing from src, or from the process-wide
// generator when src is nil.
func NewSimulator(src Source) *Simulator {
	if src == nil {
		src = globalSource{}
	}
	return &Simulator{src: src}
}

func (s *Simulator) Simulate(address string) Result {
	base := BaselineLatency(address)

	if s.src.Float64() > spikeThreshold {
		base += spikeMs
	}
	if s.src.Float64() > jitterThreshold {
		base += s.src.Float64() * jitterMaxMs
	}

	if s.src.Float64() < downChance {
		return Result{Status: models.StatusDown, PacketLoss: true}
	}
	if s.src.Float64() < lossChance {
		return Result{Status: models.StatusUp, PacketLoss: true}
	}

	latency := math.Floor(base + s.src.Float64()*noiseMaxMs)
	return Result{LatencyMs: int(latency), Status: models.StatusUp}
}

// BaselineLatency is the per-address latency before random perturbation.
func BaselineLatency(address string) float64 {
	switch {
	case address == "127.0.0.1" || address == "localhost":
		return 1
	case strings.HasPrefix(address, "192.168") || strings.HasPrefix(address, "10."):
		return 5
	}
	return float64(5 + Hash(address)%75)
}

// Hash is a 31-multiplier rolling hash over UTF-16 code units with 32-bit
// wraparound, returned as an absolute value.
func Hash(s string) int64 {
	var h int32
	for _, c := range utf16.Encode([]rune(s)) {
		h = (h << 5) - h + int32(c)
	}
	v := int64(h)
	if v < 0 {
		v = -v
	}
	return v
}
