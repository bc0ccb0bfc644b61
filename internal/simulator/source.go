// Package simulator emulates a room sensor board posting readings to the ingest endpoint.
package simulator

import (
	"math"
	"math/rand"
	"sync"
)

// Sample is one generated reading.
type Sample struct {
	Temperature float64  `json:"temperature"`
	Humidity    float64  `json:"humidity"`
	Light       *float64 `json:"light,omitempty"`
}

// Source produces samples.
type Source interface {
	Next() Sample
}

// RandomWalk drifts temperature and humidity in small steps inside fixed bounds.
type RandomWalk struct {
	mu   sync.Mutex
	rng  *rand.Rand
	temp float64
	hum  float64
}

const (
	minTemp = 20.0
	maxTemp = 35.0
	minHum  = 40.0
	maxHum  = 90.0
)

// NewRandomWalk constructs a seeded source starting at 24°C and 60%.
func NewRandomWalk(seed int64) *RandomWalk {
	return &RandomWalk{rng: rand.New(rand.NewSource(seed)), temp: 24, hum: 60}
}

// Next returns the next sample.
func (w *RandomWalk) Next() Sample {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.temp = clamp(w.temp+(w.rng.Float64()-0.5)*0.5, minTemp, maxTemp)
	w.hum = clamp(w.hum+(w.rng.Float64()-0.5)*2, minHum, maxHum)
	light := float64(100 + w.rng.Intn(500))
	return Sample{
		Temperature: round2(w.temp),
		Humidity:    round2(w.hum),
		Light:       &light,
	}
}

// Sequence replays fixed samples in order and wraps around.
type Sequence struct {
	mu      sync.Mutex
	samples []Sample
	next    int
}

// NewSequence constructs a replaying source. It panics on an empty list.
func NewSequence(samples ...Sample) *Sequence {
	if len(samples) == 0 {
		panic("simulator: empty sequence")
	}
	return &Sequence{samples: samples}
}

// Next returns the next sample.
func (s *Sequence) Next() Sample {
	s.mu.Lock()
	defer s.mu.Unlock()
	sample := s.samples[s.next]
	s.next = (s.next + 1) % len(s.samples)
	return sample
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
