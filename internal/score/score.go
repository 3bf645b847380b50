// Package score computes the 0-100 credibility score for a certificate from
// its metadata and lifecycle event history. Four components are computed
// independently and combined by configurable weights.
package score

import (
	"math"
	"sort"
	"time"

	"github.com/CropCred/cropcred/internal/models"
)

// Weights configures the contribution of each component to the combined
// score. Any non-negative values are accepted; they need not sum to 1.
type Weights struct {
	Ethics         float64 `json:"E"`
	Documentation  float64 `json:"C"`
	Delivery       float64 `json:"D"`
	Sustainability float64 `json:"S"`
}

// DefaultWeights weighs the components equally.
func DefaultWeights() Weights {
	return Weights{Ethics: 0.25, Documentation: 0.25, Delivery: 0.25, Sustainability: 0.25}
}

// Scorer carries the weight configuration. Weights are an explicit value, not
// ambient state, so different regimes can be scored side by side.
type Scorer struct {
	weights Weights
}

func New(w Weights) *Scorer {
	return &Scorer{weights: w}
}

// Score computes the full breakdown. An empty event list is not an error:
// Delivery and Sustainability fall back to the neutral 50 and Documentation
// is computed from certificate metadata alone.
func (s *Scorer) Score(cert models.Certificate, events []models.LifecycleEvent) models.CredibilityBreakdown {
	e := ethics(cert, events)
	c := documentation(cert)
	d := delivery(events)
	su := sustainability(events)

	w := s.weights
	total := w.Ethics + w.Documentation + w.Delivery + w.Sustainability
	combined := 0
	if total > 0 {
		combined = roundInt((float64(e)*w.Ethics + float64(c)*w.Documentation +
			float64(d)*w.Delivery + float64(su)*w.Sustainability) / total)
	}

	return models.CredibilityBreakdown{
		Ethics:         e,
		Documentation:  c,
		Delivery:       d,
		Sustainability: su,
		Weights: map[string]float64{
			"E": w.Ethics, "C": w.Documentation, "D": w.Delivery, "S": w.Sustainability,
		},
		CombinedScore: combined,
	}
}

const (
	maxViolationDeductions = 3
	onTimeToleranceMs      = 24 * 60 * 60 * 1000
	badGapHours            = 336.0
)

func ethics(cert models.Certificate, events []models.LifecycleEvent) int {
	base := 0.40
	if cert.Meta.PolicyAccepted {
		base = 0.70
	}
	violations := 0
	for _, ev := range events {
		if isViolation(ev.Payload) {
			violations++
		}
	}
	if violations > maxViolationDeductions {
		violations = maxViolationDeductions
	}
	return scale(base - 0.15*float64(violations))
}

var certTypeBonus = map[string]float64{
	"Organic":            0.15,
	"FairTrade":          0.10,
	"ISO22000":           0.10,
	"HACCP":              0.08,
	"RainforestAlliance": 0.08,
}

func documentation(cert models.Certificate) int {
	c := 0.40
	if cert.Meta.ExpiresAt == 0 || time.Now().UnixMilli() < cert.Meta.ExpiresAt {
		c += 0.35
	}
	if cert.Meta.Issuer != "" {
		c += 0.15
	}
	if cert.Meta.Signature != "" {
		c += 0.10
	}
	bonus := 0.0
	for _, ct := range cert.Meta.CertTypes {
		if b, ok := certTypeBonus[ct]; ok {
			bonus += b
		} else {
			bonus += 0.05
		}
	}
	if bonus > 0.30 {
		bonus = 0.30
	}
	return scale(c + bonus)
}

func delivery(events []models.LifecycleEvent) int {
	if len(events) == 0 {
		return 50
	}

	onTime, planned := 0, 0
	for _, ev := range events {
		plannedAt, ok := lookupNumber(ev.Payload, plannedAtKeys)
		if !ok {
			continue
		}
		planned++
		if math.Abs(float64(ev.CreatedAt)-plannedAt) <= onTimeToleranceMs {
			onTime++
		}
	}
	onTimeFraction := 0.5
	if planned > 0 {
		onTimeFraction = float64(onTime) / float64(planned)
	}

	cadence := 0.7
	if len(events) >= 2 {
		sorted := make([]models.LifecycleEvent, len(events))
		copy(sorted, events)
		sort.Slice(sorted, func(i, j int) bool { return sorted[i].CreatedAt < sorted[j].CreatedAt })
		badGaps, gaps := 0, 0
		for i := 1; i < len(sorted); i++ {
			gaps++
			gapHours := float64(sorted[i].CreatedAt-sorted[i-1].CreatedAt) / (60 * 60 * 1000)
			if gapHours > badGapHours {
				badGaps++
			}
		}
		cadence = 1 - float64(badGaps)/float64(gaps)
	}

	return roundInt(100 * (0.7*onTimeFraction + 0.3*cadence))
}

func sustainability(events []models.LifecycleEvent) int {
	if len(events) == 0 {
		return 50
	}

	pesticideSum := 0.0
	var carbonValues []float64
	geoCount, telemetryCount := 0, 0
	for _, ev := range events {
		pesticideSum += pesticideBad(ev.Payload)
		if c, ok := lookupNumber(ev.Payload, carbonKeys); ok {
			carbonValues = append(carbonValues, c)
		}
		if hasGeo(ev.Payload) {
			geoCount++
		}
		if hasTelemetry(ev.Payload) {
			telemetryCount++
		}
	}

	n := float64(len(events))
	avgPesticideBad := pesticideSum / n

	// Reference band: 150 kg CO2e maps to 1.0, 600 to 0.0, linear between.
	carbonFactor := 0.6
	if len(carbonValues) > 0 {
		sum := 0.0
		for _, c := range carbonValues {
			sum += c
		}
		avg := sum / float64(len(carbonValues))
		carbonFactor = clamp01((600 - avg) / (600 - 150))
	}

	gpsShare := float64(geoCount) / n
	telemetryShare := float64(telemetryCount) / n

	return roundInt(100 * (0.35*(1-avgPesticideBad) + 0.25*carbonFactor +
		0.25*gpsShare + 0.15*telemetryShare))
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// scale moves a [0,1] component value to the integer [0,100] boundary.
func scale(v float64) int {
	return roundInt(100 * clamp01(v))
}

func roundInt(v float64) int {
	n := int(math.Round(v))
	if n < 0 {
		return 0
	}
	if n > 100 {
		return 100
	}
	return n
}
