package pipeline

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/riskfabric/cyberrisk/pkg/models"
)

const million = 1_000_000

var leadingNumber = regexp.MustCompile(`^[-+]?(\d+(\.\d*)?|\.\d+)`)

var amountReplacer = strings.NewReplacer(",", "", "$", "", "€", "", "£", "", " ", "")

// ParseAmount reads the leading number of a stored range value, ignoring
// thousands separators, currency symbols and any trailing suffix ("500k"
// reads as 500). It returns nil when no number is present.
func ParseAmount(s string) *float64 {
	m := leadingNumber.FindString(amountReplacer.Replace(strings.TrimSpace(s)))
	if m == "" {
		return nil
	}
	v, err := strconv.ParseFloat(m, 64)
	if err != nil {
		return nil
	}
	return &v
}

// BandImpact is the band's monetary impact in millions: the mean of its
// parsable range bounds.
func BandImpact(band *models.SeverityBand, stats *Stats) *float64 {
	if band == nil {
		return nil
	}
	var bounds []*float64
	for _, raw := range []string{band.MinRange, band.MaxRange} {
		if strings.TrimSpace(raw) == "" {
			continue
		}
		v := ParseAmount(raw)
		if v == nil {
			stats.UnparsableRanges++
			continue
		}
		bounds = append(bounds, models.Float(*v/million))
	}
	return models.MeanOf(bounds...)
}

// LevelNumber maps a qualitative severity level to its score.
func LevelNumber(level string) (float64, bool) {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "critical", "high":
		return 4, true
	case "moderate", "medium":
		return 3, true
	case "low":
		return 2, true
	case "very low":
		return 1, true
	}
	return 0, false
}

// OverallImpactScore is the weighted mean of the four bands' level numbers.
// Bands without a known level or a weight are left out.
func OverallImpactScore(ref *models.ScenarioRef) *float64 {
	if ref == nil {
		return nil
	}
	var num, den float64
	for _, band := range []*models.SeverityBand{ref.Financial, ref.Regulatory, ref.Reputational, ref.Operational} {
		if band == nil || band.Weight == nil {
			continue
		}
		lvl, ok := LevelNumber(band.Level)
		if !ok {
			continue
		}
		num += *band.Weight * lvl
		den += *band.Weight
	}
	return models.RoundPtr(models.Div(num, den), 2)
}

// bandImpacts holds the unrounded per-band impacts of one record.
type bandImpacts struct {
	financial, regulatory, reputational, operational *float64
}

func impactsOf(ref *models.ScenarioRef, stats *Stats) bandImpacts {
	if ref == nil {
		return bandImpacts{}
	}
	return bandImpacts{
		financial:    BandImpact(ref.Financial, stats),
		regulatory:   BandImpact(ref.Regulatory, stats),
		reputational: BandImpact(ref.Reputational, stats),
		operational:  BandImpact(ref.Operational, stats),
	}
}

// InherentFinancialExposure adds the financial impact to the weighted mean
// of the regulatory, reputational and operational impacts. The financial
// band takes no part in the weighting.
func InherentFinancialExposure(ref *models.ScenarioRef, stats *Stats) *float64 {
	return exposure(ref, impactsOf(ref, stats))
}

func exposure(ref *models.ScenarioRef, im bandImpacts) *float64 {
	if ref == nil {
		return nil
	}

	var num, den float64
	weighted := []struct {
		band   *models.SeverityBand
		impact *float64
	}{
		{ref.Regulatory, im.regulatory},
		{ref.Reputational, im.reputational},
		{ref.Operational, im.operational},
	}
	for _, w := range weighted {
		if w.band == nil || w.band.Weight == nil || w.impact == nil {
			continue
		}
		num += *w.band.Weight * *w.impact
		den += *w.band.Weight
	}

	parts := []*float64{im.financial, models.Div(num, den)}
	var total *float64
	for _, p := range parts {
		if p == nil {
			continue
		}
		if total == nil {
			total = models.Float(0)
		}
		*total += *p
	}
	return models.RoundPtr(total, 1)
}

// ApplyImpact fills the impact fields of a record.
func ApplyImpact(rec *models.DashboardRecord, stats *Stats) {
	ref := rec.Scenario
	im := impactsOf(ref, stats)

	rec.FinancialImpact = models.RoundPtr(im.financial, 1)
	rec.RegulatoryImpact = models.RoundPtr(im.regulatory, 1)
	rec.ReputationalImpact = models.RoundPtr(im.reputational, 1)
	rec.OperationalImpact = models.RoundPtr(im.operational, 1)

	rec.InherentFinancialExposure = exposure(ref, im)
	rec.OverallImpactScore = OverallImpactScore(ref)
	rec.InherentRiskLevel = models.RiskLevelOf(rec.OverallImpactScore)
}
