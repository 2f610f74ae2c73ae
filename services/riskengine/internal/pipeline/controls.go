package pipeline

import (
	"sort"

	"github.com/riskfabric/cyberrisk/pkg/models"
)

// scoreScale converts a questionnaire response into the weighted score range.
const scoreScale = 2.5

// LatestAssets keeps the most recently modified version of every asset name.
// Ties go to the larger asset id so the choice does not depend on input order.
func LatestAssets(tree *models.AssessmentTree) map[string]models.Asset {
	latest := make(map[string]models.Asset)
	for _, a := range tree.Assessments {
		for _, p := range a.Processes {
			for _, asset := range p.Assets {
				cur, ok := latest[asset.Name]
				if !ok || newerAsset(asset, cur) {
					latest[asset.Name] = asset
				}
			}
		}
	}
	return latest
}

func newerAsset(a, b models.Asset) bool {
	if !a.ModifiedAt.Equal(b.ModifiedAt) {
		return a.ModifiedAt.After(b.ModifiedAt)
	}
	return a.ID.String() > b.ID.String()
}

// ControlIDs returns the sorted distinct control ids referenced by the assets.
func ControlIDs(assets map[string]models.Asset) []string {
	seen := make(map[string]struct{})
	for _, a := range assets {
		for _, ans := range a.Answers {
			for _, id := range ans.ControlIDs {
				if id != "" {
					seen[id] = struct{}{}
				}
			}
		}
	}
	ids := make([]string, 0, len(seen))
	for id := range seen {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// ControlMap maps each control id referenced by the asset's answers to its
// response. Unanswered questions count as 0; the not-applicable value is
// kept as is. When two answers reference the same control the later one wins.
func ControlMap(asset models.Asset) map[string]float64 {
	out := make(map[string]float64)
	for _, ans := range asset.Answers {
		score := 0.0
		if ans.Response != nil {
			score = *ans.Response
		}
		for _, id := range ans.ControlIDs {
			if id != "" {
				out[id] = score
			}
		}
	}
	return out
}

type bucket struct {
	num, den float64
}

func (b *bucket) add(score, weight float64) {
	b.num += score * scoreScale * weight
	b.den += weight
}

func (b bucket) value() float64 {
	if v := models.Div(b.num, b.den); v != nil {
		return models.Round(*v, 2)
	}
	return 0
}

// ScoreAsset computes the weighted control strength of one asset. Controls
// marked not applicable and controls without metadata rows are excluded.
func ScoreAsset(controls map[string]float64, meta models.ControlMetadata, stats *Stats) models.AssetControlScore {
	ids := make([]string, 0, len(controls))
	for id := range controls {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	var c, i, a, overall bucket
	for _, id := range ids {
		score := controls[id]
		if score == models.NotApplicable {
			stats.NotApplicable++
			continue
		}
		rows := meta[id]
		if len(rows) == 0 {
			stats.UnknownControls++
			continue
		}
		for _, row := range rows {
			w := row.Weight()
			overall.add(score, w)
			if models.ContainsCIA(row.CIAMapping, models.CIAConfidentiality) {
				c.add(score, w)
			}
			if models.ContainsCIA(row.CIAMapping, models.CIAIntegrity) {
				i.add(score, w)
			}
			if models.ContainsCIA(row.CIAMapping, models.CIAAvailability) {
				a.add(score, w)
			}
		}
	}

	return models.AssetControlScore{
		C:       c.value(),
		I:       i.value(),
		A:       a.value(),
		Overall: overall.value(),
	}
}

// ScoreAssets computes control strength for every asset, keyed by asset name.
func ScoreAssets(assets map[string]models.Asset, meta models.ControlMetadata, stats *Stats) map[string]models.AssetControlScore {
	out := make(map[string]models.AssetControlScore, len(assets))
	for name, asset := range assets {
		out[name] = ScoreAsset(ControlMap(asset), meta, stats)
	}
	return out
}
