package signals

import "github.com/ternarybob/edgarsignals/internal/models"

// DefaultRiskSeverity is applied to risks the model returned without a severity
const DefaultRiskSeverity = 0.5

// Score bounds
const (
	MinScore      = 0
	MaxScore      = 100
	MinTrajectory = -50
	MaxTrajectory = 50
)

// Score maps an extraction and its change log to a bounded ScoreSet.
// Pure arithmetic; identical inputs always give identical scores.
func Score(extracted models.ExtractedSignal, changeLog []models.ChangeEvent) models.ScoreSet {
	confidence := clampInt(
		50+4*len(extracted.Guidance)+2*len(extracted.ForwardDrivers)-3*len(extracted.NotableRisks),
		MinScore, MaxScore)

	riskRaw := 20.0
	for _, r := range extracted.NotableRisks {
		sev := DefaultRiskSeverity
		if r.Severity != nil {
			sev = clamp(*r.Severity, 0, 1)
		}
		riskRaw += sev * 15
	}
	if hasRiskAdded(changeLog) {
		riskRaw += 10
	}
	risk := clampInt(roundHalfUp(clamp(riskRaw, MinScore, MaxScore)), MinScore, MaxScore)

	up, down := 0, 0
	for _, d := range extracted.ForwardDrivers {
		switch d.Direction {
		case models.DirectionUp:
			up++
		case models.DirectionDown:
			down++
		}
	}
	trajectory := clampInt(5*up-5*down, MinTrajectory, MaxTrajectory)

	overall := clampInt(roundHalfUp(
		0.5*float64(confidence)+0.3*float64(100-risk)+0.2*float64(trajectory+50)),
		MinScore, MaxScore)

	return models.ScoreSet{
		Confidence: confidence,
		Risk:       risk,
		Trajectory: trajectory,
		Overall:    overall,
	}
}

func hasRiskAdded(changeLog []models.ChangeEvent) bool {
	for _, ev := range changeLog {
		if ev.Type == models.ChangeRiskAdded {
			return true
		}
	}
	return false
}
