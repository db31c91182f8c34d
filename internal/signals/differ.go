// Package signals compares consecutive filing extractions and scores them.
package signals

import (
	"math"

	"github.com/ternarybob/edgarsignals/internal/models"
)

// RiskAddedSeverity is the fixed severity of a risk_added event
const RiskAddedSeverity = 0.7

// Diff compares the current extraction against the previous one for the same ticker.
// A nil prev means there is no history and yields no events. Guidance is checked
// before risks; a falling risk count never produces an event.
func Diff(prev *models.ExtractedSignal, curr models.ExtractedSignal) []models.ChangeEvent {
	events := []models.ChangeEvent{}
	if prev == nil {
		return events
	}

	if delta := len(curr.Guidance) - len(prev.Guidance); delta != 0 {
		events = append(events, models.ChangeEvent{
			Type:     models.ChangeGuidanceCount,
			Delta:    delta,
			Severity: math.Min(1, float64(absInt(delta))/5),
		})
	}

	if delta := len(curr.NotableRisks) - len(prev.NotableRisks); delta > 0 {
		events = append(events, models.ChangeEvent{
			Type:     models.ChangeRiskAdded,
			Delta:    delta,
			Severity: RiskAddedSeverity,
		})
	}

	return events
}
