package risk

type Status string

const (
	StatusLow      Status = "LOW"
	StatusMedium   Status = "MEDIUM"
	StatusHigh     Status = "HIGH"
	StatusCritical Status = "CRITICAL"
)

// ClassifyByTotalRisk is the system status used by risk analysis and reports.
func ClassifyByTotalRisk(totalRisk int) Status {
	switch {
	case totalRisk >= 200:
		return StatusCritical
	case totalRisk >= 100:
		return StatusHigh
	case totalRisk >= 40:
		return StatusMedium
	default:
		return StatusLow
	}
}

// ClassifyByAverageRisk is the system health shown on the dashboard. It uses
// a different scale from ClassifyByTotalRisk.
func ClassifyByAverageRisk(averageRisk float64) Status {
	switch {
	case averageRisk >= 8:
		return StatusCritical
	case averageRisk >= 5:
		return StatusHigh
	case averageRisk >= 3:
		return StatusMedium
	default:
		return StatusLow
	}
}
