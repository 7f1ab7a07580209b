package domain

// RiskBand is the health-risk category of a risk score.
type RiskBand string

const (
	RiskLow      RiskBand = "Low"
	RiskModerate RiskBand = "Moderate"
	RiskHigh     RiskBand = "High"
	RiskCritical RiskBand = "Critical"
)

// riskScale maps the weighted ratio sum onto 0-100.
const riskScale = 20

// Exceedance reports a metal above its permissible limit.
type Exceedance struct {
	Metal       string  `json:"metal"`
	Ratio       float64 `json:"ratio"`
	PercentOver float64 `json:"percent_over"` // (ratio-1)*100, one decimal
}

// RiskAssessment is the health-risk estimate for one set of concentrations.
type RiskAssessment struct {
	Score       float64      `json:"score"` // 0..100
	Band        RiskBand     `json:"band"`
	Exceedances []Exceedance `json:"exceedances"`
}

// AssessRisk sums Ci/Si weighted by each metal's health-risk weight over the
// metals present, scales by 20 and caps at 100. Exceedances list every metal
// over its limit in enumeration order.
func AssessRisk(c Concentrations, t *StandardsTable) RiskAssessment {
	var sum float64
	exceedances := []Exceedance{}
	for _, m := range Metals() {
		ci := c[m]
		e := t.entry(m)
		if !(ci > 0) || !(e.PermissibleLimit > 0) {
			continue
		}
		ratio := ci / e.PermissibleLimit
		sum += ratio * e.HealthRiskWeight
		if ratio > 1 {
			exceedances = append(exceedances, Exceedance{
				Metal:       m.String(),
				Ratio:       ratio,
				PercentOver: round((ratio-1)*100, 1),
			})
		}
	}

	score := sum * riskScale
	if score > 100 {
		score = 100
	}
	return RiskAssessment{
		Score:       score,
		Band:        ClassifyRisk(score),
		Exceedances: exceedances,
	}
}

// ClassifyRisk: Low <30, Moderate <60, High <80, Critical otherwise.
func ClassifyRisk(score float64) RiskBand {
	switch {
	case score < 30:
		return RiskLow
	case score < 60:
		return RiskModerate
	case score < 80:
		return RiskHigh
	default:
		return RiskCritical
	}
}
