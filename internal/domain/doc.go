// Package domain models heavy-metal water samples and the pollution indices
// derived from them.
//
// # Concentrations
//
// Eight metals are tracked, always in this order: lead, mercury, cadmium,
// arsenic, chromium, copper, zinc, nickel. Concentrations share one unit
// (mg/L). A metal that is missing, unparsable, negative, or non-finite in the
// input is recorded as 0 (see [ParseConcentration]).
//
// # Standards
//
// Each metal has a permissible limit Si, an ideal (background) value Ii and a
// health-risk weight. A [StandardsTable] is validated when built and is
// read-only afterwards; the index functions trust it.
//
// # Indices
//
//	HPI = Σ Wi·Qi / Σ Wi     Wi = 1/Si    Qi = 100·max(Ci−Ii, 0)/(Si−Ii)
//	HEI = Σ Ci/Si
//	Cd  = Σ (Ci/Si − 1)
//
// All three are kept at full precision; [IndexSet.Rounded] is for display.
//
// # Classification
//
//	HPI: <15 Excellent | <30 Good | <45 Poor | ≥45 VeryPoor
//	HEI: <10 Acceptable | <20 Moderate | ≥20 High
//	Cd:  <5 Low | <10 Moderate | ≥10 High
//
// Lower bounds are inclusive: 15.0 is Good, 14.999 is Excellent.
//
// # Health risk
//
// The risk score is 20·Σ(Ci/Si·weight) over metals present, capped at 100:
//
//	<30 Low | <60 Moderate | <80 High | ≥80 Critical
package domain
