package domain

// Index names one of the pollution indices.
type Index string

const (
	IndexHPI Index = "hpi"
	IndexHEI Index = "hei"
	IndexCd  Index = "cd"
)

// Band is a categorical quality label derived from an index value.
type Band string

const (
	// HPI bands.
	BandExcellent Band = "Excellent"
	BandGood      Band = "Good"
	BandPoor      Band = "Poor"
	BandVeryPoor  Band = "VeryPoor"

	// HEI bands (Moderate and High are shared with Cd).
	BandAcceptable Band = "Acceptable"
	BandModerate   Band = "Moderate"
	BandHigh       Band = "High"

	// Cd bands.
	BandLow Band = "Low"
)

// Bands per index, best first.
var (
	HPIBands = []Band{BandExcellent, BandGood, BandPoor, BandVeryPoor}
	HEIBands = []Band{BandAcceptable, BandModerate, BandHigh}
	CdBands  = []Band{BandLow, BandModerate, BandHigh}
)

// Classify maps an index value to its band. Intervals are half-open with an
// inclusive lower bound, and the lowest band extends to -Inf, so every real
// value lands in exactly one band. An unrecognized index yields "".
func Classify(index Index, value float64) Band {
	switch index {
	case IndexHPI:
		return ClassifyHPI(value)
	case IndexHEI:
		return ClassifyHEI(value)
	case IndexCd:
		return ClassifyCd(value)
	default:
		return ""
	}
}

// ClassifyHPI: Excellent <15, Good <30, Poor <45, VeryPoor otherwise.
func ClassifyHPI(v float64) Band {
	switch {
	case v < 15:
		return BandExcellent
	case v < 30:
		return BandGood
	case v < 45:
		return BandPoor
	default:
		return BandVeryPoor
	}
}

// ClassifyHEI: Acceptable <10, Moderate <20, High otherwise.
func ClassifyHEI(v float64) Band {
	switch {
	case v < 10:
		return BandAcceptable
	case v < 20:
		return BandModerate
	default:
		return BandHigh
	}
}

// ClassifyCd: Low <5, Moderate <10, High otherwise.
func ClassifyCd(v float64) Band {
	switch {
	case v < 5:
		return BandLow
	case v < 10:
		return BandModerate
	default:
		return BandHigh
	}
}

// QualityBands holds the band of each index of a sample.
type QualityBands struct {
	HPI Band `json:"hpi"`
	HEI Band `json:"hei"`
	Cd  Band `json:"cd"`
}

// Classify returns the bands for every index in s.
func (s IndexSet) Classify() QualityBands {
	return QualityBands{
		HPI: ClassifyHPI(s.HPI),
		HEI: ClassifyHEI(s.HEI),
		Cd:  ClassifyCd(s.Cd),
	}
}
