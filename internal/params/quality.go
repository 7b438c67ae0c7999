package params

import (
	"math"
	"strings"
)

// Quality is a coarse performance tier.
type Quality string

const (
	QualityHigh     Quality = "high"
	QualityBalanced Quality = "balanced"
	QualityEco      Quality = "eco"
)

var qualityNames = []string{
	string(QualityHigh),
	string(QualityBalanced),
	string(QualityEco),
}

// QualityNames returns the supported quality tiers.
func QualityNames() []string {
	out := make([]string, len(qualityNames))
	copy(out, qualityNames)
	return out
}

// ParseQuality maps loose user input onto a tier, defaulting to balanced.
func ParseQuality(name string) Quality {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "eco", "low", "pi":
		return QualityEco
	case "high", "full", "max":
		return QualityHigh
	default:
		return QualityBalanced
	}
}

// Next cycles eco -> balanced -> high -> eco.
func (q Quality) Next() Quality {
	switch q {
	case QualityEco:
		return QualityBalanced
	case QualityBalanced:
		return QualityHigh
	default:
		return QualityEco
	}
}

func (q Quality) apply(s *Settings) {
	switch q {
	case QualityEco:
		s.TargetFPS = math.Min(s.TargetFPS, 24)
		s.Stars.Density *= 0.6
		s.Stars.SparkleBudget /= 2
		s.Disk.TargetFPS = math.Min(s.Disk.TargetFPS, 20)
		s.Disk.Scale = math.Max(0.05, s.Disk.Scale*0.8)
		s.Disk.HighDetail = false
		s.Disk.SliceMul = math.Max(0.5, s.Disk.SliceMul*0.7)
		s.Disk.TurbSize = 128
		s.Disk.PhotonRingPasses = 1
		s.Disk.FlickerAmp = 0
	case QualityHigh:
		s.Disk.Scale = math.Min(1, s.Disk.Scale*1.4)
		s.Disk.HighDetail = true
		s.Disk.SliceMul = math.Min(4, s.Disk.SliceMul*1.25)
		s.Disk.StepAdd += 4
	}
}
