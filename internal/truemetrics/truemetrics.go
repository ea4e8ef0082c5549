// Package truemetrics turns reviewed boxes into precision, recall and F1.
package truemetrics

import (
	"math"

	"groundtruth/internal/model"
)

// Calculate aggregates every box of every image. It does not modify its input.
func Calculate(images []model.ImageRecord) model.TrueMetrics {
	var tp, fp, fn, verified int

	for _, img := range images {
		for _, b := range img.Boxes {
			if b.IsManual && !b.IsVerified {
				fn++
			}
			if !b.IsVerified {
				continue
			}
			verified++
			if b.IsCorrect {
				tp++
			} else if !b.IsManual {
				fp++
			}
		}
	}

	precision := 0.0
	if tp+fp > 0 {
		precision = float64(tp) / float64(tp+fp)
	}

	recall := 0.0
	if tp+fn > 0 {
		recall = float64(tp) / float64(tp+fn)
	} else if tp > 0 {
		recall = 1.0
	}

	f1 := 0.0
	if precision+recall > 0 {
		f1 = 2 * precision * recall / (precision + recall)
	}

	fpRate := 0.0
	if verified > 0 {
		fpRate = float64(fp) / float64(verified) * 100
	}

	m := model.TrueMetrics{
		TruePositives:     tp,
		FalsePositives:    fp,
		FalseNegatives:    fn,
		TotalVerified:     verified,
		Precision:         Round(precision, 3),
		Recall:            Round(recall, 3),
		F1Score:           Round(f1, 3),
		FalsePositiveRate: Round(fpRate, 1),
	}

	if len(images) > 0 {
		last := images[len(images)-1].DetectorMetrics
		m.DetectorAvgConfidence = finite(last.AvgConfidence)
		m.DetectorBoxCount = last.BoxCount
		m.DetectorFPS = finite(last.FPS)
	}

	return m
}

// Round rounds half away from zero to the given number of decimals.
// NaN and infinities become 0.
func Round(v float64, places int) float64 {
	v = finite(v)
	p := math.Pow(10, float64(places))
	return finite(math.Round(v*p) / p)
}

func finite(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}
