package frontier

import "sync"

// AdaptiveStop decides, from a sliding window over recent extraction
// quality scores, when a crawl has stopped finding useful content,
// independent of the Budget's hard caps.
type AdaptiveStop struct {
	mu            sync.Mutex
	window        []int
	windowSize    int
	qualityFloor  int
	infoRateFloor float64
	scoresEver    int
}

const (
	DefaultWindowSize    = 20
	DefaultQualityFloor  = 30
	DefaultInfoRateFloor = 0.2
)

func NewAdaptiveStop(windowSize, qualityFloor int, infoRateFloor float64) *AdaptiveStop {
	if windowSize <= 0 {
		windowSize = DefaultWindowSize
	}
	if qualityFloor <= 0 {
		qualityFloor = DefaultQualityFloor
	}
	if infoRateFloor <= 0 {
		infoRateFloor = DefaultInfoRateFloor
	}
	return &AdaptiveStop{windowSize: windowSize, qualityFloor: qualityFloor, infoRateFloor: infoRateFloor}
}

// RecordQuality slides a new extraction quality score into the window.
func (a *AdaptiveStop) RecordQuality(score int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.scoresEver++
	a.window = append(a.window, score)
	if len(a.window) > a.windowSize {
		a.window = a.window[len(a.window)-a.windowSize:]
	}
}

// ShouldStop reports whether the recent quality trend says to stop, and
// why. It never returns true before the window has filled once, so a
// short crawl cannot trip adaptive stop on noise.
func (a *AdaptiveStop) ShouldStop() (reason string, stop bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if len(a.window) < a.windowSize {
		return "", false
	}
	var sum int
	var aboveFloor int
	for _, q := range a.window {
		sum += q
		if q >= a.qualityFloor {
			aboveFloor++
		}
	}
	mean := float64(sum) / float64(len(a.window))
	if mean < float64(a.qualityFloor) {
		return "quality_floor", true
	}
	infoRate := float64(aboveFloor) / float64(len(a.window))
	if infoRate < a.infoRateFloor {
		return "information_rate", true
	}
	return "", false
}

func (a *AdaptiveStop) WindowMean() float64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	if len(a.window) == 0 {
		return 0
	}
	var sum int
	for _, q := range a.window {
		sum += q
	}
	return float64(sum) / float64(len(a.window))
}
