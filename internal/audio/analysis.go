package audio

import (
	"math"
	"strings"
)

// #region volume
// Volume maps the RMS of 16-bit samples onto 0..100. Quiet non-zero
// readings below 10 are boosted by half so they register on the meter.
func Volume(samples []int16) int {
	if len(samples) == 0 {
		return 0
	}
	var sum float64
	for _, s := range samples {
		f := float64(s)
		sum += f * f
	}
	rms := math.Sqrt(sum / float64(len(samples)))
	v := int(rms / 32768.0 * 100)
	if v > 0 && v < 10 {
		v = int(float64(v) * 1.5)
	}
	return clamp(v)
}

// Smooth blends a new reading into the previous level (0.6 old, 0.4 new).
func Smooth(prev, next int) int {
	return clamp(int(float64(prev)*0.6 + float64(next)*0.4))
}

func clamp(v int) int {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}
// #endregion volume

// #region conversation
// DetectConversation reports a back-and-forth pattern: enough samples
// whose population variance and mean both exceed the given floors.
func DetectConversation(history []int, minSamples int, minVariance, minMean float64) bool {
	if len(history) < minSamples || len(history) == 0 {
		return false
	}
	var sum float64
	for _, v := range history {
		sum += float64(v)
	}
	mean := sum / float64(len(history))
	var sq float64
	for _, v := range history {
		d := float64(v) - mean
		sq += d * d
	}
	variance := sq / float64(len(history))
	return variance > minVariance && mean > minMean
}
// #endregion conversation

// #region keywords
// MatchKeywords returns every keyword contained in the lower-cased
// transcript, deduplicated, in list order (English list first).
func MatchKeywords(text string, lists ...[]string) []string {
	lower := strings.ToLower(text)
	seen := map[string]bool{}
	var hits []string
	for _, list := range lists {
		for _, kw := range list {
			kw = strings.ToLower(kw)
			if kw == "" || seen[kw] {
				continue
			}
			if strings.Contains(lower, kw) {
				seen[kw] = true
				hits = append(hits, kw)
			}
		}
	}
	return hits
}
// #endregion keywords
