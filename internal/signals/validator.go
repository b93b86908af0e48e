package signals

// #region defaults

const (
	// DefaultWindow is the number of raw samples kept per key.
	DefaultWindow = 5
	// DefaultThreshold is the run length needed before a signal validates.
	DefaultThreshold = 3
)

// #endregion defaults

// #region validator

// Validator debounces raw per-cycle observations. Each key owns a bounded,
// insertion-ordered history; the oldest sample is evicted first.
//
// A Validator belongs to a single session loop and is not safe for
// concurrent use.
type Validator struct {
	window int
	bools  map[string][]bool
	counts map[string][]int
}

// NewValidator creates a validator keeping window samples per key.
// A window below 1 falls back to DefaultWindow.
func NewValidator(window int) *Validator {
	if window < 1 {
		window = DefaultWindow
	}
	return &Validator{
		window: window,
		bools:  make(map[string][]bool),
		counts: make(map[string][]int),
	}
}

// Validate records value under key and reports whether the last threshold
// samples are all true. Fewer than threshold samples always yields false,
// so one flicker frame can never flip the verdict.
func (v *Validator) Validate(key string, value bool, threshold int) bool {
	h := push(v.bools[key], value, v.window)
	v.bools[key] = h

	threshold = clampThreshold(threshold)
	if len(h) < threshold {
		return false
	}
	for _, b := range h[len(h)-threshold:] {
		if !b {
			return false
		}
	}
	return true
}

// ValidateCount records a raw count under key and reports whether the last
// threshold readings all equal the newest one.
func (v *Validator) ValidateCount(key string, value int, threshold int) bool {
	h := push(v.counts[key], value, v.window)
	v.counts[key] = h

	threshold = clampThreshold(threshold)
	if len(h) < threshold {
		return false
	}
	latest := h[len(h)-1]
	for _, c := range h[len(h)-threshold:] {
		if c != latest {
			return false
		}
	}
	return true
}

// Len returns how many boolean samples Validate holds for key.
func (v *Validator) Len(key string) int {
	return len(v.bools[key])
}

// CountLen returns how many readings ValidateCount holds for key. Count
// histories are kept apart from boolean ones even under the same key.
func (v *Validator) CountLen(key string) int {
	return len(v.counts[key])
}

// Window returns the per-key capacity.
func (v *Validator) Window() int {
	return v.window
}

// Reset drops every history. Used when a session restarts.
func (v *Validator) Reset() {
	v.bools = make(map[string][]bool)
	v.counts = make(map[string][]int)
}

// #endregion validator

// #region helpers

// push appends x and evicts from the front so len never exceeds capacity.
func push[T any](h []T, x T, capacity int) []T {
	h = append(h, x)
	if over := len(h) - capacity; over > 0 {
		copy(h, h[over:])
		h = h[:capacity]
	}
	return h
}

func clampThreshold(t int) int {
	if t < 1 {
		return 1
	}
	return t
}

// #endregion helpers
