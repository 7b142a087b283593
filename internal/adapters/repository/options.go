package repository

// RankerOption applies a configuration option to the Ranker.
type RankerOption func(*Ranker)

// WithTopCacheSize sets how many leading entries each snapshot keeps
// pre-sliced for TopN.
func WithTopCacheSize(n int) RankerOption {
	return func(r *Ranker) {
		if n > 0 {
			r.topCacheSize = n
		}
	}
}

// HistoryOption applies a configuration option to the History.
type HistoryOption func(*History)

// WithCapacity sets how many finished rounds are kept.
func WithCapacity(n int) HistoryOption {
	return func(h *History) {
		if n > 0 {
			h.capacity = n
		}
	}
}
