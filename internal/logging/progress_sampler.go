package logging

import "strings"

// ProgressSampler suppresses repetitive transfer progress logs while preserving
// signal when the file or percentage bucket changes. It is used when progress
// cannot be rendered as a terminal bar.
type ProgressSampler struct {
	bucketSize float64
	lastFile   string
	lastBucket int
}

// NewProgressSampler constructs a sampler that emits when the percent crosses
// bucket boundaries (default 10%) or when the file changes.
func NewProgressSampler(bucketSize float64) *ProgressSampler {
	if bucketSize <= 0 {
		bucketSize = 10
	}
	return &ProgressSampler{bucketSize: bucketSize, lastBucket: -1}
}

// ShouldLog reports whether a progress event should be logged. Percent can be
// negative to indicate an unknown content length.
func (s *ProgressSampler) ShouldLog(percent float64, file string) bool {
	if s == nil {
		return true
	}
	file = strings.TrimSpace(file)
	emit := false
	if file != "" && file != s.lastFile {
		s.lastFile = file
		emit = true
		s.lastBucket = -1
	}
	if percent >= 0 {
		bucket := int(percent / s.bucketSize)
		if percent >= 100 {
			bucket = int(100 / s.bucketSize)
		}
		if bucket > s.lastBucket {
			s.lastBucket = bucket
			emit = true
		}
	}
	return emit
}

// Reset clears the sampler state before a new transfer.
func (s *ProgressSampler) Reset() {
	if s == nil {
		return
	}
	s.lastFile = ""
	s.lastBucket = -1
}
