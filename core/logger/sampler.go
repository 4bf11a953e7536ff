package logger

import (
	"strconv"
	"strings"
	"sync"
)

// sampler lets keep out of every events through. A zero ratio lets
// everything through.
type sampler struct {
	mu    sync.Mutex
	keep  int
	every int
	seen  int
}

func (s *sampler) set(keep, every int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if keep <= 0 || every <= 0 {
		keep, every = 0, 0
	}
	s.keep, s.every, s.seen = min(keep, every), every, 0
}

func (s *sampler) allow() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.every == 0 {
		return true
	}
	s.seen = s.seen%s.every + 1
	return s.seen <= s.keep
}

// parseRatio reads "k/n" or "n" (meaning 1/n). Invalid or non-positive input
// yields 0, 0.
func parseRatio(spec string) (keep, every int) {
	spec = strings.TrimSpace(spec)
	if a, b, ok := strings.Cut(spec, "/"); ok {
		k, err1 := strconv.Atoi(strings.TrimSpace(a))
		n, err2 := strconv.Atoi(strings.TrimSpace(b))
		if err1 != nil || err2 != nil || k <= 0 || n <= 0 {
			return 0, 0
		}
		return k, n
	}
	n, err := strconv.Atoi(spec)
	if err != nil || n <= 0 {
		return 0, 0
	}
	return 1, n
}
