package history

import (
	"fmt"
	"sync"
)

// Stack - accumulates a limited number of items in style of LIFO queue.
// When stack length is reached max value, it drops the oldest item on every push.
type Stack[T any] struct {
	max  int
	mu   sync.RWMutex
	data []T
}

// NewStack - build history stack.
func NewStack[T any](max int) (*Stack[T], error) {
	if max <= 0 {
		return nil, fmt.Errorf("history.NewStack: max (%d) must be greater than 0", max)
	}
	return &Stack[T]{max: max, data: make([]T, 0, max)}, nil
}

// Len - returns number of currently kept items.
func (s *Stack[T]) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.data)
}

// Push - adds item to history.
func (s *Stack[T]) Push(item T) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.data) == s.max {
		copy(s.data, s.data[1:])
		s.data = s.data[:len(s.data)-1]
	}
	s.data = append(s.data, item)
}

// Tail - makes copy of last n-items from stack into resulting slice.
// The first item in resulting slice is the most older.
func (s *Stack[T]) Tail(n int) []T {
	if n < 0 {
		n *= -1
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	l := len(s.data)
	if n > l {
		n = l
	}
	tail := make([]T, n)
	copy(tail, s.data[l-n:])
	return tail
}
