// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package engine

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResultStore(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	s := NewResultStore(3, time.Hour)
	s.now = func() time.Time { return now }

	put := func(id string, age time.Duration) *Answer {
		ans := &Answer{RequestID: id, CreatedAt: now.Add(-age)}
		s.Put(ans)
		return ans
	}

	t.Run("trims oldest", func(t *testing.T) {
		for i := 0; i < 5; i++ {
			put(fmt.Sprintf("req-%d", i), time.Duration(5-i)*time.Minute)
		}
		assert.Equal(t, 3, s.Len())
		_, ok := s.Get("req-0")
		assert.False(t, ok)
		got, ok := s.Get("req-4")
		require.True(t, ok)
		assert.Equal(t, "req-4", got.RequestID)
	})

	t.Run("recent", func(t *testing.T) {
		recent := s.Recent(150 * time.Second)
		require.Len(t, recent, 2)
		assert.Equal(t, "req-3", recent[0].RequestID)
	})

	t.Run("replaces same id", func(t *testing.T) {
		replacement := put("req-4", 0)
		assert.Equal(t, 3, s.Len())
		got, _ := s.Get("req-4")
		assert.Same(t, replacement, got)
	})

	t.Run("expires", func(t *testing.T) {
		now = now.Add(2 * time.Hour)
		_, ok := s.Get("req-4")
		assert.False(t, ok)
		put("fresh", 0)
		assert.Equal(t, 1, s.Len())
	})
}
