package room

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type staticNames []string

func (s staticNames) ListRoomNames(ctx context.Context, guildID string) ([]string, error) {
	return s, nil
}

func TestNameAllocator_Pick(t *testing.T) {
	pool := []string{"Mango", "Kiwi"}

	tests := []struct {
		name string
		used []string
		want string
	}{
		{name: "empty guild", used: nil, want: "Mango"},
		{name: "first taken", used: []string{"Mango"}, want: "Kiwi"},
		{name: "pool exhausted", used: []string{"Mango", "Kiwi"}, want: "Mango 2"},
		{name: "suffix taken", used: []string{"Mango", "Kiwi", "Mango 2"}, want: "Kiwi 2"},
		{name: "next suffix", used: []string{"Mango", "Kiwi", "Mango 2", "Kiwi 2"}, want: "Mango 3"},
		{name: "renamed rooms free names", used: []string{"Study group"}, want: "Mango"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := NewNameAllocator(staticNames(tt.used), pool)
			a.shuffle = nil

			got, err := a.Pick(context.Background(), testGuild)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNameAllocator_ShuffledStaysUnique(t *testing.T) {
	used := staticNames{"Mango", "Papaya", "Kiwi"}
	a := NewNameAllocator(used, nil)

	for range 50 {
		got, err := a.Pick(context.Background(), testGuild)
		require.NoError(t, err)
		assert.NotContains(t, used, got)
		assert.Contains(t, DefaultNamePool, got)
	}
}
