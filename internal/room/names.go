package room

import (
	"context"
	"fmt"
	"math/rand/v2"
)

// DefaultNamePool is the set of display names new rooms draw from
var DefaultNamePool = []string{
	"Mango", "Papaya", "Kiwi", "Lychee", "Guava", "Durian", "Rambutan",
	"Plum", "Apricot", "Fig", "Quince", "Cherry", "Peach", "Lime",
	"Melon", "Coconut", "Pomelo", "Yuzu", "Kumquat", "Persimmon",
}

// RoomNameLister is the slice of Store the allocator needs
type RoomNameLister interface {
	ListRoomNames(ctx context.Context, guildID string) ([]string, error)
}

// NameAllocator hands out display names that no active room in the guild
// is using. Two concurrent picks can return the same name; names are
// cosmetic and that is tolerated.
type NameAllocator struct {
	rooms   RoomNameLister
	pool    []string
	shuffle func(n int, swap func(i, j int))
}

func NewNameAllocator(rooms RoomNameLister, pool []string) *NameAllocator {
	if len(pool) == 0 {
		pool = DefaultNamePool
	}
	return &NameAllocator{
		rooms:   rooms,
		pool:    pool,
		shuffle: rand.Shuffle,
	}
}

// Pick returns an unused name. When every pool name is taken it falls back
// to "<name> <n>" with the smallest free n starting at 2.
func (a *NameAllocator) Pick(ctx context.Context, guildID string) (string, error) {
	names, err := a.rooms.ListRoomNames(ctx, guildID)
	if err != nil {
		return "", fmt.Errorf("failed to load room names: %w", err)
	}

	used := make(map[string]struct{}, len(names))
	for _, n := range names {
		used[n] = struct{}{}
	}

	candidates := make([]string, len(a.pool))
	copy(candidates, a.pool)
	if a.shuffle != nil {
		a.shuffle(len(candidates), func(i, j int) {
			candidates[i], candidates[j] = candidates[j], candidates[i]
		})
	}

	for _, c := range candidates {
		if _, taken := used[c]; !taken {
			return c, nil
		}
	}

	for n := 2; ; n++ {
		for _, c := range candidates {
			name := fmt.Sprintf("%s %d", c, n)
			if _, taken := used[name]; !taken {
				return name, nil
			}
		}
	}
}
