package pool

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFailOverBalancerPreservesOrder(t *testing.T) {
	b := FailOverBalancer{}
	assert.Equal(t, []string{"a", "b", "c"}, b.Order([]string{"a", "b", "c"}))
}

func TestRoundRobinBalancerRotates(t *testing.T) {
	b := NewRoundRobinBalancer()
	hosts := []string{"a", "b", "c"}

	assert.Equal(t, []string{"a", "b", "c"}, b.Order(hosts))
	assert.Equal(t, []string{"b", "c", "a"}, b.Order(hosts))
	assert.Equal(t, []string{"c", "a", "b"}, b.Order(hosts))
	assert.Equal(t, []string{"a", "b", "c"}, b.Order(hosts))
}

func TestRandomBalancerIsPermutation(t *testing.T) {
	b := NewRandomBalancer()
	hosts := []string{"a", "b", "c", "d"}

	out := b.Order(hosts)
	assert.ElementsMatch(t, hosts, out)
	assert.Equal(t, []string{"a", "b", "c", "d"}, hosts, "input slice must not be mutated")
}

func TestLeastConnectionsBalancerOrdersAscending(t *testing.T) {
	counts := NewHostCounts()
	counts.Add("a", 5)
	counts.Add("b", 1)

	b := NewLeastConnectionsBalancer(counts)
	out := b.Order([]string{"a", "b", "c"})
	assert.Equal(t, []string{"c", "b", "a"}, out)
}

func TestHostCountsDropsZeroAndNegative(t *testing.T) {
	counts := NewHostCounts()
	counts.Add("a", 3)
	counts.Add("a", -3)

	snap := counts.snapshot()
	_, ok := snap["a"]
	assert.False(t, ok, "count should be removed once it drops to zero")
}
