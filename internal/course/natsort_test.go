package course

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSort(t *testing.T) {
	assert.Equal(t, []string{"A1", "A2", "A10"}, Sort([]string{"A10", "A2", "A1"}))

	t.Run("classic lexical flaw is avoided", func(t *testing.T) {
		in := []string{"G10", "G9", "G1", "G100"}
		assert.Equal(t, []string{"G1", "G9", "G10", "G100"}, Sort(in))
		assert.Equal(t, []string{"G10", "G9", "G1", "G100"}, in, "input must not be mutated")
	})

	t.Run("second sort is a no-op", func(t *testing.T) {
		once := Sort([]string{"INF1-TD-G10-01", "INF1-TD-G2-01", "Anglais", "anglais", "INF1-TD-G2-02"})
		assert.Equal(t, once, Sort(once))
	})

	t.Run("stable for equal keys", func(t *testing.T) {
		assert.Equal(t, []string{"a1", "b", "B"}, Sort([]string{"b", "B", "a1"}))
		assert.Equal(t, []string{"a1", "B", "b"}, Sort([]string{"B", "b", "a1"}))
	})

	t.Run("empty and nil", func(t *testing.T) {
		assert.Equal(t, []string{}, Sort(nil))
		assert.Equal(t, []string{"", "a"}, Sort([]string{"a", ""}))
	})
}

func TestCompare(t *testing.T) {
	tests := []struct {
		a, b string
		sign int
	}{
		{"A2", "A10", -1},
		{"A10", "A2", 1},
		{"A1", "A1", 0},
		{"A", "A1", -1},
		{"a1", "A1", 0},
		{"École", "ecole", 0},
		{"Ecole2", "école10", -1},
		{"G01", "G1", 0},
		{"X99999999999999999999999", "X100000000000000000000000", -1},
		{"Anglais", "Biologie", -1},
		{"1A", "A1", -1},
	}
	for _, tt := range tests {
		got := Compare(tt.a, tt.b)
		switch {
		case tt.sign < 0:
			assert.Negative(t, got, "%q vs %q", tt.a, tt.b)
		case tt.sign > 0:
			assert.Positive(t, got, "%q vs %q", tt.a, tt.b)
		default:
			assert.Zero(t, got, "%q vs %q", tt.a, tt.b)
		}
	}
}

func TestCompareConcurrent(t *testing.T) {
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 200; j++ {
				assert.Negative(t, Compare("Réseaux2", "reseaux10"))
				assert.Equal(t, []string{"é1", "E2"}, Sort([]string{"E2", "é1"}))
			}
		}()
	}
	wg.Wait()
}
