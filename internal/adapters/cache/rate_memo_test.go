package cache

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/nemeshnorbert/reveal/internal/domain"
)

func TestRateMemo_SetGet(t *testing.T) {
	memo, err := NewRateMemo(DefaultMemoCapacity)
	require.NoError(t, err)
	defer memo.Close()

	bid := domain.USDBid{Date: "2020-01-01", Symbol: "EUR"}
	memo.Set(bid, 0.9)
	memo.Wait()

	rate, ok := memo.Get(bid)
	require.True(t, ok)
	require.Equal(t, 0.9, rate)
}

func TestRateMemo_MissesUnknownKey(t *testing.T) {
	memo, err := NewRateMemo(DefaultMemoCapacity)
	require.NoError(t, err)
	defer memo.Close()

	_, ok := memo.Get(domain.USDBid{Date: "2020-01-01", Symbol: "EUR"})
	require.False(t, ok)
}

func TestRateMemo_KeysAreDateScoped(t *testing.T) {
	memo, err := NewRateMemo(DefaultMemoCapacity)
	require.NoError(t, err)
	defer memo.Close()

	memo.Set(domain.USDBid{Date: "2020-01-01", Symbol: "EUR"}, 0.9)
	memo.Wait()

	_, ok := memo.Get(domain.USDBid{Date: "2020-01-02", Symbol: "EUR"})
	require.False(t, ok)
}
