package domain

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSettle_ExactMatchOnly(t *testing.T) {
	state := MarketState{
		Bets: []Bet{
			{Name: "a", Prediction: 10, Wager: 20},
			{Name: "b", Prediction: 12, Wager: 30},
			{Name: "c", Prediction: 12, Wager: 50},
			{Name: "d", Prediction: 15, Wager: 40},
		},
		Result: Int64Ptr(12),
	}

	s, err := Settle(state, 5)
	require.NoError(t, err)
	require.Len(t, s.Winners, 2)

	assert.Equal(t, "b", s.Winners[0].Bet.Name)
	assert.Equal(t, int64(150), s.Winners[0].Amount)
	assert.Equal(t, "c", s.Winners[1].Bet.Name)
	assert.Equal(t, int64(250), s.Winners[1].Amount)

	assert.Equal(t, int64(140), s.TotalPool)
	assert.Equal(t, int64(400), s.TotalPayout)
	assert.Equal(t, int64(-260), s.HouseNet)
	assert.False(t, s.HouseKeepsPool)
}

func TestSettle_NoWinnersHouseKeepsPool(t *testing.T) {
	state := MarketState{
		Bets:   []Bet{{Name: "a", Prediction: 11, Wager: 20}, {Name: "b", Prediction: 13, Wager: 30}},
		Result: Int64Ptr(12),
	}
	s, err := Settle(state, 5)
	require.NoError(t, err)
	assert.Empty(t, s.Winners)
	assert.True(t, s.HouseKeepsPool)
	assert.Equal(t, int64(50), s.HouseNet)
}

func TestSettle_Unresolved(t *testing.T) {
	_, err := Settle(InitialState(), 5)
	assert.True(t, errors.Is(err, ErrNotResolved))
}

func TestSettle_InvalidMultiplierFallsBackToDefault(t *testing.T) {
	state := MarketState{Bets: []Bet{{Name: "a", Prediction: 1, Wager: 10}}, Result: Int64Ptr(1)}
	s, err := Settle(state, 0)
	require.NoError(t, err)
	assert.Equal(t, DefaultPayoutMultiplier, s.Multiplier)
	assert.Equal(t, int64(50), s.TotalPayout)
}

func TestSettle_OverflowIsAnError(t *testing.T) {
	huge := int64(math.MaxInt64/5 + 1)

	payout := MarketState{Bets: []Bet{{Name: "a", Prediction: 1, Wager: huge}}, Result: Int64Ptr(1)}
	_, err := Settle(payout, 5)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrCorruptState)

	pool := MarketState{
		Bets: []Bet{
			{Name: "a", Prediction: 2, Wager: math.MaxInt64 - 10},
			{Name: "b", Prediction: 3, Wager: 20},
		},
		Result: Int64Ptr(1),
	}
	_, err = Settle(pool, 5)
	assert.ErrorIs(t, err, ErrCorruptState)

	total := MarketState{
		Bets: []Bet{
			{Name: "a", Prediction: 1, Wager: math.MaxInt64 / 8},
			{Name: "b", Prediction: 1, Wager: math.MaxInt64 / 8},
		},
		Result: Int64Ptr(1),
	}
	_, err = Settle(total, 5)
	assert.ErrorIs(t, err, ErrCorruptState)
}

func TestSettle_LargestStoredWagerFits(t *testing.T) {
	state := MarketState{Bets: []Bet{{Name: "a", Prediction: 1, Wager: MaxStoredWager}}, Result: Int64Ptr(1)}
	s, err := Settle(state, 1000)
	require.NoError(t, err)
	assert.Equal(t, MaxStoredWager*1000, s.TotalPayout)
}

func TestErrors_Taxonomy(t *testing.T) {
	in := &InvalidInputError{Field: "wager", Reason: "too big"}
	assert.True(t, errors.Is(in, ErrInvalidInput))
	assert.Equal(t, "invalid wager: too big", in.Error())

	cause := errors.New("disk full")
	pe := NewPersistenceError("save", cause)
	assert.True(t, errors.Is(pe, ErrPersistence))
	assert.True(t, errors.Is(pe, cause))
	assert.Nil(t, NewPersistenceError("save", nil))
	assert.Same(t, pe, NewPersistenceError("load", pe))

	assert.Equal(t, "invalid_input", ErrorKind(in))
	assert.Equal(t, "persistence", ErrorKind(pe))
	assert.Equal(t, "corrupt_state", ErrorKind(NewPersistenceError("load", ErrCorruptState)))
}
