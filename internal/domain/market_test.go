package domain

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitialState(t *testing.T) {
	s := InitialState()
	assert.True(t, s.MarketOpen)
	assert.NotNil(t, s.Bets)
	assert.Empty(t, s.Bets)
	assert.Nil(t, s.Result)
	assert.Equal(t, PhaseOpen, s.Phase())
}

func TestMarketState_Phase(t *testing.T) {
	assert.Equal(t, PhaseOpen, MarketState{MarketOpen: true}.Phase())
	assert.Equal(t, PhaseClosed, MarketState{MarketOpen: false}.Phase())
	assert.Equal(t, PhaseResolved, MarketState{Result: Int64Ptr(3)}.Phase())
	assert.Equal(t, "RESOLVED", PhaseResolved.String())
}

func TestMarketState_CloneIsDeep(t *testing.T) {
	s := MarketState{
		Bets:   []Bet{{Name: "A", Prediction: 1, Wager: 10}},
		Result: Int64Ptr(1),
	}
	c := s.Clone()
	c.Bets[0].Name = "B"
	*c.Result = 9
	c.Bets = append(c.Bets, Bet{Name: "C"})

	assert.Equal(t, "A", s.Bets[0].Name)
	assert.Equal(t, int64(1), *s.Result)
	assert.Len(t, s.Bets, 1)
}

func TestMarketState_JSONFormat(t *testing.T) {
	s := MarketState{
		MarketOpen: false,
		Bets:       []Bet{{Name: "Ana", Prediction: 12, Wager: 50, Timestamp: 1700000000.25}},
		Result:     Int64Ptr(12),
	}
	data, err := json.Marshal(s)
	require.NoError(t, err)
	assert.JSONEq(t,
		`{"market_open":false,"bets":[{"name":"Ana","prediction":12,"wager":50,"timestamp":1700000000.25}],"result":12}`,
		string(data))

	data, err = json.Marshal(InitialState())
	require.NoError(t, err)
	assert.Equal(t, `{"market_open":true,"bets":[],"result":null}`, string(data))
}

func TestMarketState_DecodeSourceFile(t *testing.T) {
	raw := `{"market_open": true, "bets": [{"name": "k", "prediction": 40, "wager": 10, "timestamp": 1712345678.123456}], "result": null}`
	var s MarketState
	require.NoError(t, json.Unmarshal([]byte(raw), &s))
	require.NoError(t, s.Validate())
	assert.Equal(t, PhaseOpen, s.Phase())
	assert.Equal(t, int64(40), s.Bets[0].Prediction)
}

func TestMarketState_Validate(t *testing.T) {
	assert.NoError(t, InitialState().Validate())
	assert.Error(t, MarketState{MarketOpen: true, Result: Int64Ptr(1)}.Validate())
	assert.Error(t, MarketState{Result: Int64Ptr(-1)}.Validate())
	assert.Error(t, MarketState{Bets: []Bet{{Name: " ", Wager: 10}}}.Validate())
	assert.Error(t, MarketState{Bets: []Bet{{Name: "a", Wager: 0}}}.Validate())
	assert.Error(t, MarketState{Bets: []Bet{{Name: "a", Wager: 5, Prediction: -2}}}.Validate())
	assert.NoError(t, MarketState{Bets: []Bet{{Name: "a", Wager: MaxStoredWager}}}.Validate())
	assert.Error(t, MarketState{Bets: []Bet{{Name: "a", Wager: MaxStoredWager + 1}}}.Validate())
}

func TestBet_Time(t *testing.T) {
	ts := time.Date(2026, 3, 1, 12, 0, 0, 500_000_000, time.UTC)
	b := Bet{Timestamp: UnixSeconds(ts)}
	assert.WithinDuration(t, ts, b.Time(), time.Microsecond)
}
