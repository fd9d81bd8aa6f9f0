package notify_test

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/alejandrodnm/betledger/internal/adapters/notify"
	"github.com/alejandrodnm/betledger/internal/domain"
	"github.com/alejandrodnm/betledger/internal/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func makeView(state domain.MarketState) ports.View {
	v := ports.View{
		State:        state,
		Stats:        domain.ComputeStats(state.Bets),
		Leaderboard:  domain.Leaderboard(state.Bets, 5),
		Distribution: domain.Distribution(state.Bets),
	}
	if s, err := domain.Settle(state, 5); err == nil {
		v.Settlement = &s
	}
	return v
}

func openState() domain.MarketState {
	return domain.MarketState{
		MarketOpen: true,
		Bets: []domain.Bet{
			{Name: "Ana", Prediction: 12, Wager: 50},
			{Name: "Bo", Prediction: 40, Wager: 120},
			{Name: "Ana", Prediction: 12, Wager: 30},
		},
	}
}

func TestConsole_Render_OpenMarket(t *testing.T) {
	var buf bytes.Buffer
	n := notify.NewConsoleWriter(&buf, false)

	require.NoError(t, n.Render(context.Background(), makeView(openState())))

	out := buf.String()
	assert.Contains(t, out, "MARKET OPEN")
	assert.Contains(t, out, "200 KC")
	assert.Contains(t, out, "Ana")
	assert.Contains(t, out, "Bo")
	assert.Contains(t, out, "120 KC")
	assert.NotContains(t, out, "RESULT")
}

func TestConsole_Render_Empty(t *testing.T) {
	var buf bytes.Buffer
	n := notify.NewConsoleWriter(&buf, false)

	require.NoError(t, n.Render(context.Background(), makeView(domain.InitialState())))
	assert.Contains(t, buf.String(), "Waiting for the first player")
}

func TestConsole_Render_Winners(t *testing.T) {
	st := openState()
	st.MarketOpen = false
	st.Result = domain.Int64Ptr(12)

	var buf bytes.Buffer
	n := notify.NewConsoleWriter(&buf, false)
	require.NoError(t, n.Render(context.Background(), makeView(st)))

	out := buf.String()
	assert.Contains(t, out, "RESULT: 12")
	assert.Contains(t, out, "250 KC") // 50 × 5
	assert.Contains(t, out, "150 KC") // 30 × 5
	assert.NotContains(t, out, "house keeps")
}

func TestConsole_Render_NoWinnersIsExplicit(t *testing.T) {
	st := openState()
	st.MarketOpen = false
	st.Result = domain.Int64Ptr(7)

	var buf bytes.Buffer
	n := notify.NewConsoleWriter(&buf, false)
	require.NoError(t, n.Render(context.Background(), makeView(st)))

	assert.Contains(t, buf.String(), "house keeps the pool of 200 KC")
}

func TestConsole_Render_Compact(t *testing.T) {
	var buf bytes.Buffer
	n := notify.NewConsoleWriter(&buf, true)
	require.NoError(t, n.Render(context.Background(), makeView(openState())))

	out := buf.String()
	assert.Equal(t, 1, strings.Count(out, "\n"))
	assert.Contains(t, out, "OPEN pool:200 KC traders:3")
	assert.Contains(t, out, "top:12 (67%)")
}

func TestConsole_Render_LongNameTruncated(t *testing.T) {
	st := domain.MarketState{
		MarketOpen: true,
		Bets:       []domain.Bet{{Name: strings.Repeat("A", 50), Prediction: 1, Wager: 10}},
	}
	var buf bytes.Buffer
	n := notify.NewConsoleWriter(&buf, false)
	require.NoError(t, n.Render(context.Background(), makeView(st)))
	assert.Contains(t, buf.String(), "...")
}
