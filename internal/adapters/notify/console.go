package notify

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/alejandrodnm/betledger/internal/domain"
	"github.com/alejandrodnm/betledger/internal/ports"
	"github.com/olekukonko/tablewriter"
)

const (
	nameWidth    = 20
	maxHistogram = 10 // barras del histograma de predicciones
	barWidth     = 30
)

// Console implementa ports.Notifier.
type Console struct {
	out      io.Writer
	currency string
	compact  bool
	now      func() time.Time
}

// NewConsoleTo crea un notificador sobre un writer arbitrario.
func NewConsoleTo(w io.Writer, currency string, compact bool) *Console {
	return &Console{out: w, currency: currency, compact: compact, now: time.Now}
}

// NewConsoleWriter crea un notificador para tests.
func NewConsoleWriter(w io.Writer, compact bool) *Console {
	return NewConsoleTo(w, "KC", compact)
}

// Render imprime el mercado en el modo configurado.
func (c *Console) Render(_ context.Context, v ports.View) error {
	if c.compact {
		c.printCompact(v)
		return nil
	}

	c.printHeader(v)
	if len(v.State.Bets) == 0 {
		fmt.Fprintln(c.out, "  Waiting for the first player to join the lobby...")
	} else {
		c.printLeaderboard(v.Leaderboard)
		c.printDistribution(v.Distribution)
	}
	if v.Settlement != nil {
		c.printSettlement(*v.Settlement)
	}
	return nil
}

// printCompact imprime lo esencial en una línea, para el modo watch.
func (c *Console) printCompact(v ports.View) {
	var sb strings.Builder
	fmt.Fprintf(&sb, "[%s] %s pool:%d %s traders:%d",
		c.now().Format("15:04:05"),
		v.State.Phase().Label(),
		v.Stats.TotalPool, c.currency,
		v.Stats.TraderCount,
	)
	if v.Stats.HasConsensus {
		fmt.Fprintf(&sb, " top:%d (%.0f%%)", v.Stats.ConsensusGuess, v.Stats.ConsensusConfidence*100)
	}
	if v.Settlement != nil {
		fmt.Fprintf(&sb, " | result:%d winners:%d", v.Settlement.Result, len(v.Settlement.Winners))
		if v.Settlement.HouseKeepsPool {
			sb.WriteString(" house keeps pool")
		}
	}
	fmt.Fprintln(c.out, sb.String())
}

func (c *Console) printHeader(v ports.View) {
	fmt.Fprintf(c.out, "\n=== MARKET %s ===\n", v.State.Phase().Label())
	fmt.Fprintf(c.out, "  Total pool:   %d %s\n", v.Stats.TotalPool, c.currency)
	fmt.Fprintf(c.out, "  Players:      %d\n", v.Stats.TraderCount)
	if v.Stats.HasConsensus {
		fmt.Fprintf(c.out, "  Top guess:    %d (%d bets, %.0f%%)\n",
			v.Stats.ConsensusGuess, v.Stats.ConsensusCount, v.Stats.ConsensusConfidence*100)
	}
	fmt.Fprintln(c.out)
}

func (c *Console) printLeaderboard(rows []domain.LeaderboardEntry) {
	fmt.Fprintln(c.out, "  --- LEADERBOARD ---")
	table := tablewriter.NewWriter(c.out)
	table.Header("#", "Player", "Wagered", "Bets")
	for _, r := range rows {
		table.Append(
			fmt.Sprintf("%d", r.Rank),
			compactName(r.Name, nameWidth),
			fmt.Sprintf("%d %s", r.TotalWager, c.currency),
			fmt.Sprintf("%d", r.BetCount),
		)
	}
	table.Render()
}

// printDistribution pinta el histograma de predicciones ("market volume").
func (c *Console) printDistribution(buckets []domain.GuessBucket) {
	if len(buckets) == 0 {
		return
	}
	fmt.Fprintln(c.out, "\n  --- GUESSES ---")
	maxCount := buckets[0].Count
	for i, b := range buckets {
		if i >= maxHistogram {
			fmt.Fprintf(c.out, "  ... %d more\n", len(buckets)-maxHistogram)
			break
		}
		n := b.Count * barWidth / maxCount
		if n == 0 {
			n = 1
		}
		fmt.Fprintf(c.out, "  %6d | %s %d\n", b.Prediction, strings.Repeat("#", n), b.Count)
	}
}

func (c *Console) printSettlement(s domain.Settlement) {
	fmt.Fprintf(c.out, "\n=== RESULT: %d ===\n", s.Result)
	if s.HouseKeepsPool {
		fmt.Fprintf(c.out, "  No winners: house keeps the pool of %d %s\n", s.TotalPool, c.currency)
		return
	}

	table := tablewriter.NewWriter(c.out)
	table.Header("Player", "Guess", "Wager", "Payout")
	for _, w := range s.Winners {
		table.Append(
			compactName(w.Bet.Name, nameWidth),
			fmt.Sprintf("%d", w.Bet.Prediction),
			fmt.Sprintf("%d", w.Bet.Wager),
			fmt.Sprintf("%d %s", w.Amount, c.currency),
		)
	}
	table.Render()
	fmt.Fprintf(c.out, "  Payout %dx | paid %d %s | house net %d %s\n",
		s.Multiplier, s.TotalPayout, c.currency, s.HouseNet, c.currency)
}

// compactName trunca a maxLen runas añadiendo "...".
func compactName(s string, maxLen int) string {
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	return string(r[:maxLen-3]) + "..."
}
