package domain

import "sort"

// Stats son los agregados derivados de las apuestas, para cualquier consumidor.
type Stats struct {
	TotalPool           int64
	TraderCount         int
	ConsensusGuess      int64
	ConsensusCount      int
	ConsensusConfidence float64 // ConsensusCount / TraderCount, 0..1
	HasConsensus        bool    // false si no hay apuestas
}

// ComputeStats calcula pool total, número de apuestas y la predicción más
// frecuente.
//
// Empate en la moda: gana el valor numérico más pequeño, así el resultado no
// depende del orden de inserción.
func ComputeStats(bets []Bet) Stats {
	var st Stats
	if len(bets) == 0 {
		return st
	}

	counts := make(map[int64]int, len(bets))
	for _, b := range bets {
		st.TotalPool += b.Wager
		counts[b.Prediction]++
	}
	st.TraderCount = len(bets)

	first := true
	for guess, n := range counts {
		if first || n > st.ConsensusCount || (n == st.ConsensusCount && guess < st.ConsensusGuess) {
			st.ConsensusGuess = guess
			st.ConsensusCount = n
			first = false
		}
	}
	st.HasConsensus = true
	st.ConsensusConfidence = float64(st.ConsensusCount) / float64(st.TraderCount)
	return st
}

// GuessBucket es una barra del histograma de predicciones.
type GuessBucket struct {
	Prediction int64
	Count      int
	Volume     int64 // suma de wagers con esta predicción
}

// Distribution agrupa las apuestas por predicción.
// Ordenado por Count desc, luego Prediction asc.
func Distribution(bets []Bet) []GuessBucket {
	idx := make(map[int64]int)
	var out []GuessBucket
	for _, b := range bets {
		i, ok := idx[b.Prediction]
		if !ok {
			i = len(out)
			idx[b.Prediction] = i
			out = append(out, GuessBucket{Prediction: b.Prediction})
		}
		out[i].Count++
		out[i].Volume += b.Wager
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Prediction < out[j].Prediction
	})
	return out
}

// LeaderboardEntry es una fila del leaderboard agrupado por nombre.
type LeaderboardEntry struct {
	Rank       int
	Name       string
	TotalWager int64
	BetCount   int
}

// Leaderboard agrupa por nombre exacto, suma wagers y ordena desc.
// Empates: orden de primera aparición del nombre en bets (sort estable).
// n <= 0 devuelve todas las filas.
func Leaderboard(bets []Bet, n int) []LeaderboardEntry {
	idx := make(map[string]int)
	var rows []LeaderboardEntry
	for _, b := range bets {
		i, ok := idx[b.Name]
		if !ok {
			i = len(rows)
			idx[b.Name] = i
			rows = append(rows, LeaderboardEntry{Name: b.Name})
		}
		rows[i].TotalWager += b.Wager
		rows[i].BetCount++
	}

	sort.SliceStable(rows, func(i, j int) bool {
		return rows[i].TotalWager > rows[j].TotalWager
	})

	if n > 0 && len(rows) > n {
		rows = rows[:n]
	}
	for i := range rows {
		rows[i].Rank = i + 1
	}
	return rows
}
