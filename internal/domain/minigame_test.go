package domain_test

import (
	"math/rand"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"github.com/waterracebox/StockSprintBackend/internal/domain"
)

// ── Red envelope packets ──────────────────────────────────────────────────────

func consolationItem() domain.RedEnvelopeItem {
	return domain.RedEnvelopeItem{
		Name:       "Better luck next time",
		Type:       domain.PacketCash,
		PrizeValue: decimal.RequireFromString("1.00"),
		IsActive:   true,
	}
}

func TestBuildPackets_PadsToParticipants(t *testing.T) {
	items := []domain.RedEnvelopeItem{
		{Name: "Gold", Type: domain.PacketPhysical, Amount: 2, IsActive: true},
		{Name: "Cash 50", Type: domain.PacketCash, PrizeValue: decimal.RequireFromString("50.00"), Amount: 3, IsActive: true},
		{Name: "Inactive", Type: domain.PacketCash, Amount: 10, IsActive: false},
	}
	rng := rand.New(rand.NewSource(1))
	packets := domain.BuildPackets(items, 10, consolationItem(), rng)

	require.Len(t, packets, 10)
	counts := map[string]int{}
	for i, p := range packets {
		require.Equal(t, i, p.Index, "packets must be re-indexed after shuffle")
		require.False(t, p.IsTaken)
		counts[p.Name]++
	}
	require.Equal(t, 2, counts["Gold"])
	require.Equal(t, 3, counts["Cash 50"])
	require.Equal(t, 5, counts["Better luck next time"])
	require.Zero(t, counts["Inactive"])
}

func TestBuildPackets_TrimsSurplus(t *testing.T) {
	items := []domain.RedEnvelopeItem{
		{Name: "Cash 10", Type: domain.PacketCash, PrizeValue: decimal.RequireFromString("10.00"), Amount: 20, IsActive: true},
	}
	rng := rand.New(rand.NewSource(7))
	packets := domain.BuildPackets(items, 6, consolationItem(), rng)
	require.Len(t, packets, 6)
}

func TestBuildPackets_DeterministicForSeed(t *testing.T) {
	items := []domain.RedEnvelopeItem{
		{Name: "A", Type: domain.PacketCash, Amount: 3, IsActive: true},
		{Name: "B", Type: domain.PacketCash, Amount: 3, IsActive: true},
	}
	a := domain.BuildPackets(items, 6, consolationItem(), rand.New(rand.NewSource(42)))
	b := domain.BuildPackets(items, 6, consolationItem(), rand.New(rand.NewSource(42)))
	for i := range a {
		require.Equal(t, a[i].Name, b[i].Name, "same seed must shuffle identically")
	}
}

// ── Quiz rewards ──────────────────────────────────────────────────────────────

// TestQuizReward_SpeedBonus replays the tail-reward interpolation:
//
//	rewards: first=100 second=60 third=40 others=10, duration=60s
//	4th place answering with 42s left:
//	  10 + (40−10) × 42/60 = 10 + 30 × 0.7 = 31
func TestQuizReward_SpeedBonus(t *testing.T) {
	r := domain.QuizRewards{
		First:  decimal.RequireFromString("100"),
		Second: decimal.RequireFromString("60"),
		Third:  decimal.RequireFromString("40"),
		Others: decimal.RequireFromString("10"),
	}
	end := time.Date(2026, 3, 1, 12, 1, 0, 0, time.UTC)
	ts := end.Add(-42 * time.Second)

	got := r.QuizReward(4, ts, end, 60)
	require.True(t, got.Equal(decimal.RequireFromString("31")),
		"reward = %s, want 31", got)

	// Fixed podium rewards.
	require.True(t, r.QuizReward(1, ts, end, 60).Equal(r.First))
	require.True(t, r.QuizReward(2, ts, end, 60).Equal(r.Second))
	require.True(t, r.QuizReward(3, ts, end, 60).Equal(r.Third))

	// Clamps: answering after end pays bare Others, instant answer pays Third.
	require.True(t, r.QuizReward(5, end.Add(time.Second), end, 60).Equal(r.Others))
	require.True(t, r.QuizReward(5, end.Add(-time.Hour), end, 60).Equal(r.Third))
}

func TestRankQuizWinners_OrdersBySubmission(t *testing.T) {
	q := &domain.QuizQuestion{
		CorrectAnswer: "B",
		Duration:      60,
		QuizRewards: domain.QuizRewards{
			First:  decimal.RequireFromString("100"),
			Second: decimal.RequireFromString("60"),
			Third:  decimal.RequireFromString("40"),
			Others: decimal.RequireFromString("10"),
		},
	}
	end := time.Date(2026, 3, 1, 12, 1, 0, 0, time.UTC)
	u1, u2, u3 := uuid.New(), uuid.New(), uuid.New()

	answers := []domain.QuizAnswer{
		{UserID: u3, Answer: "B", SubmittedAt: end.Add(-10 * time.Second)},
		{UserID: u1, Answer: "B", SubmittedAt: end.Add(-55 * time.Second)},
		{UserID: u2, Answer: "A", SubmittedAt: end.Add(-50 * time.Second)}, // wrong
		{UserID: u2, Answer: "B", SubmittedAt: end.Add(-40 * time.Second)},
	}
	winners := domain.RankQuizWinners(answers, q, end)

	require.Len(t, winners, 3)
	require.Equal(t, u1, winners[0].UserID)
	require.Equal(t, 1, winners[0].Rank)
	require.True(t, winners[0].Reward.Equal(q.First))
	require.Equal(t, u2, winners[1].UserID)
	require.Equal(t, u3, winners[2].UserID)
	require.True(t, winners[2].Reward.Equal(q.Third))
}

// ── Minority settlement ───────────────────────────────────────────────────────

func bet(u uuid.UUID, opt string, amount string) domain.MinorityBet {
	return domain.MinorityBet{
		UserID: u,
		Option: opt,
		Amount: decimal.RequireFromString(amount),
	}
}

// TestSettleMinority_Standard replays the three-way split:
//
//	A: 1 voter, 100 staked   ← minority, wins
//	B: 2 voters, 150 staked
//	C: 2 voters, 130 staked
//	loser pool = 280; A's profit = round(100/100 × 280) = 280
func TestSettleMinority_Standard(t *testing.T) {
	winner := uuid.New()
	bets := map[uuid.UUID]domain.MinorityBet{
		winner:     bet(winner, "A", "100"),
		uuid.New(): bet(uuid.New(), "B", "70"),
		uuid.New(): bet(uuid.New(), "B", "80"),
		uuid.New(): bet(uuid.New(), "C", "60"),
		uuid.New(): bet(uuid.New(), "C", "70"),
	}
	// Fix the map keys to the bettors' own IDs.
	bets = rekey(bets)

	out := domain.SettleMinority(bets)
	require.Equal(t, domain.MinorityStandard, out.Status)
	require.Equal(t, []string{"A"}, out.WinnerOptions)

	var winnerRes *domain.MinorityUserResult
	totalProfit := decimal.Zero
	totalLoss := decimal.Zero
	for i := range out.Results {
		r := &out.Results[i]
		if r.Won {
			winnerRes = r
			totalProfit = totalProfit.Add(r.Profit)
		} else {
			totalLoss = totalLoss.Add(r.Loss)
		}
	}
	require.NotNil(t, winnerRes)
	require.True(t, winnerRes.Profit.Equal(decimal.RequireFromString("280")),
		"winner profit = %s, want 280", winnerRes.Profit)
	// Zero-sum up to rounding: winners gain what losers forfeit.
	require.True(t, totalProfit.Sub(totalLoss).Abs().LessThanOrEqual(decimal.RequireFromString("0.04")))
}

func TestSettleMinority_ProportionalSplit(t *testing.T) {
	u1, u2 := uuid.New(), uuid.New()
	bets := map[uuid.UUID]domain.MinorityBet{
		u1:         bet(u1, "A", "100"),
		u2:         bet(u2, "A", "300"),
		uuid.New(): bet(uuid.New(), "B", "50"),
		uuid.New(): bet(uuid.New(), "B", "50"),
		uuid.New(): bet(uuid.New(), "B", "100"),
	}
	bets = rekey(bets)

	out := domain.SettleMinority(bets)
	require.Equal(t, domain.MinorityStandard, out.Status)
	// Winner pool 400, loser pool 200: u1 gets 50, u2 gets 150.
	for _, r := range out.Results {
		switch r.UserID {
		case u1:
			require.True(t, r.Profit.Equal(decimal.RequireFromString("50")), "u1 profit = %s", r.Profit)
		case u2:
			require.True(t, r.Profit.Equal(decimal.RequireFromString("150")), "u2 profit = %s", r.Profit)
		}
	}
}

func TestSettleMinority_Refund(t *testing.T) {
	u1, u2 := uuid.New(), uuid.New()
	bets := map[uuid.UUID]domain.MinorityBet{
		u1: bet(u1, "A", "100"),
		u2: bet(u2, "A", "200"),
	}
	out := domain.SettleMinority(bets)
	require.Equal(t, domain.MinorityRefund, out.Status)
	require.Empty(t, out.Results, "refund moves no balances")
}

func TestSettleMinority_HouseWins(t *testing.T) {
	u1, u2, u3, u4 := uuid.New(), uuid.New(), uuid.New(), uuid.New()
	bets := map[uuid.UUID]domain.MinorityBet{
		u1: bet(u1, "A", "100"),
		u2: bet(u2, "A", "50"),
		u3: bet(u3, "B", "80"),
		u4: bet(u4, "B", "20"),
	}
	out := domain.SettleMinority(bets)
	require.Equal(t, domain.MinorityHouseWins, out.Status)
	require.Empty(t, out.WinnerOptions)
	for _, r := range out.Results {
		require.False(t, r.Won)
		require.True(t, r.Loss.Equal(r.Stake), "every stake is forfeited")
		require.True(t, r.Profit.IsZero())
	}
}

func TestSettleMinority_NoBets(t *testing.T) {
	out := domain.SettleMinority(map[uuid.UUID]domain.MinorityBet{})
	require.Equal(t, domain.MinorityRefund, out.Status)
	require.Empty(t, out.Results)
}

func rekey(in map[uuid.UUID]domain.MinorityBet) map[uuid.UUID]domain.MinorityBet {
	out := make(map[uuid.UUID]domain.MinorityBet, len(in))
	for _, b := range in {
		out[b.UserID] = b
	}
	return out
}
