package domain

import (
	"encoding/json"
	"math/rand"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ──────────────────────────────────────────────────────────────────────────────
// Mini-game runtime — shared slot
// ──────────────────────────────────────────────────────────────────────────────

// MiniGameType tags which of the three games owns the runtime slot.
type MiniGameType string

const (
	GameNone        MiniGameType = "NONE"
	GameRedEnvelope MiniGameType = "RED_ENVELOPE"
	GameQuiz        MiniGameType = "QUIZ"
	GameMinority    MiniGameType = "MINORITY"
)

// MiniGamePhase is the current stage of the active game's state machine.
type MiniGamePhase string

const (
	PhaseIdle      MiniGamePhase = "IDLE"
	PhaseShuffle   MiniGamePhase = "SHUFFLE"
	PhasePrepare   MiniGamePhase = "PREPARE"
	PhaseCountdown MiniGamePhase = "COUNTDOWN"
	PhaseGaming    MiniGamePhase = "GAMING"
	PhaseReveal    MiniGamePhase = "REVEAL"
	PhaseResult    MiniGamePhase = "RESULT"
)

// MiniGameRuntimeKey is the primary key of the single persisted runtime row.
const MiniGameRuntimeKey = "CURRENT_GAME"

// MiniGameRuntime is the persisted snapshot of the in-memory state machine.
// The payload is the game-specific state serialised as JSON; rehydration
// re-arms timers from EndTime − now.
type MiniGameRuntime struct {
	Key       string          `json:"key"        db:"key"`
	GameType  MiniGameType    `json:"game_type"  db:"game_type"`
	Phase     MiniGamePhase   `json:"phase"      db:"phase"`
	StartTime *time.Time      `json:"start_time" db:"start_time"`
	EndTime   *time.Time      `json:"end_time"   db:"end_time"`
	Payload   json.RawMessage `json:"payload"    db:"payload"`
	UpdatedAt time.Time       `json:"updated_at" db:"updated_at"`
}

// ──────────────────────────────────────────────────────────────────────────────
// Red envelope
// ──────────────────────────────────────────────────────────────────────────────

// PacketType distinguishes cash prizes (credited at reveal) from physical
// ones (handled off-system).
type PacketType string

const (
	PacketPhysical PacketType = "PHYSICAL"
	PacketCash     PacketType = "CASH"
)

// RedEnvelopeItem is a catalogue entry; Amount units expand into that many
// packets at INIT.
type RedEnvelopeItem struct {
	ID           int64           `json:"id"            db:"id"`
	Name         string          `json:"name"          db:"name"`
	Type         PacketType      `json:"type"          db:"type"`
	PrizeValue   decimal.Decimal `json:"prize_value"   db:"prize_value"`
	Amount       int             `json:"amount"        db:"amount"`
	DisplayOrder int             `json:"display_order" db:"display_order"`
	IsActive     bool            `json:"is_active"     db:"is_active"`
}

// Packet is one logical unit of the red-envelope distribution, indexed
// 0..N−1 after the shuffle.
type Packet struct {
	Index       int             `json:"index"`
	Name        string          `json:"name"`
	Type        PacketType      `json:"type"`
	PrizeValue  decimal.Decimal `json:"prize_value"`
	IsTaken     bool            `json:"is_taken"`
	OwnerID     *uuid.UUID      `json:"owner_id,omitempty"`
	IsScratched bool            `json:"is_scratched"`
}

// BuildPackets expands the active catalogue into one packet per unit, pads a
// deficit against the participant count with the consolation prize, trims a
// surplus, Fisher–Yates shuffles, and re-indexes 0..N−1.
func BuildPackets(items []RedEnvelopeItem, participants int, consolation RedEnvelopeItem, rng *rand.Rand) []Packet {
	var packets []Packet
	for _, it := range items {
		if !it.IsActive {
			continue
		}
		for i := 0; i < it.Amount; i++ {
			packets = append(packets, Packet{
				Name:       it.Name,
				Type:       it.Type,
				PrizeValue: it.PrizeValue,
			})
		}
	}

	for len(packets) < participants {
		packets = append(packets, Packet{
			Name:       consolation.Name,
			Type:       consolation.Type,
			PrizeValue: consolation.PrizeValue,
		})
	}
	if len(packets) > participants && participants > 0 {
		packets = packets[:participants]
	}

	// Fisher–Yates
	for i := len(packets) - 1; i > 0; i-- {
		j := rng.Intn(i + 1)
		packets[i], packets[j] = packets[j], packets[i]
	}
	for i := range packets {
		packets[i].Index = i
	}
	return packets
}

// ──────────────────────────────────────────────────────────────────────────────
// Quiz
// ──────────────────────────────────────────────────────────────────────────────

// QuizRewards holds the fixed prizes for the first three correct answers and
// the base used for the speed-interpolated tail.
type QuizRewards struct {
	First  decimal.Decimal `json:"first"  db:"reward_first"`
	Second decimal.Decimal `json:"second" db:"reward_second"`
	Third  decimal.Decimal `json:"third"  db:"reward_third"`
	Others decimal.Decimal `json:"others" db:"reward_others"`
}

// QuizQuestion is a catalogue entry for the speed quiz.
type QuizQuestion struct {
	ID            int64  `json:"id"             db:"id"`
	Question      string `json:"question"       db:"question"`
	OptionA       string `json:"option_a"       db:"option_a"`
	OptionB       string `json:"option_b"       db:"option_b"`
	OptionC       string `json:"option_c"       db:"option_c"`
	OptionD       string `json:"option_d"       db:"option_d"`
	CorrectAnswer string `json:"correct_answer" db:"correct_answer"` // A|B|C|D
	Duration      int64  `json:"duration"       db:"duration"`       // seconds in GAMING
	SortOrder     int    `json:"sort_order"     db:"sort_order"`
	QuizRewards
}

// QuizAnswer is a single stored submission. At most one per user per round.
type QuizAnswer struct {
	UserID      uuid.UUID `json:"user_id"`
	Answer      string    `json:"answer"`
	SubmittedAt time.Time `json:"submitted_at"`
}

// QuizWinner pairs a ranked correct answer with its computed reward.
type QuizWinner struct {
	UserID      uuid.UUID       `json:"user_id"`
	Rank        int             `json:"rank"`
	Reward      decimal.Decimal `json:"reward"`
	SubmittedAt time.Time       `json:"submitted_at"`
}

// QuizReward computes the prize for the given 1-based rank.
//
// Ranks 1–3 receive the fixed rewards; everyone after interpolates from
// Others toward Third by answer speed:
//
//	round(others + (third − others) · clamp((endTime − ts)/duration, 0, 1))
//
// A near-instant 4th place can therefore beat the fixed 3rd-place reward;
// the formula is kept as designed.
func (r QuizRewards) QuizReward(rank int, submittedAt, endTime time.Time, duration int64) decimal.Decimal {
	switch rank {
	case 1:
		return RoundMoney(r.First)
	case 2:
		return RoundMoney(r.Second)
	case 3:
		return RoundMoney(r.Third)
	}
	if duration <= 0 {
		return RoundMoney(r.Others)
	}
	speed := endTime.Sub(submittedAt).Seconds() / float64(duration)
	if speed < 0 {
		speed = 0
	}
	if speed > 1 {
		speed = 1
	}
	bonus := r.Third.Sub(r.Others).Mul(decimal.NewFromFloat(speed))
	return RoundMoney(r.Others.Add(bonus))
}

// RankQuizWinners selects the correct answers, orders them by submission time
// (ascending), and attaches per-rank rewards.
func RankQuizWinners(answers []QuizAnswer, q *QuizQuestion, endTime time.Time) []QuizWinner {
	var correct []QuizAnswer
	for _, a := range answers {
		if a.Answer == q.CorrectAnswer {
			correct = append(correct, a)
		}
	}
	sort.Slice(correct, func(i, j int) bool {
		return correct[i].SubmittedAt.Before(correct[j].SubmittedAt)
	})

	winners := make([]QuizWinner, 0, len(correct))
	for i, a := range correct {
		rank := i + 1
		winners = append(winners, QuizWinner{
			UserID:      a.UserID,
			Rank:        rank,
			Reward:      q.QuizReward(rank, a.SubmittedAt, endTime, q.Duration),
			SubmittedAt: a.SubmittedAt,
		})
	}
	return winners
}

// ──────────────────────────────────────────────────────────────────────────────
// Minority vote
// ──────────────────────────────────────────────────────────────────────────────

// MinorityQuestion is a catalogue entry for the minority vote; there is no
// correct answer, the least-picked option wins.
type MinorityQuestion struct {
	ID        int64  `json:"id"         db:"id"`
	Question  string `json:"question"   db:"question"`
	OptionA   string `json:"option_a"   db:"option_a"`
	OptionB   string `json:"option_b"   db:"option_b"`
	OptionC   string `json:"option_c"   db:"option_c"`
	OptionD   string `json:"option_d"   db:"option_d"`
	Duration  int64  `json:"duration"   db:"duration"`
	SortOrder int    `json:"sort_order" db:"sort_order"`
}

// VoteOptions are the accepted minority/quiz option keys.
var VoteOptions = []string{"A", "B", "C", "D"}

// IsVoteOption reports whether s is one of A, B, C, D.
func IsVoteOption(s string) bool {
	for _, o := range VoteOptions {
		if o == s {
			return true
		}
	}
	return false
}

// MinorityBet is a player's (re-)submission; the last one per user wins.
type MinorityBet struct {
	UserID      uuid.UUID       `json:"user_id"`
	Option      string          `json:"option"`
	Amount      decimal.Decimal `json:"amount"`
	SubmittedAt time.Time       `json:"submitted_at"`
}

// MinorityStatus classifies the settlement case.
type MinorityStatus string

const (
	MinorityRefund    MinorityStatus = "REFUND"     // one voted option: nothing moves
	MinorityHouseWins MinorityStatus = "HOUSE_WINS" // tie on counts: all stakes lost
	MinorityStandard  MinorityStatus = "STANDARD"   // smallest count wins the loser pool
)

// MinorityOptionStat aggregates one option's votes.
type MinorityOptionStat struct {
	Count    int             `json:"count"`
	TotalBet decimal.Decimal `json:"total_bet"`
	UserIDs  []uuid.UUID     `json:"user_ids"`
}

// MinorityUserResult is the per-bettor settlement line. Profit is positive
// for winners; Loss is the stake a loser forfeits (charged to cash first,
// overflow to debt inside the settlement transaction).
type MinorityUserResult struct {
	UserID uuid.UUID       `json:"user_id"`
	Option string          `json:"option"`
	Stake  decimal.Decimal `json:"stake"`
	Won    bool            `json:"won"`
	Profit decimal.Decimal `json:"profit"`
	Loss   decimal.Decimal `json:"loss"`
}

// MinorityOutcome is the full settlement plan: pure data, applied to user
// rows inside a single store transaction.
type MinorityOutcome struct {
	Status        MinorityStatus                `json:"status"`
	WinnerOptions []string                      `json:"winner_options"`
	LoserOptions  []string                      `json:"loser_options"`
	Options       map[string]MinorityOptionStat `json:"options"`
	Results       []MinorityUserResult          `json:"results"`
}

// SettleMinority computes the settlement plan from the final bet set.
//
// Only options with at least one vote participate. One voted option refunds
// everyone (no balance changes). Two or more voted options with all-equal
// counts means the house wins every stake. Otherwise the strictly smallest
// count wins: each winning stake s gains round(s/winnerPool · loserPool);
// each losing stake is forfeited.
func SettleMinority(bets map[uuid.UUID]MinorityBet) MinorityOutcome {
	out := MinorityOutcome{
		Options: make(map[string]MinorityOptionStat, len(VoteOptions)),
	}
	for _, o := range VoteOptions {
		out.Options[o] = MinorityOptionStat{TotalBet: decimal.Zero}
	}
	for _, b := range bets {
		st := out.Options[b.Option]
		st.Count++
		st.TotalBet = st.TotalBet.Add(b.Amount)
		st.UserIDs = append(st.UserIDs, b.UserID)
		out.Options[b.Option] = st
	}

	var voted []string
	minCount := -1
	for _, o := range VoteOptions {
		st := out.Options[o]
		if st.Count == 0 {
			continue
		}
		voted = append(voted, o)
		if minCount < 0 || st.Count < minCount {
			minCount = st.Count
		}
	}

	switch {
	case len(voted) <= 1:
		out.Status = MinorityRefund
		return out
	default:
		allEqual := true
		for _, o := range voted {
			if out.Options[o].Count != minCount {
				allEqual = false
				break
			}
		}
		if allEqual {
			out.Status = MinorityHouseWins
		} else {
			out.Status = MinorityStandard
		}
	}

	winners := make(map[string]bool, len(voted))
	if out.Status == MinorityStandard {
		for _, o := range voted {
			if out.Options[o].Count == minCount {
				winners[o] = true
				out.WinnerOptions = append(out.WinnerOptions, o)
			} else {
				out.LoserOptions = append(out.LoserOptions, o)
			}
		}
	} else {
		// HOUSE_WINS: every voted option loses.
		out.LoserOptions = voted
	}

	winnerPool := decimal.Zero
	loserPool := decimal.Zero
	for _, o := range voted {
		if winners[o] {
			winnerPool = winnerPool.Add(out.Options[o].TotalBet)
		} else {
			loserPool = loserPool.Add(out.Options[o].TotalBet)
		}
	}

	for _, b := range bets {
		res := MinorityUserResult{
			UserID: b.UserID,
			Option: b.Option,
			Stake:  b.Amount,
			Profit: decimal.Zero,
			Loss:   decimal.Zero,
		}
		if winners[b.Option] {
			res.Won = true
			if winnerPool.IsPositive() && b.Amount.IsPositive() {
				res.Profit = RoundMoney(b.Amount.Div(winnerPool).Mul(loserPool))
			}
		} else {
			res.Loss = b.Amount
		}
		out.Results = append(out.Results, res)
	}
	sort.Slice(out.Results, func(i, j int) bool {
		return out.Results[i].UserID.String() < out.Results[j].UserID.String()
	})
	return out
}
