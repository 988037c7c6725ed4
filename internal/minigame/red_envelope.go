package minigame

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/waterracebox/StockSprintBackend/internal/domain"
)

// defaultConsolation pads the packet pool when the catalogue holds fewer
// prizes than there are participants.
var defaultConsolation = domain.RedEnvelopeItem{
	Name:       "Consolation Prize",
	Type:       domain.PacketPhysical,
	PrizeValue: decimal.Zero,
}

// redEnvelopeState is the slot sub-state while a red-envelope round runs.
type redEnvelopeState struct {
	Packets      []domain.Packet        `json:"packets"`
	Participants []uuid.UUID            `json:"participants"`
	Consolation  domain.RedEnvelopeItem `json:"consolation"`
}

// redEnvelopeView is the client-facing projection. Prize contents stay hidden
// until the reveal; before that a packet only shows whether it is taken.
type redEnvelopeView struct {
	Packets      []packetView `json:"packets"`
	Participants int          `json:"participants"`
	Revealed     bool         `json:"revealed"`
}

type packetView struct {
	Index       int              `json:"index"`
	IsTaken     bool             `json:"isTaken"`
	OwnerID     *uuid.UUID       `json:"ownerId,omitempty"`
	IsScratched bool             `json:"isScratched"`
	Name        string           `json:"name,omitempty"`
	Type        string           `json:"type,omitempty"`
	PrizeValue  *decimal.Decimal `json:"prizeValue,omitempty"`
}

func (s *redEnvelopeState) view() *redEnvelopeView {
	v := &redEnvelopeView{Participants: len(s.Participants)}
	for i := range s.Packets {
		p := &s.Packets[i]
		v.Packets = append(v.Packets, packetView{
			Index:       p.Index,
			IsTaken:     p.IsTaken,
			OwnerID:     p.OwnerID,
			IsScratched: p.IsScratched,
		})
	}
	return v
}

// revealView exposes the full packet contents once the round has revealed.
func (s *redEnvelopeState) revealView() *redEnvelopeView {
	v := &redEnvelopeView{Participants: len(s.Participants), Revealed: true}
	for i := range s.Packets {
		p := &s.Packets[i]
		value := p.PrizeValue
		v.Packets = append(v.Packets, packetView{
			Index:       p.Index,
			IsTaken:     p.IsTaken,
			OwnerID:     p.OwnerID,
			IsScratched: p.IsScratched,
			Name:        p.Name,
			Type:        string(p.Type),
			PrizeValue:  &value,
		})
	}
	return v
}

// ──────────────────────────────────────────────────────────────────────────────
// Admin commands
// ──────────────────────────────────────────────────────────────────────────────

// initRedEnvelope expands the active catalogue into a shuffled packet pool
// sized to the current staff roster.
func (e *Engine) initRedEnvelope(ctx context.Context, p initPayload) error {
	items, err := e.repo.ListRedEnvelopeItems(ctx)
	if err != nil {
		return err
	}
	participants, err := e.userRepo.ListEmployeeIDs(ctx)
	if err != nil {
		return err
	}

	consolation := defaultConsolation
	if p.Consolation != nil {
		consolation = *p.Consolation
	}

	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	packets := domain.BuildPackets(items, len(participants), consolation, rng)

	e.cancelTimers()
	e.st = &state{
		GameType: domain.GameRedEnvelope,
		Phase:    domain.PhaseIdle,
		RedEnvelope: &redEnvelopeState{
			Packets:      packets,
			Participants: participants,
			Consolation:  consolation,
		},
	}
	if err := e.persistAndSync(ctx); err != nil {
		return err
	}
	e.logger.Info("minigame: red envelope initialised",
		"packets", len(packets), "participants", len(participants))
	return nil
}

// startShuffle refreshes the staff roster, rebuilds the pool against the new
// count, and enters SHUFFLE.
func (e *Engine) startShuffle(ctx context.Context) error {
	s := e.st.RedEnvelope
	if s == nil || e.st.Phase != domain.PhaseIdle {
		return domain.ErrMiniGameNotActive
	}

	participants, err := e.userRepo.ListEmployeeIDs(ctx)
	if err != nil {
		return err
	}
	items, err := e.repo.ListRedEnvelopeItems(ctx)
	if err != nil {
		return err
	}
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	s.Participants = participants
	s.Packets = domain.BuildPackets(items, len(participants), s.Consolation, rng)

	e.st.Phase = domain.PhaseShuffle
	return e.persistAndSync(ctx)
}

// startGrab enters COUNTDOWN and arms the transition to GAMING after the
// shared preparation window.
func (e *Engine) startGrab(ctx context.Context) error {
	if e.st.RedEnvelope == nil || e.st.Phase != domain.PhaseShuffle {
		return domain.ErrMiniGameNotActive
	}

	now := time.Now().UTC()
	end := now.Add(totalPrepTime)
	e.cancelTimers()
	e.st.Phase = domain.PhaseCountdown
	e.st.StartTime = &now
	e.st.EndTime = &end

	e.armGrabStart(totalPrepTime)
	return e.persistAndSync(ctx)
}

// armGrabStart schedules the COUNTDOWN → GAMING flip.
func (e *Engine) armGrabStart(d time.Duration) {
	e.afterLocked(d, func(ctx context.Context) {
		if e.st.RedEnvelope == nil || e.st.Phase != domain.PhaseCountdown {
			return
		}
		e.st.Phase = domain.PhaseGaming
		e.st.EndTime = nil
		if err := e.persistAndSync(ctx); err != nil {
			e.logger.Error("minigame: grab start failed", "error", err)
		}
	})
}

// revealResult credits every taken cash packet in one transaction, then
// enters REVEAL.
func (e *Engine) revealResult(ctx context.Context) error {
	s := e.st.RedEnvelope
	if s == nil || e.st.Phase != domain.PhaseGaming {
		return domain.ErrMiniGameNotActive
	}

	winners, err := e.creditCashPackets(ctx, s)
	if err != nil {
		return err
	}

	e.st.Phase = domain.PhaseReveal
	if err := e.persistAndSync(ctx); err != nil {
		return err
	}
	for _, id := range winners {
		e.emitAssets(ctx, id)
	}
	e.logger.Info("minigame: red envelope revealed", "cash_winners", len(winners))
	return nil
}

// creditCashPackets adds each cash prize to its owner's balance inside a
// single transaction holding every affected user row lock.
func (e *Engine) creditCashPackets(ctx context.Context, s *redEnvelopeState) (winners []uuid.UUID, err error) {
	tx, err := e.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("minigame: begin tx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	for i := range s.Packets {
		p := &s.Packets[i]
		if !p.IsTaken || p.Type != domain.PacketCash || !p.PrizeValue.IsPositive() || p.OwnerID == nil {
			continue
		}
		user, uerr := e.userRepo.GetForUpdate(ctx, tx, *p.OwnerID)
		if uerr != nil {
			err = uerr
			return nil, err
		}
		user.Cash = domain.RoundMoney(user.Cash.Add(p.PrizeValue))
		if err = e.userRepo.UpdateBalances(ctx, tx, user); err != nil {
			return nil, err
		}
		winners = append(winners, *p.OwnerID)
	}
	if err = tx.Commit(); err != nil {
		return nil, fmt.Errorf("minigame: commit: %w", err)
	}
	return winners, nil
}

// forceReveal ends the scratch wait unconditionally. The prize credits have
// already committed in revealResult; this only closes the round.
func (e *Engine) forceReveal(ctx context.Context) error {
	if e.st.RedEnvelope == nil || e.st.Phase != domain.PhaseReveal {
		return domain.ErrMiniGameNotActive
	}
	return e.finishScratch(ctx)
}

func (e *Engine) finishScratch(ctx context.Context) error {
	e.st.Phase = domain.PhaseResult
	if err := e.persistAndSync(ctx); err != nil {
		return err
	}
	e.emitEvent(map[string]any{"type": "ALL_SCRATCHED"})
	return nil
}

// ──────────────────────────────────────────────────────────────────────────────
// Player commands
// ──────────────────────────────────────────────────────────────────────────────

type grabPacketPayload struct {
	PacketIndex int `json:"packetIndex"`
}

// grabPacket claims one packet for the user: one packet per user, first claim
// per packet wins. No cash moves here.
func (e *Engine) grabPacket(ctx context.Context, userID uuid.UUID, data json.RawMessage) error {
	s := e.st.RedEnvelope
	if s == nil || e.st.Phase != domain.PhaseGaming {
		return domain.ErrMiniGameNotActive
	}
	var p grabPacketPayload
	if err := json.Unmarshal(data, &p); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrInvalidInput, err)
	}
	if p.PacketIndex < 0 || p.PacketIndex >= len(s.Packets) {
		return fmt.Errorf("%w: packet index out of range", domain.ErrInvalidInput)
	}

	for i := range s.Packets {
		if s.Packets[i].OwnerID != nil && *s.Packets[i].OwnerID == userID {
			return domain.ErrAlreadyParticipated
		}
	}
	target := &s.Packets[p.PacketIndex]
	if target.IsTaken {
		return domain.ErrPacketTaken
	}

	id := userID
	target.IsTaken = true
	target.OwnerID = &id

	if err := e.persistAndSync(ctx); err != nil {
		return err
	}
	e.emitEvent(map[string]any{
		"type":        "PACKET_TAKEN",
		"packetIndex": p.PacketIndex,
		"userId":      userID,
	})
	return nil
}

// scratchComplete marks the caller's packet scratched; once every taken
// packet is scratched the round closes.
func (e *Engine) scratchComplete(ctx context.Context, userID uuid.UUID) error {
	s := e.st.RedEnvelope
	if s == nil || e.st.Phase != domain.PhaseReveal {
		return domain.ErrMiniGameNotActive
	}

	allScratched := true
	found := false
	for i := range s.Packets {
		p := &s.Packets[i]
		if !p.IsTaken {
			continue
		}
		if p.OwnerID != nil && *p.OwnerID == userID {
			p.IsScratched = true
			found = true
		}
		if !p.IsScratched {
			allScratched = false
		}
	}
	if !found {
		return domain.ErrMiniGameNotActive
	}

	if allScratched {
		return e.finishScratch(ctx)
	}
	return e.persistAndSync(ctx)
}

// rearmRedEnvelope restores the one timed transition (COUNTDOWN → GAMING)
// after a restart.
func (e *Engine) rearmRedEnvelope() {
	if e.st.Phase == domain.PhaseCountdown {
		e.armGrabStart(e.remainingOrZero())
	}
}
