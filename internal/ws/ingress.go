package ws

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/waterracebox/StockSprintBackend/internal/domain"
)

// commandTimeout bounds each ingress command so a stuck store cannot pin a
// read pump forever.
const commandTimeout = 10 * time.Second

// TradeHandler executes player trading commands. Success feedback
// (ASSETS_UPDATE and friends) is emitted by the handler itself; the router
// only reports failures back to the sender.
type TradeHandler interface {
	BuyStock(ctx context.Context, userID uuid.UUID, quantity int64) (domain.AssetsSnapshot, error)
	SellStock(ctx context.Context, userID uuid.UUID, quantity int64) (domain.AssetsSnapshot, error)
	OpenContract(ctx context.Context, userID uuid.UUID, side domain.ContractSide, quantity int64, leverage int) (domain.AssetsSnapshot, error)
	CancelContracts(ctx context.Context, userID uuid.UUID) (domain.AssetsSnapshot, error)
	Borrow(ctx context.Context, userID uuid.UUID, amount decimal.Decimal) (domain.AssetsSnapshot, error)
	Repay(ctx context.Context, userID uuid.UUID, amount decimal.Decimal) (domain.AssetsSnapshot, error)
	VisitLoanShark(ctx context.Context, userID uuid.UUID) error
}

// MiniGameHandler executes mini-game commands against the shared runtime.
type MiniGameHandler interface {
	PlayerAction(ctx context.Context, userID uuid.UUID, action string, data json.RawMessage) error
	AdminAction(ctx context.Context, userID uuid.UUID, action string, data json.RawMessage) error
}

// CommandRouter decodes ingress envelopes and dispatches them to the
// handlers. Failures go back to the originating session only.
type CommandRouter struct {
	trades   TradeHandler
	miniGame MiniGameHandler
	logger   *slog.Logger
}

// NewCommandRouter creates a router over the given handlers.
func NewCommandRouter(trades TradeHandler, miniGame MiniGameHandler, logger *slog.Logger) *CommandRouter {
	return &CommandRouter{trades: trades, miniGame: miniGame, logger: logger}
}

// Dispatch routes one decoded envelope from a session. Unknown events are
// logged and dropped.
func (r *CommandRouter) Dispatch(c *Client, env Envelope) {
	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()

	switch env.Event {
	case EventBuyStock:
		r.trade(ctx, c, env, func(p QuantityPayload) (domain.AssetsSnapshot, error) {
			return r.trades.BuyStock(ctx, c.userID, p.Quantity)
		})

	case EventSellStock:
		r.trade(ctx, c, env, func(p QuantityPayload) (domain.AssetsSnapshot, error) {
			return r.trades.SellStock(ctx, c.userID, p.Quantity)
		})

	case EventBuyContract:
		var p BuyContractPayload
		if !r.decode(c, env, &p) {
			return
		}
		assets, err := r.trades.OpenContract(ctx, c.userID, p.Side, p.Quantity, p.Leverage)
		r.finish(c, env.Event, assets, err)

	case EventCancelContract:
		// Cancels every open order the user placed today; no payload.
		assets, err := r.trades.CancelContracts(ctx, c.userID)
		r.finish(c, env.Event, assets, err)

	case EventBorrowMoney:
		var p AmountPayload
		if !r.decode(c, env, &p) {
			return
		}
		assets, err := r.trades.Borrow(ctx, c.userID, p.Amount)
		r.finish(c, env.Event, assets, err)

	case EventRepayMoney:
		var p AmountPayload
		if !r.decode(c, env, &p) {
			return
		}
		assets, err := r.trades.Repay(ctx, c.userID, p.Amount)
		r.finish(c, env.Event, assets, err)

	case EventVisitLoanShark:
		if err := r.trades.VisitLoanShark(ctx, c.userID); err != nil {
			r.fail(c, env.Event, err)
		}

	case EventMiniGameAction:
		var p MiniGameActionPayload
		if !r.decode(c, env, &p) {
			return
		}
		if err := r.miniGame.PlayerAction(ctx, c.userID, p.Type, p.Data); err != nil {
			r.fail(c, env.Event, err)
		}

	case EventAdminMiniGameAction:
		// Non-admin senders are ignored, with an audit trail.
		if !c.role.IsAdmin() {
			r.logger.Warn("ws: admin mini-game action from non-admin ignored",
				"user_id", c.userID, "role", c.role)
			return
		}
		var p MiniGameActionPayload
		if !r.decode(c, env, &p) {
			return
		}
		if err := r.miniGame.AdminAction(ctx, c.userID, p.Type, p.Data); err != nil {
			r.fail(c, env.Event, err)
		}

	default:
		r.logger.Warn("ws: unknown ingress event", "event", env.Event, "user_id", c.userID)
	}
}

// trade handles the shared quantity-payload commands.
func (r *CommandRouter) trade(_ context.Context, c *Client, env Envelope, run func(QuantityPayload) (domain.AssetsSnapshot, error)) {
	var p QuantityPayload
	if !r.decode(c, env, &p) {
		return
	}
	assets, err := run(p)
	r.finish(c, env.Event, assets, err)
}

// decode unmarshals the payload, reporting malformed input to the sender.
func (r *CommandRouter) decode(c *Client, env Envelope, dst any) bool {
	if err := json.Unmarshal(env.Payload, dst); err != nil {
		c.hub.sendToClient(c, EventTradeError, TradeErrorPayload{
			Action:  env.Event,
			Code:    "VALIDATION",
			Message: "malformed payload",
		})
		return false
	}
	return true
}

// finish acknowledges a trade or reports its failure to the sender.
func (r *CommandRouter) finish(c *Client, action EventType, assets domain.AssetsSnapshot, err error) {
	if err != nil {
		r.fail(c, action, err)
		return
	}
	c.hub.sendToClient(c, EventTradeSuccess, TradeSuccessPayload{Action: action, Assets: assets})
	c.hub.EmitToUser(c.userID, EventAssetsUpdate, assets)
}

// fail surfaces the error kind plus a human message to the sender only.
func (r *CommandRouter) fail(c *Client, action EventType, err error) {
	kind := domain.ErrorKind(err)
	msg := err.Error()
	if kind == "INTERNAL" {
		r.logger.Error("ws: command failed", "event", action, "user_id", c.userID, "error", err)
		msg = "internal error"
	}
	c.hub.sendToClient(c, EventTradeError, TradeErrorPayload{
		Action:  action,
		Code:    kind,
		Message: msg,
	})
}
