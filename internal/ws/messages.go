// Package ws holds the WebSocket event vocabulary and the Hub implementation.
// messages.go defines the wire envelope and every event broadcast to clients.
package ws

import (
	"encoding/json"

	"github.com/shopspring/decimal"
	"github.com/waterracebox/StockSprintBackend/internal/domain"
)

// EventType identifies the kind of WS message so clients can switch on it.
type EventType string

// Server → client events.
const (
	EventFullSyncState     EventType = "FULL_SYNC_STATE"
	EventGameStateUpdate   EventType = "GAME_STATE_UPDATE"
	EventPriceUpdate       EventType = "PRICE_UPDATE"
	EventNewsUpdate        EventType = "NEWS_UPDATE"
	EventLeaderboardUpdate EventType = "LEADERBOARD_UPDATE"
	EventContractSettled   EventType = "CONTRACT_SETTLED"
	EventAssetsUpdate      EventType = "ASSETS_UPDATE"
	EventTradeSuccess      EventType = "TRADE_SUCCESS"
	EventTradeError        EventType = "TRADE_ERROR"
	EventMiniGameSync      EventType = "MINIGAME_SYNC"
	EventMiniGameEvent     EventType = "MINIGAME_EVENT"
	EventMiniGameCountdown EventType = "MINIGAME_COUNTDOWN"
	EventClearNews         EventType = "CLEAR_NEWS"
	EventForceLogout       EventType = "FORCE_LOGOUT"
	EventLoanConfigUpdate  EventType = "LOAN_CONFIG_UPDATE"
	EventLoanSharkVisit    EventType = "LOAN_SHARK_VISIT_UPDATE"
	EventUserDataUpdated   EventType = "USER_DATA_UPDATED"
)

// Client → server ingress events.
const (
	EventBuyStock            EventType = "BUY_STOCK"
	EventSellStock           EventType = "SELL_STOCK"
	EventBuyContract         EventType = "BUY_CONTRACT"
	EventCancelContract      EventType = "CANCEL_CONTRACT"
	EventBorrowMoney         EventType = "BORROW_MONEY"
	EventRepayMoney          EventType = "REPAY_MONEY"
	EventVisitLoanShark      EventType = "VISIT_LOAN_SHARK"
	EventMiniGameAction      EventType = "MINIGAME_ACTION"
	EventAdminMiniGameAction EventType = "ADMIN_MINIGAME_ACTION"
)

// Envelope is the single wire framing: every message in either direction is
// {event, payload}.
type Envelope struct {
	Event   EventType       `json:"event"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// encode wraps a payload into a marshalled envelope.
func encode(event EventType, payload any) ([]byte, error) {
	var raw json.RawMessage
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, err
		}
		raw = data
	}
	return json.Marshal(Envelope{Event: event, Payload: raw})
}

// ──────────────────────────────────────────────────────────────────────────────
// Server → client payloads
// ──────────────────────────────────────────────────────────────────────────────

// GameStatePayload is pushed once per second to every client.
type GameStatePayload struct {
	CurrentDay    int   `json:"currentDay"`
	IsGameStarted bool  `json:"isGameStarted"`
	Countdown     int64 `json:"countdown"`
	TotalDays     int   `json:"totalDays"`
	MaxLeverage   int   `json:"maxLeverage"`
}

// PriceUpdatePayload is broadcast after each day-boundary settlement.
type PriceUpdatePayload struct {
	Day     int                        `json:"day"`
	Price   decimal.Decimal            `json:"price"`
	History []domain.PriceHistoryEntry `json:"history"`
}

// NewsUpdatePayload publishes a scripted headline at its offset second.
type NewsUpdatePayload struct {
	Day     int     `json:"day"`
	Title   string  `json:"title"`
	Content *string `json:"content"`
}

// LeaderboardPayload carries the top-100 ranking.
type LeaderboardPayload struct {
	Data []domain.LeaderboardEntry `json:"data"`
}

// ContractSettledPayload is sent to the owner when one of their contracts is
// settled at the day boundary.
type ContractSettledPayload struct {
	Type       domain.ContractSide `json:"type"`
	Quantity   int64               `json:"quantity"`
	EntryPrice decimal.Decimal     `json:"entryPrice"`
	ExitPrice  decimal.Decimal     `json:"exitPrice"`
	PnL        decimal.Decimal     `json:"pnl"`
	NewCash    decimal.Decimal     `json:"newCash"`
	NewDebt    decimal.Decimal     `json:"newDebt"`
}

// TradeSuccessPayload acknowledges an accepted ingress trade.
type TradeSuccessPayload struct {
	Action EventType             `json:"action"`
	Assets domain.AssetsSnapshot `json:"assets"`
}

// TradeErrorPayload reports a rejected ingress command to its sender only.
type TradeErrorPayload struct {
	Action  EventType `json:"action"`
	Code    string    `json:"code"`
	Message string    `json:"message"`
}

// CountdownPayload ticks the mini-game pre-start countdown.
type CountdownPayload struct {
	Countdown int `json:"countdown"`
}

// ──────────────────────────────────────────────────────────────────────────────
// Client → server payloads
// ──────────────────────────────────────────────────────────────────────────────

// QuantityPayload is shared by BUY_STOCK and SELL_STOCK.
type QuantityPayload struct {
	Quantity int64 `json:"quantity"`
}

// BuyContractPayload opens a leveraged contract.
type BuyContractPayload struct {
	Side     domain.ContractSide `json:"side"`
	Quantity int64               `json:"quantity"`
	Leverage int                 `json:"leverage"`
}

// AmountPayload is shared by BORROW_MONEY and REPAY_MONEY.
type AmountPayload struct {
	Amount decimal.Decimal `json:"amount"`
}

// MiniGameActionPayload wraps a typed mini-game command; the inner payload is
// interpreted by the engine per action type.
type MiniGameActionPayload struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}
