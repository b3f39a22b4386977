// Package workflow drives the Telegram conversation: it decodes button
// callbacks and free-text replies, walks each user's drafts through their
// steps, and executes confirmed trades against the exchange.
package workflow

import (
	"context"
	"strings"

	"github.com/rs/zerolog"

	"github.com/skyflexible-prog/deltamulti-modular/internal/config"
	"github.com/skyflexible-prog/deltamulti-modular/internal/delta"
	"github.com/skyflexible-prog/deltamulti-modular/internal/journal"
	"github.com/skyflexible-prog/deltamulti-modular/internal/metrics"
	"github.com/skyflexible-prog/deltamulti-modular/internal/session"
	"github.com/skyflexible-prog/deltamulti-modular/internal/telegram"
)

// Messenger is the slice of the Telegram client the router uses. Tests
// substitute a recorder.
type Messenger interface {
	SendMessage(ctx context.Context, chatID int64, text string, kb *telegram.InlineKeyboardMarkup) (*telegram.Message, error)
	EditMessageText(ctx context.Context, chatID, messageID int64, text string, kb *telegram.InlineKeyboardMarkup) error
	AnswerCallbackQuery(ctx context.Context, id, text string) error
}

// Deps carries the router's collaborators. All fields are required except
// Journal, which may be nil to disable journaling.
type Deps struct {
	Accounts *config.Registry
	Store    *session.Store
	Exchange *delta.Exchange
	Telegram Messenger
	Journal  *journal.Writer
	Log      zerolog.Logger
}

// Router dispatches Telegram updates to the trading workflows.
type Router struct {
	accounts *config.Registry
	store    *session.Store
	exchange *delta.Exchange
	tg       Messenger
	journal  *journal.Writer
	log      zerolog.Logger
}

func New(d Deps) *Router {
	return &Router{
		accounts: d.Accounts,
		store:    d.Store,
		exchange: d.Exchange,
		tg:       d.Telegram,
		journal:  d.Journal,
		log:      d.Log.With().Str("comp", "workflow").Logger(),
	}
}

// HandleUpdate processes one update to completion. It is safe for concurrent
// use; updates for the same user serialize on the session lock.
func (r *Router) HandleUpdate(ctx context.Context, upd telegram.Update) {
	switch {
	case upd.CallbackQuery != nil:
		r.handleCallback(ctx, upd.CallbackQuery)
	case upd.Message != nil:
		r.handleMessage(ctx, upd.Message)
	}
}

func (r *Router) session(userID int64) *session.Session {
	sess := r.store.Get(userID)
	metrics.ActiveSessions.Set(float64(r.store.Len()))
	return sess
}

func (r *Router) handleCallback(ctx context.Context, cb *telegram.CallbackQuery) {
	if cb.Message == nil {
		return
	}
	if err := r.tg.AnswerCallbackQuery(ctx, cb.ID, ""); err != nil {
		r.log.Warn().Err(err).Str("callback_id", cb.ID).Msg("answer callback failed")
	}

	action, params := DecodeCallback(cb.Data)
	sess := r.session(cb.From.ID)
	sess.Lock()
	defer sess.Unlock()

	chatID := cb.Message.Chat.ID
	messageID := cb.Message.MessageID
	r.log.Debug().Int64("user_id", cb.From.ID).Str("action", action).Strs("params", params).Msg("callback")

	switch action {
	case actionSelectAccount:
		r.selectAccount(ctx, sess, chatID, messageID, params)
	case actionMainMenu:
		r.mainMenu(ctx, sess, chatID, messageID)
	case actionAccountDetails:
		r.accountDetails(ctx, sess, chatID, messageID)
	case actionBackToAccounts:
		r.backToAccounts(ctx, sess, chatID, messageID)
	case actionExpirySelection:
		r.expirySelection(ctx, sess, chatID, messageID)
	case actionSelectAsset:
		r.selectAsset(ctx, sess, chatID, messageID, params)
	case actionSelectExpiry:
		r.selectExpiry(ctx, sess, chatID, messageID, params)
	case actionSelectLot:
		r.selectLot(ctx, sess, chatID, messageID, params)
	case actionCustomLot:
		r.customLotPrompt(ctx, sess, chatID, messageID)
	case actionTradeDirection:
		r.tradeDirection(ctx, sess, chatID, messageID, params)
	case actionConfirmTrade:
		r.confirmTrade(ctx, sess, chatID, messageID)
	case actionCancelTrade:
		r.cancelTrade(ctx, sess, chatID, messageID)
	case actionShowPositions:
		r.showPositions(ctx, sess, chatID, messageID)
	case actionSetStopLoss:
		r.protectStart(ctx, sess, chatID, messageID, session.ProtectStop)
	case actionSetTarget:
		r.protectStart(ctx, sess, chatID, messageID, session.ProtectTarget)
	case actionStopPosition:
		r.protectPosition(ctx, sess, chatID, messageID, session.ProtectStop, params)
	case actionTargetPosition:
		r.protectPosition(ctx, sess, chatID, messageID, session.ProtectTarget, params)
	case actionStopMethod, actionTargetMethod:
		r.protectMethod(ctx, sess, chatID, messageID, params)
	case actionConfirmStop, actionConfirmTarget:
		r.confirmProtect(ctx, sess, chatID, messageID)
	case actionMultiStop:
		r.multiStart(ctx, sess, chatID, messageID, session.ProtectStop)
	case actionMultiTarget:
		r.multiStart(ctx, sess, chatID, messageID, session.ProtectTarget)
	case actionMultiStopToggle, actionMultiTargetToggle:
		r.multiToggle(ctx, sess, chatID, messageID, params)
	case actionMultiStopDone, actionMultiTargetDone:
		r.multiDone(ctx, sess, chatID, messageID)
	case actionConfirmMultiStop, actionConfirmMultiTarget:
		r.confirmMulti(ctx, sess, chatID, messageID)
	case actionShowOrders:
		r.showOrders(ctx, sess, chatID, messageID)
	case actionCancelOrder:
		r.cancelOrder(ctx, sess, chatID, messageID, params)
	case actionCancelAllOrders:
		r.cancelAllOrders(ctx, sess, chatID, messageID)
	default:
		r.log.Warn().Str("data", cb.Data).Msg("unknown callback action")
	}
}

func (r *Router) handleMessage(ctx context.Context, msg *telegram.Message) {
	if msg.From == nil {
		return
	}
	sess := r.session(msg.From.ID)
	sess.Lock()
	defer sess.Unlock()

	chatID := msg.Chat.ID
	text := strings.TrimSpace(msg.Text)

	if text == "/start" || strings.HasPrefix(text, "/start ") {
		r.start(ctx, sess, chatID, msg.From)
		return
	}
	if strings.HasPrefix(text, "/") {
		return
	}

	switch st := sess.State.(type) {
	case nil:
		// Idle: no prompt is waiting, drop stray text.
	case session.AwaitingCustomLot:
		r.customLotInput(ctx, sess, chatID, text)
	case session.AwaitingStopTriggerPct:
		r.protectTriggerPctInput(ctx, sess, chatID, text)
	case session.AwaitingTargetTriggerPct:
		r.protectTriggerPctInput(ctx, sess, chatID, text)
	case session.AwaitingStopLimitPct:
		r.protectLimitPctInput(ctx, sess, chatID, text, st.TriggerPct)
	case session.AwaitingTargetLimitPct:
		r.protectLimitPctInput(ctx, sess, chatID, text, st.TriggerPct)
	case session.AwaitingStopTriggerPrice:
		r.protectTriggerPriceInput(ctx, sess, chatID, text)
	case session.AwaitingTargetTriggerPrice:
		r.protectTriggerPriceInput(ctx, sess, chatID, text)
	case session.AwaitingStopLimitPrice:
		r.protectLimitPriceInput(ctx, sess, chatID, text, st.TriggerPrice)
	case session.AwaitingTargetLimitPrice:
		r.protectLimitPriceInput(ctx, sess, chatID, text, st.TriggerPrice)
	case session.AwaitingMultiStopTriggerPct:
		r.multiTriggerPctInput(ctx, sess, chatID, text)
	case session.AwaitingMultiTargetTriggerPct:
		r.multiTriggerPctInput(ctx, sess, chatID, text)
	case session.AwaitingMultiStopLimitPct:
		r.multiLimitPctInput(ctx, sess, chatID, text, st.TriggerPct)
	case session.AwaitingMultiTargetLimitPct:
		r.multiLimitPctInput(ctx, sess, chatID, text, st.TriggerPct)
	}
}

const noAccountText = "❌ No account selected. Please use /start to select an account."

// requireAccount reports whether the session has credentials bound, editing
// in the standard notice when it does not.
func (r *Router) requireAccount(ctx context.Context, sess *session.Session, chatID, messageID int64) bool {
	if sess.Account != nil {
		return true
	}
	r.edit(ctx, chatID, messageID, noAccountText, nil)
	return false
}

// client builds a credential-bound exchange client for the session's account.
// Call only after requireAccount.
func (r *Router) client(sess *session.Session) (*delta.Client, error) {
	return r.exchange.Client(delta.Credentials{
		APIKey:    sess.Account.APIKey,
		APISecret: sess.Account.APISecret,
	})
}

// edit replaces a previously sent message. Failures are logged rather than
// surfaced; the chat shows the last state that did get through.
func (r *Router) edit(ctx context.Context, chatID, messageID int64, text string, kb *telegram.InlineKeyboardMarkup) {
	if err := r.tg.EditMessageText(ctx, chatID, messageID, text, kb); err != nil {
		r.log.Warn().Err(err).Int64("chat_id", chatID).Msg("edit message failed")
	}
}

func (r *Router) send(ctx context.Context, chatID int64, text string, kb *telegram.InlineKeyboardMarkup) {
	if _, err := r.tg.SendMessage(ctx, chatID, text, kb); err != nil {
		r.log.Warn().Err(err).Int64("chat_id", chatID).Msg("send message failed")
	}
}

func (r *Router) record(ev journal.Event) {
	if err := r.journal.Record(ev); err != nil {
		r.log.Warn().Err(err).Str("event", ev.Event).Msg("journal write failed")
	}
}
