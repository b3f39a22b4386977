package workflow

import (
	"context"
	"fmt"
	"strconv"

	"github.com/skyflexible-prog/deltamulti-modular/internal/delta"
	"github.com/skyflexible-prog/deltamulti-modular/internal/session"
	"github.com/skyflexible-prog/deltamulti-modular/internal/telegram"
)

// start answers /start with the account picker.
func (r *Router) start(ctx context.Context, sess *session.Session, chatID int64, from *telegram.User) {
	r.log.Info().Int64("user_id", from.ID).Str("username", from.Username).Msg("start command")

	accounts := r.accounts.All()
	if len(accounts) == 0 {
		r.send(ctx, chatID, "❌ No trading accounts configured. Please contact administrator.", nil)
		return
	}

	text := "🚀 <b>Welcome to Delta Exchange Trading Bot</b>\n\n" +
		fmt.Sprintf("👤 User: %s\n\n", from.FirstName) +
		"Please select a trading account to continue:\n" +
		"<i>Choose carefully - each account has different credentials and balances.</i>"
	r.send(ctx, chatID, text, accountListKeyboard(accounts))
}

// selectAccount binds the chosen slot's credentials to the session and opens
// the main menu with a fresh balance summary.
func (r *Router) selectAccount(ctx context.Context, sess *session.Session, chatID, messageID int64, params []string) {
	const invalid = "❌ Invalid account selection. Please try again."
	if len(params) == 0 {
		r.edit(ctx, chatID, messageID, invalid, nil)
		return
	}
	index, err := strconv.Atoi(params[0])
	if err != nil {
		r.edit(ctx, chatID, messageID, invalid, nil)
		return
	}
	acct := r.accounts.Get(index)
	if acct == nil {
		r.edit(ctx, chatID, messageID, invalid, nil)
		return
	}

	sess.SetAccount(session.Account{
		Index:       acct.Index,
		Name:        acct.Name,
		Description: acct.Description,
		APIKey:      acct.APIKey,
		APISecret:   acct.APISecret,
	})
	r.log.Info().Int64("user_id", sess.UserID).Str("account", acct.Name).Msg("account selected")

	r.edit(ctx, chatID, messageID, fmt.Sprintf("⏳ Loading account details for <b>%s</b>...", acct.Name), nil)

	summary, err := r.accountSummary(ctx, sess)
	if err != nil {
		r.log.Error().Err(err).Str("account", acct.Name).Msg("account summary failed")
		r.edit(ctx, chatID, messageID, fmt.Sprintf(
			"❌ Failed to fetch account details for <b>%s</b>.\nError: %s\n\nPlease check your API credentials and try again.",
			acct.Name, err), nil)
		return
	}

	text := formatAccountSummary(acct.Name, acct.Description, summary) +
		"\n\n<b>📋 Main Menu:</b>\nSelect an option below:"
	r.edit(ctx, chatID, messageID, text, mainMenuKeyboard())
}

// mainMenu drops any in-flight workflow and shows the menu again.
func (r *Router) mainMenu(ctx context.Context, sess *session.Session, chatID, messageID int64) {
	if !r.requireAccount(ctx, sess, chatID, messageID) {
		return
	}
	sess.ResetWorkflows()

	text := fmt.Sprintf("💰 <b>%s</b>\n\n<b>📋 Main Menu:</b>\nSelect an option below:", sess.Account.Name)
	r.edit(ctx, chatID, messageID, text, mainMenuKeyboard())
}

func (r *Router) accountDetails(ctx context.Context, sess *session.Session, chatID, messageID int64) {
	if !r.requireAccount(ctx, sess, chatID, messageID) {
		return
	}
	r.edit(ctx, chatID, messageID, fmt.Sprintf("⏳ Fetching account details for <b>%s</b>...", sess.Account.Name), nil)

	summary, err := r.accountSummary(ctx, sess)
	if err != nil {
		r.log.Error().Err(err).Msg("account summary failed")
		r.edit(ctx, chatID, messageID, fmt.Sprintf("❌ Failed to fetch account details.\nError: %s", err), backToMainKeyboard())
		return
	}
	r.edit(ctx, chatID, messageID, formatAccountSummary(sess.Account.Name, sess.Account.Description, summary), backToMainKeyboard())
}

// backToAccounts unbinds the account and reopens the picker.
func (r *Router) backToAccounts(ctx context.Context, sess *session.Session, chatID, messageID int64) {
	sess.ClearAccount()

	text := "🔑 <b>Select Trading Account:</b>\n\n<i>Choose the account you want to trade with.</i>"
	r.edit(ctx, chatID, messageID, text, accountListKeyboard(r.accounts.All()))
}

func (r *Router) accountSummary(ctx context.Context, sess *session.Session) (delta.AccountSummary, error) {
	client, err := r.client(sess)
	if err != nil {
		return delta.AccountSummary{}, err
	}
	return client.Summary(ctx)
}
