package workflow

import (
	"fmt"
	"strings"
)

// Callback actions. Every inline button carries one of these, optionally
// followed by colon-separated parameters.
const (
	actionSelectAccount   = "select_account"
	actionMainMenu        = "main_menu"
	actionAccountDetails  = "account_details"
	actionBackToAccounts  = "back_to_accounts"
	actionExpirySelection = "expiry_selection"
	actionSelectAsset     = "select_asset"
	actionSelectExpiry    = "select_expiry"
	actionSelectLot       = "select_lot"
	actionCustomLot       = "custom_lot"
	actionTradeDirection  = "trade_direction"
	actionConfirmTrade    = "confirm_trade"
	actionCancelTrade     = "cancel_trade"

	actionShowPositions = "show_positions"

	actionSetStopLoss      = "set_stoploss"
	actionStopPosition     = "sl_position"
	actionStopMethod       = "sl_method"
	actionConfirmStop      = "confirm_sl"
	actionSetTarget        = "set_target"
	actionTargetPosition   = "target_position"
	actionTargetMethod     = "target_method"
	actionConfirmTarget    = "confirm_target"
	actionMultiStop        = "multi_stoploss"
	actionMultiStopToggle  = "multi_sl_toggle"
	actionMultiStopDone    = "multi_sl_done"
	actionConfirmMultiStop = "confirm_multi_sl"

	actionMultiTarget        = "multi_target"
	actionMultiTargetToggle  = "multi_target_toggle"
	actionMultiTargetDone    = "multi_target_done"
	actionConfirmMultiTarget = "confirm_multi_target"

	actionShowOrders      = "show_orders"
	actionCancelOrder     = "cancel_order"
	actionCancelAllOrders = "cancel_all_orders"
)

// Input methods offered for single-position protective orders.
const (
	methodPercentage = "percentage"
	methodNumeral    = "numeral"
)

// EncodeCallback joins an action and its parameters into button callback
// data, e.g. ("select_expiry", "BTCUSD", 1758801600) -> "select_expiry:BTCUSD:1758801600".
func EncodeCallback(action string, params ...any) string {
	if len(params) == 0 {
		return action
	}
	parts := make([]string, 0, len(params)+1)
	parts = append(parts, action)
	for _, p := range params {
		parts = append(parts, fmt.Sprint(p))
	}
	return strings.Join(parts, ":")
}

// DecodeCallback splits callback data into its action and parameters. Data
// with no colon is an action with no parameters.
func DecodeCallback(data string) (action string, params []string) {
	parts := strings.Split(data, ":")
	if len(parts) == 1 {
		return parts[0], nil
	}
	return parts[0], parts[1:]
}
