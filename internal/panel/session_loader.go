package panel

import (
	"context"
	"strings"

	"go.uber.org/zap"
)

const (
	defaultProductName = "Kairix Bot"
	defaultPlanPeriod  = "Mensal"
	planLabelPrefix    = "Plano "

	logEventLoadOrders    = "load_panel_orders"
	logEventLoadBotConfig = "load_bot_config"
)

// SidebarHeader is the plan summary shown at the top of the sidebar.
type SidebarHeader struct {
	ProductName string
	PlanLabel   string
	OrderTotal  string
}

// DefaultSidebarHeader is what the sidebar shows before any order is loaded.
func DefaultSidebarHeader() SidebarHeader {
	return SidebarHeader{ProductName: defaultProductName, PlanLabel: planLabelPrefix + defaultPlanPeriod}
}

// SessionLoader puts the customer's current order and bot configuration in view.
type SessionLoader struct {
	formatter Formatter
	logger    *zap.Logger
}

// NewSessionLoader builds a SessionLoader.
func NewSessionLoader(formatter Formatter, logger *zap.Logger) *SessionLoader {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SessionLoader{formatter: formatter, logger: logger}
}

// Load fetches the current order into state and renders the sidebar header from it, then
// loads the bot configuration. Configuration failures are logged and do not fail the load.
// Without a credential it returns ErrNoCredential and makes no request.
func (loader *SessionLoader) Load(ctx context.Context, api API, state *ViewState) (SidebarHeader, error) {
	if !api.HasCredential() {
		return SidebarHeader{}, ErrNoCredential
	}

	orders, ordersErr := api.Orders(ctx)
	if ordersErr != nil {
		loader.logger.Warn(logEventLoadOrders, zap.Error(ordersErr))
		return SidebarHeader{}, ordersErr
	}
	if len(orders) == 0 {
		return SidebarHeader{}, ErrNoOrders
	}

	currentOrder := orders[0]
	state.SetCurrentOrder(currentOrder)

	header := DefaultSidebarHeader()
	if currentOrder.Plan != nil {
		if name := strings.TrimSpace(currentOrder.Plan.Name); name != "" {
			header.ProductName = name
		}
		if period := strings.TrimSpace(currentOrder.Plan.Period); period != "" {
			header.PlanLabel = planLabelPrefix + period
		}
	}
	header.OrderTotal = loader.formatter.Currency(currentOrder.Total)

	config, configErr := api.BotConfig(ctx)
	if configErr != nil {
		loader.logger.Warn(logEventLoadBotConfig, zap.Error(configErr))
		return header, nil
	}
	state.SetCurrentConfig(config)
	return header, nil
}
