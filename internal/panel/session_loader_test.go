package panel_test

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/MarkoPoloResearchLab/kairix_panel/internal/backend"
	"github.com/MarkoPoloResearchLab/kairix_panel/internal/model"
	"github.com/MarkoPoloResearchLab/kairix_panel/internal/panel"
	"github.com/MarkoPoloResearchLab/kairix_panel/internal/testutil"
)

func TestSessionLoaderWithoutCredentialMakesNoRequest(testingT *testing.T) {
	fakeBackend := testutil.NewFakeBackend(testingT)
	session, _ := newTestSession(testingT, fakeBackend, "")
	loader := panel.NewSessionLoader(newTestFormatter(testingT), nil)

	_, loadErr := loader.Load(context.Background(), session, &panel.ViewState{})
	require.ErrorIs(testingT, loadErr, panel.ErrNoCredential)
	require.Empty(testingT, fakeBackend.Requests())
}

func TestSessionLoaderRendersHeaderAndStoresConfig(testingT *testing.T) {
	fakeBackend := testutil.NewFakeBackend(testingT)
	handleOrders(fakeBackend, testOrders)
	fakeBackend.HandleJSON(http.MethodGet, pathBotConfig, http.StatusOK, map[string]any{"nome_bot": "Kai"})
	session, _ := newTestSession(testingT, fakeBackend, testToken)
	loader := panel.NewSessionLoader(newTestFormatter(testingT), nil)
	state := &panel.ViewState{}

	header, loadErr := loader.Load(context.Background(), session, state)
	require.NoError(testingT, loadErr)
	require.Equal(testingT, "Kairix Pro", header.ProductName)
	require.Equal(testingT, "Plano Anual", header.PlanLabel)
	require.Equal(testingT, "R$ 1.234,50", header.OrderTotal)
	require.Equal(testingT, int64(7), state.CurrentOrderID)
	require.Equal(testingT, "Kai", state.CurrentConfig["nome_bot"])
}

func TestSessionLoaderFallsBackWhenPlanMissing(testingT *testing.T) {
	fakeBackend := testutil.NewFakeBackend(testingT)
	handleOrders(fakeBackend, []model.Order{{ID: 9}})
	fakeBackend.HandleJSON(http.MethodGet, pathBotConfig, http.StatusOK, map[string]any{})
	session, _ := newTestSession(testingT, fakeBackend, testToken)
	loader := panel.NewSessionLoader(newTestFormatter(testingT), nil)

	header, loadErr := loader.Load(context.Background(), session, &panel.ViewState{})
	require.NoError(testingT, loadErr)
	require.Equal(testingT, "Kairix Bot", header.ProductName)
	require.Equal(testingT, "Plano Mensal", header.PlanLabel)
}

func TestSessionLoaderLogsConfigFailureOnly(testingT *testing.T) {
	fakeBackend := testutil.NewFakeBackend(testingT)
	handleOrders(fakeBackend, testOrders)
	fakeBackend.HandleJSON(http.MethodGet, pathBotConfig, http.StatusInternalServerError, map[string]string{"detail": "boom"})
	session, _ := newTestSession(testingT, fakeBackend, testToken)
	core, logs := observer.New(zap.DebugLevel)
	loader := panel.NewSessionLoader(newTestFormatter(testingT), zap.New(core))
	state := &panel.ViewState{}

	header, loadErr := loader.Load(context.Background(), session, state)
	require.NoError(testingT, loadErr)
	require.Equal(testingT, "Kairix Pro", header.ProductName)
	require.Nil(testingT, state.CurrentConfig)
	require.Equal(testingT, 1, logs.FilterMessage("load_bot_config").Len())
}

func TestSessionLoaderClearsCredentialOnUnauthorized(testingT *testing.T) {
	fakeBackend := testutil.NewFakeBackend(testingT)
	fakeBackend.HandleJSON(http.MethodGet, pathOrders, http.StatusUnauthorized, map[string]string{"detail": "expired"})
	session, credentials := newTestSession(testingT, fakeBackend, testToken)
	loader := panel.NewSessionLoader(newTestFormatter(testingT), nil)

	_, loadErr := loader.Load(context.Background(), session, &panel.ViewState{})
	require.ErrorIs(testingT, loadErr, backend.ErrUnauthorized)
	require.Equal(testingT, 1, credentials.ClearCalls())
	require.Zero(testingT, fakeBackend.Count(http.MethodGet, pathBotConfig))
}

func TestSessionLoaderStopsOnOrderFailure(testingT *testing.T) {
	fakeBackend := testutil.NewFakeBackend(testingT)
	fakeBackend.HandleJSON(http.MethodGet, pathOrders, http.StatusBadGateway, map[string]string{"detail": "down"})
	session, credentials := newTestSession(testingT, fakeBackend, testToken)
	loader := panel.NewSessionLoader(newTestFormatter(testingT), nil)
	state := &panel.ViewState{}

	_, loadErr := loader.Load(context.Background(), session, state)
	var statusErr *backend.StatusError
	require.ErrorAs(testingT, loadErr, &statusErr)
	require.Zero(testingT, credentials.ClearCalls())
	require.Nil(testingT, state.CurrentOrder)
	require.Zero(testingT, fakeBackend.Count(http.MethodGet, pathBotConfig))
}
