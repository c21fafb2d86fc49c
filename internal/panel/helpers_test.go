package panel_test

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/MarkoPoloResearchLab/kairix_panel/internal/backend"
	"github.com/MarkoPoloResearchLab/kairix_panel/internal/model"
	"github.com/MarkoPoloResearchLab/kairix_panel/internal/panel"
	"github.com/MarkoPoloResearchLab/kairix_panel/internal/testutil"
)

const (
	testToken              = "token-abc"
	pathOrders             = "/api/orders/me"
	pathBotConfig          = "/api/config/bot"
	pathClientMe           = "/api/clients/me"
	pathChangePassword     = "/api/clients/change-password"
	pathLogout             = "/api/clients/logout"
	pathOrderConversations = "/api/conversas/pedido/7"
	pathAutoResponses      = "/api/config/7/respostas"
	pathKnowledge          = "/api/knowledge/list/7"
	pathAttendants         = "/api/config/7/atendentes"
)

var testOrders = []model.Order{
	{ID: 7, Status: "ativo", Total: 1234.5, Plan: &model.Plan{Name: "Kairix Pro", Period: "Anual"}},
	{ID: 3, Status: "cancelado"},
}

func newTestSession(testingT *testing.T, fakeBackend *testutil.FakeBackend, token string) (*backend.Session, *testutil.StaticCredentials) {
	testingT.Helper()
	client, clientErr := backend.NewClient(fakeBackend.URL(), nil, nil, backend.DefaultForwardedCookieNames)
	require.NoError(testingT, clientErr)
	credentials := testutil.NewStaticCredentials(token)
	return client.Session(credentials, nil), credentials
}

func newTestFormatter(testingT *testing.T) panel.Formatter {
	testingT.Helper()
	formatter, formatterErr := panel.NewFormatter(panel.DefaultTimeZone)
	require.NoError(testingT, formatterErr)
	return formatter
}

func handleOrders(fakeBackend *testutil.FakeBackend, orders []model.Order) {
	fakeBackend.HandleJSON(http.MethodGet, pathOrders, http.StatusOK, orders)
}
