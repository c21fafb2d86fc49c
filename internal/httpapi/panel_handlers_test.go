package httpapi_test

import (
	"encoding/json"
	"net/http"
	"net/url"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/net/html"

	"github.com/MarkoPoloResearchLab/kairix_panel/internal/httpapi"
	"github.com/MarkoPoloResearchLab/kairix_panel/internal/model"
	"github.com/MarkoPoloResearchLab/kairix_panel/internal/testutil"
)

func TestStoreCredentialRejectsBlankToken(testingT *testing.T) {
	harness := newPanelHarness(testingT, httpapi.UnauthorizedModeStay)

	response, body := harness.postJSON(testingT, httpapi.PanelRouteCredential, map[string]string{"token": "  "})
	require.Equal(testingT, http.StatusBadRequest, response.StatusCode)
	require.JSONEq(testingT, `{"error":"missing_token"}`, body)
}

func TestPanelPageRendersSidebarAndBadges(testingT *testing.T) {
	harness := newPanelHarness(testingT, httpapi.UnauthorizedModeStay)
	harness.backend.HandleJSON(http.MethodGet, pathOrders, http.StatusOK, testOrders)
	harness.backend.HandleJSON(http.MethodGet, pathBotConfig, http.StatusOK, map[string]any{"nome_bot": "Kai"})
	registerBadgeEndpoints(harness.backend)
	harness.signIn(testingT)

	response, body := harness.get(testingT, httpapi.PanelRoutePage)
	require.Equal(testingT, http.StatusOK, response.StatusCode)
	require.Equal(testingT, "text/html; charset=utf-8", response.Header.Get("Content-Type"))

	document := parseFragment(testingT, body)
	require.Equal(testingT, "Kairix Pro", textContent(findByID(document, "productName")))
	require.Equal(testingT, "Plano Anual", textContent(findByID(document, "planName")))
	require.Equal(testingT, "2", textContent(findByID(document, "badge-conversas")))
	require.Equal(testingT, "3", textContent(findByID(document, "badge-respostas")))
	require.Equal(testingT, "1", textContent(findByID(document, "badge-base-conhecimento")))
	require.Equal(testingT, "", textContent(findByID(document, "badge-atendentes")))

	for _, recorded := range harness.backend.Requests() {
		require.Equal(testingT, "Bearer "+testToken, recorded.Authorization, recorded.Path)
	}
}

func TestPanelPageWithoutCredentialKeepsDefaults(testingT *testing.T) {
	harness := newPanelHarness(testingT, httpapi.UnauthorizedModeStay)

	response, body := harness.get(testingT, httpapi.PanelRoutePage)
	require.Equal(testingT, http.StatusOK, response.StatusCode)
	document := parseFragment(testingT, body)
	require.Equal(testingT, "Kairix Bot", textContent(findByID(document, "productName")))
	require.Equal(testingT, "Plano Mensal", textContent(findByID(document, "planName")))
	require.Empty(testingT, harness.backend.Requests())
}

func TestPanelPageRedirectsWithoutCredentialInRedirectMode(testingT *testing.T) {
	harness := newPanelHarness(testingT, httpapi.UnauthorizedModeRedirect)

	response, _ := harness.get(testingT, httpapi.PanelRoutePage)
	require.Equal(testingT, http.StatusFound, response.StatusCode)
	require.Equal(testingT, testLoginPath, response.Header.Get("Location"))
	require.Empty(testingT, harness.backend.Requests())
}

func TestFragmentAnswersRedirectHeaderOnUnauthorized(testingT *testing.T) {
	harness := newPanelHarness(testingT, httpapi.UnauthorizedModeRedirect)
	harness.backend.HandleJSON(http.MethodGet, pathOrders, http.StatusUnauthorized, map[string]string{"detail": "expired"})
	harness.signIn(testingT)

	response, _ := harness.get(testingT, httpapi.PanelRouteConversations)
	require.Equal(testingT, http.StatusUnauthorized, response.StatusCode)
	require.Equal(testingT, testLoginPath, response.Header.Get(httpapi.HeaderPanelRedirect))

	pageResponse, _ := harness.get(testingT, httpapi.PanelRoutePage)
	require.Equal(testingT, http.StatusFound, pageResponse.StatusCode)
	require.Equal(testingT, 1, harness.backend.Count(http.MethodGet, pathOrders))
}

func TestStayModeClearsCredentialAndKeepsPanel(testingT *testing.T) {
	harness := newPanelHarness(testingT, httpapi.UnauthorizedModeStay)
	harness.backend.HandleJSON(http.MethodGet, pathOrders, http.StatusUnauthorized, map[string]string{"detail": "expired"})
	harness.signIn(testingT)

	sidebarResponse, _ := harness.get(testingT, httpapi.PanelRouteSidebar)
	require.Equal(testingT, http.StatusNoContent, sidebarResponse.StatusCode)

	badgesResponse, _ := harness.get(testingT, httpapi.PanelRouteBadges)
	require.Equal(testingT, http.StatusNoContent, badgesResponse.StatusCode)
	require.Equal(testingT, 1, harness.backend.Count(http.MethodGet, pathOrders))
}

func TestSidebarFragmentRendersCurrentOrder(testingT *testing.T) {
	harness := newPanelHarness(testingT, httpapi.UnauthorizedModeStay)
	harness.backend.HandleJSON(http.MethodGet, pathOrders, http.StatusOK, testOrders)
	harness.backend.HandleJSON(http.MethodGet, pathBotConfig, http.StatusInternalServerError, map[string]string{"detail": "down"})
	harness.signIn(testingT)

	response, body := harness.get(testingT, httpapi.PanelRouteSidebar)
	require.Equal(testingT, http.StatusOK, response.StatusCode)
	document := parseFragment(testingT, body)
	header := findByID(document, "sidebar-header")
	require.NotNil(testingT, header)
	require.Equal(testingT, "R$ 1.234,50", attribute(header, "data-order-total"))
	require.Equal(testingT, "Kairix Pro", textContent(findByID(document, "productName")))
}

func TestBadgesFragmentSkipsFailedCounts(testingT *testing.T) {
	harness := newPanelHarness(testingT, httpapi.UnauthorizedModeStay)
	harness.backend.HandleJSON(http.MethodGet, pathOrders, http.StatusOK, testOrders)
	registerBadgeEndpoints(harness.backend)
	harness.signIn(testingT)

	response, body := harness.get(testingT, httpapi.PanelRouteBadges)
	require.Equal(testingT, http.StatusOK, response.StatusCode)
	document := parseFragment(testingT, body)
	require.Equal(testingT, "2", textContent(findByID(document, "badge-conversas")))
	require.Nil(testingT, findByID(document, "badge-atendentes"))
}

func TestConversationSelectionMarksOneActiveRow(testingT *testing.T) {
	harness := newPanelHarness(testingT, httpapi.UnauthorizedModeStay)
	harness.backend.HandleJSON(http.MethodGet, pathOrders, http.StatusOK, testOrders)
	harness.backend.HandleJSON(http.MethodGet, pathOrderConversations, http.StatusOK, testConversations)
	harness.backend.HandleJSON(http.MethodGet, pathConversation42, http.StatusOK, model.ConversationDetail{
		Conversation: testConversations[0],
		Messages: []model.Message{
			{ID: 1, Type: "pergunta", Content: "Olá", CreatedAt: "2024-03-05T10:00:00"},
			{ID: 2, Type: model.MessageTypeBotReply, Content: "Como posso ajudar?", CreatedAt: "2024-03-05T10:00:05"},
		},
	})
	harness.signIn(testingT)

	listResponse, listBody := harness.get(testingT, httpapi.PanelRouteConversations)
	require.Equal(testingT, http.StatusOK, listResponse.StatusCode)
	rows := findAll(parseFragment(testingT, listBody), func(node *html.Node) bool {
		return hasClass(node, "conversa-item")
	})
	require.Len(testingT, rows, 2)

	selectResponse, selectBody := harness.get(testingT, "/panel/conversations/42")
	require.Equal(testingT, http.StatusOK, selectResponse.StatusCode)
	document := parseFragment(testingT, selectBody)
	activeRows := findAll(document, func(node *html.Node) bool {
		return hasClass(node, "conversa-item") && hasClass(node, "active")
	})
	require.Len(testingT, activeRows, 1)
	require.Equal(testingT, "42", attribute(activeRows[0], "data-conversa-id"))

	thread := findByID(document, "mensagens-list-section")
	require.NotNil(testingT, thread)
	require.Equal(testingT, "bottom", attribute(thread, "data-scroll"))
	require.Len(testingT, findAll(thread, func(node *html.Node) bool { return hasClass(node, "mensagem-bot") }), 1)
	require.Len(testingT, findAll(thread, func(node *html.Node) bool { return hasClass(node, "mensagem-cliente") }), 1)

	require.Equal(testingT, 1, harness.backend.Count(http.MethodGet, pathOrderConversations))
	require.Equal(testingT, 1, harness.backend.Count(http.MethodGet, pathConversation42))
}

func TestSelectConversationRejectsInvalidID(testingT *testing.T) {
	harness := newPanelHarness(testingT, httpapi.UnauthorizedModeStay)
	harness.signIn(testingT)

	response, body := harness.get(testingT, "/panel/conversations/abc")
	require.Equal(testingT, http.StatusBadRequest, response.StatusCode)
	require.JSONEq(testingT, `{"error":"invalid_conversation_id"}`, body)
	require.Empty(testingT, harness.backend.Requests())
}

func TestConversationFilterRequiresBothDates(testingT *testing.T) {
	harness := newPanelHarness(testingT, httpapi.UnauthorizedModeStay)
	harness.signIn(testingT)

	response, body := harness.get(testingT, httpapi.PanelRouteConversationsFilter+"?data_inicio=2024-03-01")
	require.Equal(testingT, http.StatusUnprocessableEntity, response.StatusCode)
	require.Contains(testingT, body, "Por favor, selecione ambas as datas.")
	require.Empty(testingT, harness.backend.Requests())
}

func TestConversationFilterSendsBothDates(testingT *testing.T) {
	harness := newPanelHarness(testingT, httpapi.UnauthorizedModeStay)
	harness.backend.HandleJSON(http.MethodGet, pathOrders, http.StatusOK, testOrders)
	harness.backend.HandleJSON(http.MethodGet, pathOrderConversations, http.StatusOK, testConversations[:1])
	harness.signIn(testingT)

	response, body := harness.get(testingT, httpapi.PanelRouteConversationsFilter+"?data_inicio=2024-03-01&data_fim=2024-03-31")
	require.Equal(testingT, http.StatusOK, response.StatusCode)
	require.Contains(testingT, body, "01/03/2024 a 31/03/2024")

	var conversationRequests []testutil.RecordedRequest
	for _, recorded := range harness.backend.Requests() {
		if recorded.Path == pathOrderConversations {
			conversationRequests = append(conversationRequests, recorded)
		}
	}
	require.Len(testingT, conversationRequests, 1)
	query, parseErr := url.ParseQuery(conversationRequests[0].RawQuery)
	require.NoError(testingT, parseErr)
	require.Equal(testingT, "2024-03-01", query.Get("data_inicio"))
	require.Equal(testingT, "2024-03-31", query.Get("data_fim"))

	clearResponse, _ := harness.get(testingT, httpapi.PanelRouteConversationsClear)
	require.Equal(testingT, http.StatusOK, clearResponse.StatusCode)
	lastRequest := harness.backend.Requests()[len(harness.backend.Requests())-1]
	require.Equal(testingT, pathOrderConversations, lastRequest.Path)
	require.Empty(testingT, lastRequest.RawQuery)
}

func TestConversationListErrorOffersRetry(testingT *testing.T) {
	harness := newPanelHarness(testingT, httpapi.UnauthorizedModeStay)
	harness.backend.HandleJSON(http.MethodGet, pathOrders, http.StatusOK, testOrders)
	harness.backend.HandleJSON(http.MethodGet, pathOrderConversations, http.StatusBadGateway, map[string]string{"detail": "down"})
	harness.signIn(testingT)

	response, body := harness.get(testingT, httpapi.PanelRouteConversations)
	require.Equal(testingT, http.StatusOK, response.StatusCode)
	section := findByID(parseFragment(testingT, body), "conversas-list-section")
	require.NotNil(testingT, section)
	require.Equal(testingT, "error", attribute(section, "data-state"))
	require.Contains(testingT, textContent(section), "Tentar Novamente")
}

func TestProfileOpenAndSave(testingT *testing.T) {
	harness := newPanelHarness(testingT, httpapi.UnauthorizedModeStay)
	harness.backend.HandleJSON(http.MethodGet, pathClientMe, http.StatusOK, model.ClientProfile{Name: "Maria", Email: "maria@example.com", Street: "Rua A"})
	harness.backend.HandleJSON(http.MethodPut, pathClientMe, http.StatusOK, map[string]string{"message": "ok"})
	harness.setBrowserCookie(testingT, &http.Cookie{Name: "client_id", Value: "c-9"})
	harness.signIn(testingT)

	openResponse, openBody := harness.get(testingT, httpapi.PanelRouteProfile)
	require.Equal(testingT, http.StatusOK, openResponse.StatusCode)
	openDocument := parseFragment(testingT, openBody)
	require.True(testingT, hasClass(findByID(openDocument, "myDataModal"), "active"))
	require.Equal(testingT, "Maria", attribute(findByID(openDocument, "clientNome"), "value"))
	require.Nil(testingT, findByID(openDocument, "clientEndereco"))

	saveResponse, saveBody := harness.postForm(testingT, httpapi.PanelRouteProfile, url.Values{
		"nome":     []string{"Ana"},
		"email":    []string{"ana@example.com"},
		"endereco": []string{"Rua B"},
	})
	require.Equal(testingT, http.StatusOK, saveResponse.StatusCode)
	saveDocument := parseFragment(testingT, saveBody)
	require.Equal(testingT, "Dados salvos com sucesso!", textContent(findByID(saveDocument, "myDataSuccessMsg")))
	require.Equal(testingT, "2000", attribute(findByID(saveDocument, "myDataModal"), "data-close-after-ms"))

	var update *testutil.RecordedRequest
	for _, recorded := range harness.backend.Requests() {
		if recorded.Method == http.MethodPut {
			captured := recorded
			update = &captured
		}
	}
	require.NotNil(testingT, update)
	var payload map[string]string
	require.NoError(testingT, json.Unmarshal(update.Body, &payload))
	require.Equal(testingT, "Ana", payload["nome"])
	require.Equal(testingT, "", payload["telefone"])
	require.NotContains(testingT, payload, "endereco")
	require.Len(testingT, update.Cookies, 1)
	require.Equal(testingT, "client_id", update.Cookies[0].Name)
}

func TestProfileSaveFailureKeepsModalOpen(testingT *testing.T) {
	harness := newPanelHarness(testingT, httpapi.UnauthorizedModeStay)
	harness.backend.HandleJSON(http.MethodPut, pathClientMe, http.StatusInternalServerError, map[string]string{"detail": "db down"})
	harness.signIn(testingT)

	response, body := harness.postForm(testingT, httpapi.PanelRouteProfile, url.Values{"nome": []string{"Ana"}})
	require.Equal(testingT, http.StatusOK, response.StatusCode)
	document := parseFragment(testingT, body)
	require.True(testingT, hasClass(findByID(document, "myDataModal"), "active"))
	require.Equal(testingT, "Erro ao salvar dados. Tente novamente.", textContent(findByID(document, "myDataErrorMsg")))
	require.Equal(testingT, "Ana", attribute(findByID(document, "clientNome"), "value"))
}

func TestPasswordMismatchMakesNoRequest(testingT *testing.T) {
	harness := newPanelHarness(testingT, httpapi.UnauthorizedModeStay)
	harness.signIn(testingT)

	response, body := harness.postForm(testingT, httpapi.PanelRoutePassword, url.Values{
		"current_password": []string{"old-secret"},
		"new_password":     []string{"new-secret"},
		"confirm_password": []string{"other-secret"},
	})
	require.Equal(testingT, http.StatusOK, response.StatusCode)
	require.Equal(testingT, "As senhas não coincidem.", textContent(findByID(parseFragment(testingT, body), "passwordErrorMsg")))
	require.Empty(testingT, harness.backend.Requests())
}

func TestPasswordRejectionShowsBackendDetail(testingT *testing.T) {
	harness := newPanelHarness(testingT, httpapi.UnauthorizedModeStay)
	harness.backend.HandleJSON(http.MethodPost, pathChangePassword, http.StatusBadRequest, map[string]string{"detail": "Senha atual incorreta"})
	harness.signIn(testingT)

	response, body := harness.postForm(testingT, httpapi.PanelRoutePassword, url.Values{
		"current_password": []string{"old-secret"},
		"new_password":     []string{"new-secret"},
		"confirm_password": []string{"new-secret"},
	})
	require.Equal(testingT, http.StatusOK, response.StatusCode)
	require.Equal(testingT, "Senha atual incorreta", textContent(findByID(parseFragment(testingT, body), "passwordErrorMsg")))
	require.Equal(testingT, 1, harness.backend.Count(http.MethodPost, pathChangePassword))
}

func TestPasswordModalOpenAndClose(testingT *testing.T) {
	harness := newPanelHarness(testingT, httpapi.UnauthorizedModeStay)

	openResponse, openBody := harness.get(testingT, httpapi.PanelRoutePassword)
	require.Equal(testingT, http.StatusOK, openResponse.StatusCode)
	require.True(testingT, hasClass(findByID(parseFragment(testingT, openBody), "changePasswordModal"), "active"))
	require.Equal(testingT, "6", attribute(findByID(parseFragment(testingT, openBody), "newPassword"), "minlength"))

	closeResponse, closeBody := harness.postForm(testingT, httpapi.PanelRoutePasswordClose, url.Values{})
	require.Equal(testingT, http.StatusOK, closeResponse.StatusCode)
	require.False(testingT, hasClass(findByID(parseFragment(testingT, closeBody), "changePasswordModal"), "active"))
}

func TestLogoutClearsSessionEvenWhenBackendFails(testingT *testing.T) {
	harness := newPanelHarness(testingT, httpapi.UnauthorizedModeStay)
	harness.backend.HandleJSON(http.MethodPost, pathLogout, http.StatusInternalServerError, map[string]string{"detail": "down"})
	harness.signIn(testingT)
	require.EqualValues(testingT, 1, harness.viewStateCount(testingT))

	response, _ := harness.postForm(testingT, httpapi.PanelRouteLogout, url.Values{})
	require.Equal(testingT, http.StatusSeeOther, response.StatusCode)
	require.Equal(testingT, testLoginPath, response.Header.Get("Location"))
	require.Equal(testingT, 1, harness.backend.Count(http.MethodPost, pathLogout))
	require.EqualValues(testingT, 0, harness.viewStateCount(testingT))

	badgesResponse, _ := harness.get(testingT, httpapi.PanelRouteBadges)
	require.Equal(testingT, http.StatusNoContent, badgesResponse.StatusCode)
	require.Len(testingT, harness.backend.Requests(), 1)
}

func TestViewStateSurvivesBetweenRequests(testingT *testing.T) {
	harness := newPanelHarness(testingT, httpapi.UnauthorizedModeStay)
	harness.backend.HandleJSON(http.MethodGet, pathOrders, http.StatusOK, testOrders)
	harness.backend.HandleJSON(http.MethodGet, pathOrderConversations, http.StatusOK, testConversations)
	harness.signIn(testingT)

	harness.get(testingT, httpapi.PanelRouteConversations)
	harness.get(testingT, httpapi.PanelRouteConversations)
	require.EqualValues(testingT, 1, harness.viewStateCount(testingT))

	var record model.ViewStateRecord
	require.NoError(testingT, harness.database.First(&record).Error)
	require.Contains(testingT, record.Payload, `"current_order_id":7`)
	require.Contains(testingT, record.Payload, `"id":42`)
}
