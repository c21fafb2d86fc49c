package httpapi_test

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"golang.org/x/net/html"
	"gorm.io/gorm"

	"github.com/MarkoPoloResearchLab/kairix_panel/internal/backend"
	"github.com/MarkoPoloResearchLab/kairix_panel/internal/credential"
	"github.com/MarkoPoloResearchLab/kairix_panel/internal/httpapi"
	"github.com/MarkoPoloResearchLab/kairix_panel/internal/model"
	"github.com/MarkoPoloResearchLab/kairix_panel/internal/panel"
	"github.com/MarkoPoloResearchLab/kairix_panel/internal/storage"
	"github.com/MarkoPoloResearchLab/kairix_panel/internal/testutil"
)

const (
	testToken              = "token-abc"
	testSessionSecret      = "0123456789abcdef0123456789abcdef"
	testLoginPath          = "/login"
	pathOrders             = "/api/orders/me"
	pathBotConfig          = "/api/config/bot"
	pathClientMe           = "/api/clients/me"
	pathChangePassword     = "/api/clients/change-password"
	pathLogout             = "/api/clients/logout"
	pathOrderConversations = "/api/conversas/pedido/7"
	pathConversation42     = "/api/conversas/42"
	pathAutoResponses      = "/api/config/7/respostas"
	pathKnowledge          = "/api/knowledge/list/7"
	pathAttendants         = "/api/config/7/atendentes"
)

var testOrders = []model.Order{
	{ID: 7, Status: "ativo", Total: 1234.5, Plan: &model.Plan{Name: "Kairix Pro", Period: "Anual"}},
}

var testConversations = []model.Conversation{
	{ID: 42, OrderID: 7, ContactName: "Maria", ContactNumber: "5511988887777", Status: "ativa", MessageCount: 5, CreatedAt: "2024-03-05T10:00:00"},
	{ID: 43, OrderID: 7, ContactName: "", ContactNumber: "5511977776666", Status: "encerrada", MessageCount: 2},
}

type panelHarness struct {
	backend  *testutil.FakeBackend
	server   *httptest.Server
	client   *http.Client
	database *gorm.DB
}

func newPanelHarness(testingT *testing.T, unauthorizedMode httpapi.UnauthorizedMode) *panelHarness {
	testingT.Helper()
	gin.SetMode(gin.TestMode)

	fakeBackend := testutil.NewFakeBackend(testingT)
	database := testutil.NewSQLiteTestDatabase(testingT).Open(testingT)

	formatter, formatterErr := panel.NewFormatter(panel.DefaultTimeZone)
	require.NoError(testingT, formatterErr)
	panelInstance, panelErr := panel.New(panel.Config{
		ViewStates: panel.NewViewStates(storage.NewViewStateRepository(database), nil),
		Formatter:  formatter,
		Schema:     panel.NewProfileFormSchema(false),
		BadgeIDs:   panel.DefaultBadgeIDs,
	})
	require.NoError(testingT, panelErr)

	backendClient, clientErr := backend.NewClient(fakeBackend.URL(), nil, nil, backend.DefaultForwardedCookieNames)
	require.NoError(testingT, clientErr)
	sessionStore, storeErr := credential.NewCookieStore(testSessionSecret, false)
	require.NoError(testingT, storeErr)

	handlers, handlersErr := httpapi.NewPanelHandlers(httpapi.PanelHandlersConfig{
		Panel:            panelInstance,
		Client:           backendClient,
		SessionStore:     sessionStore,
		BadgeIDs:         panel.DefaultBadgeIDs,
		LoginPath:        testLoginPath,
		UnauthorizedMode: unauthorizedMode,
	})
	require.NoError(testingT, handlersErr)

	router := gin.New()
	panelGroup := router.Group("", handlers.LoadPanelSession())
	panelGroup.GET(httpapi.PanelRoutePage, handlers.RenderPage)
	panelGroup.POST(httpapi.PanelRouteCredential, handlers.StoreCredential)
	panelGroup.POST(httpapi.PanelRouteLogout, handlers.Logout)
	panelGroup.GET(httpapi.PanelRouteSidebar, handlers.RenderSidebar)
	panelGroup.GET(httpapi.PanelRouteBadges, handlers.RenderBadges)
	panelGroup.GET(httpapi.PanelRouteProfile, handlers.OpenProfile)
	panelGroup.POST(httpapi.PanelRouteProfile, handlers.SaveProfile)
	panelGroup.POST(httpapi.PanelRouteProfileClose, handlers.CloseProfile)
	panelGroup.GET(httpapi.PanelRoutePassword, handlers.OpenPassword)
	panelGroup.POST(httpapi.PanelRoutePassword, handlers.SubmitPassword)
	panelGroup.POST(httpapi.PanelRoutePasswordClose, handlers.ClosePassword)
	panelGroup.GET(httpapi.PanelRouteConversations, handlers.ListConversations)
	panelGroup.GET(httpapi.PanelRouteConversationsFilter, handlers.FilterConversations)
	panelGroup.GET(httpapi.PanelRouteConversationsClear, handlers.ClearConversationFilter)
	panelGroup.GET(httpapi.PanelRouteConversation, handlers.SelectConversation)

	server := httptest.NewServer(router)
	testingT.Cleanup(server.Close)

	jar, jarErr := cookiejar.New(nil)
	require.NoError(testingT, jarErr)
	return &panelHarness{
		backend:  fakeBackend,
		server:   server,
		database: database,
		client: &http.Client{
			Jar: jar,
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
	}
}

func (harness *panelHarness) do(testingT *testing.T, method string, path string, contentType string, body io.Reader) (*http.Response, string) {
	testingT.Helper()
	request, requestErr := http.NewRequest(method, harness.server.URL+path, body)
	require.NoError(testingT, requestErr)
	if contentType != "" {
		request.Header.Set("Content-Type", contentType)
	}
	response, doErr := harness.client.Do(request)
	require.NoError(testingT, doErr)
	defer response.Body.Close()
	payload, readErr := io.ReadAll(response.Body)
	require.NoError(testingT, readErr)
	return response, string(payload)
}

func (harness *panelHarness) get(testingT *testing.T, path string) (*http.Response, string) {
	testingT.Helper()
	return harness.do(testingT, http.MethodGet, path, "", nil)
}

func (harness *panelHarness) postForm(testingT *testing.T, path string, values url.Values) (*http.Response, string) {
	testingT.Helper()
	return harness.do(testingT, http.MethodPost, path, "application/x-www-form-urlencoded", strings.NewReader(values.Encode()))
}

func (harness *panelHarness) postJSON(testingT *testing.T, path string, payload any) (*http.Response, string) {
	testingT.Helper()
	encoded, encodeErr := json.Marshal(payload)
	require.NoError(testingT, encodeErr)
	return harness.do(testingT, http.MethodPost, path, "application/json", bytes.NewReader(encoded))
}

func (harness *panelHarness) signIn(testingT *testing.T) {
	testingT.Helper()
	response, _ := harness.postJSON(testingT, httpapi.PanelRouteCredential, map[string]string{"token": testToken})
	require.Equal(testingT, http.StatusNoContent, response.StatusCode)
}

func (harness *panelHarness) setBrowserCookie(testingT *testing.T, cookie *http.Cookie) {
	testingT.Helper()
	serverURL, parseErr := url.Parse(harness.server.URL)
	require.NoError(testingT, parseErr)
	harness.client.Jar.SetCookies(serverURL, []*http.Cookie{cookie})
}

func (harness *panelHarness) viewStateCount(testingT *testing.T) int64 {
	testingT.Helper()
	var count int64
	require.NoError(testingT, harness.database.Model(&model.ViewStateRecord{}).Count(&count).Error)
	return count
}

func registerBadgeEndpoints(fakeBackend *testutil.FakeBackend) {
	fakeBackend.HandleJSON(http.MethodGet, pathOrderConversations, http.StatusOK, testConversations)
	fakeBackend.HandleJSON(http.MethodGet, pathAutoResponses, http.StatusOK, []model.AutoResponse{{Question: "a"}, {Question: "b"}, {Question: "c"}})
	fakeBackend.HandleJSON(http.MethodGet, pathKnowledge, http.StatusOK, model.KnowledgeListing{Documents: []model.KnowledgeDocument{{Filename: "faq.pdf"}}, Total: 1})
	fakeBackend.HandleJSON(http.MethodGet, pathAttendants, http.StatusInternalServerError, map[string]string{"detail": "boom"})
}

func parseFragment(testingT *testing.T, body string) *html.Node {
	testingT.Helper()
	document, parseErr := html.Parse(strings.NewReader(body))
	require.NoError(testingT, parseErr)
	return document
}

func findAll(root *html.Node, match func(*html.Node) bool) []*html.Node {
	var found []*html.Node
	var walk func(*html.Node)
	walk = func(node *html.Node) {
		if node.Type == html.ElementNode && match(node) {
			found = append(found, node)
		}
		for child := node.FirstChild; child != nil; child = child.NextSibling {
			walk(child)
		}
	}
	walk(root)
	return found
}

func findByID(root *html.Node, id string) *html.Node {
	nodes := findAll(root, func(node *html.Node) bool {
		return attribute(node, "id") == id
	})
	if len(nodes) == 0 {
		return nil
	}
	return nodes[0]
}

func hasClass(node *html.Node, className string) bool {
	for _, candidate := range strings.Fields(attribute(node, "class")) {
		if candidate == className {
			return true
		}
	}
	return false
}

func attribute(node *html.Node, name string) string {
	for _, attr := range node.Attr {
		if attr.Key == name {
			return attr.Val
		}
	}
	return ""
}

func textContent(node *html.Node) string {
	if node == nil {
		return ""
	}
	var builder strings.Builder
	var walk func(*html.Node)
	walk = func(current *html.Node) {
		if current.Type == html.TextNode {
			builder.WriteString(current.Data)
		}
		for child := current.FirstChild; child != nil; child = child.NextSibling {
			walk(child)
		}
	}
	walk(node)
	return strings.TrimSpace(builder.String())
}
