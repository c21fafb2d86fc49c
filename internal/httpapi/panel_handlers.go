package httpapi

import (
	"bytes"
	"errors"
	"html/template"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/gorilla/sessions"
	"go.uber.org/zap"

	"github.com/MarkoPoloResearchLab/kairix_panel/internal/backend"
	"github.com/MarkoPoloResearchLab/kairix_panel/internal/panel"
)

// Panel route paths.
const (
	PanelRoutePage                = "/panel"
	PanelRouteCredential          = "/panel/credential"
	PanelRouteLogout              = "/panel/logout"
	PanelRouteSidebar             = "/panel/sidebar"
	PanelRouteBadges              = "/panel/badges"
	PanelRouteProfile             = "/panel/profile"
	PanelRouteProfileClose        = "/panel/profile/close"
	PanelRoutePassword            = "/panel/password"
	PanelRoutePasswordClose       = "/panel/password/close"
	PanelRouteConversations       = "/panel/conversations"
	PanelRouteConversationsFilter = "/panel/conversations/filter"
	PanelRouteConversationsClear  = "/panel/conversations/clear"
	PanelRouteConversation        = "/panel/conversations/:id"

	// HeaderPanelRedirect tells the page shell where to navigate after a rejected credential.
	HeaderPanelRedirect = "X-Panel-Redirect"

	htmlContentType            = "text/html; charset=utf-8"
	queryParameterStartDate    = "data_inicio"
	queryParameterEndDate      = "data_fim"
	formFieldCurrentPassword   = "current_password"
	formFieldNewPassword       = "new_password"
	formFieldConfirmPassword   = "confirm_password"
	errorCodeRenderFailed      = "render_failed"
	errorCodeMissingToken      = "missing_token"
	errorCodeUnsupportedBody   = "unsupported_media_type"
	errorCodeInvalidID         = "invalid_conversation_id"
	errorCodeSessionFailed     = "session_failed"
	errorCodeSessionMissing    = "session_missing"
	logEventRenderFragment     = "render_panel_fragment"
	logEventStoreCredential    = "store_panel_credential"
	logEventReplaceViewState   = "replace_view_state"
	logEventResetPanelSession  = "reset_panel_session"
	logEventLoadSidebarSkipped = "load_sidebar_skipped"
)

type menuEntry struct {
	BadgeID string
	Label   string
	Href    string
	Count   string
}

var menuEntries = map[string]menuEntry{
	panel.BadgeConversations: {BadgeID: panel.BadgeConversations, Label: "Conversas", Href: "/painel/conversas"},
	panel.BadgeAutoResponses: {BadgeID: panel.BadgeAutoResponses, Label: "Respostas", Href: "/painel/respostas"},
	panel.BadgeKnowledgeBase: {BadgeID: panel.BadgeKnowledgeBase, Label: "Base de Conhecimento", Href: "/painel/base-conhecimento"},
	panel.BadgeAttendants:    {BadgeID: panel.BadgeAttendants, Label: "Atendentes", Href: "/painel/atendentes"},
}

type pageTemplateData struct {
	Sidebar          panel.SidebarHeader
	Menu             []menuEntry
	Profile          panel.ProfileModal
	Password         panel.PasswordModal
	LoginPath        string
	UnauthorizedMode UnauthorizedMode
}

type credentialPayload struct {
	Token string `json:"token"`
}

// PanelHandlersConfig assembles PanelHandlers.
type PanelHandlersConfig struct {
	Panel            *panel.Panel
	Client           *backend.Client
	SessionStore     sessions.Store
	BadgeIDs         []string
	LoginPath        string
	UnauthorizedMode UnauthorizedMode
	Logger           *zap.Logger
}

// PanelHandlers serves the customer panel page and its fragments.
type PanelHandlers struct {
	panel            *panel.Panel
	client           *backend.Client
	sessionStore     sessions.Store
	badgeIDs         []string
	loginPath        string
	unauthorizedMode UnauthorizedMode
	logger           *zap.Logger
	templates        *template.Template
}

// NewPanelHandlers builds PanelHandlers and compiles the embedded templates.
func NewPanelHandlers(config PanelHandlersConfig) (*PanelHandlers, error) {
	compiledTemplates, parseErr := parsePanelTemplates()
	if parseErr != nil {
		return nil, parseErr
	}
	logger := config.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	unauthorizedMode := config.UnauthorizedMode
	if unauthorizedMode == "" {
		unauthorizedMode = UnauthorizedModeStay
	}
	return &PanelHandlers{
		panel:            config.Panel,
		client:           config.Client,
		sessionStore:     config.SessionStore,
		badgeIDs:         append([]string(nil), config.BadgeIDs...),
		loginPath:        config.LoginPath,
		unauthorizedMode: unauthorizedMode,
		logger:           logger,
		templates:        compiledTemplates,
	}, nil
}

// RenderPage renders the full panel with the sidebar header and menu badges loaded
// concurrently.
func (handlers *PanelHandlers) RenderPage(context *gin.Context) {
	request, ok := handlers.requirePanelRequest(context)
	if !ok {
		return
	}
	if handlers.unauthorizedMode == UnauthorizedModeRedirect && !request.api.HasCredential() {
		context.Redirect(http.StatusFound, handlers.loginPath)
		return
	}

	page := handlers.panel.Init(context.Request.Context(), request.api, request.state)
	if page.Unauthorized && handlers.unauthorizedMode == UnauthorizedModeRedirect {
		context.Redirect(http.StatusFound, handlers.loginPath)
		return
	}

	handlers.render(context, http.StatusOK, templateNamePage, pageTemplateData{
		Sidebar:          page.Sidebar,
		Menu:             handlers.menu(page.Badges),
		Profile:          handlers.panel.Profile.Close(),
		Password:         handlers.panel.Password.Close(),
		LoginPath:        handlers.loginPath,
		UnauthorizedMode: handlers.unauthorizedMode,
	})
}

// StoreCredential accepts the bearer credential issued by the login page. Only JSON bodies
// are accepted, so a plain cross-site form post cannot hand over a credential. The view
// state bound to the session is replaced by a fresh one.
func (handlers *PanelHandlers) StoreCredential(context *gin.Context) {
	request, ok := handlers.requirePanelRequest(context)
	if !ok {
		return
	}
	if context.ContentType() != binding.MIMEJSON {
		context.AbortWithStatusJSON(http.StatusUnsupportedMediaType, gin.H{"error": errorCodeUnsupportedBody})
		return
	}
	var payload credentialPayload
	if bindErr := context.ShouldBindJSON(&payload); bindErr != nil || strings.TrimSpace(payload.Token) == "" {
		context.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": errorCodeMissingToken})
		return
	}
	if setErr := request.credentials.Set(payload.Token); setErr != nil {
		handlers.logger.Error(logEventStoreCredential, zap.Error(setErr))
		context.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": errorCodeSessionFailed})
		return
	}
	if discardErr := handlers.panel.ViewStates.Discard(context.Request.Context(), request.state); discardErr != nil {
		handlers.logger.Warn(logEventReplaceViewState, zap.String("view_state_id", request.state.ID), zap.Error(discardErr))
	}
	request.state = handlers.panel.ViewStates.Start()
	if bindErr := request.credentials.SetViewStateID(request.state.ID); bindErr != nil {
		handlers.logger.Error(logEventStoreCredential, zap.Error(bindErr))
		context.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": errorCodeSessionFailed})
		return
	}
	context.Status(http.StatusNoContent)
}

// Logout ends the backend session, clears the panel session and redirects to the login page.
func (handlers *PanelHandlers) Logout(context *gin.Context) {
	request, ok := handlers.requirePanelRequest(context)
	if !ok {
		return
	}
	if logoutErr := handlers.panel.Logout(context.Request.Context(), request.api, request.state, request.credentials); logoutErr != nil {
		handlers.logger.Warn(logEventResetPanelSession, zap.Error(logoutErr))
	}
	context.Redirect(http.StatusSeeOther, handlers.loginPath)
}

// RenderSidebar renders the sidebar header. Without a loaded order it answers 204 so the
// page keeps its pre-load header.
func (handlers *PanelHandlers) RenderSidebar(context *gin.Context) {
	request, ok := handlers.requirePanelRequest(context)
	if !ok {
		return
	}
	header, loadErr := handlers.panel.Sessions.Load(context.Request.Context(), request.api, request.state)
	if loadErr != nil {
		if handlers.abortUnauthorized(context, loadErr) {
			return
		}
		handlers.logger.Debug(logEventLoadSidebarSkipped, zap.Error(loadErr))
		context.Status(http.StatusNoContent)
		return
	}
	handlers.render(context, http.StatusOK, templateNameSidebar, header)
}

// RenderBadges renders the menu badges whose counts were fetched.
func (handlers *PanelHandlers) RenderBadges(context *gin.Context) {
	request, ok := handlers.requirePanelRequest(context)
	if !ok {
		return
	}
	if !request.api.HasCredential() {
		context.Status(http.StatusNoContent)
		return
	}
	badges, updateErr := handlers.panel.Badges.Update(context.Request.Context(), request.api)
	if handlers.abortUnauthorized(context, updateErr) {
		return
	}
	handlers.render(context, http.StatusOK, templateNameBadges, badges)
}

// OpenProfile renders the open profile modal loaded with the client's data.
func (handlers *PanelHandlers) OpenProfile(context *gin.Context) {
	request, ok := handlers.requirePanelRequest(context)
	if !ok {
		return
	}
	modal, openErr := handlers.panel.Profile.Open(context.Request.Context(), request.api)
	if handlers.abortUnauthorized(context, openErr) {
		return
	}
	handlers.render(context, http.StatusOK, templateNameProfileModal, modal)
}

// SaveProfile submits the profile form.
func (handlers *PanelHandlers) SaveProfile(context *gin.Context) {
	request, ok := handlers.requirePanelRequest(context)
	if !ok {
		return
	}
	modal, saveErr := handlers.panel.Profile.Save(context.Request.Context(), request.api, context.PostForm)
	if handlers.abortUnauthorized(context, saveErr) {
		return
	}
	handlers.render(context, http.StatusOK, templateNameProfileModal, modal)
}

// CloseProfile renders the closed profile modal.
func (handlers *PanelHandlers) CloseProfile(context *gin.Context) {
	handlers.render(context, http.StatusOK, templateNameProfileModal, handlers.panel.Profile.Close())
}

// OpenPassword renders the password modal with an empty form.
func (handlers *PanelHandlers) OpenPassword(context *gin.Context) {
	handlers.render(context, http.StatusOK, templateNamePasswordModal, handlers.panel.Password.Open())
}

// SubmitPassword validates and submits the password change form.
func (handlers *PanelHandlers) SubmitPassword(context *gin.Context) {
	request, ok := handlers.requirePanelRequest(context)
	if !ok {
		return
	}
	modal, submitErr := handlers.panel.Password.Submit(context.Request.Context(), request.api, panel.PasswordForm{
		Current:      context.PostForm(formFieldCurrentPassword),
		New:          context.PostForm(formFieldNewPassword),
		Confirmation: context.PostForm(formFieldConfirmPassword),
	})
	if handlers.abortUnauthorized(context, submitErr) {
		return
	}
	handlers.render(context, http.StatusOK, templateNamePasswordModal, modal)
}

// ClosePassword renders the closed password modal.
func (handlers *PanelHandlers) ClosePassword(context *gin.Context) {
	handlers.render(context, http.StatusOK, templateNamePasswordModal, handlers.panel.Password.Close())
}

// ListConversations renders the conversation list, bounded by data_inicio and data_fim
// when both are given.
func (handlers *PanelHandlers) ListConversations(context *gin.Context) {
	request, ok := handlers.requirePanelRequest(context)
	if !ok {
		return
	}
	list, listErr := handlers.panel.Conversations.List(context.Request.Context(), request.api, request.state, dateRangeFromQuery(context))
	if handlers.abortUnauthorized(context, listErr) {
		return
	}
	handlers.render(context, http.StatusOK, templateNameConversationList, list)
}

// FilterConversations reloads the list for a date range. A range missing either end is
// refused with the blocking prompt and no backend request.
func (handlers *PanelHandlers) FilterConversations(context *gin.Context) {
	request, ok := handlers.requirePanelRequest(context)
	if !ok {
		return
	}
	list, prompt, filterErr := handlers.panel.Conversations.Filter(context.Request.Context(), request.api, request.state, dateRangeFromQuery(context))
	if errors.Is(filterErr, panel.ErrIncompleteDateFilter) {
		handlers.render(context, http.StatusUnprocessableEntity, templateNameConversationPrompt, prompt)
		return
	}
	if handlers.abortUnauthorized(context, filterErr) {
		return
	}
	handlers.render(context, http.StatusOK, templateNameConversationList, list)
}

// ClearConversationFilter reloads the list without date bounds.
func (handlers *PanelHandlers) ClearConversationFilter(context *gin.Context) {
	request, ok := handlers.requirePanelRequest(context)
	if !ok {
		return
	}
	list, listErr := handlers.panel.Conversations.ClearFilter(context.Request.Context(), request.api, request.state)
	if handlers.abortUnauthorized(context, listErr) {
		return
	}
	handlers.render(context, http.StatusOK, templateNameConversationList, list)
}

// SelectConversation marks a conversation active and renders its thread.
func (handlers *PanelHandlers) SelectConversation(context *gin.Context) {
	request, ok := handlers.requirePanelRequest(context)
	if !ok {
		return
	}
	conversationID, valid := panel.ParseConversationID(context.Param("id"))
	if !valid {
		context.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": errorCodeInvalidID})
		return
	}
	selection, selectErr := handlers.panel.Conversations.Select(context.Request.Context(), request.api, request.state, conversationID)
	if handlers.abortUnauthorized(context, selectErr) {
		return
	}
	handlers.render(context, http.StatusOK, templateNameConversationSelection, selection)
}

func (handlers *PanelHandlers) requirePanelRequest(context *gin.Context) (*panelRequest, bool) {
	request := currentPanelRequest(context)
	if request == nil {
		context.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": errorCodeSessionMissing})
		return nil, false
	}
	return request, true
}

// abortUnauthorized answers a rejected credential in redirect mode. In stay mode the
// credential is already cleared and the fragment renders as usual.
func (handlers *PanelHandlers) abortUnauthorized(context *gin.Context, err error) bool {
	if !errors.Is(err, backend.ErrUnauthorized) || handlers.unauthorizedMode != UnauthorizedModeRedirect {
		return false
	}
	context.Header(HeaderPanelRedirect, handlers.loginPath)
	context.AbortWithStatus(http.StatusUnauthorized)
	return true
}

func (handlers *PanelHandlers) menu(badges panel.MenuBadges) []menuEntry {
	entries := make([]menuEntry, 0, len(handlers.badgeIDs))
	for _, badgeID := range handlers.badgeIDs {
		entry, known := menuEntries[badgeID]
		if !known {
			continue
		}
		if count, updated := badges.Count(badgeID); updated {
			entry.Count = strconv.Itoa(count)
		}
		entries = append(entries, entry)
	}
	return entries
}

func (handlers *PanelHandlers) render(context *gin.Context, status int, templateName string, data any) {
	var buffer bytes.Buffer
	if renderErr := handlers.templates.ExecuteTemplate(&buffer, templateName, data); renderErr != nil {
		handlers.logger.Error(logEventRenderFragment, zap.String("template", templateName), zap.Error(renderErr))
		context.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": errorCodeRenderFailed})
		return
	}
	context.Data(status, htmlContentType, buffer.Bytes())
}

func dateRangeFromQuery(context *gin.Context) backend.DateRange {
	return backend.DateRange{
		Start: context.Query(queryParameterStartDate),
		End:   context.Query(queryParameterEndDate),
	}
}
