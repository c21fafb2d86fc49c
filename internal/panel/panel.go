package panel

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"

	"github.com/MarkoPoloResearchLab/kairix_panel/internal/backend"
	"github.com/MarkoPoloResearchLab/kairix_panel/pkg/fanout"
)

const (
	logEventLogout           = "logout_backend_session"
	logEventDiscardViewState = "discard_view_state"

	taskSidebar = "sidebar"
	taskBadges  = "badges"
)

// Config assembles a Panel.
type Config struct {
	ViewStates *ViewStates
	Formatter  Formatter
	Schema     ProfileFormSchema
	BadgeIDs   []string
	Logger     *zap.Logger
}

// Panel holds the controllers behind the customer panel.
type Panel struct {
	ViewStates    *ViewStates
	Sessions      *SessionLoader
	Profile       *ProfileController
	Password      *PasswordController
	Conversations *ConversationBrowser
	Badges        *BadgeUpdater
	Formatter     Formatter
	logger        *zap.Logger
}

// New builds a Panel from config.
func New(config Config) (*Panel, error) {
	logger := config.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	badgeUpdater, badgeErr := NewBadgeUpdater(config.BadgeIDs, logger)
	if badgeErr != nil {
		return nil, badgeErr
	}
	return &Panel{
		ViewStates:    config.ViewStates,
		Sessions:      NewSessionLoader(config.Formatter, logger),
		Profile:       NewProfileController(config.Schema, logger),
		Password:      NewPasswordController(logger),
		Conversations: NewConversationBrowser(config.Formatter, logger),
		Badges:        badgeUpdater,
		Formatter:     config.Formatter,
		logger:        logger,
	}, nil
}

// Page is the initial render of the panel.
type Page struct {
	Sidebar       SidebarHeader
	SidebarLoaded bool
	Badges        MenuBadges
	Unauthorized  bool
}

// Init runs the session loader and the badge updater concurrently. Either may fail without
// affecting the other; the page then shows the pre-load header or unchanged badges.
func (panel *Panel) Init(ctx context.Context, api API, state *ViewState) Page {
	page := Page{Sidebar: DefaultSidebarHeader()}
	if !api.HasCredential() {
		return page
	}

	var pageMutex sync.Mutex
	result := fanout.Join(ctx,
		fanout.Task{Name: taskSidebar, Run: func(taskContext context.Context) error {
			header, loadErr := panel.Sessions.Load(taskContext, api, state)
			if loadErr != nil {
				return loadErr
			}
			pageMutex.Lock()
			page.Sidebar = header
			page.SidebarLoaded = true
			pageMutex.Unlock()
			return nil
		}},
		fanout.Task{Name: taskBadges, Run: func(taskContext context.Context) error {
			badges, updateErr := panel.Badges.Update(taskContext, api)
			pageMutex.Lock()
			page.Badges = badges
			pageMutex.Unlock()
			return updateErr
		}},
	)
	for _, taskErr := range result.Errors {
		if errors.Is(taskErr, backend.ErrUnauthorized) {
			page.Unauthorized = true
		}
	}
	return page
}

// SessionResetter drops every value of the browser's panel session.
type SessionResetter interface {
	Reset() error
}

// Logout ends the backend session, then clears the panel session and discards the view
// state whatever the backend answered.
func (panel *Panel) Logout(ctx context.Context, api API, state *ViewState, session SessionResetter) error {
	if logoutErr := api.Logout(ctx); logoutErr != nil {
		panel.logger.Warn(logEventLogout, zap.Error(logoutErr))
	}
	if state != nil {
		if discardErr := panel.ViewStates.Discard(ctx, state); discardErr != nil {
			panel.logger.Warn(logEventDiscardViewState, zap.String("view_state_id", state.ID), zap.Error(discardErr))
		}
	}
	return session.Reset()
}
