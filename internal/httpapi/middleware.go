package httpapi

import (
	stdcontext "context"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/MarkoPoloResearchLab/kairix_panel/internal/backend"
	"github.com/MarkoPoloResearchLab/kairix_panel/internal/credential"
	"github.com/MarkoPoloResearchLab/kairix_panel/internal/panel"
)

// RequestLogger logs one line per handled request.
func RequestLogger(logger *zap.Logger) gin.HandlerFunc {
	return func(context *gin.Context) {
		start := time.Now()
		context.Next()
		logger.Info("http",
			zap.String("method", context.Request.Method),
			zap.String("path", context.Request.URL.Path),
			zap.Int("status", context.Writer.Status()),
			zap.Duration("dur", time.Since(start)),
			zap.String("ip", context.ClientIP()),
			zap.String("ua", context.Request.UserAgent()),
		)
	}
}

const (
	contextKeyPanelRequest = "panel_request"

	logEventSessionDecode    = "panel_session_decode"
	logEventResumeViewState  = "resume_view_state"
	logEventBindViewState    = "bind_view_state"
	logEventPersistViewState = "persist_view_state"
)

type panelRequest struct {
	credentials *credential.RequestCredentials
	api         *backend.Session
	state       *panel.ViewState
}

// LoadPanelSession opens the cookie session, binds the authenticated request helper and
// the view state to the request, and persists what the handler changed in the view state
// once it returns.
func (handlers *PanelHandlers) LoadPanelSession() gin.HandlerFunc {
	return func(context *gin.Context) {
		requestContext := context.Request.Context()
		credentials, loadErr := credential.Load(handlers.sessionStore, context.Writer, context.Request)
		if loadErr != nil {
			handlers.logger.Info(logEventSessionDecode, zap.Error(loadErr))
		}

		boundID := credentials.ViewStateID()
		state, resumeErr := handlers.panel.ViewStates.Resume(requestContext, boundID)
		if resumeErr != nil {
			handlers.logger.Warn(logEventResumeViewState, zap.String("view_state_id", boundID), zap.Error(resumeErr))
			state = handlers.panel.ViewStates.Start()
		}
		if state.ID != boundID {
			if bindErr := credentials.SetViewStateID(state.ID); bindErr != nil {
				handlers.logger.Warn(logEventBindViewState, zap.Error(bindErr))
			}
		}

		request := &panelRequest{
			credentials: credentials,
			api:         handlers.client.Session(credentials, context.Request.Cookies()),
			state:       state,
		}
		context.Set(contextKeyPanelRequest, request)
		context.Next()

		if saveErr := handlers.panel.ViewStates.Save(stdcontext.WithoutCancel(requestContext), request.state); saveErr != nil {
			handlers.logger.Warn(logEventPersistViewState, zap.String("view_state_id", request.state.ID), zap.Error(saveErr))
		}
	}
}

func currentPanelRequest(context *gin.Context) *panelRequest {
	value, exists := context.Get(contextKeyPanelRequest)
	if !exists {
		return nil
	}
	request, _ := value.(*panelRequest)
	return request
}
