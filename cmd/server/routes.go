package main

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/MarkoPoloResearchLab/kairix_panel/internal/httpapi"
)

const (
	routeRoot               = "/"
	routeStatic             = "/static"
	corsHeaderContentType   = "Content-Type"
	corsHeaderPanelRedirect = httpapi.HeaderPanelRedirect
	corsMaxAge              = 12 * time.Hour
)

var (
	corsAllowedMethods = []string{http.MethodGet, http.MethodPost, http.MethodOptions}
	corsAllowedHeaders = []string{corsHeaderContentType}
	corsExposedHeaders = []string{corsHeaderContentType, corsHeaderPanelRedirect}
)

// newPanelCORS allows allowedOrigin to call the panel routes with the session cookie. An
// empty origin serves same-origin callers only.
func newPanelCORS(allowedOrigin string) gin.HandlerFunc {
	if allowedOrigin == "" {
		return func(context *gin.Context) {
			context.Next()
		}
	}
	return cors.New(cors.Config{
		AllowOrigins:     []string{allowedOrigin},
		AllowMethods:     corsAllowedMethods,
		AllowHeaders:     corsAllowedHeaders,
		ExposeHeaders:    corsExposedHeaders,
		AllowCredentials: true,
		MaxAge:           corsMaxAge,
	})
}

func registerPanelRoutes(router *gin.Engine, panelHandlers *httpapi.PanelHandlers, panelCORS gin.HandlerFunc) {
	router.GET(routeRoot, func(context *gin.Context) {
		context.Redirect(http.StatusFound, httpapi.PanelRoutePage)
	})

	panelGroup := router.Group("")
	panelGroup.Use(panelCORS)
	panelGroup.OPTIONS(httpapi.PanelRoutePage+"/*path", func(context *gin.Context) {
		context.Status(http.StatusNoContent)
	})
	panelGroup.Use(panelHandlers.LoadPanelSession())

	panelGroup.GET(httpapi.PanelRoutePage, panelHandlers.RenderPage)
	panelGroup.POST(httpapi.PanelRouteCredential, panelHandlers.StoreCredential)
	panelGroup.POST(httpapi.PanelRouteLogout, panelHandlers.Logout)
	panelGroup.GET(httpapi.PanelRouteSidebar, panelHandlers.RenderSidebar)
	panelGroup.GET(httpapi.PanelRouteBadges, panelHandlers.RenderBadges)
	panelGroup.GET(httpapi.PanelRouteProfile, panelHandlers.OpenProfile)
	panelGroup.POST(httpapi.PanelRouteProfile, panelHandlers.SaveProfile)
	panelGroup.POST(httpapi.PanelRouteProfileClose, panelHandlers.CloseProfile)
	panelGroup.GET(httpapi.PanelRoutePassword, panelHandlers.OpenPassword)
	panelGroup.POST(httpapi.PanelRoutePassword, panelHandlers.SubmitPassword)
	panelGroup.POST(httpapi.PanelRoutePasswordClose, panelHandlers.ClosePassword)
	panelGroup.GET(httpapi.PanelRouteConversations, panelHandlers.ListConversations)
	panelGroup.GET(httpapi.PanelRouteConversationsFilter, panelHandlers.FilterConversations)
	panelGroup.GET(httpapi.PanelRouteConversationsClear, panelHandlers.ClearConversationFilter)
	panelGroup.GET(httpapi.PanelRouteConversation, panelHandlers.SelectConversation)
}

func registerStaticRoutes(router *gin.Engine, staticDirectory string) {
	if staticDirectory == "" {
		return
	}
	router.Static(routeStatic, staticDirectory)
}
