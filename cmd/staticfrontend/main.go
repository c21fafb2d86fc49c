package main

import (
	"bytes"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/MarkoPoloResearchLab/kairix_panel/internal/backend"
	"github.com/MarkoPoloResearchLab/kairix_panel/internal/credential"
	"github.com/MarkoPoloResearchLab/kairix_panel/internal/httpapi"
	"github.com/MarkoPoloResearchLab/kairix_panel/internal/panel"
	"github.com/MarkoPoloResearchLab/kairix_panel/internal/storage"
)

const (
	renderBackendBaseURL   = "http://backend.invalid"
	renderSessionSecret    = "static-frontend-render-only-secret"
	renderDataSourceName   = "file:kairix_static_frontend?mode=memory&cache=shared"
	environmentKeyLogin    = "LOGIN_PATH"
	environmentKeyMode     = "UNAUTHORIZED_MODE"
	environmentKeyAddress  = "PROFILE_ADDRESS_FIELDS"
	environmentKeyBadges   = "MENU_BADGES"
	environmentKeyTimeZone = "PANEL_TIMEZONE"
	defaultLoginPath       = "/login"
	panelOutputPath        = "panel/index.html"
)

type renderSettings struct {
	LoginPath            string
	UnauthorizedMode     httpapi.UnauthorizedMode
	ProfileAddressFields bool
	MenuBadges           []string
	TimeZone             string
}

func settingsFromEnvironment(values map[string]string) (renderSettings, error) {
	unauthorizedMode, modeErr := httpapi.ParseUnauthorizedMode(values[environmentKeyMode])
	if modeErr != nil {
		return renderSettings{}, modeErr
	}
	settings := renderSettings{
		LoginPath:            strings.TrimSpace(values[environmentKeyLogin]),
		UnauthorizedMode:     unauthorizedMode,
		ProfileAddressFields: true,
		MenuBadges:           panel.DefaultBadgeIDs,
		TimeZone:             strings.TrimSpace(values[environmentKeyTimeZone]),
	}
	if settings.LoginPath == "" {
		settings.LoginPath = defaultLoginPath
	}
	if rawAddress := strings.TrimSpace(values[environmentKeyAddress]); rawAddress != "" {
		includeAddress, parseErr := strconv.ParseBool(rawAddress)
		if parseErr != nil {
			return renderSettings{}, fmt.Errorf("%s: %w", environmentKeyAddress, parseErr)
		}
		settings.ProfileAddressFields = includeAddress
	}
	if rawBadges := strings.TrimSpace(values[environmentKeyBadges]); rawBadges != "" {
		settings.MenuBadges = strings.Split(rawBadges, ",")
	}
	return settings, nil
}

// renderPanelShell renders the panel page as an anonymous visitor sees it before any
// fragment loads.
func renderPanelShell(settings renderSettings, logger *zap.Logger) ([]byte, error) {
	database, databaseErr := storage.OpenDatabase(storage.Config{DriverName: storage.DriverNameSQLite, DataSourceName: renderDataSourceName})
	if databaseErr != nil {
		return nil, databaseErr
	}
	if migrateErr := storage.AutoMigrate(database); migrateErr != nil {
		return nil, migrateErr
	}
	if sqlDatabase, sqlErr := database.DB(); sqlErr == nil {
		defer sqlDatabase.Close()
	}

	formatter, _ := panel.NewFormatter(settings.TimeZone)
	panelInstance, panelErr := panel.New(panel.Config{
		ViewStates: panel.NewViewStates(storage.NewViewStateRepository(database), nil),
		Formatter:  formatter,
		Schema:     panel.NewProfileFormSchema(settings.ProfileAddressFields),
		BadgeIDs:   settings.MenuBadges,
		Logger:     logger,
	})
	if panelErr != nil {
		return nil, panelErr
	}
	backendClient, clientErr := backend.NewClient(renderBackendBaseURL, nil, logger, nil)
	if clientErr != nil {
		return nil, clientErr
	}
	sessionStore, storeErr := credential.NewCookieStore(renderSessionSecret, false)
	if storeErr != nil {
		return nil, storeErr
	}
	// A static shell has no session to redirect from; the mode is stamped in afterwards.
	handlers, handlersErr := httpapi.NewPanelHandlers(httpapi.PanelHandlersConfig{
		Panel:            panelInstance,
		Client:           backendClient,
		SessionStore:     sessionStore,
		BadgeIDs:         settings.MenuBadges,
		LoginPath:        settings.LoginPath,
		UnauthorizedMode: httpapi.UnauthorizedModeStay,
		Logger:           logger,
	})
	if handlersErr != nil {
		return nil, handlersErr
	}

	router := gin.New()
	router.GET(httpapi.PanelRoutePage, handlers.LoadPanelSession(), handlers.RenderPage)

	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, httpapi.PanelRoutePage, nil))
	if recorder.Code < http.StatusOK || recorder.Code >= http.StatusMultipleChoices {
		return nil, fmt.Errorf("render %s returned %d", httpapi.PanelRoutePage, recorder.Code)
	}

	payload := bytes.ReplaceAll(recorder.Body.Bytes(), []byte("\r\n"), []byte("\n"))
	if settings.UnauthorizedMode != httpapi.UnauthorizedModeStay {
		payload = bytes.Replace(payload,
			[]byte(`data-unauthorized-mode="`+string(httpapi.UnauthorizedModeStay)+`"`),
			[]byte(`data-unauthorized-mode="`+string(settings.UnauthorizedMode)+`"`), 1)
	}
	return payload, nil
}

func writeFile(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

func main() {
	gin.SetMode(gin.TestMode)
	logger := zap.NewNop()

	var envFilePath string
	var outputDir string
	flag.StringVar(&envFilePath, "env-file", ".env", "path to a kairix panel env file")
	flag.StringVar(&outputDir, "out", "public", "directory to write static assets into")
	flag.Parse()

	envValues, envErr := godotenv.Read(envFilePath)
	if envErr != nil && !errors.Is(envErr, os.ErrNotExist) {
		_, _ = fmt.Fprintf(os.Stderr, "read %s: %v\n", envFilePath, envErr)
		os.Exit(1)
	}

	settings, settingsErr := settingsFromEnvironment(envValues)
	if settingsErr != nil {
		_, _ = fmt.Fprintf(os.Stderr, "settings: %v\n", settingsErr)
		os.Exit(1)
	}

	payload, renderErr := renderPanelShell(settings, logger)
	if renderErr != nil {
		_, _ = fmt.Fprintf(os.Stderr, "%v\n", renderErr)
		os.Exit(1)
	}

	outputPath := filepath.Join(outputDir, panelOutputPath)
	if err := writeFile(outputPath, payload); err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "write %s: %v\n", outputPath, err)
		os.Exit(1)
	}

	fmt.Println("static frontend generated in", outputDir)
}
