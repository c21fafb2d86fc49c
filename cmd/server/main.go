package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/MarkoPoloResearchLab/kairix_panel/internal/backend"
	"github.com/MarkoPoloResearchLab/kairix_panel/internal/credential"
	"github.com/MarkoPoloResearchLab/kairix_panel/internal/httpapi"
	"github.com/MarkoPoloResearchLab/kairix_panel/internal/panel"
	"github.com/MarkoPoloResearchLab/kairix_panel/internal/storage"
	"github.com/MarkoPoloResearchLab/kairix_panel/internal/task"
)

const (
	commandUseName                     = "server"
	commandShortDescription            = "Run the Kairix customer panel"
	commandLongDescription             = "Launch the Kairix customer panel HTTP server in front of the Kairix backend API"
	missingConfigurationMessage        = "missing required configuration"
	loggerCreationErrorMessage         = "logger"
	logEventListening                  = "listening"
	logEventTimeZoneFallback           = "panel_timezone_fallback"
	logEventDotEnvSkipped              = "dotenv_skipped"
	logFieldAddress                    = "addr"
	flagNameApplicationAddress         = "app-addr"
	flagNameBackendBaseURL             = "backend-base-url"
	flagNameSessionSecret              = "session-secret"
	flagNameSecureCookies              = "secure-cookies"
	flagNameDatabaseDriver             = "db-driver"
	flagNameDatabaseDataSourceName     = "db-dsn"
	flagNameTimeZone                   = "panel-timezone"
	flagNameLoginPath                  = "login-path"
	flagNameUnauthorizedMode           = "unauthorized-mode"
	flagNameProfileAddressFields       = "profile-address-fields"
	flagNameViewStateTTL               = "view-state-ttl"
	flagNameAllowedOrigin              = "allowed-origin"
	flagNameMenuBadges                 = "menu-badges"
	flagNameStaticDirectory            = "static-dir"
	flagUsageApplicationAddress        = "address for the HTTP server to listen on"
	flagUsageBackendBaseURL            = "base URL of the Kairix backend API"
	flagUsageSessionSecret             = "secret signing the panel session cookie (at least 32 bytes)"
	flagUsageSecureCookies             = "mark the panel session cookie Secure"
	flagUsageDatabaseDriver            = "view state database driver (sqlite or postgres)"
	flagUsageDatabaseDataSourceName    = "view state database connection string"
	flagUsageTimeZone                  = "IANA zone timestamps are shown in"
	flagUsageLoginPath                 = "login page the panel sends rejected sessions to"
	flagUsageUnauthorizedMode          = "what a rejected credential does: stay or redirect"
	flagUsageProfileAddressFields      = "include the address inputs in the profile form"
	flagUsageViewStateTTL              = "idle time after which a view state is discarded"
	flagUsageAllowedOrigin             = "origin allowed to call the panel routes with credentials"
	flagUsageMenuBadges                = "menu badges the panel keeps counts for"
	flagUsageStaticDirectory           = "directory served under /static"
	environmentKeyApplicationAddress   = "APP_ADDR"
	environmentKeyBackendBaseURL       = "BACKEND_BASE_URL"
	environmentKeySessionSecret        = "SESSION_SECRET"
	environmentKeySecureCookies        = "SECURE_COOKIES"
	environmentKeyDatabaseDriver       = "DB_DRIVER"
	environmentKeyDatabaseDataSource   = "DB_DSN"
	environmentKeyTimeZone             = "PANEL_TIMEZONE"
	environmentKeyLoginPath            = "LOGIN_PATH"
	environmentKeyUnauthorizedMode     = "UNAUTHORIZED_MODE"
	environmentKeyProfileAddressFields = "PROFILE_ADDRESS_FIELDS"
	environmentKeyViewStateTTL         = "VIEW_STATE_TTL"
	environmentKeyAllowedOrigin        = "ALLOWED_ORIGIN"
	environmentKeyMenuBadges           = "MENU_BADGES"
	environmentKeyStaticDirectory      = "STATIC_DIR"
	defaultApplicationAddress          = ":8080"
	defaultDatabaseDriver              = storage.DriverNameSQLite
	defaultDatabaseDataSourceName      = "file:kairix_panel.db?_pragma=busy_timeout(5000)"
	defaultLoginPath                   = "/login"
	defaultViewStateTTL                = 24 * time.Hour
	defaultUnauthorizedMode            = string(httpapi.UnauthorizedModeStay)
	dotEnvFileName                     = ".env"
	loggerContextOpenDatabase          = "open_db"
	loggerContextAutoMigrate           = "migrate"
	loggerContextServer                = "server"
	readHeaderTimeoutSeconds           = 5
	shutdownTimeoutSeconds             = 10
	unexpectedArgumentsMessage         = "unexpected command arguments"
	commandInitializationFailure       = "failed to configure command"
	flagNotDefinedMessage              = "flag %s not defined"
	environmentConfigurationError      = "failed to apply environment configuration"
)

// ServerConfig captures configuration needed to run the server.
type ServerConfig struct {
	ApplicationAddress     string
	BackendBaseURL         string
	SessionSecret          string
	SecureCookies          bool
	DatabaseDriverName     string
	DatabaseDataSourceName string
	TimeZone               string
	LoginPath              string
	UnauthorizedMode       httpapi.UnauthorizedMode
	ProfileAddressFields   bool
	ViewStateTTL           time.Duration
	AllowedOrigin          string
	MenuBadges             []string
	StaticDirectory        string
}

// DatabaseOpener opens the view state database.
type DatabaseOpener func(storage.Config) (*gorm.DB, error)

// ServerApplication constructs and executes the server command.
type ServerApplication struct {
	configurationLoader *viper.Viper
	databaseOpener      DatabaseOpener
}

// NewServerApplication creates a ServerApplication with default dependencies.
func NewServerApplication() *ServerApplication {
	return &ServerApplication{
		configurationLoader: viper.New(),
		databaseOpener:      storage.OpenDatabase,
	}
}

// WithDatabaseOpener overrides the database opener dependency.
func (application *ServerApplication) WithDatabaseOpener(databaseOpener DatabaseOpener) *ServerApplication {
	application.databaseOpener = databaseOpener
	return application
}

// Command builds the Cobra command for the server.
func (application *ServerApplication) Command() (*cobra.Command, error) {
	rootCommand := &cobra.Command{
		Use:   commandUseName,
		Short: commandShortDescription,
		Long:  commandLongDescription,
		RunE:  application.runCommand,
	}

	if configurationErr := application.configureCommand(rootCommand); configurationErr != nil {
		return nil, configurationErr
	}

	return rootCommand, nil
}

type flagBinding struct {
	environmentKey string
	flagName       string
}

var flagBindings = []flagBinding{
	{environmentKey: environmentKeyApplicationAddress, flagName: flagNameApplicationAddress},
	{environmentKey: environmentKeyBackendBaseURL, flagName: flagNameBackendBaseURL},
	{environmentKey: environmentKeySessionSecret, flagName: flagNameSessionSecret},
	{environmentKey: environmentKeySecureCookies, flagName: flagNameSecureCookies},
	{environmentKey: environmentKeyDatabaseDriver, flagName: flagNameDatabaseDriver},
	{environmentKey: environmentKeyDatabaseDataSource, flagName: flagNameDatabaseDataSourceName},
	{environmentKey: environmentKeyTimeZone, flagName: flagNameTimeZone},
	{environmentKey: environmentKeyLoginPath, flagName: flagNameLoginPath},
	{environmentKey: environmentKeyUnauthorizedMode, flagName: flagNameUnauthorizedMode},
	{environmentKey: environmentKeyProfileAddressFields, flagName: flagNameProfileAddressFields},
	{environmentKey: environmentKeyViewStateTTL, flagName: flagNameViewStateTTL},
	{environmentKey: environmentKeyAllowedOrigin, flagName: flagNameAllowedOrigin},
	{environmentKey: environmentKeyMenuBadges, flagName: flagNameMenuBadges},
	{environmentKey: environmentKeyStaticDirectory, flagName: flagNameStaticDirectory},
}

func (application *ServerApplication) configureCommand(command *cobra.Command) error {
	application.configurationLoader.SetDefault(environmentKeyApplicationAddress, defaultApplicationAddress)
	application.configurationLoader.SetDefault(environmentKeyDatabaseDriver, defaultDatabaseDriver)
	application.configurationLoader.SetDefault(environmentKeyDatabaseDataSource, defaultDatabaseDataSourceName)
	application.configurationLoader.SetDefault(environmentKeyTimeZone, panel.DefaultTimeZone)
	application.configurationLoader.SetDefault(environmentKeyLoginPath, defaultLoginPath)
	application.configurationLoader.SetDefault(environmentKeyUnauthorizedMode, defaultUnauthorizedMode)
	application.configurationLoader.SetDefault(environmentKeyProfileAddressFields, true)
	application.configurationLoader.SetDefault(environmentKeyViewStateTTL, defaultViewStateTTL)
	application.configurationLoader.SetDefault(environmentKeyMenuBadges, panel.DefaultBadgeIDs)
	application.configurationLoader.AutomaticEnv()

	commandFlags := command.Flags()
	commandFlags.String(flagNameApplicationAddress, defaultApplicationAddress, flagUsageApplicationAddress)
	commandFlags.String(flagNameBackendBaseURL, "", flagUsageBackendBaseURL)
	commandFlags.String(flagNameSessionSecret, "", flagUsageSessionSecret)
	commandFlags.Bool(flagNameSecureCookies, false, flagUsageSecureCookies)
	commandFlags.String(flagNameDatabaseDriver, defaultDatabaseDriver, flagUsageDatabaseDriver)
	commandFlags.String(flagNameDatabaseDataSourceName, defaultDatabaseDataSourceName, flagUsageDatabaseDataSourceName)
	commandFlags.String(flagNameTimeZone, panel.DefaultTimeZone, flagUsageTimeZone)
	commandFlags.String(flagNameLoginPath, defaultLoginPath, flagUsageLoginPath)
	commandFlags.String(flagNameUnauthorizedMode, defaultUnauthorizedMode, flagUsageUnauthorizedMode)
	commandFlags.Bool(flagNameProfileAddressFields, true, flagUsageProfileAddressFields)
	commandFlags.Duration(flagNameViewStateTTL, defaultViewStateTTL, flagUsageViewStateTTL)
	commandFlags.String(flagNameAllowedOrigin, "", flagUsageAllowedOrigin)
	commandFlags.StringSlice(flagNameMenuBadges, panel.DefaultBadgeIDs, flagUsageMenuBadges)
	commandFlags.String(flagNameStaticDirectory, "", flagUsageStaticDirectory)

	for _, binding := range flagBindings {
		if bindErr := application.bindFlag(commandFlags, binding.environmentKey, binding.flagName); bindErr != nil {
			return bindErr
		}
	}

	for _, binding := range flagBindings {
		if environmentErr := application.applyEnvironmentConfiguration(commandFlags, binding.environmentKey, binding.flagName); environmentErr != nil {
			return environmentErr
		}
	}

	if markErr := command.MarkFlagRequired(flagNameBackendBaseURL); markErr != nil {
		return markErr
	}

	if markErr := command.MarkFlagRequired(flagNameSessionSecret); markErr != nil {
		return markErr
	}

	return nil
}

func (application *ServerApplication) bindFlag(flagSet *pflag.FlagSet, environmentKey string, flagName string) error {
	flag := flagSet.Lookup(flagName)
	if flag == nil {
		return fmt.Errorf(flagNotDefinedMessage, flagName)
	}

	if bindErr := application.configurationLoader.BindPFlag(environmentKey, flag); bindErr != nil {
		return bindErr
	}

	return nil
}

func (application *ServerApplication) applyEnvironmentConfiguration(flagSet *pflag.FlagSet, environmentKey string, flagName string) error {
	environmentValue, environmentFound := os.LookupEnv(environmentKey)
	if !environmentFound {
		return nil
	}

	if setErr := flagSet.Set(flagName, environmentValue); setErr != nil {
		return fmt.Errorf("%s: %w", environmentConfigurationError, setErr)
	}

	return nil
}

func (application *ServerApplication) loadConfiguration() (ServerConfig, error) {
	unauthorizedMode, modeErr := httpapi.ParseUnauthorizedMode(application.configurationLoader.GetString(environmentKeyUnauthorizedMode))
	if modeErr != nil {
		return ServerConfig{}, modeErr
	}

	return ServerConfig{
		ApplicationAddress:     application.configurationLoader.GetString(environmentKeyApplicationAddress),
		BackendBaseURL:         strings.TrimSpace(application.configurationLoader.GetString(environmentKeyBackendBaseURL)),
		SessionSecret:          strings.TrimSpace(application.configurationLoader.GetString(environmentKeySessionSecret)),
		SecureCookies:          application.configurationLoader.GetBool(environmentKeySecureCookies),
		DatabaseDriverName:     strings.TrimSpace(application.configurationLoader.GetString(environmentKeyDatabaseDriver)),
		DatabaseDataSourceName: strings.TrimSpace(application.configurationLoader.GetString(environmentKeyDatabaseDataSource)),
		TimeZone:               strings.TrimSpace(application.configurationLoader.GetString(environmentKeyTimeZone)),
		LoginPath:              strings.TrimSpace(application.configurationLoader.GetString(environmentKeyLoginPath)),
		UnauthorizedMode:       unauthorizedMode,
		ProfileAddressFields:   application.configurationLoader.GetBool(environmentKeyProfileAddressFields),
		ViewStateTTL:           application.configurationLoader.GetDuration(environmentKeyViewStateTTL),
		AllowedOrigin:          strings.TrimSpace(application.configurationLoader.GetString(environmentKeyAllowedOrigin)),
		MenuBadges:             application.configurationLoader.GetStringSlice(environmentKeyMenuBadges),
		StaticDirectory:        strings.TrimSpace(application.configurationLoader.GetString(environmentKeyStaticDirectory)),
	}, nil
}

func (application *ServerApplication) runCommand(command *cobra.Command, arguments []string) error {
	if len(arguments) > 0 {
		return fmt.Errorf("%s: %s", unexpectedArgumentsMessage, strings.Join(arguments, " "))
	}

	serverConfig, configErr := application.loadConfiguration()
	if configErr != nil {
		return configErr
	}

	if validationErr := application.ensureRequiredConfiguration(serverConfig); validationErr != nil {
		return validationErr
	}

	logger, loggerErr := zap.NewProduction()
	if loggerErr != nil {
		return fmt.Errorf("%s: %w", loggerCreationErrorMessage, loggerErr)
	}
	defer func() {
		_ = logger.Sync()
	}()

	database, databaseErr := application.databaseOpener(storage.Config{
		DriverName:     serverConfig.DatabaseDriverName,
		DataSourceName: serverConfig.DatabaseDataSourceName,
	})
	if databaseErr != nil {
		logger.Fatal(loggerContextOpenDatabase, zap.Error(databaseErr))
	}

	if migrateErr := storage.AutoMigrate(database); migrateErr != nil {
		logger.Fatal(loggerContextAutoMigrate, zap.Error(migrateErr))
	}

	viewStateRepository := storage.NewViewStateRepository(database)
	panelHandlers, handlersErr := newPanelHandlers(serverConfig, viewStateRepository, logger)
	if handlersErr != nil {
		return handlersErr
	}

	sweepJob, sweepErr := task.NewViewStateSweepJob(viewStateRepository, logger, serverConfig.ViewStateTTL)
	if sweepErr != nil {
		return sweepErr
	}

	serverContext, stopSignals := signal.NotifyContext(command.Context(), os.Interrupt, syscall.SIGTERM)
	defer stopSignals()

	sweeper := task.NewScheduler(serverConfig.ViewStateTTL/2, sweepJob.Runner())
	sweeper.Start(serverContext)
	defer sweeper.Stop()

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(httpapi.RequestLogger(logger))
	registerPanelRoutes(router, panelHandlers, newPanelCORS(serverConfig.AllowedOrigin))
	registerStaticRoutes(router, serverConfig.StaticDirectory)

	httpServer := &http.Server{
		Addr:              serverConfig.ApplicationAddress,
		Handler:           router,
		ReadHeaderTimeout: readHeaderTimeoutSeconds * time.Second,
	}

	go func() {
		<-serverContext.Done()
		shutdownContext, cancelShutdown := context.WithTimeout(context.Background(), shutdownTimeoutSeconds*time.Second)
		defer cancelShutdown()
		_ = httpServer.Shutdown(shutdownContext)
	}()

	logger.Info(logEventListening, zap.String(logFieldAddress, serverConfig.ApplicationAddress))
	if serveErr := httpServer.ListenAndServe(); serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
		logger.Fatal(loggerContextServer, zap.Error(serveErr))
	}

	return nil
}

func newPanelHandlers(serverConfig ServerConfig, viewStateRecords panel.ViewStateRecords, logger *zap.Logger) (*httpapi.PanelHandlers, error) {
	formatter, formatterErr := panel.NewFormatter(serverConfig.TimeZone)
	if formatterErr != nil {
		logger.Warn(logEventTimeZoneFallback, zap.String("timezone", serverConfig.TimeZone), zap.Error(formatterErr))
	}

	panelInstance, panelErr := panel.New(panel.Config{
		ViewStates: panel.NewViewStates(viewStateRecords, nil),
		Formatter:  formatter,
		Schema:     panel.NewProfileFormSchema(serverConfig.ProfileAddressFields),
		BadgeIDs:   serverConfig.MenuBadges,
		Logger:     logger,
	})
	if panelErr != nil {
		return nil, panelErr
	}

	backendClient, clientErr := backend.NewClient(serverConfig.BackendBaseURL, nil, logger, backend.DefaultForwardedCookieNames)
	if clientErr != nil {
		return nil, clientErr
	}

	sessionStore, storeErr := credential.NewCookieStore(serverConfig.SessionSecret, serverConfig.SecureCookies)
	if storeErr != nil {
		return nil, storeErr
	}

	return httpapi.NewPanelHandlers(httpapi.PanelHandlersConfig{
		Panel:            panelInstance,
		Client:           backendClient,
		SessionStore:     sessionStore,
		BadgeIDs:         serverConfig.MenuBadges,
		LoginPath:        serverConfig.LoginPath,
		UnauthorizedMode: serverConfig.UnauthorizedMode,
		Logger:           logger,
	})
}

func (application *ServerApplication) ensureRequiredConfiguration(configuration ServerConfig) error {
	var missingParameters []string

	if configuration.BackendBaseURL == "" {
		missingParameters = append(missingParameters, flagNameBackendBaseURL)
	}

	if configuration.SessionSecret == "" {
		missingParameters = append(missingParameters, flagNameSessionSecret)
	}

	if len(missingParameters) == 0 {
		return nil
	}

	return fmt.Errorf("%s: %s", missingConfigurationMessage, strings.Join(missingParameters, ", "))
}

func loadDotEnv(fileName string) error {
	if _, statErr := os.Stat(fileName); statErr != nil {
		return statErr
	}
	return godotenv.Load(fileName)
}

func main() {
	if dotEnvErr := loadDotEnv(dotEnvFileName); dotEnvErr != nil && !errors.Is(dotEnvErr, os.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "%s: %v\n", logEventDotEnvSkipped, dotEnvErr)
	}

	application := NewServerApplication()
	rootCommand, commandErr := application.Command()
	if commandErr != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", commandInitializationFailure, commandErr)
		os.Exit(1)
	}

	if executeErr := rootCommand.Execute(); executeErr != nil {
		os.Exit(1)
	}
}
