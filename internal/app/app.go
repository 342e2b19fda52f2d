// Package app wires configuration, storage, clients, and services together.
// It is the shared core used by cmd/summary-server.
package app

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/devangb3/Calendar-Gmail-Summary/internal/clients/gemini"
	"github.com/devangb3/Calendar-Gmail-Summary/internal/clients/googleauth"
	"github.com/devangb3/Calendar-Gmail-Summary/internal/clients/googlecal"
	"github.com/devangb3/Calendar-Gmail-Summary/internal/clients/googlemail"
	"github.com/devangb3/Calendar-Gmail-Summary/internal/common"
	"github.com/devangb3/Calendar-Gmail-Summary/internal/interfaces"
	"github.com/devangb3/Calendar-Gmail-Summary/internal/services/credential"
	"github.com/devangb3/Calendar-Gmail-Summary/internal/services/digest"
	"github.com/devangb3/Calendar-Gmail-Summary/internal/storage/credentialdb"
	"github.com/devangb3/Calendar-Gmail-Summary/internal/storage/digestdb"
)

// App holds all initialized services, clients, and stores.
type App struct {
	Config            *common.Config
	Logger            *common.Logger
	CredentialStore   interfaces.CredentialStore
	DigestCache       interfaces.DigestCache
	AuthClient        *googleauth.Client
	CredentialService interfaces.CredentialService
	DigestService     interfaces.DigestService
	StartupTime       time.Time

	sweepCancel context.CancelFunc
}

// getBinaryDir returns the directory containing the executable.
func getBinaryDir() string {
	exe, err := os.Executable()
	if err != nil {
		return "."
	}
	return filepath.Dir(exe)
}

// NewApp initializes all stores, clients, and services.
// configPath may be empty, in which case the default resolution logic is used.
func NewApp(configPath string) (*App, error) {
	startupStart := time.Now()

	binDir := getBinaryDir()

	// Load configuration - check provided path, SUMMARY_CONFIG, then binary dir, then fallback
	if configPath == "" {
		configPath = os.Getenv("SUMMARY_CONFIG")
	}
	if configPath == "" {
		configPath = filepath.Join(binDir, "summary.toml")
		if _, err := os.Stat(configPath); os.IsNotExist(err) {
			configPath = "config/summary.toml" // fallback for development
		}
	}

	config, err := common.LoadConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	// Resolve relative storage paths to binary directory
	if config.Storage.Credentials.Path != "" && !filepath.IsAbs(config.Storage.Credentials.Path) {
		config.Storage.Credentials.Path = filepath.Join(binDir, config.Storage.Credentials.Path)
	}
	if config.Storage.Digests.Path != "" && !filepath.IsAbs(config.Storage.Digests.Path) {
		config.Storage.Digests.Path = filepath.Join(binDir, config.Storage.Digests.Path)
	}

	logger := common.NewLoggerFromConfig(config.Logging)

	credStore, err := credentialdb.NewStore(logger, config.Storage.Credentials.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open credential store: %w", err)
	}
	digestCache, err := digestdb.NewStore(logger, config.Storage.Digests.Path)
	if err != nil {
		credStore.Close()
		return nil, fmt.Errorf("failed to open digest cache: %w", err)
	}

	authClient := googleauth.NewClient(
		config.Auth.Google.ClientID,
		config.Auth.Google.ClientSecret,
		config.Auth.RedirectURL,
		googleauth.WithLogger(logger),
	)

	calendarClient := googlecal.NewClient(
		googlecal.WithLogger(logger),
		googlecal.WithRateLimit(config.Clients.Google.RateLimit),
	)
	mailClient := googlemail.NewClient(
		googlemail.WithLogger(logger),
		googlemail.WithRateLimit(config.Clients.Google.RateLimit),
	)

	ctx := context.Background()
	geminiClient, err := gemini.NewClient(ctx, config.Clients.Gemini.APIKey,
		gemini.WithLogger(logger),
		gemini.WithModel(config.Clients.Gemini.Model),
	)
	if err != nil {
		credStore.Close()
		digestCache.Close()
		return nil, fmt.Errorf("failed to initialize Gemini client: %w", err)
	}

	credentialService := credential.NewService(credStore, authClient, nil, logger)
	digestService := digest.NewService(credentialService, digestCache, calendarClient, mailClient, geminiClient, digest.Options{
		StalenessWindow: config.Digest.GetStalenessWindow(),
		FetchTimeout:    config.Clients.Google.GetTimeout(),
		GenerateTimeout: config.Clients.Gemini.GetTimeout(),
		WindowSpan:      config.Clients.Google.GetWindowSpan(),
		MaxEvents:       config.Clients.Google.MaxEvents,
		MaxEmails:       config.Clients.Google.MaxEmails,
		SweepWorkers:    config.Digest.SweepWorkers,
	}, logger)

	a := &App{
		Config:            config,
		Logger:            logger,
		CredentialStore:   credStore,
		DigestCache:       digestCache,
		AuthClient:        authClient,
		CredentialService: credentialService,
		DigestService:     digestService,
		StartupTime:       startupStart,
	}

	logger.Info().Dur("startup", time.Since(startupStart)).Msg("App initialized")

	return a, nil
}

// Close releases all resources held by the App.
// Shutdown order: cancel sweep, close stores.
func (a *App) Close() {
	if a.sweepCancel != nil {
		a.sweepCancel()
		a.sweepCancel = nil
	}
	if a.CredentialStore != nil {
		a.CredentialStore.Close()
		a.CredentialStore = nil
	}
	if a.DigestCache != nil {
		a.DigestCache.Close()
		a.DigestCache = nil
	}
}

// StartSweep launches the background digest refresh goroutine.
func (a *App) StartSweep() {
	sweepCtx, sweepCancel := context.WithCancel(context.Background())
	a.sweepCancel = sweepCancel
	go startSweepScheduler(sweepCtx, a.DigestService, a.Logger, a.Config.Digest.GetSweepInterval())
}
