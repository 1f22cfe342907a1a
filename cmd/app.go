// file: cmd/app.go
// version: 1.1.0
// guid: cfd97bd4-b3cb-42ac-a8ab-e3c58a082f2f

package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/jdfalk/bookmeta/internal/auth"
	"github.com/jdfalk/bookmeta/internal/config"
	"github.com/jdfalk/bookmeta/internal/credentials"
	"github.com/jdfalk/bookmeta/internal/database"
	"github.com/jdfalk/bookmeta/internal/logger"
	"github.com/jdfalk/bookmeta/internal/metadata"
	"github.com/jdfalk/bookmeta/internal/paginate"
	"github.com/jdfalk/bookmeta/internal/resolver"
	"github.com/jdfalk/bookmeta/internal/scrape"
	"github.com/jdfalk/bookmeta/internal/searchindex"
	"github.com/jdfalk/bookmeta/internal/server"
)

// spotifyCredentialSlot is the credential slot holding the Spotify token.
const spotifyCredentialSlot = "spotify"

// app holds the wired services shared by every command.
type app struct {
	cfg        *config.Config
	store      database.Store
	index      *searchindex.Index
	background *resolver.Background
	books      *resolver.BookService
	audiobooks *resolver.AudiobookService
	deadlines  *resolver.DeadlineService
	verifier   auth.Verifier
}

func providerOptions(p config.ProviderConfig) []metadata.Option {
	opts := []metadata.Option{metadata.WithRateLimit(p.RateLimit, p.Burst)}
	if p.BaseURL != "" {
		opts = append(opts, metadata.WithBaseURL(p.BaseURL))
	}
	return opts
}

// newApp opens the store and wires providers into the resolver services.
func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	log := logger.Get().WithComponent("app")

	store, err := database.Open(cfg.DatabaseType, cfg.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s store: %w", cfg.DatabaseType, err)
	}

	catalog := scrape.DefaultCatalog()
	if cfg.SelectorCatalog != "" {
		catalog, err = scrape.LoadCatalog(cfg.SelectorCatalog)
		if err != nil {
			_ = store.Close()
			return nil, fmt.Errorf("failed to load selector catalog: %w", err)
		}
	}

	index, err := searchindex.New()
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("failed to create search index: %w", err)
	}
	if n, err := index.Load(ctx, store, cfg.IndexWarmLimit); err != nil {
		log.Warn("failed to load cached books into search index", map[string]interface{}{"error": err.Error()})
	} else {
		log.Info("search index loaded", map[string]interface{}{"books": n})
	}

	google := metadata.NewGoogleBooksClient(cfg.APIKeys.GoogleBooks, providerOptions(cfg.GoogleBooks)...)
	openLibrary := metadata.NewOpenLibraryClient(providerOptions(cfg.OpenLibrary)...)
	hardcover := metadata.NewHardcoverClient(cfg.APIKeys.Hardcover, providerOptions(cfg.Hardcover)...)
	bookPage := metadata.NewBookPageScraper(catalog, providerOptions(cfg.BookPage)...)
	audible := metadata.NewAudibleScraper(catalog, providerOptions(cfg.Audible)...)
	audnexus := metadata.NewAudnexusClient(providerOptions(cfg.Audnexus)...)

	var tokens paginate.TokenFunc
	if cfg.SpotifyConfigured() {
		exchanger := credentials.NewClientCredentials(cfg.Spotify.ClientID, cfg.Spotify.ClientSecret, cfg.Spotify.TokenURL, cfg.StrategyTimeout)
		tokens = credentials.NewCache(store, exchanger, spotifyCredentialSlot).Token
	}
	spotify := metadata.NewSpotifyClient(tokens, cfg.Spotify.Market, providerOptions(cfg.Spotify.ProviderConfig)...)

	searchers := []metadata.BookSearcher{google, openLibrary}
	if hardcover.Configured() {
		searchers = append(searchers, hardcover)
	}
	searchers = append(searchers, index)

	background := resolver.NewBackground(cfg.WriteBackTimeout)
	a := &app{
		cfg:        cfg,
		store:      store,
		index:      index,
		background: background,
		books: &resolver.BookService{
			Store:      store,
			Volumes:    google,
			ISBNs:      openLibrary,
			Pages:      bookPage,
			Searchers:  searchers,
			Index:      index,
			Timeout:    cfg.StrategyTimeout,
			Background: background,
		},
		audiobooks: &resolver.AudiobookService{
			Store:        store,
			Spotify:      spotify,
			Audible:      audible,
			Enricher:     audnexus,
			CacheTTL:     cfg.AudiobookTTL,
			SafetyBuffer: cfg.CacheBuffer,
			Timeout:      cfg.StrategyTimeout,
			Background:   background,
		},
		deadlines: &resolver.DeadlineService{Store: store},
	}

	if cfg.JWTSecret != "" {
		v, err := auth.NewJWTVerifier(cfg.JWTSecret, cfg.JWTIssuer, cfg.JWTAudience)
		if err != nil {
			_ = a.Close()
			return nil, err
		}
		a.verifier = v
	}

	log.Info("services ready", map[string]interface{}{
		"store":     cfg.DatabaseType,
		"spotify":   spotify.Configured(),
		"hardcover": hardcover.Configured(),
		"google":    google.HasKey(),
	})
	return a, nil
}

// services exposes the app to the HTTP layer.
func (a *app) services() server.Services {
	return server.Services{
		Books:      a.books,
		Audiobooks: a.audiobooks,
		Deadlines:  a.deadlines,
		Verifier:   a.verifier,
		Index:      a.index,
	}
}

// Close drains pending write-backs, then releases the index and the store.
func (a *app) Close() error {
	a.background.Wait()
	return errors.Join(a.index.Close(), a.store.Close())
}
