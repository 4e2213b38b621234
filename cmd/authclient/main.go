package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"
	"time"

	"github.com/common-nighthawk/go-figure"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/jrsteele09/go-auth-client/client"
	"github.com/jrsteele09/go-auth-client/internal/config"
	"github.com/jrsteele09/go-auth-client/oauthapi"
	"github.com/jrsteele09/go-auth-client/session"
	"github.com/jrsteele09/go-auth-client/storage"
	"github.com/jrsteele09/go-auth-client/storage/memory"
	"github.com/jrsteele09/go-auth-client/storage/redisstore"
	"github.com/jrsteele09/go-auth-client/storage/sealed"
)

func main() {
	if err := run(); err != nil {
		log.Fatal().Err(err).Msg("Error running auth client")
	}
	log.Info().Msg("Auth client stopped")
}

func run() (returnError error) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Msg("Recovered from panic")
			debug.PrintStack()
			returnError = errors.New("panic recovered")
		}
	}()

	c, err := config.Load()
	if err != nil {
		return err
	}
	setupLogging(c)
	displayAppname(c.GetAppName())

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	store, closeStore, err := openStore(ctx, c)
	if err != nil {
		return err
	}
	defer closeStore()

	manager, closeManager, err := newManager(ctx, c, store)
	if err != nil {
		return err
	}
	defer closeManager()

	manager.OnAuthStateChange(logEvent)
	<-manager.Initialized()

	if err := ensureSession(ctx, c, manager); err != nil {
		return err
	}

	waitForStopSignal()
	return nil
}

// openStore builds the configured backend, sealing values when a key is set.
func openStore(ctx context.Context, c config.Config) (storage.Store, func(), error) {
	var store storage.Store
	closeStore := func() {}

	switch c.GetStorageBackend() {
	case config.StorageRedis:
		redisCfg := c.GetRedisConfig()
		rdb, err := redisstore.Connect(ctx, redisCfg)
		if err != nil {
			return nil, nil, fmt.Errorf("redisstore.Connect: %w", err)
		}
		store = redisstore.New(rdb, redisstore.WithKeyPrefix(redisCfg.KeyPrefix))
		closeStore = func() { _ = rdb.Close() }
	default:
		store = memory.New()
	}

	key, ok, err := c.GetSealKey()
	if err != nil {
		closeStore()
		return nil, nil, err
	}
	if ok {
		store = sealed.New(store, key)
	}
	return store, closeStore, nil
}

func newManager(ctx context.Context, c config.Config, store storage.Store) (*session.Manager, func(), error) {
	if c.GetProviderKind() == config.ProviderOAuth2 {
		api, err := oauthapi.New(ctx, c.GetOAuth2Config())
		if err != nil {
			return nil, nil, fmt.Errorf("oauthapi.New: %w", err)
		}
		m, err := session.NewManager(api, store, c.GetSessionOptions()...)
		if err != nil {
			return nil, nil, err
		}
		return m, func() { _ = m.Close() }, nil
	}

	cl, err := client.New(
		client.Config{URL: c.GetAuthURL(), APIKey: c.GetAPIKey()},
		client.WithStore(store),
		client.WithSessionOptions(c.GetSessionOptions()...),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("client.New: %w", err)
	}
	log.Info().Str("auth_url", cl.AuthURL()).Msg("Using GoTrue auth server")
	return cl.Auth(), func() { _ = cl.Close() }, nil
}

// ensureSession signs in with the configured credentials when nothing was restored.
func ensureSession(ctx context.Context, c config.Config, m *session.Manager) error {
	if s := m.Session(); s != nil {
		log.Info().Time("expires_at", s.Expiry()).Msg("Session restored")
		return nil
	}

	creds := c.GetCredentials()
	var err error
	switch {
	case creds.Password != "":
		if _, err = m.SignInWithPassword(ctx, creds); err == nil && m.Session() == nil {
			log.Warn().Msg("Signed in user is not confirmed yet")
		}
	case creds.Email != "":
		if err = m.SendMagicLink(ctx, creds.Email, session.OTPOptions{}); err == nil {
			log.Info().Str("email", creds.Email).Msg("Magic link sent, waiting for sign in")
		}
	case creds.Phone != "":
		if err = m.SendMobileOTP(ctx, creds.Phone, session.OTPOptions{}); err == nil {
			log.Info().Str("phone", creds.Phone).Msg("One-time password sent, waiting for sign in")
		}
	default:
		log.Warn().Msg("No stored session and no credentials configured, waiting for changes from other processes")
	}
	if errors.Is(err, session.ErrUnsupported) {
		log.Warn().Msg("The auth provider does not support the configured sign in flow")
		return nil
	}
	if err != nil {
		return fmt.Errorf("sign in: %w", err)
	}
	return nil
}

func logEvent(event session.Event, s *session.Session) {
	e := log.Info().Str("event", string(event))
	if s != nil {
		e = e.Time("expires_at", s.Expiry())
		if s.User != nil {
			e = e.Str("user_id", s.User.ID)
		}
	}
	e.Msg("Auth state changed")
}

func setupLogging(c config.Config) {
	zerolog.SetGlobalLevel(c.GetLogLevel())
	if c.GetLogFormat() != "json" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	}
}

func waitForStopSignal() {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop
}

func displayAppname(appname string) {
	myFigure := figure.NewFigure(appname, "cybermedium", true)
	myFigure.Print()
	fmt.Println()
}
