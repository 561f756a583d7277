package main

import (
	"context"
	"crypto/tls"
	"fmt"
	"io/ioutil"
	"net"
	"net/http"
	"os"
	"syscall"
	"time"

	"github.com/ghodss/yaml"
	goredis "github.com/redis/go-redis/v9"
	"github.com/oklog/run"
	"github.com/spf13/cobra"

	"github.com/ohx-cloud/authd/clientregistry"
	"github.com/ohx-cloud/authd/credential"
	"github.com/ohx-cloud/authd/identity"
	"github.com/ohx-cloud/authd/intenttoken"
	"github.com/ohx-cloud/authd/pendingintent"
	"github.com/ohx-cloud/authd/pkg/log"
	"github.com/ohx-cloud/authd/ratelimit"
	"github.com/ohx-cloud/authd/refreshtoken"
	"github.com/ohx-cloud/authd/server"
	"github.com/ohx-cloud/authd/token"
)

type serveOptions struct {
	config string

	webHTTPAddr   string
	webHTTPSAddr  string
	telemetryAddr string
}

func commandServe() *cobra.Command {
	options := serveOptions{}

	cmd := &cobra.Command{
		Use:     "serve [flags] [config file]",
		Short:   "Launch authd",
		Example: "authd serve config.yaml",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cmd.SilenceUsage = true
			cmd.SilenceErrors = true
			options.config = args[0]
			return runServe(options)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&options.webHTTPAddr, "web-http-addr", "", "Web HTTP address, overrides the config file")
	flags.StringVar(&options.webHTTPSAddr, "web-https-addr", "", "Web HTTPS address, overrides the config file")
	flags.StringVar(&options.telemetryAddr, "telemetry-addr", "", "Telemetry address, overrides the config file")
	return cmd
}

func applyConfigOverrides(options serveOptions, c *Config) {
	if options.webHTTPAddr != "" {
		c.Web.HTTP = options.webHTTPAddr
	}
	if options.webHTTPSAddr != "" {
		c.Web.HTTPS = options.webHTTPSAddr
	}
	if options.telemetryAddr != "" {
		c.Telemetry.HTTP = options.telemetryAddr
	}
}

// serverRunner adapts an *http.Server into an oklog/run actor with graceful
// shutdown, the same pattern cmd/dex/serve.go uses to run its HTTP and gRPC
// listeners side by side.
type serverRunner struct {
	name string
	srv  *http.Server

	tlsCrt string
	tlsKey string

	logger log.Logger
}

func newServerRunner(name string, srv *http.Server, logger log.Logger) *serverRunner {
	return &serverRunner{name: name, srv: srv, logger: logger}
}

func (s *serverRunner) WithTLS(crt, key string) *serverRunner {
	s.tlsCrt = crt
	s.tlsKey = key
	return s
}

func (s *serverRunner) run(listener net.Listener) error {
	if s.tlsCrt != "" && s.tlsKey != "" {
		return s.srv.ServeTLS(listener, s.tlsCrt, s.tlsKey)
	}
	return s.srv.Serve(listener)
}

// removalSweepInterval is how often the user-removal sweep ticker runs
// SweepRemovedUsers in the background, alongside the on-demand
// /check_for_users HTTP trigger (SPEC_FULL.md §4.L).
const removalSweepInterval = 15 * time.Minute

// rateLimiterSweepInterval/rateLimiterMaxIdle bound the per-IP rate-limiter
// map's memory growth (ratelimit.Limiter.Sweep).
const (
	rateLimiterSweepInterval = 10 * time.Minute
	rateLimiterMaxIdle       = 30 * time.Minute
)

// addTickerActor adds a run.Group actor that calls fn on every tick until
// interrupted, the same coordinated-shutdown shape serverRunner gives the
// HTTP listeners, generalized to a background maintenance loop instead of a
// listener.
func addTickerActor(gr *run.Group, name string, interval time.Duration, logger log.Logger, fn func(ctx context.Context)) {
	ctx, cancel := context.WithCancel(context.Background())
	gr.Add(func() error {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		logger.Infof("starting %s ticker, every %s", name, interval)
		for {
			select {
			case <-ticker.C:
				fn(ctx)
			case <-ctx.Done():
				return nil
			}
		}
	}, func(err error) {
		logger.Debugf("stopping %s ticker", name)
		cancel()
	})
}

func (s *serverRunner) RunAndShutdownGracefully(gr *run.Group) error {
	listener, err := net.Listen("tcp", s.srv.Addr)
	if err != nil {
		return fmt.Errorf("listening (%s) on %s: %w", s.name, s.srv.Addr, err)
	}
	gr.Add(func() error {
		s.logger.Infof("listening (%s) on %s", s.name, s.srv.Addr)
		return s.run(listener)
	}, func(err error) {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		s.logger.Debugf("starting graceful shutdown (%s)", s.name)
		if err := s.srv.Shutdown(ctx); err != nil {
			s.logger.Errorf("graceful shutdown (%s): %v", s.name, err)
		}
	})
	return nil
}

func runServe(options serveOptions) error {
	configData, err := ioutil.ReadFile(options.config)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", options.config, err)
	}

	var c Config
	if err := yaml.Unmarshal(configData, &c); err != nil {
		return fmt.Errorf("error parsing config file %s: %w", options.config, err)
	}
	if err := replaceEnvKeys(&c, os.Getenv); err != nil {
		return fmt.Errorf("error substituting env vars in config: %w", err)
	}
	applyConfigOverrides(options, &c)

	logger, err := newLogger(c.Logger.Level, c.Logger.Format)
	if err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if err := c.Validate(); err != nil {
		return err
	}
	logger.Infof("config issuer: %s", c.Issuer)

	intentSecret, err := loadIntentSecret(c.IntentSecretFile)
	if err != nil {
		return err
	}
	intentCodec, err := intenttoken.New(intentSecret)
	if err != nil {
		return fmt.Errorf("building intent-token codec: %w", err)
	}

	clientsData, err := ioutil.ReadFile(c.ClientsFile)
	if err != nil {
		return fmt.Errorf("reading clients file %s: %w", c.ClientsFile, err)
	}
	clients, err := clientregistry.Load(clientsData)
	if err != nil {
		return fmt.Errorf("loading client registry: %w", err)
	}

	creds, err := loadCredentials(c.Credentials, logger)
	if err != nil {
		return err
	}
	logger.Infof("config loaded %d credentials", len(creds))

	pendingIntents, err := openPendingIntents(c, logger)
	if err != nil {
		return err
	}
	refreshTokens, err := openRefreshTokens(c)
	if err != nil {
		return err
	}

	rateLimit := c.RateLimit.RequestsPerSecond
	if rateLimit == 0 {
		rateLimit = 5
	}
	burst := c.RateLimit.Burst
	if burst == 0 {
		burst = 10
	}
	limiter := ratelimit.New(rateLimit, burst)

	var idp identity.Provider
	if c.Identity.BaseURL != "" {
		idp = identity.NewHTTPProvider(c.Identity.BaseURL, c.Identity.ServiceAuth)
	} else {
		logger.Warnf("config: no identity.baseURL configured, using in-memory mock identity provider")
		idp = identity.NewMock()
	}

	srv := server.New(server.Config{
		Issuer:         c.Issuer,
		GrantPageURL:   c.GrantPageURL,
		Credentials:    creds,
		Clients:        clients,
		IntentCodec:    intentCodec,
		PendingIntents: pendingIntents,
		RefreshTokens:  refreshTokens,
		Identity:       idp,
		RateLimiter:    limiter,
		Logger:         logger,
	})

	var gr run.Group
	if c.Telemetry.HTTP != "" {
		telemetrySrv := &http.Server{Addr: c.Telemetry.HTTP, Handler: srv}
		defer telemetrySrv.Close()
		runner := newServerRunner("http/telemetry", telemetrySrv, logger)
		if err := runner.RunAndShutdownGracefully(&gr); err != nil {
			return err
		}
	}
	if c.Web.HTTP != "" {
		httpSrv := &http.Server{Addr: c.Web.HTTP, Handler: srv}
		defer httpSrv.Close()
		runner := newServerRunner("http", httpSrv, logger)
		if err := runner.RunAndShutdownGracefully(&gr); err != nil {
			return err
		}
	}
	if c.Web.HTTPS != "" {
		httpsSrv := &http.Server{
			Addr:    c.Web.HTTPS,
			Handler: srv,
			TLSConfig: &tls.Config{
				MinVersion: tls.VersionTLS12,
			},
		}
		defer httpsSrv.Close()
		runner := newServerRunner("https", httpsSrv, logger).WithTLS(c.Web.TLSCert, c.Web.TLSKey)
		if err := runner.RunAndShutdownGracefully(&gr); err != nil {
			return err
		}
	}

	addTickerActor(&gr, "user-removal-sweep", removalSweepInterval, logger, func(ctx context.Context) {
		if err := srv.SweepRemovedUsers(ctx); err != nil {
			logger.Errorf("user-removal sweep: %v", err)
		}
	})
	addTickerActor(&gr, "rate-limiter-sweep", rateLimiterSweepInterval, logger, func(_ context.Context) {
		limiter.Sweep(rateLimiterMaxIdle)
	})

	gr.Add(run.SignalHandler(context.Background(), os.Interrupt, syscall.SIGTERM))
	if err := gr.Run(); err != nil {
		if _, ok := err.(run.SignalError); !ok {
			return fmt.Errorf("run groups: %w", err)
		}
		logger.Infof("%v, shutdown now", err)
	}
	return nil
}

// loadCredentials builds the ordered credential.List from config, self-
// checking each one as it is loaded (SPEC_FULL.md §4.A).
func loadCredentials(configs []CredentialConfig, logger log.Logger) (credential.List, error) {
	list := make(credential.List, 0, len(configs))
	for _, cc := range configs {
		keyPEM, err := ioutil.ReadFile(cc.PrivateKeyFile)
		if err != nil {
			return nil, fmt.Errorf("reading private key file %s: %w", cc.PrivateKeyFile, err)
		}
		var bundles [][]byte
		for _, path := range cc.TrustedJWKS {
			bundle, err := ioutil.ReadFile(path)
			if err != nil {
				return nil, fmt.Errorf("reading trusted jwks file %s: %w", path, err)
			}
			bundles = append(bundles, bundle)
		}
		cred, err := credential.LoadAndSelfCheck(keyPEM, cc.IssuerEmail, cc.ClientID, cc.KeyID, bundles, token.ScopeSet{})
		if err != nil {
			return nil, fmt.Errorf("loading credential %s: %w", cc.IssuerEmail, err)
		}
		if cc.JWKSURL != "" {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			err := credential.FetchJWKS(ctx, cred, cc.JWKSURL)
			cancel()
			if err != nil {
				return nil, fmt.Errorf("fetching jwks for %s from %s: %w", cc.IssuerEmail, cc.JWKSURL, err)
			}
		}
		logger.Infof("config credential loaded: %s (kid=%s)", cc.IssuerEmail, cc.KeyID)
		list = append(list, cred)
	}
	return list, nil
}

func openPendingIntents(c Config, logger log.Logger) (pendingintent.Store, error) {
	switch c.PendingIntents.Type {
	case "", "memory":
		return pendingintent.NewMemory(context.Background()), nil
	case "redis":
		db := goredis.NewUniversalClient(&goredis.UniversalOptions{Addrs: []string{c.PendingIntents.RedisAddr}})
		return pendingintent.NewRedis(db, logger), nil
	default:
		return nil, fmt.Errorf("invalid config: unknown pendingIntents.type %q", c.PendingIntents.Type)
	}
}

func openRefreshTokens(c Config) (refreshtoken.Store, error) {
	switch c.RefreshTokens.Type {
	case "", "memory":
		return refreshtoken.NewMemory(), nil
	case "postgres":
		store, err := refreshtoken.OpenPostgres(c.RefreshTokens.PostgresDSN)
		if err != nil {
			return nil, err
		}
		if err := store.Migrate(); err != nil {
			return nil, err
		}
		return store, nil
	default:
		return nil, fmt.Errorf("invalid config: unknown refreshTokens.type %q", c.RefreshTokens.Type)
	}
}
