// Command linkhub serves the link-in-bio page API and offers tools around it.
//
// Usage:
//
//	linkhub serve --config linkhub.yaml
//	linkhub enrich                              # print links with follower counts
//	linkhub followers https://www.tiktok.com/@someone
//	linkhub classify "Mozilla/5.0 ... Instagram 300.0"
//	linkhub bio --tone Épico minecraft survival
//	linkhub seed --db page.db
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/codeGROOVE-dev/linkhub/pkg/config"
	"github.com/codeGROOVE-dev/linkhub/pkg/inapp"
	"github.com/codeGROOVE-dev/linkhub/pkg/linkhub"
	"github.com/codeGROOVE-dev/linkhub/pkg/server"
)

//nolint:govet // fieldalignment: intentional layout for readability
type flags struct {
	configPath string
	listen     string
	mode       string
	debug      bool
	cache      bool
	cookies    bool
}

var opts flags

var rootCmd = &cobra.Command{
	Use:   "linkhub",
	Short: "Link-in-bio page backend with best-effort follower counts",
	Long: `linkhub serves a creator's link-in-bio page as JSON: profile, links, map
downloads and a Discord widget. Follower counts for Instagram, TikTok and
YouTube links are scraped through a CORS proxy and streamed in as they resolve;
a failed lookup leaves the link's call-to-action in place.`,
	SilenceUsage: true,
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVarP(&opts.configPath, "config", "c", os.Getenv("LINKHUB_CONFIG"), "path to a YAML config file")
	pf.BoolVarP(&opts.debug, "debug", "v", false, "enable debug logging")
	pf.StringVar(&opts.mode, "mode", "", "fetch mode: raw, json or direct")
	pf.BoolVar(&opts.cache, "cache", false, "cache fetched pages on disk")
	pf.BoolVar(&opts.cookies, "browser-cookies", false, "read session cookies from local browsers in direct mode")

	serveCmd.Flags().StringVarP(&opts.listen, "listen", "l", "", "listen address (overrides config)")

	rootCmd.AddCommand(serveCmd, enrichCmd, followersCmd, classifyCmd, bioCmd, seedCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		stop()
		os.Exit(1) //nolint:gocritic // exitAfterDefer is acceptable in main
	}
}

func newLogger() *slog.Logger {
	level := slog.LevelInfo
	if opts.debug {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// loadConfig reads the config file and applies command-line overrides.
func loadConfig() (config.Config, error) {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return config.Config{}, err
	}
	if opts.mode != "" {
		cfg.Fetch.Mode = opts.mode
	}
	if opts.listen != "" {
		cfg.Listen = opts.listen
	}
	if opts.cache {
		cfg.Fetch.Cache = true
	}
	if opts.cookies {
		cfg.Fetch.BrowserCookie = true
	}
	if err := cfg.Validate(); err != nil {
		return config.Config{}, err
	}
	return cfg, nil
}

func newService(ctx context.Context) (*linkhub.Service, config.Config, *slog.Logger, error) {
	logger := newLogger()
	cfg, err := loadConfig()
	if err != nil {
		return nil, config.Config{}, nil, err
	}
	svc, err := linkhub.NewFromConfig(ctx, cfg, logger)
	if err != nil {
		return nil, config.Config{}, nil, err
	}
	return svc, cfg, logger, nil
}

func outputJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(v)
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the page API",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		svc, cfg, logger, err := newService(ctx)
		if err != nil {
			return err
		}
		defer svc.Close() //nolint:errcheck // best effort on exit

		logger.InfoContext(ctx, "starting",
			"store", cfg.Store.Backend,
			"fetch_mode", cfg.Fetch.Mode,
			"bio_generation", svc.BioConfigured())
		return server.New(svc, server.WithLogger(logger)).ListenAndServe(ctx, cfg.Listen)
	},
}

var enrichCmd = &cobra.Command{
	Use:   "enrich",
	Short: "Run one enrichment pass and print the resulting links",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		svc, _, _, err := newService(cmd.Context())
		if err != nil {
			return err
		}
		defer svc.Close() //nolint:errcheck // best effort on exit
		return outputJSON(svc.EnrichedLinks(cmd.Context()))
	},
}

var classifyBanner bool

var classifyCmd = &cobra.Command{
	Use:   "classify <user-agent>",
	Short: "Detect in-app browsers from a User-Agent string",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(_ *cobra.Command, args []string) error {
		r := inapp.ClassifyRequest(strings.Join(args, " "), classifyBanner)
		return outputJSON(struct {
			inapp.Result
			InApp bool `json:"inApp"`
		}{r, r.InApp()})
	},
}

func init() {
	classifyCmd.Flags().BoolVar(&classifyBanner, "debug-banner", false, "force the in-app result")
}

var bioTone string

var bioCmd = &cobra.Command{
	Use:   "bio [keywords...]",
	Short: "Generate a bio, or show the current rotating bio without keywords",
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, _, _, err := newService(cmd.Context())
		if err != nil {
			return err
		}
		defer svc.Close() //nolint:errcheck // best effort on exit

		if len(args) == 0 {
			fmt.Println(svc.CurrentBio())
			return nil
		}
		text, err := svc.GenerateBio(cmd.Context(), strings.Join(args, " "), bioTone)
		if errors.Is(err, linkhub.ErrBioUnavailable) {
			return errors.New("bio generation needs GEMINI_API_KEY or bio.api_key")
		}
		if err != nil {
			return err
		}
		fmt.Println(text)
		return nil
	},
}

func init() {
	bioCmd.Flags().StringVarP(&bioTone, "tone", "t", "", "tone: Divertido, Profissional or Épico")
}
