package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/codeGROOVE-dev/linkhub/pkg/enrich"
	"github.com/codeGROOVE-dev/linkhub/pkg/fetcher"
	"github.com/codeGROOVE-dev/linkhub/pkg/instagram"
	"github.com/codeGROOVE-dev/linkhub/pkg/link"
	"github.com/codeGROOVE-dev/linkhub/pkg/linkhub"
	"github.com/codeGROOVE-dev/linkhub/pkg/tiktok"
	"github.com/codeGROOVE-dev/linkhub/pkg/youtube"
)

//nolint:govet // fieldalignment: intentional layout for readability
type followersResult struct {
	URL       string        `json:"url"`
	Platform  link.Platform `json:"platform"`
	Handle    string        `json:"handle,omitempty"`
	Followers string        `json:"followers,omitempty"`
	OK        bool          `json:"ok"`
	Error     string        `json:"error,omitempty"`
}

type platformAdapter struct {
	enrich.Adapter
	profileURL func(string) string
}

var followersCmd = &cobra.Command{
	Use:   "followers <url>...",
	Short: "Look up follower counts for profile URLs",
	Long: `Look up follower counts for Instagram, TikTok and YouTube profile URLs.
With --debug the underlying fetch error is reported for failed lookups.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runFollowers,
}

func runFollowers(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	logger := newLogger()
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	f, err := linkhub.NewFetcher(ctx, cfg, linkhub.NewCache(ctx, cfg, logger), logger)
	if err != nil {
		return fmt.Errorf("create fetcher: %w", err)
	}
	adapters, err := newAdapters(ctx, f, cfg.Enrich.Labels)
	if err != nil {
		return err
	}

	results := make([]followersResult, 0, len(args))
	for _, u := range args {
		r := followersResult{URL: u, Platform: link.Detect(u)}
		a, ok := adapters[r.Platform]
		if !ok {
			r.Error = "no follower lookup for this platform"
			results = append(results, r)
			continue
		}

		r.Handle = a.Handle(u)
		r.Followers, r.OK = a.Followers(ctx, r.Handle)
		if !r.OK && opts.debug && r.Handle != "" {
			if _, err := f.FetchBytes(ctx, a.profileURL(r.Handle)); err != nil {
				r.Error = err.Error()
			} else {
				r.Error = "count not found in page"
			}
		}
		results = append(results, r)
	}
	return outputJSON(results)
}

func newAdapters(ctx context.Context, f *fetcher.Fetcher, labels map[string]string) (map[link.Platform]platformAdapter, error) {
	ig, err := instagram.New(ctx, instagram.WithFetcher(f), instagram.WithLabel(labels[string(link.Instagram)]))
	if err != nil {
		return nil, err
	}
	tt, err := tiktok.New(ctx, tiktok.WithFetcher(f), tiktok.WithLabel(labels[string(link.TikTok)]))
	if err != nil {
		return nil, err
	}
	yt, err := youtube.New(ctx, youtube.WithFetcher(f), youtube.WithLabel(labels[string(link.YouTube)]))
	if err != nil {
		return nil, err
	}
	return map[link.Platform]platformAdapter{
		link.Instagram: {ig, instagram.ProfileURL},
		link.TikTok:    {tt, tiktok.ProfileURL},
		link.YouTube:   {yt, youtube.ProfileURL},
	}, nil
}
