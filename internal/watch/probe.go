package watch

import (
	"context"
	"net/http"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"reelstream/internal/assets"
)

// ProbeFunc checks a candidate source and returns its HTTP status.
type ProbeFunc func(ctx context.Context, url string) (int, error)

// HeadProbe issues a HEAD request per candidate with hc.
func HeadProbe(hc *http.Client) ProbeFunc {
	if hc == nil {
		hc = http.DefaultClient
	}
	return func(ctx context.Context, url string) (int, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodHead, url, nil)
		if err != nil {
			return 0, err
		}
		res, err := hc.Do(req)
		if err != nil {
			return 0, err
		}
		res.Body.Close()
		return res.StatusCode, nil
	}
}

// reachable drops variants whose probe answers 4xx. Transport errors and
// other statuses keep the variant; the player reports real failures.
func reachable(ctx context.Context, probe ProbeFunc, variants []assets.Variant, log zerolog.Logger) []assets.Variant {
	keep := make([]bool, len(variants))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(3)
	for i, v := range variants {
		g.Go(func() error {
			status, err := probe(gctx, v.URL)
			switch {
			case err != nil:
				log.Debug().Err(err).Str("quality", v.Quality.String()).Msg("probe failed, keeping variant")
				keep[i] = true
			case status >= 400 && status < 500:
				log.Warn().Int("status", status).Str("quality", v.Quality.String()).Msg("dropping unreachable variant")
			default:
				keep[i] = true
			}
			return nil
		})
	}
	_ = g.Wait()

	out := make([]assets.Variant, 0, len(variants))
	for i, v := range variants {
		if keep[i] {
			out = append(out, v)
		}
	}
	return out
}
