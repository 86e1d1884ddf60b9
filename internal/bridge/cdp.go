package bridge

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"

	"github.com/paperbridge/paperbridge/internal/assets"
	"github.com/paperbridge/paperbridge/internal/config"
)

// InitChrome allocates and connects the browser. With CDP_URL set it
// attaches to an existing Chrome; otherwise it launches one.
func InitChrome(cfg *config.RuntimeConfig) (context.Context, context.CancelFunc, context.Context, context.CancelFunc, error) {
	var allocCtx context.Context
	var allocCancel context.CancelFunc

	if cfg.CdpURL != "" {
		slog.Info("connecting to chrome", "cdp", cfg.CdpURL)
		allocCtx, allocCancel = chromedp.NewRemoteAllocator(context.Background(), cfg.CdpURL)
	} else {
		slog.Info("launching chrome", "headless", cfg.Headless, "profile", cfg.ProfileDir)
		opts := append(chromedp.DefaultExecAllocatorOptions[:],
			chromedp.UserDataDir(cfg.ProfileDir),
			chromedp.NoFirstRun,
			chromedp.NoDefaultBrowserCheck,
			chromedp.WindowSize(1280, 900),
		)
		if cfg.Headless {
			opts = append(opts, chromedp.Headless)
		} else {
			opts = append(opts, chromedp.Flag("headless", false))
		}
		if cfg.ChromeBinary != "" {
			opts = append(opts, chromedp.ExecPath(cfg.ChromeBinary))
		}
		allocCtx, allocCancel = chromedp.NewExecAllocator(context.Background(), opts...)
	}

	browserCtx, browserCancel := chromedp.NewContext(allocCtx)
	if err := chromedp.Run(browserCtx); err != nil {
		browserCancel()
		allocCancel()
		return nil, nil, nil, nil, fmt.Errorf("connect to chrome: %w", err)
	}

	return allocCtx, allocCancel, browserCtx, browserCancel, nil
}

// Attach binds the session to a tab context, injects the capture script on
// every new document, registers the event binding, and starts listening.
func (s *Session) Attach(tabCtx context.Context) error {
	s.tabCtx = tabCtx

	if err := chromedp.Run(tabCtx,
		chromedp.ActionFunc(func(ctx context.Context) error {
			_, err := page.AddScriptToEvaluateOnNewDocument(assets.CaptureScript).Do(ctx)
			return err
		}),
	); err != nil {
		return fmt.Errorf("inject capture script: %w", err)
	}

	if err := s.registerBinding(tabCtx); err != nil {
		return err
	}

	s.listen(tabCtx)
	return nil
}

// cdpEval is the default evaluator: run an expression in the wrapper page
// with the action timeout applied.
func (s *Session) cdpEval(_ context.Context, js string, out any) error {
	tCtx, cancel := context.WithTimeout(s.tabCtx, s.cfg.ActionTimeout)
	defer cancel()

	if out == nil {
		var sink json.RawMessage
		out = &sink
	}
	return chromedp.Run(tCtx, chromedp.Evaluate(js, out))
}

// cdpNavigate fires Page.navigate without waiting for the full load event;
// readiness is established by polling, not by load timing.
func (s *Session) cdpNavigate(ctx context.Context, url string) error {
	tCtx, cancel := context.WithTimeout(s.tabCtx, s.cfg.NavigateTimeout)
	defer cancel()

	return chromedp.Run(tCtx,
		chromedp.ActionFunc(func(ctx context.Context) error {
			p := map[string]any{"url": url}
			var navResult json.RawMessage
			if err := chromedp.FromContext(ctx).Target.Execute(ctx, "Page.navigate", p, &navResult); err != nil {
				return fmt.Errorf("page.navigate: %w", err)
			}
			var resp struct {
				ErrorText string `json:"errorText"`
			}
			if err := json.Unmarshal(navResult, &resp); err == nil && resp.ErrorText != "" {
				return fmt.Errorf("navigate: %s", resp.ErrorText)
			}
			return nil
		}),
	)
}
