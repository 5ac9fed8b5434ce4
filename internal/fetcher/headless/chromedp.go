// Package headless renders pages in a pooled headless Chrome instance via
// chromedp. It handles pages that build their content with JavaScript,
// including "load more" controls that must be clicked before scraping.
package headless

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/mozjobs/harvester/internal/harvest"
)

const (
	settleContentLoaded = 500 * time.Millisecond
	settleNetworkIdle   = 2 * time.Second
	settleAfterClick    = 1500 * time.Millisecond
	clickTimeout        = 5 * time.Second
)

// blockedURLPatterns trims trackers and heavy assets from rendered pages.
// The target sites load fine without them and render much faster.
var blockedURLPatterns = []string{
	"*googlesyndication.com*",
	"*doubleclick.net*",
	"*google-analytics.com*",
	"*googletagmanager.com*",
	"*facebook.net*",
	"*.png", "*.jpg", "*.jpeg", "*.gif", "*.webp", "*.svg",
	"*.woff", "*.woff2", "*.ttf",
	"*.mp4", "*.webm",
}

// Config controls the shared browser process.
type Config struct {
	UserAgent      string
	NavTimeout     time.Duration
	MaxTabs        int
	BlockResources bool
}

// Fetcher implements harvest.Fetcher on top of a single Chrome process.
// Each Fetch runs in its own tab; a semaphore caps concurrent tabs.
type Fetcher struct {
	cfg       Config
	logger    *zap.Logger
	allocCtx  context.Context
	allocStop context.CancelFunc
	tabs      chan struct{}
}

// New starts the exec allocator. The browser itself is launched lazily on
// the first Fetch.
func New(cfg Config, logger *zap.Logger) *Fetcher {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
	)
	if cfg.UserAgent != "" {
		opts = append(opts, chromedp.UserAgent(cfg.UserAgent))
	}
	allocCtx, allocStop := chromedp.NewExecAllocator(context.Background(), opts...)

	maxTabs := cfg.MaxTabs
	if maxTabs <= 0 {
		maxTabs = 2
	}
	return &Fetcher{
		cfg:       cfg,
		logger:    logger,
		allocCtx:  allocCtx,
		allocStop: allocStop,
		tabs:      make(chan struct{}, maxTabs),
	}
}

// Close tears down the browser process.
func (f *Fetcher) Close() {
	f.allocStop()
}

// Fetch navigates to the request URL, waits for the page to settle and
// returns the rendered DOM.
func (f *Fetcher) Fetch(ctx context.Context, request harvest.FetchRequest) (harvest.FetchResponse, error) {
	select {
	case f.tabs <- struct{}{}:
		defer func() { <-f.tabs }()
	case <-ctx.Done():
		return harvest.FetchResponse{}, fmt.Errorf("headless fetch canceled: %w", ctx.Err())
	}

	tabCtx, cancelTab := chromedp.NewContext(f.allocCtx)
	defer cancelTab()

	timeout := request.Timeout
	if timeout <= 0 {
		timeout = f.cfg.NavTimeout
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	runCtx, cancelRun := context.WithTimeout(tabCtx, timeout)
	defer cancelRun()

	// Stop early if the caller's context dies while the tab is working.
	go func() {
		select {
		case <-ctx.Done():
			cancelRun()
		case <-runCtx.Done():
		}
	}()

	var status int64
	chromedp.ListenTarget(runCtx, func(ev interface{}) {
		if resp, ok := ev.(*network.EventResponseReceived); ok {
			if resp.Type == network.ResourceTypeDocument && status == 0 {
				status = resp.Response.Status
			}
		}
	})

	start := time.Now()
	var html string
	actions := []chromedp.Action{network.Enable()}
	if f.cfg.BlockResources {
		actions = append(actions, network.SetBlockedURLS(blockedURLPatterns))
	}
	actions = append(actions,
		chromedp.Navigate(request.URL),
		waitAction(request.Wait),
	)
	if request.ClickSelector != "" && request.ClickTimes > 0 {
		actions = append(actions, f.clickAction(request.ClickSelector, request.ClickTimes))
	}
	actions = append(actions, chromedp.OuterHTML("html", &html, chromedp.ByQuery))

	if err := chromedp.Run(runCtx, actions...); err != nil {
		return harvest.FetchResponse{}, fmt.Errorf("headless render of %s failed: %w", request.URL, err)
	}
	if status == 0 {
		status = 200
	}
	return harvest.FetchResponse{
		URL:          request.URL,
		StatusCode:   int(status),
		Body:         []byte(html),
		Duration:     time.Since(start),
		UsedHeadless: true,
	}, nil
}

// waitAction translates a wait policy into chromedp actions. There is no
// true network-idle signal over CDP here, so idle is approximated with a
// longer settle pause after the DOM is ready.
func waitAction(policy harvest.WaitPolicy) chromedp.Action {
	settle := settleContentLoaded
	if policy == harvest.WaitNetworkIdle {
		settle = settleNetworkIdle
	}
	return chromedp.Tasks{
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.Sleep(settle),
	}
}

// clickAction presses a "load more" style control repeatedly. The control
// disappearing (or never existing) ends the loop quietly; that is the
// normal signal that all content is on the page.
func (f *Fetcher) clickAction(selector string, times int) chromedp.ActionFunc {
	return func(ctx context.Context) error {
		for i := 0; i < times; i++ {
			var nodes []*cdp.Node
			findCtx, cancelFind := context.WithTimeout(ctx, clickTimeout)
			err := chromedp.Nodes(selector, &nodes, chromedp.BySearch, chromedp.AtLeast(0)).Do(findCtx)
			cancelFind()
			if err != nil || len(nodes) == 0 {
				f.logger.Debug("load-more control gone",
					zap.String("selector", strings.TrimSpace(selector)),
					zap.Int("clicks", i))
				return nil
			}
			clickCtx, cancelClick := context.WithTimeout(ctx, clickTimeout)
			err = chromedp.MouseClickNode(nodes[0]).Do(clickCtx)
			cancelClick()
			if err != nil {
				f.logger.Debug("load-more click failed", zap.Error(err), zap.Int("clicks", i))
				return nil
			}
			if err := chromedp.Sleep(settleAfterClick).Do(ctx); err != nil {
				return err
			}
		}
		return nil
	}
}
