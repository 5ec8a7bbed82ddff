package fetch

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"
)

// RenderedFetcher fetches pages through a headless browser for sites that
// build their listings with JavaScript. Allocator contexts are pooled so
// repeated fetches reuse browser processes.
type RenderedFetcher struct {
	logger  *zap.Logger
	timeout time.Duration
	ctxPool sync.Pool
}

func NewRendered(timeoutSeconds int, logger *zap.Logger) *RenderedFetcher {
	if timeoutSeconds <= 0 {
		timeoutSeconds = 30
	}
	r := &RenderedFetcher{
		logger:  logger,
		timeout: time.Duration(timeoutSeconds) * time.Second,
	}
	r.ctxPool.New = func() interface{} {
		opts := append(chromedp.DefaultExecAllocatorOptions[:],
			chromedp.Flag("headless", true),
			chromedp.Flag("disable-gpu", true),
			chromedp.Flag("no-sandbox", true),
			chromedp.Flag("disable-dev-shm-usage", true),
			chromedp.UserAgent(userAgent),
		)
		allocCtx, _ := chromedp.NewExecAllocator(context.Background(), opts...)
		return allocCtx
	}
	return r
}

// Get navigates to url, waits for the body and returns the rendered DOM.
func (r *RenderedFetcher) Get(ctx context.Context, url string) (*goquery.Document, error) {
	allocCtx := r.ctxPool.Get().(context.Context)
	defer r.ctxPool.Put(allocCtx)

	taskCtx, cancel := chromedp.NewContext(allocCtx)
	defer cancel()
	taskCtx, timeoutCancel := context.WithTimeout(taskCtx, r.timeout)
	defer timeoutCancel()

	var htmlContent string
	err := chromedp.Run(taskCtx,
		chromedp.Navigate(url),
		chromedp.WaitVisible("body", chromedp.ByQuery),
		chromedp.OuterHTML("html", &htmlContent),
	)
	if err != nil {
		r.logger.Warn("rendered fetch failed", zap.String("url", url), zap.Error(err))
		return nil, err
	}

	return goquery.NewDocumentFromReader(strings.NewReader(htmlContent))
}
