package fetcher

import (
	"context"

	"go.uber.org/zap"

	"github.com/mozjobs/harvester/internal/harvest"
)

// Promoting routes requests between a static and a headless fetcher.
type Promoting struct {
	static   harvest.Fetcher
	headless harvest.Fetcher
	detector Detector
	logger   *zap.Logger
}

// NewPromoting wires the two-stage fetcher.
func NewPromoting(static, headless harvest.Fetcher, detector Detector, logger *zap.Logger) *Promoting {
	return &Promoting{
		static:   static,
		headless: headless,
		detector: detector,
		logger:   logger,
	}
}

// Fetch tries plain HTTP first and promotes to the browser when the page
// demands rendering, fails statically, or the request says so up front.
func (p *Promoting) Fetch(ctx context.Context, request harvest.FetchRequest) (harvest.FetchResponse, error) {
	if request.ForceHeadless || request.ClickTimes > 0 {
		return p.headless.Fetch(ctx, request)
	}

	response, err := p.static.Fetch(ctx, request)
	if err != nil {
		p.logger.Debug("static fetch failed, promoting to headless",
			zap.String("url", request.URL), zap.Error(err))
		return p.headless.Fetch(ctx, request)
	}
	if p.detector.NeedsJS(response.Body) {
		p.logger.Debug("page needs rendering, promoting to headless",
			zap.String("url", request.URL), zap.Int("static_bytes", len(response.Body)))
		return p.headless.Fetch(ctx, request)
	}
	return response, nil
}
