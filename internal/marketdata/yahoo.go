package marketdata

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/yourusername/kabu-screener/internal/models"
)

const yahooSourceName = "yahoo"

// tokyo is the exchange calendar for .T symbols; bars are dated in it
var tokyo = time.FixedZone("JST", 9*60*60)

// YahooProvider fetches daily bars from the Yahoo Finance chart API
type YahooProvider struct {
	baseURL string
	client  *RateLimitedHTTPClient
	logger  *logrus.Logger
}

// NewYahooProvider creates a provider against baseURL (e.g. https://query1.finance.yahoo.com)
func NewYahooProvider(baseURL string, client *RateLimitedHTTPClient, logger *logrus.Logger) *YahooProvider {
	return &YahooProvider{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  client,
		logger:  logger,
	}
}

// Name returns the name of the provider
func (p *YahooProvider) Name() string {
	return yahooSourceName
}

type chartResponse struct {
	Chart struct {
		Result []chartResult `json:"result"`
		Error  *chartError   `json:"error"`
	} `json:"chart"`
}

type chartError struct {
	Code        string `json:"code"`
	Description string `json:"description"`
}

type chartResult struct {
	Timestamp  []int64 `json:"timestamp"`
	Indicators struct {
		Quote []struct {
			Open   []*float64 `json:"open"`
			High   []*float64 `json:"high"`
			Low    []*float64 `json:"low"`
			Close  []*float64 `json:"close"`
			Volume []*int64   `json:"volume"`
		} `json:"quote"`
	} `json:"indicators"`
}

// BreakerState reports the HTTP client's circuit breaker
func (p *YahooProvider) BreakerState() string {
	return p.client.BreakerState()
}

// History retrieves daily bars for symbol within [start, end]
func (p *YahooProvider) History(ctx context.Context, symbol string, start, end time.Time) ([]models.Bar, error) {
	endpoint := fmt.Sprintf("%s/v8/finance/chart/%s?%s", p.baseURL, url.PathEscape(symbol), url.Values{
		"period1":  {fmt.Sprint(DayOf(start).Add(-9 * time.Hour).Unix())},
		"period2":  {fmt.Sprint(DayOf(end).Add(15 * time.Hour).Unix())},
		"interval": {"1d"},
		"events":   {"history"},
	}.Encode())

	resp, err := p.client.Get(ctx, endpoint)
	if err != nil {
		return nil, NewProviderError(yahooSourceName, ErrCodeNetworkError, "request failed for "+symbol, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, NewProviderError(yahooSourceName, ErrCodeNetworkError, "failed to read response", err)
	}

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, NewProviderError(yahooSourceName, ErrCodeNotFound, "symbol not found: "+symbol, ErrDataUnavailable)
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, NewProviderError(yahooSourceName, ErrCodeRateLimitExceeded, "rate limited", nil)
	case resp.StatusCode >= 500:
		return nil, NewProviderError(yahooSourceName, ErrCodeServerError, fmt.Sprintf("status %d", resp.StatusCode), nil)
	case resp.StatusCode != http.StatusOK:
		return nil, NewProviderError(yahooSourceName, ErrCodeInvalidData, fmt.Sprintf("unexpected status %d", resp.StatusCode), nil)
	}

	var parsed chartResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, NewProviderError(yahooSourceName, ErrCodeInvalidData, "failed to decode chart response", err)
	}
	if parsed.Chart.Error != nil {
		return nil, NewProviderError(yahooSourceName, ErrCodeNotFound, parsed.Chart.Error.Description, ErrDataUnavailable)
	}
	if len(parsed.Chart.Result) == 0 {
		return nil, NewProviderError(yahooSourceName, ErrCodeNotFound, "empty result for "+symbol, ErrDataUnavailable)
	}

	bars, err := decodeChart(parsed.Chart.Result[0])
	if err != nil {
		return nil, NewProviderError(yahooSourceName, ErrCodeInvalidData, err.Error(), nil)
	}

	bars = clip(bars, start, end)
	if len(bars) == 0 {
		return nil, fmt.Errorf("%s %s: %w", yahooSourceName, symbol, ErrDataUnavailable)
	}

	p.logger.WithFields(logrus.Fields{
		"symbol": symbol,
		"bars":   len(bars),
	}).Debug("Fetched history")
	return bars, nil
}

func decodeChart(r chartResult) ([]models.Bar, error) {
	if len(r.Indicators.Quote) == 0 {
		return nil, errors.New("chart result has no quote block")
	}
	q := r.Indicators.Quote[0]
	n := len(r.Timestamp)
	if len(q.Open) != n || len(q.High) != n || len(q.Low) != n || len(q.Close) != n || len(q.Volume) != n {
		return nil, errors.New("chart quote arrays have mismatched lengths")
	}

	bars := make([]models.Bar, 0, n)
	for i, ts := range r.Timestamp {
		// halted sessions come back as null rows
		if q.Open[i] == nil || q.High[i] == nil || q.Low[i] == nil || q.Close[i] == nil || q.Volume[i] == nil {
			continue
		}
		bars = append(bars, models.Bar{
			Date:   DayOf(time.Unix(ts, 0).In(tokyo)),
			Open:   *q.Open[i],
			High:   *q.High[i],
			Low:    *q.Low[i],
			Close:  *q.Close[i],
			Volume: *q.Volume[i],
		})
	}
	return bars, nil
}
