package marketdata

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// HeadlineSource supplies the recent-news set for a symbol
type HeadlineSource interface {
	RecentHeadlines(ctx context.Context, symbol string, limit int) ([]string, error)
}

// QuoteFeed fetches snapshots from the market data provider's REST API
type QuoteFeed struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	headlines  HeadlineSource
}

// NewQuoteFeed creates a new quote feed instance
func NewQuoteFeed(baseURL, apiKey string, headlines HeadlineSource) *QuoteFeed {
	return &QuoteFeed{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		headlines: headlines,
	}
}

// quoteResponse represents the provider's quote API response
type quoteResponse struct {
	Symbol      string  `json:"symbol"`
	LastPrice   float64 `json:"lastPrice"`
	PrevClose   float64 `json:"previousClose"`
	Volume      int64   `json:"volume"`
	AvgVolume30 int64   `json:"avgVolume30d"`
	Timestamp   int64   `json:"timestamp"`
}

// headlineResponse represents the provider's news API response
type headlineResponse struct {
	Articles []struct {
		Title       string `json:"title"`
		Source      string `json:"source"`
		PublishedAt string `json:"publishedAt"`
	} `json:"articles"`
}

const recentHeadlineLimit = 20

// GetSnapshot fetches a point-in-time snapshot for one symbol. Any provider
// failure is reported as ErrSnapshotUnavailable so the caller skips the
// cycle instead of seeing a false "not satisfied".
func (f *QuoteFeed) GetSnapshot(ctx context.Context, symbol string) (*Snapshot, error) {
	var quote quoteResponse
	url := fmt.Sprintf("%s/quotes/%s", f.baseURL, symbol)
	if err := f.getJSON(ctx, url, &quote); err != nil {
		return nil, fmt.Errorf("%w: quote for %s: %v", ErrSnapshotUnavailable, symbol, err)
	}

	snap := &Snapshot{
		Symbol:    symbol,
		LastPrice: decimal.NewFromFloat(quote.LastPrice),
		PrevClose: decimal.NewFromFloat(quote.PrevClose),
		AsOf:      time.Unix(quote.Timestamp, 0).UTC(),
	}
	if quote.Timestamp == 0 {
		snap.AsOf = time.Now().UTC()
	}
	if quote.AvgVolume30 > 0 {
		snap.VolumeRatio = decimal.NewFromInt(quote.Volume).
			Div(decimal.NewFromInt(quote.AvgVolume30))
	}

	if f.headlines != nil {
		headlines, err := f.headlines.RecentHeadlines(ctx, symbol, recentHeadlineLimit)
		if err != nil {
			// A headline outage must not read as "no mention"
			return nil, fmt.Errorf("%w: headlines for %s: %v", ErrSnapshotUnavailable, symbol, err)
		}
		snap.Headlines = headlines
	}

	return snap, nil
}

// FetchHeadlines pulls the latest news articles for a symbol from the provider
func (f *QuoteFeed) FetchHeadlines(ctx context.Context, symbol string) ([]Headline, error) {
	var resp headlineResponse
	url := fmt.Sprintf("%s/news/%s", f.baseURL, symbol)
	if err := f.getJSON(ctx, url, &resp); err != nil {
		return nil, fmt.Errorf("failed to fetch news for %s: %w", symbol, err)
	}

	headlines := make([]Headline, 0, len(resp.Articles))
	for _, article := range resp.Articles {
		publishedAt, _ := time.Parse(time.RFC3339, article.PublishedAt)
		headlines = append(headlines, Headline{
			Symbol:      symbol,
			Title:       article.Title,
			Source:      article.Source,
			PublishedAt: publishedAt,
		})
	}
	return headlines, nil
}

func (f *QuoteFeed) getJSON(ctx context.Context, url string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	if f.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+f.apiKey)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("provider returned status %d", resp.StatusCode)
	}

	return json.NewDecoder(resp.Body).Decode(out)
}
