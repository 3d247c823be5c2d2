package marketdata

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
)

type staticHeadlines struct {
	titles []string
	err    error
}

func (s *staticHeadlines) RecentHeadlines(ctx context.Context, symbol string, limit int) ([]string, error) {
	return s.titles, s.err
}

func quoteServer(t *testing.T, status int, body string) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(status)
		fmt.Fprint(w, body)
	}))
	t.Cleanup(server.Close)
	return server
}

func TestGetSnapshot(t *testing.T) {
	server := quoteServer(t, http.StatusOK, `{
		"symbol": "AAPL",
		"lastPrice": 189.25,
		"previousClose": 185.00,
		"volume": 2000000,
		"avgVolume30d": 1000000,
		"timestamp": 1700000000
	}`)

	feed := NewQuoteFeed(server.URL, "test-key", &staticHeadlines{titles: []string{"Apple earnings beat"}})
	snap, err := feed.GetSnapshot(context.Background(), "AAPL")
	if err != nil {
		t.Fatalf("GetSnapshot failed: %v", err)
	}

	if snap.Symbol != "AAPL" {
		t.Errorf("Symbol = %q", snap.Symbol)
	}
	if snap.LastPrice.String() != "189.25" {
		t.Errorf("LastPrice = %s", snap.LastPrice)
	}
	if snap.PrevClose.String() != "185" {
		t.Errorf("PrevClose = %s", snap.PrevClose)
	}
	if snap.VolumeRatio.String() != "2" {
		t.Errorf("VolumeRatio = %s", snap.VolumeRatio)
	}
	if len(snap.Headlines) != 1 {
		t.Errorf("Headlines = %v", snap.Headlines)
	}
}

func TestGetSnapshotProviderError(t *testing.T) {
	server := quoteServer(t, http.StatusBadGateway, "upstream down")

	feed := NewQuoteFeed(server.URL, "", nil)
	_, err := feed.GetSnapshot(context.Background(), "AAPL")
	if !errors.Is(err, ErrSnapshotUnavailable) {
		t.Fatalf("error = %v, want ErrSnapshotUnavailable", err)
	}
}

func TestGetSnapshotHeadlineOutage(t *testing.T) {
	server := quoteServer(t, http.StatusOK, `{"symbol":"AAPL","lastPrice":100,"previousClose":99}`)

	// A headline source failure must not surface as an empty headline set
	feed := NewQuoteFeed(server.URL, "", &staticHeadlines{err: errors.New("mongo down")})
	_, err := feed.GetSnapshot(context.Background(), "AAPL")
	if !errors.Is(err, ErrSnapshotUnavailable) {
		t.Fatalf("error = %v, want ErrSnapshotUnavailable", err)
	}
}

func TestGetSnapshotNoVolumeBaseline(t *testing.T) {
	server := quoteServer(t, http.StatusOK, `{"symbol":"AAPL","lastPrice":100,"previousClose":99,"volume":500}`)

	feed := NewQuoteFeed(server.URL, "", nil)
	snap, err := feed.GetSnapshot(context.Background(), "AAPL")
	if err != nil {
		t.Fatal(err)
	}
	if !snap.VolumeRatio.IsZero() {
		t.Errorf("VolumeRatio = %s, want zero without a baseline", snap.VolumeRatio)
	}
}

func TestFetchHeadlines(t *testing.T) {
	server := quoteServer(t, http.StatusOK, `{
		"articles": [
			{"title": "Apple earnings beat", "source": "wire", "publishedAt": "2026-08-28T14:00:00Z"},
			{"title": "New iPhone announced", "source": "wire", "publishedAt": "2026-08-27T09:30:00Z"}
		]
	}`)

	feed := NewQuoteFeed(server.URL, "", nil)
	headlines, err := feed.FetchHeadlines(context.Background(), "AAPL")
	if err != nil {
		t.Fatalf("FetchHeadlines failed: %v", err)
	}
	if len(headlines) != 2 {
		t.Fatalf("got %d headlines, want 2", len(headlines))
	}
	if headlines[0].Symbol != "AAPL" || headlines[0].Title != "Apple earnings beat" {
		t.Errorf("first headline = %+v", headlines[0])
	}
	if headlines[0].PublishedAt.IsZero() {
		t.Error("PublishedAt not parsed")
	}
}
