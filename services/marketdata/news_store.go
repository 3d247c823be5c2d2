package marketdata

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoDB collection names
const (
	NewsDBName             = "marketpulse_news"
	NewsHeadlineCollection = "headlines"
)

// Headline represents one news article headline for a symbol
type Headline struct {
	Symbol      string    `bson:"symbol" json:"symbol"`
	Title       string    `bson:"title" json:"title"`
	Source      string    `bson:"source" json:"source"`
	PublishedAt time.Time `bson:"published_at" json:"published_at"`
	FetchedAt   time.Time `bson:"fetched_at" json:"fetched_at"`
}

// NewsStore handles MongoDB storage of recent news headlines per symbol
type NewsStore struct {
	client      *mongo.Client
	database    *mongo.Database
	mu          sync.RWMutex
	isConnected bool
}

// NewNewsStore connects to MongoDB and prepares the headline collection.
// An empty URI disables the store; callers get an explicit error per query.
func NewNewsStore(uri string) (*NewsStore, error) {
	store := &NewsStore{}
	if uri == "" {
		log.Println("MONGODB_URI not set, news store disabled")
		return store, nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	clientOptions := options.Client().
		ApplyURI(uri).
		SetServerAPIOptions(options.ServerAPI(options.ServerAPIVersion1)).
		SetMaxPoolSize(10).
		SetMinPoolSize(2).
		SetMaxConnIdleTime(30 * time.Second).
		SetConnectTimeout(30 * time.Second).
		SetRetryWrites(true).
		SetRetryReads(true)

	client, err := mongo.Connect(ctx, clientOptions)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}

	if err := client.Ping(ctx, nil); err != nil {
		client.Disconnect(ctx)
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	store.mu.Lock()
	store.client = client
	store.database = client.Database(NewsDBName)
	store.isConnected = true
	store.mu.Unlock()

	store.createIndexes()

	log.Println("News store connected to MongoDB")
	return store, nil
}

// IsConnected returns whether the store has a live MongoDB connection
func (s *NewsStore) IsConnected() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isConnected
}

// Close closes the MongoDB connection
func (s *NewsStore) Close() error {
	if s.client != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return s.client.Disconnect(ctx)
	}
	return nil
}

func (s *NewsStore) createIndexes() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	collection := s.database.Collection(NewsHeadlineCollection)
	indexes := []mongo.IndexModel{
		{
			Keys: bson.D{{Key: "symbol", Value: 1}, {Key: "published_at", Value: -1}},
		},
		{
			Keys: bson.D{{Key: "symbol", Value: 1}, {Key: "title", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
	}
	if _, err := collection.Indexes().CreateMany(ctx, indexes); err != nil {
		log.Printf("Warning: failed to create headline indexes: %v", err)
	}
}

// SaveHeadlines upserts fetched headlines, keyed by symbol+title
func (s *NewsStore) SaveHeadlines(ctx context.Context, headlines []Headline) error {
	s.mu.RLock()
	connected := s.isConnected
	s.mu.RUnlock()
	if !connected {
		return fmt.Errorf("news store not connected")
	}

	collection := s.database.Collection(NewsHeadlineCollection)
	now := time.Now().UTC()
	for _, h := range headlines {
		h.FetchedAt = now
		filter := bson.M{"symbol": h.Symbol, "title": h.Title}
		update := bson.M{"$set": h}
		opts := options.Update().SetUpsert(true)
		if _, err := collection.UpdateOne(ctx, filter, update, opts); err != nil {
			return fmt.Errorf("failed to save headline for %s: %w", h.Symbol, err)
		}
	}
	return nil
}

// RecentHeadlines returns the latest headline titles for a symbol,
// newest first. Implements HeadlineSource.
func (s *NewsStore) RecentHeadlines(ctx context.Context, symbol string, limit int) ([]string, error) {
	s.mu.RLock()
	connected := s.isConnected
	s.mu.RUnlock()
	if !connected {
		return nil, fmt.Errorf("news store not connected")
	}

	collection := s.database.Collection(NewsHeadlineCollection)
	opts := options.Find().
		SetSort(bson.D{{Key: "published_at", Value: -1}}).
		SetLimit(int64(limit))

	cursor, err := collection.Find(ctx, bson.M{"symbol": symbol}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to query headlines for %s: %w", symbol, err)
	}
	defer cursor.Close(ctx)

	var docs []Headline
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("failed to decode headlines for %s: %w", symbol, err)
	}

	titles := make([]string, 0, len(docs))
	for _, doc := range docs {
		titles = append(titles, doc.Title)
	}
	return titles, nil
}

// RecentArticles returns full headline documents for the news API
func (s *NewsStore) RecentArticles(ctx context.Context, symbol string, limit int) ([]Headline, error) {
	s.mu.RLock()
	connected := s.isConnected
	s.mu.RUnlock()
	if !connected {
		return nil, fmt.Errorf("news store not connected")
	}

	collection := s.database.Collection(NewsHeadlineCollection)
	opts := options.Find().
		SetSort(bson.D{{Key: "published_at", Value: -1}}).
		SetLimit(int64(limit))

	cursor, err := collection.Find(ctx, bson.M{"symbol": symbol}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to query articles for %s: %w", symbol, err)
	}
	defer cursor.Close(ctx)

	var docs []Headline
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("failed to decode articles for %s: %w", symbol, err)
	}
	return docs, nil
}

// PruneOlderThan removes headlines published before the cutoff
func (s *NewsStore) PruneOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	s.mu.RLock()
	connected := s.isConnected
	s.mu.RUnlock()
	if !connected {
		return 0, fmt.Errorf("news store not connected")
	}

	collection := s.database.Collection(NewsHeadlineCollection)
	result, err := collection.DeleteMany(ctx, bson.M{"published_at": bson.M{"$lt": cutoff}})
	if err != nil {
		return 0, fmt.Errorf("failed to prune headlines: %w", err)
	}
	return result.DeletedCount, nil
}
