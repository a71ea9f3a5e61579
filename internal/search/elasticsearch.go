package search

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"seminarbuchung/internal/config"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"
)

// SessionDocument is one planned session flattened with its course and location
type SessionDocument struct {
	ID          int64     `json:"id"`
	CourseID    int64     `json:"course_id"`
	CourseName  string    `json:"course_name"`
	CourseSlug  string    `json:"course_slug"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	Location    string    `json:"location,omitempty"`
	City        string    `json:"city,omitempty"`
	Status      string    `json:"status"`
	FirstDay    string    `json:"first_day,omitempty"`
	Price       *float64  `json:"price,omitempty"`
	Capacity    int       `json:"capacity"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// ElasticsearchClient представляет клиент для работы с Elasticsearch
type ElasticsearchClient struct {
	client *elasticsearch.Client
	config config.ElasticsearchConfig
}

// NewElasticsearchClient создает новый клиент Elasticsearch
func NewElasticsearchClient(cfg config.ElasticsearchConfig) (*ElasticsearchClient, error) {
	es, err := elasticsearch.NewClient(elasticsearch.Config{
		Addresses:     []string{cfg.URL},
		Username:      cfg.Username,
		Password:      cfg.Password,
		RetryOnStatus: []int{502, 503, 504, 429},
		MaxRetries:    cfg.MaxRetries,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Elasticsearch client: %w", err)
	}

	client := &ElasticsearchClient{
		client: es,
		config: cfg,
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Timeout)
	defer cancel()

	if err := client.ensureIndex(ctx); err != nil {
		return nil, fmt.Errorf("failed to ensure index exists: %w", err)
	}

	return client, nil
}

func indexMapping() map[string]any {
	text := func() map[string]any {
		return map[string]any{"type": "text", "analyzer": "german_analyzer"}
	}
	keyword := map[string]any{"type": "keyword"}

	title := text()
	title["fields"] = map[string]any{
		"keyword": map[string]any{"type": "keyword", "ignore_above": 256},
	}

	return map[string]any{
		"settings": map[string]any{
			"number_of_shards":   1,
			"number_of_replicas": 0,
			"analysis": map[string]any{
				"analyzer": map[string]any{
					"german_analyzer": map[string]any{
						"type":      "custom",
						"tokenizer": "standard",
						"filter":    []string{"lowercase", "german_stop", "german_normalization", "german_stemmer"},
					},
				},
				"filter": map[string]any{
					"german_stop": map[string]any{
						"type":      "stop",
						"stopwords": "_german_",
					},
					"german_stemmer": map[string]any{
						"type":     "stemmer",
						"language": "light_german",
					},
				},
			},
		},
		"mappings": map[string]any{
			"properties": map[string]any{
				"id":          map[string]any{"type": "long"},
				"course_id":   map[string]any{"type": "long"},
				"course_name": text(),
				"course_slug": keyword,
				"title":       title,
				"description": text(),
				"location":    text(),
				"city":        keyword,
				"status":      keyword,
				"first_day":   map[string]any{"type": "date", "format": "strict_date"},
				"price":       map[string]any{"type": "scaled_float", "scaling_factor": 100},
				"capacity":    map[string]any{"type": "integer"},
				"updated_at":  map[string]any{"type": "date"},
			},
		},
	}
}

// ensureIndex создает индекс если он не существует
func (c *ElasticsearchClient) ensureIndex(ctx context.Context) error {
	req := esapi.IndicesExistsRequest{
		Index: []string{c.config.Index},
	}

	res, err := req.Do(ctx, c.client)
	if err != nil {
		return fmt.Errorf("failed to check index existence: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode == 200 {
		slog.Info("Elasticsearch index already exists", "index", c.config.Index)
		return nil
	}

	mappingJSON, err := json.Marshal(indexMapping())
	if err != nil {
		return fmt.Errorf("failed to marshal mapping: %w", err)
	}

	createReq := esapi.IndicesCreateRequest{
		Index: c.config.Index,
		Body:  strings.NewReader(string(mappingJSON)),
	}

	createRes, err := createReq.Do(ctx, c.client)
	if err != nil {
		return fmt.Errorf("failed to create index: %w", err)
	}
	defer createRes.Body.Close()

	if createRes.IsError() {
		return fmt.Errorf("failed to create index: %s", createRes.String())
	}

	slog.Info("Created Elasticsearch index", "index", c.config.Index)
	return nil
}

// Search выполняет поиск по запланированным терминам
func (c *ElasticsearchClient) Search(ctx context.Context, query string, page, pageSize int) ([]SessionDocument, error) {
	from := 0
	if pageSize <= 0 {
		pageSize = 20
	}
	if page > 1 {
		from = (page - 1) * pageSize
	}

	searchJSON, err := json.Marshal(map[string]any{
		"query": buildSearchQuery(query),
		"sort":  buildSortQuery(query),
		"from":  from,
		"size":  pageSize,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal search query: %w", err)
	}

	req := esapi.SearchRequest{
		Index: []string{c.config.Index},
		Body:  strings.NewReader(string(searchJSON)),
	}

	res, err := req.Do(ctx, c.client)
	if err != nil {
		return nil, fmt.Errorf("failed to execute search: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return nil, fmt.Errorf("search error: %s", res.String())
	}

	var response struct {
		Hits struct {
			Hits []struct {
				Source SessionDocument `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
	}

	if err := json.NewDecoder(res.Body).Decode(&response); err != nil {
		return nil, fmt.Errorf("failed to decode search response: %w", err)
	}

	docs := make([]SessionDocument, len(response.Hits.Hits))
	for i, hit := range response.Hits.Hits {
		docs[i] = hit.Source
	}

	return docs, nil
}

// buildSearchQuery строит поисковый запрос; только запланированные термины
func buildSearchQuery(query string) map[string]any {
	filter := []map[string]any{
		{"term": map[string]any{"status": "planned"}},
	}

	if strings.TrimSpace(query) == "" {
		return map[string]any{
			"bool": map[string]any{"filter": filter},
		}
	}

	return map[string]any{
		"bool": map[string]any{
			"must": []map[string]any{
				{
					"multi_match": map[string]any{
						"query":     query,
						"fields":    []string{"course_name^3", "title^2", "location", "description"},
						"fuzziness": "AUTO",
					},
				},
			},
			"filter": filter,
		},
	}
}

func buildSortQuery(query string) []map[string]any {
	if strings.TrimSpace(query) != "" {
		return []map[string]any{
			{"_score": map[string]any{"order": "desc"}},
			{"first_day": map[string]any{"order": "asc", "missing": "_last"}},
		}
	}

	return []map[string]any{
		{"first_day": map[string]any{"order": "asc", "missing": "_last"}},
		{"id": map[string]any{"order": "asc"}},
	}
}

// IndexSession индексирует термин
func (c *ElasticsearchClient) IndexSession(ctx context.Context, doc *SessionDocument) error {
	if doc.UpdatedAt.IsZero() {
		doc.UpdatedAt = time.Now()
	}

	docJSON, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}

	req := esapi.IndexRequest{
		Index:      c.config.Index,
		DocumentID: strconv.FormatInt(doc.ID, 10),
		Body:       strings.NewReader(string(docJSON)),
		Refresh:    "wait_for",
	}

	res, err := req.Do(ctx, c.client)
	if err != nil {
		return fmt.Errorf("failed to index session: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return fmt.Errorf("indexing error: %s", res.String())
	}

	return nil
}

// DeleteSession удаляет термин из индекса
func (c *ElasticsearchClient) DeleteSession(ctx context.Context, id int64) error {
	req := esapi.DeleteRequest{
		Index:      c.config.Index,
		DocumentID: strconv.FormatInt(id, 10),
		Refresh:    "wait_for",
	}

	res, err := req.Do(ctx, c.client)
	if err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() && res.StatusCode != 404 {
		return fmt.Errorf("delete error: %s", res.String())
	}

	return nil
}

// HealthCheck проверяет состояние Elasticsearch
func (c *ElasticsearchClient) HealthCheck(ctx context.Context) error {
	req := esapi.ClusterHealthRequest{
		WaitForStatus: "yellow",
		Timeout:       10 * time.Second,
	}

	res, err := req.Do(ctx, c.client)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return fmt.Errorf("health check error: %s", res.String())
	}

	return nil
}
