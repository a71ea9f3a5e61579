package config

import (
	"os"
	"time"
)

// ElasticsearchConfig - индекс терминов для поиска по каталогу
type ElasticsearchConfig struct {
	URL        string
	Index      string
	Username   string
	Password   string
	MaxRetries int
	Timeout    time.Duration
}

// LoadElasticsearchConfig reads ELASTICSEARCH_*; Timeout bounds index creation at startup
func LoadElasticsearchConfig() ElasticsearchConfig {
	return ElasticsearchConfig{
		URL:        getEnv("ELASTICSEARCH_URL", "http://localhost:9200"),
		Index:      getEnv("ELASTICSEARCH_INDEX", "seminar-sessions"),
		Username:   os.Getenv("ELASTICSEARCH_USERNAME"),
		Password:   os.Getenv("ELASTICSEARCH_PASSWORD"),
		MaxRetries: getEnvInt("ELASTICSEARCH_MAX_RETRIES", 3),
		Timeout:    time.Duration(getEnvInt("ELASTICSEARCH_TIMEOUT_SEC", 30)) * time.Second,
	}
}
