package config

const (
	defaultDatabasePath   = "~/.local/share/personpipe/persons.db"
	defaultLogDir         = "~/.local/share/personpipe/logs"
	defaultAPIBaseURL     = "https://fakerapi.it/api/v2/persons"
	defaultRequestTimeout = 20
	defaultMaxRetries     = 5
	defaultRetryBaseDelay = 1
	defaultRetryMaxDelay  = 30
	defaultMaxConnections = 8
	defaultGender         = "male"
	defaultTotal          = 30000
	defaultBatchSize      = 1000
	defaultMetricsListen  = "127.0.0.1:9090"
	defaultLogFormat      = "console"
	defaultLogLevel       = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Database: Database{
			Path: defaultDatabasePath,
		},
		API: API{
			BaseURL:        defaultAPIBaseURL,
			RequestTimeout: defaultRequestTimeout,
			MaxRetries:     defaultMaxRetries,
			RetryBaseDelay: defaultRetryBaseDelay,
			RetryMaxDelay:  defaultRetryMaxDelay,
			MaxConnections: defaultMaxConnections,
		},
		Ingest: Ingest{
			Gender:    defaultGender,
			Total:     defaultTotal,
			BatchSize: defaultBatchSize,
		},
		Metrics: Metrics{
			Enabled: false,
			Listen:  defaultMetricsListen,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
			Dir:    defaultLogDir,
		},
	}
}
