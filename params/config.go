package params

import (
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

type HTTP struct {
	Addr           string
	AllowedOrigins []string
}

type Store struct {
	Path string
	// PageSize bounds how many index entries one order-book query page
	// fetches from the store.
	PageSize int
}

type Kafka struct {
	// Brokers empty disables trade publishing.
	Brokers    []string
	TradeTopic string
}

type Config struct {
	HTTP    HTTP
	Store   Store
	Kafka   Kafka
	LogFile string
}

func Default() Config {
	return Config{
		HTTP: HTTP{
			Addr:           ":8080",
			AllowedOrigins: []string{"http://localhost:3000"},
		},
		Store: Store{
			Path:     "data/orderdesk",
			PageSize: 100,
		},
		Kafka: Kafka{
			TradeTopic: "trades.executed",
		},
		LogFile: "data/orderdesk.log",
	}
}

// LoadFromEnv loads configuration from a .env file (if present) and
// environment variables. Priority: ENV > .env file > defaults.
func LoadFromEnv(envPath string) Config {
	cfg := Default()

	if envPath != "" {
		_ = godotenv.Load(envPath)
	} else {
		_ = godotenv.Load()
	}

	if addr := os.Getenv("HTTP_ADDR"); addr != "" {
		cfg.HTTP.Addr = addr
	}
	if origins := os.Getenv("ALLOWED_ORIGINS"); origins != "" {
		cfg.HTTP.AllowedOrigins = strings.Split(origins, ",")
	}
	if path := os.Getenv("STORE_PATH"); path != "" {
		cfg.Store.Path = path
	}
	if size := os.Getenv("STORE_PAGE_SIZE"); size != "" {
		if n, err := strconv.Atoi(size); err == nil && n > 0 {
			cfg.Store.PageSize = n
		}
	}
	if brokers := os.Getenv("KAFKA_BROKERS"); brokers != "" {
		cfg.Kafka.Brokers = strings.Split(brokers, ",")
	}
	if topic := os.Getenv("KAFKA_TRADE_TOPIC"); topic != "" {
		cfg.Kafka.TradeTopic = topic
	}
	if logFile := os.Getenv("LOG_FILE"); logFile != "" {
		cfg.LogFile = logFile
	}

	return cfg
}
