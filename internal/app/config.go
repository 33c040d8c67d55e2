package app

// Config описывает настройки запуска приложения.
type Config struct {
	// HTTPAddr — адрес REST API.
	HTTPAddr string
	// MetricsAddr — адрес служебного сервера (/metrics, health-пробы).
	MetricsAddr string
	// PostgresDSN — если пусто, используется in-memory хранилище.
	PostgresDSN string
	// KafkaBrokers — список брокеров через запятую; пусто — без событий.
	KafkaBrokers string
	// RedisAddr — адрес Redis для защиты от дублей; пусто — in-memory guard.
	RedisAddr string
}

// DefaultConfig возвращает базовые адреса сервиса.
func DefaultConfig() Config {
	return Config{
		HTTPAddr:    ":8080",
		MetricsAddr: ":9090",
	}
}
