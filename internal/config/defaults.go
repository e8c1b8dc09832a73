package config

func Defaults() *Config {
	return &Config{
		General: GeneralConfig{
			LogLevel: "info",
		},
		Server: ServerConfig{
			Host: "0.0.0.0",
			Port: 8080,
		},
		WhatsApp: WhatsAppConfig{
			WebhookPath: "/webhook/whatsapp",
		},
		Pipeline: PipelineConfig{
			RateLimitCount:            30,
			RateLimitWindowSeconds:    300,
			SessionTimeoutMinutes:     30,
			IdempotencyRetentionHours: 6,
			MaxConcurrentMessages:     4,
			StoreTimeoutSeconds:       5,
			NotifyOnThrottle:          true,
		},
		Storage: StorageConfig{
			DBPath:    "~/.gastobot/gastobot.db",
			ExportDir: "~/.gastobot/exports",
		},
		Redis: RedisConfig{
			Enabled: false,
			Addr:    "localhost:6379",
		},
		Metrics: MetricsConfig{
			Enabled:  true,
			Endpoint: "/metrics",
		},
	}
}
