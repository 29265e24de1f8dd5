package model

// ================ Config ================
type ConversationConfig struct {
	MaxTurns   int    `envconfig:"CONVERSATION_MAX_TURNS" default:"10"`
	LLMTimeout string `envconfig:"CONVERSATION_LLM_TIMEOUT" default:"30s"`
}

type AgentModelConfig struct {
	Model       string  `envconfig:"AGENT_MODEL" default:"gemini-2.5-flash"`
	MaxTokens   int     `envconfig:"AGENT_MAX_TOKENS" default:"2000"`
	Temperature float32 `envconfig:"AGENT_TEMPERATURE" default:"0.2"`
	// ThinkingBudget of zero disables thoughts.
	ThinkingBudget int32 `envconfig:"AGENT_THINKING_BUDGET" default:"0"`
}

type SessionConfig struct {
	AppName string `envconfig:"APP_NAME" default:"mutual_fund_advisor"`
	Backend string `envconfig:"SESSION_BACKEND" default:"memory"`
	TTL     string `envconfig:"SESSION_TTL" default:"720h"`
	LockTTL string `envconfig:"SESSION_LOCK_TTL" default:"2m"`
}

type PortalConfig struct {
	BaseURL    string `envconfig:"PORTAL_BASE_URL" default:"http://localhost:5000/api"`
	Timeout    string `envconfig:"PORTAL_TIMEOUT" default:"15s"`
	MaxRetries uint64 `envconfig:"PORTAL_MAX_RETRIES" default:"2"`
}

type ServerConfig struct {
	Addr            string `envconfig:"HTTP_ADDR" default:":8080"`
	ShutdownTimeout string `envconfig:"HTTP_SHUTDOWN_TIMEOUT" default:"10s"`
}

// Session backends.
const (
	BackendMemory = "memory"
	BackendRedis  = "redis"
	BackendSQLite = "sqlite"
)
