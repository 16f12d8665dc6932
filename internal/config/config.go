package config

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/cloudwego/eino-ext/components/model/ark"
	"github.com/cloudwego/eino/components/model"
)

// 可选的回答来源。
const (
	ProviderYesNo  = "yesno"
	ProviderOracle = "oracle"
)

// Config 聚合整个服务的配置项。
type Config struct {
	Server ServerConfig
	Answer AnswerConfig
	Chat   ChatConfig
	AI     AIConfig
}

// Load 从环境变量加载配置。
func Load() (*Config, error) {
	server, err := loadServerConfig()
	if err != nil {
		return nil, err
	}

	answer, err := loadAnswerConfig()
	if err != nil {
		return nil, err
	}

	chat, err := loadChatConfig()
	if err != nil {
		return nil, err
	}

	ai, err := loadAIConfig()
	if err != nil {
		return nil, err
	}

	if answer.Provider == ProviderOracle && !ai.Enabled() {
		return nil, fmt.Errorf("ANSWER_PROVIDER=%s requires ARK_MODEL and Ark credentials", ProviderOracle)
	}

	return &Config{Server: server, Answer: answer, Chat: chat, AI: ai}, nil
}

// ServerConfig 描述 HTTP 服务配置。
type ServerConfig struct {
	Addr           string
	AllowedOrigins []string
}

// loadServerConfig 解析服务器监听地址与跨域来源。
func loadServerConfig() (ServerConfig, error) {
	port := strings.TrimSpace(os.Getenv("PORT"))
	if port == "" {
		port = "8080"
	}

	origins := splitList(getEnvOrDefault("CORS_ALLOWED_ORIGINS", "*"))

	if strings.Contains(port, ":") {
		// 允许用户直接传入 ":8080" 或 "127.0.0.1:8080"。
		return ServerConfig{Addr: port, AllowedOrigins: origins}, nil
	}

	if strings.Contains(port, " ") {
		return ServerConfig{}, fmt.Errorf("invalid PORT value: %q", port)
	}

	return ServerConfig{Addr: ":" + port, AllowedOrigins: origins}, nil
}

// AnswerConfig 描述回答来源。
type AnswerConfig struct {
	Provider string
	URL      string
	Timeout  time.Duration
}

func loadAnswerConfig() (AnswerConfig, error) {
	provider := strings.ToLower(getEnvOrDefault("ANSWER_PROVIDER", ProviderYesNo))
	if provider != ProviderYesNo && provider != ProviderOracle {
		return AnswerConfig{}, fmt.Errorf("invalid ANSWER_PROVIDER value: %q", provider)
	}

	timeout, err := parseOptionalIntEnv("ANSWER_TIMEOUT")
	if err != nil {
		return AnswerConfig{}, err
	}
	timeoutSeconds := 15 // 默认15秒
	if timeout != nil {
		if *timeout < 0 {
			return AnswerConfig{}, fmt.Errorf("invalid ANSWER_TIMEOUT value: %d", *timeout)
		}
		timeoutSeconds = *timeout
	}

	return AnswerConfig{
		Provider: provider,
		URL:      getEnvOrDefault("YESNO_API_URL", "https://yesno.wtf/api"),
		Timeout:  time.Duration(timeoutSeconds) * time.Second,
	}, nil
}

// ChatConfig 描述会话行为。
type ChatConfig struct {
	TimeLayout   string
	Location     *time.Location
	DiscardStale bool
	MaxSessions  int
}

func loadChatConfig() (ChatConfig, error) {
	zone := getEnvOrDefault("CHAT_TIME_ZONE", "Local")
	loc, err := time.LoadLocation(zone)
	if err != nil {
		return ChatConfig{}, fmt.Errorf("invalid CHAT_TIME_ZONE value %q: %w", zone, err)
	}

	discard, err := parseBoolEnv("CHAT_DISCARD_STALE_ANSWERS", false)
	if err != nil {
		return ChatConfig{}, err
	}

	maxSessions := 1000
	limit, err := parseOptionalIntEnv("CHAT_MAX_SESSIONS")
	if err != nil {
		return ChatConfig{}, err
	}
	if limit != nil {
		if *limit < 0 {
			return ChatConfig{}, fmt.Errorf("invalid CHAT_MAX_SESSIONS value: %d", *limit)
		}
		maxSessions = *limit // 0 表示不限制
	}

	return ChatConfig{
		TimeLayout:   getEnvOrDefault("CHAT_TIME_LAYOUT", "15:04:05"),
		Location:     loc,
		DiscardStale: discard,
		MaxSessions:  maxSessions,
	}, nil
}

// AIConfig 描述大模型相关配置，仅在 oracle 模式下使用。
type AIConfig struct {
	APIKey      string
	AccessKey   string
	SecretKey   string
	Model       string
	BaseURL     string
	Region      string
	Temperature *float64
}

// Enabled 表示是否提供了必需的密钥。
func (c AIConfig) Enabled() bool {
	return c.Model != "" && (c.APIKey != "" || (c.AccessKey != "" && c.SecretKey != ""))
}

// NewChatModel 使用配置创建一个模型实例。
func (c AIConfig) NewChatModel(ctx context.Context) (model.ChatModel, error) {
	if !c.Enabled() {
		return nil, fmt.Errorf("Ark 凭证或模型配置缺失，至少提供 ARK_API_KEY + ARK_MODEL 或 AK/SK 组合")
	}

	var temperature *float32
	if c.Temperature != nil {
		val := float32(*c.Temperature)
		temperature = &val
	}

	cfg := &ark.ChatModelConfig{
		BaseURL:     c.BaseURL,
		Region:      c.Region,
		APIKey:      c.APIKey,
		AccessKey:   c.AccessKey,
		SecretKey:   c.SecretKey,
		Model:       c.Model,
		Temperature: temperature,
	}

	return ark.NewChatModel(ctx, cfg)
}

func loadAIConfig() (AIConfig, error) {
	temperature, err := parseOptionalFloatEnv("ARK_TEMPERATURE")
	if err != nil {
		return AIConfig{}, err
	}

	return AIConfig{
		APIKey:      strings.TrimSpace(os.Getenv("ARK_API_KEY")),
		AccessKey:   strings.TrimSpace(os.Getenv("ARK_ACCESS_KEY")),
		SecretKey:   strings.TrimSpace(os.Getenv("ARK_SECRET_KEY")),
		Model:       strings.TrimSpace(os.Getenv("ARK_MODEL")),
		BaseURL:     getEnvOrDefault("ARK_BASE_URL", "https://ark.cn-beijing.volces.com/api/v3"),
		Region:      getEnvOrDefault("ARK_REGION", "cn-beijing"),
		Temperature: temperature,
	}, nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

func splitList(raw string) []string {
	parts := strings.Split(raw, ",")
	items := make([]string, 0, len(parts))
	for _, part := range parts {
		if part = strings.TrimSpace(part); part != "" {
			items = append(items, part)
		}
	}
	return items
}

func parseBoolEnv(key string, defaultValue bool) (bool, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return defaultValue, nil
	}

	val, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("invalid %s value %q: %w", key, raw, err)
	}
	return val, nil
}

func parseOptionalFloatEnv(key string) (*float64, error) {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return nil, nil
	}

	value := strings.TrimSpace(raw)
	if value == "" {
		return nil, nil
	}

	val, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid %s value %q: %w", key, value, err)
	}
	return &val, nil
}

func parseOptionalIntEnv(key string) (*int, error) {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return nil, nil
	}

	value := strings.TrimSpace(raw)
	if value == "" {
		return nil, nil
	}

	val, err := strconv.Atoi(value)
	if err != nil {
		return nil, fmt.Errorf("invalid %s value %q: %w", key, value, err)
	}
	return &val, nil
}
