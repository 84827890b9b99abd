// =============================================================================
// 📦 Agent Studio 默认配置
// =============================================================================
// 提供所有配置项的合理默认值，以及到各组件配置的转换
// =============================================================================
package config

import (
	"time"

	"github.com/BaSui01/agentstudio/internal/cache"
	"github.com/BaSui01/agentstudio/internal/tlsutil"
	"github.com/BaSui01/agentstudio/workflow"
	"github.com/BaSui01/agentstudio/workflow/execution"
	"github.com/BaSui01/agentstudio/workflow/history"
)

// DefaultConfig 返回默认配置
func DefaultConfig() *Config {
	return &Config{
		Server:    DefaultServerConfig(),
		Engine:    DefaultEngineConfig(),
		Compiler:  DefaultCompilerConfig(),
		History:   DefaultHistoryConfig(),
		Poller:    DefaultPollerConfig(),
		Redis:     DefaultRedisConfig(),
		Log:       DefaultLogConfig(),
		Telemetry: DefaultTelemetryConfig(),
	}
}

// DefaultServerConfig 返回默认服务器配置
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		HTTPPort:        8080,
		MetricsPort:     9091,
		ReadTimeout:     30 * time.Second,
		WriteTimeout:    30 * time.Second,
		ShutdownTimeout: 15 * time.Second,
		RateLimitRPS:    100,
		RateLimitBurst:  200,
		MaxBodyBytes:    4 << 20,
	}
}

// DefaultEngineConfig 返回默认执行引擎配置
func DefaultEngineConfig() EngineConfig {
	return EngineConfig{
		BaseURL:          "http://localhost:8000",
		Timeout:          30 * time.Second,
		RateLimit:        20,
		RateBurst:        40,
		BreakerThreshold: 5,
		BreakerRecovery:  30 * time.Second,
	}
}

// DefaultCompilerConfig 返回默认编译配置
func DefaultCompilerConfig() CompilerConfig {
	return CompilerConfig{
		DefaultProvider:    workflow.DefaultProvider,
		DefaultModel:       workflow.DefaultModel,
		DefaultTemperature: workflow.DefaultTemperature,
	}
}

// DefaultHistoryConfig 返回默认历史配置
func DefaultHistoryConfig() HistoryConfig {
	return HistoryConfig{
		MaxSize:       history.DefaultMaxSize,
		DraftsEnabled: false,
		DraftTTL:      7 * 24 * time.Hour,
	}
}

// DefaultPollerConfig 返回默认轮询配置
func DefaultPollerConfig() PollerConfig {
	return PollerConfig{
		Interval:     execution.DefaultPollInterval,
		MaxPolls:     0,
		FetchTimeout: 10 * time.Second,
	}
}

// DefaultRedisConfig 返回默认 Redis 配置
func DefaultRedisConfig() RedisConfig {
	return RedisConfig{
		Addr:      "localhost:6379",
		Password:  "",
		DB:        0,
		PoolSize:  10,
		KeyPrefix: "agentstudio:",
	}
}

// DefaultLogConfig 返回默认日志配置
func DefaultLogConfig() LogConfig {
	return LogConfig{
		Level:            "info",
		Format:           "json",
		OutputPaths:      []string{"stdout"},
		EnableCaller:     true,
		EnableStacktrace: false,
	}
}

// DefaultTelemetryConfig 返回默认遥测配置
func DefaultTelemetryConfig() TelemetryConfig {
	return TelemetryConfig{
		Enabled:      false,
		OTLPEndpoint: "localhost:4317",
		ServiceName:  "agentstudio",
		SampleRate:   0.1,
	}
}

// =============================================================================
// 🔄 组件配置转换
// =============================================================================

// ClientConfig 转换为执行引擎客户端配置
func (e EngineConfig) ClientConfig() execution.ClientConfig {
	breaker := execution.DefaultBreakerConfig()
	breaker.FailureThreshold = e.BreakerThreshold
	if e.BreakerRecovery > 0 {
		breaker.RecoveryTimeout = e.BreakerRecovery
	}
	return execution.ClientConfig{
		BaseURL:   e.BaseURL,
		APIKey:    e.APIKey,
		Timeout:   e.Timeout,
		RateLimit: e.RateLimit,
		RateBurst: e.RateBurst,
		Breaker:   breaker,
		TLS: tlsutil.Config{
			CAFile:             e.TLSCAFile,
			InsecureSkipVerify: e.TLSInsecureSkipVerify,
		},
	}
}

// ToPollerConfig 转换为轮询器配置（不含回调）
func (p PollerConfig) ToPollerConfig() execution.PollerConfig {
	return execution.PollerConfig{
		Interval:         p.Interval,
		TerminalStatuses: append([]string(nil), p.TerminalStatuses...),
		MaxPolls:         p.MaxPolls,
		FetchTimeout:     p.FetchTimeout,
	}
}

// CacheConfig 转换为缓存管理器配置
func (r RedisConfig) CacheConfig(ttl time.Duration) cache.Config {
	cfg := cache.DefaultConfig()
	cfg.Addr = r.Addr
	cfg.Password = r.Password
	cfg.DB = r.DB
	if r.PoolSize > 0 {
		cfg.PoolSize = r.PoolSize
	}
	cfg.KeyPrefix = r.KeyPrefix
	if ttl > 0 {
		cfg.DefaultTTL = ttl
	}
	return cfg
}

// CompilerOptions 转换为编译器选项
func (c CompilerConfig) CompilerOptions() []workflow.CompilerOption {
	models := workflow.DefaultModelCatalog()
	for model, provider := range c.Models {
		models.Register(model, provider)
	}

	personalities := workflow.DefaultPersonalities()
	for name, prefix := range c.Personalities {
		personalities[name] = prefix
	}

	return []workflow.CompilerOption{
		workflow.WithModelCatalog(models),
		workflow.WithPersonalities(personalities),
		workflow.WithDefaultProvider(c.DefaultProvider),
		workflow.WithDefaultModel(c.DefaultModel),
		workflow.WithDefaultTemperature(c.DefaultTemperature),
	}
}
