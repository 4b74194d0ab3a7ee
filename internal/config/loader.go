package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

var (
	// GlobalConfig 全局配置实例
	GlobalConfig *Config
)

// LoadConfig 加载配置文件
// configPath: 配置文件路径，如果为空则使用默认路径
// env: 环境标识，支持 development, test, production
func LoadConfig(configPath, env string) (*Config, error) {
	// 设置默认环境
	if env == "" {
		env = getEnvFromEnvironment()
	}

	// 创建viper实例
	v := viper.New()

	// 设置配置文件类型
	v.SetConfigType("yaml")

	// 设置配置文件路径
	if configPath == "" {
		configPath = getDefaultConfigPath()
	}

	// 根据环境选择配置文件
	configFile := getConfigFileName(configPath, env)
	v.SetConfigFile(configFile)

	// 设置环境变量前缀
	v.SetEnvPrefix("TRACEGUARD")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// 绑定环境变量
	bindEnvironmentVariables(v)

	// 读取配置文件
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", configFile, err)
	}

	// 解析配置到结构体
	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	applyAnalyzerDefaults(&config)

	// 验证配置
	if err := validateConfig(&config); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	// 设置全局配置
	GlobalConfig = &config

	return &config, nil
}

// getEnvFromEnvironment 从环境变量获取环境标识
func getEnvFromEnvironment() string {
	env := os.Getenv("TRACEGUARD_ENV")
	if env == "" {
		env = os.Getenv("GO_ENV")
	}
	if env == "" {
		env = "development" // 默认开发环境
	}
	return env
}

// getDefaultConfigPath 获取默认配置文件路径
func getDefaultConfigPath() string {
	// 尝试从环境变量获取配置路径
	if configPath := os.Getenv("TRACEGUARD_CONFIG_PATH"); configPath != "" {
		return configPath
	}

	// 使用默认路径
	return "configs"
}

// getConfigFileName 根据环境获取配置文件名
func getConfigFileName(configPath, env string) string {
	var configFile string

	switch env {
	case "production", "prod":
		configFile = filepath.Join(configPath, "config.prod.yaml")
	case "test", "testing":
		configFile = filepath.Join(configPath, "config.test.yaml")
	default:
		configFile = filepath.Join(configPath, "config.yaml")
	}

	// 检查文件是否存在，如果不存在则使用默认配置文件
	if _, err := os.Stat(configFile); os.IsNotExist(err) {
		defaultConfig := filepath.Join(configPath, "config.yaml")
		if _, err := os.Stat(defaultConfig); err == nil {
			return defaultConfig
		}
	}

	return configFile
}

// bindEnvironmentVariables 绑定环境变量
func bindEnvironmentVariables(v *viper.Viper) {
	// 数据库配置
	v.BindEnv("database.mysql.host", "TRACEGUARD_MYSQL_HOST")
	v.BindEnv("database.mysql.port", "TRACEGUARD_MYSQL_PORT")
	v.BindEnv("database.mysql.username", "TRACEGUARD_MYSQL_USERNAME")
	v.BindEnv("database.mysql.password", "TRACEGUARD_MYSQL_PASSWORD")
	v.BindEnv("database.mysql.database", "TRACEGUARD_MYSQL_DATABASE")

	v.BindEnv("database.redis.host", "TRACEGUARD_REDIS_HOST")
	v.BindEnv("database.redis.port", "TRACEGUARD_REDIS_PORT")
	v.BindEnv("database.redis.password", "TRACEGUARD_REDIS_PASSWORD")
	v.BindEnv("database.redis.database", "TRACEGUARD_REDIS_DATABASE")

	// 分析管线配置
	v.BindEnv("analyzer.queue_key", "TRACEGUARD_ANALYZER_QUEUE_KEY")
	v.BindEnv("analyzer.queue_max_depth", "TRACEGUARD_ANALYZER_QUEUE_MAX_DEPTH")
	v.BindEnv("analyzer.redaction_policy_path", "TRACEGUARD_ANALYZER_REDACTION_POLICY_PATH")

	// 应用配置
	v.BindEnv("app.environment", "TRACEGUARD_APP_ENVIRONMENT")
	v.BindEnv("app.debug", "TRACEGUARD_APP_DEBUG")
}

// applyAnalyzerDefaults 填充分析管线默认值
// 重试次数、延迟区间等沿用管线的既定常量，配置文件可以覆盖
func applyAnalyzerDefaults(config *Config) {
	if config == nil {
		return
	}

	a := &config.Analyzer
	if a.QueueKey == "" {
		a.QueueKey = "traceguard:trace_queue"
	}
	if a.PollInterval <= 0 {
		a.PollInterval = 50 * time.Millisecond
	}
	if a.QueueMaxDepth <= 0 {
		a.QueueMaxDepth = 1000
	}
	if a.WriteMaxRetries <= 0 {
		a.WriteMaxRetries = 5
	}
	if a.WriteRetryMinDelay <= 0 {
		a.WriteRetryMinDelay = 200 * time.Millisecond
	}
	if a.WriteRetryMaxDelay <= 0 {
		a.WriteRetryMaxDelay = 1000 * time.Millisecond
	}
	if a.IPMapMaxSize <= 0 {
		a.IPMapMaxSize = 20
	}
	if a.IPDebounceWindow <= 0 {
		a.IPDebounceWindow = 30 * time.Second
	}
	if len(a.GraphQLPaths) == 0 {
		a.GraphQLPaths = []string{"/graphql"}
	}
	if a.DataFieldLimit <= 0 {
		a.DataFieldLimit = 200
	}
	if a.FieldUpdateInterval <= 0 {
		a.FieldUpdateInterval = 24 * time.Hour
	}
	if a.EndpointUpdateGap <= 0 {
		a.EndpointUpdateGap = 30 * time.Second
	}

	d := &config.Detector
	if d.CacheKey == "" {
		d.CacheKey = "traceguard:data_classes"
	}
	if d.CacheTTL <= 0 {
		d.CacheTTL = time.Hour
	}

	w := &config.Webhook
	if w.Timeout <= 0 {
		w.Timeout = 10 * time.Second
	}
	if w.RetryDelay <= 0 {
		w.RetryDelay = 500 * time.Millisecond
	}
	if w.DefaultRetry <= 0 {
		w.DefaultRetry = 3
	}
}

// validateConfig 验证配置
func validateConfig(config *Config) error {
	// 验证数据库配置
	if config.Database.MySQL.Host == "" {
		return fmt.Errorf("mysql host is required")
	}

	if config.Database.MySQL.Database == "" {
		return fmt.Errorf("mysql database name is required")
	}

	if config.Database.Redis.Host == "" {
		return fmt.Errorf("redis host is required")
	}

	// 验证日志配置
	validLogLevels := []string{"debug", "info", "warn", "error", "fatal", "panic"}
	if !contains(validLogLevels, config.Log.Level) {
		return fmt.Errorf("invalid log level: %s", config.Log.Level)
	}

	validLogFormats := []string{"json", "text"}
	if !contains(validLogFormats, config.Log.Format) {
		return fmt.Errorf("invalid log format: %s", config.Log.Format)
	}

	validLogOutputs := []string{"stdout", "stderr", "file"}
	if !contains(validLogOutputs, config.Log.Output) {
		return fmt.Errorf("invalid log output: %s", config.Log.Output)
	}

	// 如果日志输出到文件，验证文件路径
	if config.Log.Output == "file" && config.Log.FilePath == "" {
		return fmt.Errorf("log file path is required when output is file")
	}

	// 验证分析管线配置
	if config.Analyzer.WriteRetryMinDelay > config.Analyzer.WriteRetryMaxDelay {
		return fmt.Errorf("write retry min delay %v exceeds max delay %v",
			config.Analyzer.WriteRetryMinDelay, config.Analyzer.WriteRetryMaxDelay)
	}

	// 验证自定义分类配置
	for _, c := range config.Detector.CustomClasses {
		if strings.TrimSpace(c.Name) == "" {
			return fmt.Errorf("custom data class name is required")
		}
		if strings.TrimSpace(c.Pattern) == "" && strings.TrimSpace(c.KeyPattern) == "" {
			return fmt.Errorf("custom data class %s needs a pattern or key_pattern", c.Name)
		}
	}

	return nil
}

// contains 检查切片是否包含指定元素
func contains(slice []string, item string) bool {
	for _, s := range slice {
		if s == item {
			return true
		}
	}
	return false
}

// GetConfig 获取全局配置
func GetConfig() *Config {
	return GlobalConfig
}

// MustLoadConfig 加载配置，如果失败则panic
func MustLoadConfig(configPath, env string) *Config {
	config, err := LoadConfig(configPath, env)
	if err != nil {
		panic(fmt.Sprintf("Failed to load config: %v", err))
	}
	return config
}

// ReloadConfig 重新加载配置
func ReloadConfig() error {
	if GlobalConfig == nil {
		return fmt.Errorf("global config is not initialized")
	}

	// 重新加载配置
	config, err := LoadConfig("", "")
	if err != nil {
		return err
	}

	GlobalConfig = config
	return nil
}

// GetEnv 获取当前环境
func GetEnv() string {
	if GlobalConfig != nil {
		return GlobalConfig.App.Environment
	}
	return getEnvFromEnvironment()
}
