package config

import (
	"fmt"
	"time"
)

// Config 应用配置结构体 [这里的字段和配置文件中一级字段保持一致，否则会没有值]
type Config struct {
	App      AppConfig      `yaml:"app" mapstructure:"app"`           // 应用配置
	Database DatabaseConfig `yaml:"database" mapstructure:"database"` // 数据库配置
	Log      LogConfig      `yaml:"log" mapstructure:"log"`           // 日志配置
	Analyzer AnalyzerConfig `yaml:"analyzer" mapstructure:"analyzer"` // 分析管线配置
	Detector DetectorConfig `yaml:"detector" mapstructure:"detector"` // 敏感数据检测配置
	Webhook  WebhookConfig  `yaml:"webhook" mapstructure:"webhook"`   // 告警外发配置
}

// AppConfig 应用配置
type AppConfig struct {
	Name        string `yaml:"name" mapstructure:"name"`               // 应用名称
	Environment string `yaml:"environment" mapstructure:"environment"` // 运行环境: development, test, production
	Debug       bool   `yaml:"debug" mapstructure:"debug"`             // 是否开启调试
}

// DatabaseConfig 数据库配置
type DatabaseConfig struct {
	MySQL MySQLConfig `yaml:"mysql" mapstructure:"mysql"` // MySQL配置
	Redis RedisConfig `yaml:"redis" mapstructure:"redis"` // Redis配置
}

// MySQLConfig MySQL数据库配置
type MySQLConfig struct {
	Host            string        `yaml:"host" mapstructure:"host"`                             // 数据库主机
	Port            int           `yaml:"port" mapstructure:"port"`                             // 数据库端口
	Username        string        `yaml:"username" mapstructure:"username"`                     // 用户名
	Password        string        `yaml:"password" mapstructure:"password"`                     // 密码
	Database        string        `yaml:"database" mapstructure:"database"`                     // 数据库名
	Charset         string        `yaml:"charset" mapstructure:"charset"`                       // 字符集
	ParseTime       bool          `yaml:"parse_time" mapstructure:"parse_time"`                 // 是否解析时间
	Loc             string        `yaml:"loc" mapstructure:"loc"`                               // 时区
	MaxIdleConns    int           `yaml:"max_idle_conns" mapstructure:"max_idle_conns"`         // 最大空闲连接数
	MaxOpenConns    int           `yaml:"max_open_conns" mapstructure:"max_open_conns"`         // 最大打开连接数
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime" mapstructure:"conn_max_lifetime"`   // 连接最大生存时间
	ConnMaxIdleTime time.Duration `yaml:"conn_max_idle_time" mapstructure:"conn_max_idle_time"` // 连接最大空闲时间
	LogLevel        string        `yaml:"log_level" mapstructure:"log_level"`                   // GORM日志级别
}

// RedisConfig Redis配置
type RedisConfig struct {
	Host         string        `yaml:"host" mapstructure:"host"`                     // Redis主机
	Port         int           `yaml:"port" mapstructure:"port"`                     // Redis端口
	Password     string        `yaml:"password" mapstructure:"password"`             // Redis密码
	Database     int           `yaml:"database" mapstructure:"database"`             // Redis数据库索引
	PoolSize     int           `yaml:"pool_size" mapstructure:"pool_size"`           // 连接池大小
	MinIdleConns int           `yaml:"min_idle_conns" mapstructure:"min_idle_conns"` // 最小空闲连接数
	DialTimeout  time.Duration `yaml:"dial_timeout" mapstructure:"dial_timeout"`     // 连接超时
	ReadTimeout  time.Duration `yaml:"read_timeout" mapstructure:"read_timeout"`     // 读取超时
	WriteTimeout time.Duration `yaml:"write_timeout" mapstructure:"write_timeout"`   // 写入超时
}

// LogConfig 日志配置
type LogConfig struct {
	Level      string `yaml:"level" mapstructure:"level"`             // 日志级别
	Format     string `yaml:"format" mapstructure:"format"`           // 日志格式: json, text
	Output     string `yaml:"output" mapstructure:"output"`           // 输出方式: stdout, stderr, file
	FilePath   string `yaml:"file_path" mapstructure:"file_path"`     // 日志文件路径
	MaxSize    int    `yaml:"max_size" mapstructure:"max_size"`       // 单个日志文件最大大小(MB)
	MaxBackups int    `yaml:"max_backups" mapstructure:"max_backups"` // 保留的日志文件数量
	MaxAge     int    `yaml:"max_age" mapstructure:"max_age"`         // 日志文件保留天数
	Compress   bool   `yaml:"compress" mapstructure:"compress"`       // 是否压缩日志文件
	Caller     bool   `yaml:"caller" mapstructure:"caller"`           // 是否显示调用者信息
}

// AnalyzerConfig 分析管线配置
type AnalyzerConfig struct {
	QueueKey            string        `yaml:"queue_key" mapstructure:"queue_key"`                         // 流量队列键名
	PollInterval        time.Duration `yaml:"poll_interval" mapstructure:"poll_interval"`                 // 队列空时的轮询间隔
	QueueMaxDepth       int64         `yaml:"queue_max_depth" mapstructure:"queue_max_depth"`             // 队列深度上限,超过则丢弃新流量
	WriteMaxRetries     int           `yaml:"write_max_retries" mapstructure:"write_max_retries"`         // 事务冲突最大重试次数
	WriteRetryMinDelay  time.Duration `yaml:"write_retry_min_delay" mapstructure:"write_retry_min_delay"` // 重试延迟下限
	WriteRetryMaxDelay  time.Duration `yaml:"write_retry_max_delay" mapstructure:"write_retry_max_delay"` // 重试延迟上限
	IPMapMaxSize        int           `yaml:"ip_map_max_size" mapstructure:"ip_map_max_size"`             // 端点IP映射容量
	IPDebounceWindow    time.Duration `yaml:"ip_debounce_window" mapstructure:"ip_debounce_window"`       // IP更新去抖窗口
	GraphQLPaths        []string      `yaml:"graphql_paths" mapstructure:"graphql_paths"`                 // GraphQL路径后缀
	DataFieldLimit      int           `yaml:"data_field_limit" mapstructure:"data_field_limit"`           // 单端点数据字段上限
	FieldUpdateInterval time.Duration `yaml:"field_update_interval" mapstructure:"field_update_interval"` // 无变化字段的重新落库间隔
	EndpointUpdateGap   time.Duration `yaml:"endpoint_update_gap" mapstructure:"endpoint_update_gap"`     // 端点活跃时间最小更新间隔
	RedactionPolicyPath string        `yaml:"redaction_policy_path" mapstructure:"redaction_policy_path"` // 脱敏策略文件路径
}

// CustomClassConfig 用户自定义敏感数据分类
type CustomClassConfig struct {
	Name       string `yaml:"name" mapstructure:"name"`               // 分类名称
	Pattern    string `yaml:"pattern" mapstructure:"pattern"`         // 值匹配正则
	KeyPattern string `yaml:"key_pattern" mapstructure:"key_pattern"` // 键名匹配正则(可选)
	RiskScore  string `yaml:"risk_score" mapstructure:"risk_score"`   // 风险等级
}

// DetectorConfig 敏感数据检测配置
type DetectorConfig struct {
	DisabledClasses []string            `yaml:"disabled_classes" mapstructure:"disabled_classes"` // 停用的内置分类
	CustomClasses   []CustomClassConfig `yaml:"custom_classes" mapstructure:"custom_classes"`     // 自定义分类
	CacheKey        string              `yaml:"cache_key" mapstructure:"cache_key"`               // 合并注册表的缓存键
	CacheTTL        time.Duration       `yaml:"cache_ttl" mapstructure:"cache_ttl"`               // 缓存有效期
}

// WebhookConfig 告警外发配置
type WebhookConfig struct {
	Timeout      time.Duration `yaml:"timeout" mapstructure:"timeout"`             // 单次投递超时
	RetryDelay   time.Duration `yaml:"retry_delay" mapstructure:"retry_delay"`     // 重试间隔
	DefaultRetry int           `yaml:"default_retry" mapstructure:"default_retry"` // 未配置时的默认重试次数
}

// GetMySQLDSN 构建MySQL连接串
func (c *MySQLConfig) GetMySQLDSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=%s&parseTime=%t&loc=%s",
		c.Username, c.Password, c.Host, c.Port, c.Database, c.Charset, c.ParseTime, c.Loc)
}

// GetRedisAddress 构建Redis地址
func (c *RedisConfig) GetRedisAddress() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// IsDevelopment 判断是否为开发环境
func (c *AppConfig) IsDevelopment() bool {
	return c.Environment == "development"
}

// IsProduction 判断是否为生产环境
func (c *AppConfig) IsProduction() bool {
	return c.Environment == "production"
}

// IsTest 判断是否为测试环境
func (c *AppConfig) IsTest() bool {
	return c.Environment == "test"
}
