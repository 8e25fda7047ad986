package config

import (
	"strings"

	"github.com/spf13/viper"
)

// Cfg 是一个全局变量，用于存储所有应用程序的配置
var Cfg *Config

// Config 结构体定义了应用程序的所有配置项
// 它与 config.yaml 文件的结构完全对应
type Config struct {
	Server      Server       `mapstructure:"server"`
	Database    Database     `mapstructure:"database"`
	Auth        Auth         `mapstructure:"auth"`
	GameServers []GameServer `mapstructure:"gameServers"`
}

// Server 定义了服务器相关的配置
type Server struct {
	Mode    string `mapstructure:"mode"`
	Address string `mapstructure:"address"`
	Cors    Cors   `mapstructure:"cors"`
}

// Cors 定义了CORS相关的配置
type Cors struct {
	AllowedOrigins []string `mapstructure:"allowedOrigins"`
}

// Database 定义了数据库和缓存相关的配置
type Database struct {
	Sqlite Sqlite `mapstructure:"sqlite"`
	Redis  Redis  `mapstructure:"redis"`
}

// Sqlite 定义了SQLite的配置
type Sqlite struct {
	Path string `mapstructure:"path"`
}

// Redis 定义了Redis的配置
type Redis struct {
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// Auth 定义了身份令牌相关的配置。
// TokenSecret 必须与外部认证服务共享同一个密钥；
// 为空时服务器会在启动时生成随机密钥（仅限开发环境）。
type Auth struct {
	TokenSecret   string `mapstructure:"tokenSecret"`
	TokenTTLHours int    `mapstructure:"tokenTTLHours"`
}

// GameServer 定义了启动时预置到服务器池中的一条游戏服务器记录
type GameServer struct {
	IP   string `mapstructure:"ip"`
	Port int    `mapstructure:"port"`
}

// LoadConfig 函数负责查找、加载和解析配置文件
// 它会在指定的路径中查找名为 config.yaml 的文件
func LoadConfig() (*Config, error) {
	v := viper.New()

	// 1. 设置配置文件名和类型
	v.SetConfigName("config")
	v.SetConfigType("yaml")

	// 2. 添加配置文件搜索路径，Viper会按顺序查找
	v.AddConfigPath("./config")
	v.AddConfigPath(".")

	// 3. 设置环境变量支持
	// 允许通过环境变量覆盖配置，例如 SERVER_ADDRESS=:8888
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// 4. 默认值
	v.SetDefault("server.mode", "debug")
	v.SetDefault("server.address", ":8080")
	v.SetDefault("database.sqlite.path", "warcry.db")
	v.SetDefault("auth.tokenTTLHours", 72)

	// 5. 读取配置文件
	if err := v.ReadInConfig(); err != nil {
		return nil, err
	}

	// 6. 将配置反序列化到结构体中
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	// 7. 将加载的配置赋值给全局变量
	Cfg = &cfg

	return Cfg, nil
}
