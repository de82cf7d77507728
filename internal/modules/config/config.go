package config

import (
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v2"
)

const configFilePathENV = "CONFIG_FILE"

// Config ...
type Config struct {
	// Binance
	APIKey     string
	APISecret  string
	UseTestnet bool

	// Дисциплина подписанных запросов
	RecvWindow   time.Duration // серверная толерантность к дрейфу (120s)
	SyncInterval time.Duration // максимальный возраст offset'а (60s)

	// Цикл опроса
	Symbols      []string
	Timeframe    string
	KlineLimit   int
	TickInterval time.Duration

	// Торговля
	TradingEnabled   bool
	MaxPositionQuote float64 // размер позиции в USDT

	// Стратегия
	RSIPeriod     int
	RSIOversold   float64
	RSIOverbought float64
	MACDFast      int
	MACDSlow      int
	MACDSignal    int
	BBPeriod      int
	BBStdDev      float64
	EMAShort      int
	EMALong       int

	// Инфраструктура
	DB                string
	TelegramToken     string
	TelegramChatID    int64
	HTTPAddr          string
	HeartbeatInterval time.Duration
	Version           string

	TracingEnabled bool
	JaegerHost     string
	JaegerPort     int
}

// fileConfig — yaml-оверлей. Поля-указатели: nil означает «ключ в файле
// не задан, оставить значение из env». Длительности в файле строками
// ("120s"), yaml сам в time.Duration не умеет.
type fileConfig struct {
	APIKey     *string `yaml:"api_key"`
	APISecret  *string `yaml:"api_secret"`
	UseTestnet *bool   `yaml:"use_testnet"`

	RecvWindow   *string `yaml:"recv_window"`
	SyncInterval *string `yaml:"sync_interval"`

	Symbols      []string `yaml:"symbols"`
	Timeframe    *string  `yaml:"timeframe"`
	KlineLimit   *int     `yaml:"kline_limit"`
	TickInterval *string  `yaml:"tick_interval"`

	TradingEnabled   *bool    `yaml:"trading_enabled"`
	MaxPositionQuote *float64 `yaml:"max_position_quote"`

	RSIPeriod     *int     `yaml:"rsi_period"`
	RSIOversold   *float64 `yaml:"rsi_oversold"`
	RSIOverbought *float64 `yaml:"rsi_overbought"`
	MACDFast      *int     `yaml:"macd_fast"`
	MACDSlow      *int     `yaml:"macd_slow"`
	MACDSignal    *int     `yaml:"macd_signal"`
	BBPeriod      *int     `yaml:"bb_period"`
	BBStdDev      *float64 `yaml:"bb_stddev"`
	EMAShort      *int     `yaml:"ema_short"`
	EMALong       *int     `yaml:"ema_long"`

	DB                *string `yaml:"db_dsn"`
	TelegramToken     *string `yaml:"telegram_token"`
	TelegramChatID    *int64  `yaml:"telegram_chat_id"`
	HTTPAddr          *string `yaml:"http_addr"`
	HeartbeatInterval *string `yaml:"heartbeat_interval"`
	Version           *string `yaml:"version"`

	TracingEnabled *bool   `yaml:"tracing_enabled"`
	JaegerHost     *string `yaml:"jaeger_host"`
	JaegerPort     *int    `yaml:"jaeger_port"`
}

func NewConfig() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.AutomaticEnv()

	v.SetDefault("RECV_WINDOW", "120s")
	v.SetDefault("TIME_SYNC_INTERVAL", "60s")
	v.SetDefault("SYMBOLS", "BTCUSDT,ETHUSDT,SOLUSDT,XRPUSDT")
	v.SetDefault("TIMEFRAME", "5m")
	v.SetDefault("KLINE_LIMIT", 250) // EMA_LONG + запас на прогрев
	v.SetDefault("TICK_INTERVAL", "5m")
	v.SetDefault("TRADING_ENABLED", false)
	v.SetDefault("MAX_POSITION_USDT", 15.0)
	v.SetDefault("RSI_PERIOD", 14)
	v.SetDefault("RSI_OVERSOLD", 30.0)
	v.SetDefault("RSI_OVERBOUGHT", 70.0)
	v.SetDefault("MACD_FAST", 12)
	v.SetDefault("MACD_SLOW", 26)
	v.SetDefault("MACD_SIGNAL", 9)
	v.SetDefault("BB_PERIOD", 20)
	v.SetDefault("BB_STDDEV", 2.0)
	v.SetDefault("EMA_SHORT", 10)
	v.SetDefault("EMA_LONG", 200)
	v.SetDefault("HTTP_ADDR", ":8080")
	v.SetDefault("HEARTBEAT_INTERVAL", "30s")
	v.SetDefault("BOT_VERSION", "dev")
	v.SetDefault("JAEGER_HOST", "127.0.0.1")
	v.SetDefault("JAEGER_PORT", 6831)

	config := Config{
		APIKey:     v.GetString("BINANCE_API_KEY"),
		APISecret:  v.GetString("BINANCE_API_SECRET"),
		UseTestnet: v.GetBool("USE_TESTNET"),

		RecvWindow:   v.GetDuration("RECV_WINDOW"),
		SyncInterval: v.GetDuration("TIME_SYNC_INTERVAL"),

		Symbols:      splitSymbols(v.GetString("SYMBOLS")),
		Timeframe:    v.GetString("TIMEFRAME"),
		KlineLimit:   v.GetInt("KLINE_LIMIT"),
		TickInterval: v.GetDuration("TICK_INTERVAL"),

		TradingEnabled:   v.GetBool("TRADING_ENABLED"),
		MaxPositionQuote: v.GetFloat64("MAX_POSITION_USDT"),

		RSIPeriod:     v.GetInt("RSI_PERIOD"),
		RSIOversold:   v.GetFloat64("RSI_OVERSOLD"),
		RSIOverbought: v.GetFloat64("RSI_OVERBOUGHT"),
		MACDFast:      v.GetInt("MACD_FAST"),
		MACDSlow:      v.GetInt("MACD_SLOW"),
		MACDSignal:    v.GetInt("MACD_SIGNAL"),
		BBPeriod:      v.GetInt("BB_PERIOD"),
		BBStdDev:      v.GetFloat64("BB_STDDEV"),
		EMAShort:      v.GetInt("EMA_SHORT"),
		EMALong:       v.GetInt("EMA_LONG"),

		DB:                v.GetString("DATABASE_DSN"),
		TelegramToken:     v.GetString("TELEGRAM_TOKEN"),
		TelegramChatID:    v.GetInt64("TELEGRAM_CHAT_ID"),
		HTTPAddr:          v.GetString("HTTP_ADDR"),
		HeartbeatInterval: v.GetDuration("HEARTBEAT_INTERVAL"),
		Version:           v.GetString("BOT_VERSION"),

		TracingEnabled: v.GetBool("TRACING_ENABLED"),
		JaegerHost:     v.GetString("JAEGER_HOST"),
		JaegerPort:     v.GetInt("JAEGER_PORT"),
	}

	// yaml-файл опционален: на Cloud Run конфигурация целиком из env.
	if err := applyFile(&config); err != nil {
		return nil, err
	}

	if config.MACDFast >= config.MACDSlow {
		return nil, errors.New("MACD_FAST must be < MACD_SLOW")
	}
	if config.RecvWindow <= 0 || config.RecvWindow > 5*time.Minute {
		return nil, errors.Errorf("RECV_WINDOW out of range: %s", config.RecvWindow)
	}
	if config.SyncInterval <= 0 {
		return nil, errors.New("TIME_SYNC_INTERVAL must be positive")
	}
	if config.KlineLimit <= config.EMALong {
		return nil, errors.Errorf("KLINE_LIMIT %d too small for EMA_LONG %d",
			config.KlineLimit, config.EMALong)
	}

	return &config, nil
}

func applyFile(config *Config) error {
	configFileName := os.Getenv(configFilePathENV)
	if configFileName == "" {
		configFileName = "values_local.yaml"
	}
	file, err := os.Open("configs/" + configFileName)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return errors.Wrap(err, "open config file")
	}
	defer func() {
		_ = file.Close()
	}()

	var fc fileConfig
	if err := yaml.NewDecoder(file).Decode(&fc); err != nil {
		return errors.Wrap(err, "decode config file")
	}

	setString(&config.APIKey, fc.APIKey)
	setString(&config.APISecret, fc.APISecret)
	setBool(&config.UseTestnet, fc.UseTestnet)

	if err := setDuration(&config.RecvWindow, fc.RecvWindow); err != nil {
		return errors.Wrap(err, "recv_window")
	}
	if err := setDuration(&config.SyncInterval, fc.SyncInterval); err != nil {
		return errors.Wrap(err, "sync_interval")
	}
	if err := setDuration(&config.TickInterval, fc.TickInterval); err != nil {
		return errors.Wrap(err, "tick_interval")
	}
	if err := setDuration(&config.HeartbeatInterval, fc.HeartbeatInterval); err != nil {
		return errors.Wrap(err, "heartbeat_interval")
	}

	if len(fc.Symbols) > 0 {
		config.Symbols = splitSymbols(strings.Join(fc.Symbols, ","))
	}
	setString(&config.Timeframe, fc.Timeframe)
	setInt(&config.KlineLimit, fc.KlineLimit)

	setBool(&config.TradingEnabled, fc.TradingEnabled)
	setFloat(&config.MaxPositionQuote, fc.MaxPositionQuote)

	setInt(&config.RSIPeriod, fc.RSIPeriod)
	setFloat(&config.RSIOversold, fc.RSIOversold)
	setFloat(&config.RSIOverbought, fc.RSIOverbought)
	setInt(&config.MACDFast, fc.MACDFast)
	setInt(&config.MACDSlow, fc.MACDSlow)
	setInt(&config.MACDSignal, fc.MACDSignal)
	setInt(&config.BBPeriod, fc.BBPeriod)
	setFloat(&config.BBStdDev, fc.BBStdDev)
	setInt(&config.EMAShort, fc.EMAShort)
	setInt(&config.EMALong, fc.EMALong)

	setString(&config.DB, fc.DB)
	setString(&config.TelegramToken, fc.TelegramToken)
	setInt64(&config.TelegramChatID, fc.TelegramChatID)
	setString(&config.HTTPAddr, fc.HTTPAddr)
	setString(&config.Version, fc.Version)

	setBool(&config.TracingEnabled, fc.TracingEnabled)
	setString(&config.JaegerHost, fc.JaegerHost)
	setInt(&config.JaegerPort, fc.JaegerPort)

	return nil
}

func setString(dst *string, v *string) {
	if v != nil {
		*dst = *v
	}
}

func setBool(dst *bool, v *bool) {
	if v != nil {
		*dst = *v
	}
}

func setInt(dst *int, v *int) {
	if v != nil {
		*dst = *v
	}
}

func setInt64(dst *int64, v *int64) {
	if v != nil {
		*dst = *v
	}
}

func setFloat(dst *float64, v *float64) {
	if v != nil {
		*dst = *v
	}
}

func setDuration(dst *time.Duration, v *string) error {
	if v == nil {
		return nil
	}
	d, err := time.ParseDuration(*v)
	if err != nil {
		return err
	}
	*dst = d
	return nil
}

func splitSymbols(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if s := strings.ToUpper(strings.TrimSpace(p)); s != "" {
			out = append(out, s)
		}
	}
	return out
}
