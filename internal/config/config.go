package config

import (
	"flag"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

type Config struct {
	Env         string        `yaml:"env" env-required:"true"`
	StoragePath string        `yaml:"storage_path" env-required:"true"`
	TokenTTL    time.Duration `yaml:"token_ttl" env-default:"1h"`
	HTTPServer  `yaml:"http_server"`
	Validation  `yaml:"validation"`
	Synthesis   `yaml:"synthesis"`
	Preview     `yaml:"preview"`
}

type HTTPServer struct {
	Address      string        `yaml:"address" env-default:"localhost:8080"`
	Timeout      time.Duration `yaml:"timeout" env-default:"4s"`
	IddleTimeout time.Duration `yaml:"idle_timeout" env-default:"60s"`
	SampleDir    string        `yaml:"sample_dir" env-default:"./samples"`
}

type Validation struct {
	ToleranceWords int `yaml:"tolerance_words" env-default:"1"`
}

type Synthesis struct {
	Endpoint  string        `yaml:"endpoint" env-required:"true"`
	Timeout   time.Duration `yaml:"timeout" env-default:"5m"`
	OutputDir string        `yaml:"output_dir" env-required:"true"`
	TestMode  bool          `yaml:"test_mode" env-default:"false"`
}

type Preview struct {
	BaseURL    string        `yaml:"base_url" env-default:""`
	BufferTime time.Duration `yaml:"buffer_time" env-default:"2s"`
}

func MustLoad() *Config {
	configPath := fetchConfigPath()
	if configPath == "" {
		panic("config path is empty")
	}

	return MustLoadPath(configPath)
}

func MustLoadPath(configPath string) *Config {
	// check if file exists
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		panic("config file does not exist: " + configPath)
	}

	var cfg Config

	if err := cleanenv.ReadConfig(configPath, &cfg); err != nil {
		panic("cannot read config: " + err.Error())
	}

	return &cfg
}

// fetchConfigPath fetches config path from command line flag or environment variable.
// Priority: flag > env > default.
// Default value is empty string.
func fetchConfigPath() string {
	var res string

	flag.StringVar(&res, "config", "", "path to config file")
	flag.Parse()

	if res == "" {
		res = os.Getenv("CONFIG_PATH")
	}

	return res
}
