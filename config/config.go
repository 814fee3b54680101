package config

import "github.com/spf13/viper"

// Config holds process-level settings sourced from the environment file.
type Config struct {
	ServerAddress string `mapstructure:"SERVER_ADDRESS"`
	DatabaseURL   string `mapstructure:"DATABASE_URL"`
	MigrationURL  string `mapstructure:"MIGRATION_URL"`
	JWTSecret     string `mapstructure:"JWT_SECRET"`
	ClientOrigin  string `mapstructure:"CLIENT_ORIGIN"`
}

// Load reads app.env from the given directory, falling back to real
// environment variables for any key not present in the file.
func Load(path string) (cfg Config, err error) {
	viper.AddConfigPath(path)
	viper.SetConfigName("app")
	viper.SetConfigType("env")
	viper.AutomaticEnv()

	if err = viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return
		}
		err = nil
	}

	err = viper.Unmarshal(&cfg)
	if cfg.ServerAddress == "" {
		cfg.ServerAddress = ":8080"
	}
	if cfg.MigrationURL == "" {
		cfg.MigrationURL = "file://migrations"
	}
	return
}
