package postgres

import (
	"github.com/code-payments/code-escrow/pkg/config"
	"github.com/code-payments/code-escrow/pkg/config/env"
	"github.com/code-payments/code-escrow/pkg/config/memory"
	"github.com/code-payments/code-escrow/pkg/config/wrapper"

	pgutil "github.com/code-payments/code-escrow/pkg/database/postgres"
)

const (
	envConfigPrefix = "ACCOUNT_DB_"

	HostConfigEnvName = envConfigPrefix + "HOST"
	defaultHost       = "localhost"

	PortConfigEnvName = envConfigPrefix + "PORT"
	defaultPort       = 5432

	UserConfigEnvName = envConfigPrefix + "USER"
	defaultUser       = "postgres"

	PasswordConfigEnvName = envConfigPrefix + "PASSWORD"
	defaultPassword       = ""

	NameConfigEnvName = envConfigPrefix + "NAME"
	defaultName       = "escrow"

	SslModeConfigEnvName = envConfigPrefix + "SSL_MODE"
	defaultSslMode       = "disable"

	MaxOpenConnectionsConfigEnvName = envConfigPrefix + "MAX_OPEN_CONNECTIONS"
	defaultMaxOpenConnections       = 20

	MaxIdleConnectionsConfigEnvName = envConfigPrefix + "MAX_IDLE_CONNECTIONS"
	defaultMaxIdleConnections       = 10
)

type conf struct {
	host               config.String
	port               config.Uint64
	user               config.String
	password           config.String
	name               config.String
	sslMode            config.String
	maxOpenConnections config.Uint64
	maxIdleConnections config.Uint64
}

// ConfigProvider defines how config values are pulled
type ConfigProvider func() *conf

// WithEnvConfigs returns configuration pulled from environment variables
func WithEnvConfigs() ConfigProvider {
	return func() *conf {
		return &conf{
			host:               env.NewStringConfig(HostConfigEnvName, defaultHost),
			port:               env.NewUint64Config(PortConfigEnvName, defaultPort),
			user:               env.NewStringConfig(UserConfigEnvName, defaultUser),
			password:           env.NewStringConfig(PasswordConfigEnvName, defaultPassword),
			name:               env.NewStringConfig(NameConfigEnvName, defaultName),
			sslMode:            env.NewStringConfig(SslModeConfigEnvName, defaultSslMode),
			maxOpenConnections: env.NewUint64Config(MaxOpenConnectionsConfigEnvName, defaultMaxOpenConnections),
			maxIdleConnections: env.NewUint64Config(MaxIdleConnectionsConfigEnvName, defaultMaxIdleConnections),
		}
	}
}

// WithManualTestOverrides connects with the provided connection settings,
// typically those of a test container.
func WithManualTestOverrides(overrides *pgutil.Config) ConfigProvider {
	return func() *conf {
		return &conf{
			host:               wrapper.NewStringConfig(memory.NewConfig(overrides.Host), defaultHost),
			port:               wrapper.NewUint64Config(memory.NewConfig(uint64(overrides.Port)), defaultPort),
			user:               wrapper.NewStringConfig(memory.NewConfig(overrides.User), defaultUser),
			password:           wrapper.NewStringConfig(memory.NewConfig(overrides.Password), defaultPassword),
			name:               wrapper.NewStringConfig(memory.NewConfig(overrides.DbName), defaultName),
			sslMode:            wrapper.NewStringConfig(memory.NewConfig(overrides.SslMode), defaultSslMode),
			maxOpenConnections: wrapper.NewUint64Config(memory.NewConfig(uint64(overrides.MaxOpenConnections)), defaultMaxOpenConnections),
			maxIdleConnections: wrapper.NewUint64Config(memory.NewConfig(uint64(overrides.MaxIdleConnections)), defaultMaxIdleConnections),
		}
	}
}
