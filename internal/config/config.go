package config

type Config interface {
	KeycloakConfig
	AuthServiceConfig
	AppConfig
}

type KeycloakConfig interface {
	GetKeycloakBaseURL() string
	GetKeycloakTokenBaseURL() string
	GetKeycloakRealm() string
	GetKeycloakClientID() string
	GetKeycloakDiscovery() bool
	GetRedirectURI() string
}

type AuthServiceConfig interface {
	GetAuthServiceURL() string
}

type AppConfig interface {
	GetAppName() string
	GetAppRootURL() string
	GetDataFolder() string
	GetEnv() string
}

type mainConfig struct {
	EnvVars
}

func New() Config {
	return mainConfig{}
}
