package config

import "os"

const (
	keycloakURLVar       = "KEYCLOAK_URL"
	keycloakTokenURLVar  = "KEYCLOAK_TOKEN_URL"
	keycloakRealmVar     = "KEYCLOAK_REALM"
	keycloakClientIDVar  = "KEYCLOAK_CLIENT_ID"
	keycloakDiscoveryVar = "KEYCLOAK_DISCOVERY"
	redirectURIVar       = "REDIRECT_URI"
	authServiceURLVar    = "AUTH_SERVICE_URL"
	appNameVar           = "APP_NAME"
	appRootURLVar        = "APP_ROOT_URL"
	folderEnvVar         = "FOLDER"
)

type EnvVars struct{}

var _ Config = EnvVars{}

func (EnvVars) GetKeycloakBaseURL() string {
	return GetEnv(keycloakURLVar, "http://localhost:8080")
}

// GetKeycloakTokenBaseURL returns the base URL used for the token endpoint
// only. Empty means the main Keycloak base URL serves token calls too; a
// value here routes them to a separate ingress, e.g. one that skips a CDN.
func (EnvVars) GetKeycloakTokenBaseURL() string {
	return GetEnv(keycloakTokenURLVar, "")
}

func (EnvVars) GetKeycloakRealm() string {
	return GetEnv(keycloakRealmVar, "creatoros")
}

func (EnvVars) GetKeycloakClientID() string {
	return GetEnv(keycloakClientIDVar, "creatoros-web")
}

// GetKeycloakDiscovery selects endpoint resolution via the realm's OIDC
// discovery document instead of the fixed Keycloak path layout.
func (EnvVars) GetKeycloakDiscovery() bool {
	return GetEnv(keycloakDiscoveryVar, "false") == "true"
}

func (EnvVars) GetRedirectURI() string {
	return GetEnv(redirectURIVar, "http://127.0.0.1:8765/login")
}

func (EnvVars) GetAuthServiceURL() string {
	return GetEnv(authServiceURLVar, "http://localhost:3000/api")
}

func (EnvVars) GetAppName() string {
	return GetEnv(appNameVar, "CreatorOS")
}

func (EnvVars) GetAppRootURL() string {
	return GetEnv(appRootURLVar, "http://127.0.0.1:8765/")
}

func (EnvVars) GetDataFolder() string {
	return GetEnv(folderEnvVar, "./data")
}

func (EnvVars) GetEnv() string {
	env := os.Getenv("ENV")
	if env == "" {
		return "DEV"
	}
	return env
}

func GetEnv(envVar, defaultValue string) string {
	value := os.Getenv(envVar)
	if value == "" {
		return defaultValue
	}
	return value
}
