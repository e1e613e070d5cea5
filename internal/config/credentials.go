package config

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
)

// Environment variables holding the portal credentials. They are the only
// supported credential source; credentials never live in the config file.
const (
	EnvEmail    = "APPTSHEET_EMAIL"
	EnvPassword = "APPTSHEET_PASSWORD"
)

// Credentials holds the portal login pair.
type Credentials struct {
	Email    string
	Password string
}

// LoadDotenv seeds the process environment from an optional .env file.
// A missing file is not an error; explicit environment variables always
// win over .env values.
func LoadDotenv(path string) {
	if path == "" {
		path = ".env"
	}
	// godotenv does not override variables that are already set.
	_ = godotenv.Load(path)
}

// CredentialsFromEnv reads the login pair from the environment. It only
// fails when a variable is missing, so callers that may not need to log
// in (session reuse) should defer calling it until a login is required.
func CredentialsFromEnv() (Credentials, error) {
	email := os.Getenv(EnvEmail)
	password := os.Getenv(EnvPassword)
	if email == "" || password == "" {
		return Credentials{}, fmt.Errorf("config: credentials not set (%s / %s)", EnvEmail, EnvPassword)
	}
	return Credentials{Email: email, Password: password}, nil
}
