package secrets

import (
	"errors"
	"os"
	"strings"

	"github.com/zalando/go-keyring"
)

const (
	// KeyringService groups the engine's secrets in the OS keychain.
	KeyringService = "jobintel"

	// DefaultAccount holds the scrape API bearer token.
	DefaultAccount = "jobintel:scrape-api"

	// TokenEnv overrides the keychain when set.
	TokenEnv = "JOBINTEL_SCRAPE_TOKEN"
)

var ErrNoToken = errors.New("scrape token not found (set it in keychain or via " + TokenEnv + ")")

func account(a string) string {
	if strings.TrimSpace(a) == "" {
		return DefaultAccount
	}
	return a
}

// ScrapeToken looks in the environment first, then the keychain.
func ScrapeToken(keyringAccount string) (string, error) {
	if v := strings.TrimSpace(os.Getenv(TokenEnv)); v != "" {
		return v, nil
	}
	tok, err := keyring.Get(KeyringService, account(keyringAccount))
	if err == nil && strings.TrimSpace(tok) != "" {
		return tok, nil
	}
	return "", ErrNoToken
}

// TokenSource returns a func suitable for scrape.WithToken. Lookups happen
// per request so a token set over HTTP takes effect without a restart.
func TokenSource(keyringAccount string) func() string {
	return func() string {
		tok, _ := ScrapeToken(keyringAccount)
		return tok
	}
}

func SetScrapeToken(keyringAccount, token string) error {
	if strings.TrimSpace(token) == "" {
		return errors.New("token is empty")
	}
	return keyring.Set(KeyringService, account(keyringAccount), token)
}

func DeleteScrapeToken(keyringAccount string) error {
	err := keyring.Delete(KeyringService, account(keyringAccount))
	if errors.Is(err, keyring.ErrNotFound) {
		return nil
	}
	return err
}
