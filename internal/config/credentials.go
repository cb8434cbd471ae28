package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/zalando/go-keyring"
)

var (
	keyringGet = keyring.Get
	keyringSet = keyring.Set
)

// LoadSheetsToken returns the bearer token for the Sheets API.
//
// Order of precedence:
// 1) SHEETS_TOKEN environment variable.
// 2) OS keyring item service/account.
func LoadSheetsToken(service, account string) (string, error) {
	if tok := strings.TrimSpace(os.Getenv("SHEETS_TOKEN")); tok != "" {
		return tok, nil
	}

	secret, err := keyringGet(service, account)
	if err != nil {
		return "", fmt.Errorf(
			"failed to read keyring item service=%q account=%q: %w",
			service,
			account,
			err,
		)
	}

	tok := strings.TrimSpace(secret)
	if tok == "" {
		return "", errors.New("sheets token is empty")
	}
	return tok, nil
}

// SaveSheetsToken stores the token in the OS keyring.
func SaveSheetsToken(service, account, token string) error {
	trimmed := strings.TrimSpace(token)
	if trimmed == "" {
		return errors.New("sheets token cannot be empty")
	}
	if err := keyringSet(service, account, trimmed); err != nil {
		return fmt.Errorf(
			"failed to store keyring item service=%q account=%q: %w",
			service,
			account,
			err,
		)
	}
	return nil
}
