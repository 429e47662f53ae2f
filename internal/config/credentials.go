package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/spf13/viper"
)

// Credentials are the access keys found in the [AWS] section of the
// credentials file.
type Credentials struct {
	AccessKeyID     string
	SecretAccessKey string
}

// LoadCredentials reads an INI credentials file. A missing file yields
// empty credentials.
func LoadCredentials(path string) (Credentials, error) {
	var creds Credentials
	path = strings.TrimSpace(path)
	if path == "" {
		return creds, nil
	}

	v, err := newINIViper()
	if err != nil {
		return creds, fmt.Errorf("ini codec: %w", err)
	}
	v.SetConfigFile(path)
	v.SetConfigType("ini")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) || errors.Is(err, fs.ErrNotExist) {
			return creds, nil
		}
		return creds, fmt.Errorf("read credentials %s: %w", path, err)
	}

	// viper lower-cases keys
	creds.AccessKeyID = strings.TrimSpace(v.GetString("aws.aws_access_key_id"))
	creds.SecretAccessKey = strings.TrimSpace(v.GetString("aws.aws_secret_access_key"))
	return creds, nil
}
