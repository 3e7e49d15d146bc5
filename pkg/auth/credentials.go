package auth

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"strings"

	"github.com/joho/godotenv"
)

// DefaultEnvFile is where credentials are saved between runs.
const DefaultEnvFile = ".t3.env"

// Environment keys read by LoadCredentials.
const (
	EnvHostname = "METRC_HOSTNAME"
	EnvUsername = "METRC_USERNAME"
	EnvPassword = "METRC_PASSWORD"
	EnvEmail    = "METRC_EMAIL"
	EnvOTP      = "METRC_OTP"
)

var (
	// OTPWhitelist lists Metrc hostnames that require a one-time password.
	OTPWhitelist = map[string]bool{"mi.metrc.com": true}

	// CredentialEmailWhitelist lists Metrc hostnames that require an email.
	CredentialEmailWhitelist = map[string]bool{"co.metrc.com": true}

	otpPattern = regexp.MustCompile(`^[0-9]{6}$`)
)

// Credentials identifies a Metrc user.
type Credentials struct {
	Hostname string
	Username string
	Password string
	OTP      string
	Email    string
}

// NeedsOTP reports whether the hostname requires a one-time password.
func (c Credentials) NeedsOTP() bool {
	return OTPWhitelist[strings.ToLower(c.Hostname)]
}

// NeedsEmail reports whether the hostname requires an email address.
func (c Credentials) NeedsEmail() bool {
	return CredentialEmailWhitelist[strings.ToLower(c.Hostname)]
}

// Missing returns the names of required fields that are empty.
func (c Credentials) Missing() []string {
	var missing []string
	if strings.TrimSpace(c.Hostname) == "" {
		missing = append(missing, "hostname")
	}
	if strings.TrimSpace(c.Username) == "" {
		missing = append(missing, "username")
	}
	if strings.TrimSpace(c.Password) == "" {
		missing = append(missing, "password")
	}
	if c.NeedsOTP() && c.OTP == "" {
		missing = append(missing, "otp")
	}
	if c.NeedsEmail() && c.Email == "" {
		missing = append(missing, "email")
	}
	return missing
}

// Validate checks that every required field is present and well formed.
func (c Credentials) Validate() error {
	if missing := c.Missing(); len(missing) > 0 {
		return &AuthenticationError{Reason: fmt.Sprintf("missing or empty credential: %s", strings.Join(missing, ", "))}
	}
	if c.OTP != "" && !otpPattern.MatchString(c.OTP) {
		return &AuthenticationError{Reason: "invalid OTP: must be 6 digits"}
	}
	return nil
}

// Merge fills empty fields of c from other.
func (c Credentials) Merge(other Credentials) Credentials {
	if c.Hostname == "" {
		c.Hostname = other.Hostname
	}
	if c.Username == "" {
		c.Username = other.Username
	}
	if c.Password == "" {
		c.Password = other.Password
	}
	if c.OTP == "" {
		c.OTP = other.OTP
	}
	if c.Email == "" {
		c.Email = other.Email
	}
	return c
}

// LoadCredentials reads credentials from the process environment, falling
// back to envFile for keys the environment does not set. A missing envFile
// is not an error.
func LoadCredentials(envFile string) (Credentials, error) {
	fileVals := map[string]string{}
	if envFile != "" {
		vals, err := godotenv.Read(envFile)
		switch {
		case err == nil:
			fileVals = vals
		case errors.Is(err, os.ErrNotExist):
		default:
			return Credentials{}, fmt.Errorf("read %s: %w", envFile, err)
		}
	}

	get := func(key string) string {
		if v := strings.TrimSpace(os.Getenv(key)); v != "" {
			return v
		}
		return strings.TrimSpace(fileVals[key])
	}

	return Credentials{
		Hostname: get(EnvHostname),
		Username: get(EnvUsername),
		Password: get(EnvPassword),
		OTP:      get(EnvOTP),
		Email:    get(EnvEmail),
	}, nil
}

// SaveCredentials writes hostname, username, password and email to envFile,
// keeping any other keys already in it. The OTP is never saved.
func SaveCredentials(envFile string, c Credentials) error {
	vals, err := godotenv.Read(envFile)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("read %s: %w", envFile, err)
		}
		vals = map[string]string{}
	}

	vals[EnvHostname] = c.Hostname
	vals[EnvUsername] = c.Username
	vals[EnvPassword] = c.Password
	if c.Email != "" {
		vals[EnvEmail] = c.Email
	}

	if err := godotenv.Write(vals, envFile); err != nil {
		return fmt.Errorf("write %s: %w", envFile, err)
	}
	return os.Chmod(envFile, 0o600)
}

// StoredDiffers reports whether envFile is missing or holds different
// hostname, username or password values than c.
func StoredDiffers(envFile string, c Credentials) bool {
	vals, err := godotenv.Read(envFile)
	if err != nil {
		return true
	}
	return vals[EnvHostname] != c.Hostname ||
		vals[EnvUsername] != c.Username ||
		vals[EnvPassword] != c.Password
}
