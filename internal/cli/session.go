package cli

import (
	"context"
	"fmt"
	"strconv"

	"github.com/rs/zerolog/log"

	"github.com/classvsoftware/t3api-utils/pkg/auth"
	"github.com/classvsoftware/t3api-utils/pkg/client"
)

// newClient returns an authenticated client. A JWT wins over an API key,
// which wins over Metrc credentials.
func (a *app) newClient(ctx context.Context) (*client.Client, error) {
	cc := a.cfg.ClientConfig()
	if cc.Redis != nil {
		a.closers = append(a.closers, cc.Redis.Close)
	}

	switch {
	case a.jwt != "":
		return auth.NewJWTClient(cc, a.jwt)
	case a.apiKey != "":
		return auth.NewAPIKeyClient(ctx, cc, a.apiKey, a.stateCode)
	}

	creds, err := a.resolveCredentials()
	if err != nil {
		return nil, err
	}

	c, err := auth.NewCredentialsClient(ctx, cc, creds)
	if err != nil {
		return nil, err
	}
	a.offerToSave(creds)
	return c, nil
}

// resolveCredentials loads stored credentials and prompts for the rest.
func (a *app) resolveCredentials() (auth.Credentials, error) {
	creds, err := auth.LoadCredentials(a.cfg.EnvFile)
	if err != nil {
		return creds, err
	}

	if creds.Hostname == "" {
		if creds.Hostname, err = a.prompter.Prompt("Enter Metrc hostname (e.g., mo.metrc.com)"); err != nil {
			return creds, err
		}
	} else {
		log.Debug().Str("hostname", creds.Hostname).Msg("Using stored hostname")
	}
	if creds.Username == "" {
		if creds.Username, err = a.prompter.Prompt("Enter T3 API username"); err != nil {
			return creds, err
		}
	}
	if creds.Password == "" {
		if creds.Password, err = a.prompter.Secret("Enter T3 API password"); err != nil {
			return creds, err
		}
	}
	if creds.NeedsOTP() && creds.OTP == "" {
		if creds.OTP, err = a.prompter.Secret("Enter 6-digit T3 OTP"); err != nil {
			return creds, err
		}
	}
	if creds.NeedsEmail() && creds.Email == "" {
		if creds.Email, err = a.prompter.Prompt("Enter Metrc account email"); err != nil {
			return creds, err
		}
	}

	return creds, creds.Validate()
}

func (a *app) offerToSave(creds auth.Credentials) {
	if !auth.StoredDiffers(a.cfg.EnvFile, creds) {
		return
	}
	ok, err := a.prompter.Confirm(fmt.Sprintf("Save these credentials to %s?", a.cfg.EnvFile), false)
	if err != nil || !ok {
		return
	}
	if err := auth.SaveCredentials(a.cfg.EnvFile, creds); err != nil {
		log.Warn().Err(err).Msg("Failed to save credentials")
		return
	}
	log.Info().Str("path", a.cfg.EnvFile).Msg("Credentials saved")
}

// pickLicense returns the license numbered by the user's choice, or the only
// license when there is just one.
func (a *app) pickLicense(licenses []client.License) (client.License, error) {
	switch len(licenses) {
	case 0:
		return client.License{}, fmt.Errorf("no licenses available for this account")
	case 1:
		return licenses[0], nil
	}

	for i, l := range licenses {
		fmt.Fprintf(a.out, "  %d. %s (%s)\n", i+1, l.LicenseName, l.LicenseNumber)
	}
	for {
		answer, err := a.prompter.Prompt(fmt.Sprintf("Choose a license [1-%d]", len(licenses)))
		if err != nil {
			return client.License{}, err
		}
		n, err := strconv.Atoi(answer)
		if err == nil && n >= 1 && n <= len(licenses) {
			return licenses[n-1], nil
		}
		fmt.Fprintln(a.out, "Invalid choice, please try again.")
	}
}
