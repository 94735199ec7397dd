package provider

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/caarlos0/go-shellwords"

	"github.com/dotcommander/unai/internal/errs"
)

const keyCmdTimeout = 30 * time.Second

// ResolveKey returns the credential for cfg. Sources are tried in order:
// api-key, api-key-env, api-key-cmd, then the vendor's default environment
// variable.
func ResolveKey(ctx context.Context, cfg Config, vendor Vendor) (string, error) {
	key := cfg.APIKey
	if key == "" && cfg.APIKeyEnv != "" {
		key = os.Getenv(cfg.APIKeyEnv)
	}
	if key == "" && cfg.APIKeyCmd != "" {
		out, err := runKeyCmd(ctx, cfg.APIKeyCmd)
		if err != nil {
			return "", err
		}
		key = out
	}
	if key == "" && vendor.KeyEnv != "" {
		key = os.Getenv(vendor.KeyEnv)
	}
	if key != "" || vendor.KeyOptional {
		return key, nil
	}

	env := vendor.KeyEnv
	if cfg.APIKeyEnv != "" {
		env = cfg.APIKeyEnv
	}
	reason := fmt.Sprintf("%s required; set %s or update unai.yml through unai config edit.", env, env)
	if env == "" {
		reason = fmt.Sprintf("An API key is required for %s; set api-key in unai.yml.", cfg.API)
	}
	e := errs.Error{Reason: reason, Err: errs.ErrAuth}
	if vendor.DocsURL != "" {
		e.Err = fmt.Errorf("%w: %w", errs.ErrAuth, errs.UserErrorf("You can grab one at %s", vendor.DocsURL))
	}
	return "", e
}

// KeySource names where ResolveKey reads the credential for cfg without
// resolving it: "api-key", "api-key-cmd", an environment variable prefixed
// with $, or "" when nothing is configured. The key itself is never returned.
func KeySource(cfg Config, vendor Vendor) string {
	switch {
	case cfg.APIKey != "":
		return "api-key"
	case cfg.APIKeyEnv != "" && os.Getenv(cfg.APIKeyEnv) != "":
		return "$" + cfg.APIKeyEnv
	case cfg.APIKeyCmd != "":
		return "api-key-cmd"
	case vendor.KeyEnv != "" && os.Getenv(vendor.KeyEnv) != "":
		return "$" + vendor.KeyEnv
	case vendor.KeyOptional:
		return "not required"
	}
	return ""
}

func runKeyCmd(ctx context.Context, line string) (string, error) {
	args, err := shellwords.Parse(line)
	if err != nil {
		return "", errs.Error{Err: err, Reason: "Failed to parse api-key-cmd."}
	}
	if len(args) == 0 {
		return "", errs.Error{Err: errs.ErrAuth, Reason: "api-key-cmd is empty."}
	}

	ctx, cancel := context.WithTimeout(ctx, keyCmdTimeout)
	defer cancel()
	// #nosec G204 -- api-key-cmd is explicitly configured by the local user.
	out, err := exec.CommandContext(ctx, args[0], args[1:]...).Output()
	if err != nil {
		return "", errs.Error{Err: err, Reason: "Cannot exec api-key-cmd."}
	}
	return strings.TrimSpace(string(out)), nil
}
