package config

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	maxRemoteMessage = 2 << 20
	fetchTimeout     = 10 * time.Second
)

// Loader resolves the entries of the system prompt and of a role. An entry
// is an http(s) URL, a file:// path or literal text.
type Loader struct {
	// Client fetches remote entries. Nil means http.DefaultClient.
	Client *http.Client
}

// Load returns the text msg stands for. Markdown files lose their YAML
// frontmatter.
func (l Loader) Load(ctx context.Context, msg string) (string, error) {
	if strings.HasPrefix(msg, "https://") || strings.HasPrefix(msg, "http://") {
		return l.fetch(ctx, msg)
	}
	if path, ok := strings.CutPrefix(msg, "file://"); ok {
		_, body, err := readRoleFile(path)
		return body, err
	}
	return msg, nil
}

func (l Loader) fetch(ctx context.Context, url string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, fetchTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("fetch %s: %w", url, err)
	}
	client := l.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch %s: %w", url, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("fetch %s: %s", url, resp.Status)
	}
	bts, err := io.ReadAll(io.LimitReader(resp.Body, maxRemoteMessage+1))
	if err != nil {
		return "", fmt.Errorf("fetch %s: %w", url, err)
	}
	if len(bts) > maxRemoteMessage {
		return "", fmt.Errorf("fetch %s: larger than %d bytes", url, maxRemoteMessage)
	}
	return string(bts), nil
}

// RoleMeta is the YAML frontmatter a markdown role file may open with.
type RoleMeta struct {
	Description string `yaml:"description"`
}

// SplitFrontmatter separates the YAML frontmatter of a markdown document from
// its body. Content without frontmatter is returned unchanged.
func SplitFrontmatter(content string) (RoleMeta, string, error) {
	var meta RoleMeta
	lines := strings.SplitAfter(content, "\n")
	if strings.TrimSpace(lines[0]) != "---" {
		return meta, content, nil
	}
	for i := 1; i < len(lines); i++ {
		if strings.TrimSpace(lines[i]) != "---" {
			continue
		}
		if err := yaml.Unmarshal([]byte(strings.Join(lines[1:i], "")), &meta); err != nil {
			return meta, "", fmt.Errorf("role frontmatter: %w", err)
		}
		return meta, strings.TrimLeft(strings.Join(lines[i+1:], ""), "\r\n"), nil
	}
	return meta, "", errors.New("role frontmatter: missing closing ---")
}

// RoleDescription returns the description set in the frontmatter of the
// role's first markdown file, if any.
func RoleDescription(cfg *Config, role string) string {
	for _, msg := range cfg.Roles[role] {
		path, ok := strings.CutPrefix(msg, "file://")
		if !ok {
			continue
		}
		if meta, _, err := readRoleFile(path); err == nil && meta.Description != "" {
			return meta.Description
		}
	}
	return ""
}

func readRoleFile(path string) (RoleMeta, string, error) {
	bts, err := os.ReadFile(path)
	if err != nil {
		return RoleMeta{}, "", fmt.Errorf("read role file: %w", err)
	}
	if !strings.EqualFold(filepath.Ext(path), ".md") {
		return RoleMeta{}, string(bts), nil
	}
	return SplitFrontmatter(string(bts))
}
