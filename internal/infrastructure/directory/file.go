package directory

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"dirsync/internal/bootstrap/logging"
	"dirsync/internal/domain/identity"
	"dirsync/internal/errs"
	"dirsync/internal/ports"
)

type exportFile struct {
	Accounts []exportAccount `yaml:"accounts" toml:"accounts"`
}

type exportAccount struct {
	ID          string `yaml:"id" toml:"id"`
	Username    string `yaml:"username" toml:"username"`
	Email       string `yaml:"email" toml:"email"`
	DisplayName string `yaml:"display_name" toml:"display_name"`
	Company     string `yaml:"company" toml:"company"`
	Department  string `yaml:"department" toml:"department"`
}

// FileSource reads a static directory export. JSON is parsed as YAML.
type FileSource struct {
	path string
}

var _ ports.DirectorySource = (*FileSource)(nil)

func NewFileSource(path string) (*FileSource, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, errors.New("directory.file.path is required")
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml", ".json", ".toml":
	default:
		return nil, fmt.Errorf("unsupported directory export format %q", filepath.Ext(path))
	}
	return &FileSource{path: path}, nil
}

func (s *FileSource) ListAccounts(ctx context.Context) ([]identity.Account, error) {
	if ctx == nil {
		return nil, errors.New("context is required")
	}
	if err := ctx.Err(); err != nil {
		return nil, errs.Wrap(err, "check context")
	}

	raw, err := os.ReadFile(s.path)
	if err != nil {
		return nil, unavailable(err, "read %s", s.path)
	}

	export, err := parseExport(filepath.Ext(s.path), raw)
	if err != nil {
		return nil, errs.Wrapf(err, "parse %s", s.path)
	}

	accounts := make([]identity.Account, 0, len(export.Accounts))
	skipped := 0
	for _, item := range export.Accounts {
		id, err := identity.ParseID(item.ID)
		if err != nil {
			skipped++
			continue
		}
		account := identity.Account{
			ID:          id,
			Username:    item.Username,
			Email:       item.Email,
			DisplayName: item.DisplayName,
			Company:     item.Company,
			Department:  item.Department,
		}.Normalize()
		if !account.Valid() {
			skipped++
			continue
		}
		accounts = append(accounts, account)
	}

	logging.Info(logging.WithAttrs(ctx, slog.String("component", "directory.file")), "directory export loaded",
		slog.String("path", s.path),
		slog.Int("accounts", len(accounts)),
		slog.Int("skipped", skipped),
	)
	return accounts, nil
}

func parseExport(ext string, raw []byte) (exportFile, error) {
	var export exportFile
	switch strings.ToLower(ext) {
	case ".toml":
		if err := toml.Unmarshal(raw, &export); err != nil {
			return exportFile{}, err
		}
	default:
		if err := yaml.Unmarshal(raw, &export); err != nil {
			return exportFile{}, err
		}
	}
	return export, nil
}
