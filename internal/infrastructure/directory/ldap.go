package directory

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/url"
	"strings"
	"time"

	"github.com/go-ldap/ldap/v3"
	"github.com/google/uuid"

	"dirsync/internal/bootstrap/logging"
	"dirsync/internal/domain/identity"
	"dirsync/internal/errs"
	"dirsync/internal/ports"
)

const (
	DefaultUserFilter = "(&(objectCategory=person)(objectClass=user))"
	DefaultPageSize   = 1000
	DefaultTimeout    = 30 * time.Second
)

// LDAPAttributes maps account fields to directory attribute names.
type LDAPAttributes struct {
	ID          string
	Username    string
	Email       string
	DisplayName string
	Company     string
	Department  string
}

func DefaultLDAPAttributes() LDAPAttributes {
	return LDAPAttributes{
		ID:          "objectGUID",
		Username:    "sAMAccountName",
		Email:       "mail",
		DisplayName: "displayName",
		Company:     "company",
		Department:  "department",
	}
}

func (a LDAPAttributes) withDefaults() LDAPAttributes {
	defaults := DefaultLDAPAttributes()
	pick := func(value string, fallback string) string {
		if strings.TrimSpace(value) == "" {
			return fallback
		}
		return strings.TrimSpace(value)
	}
	return LDAPAttributes{
		ID:          pick(a.ID, defaults.ID),
		Username:    pick(a.Username, defaults.Username),
		Email:       pick(a.Email, defaults.Email),
		DisplayName: pick(a.DisplayName, defaults.DisplayName),
		Company:     pick(a.Company, defaults.Company),
		Department:  pick(a.Department, defaults.Department),
	}
}

func (a LDAPAttributes) list() []string {
	return []string{a.ID, a.Username, a.Email, a.DisplayName, a.Company, a.Department}
}

type LDAPOptions struct {
	URL                string
	BindDN             string
	BindPassword       string
	BaseDN             string
	Filter             string
	PageSize           uint32
	StartTLS           bool
	InsecureSkipVerify bool
	Timeout            time.Duration
	Attributes         LDAPAttributes
}

type ldapConn interface {
	SearchWithPaging(searchRequest *ldap.SearchRequest, pagingSize uint32) (*ldap.SearchResult, error)
	Close() error
}

// LDAPSource lists user accounts with a paged subtree search.
type LDAPSource struct {
	opts LDAPOptions
	dial func(ctx context.Context, opts LDAPOptions) (ldapConn, error)
}

var _ ports.DirectorySource = (*LDAPSource)(nil)

func NewLDAPSource(opts LDAPOptions) (*LDAPSource, error) {
	if strings.TrimSpace(opts.URL) == "" {
		return nil, errors.New("directory.ldap.url is required")
	}
	if strings.TrimSpace(opts.BaseDN) == "" {
		return nil, errors.New("directory.ldap.base_dn is required")
	}
	if strings.TrimSpace(opts.Filter) == "" {
		opts.Filter = DefaultUserFilter
	}
	if opts.PageSize == 0 {
		opts.PageSize = DefaultPageSize
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	opts.Attributes = opts.Attributes.withDefaults()

	return &LDAPSource{opts: opts, dial: dialLDAP}, nil
}

func (s *LDAPSource) ListAccounts(ctx context.Context) ([]identity.Account, error) {
	if ctx == nil {
		return nil, errors.New("context is required")
	}
	if err := ctx.Err(); err != nil {
		return nil, errs.Wrap(err, "check context")
	}

	logCtx := logging.WithComponent(ctx, "directory.ldap")

	conn, err := s.dial(ctx, s.opts)
	if err != nil {
		return nil, unavailable(err, "connect %s", s.opts.URL)
	}
	defer func() {
		if closeErr := conn.Close(); closeErr != nil {
			logging.Warn(logCtx, "close ldap connection failed", slog.Any("err", errs.Loggable(closeErr)))
		}
	}()

	request := ldap.NewSearchRequest(
		s.opts.BaseDN,
		ldap.ScopeWholeSubtree,
		ldap.NeverDerefAliases,
		0,
		0,
		false,
		s.opts.Filter,
		s.opts.Attributes.list(),
		nil,
	)

	result, err := conn.SearchWithPaging(request, s.opts.PageSize)
	if err != nil {
		return nil, unavailable(err, "search %s", s.opts.BaseDN)
	}
	if err := ctx.Err(); err != nil {
		return nil, errs.Wrap(err, "check context")
	}

	accounts := make([]identity.Account, 0, len(result.Entries))
	skipped := 0
	for _, entry := range result.Entries {
		account, ok := accountFromEntry(entry, s.opts.Attributes)
		if !ok {
			skipped++
			continue
		}
		accounts = append(accounts, account)
	}

	logging.Info(logCtx, "directory search completed",
		slog.String("base_dn", s.opts.BaseDN),
		slog.Int("entries", len(result.Entries)),
		slog.Int("accounts", len(accounts)),
		slog.Int("skipped", skipped),
	)
	return accounts, nil
}

func dialLDAP(ctx context.Context, opts LDAPOptions) (ldapConn, error) {
	tlsConfig := &tls.Config{InsecureSkipVerify: opts.InsecureSkipVerify}
	if parsed, err := url.Parse(opts.URL); err == nil {
		tlsConfig.ServerName = parsed.Hostname()
	}

	conn, err := ldap.DialURL(
		opts.URL,
		ldap.DialWithDialer(&net.Dialer{Timeout: opts.Timeout}),
		ldap.DialWithTLSConfig(tlsConfig),
	)
	if err != nil {
		return nil, err
	}
	conn.SetTimeout(opts.Timeout)

	if err := ctx.Err(); err != nil {
		_ = conn.Close()
		return nil, err
	}

	if opts.StartTLS {
		if err := conn.StartTLS(tlsConfig); err != nil {
			_ = conn.Close()
			return nil, errs.Wrap(err, "start tls")
		}
	}

	switch {
	case opts.BindDN == "":
	case opts.BindPassword == "":
		err = conn.UnauthenticatedBind(opts.BindDN)
	default:
		err = conn.Bind(opts.BindDN, opts.BindPassword)
	}
	if err != nil {
		_ = conn.Close()
		return nil, errs.Wrapf(err, "bind %s", opts.BindDN)
	}
	return conn, nil
}

func accountFromEntry(entry *ldap.Entry, attrs LDAPAttributes) (identity.Account, bool) {
	id, ok := entryID(entry, attrs.ID)
	if !ok {
		return identity.Account{}, false
	}

	account := identity.Account{
		ID:          id,
		Username:    entry.GetAttributeValue(attrs.Username),
		Email:       entry.GetAttributeValue(attrs.Email),
		DisplayName: entry.GetAttributeValue(attrs.DisplayName),
		Company:     entry.GetAttributeValue(attrs.Company),
		Department:  entry.GetAttributeValue(attrs.Department),
	}.Normalize()
	return account, account.Valid()
}

// entryID accepts the binary objectGUID form and, for directories that
// expose it as text, any form identity.ParseID understands.
func entryID(entry *ldap.Entry, attribute string) (uuid.UUID, bool) {
	raw := entry.GetRawAttributeValue(attribute)
	if len(raw) == 16 {
		id := DecodeObjectGUID(raw)
		return id, id != uuid.Nil
	}
	if len(raw) == 0 {
		return uuid.Nil, false
	}

	id, err := identity.ParseID(string(raw))
	if err != nil {
		return uuid.Nil, false
	}
	return id, true
}

// DecodeObjectGUID converts the Windows GUID byte layout (first three groups
// little-endian) into an RFC 4122 uuid.
func DecodeObjectGUID(b []byte) uuid.UUID {
	var id uuid.UUID
	if len(b) != 16 {
		return uuid.Nil
	}
	id[0], id[1], id[2], id[3] = b[3], b[2], b[1], b[0]
	id[4], id[5] = b[5], b[4]
	id[6], id[7] = b[7], b[6]
	copy(id[8:], b[8:])
	return id
}

func unavailable(err error, format string, args ...any) error {
	return fmt.Errorf("%w: %s: %w", ports.ErrDirectoryUnavailable, fmt.Sprintf(format, args...), err)
}
