package directory

import (
	"context"
	"crypto/tls"
	"fmt"
	"log/slog"
	"net"
	"net/url"
	"time"

	"github.com/go-ldap/ldap/v3"

	"github.com/hitoshi/cleanupusers/internal/model"
)

// LDAPConfig はディレクトリ接続と検索の設定。
type LDAPConfig struct {
	HostURL      string
	Version      int
	StartTLS     bool
	BindDN       string
	BindPassword string
	// Contexts は検索ベースDNの一覧。すべてのベースの結果を1つの集合にまとめる。
	Contexts []string
	Filter   string
	// Attribute はプリンシパル名として扱う属性（デフォルト: cn）。
	Attribute string
	PageSize  uint32
	Timeout   time.Duration
}

// conn はLDAPSourceが必要とする接続操作。テスト時にフェイクへ差し替える。
type conn interface {
	StartTLS(config *tls.Config) error
	Bind(username, password string) error
	UnauthenticatedBind(username string) error
	SearchWithPaging(req *ldap.SearchRequest, pagingSize uint32) (*ldap.SearchResult, error)
	Close()
}

type dialFunc func(hostURL string, timeout time.Duration) (conn, error)

// ldapConn は *ldap.Conn を conn に適合させる。
type ldapConn struct {
	*ldap.Conn
}

func (c ldapConn) Close() {
	c.Conn.Close()
}

func dialLDAP(hostURL string, timeout time.Duration) (conn, error) {
	c, err := ldap.DialURL(hostURL, ldap.DialWithDialer(&net.Dialer{Timeout: timeout}))
	if err != nil {
		return nil, err
	}
	if timeout > 0 {
		c.SetTimeout(timeout)
	}
	return ldapConn{Conn: c}, nil
}

// LDAPSource はLDAPサーバーを検索して LookupSet を構築する Source。
// 接続・バインド・検索のいずれかが失敗した場合はエラーを返し、部分的な集合は返さない。
// リトライは行わない。
type LDAPSource struct {
	cfg    LDAPConfig
	dial   dialFunc
	logger *slog.Logger
}

// NewLDAPSource は設定を検証して LDAPSource を生成する。
// プロトコルバージョンは3のみをサポートする。
func NewLDAPSource(cfg LDAPConfig, logger *slog.Logger) (*LDAPSource, error) {
	if cfg.HostURL == "" {
		return nil, fmt.Errorf("ldap host url is required")
	}
	if cfg.Version == 0 {
		cfg.Version = 3
	}
	if cfg.Version != 3 {
		return nil, fmt.Errorf("unsupported ldap protocol version %d (only 3 is supported)", cfg.Version)
	}
	if len(cfg.Contexts) == 0 {
		return nil, fmt.Errorf("at least one ldap search context is required")
	}
	if cfg.Filter == "" {
		cfg.Filter = "(cn=*)"
	}
	if cfg.Attribute == "" {
		cfg.Attribute = "cn"
	}
	if cfg.PageSize == 0 {
		cfg.PageSize = 500
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &LDAPSource{cfg: cfg, dial: dialLDAP, logger: logger}, nil
}

// Fetch はディレクトリへ接続し、全検索ベースの属性値を LookupSet にまとめて返す。
func (s *LDAPSource) Fetch(ctx context.Context) (LookupSet, error) {
	start := time.Now()

	if err := ctx.Err(); err != nil {
		return LookupSet{}, err
	}

	c, err := s.dial(s.cfg.HostURL, s.cfg.Timeout)
	if err != nil {
		return LookupSet{}, fmt.Errorf("%w: connect %s: %w", model.ErrDirectoryUnavailable, s.cfg.HostURL, err)
	}
	defer c.Close()

	if s.cfg.StartTLS {
		if err := c.StartTLS(&tls.Config{ServerName: hostname(s.cfg.HostURL)}); err != nil {
			return LookupSet{}, fmt.Errorf("%w: starttls %s: %w", model.ErrDirectoryUnavailable, s.cfg.HostURL, err)
		}
	}

	if s.cfg.BindDN == "" {
		err = c.UnauthenticatedBind("")
	} else {
		err = c.Bind(s.cfg.BindDN, s.cfg.BindPassword)
	}
	if err != nil {
		return LookupSet{}, fmt.Errorf("%w: bind as %q: %w", model.ErrBindRejected, s.cfg.BindDN, err)
	}
	s.logger.Info("ldap bind successful",
		slog.String("host_url", s.cfg.HostURL),
		slog.String("bind_dn", s.cfg.BindDN),
	)

	var names []string
	for _, base := range s.cfg.Contexts {
		if err := ctx.Err(); err != nil {
			return LookupSet{}, err
		}

		req := ldap.NewSearchRequest(
			base,
			ldap.ScopeWholeSubtree,
			ldap.NeverDerefAliases,
			0, 0, false,
			s.cfg.Filter,
			[]string{s.cfg.Attribute},
			nil,
		)
		res, err := c.SearchWithPaging(req, s.cfg.PageSize)
		if err != nil {
			return LookupSet{}, fmt.Errorf("%w: base %q filter %q: %w", model.ErrSearchFailed, base, s.cfg.Filter, err)
		}
		for _, entry := range res.Entries {
			names = append(names, entry.GetAttributeValues(s.cfg.Attribute)...)
		}
	}

	set := NewLookupSet(names...)
	s.logger.Info("ldap server sent users",
		slog.Int("principal_count", set.Len()),
		slog.Int("context_count", len(s.cfg.Contexts)),
		slog.Float64("duration_ms", float64(time.Since(start).Milliseconds())),
	)
	return set, nil
}

func hostname(hostURL string) string {
	u, err := url.Parse(hostURL)
	if err != nil {
		return ""
	}
	return u.Hostname()
}

// compile-time interface check
var (
	_ Source = (*LDAPSource)(nil)
	_ Source = StaticSource{}
)
