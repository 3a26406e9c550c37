package locator

import (
	"context"
	"io"
	"net"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/jlaffaye/ftp"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/auditecx/auditecx-cli/internal/model"
)

// FTPSource lists and downloads evidence documents from a remote FTP
// directory, for vendors that still drop scans on a transfer box.
type FTPSource struct {
	rawURL   string
	user     string
	password string
	timeout  time.Duration
}

// NewFTPSource creates a source for one ftp:// directory URL. Empty
// credentials fall back to anonymous login.
func NewFTPSource(rawURL, user, password string, timeout time.Duration) *FTPSource {
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	if user == "" {
		user = "anonymous"
		password = "anonymous@"
	}
	return &FTPSource{rawURL: rawURL, user: user, password: password, timeout: timeout}
}

func (s *FTPSource) Name() string { return "ftp:" + s.rawURL }

// parseFTPURL extracts host (with port) and directory path from an FTP URL.
func parseFTPURL(rawURL string) (host string, dir string, err error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", "", eris.Wrap(err, "parse ftp url")
	}
	if u.Scheme != "ftp" {
		return "", "", eris.Errorf("expected ftp scheme, got %q", u.Scheme)
	}

	host = u.Host
	if _, _, splitErr := net.SplitHostPort(host); splitErr != nil {
		host = net.JoinHostPort(host, "21")
	}

	dir = u.Path
	if dir == "" {
		dir = "/"
	}
	return host, dir, nil
}

// List connects, enumerates the remote directory, and downloads every
// .txt and .md entry through the same header parser the filesystem
// source uses.
func (s *FTPSource) List(ctx context.Context) ([]model.DocumentRecord, error) {
	host, dir, err := parseFTPURL(s.rawURL)
	if err != nil {
		return nil, err
	}

	zap.L().Debug("ftp: connecting", zap.String("host", host), zap.String("dir", dir))

	conn, err := ftp.Dial(host, ftp.DialWithTimeout(s.timeout), ftp.DialWithContext(ctx))
	if err != nil {
		return nil, eris.Wrap(err, "ftp dial")
	}
	defer conn.Quit()

	if err := conn.Login(s.user, s.password); err != nil {
		return nil, eris.Wrap(err, "ftp login")
	}

	entries, err := conn.List(dir)
	if err != nil {
		return nil, eris.Wrap(err, "ftp list")
	}

	var docs []model.DocumentRecord
	for _, entry := range entries {
		if entry.Type != ftp.EntryTypeFile || !isEvidenceFile(entry.Name) {
			continue
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		remote := path.Join(dir, entry.Name)
		resp, err := conn.Retr(remote)
		if err != nil {
			return nil, eris.Wrap(err, "ftp retrieve")
		}
		data, err := io.ReadAll(resp)
		closeErr := resp.Close()
		if err != nil {
			return nil, eris.Wrap(err, "ftp read")
		}
		if closeErr != nil {
			return nil, eris.Wrap(closeErr, "close ftp response")
		}
		doc := ParseDocument(entry.Name, string(data))
		doc.Path = "ftp://" + strings.TrimSuffix(host, ":21") + remote
		docs = append(docs, doc)
	}
	return docs, nil
}
