package ingest

import (
	"context"
	"io"
	"net"
	"net/url"
	"os"
	"path"
	"strings"
	"time"

	"github.com/jlaffaye/ftp"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/veilletech/triage-cli/internal/model"
)

const ftpTimeout = 30 * time.Second

// loadFTP downloads the remote dataset to a temp file and parses it by the
// URL path's extension.
func loadFTP(ctx context.Context, rawURL string, opts Options) ([]model.Record, error) {
	host, creds, remotePath, err := parseFTPURL(rawURL)
	if err != nil {
		return nil, err
	}

	zap.L().Debug("ftp: downloading dataset",
		zap.String("host", host),
		zap.String("path", remotePath))

	conn, err := ftp.Dial(host, ftp.DialWithTimeout(ftpTimeout), ftp.DialWithContext(ctx))
	if err != nil {
		return nil, eris.Wrap(err, "ingest: ftp dial")
	}
	defer conn.Quit()

	if err := conn.Login(creds.user, creds.password); err != nil {
		return nil, eris.Wrap(err, "ingest: ftp login")
	}

	resp, err := conn.Retr(remotePath)
	if err != nil {
		return nil, eris.Wrap(err, "ingest: ftp retrieve")
	}
	defer resp.Close()

	tmp, err := os.CreateTemp("", "triage-dataset-*"+path.Ext(remotePath))
	if err != nil {
		return nil, eris.Wrap(err, "ingest: create temp file")
	}
	defer os.Remove(tmp.Name())

	if _, err := io.Copy(tmp, resp); err != nil {
		tmp.Close()
		return nil, eris.Wrap(err, "ingest: download dataset")
	}
	if err := tmp.Close(); err != nil {
		return nil, eris.Wrap(err, "ingest: flush temp file")
	}

	switch strings.ToLower(path.Ext(remotePath)) {
	case ".csv":
		f, err := os.Open(tmp.Name())
		if err != nil {
			return nil, eris.Wrap(err, "ingest: reopen download")
		}
		defer f.Close()
		return loadCSV(ctx, f, opts)
	case ".xlsx":
		return loadXLSX(ctx, tmp.Name(), opts)
	default:
		return nil, eris.Errorf("ingest: unsupported dataset format %q", path.Ext(remotePath))
	}
}

type ftpCreds struct {
	user     string
	password string
}

// parseFTPURL extracts host (with port), credentials and path from an FTP
// URL. Missing credentials fall back to anonymous.
func parseFTPURL(rawURL string) (string, ftpCreds, string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", ftpCreds{}, "", eris.Wrap(err, "ingest: parse ftp url")
	}
	if u.Scheme != "ftp" {
		return "", ftpCreds{}, "", eris.Errorf("ingest: expected ftp scheme, got %q", u.Scheme)
	}

	host := u.Host
	if _, _, splitErr := net.SplitHostPort(host); splitErr != nil {
		host = net.JoinHostPort(host, "21")
	}

	if u.Path == "" {
		return "", ftpCreds{}, "", eris.New("ingest: empty path in ftp url")
	}

	creds := ftpCreds{user: "anonymous", password: "anonymous@"}
	if u.User != nil {
		creds.user = u.User.Username()
		if pw, ok := u.User.Password(); ok {
			creds.password = pw
		}
	}

	return host, creds, u.Path, nil
}
