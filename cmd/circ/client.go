package main

import (
	"bytes"
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	jsoniter "github.com/json-iterator/go"

	"github.com/and161185/library-circulation/internal/convert"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// apiError is the error envelope returned by the server.
type apiError struct {
	StatusCode int    `json:"-"`
	Status     string `json:"status"`
	Code       string `json:"code"`
	Message    string `json:"message"`
}

func (e *apiError) Error() string {
	return fmt.Sprintf("http %d: %s: %s", e.StatusCode, e.Code, e.Message)
}

type envelope struct {
	Status string              `json:"status"`
	Data   jsoniter.RawMessage `json:"data"`
}

type client struct {
	base string
	http *http.Client
	now  func() time.Time
}

func loadTLS(caPath string, insecure bool) (*tls.Config, error) {
	if insecure {
		return &tls.Config{InsecureSkipVerify: true}, nil //nolint:gosec // dev only
	}
	if caPath == "" {
		return nil, nil
	}
	pem, err := os.ReadFile(caPath)
	if err != nil {
		return nil, err
	}
	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(pem) {
		return nil, errors.New("bad CA cert")
	}
	return &tls.Config{RootCAs: pool}, nil
}

func newClient(addr, caPath string, insecure bool) (*client, error) {
	tlsCfg, err := loadTLS(caPath, insecure)
	if err != nil {
		return nil, err
	}
	tr := http.DefaultTransport.(*http.Transport).Clone()
	if tlsCfg != nil {
		tr.TLSClientConfig = tlsCfg
	}
	return &client{
		base: strings.TrimRight(addr, "/"),
		http: &http.Client{Transport: tr, Timeout: 30 * time.Second},
		now:  time.Now,
	}, nil
}

// call sends in as JSON (when non-nil) and decodes the data field into out (when non-nil).
func (c *client) call(ctx context.Context, method, path, bearer string, in, out any) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.base+path, body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	if resp.StatusCode >= 400 {
		ae := &apiError{StatusCode: resp.StatusCode}
		if jerr := json.Unmarshal(raw, ae); jerr != nil || ae.Code == "" {
			ae.Code, ae.Message = "HTTP_ERROR", strings.TrimSpace(string(raw))
		}
		return ae
	}
	if out == nil || len(raw) == 0 {
		return nil
	}
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return json.Unmarshal(env.Data, out)
}

// session returns a usable access token, rotating the refresh token when the access token expired.
func (c *client) session(ctx context.Context) (string, error) {
	tf, err := loadTokens()
	if err != nil {
		return "", err
	}
	now := c.now()
	if tf.accessValid(now) {
		return tf.AccessToken, nil
	}
	if !tf.refreshValid(now) {
		return "", errLoginRequired
	}
	tok, err := c.refresh(ctx, tf.RefreshToken)
	if err != nil {
		return "", err
	}
	return tok.AccessToken, nil
}

func (c *client) refresh(ctx context.Context, refreshToken string) (convert.Tokens, error) {
	var tok convert.Tokens
	err := c.call(ctx, http.MethodPost, "/auth/refresh", "", convert.RefreshRequest{RefreshToken: refreshToken}, &tok)
	if err != nil {
		var ae *apiError
		if errors.As(err, &ae) && ae.StatusCode == http.StatusUnauthorized {
			_ = clearTokens()
			return convert.Tokens{}, errLoginRequired
		}
		return convert.Tokens{}, err
	}
	return tok, saveTokens(tok)
}

// authed is call with the current session's bearer token.
func (c *client) authed(ctx context.Context, method, path string, in, out any) error {
	bearer, err := c.session(ctx)
	if err != nil {
		return err
	}
	return c.call(ctx, method, path, bearer, in, out)
}
