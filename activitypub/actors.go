package activitypub

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/socialdistance/socialdistance/domain"
	"github.com/socialdistance/socialdistance/util"
)

const maxRemoteBody = 1 << 20

// Client talks to other servers. Requests to configured peer nodes carry their basic
// auth credentials.
type Client struct {
	http *http.Client
	conf *util.AppConfig
}

func NewClient(conf *util.AppConfig, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{http: &http.Client{Timeout: timeout}, conf: conf}
}

func (c *Client) userAgent() string {
	return util.GetNameAndVersion()
}

func (c *Client) authorize(req *http.Request) {
	if c.conf == nil {
		return
	}
	if node, ok := c.conf.NodeFor(req.URL.String()); ok {
		req.SetBasicAuth(node.Username, node.Password)
	}
}

// FetchAuthor fetches a remote author document and validates it.
func (c *Client) FetchAuthor(ctx context.Context, authorURL string) (*AuthorObject, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, authorURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent())
	c.authorize(req)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("author fetch failed with status: %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxRemoteBody))
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	var author AuthorObject
	if err := json.Unmarshal(body, &author); err != nil {
		return nil, fmt.Errorf("failed to parse author JSON: %w", err)
	}
	if err := author.Validate(); err != nil {
		return nil, err
	}
	want := domain.NormalizeURL(authorURL)
	for _, got := range []string{author.ID, author.URL} {
		if got != "" && domain.NormalizeURL(got) != want {
			return nil, fmt.Errorf("author document at %s identifies as %s", want, got)
		}
	}
	if author.URL == "" {
		author.URL = author.ID
	}
	if author.Host == "" {
		author.Host, _ = domain.HostOf(author.URL)
	}
	return &author, nil
}

// Deliver POSTs a JSON payload to an inbox, signing it when a key is given.
func (c *Client) Deliver(ctx context.Context, inboxURL string, payload []byte, signer *Signer) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, inboxURL, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent())
	req.Header.Set("Date", time.Now().UTC().Format(http.TimeFormat))

	if signer != nil {
		if err := SignRequest(req, signer.Key, signer.KeyID, payload); err != nil {
			return fmt.Errorf("failed to sign request: %w", err)
		}
	}
	c.authorize(req)

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, maxRemoteBody))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("remote server returned status: %d", resp.StatusCode)
	}
	return nil
}

// RemoteStub builds the minimal author object for a URL that could not be fetched.
func RemoteStub(authorURL string) *AuthorObject {
	authorURL = domain.NormalizeURL(authorURL)
	stub := StubAuthor(authorURL)
	if i := strings.LastIndex(authorURL, "/"); i >= 0 {
		stub.DisplayName = authorURL[i+1:]
	}
	if len([]rune(stub.DisplayName)) > domain.MaxDisplayNameLength {
		stub.DisplayName = string([]rune(stub.DisplayName)[:domain.MaxDisplayNameLength])
	}
	return stub
}
