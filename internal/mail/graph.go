package mail

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

// GraphOptions configures the Microsoft Graph sender.
type GraphOptions struct {
	TenantID     string
	ClientID     string
	ClientSecret string
	Sender       string // mailbox the mail is sent as, e.g. devis@example.com
	BaseURL      string // Graph endpoint override for tests
	TokenURL     string // token endpoint override for tests
	HTTPClient   *http.Client
}

// GraphSender sends mail through the Microsoft Graph sendMail endpoint,
// authenticating with the OAuth2 client-credentials flow. A 401 response
// triggers one forced token refresh and one retry; any further failure is
// returned.
type GraphSender struct {
	sender     string
	baseURL    string
	ccConfig   *clientcredentials.Config
	httpClient *http.Client

	mu     sync.Mutex
	source oauth2.TokenSource
}

// NewGraphSender builds the sender. The token is fetched lazily on first
// Send so construction never touches the network.
func NewGraphSender(opts GraphOptions) *GraphSender {
	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://graph.microsoft.com"
	}
	tokenURL := opts.TokenURL
	if tokenURL == "" {
		tokenURL = fmt.Sprintf("https://login.microsoftonline.com/%s/oauth2/v2.0/token", url.PathEscape(opts.TenantID))
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &GraphSender{
		sender:  opts.Sender,
		baseURL: baseURL,
		ccConfig: &clientcredentials.Config{
			ClientID:     opts.ClientID,
			ClientSecret: opts.ClientSecret,
			TokenURL:     tokenURL,
			Scopes:       []string{"https://graph.microsoft.com/.default"},
		},
		httpClient: httpClient,
	}
}

// Send posts the message to Graph. Graph replies 202 Accepted on success.
func (g *GraphSender) Send(ctx context.Context, msg Message) error {
	payload, err := json.Marshal(graphPayload(msg))
	if err != nil {
		return fmt.Errorf("mail: encode graph payload: %w", err)
	}
	sendURL := g.baseURL + "/v1.0/users/" + url.PathEscape(g.sender) + "/sendMail"

	status, body, err := g.post(ctx, sendURL, payload, false)
	if err != nil {
		return fmt.Errorf("mail: graph send to %s: %w", msg.To, err)
	}
	if status == http.StatusUnauthorized {
		// Token likely expired mid-lifetime; refresh once and retry.
		status, body, err = g.post(ctx, sendURL, payload, true)
		if err != nil {
			return fmt.Errorf("mail: graph send to %s (after refresh): %w", msg.To, err)
		}
	}
	if status < 200 || status > 299 {
		return fmt.Errorf("mail: graph send to %s: status=%d body=%s", msg.To, status, strings.TrimSpace(string(body)))
	}
	return nil
}

func (g *GraphSender) post(ctx context.Context, sendURL string, payload []byte, forceRefresh bool) (int, []byte, error) {
	token, err := g.token(ctx, forceRefresh)
	if err != nil {
		return 0, nil, fmt.Errorf("token: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, sendURL, bytes.NewReader(payload))
	if err != nil {
		return 0, nil, err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, nil, err
	}
	return resp.StatusCode, body, nil
}

// token returns a cached access token, minting a TokenSource on first use
// and replacing it when a refresh is forced.
func (g *GraphSender) token(ctx context.Context, force bool) (string, error) {
	g.mu.Lock()
	if force || g.source == nil {
		g.source = g.ccConfig.TokenSource(context.WithoutCancel(ctx))
	}
	source := g.source
	g.mu.Unlock()

	tok, err := source.Token()
	if err != nil {
		return "", err
	}
	return tok.AccessToken, nil
}

func graphPayload(msg Message) map[string]any {
	body := map[string]any{"contentType": "HTML", "content": msg.HTML}
	if msg.HTML == "" {
		body = map[string]any{"contentType": "Text", "content": msg.Text}
	}
	message := map[string]any{
		"subject":      msg.Subject,
		"body":         body,
		"toRecipients": []map[string]any{{"emailAddress": map[string]any{"address": msg.To}}},
	}
	if len(msg.Attachments) > 0 {
		var atts []map[string]any
		for _, a := range msg.Attachments {
			atts = append(atts, map[string]any{
				"@odata.type":  "#microsoft.graph.fileAttachment",
				"name":         a.Filename,
				"contentType":  a.ContentType,
				"contentBytes": base64.StdEncoding.EncodeToString(a.Data),
			})
		}
		message["attachments"] = atts
	}
	return map[string]any{"message": message, "saveToSentItems": true}
}
