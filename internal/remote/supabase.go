package remote

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/supabase-community/postgrest-go"
	"github.com/supabase-community/supabase-go"

	"github.com/rudro-kalix/business-management/internal/ledger"
)

// batchFunction is the database function that applies a migration batch
// inside a single transaction. See migrations/remote_schema.sql.
const batchFunction = "ledger_batch_import"

// Client is the supabase-backed Backend. CRUD goes through PostgREST,
// authentication through GoTrue, and the atomic batch through an RPC so the
// whole batch commits in one database transaction.
type Client struct {
	logger *slog.Logger

	mu          sync.Mutex
	cfg         Config
	sb          *supabase.Client
	principal   *Principal
	accessToken string
	expiry      *time.Timer
	listeners   map[int]func(*Principal)
	nextID      int
}

var _ Backend = (*Client)(nil)

func NewClient(logger *slog.Logger) *Client {
	return &Client{
		logger:    logger,
		listeners: make(map[int]func(*Principal)),
	}
}

func (c *Client) Initialize(cfg Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	sb, err := supabase.NewClient(cfg.ProjectURL, cfg.APIKey, &supabase.ClientOptions{})
	if err != nil {
		return fmt.Errorf("%w: %v", ledger.ErrConfigInvalid, err)
	}

	c.mu.Lock()
	c.cfg = cfg
	c.sb = sb
	c.mu.Unlock()

	return nil
}

func (c *Client) Authenticate(ctx context.Context, creds Credentials) (*Principal, error) {
	c.mu.Lock()
	sb := c.sb
	c.mu.Unlock()

	if sb == nil {
		return nil, ledger.ErrNotConnected
	}

	session, err := sb.SignInWithEmailPassword(creds.Email, creds.Password)
	if err != nil {
		return nil, fmt.Errorf("authenticating: %w", err)
	}

	principal := &Principal{
		ID:    session.User.ID.String(),
		Email: session.User.Email,
	}

	c.mu.Lock()
	c.principal = principal
	c.accessToken = session.AccessToken
	c.scheduleExpiryLocked(session.AccessToken)
	c.mu.Unlock()

	c.notify(principal)

	return principal, nil
}

func (c *Client) SignOut(ctx context.Context) error {
	c.mu.Lock()
	sb := c.sb
	had := c.principal != nil
	c.principal = nil
	c.accessToken = ""

	if c.expiry != nil {
		c.expiry.Stop()
		c.expiry = nil
	}
	c.mu.Unlock()

	if !had {
		return nil
	}

	if sb != nil {
		// Best effort: the local principal is gone either way.
		if err := sb.Auth.Logout(); err != nil {
			c.logger.Warn("remote sign-out failed", "error", err)
		}
	}

	c.notify(nil)

	return nil
}

func (c *Client) Principal() *Principal {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.principal == nil {
		return nil
	}

	p := *c.principal

	return &p
}

// OnPrincipalChange registers a login/logout listener. Notifications are
// delivered from their own goroutine, independent of collection
// subscriptions.
func (c *Client) OnPrincipalChange(fn func(p *Principal)) func() {
	c.mu.Lock()
	defer c.mu.Unlock()

	id := c.nextID
	c.nextID++
	c.listeners[id] = fn

	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		delete(c.listeners, id)
	}
}

func (c *Client) notify(p *Principal) {
	c.mu.Lock()
	fns := make([]func(*Principal), 0, len(c.listeners))
	for _, fn := range c.listeners {
		fns = append(fns, fn)
	}
	c.mu.Unlock()

	go func() {
		for _, fn := range fns {
			fn(p)
		}
	}()
}

// scheduleExpiryLocked arms a timer off the access token's exp claim; an
// expired token means the principal is lost and listeners are told.
func (c *Client) scheduleExpiryLocked(accessToken string) {
	if c.expiry != nil {
		c.expiry.Stop()
		c.expiry = nil
	}

	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(accessToken, claims); err != nil {
		c.logger.Warn("could not parse access token expiry", "error", err)
		return
	}

	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return
	}

	c.expiry = time.AfterFunc(time.Until(exp.Time), func() {
		c.mu.Lock()
		c.principal = nil
		c.accessToken = ""
		c.mu.Unlock()

		c.logger.Info("session expired, principal lost")
		c.notify(nil)
	})
}

func (c *Client) client() (*supabase.Client, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.sb == nil {
		return nil, ledger.ErrNotConnected
	}

	return c.sb, nil
}

func (c *Client) List(ctx context.Context, collection, owner string, out any) error {
	sb, err := c.client()
	if err != nil {
		return err
	}

	data, _, err := sb.From(collection).
		Select("*", "", false).
		Eq("ownerId", owner).
		Order("date.desc", nil).
		Execute()
	if err != nil {
		return classify(fmt.Errorf("listing %s: %w", collection, err))
	}

	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("parsing %s: %w", collection, err)
	}

	return nil
}

func (c *Client) Add(ctx context.Context, collection string, record any) (string, error) {
	sb, err := c.client()
	if err != nil {
		return "", err
	}

	data, _, err := sb.From(collection).Insert(record, false, "", "", "").Execute()
	if err != nil {
		return "", classify(fmt.Errorf("adding to %s: %w", collection, err))
	}

	var created []struct {
		ID string `json:"id"`
	}

	if err := json.Unmarshal(data, &created); err != nil {
		return "", fmt.Errorf("parsing created record: %w", err)
	}

	if len(created) == 0 {
		return "", fmt.Errorf("adding to %s: backend returned no record", collection)
	}

	return created[0].ID, nil
}

func (c *Client) Update(ctx context.Context, collection, id string, record any) error {
	sb, err := c.client()
	if err != nil {
		return err
	}

	_, _, err = sb.From(collection).Update(record, "", "").Eq("id", id).Execute()
	if err != nil {
		return classify(fmt.Errorf("updating %s/%s: %w", collection, id, err))
	}

	return nil
}

func (c *Client) Delete(ctx context.Context, collection, id string) error {
	sb, err := c.client()
	if err != nil {
		return err
	}

	_, _, err = sb.From(collection).Delete("", "").Eq("id", id).Execute()
	if err != nil {
		return classify(fmt.Errorf("deleting %s/%s: %w", collection, id, err))
	}

	return nil
}

// BatchWrite groups the batch per collection and hands it to the database
// function, which inserts everything inside one transaction. The supabase
// wrapper hides its rest client's error state, so the RPC goes through a
// dedicated postgrest client.
func (c *Client) BatchWrite(ctx context.Context, batch []BatchOp) error {
	c.mu.Lock()
	cfg := c.cfg
	token := c.accessToken
	initialized := c.sb != nil
	c.mu.Unlock()

	if !initialized {
		return ledger.ErrNotConnected
	}

	grouped := make(map[string][]any)
	for _, op := range batch {
		grouped[op.Collection] = append(grouped[op.Collection], op.Record)
	}

	headers := map[string]string{"apikey": cfg.APIKey}
	if token != "" {
		headers["Authorization"] = "Bearer " + token
	}

	rest := postgrest.NewClient(cfg.ProjectURL+"/rest/v1", "", headers)

	res := rest.Rpc(batchFunction, "", map[string]any{"batch": grouped})
	if rest.ClientError != nil {
		return classify(fmt.Errorf("committing batch: %w", rest.ClientError))
	}

	// The rest client only reports transport failures; a server-side
	// rejection (blocked by access rules, missing function, constraint
	// violation) comes back as the response body.
	if err := rpcError(res); err != nil {
		return classify(fmt.Errorf("committing batch: %w", err))
	}

	return nil
}

// rpcError detects a PostgREST error payload in an RPC response. The batch
// function returns void, so any JSON object carrying a code or message is a
// rejection, not a result.
func rpcError(body string) error {
	body = strings.TrimSpace(body)
	if !strings.HasPrefix(body, "{") {
		return nil
	}

	var payload struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	}

	if err := json.Unmarshal([]byte(body), &payload); err != nil {
		return nil
	}

	if payload.Code == "" && payload.Message == "" {
		return nil
	}

	if payload.Code == "" {
		return errors.New(payload.Message)
	}

	return fmt.Errorf("%s (%s)", payload.Message, payload.Code)
}

// classify maps the backend's access-control rejections onto the error
// taxonomy; anything else passes through as a transport failure.
func classify(err error) error {
	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "permission denied") ||
		strings.Contains(msg, "row-level security") ||
		strings.Contains(msg, "42501") {
		return fmt.Errorf("%w: %v", ledger.ErrPermissionDenied, err)
	}

	return err
}
