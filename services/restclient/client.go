// Package restclient talks to the finadmin API. It supplies the relation
// editor of the console with its candidate list and persistence gateway.
package restclient

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/pkg/errors"
	"github.com/sendgrid/rest"

	"github.com/trezcool/finadmin/core/mfo"
	"github.com/trezcool/finadmin/core/relation"
	"github.com/trezcool/finadmin/core/satellite"
)

var ErrNotAuthenticated = errors.New("not logged in")

// APIError is a non-2xx response of the API.
type APIError struct {
	StatusCode int
	Message    string
	Fields     map[string]string // field validation errors
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%d: %s", e.StatusCode, e.Message)
	}
	msgs := make([]string, 0, len(e.Fields))
	for fld, msg := range e.Fields {
		msgs = append(msgs, fld+": "+msg)
	}
	sort.Strings(msgs)
	return fmt.Sprintf("%d: %s", e.StatusCode, strings.Join(msgs, "; "))
}

func newAPIError(res *rest.Response) *APIError {
	apiErr := &APIError{StatusCode: res.StatusCode}
	var body map[string]string
	if err := json.Unmarshal([]byte(res.Body), &body); err != nil {
		apiErr.Message = http.StatusText(res.StatusCode)
		return apiErr
	}
	if msg, ok := body["error"]; ok && len(body) == 1 {
		apiErr.Message = msg
	} else {
		apiErr.Fields = body
	}
	return apiErr
}

type Client struct {
	baseURL string
	rest    *rest.Client

	mu    sync.RWMutex
	token string
}

func NewClient(baseURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		rest:    &rest.Client{HTTPClient: httpClient},
	}
}

// SetToken sets the JWT sent with every request.
func (c *Client) SetToken(token string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.token = token
}

func (c *Client) authHeaders() (map[string]string, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.token == "" {
		return nil, ErrNotAuthenticated
	}
	return map[string]string{
		"Authorization": "Bearer " + c.token,
		"Content-Type":  "application/json",
	}, nil
}

// do sends the request and decodes a 2xx JSON response body into dest.
func (c *Client) do(ctx context.Context, req rest.Request, dest interface{}) error {
	req.BaseURL = c.baseURL + req.BaseURL
	hreq, err := rest.BuildRequestObject(req)
	if err != nil {
		return errors.Wrapf(err, "building %s %s", req.Method, req.BaseURL)
	}
	hres, err := c.rest.MakeRequest(hreq.WithContext(ctx))
	if err != nil {
		return errors.Wrapf(err, "%s %s", req.Method, req.BaseURL)
	}
	res, err := rest.BuildResponse(hres)
	if err != nil {
		return errors.Wrap(err, "reading response")
	}
	if res.StatusCode < http.StatusOK || res.StatusCode >= http.StatusMultipleChoices {
		return newAPIError(res)
	}
	if dest == nil {
		return nil
	}
	return errors.Wrap(json.Unmarshal([]byte(res.Body), dest), "decoding response")
}

func (c *Client) authed(ctx context.Context, req rest.Request, dest interface{}) error {
	headers, err := c.authHeaders()
	if err != nil {
		return err
	}
	req.Headers = headers
	return c.do(ctx, req, dest)
}

// Login authenticates and keeps the token for the next requests.
func (c *Client) Login(ctx context.Context, username, password string) error {
	body, err := json.Marshal(map[string]string{"username": username, "password": password})
	if err != nil {
		return err
	}
	var res struct {
		Token string `json:"token"`
	}
	err = c.do(ctx, rest.Request{
		Method:  rest.Post,
		BaseURL: "/v1/users/login",
		Headers: map[string]string{"Content-Type": "application/json"},
		Body:    body,
	}, &res)
	if err != nil {
		return err
	}
	c.SetToken(res.Token)
	return nil
}

type MFOFilter struct {
	Search   string
	IsActive *bool
}

func (c *Client) ListMFOs(ctx context.Context, filter MFOFilter) ([]mfo.MFO, error) {
	params := map[string]string{}
	if filter.Search != "" {
		params["search"] = filter.Search
	}
	if filter.IsActive != nil {
		params["is_active"] = strconv.FormatBool(*filter.IsActive)
	}
	mfos := make([]mfo.MFO, 0)
	err := c.authed(ctx, rest.Request{Method: rest.Get, BaseURL: "/v1/mfos", QueryParams: params}, &mfos)
	return mfos, err
}

// ListCandidates lists all MFOs as relation candidates, active or not.
func (c *Client) ListCandidates(ctx context.Context) ([]relation.Candidate, error) {
	mfos, err := c.ListMFOs(ctx, MFOFilter{})
	if err != nil {
		return nil, err
	}
	return mfo.ToCandidates(mfos), nil
}

var _ relation.Lister = (*Client)(nil)

func (c *Client) ListSatelliteKeys(ctx context.Context, search string) ([]satellite.Key, error) {
	params := map[string]string{}
	if search != "" {
		params["search"] = search
	}
	keys := make([]satellite.Key, 0)
	err := c.authed(ctx, rest.Request{Method: rest.Get, BaseURL: "/v1/satellite-keys", QueryParams: params}, &keys)
	return keys, err
}

func (c *Client) GetSatelliteKey(ctx context.Context, id int) (satellite.Key, error) {
	var key satellite.Key
	err := c.authed(ctx, rest.Request{Method: rest.Get, BaseURL: "/v1/satellite-keys/" + strconv.Itoa(id)}, &key)
	return key, err
}

// UpdateSatelliteMFOs sends a change-set of the key's MFOs and returns the updated key.
func (c *Client) UpdateSatelliteMFOs(ctx context.Context, id int, cs relation.ChangeSet) (satellite.Key, error) {
	body, err := json.Marshal(cs)
	if err != nil {
		return satellite.Key{}, err
	}
	var key satellite.Key
	err = c.authed(ctx, rest.Request{
		Method:  rest.Patch,
		BaseURL: "/v1/satellite-keys/" + strconv.Itoa(id) + "/mfos",
		Body:    body,
	}, &key)
	return key, err
}

// SatelliteGateway returns the gateway persisting MFO change-sets of the key.
// onSaved, if set, receives the updated key.
func (c *Client) SatelliteGateway(keyID int, onSaved func(satellite.Key)) relation.Gateway {
	return func(ctx context.Context, added, removed []int) error {
		key, err := c.UpdateSatelliteMFOs(ctx, keyID, relation.ChangeSet{Added: added, Removed: removed})
		if err != nil {
			return err
		}
		if onSaved != nil {
			onSaved(key)
		}
		return nil
	}
}
