package qualitygate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"golang.org/x/oauth2"
)

const maxBodySize = 10 << 20

// Credentials is the single, already validated authentication source
// attached to every request. A zero value sends no Authorization header.
type Credentials struct {
	Token    string
	Username string
	Password string
}

func (c Credentials) IsZero() bool {
	return c.Token == "" && c.Username == "" && c.Password == ""
}

// Task is the compute engine task as reported by api/ce/task.
type Task struct {
	ID         string `json:"id"`
	AnalysisID string `json:"analysisId,omitempty"`
	Status     string `json:"status"`
}

const (
	TaskPending    = "PENDING"
	TaskInProgress = "IN_PROGRESS"
)

// Terminal reports whether the server has finished with the task, whatever
// the outcome.
func (t Task) Terminal() bool {
	return t.Status != TaskPending && t.Status != TaskInProgress
}

// ProjectStatus is the quality gate verdict. Fields other than Status and
// Conditions are kept as the server sent them.
type ProjectStatus struct {
	Status     string                     `json:"status"`
	Conditions []Condition                `json:"conditions"`
	Extra      map[string]json.RawMessage `json:"-"`
}

const StatusOK = "OK"

func (p ProjectStatus) Passed() bool {
	return p.Status == StatusOK
}

// Condition is one evaluated gate condition. Unknown fields such as
// periodIndex or warningThreshold are kept in Extra.
type Condition struct {
	Status         string                     `json:"status"`
	MetricKey      string                     `json:"metricKey"`
	Comparator     string                     `json:"comparator,omitempty"`
	ErrorThreshold string                     `json:"errorThreshold,omitempty"`
	ActualValue    string                     `json:"actualValue,omitempty"`
	Extra          map[string]json.RawMessage `json:"-"`
}

func (p *ProjectStatus) UnmarshalJSON(data []byte) error {
	type plain ProjectStatus
	var v plain
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	extra, err := unknownFields(data, "status", "conditions")
	if err != nil {
		return err
	}
	v.Extra = extra
	*p = ProjectStatus(v)
	return nil
}

// MarshalJSON writes conditions only when the server sent them, an empty
// list included.
func (p ProjectStatus) MarshalJSON() ([]byte, error) {
	out := withExtra(p.Extra, 2)
	out["status"] = p.Status
	if p.Conditions != nil {
		out["conditions"] = p.Conditions
	}
	return json.Marshal(out)
}

func (c *Condition) UnmarshalJSON(data []byte) error {
	type plain Condition
	var v plain
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	extra, err := unknownFields(data, "status", "metricKey", "comparator", "errorThreshold", "actualValue")
	if err != nil {
		return err
	}
	v.Extra = extra
	*c = Condition(v)
	return nil
}

func (c Condition) MarshalJSON() ([]byte, error) {
	type plain Condition
	known, err := json.Marshal(plain(c))
	if err != nil {
		return nil, err
	}
	if len(c.Extra) == 0 {
		return known, nil
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(known, &fields); err != nil {
		return nil, err
	}
	out := withExtra(c.Extra, len(fields))
	for k, v := range fields {
		out[k] = v
	}
	return json.Marshal(out)
}

// unknownFields returns the members of the JSON object data not named in
// known, or nil when there are none.
func unknownFields(data []byte, known ...string) (map[string]json.RawMessage, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, err
	}
	for _, k := range known {
		delete(raw, k)
	}
	if len(raw) == 0 {
		return nil, nil
	}
	return raw, nil
}

func withExtra(extra map[string]json.RawMessage, n int) map[string]any {
	out := make(map[string]any, len(extra)+n)
	for k, v := range extra {
		out[k] = v
	}
	return out
}

type apiError struct {
	Msg string `json:"msg"`
}

type taskResponse struct {
	Task   *Task      `json:"task"`
	Errors []apiError `json:"errors"`
}

type projectStatusResponse struct {
	ProjectStatus *ProjectStatus `json:"projectStatus"`
	Errors        []apiError     `json:"errors"`
}

// Client issues authenticated GET requests against the server web API.
type Client struct {
	http *http.Client
}

// NewClient returns a client whose requests carry creds. A token is sent as
// a bearer token, a username/password pair as basic auth.
func NewClient(ctx context.Context, creds Credentials) *Client {
	var hc *http.Client
	switch {
	case creds.Token != "":
		hc = oauth2.NewClient(ctx, oauth2.StaticTokenSource(&oauth2.Token{
			AccessToken: creds.Token,
			TokenType:   "Bearer",
		}))
	case creds.Username != "":
		hc = &http.Client{Transport: &basicAuthTransport{
			username: creds.Username,
			password: creds.Password,
			base:     http.DefaultTransport,
		}}
	default:
		hc = &http.Client{}
	}
	return &Client{http: hc}
}

// Task fetches the compute engine task behind ceTaskURL.
func (c *Client) Task(ctx context.Context, ceTaskURL string) (Task, error) {
	var resp taskResponse
	if err := c.getJSON(ctx, ceTaskURL, &resp); err != nil {
		return Task{}, err
	}
	if len(resp.Errors) > 0 {
		return Task{}, &RemoteAPIError{Msg: resp.Errors[0].Msg}
	}
	if resp.Task == nil {
		return Task{}, &TransportError{URL: ceTaskURL, Err: errors.New("response has no task")}
	}
	return *resp.Task, nil
}

// ProjectStatus fetches the quality gate verdict from qualityGateURL.
func (c *Client) ProjectStatus(ctx context.Context, qualityGateURL string) (*ProjectStatus, error) {
	var resp projectStatusResponse
	if err := c.getJSON(ctx, qualityGateURL, &resp); err != nil {
		return nil, err
	}
	if len(resp.Errors) > 0 {
		return nil, &RemoteAPIError{Msg: resp.Errors[0].Msg}
	}
	if resp.ProjectStatus == nil {
		return nil, &TransportError{URL: qualityGateURL, Err: errors.New("response has no projectStatus")}
	}
	return resp.ProjectStatus, nil
}

// getJSON decodes the body whatever the status code: the API reports
// failures as a JSON errors list on 4xx answers.
func (c *Client) getJSON(ctx context.Context, url string, v any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return &TransportError{URL: url, Err: err}
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return &TransportError{URL: url, Err: err}
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return &TransportError{URL: url, Err: err}
	}
	if err := json.Unmarshal(body, v); err != nil {
		return &TransportError{URL: url, Err: fmt.Errorf("status %d: decoding json response failed: %w", resp.StatusCode, err)}
	}
	return nil
}

type basicAuthTransport struct {
	username string
	password string
	base     http.RoundTripper
}

func (t *basicAuthTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	r := req.Clone(req.Context())
	r.SetBasicAuth(t.username, t.password)
	return t.base.RoundTrip(r)
}
