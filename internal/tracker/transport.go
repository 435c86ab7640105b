package tracker

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/thwithaphisek/student-behavior-api/pkg/config"
	appErrors "github.com/thwithaphisek/student-behavior-api/pkg/errors"
)

// Labels attached to every created issue. The pending label mirrors the
// initial workflow state; the category label marks it as a behavior record.
var issueLabels = []string{"behavior-record", "pending"}

// CallObserver receives timing for every upstream call the client makes.
// Satisfied by the metrics service.
type CallObserver interface {
	ObserveTrackerCall(operation string, duration time.Duration, err error)
}

// Operation labels reported to the observer.
const (
	opGraphQL     = "graphql"
	opCreateIssue = "create_issue"
)

// Client performs authenticated calls against the tracker's two API
// surfaces: REST for issue creation, GraphQL for everything project-scoped.
// Single attempt, fail fast; retry policy belongs to the calling UI.
type Client struct {
	cfg      config.TrackerConfig
	http     *http.Client
	logger   *zap.Logger
	observer CallObserver
}

// NewClient builds a tracker client. A nil httpClient falls back to a
// default with a conservative timeout; a nil observer disables
// instrumentation.
func NewClient(cfg config.TrackerConfig, httpClient *http.Client, logger *zap.Logger, observer CallObserver) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{cfg: cfg, http: httpClient, logger: logger, observer: observer}
}

func (c *Client) observe(operation string, start time.Time, err error) {
	if c.observer != nil {
		c.observer.ObserveTrackerCall(operation, time.Since(start), err)
	}
}

// ProjectID exposes the configured Projects v2 node ID.
func (c *Client) ProjectID() string {
	return c.cfg.ProjectID
}

type graphqlRequest struct {
	Query     string                 `json:"query"`
	Variables map[string]interface{} `json:"variables"`
}

type graphqlResponse struct {
	Data   json.RawMessage `json:"data"`
	Errors []struct {
		Message string `json:"message"`
	} `json:"errors"`
}

// GraphQL posts one query or mutation and unmarshals the data payload into
// dest when dest is non-nil. An errors array in the response surfaces as
// ErrTrackerAPI carrying the first reported message.
func (c *Client) GraphQL(ctx context.Context, query string, variables map[string]interface{}, dest interface{}) error {
	start := time.Now()
	err := c.graphql(ctx, query, variables, dest)
	c.observe(opGraphQL, start, err)
	return err
}

func (c *Client) graphql(ctx context.Context, query string, variables map[string]interface{}, dest interface{}) error {
	payload, err := json.Marshal(graphqlRequest{Query: query, Variables: variables})
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "encode graphql request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.GraphQLURL, bytes.NewReader(payload))
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "build graphql request")
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.Token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrTrackerUnavailable.Code, appErrors.ErrTrackerUnavailable.Status, "graphql request failed")
	}
	defer resp.Body.Close() //nolint:errcheck

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrTrackerUnavailable.Code, appErrors.ErrTrackerUnavailable.Status, "read graphql response")
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return appErrors.Clone(appErrors.ErrTrackerUnavailable, fmt.Sprintf("graphql request returned status %d", resp.StatusCode))
	}

	var parsed graphqlResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return appErrors.Wrap(err, appErrors.ErrTrackerUnavailable.Code, appErrors.ErrTrackerUnavailable.Status, "decode graphql response")
	}
	if len(parsed.Errors) > 0 {
		return appErrors.Clone(appErrors.ErrTrackerAPI, parsed.Errors[0].Message)
	}

	if dest != nil {
		if err := json.Unmarshal(parsed.Data, dest); err != nil {
			return appErrors.Wrap(err, appErrors.ErrTrackerUnavailable.Code, appErrors.ErrTrackerUnavailable.Status, "decode graphql data")
		}
	}
	return nil
}

// Document is the issue-side linkage of a created record.
type Document struct {
	ID     int64  `json:"id"`
	Number int    `json:"number"`
	NodeID string `json:"node_id"`
	URL    string `json:"html_url"`
}

// CreateIssue creates the record's issue with the two fixed workflow labels.
func (c *Client) CreateIssue(ctx context.Context, title, body string) (*Document, error) {
	start := time.Now()
	doc, err := c.createIssue(ctx, title, body)
	c.observe(opCreateIssue, start, err)
	return doc, err
}

func (c *Client) createIssue(ctx context.Context, title, body string) (*Document, error) {
	url := fmt.Sprintf("%s/repos/%s/%s/issues", c.cfg.APIBase, c.cfg.Owner, c.cfg.Repo)

	payload, err := json.Marshal(map[string]interface{}{
		"title":  title,
		"body":   body,
		"labels": issueLabels,
	})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "encode issue payload")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "build issue request")
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.Token)
	req.Header.Set("Accept", "application/vnd.github.v3+json")
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrTrackerUnavailable.Code, appErrors.ErrTrackerUnavailable.Status, "issue request failed")
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		c.logger.Warn("issue creation rejected",
			zap.Int("status", resp.StatusCode),
			zap.String("repo", c.cfg.Owner+"/"+c.cfg.Repo),
		)
		return nil, appErrors.Clone(appErrors.ErrTrackerUnavailable, fmt.Sprintf("issue creation returned status %d", resp.StatusCode))
	}

	var doc Document
	if err := json.NewDecoder(resp.Body).Decode(&doc); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrTrackerUnavailable.Code, appErrors.ErrTrackerUnavailable.Status, "decode issue response")
	}
	return &doc, nil
}
