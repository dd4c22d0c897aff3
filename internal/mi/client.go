// Package mi implements the MI transaction protocol: URL construction,
// the short-lived security-token cache, and typed record decoding.
package mi

import (
	"context"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/varnlund/gridlink/internal/config"
	"github.com/varnlund/gridlink/internal/observability"
	"github.com/varnlund/gridlink/internal/transport"
	"github.com/varnlund/gridlink/model"
)

// tokenMaxAge is how long an acquired security token stays usable.
const tokenMaxAge = 30 * time.Second

// csrfHeader carries the security token on transaction calls.
const csrfHeader = "fnd-csrf-token"

// defaultMaxRecords is the server default record cap.
const defaultMaxRecords = 100

// UserContextSource supplies the cached current company/division used when
// a request does not specify its own.
type UserContextSource interface {
	UserContext() *model.UserContext
}

// Client is the MI transaction client. It is safe for concurrent use; the
// security token is the only shared mutable state and is refreshed by a
// single in-flight routine at a time.
type Client struct {
	exec    transport.Executor
	baseURL string
	userCtx UserContextSource
	logger  *zap.Logger
	metrics *observability.Metrics

	mu          sync.Mutex
	token       string
	tokenAt     time.Time
	tokenStatus int
	refreshing  bool
	waiters     []chan error
}

// NewClient creates an MI client. userCtx, logger, and metrics may be nil.
func NewClient(cfg config.ERPConfig, exec transport.Executor, userCtx UserContextSource, logger *zap.Logger, metrics *observability.Metrics) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		exec:    exec,
		baseURL: strings.TrimRight(cfg.BaseURL, "/") + cfg.MIPath,
		userCtx: userCtx,
		logger:  logger,
		metrics: metrics,
	}
}

// Execute runs one MI transaction. Business errors in a well-formed reply
// are returned as an error alongside the decoded response; the caller
// still receives whatever records were decoded.
func (c *Client) Execute(ctx context.Context, req *model.MIRequest) (*model.MIResponse, error) {
	var details []model.FieldError
	if req == nil || req.Program == "" {
		details = append(details, model.FieldError{Field: "program", Message: "program is required"})
	}
	if req == nil || req.Transaction == "" {
		details = append(details, model.FieldError{Field: "transaction", Message: "transaction is required"})
	}
	if len(details) > 0 {
		return nil, model.NewValidationError(details...)
	}

	headers := map[string]string{"Accept": "application/json"}
	if !req.DisableCSRF {
		token, err := c.ensureToken(ctx)
		if err != nil {
			return nil, err
		}
		if token != "" {
			headers[csrfHeader] = token
		}
	}

	start := time.Now()
	httpResp, err := c.exec.Execute(ctx, &transport.Request{
		Method:  "GET",
		URL:     c.buildURL(req),
		Headers: headers,
	})
	if err != nil {
		c.metrics.RecordMIRequest(req.Program, req.Transaction, "error", time.Since(start))
		return nil, err
	}
	if !httpResp.IsSuccess() {
		c.metrics.RecordMIRequest(req.Program, req.Transaction, "error", time.Since(start))
		resp := &model.MIResponse{
			Program:      req.Program,
			Transaction:  req.Transaction,
			ErrorCode:    strconv.Itoa(httpResp.Status),
			ErrorMessage: "transaction failed with status " + strconv.Itoa(httpResp.Status),
		}
		return resp, model.NewTransportError(httpResp.Status, resp.ErrorMessage)
	}

	resp, err := decodeResponse(httpResp.Body, req)
	if err != nil {
		c.metrics.RecordMIRequest(req.Program, req.Transaction, "error", time.Since(start))
		return resp, err
	}
	resp.Program = req.Program
	resp.Transaction = req.Transaction

	if resp.HasError() {
		c.metrics.RecordMIRequest(req.Program, req.Transaction, "error", time.Since(start))
		return resp, model.NewBusinessError(resp.ErrorMessage, model.FieldError{
			Field: resp.ErrorField,
			Code:  resp.ErrorCode,
		})
	}

	c.metrics.RecordMIRequest(req.Program, req.Transaction, "ok", time.Since(start))
	return resp, nil
}

// buildURL renders the transaction address:
//
//	{base}/execute/{program}/{transaction};metadata=...;maxrecs=...;
//	excludempty=...[;returncols=...][;cono=...[;divi=...]]?FIELD=v&..&_rid=...
func (c *Client) buildURL(req *model.MIRequest) string {
	var b strings.Builder
	b.WriteString(c.baseURL)
	b.WriteString("/execute/")
	b.WriteString(url.PathEscape(req.Program))
	b.WriteString("/")
	b.WriteString(url.PathEscape(req.Transaction))

	b.WriteString(";metadata=")
	b.WriteString(strconv.FormatBool(req.IncludeMetadata || req.TypedOutput))

	maxRecs := req.MaxReturnedRecords
	switch {
	case maxRecs == 0:
		maxRecs = defaultMaxRecords
	case maxRecs < 0:
		// Negative means unbounded; the server spells that 0.
		maxRecs = 0
	}
	b.WriteString(";maxrecs=")
	b.WriteString(strconv.Itoa(maxRecs))

	b.WriteString(";excludempty=")
	b.WriteString(strconv.FormatBool(!req.IncludeEmptyValues))

	if len(req.OutputFields) > 0 {
		b.WriteString(";returncols=")
		b.WriteString(url.PathEscape(strings.Join(req.OutputFields, ",")))
	}

	cono, divi := c.companyDivision(req)
	if cono != "" {
		b.WriteString(";cono=")
		b.WriteString(url.PathEscape(cono))
		if divi != "" {
			b.WriteString(";divi=")
			b.WriteString(url.PathEscape(divi))
		}
	}

	query := url.Values{}
	for name, value := range req.Record {
		query.Set(name, value)
	}
	query.Set("_rid", uuid.NewString())
	b.WriteString("?")
	b.WriteString(query.Encode())

	return b.String()
}

// companyDivision resolves the effective company/division: the request's
// own values first, the cached user context otherwise. Division is only
// meaningful when a company is present.
func (c *Client) companyDivision(req *model.MIRequest) (string, string) {
	cono, divi := req.Company, req.Division
	if cono == "" && c.userCtx != nil {
		if uc := c.userCtx.UserContext(); uc != nil {
			cono = uc.CurrentCompany
			if divi == "" {
				divi = uc.CurrentDivision
			}
		}
	}
	if cono == "" {
		return "", ""
	}
	return cono, divi
}
