package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/me/shennong/internal/schema"
	"github.com/me/shennong/pkg/model"
)

// TempCredentials fetches short-lived object-store credentials.
func (c *Client) TempCredentials(ctx context.Context) (model.TempCredentials, error) {
	var resp struct {
		Credentials model.TempCredentials `json:"Credentials"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/temp-creds", nil, nil, &resp); err != nil {
		return model.TempCredentials{}, fmt.Errorf("temp credentials: %w", err)
	}
	if resp.Credentials.AccessKeyID == "" {
		return model.TempCredentials{}, fmt.Errorf("temp credentials: response has no access key")
	}
	return resp.Credentials, nil
}

// SubmitJob queues a job. Validation problems come back as a 422
// *model.APIError with one FieldError per field.
func (c *Client) SubmitJob(ctx context.Context, cfg model.JobConfig) error {
	if err := c.do(ctx, http.MethodPost, "/api/shennong-job", nil, cfg, nil); err != nil {
		return fmt.Errorf("submit job: %w", err)
	}
	return nil
}

// SchemaBytes downloads the raw processor schema document.
func (c *Client) SchemaBytes(ctx context.Context) ([]byte, error) {
	var raw json.RawMessage
	if err := c.do(ctx, http.MethodGet, "/static/processor-schema.json", nil, nil, &raw); err != nil {
		return nil, fmt.Errorf("fetch schema: %w", err)
	}
	return raw, nil
}

// FetchSchema downloads and parses the processor schema.
func (c *Client) FetchSchema(ctx context.Context) (*schema.Document, error) {
	raw, err := c.SchemaBytes(ctx)
	if err != nil {
		return nil, err
	}
	return schema.Parse(raw)
}

// Login exchanges an email and password for tokens.
func (c *Client) Login(ctx context.Context, email, password string) (*model.Token, error) {
	var tok model.Token
	body := map[string]string{"email": email, "password": password}
	if err := c.do(ctx, http.MethodPost, "/api/token", nil, body, &tok); err != nil {
		return nil, fmt.Errorf("login: %w", err)
	}
	return &tok, nil
}

// Refresh exchanges the current token for a fresh pair.
func (c *Client) Refresh(ctx context.Context) (*model.Token, error) {
	var tok model.Token
	if err := c.do(ctx, http.MethodPost, "/api/refresh", nil, nil, &tok); err != nil {
		return nil, fmt.Errorf("refresh: %w", err)
	}
	return &tok, nil
}

// Register creates an account. The backend emails a verification code.
func (c *Client) Register(ctx context.Context, reg model.Registration) (*model.User, error) {
	var u model.User
	if err := c.do(ctx, http.MethodPost, "/api/users", nil, reg, &u); err != nil {
		return nil, fmt.Errorf("register: %w", err)
	}
	return &u, nil
}

// VerifyRegistration confirms an emailed code and returns a login token.
func (c *Client) VerifyRegistration(ctx context.Context, email, code string) (*model.Token, error) {
	var tok model.Token
	body := map[string]string{"user_email": email, "verification_code": code}
	if err := c.do(ctx, http.MethodPost, "/api/users/verification_code", nil, body, &tok); err != nil {
		return nil, fmt.Errorf("verify registration: %w", err)
	}
	return &tok, nil
}

// ResetPassword asks the backend to email a password reset code.
func (c *Client) ResetPassword(ctx context.Context, email string) error {
	body := map[string]string{"user_email": email}
	if err := c.do(ctx, http.MethodPost, "/api/users/reset-password", nil, body, nil); err != nil {
		return fmt.Errorf("reset password: %w", err)
	}
	return nil
}

// CurrentUser returns the account the token belongs to.
func (c *Client) CurrentUser(ctx context.Context) (*model.User, error) {
	var u model.User
	if err := c.do(ctx, http.MethodGet, "/api/users/current", nil, nil, &u); err != nil {
		return nil, fmt.Errorf("current user: %w", err)
	}
	return &u, nil
}

// UpdateUser applies a partial update to an account.
func (c *Client) UpdateUser(ctx context.Context, userID int, upd model.UserUpdate) (*model.User, error) {
	var u model.User
	if err := c.do(ctx, http.MethodPatch, fmt.Sprintf("/api/users/%d", userID), nil, upd, &u); err != nil {
		return nil, fmt.Errorf("update user: %w", err)
	}
	return &u, nil
}

// ListUserJobs returns one page of a user's jobs.
func (c *Client) ListUserJobs(ctx context.Context, userID int, opts model.ListOptions) (*model.Page[model.Job], error) {
	var page model.Page[model.Job]
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/api/users/%d/tasks", userID), listQuery(opts), nil, &page); err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	return &page, nil
}

// GetUserJob returns one job including the configuration it ran with.
func (c *Client) GetUserJob(ctx context.Context, userID, jobID int) (*model.Job, error) {
	var job model.Job
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/api/users/%d/tasks/%d", userID, jobID), nil, nil, &job); err != nil {
		return nil, fmt.Errorf("get job %d: %w", jobID, err)
	}
	return &job, nil
}

// ListAllJobs returns one page of every user's jobs. Admin only.
func (c *Client) ListAllJobs(ctx context.Context, opts model.ListOptions) (*model.Page[model.Job], error) {
	var page model.Page[model.Job]
	if err := c.do(ctx, http.MethodGet, "/api/tasks", listQuery(opts), nil, &page); err != nil {
		return nil, fmt.Errorf("list all jobs: %w", err)
	}
	return &page, nil
}

// ListUsers returns every account. Admin only.
func (c *Client) ListUsers(ctx context.Context) ([]model.User, error) {
	var users []model.User
	if err := c.do(ctx, http.MethodGet, "/api/users", nil, nil, &users); err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	return users, nil
}
