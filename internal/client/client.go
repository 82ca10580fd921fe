package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

var ErrNotAuthenticated = errors.New("not logged in")

// APIError carries the server's message verbatim.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return e.Message
}

type User struct {
	ID    uint   `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Role  string `json:"role"`
}

type Profile struct {
	ID          uint      `json:"id"`
	EmployeeID  uint      `json:"employeeId"`
	Name        string    `json:"name"`
	Email       string    `json:"email"`
	Role        string    `json:"role"`
	Department  string    `json:"department"`
	CreatedAt   time.Time `json:"createdAt"`
	TodayStatus string    `json:"todayStatus"`
	Present     int       `json:"present"`
	Incomplete  int       `json:"incomplete"`
}

type Attendance struct {
	ID       uint       `json:"id"`
	UserID   uint       `json:"user"`
	WorkDate string     `json:"workDate"`
	CheckIn  *time.Time `json:"checkIn"`
	CheckOut *time.Time `json:"checkOut"`
}

type HistoryRow struct {
	Date         string   `json:"date"`
	CheckInTime  string   `json:"checkInTime"`
	CheckOutTime string   `json:"checkOutTime"`
	Status       string   `json:"status"`
	TotalHours   *float64 `json:"totalHours"`
}

// Client talks to the attendance API. It holds no session of its own;
// authenticated calls take the session explicitly.
type Client struct {
	baseURL string
	http    *http.Client
}

func New(baseURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}
	return &Client{baseURL: strings.TrimRight(baseURL, "/"), http: httpClient}
}

func (c *Client) Register(ctx context.Context, name, email, password string) (string, error) {
	var res struct {
		Message string `json:"message"`
	}
	err := c.do(ctx, nil, http.MethodPost, "/api/auth/register", map[string]string{
		"name": name, "email": email, "password": password,
	}, &res)
	return res.Message, err
}

// Login returns a new authenticated session.
func (c *Client) Login(ctx context.Context, email, password string) (*Session, error) {
	var res struct {
		Token string `json:"token"`
		User  User   `json:"user"`
	}
	if err := c.do(ctx, nil, http.MethodPost, "/api/auth/login", map[string]string{
		"email": email, "password": password,
	}, &res); err != nil {
		return nil, err
	}
	if res.Token == "" {
		return nil, &APIError{StatusCode: http.StatusOK, Message: "login response carried no token"}
	}
	return &Session{
		Token:    res.Token,
		UserID:   res.User.ID,
		UserName: res.User.Name,
		Email:    res.User.Email,
		Role:     res.User.Role,
	}, nil
}

func (c *Client) Me(ctx context.Context, s *Session) (*Profile, error) {
	var p Profile
	if err := c.authed(ctx, s, http.MethodGet, "/api/auth/me", nil, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

func (c *Client) CheckIn(ctx context.Context, s *Session) (string, *Attendance, error) {
	return c.mark(ctx, s, "/api/attendance/checkin")
}

func (c *Client) CheckOut(ctx context.Context, s *Session) (string, *Attendance, error) {
	return c.mark(ctx, s, "/api/attendance/checkout")
}

func (c *Client) History(ctx context.Context, s *Session) ([]HistoryRow, error) {
	var rows []HistoryRow
	if err := c.authed(ctx, s, http.MethodGet, "/api/attendance/my-history", nil, &rows); err != nil {
		return nil, err
	}
	return rows, nil
}

// UpdateProfile sends only the non-nil fields.
func (c *Client) UpdateProfile(ctx context.Context, s *Session, name, department *string) (string, error) {
	body := map[string]string{}
	if name != nil {
		body["name"] = *name
	}
	if department != nil {
		body["department"] = *department
	}
	var res struct {
		Message string `json:"message"`
	}
	err := c.authed(ctx, s, http.MethodPut, "/api/auth/update-profile", body, &res)
	return res.Message, err
}

func (c *Client) ChangePassword(ctx context.Context, s *Session, current, next string) (string, error) {
	var res struct {
		Message string `json:"message"`
	}
	err := c.authed(ctx, s, http.MethodPut, "/api/auth/change-password", map[string]string{
		"currentPassword": current, "newPassword": next,
	}, &res)
	return res.Message, err
}

func (c *Client) mark(ctx context.Context, s *Session, path string) (string, *Attendance, error) {
	var res struct {
		Message    string      `json:"message"`
		Attendance *Attendance `json:"attendance"`
	}
	if err := c.authed(ctx, s, http.MethodPost, path, nil, &res); err != nil {
		return "", nil, err
	}
	return res.Message, res.Attendance, nil
}

func (c *Client) authed(ctx context.Context, s *Session, method, path string, body, out any) error {
	if !s.Authenticated() {
		return ErrNotAuthenticated
	}
	return c.do(ctx, s, method, path, body, out)
}

func (c *Client) do(ctx context.Context, s *Session, method, path string, body, out any) error {
	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		r = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, r)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	if s.Authenticated() {
		req.Header.Set("Authorization", "Bearer "+s.Token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode >= http.StatusBadRequest {
		apiErr := &APIError{StatusCode: resp.StatusCode, Message: http.StatusText(resp.StatusCode)}
		var msg struct {
			Message string `json:"message"`
		}
		if json.Unmarshal(data, &msg) == nil && msg.Message != "" {
			apiErr.Message = msg.Message
		}
		return apiErr
	}

	if out != nil && len(data) > 0 {
		if err := json.Unmarshal(data, out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}
