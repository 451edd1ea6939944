package client

import (
	"context"
	"mime"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

const dateLayout = "2006-01-02"

// User is the profile returned by the auth endpoints.
type User struct {
	ID        string `json:"id"`
	Email     string `json:"email"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Currency  string `json:"currency"`
}

// AuthTokens is the login response.
type AuthTokens struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	User         User   `json:"user"`
}

// Category is the embedded category of a transaction.
type Category struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Type string `json:"type"`
}

// Transaction is an expense or income record. Amounts are minor units.
type Transaction struct {
	ID          string    `json:"id"`
	CategoryID  *string   `json:"category_id,omitempty"`
	Type        string    `json:"type"`
	Amount      int64     `json:"amount"`
	Description string    `json:"description"`
	Notes       string    `json:"notes,omitempty"`
	Date        time.Time `json:"date"`
	RecurringID *string   `json:"recurring_id,omitempty"`
	Category    *Category `json:"category,omitempty"`
}

// NewTransaction is the create payload.
type NewTransaction struct {
	CategoryID  *string   `json:"category_id,omitempty"`
	Type        string    `json:"type"`
	Amount      int64     `json:"amount"`
	Description string    `json:"description,omitempty"`
	Notes       string    `json:"notes,omitempty"`
	Date        time.Time `json:"date"`
}

// Page is a paginated list.
type Page[T any] struct {
	Data       []T   `json:"data"`
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
	TotalItems int64 `json:"total_items"`
	TotalPages int   `json:"total_pages"`
}

// TransactionQuery filters ListTransactions. Zero fields are omitted.
type TransactionQuery struct {
	Page       int
	PageSize   int
	From       *time.Time
	To         *time.Time
	Type       string
	CategoryID string
	Search     string
	Sort       string
}

func (q TransactionQuery) values() url.Values {
	v := url.Values{}
	if q.Page > 0 {
		v.Set("page", strconv.Itoa(q.Page))
	}
	if q.PageSize > 0 {
		v.Set("page_size", strconv.Itoa(q.PageSize))
	}
	setRange(v, q.From, q.To)
	if q.Type != "" {
		v.Set("type", q.Type)
	}
	if q.CategoryID != "" {
		v.Set("category_id", q.CategoryID)
	}
	if q.Search != "" {
		v.Set("search", q.Search)
	}
	if q.Sort != "" {
		v.Set("sort", q.Sort)
	}
	return v
}

func setRange(v url.Values, from, to *time.Time) {
	if from != nil {
		v.Set("from_date", from.Format(dateLayout))
	}
	if to != nil {
		v.Set("to_date", to.Format(dateLayout))
	}
}

// Summary is the dashboard headline.
type Summary struct {
	From             time.Time      `json:"from"`
	To               time.Time      `json:"to"`
	TotalIncome      int64          `json:"total_income"`
	TotalExpense     int64          `json:"total_expense"`
	Net              int64          `json:"net"`
	SavingsRate      float64        `json:"savings_rate"`
	TransactionCount int64          `json:"transaction_count"`
	AverageExpense   int64          `json:"average_expense"`
	TopCategory      *CategoryTotal `json:"top_category,omitempty"`
}

// CategoryTotal is one category breakdown row.
type CategoryTotal struct {
	CategoryID   *string `json:"category_id"`
	CategoryName string  `json:"category_name"`
	Total        int64   `json:"total"`
	Count        int64   `json:"count"`
	Percentage   float64 `json:"percentage"`
}

// TrendPoint is one bucket of a trend series.
type TrendPoint struct {
	Period  string    `json:"period"`
	Start   time.Time `json:"start"`
	Income  int64     `json:"income"`
	Expense int64     `json:"expense"`
	Net     int64     `json:"net"`
}

// Goal is a savings goal.
type Goal struct {
	ID            string     `json:"id"`
	Name          string     `json:"name"`
	TargetAmount  int64      `json:"target_amount"`
	CurrentAmount int64      `json:"current_amount"`
	TargetDate    *time.Time `json:"target_date,omitempty"`
	Status        string     `json:"status"`
}

// Login authenticates and keeps the access token for later calls.
func (c *Client) Login(ctx context.Context, email, password string) (*AuthTokens, error) {
	resp, err := c.Do(ctx, Request{
		Method: http.MethodPost,
		Path:   "/auth/login",
		Body:   map[string]string{"email": email, "password": password},
	})
	if err != nil {
		return nil, err
	}
	var tokens AuthTokens
	if err := resp.Decode(&tokens); err != nil {
		return nil, err
	}
	c.SetToken(tokens.AccessToken)
	return &tokens, nil
}

// ListTransactions fetches one page of transactions.
func (c *Client) ListTransactions(ctx context.Context, q TransactionQuery) (*Page[Transaction], error) {
	resp, err := c.Do(ctx, Request{Path: "/transactions", Query: q.values()})
	if err != nil {
		return nil, err
	}
	var page Page[Transaction]
	if err := resp.Decode(&page); err != nil {
		return nil, err
	}
	return &page, nil
}

// CreateTransaction records a transaction.
func (c *Client) CreateTransaction(ctx context.Context, in NewTransaction) (*Transaction, error) {
	resp, err := c.Do(ctx, Request{Method: http.MethodPost, Path: "/transactions", Body: in})
	if err != nil {
		return nil, err
	}
	var out struct {
		Transaction Transaction `json:"transaction"`
	}
	if err := resp.Decode(&out); err != nil {
		return nil, err
	}
	return &out.Transaction, nil
}

// Summary fetches the analytics summary. Nil bounds use the current month.
func (c *Client) Summary(ctx context.Context, from, to *time.Time) (*Summary, error) {
	v := url.Values{}
	setRange(v, from, to)
	resp, err := c.Do(ctx, Request{Path: "/analytics/summary", Query: v})
	if err != nil {
		return nil, err
	}
	var out struct {
		Summary Summary `json:"summary"`
	}
	if err := resp.Decode(&out); err != nil {
		return nil, err
	}
	return &out.Summary, nil
}

// CategoryBreakdown fetches per-category totals for txType.
func (c *Client) CategoryBreakdown(ctx context.Context, txType string, from, to *time.Time) ([]CategoryTotal, error) {
	v := url.Values{}
	if txType != "" {
		v.Set("type", txType)
	}
	setRange(v, from, to)
	resp, err := c.Do(ctx, Request{Path: "/analytics/categories", Query: v})
	if err != nil {
		return nil, err
	}
	var out struct {
		Categories []CategoryTotal `json:"categories"`
	}
	if err := resp.Decode(&out); err != nil {
		return nil, err
	}
	return out.Categories, nil
}

// Trends fetches the income/expense series bucketed by interval (month|week).
func (c *Client) Trends(ctx context.Context, interval string, from, to *time.Time) ([]TrendPoint, error) {
	v := url.Values{}
	if interval != "" {
		v.Set("interval", interval)
	}
	setRange(v, from, to)
	resp, err := c.Do(ctx, Request{Path: "/analytics/trends", Query: v})
	if err != nil {
		return nil, err
	}
	var out struct {
		Trends []TrendPoint `json:"trends"`
	}
	if err := resp.Decode(&out); err != nil {
		return nil, err
	}
	return out.Trends, nil
}

// ListGoals fetches one page of goals, optionally filtered by status.
func (c *Client) ListGoals(ctx context.Context, status string, page int) (*Page[Goal], error) {
	v := url.Values{}
	if status != "" {
		v.Set("status", status)
	}
	if page > 0 {
		v.Set("page", strconv.Itoa(page))
	}
	resp, err := c.Do(ctx, Request{Path: "/goals", Query: v})
	if err != nil {
		return nil, err
	}
	var out Page[Goal]
	if err := resp.Decode(&out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Export downloads a transaction export and returns its bytes and the file
// name suggested by the server.
func (c *Client) Export(ctx context.Context, format string, from, to *time.Time) ([]byte, string, error) {
	v := url.Values{"format": {format}}
	setRange(v, from, to)
	resp, err := c.Do(ctx, Request{Path: "/export/transactions", Query: v})
	if err != nil {
		return nil, "", err
	}
	filename := "transactions." + format
	if _, params, err := mime.ParseMediaType(resp.Header.Get("Content-Disposition")); err == nil && params["filename"] != "" {
		filename = params["filename"]
	}
	return resp.Body, filename, nil
}
