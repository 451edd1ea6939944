package services

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"fintrack/internal/export"
	"fintrack/internal/models"
	"fintrack/internal/pagination"
)

// UserServicer defines the contract for user-related business logic.
type UserServicer interface {
	CreateUser(email, password, firstName, lastName string) (*models.User, error)
	GetUserByEmail(email string) (*models.User, error)
	GetUserByID(id string) (*models.User, error)
	VerifyPassword(user *models.User, password string) bool
	AttemptLogin(email, password string) (*models.User, error)
	StoreRefreshTokenHash(userID, tokenHash string) error
	GetRefreshTokenHash(userID string) (string, error)
	ClearRefreshTokenHash(userID string) error
	UpdateProfile(userID string, update ProfileUpdate) (*models.User, error)
	GetActiveUserIDs() ([]string, error)
	GetReportSubscribers() ([]models.User, error)
}

// ProfileUpdate holds the optional profile fields a user may change.
type ProfileUpdate struct {
	FirstName     *string
	LastName      *string
	Currency      *string
	MonthlyReport *bool
}

// CategoryServicer defines the contract for category-related business logic.
type CategoryServicer interface {
	CreateCategory(userID, name string, categoryType models.CategoryType, description, icon, color string, parentID *string) (*models.Category, error)
	GetUserCategories(userID string, page pagination.PageRequest) (*pagination.PageResponse[models.Category], error)
	GetUserCategoriesByType(userID string, categoryType models.CategoryType, page pagination.PageRequest) (*pagination.PageResponse[models.Category], error)
	GetCategoryByID(userID, categoryID string) (*models.Category, error)
	UpdateCategory(userID, categoryID, name, description, icon, color string, parentID *string) (*models.Category, error)
	DeleteCategory(userID, categoryID string) error
}

// TransactionFilter holds optional filter parameters for listing transactions.
type TransactionFilter struct {
	FromDate   *time.Time
	ToDate     *time.Time
	Type       *models.TransactionType
	CategoryID *string
	MinAmount  *int64
	MaxAmount  *int64
	Search     string
	SortBy     string // date (default) or amount
	SortAsc    bool
}

// TransactionInput carries the fields of a new transaction.
type TransactionInput struct {
	CategoryID  *string
	Type        models.TransactionType
	Amount      int64
	Description string
	Notes       string
	Date        time.Time
}

// TransactionUpdate carries the optional fields of a transaction update.
type TransactionUpdate struct {
	CategoryID  *string
	Type        *models.TransactionType
	Amount      *int64
	Description *string
	Notes       *string
	Date        *time.Time
}

// TransactionServicer defines the contract for transaction-related business logic.
type TransactionServicer interface {
	CreateTransaction(userID string, in TransactionInput) (*models.Transaction, error)
	GetUserTransactions(userID string, page pagination.PageRequest, filter TransactionFilter) (*pagination.PageResponse[models.Transaction], error)
	ListTransactions(userID string, filter TransactionFilter) ([]models.Transaction, error)
	GetTransactionByID(userID, transactionID string) (*models.Transaction, error)
	UpdateTransaction(userID, transactionID string, update TransactionUpdate) (*models.Transaction, error)
	DeleteTransaction(userID, transactionID string) error
}

// BudgetInput carries the fields of a new budget.
type BudgetInput struct {
	CategoryID     string
	Name           string
	Amount         int64
	Period         models.BudgetPeriod
	StartDate      time.Time
	EndDate        *time.Time
	AlertThreshold int
}

// BudgetUpdate carries the optional fields of a budget update.
type BudgetUpdate struct {
	Name           *string
	Amount         *int64
	Period         *models.BudgetPeriod
	EndDate        *time.Time
	AlertThreshold *int
	IsActive       *bool
}

// BudgetProgress contains spending vs budget data for a budget's current period.
type BudgetProgress struct {
	BudgetID       string    `json:"budget_id"`
	Name           string    `json:"name"`
	CategoryID     string    `json:"category_id"`
	Budgeted       int64     `json:"budgeted"`
	Spent          int64     `json:"spent"`
	Remaining      int64     `json:"remaining"`
	Percentage     float64   `json:"percentage"`
	AlertThreshold int       `json:"alert_threshold"`
	PeriodStart    time.Time `json:"period_start"`
	PeriodEnd      time.Time `json:"period_end"`
}

// BudgetAlert reports a budget whose spending crossed its threshold.
type BudgetAlert struct {
	BudgetProgress
	Exceeded bool `json:"exceeded"`
}

// BudgetServicer defines the contract for budget-related business logic.
type BudgetServicer interface {
	CreateBudget(userID string, in BudgetInput) (*models.Budget, error)
	GetUserBudgets(userID string, page pagination.PageRequest, isActive *bool, period *models.BudgetPeriod) (*pagination.PageResponse[models.Budget], error)
	GetBudgetByID(userID, budgetID string) (*models.Budget, error)
	UpdateBudget(userID, budgetID string, update BudgetUpdate) (*models.Budget, error)
	DeleteBudget(userID, budgetID string) error
	GetBudgetProgress(userID, budgetID string) (*BudgetProgress, error)
	GetBudgetOverview(userID string) ([]BudgetProgress, error)
	EvaluateAlerts(userID, categoryID string, at time.Time) ([]BudgetAlert, error)
}

// RecurringInput carries the fields of a new recurring template.
type RecurringInput struct {
	CategoryID     *string
	Type           models.TransactionType
	Amount         int64
	Description    string
	Frequency      models.Frequency
	DayOfWeek      *int
	DayOfMonth     *int
	MonthOfYear    *int
	StartDate      time.Time
	EndDate        *time.Time
	MaxOccurrences *int
}

// RecurringUpdate carries the optional fields of a recurring template update.
// Any schedule field realigns the next due date.
type RecurringUpdate struct {
	CategoryID     *string
	Amount         *int64
	Description    *string
	Frequency      *models.Frequency
	DayOfWeek      *int
	DayOfMonth     *int
	MonthOfYear    *int
	EndDate        *time.Time
	MaxOccurrences *int
}

// RecurringServicer defines the contract for recurring template management.
type RecurringServicer interface {
	CreateRecurring(userID string, in RecurringInput) (*models.RecurringTransaction, error)
	GetUserRecurring(userID string, page pagination.PageRequest, isActive *bool, frequency *models.Frequency) (*pagination.PageResponse[models.RecurringTransaction], error)
	GetRecurringByID(userID, recurringID string) (*models.RecurringTransaction, error)
	UpdateRecurring(userID, recurringID string, update RecurringUpdate) (*models.RecurringTransaction, error)
	DeleteRecurring(userID, recurringID string) error
	PauseRecurring(userID, recurringID string) (*models.RecurringTransaction, error)
	ResumeRecurring(userID, recurringID string, now time.Time) (*models.RecurringTransaction, error)
	SkipOccurrence(userID, recurringID string) (*models.RecurringTransaction, error)
	GetUpcoming(userID, recurringID string, count int) ([]time.Time, error)
}

// RecurringProcessor materializes due recurring templates into transactions.
type RecurringProcessor interface {
	ProcessDue(ctx context.Context, now time.Time) (int, error)
	ProcessDueForUser(ctx context.Context, userID string, now time.Time) (int, error)
}

// GoalInput carries the fields of a new goal.
type GoalInput struct {
	Name         string
	Description  string
	TargetAmount int64
	TargetDate   *time.Time
	Color        string
	Icon         string
}

// GoalUpdate carries the optional fields of a goal update.
type GoalUpdate struct {
	Name         *string
	Description  *string
	TargetAmount *int64
	TargetDate   *time.Time
	Status       *models.GoalStatus
	Color        *string
	Icon         *string
}

// GoalProgress summarizes how far a goal is from its target.
type GoalProgress struct {
	GoalID              string            `json:"goal_id"`
	Status              models.GoalStatus `json:"status"`
	TargetAmount        int64             `json:"target_amount"`
	CurrentAmount       int64             `json:"current_amount"`
	Remaining           int64             `json:"remaining"`
	Percentage          float64           `json:"percentage"`
	DaysLeft            *int              `json:"days_left,omitempty"`
	MonthlyAmountNeeded *int64            `json:"monthly_amount_needed,omitempty"`
}

// GoalServicer defines the contract for savings goals.
type GoalServicer interface {
	CreateGoal(userID string, in GoalInput) (*models.Goal, error)
	GetUserGoals(userID string, page pagination.PageRequest, status *models.GoalStatus) (*pagination.PageResponse[models.Goal], error)
	GetGoalByID(userID, goalID string) (*models.Goal, error)
	UpdateGoal(userID, goalID string, update GoalUpdate) (*models.Goal, error)
	DeleteGoal(userID, goalID string) error
	Deposit(userID, goalID string, amount int64, date time.Time, note string) (*models.Goal, *models.SavingsTransaction, error)
	Withdraw(userID, goalID string, amount int64, date time.Time, note string) (*models.Goal, *models.SavingsTransaction, error)
	GetGoalTransactions(userID, goalID string, page pagination.PageRequest) (*pagination.PageResponse[models.SavingsTransaction], error)
	GetGoalProgress(userID, goalID string, now time.Time) (*GoalProgress, error)
}

// MemberInput names a split group member.
type MemberInput struct {
	Name  string
	Email string
}

// SplitParticipant is one person sharing a transaction. Either MemberID or
// Name identifies them; Percentage or Amount applies to the matching method.
type SplitParticipant struct {
	MemberID   *string
	Name       string
	Email      string
	Percentage *decimal.Decimal
	Amount     *int64
}

// SplitRequest describes how to divide a transaction.
type SplitRequest struct {
	Method       models.SplitMethod
	IncludePayer bool
	Participants []SplitParticipant
}

// ParticipantBalance is what one participant still owes across pending splits.
type ParticipantBalance struct {
	ParticipantName  string `json:"participant_name"`
	ParticipantEmail string `json:"participant_email,omitempty"`
	Outstanding      int64  `json:"outstanding"`
	PendingSplits    int    `json:"pending_splits"`
}

// SplitServicer defines the contract for bill splitting.
type SplitServicer interface {
	CreateGroup(userID, name, description string, members []MemberInput) (*models.SplitGroup, error)
	GetUserGroups(userID string, page pagination.PageRequest) (*pagination.PageResponse[models.SplitGroup], error)
	GetGroupByID(userID, groupID string) (*models.SplitGroup, error)
	UpdateGroup(userID, groupID string, name, description *string) (*models.SplitGroup, error)
	DeleteGroup(userID, groupID string) error
	AddMember(userID, groupID string, in MemberInput) (*models.SplitGroupMember, error)
	RemoveMember(userID, groupID, memberID string) error
	SplitTransaction(userID, transactionID string, req SplitRequest) ([]models.ExpenseSplit, error)
	GetTransactionSplits(userID, transactionID string) ([]models.ExpenseSplit, error)
	GetUserSplits(userID string, page pagination.PageRequest, status *models.SplitStatus) (*pagination.PageResponse[models.ExpenseSplit], error)
	SettleSplit(userID, splitID string, at time.Time) (*models.ExpenseSplit, error)
	DeleteSplit(userID, splitID string) error
	GetBalances(userID string) ([]ParticipantBalance, error)
}

// Summary is the income/expense roll-up of a date range.
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

// CategoryTotal is one row of a category breakdown.
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

// TrendInterval is the bucket width of a trend series.
type TrendInterval string

const (
	TrendMonthly TrendInterval = "month"
	TrendWeekly  TrendInterval = "week"
)

// AnalyticsServicer defines the contract for dashboard analytics.
type AnalyticsServicer interface {
	Summary(ctx context.Context, userID string, from, to time.Time) (*Summary, error)
	CategoryBreakdown(ctx context.Context, userID string, txType models.TransactionType, from, to time.Time) ([]CategoryTotal, error)
	Trends(ctx context.Context, userID string, interval TrendInterval, from, to time.Time) ([]TrendPoint, error)
}

// SnapshotServicer defines the contract for balance snapshots.
type SnapshotServicer interface {
	RecordSnapshots(recordedAt time.Time) (int, error)
	RecordUserSnapshot(userID string, recordedAt time.Time) (*models.BalanceSnapshot, error)
	GetUserSnapshots(userID string, page pagination.PageRequest, from, to *time.Time) (*pagination.PageResponse[models.BalanceSnapshot], error)
}

// ReportServicer assembles and dispatches monthly reports.
type ReportServicer interface {
	BuildMonthlyReport(ctx context.Context, userID string, month time.Time) (*export.Report, error)
	RequestEmailReport(ctx context.Context, userID string, month time.Time, format export.Format) (*ReportRequest, error)
	DispatchMonthlyReports(ctx context.Context, month time.Time) (int, error)
}

// AuditServicer defines the contract for audit logging.
type AuditServicer interface {
	Log(userID, action, resourceType, resourceID, ipAddress string, changes map[string]interface{})
	GetUserAuditLogs(userID string, page pagination.PageRequest) (*pagination.PageResponse[models.AuditLog], error)
}
