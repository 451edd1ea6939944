package testutil

import (
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"fintrack/internal/models"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// counter provides unique values across fixtures within a test run.
var counter atomic.Int64

func nextID() int64 {
	return counter.Add(1)
}

// TestPassword is the plain-text password of every fixture user.
const TestPassword = "password123"

// CreateTestUser creates a user with a hashed password and unique email.
func CreateTestUser(t *testing.T, db *gorm.DB) *models.User {
	t.Helper()
	email := fmt.Sprintf("user%d@test.com", nextID())
	return CreateTestUserWithEmail(t, db, email)
}

// CreateTestUserWithEmail creates a user with the given email.
func CreateTestUserWithEmail(t *testing.T, db *gorm.DB, email string) *models.User {
	t.Helper()

	hash, err := bcrypt.GenerateFromPassword([]byte(TestPassword), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("failed to hash password: %v", err)
	}

	user := &models.User{
		Email:     email,
		Password:  string(hash),
		FirstName: "Test",
		LastName:  "User",
		Currency:  "USD",
		IsActive:  true,
	}
	if err := db.Create(user).Error; err != nil {
		t.Fatalf("failed to create test user: %v", err)
	}
	return user
}

// CreateTestCategory creates a category of the given type.
func CreateTestCategory(t *testing.T, db *gorm.DB, userID string, categoryType models.CategoryType) *models.Category {
	t.Helper()

	category := &models.Category{
		UserID: userID,
		Name:   fmt.Sprintf("Test Category %d", nextID()),
		Type:   categoryType,
	}
	if err := db.Create(category).Error; err != nil {
		t.Fatalf("failed to create test category: %v", err)
	}
	return category
}

// CreateTestTransaction creates an uncategorized transaction dated now.
func CreateTestTransaction(t *testing.T, db *gorm.DB, userID string, txType models.TransactionType, amount int64) *models.Transaction {
	t.Helper()
	return CreateTestTransactionAt(t, db, userID, nil, txType, amount, time.Now().UTC())
}

// CreateTestTransactionAt creates a transaction with an explicit category and date.
func CreateTestTransactionAt(
	t *testing.T,
	db *gorm.DB,
	userID string,
	categoryID *string,
	txType models.TransactionType,
	amount int64,
	date time.Time,
) *models.Transaction {
	t.Helper()

	tx := &models.Transaction{
		UserID:      userID,
		CategoryID:  categoryID,
		Type:        txType,
		Amount:      amount,
		Description: fmt.Sprintf("Test Transaction %d", nextID()),
		Date:        date,
	}
	if err := db.Create(tx).Error; err != nil {
		t.Fatalf("failed to create test transaction: %v", err)
	}
	return tx
}

// CreateTestBudget creates a monthly budget for the given category.
func CreateTestBudget(t *testing.T, db *gorm.DB, userID, categoryID string) *models.Budget {
	t.Helper()

	budget := &models.Budget{
		UserID:         userID,
		CategoryID:     categoryID,
		Name:           fmt.Sprintf("Test Budget %d", nextID()),
		Amount:         10000, // $100.00
		Period:         models.BudgetPeriodMonthly,
		StartDate:      time.Now().UTC().AddDate(0, -1, 0),
		AlertThreshold: models.DefaultAlertThreshold,
		IsActive:       true,
	}
	if err := db.Create(budget).Error; err != nil {
		t.Fatalf("failed to create test budget: %v", err)
	}
	return budget
}

// CreateTestRecurring creates an active expense template due on start.
func CreateTestRecurring(t *testing.T, db *gorm.DB, userID string, frequency models.Frequency, start time.Time) *models.RecurringTransaction {
	t.Helper()

	rt := &models.RecurringTransaction{
		UserID:      userID,
		Type:        models.TransactionTypeExpense,
		Amount:      1500,
		Description: fmt.Sprintf("Test Recurring %d", nextID()),
		Frequency:   frequency,
		StartDate:   start,
		NextDueDate: start,
		IsActive:    true,
	}
	if err := db.Create(rt).Error; err != nil {
		t.Fatalf("failed to create test recurring transaction: %v", err)
	}
	return rt
}

// CreateTestGoal creates an active goal with the given target (in cents).
func CreateTestGoal(t *testing.T, db *gorm.DB, userID string, target int64) *models.Goal {
	t.Helper()

	goal := &models.Goal{
		UserID:       userID,
		Name:         fmt.Sprintf("Test Goal %d", nextID()),
		TargetAmount: target,
		Status:       models.GoalStatusActive,
	}
	if err := db.Create(goal).Error; err != nil {
		t.Fatalf("failed to create test goal: %v", err)
	}
	return goal
}

// CreateTestSplitGroup creates a group with one member per name.
func CreateTestSplitGroup(t *testing.T, db *gorm.DB, userID string, memberNames ...string) *models.SplitGroup {
	t.Helper()

	group := &models.SplitGroup{
		UserID: userID,
		Name:   fmt.Sprintf("Test Group %d", nextID()),
	}
	for _, name := range memberNames {
		group.Members = append(group.Members, models.SplitGroupMember{Name: name})
	}
	if err := db.Create(group).Error; err != nil {
		t.Fatalf("failed to create test split group: %v", err)
	}
	return group
}
