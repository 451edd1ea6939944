package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"

	apperrors "fintrack/internal/errors"
	"fintrack/internal/events"
	"fintrack/internal/logger"
	"fintrack/internal/models"
	"fintrack/internal/pagination"
)

// maxListedTransactions bounds unpaginated listings such as exports.
const maxListedTransactions = 10000

// transactionService handles transaction-related business logic.
type transactionService struct {
	db            *gorm.DB
	budgetService BudgetServicer
	publisher     events.Publisher
}

// NewTransactionService creates a new TransactionServicer. Expense writes
// evaluate budget alerts through budgetService and publish them.
func NewTransactionService(db *gorm.DB, budgetService BudgetServicer, publisher events.Publisher) TransactionServicer {
	if publisher == nil {
		publisher = events.Nop()
	}
	return &transactionService{
		db:            db,
		budgetService: budgetService,
		publisher:     publisher,
	}
}

// CreateTransaction records a new income or expense for the user.
func (s *transactionService) CreateTransaction(userID string, in TransactionInput) (*models.Transaction, error) {
	if in.Amount <= 0 {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "amount must be greater than zero")
	}
	if !validTransactionType(in.Type) {
		return nil, apperrors.ErrInvalidTransactionType
	}
	if in.CategoryID != nil && *in.CategoryID == "" {
		in.CategoryID = nil
	}
	if err := s.checkCategory(userID, in.CategoryID, in.Type); err != nil {
		return nil, err
	}

	// Default date to now if not provided
	if in.Date.IsZero() {
		in.Date = time.Now().UTC()
	}

	transaction := &models.Transaction{
		UserID:      userID,
		CategoryID:  in.CategoryID,
		Type:        in.Type,
		Amount:      in.Amount,
		Description: strings.TrimSpace(in.Description),
		Notes:       in.Notes,
		Date:        in.Date,
	}

	if err := s.db.Create(transaction).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	s.afterWrite(transaction)
	return transaction, nil
}

// GetUserTransactions retrieves a paginated, filtered list of the user's transactions.
func (s *transactionService) GetUserTransactions(userID string, page pagination.PageRequest, filter TransactionFilter) (*pagination.PageResponse[models.Transaction], error) {
	page.Defaults()

	base := s.db.Model(&models.Transaction{}).Where("user_id = ?", userID)
	base = applyTransactionFilters(base, filter)

	var totalItems int64
	if err := base.Count(&totalItems).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	var transactions []models.Transaction
	if err := base.Preload("Category").
		Scopes(transactionOrder(filter), pagination.Paginate(page)).
		Find(&transactions).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	result := pagination.NewPageResponse(transactions, page.Page, page.PageSize, totalItems)
	return &result, nil
}

// ListTransactions returns every matching transaction up to maxListedTransactions.
func (s *transactionService) ListTransactions(userID string, filter TransactionFilter) ([]models.Transaction, error) {
	q := applyTransactionFilters(s.db.Model(&models.Transaction{}).Where("user_id = ?", userID), filter)

	var transactions []models.Transaction
	if err := q.Preload("Category").
		Scopes(transactionOrder(filter)).
		Limit(maxListedTransactions).
		Find(&transactions).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return transactions, nil
}

func applyTransactionFilters(q *gorm.DB, f TransactionFilter) *gorm.DB {
	if f.FromDate != nil {
		q = q.Where("date >= ?", *f.FromDate)
	}
	if f.ToDate != nil {
		q = q.Where("date <= ?", *f.ToDate)
	}
	if f.Type != nil {
		q = q.Where("type = ?", *f.Type)
	}
	if f.CategoryID != nil {
		q = q.Where("category_id = ?", *f.CategoryID)
	}
	if f.MinAmount != nil {
		q = q.Where("amount >= ?", *f.MinAmount)
	}
	if f.MaxAmount != nil {
		q = q.Where("amount <= ?", *f.MaxAmount)
	}
	if term := strings.TrimSpace(f.Search); term != "" {
		like := "%" + strings.ToLower(term) + "%"
		q = q.Where("(LOWER(description) LIKE ? OR LOWER(notes) LIKE ?)", like, like)
	}
	return q
}

func transactionOrder(f TransactionFilter) func(db *gorm.DB) *gorm.DB {
	column := "date"
	if f.SortBy == "amount" {
		column = "amount"
	}
	direction := " DESC"
	if f.SortAsc {
		direction = " ASC"
	}
	return func(db *gorm.DB) *gorm.DB {
		return db.Order(column + direction).Order("id" + direction)
	}
}

// GetTransactionByID retrieves a transaction by ID for a specific user
func (s *transactionService) GetTransactionByID(userID, transactionID string) (*models.Transaction, error) {
	var transaction models.Transaction
	if err := s.db.Preload("Category").Where("id = ? AND user_id = ?", transactionID, userID).First(&transaction).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrTransactionNotFound
		}
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return &transaction, nil
}

// UpdateTransaction applies the provided fields to an existing transaction.
func (s *transactionService) UpdateTransaction(userID, transactionID string, update TransactionUpdate) (*models.Transaction, error) {
	transaction, err := s.GetTransactionByID(userID, transactionID)
	if err != nil {
		return nil, err
	}

	txType := transaction.Type
	if update.Type != nil {
		if !validTransactionType(*update.Type) {
			return nil, apperrors.ErrInvalidTransactionType
		}
		txType = *update.Type
	}

	categoryID := transaction.CategoryID
	if update.CategoryID != nil {
		categoryID = update.CategoryID
		if *categoryID == "" {
			categoryID = nil
		}
	}
	if update.CategoryID != nil || update.Type != nil {
		if err := s.checkCategory(userID, categoryID, txType); err != nil {
			return nil, err
		}
	}

	updates := make(map[string]interface{})
	if update.Type != nil {
		updates["type"] = txType
	}
	if update.CategoryID != nil {
		updates["category_id"] = categoryID
	}
	if update.Amount != nil {
		if *update.Amount <= 0 {
			return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "amount must be greater than zero")
		}
		updates["amount"] = *update.Amount
	}
	if update.Description != nil {
		updates["description"] = strings.TrimSpace(*update.Description)
	}
	if update.Notes != nil {
		updates["notes"] = *update.Notes
	}
	if update.Date != nil && !update.Date.IsZero() {
		updates["date"] = *update.Date
	}

	if len(updates) == 0 {
		return transaction, nil
	}

	// Splits were computed from the old amount.
	if (update.Amount != nil && *update.Amount != transaction.Amount) || txType != transaction.Type {
		var settled int64
		if err := s.db.Model(&models.ExpenseSplit{}).
			Where("transaction_id = ? AND status = ?", transaction.ID, models.SplitStatusSettled).
			Count(&settled).Error; err != nil {
			return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
		if settled > 0 {
			return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "transaction has settled splits and its amount cannot change")
		}
	}

	err = s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(transaction).Updates(updates).Error; err != nil {
			return apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
		if update.Amount != nil || update.Type != nil {
			if err := tx.Where("transaction_id = ? AND status = ?", transaction.ID, models.SplitStatusPending).
				Delete(&models.ExpenseSplit{}).Error; err != nil {
				return apperrors.Wrap(apperrors.ErrInternalServer, err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if update.CategoryID != nil {
		transaction.Category = nil
	}
	s.afterWrite(transaction)
	return transaction, nil
}

// DeleteTransaction soft-deletes a transaction together with its splits.
func (s *transactionService) DeleteTransaction(userID, transactionID string) error {
	transaction, err := s.GetTransactionByID(userID, transactionID)
	if err != nil {
		return err
	}

	err = s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("transaction_id = ?", transaction.ID).Delete(&models.ExpenseSplit{}).Error; err != nil {
			return apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
		if err := tx.Delete(transaction).Error; err != nil {
			return apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.publisher.Publish(context.Background(), events.New(events.TransactionsChanged, userID,
		map[string]interface{}{"transaction_id": transaction.ID, "deleted": true}))
	return nil
}

func (s *transactionService) checkCategory(userID string, categoryID *string, txType models.TransactionType) error {
	return checkCategoryType(s.db, userID, categoryID, txType)
}

// checkCategoryType verifies an optional category belongs to the user and
// matches the transaction type.
func checkCategoryType(db *gorm.DB, userID string, categoryID *string, txType models.TransactionType) error {
	if categoryID == nil {
		return nil
	}
	var category models.Category
	if err := db.Where("id = ? AND user_id = ?", *categoryID, userID).First(&category).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperrors.ErrCategoryNotFound
		}
		return apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	if string(category.Type) != string(txType) {
		return apperrors.ErrCategoryTypeMismatch
	}
	return nil
}

// afterWrite publishes the change and, for categorized expenses, any budget
// alerts it triggered. Failures are logged only.
func (s *transactionService) afterWrite(t *models.Transaction) {
	ctx := context.Background()
	s.publisher.Publish(ctx, events.New(events.TransactionsChanged, t.UserID,
		map[string]interface{}{"transaction_id": t.ID}))

	if t.Type != models.TransactionTypeExpense || t.CategoryID == nil || s.budgetService == nil {
		return
	}
	alerts, err := s.budgetService.EvaluateAlerts(t.UserID, *t.CategoryID, t.Date)
	if err != nil {
		logger.Get().Warnw("budget alert evaluation failed", "error", err, "user_id", t.UserID, "transaction_id", t.ID)
		return
	}
	for _, alert := range alerts {
		eventType := events.BudgetThreshold
		if alert.Exceeded {
			eventType = events.BudgetExceeded
		}
		s.publisher.Publish(ctx, events.New(eventType, t.UserID, alert))
	}
}

func validTransactionType(t models.TransactionType) bool {
	return t == models.TransactionTypeIncome || t == models.TransactionTypeExpense
}
