package handlers

import (
	"net/http"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	apperrors "fintrack/internal/errors"
	"fintrack/internal/models"
	"fintrack/internal/pagination"
	"fintrack/internal/services"
)

const testGoalID = "0190c5a2-7e1f-7b3a-9c4d-000000000501"

// --- mock goal service ---

type mockGoalService struct {
	createGoalFn      func(userID string, in services.GoalInput) (*models.Goal, error)
	getUserGoalsFn    func(userID string, page pagination.PageRequest, status *models.GoalStatus) (*pagination.PageResponse[models.Goal], error)
	updateGoalFn      func(userID, goalID string, update services.GoalUpdate) (*models.Goal, error)
	depositFn         func(userID, goalID string, amount int64, date time.Time, note string) (*models.Goal, *models.SavingsTransaction, error)
	withdrawFn        func(userID, goalID string, amount int64, date time.Time, note string) (*models.Goal, *models.SavingsTransaction, error)
	getGoalProgressFn func(userID, goalID string, now time.Time) (*services.GoalProgress, error)
}

func (m *mockGoalService) CreateGoal(userID string, in services.GoalInput) (*models.Goal, error) {
	if m.createGoalFn != nil {
		return m.createGoalFn(userID, in)
	}
	return &models.Goal{}, nil
}

func (m *mockGoalService) GetUserGoals(userID string, page pagination.PageRequest, status *models.GoalStatus) (*pagination.PageResponse[models.Goal], error) {
	if m.getUserGoalsFn != nil {
		return m.getUserGoalsFn(userID, page, status)
	}
	resp := pagination.NewPageResponse([]models.Goal{}, 1, 20, 0)
	return &resp, nil
}

func (m *mockGoalService) GetGoalByID(string, string) (*models.Goal, error) {
	return nil, apperrors.ErrGoalNotFound
}

func (m *mockGoalService) UpdateGoal(userID, goalID string, update services.GoalUpdate) (*models.Goal, error) {
	if m.updateGoalFn != nil {
		return m.updateGoalFn(userID, goalID, update)
	}
	return &models.Goal{}, nil
}

func (m *mockGoalService) DeleteGoal(string, string) error { return nil }

func (m *mockGoalService) Deposit(userID, goalID string, amount int64, date time.Time, note string) (*models.Goal, *models.SavingsTransaction, error) {
	if m.depositFn != nil {
		return m.depositFn(userID, goalID, amount, date, note)
	}
	return &models.Goal{}, &models.SavingsTransaction{}, nil
}

func (m *mockGoalService) Withdraw(userID, goalID string, amount int64, date time.Time, note string) (*models.Goal, *models.SavingsTransaction, error) {
	if m.withdrawFn != nil {
		return m.withdrawFn(userID, goalID, amount, date, note)
	}
	return &models.Goal{}, &models.SavingsTransaction{}, nil
}

func (m *mockGoalService) GetGoalTransactions(string, string, pagination.PageRequest) (*pagination.PageResponse[models.SavingsTransaction], error) {
	resp := pagination.NewPageResponse([]models.SavingsTransaction{}, 1, 20, 0)
	return &resp, nil
}

func (m *mockGoalService) GetGoalProgress(userID, goalID string, now time.Time) (*services.GoalProgress, error) {
	if m.getGoalProgressFn != nil {
		return m.getGoalProgressFn(userID, goalID, now)
	}
	return &services.GoalProgress{}, nil
}

var _ services.GoalServicer = (*mockGoalService)(nil)

func newTestGoalHandler(svc *mockGoalService, audit *mockAuditService) *GoalHandler {
	h := NewGoalHandler(svc, audit)
	h.now = func() time.Time { return fixedNow }
	return h
}

func setupGoalRouter(handler *GoalHandler) *gin.Engine {
	r := gin.New()
	auth := r.Group("", injectUserID(testUserID))
	auth.POST("/goals", handler.CreateGoal)
	auth.GET("/goals", handler.GetGoals)
	auth.GET("/goals/:id", handler.GetGoal)
	auth.PUT("/goals/:id", handler.UpdateGoal)
	auth.DELETE("/goals/:id", handler.DeleteGoal)
	auth.POST("/goals/:id/deposit", handler.Deposit)
	auth.POST("/goals/:id/withdraw", handler.Withdraw)
	auth.GET("/goals/:id/transactions", handler.GetGoalTransactions)
	auth.GET("/goals/:id/progress", handler.GetGoalProgress)
	return r
}

func TestGoalHandler_CreateGoal(t *testing.T) {
	t.Run("returns 201 on success", func(t *testing.T) {
		svc := &mockGoalService{
			createGoalFn: func(userID string, in services.GoalInput) (*models.Goal, error) {
				goal := &models.Goal{UserID: userID, Name: in.Name, TargetAmount: in.TargetAmount, Status: models.GoalStatusActive}
				goal.ID = testGoalID
				return goal, nil
			},
		}
		r := setupGoalRouter(newTestGoalHandler(svc, &mockAuditService{}))

		rec := doRequest(r, "POST", "/goals", `{"name":"Holiday","target_amount":300000,"color":"#00AAFF"}`)

		if rec.Code != http.StatusCreated {
			t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
		}
		goal := parseJSON(t, rec)["goal"].(map[string]interface{})
		if goal["status"] != "active" {
			t.Errorf("expected active goal, got %v", goal["status"])
		}
	})

	t.Run("returns 400 on missing target", func(t *testing.T) {
		r := setupGoalRouter(newTestGoalHandler(&mockGoalService{}, &mockAuditService{}))

		rec := doRequest(r, "POST", "/goals", `{"name":"Holiday"}`)

		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", rec.Code)
		}
		assertErrorCode(t, parseJSON(t, rec), "INVALID_INPUT")
	})
}

func TestGoalHandler_GetGoals(t *testing.T) {
	t.Run("filters by status", func(t *testing.T) {
		var got *models.GoalStatus
		svc := &mockGoalService{
			getUserGoalsFn: func(_ string, _ pagination.PageRequest, status *models.GoalStatus) (*pagination.PageResponse[models.Goal], error) {
				got = status
				resp := pagination.NewPageResponse([]models.Goal{}, 1, 20, 0)
				return &resp, nil
			},
		}
		r := setupGoalRouter(newTestGoalHandler(svc, &mockAuditService{}))

		rec := doRequest(r, "GET", "/goals?status=paused", "")

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		if got == nil || *got != models.GoalStatusPaused {
			t.Errorf("expected paused, got %v", got)
		}
	})

	t.Run("returns 400 on unknown status", func(t *testing.T) {
		r := setupGoalRouter(newTestGoalHandler(&mockGoalService{}, &mockAuditService{}))

		rec := doRequest(r, "GET", "/goals?status=archived", "")

		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", rec.Code)
		}
	})
}

func TestGoalHandler_GetGoal(t *testing.T) {
	r := setupGoalRouter(newTestGoalHandler(&mockGoalService{}, &mockAuditService{}))

	rec := doRequest(r, "GET", "/goals/"+testGoalID, "")

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
	assertErrorCode(t, parseJSON(t, rec), "GOAL_NOT_FOUND")
}

func TestGoalHandler_UpdateGoal(t *testing.T) {
	t.Run("audits status changes", func(t *testing.T) {
		var got services.GoalUpdate
		audit := &mockAuditService{}
		svc := &mockGoalService{
			updateGoalFn: func(_, _ string, update services.GoalUpdate) (*models.Goal, error) {
				got = update
				return &models.Goal{Status: *update.Status}, nil
			},
		}
		r := setupGoalRouter(newTestGoalHandler(svc, audit))

		rec := doRequest(r, "PUT", "/goals/"+testGoalID, `{"status":"cancelled"}`)

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
		}
		if got.Status == nil || *got.Status != models.GoalStatusCancelled {
			t.Errorf("expected cancelled, got %v", got.Status)
		}
		if len(audit.entries) != 1 || audit.entries[0].action != "UPDATE_GOAL" {
			t.Errorf("expected UPDATE_GOAL audit, got %+v", audit.entries)
		}
	})

	t.Run("returns 400 on invalid status", func(t *testing.T) {
		r := setupGoalRouter(newTestGoalHandler(&mockGoalService{}, &mockAuditService{}))

		rec := doRequest(r, "PUT", "/goals/"+testGoalID, `{"status":"done"}`)

		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", rec.Code)
		}
	})
}

func TestGoalHandler_Deposit(t *testing.T) {
	t.Run("defaults the date to now", func(t *testing.T) {
		var gotDate time.Time
		var gotAmount int64
		audit := &mockAuditService{}
		svc := &mockGoalService{
			depositFn: func(_, goalID string, amount int64, date time.Time, note string) (*models.Goal, *models.SavingsTransaction, error) {
				gotDate, gotAmount = date, amount
				goal := &models.Goal{CurrentAmount: amount}
				goal.ID = goalID
				return goal, &models.SavingsTransaction{GoalID: goalID, Type: models.SavingsDeposit, Amount: amount, Date: date, Note: note}, nil
			},
		}
		r := setupGoalRouter(newTestGoalHandler(svc, audit))

		rec := doRequest(r, "POST", "/goals/"+testGoalID+"/deposit", `{"amount":5000,"note":"payday"}`)

		if rec.Code != http.StatusCreated {
			t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
		}
		if !gotDate.Equal(fixedNow) || gotAmount != 5000 {
			t.Errorf("unexpected deposit %d at %v", gotAmount, gotDate)
		}
		body := parseJSON(t, rec)
		if body["transaction"].(map[string]interface{})["type"] != "deposit" {
			t.Errorf("expected deposit entry, got %v", body["transaction"])
		}
		if len(audit.entries) != 1 || audit.entries[0].action != "GOAL_DEPOSIT" {
			t.Errorf("expected GOAL_DEPOSIT audit, got %+v", audit.entries)
		}
	})

	t.Run("accepts a plain date", func(t *testing.T) {
		var gotDate time.Time
		svc := &mockGoalService{
			depositFn: func(_, _ string, _ int64, date time.Time, _ string) (*models.Goal, *models.SavingsTransaction, error) {
				gotDate = date
				return &models.Goal{}, &models.SavingsTransaction{}, nil
			},
		}
		r := setupGoalRouter(newTestGoalHandler(svc, &mockAuditService{}))

		rec := doRequest(r, "POST", "/goals/"+testGoalID+"/deposit", `{"amount":5000,"date":"2025-05-01"}`)

		if rec.Code != http.StatusCreated {
			t.Fatalf("expected 201, got %d", rec.Code)
		}
		if !gotDate.Equal(time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC)) {
			t.Errorf("unexpected date %v", gotDate)
		}
	})

	t.Run("refuses deposits into inactive goals", func(t *testing.T) {
		svc := &mockGoalService{
			depositFn: func(string, string, int64, time.Time, string) (*models.Goal, *models.SavingsTransaction, error) {
				return nil, nil, apperrors.ErrGoalNotActive
			},
		}
		r := setupGoalRouter(newTestGoalHandler(svc, &mockAuditService{}))

		rec := doRequest(r, "POST", "/goals/"+testGoalID+"/deposit", `{"amount":5000}`)

		if rec.Code != http.StatusConflict {
			t.Fatalf("expected 409, got %d", rec.Code)
		}
		assertErrorCode(t, parseJSON(t, rec), "GOAL_NOT_ACTIVE")
	})

	t.Run("returns 400 on negative amount", func(t *testing.T) {
		r := setupGoalRouter(newTestGoalHandler(&mockGoalService{}, &mockAuditService{}))

		rec := doRequest(r, "POST", "/goals/"+testGoalID+"/deposit", `{"amount":-5}`)

		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", rec.Code)
		}
	})
}

func TestGoalHandler_Withdraw(t *testing.T) {
	svc := &mockGoalService{
		withdrawFn: func(string, string, int64, time.Time, string) (*models.Goal, *models.SavingsTransaction, error) {
			return nil, nil, apperrors.ErrInsufficientSavings
		},
	}
	audit := &mockAuditService{}
	r := setupGoalRouter(newTestGoalHandler(svc, audit))

	rec := doRequest(r, "POST", "/goals/"+testGoalID+"/withdraw", `{"amount":999999}`)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	assertErrorCode(t, parseJSON(t, rec), "INSUFFICIENT_SAVINGS")
	if len(audit.entries) != 0 {
		t.Errorf("expected no audit entry on failure, got %+v", audit.entries)
	}
}

func TestGoalHandler_GetGoalProgress(t *testing.T) {
	var gotNow time.Time
	needed := int64(25000)
	svc := &mockGoalService{
		getGoalProgressFn: func(_, goalID string, now time.Time) (*services.GoalProgress, error) {
			gotNow = now
			return &services.GoalProgress{GoalID: goalID, TargetAmount: 100000, CurrentAmount: 50000, Remaining: 50000, Percentage: 50, MonthlyAmountNeeded: &needed}, nil
		},
	}
	r := setupGoalRouter(newTestGoalHandler(svc, &mockAuditService{}))

	rec := doRequest(r, "GET", "/goals/"+testGoalID+"/progress", "")

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !gotNow.Equal(fixedNow) {
		t.Errorf("expected handler clock, got %v", gotNow)
	}
	progress := parseJSON(t, rec)["progress"].(map[string]interface{})
	if progress["monthly_amount_needed"].(float64) != 25000 {
		t.Errorf("unexpected monthly amount %v", progress["monthly_amount_needed"])
	}
}
