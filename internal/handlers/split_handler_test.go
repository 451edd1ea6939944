package handlers

import (
	"net/http"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	apperrors "fintrack/internal/errors"
	"fintrack/internal/models"
	"fintrack/internal/pagination"
	"fintrack/internal/services"
)

const (
	testGroupID  = "0190c5a2-7e1f-7b3a-9c4d-000000000601"
	testMemberID = "0190c5a2-7e1f-7b3a-9c4d-000000000602"
	testSplitID  = "0190c5a2-7e1f-7b3a-9c4d-000000000603"
)

// --- mock split service ---

type mockSplitService struct {
	createGroupFn      func(userID, name, description string, members []services.MemberInput) (*models.SplitGroup, error)
	removeMemberFn     func(userID, groupID, memberID string) error
	splitTransactionFn func(userID, transactionID string, req services.SplitRequest) ([]models.ExpenseSplit, error)
	getUserSplitsFn    func(userID string, page pagination.PageRequest, status *models.SplitStatus) (*pagination.PageResponse[models.ExpenseSplit], error)
	settleSplitFn      func(userID, splitID string, at time.Time) (*models.ExpenseSplit, error)
	getBalancesFn      func(userID string) ([]services.ParticipantBalance, error)
}

func (m *mockSplitService) CreateGroup(userID, name, description string, members []services.MemberInput) (*models.SplitGroup, error) {
	if m.createGroupFn != nil {
		return m.createGroupFn(userID, name, description, members)
	}
	return &models.SplitGroup{}, nil
}

func (m *mockSplitService) GetUserGroups(string, pagination.PageRequest) (*pagination.PageResponse[models.SplitGroup], error) {
	resp := pagination.NewPageResponse([]models.SplitGroup{}, 1, 20, 0)
	return &resp, nil
}

func (m *mockSplitService) GetGroupByID(string, string) (*models.SplitGroup, error) {
	return &models.SplitGroup{}, nil
}

func (m *mockSplitService) UpdateGroup(string, string, *string, *string) (*models.SplitGroup, error) {
	return &models.SplitGroup{}, nil
}

func (m *mockSplitService) DeleteGroup(string, string) error { return nil }

func (m *mockSplitService) AddMember(_, groupID string, in services.MemberInput) (*models.SplitGroupMember, error) {
	member := &models.SplitGroupMember{GroupID: groupID, Name: in.Name, Email: in.Email}
	member.ID = testMemberID
	return member, nil
}

func (m *mockSplitService) RemoveMember(userID, groupID, memberID string) error {
	if m.removeMemberFn != nil {
		return m.removeMemberFn(userID, groupID, memberID)
	}
	return nil
}

func (m *mockSplitService) SplitTransaction(userID, transactionID string, req services.SplitRequest) ([]models.ExpenseSplit, error) {
	if m.splitTransactionFn != nil {
		return m.splitTransactionFn(userID, transactionID, req)
	}
	return []models.ExpenseSplit{}, nil
}

func (m *mockSplitService) GetTransactionSplits(string, string) ([]models.ExpenseSplit, error) {
	return []models.ExpenseSplit{}, nil
}

func (m *mockSplitService) GetUserSplits(userID string, page pagination.PageRequest, status *models.SplitStatus) (*pagination.PageResponse[models.ExpenseSplit], error) {
	if m.getUserSplitsFn != nil {
		return m.getUserSplitsFn(userID, page, status)
	}
	resp := pagination.NewPageResponse([]models.ExpenseSplit{}, 1, 20, 0)
	return &resp, nil
}

func (m *mockSplitService) SettleSplit(userID, splitID string, at time.Time) (*models.ExpenseSplit, error) {
	if m.settleSplitFn != nil {
		return m.settleSplitFn(userID, splitID, at)
	}
	return &models.ExpenseSplit{}, nil
}

func (m *mockSplitService) DeleteSplit(string, string) error { return nil }

func (m *mockSplitService) GetBalances(userID string) ([]services.ParticipantBalance, error) {
	if m.getBalancesFn != nil {
		return m.getBalancesFn(userID)
	}
	return []services.ParticipantBalance{}, nil
}

var _ services.SplitServicer = (*mockSplitService)(nil)

func newTestSplitHandler(svc *mockSplitService, audit *mockAuditService) *SplitHandler {
	h := NewSplitHandler(svc, audit)
	h.now = func() time.Time { return fixedNow }
	return h
}

func setupSplitRouter(handler *SplitHandler) *gin.Engine {
	r := gin.New()
	auth := r.Group("", injectUserID(testUserID))
	auth.POST("/split-groups", handler.CreateGroup)
	auth.GET("/split-groups", handler.GetGroups)
	auth.GET("/split-groups/:id", handler.GetGroup)
	auth.PUT("/split-groups/:id", handler.UpdateGroup)
	auth.DELETE("/split-groups/:id", handler.DeleteGroup)
	auth.POST("/split-groups/:id/members", handler.AddMember)
	auth.DELETE("/split-groups/:id/members/:memberId", handler.RemoveMember)
	auth.POST("/transactions/:id/splits", handler.SplitTransaction)
	auth.GET("/transactions/:id/splits", handler.GetTransactionSplits)
	auth.GET("/splits", handler.GetSplits)
	auth.GET("/splits/balances", handler.GetBalances)
	auth.POST("/splits/:id/settle", handler.SettleSplit)
	auth.DELETE("/splits/:id", handler.DeleteSplit)
	return r
}

func TestSplitHandler_CreateGroup(t *testing.T) {
	t.Run("returns 201 with members", func(t *testing.T) {
		var got []services.MemberInput
		svc := &mockSplitService{
			createGroupFn: func(userID, name, _ string, members []services.MemberInput) (*models.SplitGroup, error) {
				got = members
				group := &models.SplitGroup{UserID: userID, Name: name}
				group.ID = testGroupID
				return group, nil
			},
		}
		r := setupSplitRouter(newTestSplitHandler(svc, &mockAuditService{}))

		rec := doRequest(r, "POST", "/split-groups",
			`{"name":"Flatmates","members":[{"name":"Ana","email":"ana@example.com"},{"name":"Ben"}]}`)

		if rec.Code != http.StatusCreated {
			t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
		}
		if len(got) != 2 || got[0].Email != "ana@example.com" {
			t.Errorf("unexpected members %+v", got)
		}
	})

	t.Run("returns 400 on bad member email", func(t *testing.T) {
		r := setupSplitRouter(newTestSplitHandler(&mockSplitService{}, &mockAuditService{}))

		rec := doRequest(r, "POST", "/split-groups", `{"name":"Flatmates","members":[{"name":"Ana","email":"nope"}]}`)

		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", rec.Code)
		}
	})
}

func TestSplitHandler_Members(t *testing.T) {
	t.Run("adds a member", func(t *testing.T) {
		r := setupSplitRouter(newTestSplitHandler(&mockSplitService{}, &mockAuditService{}))

		rec := doRequest(r, "POST", "/split-groups/"+testGroupID+"/members", `{"name":"Cleo"}`)

		if rec.Code != http.StatusCreated {
			t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
		}
		member := parseJSON(t, rec)["member"].(map[string]interface{})
		if member["group_id"] != testGroupID {
			t.Errorf("unexpected group %v", member["group_id"])
		}
	})

	t.Run("removes a member by path id", func(t *testing.T) {
		var gotMember string
		svc := &mockSplitService{
			removeMemberFn: func(_, _, memberID string) error {
				gotMember = memberID
				return nil
			},
		}
		r := setupSplitRouter(newTestSplitHandler(svc, &mockAuditService{}))

		rec := doRequest(r, "DELETE", "/split-groups/"+testGroupID+"/members/"+testMemberID, "")

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		if gotMember != testMemberID {
			t.Errorf("expected %s, got %s", testMemberID, gotMember)
		}
	})

	t.Run("returns 400 on malformed member id", func(t *testing.T) {
		r := setupSplitRouter(newTestSplitHandler(&mockSplitService{}, &mockAuditService{}))

		rec := doRequest(r, "DELETE", "/split-groups/"+testGroupID+"/members/x", "")

		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", rec.Code)
		}
	})
}

func TestSplitHandler_SplitTransaction(t *testing.T) {
	t.Run("passes percentages through", func(t *testing.T) {
		var got services.SplitRequest
		audit := &mockAuditService{}
		svc := &mockSplitService{
			splitTransactionFn: func(_, transactionID string, req services.SplitRequest) ([]models.ExpenseSplit, error) {
				got = req
				return []models.ExpenseSplit{{TransactionID: transactionID, ParticipantName: "Ana", Amount: 600}}, nil
			},
		}
		r := setupSplitRouter(newTestSplitHandler(svc, audit))

		rec := doRequest(r, "POST", "/transactions/"+testTransactionID+"/splits",
			`{"method":"percentage","include_payer":true,"participants":[{"name":"Ana","percentage":"60"},{"member_id":"`+testMemberID+`","percentage":40}]}`)

		if rec.Code != http.StatusCreated {
			t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
		}
		if got.Method != models.SplitMethodPercentage || !got.IncludePayer || len(got.Participants) != 2 {
			t.Fatalf("unexpected request %+v", got)
		}
		if got.Participants[0].Percentage == nil || !got.Participants[0].Percentage.Equal(decimal.NewFromInt(60)) {
			t.Errorf("unexpected percentage %v", got.Participants[0].Percentage)
		}
		if got.Participants[1].MemberID == nil || *got.Participants[1].MemberID != testMemberID {
			t.Errorf("unexpected member %v", got.Participants[1].MemberID)
		}
		if len(audit.entries) != 1 || audit.entries[0].action != "SPLIT_TRANSACTION" {
			t.Errorf("expected SPLIT_TRANSACTION audit, got %+v", audit.entries)
		}
	})

	t.Run("returns 400 on anonymous participant", func(t *testing.T) {
		r := setupSplitRouter(newTestSplitHandler(&mockSplitService{}, &mockAuditService{}))

		rec := doRequest(r, "POST", "/transactions/"+testTransactionID+"/splits",
			`{"method":"equal","participants":[{"name":"  "}]}`)

		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", rec.Code)
		}
		assertErrorCode(t, parseJSON(t, rec), "INVALID_INPUT")
	})

	t.Run("returns 400 on unknown method", func(t *testing.T) {
		r := setupSplitRouter(newTestSplitHandler(&mockSplitService{}, &mockAuditService{}))

		rec := doRequest(r, "POST", "/transactions/"+testTransactionID+"/splits",
			`{"method":"shares","participants":[{"name":"Ana"}]}`)

		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", rec.Code)
		}
	})

	t.Run("returns 400 without participants", func(t *testing.T) {
		r := setupSplitRouter(newTestSplitHandler(&mockSplitService{}, &mockAuditService{}))

		rec := doRequest(r, "POST", "/transactions/"+testTransactionID+"/splits", `{"method":"equal","participants":[]}`)

		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", rec.Code)
		}
	})

	t.Run("surfaces service errors", func(t *testing.T) {
		svc := &mockSplitService{
			splitTransactionFn: func(string, string, services.SplitRequest) ([]models.ExpenseSplit, error) {
				return nil, apperrors.ErrUnsplittableTransaction
			},
		}
		r := setupSplitRouter(newTestSplitHandler(svc, &mockAuditService{}))

		rec := doRequest(r, "POST", "/transactions/"+testTransactionID+"/splits",
			`{"method":"equal","participants":[{"name":"Ana"}]}`)

		assertErrorCode(t, parseJSON(t, rec), "UNSPLITTABLE_TRANSACTION")
	})
}

func TestSplitHandler_GetSplits(t *testing.T) {
	t.Run("filters by status", func(t *testing.T) {
		var got *models.SplitStatus
		svc := &mockSplitService{
			getUserSplitsFn: func(_ string, _ pagination.PageRequest, status *models.SplitStatus) (*pagination.PageResponse[models.ExpenseSplit], error) {
				got = status
				resp := pagination.NewPageResponse([]models.ExpenseSplit{}, 1, 20, 0)
				return &resp, nil
			},
		}
		r := setupSplitRouter(newTestSplitHandler(svc, &mockAuditService{}))

		rec := doRequest(r, "GET", "/splits?status=settled", "")

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		if got == nil || *got != models.SplitStatusSettled {
			t.Errorf("expected settled, got %v", got)
		}
	})

	t.Run("returns 400 on unknown status", func(t *testing.T) {
		r := setupSplitRouter(newTestSplitHandler(&mockSplitService{}, &mockAuditService{}))

		rec := doRequest(r, "GET", "/splits?status=overdue", "")

		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", rec.Code)
		}
	})
}

func TestSplitHandler_SettleSplit(t *testing.T) {
	t.Run("settles at the handler clock", func(t *testing.T) {
		var got time.Time
		svc := &mockSplitService{
			settleSplitFn: func(_, _ string, at time.Time) (*models.ExpenseSplit, error) {
				got = at
				return &models.ExpenseSplit{Status: models.SplitStatusSettled, SettledAt: &at}, nil
			},
		}
		r := setupSplitRouter(newTestSplitHandler(svc, &mockAuditService{}))

		rec := doRequest(r, "POST", "/splits/"+testSplitID+"/settle", "")

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		if !got.Equal(fixedNow) {
			t.Errorf("expected %v, got %v", fixedNow, got)
		}
	})

	t.Run("returns 409 when already settled", func(t *testing.T) {
		svc := &mockSplitService{
			settleSplitFn: func(string, string, time.Time) (*models.ExpenseSplit, error) {
				return nil, apperrors.ErrSplitAlreadySettled
			},
		}
		r := setupSplitRouter(newTestSplitHandler(svc, &mockAuditService{}))

		rec := doRequest(r, "POST", "/splits/"+testSplitID+"/settle", "")

		if rec.Code != http.StatusConflict {
			t.Fatalf("expected 409, got %d", rec.Code)
		}
	})
}

func TestSplitHandler_GetBalances(t *testing.T) {
	svc := &mockSplitService{
		getBalancesFn: func(string) ([]services.ParticipantBalance, error) {
			return []services.ParticipantBalance{{ParticipantName: "Ana", Outstanding: 1500, PendingSplits: 2}}, nil
		},
	}
	r := setupSplitRouter(newTestSplitHandler(svc, &mockAuditService{}))

	rec := doRequest(r, "GET", "/splits/balances", "")

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	balances := parseJSON(t, rec)["balances"].([]interface{})
	if len(balances) != 1 || balances[0].(map[string]interface{})["outstanding"].(float64) != 1500 {
		t.Errorf("unexpected balances %v", balances)
	}
}
