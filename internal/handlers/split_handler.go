package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	apperrors "fintrack/internal/errors"
	"fintrack/internal/models"
	"fintrack/internal/pagination"
	"fintrack/internal/services"
)

// SplitHandler handles split groups and expense splits.
type SplitHandler struct {
	splitService services.SplitServicer
	auditService services.AuditServicer
	now          func() time.Time
}

// NewSplitHandler creates a new SplitHandler.
func NewSplitHandler(splitService services.SplitServicer, auditService services.AuditServicer) *SplitHandler {
	return &SplitHandler{splitService: splitService, auditService: auditService, now: time.Now}
}

// MemberRequest names a split group member.
type MemberRequest struct {
	Name  string `json:"name" binding:"required,min=1,max=100"`
	Email string `json:"email" binding:"omitempty,email,max=255"`
}

// CreateGroupRequest represents the request payload for a split group.
type CreateGroupRequest struct {
	Name        string          `json:"name" binding:"required,min=1,max=100"`
	Description string          `json:"description" binding:"max=500"`
	Members     []MemberRequest `json:"members" binding:"omitempty,dive"`
}

// UpdateGroupRequest represents the request payload for renaming a group.
type UpdateGroupRequest struct {
	Name        *string `json:"name" binding:"omitempty,min=1,max=100"`
	Description *string `json:"description" binding:"omitempty,max=500"`
}

// ParticipantRequest is one person sharing a transaction.
type ParticipantRequest struct {
	MemberID   *string          `json:"member_id" binding:"omitempty,uuid"`
	Name       string           `json:"name" binding:"max=100"`
	Email      string           `json:"email" binding:"omitempty,email,max=255"`
	Percentage *decimal.Decimal `json:"percentage"`
	Amount     *int64           `json:"amount" binding:"omitempty,gt=0"`
}

// SplitTransactionRequest describes how to divide a transaction.
type SplitTransactionRequest struct {
	Method       models.SplitMethod   `json:"method" binding:"required,split_method"`
	IncludePayer bool                 `json:"include_payer"`
	Participants []ParticipantRequest `json:"participants" binding:"required,min=1,dive"`
}

// CreateGroup handles the creation of a split group.
// @Summary     Create a split group
// @Tags        splits
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       request body CreateGroupRequest true "Group with optional members"
// @Success     201 {object} models.SplitGroup "Group created"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Router      /split-groups [post]
func (h *SplitHandler) CreateGroup(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	var req CreateGroupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	members := make([]services.MemberInput, 0, len(req.Members))
	for _, m := range req.Members {
		members = append(members, services.MemberInput{Name: m.Name, Email: m.Email})
	}

	group, err := h.splitService.CreateGroup(userID, req.Name, req.Description, members)
	if err != nil {
		respondWithError(c, err)
		return
	}

	h.auditService.Log(userID, "CREATE_SPLIT_GROUP", "split_group", group.ID, c.ClientIP(),
		map[string]interface{}{"name": group.Name, "members": len(members)})

	c.JSON(http.StatusCreated, gin.H{"group": group})
}

// GetGroups lists the user's split groups.
// @Summary     List split groups
// @Tags        splits
// @Produce     json
// @Security    BearerAuth
// @Param       page      query int false "Page number (default 1)"
// @Param       page_size query int false "Items per page (default 20, max 100)"
// @Success     200 {object} pagination.PageResponse[models.SplitGroup] "Paginated groups"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Router      /split-groups [get]
func (h *SplitHandler) GetGroups(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	var page pagination.PageRequest
	if err := c.ShouldBindQuery(&page); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	result, err := h.splitService.GetUserGroups(userID, page)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// GetGroup returns a group with its members.
// @Summary     Get split group
// @Tags        splits
// @Produce     json
// @Security    BearerAuth
// @Param       id path string true "Group ID"
// @Success     200 {object} models.SplitGroup "Group"
// @Failure     404 {object} ErrorResponse "Group not found"
// @Router      /split-groups/{id} [get]
func (h *SplitHandler) GetGroup(c *gin.Context) {
	userID, groupID, ok := userAndPathID(c, "id")
	if !ok {
		return
	}

	group, err := h.splitService.GetGroupByID(userID, groupID)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"group": group})
}

// UpdateGroup renames a group or changes its description.
// @Summary     Update split group
// @Tags        splits
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       id      path string             true "Group ID"
// @Param       request body UpdateGroupRequest true "Fields to change"
// @Success     200 {object} models.SplitGroup "Updated group"
// @Failure     404 {object} ErrorResponse "Group not found"
// @Router      /split-groups/{id} [put]
func (h *SplitHandler) UpdateGroup(c *gin.Context) {
	userID, groupID, ok := userAndPathID(c, "id")
	if !ok {
		return
	}

	var req UpdateGroupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	group, err := h.splitService.UpdateGroup(userID, groupID, req.Name, req.Description)
	if err != nil {
		respondWithError(c, err)
		return
	}

	h.auditService.Log(userID, "UPDATE_SPLIT_GROUP", "split_group", groupID, c.ClientIP(), nil)

	c.JSON(http.StatusOK, gin.H{"group": group})
}

// DeleteGroup removes a group and its members.
// @Summary     Delete split group
// @Tags        splits
// @Produce     json
// @Security    BearerAuth
// @Param       id path string true "Group ID"
// @Success     200 {object} MessageResponse "Group deleted"
// @Failure     404 {object} ErrorResponse "Group not found"
// @Router      /split-groups/{id} [delete]
func (h *SplitHandler) DeleteGroup(c *gin.Context) {
	userID, groupID, ok := userAndPathID(c, "id")
	if !ok {
		return
	}

	if err := h.splitService.DeleteGroup(userID, groupID); err != nil {
		respondWithError(c, err)
		return
	}

	h.auditService.Log(userID, "DELETE_SPLIT_GROUP", "split_group", groupID, c.ClientIP(), nil)

	c.JSON(http.StatusOK, gin.H{"message": "Split group deleted successfully"})
}

// AddMember adds a person to a group.
// @Summary     Add group member
// @Tags        splits
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       id      path string        true "Group ID"
// @Param       request body MemberRequest true "Member"
// @Success     201 {object} models.SplitGroupMember "Member added"
// @Failure     404 {object} ErrorResponse "Group not found"
// @Router      /split-groups/{id}/members [post]
func (h *SplitHandler) AddMember(c *gin.Context) {
	userID, groupID, ok := userAndPathID(c, "id")
	if !ok {
		return
	}

	var req MemberRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	member, err := h.splitService.AddMember(userID, groupID, services.MemberInput{Name: req.Name, Email: req.Email})
	if err != nil {
		respondWithError(c, err)
		return
	}

	h.auditService.Log(userID, "ADD_SPLIT_MEMBER", "split_group", groupID, c.ClientIP(),
		map[string]interface{}{"member_id": member.ID})

	c.JSON(http.StatusCreated, gin.H{"member": member})
}

// RemoveMember removes a person from a group.
// @Summary     Remove group member
// @Tags        splits
// @Produce     json
// @Security    BearerAuth
// @Param       id       path string true "Group ID"
// @Param       memberId path string true "Member ID"
// @Success     200 {object} MessageResponse "Member removed"
// @Failure     404 {object} ErrorResponse "Group or member not found"
// @Router      /split-groups/{id}/members/{memberId} [delete]
func (h *SplitHandler) RemoveMember(c *gin.Context) {
	userID, groupID, ok := userAndPathID(c, "id")
	if !ok {
		return
	}
	memberID, err := parsePathID(c, "memberId")
	if err != nil {
		respondWithError(c, err)
		return
	}

	if err := h.splitService.RemoveMember(userID, groupID, memberID); err != nil {
		respondWithError(c, err)
		return
	}

	h.auditService.Log(userID, "REMOVE_SPLIT_MEMBER", "split_group", groupID, c.ClientIP(),
		map[string]interface{}{"member_id": memberID})

	c.JSON(http.StatusOK, gin.H{"message": "Member removed successfully"})
}

// SplitTransaction divides an expense between participants, replacing its
// pending splits.
// @Summary     Split a transaction
// @Description Split an expense equally, by percentage or by exact amounts
// @Tags        splits
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       id      path string                  true "Transaction ID"
// @Param       request body SplitTransactionRequest true "Split definition"
// @Success     201 {array}  models.ExpenseSplit "Created splits"
// @Failure     400 {object} ErrorResponse "Invalid split"
// @Failure     404 {object} ErrorResponse "Transaction not found"
// @Router      /transactions/{id}/splits [post]
func (h *SplitHandler) SplitTransaction(c *gin.Context) {
	userID, transactionID, ok := userAndPathID(c, "id")
	if !ok {
		return
	}

	var req SplitTransactionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	participants := make([]services.SplitParticipant, 0, len(req.Participants))
	for _, p := range req.Participants {
		if p.MemberID == nil && strings.TrimSpace(p.Name) == "" {
			respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, "each participant needs a member_id or a name"))
			return
		}
		participants = append(participants, services.SplitParticipant{
			MemberID:   p.MemberID,
			Name:       p.Name,
			Email:      p.Email,
			Percentage: p.Percentage,
			Amount:     p.Amount,
		})
	}

	splits, err := h.splitService.SplitTransaction(userID, transactionID, services.SplitRequest{
		Method:       req.Method,
		IncludePayer: req.IncludePayer,
		Participants: participants,
	})
	if err != nil {
		respondWithError(c, err)
		return
	}

	h.auditService.Log(userID, "SPLIT_TRANSACTION", "transaction", transactionID, c.ClientIP(),
		map[string]interface{}{"method": req.Method, "participants": len(participants)})

	c.JSON(http.StatusCreated, gin.H{"splits": splits})
}

// GetTransactionSplits lists the splits of one transaction.
// @Summary     Transaction splits
// @Tags        splits
// @Produce     json
// @Security    BearerAuth
// @Param       id path string true "Transaction ID"
// @Success     200 {array}  models.ExpenseSplit "Splits"
// @Failure     404 {object} ErrorResponse "Transaction not found"
// @Router      /transactions/{id}/splits [get]
func (h *SplitHandler) GetTransactionSplits(c *gin.Context) {
	userID, transactionID, ok := userAndPathID(c, "id")
	if !ok {
		return
	}

	splits, err := h.splitService.GetTransactionSplits(userID, transactionID)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"splits": splits})
}

// GetSplits lists the user's splits across transactions.
// @Summary     List splits
// @Tags        splits
// @Produce     json
// @Security    BearerAuth
// @Param       status    query string false "Filter by status (pending/settled)"
// @Param       page      query int    false "Page number (default 1)"
// @Param       page_size query int    false "Items per page (default 20, max 100)"
// @Success     200 {object} pagination.PageResponse[models.ExpenseSplit] "Paginated splits"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Router      /splits [get]
func (h *SplitHandler) GetSplits(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	var page pagination.PageRequest
	if err := c.ShouldBindQuery(&page); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	var status *models.SplitStatus
	if v := c.Query("status"); v != "" {
		s := models.SplitStatus(v)
		if s != models.SplitStatusPending && s != models.SplitStatusSettled {
			respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, "status must be 'pending' or 'settled'"))
			return
		}
		status = &s
	}

	result, err := h.splitService.GetUserSplits(userID, page, status)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// SettleSplit marks a split as paid.
// @Summary     Settle split
// @Tags        splits
// @Produce     json
// @Security    BearerAuth
// @Param       id path string true "Split ID"
// @Success     200 {object} models.ExpenseSplit "Settled split"
// @Failure     404 {object} ErrorResponse "Split not found"
// @Failure     409 {object} ErrorResponse "Already settled"
// @Router      /splits/{id}/settle [post]
func (h *SplitHandler) SettleSplit(c *gin.Context) {
	userID, splitID, ok := userAndPathID(c, "id")
	if !ok {
		return
	}

	split, err := h.splitService.SettleSplit(userID, splitID, h.now().UTC())
	if err != nil {
		respondWithError(c, err)
		return
	}

	h.auditService.Log(userID, "SETTLE_SPLIT", "expense_split", splitID, c.ClientIP(), nil)

	c.JSON(http.StatusOK, gin.H{"split": split})
}

// DeleteSplit removes a split.
// @Summary     Delete split
// @Tags        splits
// @Produce     json
// @Security    BearerAuth
// @Param       id path string true "Split ID"
// @Success     200 {object} MessageResponse "Split deleted"
// @Failure     404 {object} ErrorResponse "Split not found"
// @Router      /splits/{id} [delete]
func (h *SplitHandler) DeleteSplit(c *gin.Context) {
	userID, splitID, ok := userAndPathID(c, "id")
	if !ok {
		return
	}

	if err := h.splitService.DeleteSplit(userID, splitID); err != nil {
		respondWithError(c, err)
		return
	}

	h.auditService.Log(userID, "DELETE_SPLIT", "expense_split", splitID, c.ClientIP(), nil)

	c.JSON(http.StatusOK, gin.H{"message": "Split deleted successfully"})
}

// GetBalances reports what each participant still owes.
// @Summary     Outstanding balances
// @Tags        splits
// @Produce     json
// @Security    BearerAuth
// @Success     200 {array}  services.ParticipantBalance "Balances"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Router      /splits/balances [get]
func (h *SplitHandler) GetBalances(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	balances, err := h.splitService.GetBalances(userID)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"balances": balances})
}
