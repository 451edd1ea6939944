package services

import (
	"errors"
	"sort"
	"strings"
	"time"

	"gorm.io/gorm"

	apperrors "fintrack/internal/errors"
	"fintrack/internal/models"
	"fintrack/internal/pagination"
)

// splitService handles split groups and shared expenses.
type splitService struct {
	db *gorm.DB
}

// NewSplitService creates a new SplitServicer.
func NewSplitService(db *gorm.DB) SplitServicer {
	return &splitService{db: db}
}

// CreateGroup creates a split group with its initial members.
func (s *splitService) CreateGroup(userID, name, description string, members []MemberInput) (*models.SplitGroup, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "name is required")
	}

	group := &models.SplitGroup{UserID: userID, Name: name, Description: description}
	for _, m := range members {
		memberName := strings.TrimSpace(m.Name)
		if memberName == "" {
			return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "member name is required")
		}
		group.Members = append(group.Members, models.SplitGroupMember{Name: memberName, Email: strings.TrimSpace(m.Email)})
	}

	if err := s.db.Create(group).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return group, nil
}

// GetUserGroups retrieves a paginated list of the user's groups with members.
func (s *splitService) GetUserGroups(userID string, page pagination.PageRequest) (*pagination.PageResponse[models.SplitGroup], error) {
	page.Defaults()

	base := s.db.Model(&models.SplitGroup{}).Where("user_id = ?", userID)

	var totalItems int64
	if err := base.Count(&totalItems).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	var groups []models.SplitGroup
	if err := base.Preload("Members").
		Order("name ASC").Order("id ASC").
		Scopes(pagination.Paginate(page)).
		Find(&groups).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	result := pagination.NewPageResponse(groups, page.Page, page.PageSize, totalItems)
	return &result, nil
}

// GetGroupByID retrieves a group with its members.
func (s *splitService) GetGroupByID(userID, groupID string) (*models.SplitGroup, error) {
	var group models.SplitGroup
	if err := s.db.Preload("Members").Where("id = ? AND user_id = ?", groupID, userID).First(&group).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrSplitGroupNotFound
		}
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return &group, nil
}

// UpdateGroup renames a group or changes its description.
func (s *splitService) UpdateGroup(userID, groupID string, name, description *string) (*models.SplitGroup, error) {
	group, err := s.GetGroupByID(userID, groupID)
	if err != nil {
		return nil, err
	}

	updates := make(map[string]interface{})
	if name != nil {
		trimmed := strings.TrimSpace(*name)
		if trimmed == "" {
			return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "name cannot be empty")
		}
		updates["name"] = trimmed
	}
	if description != nil {
		updates["description"] = *description
	}
	if len(updates) == 0 {
		return group, nil
	}

	if err := s.db.Model(group).Updates(updates).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return s.GetGroupByID(userID, groupID)
}

// DeleteGroup soft-deletes a group and its members. Existing splits keep the
// participant name and email they were created with.
func (s *splitService) DeleteGroup(userID, groupID string) error {
	group, err := s.GetGroupByID(userID, groupID)
	if err != nil {
		return err
	}

	return s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("group_id = ?", group.ID).Delete(&models.SplitGroupMember{}).Error; err != nil {
			return apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
		if err := tx.Delete(group).Error; err != nil {
			return apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
		return nil
	})
}

// AddMember adds a contact to a group.
func (s *splitService) AddMember(userID, groupID string, in MemberInput) (*models.SplitGroupMember, error) {
	group, err := s.GetGroupByID(userID, groupID)
	if err != nil {
		return nil, err
	}
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "member name is required")
	}

	member := &models.SplitGroupMember{GroupID: group.ID, Name: name, Email: strings.TrimSpace(in.Email)}
	if err := s.db.Create(member).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return member, nil
}

// RemoveMember removes a contact from a group.
func (s *splitService) RemoveMember(userID, groupID, memberID string) error {
	group, err := s.GetGroupByID(userID, groupID)
	if err != nil {
		return err
	}

	result := s.db.Where("id = ? AND group_id = ?", memberID, group.ID).Delete(&models.SplitGroupMember{})
	if result.Error != nil {
		return apperrors.Wrap(apperrors.ErrInternalServer, result.Error)
	}
	if result.RowsAffected == 0 {
		return apperrors.ErrSplitMemberNotFound
	}
	return nil
}

// SplitTransaction divides an expense among participants, replacing its
// pending splits. Transactions with settled splits cannot be re-split.
func (s *splitService) SplitTransaction(userID, transactionID string, req SplitRequest) ([]models.ExpenseSplit, error) {
	var transaction models.Transaction
	if err := s.db.Where("id = ? AND user_id = ?", transactionID, userID).First(&transaction).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrTransactionNotFound
		}
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	if transaction.Type != models.TransactionTypeExpense {
		return nil, apperrors.ErrUnsplittableTransaction
	}

	participants, err := s.resolveParticipants(userID, req.Participants)
	if err != nil {
		return nil, err
	}
	shares, err := computeShares(transaction.Amount, req)
	if err != nil {
		return nil, err
	}

	splits := make([]models.ExpenseSplit, len(participants))
	for i, p := range participants {
		splits[i] = models.ExpenseSplit{
			UserID:           userID,
			TransactionID:    transaction.ID,
			MemberID:         p.MemberID,
			ParticipantName:  p.Name,
			ParticipantEmail: p.Email,
			Method:           req.Method,
			Amount:           shares[i].Amount,
			Percentage:       shares[i].Percentage,
			Status:           models.SplitStatusPending,
		}
	}

	err = s.db.Transaction(func(tx *gorm.DB) error {
		var settled int64
		if err := tx.Model(&models.ExpenseSplit{}).
			Where("transaction_id = ? AND status = ?", transaction.ID, models.SplitStatusSettled).
			Count(&settled).Error; err != nil {
			return apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
		if settled > 0 {
			return apperrors.WithMessage(apperrors.ErrInvalidSplit, "transaction already has settled splits")
		}
		if err := tx.Where("transaction_id = ? AND status = ?", transaction.ID, models.SplitStatusPending).
			Delete(&models.ExpenseSplit{}).Error; err != nil {
			return apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
		if err := tx.Create(&splits).Error; err != nil {
			return apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return splits, nil
}

// resolveParticipants fills names from group members the user owns.
func (s *splitService) resolveParticipants(userID string, in []SplitParticipant) ([]SplitParticipant, error) {
	out := make([]SplitParticipant, len(in))
	for i, p := range in {
		if p.MemberID != nil && *p.MemberID != "" {
			var member models.SplitGroupMember
			err := s.db.Joins("JOIN split_groups ON split_groups.id = split_group_members.group_id AND split_groups.deleted_at IS NULL").
				Where("split_group_members.id = ? AND split_groups.user_id = ?", *p.MemberID, userID).
				First(&member).Error
			if err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return nil, apperrors.ErrSplitMemberNotFound
				}
				return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
			}
			p.Name = member.Name
			if p.Email == "" {
				p.Email = member.Email
			}
		} else {
			p.MemberID = nil
			p.Name = strings.TrimSpace(p.Name)
			if p.Name == "" {
				return nil, apperrors.WithMessage(apperrors.ErrInvalidSplit, "participant needs a member_id or a name")
			}
		}
		out[i] = p
	}
	return out, nil
}

// GetTransactionSplits lists the splits of one transaction.
func (s *splitService) GetTransactionSplits(userID, transactionID string) ([]models.ExpenseSplit, error) {
	var count int64
	if err := s.db.Model(&models.Transaction{}).Where("id = ? AND user_id = ?", transactionID, userID).Count(&count).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	if count == 0 {
		return nil, apperrors.ErrTransactionNotFound
	}

	var splits []models.ExpenseSplit
	if err := s.db.Where("transaction_id = ? AND user_id = ?", transactionID, userID).
		Order("created_at ASC").Order("id ASC").
		Find(&splits).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return splits, nil
}

// GetUserSplits retrieves a paginated list of splits, optionally by status.
func (s *splitService) GetUserSplits(userID string, page pagination.PageRequest, status *models.SplitStatus) (*pagination.PageResponse[models.ExpenseSplit], error) {
	page.Defaults()

	base := s.db.Model(&models.ExpenseSplit{}).Where("user_id = ?", userID)
	if status != nil {
		base = base.Where("status = ?", *status)
	}

	var totalItems int64
	if err := base.Count(&totalItems).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	var splits []models.ExpenseSplit
	if err := base.Order("created_at DESC").Order("id DESC").
		Scopes(pagination.Paginate(page)).
		Find(&splits).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	result := pagination.NewPageResponse(splits, page.Page, page.PageSize, totalItems)
	return &result, nil
}

func (s *splitService) getSplit(userID, splitID string) (*models.ExpenseSplit, error) {
	var split models.ExpenseSplit
	if err := s.db.Where("id = ? AND user_id = ?", splitID, userID).First(&split).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrSplitNotFound
		}
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return &split, nil
}

// SettleSplit marks a participant's share as paid back.
func (s *splitService) SettleSplit(userID, splitID string, at time.Time) (*models.ExpenseSplit, error) {
	split, err := s.getSplit(userID, splitID)
	if err != nil {
		return nil, err
	}
	if split.Status == models.SplitStatusSettled {
		return nil, apperrors.ErrSplitAlreadySettled
	}
	if at.IsZero() {
		at = time.Now().UTC()
	}

	settledAt := at.UTC()
	result := s.db.Model(&models.ExpenseSplit{}).
		Where("id = ? AND status = ?", split.ID, models.SplitStatusPending).
		Updates(map[string]interface{}{"status": models.SplitStatusSettled, "settled_at": settledAt})
	if result.Error != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, result.Error)
	}
	if result.RowsAffected == 0 {
		return nil, apperrors.ErrSplitAlreadySettled
	}

	split.Status = models.SplitStatusSettled
	split.SettledAt = &settledAt
	return split, nil
}

// DeleteSplit soft-deletes a single split.
func (s *splitService) DeleteSplit(userID, splitID string) error {
	split, err := s.getSplit(userID, splitID)
	if err != nil {
		return err
	}
	if err := s.db.Delete(split).Error; err != nil {
		return apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return nil
}

// GetBalances totals what each participant still owes, largest first.
func (s *splitService) GetBalances(userID string) ([]ParticipantBalance, error) {
	var rows []struct {
		ParticipantName  string
		ParticipantEmail string
		Outstanding      int64
		PendingSplits    int
	}
	if err := s.db.Model(&models.ExpenseSplit{}).
		Select("participant_name, participant_email, COALESCE(SUM(amount), 0) AS outstanding, COUNT(*) AS pending_splits").
		Where("user_id = ? AND status = ?", userID, models.SplitStatusPending).
		Group("participant_name, participant_email").
		Scan(&rows).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	balances := make([]ParticipantBalance, len(rows))
	for i, r := range rows {
		balances[i] = ParticipantBalance(r)
	}
	sort.SliceStable(balances, func(i, j int) bool {
		if balances[i].Outstanding != balances[j].Outstanding {
			return balances[i].Outstanding > balances[j].Outstanding
		}
		return balances[i].ParticipantName < balances[j].ParticipantName
	})
	return balances, nil
}
