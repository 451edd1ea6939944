package services

import (
	"github.com/shopspring/decimal"

	apperrors "fintrack/internal/errors"
	"fintrack/internal/models"
)

// share is one participant's computed portion of a split.
type share struct {
	Amount     int64
	Percentage *decimal.Decimal
}

// computeShares divides total (in cents) among participants. The payer's
// own share, when included, is never returned. Rounding leftovers go cent by
// cent to the first participants, except for equal splits with the payer
// included where the payer absorbs them.
func computeShares(total int64, req SplitRequest) ([]share, error) {
	n := len(req.Participants)
	if n == 0 {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidSplit, "at least one participant is required")
	}
	if total <= 0 {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidSplit, "transaction amount must be positive")
	}

	switch req.Method {
	case models.SplitMethodEqual:
		return equalShares(total, n, req.IncludePayer), nil
	case models.SplitMethodPercentage:
		return percentageShares(total, req)
	case models.SplitMethodExact:
		return exactShares(total, req)
	default:
		return nil, apperrors.WithMessage(apperrors.ErrInvalidSplit, "method must be equal, percentage or exact")
	}
}

func equalShares(total int64, participants int, includePayer bool) []share {
	heads := int64(participants)
	if includePayer {
		heads++
	}
	base := total / heads
	remainder := total % heads

	shares := make([]share, participants)
	for i := range shares {
		shares[i].Amount = base
		if !includePayer && int64(i) < remainder {
			shares[i].Amount++
		}
	}
	return shares
}

func percentageShares(total int64, req SplitRequest) ([]share, error) {
	amount := decimal.NewFromInt(total)
	sum := decimal.Zero
	for _, p := range req.Participants {
		if p.Percentage == nil || !p.Percentage.IsPositive() {
			return nil, apperrors.WithMessage(apperrors.ErrInvalidSplit, "every participant needs a positive percentage")
		}
		sum = sum.Add(*p.Percentage)
	}
	if sum.GreaterThan(hundred) {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidSplit, "percentages exceed 100")
	}
	if !req.IncludePayer && !sum.Equal(hundred) {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidSplit, "percentages must total 100 when the payer is excluded")
	}

	target := amount.Mul(sum).Div(hundred).Round(0).IntPart()
	shares := make([]share, len(req.Participants))
	var assigned int64
	for i, p := range req.Participants {
		pct := *p.Percentage
		shares[i].Amount = amount.Mul(pct).Div(hundred).Floor().IntPart()
		shares[i].Percentage = &pct
		assigned += shares[i].Amount
	}
	for i := 0; assigned < target; i = (i + 1) % len(shares) {
		shares[i].Amount++
		assigned++
	}
	return shares, nil
}

func exactShares(total int64, req SplitRequest) ([]share, error) {
	shares := make([]share, len(req.Participants))
	var sum int64
	for i, p := range req.Participants {
		if p.Amount == nil || *p.Amount <= 0 {
			return nil, apperrors.WithMessage(apperrors.ErrInvalidSplit, "every participant needs a positive amount")
		}
		shares[i].Amount = *p.Amount
		sum += *p.Amount
	}
	if sum > total {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidSplit, "amounts exceed the transaction amount")
	}
	if !req.IncludePayer && sum != total {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidSplit, "amounts must equal the transaction amount when the payer is excluded")
	}
	return shares, nil
}
