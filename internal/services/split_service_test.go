package services

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"fintrack/internal/models"
	"fintrack/internal/pagination"
	"fintrack/internal/testutil"
	"fintrack/internal/uuid"
)

func pct(s string) *decimal.Decimal {
	d := decimal.RequireFromString(s)
	return &d
}

func amt(v int64) *int64 { return &v }

func named(names ...string) []SplitParticipant {
	out := make([]SplitParticipant, len(names))
	for i, n := range names {
		out[i] = SplitParticipant{Name: n}
	}
	return out
}

func sumShares(shares []share) int64 {
	var total int64
	for _, s := range shares {
		total += s.Amount
	}
	return total
}

func TestComputeShares(t *testing.T) {
	t.Run("equal_remainder_to_first", func(t *testing.T) {
		shares, err := computeShares(1000, SplitRequest{Method: models.SplitMethodEqual, Participants: named("a", "b", "c")})
		testutil.AssertNoError(t, err)

		want := []int64{334, 333, 333}
		for i, w := range want {
			if shares[i].Amount != w {
				t.Errorf("share %d: expected %d, got %d", i, w, shares[i].Amount)
			}
		}
	})

	t.Run("equal_payer_absorbs_remainder", func(t *testing.T) {
		shares, err := computeShares(1000, SplitRequest{Method: models.SplitMethodEqual, IncludePayer: true, Participants: named("a", "b")})
		testutil.AssertNoError(t, err)

		if shares[0].Amount != 333 || shares[1].Amount != 333 {
			t.Errorf("expected 333 each, got %+v", shares)
		}
	})

	t.Run("percentage_sums_exactly", func(t *testing.T) {
		shares, err := computeShares(1001, SplitRequest{
			Method: models.SplitMethodPercentage,
			Participants: []SplitParticipant{
				{Name: "a", Percentage: pct("33.3333")},
				{Name: "b", Percentage: pct("33.3333")},
				{Name: "c", Percentage: pct("33.3334")},
			},
		})
		testutil.AssertNoError(t, err)

		if got := sumShares(shares); got != 1001 {
			t.Errorf("expected shares to total 1001, got %d", got)
		}
		if shares[0].Percentage == nil || !shares[0].Percentage.Equal(decimal.RequireFromString("33.3333")) {
			t.Errorf("expected percentage to be kept, got %v", shares[0].Percentage)
		}
	})

	t.Run("percentage_with_payer", func(t *testing.T) {
		shares, err := computeShares(2000, SplitRequest{
			Method: models.SplitMethodPercentage, IncludePayer: true,
			Participants: []SplitParticipant{{Name: "a", Percentage: pct("25")}},
		})
		testutil.AssertNoError(t, err)
		if shares[0].Amount != 500 {
			t.Errorf("expected 500, got %d", shares[0].Amount)
		}
	})

	t.Run("percentage_must_total_100_without_payer", func(t *testing.T) {
		_, err := computeShares(2000, SplitRequest{
			Method:       models.SplitMethodPercentage,
			Participants: []SplitParticipant{{Name: "a", Percentage: pct("60")}},
		})
		testutil.AssertAppError(t, err, "INVALID_SPLIT")
	})

	t.Run("percentage_over_100", func(t *testing.T) {
		_, err := computeShares(2000, SplitRequest{
			Method: models.SplitMethodPercentage, IncludePayer: true,
			Participants: []SplitParticipant{{Name: "a", Percentage: pct("60")}, {Name: "b", Percentage: pct("41")}},
		})
		testutil.AssertAppError(t, err, "INVALID_SPLIT")
	})

	t.Run("exact", func(t *testing.T) {
		shares, err := computeShares(1500, SplitRequest{
			Method:       models.SplitMethodExact,
			Participants: []SplitParticipant{{Name: "a", Amount: amt(1000)}, {Name: "b", Amount: amt(500)}},
		})
		testutil.AssertNoError(t, err)
		if sumShares(shares) != 1500 {
			t.Errorf("expected 1500, got %d", sumShares(shares))
		}
	})

	t.Run("exact_must_equal_amount_without_payer", func(t *testing.T) {
		_, err := computeShares(1500, SplitRequest{
			Method:       models.SplitMethodExact,
			Participants: []SplitParticipant{{Name: "a", Amount: amt(1000)}},
		})
		testutil.AssertAppError(t, err, "INVALID_SPLIT")
	})

	t.Run("exact_over_amount", func(t *testing.T) {
		_, err := computeShares(1500, SplitRequest{
			Method: models.SplitMethodExact, IncludePayer: true,
			Participants: []SplitParticipant{{Name: "a", Amount: amt(1600)}},
		})
		testutil.AssertAppError(t, err, "INVALID_SPLIT")
	})

	t.Run("no_participants", func(t *testing.T) {
		_, err := computeShares(1500, SplitRequest{Method: models.SplitMethodEqual})
		testutil.AssertAppError(t, err, "INVALID_SPLIT")
	})

	t.Run("unknown_method", func(t *testing.T) {
		_, err := computeShares(1500, SplitRequest{Method: "weighted", Participants: named("a")})
		testutil.AssertAppError(t, err, "INVALID_SPLIT")
	})
}

func TestSplitGroups(t *testing.T) {
	t.Run("create_and_get", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := NewSplitService(db)
		user := testutil.CreateTestUser(t, db)

		group, err := svc.CreateGroup(user.ID, "Flat", "rent and bills", []MemberInput{{Name: "Ann", Email: "ann@example.com"}, {Name: "Ben"}})
		testutil.AssertNoError(t, err)

		fetched, err := svc.GetGroupByID(user.ID, group.ID)
		testutil.AssertNoError(t, err)
		if fetched.Name != "Flat" || len(fetched.Members) != 2 {
			t.Errorf("unexpected group %+v", fetched)
		}
	})

	t.Run("member_name_required", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := NewSplitService(db)
		user := testutil.CreateTestUser(t, db)

		_, err := svc.CreateGroup(user.ID, "Flat", "", []MemberInput{{Email: "x@example.com"}})
		testutil.AssertAppError(t, err, "INVALID_INPUT")
	})

	t.Run("list_only_own", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := NewSplitService(db)
		user := testutil.CreateTestUser(t, db)
		other := testutil.CreateTestUser(t, db)
		testutil.CreateTestSplitGroup(t, db, user.ID, "Ann")
		testutil.CreateTestSplitGroup(t, db, other.ID, "Zed")

		result, err := svc.GetUserGroups(user.ID, pagination.PageRequest{Page: 1, PageSize: 20})
		testutil.AssertNoError(t, err)
		if result.TotalItems != 1 || len(result.Data[0].Members) != 1 {
			t.Errorf("expected one group with one member, got %+v", result)
		}
	})

	t.Run("update", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := NewSplitService(db)
		user := testutil.CreateTestUser(t, db)
		group := testutil.CreateTestSplitGroup(t, db, user.ID)

		name := "Trip"
		updated, err := svc.UpdateGroup(user.ID, group.ID, &name, nil)
		testutil.AssertNoError(t, err)
		if updated.Name != "Trip" {
			t.Errorf("expected name Trip, got %s", updated.Name)
		}
	})

	t.Run("add_and_remove_member", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := NewSplitService(db)
		user := testutil.CreateTestUser(t, db)
		group := testutil.CreateTestSplitGroup(t, db, user.ID, "Ann")

		member, err := svc.AddMember(user.ID, group.ID, MemberInput{Name: "Ben"})
		testutil.AssertNoError(t, err)

		testutil.AssertNoError(t, svc.RemoveMember(user.ID, group.ID, member.ID))
		err = svc.RemoveMember(user.ID, group.ID, member.ID)
		testutil.AssertAppError(t, err, "SPLIT_MEMBER_NOT_FOUND")

		fetched, err := svc.GetGroupByID(user.ID, group.ID)
		testutil.AssertNoError(t, err)
		if len(fetched.Members) != 1 {
			t.Errorf("expected 1 member left, got %d", len(fetched.Members))
		}
	})

	t.Run("delete", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := NewSplitService(db)
		user := testutil.CreateTestUser(t, db)
		other := testutil.CreateTestUser(t, db)
		group := testutil.CreateTestSplitGroup(t, db, user.ID, "Ann")

		err := svc.DeleteGroup(other.ID, group.ID)
		testutil.AssertAppError(t, err, "SPLIT_GROUP_NOT_FOUND")

		testutil.AssertNoError(t, svc.DeleteGroup(user.ID, group.ID))
		_, err = svc.GetGroupByID(user.ID, group.ID)
		testutil.AssertAppError(t, err, "SPLIT_GROUP_NOT_FOUND")
	})
}

func TestSplitTransaction(t *testing.T) {
	t.Run("members_and_names", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := NewSplitService(db)
		user := testutil.CreateTestUser(t, db)
		group := testutil.CreateTestSplitGroup(t, db, user.ID, "Ann")
		tx := testutil.CreateTestTransaction(t, db, user.ID, models.TransactionTypeExpense, 9000)

		memberID := group.Members[0].ID
		splits, err := svc.SplitTransaction(user.ID, tx.ID, SplitRequest{
			Method:       models.SplitMethodEqual,
			IncludePayer: true,
			Participants: []SplitParticipant{{MemberID: &memberID}, {Name: "Cy", Email: "cy@example.com"}},
		})
		testutil.AssertNoError(t, err)

		if len(splits) != 2 {
			t.Fatalf("expected 2 splits, got %d", len(splits))
		}
		if splits[0].ParticipantName != "Ann" || splits[0].MemberID == nil {
			t.Errorf("expected member to resolve to Ann, got %+v", splits[0])
		}
		if splits[0].Amount != 3000 || splits[1].Amount != 3000 {
			t.Errorf("expected 3000 each, got %d and %d", splits[0].Amount, splits[1].Amount)
		}
	})

	t.Run("replaces_pending", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := NewSplitService(db)
		user := testutil.CreateTestUser(t, db)
		tx := testutil.CreateTestTransaction(t, db, user.ID, models.TransactionTypeExpense, 1000)

		_, err := svc.SplitTransaction(user.ID, tx.ID, SplitRequest{Method: models.SplitMethodEqual, Participants: named("a", "b")})
		testutil.AssertNoError(t, err)
		_, err = svc.SplitTransaction(user.ID, tx.ID, SplitRequest{Method: models.SplitMethodEqual, Participants: named("c")})
		testutil.AssertNoError(t, err)

		splits, err := svc.GetTransactionSplits(user.ID, tx.ID)
		testutil.AssertNoError(t, err)
		if len(splits) != 1 || splits[0].ParticipantName != "c" || splits[0].Amount != 1000 {
			t.Errorf("expected a single split for c, got %+v", splits)
		}
	})

	t.Run("settled_blocks_resplit", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := NewSplitService(db)
		user := testutil.CreateTestUser(t, db)
		tx := testutil.CreateTestTransaction(t, db, user.ID, models.TransactionTypeExpense, 1000)

		splits, err := svc.SplitTransaction(user.ID, tx.ID, SplitRequest{Method: models.SplitMethodEqual, Participants: named("a")})
		testutil.AssertNoError(t, err)
		_, err = svc.SettleSplit(user.ID, splits[0].ID, time.Time{})
		testutil.AssertNoError(t, err)

		_, err = svc.SplitTransaction(user.ID, tx.ID, SplitRequest{Method: models.SplitMethodEqual, Participants: named("b")})
		testutil.AssertAppError(t, err, "INVALID_SPLIT")
	})

	t.Run("income_refused", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := NewSplitService(db)
		user := testutil.CreateTestUser(t, db)
		tx := testutil.CreateTestTransaction(t, db, user.ID, models.TransactionTypeIncome, 1000)

		_, err := svc.SplitTransaction(user.ID, tx.ID, SplitRequest{Method: models.SplitMethodEqual, Participants: named("a")})
		testutil.AssertAppError(t, err, "UNSPLITTABLE_TRANSACTION")
	})

	t.Run("foreign_member", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := NewSplitService(db)
		user := testutil.CreateTestUser(t, db)
		other := testutil.CreateTestUser(t, db)
		group := testutil.CreateTestSplitGroup(t, db, other.ID, "Zed")
		tx := testutil.CreateTestTransaction(t, db, user.ID, models.TransactionTypeExpense, 1000)

		memberID := group.Members[0].ID
		_, err := svc.SplitTransaction(user.ID, tx.ID, SplitRequest{
			Method: models.SplitMethodEqual, Participants: []SplitParticipant{{MemberID: &memberID}},
		})
		testutil.AssertAppError(t, err, "SPLIT_MEMBER_NOT_FOUND")
	})

	t.Run("missing_transaction", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := NewSplitService(db)
		user := testutil.CreateTestUser(t, db)

		_, err := svc.SplitTransaction(user.ID, uuid.New(), SplitRequest{Method: models.SplitMethodEqual, Participants: named("a")})
		testutil.AssertAppError(t, err, "TRANSACTION_NOT_FOUND")

		_, err = svc.GetTransactionSplits(user.ID, uuid.New())
		testutil.AssertAppError(t, err, "TRANSACTION_NOT_FOUND")
	})
}

func TestSettleAndBalances(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.TeardownTestDB(t, db)
	svc := NewSplitService(db)
	user := testutil.CreateTestUser(t, db)
	tx1 := testutil.CreateTestTransaction(t, db, user.ID, models.TransactionTypeExpense, 1000)
	tx2 := testutil.CreateTestTransaction(t, db, user.ID, models.TransactionTypeExpense, 3000)

	first, err := svc.SplitTransaction(user.ID, tx1.ID, SplitRequest{Method: models.SplitMethodEqual, Participants: named("Ann", "Ben")})
	testutil.AssertNoError(t, err)
	_, err = svc.SplitTransaction(user.ID, tx2.ID, SplitRequest{Method: models.SplitMethodEqual, Participants: named("Ann", "Ben", "Cy")})
	testutil.AssertNoError(t, err)

	// Ben pays back the first one.
	settled, err := svc.SettleSplit(user.ID, first[1].ID, day(2025, 5, 1))
	testutil.AssertNoError(t, err)
	if settled.Status != models.SplitStatusSettled || settled.SettledAt == nil {
		t.Errorf("expected settled split, got %+v", settled)
	}

	_, err = svc.SettleSplit(user.ID, first[1].ID, time.Time{})
	testutil.AssertAppError(t, err, "SPLIT_ALREADY_SETTLED")

	balances, err := svc.GetBalances(user.ID)
	testutil.AssertNoError(t, err)

	want := map[string]int64{"Ann": 1500, "Ben": 1000, "Cy": 1000}
	if len(balances) != len(want) {
		t.Fatalf("expected %d balances, got %+v", len(want), balances)
	}
	if balances[0].ParticipantName != "Ann" {
		t.Errorf("expected Ann to owe the most, got %s", balances[0].ParticipantName)
	}
	for _, b := range balances {
		if b.Outstanding != want[b.ParticipantName] {
			t.Errorf("%s: expected %d, got %d", b.ParticipantName, want[b.ParticipantName], b.Outstanding)
		}
	}

	status := models.SplitStatusPending
	pending, err := svc.GetUserSplits(user.ID, pagination.PageRequest{Page: 1, PageSize: 20}, &status)
	testutil.AssertNoError(t, err)
	if pending.TotalItems != 4 {
		t.Errorf("expected 4 pending splits, got %d", pending.TotalItems)
	}

	testutil.AssertNoError(t, svc.DeleteSplit(user.ID, first[0].ID))
	err = svc.DeleteSplit(user.ID, first[0].ID)
	testutil.AssertAppError(t, err, "SPLIT_NOT_FOUND")
}
