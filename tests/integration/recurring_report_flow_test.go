package integration

import (
	"bytes"
	"fmt"
	"net/http"
	"strings"
	"testing"
)

func TestRecurringFlow_ProcessAnalyticsAndExport(t *testing.T) {
	app := setupApp(t)
	token, _, _ := app.registerUser(t, "recurring@test.com", "password123")
	salaryID := app.createCategory(t, token, "Salary", "income")
	transitID := app.createCategory(t, token, "Transit", "expense")

	// Step 1: A monthly salary of 3000.00 capped at three occurrences
	salary := field(t, mustStatus(t, app.request("POST", "/api/v1/recurring-transactions",
		fmt.Sprintf(`{"type":"income","amount":300000,"category_id":%q,"description":"Salary","frequency":"monthly","day_of_month":15,"start_date":"2025-01-15T00:00:00Z","max_occurrences":3}`, salaryID),
		token), http.StatusCreated), "recurring_transaction")

	// Step 2: Processing catches the whole series up and deactivates it
	result := mustStatus(t, app.request("POST", "/api/v1/recurring-transactions/process", "", token), http.StatusOK)
	if result["created"].(float64) != 3 {
		t.Fatalf("expected 3 materialized transactions, got %v", result["created"])
	}
	processed := field(t, mustStatus(t, app.request("GET", "/api/v1/recurring-transactions/"+salary["id"].(string), "", token), http.StatusOK), "recurring_transaction")
	if processed["is_active"] != false || processed["occurrence_count"].(float64) != 3 {
		t.Errorf("expected an exhausted series, got %v", processed)
	}

	// Processing again is a no-op
	result = mustStatus(t, app.request("POST", "/api/v1/recurring-transactions/process", "", token), http.StatusOK)
	if result["created"].(float64) != 0 {
		t.Errorf("expected nothing to process, got %v", result["created"])
	}

	// Step 3: A weekly 25.00 fare through February, processed by the pipeline
	mustStatus(t, app.request("POST", "/api/v1/recurring-transactions",
		fmt.Sprintf(`{"type":"expense","amount":2500,"category_id":%q,"description":"Bus pass","frequency":"weekly","day_of_week":1,"start_date":"2025-02-03T00:00:00Z","end_date":"2025-02-28T00:00:00Z"}`, transitID),
		token), http.StatusCreated)

	rec := app.request("POST", "/api/v1/pipeline/recurring/process", `{"now":"2025-03-01T00:00:00Z"}`, "")
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without an API key, got %d", rec.Code)
	}
	result = mustStatus(t, app.pipeline("POST", "/api/v1/pipeline/recurring/process", `{"now":"2025-03-01T00:00:00Z"}`), http.StatusOK)
	if result["created"].(float64) != 4 {
		t.Fatalf("expected 4 fares, got %v", result["created"])
	}

	list := mustStatus(t, app.request("GET", "/api/v1/transactions?from_date=2025-01-01&to_date=2025-03-31", "", token), http.StatusOK)
	if list["total_items"].(float64) != 7 {
		t.Fatalf("expected 7 transactions, got %v", list["total_items"])
	}

	// Step 4: Analytics over the first quarter
	const quarter = "from_date=2025-01-01&to_date=2025-03-31"
	summary := field(t, mustStatus(t, app.request("GET", "/api/v1/analytics/summary?"+quarter, "", token), http.StatusOK), "summary")
	if summary["total_income"].(float64) != 900000 || summary["total_expense"].(float64) != 10000 {
		t.Errorf("unexpected totals %v", summary)
	}
	if summary["net"].(float64) != 890000 || summary["transaction_count"].(float64) != 7 {
		t.Errorf("unexpected net or count %v", summary)
	}

	breakdown := mustStatus(t, app.request("GET", "/api/v1/analytics/categories?type=expense&"+quarter, "", token), http.StatusOK)
	categories := breakdown["categories"].([]interface{})
	if len(categories) != 1 {
		t.Fatalf("expected one expense category, got %v", categories)
	}
	transit := categories[0].(map[string]interface{})
	if transit["category_name"] != "Transit" || transit["total"].(float64) != 10000 || transit["percentage"].(float64) != 100 {
		t.Errorf("unexpected category total %v", transit)
	}

	trends := mustStatus(t, app.request("GET", "/api/v1/analytics/trends?interval=month&"+quarter, "", token), http.StatusOK)
	points := trends["trends"].([]interface{})
	if len(points) != 3 {
		t.Fatalf("expected 3 monthly buckets, got %d", len(points))
	}
	february := points[1].(map[string]interface{})
	if february["income"].(float64) != 300000 || february["expense"].(float64) != 10000 {
		t.Errorf("unexpected February bucket %v", february)
	}

	rec = app.request("GET", "/api/v1/analytics/trends?interval=week&from_date=0001-01-01&to_date=9999-12-31", "", token)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for an unbounded trend range, got %d", rec.Code)
	}

	// Step 5: CSV export of the quarter
	rec = app.request("GET", "/api/v1/export/transactions?format=csv&"+quarter, "", token)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if got := rec.Header().Get("Content-Disposition"); !strings.Contains(got, "transactions_2025-01-01_2025-03-31.csv") {
		t.Errorf("unexpected Content-Disposition %q", got)
	}
	if got := rec.Header().Get("Content-Type"); !strings.HasPrefix(got, "text/csv") {
		t.Errorf("unexpected Content-Type %q", got)
	}
	lines := strings.Split(strings.TrimSpace(rec.Body.String()), "\n")
	if len(lines) < 8 {
		t.Errorf("expected a header and 7 rows, got %d lines", len(lines))
	}

	// Step 6: Monthly report as a workbook and as a PDF
	rec = app.request("GET", "/api/v1/export/report?format=xlsx&month=2025-02", "", token)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if !bytes.HasPrefix(rec.Body.Bytes(), []byte("PK")) {
		t.Error("expected a zip-based workbook")
	}
	if got := rec.Header().Get("Content-Disposition"); !strings.Contains(got, "report_2025-02.xlsx") {
		t.Errorf("unexpected Content-Disposition %q", got)
	}

	rec = app.request("GET", "/api/v1/export/report?month=2025-02", "", token)
	if rec.Code != http.StatusOK || !bytes.HasPrefix(rec.Body.Bytes(), []byte("%PDF")) {
		t.Errorf("expected a PDF report by default, got %d", rec.Code)
	}

	rec = app.request("GET", "/api/v1/export/transactions?format=docx", "", token)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for an unsupported format, got %d", rec.Code)
	}

	// Step 7: Email delivery needs a broker
	rec = app.request("POST", "/api/v1/reports/email", `{"month":"2025-02"}`, token)
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 without a broker, got %d: %s", rec.Code, rec.Body.String())
	}
	if code := errorCode(t, rec); code != "BROKER_UNAVAILABLE" {
		t.Errorf("expected BROKER_UNAVAILABLE, got %s", code)
	}

	// Step 8: Balance snapshots recorded by the pipeline
	rec = app.request("POST", "/api/v1/pipeline/snapshots", `{"recorded_at":"2025-04-01T00:00:00Z"}`, "")
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without an API key, got %d", rec.Code)
	}
	result = mustStatus(t, app.pipeline("POST", "/api/v1/pipeline/snapshots", `{"recorded_at":"2025-04-01T00:00:00Z"}`), http.StatusOK)
	if result["snapshots_recorded"].(float64) != 1 {
		t.Errorf("expected 1 snapshot, got %v", result["snapshots_recorded"])
	}

	snapshots := mustStatus(t, app.request("GET", "/api/v1/analytics/snapshots", "", token), http.StatusOK)
	if snapshots["total_items"].(float64) != 1 {
		t.Fatalf("expected 1 snapshot, got %v", snapshots["total_items"])
	}
	snapshot := snapshots["data"].([]interface{})[0].(map[string]interface{})
	if snapshot["net_balance"].(float64) != 890000 {
		t.Errorf("unexpected snapshot %v", snapshot)
	}
}

func TestRecurringFlow_PauseResumeAndUpcoming(t *testing.T) {
	app := setupApp(t)
	token, _, _ := app.registerUser(t, "recurring-pause@test.com", "password123")

	rt := field(t, mustStatus(t, app.request("POST", "/api/v1/recurring-transactions",
		`{"type":"expense","amount":1200,"description":"Streaming","frequency":"monthly","start_date":"2030-01-31T00:00:00Z"}`,
		token), http.StatusCreated), "recurring_transaction")
	id := rt["id"].(string)

	upcoming := mustStatus(t, app.request("GET", "/api/v1/recurring-transactions/"+id+"/upcoming?count=3", "", token), http.StatusOK)
	if dates := upcoming["upcoming"].([]interface{}); len(dates) != 3 {
		t.Fatalf("expected 3 upcoming dates, got %v", dates)
	}

	paused := field(t, mustStatus(t, app.request("POST", "/api/v1/recurring-transactions/"+id+"/pause", "", token), http.StatusOK), "recurring_transaction")
	if paused["is_active"] != false {
		t.Errorf("expected a paused template, got %v", paused)
	}

	list := mustStatus(t, app.request("GET", "/api/v1/recurring-transactions?is_active=true", "", token), http.StatusOK)
	if list["total_items"].(float64) != 0 {
		t.Errorf("expected no active templates, got %v", list["total_items"])
	}

	resumed := field(t, mustStatus(t, app.request("POST", "/api/v1/recurring-transactions/"+id+"/resume", "", token), http.StatusOK), "recurring_transaction")
	if resumed["is_active"] != true {
		t.Errorf("expected an active template, got %v", resumed)
	}

	rec := app.request("POST", "/api/v1/recurring-transactions",
		`{"type":"expense","amount":1200,"frequency":"fortnightly","start_date":"2030-01-01T00:00:00Z"}`, token)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for an unknown frequency, got %d", rec.Code)
	}

	mustStatus(t, app.request("DELETE", "/api/v1/recurring-transactions/"+id, "", token), http.StatusOK)
	rec = app.request("GET", "/api/v1/recurring-transactions/"+id, "", token)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 after delete, got %d", rec.Code)
	}
}

func TestOpsRoutes(t *testing.T) {
	app := setupApp(t)

	mustStatus(t, app.request("GET", "/api/health", "", ""), http.StatusOK)
	ready := mustStatus(t, app.request("GET", "/api/health/ready", "", ""), http.StatusOK)
	if ready["status"] != "healthy" {
		t.Errorf("expected healthy, got %v", ready["status"])
	}

	rec := app.request("GET", "/api/v1/ws", "", "")
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("expected 401 for an unauthenticated socket, got %d", rec.Code)
	}

	rec = app.request("GET", "/metrics", "", "")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "fintrack_http_requests_total") {
		t.Errorf("expected request metrics, got %d", rec.Code)
	}
}
