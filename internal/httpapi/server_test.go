package httpapi_test

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"google.golang.org/protobuf/encoding/protowire"

	"github.com/aengwo/rfid-project/internal/campus/notify"
	"github.com/aengwo/rfid-project/internal/campus/service"
	sqlitestore "github.com/aengwo/rfid-project/internal/campus/store/sqlite"
	"github.com/aengwo/rfid-project/internal/campus/types"
	"github.com/aengwo/rfid-project/internal/db"
	"github.com/aengwo/rfid-project/internal/httpapi"
	"github.com/aengwo/rfid-project/internal/metrics"
)

// newTestServer wires the full dependency graph on a seeded temp database
// and returns an httptest.Server. Seed data: active card A1B2C3D4,
// inactive card 0BADCAFE, active reader-001 at "Main Gate".
func newTestServer(t *testing.T) (*httptest.Server, *notify.Recorder) {
	t.Helper()
	ctx := context.Background()

	conn, err := db.Open(ctx, db.Config{Path: filepath.Join(t.TempDir(), "api.db"), Env: "dev"})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	if err := db.SeedDev(ctx, conn, db.SeedDevOptions{}); err != nil {
		t.Fatalf("seed: %v", err)
	}
	w := db.NewWorker(conn)
	t.Cleanup(w.Close)

	directoryStore := sqlitestore.NewDirectoryStore(conn, w)
	logStore := sqlitestore.NewAccessLogStore(conn, w)
	reportStore := sqlitestore.NewReportStore(conn)
	readerStore := sqlitestore.NewReaderStore(conn, w)
	heartbeatStore := sqlitestore.NewHeartbeatStore(conn, w)

	published := &notify.Recorder{}
	m := metrics.New(prometheus.NewRegistry())
	clock := service.Clock{Location: time.UTC}
	readers := service.NewReaderRegistry(readerStore)

	srv := httpapi.NewServer(httpapi.Dependencies{
		Addr:    ":0",
		DB:      conn,
		Metrics: m,
		Evaluator: service.NewEvaluator(logStore, readers, service.EvaluatorOptions{
			ScanTimeout: 2 * time.Second,
			Publisher:   published,
			Metrics:     m,
		}),
		Occupancy:        service.NewOccupancy(logStore, reportStore, clock),
		Reporting:        service.NewReporting(reportStore, logStore, directoryStore, nil, clock),
		Directory:        service.NewDirectory(directoryStore),
		Wallet:           service.NewWallet(sqlitestore.NewWalletStore(conn, w), directoryStore, nil),
		Readers:          readers,
		HeartbeatService: service.NewHeartbeatService(heartbeatStore, readers, nil),
	})

	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts, published
}

func postJSON(t *testing.T, url, body string) *http.Response {
	t.Helper()
	resp, err := http.Post(url, "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatalf("post %s: %v", url, err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func doJSON(t *testing.T, method, url, body string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(method, url, strings.NewReader(body))
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, url, err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func get(t *testing.T, url string) *http.Response {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("get %s: %v", url, err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(resp.Body).Decode(&v); err != nil {
		t.Fatalf("decode: %v", err)
	}
	return v
}

func expectStatus(t *testing.T, resp *http.Response, want int) {
	t.Helper()
	if resp.StatusCode != want {
		body, _ := io.ReadAll(resp.Body)
		t.Fatalf("expected %d, got %d: %s", want, resp.StatusCode, body)
	}
}

type errorBody struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	RequestID string `json:"request_id"`
}

// ═══════════════════════════════════════════════════════════════════════════
// Scan
// ═══════════════════════════════════════════════════════════════════════════

func TestScan_EntryThenExit(t *testing.T) {
	ts, published := newTestServer(t)

	resp := postJSON(t, ts.URL+"/v1/scan", `{"card_id":"a1b2c3d4","reader_id":"reader-001"}`)
	expectStatus(t, resp, http.StatusOK)
	entry := decode[types.ScanResponse](t, resp)
	if !entry.Granted || entry.Direction != types.DirectionEntry {
		t.Fatalf("expected granted entry, got %+v", entry)
	}
	if entry.CardID != "A1B2C3D4" || entry.Location != "Main Gate" {
		t.Errorf("unexpected card/location: %+v", entry)
	}
	if entry.User == nil || entry.User.Name != "Dev Student" {
		t.Errorf("expected user in response, got %+v", entry.User)
	}

	resp = postJSON(t, ts.URL+"/v1/scan", `{"card_id":"A1B2C3D4","location":"Main Gate"}`)
	expectStatus(t, resp, http.StatusOK)
	exit := decode[types.ScanResponse](t, resp)
	if !exit.Granted || exit.Direction != types.DirectionExit {
		t.Fatalf("expected granted exit, got %+v", exit)
	}

	if got := len(published.Events()); got != 2 {
		t.Errorf("expected 2 published events, got %d", got)
	}
}

func TestScan_DeniedIsStill200(t *testing.T) {
	ts, _ := newTestServer(t)

	resp := postJSON(t, ts.URL+"/v1/scan", `{"card_id":"0BADCAFE","location":"Library"}`)
	expectStatus(t, resp, http.StatusOK)
	out := decode[types.ScanResponse](t, resp)
	if out.Granted {
		t.Fatal("expected inactive card to be denied")
	}
	if out.Reason != types.ReasonInactive {
		t.Errorf("expected reason %q, got %q", types.ReasonInactive, out.Reason)
	}
}

func TestScan_InvalidCard_400WithRequestID(t *testing.T) {
	ts, _ := newTestServer(t)

	resp := postJSON(t, ts.URL+"/v1/scan", `{"card_id":"xyz","location":"Library"}`)
	expectStatus(t, resp, http.StatusBadRequest)
	body := decode[errorBody](t, resp)
	if body.Code != "invalid_card_id" {
		t.Errorf("expected invalid_card_id, got %q", body.Code)
	}
	if body.RequestID == "" || body.RequestID != resp.Header.Get("X-Request-ID") {
		t.Errorf("request_id %q should match header %q", body.RequestID, resp.Header.Get("X-Request-ID"))
	}
}

func TestScan_UnknownFieldRejected(t *testing.T) {
	ts, _ := newTestServer(t)

	resp := postJSON(t, ts.URL+"/v1/scan", `{"card_id":"A1B2C3D4","location":"Lab","door":"x"}`)
	expectStatus(t, resp, http.StatusBadRequest)
	if body := decode[errorBody](t, resp); body.Code != "bad_json" {
		t.Errorf("expected bad_json, got %q", body.Code)
	}
}

func TestScan_Protobuf(t *testing.T) {
	ts, _ := newTestServer(t)

	var msg []byte
	msg = protowire.AppendTag(msg, 1, protowire.BytesType)
	msg = protowire.AppendString(msg, "A1B2C3D4")
	msg = protowire.AppendTag(msg, 4, protowire.BytesType)
	msg = protowire.AppendString(msg, "reader-001")

	resp, err := http.Post(ts.URL+"/v1/scan", "application/x-protobuf", bytes.NewReader(msg))
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	defer resp.Body.Close()
	expectStatus(t, resp, http.StatusOK)
	if ct := resp.Header.Get("Content-Type"); ct != "application/x-protobuf" {
		t.Fatalf("expected protobuf response, got %q", ct)
	}

	body, _ := io.ReadAll(resp.Body)
	granted, location := false, ""
	for len(body) > 0 {
		num, typ, n := protowire.ConsumeTag(body)
		if n < 0 {
			t.Fatalf("bad tag: %v", protowire.ParseError(n))
		}
		body = body[n:]
		switch {
		case num == 1 && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(body)
			granted = protowire.DecodeBool(v)
			body = body[n:]
		case num == 4 && typ == protowire.BytesType:
			v, n := protowire.ConsumeString(body)
			location = v
			body = body[n:]
		default:
			body = body[protowire.ConsumeFieldValue(num, typ, body):]
		}
	}
	if !granted {
		t.Error("expected granted=true")
	}
	if location != "Main Gate" {
		t.Errorf("expected location Main Gate, got %q", location)
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Reports
// ═══════════════════════════════════════════════════════════════════════════

func TestStatsAndPopulation(t *testing.T) {
	ts, _ := newTestServer(t)
	postJSON(t, ts.URL+"/v1/scan", `{"card_id":"A1B2C3D4","location":"Gym"}`)
	postJSON(t, ts.URL+"/v1/scan", `{"card_id":"DEADBEEF","location":"Gym"}`)

	resp := get(t, ts.URL+"/v1/stats")
	expectStatus(t, resp, http.StatusOK)
	stats := decode[types.Stats](t, resp)
	if stats.TotalUsers != 2 || stats.TodayEvents != 2 || stats.TodayDenied != 1 {
		t.Errorf("unexpected totals: %+v", stats.DailyTotals)
	}
	if len(stats.Trend) != 7 || len(stats.Hourly) != 24 {
		t.Errorf("expected 7 trend days and 24 hours, got %d/%d", len(stats.Trend), len(stats.Hourly))
	}

	resp = get(t, ts.URL+"/v1/population?location=Gym")
	expectStatus(t, resp, http.StatusOK)
	if pop := decode[types.Population](t, resp); pop.Population != 1 {
		t.Errorf("expected population 1, got %d", pop.Population)
	}

	resp = get(t, ts.URL+"/v1/occupants?location=Gym")
	expectStatus(t, resp, http.StatusOK)
	occ := decode[struct {
		Occupants []types.Occupant `json:"occupants"`
	}](t, resp)
	if len(occ.Occupants) != 1 || occ.Occupants[0].CardID != "A1B2C3D4" {
		t.Errorf("unexpected occupants: %+v", occ.Occupants)
	}
}

func TestAccessLogs_InvalidLimit(t *testing.T) {
	ts, _ := newTestServer(t)

	resp := get(t, ts.URL+"/v1/access-logs?limit=-3")
	expectStatus(t, resp, http.StatusBadRequest)
}

func TestExport_CSV(t *testing.T) {
	ts, _ := newTestServer(t)
	postJSON(t, ts.URL+"/v1/scan", `{"card_id":"A1B2C3D4","location":"Library"}`)
	postJSON(t, ts.URL+"/v1/scan", `{"card_id":"DEADBEEF","location":"Library"}`)

	resp := get(t, ts.URL+"/v1/access-logs/export")
	expectStatus(t, resp, http.StatusOK)
	if cd := resp.Header.Get("Content-Disposition"); !strings.HasPrefix(cd, "attachment;") {
		t.Errorf("expected attachment disposition, got %q", cd)
	}

	rows, err := csv.NewReader(resp.Body).ReadAll()
	if err != nil {
		t.Fatalf("read csv: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("expected header + 2 rows, got %d", len(rows))
	}
	if rows[0][0] != "RFID Card ID" {
		t.Errorf("unexpected header: %v", rows[0])
	}
	// Newest first: the unregistered card.
	if rows[1][1] != "Unknown" || rows[1][5] != types.OutcomeDenied {
		t.Errorf("unexpected denied row: %v", rows[1])
	}
	if rows[2][6] != "-" {
		t.Errorf("expected empty reason exported as -, got %q", rows[2][6])
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Users and wallet
// ═══════════════════════════════════════════════════════════════════════════

func TestUsers_CRUD(t *testing.T) {
	ts, _ := newTestServer(t)

	resp := postJSON(t, ts.URL+"/v1/users", `{"card_id":"cafe0001","name":"New Person","email":"new@example.test"}`)
	expectStatus(t, resp, http.StatusCreated)
	u := decode[types.User](t, resp)
	if u.CardID != "CAFE0001" || u.Status != types.UserActive {
		t.Errorf("unexpected user: %+v", u)
	}

	resp = postJSON(t, ts.URL+"/v1/users", `{"card_id":"CAFE0001","name":"Dup","email":"dup@example.test"}`)
	expectStatus(t, resp, http.StatusConflict)

	id := jsonID(u.ID)
	resp = doJSON(t, http.MethodPut, ts.URL+"/v1/users/"+id, `{"status":"inactive"}`)
	expectStatus(t, resp, http.StatusOK)
	if got := decode[types.User](t, resp); got.Status != types.UserInactive || got.Name != "New Person" {
		t.Errorf("unexpected update result: %+v", got)
	}

	resp = get(t, ts.URL+"/v1/users?search=new")
	expectStatus(t, resp, http.StatusOK)
	if page := decode[types.UserPage](t, resp); page.Total != 1 {
		t.Errorf("expected 1 search hit, got %d", page.Total)
	}

	resp = doJSON(t, http.MethodDelete, ts.URL+"/v1/users/"+id, "")
	expectStatus(t, resp, http.StatusNoContent)

	resp = get(t, ts.URL+"/v1/users/"+id)
	expectStatus(t, resp, http.StatusNotFound)

	resp = get(t, ts.URL+"/v1/users/abc")
	expectStatus(t, resp, http.StatusBadRequest)
}

func TestWallet_TopUpCallbackAndPay(t *testing.T) {
	ts, _ := newTestServer(t)

	resp := get(t, ts.URL+"/v1/users?search=A1B2C3D4")
	page := decode[types.UserPage](t, resp)
	if len(page.Users) != 1 {
		t.Fatalf("expected seeded user, got %+v", page)
	}
	user := page.Users[0]
	id := jsonID(user.ID)

	resp = postJSON(t, ts.URL+"/v1/users/"+id+"/top-ups", `{"amount_cents":100000}`)
	expectStatus(t, resp, http.StatusAccepted)
	topUp := decode[types.WalletResult](t, resp)
	if topUp.Transaction.Status != types.TxPending {
		t.Fatalf("expected pending top-up, got %+v", topUp.Transaction)
	}

	resp = postJSON(t, ts.URL+"/v1/payments/callback",
		`{"reference":"`+topUp.Transaction.Reference+`","success":true}`)
	expectStatus(t, resp, http.StatusOK)
	if got := decode[types.WalletResult](t, resp); got.BalanceCents != user.BalanceCents+100000 {
		t.Errorf("expected balance %d, got %d", user.BalanceCents+100000, got.BalanceCents)
	}

	resp = postJSON(t, ts.URL+"/v1/payments/callback",
		`{"reference":"`+topUp.Transaction.Reference+`","success":true}`)
	expectStatus(t, resp, http.StatusConflict)

	resp = postJSON(t, ts.URL+"/v1/service-payments", `{"card_id":"A1B2C3D4","service":"pool"}`)
	expectStatus(t, resp, http.StatusOK)

	resp = postJSON(t, ts.URL+"/v1/users/"+id+"/withdrawals", `{"amount_cents":90000000}`)
	expectStatus(t, resp, http.StatusUnprocessableEntity)

	resp = get(t, ts.URL+"/v1/users/"+id+"/transactions")
	expectStatus(t, resp, http.StatusOK)
	txs := decode[struct {
		Transactions []types.Transaction `json:"transactions"`
	}](t, resp)
	if len(txs.Transactions) != 2 {
		t.Errorf("expected 2 transactions, got %d", len(txs.Transactions))
	}
}

func TestWallet_TopUpBelowMinimum(t *testing.T) {
	ts, _ := newTestServer(t)

	resp := postJSON(t, ts.URL+"/v1/users/1/top-ups", `{"amount_cents":5}`)
	expectStatus(t, resp, http.StatusBadRequest)
	if body := decode[errorBody](t, resp); body.Code != "invalid_amount" {
		t.Errorf("expected invalid_amount, got %q", body.Code)
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Readers
// ═══════════════════════════════════════════════════════════════════════════

func TestHeartbeat_KnownReader(t *testing.T) {
	ts, _ := newTestServer(t)

	resp := postJSON(t, ts.URL+"/v1/readers/heartbeat", `{"reader_id":"reader-001","uptime_s":42}`)
	expectStatus(t, resp, http.StatusOK)
	hb := decode[types.HeartbeatResponse](t, resp)
	if !hb.OK || !hb.Known || hb.Location != "Main Gate" {
		t.Errorf("unexpected heartbeat response: %+v", hb)
	}
}

func TestHeartbeat_ProtobufUnknownReader(t *testing.T) {
	ts, _ := newTestServer(t)

	var msg []byte
	msg = protowire.AppendTag(msg, 1, protowire.BytesType)
	msg = protowire.AppendString(msg, "reader-new")
	msg = protowire.AppendTag(msg, 3, protowire.VarintType)
	msg = protowire.AppendVarint(msg, 7)

	resp, err := http.Post(ts.URL+"/v1/readers/heartbeat", "application/x-protobuf", bytes.NewReader(msg))
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	defer resp.Body.Close()
	expectStatus(t, resp, http.StatusOK)

	body, _ := io.ReadAll(resp.Body)
	// Field 1 (ok) is encoded; field 2 (known) is false and therefore absent.
	want := protowire.AppendTag(nil, 1, protowire.VarintType)
	want = protowire.AppendVarint(want, 1)
	if !bytes.HasPrefix(body, want) {
		t.Errorf("expected ok=true first, got %x", body)
	}

	resp = get(t, ts.URL+"/v1/readers")
	readers := decode[struct {
		Readers []types.Reader `json:"readers"`
	}](t, resp)
	if len(readers.Readers) != 2 {
		t.Errorf("expected auto-registered reader, got %+v", readers.Readers)
	}
}

func TestHeartbeat_MissingReaderID_400(t *testing.T) {
	ts, _ := newTestServer(t)

	resp := postJSON(t, ts.URL+"/v1/readers/heartbeat", `{"uptime_s":42}`)
	expectStatus(t, resp, http.StatusBadRequest)
}

func TestRegisterReader(t *testing.T) {
	ts, _ := newTestServer(t)

	resp := doJSON(t, http.MethodPut, ts.URL+"/v1/readers/reader-002", `{"name":"Gym Door","location":"Gym"}`)
	expectStatus(t, resp, http.StatusOK)
	r := decode[types.Reader](t, resp)
	if r.Status != types.ReaderActive || r.Location != "Gym" {
		t.Errorf("unexpected reader: %+v", r)
	}

	resp = postJSON(t, ts.URL+"/v1/scan", `{"card_id":"A1B2C3D4","reader_id":"reader-002"}`)
	expectStatus(t, resp, http.StatusOK)
	if out := decode[types.ScanResponse](t, resp); out.Location != "Gym" {
		t.Errorf("expected scan resolved to Gym, got %q", out.Location)
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Health and routing
// ═══════════════════════════════════════════════════════════════════════════

func TestHealthAndReady(t *testing.T) {
	ts, _ := newTestServer(t)

	expectStatus(t, get(t, ts.URL+"/healthz"), http.StatusOK)

	resp := get(t, ts.URL+"/readyz")
	expectStatus(t, resp, http.StatusOK)
	if ready := decode[map[string]any](t, resp); ready["status"] != "ready" {
		t.Errorf("expected ready, got %v", ready["status"])
	}
}

func TestMetricsEndpoint(t *testing.T) {
	ts, _ := newTestServer(t)
	postJSON(t, ts.URL+"/v1/scan", `{"card_id":"A1B2C3D4","location":"Lab"}`)

	resp := get(t, ts.URL+"/metrics")
	expectStatus(t, resp, http.StatusOK)
	body, _ := io.ReadAll(resp.Body)
	if !bytes.Contains(body, []byte("gatehouse_")) {
		t.Error("expected gatehouse metrics in exposition")
	}
}

func TestUnknownRoute_JSON404(t *testing.T) {
	ts, _ := newTestServer(t)

	resp := get(t, ts.URL+"/v1/nope")
	expectStatus(t, resp, http.StatusNotFound)
	if body := decode[errorBody](t, resp); body.Code != "not_found" {
		t.Errorf("expected not_found, got %q", body.Code)
	}
}

func jsonID(id int64) string {
	b, _ := json.Marshal(id)
	return string(b)
}
