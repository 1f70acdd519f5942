package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"image/png"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/kaskelas/backend/internal/config"
	mW "github.com/kaskelas/backend/internal/middleware"
	"github.com/kaskelas/backend/internal/models"
	"github.com/kaskelas/backend/internal/repository"
	"github.com/kaskelas/backend/internal/repository/memory"
	"github.com/kaskelas/backend/internal/services"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testSecret = "test-secret"
	cronSecret = "cron-secret"
)

var (
	student   = services.Actor{UserID: "u1", Role: models.RoleStudent, ClassID: "class-a"}
	classmate = services.Actor{UserID: "u2", Role: models.RoleStudent, ClassID: "class-a"}
	treasurer = services.Actor{UserID: "t1", Role: models.RoleBendahara, ClassID: "class-a"}
)

type fakeUploader struct {
	mu      sync.Mutex
	uploads []string
}

func (u *fakeUploader) Upload(_ context.Context, folder, name, contentType string, r io.Reader) (string, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	if _, err := io.Copy(io.Discard, r); err != nil {
		return "", err
	}
	u.uploads = append(u.uploads, folder+"/"+name+"|"+contentType)
	return "https://storage.example/" + folder + "/" + name, nil
}

type testServer struct {
	handler http.Handler
	store   *memory.Store
}

func newTestServer(t *testing.T, uploader Uploader) *testServer {
	t.Helper()
	store := memory.New()
	for _, a := range []services.Actor{student, classmate, treasurer} {
		store.AddUser(models.User{ID: a.UserID, NIM: "nim-" + a.UserID, Name: a.UserID, Role: a.Role, ClassID: a.ClassID})
	}
	require.NoError(t, store.CreatePaymentAccount(context.Background(), &models.PaymentAccount{
		ID: "acc-1", Name: "BCA Kas", AccountType: models.AccountBank,
		AccountNumber: "1234567890", AccountHolder: "Bendahara", Status: models.AccountActive,
	}))

	policy, err := config.LoadBillingPolicy(config.DefaultRates, 0, "1,2,7,8", 1, "Asia/Jakarta")
	require.NoError(t, err)
	ttl := config.CacheConfig{TTL: time.Minute, RecapTTL: time.Minute}

	ledger := services.NewLedgerService(store, nil, ttl, nil, nil)
	deps := Deps{
		Payments:  services.NewPaymentService(store, nil, nil, nil),
		Generator: services.NewBillGenerator(store, nil, policy, nil, nil),
		Funds:     services.NewFundApplicationService(store, nil, nil, nil),
		Ledger:    ledger,
		Dashboard: services.NewDashboardService(store, ledger, nil, ttl),
		Accounts:  services.NewPaymentAccountService(store, nil),
		Uploader:  uploader,
		Server:    config.ServerConfig{AllowedOrigins: []string{"http://localhost:3000"}},
		JWT:       config.JWTConfig{SecretKey: testSecret, CookieName: "accessToken"},
		Cron:      config.CronConfig{SecretKey: cronSecret, Timeout: time.Minute},
	}
	return &testServer{handler: NewRouter(deps), store: store}
}

func (s *testServer) seedBill(t *testing.T, id string, owner services.Actor, amount int64) {
	t.Helper()
	require.NoError(t, s.store.CreateBill(context.Background(), &models.CashBill{
		ID: id, BillID: "BILL-2025-10-" + id, UserID: owner.UserID, ClassID: owner.ClassID,
		Month: 10, Year: 2025, KasKelas: amount, TotalAmount: amount, Status: models.BillUnpaid,
		DueDate: time.Date(2025, time.November, 1, 0, 0, 0, 0, time.UTC),
	}))
}

func (s *testServer) do(t *testing.T, actor *services.Actor, method, path string, body io.Reader, contentType string) *httptest.ResponseRecorder {
	t.Helper()
	r := httptest.NewRequest(method, path, body)
	if contentType != "" {
		r.Header.Set("Content-Type", contentType)
	}
	if actor != nil {
		token, err := mW.IssueToken(testSecret, *actor, time.Hour)
		require.NoError(t, err)
		r.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	s.handler.ServeHTTP(w, r)
	return w
}

func (s *testServer) doJSON(t *testing.T, actor *services.Actor, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	return s.do(t, actor, method, path, reader, "application/json")
}

func pngBytes(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 2, 2))))
	return buf.Bytes()
}

func payForm(t *testing.T, fields map[string]string, file []byte) (io.Reader, string) {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	if file != nil {
		part, err := mw.CreateFormFile("paymentProof", "bukti transfer.png")
		require.NoError(t, err)
		_, err = part.Write(file)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())
	return &body, mw.FormDataContentType()
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) services.ErrorBody {
	t.Helper()
	var response services.ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response), w.Body.String())
	assert.False(t, response.Success)
	return response.Error
}

func decodeData[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var response struct {
		Success bool `json:"success"`
		Data    T    `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response), w.Body.String())
	assert.True(t, response.Success)
	return response.Data
}

func TestPayConfirmFlow(t *testing.T) {
	uploader := &fakeUploader{}
	s := newTestServer(t, uploader)
	s.seedBill(t, "b1", student, 15000)

	body, ct := payForm(t, map[string]string{"paymentMethod": "bank", "paymentAccountId": "acc-1"}, pngBytes(t))
	w := s.do(t, &student, http.MethodPost, "/api/cash-bills/b1/pay", body, ct)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	bill := decodeData[models.CashBill](t, w)
	assert.Equal(t, models.BillAwaitingConfirmation, bill.Status)
	require.NotNil(t, bill.PaymentProofURL)
	assert.Equal(t, "https://storage.example/payments/bukti transfer.png", *bill.PaymentProofURL)
	assert.Equal(t, []string{"payments/bukti transfer.png|image/png"}, uploader.uploads)

	w = s.doJSON(t, &treasurer, http.MethodPost, "/api/bendahara/cash-bills/b1/confirm-payment", "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, models.BillPaid, decodeData[models.CashBill](t, w).Status)

	w = s.doJSON(t, &treasurer, http.MethodPost, "/api/bendahara/cash-bills/b1/confirm-payment", "")
	assert.Equal(t, http.StatusConflict, w.Code)
	errBody := decodeError(t, w)
	assert.Equal(t, services.CodeInvalidState, errBody.Code)
	assert.Equal(t, "paid", errBody.State)

	w = s.doJSON(t, &treasurer, http.MethodGet, "/api/bendahara/rekap-kas", "")
	require.Equal(t, http.StatusOK, w.Code)
	recap := decodeData[services.LedgerSummary](t, w)
	assert.Equal(t, int64(15000), recap.Balance)
	assert.Equal(t, 1, recap.TransactionCount)
}

func TestPayRejectFlow(t *testing.T) {
	s := newTestServer(t, &fakeUploader{})
	s.seedBill(t, "b1", student, 15000)

	body, ct := payForm(t, map[string]string{"paymentMethod": "ewallet"}, pngBytes(t))
	w := s.do(t, &student, http.MethodPost, "/api/cash-bills/b1/pay", body, ct)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = s.doJSON(t, &treasurer, http.MethodPost, "/api/bendahara/cash-bills/b1/reject-payment", `{"reason":"wrong amount"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	bill := decodeData[models.CashBill](t, w)
	assert.Equal(t, models.BillUnpaid, bill.Status)
	assert.Nil(t, bill.PaymentProofURL)
	assert.Nil(t, bill.PaymentMethod)
	assert.Empty(t, s.store.Transactions())
}

func TestPayValidation(t *testing.T) {
	t.Run("uploads disabled", func(t *testing.T) {
		s := newTestServer(t, nil)
		s.seedBill(t, "b1", student, 15000)

		body, ct := payForm(t, map[string]string{"paymentMethod": "bank"}, pngBytes(t))
		w := s.do(t, &student, http.MethodPost, "/api/cash-bills/b1/pay", body, ct)
		assert.Equal(t, http.StatusBadRequest, w.Code)
		errBody := decodeError(t, w)
		assert.Equal(t, services.CodeValidation, errBody.Code)
		assert.Contains(t, errBody.Details["paymentProof"], "disabled")
	})

	t.Run("missing file", func(t *testing.T) {
		s := newTestServer(t, &fakeUploader{})
		s.seedBill(t, "b1", student, 15000)

		body, ct := payForm(t, map[string]string{"paymentMethod": "bank"}, nil)
		w := s.do(t, &student, http.MethodPost, "/api/cash-bills/b1/pay", body, ct)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("file is not an image", func(t *testing.T) {
		s := newTestServer(t, &fakeUploader{})
		s.seedBill(t, "b1", student, 15000)

		body, ct := payForm(t, map[string]string{"paymentMethod": "bank"}, []byte("just some text"))
		w := s.do(t, &student, http.MethodPost, "/api/cash-bills/b1/pay", body, ct)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("unknown method", func(t *testing.T) {
		s := newTestServer(t, &fakeUploader{})
		s.seedBill(t, "b1", student, 15000)

		body, ct := payForm(t, map[string]string{"paymentMethod": "crypto"}, pngBytes(t))
		w := s.do(t, &student, http.MethodPost, "/api/cash-bills/b1/pay", body, ct)
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, decodeError(t, w).Details, "paymentMethod")
	})
}

func TestPayRefusedBeforeUpload(t *testing.T) {
	uploader := &fakeUploader{}
	s := newTestServer(t, uploader)
	s.seedBill(t, "b1", student, 15000)

	body, ct := payForm(t, map[string]string{"paymentMethod": "bank"}, pngBytes(t))
	w := s.do(t, &classmate, http.MethodPost, "/api/cash-bills/b1/pay", body, ct)
	assert.Equal(t, http.StatusForbidden, w.Code)

	body, ct = payForm(t, map[string]string{"paymentMethod": "bank"}, pngBytes(t))
	w = s.do(t, &student, http.MethodPost, "/api/cash-bills/missing/pay", body, ct)
	assert.Equal(t, http.StatusNotFound, w.Code)

	body, ct = payForm(t, map[string]string{"paymentMethod": "bank"}, pngBytes(t))
	w = s.do(t, &student, http.MethodPost, "/api/cash-bills/b1/pay", body, ct)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	body, ct = payForm(t, map[string]string{"paymentMethod": "bank"}, pngBytes(t))
	w = s.do(t, &student, http.MethodPost, "/api/cash-bills/b1/pay", body, ct)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "awaiting_confirmation", decodeError(t, w).State)

	assert.Len(t, uploader.uploads, 1)
}

func TestAccessControl(t *testing.T) {
	s := newTestServer(t, &fakeUploader{})
	s.seedBill(t, "b1", student, 15000)

	w := s.doJSON(t, nil, http.MethodGet, "/api/cash-bills/my", "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, services.CodeUnauthorized, decodeError(t, w).Code)

	w = s.doJSON(t, &student, http.MethodGet, "/api/bendahara/dashboard", "")
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = s.doJSON(t, &classmate, http.MethodGet, "/api/cash-bills/b1", "")
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = s.doJSON(t, &classmate, http.MethodPost, "/api/cash-bills/b1/cancel-payment", "")
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = s.doJSON(t, &student, http.MethodGet, "/api/cash-bills/missing", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, services.CodeNotFound, decodeError(t, w).Code)

	w = s.doJSON(t, &student, http.MethodPost, "/api/payment-accounts", `{}`)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestMyBillsPagination(t *testing.T) {
	s := newTestServer(t, nil)
	s.seedBill(t, "b1", student, 15000)
	s.seedBill(t, "b2", classmate, 15000)

	w := s.doJSON(t, &student, http.MethodGet, "/api/cash-bills/my?status=unpaid&page=1&limit=10", "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var response services.SuccessResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	require.NotNil(t, response.Pagination)
	assert.Equal(t, 1, response.Pagination.Total)
	assert.Equal(t, 10, response.Pagination.Limit)

	w = s.doJSON(t, &student, http.MethodGet, "/api/cash-bills/my?limit=500", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.doJSON(t, &treasurer, http.MethodGet, "/api/bendahara/cash-bills", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decodeData[[]models.CashBill](t, w), 2)
}

func TestFundApplicationFlow(t *testing.T) {
	s := newTestServer(t, nil)

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	require.NoError(t, mw.WriteField("purpose", "Printer ink"))
	require.NoError(t, mw.WriteField("category", "equipment"))
	require.NoError(t, mw.WriteField("amount", "45000"))
	require.NoError(t, mw.Close())

	w := s.do(t, &student, http.MethodPost, "/api/fund-applications", &body, mw.FormDataContentType())
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	app := decodeData[models.FundApplication](t, w)
	assert.Nil(t, app.AttachmentURL)

	w = s.doJSON(t, &treasurer, http.MethodPost, "/api/bendahara/fund-applications/"+app.ID+"/reject", `{"rejectionReason":"  "}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, services.CodeMissingReason, decodeError(t, w).Code)

	w = s.doJSON(t, &treasurer, http.MethodPost, "/api/bendahara/fund-applications/"+app.ID+"/approve", "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = s.doJSON(t, &treasurer, http.MethodPost, "/api/bendahara/fund-applications/"+app.ID+"/approve", "")
	assert.Equal(t, http.StatusConflict, w.Code)

	entries := s.store.Transactions()
	require.Len(t, entries, 1)
	assert.Equal(t, models.CategoryOfficeSupplies, entries[0].Category)

	w = s.doJSON(t, &student, http.MethodGet, "/api/transactions?type=expense", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decodeData[[]models.Transaction](t, w), 1)
}

func TestManualTransaction(t *testing.T) {
	s := newTestServer(t, nil)

	w := s.doJSON(t, &treasurer, http.MethodPost, "/api/bendahara/transactions",
		`{"type":"income","category":"Donation","amount":20000,"date":"2025-10-02","description":"Alumni donation"}`)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	entry := decodeData[models.Transaction](t, w)
	assert.Equal(t, models.CategoryDonation, entry.Category)

	w = s.doJSON(t, &treasurer, http.MethodPost, "/api/bendahara/transactions", `{"type":"income","amount":1,"description":"ok","extra":1}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.doJSON(t, &treasurer, http.MethodGet, "/api/transactions/chart-data?type=income&startDate=2025-10-01&endDate=2025-10-02", "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	series := decodeData[[]models.DailyAmount](t, w)
	require.Len(t, series, 1)
	assert.Equal(t, int64(20000), series[0].Amount)

	w = s.doJSON(t, &treasurer, http.MethodGet, "/api/transactions/chart-data", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.doJSON(t, &student, http.MethodGet, "/api/dashboard/summary", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, int64(20000), decodeData[services.StudentSummary](t, w).ClassBalance)
}

func TestPaymentAccounts(t *testing.T) {
	s := newTestServer(t, &fakeUploader{})

	w := s.doJSON(t, &treasurer, http.MethodPost, "/api/payment-accounts",
		`{"name":"Dana","accountType":"ewallet","accountNumber":"0812","accountHolder":"Bendahara"}`)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	acc := decodeData[models.PaymentAccount](t, w)

	w = s.doJSON(t, &treasurer, http.MethodPost, "/api/payment-accounts/"+acc.ID+"/deactivate", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, models.AccountInactive, decodeData[models.PaymentAccount](t, w).Status)

	w = s.doJSON(t, &student, http.MethodGet, "/api/payment-accounts/active", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decodeData[[]models.PaymentAccount](t, w), 1)

	w = s.doJSON(t, &student, http.MethodGet, "/api/payment-accounts/acc-1/qr?size=128", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "image/png", w.Header().Get("Content-Type"))
	_, err := png.Decode(w.Body)
	assert.NoError(t, err)

	w = s.doJSON(t, &student, http.MethodGet, "/api/payment-accounts/"+acc.ID+"/qr", "")
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	// An account referenced by a bill cannot be deleted.
	s.seedBill(t, "b1", student, 15000)
	body, ct := payForm(t, map[string]string{"paymentMethod": "bank", "paymentAccountId": "acc-1"}, pngBytes(t))
	w = s.do(t, &student, http.MethodPost, "/api/cash-bills/b1/pay", body, ct)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = s.doJSON(t, &treasurer, http.MethodDelete, "/api/payment-accounts/acc-1", "")
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, services.CodeConflict, decodeError(t, w).Code)

	w = s.doJSON(t, &treasurer, http.MethodDelete, "/api/payment-accounts/"+acc.ID, "")
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestCronGenerateBills(t *testing.T) {
	s := newTestServer(t, nil)

	post := func(key, body string) *httptest.ResponseRecorder {
		r := httptest.NewRequest(http.MethodPost, "/api/cron/generate-bills", strings.NewReader(body))
		if key != "" {
			r.Header.Set(mW.CronKeyHeader, key)
		}
		w := httptest.NewRecorder()
		s.handler.ServeHTTP(w, r)
		return w
	}

	w := post("", `{"month":10,"year":2025}`)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = post(cronSecret, `{"month":10,"year":2025}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	result := decodeData[services.GenerationResult](t, w)
	assert.Equal(t, 2, result.Created)

	w = post(cronSecret, `{"month":10,"year":2025}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 2, decodeData[services.GenerationResult](t, w).Skipped)

	w = post(cronSecret, `{"month":7,"year":2025}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, decodeData[services.GenerationResult](t, w).Excluded)

	w = post(cronSecret, `{"month":10}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	n, err := s.store.CountBills(context.Background(), repository.BillFilter{Month: 10, Year: 2025})
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestHealth(t *testing.T) {
	s := newTestServer(t, nil)
	w := s.doJSON(t, nil, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "healthy")

	w = s.doJSON(t, nil, http.MethodGet, "/api/nope", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}
