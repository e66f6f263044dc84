package controllers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yashrajoria/storefront-api/cache"
	"github.com/yashrajoria/storefront-api/controllers"
	apperrors "github.com/yashrajoria/storefront-api/errors"
	"github.com/yashrajoria/storefront-api/middleware"
	"github.com/yashrajoria/storefront-api/models"
	"github.com/yashrajoria/storefront-api/services"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// --- Mocks ---

type mockCartService struct {
	services.CartService
	addFn         func(ctx context.Context, accountID, productID uuid.UUID, qty int, key string) (*models.CartView, error)
	setQuantityFn func(ctx context.Context, accountID, productID uuid.UUID, qty int) (*models.CartView, error)
	decreaseFn    func(ctx context.Context, accountID, productID uuid.UUID) (*models.CartView, error)
}

func (m *mockCartService) Add(ctx context.Context, accountID, productID uuid.UUID, qty int, key string) (*models.CartView, error) {
	return m.addFn(ctx, accountID, productID, qty, key)
}
func (m *mockCartService) SetQuantity(ctx context.Context, accountID, productID uuid.UUID, qty int) (*models.CartView, error) {
	return m.setQuantityFn(ctx, accountID, productID, qty)
}
func (m *mockCartService) Decrease(ctx context.Context, accountID, productID uuid.UUID) (*models.CartView, error) {
	return m.decreaseFn(ctx, accountID, productID)
}

type mockAccountService struct {
	services.AccountService
	requestOTPFn   func(ctx context.Context, req models.RequestOTPRequest) (*models.OTPIssue, error)
	registerFn     func(ctx context.Context, req models.RegisterRequest) (*models.RegisterResponse, error)
	listAccountsFn func(ctx context.Context, filter models.AccountFilter) ([]models.Account, int64, error)
}

func (m *mockAccountService) RequestOTP(ctx context.Context, req models.RequestOTPRequest) (*models.OTPIssue, error) {
	return m.requestOTPFn(ctx, req)
}
func (m *mockAccountService) Register(ctx context.Context, req models.RegisterRequest) (*models.RegisterResponse, error) {
	return m.registerFn(ctx, req)
}
func (m *mockAccountService) ListAccounts(ctx context.Context, filter models.AccountFilter) ([]models.Account, int64, error) {
	return m.listAccountsFn(ctx, filter)
}

type mockProductService struct {
	services.ProductService
	listFn func(ctx context.Context, filter models.ProductFilter) (*cache.ProductPage, error)
	getFn  func(ctx context.Context, idOrSlug string, includeInactive bool) (*models.Product, error)
}

func (m *mockProductService) List(ctx context.Context, filter models.ProductFilter) (*cache.ProductPage, error) {
	return m.listFn(ctx, filter)
}
func (m *mockProductService) Get(ctx context.Context, idOrSlug string, includeInactive bool) (*models.Product, error) {
	return m.getFn(ctx, idOrSlug, includeInactive)
}

type mockPermissionService struct {
	services.PermissionService
	perms map[string][]string
}

func (m *mockPermissionService) AbilityFor(_ context.Context, role string) (*services.Ability, error) {
	return services.NewAbility(m.perms[role]), nil
}

type mockPaymentService struct {
	services.PaymentService
	webhookFn func(ctx context.Context, payload []byte, sig string) error
	getFn     func(ctx context.Context, orderID, actorID uuid.UUID, ability *services.Ability) (*models.Payment, error)
}

func (m *mockPaymentService) HandleWebhook(ctx context.Context, payload []byte, sig string) error {
	return m.webhookFn(ctx, payload, sig)
}
func (m *mockPaymentService) GetForOrder(ctx context.Context, orderID, actorID uuid.UUID, ability *services.Ability) (*models.Payment, error) {
	return m.getFn(ctx, orderID, actorID, ability)
}

type mockOrderService struct {
	services.OrderService
	checkoutFn func(ctx context.Context, accountID uuid.UUID, req models.CheckoutRequest) (*models.CheckoutResponse, error)
	listAllFn  func(ctx context.Context, filter models.OrderFilter) (*models.ListResponse[models.Order], error)
}

func (m *mockOrderService) Checkout(ctx context.Context, accountID uuid.UUID, req models.CheckoutRequest) (*models.CheckoutResponse, error) {
	return m.checkoutFn(ctx, accountID, req)
}
func (m *mockOrderService) ListAll(ctx context.Context, filter models.OrderFilter) (*models.ListResponse[models.Order], error) {
	return m.listAllFn(ctx, filter)
}

type mockImageService struct {
	services.ImageService
	uploadFn func(ctx context.Context, productID uuid.UUID, contentType string, size int64, body io.Reader) (*models.Image, error)
}

func (m *mockImageService) Upload(ctx context.Context, productID uuid.UUID, contentType string, size int64, body io.Reader) (*models.Image, error) {
	return m.uploadFn(ctx, productID, contentType, size, body)
}

// --- Helpers ---

var testAccount = uuid.New()

// newRouter renders errors like production and signs every request in as
// testAccount with the given role. An empty role leaves the request anonymous.
func newRouter(role string) *gin.Engine {
	r := gin.New()
	r.Use(apperrors.ErrorMiddleware())
	r.Use(func(c *gin.Context) {
		if role != "" {
			c.Set(middleware.AccountIDKey, testAccount)
			c.Set(middleware.RoleKey, role)
		}
		c.Next()
	})
	return r
}

func doJSON(r http.Handler, method, path string, body any, headers ...string) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body
}

// --- Cart ---

func TestCartAddDefaultsQuantityAndForwardsIdempotencyKey(t *testing.T) {
	productID := uuid.New()
	var gotQty int
	var gotKey string
	svc := &mockCartService{addFn: func(_ context.Context, accountID, pid uuid.UUID, qty int, key string) (*models.CartView, error) {
		assert.Equal(t, testAccount, accountID)
		assert.Equal(t, productID, pid)
		gotQty, gotKey = qty, key
		return &models.CartView{ItemCount: qty}, nil
	}}
	r := newRouter("customer")
	r.POST("/cart/items", controllers.NewCartController(svc).AddItem)

	w := doJSON(r, http.MethodPost, "/cart/items", gin.H{"product_id": productID}, "Idempotency-Key", "abc-123")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 1, gotQty)
	assert.Equal(t, "abc-123", gotKey)

	w = doJSON(r, http.MethodPost, "/cart/items", gin.H{"product_id": productID, "quantity": 3})
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 3, gotQty)
	assert.Equal(t, "", gotKey)
}

func TestCartAddInsufficientStock(t *testing.T) {
	svc := &mockCartService{addFn: func(context.Context, uuid.UUID, uuid.UUID, int, string) (*models.CartView, error) {
		return nil, apperrors.WithDetails(apperrors.ErrInsufficientStock, map[string]any{"available": 2, "requested": 5})
	}}
	r := newRouter("customer")
	r.POST("/cart/items", controllers.NewCartController(svc).AddItem)

	w := doJSON(r, http.MethodPost, "/cart/items", gin.H{"product_id": uuid.New(), "quantity": 5})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	body := decode(t, w)
	assert.Equal(t, "Insufficient stock", body["error"])
	assert.Equal(t, float64(2), body["details"].(map[string]any)["available"])
}

func TestCartRejectsBadInput(t *testing.T) {
	svc := &mockCartService{}
	r := newRouter("customer")
	cc := controllers.NewCartController(svc)
	r.POST("/cart/items", cc.AddItem)
	r.POST("/cart/items/:productId/decrease", cc.Decrease)
	r.PUT("/cart/items/:productId", cc.SetQuantity)

	w := doJSON(r, http.MethodPost, "/cart/items", gin.H{"quantity": 1})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Validation error", decode(t, w)["error"])

	w = doJSON(r, http.MethodPost, "/cart/items/not-a-uuid/decrease", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doJSON(r, http.MethodPut, "/cart/items/"+uuid.NewString(), gin.H{})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doJSON(r, http.MethodPost, "/cart/items", gin.H{"product_id": uuid.NewString(), "quantity": 1 << 62})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Validation error", decode(t, w)["error"])

	w = doJSON(r, http.MethodPut, "/cart/items/"+uuid.NewString(), gin.H{"quantity": 10001})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCartSetQuantityZeroIsForwarded(t *testing.T) {
	var got = -1
	svc := &mockCartService{setQuantityFn: func(_ context.Context, _, _ uuid.UUID, qty int) (*models.CartView, error) {
		got = qty
		return &models.CartView{}, nil
	}}
	r := newRouter("customer")
	r.PUT("/cart/items/:productId", controllers.NewCartController(svc).SetQuantity)

	w := doJSON(r, http.MethodPut, "/cart/items/"+uuid.NewString(), gin.H{"quantity": 0})
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 0, got)
}

func TestCartRequiresAccount(t *testing.T) {
	r := newRouter("")
	r.POST("/cart/items/:productId/decrease", controllers.NewCartController(&mockCartService{}).Decrease)

	w := doJSON(r, http.MethodPost, "/cart/items/"+uuid.NewString()+"/decrease", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

// --- Auth ---

func TestRequestOTPHidesUnknownIdentifiers(t *testing.T) {
	svc := &mockAccountService{requestOTPFn: func(_ context.Context, req models.RequestOTPRequest) (*models.OTPIssue, error) {
		if req.Identifier == "known@example.com" {
			return &models.OTPIssue{Channel: models.ChannelEmail, Target: "k***@example.com"}, nil
		}
		return nil, nil
	}}
	r := newRouter("")
	r.POST("/auth/otp/request", controllers.NewAuthController(svc).RequestOTP)

	known := doJSON(r, http.MethodPost, "/auth/otp/request", gin.H{"identifier": "known@example.com", "purpose": "login"})
	unknown := doJSON(r, http.MethodPost, "/auth/otp/request", gin.H{"identifier": "nobody@example.com", "purpose": "login"})

	assert.Equal(t, http.StatusAccepted, known.Code)
	assert.Equal(t, http.StatusAccepted, unknown.Code)
	assert.Equal(t, known.Body.String(), unknown.Body.String())
}

func TestRequestOTPPropagatesCooldown(t *testing.T) {
	svc := &mockAccountService{requestOTPFn: func(context.Context, models.RequestOTPRequest) (*models.OTPIssue, error) {
		return nil, apperrors.ErrOTPCooldown
	}}
	r := newRouter("")
	r.POST("/auth/otp/request", controllers.NewAuthController(svc).RequestOTP)

	w := doJSON(r, http.MethodPost, "/auth/otp/request", gin.H{"identifier": "a@example.com", "purpose": "login"})
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
}

func TestRegister(t *testing.T) {
	svc := &mockAccountService{registerFn: func(_ context.Context, req models.RegisterRequest) (*models.RegisterResponse, error) {
		if req.Email != nil && *req.Email == "taken@example.com" {
			return nil, apperrors.ErrConflict
		}
		return &models.RegisterResponse{Account: &models.Account{Name: req.Name}, OTPChannel: "email", OTPDelivery: "sent"}, nil
	}}
	r := newRouter("")
	r.POST("/auth/register", controllers.NewAuthController(svc).Register)

	w := doJSON(r, http.MethodPost, "/auth/register", gin.H{"email": "new@example.com", "name": "Ada", "password": "Gr8!Mx9#Lq"})
	assert.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "sent", decode(t, w)["otp_delivery"])

	w = doJSON(r, http.MethodPost, "/auth/register", gin.H{"email": "taken@example.com", "name": "Ada", "password": "Gr8!Mx9#Lq"})
	assert.Equal(t, http.StatusConflict, w.Code)

	w = doJSON(r, http.MethodPost, "/auth/register", gin.H{"email": "not-an-email", "name": "Ada", "password": "x"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

// --- Products ---

func TestProductListIncludeInactiveOnlyForStaff(t *testing.T) {
	var got []bool
	svc := &mockProductService{listFn: func(_ context.Context, f models.ProductFilter) (*cache.ProductPage, error) {
		got = append(got, f.IncludeInactive)
		return &cache.ProductPage{Data: []models.Product{}}, nil
	}}
	perms := &mockPermissionService{perms: map[string][]string{"staff": {"manage:product"}}}

	for _, role := range []string{"", "customer", "staff"} {
		r := newRouter(role)
		r.GET("/products", controllers.NewProductController(svc, perms).List)
		w := doJSON(r, http.MethodGet, "/products?include_inactive=true", nil)
		assert.Equal(t, http.StatusOK, w.Code)
	}
	assert.Equal(t, []bool{false, false, true}, got)
}

func TestProductGetBySlug(t *testing.T) {
	svc := &mockProductService{getFn: func(_ context.Context, idOrSlug string, includeInactive bool) (*models.Product, error) {
		assert.False(t, includeInactive)
		if idOrSlug == "ryzen-7-7800x3d" {
			return &models.Product{Name: "Ryzen 7 7800X3D", Slug: idOrSlug}, nil
		}
		return nil, apperrors.ErrProductNotFound
	}}
	r := newRouter("")
	r.GET("/products/:id", controllers.NewProductController(svc, &mockPermissionService{}).Get)

	w := doJSON(r, http.MethodGet, "/products/ryzen-7-7800x3d", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Ryzen 7 7800X3D", decode(t, w)["name"])

	w = doJSON(r, http.MethodGet, "/products/missing", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

// --- Images ---

func TestImageUploadMultipart(t *testing.T) {
	productID := uuid.New()
	svc := &mockImageService{uploadFn: func(_ context.Context, pid uuid.UUID, contentType string, size int64, body io.Reader) (*models.Image, error) {
		data, err := io.ReadAll(body)
		require.NoError(t, err)
		assert.Equal(t, productID, pid)
		assert.Equal(t, "image/png", contentType)
		assert.Equal(t, int64(len(data)), size)
		return &models.Image{ProductID: pid, ContentType: contentType, SizeBytes: size}, nil
	}}
	r := newRouter("admin")
	r.POST("/products/:id/images/upload", controllers.NewImageController(svc).Upload)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", `form-data; name="file"; filename="board.png"`)
	h.Set("Content-Type", "image/png")
	part, err := mw.CreatePart(h)
	require.NoError(t, err)
	_, _ = part.Write([]byte("\x89PNG fake image bytes"))
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/products/"+productID.String()+"/images/upload", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusCreated, w.Code)

	w = doJSON(r, http.MethodPost, "/products/"+productID.String()+"/images/upload", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

// --- Orders & payments ---

func TestCheckout(t *testing.T) {
	svc := &mockOrderService{checkoutFn: func(_ context.Context, accountID uuid.UUID, req models.CheckoutRequest) (*models.CheckoutResponse, error) {
		assert.Equal(t, "SAVE10", req.DiscountCode)
		return &models.CheckoutResponse{
			Order:   &models.Order{AccountID: accountID, Status: models.OrderPending},
			Payment: &models.Payment{ClientSecret: "pi_1_secret"},
		}, nil
	}}
	r := newRouter("customer")
	r.POST("/orders/checkout", controllers.NewOrderController(svc).Checkout)

	w := doJSON(r, http.MethodPost, "/orders/checkout", gin.H{
		"discount_code": "SAVE10",
		"shipping":      gin.H{"name": "Ada", "line1": "1 Main St", "city": "Austin", "postal_code": "78701", "country": "US"},
	})
	assert.Equal(t, http.StatusCreated, w.Code)
	body := decode(t, w)
	assert.Equal(t, "pending", body["order"].(map[string]any)["status"])

	w = doJSON(r, http.MethodPost, "/orders/checkout", gin.H{"shipping": gin.H{"name": "Ada"}})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAdminOrderListAccountFilter(t *testing.T) {
	other := uuid.New()
	svc := &mockOrderService{listAllFn: func(_ context.Context, f models.OrderFilter) (*models.ListResponse[models.Order], error) {
		require.NotNil(t, f.AccountID)
		assert.Equal(t, other, *f.AccountID)
		assert.Equal(t, models.OrderPaid, f.Status)
		return &models.ListResponse[models.Order]{Data: []models.Order{}, Meta: models.NewListMeta(1, 20, 0)}, nil
	}}
	r := newRouter("admin")
	r.GET("/admin/orders", controllers.NewOrderController(svc).ListAll)

	w := doJSON(r, http.MethodGet, "/admin/orders?status=paid&account="+other.String(), nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, decode(t, w), "meta")

	w = doJSON(r, http.MethodGet, "/admin/orders?account=nope", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestWebhookPassesRawBodyAndSignature(t *testing.T) {
	raw := `{"id":"evt_1","type":"payment_intent.succeeded"}`
	svc := &mockPaymentService{webhookFn: func(_ context.Context, payload []byte, sig string) error {
		assert.Equal(t, raw, string(payload))
		if sig != "t=1,v1=good" {
			return apperrors.WithMessage(apperrors.ErrBadRequest, "Invalid webhook signature")
		}
		return nil
	}}
	r := newRouter("")
	r.POST("/payments/webhook", controllers.NewPaymentController(svc, &mockPermissionService{}).Webhook)

	send := func(sig string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/payments/webhook", bytes.NewBufferString(raw))
		req.Header.Set("Stripe-Signature", sig)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w
	}
	assert.Equal(t, http.StatusOK, send("t=1,v1=good").Code)
	w := send("t=1,v1=bad")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Invalid webhook signature", decode(t, w)["error"])
}

func TestPaymentGetUsesCallerAbility(t *testing.T) {
	svc := &mockPaymentService{getFn: func(_ context.Context, _, actorID uuid.UUID, ability *services.Ability) (*models.Payment, error) {
		assert.Equal(t, testAccount, actorID)
		if !ability.Can(services.ActionRead, services.SubjectOrder) {
			return nil, apperrors.ErrOrderNotFound
		}
		return &models.Payment{Status: models.PaymentRequiresPayment}, nil
	}}
	perms := &mockPermissionService{perms: map[string][]string{"staff": {"read:order"}}}

	for role, want := range map[string]int{"staff": http.StatusOK, "customer": http.StatusNotFound} {
		r := newRouter(role)
		r.GET("/orders/:id/payment", controllers.NewPaymentController(svc, perms).GetForOrder)
		w := doJSON(r, http.MethodGet, "/orders/"+uuid.NewString()+"/payment", nil)
		assert.Equal(t, want, w.Code, role)
	}
}

// --- Admin & health ---

func TestAdminListAccountsShape(t *testing.T) {
	svc := &mockAccountService{listAccountsFn: func(_ context.Context, f models.AccountFilter) ([]models.Account, int64, error) {
		assert.Equal(t, 2, f.Page)
		assert.Equal(t, 10, f.Limit)
		assert.Equal(t, "ada", f.Query)
		return []models.Account{{Name: "Ada"}}, 11, nil
	}}
	r := newRouter("admin")
	r.GET("/admin/accounts", controllers.NewAdminController(svc, &mockPermissionService{}).ListAccounts)

	w := doJSON(r, http.MethodGet, "/admin/accounts?page=2&limit=10&q=ada", nil)
	require.Equal(t, http.StatusOK, w.Code)
	meta := decode(t, w)["meta"].(map[string]any)
	assert.Equal(t, float64(11), meta["total"])
	assert.Equal(t, float64(2), meta["total_pages"])
	assert.Equal(t, false, meta["has_more"])
}

func TestHealth(t *testing.T) {
	healthy := controllers.NewHealthController(map[string]controllers.HealthCheck{
		"postgres": func(context.Context) error { return nil },
	})
	broken := controllers.NewHealthController(map[string]controllers.HealthCheck{
		"postgres": func(context.Context) error { return nil },
		"redis":    func(context.Context) error { return errors.New("connection refused") },
	})

	r := newRouter("")
	r.GET("/ok", healthy.Health)
	r.GET("/bad", broken.Health)

	assert.Equal(t, http.StatusOK, doJSON(r, http.MethodGet, "/ok", nil).Code)
	w := doJSON(r, http.MethodGet, "/bad", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, "degraded", decode(t, w)["status"])
}
