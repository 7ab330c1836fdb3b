package handlers

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/velmora/storefront/internal/hash"
	"github.com/velmora/storefront/internal/models"
	"github.com/velmora/storefront/internal/payment"
)

type testEnv struct {
	T  *testing.T
	E  *echo.Echo
	DB *gorm.DB

	A   *AuthHandler
	C   *CartHandler
	P   *ProductHandler
	O   *OrderHandler
	Pay *PaymentHandler

	Gateway *stubGateway
	Mailer  *stubMailer

	JWTSecret, RefreshSecret []byte
}

func newTestEnv(t *testing.T) *testEnv {
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)

	require.NoError(t, db.AutoMigrate(
		&models.User{},
		&models.RefreshToken{},
		&models.Product{},
		&models.CartItem{},
		&models.Order{},
		&models.OrderItem{},
		&models.OTP{},
	))

	jwtSecret := []byte("test-jwt-secret")
	refreshSecret := []byte("test-refresh-secret")
	gateway := newStubGateway()
	mailer := &stubMailer{}

	env := &testEnv{
		T:             t,
		E:             echo.New(),
		DB:            db,
		Gateway:       gateway,
		Mailer:        mailer,
		JWTSecret:     jwtSecret,
		RefreshSecret: refreshSecret,
	}
	env.A = &AuthHandler{DB: db, JWTSecret: jwtSecret, RefreshSecret: refreshSecret, Mailer: mailer, AppURL: "http://localhost:3000"}
	env.C = &CartHandler{DB: db}
	env.P = &ProductHandler{DB: db}
	env.O = &OrderHandler{DB: db}
	env.Pay = &PaymentHandler{DB: db, Gateway: gateway, KeyID: "rzp_test_key", KeySecret: []byte("rzp_test_secret")}
	return env
}

func (env *testEnv) doJSONRequest(method, path string, body interface{}, cookies ...*http.Cookie) (*httptest.ResponseRecorder, echo.Context) {
	var buf bytes.Buffer
	if body != nil {
		require.NoError(env.T, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	for _, ck := range cookies {
		req.AddCookie(ck)
	}
	rec := httptest.NewRecorder()
	c := env.E.NewContext(req, rec)
	return rec, c
}

// authedRequest builds a context with the user id the auth middleware would
// have set.
func (env *testEnv) authedRequest(userID uint, method, path string, body interface{}) (*httptest.ResponseRecorder, echo.Context) {
	rec, c := env.doJSONRequest(method, path, body)
	c.Set("userID", userID)
	c.Set("role", "user")
	return rec, c
}

func (env *testEnv) createUser(email, password, role string) *models.User {
	pwHash, err := hash.HashPassword(password)
	require.NoError(env.T, err)
	user := &models.User{Name: "Test User", Email: email, PasswordHash: pwHash, Role: role, EmailVerified: true}
	require.NoError(env.T, env.DB.Create(user).Error)
	return user
}

func (env *testEnv) createProduct(name string, price float64, stock int) *models.Product {
	p := &models.Product{
		Name:   name,
		Slug:   fmt.Sprintf("%s-%d", name, stock),
		Price:  price,
		Stock:  stock,
		Images: []string{"https://cdn.example.com/" + name + ".jpg"},
		Active: true,
	}
	require.NoError(env.T, env.DB.Create(p).Error)
	return p
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

type stubMailer struct {
	Sent []struct {
		To, Subject, Body string
	}
	Err error
}

func (m *stubMailer) Send(to, subject, body string) error {
	if m.Err != nil {
		return m.Err
	}
	m.Sent = append(m.Sent, struct{ To, Subject, Body string }{to, subject, body})
	return nil
}

var errGatewayDown = fmt.Errorf("gateway unavailable")

type stubGateway struct {
	orders    map[string]*payment.GatewayOrder
	seq       int
	CreateErr error
	FetchErr  error
}

func newStubGateway() *stubGateway {
	return &stubGateway{orders: map[string]*payment.GatewayOrder{}}
}

func (g *stubGateway) CreateOrder(amount int64, currency, receipt string, notes map[string]string) (*payment.GatewayOrder, error) {
	if g.CreateErr != nil {
		return nil, g.CreateErr
	}
	g.seq++
	o := &payment.GatewayOrder{
		ID:       fmt.Sprintf("order_stub_%d", g.seq),
		Amount:   amount,
		Currency: currency,
		Notes:    notes,
	}
	g.orders[o.ID] = o
	return o, nil
}

func (g *stubGateway) FetchOrder(id string) (*payment.GatewayOrder, error) {
	if g.FetchErr != nil {
		return nil, g.FetchErr
	}
	o, ok := g.orders[id]
	if !ok {
		return nil, fmt.Errorf("order %s not found", id)
	}
	return o, nil
}
