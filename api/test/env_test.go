package test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alexedwards/scs/v2"
	"github.com/jmoiron/sqlx"
	"github.com/moroshop/storefront/api"
	"github.com/moroshop/storefront/config"
	"github.com/moroshop/storefront/core/cart"
	"github.com/moroshop/storefront/core/claims"
	"github.com/moroshop/storefront/core/shipping"
	"github.com/moroshop/storefront/core/user"
	"github.com/moroshop/storefront/database"
	"github.com/moroshop/storefront/rate"
	"github.com/moroshop/storefront/validate"
	"github.com/ory/dockertest/v3"
	"github.com/ory/dockertest/v3/docker"
	"github.com/plutov/paypal/v4"
	"github.com/sirupsen/logrus"
	"github.com/stripe/stripe-go/v74"
	stripecl "github.com/stripe/stripe-go/v74/client"
	"golang.org/x/crypto/bcrypt"
)

// TestEnv boots a disposable postgres container, migrates it, and serves
// the full api mux against it with mocked payment providers. Payments
// are the only faked boundary; everything else is the real wiring.
type TestEnv struct {
	DB     *sqlx.DB
	Server *httptest.Server
	URL    string

	UserEmail  string
	UserPass   string
	AdminEmail string
	AdminPass  string

	WebhookSecret string
	Paypal        *mockPaypal
	Stripe        *mockStripe

	client *http.Client
}

// fixedShipper quotes constant shipping and tax figures so expected
// totals in tests stay exact.
type fixedShipper struct {
	shipping float64
	tax      float64
}

func (f fixedShipper) Quote(ctx context.Context, discountedTotal float64) (shipping.Quote, error) {
	return shipping.Quote{ShippingPrice: f.shipping, TaxPrice: f.tax}, nil
}

func NewTestEnv(t *testing.T, dbName string) (*TestEnv, error) {
	pool, err := dockertest.NewPool("")
	if err != nil {
		return nil, fmt.Errorf("connecting to docker: %w", err)
	}

	res, err := pool.RunWithOptions(&dockertest.RunOptions{
		Repository: "postgres",
		Tag:        "15-alpine",
		Env: []string{
			"POSTGRES_USER=postgres",
			"POSTGRES_PASSWORD=postgres",
			"POSTGRES_DB=" + dbName,
		},
	}, func(hc *docker.HostConfig) {
		hc.AutoRemove = true
		hc.RestartPolicy = docker.RestartPolicy{Name: "no"}
	})
	if err != nil {
		return nil, fmt.Errorf("starting postgres container: %w", err)
	}
	t.Cleanup(func() { pool.Purge(res) })

	cfg := config.DB{
		User:       "postgres",
		Password:   "postgres",
		Host:       net.JoinHostPort("localhost", res.GetPort("5432/tcp")),
		Name:       dbName,
		DisableTLS: true,
	}

	var db *sqlx.DB
	pool.MaxWait = 2 * time.Minute
	if err := pool.Retry(func() error {
		db, err = database.Open(cfg)
		return err
	}); err != nil {
		return nil, fmt.Errorf("waiting for postgres: %w", err)
	}

	if err := database.Migrate(db); err != nil {
		return nil, fmt.Errorf("migrating test database: %w", err)
	}

	log := logrus.New()
	log.SetOutput(io.Discard)

	session := scs.New()
	session.Lifetime = time.Hour

	mp := &mockPaypal{}
	ppSrv := httptest.NewServer(mp.handle())
	t.Cleanup(ppSrv.Close)

	pp, err := paypal.NewClient("test-client", "test-secret", ppSrv.URL)
	if err != nil {
		return nil, fmt.Errorf("building paypal client: %w", err)
	}

	ms := &mockStripe{}
	stSrv := httptest.NewServer(ms.handle())
	t.Cleanup(stSrv.Close)

	backend := stripe.GetBackendWithConfig(stripe.APIBackend, &stripe.BackendConfig{
		URL: stripe.String(stSrv.URL),
	})
	strp := &stripecl.API{}
	strp.Init("sk_test_storefront", &stripe.Backends{API: backend})

	const webhookSecret = "whsec_storefront_test"

	mux := api.APIMux(api.APIConfig{
		Log:       log,
		DB:        db,
		Session:   session,
		CartCache: cart.NewCache(nil, time.Minute),
		Shipper:   fixedShipper{shipping: 20, tax: 5},
		Paypal:    pp,
		Stripe:    strp,
		StripeCfg: config.Stripe{
			SuccessURL:    "http://localhost/success",
			CancelURL:     "http://localhost/cancel",
			WebhookSecret: webhookSecret,
		},
		LoginLimiter:  rate.NewLimiter(1000, 60, 1000),
		CouponLimiter: rate.NewLimiter(1000, 60, 1000),
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("building cookie jar: %w", err)
	}

	env := &TestEnv{
		DB:            db,
		Server:        srv,
		URL:           srv.URL,
		UserEmail:     "user@test.com",
		UserPass:      "userpass123",
		AdminEmail:    "admin@test.com",
		AdminPass:     "adminpass123",
		WebhookSecret: webhookSecret,
		Paypal:        mp,
		Stripe:        ms,
		client:        &http.Client{Jar: jar},
	}

	if err := env.seedUser("Test User", env.UserEmail, env.UserPass, claims.RoleUser); err != nil {
		return nil, err
	}
	if err := env.seedUser("Test Admin", env.AdminEmail, env.AdminPass, claims.RoleAdmin); err != nil {
		return nil, err
	}

	return env, nil
}

func (e *TestEnv) Client() *http.Client {
	return e.client
}

func (e *TestEnv) seedUser(name, email, pass, role string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(pass), bcrypt.MinCost)
	if err != nil {
		return fmt.Errorf("hashing seed password: %w", err)
	}

	now := time.Now().UTC()
	usr := user.User{
		ID:           validate.GenerateID(),
		Name:         name,
		Email:        email,
		Role:         role,
		PasswordHash: hash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := user.Create(context.Background(), e.DB, usr); err != nil {
		return fmt.Errorf("seeding user[%s]: %w", email, err)
	}
	return nil
}

func (e *TestEnv) Login(t *testing.T, email, pass string) {
	t.Helper()

	body := map[string]string{"email": email, "password": pass}
	w := e.postJSON(t, "/auth/login", body)
	defer w.Body.Close()

	if w.StatusCode != http.StatusOK {
		t.Fatalf("can't login as %s: status code %s", email, w.Status)
	}
}

func (e *TestEnv) Logout(t *testing.T) {
	t.Helper()

	r, err := http.NewRequest(http.MethodPost, e.URL+"/auth/logout", nil)
	if err != nil {
		t.Fatal(err)
	}

	w, err := e.client.Do(r)
	if err != nil {
		t.Fatal(err)
	}
	defer w.Body.Close()

	if w.StatusCode != http.StatusNoContent {
		t.Fatalf("can't logout: status code %s", w.Status)
	}
}

func (e *TestEnv) postJSON(t *testing.T, path string, body any) *http.Response {
	t.Helper()

	b, err := json.Marshal(body)
	if err != nil {
		t.Fatal(err)
	}

	r, err := http.NewRequest(http.MethodPost, e.URL+path, bytes.NewBuffer(b))
	if err != nil {
		t.Fatal(err)
	}
	r.Header.Set("Content-Type", "application/json")

	w, err := e.client.Do(r)
	if err != nil {
		t.Fatal(err)
	}
	return w
}

func (e *TestEnv) getJSON(t *testing.T, path string, out any) *http.Response {
	t.Helper()

	r, err := http.NewRequest(http.MethodGet, e.URL+path, nil)
	if err != nil {
		t.Fatal(err)
	}

	w, err := e.client.Do(r)
	if err != nil {
		t.Fatal(err)
	}
	defer w.Body.Close()

	if out != nil && w.StatusCode == http.StatusOK {
		if err := json.NewDecoder(w.Body).Decode(out); err != nil {
			t.Fatalf("decoding GET %s response: %v", path, err)
		}
	}
	return w
}
