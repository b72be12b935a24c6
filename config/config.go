package config

import "time"

// Config collects every knob the server needs. It is parsed from the
// environment by conf.Parse with the STOREFRONT prefix.
type Config struct {
	Web      Web
	DB       DB
	Redis    Redis
	Session  Session
	Cors     Cors
	Stripe   Stripe
	Paypal   Paypal
	Shipping Shipping
	Rate     Rate
}

type Web struct {
	Address         string        `conf:"default:0.0.0.0:8000"`
	ReadTimeout     time.Duration `conf:"default:5s"`
	WriteTimeout    time.Duration `conf:"default:10s"`
	IdleTimeout     time.Duration `conf:"default:120s"`
	ShutdownTimeout time.Duration `conf:"default:20s"`
}

type DB struct {
	User       string `conf:"default:postgres"`
	Password   string `conf:"default:postgres,mask"`
	Host       string `conf:"default:localhost:5432"`
	Name       string `conf:"default:storefront"`
	DisableTLS bool   `conf:"default:true"`
}

type Redis struct {
	Address string        `conf:"default:localhost:6379"`
	CartTTL time.Duration `conf:"default:15m"`
}

type Session struct {
	Lifetime time.Duration `conf:"default:24h"`
}

type Cors struct {
	Origin string
}

type Stripe struct {
	APISecret     string `conf:"mask"`
	WebhookSecret string `conf:"mask"`
	SuccessURL    string `conf:"default:http://localhost:3000/payment/success"`
	CancelURL     string `conf:"default:http://localhost:3000/cart"`
}

type Paypal struct {
	ClientID string `conf:"mask"`
	Secret   string `conf:"mask"`
	URL      string `conf:"default:https://api.sandbox.paypal.com"`
}

// Shipping backs the flat-rate quote provider. TaxRate is a fraction of
// the discounted total (e.g. 0.02 for 2%).
type Shipping struct {
	FlatPrice float64 `conf:"default:20"`
	TaxRate   float64 `conf:"default:0.02"`
}

type Rate struct {
	CouponBurst  int     `conf:"default:3"`
	CouponPerMin float64 `conf:"default:10"`
	LoginBurst   int     `conf:"default:5"`
	LoginPerMin  float64 `conf:"default:20"`
}
