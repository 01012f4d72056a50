package config

import (
	"fmt"
	"log"
	"reflect"
	"time"

	"github.com/caarlos0/env/v6"

	"github.com/cloudx-io/assetauction/core"
)

// StoreBackend selects the auction record store.
type StoreBackend string

const maxPaymentDecimals = 18

const (
	StoreMemory   StoreBackend = "memory"
	StorePostgres StoreBackend = "postgres"
)

type Config struct {
	API struct {
		Port            int           `env:"PORT" envDefault:"8080"`
		ReadTimeout     time.Duration `env:"READ_TIMEOUT" envDefault:"10s"`
		WriteTimeout    time.Duration `env:"WRITE_TIMEOUT" envDefault:"10s"`
		ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"5s"`
		// DevRoutes exposes minting and asset registration. Never enable in production.
		DevRoutes bool `env:"DEV_ROUTES" envDefault:"false"`
	}
	App struct {
		LogLevel         string         `env:"LOG_LEVEL" envDefault:"INFO"`
		AcceptedCurrency core.TokenType `env:"ACCEPTED_CURRENCY" envDefault:"usdc"`
		PaymentDecimals  int32          `env:"PAYMENT_DECIMALS" envDefault:"6"`
		ReceiptSigning   bool           `env:"RECEIPT_SIGNING" envDefault:"true"`
		// ReceiptKeyFile holds a PEM EC P-256 private key. A fresh key is generated when empty.
		ReceiptKeyFile string `env:"RECEIPT_KEY_FILE"`
	}
	Store struct {
		Backend     StoreBackend `env:"STORE_BACKEND" envDefault:"memory"`
		DatabaseURL string       `env:"DATABASE_URL"`
		// AllowEphemeralLedger acknowledges that the in-process ledger forgets balances on
		// restart while postgres keeps the records. Required with the postgres store.
		AllowEphemeralLedger bool `env:"ALLOW_EPHEMERAL_LEDGER" envDefault:"false"`
	}
}

func parseStoreBackend(v string) (interface{}, error) {
	switch b := StoreBackend(v); b {
	case StoreMemory, StorePostgres:
		return b, nil
	default:
		return nil, fmt.Errorf("unknown store backend %q", v)
	}
}

// Parse reads the configuration from environ, or from the process environment when environ is nil.
func Parse(environ map[string]string) (Config, error) {
	var c Config
	opts := env.Options{}
	if environ != nil {
		opts.Environment = environ
	}
	if err := env.ParseWithFuncs(&c, map[reflect.Type]env.ParserFunc{
		reflect.TypeOf(StoreBackend("")): parseStoreBackend,
	}, opts); err != nil {
		return Config{}, err
	}

	if c.App.PaymentDecimals < 0 || c.App.PaymentDecimals > maxPaymentDecimals {
		return Config{}, fmt.Errorf("PAYMENT_DECIMALS must be between 0 and %d", maxPaymentDecimals)
	}
	if c.Store.Backend == StorePostgres && c.Store.DatabaseURL == "" {
		return Config{}, fmt.Errorf("DATABASE_URL is required for the postgres store")
	}
	if c.Store.Backend == StorePostgres && !c.Store.AllowEphemeralLedger {
		return Config{}, fmt.Errorf("the postgres store keeps records that the in-memory ledger loses on restart; set ALLOW_EPHEMERAL_LEDGER=true to run it anyway")
	}
	return c, nil
}

func Load() Config {
	c, err := Parse(nil)
	if err != nil {
		log.Panicf("[‼️  Config parsing failed] %+v\n", err)
	}
	return c
}
