package main

import (
	"context"
	"database/sql"
	"net/http"
	"os"

	"github.com/gorilla/mux"
	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"
	httpSwagger "github.com/swaggo/http-swagger"
	"go.opentelemetry.io/otel/trace"

	_ "tienda/docs"
	"tienda/pkg/catalog"
	catalogcache "tienda/pkg/catalog/cache"
	catalogmem "tienda/pkg/catalog/memory"
	catalogpg "tienda/pkg/catalog/postgres"
	"tienda/pkg/config"
	"tienda/pkg/fulfillment"
	"tienda/pkg/images"
	"tienda/pkg/logger"
	"tienda/pkg/order"
	ordermem "tienda/pkg/order/memory"
	orderpg "tienda/pkg/order/postgres"
	"tienda/pkg/otel"
)

var (
	redisClient *redis.Client
	catalogRepo catalog.Repository
	orderRepo   order.Repository
	engine      *fulfillment.Engine
	imageStore  images.Store
	log         *logger.Logger
	tracer      trace.Tracer
)

const schema = `
CREATE TABLE IF NOT EXISTS products (
    id BIGSERIAL PRIMARY KEY,
    name TEXT NOT NULL,
    price NUMERIC NOT NULL,
    category TEXT NOT NULL DEFAULT '',
    stock INT NOT NULL DEFAULT 0,
    image TEXT NOT NULL DEFAULT ''
);
CREATE TABLE IF NOT EXISTS orders (
    id TEXT PRIMARY KEY,
    customer TEXT NOT NULL,
    account TEXT NOT NULL DEFAULT '',
    created_at TIMESTAMPTZ NOT NULL,
    total NUMERIC NOT NULL
);
CREATE TABLE IF NOT EXISTS order_lines (
    order_id TEXT NOT NULL REFERENCES orders(id) ON DELETE CASCADE,
    position INT NOT NULL,
    product_id BIGINT NOT NULL,
    product_name TEXT NOT NULL,
    quantity INT NOT NULL,
    unit_price NUMERIC NOT NULL,
    subtotal NUMERIC NOT NULL
);`

// @title Tienda API
// @version 1.0
// @description Storefront API for products, images and order fulfillment
// @host localhost:8443
// @BasePath /
func main() {
	log = logger.New(os.Stdout, logger.LevelInfo, "tienda", otel.GetTraceID)

	cfg, err := config.Load()
	if err != nil {
		log.Error(context.Background(), "load config", "error", err)
		os.Exit(1)
	}

	tp, shutdown, err := otel.InitTracing(log, otel.Config{ServiceName: "tienda", Host: cfg.OtelHost, Probability: 1.0})
	if err != nil {
		log.Error(context.Background(), "init tracing", "error", err)
		os.Exit(1)
	}
	defer shutdown(context.Background())
	tracer = tp.Tracer("tienda")

	redisClient = redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPass, DB: cfg.RedisDB})

	if cfg.DatabaseURL != "" {
		db, err := sql.Open("postgres", cfg.DatabaseURL)
		if err != nil {
			log.Error(context.Background(), "db connect", "error", err)
			os.Exit(1)
		}
		if _, err := db.Exec(schema); err != nil {
			log.Error(context.Background(), "create tables", "error", err)
			os.Exit(1)
		}
		catalogRepo = catalogcache.New(catalogpg.New(db), redisClient, log)
		orderRepo = orderpg.New(db)
	} else {
		mem, err := catalogmem.NewWithSnapshot(cfg.SnapshotPath)
		if err != nil {
			log.Error(context.Background(), "load catalog snapshot", "error", err)
			os.Exit(1)
		}
		catalogRepo = mem
		orderRepo = ordermem.New()
	}

	engine = fulfillment.New(catalogRepo, orderRepo, fulfillment.Config{Markup: cfg.Markup}, log)

	imageStore, err = images.NewDisk(cfg.ImageDir)
	if err != nil {
		log.Error(context.Background(), "init image store", "error", err)
		os.Exit(1)
	}

	r := mux.NewRouter()
	r.Use(traceMiddleware)
	r.HandleFunc("/login", loginHandler).Methods(http.MethodPost)

	r.HandleFunc("/api/products", listProductsHandler).Methods(http.MethodGet)
	r.HandleFunc("/api/products/{id:[0-9]+}", getProductHandler).Methods(http.MethodGet)
	r.HandleFunc("/api/orders", submitOrderHandler).Methods(http.MethodPost)
	r.HandleFunc("/api/orders/{id}/receipt", receiptHandler).Methods(http.MethodGet)
	r.HandleFunc("/api/orders/{id}", getOrderHandler).Methods(http.MethodGet)
	r.HandleFunc("/api/orders/{id}", cancelOrderHandler).Methods(http.MethodDelete)
	r.HandleFunc("/api/customers/{customer}/orders", customerOrdersHandler).Methods(http.MethodGet)

	admin := r.PathPrefix("/api/admin").Subrouter()
	admin.Use(authMiddleware)
	admin.HandleFunc("/products", createProductHandler).Methods(http.MethodPost)
	admin.HandleFunc("/products/{id:[0-9]+}", updateProductHandler).Methods(http.MethodPut)
	admin.HandleFunc("/products/{id:[0-9]+}", deleteProductHandler).Methods(http.MethodDelete)
	admin.HandleFunc("/upload/{id:[0-9]+}", uploadImageHandler).Methods(http.MethodPost)
	admin.HandleFunc("/upload/{id:[0-9]+}", deleteImageHandler).Methods(http.MethodDelete)
	admin.HandleFunc("/orders", listOrdersHandler).Methods(http.MethodGet)

	r.PathPrefix("/imagenes/").Handler(http.StripPrefix("/imagenes/", http.FileServer(http.Dir(cfg.ImageDir))))
	r.PathPrefix("/swagger/").Handler(httpSwagger.WrapHandler)

	log.Info(context.Background(), "listening", "addr", cfg.Addr)
	if cfg.CertFile != "" {
		err = http.ListenAndServeTLS(cfg.Addr, cfg.CertFile, cfg.KeyFile, r)
	} else {
		err = http.ListenAndServe(cfg.Addr, r)
	}
	log.Error(context.Background(), "server closed", "error", err)
}

func traceMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := otel.InjectTracing(r.Context(), tracer)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
