package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"strconv"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	_ "github.com/lib/pq"
	goredis "github.com/redis/go-redis/v9"
	httpSwagger "github.com/swaggo/http-swagger"
	"go.opentelemetry.io/otel"
	stdouttrace "go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"pricingflow/pkg/logger"
	"pricingflow/pkg/markdown"
	"pricingflow/pkg/markdown/memory"
	pg "pricingflow/pkg/markdown/postgres"
	redisstore "pricingflow/pkg/markdown/redis"
	"pricingflow/pkg/pricing"
)

var (
	svc    *pricing.Service
	tracer trace.Tracer
)

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok {
		return v
	}
	return fallback
}

// @title Pricingflow API
// @version 1.0
// @description API for managing markdown policies and computing basket prices
// @host localhost:8080
// @BasePath /
func main() {
	logger.Init(os.Getenv("LOG_MODE"))
	defer logger.Sync()

	exp, err := stdouttrace.New(stdouttrace.WithPrettyPrint())
	if err != nil {
		logger.Log.Fatal("init tracing", zap.Error(err))
	}
	tp := sdktrace.NewTracerProvider(sdktrace.WithBatcher(exp))
	otel.SetTracerProvider(tp)
	defer tp.Shutdown(context.Background())
	tracer = otel.Tracer("pricingflow")

	repo, err := newRepository(context.Background())
	if err != nil {
		logger.Log.Fatal("init store", zap.Error(err))
	}
	svc = pricing.New(repo)

	r := newRouter()

	addr := getEnv("ADDR", ":8080")
	logger.Log.Info("listening", zap.String("addr", addr))
	cert, key := os.Getenv("TLS_CERT"), os.Getenv("TLS_KEY")
	if cert != "" && key != "" {
		err = http.ListenAndServeTLS(addr, cert, key, r)
	} else {
		err = http.ListenAndServe(addr, r)
	}
	logger.Log.Fatal("server closed", zap.Error(err))
}

// newRouter wires all pricing routes and the swagger UI.
func newRouter() *mux.Router {
	r := mux.NewRouter()
	api := r.PathPrefix("/v1/pricing").Subrouter()
	api.HandleFunc("/finalprice", finalPriceHandler).Methods(http.MethodGet)

	md := api.PathPrefix("/markdowns").Subrouter()
	md.HandleFunc("", listMarkdownsHandler).Methods(http.MethodGet)
	md.HandleFunc("", createMarkdownHandler).Methods(http.MethodPost)
	md.HandleFunc("/{id}", getMarkdownHandler).Methods(http.MethodGet)
	md.HandleFunc("/{id}", updateMarkdownHandler).Methods(http.MethodPatch)
	md.HandleFunc("/{id}", deleteMarkdownHandler).Methods(http.MethodDelete)
	md.HandleFunc("/{id}/associations", associateHandler).Methods(http.MethodPost)
	md.HandleFunc("/{id}/associations", dissociateHandler).Methods(http.MethodDelete)

	r.PathPrefix("/swagger/").Handler(httpSwagger.WrapHandler)
	return r
}

// newRepository selects the store backend from the environment:
// DATABASE_URL picks PostgreSQL, REDIS_ADDR picks Redis, otherwise the
// in-memory store is used.
func newRepository(ctx context.Context) (markdown.Repository, error) {
	if dsn := os.Getenv("DATABASE_URL"); dsn != "" {
		db, err := sql.Open("postgres", dsn)
		if err != nil {
			return nil, err
		}
		repo := pg.New(db)
		if err := repo.EnsureSchema(ctx); err != nil {
			return nil, err
		}
		logger.Log.Info("using postgres store")
		return repo, nil
	}
	if addr := os.Getenv("REDIS_ADDR"); addr != "" {
		client := goredis.NewClient(&goredis.Options{Addr: addr})
		logger.Log.Info("using redis store", zap.String("addr", addr))
		return redisstore.New(client), nil
	}
	logger.Log.Info("using in-memory store")
	return memory.New(), nil
}

// markdownDTO is the external JSON shape of a markdown policy.
type markdownDTO struct {
	ID         string          `json:"id,omitempty"`
	Type       markdown.Type   `json:"type"`
	Percentage *float64        `json:"percentage,omitempty"`
	Thresholds map[int]float64 `json:"thresholds,omitempty"`
}

func toSpecification(dto markdownDTO) markdown.Specification {
	return markdown.Specification{
		Type: dto.Type,
		Configuration: markdown.Configuration{
			Percentage: dto.Percentage,
			Thresholds: dto.Thresholds,
		},
	}
}

func toDTO(m markdown.Markdown) markdownDTO {
	spec := m.Policy.Describe()
	return markdownDTO{
		ID:         m.ID,
		Type:       spec.Type,
		Percentage: spec.Configuration.Percentage,
		Thresholds: spec.Configuration.Thresholds,
	}
}

// listMarkdownsHandler lists all markdown policies.
// @Summary List markdowns
// @Produce json
// @Success 200 {array} markdownDTO
// @Router /v1/pricing/markdowns [get]
func listMarkdownsHandler(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracer.Start(r.Context(), "listMarkdownsHandler")
	defer span.End()

	markdowns, err := svc.RetrieveAllPolicies(ctx)
	if err != nil {
		logger.Log.Error("list markdowns", zap.Error(err))
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	out := make([]markdownDTO, 0, len(markdowns))
	for _, m := range markdowns {
		out = append(out, toDTO(m))
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(out)
}

// getMarkdownHandler retrieves a markdown by ID.
// @Summary Get markdown
// @Produce json
// @Param id path string true "Markdown ID"
// @Success 200 {object} markdownDTO
// @Router /v1/pricing/markdowns/{id} [get]
func getMarkdownHandler(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracer.Start(r.Context(), "getMarkdownHandler")
	defer span.End()

	id := mux.Vars(r)["id"]
	m, err := svc.RetrievePolicy(ctx, id)
	if err != nil {
		if errors.Is(err, markdown.ErrNotFound) {
			http.NotFound(w, r)
			return
		}
		logger.Log.Error("get markdown", zap.String("id", id), zap.Error(err))
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(toDTO(m))
}

// createMarkdownHandler creates a new markdown policy.
// @Summary Create markdown
// @Accept json
// @Param markdown body markdownDTO true "Markdown"
// @Success 200
// @Header 200 {string} Location "URI of the created markdown"
// @Router /v1/pricing/markdowns [post]
func createMarkdownHandler(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracer.Start(r.Context(), "createMarkdownHandler")
	defer span.End()

	var dto markdownDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	spec := toSpecification(dto)
	if err := spec.Validate(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	id, err := svc.CreatePolicy(ctx, spec)
	if err != nil {
		logger.Log.Error("create markdown", zap.Error(err))
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Location", "/v1/pricing/markdowns/"+id)
	w.WriteHeader(http.StatusOK)
}

// updateMarkdownHandler tunes the parameters of an existing markdown.
// The stored policy's type cannot be changed; a specification with a
// different type is answered with 404.
// @Summary Update markdown
// @Accept json
// @Param id path string true "Markdown ID"
// @Param markdown body markdownDTO true "Markdown"
// @Success 200
// @Router /v1/pricing/markdowns/{id} [patch]
func updateMarkdownHandler(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracer.Start(r.Context(), "updateMarkdownHandler")
	defer span.End()

	id := mux.Vars(r)["id"]
	var dto markdownDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	spec := toSpecification(dto)
	if err := spec.Validate(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err := svc.UpdatePolicy(ctx, id, spec); err != nil {
		if errors.Is(err, markdown.ErrNotFound) || errors.Is(err, markdown.ErrTypeMismatch) {
			http.NotFound(w, r)
			return
		}
		logger.Log.Error("update markdown", zap.String("id", id), zap.Error(err))
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusOK)
}

// deleteMarkdownHandler removes a markdown.
// @Summary Delete markdown
// @Param id path string true "Markdown ID"
// @Success 200
// @Router /v1/pricing/markdowns/{id} [delete]
func deleteMarkdownHandler(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracer.Start(r.Context(), "deleteMarkdownHandler")
	defer span.End()

	id := mux.Vars(r)["id"]
	if err := svc.DeletePolicy(ctx, id); err != nil {
		if errors.Is(err, markdown.ErrNotFound) {
			http.NotFound(w, r)
			return
		}
		logger.Log.Error("delete markdown", zap.String("id", id), zap.Error(err))
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusOK)
}

// decodeProductIDs reads a JSON array of product UUIDs from the body.
func decodeProductIDs(r *http.Request) ([]string, error) {
	var ids []string
	if err := json.NewDecoder(r.Body).Decode(&ids); err != nil {
		return nil, err
	}
	for _, id := range ids {
		if _, err := uuid.Parse(id); err != nil {
			return nil, err
		}
	}
	return ids, nil
}

// associateHandler binds products to a markdown.
// @Summary Associate products
// @Accept json
// @Param id path string true "Markdown ID"
// @Param productIds body []string true "Product IDs"
// @Success 200
// @Router /v1/pricing/markdowns/{id}/associations [post]
func associateHandler(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracer.Start(r.Context(), "associateHandler")
	defer span.End()

	id := mux.Vars(r)["id"]
	products, err := decodeProductIDs(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err := svc.AssociateProducts(ctx, id, products); err != nil {
		if errors.Is(err, markdown.ErrNotFound) {
			http.NotFound(w, r)
			return
		}
		logger.Log.Error("associate products", zap.String("id", id), zap.Error(err))
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusOK)
}

// dissociateHandler unbinds products from a markdown.
// @Summary Remove product associations
// @Accept json
// @Param id path string true "Markdown ID"
// @Param productIds body []string true "Product IDs"
// @Success 200
// @Router /v1/pricing/markdowns/{id}/associations [delete]
func dissociateHandler(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracer.Start(r.Context(), "dissociateHandler")
	defer span.End()

	id := mux.Vars(r)["id"]
	products, err := decodeProductIDs(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err := svc.DissociateProducts(ctx, id, products); err != nil {
		if errors.Is(err, markdown.ErrNotFound) {
			http.NotFound(w, r)
			return
		}
		logger.Log.Error("dissociate products", zap.String("id", id), zap.Error(err))
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusOK)
}

// finalPriceHandler computes the discounted price for a basket.
// @Summary Calculate final price
// @Produce json
// @Param productId query string true "Product ID (UUID)"
// @Param productPrice query number true "Unit price"
// @Param quantity query integer true "Quantity"
// @Success 200 {number} float64
// @Router /v1/pricing/finalprice [get]
func finalPriceHandler(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracer.Start(r.Context(), "finalPriceHandler")
	defer span.End()

	q := r.URL.Query()
	productID := q.Get("productId")
	if _, err := uuid.Parse(productID); err != nil {
		http.Error(w, "productId must be a UUID", http.StatusBadRequest)
		return
	}
	unitPrice, err := strconv.ParseFloat(q.Get("productPrice"), 64)
	if err != nil || unitPrice <= 0 {
		http.Error(w, "productPrice must be a positive number", http.StatusBadRequest)
		return
	}
	quantity, err := strconv.Atoi(q.Get("quantity"))
	if err != nil || quantity <= 0 {
		http.Error(w, "quantity must be a positive integer", http.StatusBadRequest)
		return
	}
	price, err := svc.CalculatePrice(ctx, markdown.Basket{
		ProductID: productID,
		UnitPrice: unitPrice,
		Quantity:  quantity,
	})
	if err != nil {
		logger.Log.Error("calculate price", zap.String("productId", productID), zap.Error(err))
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(price)
}
