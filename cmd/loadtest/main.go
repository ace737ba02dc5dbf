// Command loadtest конкурентно оформляет заказы на один товар через gRPC
// и проверяет, что остаток уменьшился ровно на проданное количество.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
	grpcsvc "github.com/vladislavdragonenkov/storefront/internal/service/grpc"
)

type config struct {
	addr        string
	productID   string
	total       int
	concurrency int
	quantity    int
	timeout     time.Duration
	buyerTag    string
	outputPath  string
	codec       string
}

// callOptions выбирает content-subtype вызовов; пустой codec оставляет JSON клиента.
func (c config) callOptions() []grpc.CallOption {
	if c.codec == "" {
		return nil
	}
	return []grpc.CallOption{grpc.CallContentSubtype(c.codec)}
}

// checkoutClient: методы grpcsvc.Client, которые нужны нагрузке.
type checkoutClient interface {
	PlaceOrder(ctx context.Context, req *grpcsvc.PlaceOrderRequest, opts ...grpc.CallOption) (*grpcsvc.PlaceOrderResponse, error)
	GetProduct(ctx context.Context, req *grpcsvc.GetProductRequest, opts ...grpc.CallOption) (*grpcsvc.GetProductResponse, error)
}

type latencySummary struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
	Avg float64 `json:"avg"`
	P50 float64 `json:"p50"`
	P95 float64 `json:"p95"`
	P99 float64 `json:"p99"`
}

type report struct {
	StartedAt       time.Time      `json:"started_at"`
	DurationSeconds float64        `json:"duration_seconds"`
	Calls           int            `json:"calls"`
	Committed       int            `json:"committed"`
	Codes           map[string]int `json:"codes"`
	LatencyMs       latencySummary `json:"latency_ms"`
	RPS             float64        `json:"rps"`
	InitialStock    int            `json:"initial_stock"`
	FinalStock      int            `json:"final_stock"`
	ExpectedStock   int            `json:"expected_stock"`
	StockConsistent bool           `json:"stock_consistent"`
	Unexpected      map[string]int `json:"unexpected_codes,omitempty"`
	Samples         []string       `json:"error_samples,omitempty"`
}

type collector struct {
	mu        sync.Mutex
	codes     map[codes.Code]int
	latencies []float64
	samples   []string
}

func newCollector() *collector {
	return &collector{codes: make(map[codes.Code]int)}
}

func (c *collector) record(latency time.Duration, code codes.Code, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.codes[code]++
	c.latencies = append(c.latencies, float64(latency.Microseconds())/1000.0)
	if err != nil && !expectedCode(code) && len(c.samples) < 5 {
		c.samples = append(c.samples, err.Error())
	}
}

// expectedCode: коды, допустимые при распродаже одного товара.
func expectedCode(code codes.Code) bool {
	switch code {
	case codes.OK, codes.FailedPrecondition, codes.Aborted:
		return true
	default:
		return false
	}
}

func parseConfig(args []string) (config, error) {
	var cfg config
	fs := flag.NewFlagSet("loadtest", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	fs.StringVar(&cfg.addr, "addr", "localhost:50051", "gRPC target address")
	fs.StringVar(&cfg.productID, "product", "", "product id to buy")
	fs.IntVar(&cfg.total, "total", 200, "number of PlaceOrder calls")
	fs.IntVar(&cfg.concurrency, "concurrency", 20, "number of concurrent callers")
	fs.IntVar(&cfg.quantity, "qty", 1, "units per order")
	fs.DurationVar(&cfg.timeout, "timeout", 5*time.Second, "per-RPC timeout")
	fs.StringVar(&cfg.buyerTag, "buyer-tag", "load", "buyer id prefix")
	fs.StringVar(&cfg.outputPath, "output", "", "optional JSON report output file path")
	fs.StringVar(&cfg.codec, "codec", grpcsvc.CodecName, "wire encoding: json or proto")
	if err := fs.Parse(args); err != nil {
		return cfg, err
	}

	switch {
	case strings.TrimSpace(cfg.productID) == "":
		return cfg, errors.New("product is required")
	case cfg.total <= 0:
		return cfg, errors.New("total must be > 0")
	case cfg.concurrency <= 0:
		return cfg, errors.New("concurrency must be > 0")
	case cfg.quantity <= 0:
		return cfg, errors.New("qty must be > 0")
	case cfg.timeout <= 0:
		return cfg, errors.New("timeout must be > 0")
	case strings.TrimSpace(cfg.buyerTag) == "":
		return cfg, errors.New("buyer-tag is required")
	case cfg.codec != grpcsvc.CodecName && cfg.codec != grpcsvc.ProtoCodecName:
		return cfg, fmt.Errorf("codec must be %s or %s", grpcsvc.CodecName, grpcsvc.ProtoCodecName)
	}
	return cfg, nil
}

// run выполняет нагрузку и сверяет итоговый остаток товара.
func run(ctx context.Context, cfg config, client checkoutClient) (report, error) {
	product, err := fetchProduct(ctx, client, cfg)
	if err != nil {
		return report{}, fmt.Errorf("read initial stock: %w", err)
	}
	unitPrice := product.Price
	lineTotal := unitPrice.Mul(decimal.NewFromInt(int64(cfg.quantity)))

	col := newCollector()
	startedAt := time.Now()
	runID := fmt.Sprintf("%d", startedAt.UnixNano())

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(cfg.concurrency)
	for i := 0; i < cfg.total; i++ {
		g.Go(func() error {
			req := &grpcsvc.PlaceOrderRequest{
				BuyerID: fmt.Sprintf("%s-%s-%d", cfg.buyerTag, runID, i),
				CartLines: []domain.CartLine{{
					ProductID: product.ID,
					VendorID:  product.VendorID,
					Quantity:  cfg.quantity,
					UnitPrice: unitPrice,
				}},
				TotalAmount: lineTotal,
				Address:     &domain.Address{Name: "Load Test", Street: "1 Bench St", City: "Loadville"},
			}
			callCtx, cancel := context.WithTimeout(gctx, cfg.timeout)
			defer cancel()

			start := time.Now()
			_, err := client.PlaceOrder(grpcsvc.WithIdempotencyKey(callCtx, fmt.Sprintf("lt-%s-%d", runID, i)), req, cfg.callOptions()...)
			col.record(time.Since(start), status.Code(err), err)
			return nil
		})
	}
	_ = g.Wait()
	duration := time.Since(startedAt)

	final, err := fetchProduct(ctx, client, cfg)
	if err != nil {
		return report{}, fmt.Errorf("read final stock: %w", err)
	}

	return buildReport(col, startedAt, duration, cfg.quantity, product.Quantity, final.Quantity), nil
}

func fetchProduct(ctx context.Context, client checkoutClient, cfg config) (productSnapshot, error) {
	callCtx, cancel := context.WithTimeout(ctx, cfg.timeout)
	defer cancel()
	resp, err := client.GetProduct(callCtx, &grpcsvc.GetProductRequest{ProductID: cfg.productID}, cfg.callOptions()...)
	if err != nil {
		return productSnapshot{}, err
	}
	p := resp.Product
	return productSnapshot{ID: p.ID, VendorID: p.VendorID, Price: p.Price, Quantity: p.Quantity}, nil
}

type productSnapshot struct {
	ID       string
	VendorID string
	Price    decimal.Decimal
	Quantity int
}

func buildReport(col *collector, startedAt time.Time, duration time.Duration, qty, initial, final int) report {
	col.mu.Lock()
	defer col.mu.Unlock()

	r := report{
		StartedAt:       startedAt.UTC(),
		DurationSeconds: duration.Seconds(),
		Codes:           make(map[string]int, len(col.codes)),
		LatencyMs:       buildLatencySummary(col.latencies),
		InitialStock:    initial,
		FinalStock:      final,
		Samples:         append([]string(nil), col.samples...),
	}
	for code, n := range col.codes {
		r.Calls += n
		r.Codes[code.String()] = n
		if code == codes.OK {
			r.Committed = n
		}
		if !expectedCode(code) {
			if r.Unexpected == nil {
				r.Unexpected = make(map[string]int)
			}
			r.Unexpected[code.String()] = n
		}
	}
	r.ExpectedStock = initial - r.Committed*qty
	r.StockConsistent = final == r.ExpectedStock && final >= 0
	if duration > 0 {
		r.RPS = float64(r.Calls) / duration.Seconds()
	}
	return r
}

func main() {
	cfg, err := parseConfig(os.Args[1:])
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "invalid config: %v\n", err)
		os.Exit(1)
	}

	conn, err := grpc.NewClient(cfg.addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "failed to create grpc client connection: %v\n", err)
		os.Exit(1)
	}
	defer conn.Close()

	result, err := run(context.Background(), cfg, grpcsvc.NewClient(conn))
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "load test failed: %v\n", err)
		os.Exit(1)
	}

	printReport(os.Stdout, result)
	if cfg.outputPath != "" {
		if err := writeJSONReport(cfg.outputPath, result); err != nil {
			_, _ = fmt.Fprintf(os.Stderr, "failed to write report: %v\n", err)
			os.Exit(1)
		}
	}

	if !result.StockConsistent || len(result.Unexpected) > 0 {
		os.Exit(1)
	}
}

func writeJSONReport(path string, result report) error {
	cleanPath := filepath.Clean(path)
	if cleanPath == "." || cleanPath == string(filepath.Separator) {
		return errors.New("output path must point to a file")
	}
	if cleanPath == ".." || strings.HasPrefix(cleanPath, ".."+string(filepath.Separator)) {
		return fmt.Errorf("output path must be inside current directory: %s", path)
	}

	// #nosec G304 -- path is an explicit CLI output parameter for local load-test reports.
	file, err := os.Create(cleanPath)
	if err != nil {
		return err
	}
	defer file.Close()

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")
	return encoder.Encode(result)
}

func printReport(w io.Writer, r report) {
	_, _ = fmt.Fprintln(w, "Load test summary")
	_, _ = fmt.Fprintf(w, "calls=%d committed=%d duration=%.2fs rps=%.2f\n", r.Calls, r.Committed, r.DurationSeconds, r.RPS)

	names := make([]string, 0, len(r.Codes))
	for name := range r.Codes {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		_, _ = fmt.Fprintf(w, "  %s: %d\n", name, r.Codes[name])
	}

	_, _ = fmt.Fprintf(w, "latency ms: min=%.2f avg=%.2f p50=%.2f p95=%.2f p99=%.2f max=%.2f\n",
		r.LatencyMs.Min, r.LatencyMs.Avg, r.LatencyMs.P50, r.LatencyMs.P95, r.LatencyMs.P99, r.LatencyMs.Max)
	_, _ = fmt.Fprintf(w, "stock: initial=%d final=%d expected=%d consistent=%t\n",
		r.InitialStock, r.FinalStock, r.ExpectedStock, r.StockConsistent)
	for _, sample := range r.Samples {
		_, _ = fmt.Fprintf(w, "  error: %s\n", sample)
	}
}

func buildLatencySummary(values []float64) latencySummary {
	if len(values) == 0 {
		return latencySummary{}
	}

	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)

	var sum float64
	for _, value := range sorted {
		sum += value
	}

	return latencySummary{
		Min: sorted[0],
		Max: sorted[len(sorted)-1],
		Avg: sum / float64(len(sorted)),
		P50: percentile(sorted, 50),
		P95: percentile(sorted, 95),
		P99: percentile(sorted, 99),
	}
}

func percentile(sorted []float64, p float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	if len(sorted) == 1 {
		return sorted[0]
	}

	rank := (p / 100.0) * float64(len(sorted)-1)
	lower := int(math.Floor(rank))
	upper := int(math.Ceil(rank))
	if lower == upper {
		return sorted[lower]
	}

	weight := rank - float64(lower)
	return sorted[lower] + (sorted[upper]-sorted[lower])*weight
}
