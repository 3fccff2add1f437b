// Benchmark tool for testing AfriChain against labeled listing data.
//
// Usage:
//   go run cmd/benchmark/main.go -csv /path/to/listings.csv -url http://localhost:8080
//
// This tool:
//   1. Reads labeled listing data (with counterfeit labels)
//   2. Registers each listing and evaluates it against AfriChain
//   3. Compares AfriChain's verdict (flag or worse) with actual labels
//   4. Calculates precision, recall, F1-score, and confusion matrix
//
// Expected CSV columns:
//   category,title,description,brand,price,supplier_id,supplier_reputation,analysis_score,is_counterfeit
package main

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// LabeledListing represents a row from the labeled listing dataset
type LabeledListing struct {
	Category           string
	Title              string
	Description        string
	Brand              string
	Price              float64
	SupplierID         string
	SupplierReputation float64
	AnalysisScore      *float64
	IsCounterfeit      bool
}

// ProductRequest is the AfriChain product registration format
type ProductRequest struct {
	Category           string  `json:"category"`
	Title              string  `json:"title"`
	Description        string  `json:"description"`
	Brand              string  `json:"brand,omitempty"`
	Price              float64 `json:"price"`
	SupplierID         string  `json:"supplierId"`
	SupplierReputation float64 `json:"supplierReputation"`
}

// EvaluateRequest is the AfriChain evaluation request format
type EvaluateRequest struct {
	ProductID     string   `json:"productId"`
	AnalysisScore *float64 `json:"analysisScore,omitempty"`
}

// EvaluateResponse is the AfriChain evaluation response format
type EvaluateResponse struct {
	Result struct {
		EvaluationID string  `json:"evaluationId"`
		FinalAction  string  `json:"finalAction"`
		RiskScore    float64 `json:"riskScore"`
	} `json:"result"`
}

// flaggedActions are verdicts counted as a counterfeit prediction.
var flaggedActions = map[string]bool{
	"flag":       true,
	"quarantine": true,
	"block":      true,
	"remove":     true,
}

// Metrics tracks benchmark results
type Metrics struct {
	TruePositives  int64 // Counterfeit flagged
	FalsePositives int64 // Genuine flagged
	TrueNegatives  int64 // Genuine passed
	FalseNegatives int64 // Counterfeit passed (missed!)

	TotalProcessed   int64
	TotalCounterfeit int64
	TotalGenuine     int64
	TotalErrors      int64

	ProcessingTimeMs int64
}

func main() {
	// Parse flags
	csvPath := flag.String("csv", "", "Path to labeled listing CSV file")
	baseURL := flag.String("url", "http://localhost:8080", "AfriChain base URL")
	limit := flag.Int("limit", 10000, "Maximum listings to process (0 = all)")
	workers := flag.Int("workers", 10, "Number of concurrent workers")
	counterfeitOnly := flag.Bool("counterfeit-only", false, "Only test counterfeit listings")
	sampleRate := flag.Float64("sample", 1.0, "Sample rate for genuine listings (0.0-1.0)")
	verbose := flag.Bool("verbose", false, "Print each listing result")
	flag.Parse()

	if *csvPath == "" {
		fmt.Println("Usage: benchmark -csv /path/to/listings.csv [-url http://localhost:8080]")
		fmt.Println("\nFlags:")
		flag.PrintDefaults()
		os.Exit(1)
	}

	fmt.Println("=================================================================")
	fmt.Println("        AFRICHAIN BENCHMARK - Counterfeit Detection")
	fmt.Println("=================================================================")
	fmt.Printf("\nCSV File:         %s\n", *csvPath)
	fmt.Printf("AfriChain URL:    %s\n", *baseURL)
	fmt.Printf("Workers:          %d\n", *workers)
	fmt.Printf("Limit:            %d\n", *limit)
	fmt.Printf("Counterfeit Only: %v\n", *counterfeitOnly)
	fmt.Printf("Sample Rate:      %.2f\n", *sampleRate)
	fmt.Println()

	// Check AfriChain is running
	if err := checkHealth(*baseURL); err != nil {
		fmt.Printf("ERROR: AfriChain not reachable at %s: %v\n", *baseURL, err)
		fmt.Println("\nMake sure AfriChain is running:")
		fmt.Println("  go run cmd/africhain/main.go")
		os.Exit(1)
	}
	fmt.Println("AfriChain is healthy")

	// Read listing data
	fmt.Printf("\nReading listing data from %s...\n", *csvPath)
	listings, err := readListingCSV(*csvPath, *limit, *counterfeitOnly, *sampleRate)
	if err != nil {
		fmt.Printf("ERROR: Failed to read CSV: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Loaded %d listings\n", len(listings))

	// Count counterfeit vs genuine
	counterfeitCount := 0
	for _, l := range listings {
		if l.IsCounterfeit {
			counterfeitCount++
		}
	}
	fmt.Printf("  - Counterfeit: %d (%.2f%%)\n", counterfeitCount, 100*float64(counterfeitCount)/float64(len(listings)))
	fmt.Printf("  - Genuine:     %d (%.2f%%)\n", len(listings)-counterfeitCount, 100*float64(len(listings)-counterfeitCount)/float64(len(listings)))

	// Run benchmark
	fmt.Printf("\nRunning benchmark with %d workers...\n", *workers)
	startTime := time.Now()
	metrics := runBenchmark(listings, *baseURL, *workers, *verbose)
	duration := time.Since(startTime)

	// Print results
	printResults(metrics, duration)
}

func checkHealth(baseURL string) error {
	resp, err := http.Get(baseURL + "/health")
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unhealthy: status %d", resp.StatusCode)
	}
	return nil
}

func readListingCSV(path string, limit int, counterfeitOnly bool, sampleRate float64) ([]LabeledListing, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	reader := csv.NewReader(file)

	// Read header
	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}

	// Map column indices
	colIndex := make(map[string]int)
	for i, col := range header {
		colIndex[strings.ToLower(col)] = i
	}

	var listings []LabeledListing
	sampleCounter := 0

	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			continue // Skip malformed rows
		}

		isCounterfeit := record[colIndex["is_counterfeit"]] == "1"

		// Apply filters
		if counterfeitOnly && !isCounterfeit {
			continue
		}

		// Sample genuine listings
		if !isCounterfeit && sampleRate < 1.0 {
			sampleCounter++
			if float64(sampleCounter%100)/100.0 >= sampleRate {
				continue
			}
		}

		price, _ := strconv.ParseFloat(record[colIndex["price"]], 64)
		reputation, _ := strconv.ParseFloat(record[colIndex["supplier_reputation"]], 64)

		listing := LabeledListing{
			Category:           record[colIndex["category"]],
			Title:              record[colIndex["title"]],
			Description:        record[colIndex["description"]],
			Brand:              record[colIndex["brand"]],
			Price:              price,
			SupplierID:         record[colIndex["supplier_id"]],
			SupplierReputation: reputation,
			IsCounterfeit:      isCounterfeit,
		}

		// analysis_score is optional per row
		if idx, ok := colIndex["analysis_score"]; ok && record[idx] != "" {
			if score, err := strconv.ParseFloat(record[idx], 64); err == nil {
				listing.AnalysisScore = &score
			}
		}

		listings = append(listings, listing)

		if limit > 0 && len(listings) >= limit {
			break
		}
	}

	return listings, nil
}

func runBenchmark(listings []LabeledListing, baseURL string, numWorkers int, verbose bool) *Metrics {
	metrics := &Metrics{}

	// Create work channel
	work := make(chan LabeledListing, 100)
	var wg sync.WaitGroup

	// Start workers
	for i := 0; i < numWorkers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			client := &http.Client{Timeout: 10 * time.Second}

			for listing := range work {
				start := time.Now()
				result, err := evaluateListing(client, baseURL, listing)
				elapsed := time.Since(start).Milliseconds()

				atomic.AddInt64(&metrics.ProcessingTimeMs, elapsed)
				atomic.AddInt64(&metrics.TotalProcessed, 1)

				if err != nil {
					atomic.AddInt64(&metrics.TotalErrors, 1)
					if verbose {
						fmt.Printf("ERROR: %s -> %v\n", listing.Title, err)
					}
					continue
				}

				// Track actual labels
				if listing.IsCounterfeit {
					atomic.AddInt64(&metrics.TotalCounterfeit, 1)
				} else {
					atomic.AddInt64(&metrics.TotalGenuine, 1)
				}

				// Calculate confusion matrix
				predicted := flaggedActions[result.Result.FinalAction]
				actual := listing.IsCounterfeit

				if predicted && actual {
					atomic.AddInt64(&metrics.TruePositives, 1)
				} else if predicted && !actual {
					atomic.AddInt64(&metrics.FalsePositives, 1)
				} else if !predicted && !actual {
					atomic.AddInt64(&metrics.TrueNegatives, 1)
				} else { // !predicted && actual
					atomic.AddInt64(&metrics.FalseNegatives, 1)
				}

				if verbose {
					status := "ok  "
					if (predicted && !actual) || (!predicted && actual) {
						status = "MISS"
					}
					title := listing.Title
					if len(title) > 30 {
						title = title[:30]
					}
					fmt.Printf("%s %-30s | Cat: %-12s | Price: $%10.2f | Fake: %-5v | Verdict: %-10s (%.1f)\n",
						status,
						title,
						listing.Category,
						listing.Price,
						listing.IsCounterfeit,
						result.Result.FinalAction,
						result.Result.RiskScore,
					)
				}
			}
		}()
	}

	// Send work
	for _, listing := range listings {
		work <- listing
	}
	close(work)

	// Wait for completion
	wg.Wait()

	return metrics
}

func evaluateListing(client *http.Client, baseURL string, listing LabeledListing) (*EvaluateResponse, error) {
	// Register the listing first
	productID, err := registerListing(client, baseURL, listing)
	if err != nil {
		return nil, fmt.Errorf("register: %w", err)
	}

	req := EvaluateRequest{
		ProductID:     productID,
		AnalysisScore: listing.AnalysisScore,
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequest(http.MethodPost, baseURL+"/evaluate", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("status %d", resp.StatusCode)
	}

	var result EvaluateResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, err
	}

	return &result, nil
}

func registerListing(client *http.Client, baseURL string, listing LabeledListing) (string, error) {
	req := ProductRequest{
		Category:           listing.Category,
		Title:              listing.Title,
		Description:        listing.Description,
		Brand:              listing.Brand,
		Price:              listing.Price,
		SupplierID:         listing.SupplierID,
		SupplierReputation: listing.SupplierReputation,
	}

	body, err := json.Marshal(req)
	if err != nil {
		return "", err
	}

	httpReq, err := http.NewRequest(http.MethodPost, baseURL+"/products", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(httpReq)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		return "", fmt.Errorf("status %d", resp.StatusCode)
	}

	var product struct {
		ID string `json:"id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&product); err != nil {
		return "", err
	}
	return product.ID, nil
}

func printResults(m *Metrics, duration time.Duration) {
	fmt.Println("\n=================================================================")
	fmt.Println("                      BENCHMARK RESULTS")
	fmt.Println("=================================================================")

	fmt.Printf("\nDATASET STATISTICS\n")
	fmt.Printf("   Total Processed:   %d\n", m.TotalProcessed)
	fmt.Printf("   Total Counterfeit: %d\n", m.TotalCounterfeit)
	fmt.Printf("   Total Genuine:     %d\n", m.TotalGenuine)
	fmt.Printf("   Errors:            %d\n", m.TotalErrors)

	fmt.Printf("\nCONFUSION MATRIX\n")
	fmt.Println("                           Predicted")
	fmt.Println("                    Flagged     Passed")
	fmt.Println("              +----------+----------+")
	fmt.Printf("   Actual  C  | %8d | %8d |  (TP, FN)\n", m.TruePositives, m.FalseNegatives)
	fmt.Println("              +----------+----------+")
	fmt.Printf("           G  | %8d | %8d |  (FP, TN)\n", m.FalsePositives, m.TrueNegatives)
	fmt.Println("              +----------+----------+")

	// Calculate metrics
	precision := float64(0)
	if m.TruePositives+m.FalsePositives > 0 {
		precision = float64(m.TruePositives) / float64(m.TruePositives+m.FalsePositives)
	}

	recall := float64(0)
	if m.TruePositives+m.FalseNegatives > 0 {
		recall = float64(m.TruePositives) / float64(m.TruePositives+m.FalseNegatives)
	}

	f1 := float64(0)
	if precision+recall > 0 {
		f1 = 2 * (precision * recall) / (precision + recall)
	}

	accuracy := float64(0)
	total := m.TruePositives + m.TrueNegatives + m.FalsePositives + m.FalseNegatives
	if total > 0 {
		accuracy = float64(m.TruePositives+m.TrueNegatives) / float64(total)
	}

	fmt.Printf("\nDETECTION METRICS\n")
	fmt.Printf("   Precision:  %.4f  (of flagged listings, how many were counterfeit)\n", precision)
	fmt.Printf("   Recall:     %.4f  (of counterfeits, how many did we catch)\n", recall)
	fmt.Printf("   F1-Score:   %.4f  (harmonic mean of precision & recall)\n", f1)
	fmt.Printf("   Accuracy:   %.4f  (overall correct predictions)\n", accuracy)

	// Detection rate analysis
	fmt.Printf("\nDETECTION ANALYSIS\n")
	if m.TotalCounterfeit > 0 {
		detectionRate := float64(m.TruePositives) / float64(m.TotalCounterfeit) * 100
		missRate := float64(m.FalseNegatives) / float64(m.TotalCounterfeit) * 100
		fmt.Printf("   Counterfeits Detected: %d / %d (%.2f%%)\n", m.TruePositives, m.TotalCounterfeit, detectionRate)
		fmt.Printf("   Counterfeits Missed:   %d / %d (%.2f%%)\n", m.FalseNegatives, m.TotalCounterfeit, missRate)
	}
	if m.TotalGenuine > 0 {
		falseAlarmRate := float64(m.FalsePositives) / float64(m.TotalGenuine) * 100
		fmt.Printf("   False Alarms:          %d / %d (%.2f%%)\n", m.FalsePositives, m.TotalGenuine, falseAlarmRate)
	}

	fmt.Printf("\nPERFORMANCE\n")
	fmt.Printf("   Total Duration:   %v\n", duration.Round(time.Millisecond))
	if m.TotalProcessed > 0 {
		avgMs := float64(m.ProcessingTimeMs) / float64(m.TotalProcessed)
		lps := float64(m.TotalProcessed) / duration.Seconds()
		fmt.Printf("   Avg Latency:      %.2f ms\n", avgMs)
		fmt.Printf("   Throughput:       %.2f listings/sec\n", lps)
	}

	// Interpretation
	fmt.Printf("\nINTERPRETATION\n")
	if recall >= 0.9 {
		fmt.Println("   Excellent recall - catching most counterfeits")
	} else if recall >= 0.7 {
		fmt.Println("   Good recall - but missing some counterfeits")
	} else if recall >= 0.5 {
		fmt.Println("   Moderate recall - significant counterfeits being missed")
	} else {
		fmt.Println("   Poor recall - most counterfeits are being missed!")
	}

	if precision >= 0.5 {
		fmt.Println("   Good precision - flags are meaningful")
	} else if precision >= 0.2 {
		fmt.Println("   Low precision - many false alarms")
	} else {
		fmt.Println("   Very low precision - mostly false alarms")
	}

	fmt.Println()
}
