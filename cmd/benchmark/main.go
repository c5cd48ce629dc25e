// Benchmark tool for testing Kite against labeled scam report data.
//
// Usage:
//   go run cmd/benchmark/main.go -csv /path/to/reports.csv -url http://localhost:8080
//
// The CSV needs the columns identifier_type, identifier_value, description
// and is_scam (1/0 label). The tool:
//   1. Submits each row to Kite as a fraud report
//   2. Treats a HIGH or CRITICAL risk level as a scam prediction
//   3. Compares predictions with the labels
//   4. Calculates precision, recall, F1-score, and confusion matrix
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
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// LabeledReport represents a row from the benchmark dataset
type LabeledReport struct {
	IdentifierType  string
	IdentifierValue string
	Description     string
	IsScam          bool
}

// SubmitRequest is the Kite API request format
type SubmitRequest struct {
	IdentifierType  string `json:"identifier_type"`
	IdentifierValue string `json:"identifier_value"`
	Description     string `json:"description"`
	ReporterName    string `json:"reporter_name,omitempty"`
}

// SubmitResponse is the Kite API response format
type SubmitResponse struct {
	ReportID int64 `json:"report_id"`
	Risk     struct {
		Score   int      `json:"score"`
		Level   string   `json:"level"`
		Factors []string `json:"factors"`
	} `json:"risk"`
}

// Metrics tracks benchmark results
type Metrics struct {
	TruePositives  int64 // Scam flagged HIGH/CRITICAL
	FalsePositives int64 // Legitimate flagged HIGH/CRITICAL
	TrueNegatives  int64 // Legitimate scored LOW/MEDIUM
	FalseNegatives int64 // Scam scored LOW/MEDIUM (missed!)

	TotalProcessed int64
	TotalScam      int64
	TotalLegit     int64
	TotalErrors    int64

	ProcessingTimeMs int64
}

func main() {
	// Parse flags
	csvPath := flag.String("csv", "", "Path to labeled reports CSV file")
	baseURL := flag.String("url", "http://localhost:8080", "Kite base URL")
	limit := flag.Int("limit", 10000, "Maximum reports to process (0 = all)")
	workers := flag.Int("workers", 10, "Number of concurrent workers")
	scamOnly := flag.Bool("scam-only", false, "Only test scam rows")
	verbose := flag.Bool("verbose", false, "Print each report result")
	flag.Parse()

	if *csvPath == "" {
		fmt.Println("Usage: benchmark -csv /path/to/reports.csv [-url http://localhost:8080]")
		fmt.Println("\nFlags:")
		flag.PrintDefaults()
		os.Exit(1)
	}

	fmt.Println("╔═══════════════════════════════════════════════════════════════╗")
	fmt.Println("║            KITE BENCHMARK - Scam Detection                    ║")
	fmt.Println("╚═══════════════════════════════════════════════════════════════╝")
	fmt.Printf("\nCSV File:   %s\n", *csvPath)
	fmt.Printf("Kite URL:   %s\n", *baseURL)
	fmt.Printf("Workers:    %d\n", *workers)
	fmt.Printf("Limit:      %d\n", *limit)
	fmt.Printf("Scam Only:  %v\n", *scamOnly)
	fmt.Println()

	// Check Kite is running
	if err := checkHealth(*baseURL); err != nil {
		fmt.Printf("ERROR: Kite not reachable at %s: %v\n", *baseURL, err)
		fmt.Println("\nMake sure Kite is running:")
		fmt.Println("  cd kite && go run cmd/kite/main.go")
		os.Exit(1)
	}
	fmt.Println("✓ Kite is healthy")

	// Read labeled data
	fmt.Printf("\nReading labeled reports from %s...\n", *csvPath)
	rows, err := readReportsCSV(*csvPath, *limit, *scamOnly)
	if err != nil {
		fmt.Printf("ERROR: Failed to read CSV: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("✓ Loaded %d reports\n", len(rows))

	// Count scam vs legitimate
	scamCount := 0
	for _, row := range rows {
		if row.IsScam {
			scamCount++
		}
	}
	fmt.Printf("  - Scam:       %d (%.2f%%)\n", scamCount, 100*float64(scamCount)/float64(len(rows)))
	fmt.Printf("  - Legitimate: %d (%.2f%%)\n", len(rows)-scamCount, 100*float64(len(rows)-scamCount)/float64(len(rows)))

	// Run benchmark
	fmt.Printf("\nRunning benchmark with %d workers...\n", *workers)
	startTime := time.Now()
	metrics := runBenchmark(rows, *baseURL, *workers, *verbose)
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

func readReportsCSV(path string, limit int, scamOnly bool) ([]LabeledReport, error) {
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
		colIndex[strings.ToLower(strings.TrimSpace(col))] = i
	}
	for _, required := range []string{"identifier_type", "identifier_value", "description", "is_scam"} {
		if _, ok := colIndex[required]; !ok {
			return nil, fmt.Errorf("missing required column %q", required)
		}
	}

	var rows []LabeledReport

	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			continue // Skip malformed rows
		}

		isScam := record[colIndex["is_scam"]] == "1"

		if scamOnly && !isScam {
			continue
		}

		rows = append(rows, LabeledReport{
			IdentifierType:  record[colIndex["identifier_type"]],
			IdentifierValue: record[colIndex["identifier_value"]],
			Description:     record[colIndex["description"]],
			IsScam:          isScam,
		})

		if limit > 0 && len(rows) >= limit {
			break
		}
	}

	return rows, nil
}

func runBenchmark(rows []LabeledReport, baseURL string, numWorkers int, verbose bool) *Metrics {
	metrics := &Metrics{}

	// Create work channel
	work := make(chan LabeledReport, 100)
	var wg sync.WaitGroup

	// Start workers
	for i := 0; i < numWorkers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			client := &http.Client{Timeout: 30 * time.Second}

			for row := range work {
				start := time.Now()
				result, err := submitReport(client, baseURL, row)
				elapsed := time.Since(start).Milliseconds()

				atomic.AddInt64(&metrics.ProcessingTimeMs, elapsed)
				atomic.AddInt64(&metrics.TotalProcessed, 1)

				if err != nil {
					atomic.AddInt64(&metrics.TotalErrors, 1)
					if verbose {
						fmt.Printf("ERROR: %s -> %v\n", row.IdentifierValue, err)
					}
					continue
				}

				// Track actual labels
				if row.IsScam {
					atomic.AddInt64(&metrics.TotalScam, 1)
				} else {
					atomic.AddInt64(&metrics.TotalLegit, 1)
				}

				// Calculate confusion matrix
				predicted := result.Risk.Level == "HIGH" || result.Risk.Level == "CRITICAL"
				actual := row.IsScam

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
					status := "✓"
					if (predicted && !actual) || (!predicted && actual) {
						status = "✗"
					}
					value := row.IdentifierValue
					if len(value) > 20 {
						value = value[:20]
					}
					fmt.Printf("%s %-20s | Type: %-8s | Scam: %-5v | Kite: %-8s (%d)\n",
						status,
						value,
						row.IdentifierType,
						row.IsScam,
						result.Risk.Level,
						result.Risk.Score,
					)
				}
			}
		}()
	}

	// Send work
	for _, row := range rows {
		work <- row
	}
	close(work)

	// Wait for completion
	wg.Wait()

	return metrics
}

func submitReport(client *http.Client, baseURL string, row LabeledReport) (*SubmitResponse, error) {
	req := SubmitRequest{
		IdentifierType:  row.IdentifierType,
		IdentifierValue: row.IdentifierValue,
		Description:     row.Description,
		ReporterName:    "benchmark",
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequest(http.MethodPost, baseURL+"/api/reports", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}

	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		return nil, fmt.Errorf("status %d", resp.StatusCode)
	}

	var result SubmitResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, err
	}

	return &result, nil
}

func printResults(m *Metrics, duration time.Duration) {
	fmt.Println("\n╔═══════════════════════════════════════════════════════════════╗")
	fmt.Println("║                      BENCHMARK RESULTS                        ║")
	fmt.Println("╚═══════════════════════════════════════════════════════════════╝")

	fmt.Printf("\n📊 DATASET STATISTICS\n")
	fmt.Printf("   Total Processed:  %d\n", m.TotalProcessed)
	fmt.Printf("   Total Scam:       %d\n", m.TotalScam)
	fmt.Printf("   Total Legit:      %d\n", m.TotalLegit)
	fmt.Printf("   Errors:           %d\n", m.TotalErrors)

	fmt.Printf("\n📈 CONFUSION MATRIX\n")
	fmt.Println("                        Predicted")
	fmt.Println("                    HIGH+       LOW/MED")
	fmt.Println("              ┌──────────┬──────────┐")
	fmt.Printf("   Actual  S  │ %8d │ %8d │  (TP, FN)\n", m.TruePositives, m.FalseNegatives)
	fmt.Println("              ├──────────┼──────────┤")
	fmt.Printf("           L  │ %8d │ %8d │  (FP, TN)\n", m.FalsePositives, m.TrueNegatives)
	fmt.Println("              └──────────┴──────────┘")

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

	fmt.Printf("\n🎯 DETECTION METRICS\n")
	fmt.Printf("   Precision:  %.4f  (of flagged reports, how many were actual scams)\n", precision)
	fmt.Printf("   Recall:     %.4f  (of scams, how many did we catch)\n", recall)
	fmt.Printf("   F1-Score:   %.4f  (harmonic mean of precision & recall)\n", f1)
	fmt.Printf("   Accuracy:   %.4f  (overall correct predictions)\n", accuracy)

	// Detection rate analysis
	fmt.Printf("\n🔍 DETECTION ANALYSIS\n")
	if m.TotalScam > 0 {
		detectionRate := float64(m.TruePositives) / float64(m.TotalScam) * 100
		missRate := float64(m.FalseNegatives) / float64(m.TotalScam) * 100
		fmt.Printf("   Scams Detected:    %d / %d (%.2f%%)\n", m.TruePositives, m.TotalScam, detectionRate)
		fmt.Printf("   Scams Missed:      %d / %d (%.2f%%) ⚠️\n", m.FalseNegatives, m.TotalScam, missRate)
	}
	if m.TotalLegit > 0 {
		falseAlarmRate := float64(m.FalsePositives) / float64(m.TotalLegit) * 100
		fmt.Printf("   False Alarms:      %d / %d (%.2f%%)\n", m.FalsePositives, m.TotalLegit, falseAlarmRate)
	}

	fmt.Printf("\n⏱️  PERFORMANCE\n")
	fmt.Printf("   Total Duration:   %v\n", duration.Round(time.Millisecond))
	if m.TotalProcessed > 0 {
		avgMs := float64(m.ProcessingTimeMs) / float64(m.TotalProcessed)
		rps := float64(m.TotalProcessed) / duration.Seconds()
		fmt.Printf("   Avg Latency:      %.2f ms\n", avgMs)
		fmt.Printf("   Throughput:       %.2f reports/sec\n", rps)
	}

	// Interpretation
	fmt.Printf("\n💡 INTERPRETATION\n")
	if recall >= 0.9 {
		fmt.Println("   ✅ Excellent recall - catching most scams")
	} else if recall >= 0.7 {
		fmt.Println("   ⚠️  Good recall - but missing some scams")
	} else if recall >= 0.5 {
		fmt.Println("   ⚠️  Moderate recall - significant scams being missed")
	} else {
		fmt.Println("   ❌ Poor recall - most scams are being missed!")
	}

	if precision >= 0.5 {
		fmt.Println("   ✅ Good precision - flags are meaningful")
	} else if precision >= 0.2 {
		fmt.Println("   ⚠️  Low precision - many false alarms")
	} else {
		fmt.Println("   ❌ Very low precision - mostly false alarms")
	}

	fmt.Println()
}
