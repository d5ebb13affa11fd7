// Package export writes per-session records of a run to CSV and JSON files.
package export

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"portalsim/internal/session"
	"portalsim/internal/stats"
)

var csvHeader = []string{
	"timeStamp", "elapsed", "userId", "batch", "category", "city", "region",
	"profile", "userAgent", "pages", "analyticsCalls", "clicks", "success", "failureMessage",
}

// Record is the flat form of one session.Result.
type Record struct {
	Timestamp      time.Time `json:"timestamp"`
	ElapsedMs      int64     `json:"elapsed_ms"`
	UserID         int       `json:"user_id"`
	Batch          int       `json:"batch"`
	Category       string    `json:"category"`
	City           string    `json:"city"`
	Region         string    `json:"region"`
	Profile        string    `json:"profile"`
	UserAgent      string    `json:"user_agent"`
	Pages          []string  `json:"pages"`
	AnalyticsCalls int       `json:"analytics_calls"`
	Clicks         int       `json:"clicks"`
	Success        bool      `json:"success"`
	Error          string    `json:"error,omitempty"`
}

func NewRecord(res session.Result) Record {
	r := Record{
		Timestamp:      res.Started,
		ElapsedMs:      res.Duration.Milliseconds(),
		UserID:         res.User.ID,
		Batch:          res.User.Batch,
		Category:       string(res.User.Category),
		City:           res.User.Origin.City,
		Region:         res.User.Origin.Region,
		Profile:        string(res.User.Profile.Kind),
		UserAgent:      res.User.UserAgent,
		Pages:          res.Pages,
		AnalyticsCalls: res.AnalyticsCalls,
		Clicks:         res.Clicks,
		Success:        res.Success(),
	}
	if res.Err != nil {
		r.Error = res.Err.Error()
	}
	return r
}

// WriteCSV writes one row per session, in the order given.
func WriteCSV(w io.Writer, results []session.Result) error {
	cw := csv.NewWriter(w)

	if err := cw.Write(csvHeader); err != nil {
		return err
	}
	for _, res := range results {
		r := NewRecord(res)
		row := []string{
			strconv.FormatInt(r.Timestamp.UnixMilli(), 10),
			strconv.FormatInt(r.ElapsedMs, 10),
			strconv.Itoa(r.UserID),
			strconv.Itoa(r.Batch),
			r.Category,
			r.City,
			r.Region,
			r.Profile,
			r.UserAgent,
			strings.Join(r.Pages, " "),
			strconv.Itoa(r.AnalyticsCalls),
			strconv.Itoa(r.Clicks),
			strconv.FormatBool(r.Success),
			r.Error,
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// Report is the JSON export document.
type Report struct {
	Summary  stats.Summary `json:"summary"`
	Sessions []Record      `json:"sessions"`
}

func WriteJSON(w io.Writer, summary stats.Summary, results []session.Result) error {
	rep := Report{Summary: summary, Sessions: make([]Record, 0, len(results))}
	for _, res := range results {
		rep.Sessions = append(rep.Sessions, NewRecord(res))
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(rep)
}

// Files writes prefix.csv and prefix.json and returns their paths.
func Files(prefix string, summary stats.Summary, results []session.Result) ([]string, error) {
	csvPath, jsonPath := prefix+".csv", prefix+".json"

	if err := writeFile(csvPath, func(w io.Writer) error { return WriteCSV(w, results) }); err != nil {
		return nil, err
	}
	if err := writeFile(jsonPath, func(w io.Writer) error { return WriteJSON(w, summary, results) }); err != nil {
		return nil, err
	}
	return []string{csvPath, jsonPath}, nil
}

func writeFile(path string, write func(io.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("export: %w", err)
	}
	if err := write(f); err != nil {
		f.Close()
		return fmt.Errorf("export %s: %w", path, err)
	}
	return f.Close()
}
