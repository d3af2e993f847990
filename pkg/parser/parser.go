package parser

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"regexp"
	"strings"
	"time"
)

const (
	// MaxFileSize is the maximum allowed JSONL file size (100MB).
	// Files larger than this will be rejected to prevent memory exhaustion.
	MaxFileSize = 100 * 1024 * 1024

	// MaxLineLength is the maximum allowed line length (1MB).
	MaxLineLength = 1024 * 1024
)

// Parser provides methods for parsing usage-log JSONL files.
type Parser interface {
	// ParseFile reads a JSONL file from the given byte offset and
	// returns the parsed usage records, any rate-limit events found,
	// and the new file offset.
	//
	// Malformed lines are skipped rather than causing failure. An
	// unterminated final line (the file is still being appended to) is
	// not consumed: the returned offset stops before it, so the next
	// incremental read picks the line up once it is complete.
	//
	// Thread-safety: safe to call concurrently with different files.
	ParseFile(path string, offset int64) ([]UsageRecord, []LimitEvent, int64, error)

	// ParseLine parses a single JSONL line into a UsageRecord.
	//
	// Returns a typed error when the line is not valid JSON
	// (ErrMalformedJSON), has no parseable timestamp
	// (ErrMissingTimestamp), or carries no token field at all
	// (ErrNoUsageData).
	//
	// Thread-safety: this method is thread-safe.
	ParseLine(line string) (*UsageRecord, error)
}

// jsonlParser implements the Parser interface.
type jsonlParser struct{}

// New creates a new Parser instance.
func New() Parser {
	return &jsonlParser{}
}

// rawUsage mirrors a usage object on the wire. Every count is a
// pointer: decoding must not collapse "field absent" into 0.
// Producers have used both snake_case and camelCase key spellings, and
// two names for each cache category, so each field carries an alias.
type rawUsage struct {
	Input          *int   `json:"input_tokens"`
	InputAlt       *int   `json:"inputTokens"`
	Output         *int   `json:"output_tokens"`
	OutputAlt      *int   `json:"outputTokens"`
	CacheCreation  *int   `json:"cache_creation_input_tokens"`
	CacheCreation2 *int   `json:"cache_creation_tokens"`
	CacheRead      *int   `json:"cache_read_input_tokens"`
	CacheRead2     *int   `json:"cache_read_tokens"`
	Model          string `json:"model"`
}

// counts maps a raw usage object to normalized TokenCounts, taking the
// first present spelling of each field.
func (u *rawUsage) counts() TokenCounts {
	if u == nil {
		return TokenCounts{}
	}
	return TokenCounts{
		Input:         firstPresent(u.Input, u.InputAlt),
		Output:        firstPresent(u.Output, u.OutputAlt),
		CacheCreation: firstPresent(u.CacheCreation, u.CacheCreation2),
		CacheRead:     firstPresent(u.CacheRead, u.CacheRead2),
	}
}

func firstPresent(values ...*int) *int {
	for _, v := range values {
		if v != nil {
			return v
		}
	}
	return nil
}

// rawMessage mirrors the nested message object.
type rawMessage struct {
	ID      string          `json:"id"`
	Model   string          `json:"model"`
	Usage   *rawUsage       `json:"usage"`
	Content json.RawMessage `json:"content"`
}

// rawLine mirrors one JSONL line. Identity and cost fields also have
// historical alias spellings.
type rawLine struct {
	Timestamp    json.RawMessage `json:"timestamp"`
	Type         string          `json:"type"`
	MessageID    string          `json:"message_id"`
	RequestID    string          `json:"requestId"`
	RequestIDAlt string          `json:"request_id"`
	Model        string          `json:"model"`
	Cost         *float64        `json:"cost"`
	CostUSD      *float64        `json:"costUSD"`
	CostUSDAlt   *float64        `json:"cost_usd"`
	Message      *rawMessage     `json:"message"`
	Usage        *rawUsage       `json:"usage"`
	Content      json.RawMessage `json:"content"`
}

// ParseFile implements Parser.ParseFile.
func (p *jsonlParser) ParseFile(path string, offset int64) ([]UsageRecord, []LimitEvent, int64, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, nil, 0, fmt.Errorf("failed to stat file: %w", err)
	}

	if info.Size() > MaxFileSize {
		return nil, nil, 0, fmt.Errorf("%w: size=%d, max=%d",
			ErrFileTooLarge, info.Size(), MaxFileSize)
	}

	if offset > info.Size() {
		// File was truncated since the offset was recorded.
		offset = 0
	}

	f, err := os.Open(path) // #nosec G304 -- path is validated by caller
	if err != nil {
		return nil, nil, 0, fmt.Errorf("failed to open file: %w", err)
	}
	defer func() {
		_ = f.Close()
	}()

	if offset > 0 {
		if _, seekErr := f.Seek(offset, io.SeekStart); seekErr != nil {
			return nil, nil, 0, fmt.Errorf("failed to seek to offset %d: %w", offset, seekErr)
		}
	}

	records := make([]UsageRecord, 0, 100)
	var events []LimitEvent

	br := bufio.NewReaderSize(f, 64*1024)
	newOffset := offset

	for {
		line, readErr := br.ReadString('\n')

		if readErr == io.EOF && !strings.HasSuffix(line, "\n") {
			// The writer has not finished this line yet. Leave it
			// unconsumed; the next read resumes from newOffset.
			break
		}

		newOffset += int64(len(line))

		trimmed := strings.TrimSpace(line)
		if trimmed != "" && len(trimmed) <= MaxLineLength {
			if ev, ok := scanLimitEvent(trimmed); ok {
				events = append(events, ev)
			}

			rec, parseErr := p.ParseLine(trimmed)
			if parseErr == nil {
				records = append(records, *rec)
			}
			// Malformed or non-usage lines are skipped; one corrupt
			// line must never abort the rest of the scan.
		}

		if readErr != nil {
			if readErr == io.EOF {
				break
			}
			return records, events, newOffset, fmt.Errorf("read error: %w", readErr)
		}
	}

	return records, events, newOffset, nil
}

// ParseLine implements Parser.ParseLine.
func (p *jsonlParser) ParseLine(line string) (*UsageRecord, error) {
	if line == "" {
		return nil, fmt.Errorf("%w: empty line", ErrMalformedJSON)
	}

	var raw rawLine
	if err := json.Unmarshal([]byte(line), &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedJSON, err)
	}

	ts, ok := parseTimestamp(raw.Timestamp)
	if !ok {
		return nil, ErrMissingTimestamp
	}

	tokens, ok := extractTokens([]byte(line), &raw)
	if !ok {
		return nil, ErrNoUsageData
	}

	rec := &UsageRecord{
		Timestamp: ts,
		MessageID: extractMessageID(&raw),
		RequestID: extractRequestID(&raw),
		Model:     extractModel(&raw),
		Tokens:    tokens,
		CostUSD:   extractCost(&raw),
	}

	if err := rec.Validate(); err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}

	return rec, nil
}

// extractTokens resolves the token counts from the first source that
// carries any token field. Assistant lines prefer message.usage; other
// line shapes prefer the top-level usage object. The line object
// itself is the final fallback: some producers inline the counts.
//
// Presence, not value, decides whether a source is used — an explicit
// all-zero usage object wins over a later source. Selecting on
// "non-zero tokens" here is the historical defect this parser replaces.
func extractTokens(line []byte, raw *rawLine) (TokenCounts, bool) {
	var sources []*rawUsage

	var msgUsage *rawUsage
	if raw.Message != nil {
		msgUsage = raw.Message.Usage
	}

	if raw.Type == "assistant" {
		sources = []*rawUsage{msgUsage, raw.Usage}
	} else {
		sources = []*rawUsage{raw.Usage, msgUsage}
	}

	// Inline counts on the line object itself.
	var top rawUsage
	if err := json.Unmarshal(line, &top); err == nil {
		sources = append(sources, &top)
	}

	for _, src := range sources {
		if src == nil {
			continue
		}
		counts := src.counts()
		if counts.HasUsage() {
			return counts, true
		}
	}

	return TokenCounts{}, false
}

func extractModel(raw *rawLine) string {
	if raw.Message != nil && raw.Message.Model != "" {
		return raw.Message.Model
	}
	if raw.Model != "" {
		return raw.Model
	}
	if raw.Usage != nil && raw.Usage.Model != "" {
		return raw.Usage.Model
	}
	return ""
}

func extractMessageID(raw *rawLine) string {
	if raw.MessageID != "" {
		return raw.MessageID
	}
	if raw.Message != nil {
		return raw.Message.ID
	}
	return ""
}

func extractRequestID(raw *rawLine) string {
	if raw.RequestID != "" {
		return raw.RequestID
	}
	return raw.RequestIDAlt
}

func extractCost(raw *rawLine) *float64 {
	for _, c := range []*float64{raw.CostUSD, raw.Cost, raw.CostUSDAlt} {
		if c != nil {
			return c
		}
	}
	return nil
}

// parseTimestamp accepts an RFC3339 string (with or without sub-second
// precision) or a unix epoch number.
func parseTimestamp(raw json.RawMessage) (time.Time, bool) {
	if len(raw) == 0 {
		return time.Time{}, false
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		for _, layout := range []string{
			time.RFC3339Nano,
			time.RFC3339,
			"2006-01-02T15:04:05",
		} {
			if t, parseErr := time.Parse(layout, s); parseErr == nil {
				return t.UTC(), true
			}
		}
		return time.Time{}, false
	}

	var epoch float64
	if err := json.Unmarshal(raw, &epoch); err == nil && epoch > 0 {
		sec := int64(epoch)
		nsec := int64((epoch - float64(sec)) * float64(time.Second))
		return time.Unix(sec, nsec).UTC(), true
	}

	return time.Time{}, false
}

var (
	waitMinutesRe  = regexp.MustCompile(`wait\s+(\d+)\s+minutes?`)
	limitReachedRe = regexp.MustCompile(`limit reached\|(\d+)`)
)

// scanLimitEvent checks a line for a rate-limit notice. System lines
// carry a plain-text content field; user lines carry tool results with
// nested text items.
func scanLimitEvent(line string) (LimitEvent, bool) {
	var raw rawLine
	if err := json.Unmarshal([]byte(line), &raw); err != nil {
		return LimitEvent{}, false
	}

	ts, ok := parseTimestamp(raw.Timestamp)
	if !ok {
		return LimitEvent{}, false
	}

	switch raw.Type {
	case "system":
		return scanSystemLimit(&raw, ts)
	case "user":
		return scanToolResultLimit(&raw, ts)
	}
	return LimitEvent{}, false
}

func scanSystemLimit(raw *rawLine, ts time.Time) (LimitEvent, bool) {
	var content string
	if err := json.Unmarshal(raw.Content, &content); err != nil {
		return LimitEvent{}, false
	}

	lower := strings.ToLower(content)
	if !strings.Contains(lower, "limit") && !strings.Contains(lower, "rate") {
		return LimitEvent{}, false
	}

	ev := LimitEvent{Timestamp: ts, Message: content}
	if m := waitMinutesRe.FindStringSubmatch(lower); m != nil {
		var mins int
		if _, err := fmt.Sscanf(m[1], "%d", &mins); err == nil {
			reset := ts.Add(time.Duration(mins) * time.Minute)
			ev.ResetAt = &reset
		}
	}
	return ev, true
}

func scanToolResultLimit(raw *rawLine, ts time.Time) (LimitEvent, bool) {
	if raw.Message == nil || len(raw.Message.Content) == 0 {
		return LimitEvent{}, false
	}

	var items []struct {
		Type    string `json:"type"`
		Content []struct {
			Text string `json:"text"`
		} `json:"content"`
	}
	if err := json.Unmarshal(raw.Message.Content, &items); err != nil {
		return LimitEvent{}, false
	}

	for _, item := range items {
		if item.Type != "tool_result" {
			continue
		}
		for _, inner := range item.Content {
			if !strings.Contains(strings.ToLower(inner.Text), "limit reached") {
				continue
			}
			ev := LimitEvent{Timestamp: ts, Message: inner.Text}
			if m := limitReachedRe.FindStringSubmatch(inner.Text); m != nil {
				var unix int64
				if _, err := fmt.Sscanf(m[1], "%d", &unix); err == nil {
					reset := time.Unix(unix, 0).UTC()
					ev.ResetAt = &reset
				}
			}
			return ev, true
		}
	}
	return LimitEvent{}, false
}
