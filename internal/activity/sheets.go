package activity

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"

	"github.com/engage-agent/pkg/logger"
)

// SheetsConfig holds Google Sheets sink settings
type SheetsConfig struct {
	SpreadsheetID      string
	SheetName          string
	CredentialsFile    string
	ServiceAccountJSON string
}

// SheetsSink appends activity events as rows to a Google Sheet so
// non-engineers can audit what the pipeline did. Append failures are
// logged and dropped, never surfaced.
type SheetsSink struct {
	service       *sheets.Service
	spreadsheetID string
	sheetName     string
	log           *logger.Logger
}

// NewSheetsSink creates a Sheets-backed sink
func NewSheetsSink(cfg SheetsConfig, log *logger.Logger) (*SheetsSink, error) {
	ctx := context.Background()

	var opts []option.ClientOption
	if cfg.ServiceAccountJSON != "" {
		opts = append(opts, option.WithCredentialsJSON([]byte(cfg.ServiceAccountJSON)))
	} else if cfg.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}

	service, err := sheets.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create sheets service: %w", err)
	}

	sheetName := cfg.SheetName
	if sheetName == "" {
		sheetName = "Activity"
	}

	return &SheetsSink{
		service:       service,
		spreadsheetID: cfg.SpreadsheetID,
		sheetName:     sheetName,
		log:           log.WithComponent("activity-sheets"),
	}, nil
}

// Record appends the event row. Errors are logged, never returned.
func (s *SheetsSink) Record(ctx context.Context, event Event) {
	metadata := ""
	if len(event.Metadata) > 0 {
		if data, err := json.Marshal(event.Metadata); err == nil {
			metadata = string(data)
		}
	}

	row := &sheets.ValueRange{
		Values: [][]interface{}{{
			event.At.Format(time.RFC3339),
			event.WorkspaceID,
			event.Actor,
			event.Action,
			event.SubjectID,
			metadata,
		}},
	}

	_, err := s.service.Spreadsheets.Values.
		Append(s.spreadsheetID, s.sheetName+"!A:F", row).
		ValueInputOption("RAW").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).
		Do()
	if err != nil {
		s.log.Warn().Err(err).Str("action", event.Action).Msg("Failed to append activity row")
	}
}

// Ensure sinks implement Sink
var (
	_ Sink = (*LogSink)(nil)
	_ Sink = (*SheetsSink)(nil)
	_ Sink = (*MultiSink)(nil)
)
