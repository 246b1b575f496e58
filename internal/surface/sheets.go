package surface

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/ConfidentPicks/confident-picks-sub001/internal/apperrors"
	"github.com/ConfidentPicks/confident-picks-sub001/internal/retry"

	"github.com/rs/zerolog/log"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"
)

const (
	valueInputRaw      = "RAW"
	insertDataNewRows  = "INSERT_ROWS"
	majorDimensionRows = "ROWS"
)

// Sheets is a Surface backed by one tab of a Google spreadsheet
type Sheets struct {
	svc           *sheets.Service
	spreadsheetID string
	sheet         string
	retry         retry.Policy
}

// NewSheets connects with a service-account credentials file.
func NewSheets(ctx context.Context, credentialsFile, spreadsheetID, sheet string, policy retry.Policy) (*Sheets, error) {
	return NewSheetsWithOptions(ctx, spreadsheetID, sheet, policy,
		option.WithCredentialsFile(credentialsFile),
		option.WithScopes(sheets.SpreadsheetsScope),
	)
}

// NewSheetsWithOptions connects with arbitrary client options.
func NewSheetsWithOptions(ctx context.Context, spreadsheetID, sheet string, policy retry.Policy, opts ...option.ClientOption) (*Sheets, error) {
	svc, err := sheets.NewService(ctx, opts...)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrSurfaceIO, fmt.Errorf("failed to create sheets service: %w", err))
	}

	log.Info().
		Str("spreadsheet_id", spreadsheetID).
		Str("sheet", sheet).
		Msg("Connected to working surface")

	return &Sheets{svc: svc, spreadsheetID: spreadsheetID, sheet: sheet, retry: policy}, nil
}

func (s *Sheets) ReadAll(ctx context.Context) ([]string, [][]string, error) {
	var resp *sheets.ValueRange
	err := s.do(ctx, "read sheet", func(ctx context.Context) error {
		var err error
		resp, err = s.svc.Spreadsheets.Values.Get(s.spreadsheetID, quoteSheet(s.sheet)).
			MajorDimension(majorDimensionRows).
			Context(ctx).
			Do()
		return err
	})
	if err != nil {
		return nil, nil, err
	}

	if len(resp.Values) == 0 {
		return nil, nil, nil
	}
	header := toStrings(resp.Values[0])
	rows := make([][]string, 0, len(resp.Values)-1)
	for _, v := range resp.Values[1:] {
		rows = append(rows, toStrings(v))
	}
	return header, rows, nil
}

func (s *Sheets) WriteHeader(ctx context.Context, header []string) error {
	vr := &sheets.ValueRange{
		Range:  rowRange(s.sheet, 1, len(header)),
		Values: [][]interface{}{toCells(header)},
	}
	return s.do(ctx, "write header", func(ctx context.Context) error {
		_, err := s.svc.Spreadsheets.Values.Update(s.spreadsheetID, vr.Range, vr).
			ValueInputOption(valueInputRaw).
			Context(ctx).
			Do()
		return err
	})
}

func (s *Sheets) UpdateRows(ctx context.Context, updates []RowUpdate) error {
	if len(updates) == 0 {
		return nil
	}
	req := &sheets.BatchUpdateValuesRequest{ValueInputOption: valueInputRaw}
	for _, u := range updates {
		// Data row 0 sits on sheet row 2.
		r := rowRange(s.sheet, u.Index+2, len(u.Values))
		req.Data = append(req.Data, &sheets.ValueRange{
			Range:  r,
			Values: [][]interface{}{toCells(u.Values)},
		})
	}
	return s.do(ctx, "update rows", func(ctx context.Context) error {
		_, err := s.svc.Spreadsheets.Values.BatchUpdate(s.spreadsheetID, req).Context(ctx).Do()
		return err
	})
}

func (s *Sheets) AppendRows(ctx context.Context, rows [][]string) error {
	if len(rows) == 0 {
		return nil
	}
	vr := &sheets.ValueRange{MajorDimension: majorDimensionRows}
	for _, r := range rows {
		vr.Values = append(vr.Values, toCells(r))
	}
	return s.do(ctx, "append rows", func(ctx context.Context) error {
		_, err := s.svc.Spreadsheets.Values.Append(s.spreadsheetID, quoteSheet(s.sheet)+"!A1", vr).
			ValueInputOption(valueInputRaw).
			InsertDataOption(insertDataNewRows).
			Context(ctx).
			Do()
		return err
	})
}

// do runs a Sheets call under the retry policy. Quota and server errors are
// retried; anything else is permanent.
func (s *Sheets) do(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	err := s.retry.Do(ctx, op, func(ctx context.Context) error {
		err := fn(ctx)
		if err == nil || retryable(err) {
			return err
		}
		return retry.Permanent(err)
	})
	if err != nil {
		return apperrors.Wrap(apperrors.ErrSurfaceIO, err)
	}
	return nil
}

func retryable(err error) bool {
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		return gerr.Code == http.StatusTooManyRequests || gerr.Code >= 500
	}
	// Transport failures carry no status.
	return true
}

func quoteSheet(name string) string {
	return "'" + strings.ReplaceAll(name, "'", "''") + "'"
}

// rowRange addresses columns A..width of one sheet row.
func rowRange(sheet string, row, width int) string {
	if width < 1 {
		width = 1
	}
	return fmt.Sprintf("%s!A%d:%s%d", quoteSheet(sheet), row, columnLetter(width), row)
}

// columnLetter converts a 1-based column number to A1 notation.
func columnLetter(n int) string {
	var b []byte
	for n > 0 {
		n--
		b = append([]byte{byte('A' + n%26)}, b...)
		n /= 26
	}
	return string(b)
}

func toCells(record []string) []interface{} {
	cells := make([]interface{}, len(record))
	for i, v := range record {
		cells[i] = v
	}
	return cells
}

func toStrings(cells []interface{}) []string {
	out := make([]string, len(cells))
	for i, c := range cells {
		if c == nil {
			continue
		}
		out[i] = fmt.Sprint(c)
	}
	return out
}
