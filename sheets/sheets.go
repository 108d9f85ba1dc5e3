package sheets

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/attribute"

	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"

	"github.com/publicidadxacarlos-cell/FinanzaAI/config"
	"github.com/publicidadxacarlos-cell/FinanzaAI/ledger"
	"github.com/publicidadxacarlos-cell/FinanzaAI/tracing"
)

type Settings struct {
	SpreadsheetId    string `mapstructure:"spreadsheet_id"`
	SpreadsheetRange string `mapstructure:"spreadsheet_range"`
	Credentials      string `mapstructure:"credentials"`
}

var (
	sheetsService *sheets.Service
	settings      *Settings
)

var ErrNotConfigured = errors.New("sheets reconciliation not configured")

func loadSettings() *Settings {
	if settings != nil {
		return settings
	}
	var s Settings
	if err := config.Unmarshal("sheets", &s); err != nil {
		log.Error().Err(err).Msg("Unable to load sheets config")
		return nil
	}
	settings = &s
	return settings
}

// Configured reports whether direct spreadsheet access is set up. The
// webhook sync works without it; reconciliation needs it.
func Configured() bool {
	s := loadSettings()
	return s != nil && s.SpreadsheetId != "" && s.Credentials != ""
}

func service(ctx context.Context) (*sheets.Service, error) {
	if sheetsService != nil {
		return sheetsService, nil
	}
	var err error
	sheetsService, err = sheets.NewService(
		ctx,
		option.WithCredentialsJSON([]byte(settings.Credentials)),
		option.WithScopes(sheets.SpreadsheetsReadonlyScope),
	)
	if err != nil {
		log.Error().Msgf("Sheets client error: %v", err)
		return nil, err
	}
	return sheetsService, nil
}

// Report is a read-only diff between the local ledger and the mirror
// spreadsheet. It never feeds back into the store: the remote side may
// silently diverge and that is acceptable.
type Report struct {
	Matched       int      `json:"matched"`
	MissingRemote []string `json:"missingRemote"`
	UnknownRemote []string `json:"unknownRemote"`
}

// Reconcile reads the configured range (transaction id in the first
// column) and diffs it against the ledger snapshot.
func Reconcile(ctx context.Context, transactions []ledger.Transaction) (Report, error) {
	ctx, span := tracing.NewSpan("sheets.reconcile", ctx)
	defer span.End()

	if !Configured() {
		return Report{}, ErrNotConfigured
	}

	svc, err := service(ctx)
	if err != nil {
		return Report{}, err
	}

	readRange := settings.SpreadsheetRange
	if readRange == "" {
		readRange = "A:A"
	}

	resp, err := svc.Spreadsheets.Values.Get(settings.SpreadsheetId, readRange).Context(ctx).Do()
	if err != nil {
		log.Error().Msgf("Unable to read spreadsheet: `%s`", err.Error())
		return Report{}, fmt.Errorf("unable to read spreadsheet")
	}

	remote := make([]string, 0, len(resp.Values))
	for _, row := range resp.Values {
		if len(row) == 0 {
			continue
		}
		id, ok := row[0].(string)
		if !ok {
			continue
		}
		id = strings.TrimSpace(id)
		if id != "" {
			remote = append(remote, id)
		}
	}
	log.Debug().Msgf("%d rows loaded from spreadsheet", len(remote))
	span.SetAttributes(attribute.Int("loaded.rows", len(remote)))

	return diff(remote, transactions), nil
}

func diff(remoteIDs []string, transactions []ledger.Transaction) Report {
	report := Report{MissingRemote: []string{}, UnknownRemote: []string{}}

	remote := make(map[string]bool, len(remoteIDs))
	for _, id := range remoteIDs {
		remote[id] = true
	}
	local := make(map[string]bool, len(transactions))
	for _, t := range transactions {
		local[t.ID] = true
		if remote[t.ID] {
			report.Matched++
		} else {
			report.MissingRemote = append(report.MissingRemote, t.ID)
		}
	}
	for _, id := range remoteIDs {
		if !local[id] {
			report.UnknownRemote = append(report.UnknownRemote, id)
		}
	}
	return report
}
