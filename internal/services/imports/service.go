// Package imports owns the lifecycle of statement imports: analysis of an
// uploaded file against the ledger and confirmation of the user's decisions.
package imports

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"statement-import-backend/internal/config"
	"statement-import-backend/internal/filestore"
	"statement-import-backend/internal/logger"
	"statement-import-backend/internal/models"
	"statement-import-backend/internal/parser"
	"statement-import-backend/internal/repository"
	"statement-import-backend/internal/services/alias"
	"statement-import-backend/internal/services/ledger"
	"statement-import-backend/internal/services/matching"
	"statement-import-backend/internal/services/rules"
)

// Options tune the service. Zero values fall back to defaults.
type Options struct {
	Tolerances     matching.Tolerances
	WindowSize     int
	ConfirmTimeout time.Duration
	Profiles       config.Profiles
	Logger         zerolog.Logger
}

type Service struct {
	imports   *repository.ImportRepository
	accounts  *repository.AccountRepository
	txs       *repository.TransactionRepository
	aliases   *alias.Store
	files     filestore.Store
	engine    *matching.Engine
	committer *ledger.Committer

	profiles       config.Profiles
	windowSize     int
	confirmTimeout time.Duration
	log            zerolog.Logger
	now            func() time.Time
}

func NewService(db *gorm.DB, files filestore.Store, opts Options) *Service {
	if opts.Tolerances == (matching.Tolerances{}) {
		opts.Tolerances = matching.DefaultTolerances()
	}
	if opts.WindowSize <= 0 {
		opts.WindowSize = 500
	}
	if opts.Profiles == nil {
		opts.Profiles = config.Profiles{}
	}
	txs := repository.NewTransactionRepository(db)
	aliases := alias.NewStore(repository.NewAliasRepository(db))
	return &Service{
		imports:  repository.NewImportRepository(db),
		accounts: repository.NewAccountRepository(db),
		txs:      txs,
		aliases:  aliases,
		files:    files,
		engine:   matching.NewEngine(opts.Tolerances),
		committer: ledger.NewCommitter(
			db,
			txs,
			aliases,
			rules.NewMatcher(repository.NewRuleRepository(db)),
			repository.NewAuditRepository(db),
			opts.Logger,
		),
		profiles:       opts.Profiles,
		windowSize:     opts.WindowSize,
		confirmTimeout: opts.ConfirmTimeout,
		log:            opts.Logger,
		now:            func() time.Time { return time.Now().UTC() },
	}
}

// AnalyzeRequest describes an uploaded statement. Format is detected from
// Filename when empty. A named Profile replaces Config and, when Format is
// empty, supplies the format.
type AnalyzeRequest struct {
	UserID    uuid.UUID
	AccountID uuid.UUID
	Filename  string
	Format    string
	Profile   string
	Config    parser.Config
	Data      []byte
}

// Summary counts the classifications of an analysis.
type Summary struct {
	Total     int            `json:"total"`
	New       int            `json:"new"`
	Duplicate int            `json:"duplicate"`
	Matched   int            `json:"matched"`
	Exact     int            `json:"exact"`
	Probable  int            `json:"probable"`
	Skipped   int            `json:"skipped"`
	Totals    parser.Summary `json:"totals"`
}

// Analysis is the in-memory report returned by Analyze. It is not stored.
type Analysis struct {
	ImportID   uuid.UUID                 `json:"importId"`
	Import     *models.Import            `json:"import"`
	Candidates []matching.MatchCandidate `json:"candidates"`
	Skipped    []parser.SkippedRow       `json:"skipped"`
	Summary    Summary                   `json:"summary"`
}

func summarize(cands []matching.MatchCandidate, res *parser.Result) Summary {
	s := Summary{Total: len(cands), Skipped: len(res.Skipped), Totals: res.Summary}
	for _, c := range cands {
		switch c.Classification {
		case matching.New:
			s.New++
		case matching.Duplicate:
			s.Duplicate++
		case matching.Exact:
			s.Exact++
			s.Matched++
		case matching.Probable:
			s.Probable++
			s.Matched++
		}
	}
	return s
}

func (s *Service) resolveFormat(req AnalyzeRequest) (parser.Format, parser.Config, error) {
	cfg := req.Config
	name := req.Format
	if req.Profile != "" {
		p, ok := s.profiles.Lookup(req.Profile)
		if !ok {
			return "", cfg, &ValidationError{Problems: []string{fmt.Sprintf("unknown parse profile %q", req.Profile)}}
		}
		cfg = p.Config
		if name == "" {
			name = p.Format
		}
	}
	var (
		format parser.Format
		err    error
	)
	if name != "" {
		format, err = parser.ParseFormat(name)
	} else {
		format, err = parser.DetectFormat(req.Filename)
	}
	if err != nil {
		return "", cfg, &FileError{Err: err}
	}
	if err := cfg.Validate(format); err != nil {
		return "", cfg, &ValidationError{Problems: []string{err.Error()}}
	}
	return format, cfg, nil
}

// Analyze parses the file, classifies every staged record against the
// account's ledger and leaves the import analyzed. An unsupported or
// unreadable file fails the import and is reported as a *FileError.
func (s *Service) Analyze(ctx context.Context, req AnalyzeRequest) (*Analysis, error) {
	log := s.logFor(ctx)
	if len(req.Data) == 0 {
		return nil, &ValidationError{Problems: []string{"file is empty"}}
	}
	format, cfg, err := s.resolveFormat(req)
	var ferr *FileError
	if err != nil && !errors.As(err, &ferr) {
		return nil, err
	}
	account, err := s.accounts.GetForUser(ctx, req.AccountID, req.UserID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrAccountNotFound
	}
	if err != nil {
		return nil, err
	}

	imp := &models.Import{
		UserID:    req.UserID,
		AccountID: account.ID,
		Filename:  req.Filename,
		FileType:  format,
		Status:    models.ImportPending,
		Config:    datatypes.NewJSONType(cfg),
	}
	if err := s.imports.Create(ctx, imp); err != nil {
		return nil, fmt.Errorf("creating import: %w", err)
	}
	if ferr != nil {
		return nil, s.fail(ctx, imp, ferr)
	}
	log = log.With().Str("import_id", imp.ID.String()).Str("file_type", string(format)).Logger()

	if err := s.files.Save(ctx, imp.ID, req.Data); err != nil {
		return nil, s.fail(ctx, imp, fmt.Errorf("archiving file: %w", err))
	}
	if ok, err := s.imports.TransitionStatus(ctx, imp.ID, models.ImportPending, models.ImportAnalyzing); err != nil || !ok {
		if err == nil {
			err = ErrInvalidStatus
		}
		return nil, err
	}
	imp.Status = models.ImportAnalyzing

	res, err := parser.Parse(ctx, req.Data, format, cfg)
	if err != nil {
		if ctx.Err() != nil {
			return nil, s.fail(ctx, imp, err)
		}
		return nil, s.fail(ctx, imp, &FileError{Err: err})
	}

	cands, err := s.classify(ctx, imp, res.Records)
	if err != nil {
		return nil, s.fail(ctx, imp, err)
	}

	imp.Status = models.ImportAnalyzed
	imp.TotalRows = len(res.Records)
	imp.SkippedRows = len(res.Skipped)
	if err := s.imports.SaveResult(ctx, imp); err != nil {
		return nil, fmt.Errorf("saving analysis: %w", err)
	}

	summary := summarize(cands, res)
	log.Info().
		Int("total", summary.Total).
		Int("new", summary.New).
		Int("duplicate", summary.Duplicate).
		Int("matched", summary.Matched).
		Int("skipped", summary.Skipped).
		Msg("import analyzed")

	skipped := res.Skipped
	if skipped == nil {
		skipped = []parser.SkippedRow{}
	}
	return &Analysis{
		ImportID:   imp.ID,
		Import:     imp,
		Candidates: cands,
		Skipped:    skipped,
		Summary:    summary,
	}, nil
}

// classify loads the ledger window around the statement's dates and the
// user's aliases, then runs the matching engine. It only reads.
func (s *Service) classify(ctx context.Context, imp *models.Import, records []parser.StagedRecord) ([]matching.MatchCandidate, error) {
	if len(records) == 0 {
		return []matching.MatchCandidate{}, nil
	}
	from, to := records[0].Date, records[0].Date
	hashes := make([]string, 0, len(records))
	for _, r := range records {
		if r.Date.Before(from) {
			from = r.Date
		}
		if r.Date.After(to) {
			to = r.Date
		}
		hashes = append(hashes, r.Fingerprint)
	}
	pad := time.Duration(s.engine.Tolerances().LookbackDays()) * 24 * time.Hour

	var (
		txs   []models.Transaction
		known map[string]uuid.UUID
		index *alias.Index
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		txs, err = s.txs.FindInWindow(gctx, imp.AccountID, from.Add(-pad), to.Add(pad), s.windowSize)
		if err != nil {
			return fmt.Errorf("loading ledger window: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		known, err = s.txs.FindByHashes(gctx, imp.AccountID, hashes)
		if err != nil {
			return fmt.Errorf("looking up fingerprints: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		index, err = s.aliases.Snapshot(gctx, imp.UserID)
		if err != nil {
			return fmt.Errorf("loading payee aliases: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return s.engine.ClassifyAll(records, matching.NewWindow(txs, known), index), nil
}

// fail records a file-level error and moves the import to failed. It
// returns cause.
func (s *Service) fail(ctx context.Context, imp *models.Import, cause error) error {
	now := s.now()
	imp.Status = models.ImportFailed
	imp.CompletedAt = &now
	imp.ErrorCount = 1
	imp.ErrorDetails = datatypes.NewJSONSlice([]models.RowError{{RowID: 0, Error: cause.Error()}})
	if err := s.imports.SaveResult(context.WithoutCancel(ctx), imp); err != nil {
		log := s.logFor(ctx)
		log.Error().Err(err).Str("import_id", imp.ID.String()).Msg("failed to record import failure")
	}
	return cause
}

// ConfirmRequest carries the user's decision for each row, keyed by the
// row's source index.
type ConfirmRequest struct {
	ImportID       uuid.UUID
	UserID         uuid.UUID
	Decisions      map[int]ledger.Decision
	AutoCategorize bool
}

// ConfirmResult mirrors the counters stored on the import.
type ConfirmResult struct {
	ImportID       uuid.UUID           `json:"importId"`
	Status         models.ImportStatus `json:"status"`
	ImportedCount  int                 `json:"importedCount"`
	DuplicateCount int                 `json:"duplicateCount"`
	MatchedCount   int                 `json:"matchedCount"`
	ErrorCount     int                 `json:"errorCount"`
	ErrorDetails   []models.RowError   `json:"errorDetails"`
}

func validateDecisions(decisions map[int]ledger.Decision) error {
	verr := &ValidationError{}
	if len(decisions) == 0 {
		verr.add("no decisions given")
	}
	for _, rowID := range sortedRows(decisions) {
		d := decisions[rowID]
		switch {
		case rowID <= 0:
			verr.add("row %d: invalid row id", rowID)
		case d.Action == "":
			verr.add("row %d: action is required", rowID)
		case !d.Action.Valid():
			verr.add("row %d: unknown action %q", rowID, d.Action)
		case d.Action == ledger.ActionMatch && d.MatchedTransactionID == nil:
			verr.add("row %d: match requires matchedTransactionId", rowID)
		}
	}
	return verr.orNil()
}

func sortedRows(decisions map[int]ledger.Decision) []int {
	rows := make([]int, 0, len(decisions))
	for id := range decisions {
		rows = append(rows, id)
	}
	sort.Ints(rows)
	return rows
}

// Confirm applies the decisions of an analyzed import. Only one
// confirmation can hold an import at a time. Rows are committed one by one
// and a failing row is recorded without stopping the batch. If ctx ends
// before all rows are processed, committed rows stay, the import remains
// processing and the context error is returned.
func (s *Service) Confirm(ctx context.Context, req ConfirmRequest) (*ConfirmResult, error) {
	if err := validateDecisions(req.Decisions); err != nil {
		return nil, err
	}
	imp, err := s.GetImport(ctx, req.UserID, req.ImportID)
	if err != nil {
		return nil, err
	}
	if err := statusError(imp.Status); err != nil {
		return nil, err
	}
	ok, err := s.imports.TransitionStatus(ctx, imp.ID, models.ImportAnalyzed, models.ImportProcessing)
	if err != nil {
		return nil, err
	}
	if !ok {
		current, err := s.GetImport(ctx, req.UserID, req.ImportID)
		if err != nil {
			return nil, err
		}
		if err := statusError(current.Status); err != nil {
			return nil, err
		}
		return nil, ErrConfirmInProgress
	}
	imp.Status = models.ImportProcessing

	if s.confirmTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.confirmTimeout)
		defer cancel()
	}
	log := s.logFor(ctx).With().Str("import_id", imp.ID.String()).Logger()

	records, err := s.stagedRecords(ctx, imp)
	if err != nil {
		return nil, s.fail(ctx, imp, err)
	}

	var rowErrors []models.RowError
	counts := ConfirmResult{ImportID: imp.ID}
	for _, rowID := range sortedRows(req.Decisions) {
		if err := ctx.Err(); err != nil {
			s.saveProgress(ctx, imp, &counts, rowErrors)
			log.Warn().Err(err).Int("next_row", rowID).Msg("confirmation interrupted")
			return nil, err
		}
		d := req.Decisions[rowID]
		rec, ok := records[rowID]
		if !ok {
			rowErrors = append(rowErrors, models.RowError{RowID: rowID, Error: "row not found in statement"})
			continue
		}
		res, err := s.committer.Apply(ctx, ledger.Row{
			ImportID:       imp.ID,
			UserID:         imp.UserID,
			AccountID:      imp.AccountID,
			Record:         rec,
			Decision:       d,
			AutoCategorize: req.AutoCategorize,
		})
		if err != nil {
			log.Debug().Err(err).Int("row", rowID).Msg("row failed")
			rowErrors = append(rowErrors, models.RowError{RowID: rowID, Error: err.Error()})
			continue
		}
		switch res.Outcome {
		case ledger.OutcomeCreated:
			counts.ImportedCount++
		case ledger.OutcomeMatched:
			counts.MatchedCount++
		case ledger.OutcomeDuplicate:
			counts.DuplicateCount++
		case ledger.OutcomeSkipped:
			if d.Classification == string(matching.Duplicate) {
				counts.DuplicateCount++
			}
		}
	}

	now := s.now()
	imp.Status = models.ImportCompleted
	imp.CompletedAt = &now
	s.applyCounts(imp, &counts, rowErrors)
	if err := s.imports.SaveResult(context.WithoutCancel(ctx), imp); err != nil {
		return nil, fmt.Errorf("saving confirmation: %w", err)
	}
	log.Info().
		Int("imported", counts.ImportedCount).
		Int("matched", counts.MatchedCount).
		Int("duplicate", counts.DuplicateCount).
		Int("errors", counts.ErrorCount).
		Msg("import confirmed")
	counts.Status = imp.Status
	return &counts, nil
}

func statusError(status models.ImportStatus) error {
	switch status {
	case models.ImportAnalyzed:
		return nil
	case models.ImportProcessing:
		return ErrConfirmInProgress
	default:
		return ErrInvalidStatus
	}
}

// stagedRecords re-parses the archived file and indexes records by row.
func (s *Service) stagedRecords(ctx context.Context, imp *models.Import) (map[int]parser.StagedRecord, error) {
	data, err := s.files.Load(ctx, imp.ID)
	if err != nil {
		return nil, &FileError{Err: fmt.Errorf("loading archived file: %w", err)}
	}
	res, err := parser.Parse(ctx, data, imp.FileType, imp.Config.Data())
	if err != nil {
		return nil, &FileError{Err: err}
	}
	byRow := make(map[int]parser.StagedRecord, len(res.Records))
	for _, r := range res.Records {
		byRow[r.Row] = r
	}
	return byRow, nil
}

func (s *Service) applyCounts(imp *models.Import, counts *ConfirmResult, rowErrors []models.RowError) {
	if rowErrors == nil {
		rowErrors = []models.RowError{}
	}
	counts.ErrorCount = len(rowErrors)
	counts.ErrorDetails = rowErrors
	imp.ImportedCount = counts.ImportedCount
	imp.DuplicateCount = counts.DuplicateCount
	imp.MatchedCount = counts.MatchedCount
	imp.ErrorCount = counts.ErrorCount
	imp.ErrorDetails = datatypes.NewJSONSlice(rowErrors)
}

// saveProgress persists partial counters of an interrupted confirmation.
// The status stays processing.
func (s *Service) saveProgress(ctx context.Context, imp *models.Import, counts *ConfirmResult, rowErrors []models.RowError) {
	s.applyCounts(imp, counts, rowErrors)
	if err := s.imports.SaveResult(context.WithoutCancel(ctx), imp); err != nil {
		log := s.logFor(ctx)
		log.Error().Err(err).Str("import_id", imp.ID.String()).Msg("failed to save partial progress")
	}
}

// logFor prefers the request logger carried by ctx.
func (s *Service) logFor(ctx context.Context) zerolog.Logger {
	if l := logger.FromContext(ctx); l.GetLevel() != zerolog.Disabled {
		return l
	}
	return s.log
}

// GetImport returns an import owned by userID.
func (s *Service) GetImport(ctx context.Context, userID, importID uuid.UUID) (*models.Import, error) {
	imp, err := s.imports.GetForUser(ctx, importID, userID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrImportNotFound
	}
	return imp, err
}

// ListImports returns the user's most recent imports, optionally for one
// account only.
func (s *Service) ListImports(ctx context.Context, userID uuid.UUID, accountID *uuid.UUID, limit int) ([]models.Import, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	return s.imports.ListForUser(ctx, userID, accountID, limit)
}

// FailStale marks imports that have been processing since before cutoff as
// failed and returns how many were changed.
func (s *Service) FailStale(ctx context.Context, cutoff time.Time) (int64, error) {
	n, err := s.imports.FailStale(ctx, cutoff, models.RowError{RowID: 0, Error: "confirmation did not finish"})
	if err != nil {
		return 0, err
	}
	if n > 0 {
		log := s.logFor(ctx)
		log.Warn().Int64("imports", n).Time("cutoff", cutoff).Msg("failed stale imports")
	}
	return n, nil
}
