package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"

	"github.com/ebcovid/caseledger/internal/domain"
)

var qb = sq.StatementBuilder.PlaceholderFormat(sq.Question)

var entityTables = map[domain.EntityKind]string{
	domain.EntityFacility:   "facilities",
	domain.EntityBuilding:   "buildings",
	domain.EntityDepartment: "departments",
}

var caseColumns = []string{
	"source_case_number", "facility_id", "building_id", "department_id",
	"last_work_date", "tested_date", "posted_date",
	"fingerprint", "pattern_set", "ingest_run_id", "created_at",
}

// Store is the ingest store backed by a SQLite database.
type Store struct {
	db *sql.DB
	tx *TxManager
}

// NewStore creates a store on an already migrated database.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db, tx: NewTxManager(db)}
}

// RunInTx executes fn in a transaction. Nested calls use savepoints.
func (s *Store) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return s.tx.RunInTx(ctx, fn)
}

// GetOrCreateEntity returns the entity named name, inserting it if absent.
// The insert runs in its own savepoint; losing the insert race to another
// connection rolls back to it and returns the committed row.
func (s *Store) GetOrCreateEntity(ctx context.Context, kind domain.EntityKind, name string) (domain.Entity, bool, error) {
	table, ok := entityTables[kind]
	if !ok {
		return domain.Entity{}, false, domain.NewValidationError("kind", "unknown entity kind "+kind.String())
	}

	e, err := s.getEntity(ctx, kind, table, name)
	if err == nil {
		return e, false, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return domain.Entity{}, false, err
	}

	var id int64
	err = s.tx.RunInTx(ctx, func(ctx context.Context) error {
		query, args, err := qb.Insert(table).Columns("name").Values(name).Suffix("RETURNING id").ToSql()
		if err != nil {
			return err
		}
		return querierFromCtx(ctx, s.db).QueryRowContext(ctx, query, args...).Scan(&id)
	})
	if err == nil {
		return domain.Entity{ID: id, Kind: kind, Name: name}, true, nil
	}

	err = mapError(err, kind.String(), strconv.Quote(name))
	if !errors.Is(err, domain.ErrAlreadyExists) {
		return domain.Entity{}, false, err
	}

	e, err = s.getEntity(ctx, kind, table, name)
	if err != nil {
		return domain.Entity{}, false, fmt.Errorf("re-select after conflict: %w", err)
	}
	return e, false, nil
}

func (s *Store) getEntity(ctx context.Context, kind domain.EntityKind, table, name string) (domain.Entity, error) {
	query, args, err := qb.Select("id", "name").From(table).Where(sq.Eq{"name": name}).ToSql()
	if err != nil {
		return domain.Entity{}, err
	}

	e := domain.Entity{Kind: kind}
	if err := querierFromCtx(ctx, s.db).QueryRowContext(ctx, query, args...).Scan(&e.ID, &e.Name); err != nil {
		return domain.Entity{}, mapError(err, kind.String(), strconv.Quote(name))
	}
	return e, nil
}

// SyncAlias stores a unless it is already stored. An alias bound to a
// different entity is reported as *domain.AliasRemapError.
func (s *Store) SyncAlias(ctx context.Context, a domain.Alias) (bool, error) {
	q := querierFromCtx(ctx, s.db)
	key := strconv.Quote(a.Raw)

	query, args, err := qb.Insert("entity_aliases").
		Columns("kind", "raw_name", "entity_id").
		Values(a.Kind.String(), a.Raw, a.EntityID).
		Suffix("ON CONFLICT (kind, raw_name) DO NOTHING RETURNING entity_id").
		ToSql()
	if err != nil {
		return false, err
	}

	var stored int64
	err = q.QueryRowContext(ctx, query, args...).Scan(&stored)
	if err == nil {
		return true, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return false, mapError(err, "alias", key)
	}

	query, args, err = qb.Select("entity_id").From("entity_aliases").
		Where(sq.Eq{"kind": a.Kind.String(), "raw_name": a.Raw}).
		ToSql()
	if err != nil {
		return false, err
	}
	if err := q.QueryRowContext(ctx, query, args...).Scan(&stored); err != nil {
		return false, mapError(err, "alias", key)
	}
	if stored != a.EntityID {
		return false, &domain.AliasRemapError{Kind: a.Kind, Raw: a.Raw, StoredID: stored, WantID: a.EntityID}
	}
	return false, nil
}

// InsertCase stores c. When c's fingerprint is already stored the existing
// row is returned with inserted=false.
func (s *Store) InsertCase(ctx context.Context, c domain.PersistedCase) (domain.PersistedCase, bool, error) {
	q := querierFromCtx(ctx, s.db)

	query, args, err := qb.Insert("covid_cases").
		Columns(caseColumns...).
		Values(
			c.CaseNumber, c.FacilityID, c.BuildingID, c.DepartmentID,
			dateArg(c.LastWorkDate), dateArg(c.TestedDate), c.PostedDate.Format(time.DateOnly),
			c.Fingerprint, c.PatternSet, c.RunID.String(), c.CreatedAt.UTC().Format(time.RFC3339Nano),
		).
		Suffix("ON CONFLICT (fingerprint) DO NOTHING RETURNING id").
		ToSql()
	if err != nil {
		return domain.PersistedCase{}, false, err
	}

	err = q.QueryRowContext(ctx, query, args...).Scan(&c.ID)
	if err == nil {
		return c, true, nil
	}
	if !errors.Is(err, sql.ErrNoRows) || c.Fingerprint == nil {
		return domain.PersistedCase{}, false, mapError(err, "covid_case", caseKey(c))
	}

	existing, err := s.caseByFingerprint(ctx, *c.Fingerprint)
	if err != nil {
		return domain.PersistedCase{}, false, err
	}
	return existing, false, nil
}

func (s *Store) caseByFingerprint(ctx context.Context, fp string) (domain.PersistedCase, error) {
	query, args, err := qb.Select(append([]string{"id"}, caseColumns...)...).
		From("covid_cases").
		Where(sq.Eq{"fingerprint": fp}).
		ToSql()
	if err != nil {
		return domain.PersistedCase{}, err
	}

	var (
		c                        domain.PersistedCase
		lastWork, tested         sql.NullString
		posted, runID, createdAt string
	)
	err = querierFromCtx(ctx, s.db).QueryRowContext(ctx, query, args...).Scan(
		&c.ID, &c.CaseNumber, &c.FacilityID, &c.BuildingID, &c.DepartmentID,
		&lastWork, &tested, &posted,
		&c.Fingerprint, &c.PatternSet, &runID, &createdAt,
	)
	if err != nil {
		return domain.PersistedCase{}, mapError(err, "covid_case", fp)
	}

	if c.LastWorkDate, err = parseDate(lastWork); err != nil {
		return domain.PersistedCase{}, err
	}
	if c.TestedDate, err = parseDate(tested); err != nil {
		return domain.PersistedCase{}, err
	}
	if c.PostedDate, err = time.Parse(time.DateOnly, posted); err != nil {
		return domain.PersistedCase{}, fmt.Errorf("posted_date: %w", err)
	}
	if c.RunID, err = uuid.Parse(runID); err != nil {
		return domain.PersistedCase{}, fmt.Errorf("ingest_run_id: %w", err)
	}
	if c.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt); err != nil {
		return domain.PersistedCase{}, fmt.Errorf("created_at: %w", err)
	}
	return c, nil
}

// Dates are stored as ISO 8601 text.
func dateArg(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.Format(time.DateOnly)
}

func parseDate(s sql.NullString) (*time.Time, error) {
	if !s.Valid {
		return nil, nil
	}
	t, err := time.Parse(time.DateOnly, s.String)
	if err != nil {
		return nil, fmt.Errorf("parse date %q: %w", s.String, err)
	}
	return &t, nil
}

func caseKey(c domain.PersistedCase) string {
	if c.CaseNumber != nil {
		return "#" + strconv.Itoa(*c.CaseNumber)
	}
	return c.PostedDate.Format(time.DateOnly)
}
