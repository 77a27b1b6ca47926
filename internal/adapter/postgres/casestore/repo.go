// Package casestore implements the ingest store using PostgreSQL.
// Entities are looked up or created with a select-then-insert protocol whose
// insert runs in a savepoint, so a lost race never aborts the caller's
// transaction.
package casestore

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"

	postgres "github.com/ebcovid/caseledger/internal/adapter/postgres"
	"github.com/ebcovid/caseledger/internal/domain"
)

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

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

// Repo provides case and entity persistence backed by PostgreSQL.
type Repo struct {
	db postgres.DB
	tx *postgres.TxManager
}

// New creates a new case store.
func New(db postgres.DB) *Repo {
	return &Repo{db: db, tx: postgres.NewTxManager(db)}
}

// RunInTx executes fn in a transaction. Nested calls use savepoints.
func (r *Repo) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return r.tx.RunInTx(ctx, fn)
}

// ---------------------------------------------------------------------------
// Entities
// ---------------------------------------------------------------------------

// GetOrCreateEntity returns the entity named name, inserting it if absent.
// When a concurrent transaction inserts the same name first, the unique
// violation is rolled back to the savepoint and the winner's row is returned.
func (r *Repo) GetOrCreateEntity(ctx context.Context, kind domain.EntityKind, name string) (domain.Entity, bool, error) {
	table, ok := entityTables[kind]
	if !ok {
		return domain.Entity{}, false, domain.NewValidationError("kind", "unknown entity kind "+kind.String())
	}

	e, err := r.getEntity(ctx, kind, table, name)
	if err == nil {
		return e, false, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return domain.Entity{}, false, err
	}

	var id int64
	err = r.tx.RunInTx(ctx, func(ctx context.Context) error {
		query, args, err := psql.Insert(table).Columns("name").Values(name).Suffix("RETURNING id").ToSql()
		if err != nil {
			return err
		}
		return postgres.QuerierFromCtx(ctx, r.db).QueryRow(ctx, query, args...).Scan(&id)
	})
	if err == nil {
		return domain.Entity{ID: id, Kind: kind, Name: name}, true, nil
	}

	err = postgres.MapError(err, kind.String(), strconv.Quote(name))
	if !errors.Is(err, domain.ErrAlreadyExists) {
		return domain.Entity{}, false, err
	}

	// Lost the race: the row is committed by now.
	e, err = r.getEntity(ctx, kind, table, name)
	if err != nil {
		return domain.Entity{}, false, fmt.Errorf("re-select after conflict: %w", err)
	}
	return e, false, nil
}

func (r *Repo) getEntity(ctx context.Context, kind domain.EntityKind, table, name string) (domain.Entity, error) {
	query, args, err := psql.Select("id", "name").From(table).Where(sq.Eq{"name": name}).ToSql()
	if err != nil {
		return domain.Entity{}, err
	}

	e := domain.Entity{Kind: kind}
	err = postgres.QuerierFromCtx(ctx, r.db).QueryRow(ctx, query, args...).Scan(&e.ID, &e.Name)
	if err != nil {
		return domain.Entity{}, postgres.MapError(err, kind.String(), strconv.Quote(name))
	}
	return e, nil
}

// ---------------------------------------------------------------------------
// Aliases
// ---------------------------------------------------------------------------

// SyncAlias stores a. An alias already bound to another entity is never
// rewritten.
func (r *Repo) SyncAlias(ctx context.Context, a domain.Alias) (bool, error) {
	q := postgres.QuerierFromCtx(ctx, r.db)
	key := strconv.Quote(a.Raw)

	query, args, err := psql.Insert("entity_aliases").
		Columns("kind", "raw_name", "entity_id").
		Values(a.Kind.String(), a.Raw, a.EntityID).
		Suffix("ON CONFLICT (kind, raw_name) DO NOTHING RETURNING entity_id").
		ToSql()
	if err != nil {
		return false, err
	}

	var stored int64
	err = q.QueryRow(ctx, query, args...).Scan(&stored)
	if err == nil {
		return true, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return false, postgres.MapError(err, "alias", key)
	}

	query, args, err = psql.Select("entity_id").From("entity_aliases").
		Where(sq.Eq{"kind": a.Kind.String(), "raw_name": a.Raw}).
		ToSql()
	if err != nil {
		return false, err
	}
	if err := q.QueryRow(ctx, query, args...).Scan(&stored); err != nil {
		return false, postgres.MapError(err, "alias", key)
	}
	if stored != a.EntityID {
		return false, &domain.AliasRemapError{Kind: a.Kind, Raw: a.Raw, StoredID: stored, WantID: a.EntityID}
	}
	return false, nil
}

// ---------------------------------------------------------------------------
// Cases
// ---------------------------------------------------------------------------

// InsertCase stores c. A case whose fingerprint is already stored is left
// untouched and the stored row's id is returned with inserted=false.
func (r *Repo) InsertCase(ctx context.Context, c domain.PersistedCase) (domain.PersistedCase, bool, error) {
	q := postgres.QuerierFromCtx(ctx, r.db)

	query, args, err := psql.Insert("covid_cases").
		Columns(caseColumns...).
		Values(
			c.CaseNumber, c.FacilityID, c.BuildingID, c.DepartmentID,
			c.LastWorkDate, c.TestedDate, c.PostedDate,
			c.Fingerprint, c.PatternSet, c.RunID, c.CreatedAt,
		).
		Suffix("ON CONFLICT (fingerprint) DO NOTHING RETURNING id").
		ToSql()
	if err != nil {
		return domain.PersistedCase{}, false, err
	}

	err = q.QueryRow(ctx, query, args...).Scan(&c.ID)
	if err == nil {
		return c, true, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) || c.Fingerprint == nil {
		return domain.PersistedCase{}, false, postgres.MapError(err, "covid_case", caseKey(c))
	}

	existing, err := r.caseByFingerprint(ctx, *c.Fingerprint)
	if err != nil {
		return domain.PersistedCase{}, false, err
	}
	return existing, false, nil
}

func (r *Repo) caseByFingerprint(ctx context.Context, fp string) (domain.PersistedCase, error) {
	query, args, err := psql.Select(append([]string{"id"}, caseColumns...)...).
		From("covid_cases").
		Where(sq.Eq{"fingerprint": fp}).
		ToSql()
	if err != nil {
		return domain.PersistedCase{}, err
	}

	var c domain.PersistedCase
	err = postgres.QuerierFromCtx(ctx, r.db).QueryRow(ctx, query, args...).Scan(
		&c.ID, &c.CaseNumber, &c.FacilityID, &c.BuildingID, &c.DepartmentID,
		&c.LastWorkDate, &c.TestedDate, &c.PostedDate,
		&c.Fingerprint, &c.PatternSet, &c.RunID, &c.CreatedAt,
	)
	if err != nil {
		return domain.PersistedCase{}, postgres.MapError(err, "covid_case", fp)
	}
	return c, nil
}

func caseKey(c domain.PersistedCase) string {
	if c.CaseNumber != nil {
		return "#" + strconv.Itoa(*c.CaseNumber)
	}
	return c.PostedDate.Format("2006-01-02")
}
