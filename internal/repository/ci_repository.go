package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rpattn/cmdbgraph/internal/domain"
)

// ciRepository implements CIRepository backed by Postgres.
type ciRepository struct {
	pool *pgxpool.Pool
}

// NewCIRepository creates a new configuration item repository
func NewCIRepository(pool *pgxpool.Pool) CIRepository {
	return &ciRepository{pool: pool}
}

const ciColumns = `id, ci_code, name, description, ci_class, ci_type, status, criticality,
	environment, location, owner, support_group, attributes, tags, decommission_date,
	created_at, updated_at, created_by, updated_by`

// Create inserts a CI together with its Create history entry.
func (r *ciRepository) Create(ctx context.Context, ci domain.ConfigurationItem, entry domain.HistoryEntry) (domain.ConfigurationItem, error) {
	attributesJSON, err := ci.GetAttributesAsJSONB()
	if err != nil {
		return domain.ConfigurationItem{}, fmt.Errorf("failed to marshal attributes: %w", err)
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return domain.ConfigurationItem{}, translateError("create ci", err)
	}
	defer tx.Rollback(ctx)

	row := tx.QueryRow(ctx, `
		INSERT INTO configuration_items (
			id, ci_code, name, description, ci_class, ci_type, status, criticality,
			environment, location, owner, support_group, attributes, tags,
			created_at, updated_at, created_by, updated_by
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18)
		RETURNING `+ciColumns,
		ci.ID, ci.CICode, ci.Name, ci.Description, ci.Class, ci.CIType, ci.Status, ci.Criticality,
		ci.Environment, ci.Location, ci.Owner, ci.SupportGroup, attributesJSON, ci.Tags,
		ci.CreatedAt, ci.UpdatedAt, ci.CreatedBy, ci.UpdatedBy,
	)

	created, err := scanCI(row)
	if err != nil {
		return domain.ConfigurationItem{}, translateError("create ci", err)
	}

	if err := insertHistoryTx(ctx, tx, entry); err != nil {
		return domain.ConfigurationItem{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return domain.ConfigurationItem{}, translateError("create ci", err)
	}

	return created, nil
}

// GetByID retrieves a CI by its store-assigned id.
func (r *ciRepository) GetByID(ctx context.Context, id uuid.UUID) (domain.ConfigurationItem, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+ciColumns+` FROM configuration_items WHERE id = $1`, id)
	ci, err := scanCI(row)
	if err != nil {
		return domain.ConfigurationItem{}, translateError("get ci", err)
	}
	return ci, nil
}

// GetByCode retrieves a CI by its human-readable code (case-sensitive).
func (r *ciRepository) GetByCode(ctx context.Context, code string) (domain.ConfigurationItem, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+ciColumns+` FROM configuration_items WHERE ci_code = $1`, code)
	ci, err := scanCI(row)
	if err != nil {
		return domain.ConfigurationItem{}, translateError("get ci by code", err)
	}
	return ci, nil
}

// GetByIDs retrieves multiple CIs by their ids.
func (r *ciRepository) GetByIDs(ctx context.Context, ids []uuid.UUID) ([]domain.ConfigurationItem, error) {
	if len(ids) == 0 {
		return []domain.ConfigurationItem{}, nil
	}

	rows, err := r.pool.Query(ctx, `SELECT `+ciColumns+` FROM configuration_items WHERE id = ANY($1)`, ids)
	if err != nil {
		return nil, translateError("get cis by ids", err)
	}
	defer rows.Close()

	return collectCIs(rows, "get cis by ids")
}

// Update applies an already-diffed CI along with its Update entries.
func (r *ciRepository) Update(ctx context.Context, ci domain.ConfigurationItem, entries []domain.HistoryEntry) (domain.ConfigurationItem, error) {
	attributesJSON, err := ci.GetAttributesAsJSONB()
	if err != nil {
		return domain.ConfigurationItem{}, fmt.Errorf("failed to marshal attributes: %w", err)
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return domain.ConfigurationItem{}, translateError("update ci", err)
	}
	defer tx.Rollback(ctx)

	row := tx.QueryRow(ctx, `
		UPDATE configuration_items SET
			name = $2, description = $3, ci_type = $4, status = $5, criticality = $6,
			environment = $7, location = $8, owner = $9, support_group = $10,
			attributes = $11, tags = $12, updated_at = $13, updated_by = $14
		WHERE id = $1
		RETURNING `+ciColumns,
		ci.ID, ci.Name, ci.Description, ci.CIType, ci.Status, ci.Criticality,
		ci.Environment, ci.Location, ci.Owner, ci.SupportGroup,
		attributesJSON, ci.Tags, ci.UpdatedAt, ci.UpdatedBy,
	)

	updated, err := scanCI(row)
	if err != nil {
		return domain.ConfigurationItem{}, translateError("update ci", err)
	}

	for _, entry := range entries {
		if err := insertHistoryTx(ctx, tx, entry); err != nil {
			return domain.ConfigurationItem{}, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return domain.ConfigurationItem{}, translateError("update ci", err)
	}

	return updated, nil
}

// Dispose soft-deletes the CI and cascades to its relationships in a
// single transaction. Already-Disposed CIs are returned unchanged.
func (r *ciRepository) Dispose(ctx context.Context, id uuid.UUID, actor string, now time.Time) (domain.ConfigurationItem, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return domain.ConfigurationItem{}, translateError("dispose ci", err)
	}
	defer tx.Rollback(ctx)

	row := tx.QueryRow(ctx, `SELECT `+ciColumns+` FROM configuration_items WHERE id = $1 FOR UPDATE`, id)
	current, err := scanCI(row)
	if err != nil {
		return domain.ConfigurationItem{}, translateError("dispose ci", err)
	}

	if current.Disposed() {
		// Idempotent: no second Delete entry, no cascade re-run.
		return current, tx.Commit(ctx)
	}

	row = tx.QueryRow(ctx, `
		UPDATE configuration_items
		SET status = $2, decommission_date = $3, updated_at = $3, updated_by = $4
		WHERE id = $1
		RETURNING `+ciColumns,
		id, domain.CIStatusDisposed, now, actor,
	)
	disposed, err := scanCI(row)
	if err != nil {
		return domain.ConfigurationItem{}, translateError("dispose ci", err)
	}

	if _, err := tx.Exec(ctx, `
		UPDATE ci_relationships SET is_active = FALSE
		WHERE (source_id = $1 OR target_id = $1) AND is_active`, id,
	); err != nil {
		return domain.ConfigurationItem{}, translateError("dispose ci cascade", err)
	}

	entry := domain.NewHistoryEntry(
		id, domain.ChangeTypeDelete,
		"status", string(current.Status), string(domain.CIStatusDisposed),
		"CI deleted/decommissioned", actor,
	)
	entry.ChangedAt = now
	if err := insertHistoryTx(ctx, tx, entry); err != nil {
		return domain.ConfigurationItem{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return domain.ConfigurationItem{}, translateError("dispose ci", err)
	}

	return disposed, nil
}

// Search returns a filtered page of CIs plus the total match count.
func (r *ciRepository) Search(ctx context.Context, filter domain.CIFilter, page, pageSize int) ([]domain.ConfigurationItem, int64, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 20
	}
	if pageSize > 100 {
		pageSize = 100
	}

	where, args := buildCIFilter(filter)

	var total int64
	countSQL := `SELECT count(*) FROM configuration_items` + where
	if err := r.pool.QueryRow(ctx, countSQL, args...).Scan(&total); err != nil {
		return nil, 0, translateError("search cis", err)
	}

	pageSQL := fmt.Sprintf(
		`SELECT %s FROM configuration_items%s ORDER BY ci_code ASC LIMIT $%d OFFSET $%d`,
		ciColumns, where, len(args)+1, len(args)+2,
	)
	args = append(args, pageSize, (page-1)*pageSize)

	rows, err := r.pool.Query(ctx, pageSQL, args...)
	if err != nil {
		return nil, 0, translateError("search cis", err)
	}
	defer rows.Close()

	items, err := collectCIs(rows, "search cis")
	if err != nil {
		return nil, 0, err
	}

	return items, total, nil
}

// Statistics aggregates inventory counts by class and status.
func (r *ciRepository) Statistics(ctx context.Context) (domain.Statistics, error) {
	stats := domain.Statistics{
		ByClass:  map[string]int64{},
		ByStatus: map[string]int64{},
	}

	rows, err := r.pool.Query(ctx, `
		SELECT ci_class, count(*) FROM configuration_items
		WHERE status != $1 GROUP BY ci_class`, domain.CIStatusDisposed)
	if err != nil {
		return domain.Statistics{}, translateError("cmdb statistics", err)
	}
	defer rows.Close()
	for rows.Next() {
		var class string
		var count int64
		if err := rows.Scan(&class, &count); err != nil {
			return domain.Statistics{}, translateError("cmdb statistics", err)
		}
		stats.ByClass[class] = count
	}
	if err := rows.Err(); err != nil {
		return domain.Statistics{}, translateError("cmdb statistics", err)
	}

	statusRows, err := r.pool.Query(ctx, `
		SELECT status, count(*) FROM configuration_items GROUP BY status`)
	if err != nil {
		return domain.Statistics{}, translateError("cmdb statistics", err)
	}
	defer statusRows.Close()
	for statusRows.Next() {
		var status string
		var count int64
		if err := statusRows.Scan(&status, &count); err != nil {
			return domain.Statistics{}, translateError("cmdb statistics", err)
		}
		stats.ByStatus[status] = count
		stats.TotalCIs += count
	}
	if err := statusRows.Err(); err != nil {
		return domain.Statistics{}, translateError("cmdb statistics", err)
	}

	if err := r.pool.QueryRow(ctx,
		`SELECT count(*) FROM ci_relationships WHERE is_active`,
	).Scan(&stats.TotalRelationships); err != nil {
		return domain.Statistics{}, translateError("cmdb statistics", err)
	}

	return stats, nil
}

// buildCIFilter renders the filter as a WHERE clause with positional args.
func buildCIFilter(filter domain.CIFilter) (string, []any) {
	var conditions []string
	var args []any

	arg := func(value any) string {
		args = append(args, value)
		return fmt.Sprintf("$%d", len(args))
	}

	if !filter.IncludeDisposed {
		conditions = append(conditions, fmt.Sprintf("status != %s", arg(string(domain.CIStatusDisposed))))
	}
	if filter.Query != "" {
		pattern := "%" + filter.Query + "%"
		placeholder := arg(pattern)
		conditions = append(conditions, fmt.Sprintf(
			"(name ILIKE %s OR description ILIKE %s OR ci_code ILIKE %s)",
			placeholder, placeholder, placeholder,
		))
	}
	if filter.Class != nil {
		conditions = append(conditions, fmt.Sprintf("ci_class = %s", arg(string(*filter.Class))))
	}
	if filter.CIType != "" {
		conditions = append(conditions, fmt.Sprintf("ci_type = %s", arg(filter.CIType)))
	}
	if len(filter.Statuses) > 0 {
		conditions = append(conditions, fmt.Sprintf("status = ANY(%s)", arg(statusStrings(filter.Statuses))))
	}
	if len(filter.Criticalities) > 0 {
		conditions = append(conditions, fmt.Sprintf("criticality = ANY(%s)", arg(criticalityStrings(filter.Criticalities))))
	}
	if filter.Environment != "" {
		conditions = append(conditions, fmt.Sprintf("environment = %s", arg(filter.Environment)))
	}
	if filter.Location != "" {
		conditions = append(conditions, fmt.Sprintf("location = %s", arg(filter.Location)))
	}
	if filter.Owner != "" {
		conditions = append(conditions, fmt.Sprintf("owner = %s", arg(filter.Owner)))
	}
	if filter.SupportGroup != "" {
		conditions = append(conditions, fmt.Sprintf("support_group = %s", arg(filter.SupportGroup)))
	}
	if len(filter.Tags) > 0 {
		conditions = append(conditions, fmt.Sprintf("tags @> %s", arg(filter.Tags)))
	}

	if len(conditions) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(conditions, " AND "), args
}

func statusStrings(statuses []domain.CIStatus) []string {
	out := make([]string, len(statuses))
	for i, s := range statuses {
		out[i] = string(s)
	}
	return out
}

func criticalityStrings(criticalities []domain.CICriticality) []string {
	out := make([]string, len(criticalities))
	for i, c := range criticalities {
		out[i] = string(c)
	}
	return out
}

func collectCIs(rows pgx.Rows, op string) ([]domain.ConfigurationItem, error) {
	items := []domain.ConfigurationItem{}
	for rows.Next() {
		ci, err := scanCI(rows)
		if err != nil {
			return nil, translateError(op, err)
		}
		items = append(items, ci)
	}
	if err := rows.Err(); err != nil {
		return nil, translateError(op, err)
	}
	return items, nil
}

func scanCI(row pgx.Row) (domain.ConfigurationItem, error) {
	var ci domain.ConfigurationItem
	var attributesJSON json.RawMessage

	err := row.Scan(
		&ci.ID, &ci.CICode, &ci.Name, &ci.Description, &ci.Class, &ci.CIType,
		&ci.Status, &ci.Criticality, &ci.Environment, &ci.Location, &ci.Owner,
		&ci.SupportGroup, &attributesJSON, &ci.Tags, &ci.DecommissionDate,
		&ci.CreatedAt, &ci.UpdatedAt, &ci.CreatedBy, &ci.UpdatedBy,
	)
	if err != nil {
		return domain.ConfigurationItem{}, err
	}

	attributes, err := domain.FromJSONBAttributes(attributesJSON)
	if err != nil {
		return domain.ConfigurationItem{}, fmt.Errorf("failed to decode attributes for CI %s: %w", ci.ID, err)
	}
	ci.Attributes = attributes

	return ci, nil
}
