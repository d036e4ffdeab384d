package audit

import (
	"context"
	"fmt"
	"time"

	"github.com/GurgoSoft/MIND-sub001/types"
	"github.com/jmoiron/sqlx"
)

var postgresTables = map[types.AuditDomain]string{
	types.AuditDomainUsers:  "user_audit_logs",
	types.AuditDomainAgenda: "agenda_audit_logs",
	types.AuditDomainDiary:  "diary_audit_logs",
}

// PostgresStore keeps one domain's audit records in its table.
type PostgresStore struct {
	db    *sqlx.DB
	table string
}

func NewPostgresStore(db *sqlx.DB, domain types.AuditDomain) (*PostgresStore, error) {
	table, ok := postgresTables[domain]
	if !ok {
		return nil, fmt.Errorf("unknown audit domain %q", domain)
	}
	return &PostgresStore{db: db, table: table}, nil
}

func (s *PostgresStore) Write(ctx context.Context, record types.AuditRecord) error {
	query := `INSERT INTO ` + s.table + ` (id, entity, entity_id, action, actor_id, before, after, ip, user_agent, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`
	_, err := s.db.ExecContext(ctx, query,
		record.ID,
		record.Entity,
		record.EntityID,
		string(record.Action),
		record.ActorID,
		jsonParam(record.Before),
		jsonParam(record.After),
		record.IP,
		record.UserAgent,
		record.CreatedAt,
	)
	return err
}

func (s *PostgresStore) Query(ctx context.Context, filter types.AuditFilter, page types.Page) ([]types.AuditRecord, int, error) {
	clauses := ""
	args := []any{}
	add := func(expr string, v any) {
		args = append(args, v)
		if clauses == "" {
			clauses = " WHERE "
		} else {
			clauses += " AND "
		}
		clauses += fmt.Sprintf(expr, len(args))
	}
	if filter.Entity != "" {
		add("entity = $%d", filter.Entity)
	}
	if filter.EntityID != "" {
		add("entity_id = $%d", filter.EntityID)
	}
	if filter.ActorID != "" {
		add("actor_id = $%d", filter.ActorID)
	}
	if filter.Action != "" {
		add("action = $%d", string(filter.Action))
	}
	if filter.From != nil {
		add("created_at >= $%d", *filter.From)
	}
	if filter.To != nil {
		add("created_at <= $%d", *filter.To)
	}

	var total int
	if err := s.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM "+s.table+clauses, args...); err != nil {
		return nil, 0, err
	}

	page = page.Normalize()
	query := fmt.Sprintf(`SELECT id, entity, entity_id, action, actor_id,
			COALESCE(before, 'null'::jsonb) AS before, COALESCE(after, 'null'::jsonb) AS after,
			ip, user_agent, created_at
		FROM %s%s
		ORDER BY created_at DESC, id DESC
		LIMIT $%d OFFSET $%d`, s.table, clauses, len(args)+1, len(args)+2)
	records := []types.AuditRecord{}
	if err := s.db.SelectContext(ctx, &records, query, append(args, page.Limit, page.Offset())...); err != nil {
		return nil, 0, err
	}
	for i := range records {
		records[i].Before = dropNull(records[i].Before)
		records[i].After = dropNull(records[i].After)
	}
	return records, total, nil
}

func (s *PostgresStore) DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := s.db.ExecContext(ctx, "DELETE FROM "+s.table+" WHERE created_at < $1", cutoff)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

func jsonParam(raw []byte) any {
	if len(raw) == 0 {
		return nil
	}
	return string(raw)
}

func dropNull(raw []byte) []byte {
	if string(raw) == "null" {
		return nil
	}
	return raw
}
