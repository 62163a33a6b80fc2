package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/inforequest/inforequest/internal/domain"
	"github.com/inforequest/inforequest/internal/ports"
	_ "modernc.org/sqlite"
)

type Store struct {
	db *sql.DB
}

var (
	_ ports.DraftStore       = (*Store)(nil)
	_ ports.InforequestStore = (*Store)(nil)
	_ ports.ObligeeStore     = (*Store)(nil)
)

func NewStore(dsn string) (*Store, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite: %w", err)
	}

	db.Exec("PRAGMA journal_mode=WAL")
	db.Exec("PRAGMA busy_timeout=5000")
	db.Exec("PRAGMA foreign_keys=ON")

	// A single connection keeps ":memory:" databases shared and writers serialized.
	db.SetMaxOpenConns(1)

	if err := migrate(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrating: %w", err)
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func migrate(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS drafts (
			id TEXT NOT NULL,
			owner TEXT NOT NULL,
			step TEXT NOT NULL DEFAULT '',
			record TEXT NOT NULL,
			modified TEXT,
			PRIMARY KEY (id, owner)
		);
		CREATE TABLE IF NOT EXISTS obligees (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			name TEXT NOT NULL,
			email TEXT NOT NULL DEFAULT ''
		);
		CREATE TABLE IF NOT EXISTS inforequests (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			owner TEXT NOT NULL,
			subject TEXT NOT NULL DEFAULT '',
			created TEXT
		);
		CREATE TABLE IF NOT EXISTS branches (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			inforequest_id INTEGER NOT NULL,
			obligee_id INTEGER NOT NULL DEFAULT 0,
			obligee_name TEXT NOT NULL DEFAULT '',
			obligee_email TEXT NOT NULL DEFAULT '',
			advanced_by_id INTEGER NOT NULL DEFAULT 0,
			FOREIGN KEY (inforequest_id) REFERENCES inforequests(id)
		);
		CREATE TABLE IF NOT EXISTS actions (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			branch_id INTEGER NOT NULL,
			type INTEGER NOT NULL,
			email_id INTEGER NOT NULL DEFAULT 0,
			subject TEXT NOT NULL DEFAULT '',
			content TEXT NOT NULL DEFAULT '',
			file_number TEXT NOT NULL DEFAULT '',
			delivered_date TEXT,
			legal_date TEXT,
			deadline_days INTEGER,
			extension INTEGER NOT NULL DEFAULT 0,
			applicant_extension INTEGER NOT NULL DEFAULT 0,
			disclosure_level INTEGER NOT NULL DEFAULT 0,
			refusal_reasons TEXT NOT NULL DEFAULT '',
			advanced_to TEXT NOT NULL DEFAULT '',
			attachments TEXT NOT NULL DEFAULT '',
			created TEXT,
			FOREIGN KEY (branch_id) REFERENCES branches(id)
		);
		CREATE TABLE IF NOT EXISTS emails (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			inforequest_id INTEGER NOT NULL,
			sender TEXT NOT NULL DEFAULT '',
			subject TEXT NOT NULL DEFAULT '',
			text TEXT NOT NULL DEFAULT '',
			processed TEXT,
			type INTEGER NOT NULL DEFAULT 0,
			attachments TEXT NOT NULL DEFAULT '',
			FOREIGN KEY (inforequest_id) REFERENCES inforequests(id)
		);
		CREATE INDEX IF NOT EXISTS idx_actions_branch ON actions(branch_id, id);
		CREATE INDEX IF NOT EXISTS idx_branches_inforequest ON branches(inforequest_id, id);
	`)
	return err
}

// Drafts

func (s *Store) LoadDraft(ctx context.Context, id, owner string) (*domain.Draft, error) {
	var record string
	err := s.db.QueryRowContext(ctx,
		`SELECT record FROM drafts WHERE id = ? AND owner = ?`, id, owner).Scan(&record)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("draft %q: %w", id, ports.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return domain.UnmarshalDraft([]byte(record))
}

// SaveDraft replaces the whole record in one statement.
func (s *Store) SaveDraft(ctx context.Context, d *domain.Draft) error {
	record, err := domain.MarshalDraft(d)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO drafts (id, owner, step, record, modified) VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT (id, owner) DO UPDATE SET step = excluded.step, record = excluded.record, modified = excluded.modified`,
		d.ID, d.Owner, d.Step, string(record), formatTime(d.Modified),
	)
	return err
}

func (s *Store) DeleteDraft(ctx context.Context, id, owner string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM drafts WHERE id = ? AND owner = ?`, id, owner)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("draft %q: %w", id, ports.ErrNotFound)
	}
	return nil
}

func (s *Store) ListDrafts(ctx context.Context, owner string) ([]*domain.Draft, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT record FROM drafts WHERE owner = ? ORDER BY id`, owner)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var drafts []*domain.Draft
	for rows.Next() {
		var record string
		if err := rows.Scan(&record); err != nil {
			return nil, err
		}
		d, err := domain.UnmarshalDraft([]byte(record))
		if err != nil {
			return nil, err
		}
		drafts = append(drafts, d)
	}
	return drafts, rows.Err()
}

// Obligees

func (s *Store) CreateObligee(ctx context.Context, o *domain.Obligee) error {
	if o.ID != 0 {
		_, err := s.db.ExecContext(ctx,
			`INSERT INTO obligees (id, name, email) VALUES (?, ?, ?)`, o.ID, o.Name, o.Email)
		return err
	}
	res, err := s.db.ExecContext(ctx, `INSERT INTO obligees (name, email) VALUES (?, ?)`, o.Name, o.Email)
	if err != nil {
		return err
	}
	o.ID, err = res.LastInsertId()
	return err
}

func (s *Store) ListObligees(ctx context.Context) ([]domain.Obligee, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, name, email FROM obligees ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Obligee
	for rows.Next() {
		var o domain.Obligee
		if err := rows.Scan(&o.ID, &o.Name, &o.Email); err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

// Inforequests

// CreateInforequest stores the inforequest with its branches, actions and
// emails in one transaction, assigning ids in place.
func (s *Store) CreateInforequest(ctx context.Context, ir *domain.Inforequest) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		`INSERT INTO inforequests (owner, subject, created) VALUES (?, ?, ?)`,
		ir.Owner, ir.Subject, formatTime(ir.Created))
	if err != nil {
		return err
	}
	if ir.ID, err = res.LastInsertId(); err != nil {
		return err
	}
	for _, b := range ir.Branches {
		if err := insertBranch(ctx, tx, ir.ID, b); err != nil {
			return err
		}
	}
	for _, e := range ir.Emails {
		if err := insertEmail(ctx, tx, ir.ID, e); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (s *Store) CreateBranch(ctx context.Context, inforequestID int64, b *domain.Branch) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := s.requireInforequest(ctx, tx, inforequestID); err != nil {
		return err
	}
	if err := insertBranch(ctx, tx, inforequestID, b); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *Store) requireInforequest(ctx context.Context, q querier, id int64) error {
	var found int64
	err := q.QueryRowContext(ctx, `SELECT id FROM inforequests WHERE id = ?`, id).Scan(&found)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("inforequest %d: %w", id, ports.ErrNotFound)
	}
	return err
}

func (s *Store) CreateAction(ctx context.Context, a *domain.Action) error {
	var found int64
	err := s.db.QueryRowContext(ctx, `SELECT id FROM branches WHERE id = ?`, a.BranchID).Scan(&found)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("branch %d: %w", a.BranchID, ports.ErrNotFound)
	}
	if err != nil {
		return err
	}
	return insertAction(ctx, s.db, a)
}

func (s *Store) UpdateAction(ctx context.Context, a *domain.Action) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE actions SET type = ?, email_id = ?, subject = ?, content = ?, file_number = ?,
		 delivered_date = ?, legal_date = ?, deadline_days = ?, extension = ?, applicant_extension = ?,
		 disclosure_level = ?, refusal_reasons = ?, advanced_to = ?, attachments = ?
		 WHERE id = ? AND branch_id = ?`,
		int(a.Type), a.EmailID, a.Subject, a.Content, a.FileNumber,
		formatDate(a.DeliveredDate), formatDate(a.LegalDate), nullInt(a.DeadlineDays), a.Extension, a.ApplicantExtension,
		int(a.DisclosureLevel), joinReasons(a.RefusalReasons), joinIDs(a.AdvancedTo), strings.Join(a.Attachments, ","),
		a.ID, a.BranchID,
	)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("action %d: %w", a.ID, ports.ErrNotFound)
	}
	return nil
}

func (s *Store) CreateEmail(ctx context.Context, inforequestID int64, e *domain.Email) error {
	if err := s.requireInforequest(ctx, s.db, inforequestID); err != nil {
		return err
	}
	return insertEmail(ctx, s.db, inforequestID, e)
}

func (s *Store) SetEmailType(ctx context.Context, emailID int64, t domain.EmailType) error {
	res, err := s.db.ExecContext(ctx, `UPDATE emails SET type = ? WHERE id = ?`, int(t), emailID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("email %d: %w", emailID, ports.ErrNotFound)
	}
	return nil
}

// GetInforequest loads the inforequest with its whole history. Inforequests
// of other owners are reported as not found.
func (s *Store) GetInforequest(ctx context.Context, id int64, owner string) (*domain.Inforequest, error) {
	ir := &domain.Inforequest{}
	var created string
	err := s.db.QueryRowContext(ctx,
		`SELECT id, owner, subject, COALESCE(created,'') FROM inforequests WHERE id = ? AND owner = ?`, id, owner).
		Scan(&ir.ID, &ir.Owner, &ir.Subject, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("inforequest %d: %w", id, ports.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	ir.Created = parseTime(created)

	if ir.Branches, err = s.branches(ctx, id); err != nil {
		return nil, err
	}
	if ir.Emails, err = s.emails(ctx, id); err != nil {
		return nil, err
	}
	return ir, nil
}

func (s *Store) branches(ctx context.Context, inforequestID int64) ([]*domain.Branch, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, obligee_id, obligee_name, obligee_email, advanced_by_id FROM branches
		 WHERE inforequest_id = ? ORDER BY id`, inforequestID)
	if err != nil {
		return nil, err
	}
	var branches []*domain.Branch
	byID := make(map[int64]*domain.Branch)
	for rows.Next() {
		b := &domain.Branch{}
		if err := rows.Scan(&b.ID, &b.Obligee.ID, &b.Obligee.Name, &b.Obligee.Email, &b.AdvancedByID); err != nil {
			rows.Close()
			return nil, err
		}
		branches = append(branches, b)
		byID[b.ID] = b
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	rows, err = s.db.QueryContext(ctx,
		`SELECT a.id, a.branch_id, a.type, a.email_id, a.subject, a.content, a.file_number,
		 COALESCE(a.delivered_date,''), COALESCE(a.legal_date,''), a.deadline_days, a.extension,
		 a.applicant_extension, a.disclosure_level, a.refusal_reasons, a.advanced_to, a.attachments,
		 COALESCE(a.created,'')
		 FROM actions a JOIN branches b ON b.id = a.branch_id
		 WHERE b.inforequest_id = ? ORDER BY a.id`, inforequestID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		a, err := scanAction(rows)
		if err != nil {
			return nil, err
		}
		if b := byID[a.BranchID]; b != nil {
			b.Actions = append(b.Actions, a)
		}
	}
	return branches, rows.Err()
}

func (s *Store) emails(ctx context.Context, inforequestID int64) ([]*domain.Email, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, sender, subject, text, COALESCE(processed,''), type, attachments FROM emails
		 WHERE inforequest_id = ? ORDER BY id`, inforequestID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var emails []*domain.Email
	for rows.Next() {
		e := &domain.Email{}
		var processed, attachments string
		var t int
		if err := rows.Scan(&e.ID, &e.From, &e.Subject, &e.Text, &processed, &t, &attachments); err != nil {
			return nil, err
		}
		e.Processed = parseTime(processed)
		e.Type = domain.EmailType(t)
		e.Attachments = splitList(attachments)
		emails = append(emails, e)
	}
	return emails, rows.Err()
}

type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func insertBranch(ctx context.Context, q querier, inforequestID int64, b *domain.Branch) error {
	res, err := q.ExecContext(ctx,
		`INSERT INTO branches (inforequest_id, obligee_id, obligee_name, obligee_email, advanced_by_id)
		 VALUES (?, ?, ?, ?, ?)`,
		inforequestID, b.Obligee.ID, b.Obligee.Name, b.Obligee.Email, b.AdvancedByID)
	if err != nil {
		return err
	}
	if b.ID, err = res.LastInsertId(); err != nil {
		return err
	}
	for _, a := range b.Actions {
		a.BranchID = b.ID
		if err := insertAction(ctx, q, a); err != nil {
			return err
		}
	}
	return nil
}

func insertAction(ctx context.Context, q querier, a *domain.Action) error {
	res, err := q.ExecContext(ctx,
		`INSERT INTO actions (branch_id, type, email_id, subject, content, file_number, delivered_date,
		 legal_date, deadline_days, extension, applicant_extension, disclosure_level, refusal_reasons,
		 advanced_to, attachments, created)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.BranchID, int(a.Type), a.EmailID, a.Subject, a.Content, a.FileNumber, formatDate(a.DeliveredDate),
		formatDate(a.LegalDate), nullInt(a.DeadlineDays), a.Extension, a.ApplicantExtension, int(a.DisclosureLevel),
		joinReasons(a.RefusalReasons), joinIDs(a.AdvancedTo), strings.Join(a.Attachments, ","), formatTime(a.Created),
	)
	if err != nil {
		return fmt.Errorf("inserting %s action: %w", a.Type, err)
	}
	a.ID, err = res.LastInsertId()
	return err
}

func insertEmail(ctx context.Context, q querier, inforequestID int64, e *domain.Email) error {
	res, err := q.ExecContext(ctx,
		`INSERT INTO emails (inforequest_id, sender, subject, text, processed, type, attachments)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		inforequestID, e.From, e.Subject, e.Text, formatTime(e.Processed), int(e.Type), strings.Join(e.Attachments, ","))
	if err != nil {
		return err
	}
	e.ID, err = res.LastInsertId()
	return err
}

func scanAction(rows *sql.Rows) (*domain.Action, error) {
	a := &domain.Action{}
	var t, level int
	var delivered, legal, reasons, advancedTo, attachments, created string
	var deadline sql.NullInt64
	err := rows.Scan(&a.ID, &a.BranchID, &t, &a.EmailID, &a.Subject, &a.Content, &a.FileNumber,
		&delivered, &legal, &deadline, &a.Extension, &a.ApplicantExtension, &level,
		&reasons, &advancedTo, &attachments, &created)
	if err != nil {
		return nil, err
	}
	a.Type = domain.ActionType(t)
	a.DisclosureLevel = domain.DisclosureLevel(level)
	a.DeliveredDate = parseDate(delivered)
	a.LegalDate = parseDate(legal)
	if deadline.Valid {
		a.DeadlineDays = domain.Days(int(deadline.Int64))
	}
	for _, s := range splitList(reasons) {
		if n, err := strconv.Atoi(s); err == nil {
			a.RefusalReasons = append(a.RefusalReasons, domain.RefusalReason(n))
		}
	}
	for _, s := range splitList(advancedTo) {
		if n, err := strconv.ParseInt(s, 10, 64); err == nil {
			a.AdvancedTo = append(a.AdvancedTo, n)
		}
	}
	a.Attachments = splitList(attachments)
	a.Created = parseTime(created)
	return a, nil
}

func nullInt(p *int) sql.NullInt64 {
	if p == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*p), Valid: true}
}

func joinReasons(reasons []domain.RefusalReason) string {
	parts := make([]string, len(reasons))
	for i, r := range reasons {
		parts[i] = strconv.Itoa(int(r))
	}
	return strings.Join(parts, ",")
}

func joinIDs(ids []int64) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = strconv.FormatInt(id, 10)
	}
	return strings.Join(parts, ",")
}

func splitList(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(s, ",")
}

func formatDate(t time.Time) string {
	return domain.FormatDate(t)
}

func parseDate(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, _ := domain.ParseDate(s)
	return t
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(time.RFC3339Nano)
}

func parseTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, _ := time.Parse(time.RFC3339Nano, s)
	return t
}
