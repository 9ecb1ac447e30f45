package repository

import (
	"database/sql"
	"errors"

	"github.com/hitoshi/holograma/internal/model"
	"github.com/lib/pq"
)

// mediaColumns はmediaテーブルの取得カラム。scanMediaと順序を合わせること。
const mediaColumns = `m.id, m.url, m.kind, m.provider, m.public_id, m.width, m.height, m.duration, m.status, m.session_id, m.created_at`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

// scanMedia はmediaColumnsの順でメディアを読み取る。
// extraには追加で選択したカラムの格納先を渡す。
func scanMedia(s rowScanner, extra ...interface{}) (*model.Media, error) {
	m := &model.Media{}
	var (
		kind, status  string
		width, height sql.NullInt64
		duration      sql.NullFloat64
		sessionID     sql.NullString
	)
	dest := []interface{}{
		&m.ID, &m.URL, &kind, &m.Provider, &m.PublicID,
		&width, &height, &duration, &status, &sessionID, &m.CreatedAt,
	}
	dest = append(dest, extra...)
	if err := s.Scan(dest...); err != nil {
		return nil, err
	}

	m.Kind = model.MediaKind(kind)
	m.Status = model.MediaStatus(status)
	m.Width = nullIntPtr(width)
	m.Height = nullIntPtr(height)
	if duration.Valid {
		d := duration.Float64
		m.Duration = &d
	}
	m.SessionID = nullStringValue(sessionID)
	return m, nil
}

// nullString は空文字列をNULLとして扱うsql.NullStringを返す。
func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

// nullStringValue はsql.NullStringから文字列を取得する。
func nullStringValue(ns sql.NullString) string {
	if ns.Valid {
		return ns.String
	}
	return ""
}

func nullIntPtr(n sql.NullInt64) *int {
	if !n.Valid {
		return nil
	}
	v := int(n.Int64)
	return &v
}

func intPtrValue(p *int) sql.NullInt64 {
	if p == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*p), Valid: true}
}

func floatPtrValue(p *float64) sql.NullFloat64 {
	if p == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *p, Valid: true}
}

// PostgreSQLのエラーコード
const (
	pgForeignKeyViolation       = "23503"
	pgInvalidTextRepresentation = "22P02"
)

// isUnknownMediaError はメディアIDの参照先がない、またはUUIDとして不正な場合にtrueを返す。
func isUnknownMediaError(err error) bool {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return false
	}
	return pqErr.Code == pgForeignKeyViolation || pqErr.Code == pgInvalidTextRepresentation
}
