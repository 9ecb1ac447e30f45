package model

import "time"

// User はIDプロバイダのsubjectをキーとするユーザーを表す。
type User struct {
	UID         string
	Email       string
	DisplayName string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}
