package models

import "time"

// AccessUser 代表可進入後台的使用者，文件 ID 即為 email
type AccessUser struct {
	Email     string    `json:"email"`
	HasAccess bool      `json:"hasAccess"`
	UpdatedAt time.Time `json:"updatedAt"`
}
