package domain

import "time"

type User struct {
	ID                 uint
	Name               string
	Email              string
	TelegramUserID     int64
	Username           string
	EmailNotifications bool
	CreatedAt          time.Time
	UpdatedAt          time.Time
	DeletedAt          *time.Time
}
