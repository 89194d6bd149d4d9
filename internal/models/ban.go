package models

import "time"

// Ban — административное отключение резидента от сети,
// независимое от состояния подписки.
type Ban struct {
	ID        int
	AccountID int
	Start     time.Time
	End       *time.Time // nil для бессрочного бана
	Reason    string     // Короткая причина
	Message   string     // Сообщение, показываемое резиденту
}

// IsActive сообщает, действует ли бан в указанный момент.
func (b *Ban) IsActive(now time.Time) bool {
	if b.Start.After(now) {
		return false
	}
	return b.End == nil || now.Before(*b.End)
}
