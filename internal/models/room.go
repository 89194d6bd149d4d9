package models

import "time"

// Room — комната резиденции. Статический каталог, заполняется миграцией.
type Room struct {
	Num          int    // Номер комнаты: 100*этаж + дверь
	Floor        int    // Этаж
	BaseIP       string // Статический фрагмент адреса "этаж.дверь"
	IPsAllocated int    // Монотонный счётчик выданных адресов
}

// Rental — аренда комнаты резидентом.
type Rental struct {
	ID        int
	AccountID int
	RoomNum   int
	Start     time.Time  // Дата начала
	End       *time.Time // Дата окончания, nil для бессрочной аренды
}

// IsCurrent сообщает, действует ли аренда на указанный день.
func (r *Rental) IsCurrent(today time.Time) bool {
	return r.End == nil || r.End.After(today)
}
