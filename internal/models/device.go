package models

import "time"

// Device представляет устройство резидента, опознаваемое по MAC-адресу.
type Device struct {
	ID         int        // Уникальный идентификатор
	AccountID  int        // Владелец (может меняться при передаче устройства)
	MAC        string     // Аппаратный адрес, глобально уникальный, в нижнем регистре
	Name       string     // Необязательное имя
	Type       string     // Необязательный тип (телефон, ноутбук...)
	Registered time.Time  // Момент регистрации
	LastSeen   *time.Time // Последний запрос с внутренней сети, nil до первого появления
}

// LastSeenTime то же, что LastSeen, но никогда не nil:
// для ни разу не замеченного устройства возвращает нулевое время.
func (d *Device) LastSeenTime() time.Time {
	if d.LastSeen == nil {
		return time.Time{}
	}
	return *d.LastSeen
}

// Lease — строка для генерации статических аренд DHCP:
// выданный адрес вместе с MAC устройства и логином владельца.
type Lease struct {
	Username string
	RoomNum  int
	MAC      string
	IP       string
}

// Allocation — привязка IP-адреса к паре (устройство, комната).
// Создаётся лениво при первой необходимости и никогда не изменяется.
type Allocation struct {
	ID       int
	DeviceID int
	RoomNum  int
	IP       string
}
