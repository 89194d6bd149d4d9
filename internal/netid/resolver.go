// Package netid определяет сетевую личность запроса: по IP вызывающего
// находит его MAC-адрес в снимке ARP-таблицы локальной сети.
//
// Наличие MAC означает, что запрос пришёл из внутренней сети резиденции;
// отсутствие — что запрос пришёл из Интернета. Промах по таблице — не
// ошибка: снимок точечный, повторных попыток не делается.
package netid

import "context"

// Entry — одна запись снимка ARP-таблицы.
type Entry struct {
	IP  string
	MAC string
}

// Source отдаёт точечный снимок таблицы соответствий IP—MAC.
type Source interface {
	Snapshot(ctx context.Context) ([]Entry, error)
}

// Resolver находит MAC-адрес по IP вызывающего.
type Resolver struct {
	source Source
}

// NewResolver создаёт Resolver над источником снимков.
func NewResolver(source Source) *Resolver {
	return &Resolver{source: source}
}

// MAC возвращает MAC-адрес для IP или пустую строку, если IP нет в таблице
// (запрос с внешней стороны). Ошибка возвращается только при невозможности
// получить снимок.
func (r *Resolver) MAC(ctx context.Context, remoteIP string) (string, error) {
	entries, err := r.source.Snapshot(ctx)
	if err != nil {
		return "", err
	}
	for _, entry := range entries {
		if entry.IP == remoteIP {
			return entry.MAC, nil
		}
	}
	return "", nil
}

// Static — источник с фиксированным содержимым, для тестов и стендов
// с принудительной подменой сетевой личности.
type Static []Entry

// Snapshot возвращает фиксированные записи.
func (s Static) Snapshot(_ context.Context) ([]Entry, error) {
	return s, nil
}
