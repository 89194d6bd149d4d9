package models

import "time"

// Payment — запись о полученных деньгах.
type Payment struct {
	ID          int
	AccountID   int           // Плательщик
	Amount      float64       // Сумма
	Created     time.Time     // Момент создания записи
	Payed       *time.Time    // Момент оплаты, nil пока не оплачен
	Status      PaymentStatus // Статус платежа
	Correlation string        // Корреляционный идентификатор (uuid)
	GriID       *int          // Сотрудник, внёсший платёж вручную, иначе nil
}
