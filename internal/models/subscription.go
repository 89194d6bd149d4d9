package models

import "time"

// FirstOfferSlug — слаг приветственного предложения (один бесплатный месяц),
// на которое оформляется автоматическая первая подписка.
const FirstOfferSlug = "_first"

// Offer — тарифное предложение подписки на Интернет.
type Offer struct {
	Slug          string  // Уникальный слаг
	NameFr        string  // Название (фр.)
	NameEn        string  // Название (англ.)
	DescriptionFr string  // Описание (фр.)
	DescriptionEn string  // Описание (англ.)
	Price         float64 // Цена
	Months        int     // Длительность в месяцах
	Days          int     // Дополнительные дни
	Visible       bool    // Показывать ли в каталоге
	Active        bool    // Можно ли оформить
}

// End возвращает дату окончания подписки на это предложение,
// оформленной с указанной даты.
func (o *Offer) End(start time.Time) time.Time {
	return start.AddDate(0, o.Months, o.Days)
}

// Subscription — подписка резидента на Интернет.
type Subscription struct {
	ID        int
	AccountID int
	OfferSlug string
	PaymentID *int // Платёж, оплативший подписку; nil для бесплатных
	Start     time.Time
	End       time.Time
}

// CutDay возвращает день отключения Интернета, если не оформлена новая
// подписка: конец подписки плюс льготный месяц плюс один день.
func (s *Subscription) CutDay() time.Time {
	return s.End.AddDate(0, 1, 1)
}

// IsActive сообщает, действует ли подписка (включая льготный период).
func (s *Subscription) IsActive(today time.Time) bool {
	return today.Before(s.CutDay())
}

// IsTrial сообщает, находится ли подписка в льготном периоде.
func (s *Subscription) IsTrial(today time.Time) bool {
	return !s.End.After(today) && today.Before(s.CutDay())
}

// RenewDay возвращает день, с которого начнётся следующая подписка:
// день отключения, если эта подписка ещё действует, иначе сегодня.
func (s *Subscription) RenewDay(today time.Time) time.Time {
	if s.IsActive(today) {
		return s.CutDay()
	}
	return today
}

// CurrentSubscription возвращает текущую подписку из списка — с самой
// поздней датой начала — или nil, если подписок нет.
func CurrentSubscription(subs []*Subscription) *Subscription {
	var current *Subscription
	for _, sub := range subs {
		if current == nil || sub.Start.After(current.Start) {
			current = sub
		}
	}
	return current
}

// ComputeSubState пересчитывает состояние подписки аккаунта из его подписок.
// Это единственное определение проекции: кешированное accounts.sub_state
// должно всегда совпадать с результатом этой функции на начало дня.
func ComputeSubState(subs []*Subscription, today time.Time) SubState {
	sub := CurrentSubscription(subs)
	switch {
	case sub == nil:
		return SubStateTrial
	case !sub.IsActive(today):
		return SubStateOutlaw
	case sub.IsTrial(today):
		return SubStateTrial
	default:
		return SubStateSubscribed
	}
}
