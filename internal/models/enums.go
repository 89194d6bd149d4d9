// Package models содержит доменные структуры резиденции: аккаунты,
// устройства, комнаты с арендами, подписки и баны, а также чистые функции
// вычисления производных состояний (например, состояния подписки).
package models

// SubState описывает кешированное состояние подписки аккаунта.
//
// Значение хранится в колонке accounts.sub_state как денормализованная
// проекция таблицы subscriptions. Истинное значение в любой момент
// пересчитывается функцией ComputeSubState.
type SubState string

const (
	// SubStateSubscribed — оплаченная подписка ещё действует.
	SubStateSubscribed SubState = "subscribed"
	// SubStateTrial — льготный месяц после окончания оплаченного периода
	// (или начальное состояние нового аккаунта).
	SubStateTrial SubState = "trial"
	// SubStateOutlaw — льготный месяц истёк, доступ должен быть отрезан.
	SubStateOutlaw SubState = "outlaw"
)

// PaymentStatus описывает статус платежа.
type PaymentStatus string

const (
	// PaymentStatusManual — платёж внесён вручную сотрудником (GRI).
	PaymentStatusManual PaymentStatus = "manual"
	// PaymentStatusCreating — платёж создаётся.
	PaymentStatusCreating PaymentStatus = "creating"
	// PaymentStatusWaiting — платёж ожидает подтверждения.
	PaymentStatusWaiting PaymentStatus = "waiting"
	// PaymentStatusAccepted — платёж подтверждён.
	PaymentStatusAccepted PaymentStatus = "accepted"
	// PaymentStatusRefused — платёж отклонён.
	PaymentStatusRefused PaymentStatus = "refused"
	// PaymentStatusCancelled — платёж отменён.
	PaymentStatusCancelled PaymentStatus = "cancelled"
	// PaymentStatusError — ошибка при обработке платежа.
	PaymentStatusError PaymentStatus = "error"
)
