package models

// Структуры для приёма данных из JSON-запросов, до валидации и
// преобразования в доменные модели. Даты приходят строками в формате
// 2006-01-02 и парсятся в сервисном слое.

// RegisterAccountRequest — данные регистрации нового резидента.
type RegisterAccountRequest struct {
	Username  string `json:"username" validate:"required,alphanum"`
	Email     string `json:"email" validate:"required,email"`
	FirstName string `json:"first_name" validate:"required"`
	LastName  string `json:"last_name" validate:"required"`
	Promo     string `json:"promo,omitempty" validate:"omitempty,numeric"`
	Locale    string `json:"locale,omitempty" validate:"omitempty,oneof=fr en"`
	Password  string `json:"password" validate:"required,min=8"`
}

// LoginRequest — данные входа.
type LoginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// RegisterRentalRequest — оформление аренды комнаты.
// Force подтверждает перехват занятой комнаты (аренда предыдущего
// занимающего закрывается).
type RegisterRentalRequest struct {
	RoomNum int    `json:"room_num" validate:"required"`
	Start   string `json:"start" validate:"required,datetime=2006-01-02"`
	End     string `json:"end,omitempty" validate:"omitempty,datetime=2006-01-02"`
	Force   bool   `json:"force,omitempty"`
}

// ModifyRentalRequest — изменение дат текущей аренды.
type ModifyRentalRequest struct {
	Start string `json:"start" validate:"required,datetime=2006-01-02"`
	End   string `json:"end,omitempty" validate:"omitempty,datetime=2006-01-02"`
}

// TerminateRentalRequest — завершение текущей аренды.
type TerminateRentalRequest struct {
	End string `json:"end" validate:"required,datetime=2006-01-02"`
}

// RegisterDeviceRequest — регистрация устройства.
type RegisterDeviceRequest struct {
	MAC  string `json:"mac" validate:"required,mac"`
	Name string `json:"name,omitempty"`
	Type string `json:"type,omitempty"`
}

// TransferDeviceRequest — передача устройства текущему аккаунту.
type TransferDeviceRequest struct {
	MAC string `json:"mac" validate:"required,mac"`
}

// SubscribeRequest — оформление подписки на предложение.
type SubscribeRequest struct {
	OfferSlug string `json:"offer_slug" validate:"required"`
}

// BanRequest — наложение бана на резидента.
type BanRequest struct {
	AccountID int    `json:"account_id" validate:"required"`
	End       string `json:"end,omitempty" validate:"omitempty,datetime=2006-01-02"`
	Reason    string `json:"reason" validate:"required,max=32"`
	Message   string `json:"message,omitempty" validate:"omitempty,max=2000"`
}

// UnbanRequest — снятие текущего бана с резидента.
type UnbanRequest struct {
	AccountID int `json:"account_id" validate:"required"`
}

// DHCPRegenerateEvent — событие, по которому воркер перегенерирует файл
// статических аренд DHCP. Публикуется после любой мутации устройств,
// аренды или банов.
type DHCPRegenerateEvent struct {
	Reason string `json:"reason"`
}

// StateChangeNotice — событие смены состояния подписки,
// публикуемое в очередь уведомлений.
type StateChangeNotice struct {
	Email    string   `json:"email"`
	Username string   `json:"username"`
	FullName string   `json:"full_name"`
	Locale   string   `json:"locale"`
	OldState SubState `json:"old_state"`
	NewState SubState `json:"new_state"`
	CutDay   string   `json:"cut_day,omitempty"`
}
