package models

// Account представляет зарегистрированного резидента.
type Account struct {
	ID           int      // Уникальный идентификатор
	Username     string   // Имя пользователя (уникальное)
	Email        string   // Электронная почта (уникальная)
	FirstName    string   // Имя
	LastName     string   // Фамилия
	Promo        string   // Промо (год выпуска)
	Locale       string   // Предпочитаемый язык ("fr" или "en")
	IsGri        bool     // Признак сотрудника (GRI) с правом doas
	SubState     SubState // Кешированное состояние подписки
	PasswordHash string   // bcrypt-хэш пароля, никогда не отдаётся наружу
}

// FullName возвращает имя и фамилию резидента.
func (a *Account) FullName() string {
	return a.FirstName + " " + a.LastName
}
