// Package model содержит доменные сущности сервиса xrpl-radar.
package model

import "time"

// Card описывает профильную карточку пользователя.
// Все поля заполнены всегда: значения по умолчанию задаются при регистрации.
type Card struct {
	Grade    string `json:"grade"`
	Sequence int    `json:"sequence"`
	Color1   int    `json:"color1"`
	Color2   int    `json:"color2"`
	Color3   int    `json:"color3"`
}

// CardPatch описывает частичное обновление карточки: nil-поле сохраняет
// текущее значение, непустое поле заменяет его.
type CardPatch struct {
	Grade    *string `json:"grade"`
	Sequence *int    `json:"sequence"`
	Color1   *int    `json:"color1"`
	Color2   *int    `json:"color2"`
	Color3   *int    `json:"color3"`
}

// User представляет зарегистрированного пользователя.
// InternalID — сгенерированный непрозрачный идентификатор (первичный ключ),
// Login — выбранный пользователем уникальный логин.
// Хеш пароля наружу не сериализуется.
type User struct {
	InternalID   string `json:"_id"`
	Login        string `json:"id"`
	PasswordHash string `json:"-"`
	Card         Card   `json:"card"`
}

// UawHourlyRecord описывает одну почасовую запись количества уникальных
// активных кошельков (UAW) для сервиса. Запись неизменна после сохранения.
type UawHourlyRecord struct {
	ServiceName         string
	UawCount            int
	TotalTransactions   int
	CollectionStartTime time.Time
}

// ServiceUawSeries — производный временной ряд UAW одного сервиса:
// ровно 168 значений, от старых к новым. Не персистится.
type ServiceUawSeries struct {
	ServiceName string `json:"serviceName"`
	Values      []int  `json:"values"`
}

// Dapp описывает запись реестра приложений: имя сервиса и его
// контрактный адрес в сети XRPL. Один сервис может иметь несколько адресов.
type Dapp struct {
	ServiceName     string
	ContractAddress string
}
