package models

// Listing представляет объявление в схеме удалённого сервиса:
// один товар на одном рынке. Удалённый сервис трактует вставку как
// upsert по OfferID, поэтому повторная отправка того же объявления
// перезаписывает существующее - так и применяются обновления цен.
type Listing struct {
	OfferID          string     `json:"offerId"` // sku + "-" + код рынка
	Title            string     `json:"title"`
	Description      string     `json:"description"`
	Link             string     `json:"link"`
	ImageLink        string     `json:"imageLink"`
	AdditionalImages []string   `json:"additionalImageLinks,omitempty"`
	ContentLanguage  string     `json:"contentLanguage"`
	TargetCountry    string     `json:"targetCountry"`
	Channel          string     `json:"channel"`
	Availability     string     `json:"availability"`
	Condition        string     `json:"condition"`
	Brand            string     `json:"brand"`
	Price            Price      `json:"price"`
	ShippingWeight   Weight     `json:"shippingWeight"`
	Shipping         []Shipping `json:"shipping"`
	ItemGroupID      string     `json:"itemGroupId,omitempty"`
	IdentifierExists bool       `json:"identifierExists"`
}

// Price представляет денежный блок объявления: сумма строкой
// с двумя знаками после запятой плюс код валюты
type Price struct {
	Value    string `json:"value"`
	Currency string `json:"currency"`
}

// Weight представляет весовой блок объявления
type Weight struct {
	Value string `json:"value"`
	Unit  string `json:"unit"`
}

// Shipping представляет одну запись о доставке для рынка
type Shipping struct {
	Country string `json:"country"`
	Service string `json:"service"`
	Price   Price  `json:"price"`
}

// BatchEntry представляет одну позицию пакетного запроса вставки.
// BatchID - последовательный идентификатор позиции в рамках одной загрузки.
type BatchEntry struct {
	BatchID int64    `json:"batchId"`
	Listing *Listing `json:"product"`
}

// BatchEntryResult представляет исход одной позиции пакетного запроса
type BatchEntryResult struct {
	BatchID int64  `json:"batchId"`
	OfferID string `json:"offerId,omitempty"`
	OK      bool   `json:"ok"`
	Error   string `json:"error,omitempty"`
}

// UploadError представляет одну ошибку пакетной загрузки.
// BatchID равен -1 для ошибок транспортного уровня, когда отказал
// весь пакетный вызов целиком.
type UploadError struct {
	BatchID int64  `json:"batch_id"`
	OfferID string `json:"offer_id,omitempty"`
	Message string `json:"message"`
}
