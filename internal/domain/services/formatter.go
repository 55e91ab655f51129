package services

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/athebyme/merchant-sync/internal/domain/models"
	"github.com/athebyme/merchant-sync/internal/utils"
	"github.com/shopspring/decimal"
)

// FallbackImage - изображение-заглушка для товаров без пригодной картинки
const FallbackImage = "https://images.unsplash.com/photo-1606923829579-0cb981a83e2e?w=800&h=800&fit=crop&fm=jpg"

// unsplashParams - параметры кадрирования, добавляемые к стоковым URL
const unsplashParams = "?w=800&h=800&fit=crop&fm=jpg"

// weightPattern извлекает величину и единицу из свободного текста
// этикетки, например "250 ml", "5kg", "1.5 Ltr"
var weightPattern = regexp.MustCompile(`(?i)(\d+(?:\.\d+)?)\s*(ml|g|kg|ltr|l|gm)\b`)

// Formatter преобразует товар локального каталога в объявление
// схемы удалённого сервиса для конкретного рынка
type Formatter struct {
	storeDomain string
}

// NewFormatter создает новый форматтер объявлений.
// storeDomain - базовый URL витрины для абсолютных ссылок.
func NewFormatter(storeDomain string) *Formatter {
	return &Formatter{storeDomain: strings.TrimRight(storeDomain, "/")}
}

// Format строит объявление для пары (товар, рынок) с уже рассчитанной
// региональной ценой. Отсутствие SKU или названия - жесткая ошибка,
// остальные поля заполняются заглушками.
func (f *Formatter) Format(product *models.Product, market models.MarketConfig, price decimal.Decimal) (*models.Listing, error) {
	if product.SKU == "" {
		return nil, utils.ErrMissingSKU
	}
	if product.Name == "" {
		return nil, fmt.Errorf("product %s: %w", product.SKU, utils.ErrMissingName)
	}

	weightValue, weightUnit := extractWeight(product)

	description := product.Description
	if description == "" {
		description = product.ShortDescription
	}
	if description == "" {
		description = product.Name
	}

	listing := &models.Listing{
		OfferID:          product.SKU + "-" + market.Code,
		Title:            product.Name,
		Description:      description,
		Link:             f.storeDomain + "/products/" + product.SKU,
		ImageLink:        f.normalizeImage(product.Image),
		AdditionalImages: f.additionalImages(product),
		ContentLanguage:  "en",
		TargetCountry:    market.Code,
		Channel:          "online",
		Availability:     "in stock",
		Condition:        "new",
		Brand:            product.Brand,
		Price: models.Price{
			Value:    price.StringFixed(2),
			Currency: market.Currency,
		},
		ShippingWeight: models.Weight{
			Value: weightValue,
			Unit:  weightUnit,
		},
		Shipping: []models.Shipping{
			{
				Country: market.Code,
				Service: "Standard",
				Price: models.Price{
					Value:    market.ShippingCost.StringFixed(2),
					Currency: market.Currency,
				},
			},
		},
		ItemGroupID:      itemGroupID(product.Slug),
		IdentifierExists: product.GTIN != "",
	}

	return listing, nil
}

// extractWeight определяет вес отгрузки товара.
// Приоритет: структурированный вес первого варианта, затем разбор
// текста этикетки, затем заглушка "500 g".
func extractWeight(product *models.Product) (string, string) {
	if len(product.Variants) > 0 {
		variant := product.Variants[0]
		if variant.WeightKg > 0 {
			grams := variant.WeightKg * 1000
			return strconv.FormatFloat(grams, 'f', -1, 64), "g"
		}
		if value, unit, ok := parseWeightLabel(variant.Label); ok {
			return value, unit
		}
	}
	return "500", "g"
}

// parseWeightLabel разбирает свободный текст этикетки варианта.
// Килограммы и литры приводятся к граммам и миллилитрам.
func parseWeightLabel(label string) (string, string, bool) {
	match := weightPattern.FindStringSubmatch(label)
	if match == nil {
		return "", "", false
	}

	value, err := strconv.ParseFloat(match[1], 64)
	if err != nil {
		return "", "", false
	}

	unit := strings.ToLower(match[2])
	switch unit {
	case "kg":
		value *= 1000
		unit = "g"
	case "ltr", "l":
		value *= 1000
		unit = "ml"
	case "gm":
		unit = "g"
	}

	return strconv.FormatFloat(value, 'f', -1, 64), unit, true
}

// normalizeImage приводит URL изображения к пригодному для объявления виду
func (f *Formatter) normalizeImage(image string) string {
	if image == "" || strings.Contains(image, "example.com") {
		return FallbackImage
	}

	if strings.Contains(image, "images.unsplash.com") {
		// Обрезаем существующие параметры и добавляем свои ровно один раз
		if idx := strings.Index(image, "?"); idx >= 0 {
			image = image[:idx]
		}
		return image + unsplashParams
	}

	if strings.HasPrefix(image, "http://") || strings.HasPrefix(image, "https://") {
		return image
	}

	// Относительный путь дополняется доменом витрины
	return f.storeDomain + "/" + strings.TrimLeft(image, "/")
}

// additionalImages возвращает до 10 дополнительных изображений,
// исключая совпадающие с основным
func (f *Formatter) additionalImages(product *models.Product) []string {
	primary := f.normalizeImage(product.Image)

	var images []string
	for _, image := range product.AdditionalImages {
		if image == "" {
			continue
		}
		normalized := f.normalizeImage(image)
		if normalized == primary {
			continue
		}
		images = append(images, normalized)
		if len(images) == 10 {
			break
		}
	}
	return images
}

// itemGroupID выводит идентификатор группы вариантов из слага:
// часть до первого дефиса, либо слаг целиком
func itemGroupID(slug string) string {
	if slug == "" {
		return ""
	}
	if idx := strings.Index(slug, "-"); idx > 0 {
		return slug[:idx]
	}
	return slug
}
