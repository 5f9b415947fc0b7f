package models

import "github.com/go-playground/validator/v10"

// validate проверяет запросы по тегам validate; безопасен для конкурентного использования
var validate = validator.New(validator.WithRequiredStructEnabled())
