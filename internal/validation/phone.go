// Package validation содержит функции валидации входных данных.
package validation

import "strings"

// IsValidPhoneNumber проверяет французский номер телефона: либо десять цифр
// с ведущим нулём, либо формат +33 и девять цифр. Пробелы, точки и дефисы
// между цифрами допускаются.
func IsValidPhoneNumber(phone string) bool {
	cleaned := strings.Map(func(r rune) rune {
		switch r {
		case ' ', '.', '-':
			return -1
		}
		return r
	}, phone)

	if strings.HasPrefix(cleaned, "+33") {
		cleaned = "0" + cleaned[3:]
	}

	if len(cleaned) != 10 || cleaned[0] != '0' {
		return false
	}

	for i := 0; i < len(cleaned); i++ {
		if cleaned[i] < '0' || cleaned[i] > '9' {
			return false
		}
	}

	// Вторая цифра задаёт тип линии, ноль не используется.
	return cleaned[1] != '0'
}

// NormalizePhoneNumber приводит номер к десятизначной форме с ведущим нулём.
// Возвращает пустую строку для некорректного номера.
func NormalizePhoneNumber(phone string) string {
	if !IsValidPhoneNumber(phone) {
		return ""
	}

	cleaned := strings.Map(func(r rune) rune {
		switch r {
		case ' ', '.', '-':
			return -1
		}
		return r
	}, phone)

	if strings.HasPrefix(cleaned, "+33") {
		cleaned = "0" + cleaned[3:]
	}

	return cleaned
}
