// Package validation содержит функции валидации входных данных.
package validation

import "unicode"

const maxLoginLength = 64

// IsValidLogin проверяет логин: непустой, без пробельных и непечатаемых
// символов, не длиннее 64 знаков.
func IsValidLogin(login string) bool {
	if login == "" || len(login) > maxLoginLength {
		return false
	}

	for _, ch := range login {
		if unicode.IsSpace(ch) || !unicode.IsPrint(ch) {
			return false
		}
	}

	return true
}
