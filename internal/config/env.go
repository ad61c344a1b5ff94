package config

import (
	"os"

	"github.com/joho/godotenv"
)

// LoadEnv загружает переменные окружения из .env файла.
// Возвращает ошибку если файл не существует или не может быть прочитан.
func LoadEnv(path string) error {
	return godotenv.Load(path)
}

// LoadEnvOptional загружает переменные окружения из .env файла, если он существует.
// Если файл не существует - возвращает nil (без ошибки).
func LoadEnvOptional(path string) error {
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	return godotenv.Load(path)
}
