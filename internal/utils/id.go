package utils

import (
	"fmt"

	gonanoid "github.com/matoous/go-nanoid/v2"
)

const nanoIDAlphabet = "abcdefghijklmnopqrstuvwxyz0123456789"

// GenerateNanoIDWithPrefix returns "<prefix>_<random>" with size random characters.
func GenerateNanoIDWithPrefix(prefix string, size int) string {
	id, err := gonanoid.Generate(nanoIDAlphabet, size)
	if err != nil {
		panic(err)
	}
	return fmt.Sprintf("%s_%s", prefix, id)
}
