package utils

import (
	fiberutils "github.com/gofiber/fiber/v2/utils"
)

var (
	GenerateUUIDv4Func = GenerateUUIDv4
)

func GenerateUUIDv4() string {
	return fiberutils.UUIDv4()
}
