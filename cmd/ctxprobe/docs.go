package main

// General API documentation for swaggo. Regenerate with:
//
//	swag init -g cmd/ctxprobe/docs.go -o docs
//
// @title           ctxprobe status API
// @version         1.0
// @description     Read-only progress view of a running context probe sweep.
//
// @contact.name   ctxprobe maintainers
//
// @license.name   MIT
// @license.url    https://opensource.org/licenses/MIT
//
// @BasePath  /
//
// @schemes http
