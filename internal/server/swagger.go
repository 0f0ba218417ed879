package server

//go:generate swag init -g internal/server/server.go -o docs/swagger

// @title Clarity API
// @version 0.1
// @description Accessibility scans for public websites, plus the quota, subscription and checkout endpoints around them.
// @contact.name Clarity Maintainers
// @contact.url https://github.com/raysh454/clarity
// @BasePath /
