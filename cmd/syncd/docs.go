package main

//go:generate swag init -g cmd/syncd/main.go -o docs

// @title           Marketplace Sync API
// @version         0.1.0
// @description     Sync run control, registry queries, and outbound marketplace operations.
// @host            localhost:8080
// @BasePath        /
// @schemes         http
