package main

//go:generate swag init -g cmd/tradesetup/main.go -o docs

// @title           TradeSetup API
// @version         0.1.0
// @description     Intraday setup pipeline: market context, open behavior, execution control, candidates and trade construction.
// @host            localhost:8080
// @BasePath        /
// @schemes         http
