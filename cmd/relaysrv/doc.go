// Package `relaysrv` implements server application which relays messages of every
// connected TCP client to all other clients.
//
// To compile relay server locally, run from package directory:
//
//	go install .
//
// Or quickly launch server with command:
//
//	go run . -address 127.0.0.1:3000
//
// Several servers are federated through NATS when `-nats-url` is given:
//
//	go run . -address :3001 -nats-url nats://127.0.0.1:4222
package main
