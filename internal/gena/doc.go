// Package gena manages UPnP event subscriptions and receives the NOTIFY
// callbacks devices send back.
//
// A Manager issues SUBSCRIBE, renewal and UNSUBSCRIBE requests. It never
// stores subscriptions: each call takes a Subscription value and returns a new
// one, and the caller owns the lease schedule.
//
// A Receiver is the callback HTTP server. It is started and stopped
// explicitly and serves:
//
//	NOTIFY /notify   event delivery (property set body)
//	GET    /events   websocket stream of received events as JSON
//	GET    /metrics  Prometheus metrics
//	GET    /healthz  liveness
package gena
