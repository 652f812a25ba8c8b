// Package events defines the host events the chat logger consumes and the
// Dispatcher that delivers them to a session handler one at a time.
//
// Hosts emit three kinds of events:
//
//	{"type":"connection_established","server":"play.example.com"}
//	{"type":"connection_established","local":true,"world":"My World"}
//	{"type":"message_received","text":"hello","senderId":"abc-123","senderName":"Alice"}
//	{"type":"connection_lost"}
//
// The session manager is not safe for concurrent use. Hosts with a single
// producer may call Dispatcher.Deliver directly; hosts with several producers
// Publish into the Dispatcher and run exactly one Dispatcher.Run loop.
package events
