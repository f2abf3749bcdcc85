// Package chatkit implements the thread protocol around a Responder: it
// creates threads on first contact, persists the user's message and every
// completed item, and relays the responder's events to the client.
package chatkit
